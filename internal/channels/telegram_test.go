package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"agentdeck/internal/chat"
	"agentdeck/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoBackend struct {
	opens   int
	openErr error
	seen    []string
}

func (b *echoBackend) Open(context.Context, string, map[string]any) (string, error) {
	if b.openErr != nil {
		return "", b.openErr
	}
	b.opens++
	return "sess-" + string(rune('0'+b.opens)), nil
}

func (b *echoBackend) Run(_ context.Context, sessionID, message string, emit func(chat.Event)) error {
	b.seen = append(b.seen, sessionID+":"+message)
	emit(chat.Event{Type: chat.EventToken, Data: "echo "})
	emit(chat.Event{Type: chat.EventDone, Data: "echo " + message})
	return nil
}

type botAPI struct {
	mu      sync.Mutex
	sent    []telegramSendRequest
	actions int
}

func (a *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case strings.HasSuffix(r.URL.Path, telegramSendMsg):
		var req telegramSendRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		a.sent = append(a.sent, req)
	case strings.HasSuffix(r.URL.Path, telegramChatAction):
		a.actions++
	}
	w.WriteHeader(http.StatusOK)
}

func setup(t *testing.T, b chat.Backend) (*httptest.Server, *botAPI) {
	api := &botAPI{}
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	tg := NewTelegram("token", b, "7", nil).WithAPI(apiSrv.URL, apiSrv.Client())
	mux := http.NewServeMux()
	tg.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, api
}

func send(t *testing.T, url string, chatID int64, text string) {
	body, _ := json.Marshal(map[string]any{"message": map[string]any{"chat": map[string]any{"id": chatID}, "text": text}})
	resp, err := http.Post(url+"/webhook/telegram", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTelegramSessionPerChat(t *testing.T) {
	b := &echoBackend{}
	srv, api := setup(t, b)

	send(t, srv.URL, 1, "hello")
	send(t, srv.URL, 1, "London?")
	send(t, srv.URL, 2, "hi")

	assert.Equal(t, 2, b.opens)
	assert.Equal(t, []string{"sess-1:hello", "sess-1:London?", "sess-2:hi"}, b.seen)
	require.Len(t, api.sent, 3)
	assert.Equal(t, "echo London?", api.sent[1].Text)
	assert.Equal(t, int64(2), api.sent[2].ChatID)
	assert.Equal(t, 3, api.actions)
}

func TestTelegramNewCommand(t *testing.T) {
	b := &echoBackend{}
	srv, api := setup(t, b)

	send(t, srv.URL, 1, "hello")
	send(t, srv.URL, 1, "/new")
	send(t, srv.URL, 1, "again")

	assert.Equal(t, []string{"sess-1:hello", "sess-2:again"}, b.seen)
	assert.Equal(t, "Started a new session.", api.sent[1].Text)
}

func TestTelegramOpenError(t *testing.T) {
	srv, api := setup(t, &echoBackend{openErr: errors.New("not found")})

	send(t, srv.URL, 1, "hello")
	require.Len(t, api.sent, 1)
	assert.Equal(t, "Failed to create session: not found", api.sent[0].Text)
}

func TestTelegramIgnoresEmptyAndRejectsBadJSON(t *testing.T) {
	b := &echoBackend{}
	srv, api := setup(t, b)

	send(t, srv.URL, 1, "  ")
	assert.Empty(t, api.sent)

	resp, err := http.Post(srv.URL+"/webhook/telegram", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFromConfig(t *testing.T) {
	chs, err := FromConfig(map[string]*config.ChannelConfig{
		"tg":  {Enabled: true, Type: "telegram", Settings: map[string]string{"bot_token": "x"}},
		"off": {Enabled: false, Type: "telegram"},
	}, &echoBackend{}, "7", nil)
	require.NoError(t, err)
	require.Len(t, chs, 1)
	assert.Equal(t, "telegram", chs[0].Name())

	_, err = FromConfig(map[string]*config.ChannelConfig{
		"telegram": {Enabled: true},
	}, &echoBackend{}, "7", nil)
	assert.ErrorContains(t, err, "bot_token")

	_, err = FromConfig(map[string]*config.ChannelConfig{
		"slack": {Enabled: true},
	}, &echoBackend{}, "7", nil)
	assert.ErrorContains(t, err, "unknown type")
}

type slowBackend struct {
	echoBackend
	opens   atomic.Int32
	release chan struct{}
}

func (b *slowBackend) Open(context.Context, string, map[string]any) (string, error) {
	n := b.opens.Add(1)
	<-b.release
	return fmt.Sprintf("sess-%d", n), nil
}

func TestTelegramConcurrentMessagesShareSession(t *testing.T) {
	b := &slowBackend{release: make(chan struct{})}
	tg := NewTelegram("token", b, "7", nil)

	const callers = 8
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := tg.session(context.Background(), 42)
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	close(b.release)
	wg.Wait()

	assert.EqualValues(t, 1, b.opens.Load())
	for _, id := range ids {
		assert.Equal(t, "sess-1", id)
	}
}
