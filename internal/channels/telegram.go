package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"agentdeck/internal/chat"

	"golang.org/x/sync/singleflight"
)

const (
	telegramAPIBase      = "https://api.telegram.org/bot%s"
	telegramSendMsg      = "/sendMessage"
	telegramChatAction   = "/sendChatAction"
	telegramActionTyping = "typing"

	telegramCmdNew = "/new"
	telegramEmpty  = "(no response)"
)

// Telegram forwards webhook messages to a chat backend. Each Telegram chat
// gets its own session on the configured agent; /new starts a fresh one.
type Telegram struct {
	backend chat.Backend
	agentID string
	state   map[string]any
	apiURL  string
	hc      *http.Client

	mu       sync.Mutex
	sessions map[int64]string
	opening  singleflight.Group
}

func NewTelegram(botToken string, backend chat.Backend, agentID string, state map[string]any) *Telegram {
	return &Telegram{
		backend:  backend,
		agentID:  agentID,
		state:    state,
		apiURL:   fmt.Sprintf(telegramAPIBase, botToken),
		hc:       http.DefaultClient,
		sessions: make(map[int64]string),
	}
}

// WithAPI points the bot at a different Bot API base URL.
func (t *Telegram) WithAPI(url string, hc *http.Client) *Telegram {
	t.apiURL = strings.TrimSuffix(url, "/")
	if hc != nil {
		t.hc = hc
	}
	return t
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/telegram", t.handleWebhook)
}

type telegramUpdate struct {
	Message *telegramMessage `json:"message"`
}

type telegramMessage struct {
	Chat telegramChat `json:"chat"`
	Text string       `json:"text"`
}

type telegramChat struct {
	ID int64 `json:"id"`
}

type telegramSendRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

func (t *Telegram) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update telegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Error("telegram: failed to decode update", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if update.Message == nil || strings.TrimSpace(update.Message.Text) == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	slog.Info("telegram: received message", "chat_id", chatID, "length", len(text))

	if text == telegramCmdNew {
		t.forget(chatID)
		if _, err := t.session(ctx, chatID); err != nil {
			t.reply(ctx, chatID, "Failed to create session: "+err.Error())
		} else {
			t.reply(ctx, chatID, "Started a new session.")
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	t.sendTyping(ctx, chatID)

	sessionID, err := t.session(ctx, chatID)
	if err != nil {
		t.reply(ctx, chatID, "Failed to create session: "+err.Error())
		w.WriteHeader(http.StatusOK)
		return
	}

	answer, err := chat.Ask(ctx, t.backend, sessionID, text)
	switch {
	case err != nil:
		answer = "Error: " + err.Error()
	case strings.TrimSpace(answer) == "":
		answer = telegramEmpty
	}
	t.reply(ctx, chatID, answer)

	w.WriteHeader(http.StatusOK)
}

// session returns the chat's session, opening one on first use. Concurrent
// deliveries for the same chat share a single Open.
func (t *Telegram) session(ctx context.Context, chatID int64) (string, error) {
	v, err, _ := t.opening.Do(strconv.FormatInt(chatID, 10), func() (any, error) {
		t.mu.Lock()
		id, ok := t.sessions[chatID]
		t.mu.Unlock()
		if ok {
			return id, nil
		}

		id, err := t.backend.Open(ctx, t.agentID, t.state)
		if err != nil {
			return "", err
		}

		t.mu.Lock()
		t.sessions[chatID] = id
		t.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (t *Telegram) forget(chatID int64) {
	t.mu.Lock()
	delete(t.sessions, chatID)
	t.mu.Unlock()
}

func (t *Telegram) reply(ctx context.Context, chatID int64, text string) {
	if err := t.sendMessage(ctx, chatID, text); err != nil {
		slog.Error("telegram: failed to send message", "chat_id", chatID, "error", err)
	}
}

func (t *Telegram) sendTyping(ctx context.Context, chatID int64) {
	body, _ := json.Marshal(map[string]any{
		"chat_id": chatID,
		"action":  telegramActionTyping,
	})
	resp, err := t.post(ctx, telegramChatAction, body)
	if err != nil {
		slog.Warn("telegram: failed to send typing action", "chat_id", chatID, "error", err)
		return
	}
	resp.Body.Close()
}

func (t *Telegram) sendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(telegramSendRequest{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return err
	}

	resp, err := t.post(ctx, telegramSendMsg, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned %d", resp.StatusCode)
	}
	return nil
}

func (t *Telegram) post(ctx context.Context, method string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.hc.Do(req)
}
