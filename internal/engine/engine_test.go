package engine

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	testParent   = "projects/demo/locations/us-central1"
	testResource = testParent + "/reasoningEngines/123"
)

// fakeEngine is an in-process stand-in for the Agent Engine REST API.
type fakeEngine struct {
	t *testing.T

	mu       sync.Mutex
	created  map[string]any
	deleted  bool
	force    string
	queries  []map[string]any
	uploads  map[string]string
	events   string
	polls    int
	failPoll bool
	noOutput bool
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && path == "/v1/"+testParent+"/reasoningEngines":
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.created))
		writeJSON(w, map[string]any{"name": testResource + "/operations/op1", "done": false})

	case r.Method == http.MethodGet && path == "/v1/"+testResource+"/operations/op1":
		f.polls++
		if f.failPoll {
			writeJSON(w, map[string]any{"name": testResource + "/operations/op1", "done": true,
				"error": map[string]any{"code": 3, "message": "bad package"}})
			return
		}
		writeJSON(w, map[string]any{
			"name": testResource + "/operations/op1",
			"done": true,
			"response": map[string]any{
				"@type":       "type.googleapis.com/google.cloud.aiplatform.v1.ReasoningEngine",
				"name":        testResource,
				"displayName": "weather-agent",
			},
		})

	case r.Method == http.MethodGet && path == "/v1/"+testResource:
		writeJSON(w, map[string]any{"name": testResource, "displayName": "weather-agent"})

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v1/"+testParent+"/reasoningEngines/"):
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]any{"error": map[string]any{"code": 404, "message": "not found", "status": "NOT_FOUND"}})

	case r.Method == http.MethodDelete && path == "/v1/"+testResource:
		f.deleted = true
		f.force = r.URL.Query().Get("force")
		writeJSON(w, map[string]any{"name": testResource + "/operations/del", "done": true})

	case r.Method == http.MethodPost && path == "/v1/"+testResource+":query":
		var q map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&q))
		f.queries = append(f.queries, q)
		if f.noOutput {
			writeJSON(w, map[string]any{})
			return
		}
		writeJSON(w, map[string]any{"output": map[string]any{
			"id": "sess-1", "user_id": "weather_user_001", "app_name": "123",
			"state": map[string]any{"user_preference_temperature_unit": "Celsius"},
		}})

	case r.Method == http.MethodPost && path == "/v1/"+testResource+":streamQuery":
		var q map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&q))
		f.queries = append(f.queries, q)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, f.events)

	case r.Method == http.MethodPost && strings.HasPrefix(path, "/upload/storage/v1/b/staging/o"):
		name, body := readMultipartUpload(f.t, r)
		f.uploads[name] = body
		writeJSON(w, map[string]any{"name": name, "bucket": "staging", "size": "1"})

	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.String())
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func readMultipartUpload(t *testing.T, r *http.Request) (string, string) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	require.NoError(t, err)
	mr := multipart.NewReader(r.Body, params["boundary"])

	meta, err := mr.NextPart()
	require.NoError(t, err)
	var obj struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.NewDecoder(meta).Decode(&obj))

	media, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(media)
	require.NoError(t, err)
	return obj.Name, string(body)
}

func newTestClient(t *testing.T) (*Client, *fakeEngine, *httptest.Server) {
	t.Helper()
	fe := &fakeEngine{t: t, uploads: map[string]string{}}
	srv := httptest.NewServer(fe)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), "demo", "us-central1",
		WithEndpoint(srv.URL),
		WithHTTPClient(srv.Client()),
		WithPollInterval(time.Millisecond),
	)
	require.NoError(t, err)
	return c, fe, srv
}

func TestResourceName(t *testing.T) {
	c, _, _ := newTestClient(t)
	assert.Equal(t, testResource, c.ResourceName("123"))
	assert.Equal(t, testResource, c.ResourceName(" "+testResource+" "))
}

func TestRegionalEndpoint(t *testing.T) {
	assert.Equal(t, "https://europe-west4-aiplatform.googleapis.com/", RegionalEndpoint("europe-west4"))
}

func TestNewRequiresProjectAndLocation(t *testing.T) {
	_, err := New(context.Background(), "", "us-central1", WithHTTPClient(http.DefaultClient))
	assert.Error(t, err)
}

func TestCreateWaitsForOperation(t *testing.T) {
	c, fe, _ := newTestClient(t)

	ra, err := c.Create(context.Background(), CreateSpec{
		DisplayName: "weather-agent",
		Description: "Weather agent",
		Artifacts: Artifacts{
			RequirementsURI: "gs://staging/weather-agent/requirements.txt",
			DependenciesURI: "gs://staging/weather-agent/dependencies.tar.gz",
		},
		Env: map[string]string{"WEATHER_API_KEY": "abc", "A_FIRST": "1"},
	})
	require.NoError(t, err)

	assert.Equal(t, testResource, ra.Name)
	assert.Equal(t, "123", ra.ID())
	assert.Equal(t, 1, fe.polls)

	raw, err := json.Marshal(fe.created)
	require.NoError(t, err)
	assert.Equal(t, "weather-agent", gjson.GetBytes(raw, "displayName").String())
	assert.Equal(t, DefaultAgentFramework, gjson.GetBytes(raw, "spec.agentFramework").String())
	assert.Equal(t, DefaultPythonVersion, gjson.GetBytes(raw, "spec.packageSpec.pythonVersion").String())
	assert.Equal(t, "gs://staging/weather-agent/requirements.txt", gjson.GetBytes(raw, "spec.packageSpec.requirementsGcsUri").String())
	assert.Equal(t, "A_FIRST", gjson.GetBytes(raw, "spec.deploymentSpec.env.0.name").String())
	assert.Equal(t, "abc", gjson.GetBytes(raw, "spec.deploymentSpec.env.1.value").String())
}

func TestCreateOperationError(t *testing.T) {
	c, fe, _ := newTestClient(t)
	fe.failPoll = true

	_, err := c.Create(context.Background(), CreateSpec{DisplayName: "x"})
	assert.ErrorContains(t, err, "bad package")
}

func TestGetAndDelete(t *testing.T) {
	c, fe, _ := newTestClient(t)

	ra, err := c.Get(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "weather-agent", ra.DisplayName)

	require.NoError(t, ra.Delete(context.Background(), true))
	assert.True(t, fe.deleted)
	assert.Equal(t, "true", fe.force)
}

func TestGetNotFound(t *testing.T) {
	c, _, _ := newTestClient(t)

	_, err := c.Get(context.Background(), "999")
	var gerr *googleapi.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, http.StatusNotFound, gerr.Code)
}

func TestCreateSession(t *testing.T) {
	c, fe, _ := newTestClient(t)
	ra, err := c.Get(context.Background(), "123")
	require.NoError(t, err)

	sess, err := ra.CreateSession(context.Background(), "weather_user_001",
		map[string]any{"user_preference_temperature_unit": "Celsius"})
	require.NoError(t, err)

	assert.Equal(t, "sess-1", sess.ID)
	assert.Equal(t, "weather_user_001", sess.UserID)
	assert.Equal(t, "Celsius", sess.State["user_preference_temperature_unit"])

	require.Len(t, fe.queries, 1)
	assert.Equal(t, "create_session", fe.queries[0]["classMethod"])
	input := fe.queries[0]["input"].(map[string]any)
	assert.Equal(t, "weather_user_001", input["user_id"])
	assert.Equal(t, map[string]any{"user_preference_temperature_unit": "Celsius"}, input["state"])
}

func TestCreateSessionWithoutOutput(t *testing.T) {
	c, fe, _ := newTestClient(t)
	fe.noOutput = true
	ra, err := c.Get(context.Background(), "123")
	require.NoError(t, err)

	_, err = ra.CreateSession(context.Background(), "u", nil)
	assert.ErrorContains(t, err, "session response has no output")
	require.Len(t, fe.queries, 1)
	_, hasState := fe.queries[0]["input"].(map[string]any)["state"]
	assert.False(t, hasState)
}

func TestStreamQuery(t *testing.T) {
	c, fe, _ := newTestClient(t)
	fe.events = strings.Join([]string{
		`{"author":"weather_agent","content":{"parts":[{"function_call":{"name":"get_weather_stateful","args":{"city":"London"}}}]}}`,
		``,
		`{"author":"weather_agent","content":{"parts":[{"text":"It is cloudy "},{"text":"in London."}]}}`,
		`{"text":"bare"}`,
	}, "\n")

	ra, err := c.Get(context.Background(), "123")
	require.NoError(t, err)

	var texts []string
	var calls []string
	for ev, err := range ra.StreamQuery(context.Background(), "u", "sess-1", "Weather in London?") {
		require.NoError(t, err)
		texts = append(texts, ev.Text())
		calls = append(calls, ev.FunctionCalls()...)
	}

	assert.Equal(t, []string{"", "It is cloudy in London.", ""}, texts)
	assert.Equal(t, []string{"get_weather_stateful"}, calls)

	q := fe.queries[len(fe.queries)-1]
	assert.Equal(t, "stream_query", q["classMethod"])
	input := q["input"].(map[string]any)
	assert.Equal(t, "sess-1", input["session_id"])
	assert.Equal(t, "Weather in London?", input["message"])
}

func TestStreamQueryInvalidJSON(t *testing.T) {
	c, fe, _ := newTestClient(t)
	fe.events = "{\"text\":\"ok\"}\nnot-json\n"
	ra, err := c.Get(context.Background(), "123")
	require.NoError(t, err)

	var gotErr error
	n := 0
	for _, err := range ra.StreamQuery(context.Background(), "u", "s", "hi") {
		if err != nil {
			gotErr = err
			break
		}
		n++
	}
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, gotErr, "invalid event JSON")
}

func TestDecodeEventsArrayAndSSE(t *testing.T) {
	var texts []string
	for ev, err := range decodeEvents(strings.NewReader(
		`[{"content":{"parts":[{"text":"a"}]}},{"content":{"parts":[{"text":"b"}]}}]` + "\n" +
			`data: {"content":{"parts":[{"text":"c"}]}}` + "\n")) {
		require.NoError(t, err)
		texts = append(texts, ev.Text())
	}
	assert.Equal(t, []string{"a", "b", "c"}, texts)
}

func TestEventText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"content":{"parts":[{"text":"Hello"},{"text":" world"}]}}`, "Hello world"},
		{`{"content":{"parts":[{"function_response":{"name":"x"}}]}}`, ""},
		{`{"text":"top-level only"}`, ""},
		{`{"content":{"parts":[]},"text":"ignored"}`, ""},
		{`{"actions":{"state_delta":{}}}`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewEvent([]byte(tt.raw)).Text(), tt.raw)
	}
	assert.Equal(t, "farewell_agent", NewEvent([]byte(`{"author":"farewell_agent"}`)).Author())
}

func TestStager(t *testing.T) {
	c, fe, srv := newTestClient(t)

	pkg := filepath.Join(t.TempDir(), "weather_agent")
	require.NoError(t, os.MkdirAll(filepath.Join(pkg, "__pycache__"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "agent.py"), []byte("root_agent = None\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "__pycache__", "agent.cpython-312.pyc"), []byte("x"), 0o644))

	st, err := NewStager(context.Background(), c, "gs://staging", option.WithEndpoint(srv.URL+"/storage/v1/"))
	require.NoError(t, err)

	arts, err := st.Stage(context.Background(), Bundle{
		DisplayName:   "Weather Agent",
		Requirements:  []string{"google-adk (>=0.0.2)", "requests"},
		ExtraPackages: []string{pkg},
	})
	require.NoError(t, err)

	assert.Equal(t, "gs://staging/weather-agent/requirements.txt", arts.RequirementsURI)
	assert.Equal(t, "gs://staging/weather-agent/dependencies.tar.gz", arts.DependenciesURI)
	assert.Empty(t, arts.ObjectURI)
	assert.Equal(t, "google-adk (>=0.0.2)\nrequests\n", fe.uploads["weather-agent/requirements.txt"])

	names := tarNames(t, fe.uploads["weather-agent/dependencies.tar.gz"])
	assert.Equal(t, []string{"weather_agent/", "weather_agent/agent.py"}, names)
}

func tarNames(t *testing.T, data string) []string {
	gz, err := gzip.NewReader(strings.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	sort.Strings(names)
	return names
}

func TestStagingPrefix(t *testing.T) {
	assert.Equal(t, "travel-concierge-adk", stagingPrefix("Travel-Concierge-ADK"))
	assert.Equal(t, "agent", stagingPrefix("  "))
}
