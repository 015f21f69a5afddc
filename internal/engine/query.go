package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	aiplatform "google.golang.org/api/aiplatform/v1"
)

const (
	methodCreateSession = "create_session"
	methodStreamQuery   = "stream_query"

	maxEventBytes = 8 << 20
)

type queryRequest struct {
	ClassMethod string         `json:"classMethod"`
	Input       map[string]any `json:"input"`
}

// Session is a session created on a deployed agent.
type Session struct {
	ID      string
	UserID  string
	AppName string
	State   map[string]any
}

// CreateSession creates a session for userID, seeded with state.
func (a *RemoteAgent) CreateSession(ctx context.Context, userID string, state map[string]any) (_ Session, err error) {
	c := a.client
	ctx, span := c.startSpan(ctx, "engine.create_session",
		attribute.String("engine.resource", a.Name),
		attribute.String("engine.user_id", userID),
	)
	defer func() { endSpan(span, err) }()

	input := map[string]any{"user_id": userID}
	if state != nil {
		input["state"] = state
	}

	rawInput, err := json.Marshal(input)
	if err != nil {
		return Session{}, fmt.Errorf("encoding session input: %w", err)
	}
	resp, err := c.svc.Projects.Locations.ReasoningEngines.Query(a.Name, &aiplatform.GoogleCloudAiplatformV1QueryReasoningEngineRequest{
		ClassMethod: methodCreateSession,
		Input:       rawInput,
	}).Context(ctx).Do()
	if err != nil {
		return Session{}, fmt.Errorf("creating session on %s: %w", a.Name, err)
	}

	body, err := json.Marshal(resp.Output)
	if err != nil {
		return Session{}, fmt.Errorf("reading session response: %w", err)
	}

	sess, err := parseSession(body)
	if err != nil {
		return Session{}, err
	}
	slog.Info("engine: session created", "agent", a.Name, "session_id", sess.ID, "user_id", sess.UserID)
	return sess, nil
}

// parseSession reads the create_session output. The runtime has returned
// both snake_case and camelCase field names.
func parseSession(body []byte) (Session, error) {
	out := gjson.ParseBytes(body)
	if !out.IsObject() {
		return Session{}, fmt.Errorf("session response has no output: %s", truncate(body))
	}
	sess := Session{
		ID:      first(out, "id"),
		UserID:  first(out, "user_id", "userId"),
		AppName: first(out, "app_name", "appName"),
	}
	if sess.ID == "" {
		return Session{}, fmt.Errorf("session response has no id: %s", truncate(body))
	}
	if st := out.Get("state"); st.IsObject() {
		if m, ok := st.Value().(map[string]any); ok {
			sess.State = m
		}
	}
	return sess, nil
}

func first(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v.String()
		}
	}
	return ""
}

// StreamQuery sends message to the agent and yields each event as it
// arrives. The response body is newline-delimited JSON.
func (a *RemoteAgent) StreamQuery(ctx context.Context, userID, sessionID, message string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		c := a.client
		ctx, span := c.startSpan(ctx, "engine.stream_query",
			attribute.String("engine.resource", a.Name),
			attribute.String("engine.session_id", sessionID),
		)
		var err error
		defer func() { endSpan(span, err) }()

		resp, err := c.post(ctx, a.Name+":streamQuery", queryRequest{
			ClassMethod: methodStreamQuery,
			Input: map[string]any{
				"user_id":    userID,
				"session_id": sessionID,
				"message":    message,
			},
		})
		if err != nil {
			err = fmt.Errorf("stream query on %s: %w", a.Name, err)
			yield(Event{}, err)
			return
		}
		defer resp.Body.Close()

		count := 0
		for ev, decodeErr := range decodeEvents(resp.Body) {
			if decodeErr != nil {
				err = decodeErr
				yield(Event{}, err)
				return
			}
			count++
			if !yield(ev, nil) {
				break
			}
		}
		span.SetAttributes(attribute.Int("engine.events", count))
		slog.Debug("engine: stream finished", "agent", a.Name, "session_id", sessionID, "events", count)
	}
}

// decodeEvents splits r into JSON events, one per non-empty line. A line
// holding a JSON array yields each element.
func decodeEvents(r io.Reader) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64<<10), maxEventBytes)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			line = bytes.TrimPrefix(line, []byte("data:"))
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			if !gjson.ValidBytes(line) {
				yield(Event{}, fmt.Errorf("invalid event JSON: %s", truncate(line)))
				return
			}
			parsed := gjson.ParseBytes(line)
			if parsed.IsArray() {
				for _, el := range parsed.Array() {
					if !yield(Event{raw: json.RawMessage(el.Raw)}, nil) {
						return
					}
				}
				continue
			}
			if !yield(Event{raw: append(json.RawMessage(nil), line...)}, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(Event{}, fmt.Errorf("reading event stream: %w", err))
		}
	}
}

func truncate(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
