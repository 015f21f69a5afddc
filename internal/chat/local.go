package chat

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const NoFinalResponse = "Agent did not produce a final response."

// Local runs an agent tree in-process with in-memory sessions.
type Local struct {
	appName  string
	userID   string
	root     agent.Agent
	sessions session.Service
	runner   *runner.Runner
}

func NewLocal(appName, userID string, root agent.Agent) (*Local, error) {
	svc := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          root,
		SessionService: svc,
	})
	if err != nil {
		return nil, fmt.Errorf("creating runner: %w", err)
	}
	return &Local{appName: appName, userID: userID, root: root, sessions: svc, runner: r}, nil
}

func (l *Local) AgentName() string { return l.root.Name() }

// Open creates a session seeded with state. sessionID, when non-empty, is
// used as the session's id; otherwise a random one is generated.
func (l *Local) Open(ctx context.Context, sessionID string, state map[string]any) (string, error) {
	id := sessionID
	if id == "" {
		id = uuid.NewString()
	}
	resp, err := l.sessions.Create(ctx, &session.CreateRequest{
		AppName:   l.appName,
		UserID:    l.userID,
		SessionID: id,
		State:     state,
	})
	if err != nil {
		return "", fmt.Errorf("creating session %s: %w", id, err)
	}
	slog.Info("chat: local session created", "app", l.appName, "user_id", l.userID, "session_id", resp.Session.ID())
	return resp.Session.ID(), nil
}

// UpdateState merges delta into the session's state.
func (l *Local) UpdateState(ctx context.Context, sessionID string, delta map[string]any) error {
	resp, err := l.sessions.Get(ctx, &session.GetRequest{
		AppName:   l.appName,
		UserID:    l.userID,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoSession, sessionID, err)
	}
	ev := session.NewEvent("state-update-" + uuid.NewString())
	ev.Author = "user"
	ev.Actions.StateDelta = delta
	if err := l.sessions.AppendEvent(ctx, resp.Session, ev); err != nil {
		return fmt.Errorf("updating state of %s: %w", sessionID, err)
	}
	return nil
}

// State returns the value of key in the session's state.
func (l *Local) State(ctx context.Context, sessionID, key string) (any, error) {
	resp, err := l.sessions.Get(ctx, &session.GetRequest{
		AppName:   l.appName,
		UserID:    l.userID,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoSession, sessionID, err)
	}
	return resp.Session.State().Get(key)
}

func (l *Local) Run(ctx context.Context, sessionID string, message string, emit func(Event)) error {
	events := l.runner.Run(ctx, l.userID, sessionID, genai.NewContentFromText(message, genai.RoleUser), agent.RunConfig{})
	final, err := finalResponse(events, emit)
	if err != nil {
		emit(Event{Type: EventError, Data: err.Error()})
		return err
	}
	emit(Event{Type: EventDone, Data: final})
	return nil
}

// finalResponse forwards tool activity and text to emit and returns the
// first part's text of the final response event. An escalation without
// content reports the event's error message instead.
func finalResponse(events iter.Seq2[*session.Event, error], emit func(Event)) (string, error) {
	final := NoFinalResponse
	for ev, err := range events {
		if err != nil {
			return "", err
		}
		if ev == nil {
			continue
		}
		if ev.Content != nil {
			for _, p := range ev.Content.Parts {
				switch {
				case p.FunctionCall != nil:
					emit(Event{Type: EventToolCall, Data: map[string]any{"name": p.FunctionCall.Name, "arguments": p.FunctionCall.Args}})
				case p.FunctionResponse != nil:
					emit(Event{Type: EventToolResult, Data: map[string]any{"name": p.FunctionResponse.Name, "content": p.FunctionResponse.Response}})
				case p.Text != "" && ev.Partial:
					emit(Event{Type: EventToken, Data: p.Text})
				}
			}
		}
		if !ev.IsFinalResponse() {
			continue
		}
		switch {
		case ev.Content != nil && len(ev.Content.Parts) > 0:
			final = ev.Content.Parts[0].Text
		case ev.Actions.Escalate:
			msg := ev.ErrorMessage
			if msg == "" {
				msg = "No specific message."
			}
			final = "Agent escalated: " + msg
		}
		break
	}
	return final, nil
}

// Step is one turn of a scripted conversation. A step with State updates
// the session instead of sending a query.
type Step struct {
	Query string
	State map[string]any
	Note  string
}

// WeatherScript is the local weather conversation, ending with a check of
// the keyword guardrail.
func WeatherScript() []Step {
	return []Step{
		{Query: "Hello there!"},
		{Query: "What's the weather in London?"},
		{
			Note:  "Updating temperature unit preference to Fahrenheit",
			State: map[string]any{"user_preference_temperature_unit": "Fahrenheit"},
		},
		{Query: "What's the weather in New York?"},
		{Query: "Thanks, goodbye!"},
		{Query: "Tell me about BLOCK this topic"},
	}
}

// Play runs steps in order, printing each query and final response to w.
// It returns the responses in order.
func (l *Local) Play(ctx context.Context, w io.Writer, sessionID string, steps []Step) ([]string, error) {
	var replies []string
	for _, st := range steps {
		if st.State != nil {
			fmt.Fprintf(w, "\n--- %s ---\n", st.Note)
			if err := l.UpdateState(ctx, sessionID, st.State); err != nil {
				return replies, err
			}
			continue
		}
		fmt.Fprintf(w, "\n>>> User Query: %s\n", st.Query)
		reply, err := Ask(ctx, l, sessionID, st.Query)
		if err != nil {
			return replies, err
		}
		fmt.Fprintf(w, "<<< Agent Response: %s\n", reply)
		replies = append(replies, reply)
	}
	return replies, nil
}
