package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"agentdeck/internal/engine"
	"agentdeck/internal/history"
)

// Remote talks to agents deployed on Agent Engine. Sessions remember the
// agent they were opened on; with a history store that mapping survives
// restarts.
type Remote struct {
	client  *engine.Client
	store   *history.Store
	userID  string
	channel string

	mu       sync.Mutex
	agents   map[string]*engine.RemoteAgent
	sessions map[string]string
}

type RemoteOption func(*Remote)

// WithHistory persists transcripts and session ownership in store.
func WithHistory(store *history.Store) RemoteOption {
	return func(r *Remote) { r.store = store }
}

// WithChannel tags sessions with the front-end that opened them.
func WithChannel(name string) RemoteOption {
	return func(r *Remote) { r.channel = name }
}

func NewRemote(client *engine.Client, userID string, opts ...RemoteOption) *Remote {
	r := &Remote{
		client:   client,
		userID:   userID,
		channel:  "web",
		agents:   make(map[string]*engine.RemoteAgent),
		sessions: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open creates a session on the deployed agent and starts an empty
// transcript for it.
func (r *Remote) Open(ctx context.Context, agentID string, state map[string]any) (string, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return "", fmt.Errorf("agent resource name is required")
	}
	ra, err := r.agent(ctx, agentID)
	if err != nil {
		return "", err
	}
	sess, err := ra.CreateSession(ctx, r.userID, state)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.sessions[sess.ID] = ra.Name
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Start(ctx, sess.ID, ra.Name, r.userID, r.channel); err != nil {
			return "", err
		}
	}
	return sess.ID, nil
}

func (r *Remote) Run(ctx context.Context, sessionID string, message string, emit func(Event)) error {
	ra, err := r.sessionAgent(ctx, sessionID)
	if err != nil {
		emit(Event{Type: EventError, Data: err.Error()})
		return err
	}

	r.save(ctx, sessionID, history.RoleUser, message)

	var full strings.Builder
	for ev, err := range ra.StreamQuery(ctx, r.userID, sessionID, message) {
		if err != nil {
			r.save(ctx, sessionID, history.RoleAssistant, "Error: "+err.Error())
			emit(Event{Type: EventError, Data: err.Error()})
			return err
		}
		for _, name := range ev.FunctionCalls() {
			emit(Event{Type: EventToolCall, Data: map[string]string{"name": name, "author": ev.Author()}})
		}
		if text := ev.Text(); text != "" {
			full.WriteString(text)
			emit(Event{Type: EventToken, Data: text})
		}
	}

	r.save(ctx, sessionID, history.RoleAssistant, full.String())
	emit(Event{Type: EventDone, Data: full.String()})
	return nil
}

func (r *Remote) save(ctx context.Context, sessionID, role, content string) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveMessage(ctx, sessionID, role, content); err != nil {
		slog.Warn("chat: failed to save message", "session_id", sessionID, "role", role, "error", err)
	}
}

func (r *Remote) agent(ctx context.Context, agentID string) (*engine.RemoteAgent, error) {
	name := r.client.ResourceName(agentID)

	r.mu.Lock()
	ra, ok := r.agents[name]
	r.mu.Unlock()
	if ok {
		return ra, nil
	}

	ra, err := r.client.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.agents[name] = ra
	r.mu.Unlock()
	return ra, nil
}

func (r *Remote) sessionAgent(ctx context.Context, sessionID string) (*engine.RemoteAgent, error) {
	r.mu.Lock()
	name, ok := r.sessions[sessionID]
	r.mu.Unlock()

	if !ok && r.store != nil {
		stored, err := r.store.SessionAgent(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		name, ok = stored, stored != ""
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, sessionID)
	}
	return r.agent(ctx, name)
}
