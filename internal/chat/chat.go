// Package chat runs conversations with an agent, either deployed on Agent
// Engine or in-process, and reports progress as a stream of events.
package chat

import (
	"context"
	"errors"
	"strings"
)

type EventType string

const (
	EventToken      EventType = "token"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

var ErrNoSession = errors.New("no such session")

type Runner interface {
	Run(ctx context.Context, sessionID string, message string, emit func(Event)) error
}

// Backend is a Runner that can also open sessions. Open's target names the
// deployed agent for remote backends. A backend bound to a single agent,
// like Local, reads it as the id to give the new session instead.
type Backend interface {
	Runner
	Open(ctx context.Context, target string, state map[string]any) (string, error)
}

// Ask runs one turn and returns the full reply. Tokens are joined when the
// runner finishes without a final text.
func Ask(ctx context.Context, r Runner, sessionID, message string) (string, error) {
	var b strings.Builder
	var final string
	var done bool
	err := r.Run(ctx, sessionID, message, func(ev Event) {
		switch ev.Type {
		case EventToken:
			if s, ok := ev.Data.(string); ok {
				b.WriteString(s)
			}
		case EventDone:
			if s, ok := ev.Data.(string); ok {
				final, done = s, true
			}
		}
	})
	if err != nil {
		return "", err
	}
	if done {
		return final, nil
	}
	return b.String(), nil
}
