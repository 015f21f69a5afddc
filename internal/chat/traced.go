package chat

import (
	"context"
	"log/slog"

	"agentdeck/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type tracedBackend struct {
	Backend
	name string
}

// WithTrace wraps b so each turn and session open runs in a span.
func WithTrace(name string, b Backend) Backend {
	return &tracedBackend{Backend: b, name: name}
}

func (t *tracedBackend) Run(ctx context.Context, sessionID string, message string, emit func(Event)) error {
	truncated := message
	if len(truncated) > 200 {
		truncated = truncated[:200]
	}
	ctx, span := trace.Tracer().Start(ctx, "chat.run",
		oteltrace.WithAttributes(
			attribute.String("chat.runner", t.name),
			attribute.String("session.id", sessionID),
			attribute.String("user.message", truncated),
		),
	)
	defer span.End()

	sc := span.SpanContext()
	slog.Debug("chat.run span started", "runner", t.name, "trace_id", sc.TraceID(), "span_id", sc.SpanID())

	var tokens, tools int
	err := t.Backend.Run(ctx, sessionID, message, func(ev Event) {
		switch ev.Type {
		case EventToken:
			tokens++
		case EventToolCall:
			tools++
		}
		emit(ev)
	})
	span.SetAttributes(attribute.Int("chat.tokens", tokens), attribute.Int("chat.tool_calls", tools))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t *tracedBackend) Open(ctx context.Context, agentID string, state map[string]any) (string, error) {
	ctx, span := trace.Tracer().Start(ctx, "chat.open", oteltrace.WithAttributes(attribute.String("chat.agent", agentID)))
	defer span.End()
	id, err := t.Backend.Open(ctx, agentID, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return id, err
}
