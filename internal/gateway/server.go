// Package gateway serves the chat UI and its JSON/SSE API.
package gateway

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"agentdeck/internal/channels"
	"agentdeck/internal/chat"
	"agentdeck/internal/history"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed index.html
var indexHTML []byte

// Env is what the environment panel shows.
type Env struct {
	Project  string `json:"project"`
	Location string `json:"location"`
	Bucket   string `json:"bucket"`
}

type Server struct {
	backend      chat.Backend
	store        *history.Store
	env          Env
	initialState map[string]any
	chs          []channels.Channel
	mux          *http.ServeMux
}

type Option func(*Server)

// WithHistory serves transcripts from store.
func WithHistory(store *history.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithChannels mounts extra front-ends, e.g. a Telegram webhook.
func WithChannels(chs ...channels.Channel) Option {
	return func(s *Server) { s.chs = append(s.chs, chs...) }
}

// WithInitialState seeds every new session.
func WithInitialState(state map[string]any) Option {
	return func(s *Server) { s.initialState = state }
}

func NewServer(backend chat.Backend, env Env, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		env:     env,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	for _, ch := range s.chs {
		ch.RegisterRoutes(s.mux)
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /v1/env", s.handleEnv)
	s.mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}/messages", s.handleMessages)
	s.mux.HandleFunc("POST /v1/chat", s.handleChat)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "agentdeck.ui")
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
