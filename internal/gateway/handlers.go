package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"agentdeck/internal/chat"
	"agentdeck/internal/history"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type sessionRequest struct {
	Agent string `json:"agent"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("gateway: failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleEnv(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.env)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Agent = strings.TrimSpace(req.Agent)
	if req.Agent == "" {
		writeError(w, http.StatusBadRequest, "agent is required")
		return
	}

	id, err := s.backend.Open(r.Context(), req.Agent, s.initialState)
	if err != nil {
		slog.Error("gateway: failed to create session", "agent", req.Agent, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to create session: "+err.Error())
		return
	}
	slog.Info("gateway: session created", "agent", req.Agent, "session_id", id)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []history.Message{}})
		return
	}
	msgs, err := s.store.Messages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []history.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "session_id and message are required")
		return
	}

	sse := NewSSEWriter(w)
	var sentError bool

	err := s.backend.Run(r.Context(), req.SessionID, req.Message, func(ev chat.Event) {
		switch ev.Type {
		case chat.EventToken:
			sse.Send("token", map[string]any{"content": ev.Data})
		case chat.EventToolCall:
			sse.Send("tool_call", ev.Data)
		case chat.EventToolResult:
			sse.Send("tool_result", ev.Data)
		case chat.EventError:
			sentError = true
			sse.Send("error", map[string]any{"error": ev.Data})
		case chat.EventDone:
			sse.Send("done", map[string]any{"content": ev.Data})
		}
	})

	if err != nil {
		if errors.Is(err, chat.ErrNoSession) {
			slog.Warn("gateway: chat on unknown session", "session_id", req.SessionID)
		} else {
			slog.Error("gateway: chat failed", "session_id", req.SessionID, "error", err)
		}
		if !sentError {
			sse.Send("error", map[string]string{"error": err.Error()})
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
