package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEWriter writes server-sent events, flushing after each one.
type SSEWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
	id int
}

func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &SSEWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

func (s *SSEWriter) Send(event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.id++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.id, event, b); err != nil {
		return err
	}
	return s.rc.Flush()
}
