package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEWriter frames JSON payloads as Server-Sent Events on a flushable response.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	buf     bytes.Buffer
}

// NewSSEWriter reports false when w cannot flush, so the caller can answer
// without streaming instead.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &SSEWriter{w: w, flusher: flusher}, true
}

// Open writes the event-stream headers and the 200 status.
func (s *SSEWriter) Open() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

// Send writes one "data:" frame in a single Write and flushes it. A write
// error usually means the client went away.
func (s *SSEWriter) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		currentLogger().Error("sse payload not encodable", "error", err)
		return fmt.Errorf("marshal sse payload: %w", err)
	}

	s.buf.Reset()
	s.buf.WriteString("data: ")
	s.buf.Write(data)
	s.buf.WriteString("\n\n")
	if _, err := s.w.Write(s.buf.Bytes()); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}
