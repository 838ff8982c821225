package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StreamContext is a Context bound to an open text/event-stream response.
type StreamContext interface {
	Context

	// Send writes one event whose data is v encoded as JSON and flushes it.
	Send(event string, v any) error

	// Comment writes a comment line, used as a keep-alive.
	Comment(text string) error
}

// SSEHandler runs for the lifetime of the stream. Returning closes it.
type SSEHandler func(stream StreamContext) error

type sseResponse struct {
	handler SSEHandler
}

// SSE streams Server-Sent Events produced by h.
//
//	return handler.SSE(func(stream handler.StreamContext) error {
//		for ev := range events {
//			if err := stream.Send("sync", ev); err != nil {
//				return err
//			}
//		}
//		return nil
//	})
func SSE(h SSEHandler) Response {
	return sseResponse{handler: h}
}

func (s sseResponse) Render(w http.ResponseWriter, r *http.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return s.handler(&streamContext{Context: NewContext(w, r), w: w, flusher: flusher})
}

type streamContext struct {
	Context
	w       http.ResponseWriter
	flusher http.Flusher
	seq     uint64
}

func (s *streamContext) Send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event %q: %w", event, err)
	}

	s.seq++
	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", s.seq)
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	fmt.Fprintf(&b, "data: %s\n\n", data)

	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *streamContext) Comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
