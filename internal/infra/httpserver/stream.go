package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// doneSentinel terminates every analysis stream.
const doneSentinel = "[DONE]"

var errNoFlusher = errors.New("response writer does not support streaming")

// StreamWriter owns the wire framing of the analysis stream: each frame is a
// `data: <json>` line followed by a blank line, flushed immediately, and the
// stream ends with the literal sentinel frame. Frames go out strictly in the
// order Send is called; this is a one-directional log, not request/response.
type StreamWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func NewStreamWriter(w http.ResponseWriter) (*StreamWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errNoFlusher
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &StreamWriter{w: w, f: f}, nil
}

// Send appends one JSON frame to the stream.
func (s *StreamWriter) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// Done writes the sentinel frame. Always the last write on the stream.
func (s *StreamWriter) Done() {
	fmt.Fprintf(s.w, "data: %s\n\n", doneSentinel)
	s.f.Flush()
}
