package relay

import (
	"bufio"
	"encoding/json"
	"fmt"
)

type sseEvent struct {
	Content string `json:"content"`
}

// SSESink frames each fragment as one server-sent event on the response
// body writer. Flushing after every event both bounds latency and surfaces
// a client disconnect on the next Send.
type SSESink struct {
	w *bufio.Writer
}

func NewSSESink(w *bufio.Writer) *SSESink {
	return &SSESink{w: w}
}

func (s *SSESink) Send(content string) error {
	payload, err := json.Marshal(sseEvent{Content: content})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return s.w.Flush()
}

// Close flushes anything buffered. The stream ends by closing the
// connection; no terminal event is written.
func (s *SSESink) Close() error {
	return s.w.Flush()
}
