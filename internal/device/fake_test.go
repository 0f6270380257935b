package device

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// scriptedTransport answers each written command with the next canned
// response. Reads past the end of the current response return err (io.EOF
// by default).
type scriptedTransport struct {
	mu        sync.Mutex
	responses []string
	written   []string
	pending   bytes.Buffer
	err       error
	resets    int
}

func newScripted(responses ...string) *scriptedTransport {
	return &scriptedTransport{responses: responses, err: io.EOF}
}

func (s *scriptedTransport) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, string(p))
	if len(s.responses) > 0 {
		s.pending.WriteString(s.responses[0])
		s.responses = s.responses[1:]
	}
	return len(p), nil
}

func (s *scriptedTransport) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Len() == 0 {
		return 0, s.err
	}
	return s.pending.Read(p)
}

func (s *scriptedTransport) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.pending.Reset()
	return nil
}

func crlf(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}
