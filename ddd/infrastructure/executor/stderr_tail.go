package executor

import (
	"strings"
	"sync"
)

// stderrTail keeps the last max lines written to it.
type stderrTail struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial strings.Builder
}

func newStderrTail(max int) *stderrTail {
	if max <= 0 {
		max = 50
	}
	return &stderrTail{max: max, lines: make([]string, 0, max)}
}

func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range p {
		if b == '\n' {
			t.push(t.partial.String())
			t.partial.Reset()
			continue
		}
		t.partial.WriteByte(b)
	}
	return len(p), nil
}

func (t *stderrTail) push(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	if len(t.lines) >= t.max {
		t.lines = t.lines[1:]
	}
	t.lines = append(t.lines, line)
}

// String returns the captured lines, including an unterminated last line.
func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := append([]string(nil), t.lines...)
	if rest := strings.TrimSpace(t.partial.String()); rest != "" {
		out = append(out, rest)
	}
	return strings.Join(out, "\n")
}
