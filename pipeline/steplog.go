// ABOUTME: StepLogger buffers a step's log lines for output.log, optionally mirroring them live.
// ABOUTME: Safe for concurrent use so script output pumps and step code can share one logger.
package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// StepLogger accumulates timestamped lines for one step invocation.
type StepLogger struct {
	stepID string
	mirror io.Writer
	now    func() time.Time

	mu      sync.Mutex
	buf     bytes.Buffer
	pending []byte
}

// NewStepLogger creates a logger for stepID. When mirror is non-nil every line
// is also written there prefixed with the step id.
func NewStepLogger(stepID string, mirror io.Writer) *StepLogger {
	return &StepLogger{stepID: stepID, mirror: mirror, now: time.Now}
}

// Printf formats and records one line.
func (l *StepLogger) Printf(format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	l.line(msg)
}

// Write records raw output, one line per newline. A trailing partial line is
// held until its newline arrives or the log is flushed. It lets a StepLogger
// stand in as an io.Writer for subprocess output.
func (l *StepLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = l.appendLines(l.pending, p)
	return len(p), nil
}

// Stream returns a writer with its own partial-line buffer, so two pipes
// (stdout and stderr) can feed one log without splicing each other's lines.
// Call Flush on the stream once the writer is done.
func (l *StepLogger) Stream() *LogStream {
	return &LogStream{l: l}
}

// LogStream is one line-buffered input of a StepLogger.
type LogStream struct {
	l       *StepLogger
	pending []byte
}

func (s *LogStream) Write(p []byte) (int, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	s.pending = s.l.appendLines(s.pending, p)
	return len(p), nil
}

// Flush records a held partial line, if any.
func (s *LogStream) Flush() {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	if len(s.pending) > 0 {
		s.l.line(string(s.pending))
	}
	s.pending = nil
}

// appendLines records every complete line of pending+p and returns the
// remaining partial line; l.mu must be held.
func (l *StepLogger) appendLines(pending, p []byte) []byte {
	pending = append(pending, p...)
	for {
		i := bytes.IndexByte(pending, '\n')
		if i < 0 {
			break
		}
		l.line(strings.TrimSuffix(string(pending[:i]), "\r"))
		pending = pending[i+1:]
	}
	if len(pending) == 0 {
		return nil
	}
	return pending
}

// Flush records a held partial line, if any.
func (l *StepLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushLocked()
}

// Bytes flushes and returns the accumulated log.
func (l *StepLogger) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushLocked()
	return append([]byte(nil), l.buf.Bytes()...)
}

func (l *StepLogger) flushLocked() {
	if len(l.pending) > 0 {
		l.line(string(l.pending))
	}
	l.pending = nil
}

// line appends one timestamped line; l.mu must be held.
func (l *StepLogger) line(msg string) {
	fmt.Fprintf(&l.buf, "%s %s\n", l.now().UTC().Format(time.RFC3339), msg)
	if l.mirror != nil {
		fmt.Fprintf(l.mirror, "[%s] %s\n", l.stepID, msg)
	}
}
