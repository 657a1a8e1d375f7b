// ABOUTME: Interviewer abstraction for human-in-the-loop review steps.
// ABOUTME: Provides AutoApprove, Queue, and Console implementations; the TUI supplies its own.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Interviewer asks a human a question and returns the answer.
type Interviewer interface {
	Ask(ctx context.Context, question string, options []string) (string, error)
}

// --- AutoApproveInterviewer ---

// AutoApproveInterviewer always returns a configured answer (or the first option).
// It is the default for non-interactive runs.
type AutoApproveInterviewer struct {
	defaultAnswer string
}

// NewAutoApproveInterviewer creates an AutoApproveInterviewer with the given default answer.
func NewAutoApproveInterviewer(defaultAnswer string) *AutoApproveInterviewer {
	return &AutoApproveInterviewer{defaultAnswer: defaultAnswer}
}

// Ask returns the configured default answer, or the first option if no default is set.
func (a *AutoApproveInterviewer) Ask(ctx context.Context, question string, options []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if a.defaultAnswer != "" {
		return a.defaultAnswer, nil
	}
	if len(options) > 0 {
		return options[0], nil
	}
	return "", nil
}

// --- QueueInterviewer ---

// QueueInterviewer reads answers from a pre-filled queue in FIFO order.
type QueueInterviewer struct {
	answers []string
	mu      sync.Mutex
}

// NewQueueInterviewer creates a QueueInterviewer pre-loaded with the given answers.
func NewQueueInterviewer(answers ...string) *QueueInterviewer {
	return &QueueInterviewer{answers: append([]string{}, answers...)}
}

// Ask dequeues the next answer. Returns an error when the queue is exhausted.
func (q *QueueInterviewer) Ask(ctx context.Context, question string, options []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.answers) == 0 {
		return "", fmt.Errorf("answer queue exhausted: no answer for question %q", question)
	}
	answer := q.answers[0]
	q.answers = q.answers[1:]
	return answer, nil
}

// --- ConsoleInterviewer ---

// ConsoleInterviewer prompts on a writer and reads answers line by line from a reader.
type ConsoleInterviewer struct {
	reader *bufio.Reader
	writer io.Writer

	once  sync.Once
	lines chan consoleLine
}

type consoleLine struct {
	text string
	err  error
}

// NewConsoleInterviewer creates a ConsoleInterviewer on stdin and stderr.
func NewConsoleInterviewer() *ConsoleInterviewer {
	return NewConsoleInterviewerWithIO(os.Stdin, os.Stderr)
}

// NewConsoleInterviewerWithIO creates a ConsoleInterviewer with configurable reader and writer.
func NewConsoleInterviewerWithIO(r io.Reader, w io.Writer) *ConsoleInterviewer {
	return &ConsoleInterviewer{reader: bufio.NewReader(r), writer: w}
}

// Ask prints the question and re-prompts until the answer matches one of the
// options (case-insensitive). Free text is accepted when options is empty.
func (c *ConsoleInterviewer) Ask(ctx context.Context, question string, options []string) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprintf(c.writer, "\n%s\n", question)
		if len(options) > 0 {
			fmt.Fprintf(c.writer, "[%s] > ", strings.Join(options, "/"))
		} else {
			fmt.Fprint(c.writer, "> ")
		}

		line, err := c.readLine(ctx)
		if err != nil && line == "" && ctx.Err() != nil {
			return "", err
		}
		answer := strings.TrimSpace(line)
		if err != nil && answer == "" {
			if err == io.EOF {
				return "", fmt.Errorf("no answer: input closed")
			}
			return "", err
		}

		if len(options) == 0 {
			return answer, nil
		}
		for _, opt := range options {
			if strings.EqualFold(opt, answer) {
				return opt, nil
			}
		}
		fmt.Fprintf(c.writer, "please answer one of: %s\n", strings.Join(options, ", "))
		if err != nil {
			return "", fmt.Errorf("invalid answer %q", answer)
		}
	}
}

// readLine waits for the next input line or for ctx. A single goroutine owns
// the reader so a line typed after a timed-out prompt goes to the next Ask.
func (c *ConsoleInterviewer) readLine(ctx context.Context) (string, error) {
	c.once.Do(func() {
		c.lines = make(chan consoleLine)
		go func() {
			defer close(c.lines)
			for {
				text, err := c.reader.ReadString('\n')
				c.lines <- consoleLine{text: text, err: err}
				if err != nil {
					return
				}
			}
		}()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}
