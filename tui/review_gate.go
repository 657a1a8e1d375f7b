// ABOUTME: ReviewGateModel bridges pipeline.Interviewer with Bubble Tea's message loop via channels.
// ABOUTME: Renders a styled dialog with a text input when the human_review step asks for a decision.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389-research/ratchet/pipeline"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

var _ pipeline.Interviewer = (*ReviewGateModel)(nil)

type reviewResponse struct {
	answer string
	err    error
}

// ReviewGateModel implements pipeline.Interviewer inside the TUI. The
// orchestrator calls Ask from its own goroutine, which sends a request on
// requestCh and blocks on responseCh. A tea.Cmd polls requestCh and injects
// ReviewRequestMsg into the message loop; Submit answers on responseCh.
type ReviewGateModel struct {
	textInput  textinput.Model
	question   string
	options    []string
	invalid    string
	active     bool
	requestCh  chan reviewRequest
	responseCh chan reviewResponse
}

// NewReviewGateModel creates a ReviewGateModel with initialized channels and text input.
func NewReviewGateModel() ReviewGateModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "approve or reject"

	return ReviewGateModel{
		textInput:  ti,
		requestCh:  make(chan reviewRequest),
		responseCh: make(chan reviewResponse, 1),
	}
}

// Ask implements pipeline.Interviewer. Safe to call from the orchestrator goroutine.
func (m *ReviewGateModel) Ask(ctx context.Context, question string, options []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// drop an answer submitted after an earlier Ask gave up
	select {
	case <-m.responseCh:
	default:
	}

	select {
	case m.requestCh <- reviewRequest{question: question, options: options}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case resp := <-m.responseCh:
		return resp.answer, resp.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RequestChan returns the request channel for WaitForReviewCmd to poll.
func (m *ReviewGateModel) RequestChan() <-chan reviewRequest {
	return m.requestCh
}

// SetActive shows the dialog for question.
func (m *ReviewGateModel) SetActive(question string, options []string) {
	m.question = question
	m.options = options
	m.invalid = ""
	m.active = true
	m.textInput.Focus()
}

// Submit answers the pending question with the current input. When options
// are set and the input matches none of them, the dialog stays open and
// Submit returns false.
func (m *ReviewGateModel) Submit() bool {
	answer := strings.TrimSpace(m.textInput.Value())
	if len(m.options) > 0 {
		matched := ""
		for _, opt := range m.options {
			if strings.EqualFold(opt, answer) {
				matched = opt
				break
			}
		}
		if matched == "" {
			m.invalid = answer
			m.textInput.Reset()
			return false
		}
		answer = matched
	}

	select {
	case m.responseCh <- reviewResponse{answer: answer}:
	default:
		// a stale answer is still buffered; replace it
		select {
		case <-m.responseCh:
		default:
		}
		m.responseCh <- reviewResponse{answer: answer}
	}
	m.active = false
	m.question = ""
	m.options = nil
	m.invalid = ""
	m.textInput.Reset()
	m.textInput.Blur()
	return true
}

// IsActive returns whether the dialog is visible.
func (m *ReviewGateModel) IsActive() bool {
	return m.active
}

// Update forwards key events to the text input.
func (m ReviewGateModel) Update(msg tea.Msg) ReviewGateModel {
	m.textInput, _ = m.textInput.Update(msg)
	return m
}

// View renders the dialog, or "" when inactive.
func (m ReviewGateModel) View() string {
	if !m.active {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[?] %s\n", m.question)
	for _, opt := range m.options {
		fmt.Fprintf(&b, "  - %s\n", opt)
	}
	if m.invalid != "" {
		b.WriteString(FailedStyle.Render(fmt.Sprintf("%q is not one of: %s", m.invalid, strings.Join(m.options, ", "))))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.textInput.View())

	return ReviewGateStyle.Render(b.String())
}
