// ABOUTME: Top-level Bubble Tea AppModel composing the step, detail, log, status bar, and review panels.
// ABOUTME: Implements tea.Model and routes orchestrator events and key presses to the sub-panels.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/2389-research/ratchet/pipeline"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const tickInterval = 100 * time.Millisecond

// FocusTarget indicates which panel currently has keyboard focus.
type FocusTarget int

const (
	FocusSteps FocusTarget = iota
	FocusLog
)

// AppModel is the live run dashboard.
type AppModel struct {
	steps     StepPanelModel
	detail    DetailPanelModel
	log       LogPanelModel
	statusBar StatusBarModel
	review    *ReviewGateModel

	runner Runner
	ctx    context.Context

	focus  FocusTarget
	done   bool
	run    *pipeline.PipelineRun
	err    error
	width  int
	height int
}

// NewAppModel creates an AppModel that will drive runner for branch.
func NewAppModel(ctx context.Context, runner Runner, branch string, maxIterations int) AppModel {
	review := NewReviewGateModel()
	return AppModel{
		steps:     NewStepPanelModel(branch),
		detail:    NewDetailPanelModel(),
		log:       NewLogPanelModel(200),
		statusBar: NewStatusBarModel(maxIterations),
		review:    &review,
		runner:    runner,
		ctx:       ctx,
		focus:     FocusSteps,
	}
}

// Reviewer returns the review gate for wiring as the human_review step's
// Interviewer. It is shared by every copy of the model.
func (m AppModel) Reviewer() *ReviewGateModel {
	return m.review
}

// Done reports whether the orchestrator has returned.
func (m AppModel) Done() bool {
	return m.done
}

// Result returns the finished run and its error. Both are nil before Done.
func (m AppModel) Result() (*pipeline.PipelineRun, error) {
	return m.run, m.err
}

// Init starts the run, the review listener, and the tick loop.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		RunPipelineCmd(m.ctx, m.runner),
		WaitForReviewCmd(m.review.RequestChan()),
		TickCmd(tickInterval),
	)
}

// Update routes incoming messages to the sub-panels.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case RunEventMsg:
		return m.handleRunEvent(msg.Event), nil
	case RunResultMsg:
		m.done = true
		m.run = msg.Run
		m.err = msg.Err
		m.statusBar.SetActiveStep("")
		return m, nil
	case TickMsg:
		m.steps.AdvanceSpinner()
		if m.done {
			return m, nil
		}
		return m, TickCmd(tickInterval)
	case ReviewRequestMsg:
		m.review.SetActive(msg.Question, msg.Options)
		return m, nil
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m AppModel) handleRunEvent(evt pipeline.Event) AppModel {
	m.log.Append(evt)

	switch evt.Type {
	case pipeline.EventRunStarted:
		m.statusBar.Start(dataString(evt.Data, "run_id"))
	case pipeline.EventIterationStarted:
		m.steps.StartIteration(evt.Iteration, dataInt(evt.Data, "steps_to_run"))
		m.statusBar.SetIteration(evt.Iteration)
	case pipeline.EventIterationCompleted:
		warnings := dataInt(evt.Data, "warnings")
		m.steps.FinishIteration(evt.Iteration, false, warnings)
		m.statusBar.SetWarnings(warnings)
	case pipeline.EventIterationFailed:
		m.steps.FinishIteration(evt.Iteration, true, 0)
	}

	status, ok := stepStatusFor(evt.Type)
	if !ok {
		return m
	}
	name := dataString(evt.Data, "name")
	required := dataBool(evt.Data, "required")
	detail := StepDetail{ID: evt.StepID, Name: name, Required: required, Status: status}
	if detail.Name == "" {
		detail.Name = evt.StepID
	}

	switch status {
	case StepRunning:
		m.steps.SetStep(evt.StepID, name, required, status)
		m.statusBar.SetActiveStep(evt.StepID)
	case StepPassed, StepFailed:
		detail.ExitCode = dataInt(evt.Data, "exit_code")
		detail.Warnings = dataInt(evt.Data, "warnings")
		detail.Duration = time.Duration(dataFloat(evt.Data, "duration_s") * float64(time.Second))
		detail.Reason = dataString(evt.Data, "reason")
		m.steps.SetResult(evt.StepID, status, detail.ExitCode, detail.Warnings)
		m.statusBar.SetActiveStep("")
	case StepSkipped:
		detail.Reason = dataString(evt.Data, "reason")
		m.steps.SetStep(evt.StepID, name, required, status)
	}
	m.detail.SetStep(detail)
	return m
}

func (m AppModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.review.IsActive() {
		if msg.Type == tea.KeyEnter {
			if m.review.Submit() {
				return m, WaitForReviewCmd(m.review.RequestChan())
			}
			return m, nil
		}
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		*m.review = m.review.Update(msg)
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.focus == FocusSteps {
			m.focus = FocusLog
		} else {
			m.focus = FocusSteps
		}
		m.log.SetFocused(m.focus == FocusLog)
		return m, nil
	}

	m.log = m.log.Update(msg)
	return m, nil
}

// View renders the full dashboard.
func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.width < 40 || m.height < 10 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 40x10.", m.width, m.height)
	}

	statusBarHeight := 1
	stepsHeight := max((m.height-statusBarHeight)*40/100, 3)
	bottomHeight := max(m.height-statusBarHeight-stepsHeight, 3)
	detailWidth := max(m.width*40/100, 10)
	logWidth := max(m.width-detailWidth, 10)

	m.steps.SetWidth(m.width)
	m.detail.SetSize(detailWidth, bottomHeight)
	m.log.SetSize(logWidth, bottomHeight)
	m.statusBar.SetWidth(m.width)

	left := m.detail.View()
	if m.review.IsActive() {
		left = m.review.View()
	}
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, left, m.log.View())

	status := m.statusBar.View()
	if m.done {
		switch {
		case m.err != nil:
			status += " " + FailedStyle.Render(fmt.Sprintf("FAILED: %v", m.err))
		case m.run != nil:
			status += " " + PassedStyle.Render("DONE: "+m.run.StopReason)
		default:
			status += " " + PassedStyle.Render("DONE")
		}
	}

	var b strings.Builder
	b.WriteString(m.steps.View())
	b.WriteString("\n")
	b.WriteString(bottom)
	b.WriteString("\n")
	b.WriteString(status)
	return b.String()
}

func dataString(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func dataBool(data map[string]any, key string) bool {
	v, _ := data[key].(bool)
	return v
}

func dataInt(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func dataFloat(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
