// ABOUTME: Plain line-oriented run output for non-TUI runs: one colored line per step and iteration.
// ABOUTME: Summary renders the finished run as a lipgloss table.
package tui

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/2389-research/ratchet/pipeline"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Printer writes orchestrator events to w. It is safe for concurrent use.
type Printer struct {
	w       io.Writer
	verbose bool
	mu      sync.Mutex
}

// NewPrinter creates a Printer. Verbose adds step starts and checkpoints.
func NewPrinter(w io.Writer, verbose bool) *Printer {
	return &Printer{w: w, verbose: verbose}
}

// HandleEvent has the pipeline.EventHandler signature.
func (p *Printer) HandleEvent(evt pipeline.Event) {
	line := p.format(evt)
	if line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

func (p *Printer) format(evt pipeline.Event) string {
	name := dataString(evt.Data, "name")
	if name == "" {
		name = evt.StepID
	}

	switch evt.Type {
	case pipeline.EventRunStarted:
		return TitleStyle.Render(fmt.Sprintf("[run] %s branch=%s seed=%v max_iterations=%d",
			dataString(evt.Data, "run_id"), dataString(evt.Data, "branch"), evt.Data["seed"], dataInt(evt.Data, "max_iterations")))
	case pipeline.EventIterationStarted:
		return LogEventStyle.Render(fmt.Sprintf("[iteration %d] running %d step(s)", evt.Iteration, dataInt(evt.Data, "steps_to_run")))
	case pipeline.EventStepStarted:
		if !p.verbose {
			return ""
		}
		return RunningStyle.Render(fmt.Sprintf("  %s %s", StepRunning.Icon(), name))
	case pipeline.EventStepPassed:
		line := fmt.Sprintf("  %s %s %.2fs", StepPassed.Icon(), name, dataFloat(evt.Data, "duration_s"))
		if w := dataInt(evt.Data, "warnings"); w > 0 {
			return PassedStyle.Render(line) + " " + WarnStyle.Render(fmt.Sprintf("%d warning(s)", w))
		}
		return PassedStyle.Render(line)
	case pipeline.EventStepFailed:
		line := fmt.Sprintf("  %s %s exit %d %.2fs", StepFailed.Icon(), name,
			dataInt(evt.Data, "exit_code"), dataFloat(evt.Data, "duration_s"))
		if reason := dataString(evt.Data, "reason"); reason != "" {
			line += ": " + reason
		}
		return FailedStyle.Render(line)
	case pipeline.EventStepSkipped:
		return SkippedStyle.Render(fmt.Sprintf("  %s %s skipped: %s", StepSkipped.Icon(), evt.StepID, dataString(evt.Data, "reason")))
	case pipeline.EventIterationCompleted:
		return LogSuccessStyle.Render(fmt.Sprintf("[iteration %d] success, %d warning(s)", evt.Iteration, dataInt(evt.Data, "warnings")))
	case pipeline.EventIterationFailed:
		return LogErrorStyle.Render(fmt.Sprintf("[iteration %d] failed on required step %s", evt.Iteration, evt.StepID))
	case pipeline.EventRunCompleted:
		return LogSuccessStyle.Render(fmt.Sprintf("[run] completed after %d iteration(s): %s",
			dataInt(evt.Data, "iterations"), dataString(evt.Data, "reason")))
	case pipeline.EventRunAborted:
		return FailedStyle.Render(fmt.Sprintf("[run] aborted: required step %s failed: %s", evt.StepID, dataString(evt.Data, "reason")))
	case pipeline.EventRunCancelled:
		return LogSkipStyle.Render(fmt.Sprintf("[run] cancelled: %s", dataString(evt.Data, "error")))
	case pipeline.EventCheckpointSaved:
		if !p.verbose {
			return ""
		}
		return PendingStyle.Render(fmt.Sprintf("[checkpoint] %s (%d iteration(s))", dataString(evt.Data, "path"), dataInt(evt.Data, "iterations")))
	}
	return ""
}

// Summary renders one table row per iteration followed by the run outcome.
func Summary(run *pipeline.PipelineRun) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Headers(
			TableHeaderStyle.Render("Iteration"),
			TableHeaderStyle.Render("Status"),
			TableHeaderStyle.Render("Steps"),
			TableHeaderStyle.Render("Warnings"),
			TableHeaderStyle.Render("Failed step"),
		)

	for _, it := range run.Iterations {
		status := PassedStyle.Render(string(it.Status))
		failed := "-"
		if it.Status == pipeline.IterationFailed {
			status = FailedStyle.Render(string(it.Status))
		}
		if it.FailedStep != nil {
			failed = FailedStyle.Render(*it.FailedStep)
		}
		warnings := strconv.Itoa(it.TotalWarnings())
		if it.TotalWarnings() > 0 {
			warnings = WarnStyle.Render(warnings)
		}
		t.Row(strconv.Itoa(it.Iteration), status, strconv.Itoa(it.StepsRun), warnings, failed)
	}

	outcome := PassedStyle.Render(string(run.Status))
	if run.Status != pipeline.RunCompleted {
		outcome = FailedStyle.Render(string(run.Status))
	}
	footer := fmt.Sprintf("Run %s on %s: %s", run.RunID, run.Branch, outcome)
	if run.StopReason != "" {
		footer += " (" + run.StopReason + ")"
	}
	if len(run.Iterations) == 0 {
		return footer + "\n"
	}
	return t.String() + "\n" + footer + "\n"
}
