// ABOUTME: Stopping-condition evaluation run after each iteration.
// ABOUTME: Stops at the iteration limit or after a successful iteration with zero warnings.
package pipeline

import "fmt"

// Stop reasons recorded on the run.
const (
	StopMaxIterations = "max iterations reached"
	StopClean         = "clean iteration: no warnings"
	StopRequiredFail  = "required step failed"
)

// StopDecision is the result of evaluating the stopping rule.
type StopDecision struct {
	Stop   bool
	Reason string
}

// EvaluateStop decides whether the run ends after it.
func EvaluateStop(it IterationResult, maxIterations int) StopDecision {
	if it.Status == IterationFailed {
		reason := StopRequiredFail
		if it.FailedStep != nil {
			reason = fmt.Sprintf("%s: %s", StopRequiredFail, *it.FailedStep)
		}
		return StopDecision{Stop: true, Reason: reason}
	}
	if it.Iteration+1 >= maxIterations {
		return StopDecision{Stop: true, Reason: StopMaxIterations}
	}
	if it.Status == IterationSuccess && it.TotalWarnings() == 0 {
		return StopDecision{Stop: true, Reason: StopClean}
	}
	return StopDecision{}
}
