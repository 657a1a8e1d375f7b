// ABOUTME: context_validation: confirms the run has a usable workspace, a feature name, and a conventional branch.
package checks

import (
	"context"
	"fmt"
	"os"

	"github.com/2389-research/ratchet/gitops"
	"github.com/2389-research/ratchet/pipeline"
)

// ContextStep validates the invocation itself rather than any file.
type ContextStep struct{}

// ID returns the step id.
func (ContextStep) ID() string { return "context_validation" }

// Run reports a missing workspace or feature as critical and an
// unconventional branch name as a warning.
func (s ContextStep) Run(ctx context.Context, in pipeline.StepInput) (*pipeline.StepOutcome, error) {
	var findings []Finding

	if info, err := os.Stat(in.Workspace); err != nil {
		findings = append(findings, Finding{Rule: "workspace", Severity: SeverityCritical,
			Message: fmt.Sprintf("workspace %q is not accessible: %v", in.Workspace, err)})
	} else if !info.IsDir() {
		findings = append(findings, Finding{Rule: "workspace", Severity: SeverityCritical,
			Message: fmt.Sprintf("workspace %q is not a directory", in.Workspace)})
	}

	if in.Feature == "" {
		findings = append(findings, Finding{Rule: "feature", Severity: SeverityCritical,
			Message: "feature name is required"})
	}

	stage, feature, ok := gitops.ParseBranch(in.Branch)
	switch {
	case !ok:
		findings = append(findings, Finding{Rule: "branch-convention", Severity: SeverityWarning,
			Message: fmt.Sprintf("branch %q does not follow <ai-gen|ai-review|ai-prod>/<feature>", in.Branch)})
	case in.Feature != "" && feature != in.Feature:
		findings = append(findings, Finding{Rule: "branch-feature", Severity: SeverityWarning,
			Message: fmt.Sprintf("branch feature %q differs from --feature %q", feature, in.Feature)})
	default:
		in.Logf("branch %s is stage %s, feature %s", in.Branch, stage, feature)
	}

	// Context problems are never tolerated, even in lenient iterations.
	in.Threshold.MaxCritical = 0
	return NewResult(s.ID(), in, 0, findings).Outcome(), nil
}
