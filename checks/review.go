// ABOUTME: human_review: a gate that asks an Interviewer to approve or reject the branch.
package checks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389-research/ratchet/gitops"
	"github.com/2389-research/ratchet/pipeline"
)

// Review answers.
const (
	ReviewApprove = "approve"
	ReviewReject  = "reject"
)

// ReviewResult is written as human_review.json.
type ReviewResult struct {
	Question     string `json:"question"`
	Decision     string `json:"decision"`
	ChangedFiles int    `json:"changed_files"`
}

// ReviewStep asks a human to approve the branch.
type ReviewStep struct {
	// Interviewer nil means auto-approve.
	Interviewer pipeline.Interviewer
	Source      ChangeSource
}

// ID returns the step id.
func (ReviewStep) ID() string { return "human_review" }

// Run asks for a decision. A rejection fails the step.
func (s ReviewStep) Run(ctx context.Context, in pipeline.StepInput) (*pipeline.StepOutcome, error) {
	changed := 0
	if s.Source != nil {
		changes, err := s.Source.ChangedFiles(ctx, in.Baseline, in.Branch)
		if err != nil && !errors.Is(err, gitops.ErrBranchNotFound) {
			return nil, fmt.Errorf("human_review: %w", err)
		}
		changed = len(changes)
	}

	iv := s.Interviewer
	if iv == nil {
		iv = pipeline.NewAutoApproveInterviewer(ReviewApprove)
	}

	question := fmt.Sprintf("Review %s (iteration %d, %d changed file(s) vs %s). Approve?",
		in.Branch, in.Iteration, changed, in.Baseline)
	answer, err := iv.Ask(ctx, question, []string{ReviewApprove, ReviewReject})
	if err != nil {
		return nil, fmt.Errorf("human_review: %w", err)
	}
	decision := strings.ToLower(strings.TrimSpace(answer))
	in.Logf("review decision: %s", decision)

	res := &ReviewResult{Question: question, Decision: decision, ChangedFiles: changed}
	out := &pipeline.StepOutcome{
		Summary: fmt.Sprintf("human_review: %s (iteration %d)\n", decision, in.Iteration),
		Result:  res,
	}
	if decision != ReviewApprove {
		out.ExitCode = pipeline.ExitFailure
		out.Reason = "rejected by reviewer"
	}
	return out, nil
}
