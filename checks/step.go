// ABOUTME: CheckStep adapts a Checker into a pipeline step that analyzes the branch's changed files.
// ABOUTME: A missing target branch yields zero changed files and a trivial pass.
package checks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389-research/ratchet/gitops"
	"github.com/2389-research/ratchet/pipeline"
)

// ChangeSource lists a branch's changes and reads file contents. *gitops.Repo satisfies it.
type ChangeSource interface {
	ChangedFiles(ctx context.Context, baseline, branch string) ([]gitops.FileChange, error)
	ReadFile(ctx context.Context, ref, path string) ([]byte, error)
	MergeBase(ctx context.Context, a, b string) (string, error)
}

var _ ChangeSource = (*gitops.Repo)(nil)

// LoadSources reads every changed file between baseline and branch. Old
// copies come from the merge base, matching the diff, so work that landed on
// the baseline after the branch forked is not mistaken for a removal. The
// error wraps gitops.ErrBranchNotFound when the branch does not exist.
func LoadSources(ctx context.Context, src ChangeSource, baseline, branch string) ([]SourceFile, error) {
	changes, err := src.ChangedFiles(ctx, baseline, branch)
	if err != nil {
		return nil, err
	}
	base := baseline
	if mb, err := src.MergeBase(ctx, baseline, branch); err == nil && mb != "" {
		base = mb
	}
	files := make([]SourceFile, 0, len(changes))
	for _, c := range changes {
		sf := SourceFile{Path: c.Path, Status: c.Status}
		if c.Status != gitops.ChangeDeleted {
			if sf.Content, err = src.ReadFile(ctx, branch, c.Path); err != nil {
				return nil, err
			}
		}
		if c.Status != gitops.ChangeAdded {
			old := c.Path
			if c.OldPath != "" {
				old = c.OldPath
			}
			if data, err := src.ReadFile(ctx, base, old); err == nil {
				sf.Baseline = data
			}
		}
		files = append(files, sf)
	}
	return files, nil
}

// CheckStep runs a Checker over the branch's changed files.
type CheckStep struct {
	StepID  string
	Checker Checker
	Source  ChangeSource
}

// ID returns the step id.
func (s *CheckStep) ID() string { return s.StepID }

// Run loads the changed files, analyzes them, and applies the threshold.
func (s *CheckStep) Run(ctx context.Context, in pipeline.StepInput) (*pipeline.StepOutcome, error) {
	var files []SourceFile
	if s.Source != nil {
		var err error
		files, err = LoadSources(ctx, s.Source, in.Baseline, in.Branch)
		switch {
		case errors.Is(err, gitops.ErrBranchNotFound):
			in.Logf("branch %s not found; no changed files", in.Branch)
			files = nil
		case err != nil:
			return nil, fmt.Errorf("%s: load changes: %w", s.StepID, err)
		}
	}
	in.Logf("%s: analyzing %d changed file(s) against %s", s.Checker.Name(), len(files), in.Baseline)

	findings, err := s.Checker.Analyze(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.StepID, err)
	}
	res := NewResult(s.Checker.Name(), in, len(files), findings)
	in.Logf("%s: critical=%d error=%d warning=%d passed=%v",
		s.Checker.Name(), res.Counts.Critical, res.Counts.Error, res.Counts.Warning, res.Passed)
	return res.Outcome(), nil
}

// isBinary reports whether data looks like a binary blob.
func isBinary(data []byte) bool {
	n := len(data)
	if n > 8000 {
		n = 8000
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

// lines splits content into lines without trailing newline characters.
func lines(data []byte) []string {
	text := string(bytes.TrimSuffix(data, []byte("\n")))
	if text == "" {
		return nil
	}
	out := strings.Split(text, "\n")
	for i, l := range out {
		out[i] = strings.TrimSuffix(l, "\r")
	}
	return out
}
