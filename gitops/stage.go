// ABOUTME: Promotion stages and the <stage>/<feature> branch naming convention.
package gitops

import (
	"fmt"
	"strings"
)

// Stage is one step of the ai-gen -> ai-review -> ai-prod promotion chain.
type Stage string

const (
	StageGen    Stage = "ai-gen"
	StageReview Stage = "ai-review"
	StageProd   Stage = "ai-prod"
)

var stageOrder = []Stage{StageGen, StageReview, StageProd}

// ParseStage validates s as a stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range stageOrder {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q (want one of ai-gen, ai-review, ai-prod)", s)
}

func (s Stage) index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the stage after s. ok is false for ai-prod and unknown stages.
func (s Stage) Next() (Stage, bool) {
	i := s.index()
	if i < 0 || i+1 >= len(stageOrder) {
		return "", false
	}
	return stageOrder[i+1], true
}

// Previous returns the stage before s. ok is false for ai-gen and unknown stages.
func (s Stage) Previous() (Stage, bool) {
	i := s.index()
	if i <= 0 {
		return "", false
	}
	return stageOrder[i-1], true
}

// BranchName returns "<stage>/<feature>".
func BranchName(stage Stage, feature string) string {
	return string(stage) + "/" + feature
}

// ParseBranch splits a branch following the stage convention. ok is false
// when the prefix is not a known stage or the feature part is empty.
func ParseBranch(branch string) (stage Stage, feature string, ok bool) {
	prefix, rest, found := strings.Cut(branch, "/")
	if !found || rest == "" {
		return "", "", false
	}
	st, err := ParseStage(prefix)
	if err != nil {
		return "", "", false
	}
	return st, rest, true
}
