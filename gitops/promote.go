// ABOUTME: Branch promotion between stages with rollback when the push fails.
// ABOUTME: Promote moves <prev-stage>/<feature> onto <stage>/<feature> and force-pushes it.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultRemote is the remote promotions push to.
const DefaultRemote = "origin"

// Promotion describes a completed promotion.
type Promotion struct {
	Feature     string
	Source      string
	Destination string
	// PreviousCommit is the destination's commit before promotion, empty if it did not exist.
	PreviousCommit string
	Commit         string
	Pushed         bool
}

// Promoter promotes feature branches through the stage chain.
type Promoter struct {
	Repo   *Repo
	Remote string
	NoPush bool
	// Log receives progress lines; nil discards them.
	Log io.Writer
}

func (p *Promoter) logf(format string, args ...any) {
	if p.Log != nil {
		fmt.Fprintf(p.Log, "[promote] "+format+"\n", args...)
	}
}

// Promote points <target>/<feature> at <target-1>/<feature> and pushes it.
// When the push fails the destination branch is restored to its previous
// commit, or deleted if it was new, before the error is returned.
func (p *Promoter) Promote(ctx context.Context, feature string, target Stage) (*Promotion, error) {
	if feature == "" {
		return nil, errors.New("promote: feature must not be empty")
	}
	if target != StageReview && target != StageProd {
		return nil, fmt.Errorf("promote: target must be %s or %s, got %q", StageReview, StageProd, target)
	}
	source, _ := target.Previous()
	remote := p.Remote
	if remote == "" {
		remote = DefaultRemote
	}

	promo := &Promotion{
		Feature:     feature,
		Source:      BranchName(source, feature),
		Destination: BranchName(target, feature),
	}

	ok, err := p.Repo.BranchExists(ctx, promo.Source)
	if err != nil {
		return nil, fmt.Errorf("promote: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("promote: source %w: %s", ErrBranchNotFound, promo.Source)
	}

	current, err := p.Repo.CurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("promote: %w", err)
	}
	if current == promo.Destination {
		return nil, fmt.Errorf("promote: %s is checked out; switch branches first", promo.Destination)
	}

	existed, err := p.Repo.BranchExists(ctx, promo.Destination)
	if err != nil {
		return nil, fmt.Errorf("promote: %w", err)
	}
	if existed {
		if promo.PreviousCommit, err = p.Repo.RevParse(ctx, promo.Destination); err != nil {
			return nil, fmt.Errorf("promote: %w", err)
		}
	}

	if err := p.Repo.ForceBranch(ctx, promo.Destination, promo.Source); err != nil {
		return nil, fmt.Errorf("promote: move %s: %w", promo.Destination, err)
	}
	if promo.Commit, err = p.Repo.RevParse(ctx, promo.Destination); err != nil {
		return nil, fmt.Errorf("promote: %w", err)
	}
	p.logf("%s -> %s at %s", promo.Source, promo.Destination, shortHash(promo.Commit))

	if p.NoPush {
		return promo, nil
	}

	if err := p.Repo.ForcePush(ctx, remote, promo.Destination); err != nil {
		pushErr := fmt.Errorf("promote: push %s to %s: %w", promo.Destination, remote, err)
		if rbErr := p.rollback(ctx, promo); rbErr != nil {
			return nil, errors.Join(pushErr, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return nil, pushErr
	}
	promo.Pushed = true
	p.logf("pushed %s to %s", promo.Destination, remote)
	return promo, nil
}

func (p *Promoter) rollback(ctx context.Context, promo *Promotion) error {
	if promo.PreviousCommit == "" {
		p.logf("rolling back: deleting new branch %s", promo.Destination)
		return p.Repo.DeleteBranch(ctx, promo.Destination)
	}
	p.logf("rolling back: restoring %s to %s", promo.Destination, shortHash(promo.PreviousCommit))
	return p.Repo.ForceBranch(ctx, promo.Destination, promo.PreviousCommit)
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
