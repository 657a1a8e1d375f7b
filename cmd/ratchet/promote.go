// ABOUTME: "ratchet promote": moves a feature branch one stage along ai-gen -> ai-review -> ai-prod.
package main

import (
	"fmt"
	"io"

	"github.com/2389-research/ratchet/gitops"
)

type promoteOptions struct {
	feature   string
	to        string
	remote    string
	workspace string
	noPush    bool
}

func parsePromoteFlags(args []string, stderr io.Writer) (opts promoteOptions, code int, ok bool) {
	fs := newFlagSet("promote", stderr)
	fs.StringVar(&opts.feature, "feature", "", "Feature name (required)")
	fs.StringVar(&opts.to, "to", "", "Target stage: ai-review or ai-prod (required)")
	fs.StringVar(&opts.remote, "remote", gitops.DefaultRemote, "Remote to push the promoted branch to")
	fs.StringVar(&opts.workspace, "workspace", ".", "Repository holding the branches")
	fs.BoolVar(&opts.noPush, "no-push", false, "Update the local branch only")
	fs.Usage = func() {
		printPromoteHelp(stderr)
		fs.PrintDefaults()
	}

	if code, ok := parseFlagSet(fs, args); !ok {
		return opts, code, false
	}
	if fs.NArg() > 0 {
		return opts, usageError(stderr, "promote", fmt.Sprintf("unexpected argument %q", fs.Arg(0))), false
	}
	if opts.feature == "" {
		return opts, usageError(stderr, "promote", "--feature is required"), false
	}
	if opts.to == "" {
		return opts, usageError(stderr, "promote", "--to is required"), false
	}
	return opts, exitOK, true
}

func cmdPromote(args []string, stdout, stderr io.Writer) int {
	opts, code, ok := parsePromoteFlags(args, stderr)
	if !ok {
		return code
	}
	target, err := gitops.ParseStage(opts.to)
	if err != nil {
		return usageError(stderr, "promote", err.Error())
	}
	if target == gitops.StageGen {
		return usageError(stderr, "promote", "--to must be ai-review or ai-prod")
	}
	if err := gitops.Available(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	ctx, stop := signalContext(stderr)
	defer stop()

	repo := gitops.NewRepo(opts.workspace)
	if err := repo.IsRepo(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	p := &gitops.Promoter{Repo: repo, Remote: opts.remote, NoPush: opts.noPush, Log: stderr}
	promo, err := p.Promote(ctx, opts.feature, target)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	pushed := "not pushed"
	if promo.Pushed {
		pushed = "pushed to " + opts.remote
	}
	fmt.Fprintf(stdout, "promoted %s -> %s at %s (%s)\n", promo.Source, promo.Destination, shortCommit(promo.Commit), pushed)
	return exitOK
}

func shortCommit(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
