// ABOUTME: "ratchet step <id>": runs one built-in step outside a run with the step script flag contract.
// ABOUTME: Writes the same artifacts as the orchestrator and exits with the step's exit code.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/2389-research/ratchet/checks"
	"github.com/2389-research/ratchet/gitops"
	"github.com/2389-research/ratchet/pipeline"
)

// baselineEnv is set for script steps by the orchestrator.
const baselineEnv = "RATCHET_BASELINE"

type stepOptions struct {
	id          string
	workspace   string
	branch      string
	feature     string
	iteration   int
	baseline    string
	outputDir   string
	configPath  string
	debug       bool
	interactive bool
}

func parseStepFlags(args []string, stderr io.Writer) (opts stepOptions, code int, ok bool) {
	id, rest := splitPositional(args)
	opts.id = id

	fs := newFlagSet("step", stderr)
	fs.StringVar(&opts.workspace, "workspace", ".", "Repository to inspect")
	fs.StringVar(&opts.branch, "branch", "", "Branch to inspect (required)")
	fs.StringVar(&opts.feature, "feature", "", "Feature name")
	fs.IntVar(&opts.iteration, "iteration", 0, "0-based iteration number; selects the threshold")
	fs.StringVar(&opts.baseline, "baseline", os.Getenv(baselineEnv), "Baseline branch (default: pipeline.baseline)")
	fs.StringVar(&opts.outputDir, "output-dir", os.Getenv(pipeline.OutputDirEnv), "Step output directory (default: the run directory layout under <workspace>/.ratchet/runs)")
	fs.StringVar(&opts.configPath, "config", os.Getenv(configEnv), "Pipeline config for thresholds (default: <workspace>/ratchet.yaml)")
	fs.BoolVar(&opts.debug, "debug", false, "Mirror the step log to stderr")
	fs.BoolVar(&opts.interactive, "interactive", false, "Ask on the console at human_review")
	fs.Usage = func() {
		printStepHelp(stderr)
		fs.PrintDefaults()
	}

	if code, ok := parseFlagSet(fs, rest); !ok {
		return opts, code, false
	}
	if opts.id == "" && fs.NArg() > 0 {
		opts.id = fs.Arg(0)
	}
	if opts.id == "" {
		return opts, usageError(stderr, "step", "a step id is required"), false
	}
	if opts.branch == "" {
		return opts, usageError(stderr, "step", "--branch is required"), false
	}
	if opts.iteration < 0 {
		return opts, usageError(stderr, "step", "--iteration must not be negative"), false
	}

	ws, err := filepath.Abs(opts.workspace)
	if err != nil {
		return opts, usageError(stderr, "step", fmt.Sprintf("resolve workspace: %v", err)), false
	}
	opts.workspace = ws
	return opts, exitOK, true
}

func cmdStep(args []string, stdout, stderr io.Writer) int {
	opts, code, ok := parseStepFlags(args, stderr)
	if !ok {
		return code
	}

	cfg, err := loadRunConfig(opts.configPath, opts.workspace)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	var reviewer pipeline.Interviewer
	if opts.interactive {
		reviewer = pipeline.NewConsoleInterviewer()
	}
	reg := checks.DefaultRegistry(checks.Deps{Source: gitops.NewRepo(opts.workspace), Interviewer: reviewer})
	step, found := reg.Get(opts.id)
	if !found {
		fmt.Fprintf(stderr, "error: %v: no built-in step %q (have %v)\n", pipeline.ErrStepNotFound, opts.id, reg.IDs())
		return pipeline.ExitNotFound
	}

	def, ok := cfg.Step(opts.id)
	if !ok {
		def = pipeline.StepDefinition{ID: opts.id, Name: opts.id}
	}
	baseline := opts.baseline
	if baseline == "" {
		baseline = cfg.Baseline
	}

	dir, err := stepOutputDir(opts)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	var mirror io.Writer
	if opts.debug {
		mirror = stderr
	}
	in := pipeline.StepInput{
		Workspace: opts.workspace,
		Branch:    opts.branch,
		Feature:   opts.feature,
		Iteration: opts.iteration,
		Baseline:  baseline,
		Debug:     opts.debug,
		OutputDir: dir,
		Threshold: cfg.ThresholdsFor(def).For(opts.iteration),
		Log:       pipeline.NewStepLogger(opts.id, mirror),
	}

	ctx, stop := signalContext(stderr)
	defer stop()

	res, err := pipeline.RunStep(ctx, step, def, in)
	if err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}

	summary, _ := os.ReadFile(filepath.Join(dir, pipeline.SummaryFile))
	fmt.Fprint(stdout, string(summary))
	if !res.Passed() {
		fmt.Fprintf(stderr, "[step] %s failed (exit %d): %s\n", res.StepID, res.ExitCode, res.Error)
	}
	return res.ExitCode
}

// stepOutputDir returns --output-dir, creating it, or the directory the
// orchestrator would use for this step.
func stepOutputDir(opts stepOptions) (string, error) {
	if opts.outputDir != "" {
		if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
		return opts.outputDir, nil
	}
	rd, err := pipeline.NewRunDirectory(filepath.Join(opts.workspace, ".ratchet", "runs", pipeline.BranchSlug(opts.branch)))
	if err != nil {
		return "", err
	}
	return rd.EnsureStepDir(opts.iteration, opts.id)
}
