// ABOUTME: "ratchet run": validates a branch by driving the orchestrator until it stops, aborts, or is interrupted.
// ABOUTME: Wires config, preflight, the built-in steps, progress files, history, and the printer or TUI together.
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/2389-research/ratchet/checks"
	"github.com/2389-research/ratchet/gitops"
	"github.com/2389-research/ratchet/history"
	"github.com/2389-research/ratchet/pipeline"
	"github.com/2389-research/ratchet/report"
	"github.com/2389-research/ratchet/tui"

	tea "github.com/charmbracelet/bubbletea"
)

// defaultConfigName is looked up in the workspace when --config is not given.
const defaultConfigName = "ratchet.yaml"

// defaultConfigYAML is the pipeline used when the workspace has no config.
//
//go:embed default_config.yaml
var defaultConfigYAML []byte

// runOptions holds the flags of "ratchet run".
type runOptions struct {
	branch        string
	feature       string
	maxIterations int
	configPath    string
	workspace     string
	outputDir     string
	dataDir       string
	seed          uint64
	debug         bool
	tui           bool
	verbose       bool
	interactive   bool
	noHistory     bool
}

// parseRunFlags parses and normalizes run flags. When ok is false the caller
// returns code.
func parseRunFlags(args []string, stderr io.Writer) (opts runOptions, code int, ok bool) {
	fs := newFlagSet("run", stderr)
	fs.StringVar(&opts.branch, "branch", "", "Branch to validate (required)")
	fs.IntVar(&opts.maxIterations, "max-iterations", 0, "Iteration cap (default: pipeline.max_iterations)")
	fs.StringVar(&opts.feature, "feature", "", "Feature name (default: derived from a <stage>/<feature> branch)")
	fs.StringVar(&opts.configPath, "config", os.Getenv(configEnv), "Pipeline config (default: <workspace>/ratchet.yaml)")
	fs.StringVar(&opts.workspace, "workspace", ".", "Repository to validate")
	fs.StringVar(&opts.outputDir, "output-dir", os.Getenv(pipeline.OutputDirEnv), "Root of per-branch run directories (default: <workspace>/.ratchet/runs)")
	fs.StringVar(&opts.dataDir, "data-dir", os.Getenv(dataDirEnv), "Directory holding the history database (default: $XDG_DATA_HOME/ratchet)")
	fs.Uint64Var(&opts.seed, "seed", 0, "Step selection seed (0 = random)")
	fs.BoolVar(&opts.debug, "debug", false, "Mirror step logs to stderr and pass --debug to scripts")
	fs.BoolVar(&opts.tui, "tui", false, "Run with the interactive terminal dashboard")
	fs.BoolVar(&opts.verbose, "verbose", false, "Print step starts and checkpoints")
	fs.BoolVar(&opts.interactive, "interactive", false, "Ask on the console at human_review instead of auto-approving")
	fs.BoolVar(&opts.noHistory, "no-history", false, "Do not record the run in the history database")
	fs.Usage = func() {
		printRunHelp(stderr)
		fs.PrintDefaults()
	}

	if code, ok := parseFlagSet(fs, args); !ok {
		return opts, code, false
	}
	if fs.NArg() > 0 {
		return opts, usageError(stderr, "run", fmt.Sprintf("unexpected argument %q", fs.Arg(0))), false
	}
	if opts.branch == "" {
		return opts, usageError(stderr, "run", "--branch is required"), false
	}
	if opts.maxIterations < 0 {
		return opts, usageError(stderr, "run", "--max-iterations must not be negative"), false
	}
	if opts.tui && opts.interactive {
		return opts, usageError(stderr, "run", "--tui and --interactive cannot be combined; the dashboard has its own review prompt"), false
	}

	ws, err := filepath.Abs(opts.workspace)
	if err != nil {
		return opts, usageError(stderr, "run", fmt.Sprintf("resolve workspace: %v", err)), false
	}
	opts.workspace = ws
	if opts.outputDir == "" {
		opts.outputDir = filepath.Join(ws, ".ratchet", "runs")
	}
	if opts.feature == "" {
		if _, feature, ok := gitops.ParseBranch(opts.branch); ok {
			opts.feature = feature
		}
	}
	return opts, exitOK, true
}

// loadRunConfig loads path, or <workspace>/ratchet.yaml, or the built-in
// default pipeline, in that order.
func loadRunConfig(path, workspace string) (*pipeline.Config, error) {
	if path != "" {
		return pipeline.LoadConfig(path)
	}
	candidate := filepath.Join(workspace, defaultConfigName)
	if _, err := os.Stat(candidate); err == nil {
		return pipeline.LoadConfig(candidate)
	}
	cfg, err := pipeline.ParseConfig(defaultConfigYAML)
	if err != nil {
		return nil, err
	}
	cfg.Dir = workspace
	return cfg, nil
}

func cmdRun(args []string, stdout, stderr io.Writer) int {
	opts, code, ok := parseRunFlags(args, stderr)
	if !ok {
		return code
	}

	cfg, err := loadRunConfig(opts.configPath, opts.workspace)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	for _, w := range cfg.Warnings() {
		fmt.Fprintf(stderr, "[config] warning: %s\n", w)
	}

	ctx, stop := signalContext(stderr)
	defer stop()

	repo := gitops.NewRepo(opts.workspace)
	if opts.tui {
		return runWithTUI(ctx, opts, cfg, repo, stdout, stderr)
	}

	var reviewer pipeline.Interviewer
	if opts.interactive {
		reviewer = pipeline.NewConsoleInterviewer()
	}
	reg := checks.DefaultRegistry(checks.Deps{Source: repo, Interviewer: reviewer})
	if !preflight(ctx, cfg, reg, opts.workspace, stderr) {
		return exitUsage
	}

	s, err := openSession(opts, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer s.Close()

	printer := tui.NewPrinter(stderr, opts.verbose)
	orch, err := s.newOrchestrator(reg, pipeline.MultiHandler(s.progress.HandleEvent, printer.HandleEvent), stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	run, runErr := orch.Run(ctx)
	return s.finish(run, runErr, stdout, stderr)
}

// runnerFunc adapts a function to tui.Runner.
type runnerFunc func(ctx context.Context) (*pipeline.PipelineRun, error)

func (f runnerFunc) Run(ctx context.Context) (*pipeline.PipelineRun, error) { return f(ctx) }

type runResult struct {
	run *pipeline.PipelineRun
	err error
}

// runWithTUI drives the run from the Bubble Tea dashboard. Quitting the
// dashboard early cancels the run; the partial record is still reported.
func runWithTUI(ctx context.Context, opts runOptions, cfg *pipeline.Config, repo *gitops.Repo, stdout, stderr io.Writer) int {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var orch *pipeline.Orchestrator
	started := make(chan struct{})
	results := make(chan runResult, 1)
	runner := runnerFunc(func(ctx context.Context) (*pipeline.PipelineRun, error) {
		close(started)
		run, err := orch.Run(ctx)
		results <- runResult{run: run, err: err}
		return run, err
	})

	maxIterations := opts.maxIterations
	if maxIterations == 0 {
		maxIterations = cfg.MaxIterations
	}
	model := tui.NewAppModel(runCtx, runner, opts.branch, maxIterations)

	reg := checks.DefaultRegistry(checks.Deps{Source: repo, Interviewer: model.Reviewer()})
	if !preflight(ctx, cfg, reg, opts.workspace, stderr) {
		return exitUsage
	}

	s, err := openSession(opts, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer s.Close()

	// Step logs would corrupt the alternate screen.
	orch, err = s.newOrchestrator(reg, nil, io.Discard)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	bridge := tui.NewEventBridge(p.Send)
	orch.SetEventHandler(pipeline.MultiHandler(s.progress.HandleEvent, bridge.HandleEvent))

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	cancelRun()

	select {
	case <-started:
		res := <-results
		return s.finish(res.run, res.err, stdout, stderr)
	default:
		fmt.Fprintln(stderr, "error: dashboard exited before the run started")
		return exitFailure
	}
}

// preflight runs the git check and the pipeline's own checks. Advisory
// failures are printed as warnings; any other failure stops the run.
func preflight(ctx context.Context, cfg *pipeline.Config, reg *pipeline.Registry, workspace string, stderr io.Writer) bool {
	checkList := append([]pipeline.PreflightCheck{gitCheck(workspace), baselineCheck(workspace, cfg.Baseline)},
		pipeline.BuildPreflightChecks(cfg, reg, workspace)...)
	res := pipeline.RunPreflight(ctx, checkList)
	for _, w := range res.Warnings {
		fmt.Fprintf(stderr, "[preflight] warning: %s: %s\n", w.Name, w.Reason)
	}
	if !res.OK() {
		fmt.Fprintln(stderr, res.Error())
		return false
	}
	return true
}

// gitCheck requires the git binary and a work tree at workspace.
func gitCheck(workspace string) pipeline.PreflightCheck {
	return pipeline.PreflightCheck{
		Name: "git",
		Check: func(ctx context.Context) error {
			if err := gitops.Available(); err != nil {
				return err
			}
			return gitops.NewRepo(workspace).IsRepo(ctx)
		},
	}
}

// baselineCheck requires the configured baseline to resolve to a commit;
// every check step diffs against it.
func baselineCheck(workspace, baseline string) pipeline.PreflightCheck {
	return pipeline.PreflightCheck{
		Name: "baseline",
		Check: func(ctx context.Context) error {
			if _, err := gitops.NewRepo(workspace).RevParse(ctx, baseline); err != nil {
				return fmt.Errorf("baseline %q does not resolve to a commit (set pipeline.baseline): %w", baseline, err)
			}
			return nil
		},
	}
}

// runSession owns the files a run writes outside the orchestrator.
type runSession struct {
	opts     runOptions
	cfg      *pipeline.Config
	runDir   *pipeline.RunDirectory
	progress *pipeline.ProgressLogger
	history  *history.Index // nil when disabled or unavailable
}

// openSession prepares <output-dir>/<branch-slug> and the history index. An
// unusable history database only disables history.
func openSession(opts runOptions, cfg *pipeline.Config, stderr io.Writer) (*runSession, error) {
	rd, err := pipeline.NewRunDirectory(filepath.Join(opts.outputDir, pipeline.BranchSlug(opts.branch)))
	if err != nil {
		return nil, err
	}
	progress, err := pipeline.NewProgressLogger(rd.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("open progress log: %w", err)
	}

	s := &runSession{opts: opts, cfg: cfg, runDir: rd, progress: progress}
	if !opts.noHistory {
		idx, err := openHistory(opts.dataDir)
		if err != nil {
			fmt.Fprintf(stderr, "warning: run history disabled: %v\n", err)
		} else {
			s.history = idx
		}
	}
	return s, nil
}

// Close releases the progress log and the history database.
func (s *runSession) Close() {
	if err := s.progress.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: close progress log: %v\n", err)
	}
	if s.history != nil {
		s.history.Close()
	}
}

func (s *runSession) newOrchestrator(reg *pipeline.Registry, handler pipeline.EventHandler, logMirror io.Writer) (*pipeline.Orchestrator, error) {
	var cps []pipeline.Checkpointer
	if s.history != nil {
		cps = append(cps, s.history.Recorder(s.runDir.ResultsPath()))
	}
	return pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Config:        s.cfg,
		Registry:      reg,
		RunDir:        s.runDir,
		Workspace:     s.opts.workspace,
		Branch:        s.opts.branch,
		Feature:       s.opts.feature,
		MaxIterations: s.opts.maxIterations,
		Debug:         s.opts.debug,
		Seed:          s.opts.seed,
		EventHandler:  handler,
		Checkpointers: cps,
		LogMirror:     logMirror,
	})
}

// finish writes report.md, prints the summary table, and maps the run error
// to an exit code.
func (s *runSession) finish(run *pipeline.PipelineRun, runErr error, stdout, stderr io.Writer) int {
	if run != nil {
		path, err := report.WriteMarkdown(run, s.runDir)
		if err != nil {
			fmt.Fprintf(stderr, "warning: %v\n", err)
		} else if s.opts.verbose {
			fmt.Fprintf(stderr, "[report] %s\n", path)
		}
		fmt.Fprint(stdout, tui.Summary(run))
	}

	var abort *pipeline.AbortError
	switch {
	case runErr == nil:
		return exitOK
	case errors.As(runErr, &abort):
		fmt.Fprintf(stderr, "error: %v\n", runErr)
		return exitFailure
	case errors.Is(runErr, context.Canceled):
		return exitInterrupt
	default:
		fmt.Fprintf(stderr, "error: %v\n", runErr)
		return exitFailure
	}
}

// openHistory opens the history database under the resolved data directory.
func openHistory(override string) (*history.Index, error) {
	dir, err := resolveDataDir(override)
	if err != nil {
		return nil, err
	}
	return history.Open(filepath.Join(dir, history.DBFile))
}
