// ABOUTME: ScriptStep runs an external executable as a pipeline step via os/exec.
// ABOUTME: Passes the step CLI flags, kills the whole process group on timeout, and reads back status.json.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// OutputDirEnv names the environment variable that tells a script where to write its artifacts.
const OutputDirEnv = "RATCHET_OUTPUT_DIR"

// scriptWaitDelay bounds how long Run waits for output pipes after the
// process group has been killed.
const scriptWaitDelay = 2 * time.Second

// ScriptStep executes Path with the step CLI surface:
//
//	--workspace=<path> --branch=<name> --iteration=<n> --feature=<name> [--debug]
//
// Exit code 0 passes, anything else fails. Deadlines come from ctx.
type ScriptStep struct {
	StepID string
	Path   string
}

// ID returns the step id.
func (s *ScriptStep) ID() string {
	return s.StepID
}

// Args builds the command-line flags for an invocation.
func (s *ScriptStep) Args(in StepInput) []string {
	args := []string{
		"--workspace=" + in.Workspace,
		"--branch=" + in.Branch,
		"--iteration=" + strconv.Itoa(in.Iteration),
		"--feature=" + in.Feature,
	}
	if in.Debug {
		args = append(args, "--debug")
	}
	return args
}

// Run executes the script and converts its exit status into a StepOutcome.
func (s *ScriptStep) Run(ctx context.Context, in StepInput) (*StepOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, args := s.command(in)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = in.Workspace
	cmd.Env = append(os.Environ(),
		OutputDirEnv+"="+in.OutputDir,
		"RATCHET_STEP_ID="+s.StepID,
		"RATCHET_BASELINE="+in.Baseline,
	)

	// Own process group so the whole tree dies on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		killProcessGroup(cmd)
		return nil
	}
	cmd.WaitDelay = scriptWaitDelay

	if in.Log != nil {
		stdout, stderr := in.Log.Stream(), in.Log.Stream()
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		defer stdout.Flush()
		defer stderr.Flush()
	}

	in.Logf("exec %s %s", name, strings.Join(args, " "))
	runErr := cmd.Run()

	outcome := &StepOutcome{}
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				outcome.ExitCode = ExitTimeout
				outcome.Reason = "script timed out"
				return outcome, nil
			}
			return nil, ctxErr
		}
		outcome.ExitCode = extractExitCode(runErr)
		outcome.Reason = fmt.Sprintf("script exited with code %d: %v", outcome.ExitCode, runErr)
	}

	status, err := readScriptStatus(in.OutputDir)
	if err != nil {
		in.Logf("warning: %v", err)
	}
	outcome.Warnings = status.warnings()
	if summary, err := os.ReadFile(filepath.Join(in.OutputDir, SummaryFile)); err == nil {
		outcome.Summary = string(summary)
	}
	return outcome, nil
}

// command picks the program to exec. Files without an executable bit run
// through sh so plain shell scripts work without chmod.
func (s *ScriptStep) command(in StepInput) (string, []string) {
	args := s.Args(in)
	if info, err := os.Stat(s.Path); err == nil && info.Mode()&0o111 != 0 {
		return s.Path, args
	}
	return "sh", append([]string{s.Path}, args...)
}

// scriptStatus is the subset of a script-written status.json the orchestrator reads.
type scriptStatus struct {
	WarningCount *int `json:"warning_count"`
	Warnings     *int `json:"warnings"`
}

func (s scriptStatus) warnings() int {
	switch {
	case s.WarningCount != nil:
		return *s.WarningCount
	case s.Warnings != nil:
		return *s.Warnings
	default:
		return 0
	}
}

func readScriptStatus(dir string) (scriptStatus, error) {
	var st scriptStatus
	data, err := os.ReadFile(filepath.Join(dir, StatusFile))
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read script status: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return scriptStatus{}, fmt.Errorf("decode script status: %w", err)
	}
	return st, nil
}

// extractExitCode pulls the exit code from an *exec.ExitError, defaulting to 1.
func extractExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
	}
	return ExitFailure
}

// killProcessGroup sends SIGKILL to the command's entire process group.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}
}
