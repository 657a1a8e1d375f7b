// ABOUTME: Thin git wrapper used by checks and branch promotion: branch lookups, diffs, and file reads.
// ABOUTME: All commands go through a Runner so tests can substitute a scripted fake.
package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrBranchNotFound is returned when a named branch does not exist locally.
var ErrBranchNotFound = errors.New("branch not found")

// Runner executes a git subcommand in dir and returns its stdout.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// GitError describes a failed git invocation.
type GitError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s: exit %d", strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *GitError) Unwrap() error { return e.Err }

// ExecRunner runs the git binary via os/exec.
type ExecRunner struct {
	// Binary defaults to "git".
	Binary string
}

// Run executes git with args in dir.
func (r ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		code := 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return stdout.String(), &GitError{Args: args, ExitCode: code, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// Available reports whether the git binary can be found on PATH.
func Available() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git is not installed or not on PATH: %w", err)
	}
	return nil
}

// ChangeStatus is the kind of change git reports for a path.
type ChangeStatus string

const (
	ChangeAdded    ChangeStatus = "added"
	ChangeModified ChangeStatus = "modified"
	ChangeDeleted  ChangeStatus = "deleted"
	ChangeRenamed  ChangeStatus = "renamed"
)

// FileChange is one entry of a branch diff.
type FileChange struct {
	Path    string       `json:"path"`
	OldPath string       `json:"old_path,omitempty"`
	Status  ChangeStatus `json:"status"`
}

// Repo is a git working copy.
type Repo struct {
	Dir    string
	Runner Runner
}

// NewRepo returns a Repo for dir backed by the git binary.
func NewRepo(dir string) *Repo {
	return &Repo{Dir: dir, Runner: ExecRunner{}}
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	return r.Runner.Run(ctx, r.Dir, args...)
}

// IsRepo reports an error unless Dir is inside a git work tree.
func (r *Repo) IsRepo(ctx context.Context) error {
	out, err := r.git(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return fmt.Errorf("%s is not a git repository: %w", r.Dir, err)
	}
	if strings.TrimSpace(out) != "true" {
		return fmt.Errorf("%s is not inside a git work tree", r.Dir)
	}
	return nil
}

// BranchExists reports whether a local branch named name exists.
func (r *Repo) BranchExists(ctx context.Context, name string) (bool, error) {
	_, err := r.git(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil {
		return true, nil
	}
	var gitErr *GitError
	if errors.As(err, &gitErr) && gitErr.ExitCode == 1 {
		return false, nil
	}
	return false, err
}

// RevParse resolves ref to a commit hash.
func (r *Repo) RevParse(ctx context.Context, ref string) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch, or "HEAD" when detached.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// MergeBase returns the best common ancestor of a and b, the commit that
// three-dot diffs compare against.
func (r *Repo) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := r.git(ctx, "merge-base", a, b)
	if err != nil {
		return "", fmt.Errorf("merge-base %s %s: %w", a, b, err)
	}
	return strings.TrimSpace(out), nil
}

// ChangedFiles lists the files that differ between the merge base of
// baseline and branch, and branch. The error wraps ErrBranchNotFound when
// branch does not exist.
func (r *Repo) ChangedFiles(ctx context.Context, baseline, branch string) ([]FileChange, error) {
	ok, err := r.BranchExists(ctx, branch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, branch)
	}
	out, err := r.git(ctx, "diff", "--name-status", "-M", "--no-color", baseline+"..."+branch)
	if err != nil {
		return nil, fmt.Errorf("diff %s...%s: %w", baseline, branch, err)
	}
	return parseNameStatus(out), nil
}

// parseNameStatus parses `git diff --name-status` output.
func parseNameStatus(out string) []FileChange {
	var changes []FileChange
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		switch code := fields[0][0]; code {
		case 'A':
			changes = append(changes, FileChange{Path: fields[1], Status: ChangeAdded})
		case 'D':
			changes = append(changes, FileChange{Path: fields[1], Status: ChangeDeleted})
		case 'R', 'C':
			if len(fields) < 3 {
				continue
			}
			st := ChangeRenamed
			if code == 'C' {
				st = ChangeAdded
			}
			changes = append(changes, FileChange{Path: fields[2], OldPath: fields[1], Status: st})
		default:
			changes = append(changes, FileChange{Path: fields[1], Status: ChangeModified})
		}
	}
	return changes
}

// ReadFile returns the contents of path at ref.
func (r *Repo) ReadFile(ctx context.Context, ref, path string) ([]byte, error) {
	out, err := r.git(ctx, "show", ref+":"+path)
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", path, ref, err)
	}
	return []byte(out), nil
}

// ForceBranch points branch name at target, creating it if needed.
func (r *Repo) ForceBranch(ctx context.Context, name, target string) error {
	_, err := r.git(ctx, "branch", "-f", name, target)
	return err
}

// DeleteBranch force-deletes a local branch.
func (r *Repo) DeleteBranch(ctx context.Context, name string) error {
	_, err := r.git(ctx, "branch", "-D", name)
	return err
}

// ForcePush pushes branch to remote, overwriting the remote ref.
func (r *Repo) ForcePush(ctx context.Context, remote, branch string) error {
	_, err := r.git(ctx, "push", "--force", remote, branch)
	return err
}
