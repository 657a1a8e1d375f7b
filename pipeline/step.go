// ABOUTME: Step capability interface, its inputs and outcome, and the registry that resolves steps by id.
// ABOUTME: Built-in steps register in-process; script steps are resolved from paths in the config.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrStepNotFound is returned when a configured step resolves to neither a
// registered built-in nor an existing script.
var ErrStepNotFound = errors.New("step not found")

// Exit codes the orchestrator assigns when a step cannot report its own.
const (
	ExitFailure  = 1
	ExitTimeout  = 124
	ExitNotFound = 127
)

// StepInput carries everything a step needs for a single invocation.
type StepInput struct {
	Workspace string
	Branch    string
	Feature   string
	Iteration int
	Baseline  string
	Debug     bool

	// OutputDir is the step's private directory; it already exists.
	OutputDir string
	// Threshold is the policy resolved for this step and iteration.
	Threshold Threshold
	// Log collects lines destined for output.log.
	Log *StepLogger
}

// Logf writes to the input's logger when one is attached.
func (in StepInput) Logf(format string, args ...any) {
	if in.Log != nil {
		in.Log.Printf(format, args...)
	}
}

// StepOutcome is what a step reports back to the orchestrator.
type StepOutcome struct {
	ExitCode int
	Warnings int
	Summary  string
	// Reason explains a nonzero exit code.
	Reason string
	// Result is serialized to <step-id>.json in the output directory when non-nil.
	Result any
}

// Passed reports whether the outcome counts as a pass.
func (o *StepOutcome) Passed() bool {
	return o != nil && o.ExitCode == 0
}

// Step is a single named validation unit.
type Step interface {
	ID() string
	Run(ctx context.Context, in StepInput) (*StepOutcome, error)
}

// StepFunc adapts a plain function to the Step interface.
type StepFunc struct {
	StepID string
	Fn     func(ctx context.Context, in StepInput) (*StepOutcome, error)
}

// ID returns the step id.
func (s StepFunc) ID() string { return s.StepID }

// Run calls the wrapped function.
func (s StepFunc) Run(ctx context.Context, in StepInput) (*StepOutcome, error) {
	return s.Fn(ctx, in)
}

// Registry maps step ids to in-process implementations.
type Registry struct {
	steps map[string]Step
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]Step)}
}

// Register adds a step, replacing any previous registration with the same id.
func (r *Registry) Register(s Step) {
	r.steps[s.ID()] = s
}

// Get returns the step registered under id.
func (r *Registry) Get(id string) (Step, bool) {
	s, ok := r.steps[id]
	return s, ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.steps))
	for id := range r.steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve turns a definition into a runnable Step. Built-in definitions are
// looked up in the registry. Anything else is treated as a script path,
// relative paths resolving against configDir. The returned error wraps
// ErrStepNotFound when nothing can serve the definition.
func (r *Registry) Resolve(def StepDefinition, configDir string) (Step, error) {
	if id, ok := def.BuiltinID(); ok {
		s, found := r.Get(id)
		if !found {
			return nil, fmt.Errorf("%w: no built-in step %q for %q", ErrStepNotFound, id, def.ID)
		}
		return s, nil
	}

	path := def.Script
	if !filepath.IsAbs(path) {
		path = filepath.Join(configDir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: script %s for %q does not exist", ErrStepNotFound, path, def.ID)
		}
		return nil, fmt.Errorf("stat script for %q: %w", def.ID, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: script %s for %q is a directory", ErrStepNotFound, path, def.ID)
	}
	return &ScriptStep{StepID: def.ID, Path: path}, nil
}
