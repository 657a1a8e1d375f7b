// ABOUTME: YAML pipeline configuration: step definitions, per-iteration step bounds, and check thresholds.
// ABOUTME: LoadConfig parses the document, applies defaults, and validates it before any run begins.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxIterations bounds a run when neither the config nor the CLI sets a limit.
	DefaultMaxIterations = 3
	// DefaultBaseline is the branch diffs are computed against.
	DefaultBaseline = "main"
	// DefaultStepTimeoutSeconds applies to steps that omit timeout_seconds.
	DefaultStepTimeoutSeconds = 300

	builtinPrefix = "builtin:"
)

// stepIDPattern keeps step ids usable as directory names.
var stepIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Threshold caps the number of findings a check tolerates before it fails.
// A negative limit means unlimited.
type Threshold struct {
	MaxErrors   int `yaml:"max_errors" json:"max_errors"`
	MaxCritical int `yaml:"max_critical" json:"max_critical"`
}

// Allows reports whether the given error and critical counts stay within the threshold.
func (t Threshold) Allows(errorCount, criticalCount int) bool {
	if t.MaxCritical >= 0 && criticalCount > t.MaxCritical {
		return false
	}
	if t.MaxErrors >= 0 && errorCount > t.MaxErrors {
		return false
	}
	return true
}

// ThresholdPolicy selects a lenient threshold for early iterations and a
// strict one afterwards.
type ThresholdPolicy struct {
	LenientIterations *int       `yaml:"lenient_iterations" json:"lenient_iterations"`
	Lenient           *Threshold `yaml:"lenient" json:"lenient"`
	Strict            *Threshold `yaml:"strict" json:"strict"`
}

// DefaultThresholdPolicy returns the policy used when the config sets none:
// iteration 0 tolerates up to 10 errors and any number of critical findings,
// later iterations tolerate none.
func DefaultThresholdPolicy() ThresholdPolicy {
	n := 1
	return ThresholdPolicy{
		LenientIterations: &n,
		Lenient:           &Threshold{MaxErrors: 10, MaxCritical: -1},
		Strict:            &Threshold{MaxErrors: 0, MaxCritical: 0},
	}
}

// For returns the threshold that applies to the given 0-based iteration.
func (p ThresholdPolicy) For(iteration int) Threshold {
	p = p.merged(DefaultThresholdPolicy())
	if iteration < *p.LenientIterations {
		return *p.Lenient
	}
	return *p.Strict
}

// merged fills unset fields of p from base.
func (p ThresholdPolicy) merged(base ThresholdPolicy) ThresholdPolicy {
	if p.LenientIterations == nil {
		p.LenientIterations = base.LenientIterations
	}
	if p.Lenient == nil {
		p.Lenient = base.Lenient
	}
	if p.Strict == nil {
		p.Strict = base.Strict
	}
	return p
}

// StepDefinition describes one configured step.
type StepDefinition struct {
	ID             string           `yaml:"id" json:"id"`
	Name           string           `yaml:"name" json:"name"`
	Script         string           `yaml:"script" json:"script,omitempty"`
	Required       bool             `yaml:"required" json:"required"`
	TimeoutSeconds int              `yaml:"timeout_seconds" json:"timeout_seconds"`
	Thresholds     *ThresholdPolicy `yaml:"thresholds" json:"thresholds,omitempty"`
}

// Timeout returns the step's execution budget.
func (d StepDefinition) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// BuiltinID returns the registry id a step resolves to and true when the step
// is served in-process: either the script is empty or it uses "builtin:<id>".
func (d StepDefinition) BuiltinID() (string, bool) {
	if d.Script == "" {
		return d.ID, true
	}
	if strings.HasPrefix(d.Script, builtinPrefix) {
		id := strings.TrimPrefix(d.Script, builtinPrefix)
		if id == "" {
			id = d.ID
		}
		return id, true
	}
	return "", false
}

// Config is the pipeline section of a configuration file.
type Config struct {
	MinSteps      int              `yaml:"min_steps" json:"min_steps"`
	MaxSteps      int              `yaml:"max_steps" json:"max_steps"`
	MaxIterations int              `yaml:"max_iterations" json:"max_iterations"`
	Baseline      string           `yaml:"baseline" json:"baseline"`
	Thresholds    ThresholdPolicy  `yaml:"thresholds" json:"thresholds"`
	Steps         []StepDefinition `yaml:"steps" json:"steps"`

	// Dir is where the config was loaded from; relative script paths resolve against it.
	Dir string `yaml:"-" json:"-"`
}

type configFile struct {
	Pipeline *Config `yaml:"pipeline"`
}

// ConfigError collects every problem found while validating a config.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return "config: " + e.Problems[0]
	}
	return fmt.Sprintf("config: %d problems:\n  - %s", len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// LoadConfig reads and validates the YAML config at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(abs)
	return cfg, nil
}

// ParseConfig decodes a YAML document. Unknown keys are rejected so typos in
// field names surface at startup rather than as silently ignored settings.
func ParseConfig(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file configFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Problems: []string{"empty document"}}
		}
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if file.Pipeline == nil {
		return nil, &ConfigError{Problems: []string{"missing top-level \"pipeline\" section"}}
	}

	cfg := file.Pipeline
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Baseline == "" {
		c.Baseline = DefaultBaseline
	}
	c.Thresholds = c.Thresholds.merged(DefaultThresholdPolicy())
	for i := range c.Steps {
		s := &c.Steps[i]
		s.ID = strings.TrimSpace(s.ID)
		if s.Name == "" {
			s.Name = s.ID
		}
		if s.TimeoutSeconds == 0 {
			s.TimeoutSeconds = DefaultStepTimeoutSeconds
		}
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = len(c.Steps)
	}
	if c.MinSteps == 0 {
		c.MinSteps = max(1, len(c.RequiredSteps()))
	}
}

func (c *Config) validate() error {
	var problems []string
	if len(c.Steps) == 0 {
		problems = append(problems, "no steps defined")
	}

	seen := make(map[string]bool, len(c.Steps))
	for i, s := range c.Steps {
		switch {
		case s.ID == "":
			problems = append(problems, fmt.Sprintf("steps[%d]: id must not be empty", i))
		case !stepIDPattern.MatchString(s.ID):
			problems = append(problems, fmt.Sprintf("steps[%d]: id %q must match %s", i, s.ID, stepIDPattern))
		case seen[s.ID]:
			problems = append(problems, fmt.Sprintf("steps[%d]: duplicate id %q", i, s.ID))
		}
		seen[s.ID] = true
		if s.TimeoutSeconds < 0 {
			problems = append(problems, fmt.Sprintf("step %q: timeout_seconds must be positive", s.ID))
		}
	}

	if c.MinSteps <= 0 {
		problems = append(problems, "min_steps must be greater than 0")
	}
	if c.MinSteps > c.MaxSteps {
		problems = append(problems, fmt.Sprintf("min_steps (%d) must not exceed max_steps (%d)", c.MinSteps, c.MaxSteps))
	}
	if len(c.Steps) > 0 && c.MaxSteps > len(c.Steps) {
		problems = append(problems, fmt.Sprintf("max_steps (%d) exceeds the number of steps (%d)", c.MaxSteps, len(c.Steps)))
	}
	if n := len(c.RequiredSteps()); n > c.MaxSteps {
		problems = append(problems, fmt.Sprintf("%d required steps exceed max_steps (%d)", n, c.MaxSteps))
	}
	if c.MaxIterations < 0 {
		problems = append(problems, "max_iterations must be positive")
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// Warnings returns non-fatal observations about the config.
func (c *Config) Warnings() []string {
	var out []string
	if len(c.Steps) > 0 && len(c.RequiredSteps()) == 0 {
		out = append(out, "no step is marked required; an iteration may run no checks that can fail it")
	}
	return out
}

// RequiredSteps returns required steps in configuration order.
func (c *Config) RequiredSteps() []StepDefinition {
	var out []StepDefinition
	for _, s := range c.Steps {
		if s.Required {
			out = append(out, s)
		}
	}
	return out
}

// OptionalSteps returns the non-required steps in configuration order.
func (c *Config) OptionalSteps() []StepDefinition {
	var out []StepDefinition
	for _, s := range c.Steps {
		if !s.Required {
			out = append(out, s)
		}
	}
	return out
}

// Step looks up a definition by id.
func (c *Config) Step(id string) (StepDefinition, bool) {
	for _, s := range c.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return StepDefinition{}, false
}

// ThresholdsFor returns the policy for a step, layering its override over the global policy.
func (c *Config) ThresholdsFor(def StepDefinition) ThresholdPolicy {
	if def.Thresholds == nil {
		return c.Thresholds
	}
	return def.Thresholds.merged(c.Thresholds)
}
