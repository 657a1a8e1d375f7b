// ABOUTME: Finding model shared by the built-in checkers and the result document each check step writes.
// ABOUTME: Results count findings by severity and apply the iteration's threshold to decide pass or fail.
package checks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/2389-research/ratchet/gitops"
	"github.com/2389-research/ratchet/pipeline"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Finding is one issue reported by a checker.
type Finding struct {
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	loc := f.File
	if f.Line > 0 {
		loc = fmt.Sprintf("%s:%d", f.File, f.Line)
	}
	if loc == "" {
		return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Rule, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %s: %s", f.Severity, loc, f.Rule, f.Message)
}

// SourceFile is a changed file with its contents on the branch and at the baseline.
type SourceFile struct {
	Path   string
	Status gitops.ChangeStatus
	// Content is nil for deleted files.
	Content []byte
	// Baseline is nil for added files or when the baseline copy is unreadable.
	Baseline []byte
}

// Checker analyzes a set of changed files.
type Checker interface {
	Name() string
	Analyze(ctx context.Context, files []SourceFile) ([]Finding, error)
}

// Counts tallies findings by severity.
type Counts struct {
	Info     int `json:"info"`
	Warning  int `json:"warning"`
	Error    int `json:"error"`
	Critical int `json:"critical"`
}

// Add counts one finding.
func (c *Counts) Add(s Severity) {
	switch s {
	case SeverityInfo:
		c.Info++
	case SeverityWarning:
		c.Warning++
	case SeverityError:
		c.Error++
	case SeverityCritical:
		c.Critical++
	}
}

// Actionable is the number of findings above info level. It becomes the
// step's warning count, so the run keeps iterating until it reaches zero.
func (c Counts) Actionable() int {
	return c.Warning + c.Error + c.Critical
}

// Result is the machine-readable document a check step writes as <step-id>.json.
type Result struct {
	Check         string             `json:"check"`
	Branch        string             `json:"branch"`
	Baseline      string             `json:"baseline"`
	Iteration     int                `json:"iteration"`
	FilesAnalyzed int                `json:"files_analyzed"`
	Counts        Counts             `json:"counts"`
	Threshold     pipeline.Threshold `json:"threshold"`
	Passed        bool               `json:"passed"`
	Findings      []Finding          `json:"findings"`
}

// NewResult builds a result for findings and evaluates it against the input's threshold.
func NewResult(check string, in pipeline.StepInput, files int, findings []Finding) *Result {
	sortFindings(findings)
	res := &Result{
		Check:         check,
		Branch:        in.Branch,
		Baseline:      in.Baseline,
		Iteration:     in.Iteration,
		FilesAnalyzed: files,
		Threshold:     in.Threshold,
		Findings:      findings,
	}
	if res.Findings == nil {
		res.Findings = []Finding{}
	}
	for _, f := range findings {
		res.Counts.Add(f.Severity)
	}
	res.Passed = in.Threshold.Allows(res.Counts.Error, res.Counts.Critical)
	return res
}

// Outcome converts the result into what the orchestrator records.
func (r *Result) Outcome() *pipeline.StepOutcome {
	out := &pipeline.StepOutcome{
		Warnings: r.Counts.Actionable(),
		Summary:  r.Summary(),
		Result:   r,
	}
	if !r.Passed {
		out.ExitCode = pipeline.ExitFailure
		out.Reason = fmt.Sprintf("%d error(s) and %d critical finding(s) exceed threshold (max_errors %d, max_critical %d)",
			r.Counts.Error, r.Counts.Critical, r.Threshold.MaxErrors, r.Threshold.MaxCritical)
	}
	return out
}

// maxSummaryFindings caps how many findings summary.txt lists.
const maxSummaryFindings = 20

// Summary renders the human-readable summary.txt.
func (r *Result) Summary() string {
	var b strings.Builder
	verdict := "PASS"
	if !r.Passed {
		verdict = "FAIL"
	}
	fmt.Fprintf(&b, "%s: %s (iteration %d, %d file(s))\n", r.Check, verdict, r.Iteration, r.FilesAnalyzed)
	fmt.Fprintf(&b, "critical=%d error=%d warning=%d info=%d\n",
		r.Counts.Critical, r.Counts.Error, r.Counts.Warning, r.Counts.Info)
	for i, f := range r.Findings {
		if i == maxSummaryFindings {
			fmt.Fprintf(&b, "... and %d more\n", len(r.Findings)-maxSummaryFindings)
			break
		}
		fmt.Fprintf(&b, "  %s\n", f)
	}
	return b.String()
}

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityError:    1,
	SeverityWarning:  2,
	SeverityInfo:     3,
}

// sortFindings orders by severity, then file and line.
func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if severityRank[a.Severity] != severityRank[b.Severity] {
			return severityRank[a.Severity] < severityRank[b.Severity]
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
}
