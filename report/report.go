// ABOUTME: Renders a pipeline run record as a Markdown report and as a standalone HTML page.
// ABOUTME: HTML goes through goldmark with GFM tables; failing steps include their summary.txt.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/2389-research/ratchet/pipeline"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Markdown renders run. When rd is non-nil the summary.txt of every failed
// step is inlined under its iteration.
func Markdown(run *pipeline.PipelineRun, rd *pipeline.RunDirectory) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Pipeline run %s\n\n", run.RunID)
	fmt.Fprintf(&b, "- **Branch:** `%s`\n", run.Branch)
	if run.Feature != "" {
		fmt.Fprintf(&b, "- **Feature:** %s\n", run.Feature)
	}
	fmt.Fprintf(&b, "- **Status:** %s\n", run.Status)
	if run.StopReason != "" {
		fmt.Fprintf(&b, "- **Stop reason:** %s\n", run.StopReason)
	}
	fmt.Fprintf(&b, "- **Seed:** %d\n", run.Seed)
	fmt.Fprintf(&b, "- **Started:** %s\n", run.StartedAt.UTC().Format(time.RFC3339))
	if run.CompletedAt != nil {
		fmt.Fprintf(&b, "- **Finished:** %s (%s)\n", run.CompletedAt.UTC().Format(time.RFC3339),
			run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "- **Iterations:** %d\n", len(run.Iterations))

	if len(run.Iterations) == 0 {
		b.WriteString("\nNo iterations completed.\n")
		return b.String()
	}

	for _, it := range run.Iterations {
		fmt.Fprintf(&b, "\n## Iteration %d: %s\n\n", it.Iteration, it.Status)
		fmt.Fprintf(&b, "%d step(s) run, %d warning(s).", it.StepsRun, it.TotalWarnings())
		if it.FailedStep != nil {
			fmt.Fprintf(&b, " Failed on required step `%s`.", *it.FailedStep)
		}
		b.WriteString("\n\n")

		b.WriteString("| Step | Required | Result | Exit | Warnings | Duration |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, s := range it.Steps {
			result := "pass"
			if !s.Passed() {
				result = "**fail**"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %.2fs |\n",
				cell(s.StepName), yesNo(s.Required), result, s.ExitCode, s.WarningCount, s.DurationSeconds)
		}
		if len(it.Skipped) > 0 {
			fmt.Fprintf(&b, "\nSkipped (not found): %s\n", strings.Join(it.Skipped, ", "))
		}

		for _, s := range it.Steps {
			if s.Passed() {
				continue
			}
			fmt.Fprintf(&b, "\n### %s failed\n\n", s.StepID)
			if s.Error != "" {
				fmt.Fprintf(&b, "%s\n", s.Error)
			}
			if rd == nil {
				continue
			}
			if summary, err := rd.ReadStepArtifact(it.Iteration, s.StepID, pipeline.SummaryFile); err == nil && len(summary) > 0 {
				fmt.Fprintf(&b, "\n```\n%s\n```\n", strings.TrimRight(string(summary), "\n"))
			}
		}
	}
	return b.String()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
code, pre { background: #f5f5f5; }
pre { padding: 0.6rem; overflow-x: auto; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// RenderHTML converts Markdown to an HTML fragment.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// HTML renders run as a standalone HTML page.
func HTML(run *pipeline.PipelineRun, rd *pipeline.RunDirectory) (string, error) {
	body, err := RenderHTML(Markdown(run, rd))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = page.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: fmt.Sprintf("ratchet run %s (%s)", run.RunID, run.Branch),
		Body:  template.HTML(body),
	})
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}

// WriteMarkdown writes report.md into the run directory and returns its path.
func WriteMarkdown(run *pipeline.PipelineRun, rd *pipeline.RunDirectory) (string, error) {
	path := rd.Path(pipeline.ReportFile)
	if err := os.WriteFile(path, []byte(Markdown(run, rd)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
