// ABOUTME: "ratchet history" lists recorded runs and "ratchet report" renders one run's report.
// ABOUTME: Both read what "ratchet run" left behind: the SQLite index and run-results.json.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/2389-research/ratchet/pipeline"
	"github.com/2389-research/ratchet/report"
	"github.com/2389-research/ratchet/tui"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const defaultHistoryLimit = 20

func cmdHistory(args []string, stdout, stderr io.Writer) int {
	var (
		branch  string
		limit   int
		dataDir string
		asJSON  bool
		remove  string
	)
	fs := newFlagSet("history", stderr)
	fs.StringVar(&branch, "branch", "", "Only list runs of this branch")
	fs.IntVar(&limit, "limit", defaultHistoryLimit, "Maximum number of runs to list")
	fs.StringVar(&dataDir, "data-dir", "", "Directory holding the history database (default: $XDG_DATA_HOME/ratchet)")
	fs.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	fs.StringVar(&remove, "delete", "", "Remove the run with this id from the index; its run directory is left alone")
	fs.Usage = func() {
		printHistoryHelp(stderr)
		fs.PrintDefaults()
	}

	if code, ok := parseFlagSet(fs, args); !ok {
		return code
	}
	if limit <= 0 {
		return usageError(stderr, "history", "--limit must be positive")
	}

	idx, err := openHistory(dataDir)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer idx.Close()

	if remove != "" {
		if err := idx.Delete(remove); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitFailure
		}
		fmt.Fprintf(stdout, "deleted run %s\n", remove)
		return exitOK
	}

	runs, err := idx.List(branch, limit)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runs); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded.")
		return exitOK
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tui.TableBorderStyle).
		Headers(
			tui.TableHeaderStyle.Render("Run"),
			tui.TableHeaderStyle.Render("Branch"),
			tui.TableHeaderStyle.Render("Status"),
			tui.TableHeaderStyle.Render("Iterations"),
			tui.TableHeaderStyle.Render("Warnings"),
			tui.TableHeaderStyle.Render("Failed step"),
			tui.TableHeaderStyle.Render("Started"),
		)
	for _, r := range runs {
		status := tui.PassedStyle.Render(r.Status)
		switch pipeline.RunStatus(r.Status) {
		case pipeline.RunAborted:
			status = tui.FailedStyle.Render(r.Status)
		case pipeline.RunCancelled, pipeline.RunRunning:
			status = tui.WarnStyle.Render(r.Status)
		}
		failed := r.FailedStep
		if failed == "" {
			failed = "-"
		}
		t.Row(r.RunID, r.Branch, status, strconv.Itoa(r.Iterations), strconv.Itoa(r.LastWarnings), failed, r.StartedAt)
	}
	fmt.Fprintln(stdout, t.String())
	return exitOK
}

func cmdReport(args []string, stdout, stderr io.Writer) int {
	path, rest := splitPositional(args)

	var asHTML bool
	fs := newFlagSet("report", stderr)
	fs.BoolVar(&asHTML, "html", false, "Render HTML instead of Markdown")
	fs.Usage = func() {
		printReportHelp(stderr)
		fs.PrintDefaults()
	}

	if code, ok := parseFlagSet(fs, rest); !ok {
		return code
	}
	if path == "" && fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if path == "" {
		return usageError(stderr, "report", "a run-results.json path is required")
	}

	run, err := pipeline.LoadRun(path)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	rd := &pipeline.RunDirectory{BaseDir: filepath.Dir(path)}

	if !asHTML {
		fmt.Fprint(stdout, report.Markdown(run, rd))
		return exitOK
	}
	page, err := report.HTML(run, rd)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	fmt.Fprint(stdout, page)
	return exitOK
}
