// ABOUTME: Help display for the ratchet CLI: usage patterns, grouped flags, examples, and environment status.
// ABOUTME: Each subcommand also has a short help printed by its flag set's Usage.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/2389-research/ratchet/pipeline"
)

// printHelp writes the top-level help to w.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "ratchet %s: iterative branch validation pipeline\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ratchet [run] --branch <name> [flags]     Validate a branch until it is clean")
	fmt.Fprintln(w, "  ratchet step <id> --branch <name> ...     Run one built-in step (script contract)")
	fmt.Fprintln(w, "  ratchet promote --feature <f> --to <stage> Promote ai-gen -> ai-review -> ai-prod")
	fmt.Fprintln(w, "  ratchet history [--branch <name>]          List recorded runs")
	fmt.Fprintln(w, "  ratchet report <run-results.json>          Render a run report")
	fmt.Fprintln(w, "  ratchet serve [--port 2389]                Start the read-only HTTP API")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Run Flags:")
	fmt.Fprintln(w, "  --branch <name>         Branch to validate (required)")
	fmt.Fprintln(w, "  --max-iterations <n>    Iteration cap (default: pipeline.max_iterations)")
	fmt.Fprintln(w, "  --feature <name>        Feature name (default: from <stage>/<feature>)")
	fmt.Fprintln(w, "  --config <path>         Pipeline config (default: <workspace>/ratchet.yaml)")
	fmt.Fprintln(w, "  --workspace <dir>       Repository to validate (default: .)")
	fmt.Fprintln(w, "  --output-dir <dir>      Run directories root (default: <workspace>/.ratchet/runs)")
	fmt.Fprintln(w, "  --data-dir <dir>        History database directory (default: $XDG_DATA_HOME/ratchet)")
	fmt.Fprintln(w, "  --seed <n>              Step selection seed for reproducible runs")
	fmt.Fprintln(w, "  --debug                 Mirror step logs to stderr")
	fmt.Fprintln(w, "  --tui                   Interactive terminal dashboard")
	fmt.Fprintln(w, "  --verbose               Print step starts and checkpoints")
	fmt.Fprintln(w, "  --interactive           Ask on the console at human_review")
	fmt.Fprintln(w, "  --no-history            Do not record the run in the history database")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Other:")
	fmt.Fprintln(w, "  --version               Print version and exit")
	fmt.Fprintln(w, "  --help                  Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Exit codes:")
	fmt.Fprintln(w, "  0 clean run, 1 aborted or failed, 2 usage or configuration error, 130 interrupted")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  ratchet --branch ai-gen/login --max-iterations 5")
	fmt.Fprintln(w, "  ratchet run --branch ai-gen/login --tui")
	fmt.Fprintln(w, "  ratchet step syntax_check --branch ai-gen/login --iteration 1 --feature login")
	fmt.Fprintln(w, "  ratchet promote --feature login --to ai-review")
	fmt.Fprintln(w, "  ratchet report .ratchet/runs/ai-gen-login/run-results.json --html > report.html")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  %-20s %s\n", configEnv, envStatus(configEnv))
	fmt.Fprintf(w, "  %-20s %s\n", pipeline.OutputDirEnv, envStatus(pipeline.OutputDirEnv))
	fmt.Fprintf(w, "  %-20s %s\n", dataDirEnv, envStatus(dataDirEnv))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Variables may also be set in a .env file.")
}

// envStatus returns "[set]" if the named environment variable is non-empty,
// or "[not set]" otherwise.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}

func printRunHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: ratchet run --branch <name> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Runs iterations of required and sampled optional steps until an iteration")
	fmt.Fprintln(w, "passes with no warnings, the iteration cap is reached, or a required step fails.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
}

func printStepHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: ratchet step <id> --branch <name> [--workspace <dir>] [--iteration <n>] [--feature <name>] [--debug]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Runs one built-in step and writes summary.txt, <id>.json, output.log, and")
	fmt.Fprintln(w, "status.json into --output-dir ($RATCHET_OUTPUT_DIR). Exits with the step's code.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Built-in steps: context_validation, syntax_check, code_style, breaking_changes,")
	fmt.Fprintln(w, "security_scan, human_review")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
}

func printPromoteHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: ratchet promote --feature <name> --to <ai-review|ai-prod> [--remote origin] [--no-push]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Points <to>/<feature> at the previous stage's branch and force-pushes it.")
	fmt.Fprintln(w, "A failed push restores the destination branch.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
}

func printHistoryHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: ratchet history [--branch <name>] [--limit 20] [--json] [--data-dir <dir>]")
	fmt.Fprintln(w, "       ratchet history --delete <run-id> [--data-dir <dir>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
}

func printReportHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: ratchet report <run-results.json> [--html]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
}

func printServeHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: ratchet serve [--port 2389] [--host 127.0.0.1] [--data-dir <dir>] [--output-dir <dir>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Routes: /health, /runs, /runs/{id}/, /runs/{id}/report,")
	fmt.Fprintln(w, "        /runs/{id}/iterations/{n}/steps/{step}[/{file}], /branches/{branch}/live")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
}
