// ABOUTME: CLI entrypoint for ratchet with run, step, promote, history, report, and serve subcommands.
// ABOUTME: Dispatches on the first argument; bare flags are treated as "ratchet run".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var version = "dev"

// Process exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitInterrupt = 130
)

// Environment overrides for flag defaults.
const (
	configEnv  = "RATCHET_CONFIG"
	dataDirEnv = "RATCHET_DATA_DIR"
)

func main() {
	loadDotEnvAuto()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches args to a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printHelp(stderr, version)
		return exitOK
	}

	switch args[0] {
	case "run":
		return cmdRun(args[1:], stdout, stderr)
	case "step":
		return cmdStep(args[1:], stdout, stderr)
	case "promote":
		return cmdPromote(args[1:], stdout, stderr)
	case "history":
		return cmdHistory(args[1:], stdout, stderr)
	case "report":
		return cmdReport(args[1:], stdout, stderr)
	case "serve":
		return cmdServe(args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		printHelp(stdout, version)
		return exitOK
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "ratchet %s\n", version)
		return exitOK
	}

	if strings.HasPrefix(args[0], "-") {
		return cmdRun(args, stdout, stderr)
	}

	fmt.Fprintf(stderr, "error: unknown command %q\n", args[0])
	fmt.Fprintln(stderr, "Run 'ratchet --help' for usage.")
	return exitUsage
}

// newFlagSet creates a subcommand flag set that reports errors to stderr.
func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("ratchet "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseFlagSet parses args into fs. When ok is false the caller returns code:
// zero for -help, exitUsage for anything else.
func parseFlagSet(fs *flag.FlagSet, args []string) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	return exitOK, true
}

// splitPositional pulls a leading positional argument off args so flags may
// follow it, as in "ratchet step syntax_check --branch=x".
func splitPositional(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

// usageError prints msg with a pointer to the subcommand help and returns exitUsage.
func usageError(stderr io.Writer, command, msg string) int {
	fmt.Fprintf(stderr, "error: %s\n", msg)
	fmt.Fprintf(stderr, "Run 'ratchet %s --help' for usage.\n", command)
	return exitUsage
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. The
// returned stop function releases the signal handler.
func signalContext(stderr io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(stderr, "\nInterrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
