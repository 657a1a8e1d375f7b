// ABOUTME: "ratchet serve": read-only HTTP API over run history, records, reports, and live status.
package main

import (
	"fmt"
	"io"

	"github.com/2389-research/ratchet/web"
)

func cmdServe(args []string, stdout, stderr io.Writer) int {
	var (
		port      int
		host      string
		dataDir   string
		outputDir string
	)
	fs := newFlagSet("serve", stderr)
	fs.IntVar(&port, "port", 2389, "Port to listen on")
	fs.StringVar(&host, "host", "127.0.0.1", "Interface to bind")
	fs.StringVar(&dataDir, "data-dir", "", "Directory holding the history database (default: $XDG_DATA_HOME/ratchet)")
	fs.StringVar(&outputDir, "output-dir", "", "Root of per-branch run directories, for live status (default: ./.ratchet/runs)")
	fs.Usage = func() {
		printServeHelp(stderr)
		fs.PrintDefaults()
	}

	if code, ok := parseFlagSet(fs, args); !ok {
		return code
	}
	if port <= 0 || port > 65535 {
		return usageError(stderr, "serve", fmt.Sprintf("invalid port %d", port))
	}
	if outputDir == "" {
		outputDir = ".ratchet/runs"
	}

	idx, err := openHistory(dataDir)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer idx.Close()

	srv, err := web.NewServer(web.ServerConfig{
		Index:      idx,
		OutputRoot: outputDir,
		Addr:       fmt.Sprintf("%s:%d", host, port),
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	ctx, stop := signalContext(stderr)
	defer stop()

	fmt.Fprintf(stderr, "listening on http://%s\n", srv.Addr())
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	return exitOK
}
