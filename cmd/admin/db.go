package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"foundation.ai/internal/persistence/indexdb"
)

// dbCmd queries the run index: runs | agents | heads | state | events.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	runID := fs.String("run", "", "run id (required except for runs)")
	agentID := fs.String("agent", "", "agent id (heads, state, events)")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "runs.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	if q != "runs" && *runID == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}
	switch q {
	case "heads", "state", "events":
		if *agentID == "" {
			fmt.Fprintln(os.Stderr, "missing -agent")
			os.Exit(2)
		}
	}

	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx := context.Background()
	var rows any
	switch q {
	case "runs":
		rows, err = idx.Runs(ctx)
	case "agents":
		rows, err = idx.Agents(ctx, *runID)
	case "heads":
		rows, err = idx.ActionHeads(ctx, *runID, *agentID)
	case "state":
		rows, err = idx.StateFields(ctx, *runID, *agentID)
	case "events":
		rows, err = idx.Events(ctx, *runID, *agentID)
	default:
		fmt.Fprintf(os.Stderr, "unknown query %q\n", q)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	printJSON(rows)
}
