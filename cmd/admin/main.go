package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"foundation.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "manifest":
			manifestCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "agents":
			agentsCmd(os.Args[2:])
			return
		case "space":
			spaceCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints every recorded manifest header, oldest file name first.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	paths, err := listManifests(filepath.Join(*dataDir, "manifests"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, p := range paths {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
			continue
		}
		printJSON(map[string]any{
			"path":          p,
			"run_id":        h.RunID,
			"scenario":      h.Scenario,
			"agents":        h.Agents,
			"config_digest": h.ConfigDigest,
		})
	}
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	path := fs.String("path", "", "manifest path (required)")
	agentID := fs.String("agent", "", "print only this agent")
	_ = fs.Parse(args)

	if strings.TrimSpace(*path) == "" {
		fmt.Fprintln(os.Stderr, "missing -path")
		os.Exit(2)
	}
	m, err := snapshot.ReadManifest(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read manifest:", err)
		os.Exit(1)
	}
	if *agentID == "" {
		printJSON(m)
		return
	}
	a, ok := m.Agent(*agentID)
	if !ok {
		fmt.Fprintf(os.Stderr, "agent %s not in manifest\n", *agentID)
		os.Exit(1)
	}
	printJSON(a)
}

func listManifests(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".manifest.zst") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func printJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "json:", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}
