package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	persistlog "foundation.ai/internal/persistence/log"
	"foundation.ai/internal/persistence/snapshot"
	"foundation.ai/internal/sim/env"
	"foundation.ai/internal/sim/tuning"
)

func main() {
	var (
		manifestPath = flag.String("manifest", "", "path to .manifest.zst")
		configPath   = flag.String("config", "", "env.yaml to recompose with (optional; without it only the manifest is summarized)")
		tracePath    = flag.String("trace", "", "compose trace .jsonl.zst to summarize (optional)")
		workers      = flag.Int("workers", 0, "parallel composition workers (0: GOMAXPROCS)")
	)
	flag.Parse()

	if *manifestPath == "" {
		fmt.Fprintln(os.Stderr, "missing -manifest")
		os.Exit(2)
	}

	m, err := snapshot.ReadManifest(*manifestPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read manifest:", err)
		os.Exit(1)
	}
	fmt.Printf("manifest v%d run=%s scenario=%s agents=%d components=%v digest=%s\n",
		m.Header.Version, m.Header.RunID, m.Header.Scenario, len(m.Agents), m.Components, m.Header.ConfigDigest)

	if *tracePath != "" {
		if err := summarizeTrace(*tracePath); err != nil {
			fmt.Fprintln(os.Stderr, "trace:", err)
			os.Exit(1)
		}
	}

	if *configPath == "" {
		return
	}
	cfg, err := tuning.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	diffs, err := verify(m, cfg, *workers)
	if err != nil {
		fmt.Fprintln(os.Stderr, "recompose:", err)
		os.Exit(1)
	}
	if len(diffs) > 0 {
		for _, d := range diffs {
			fmt.Fprintln(os.Stderr, "mismatch:", d)
		}
		os.Exit(1)
	}
	fmt.Printf("replay ok: %d agents recomposed identically\n", len(m.Agents))
}

// verify recomposes cfg and compares it with the recorded manifest.
func verify(m snapshot.ManifestV1, cfg tuning.EnvConfig, workers int) ([]string, error) {
	var diffs []string
	if d := cfg.Digest(); d != m.Header.ConfigDigest {
		diffs = append(diffs, fmt.Sprintf("config digest %s, manifest has %s", d, m.Header.ConfigDigest))
	}
	e, err := env.Build(cfg, env.Options{RunID: m.Header.RunID, Workers: workers})
	if err != nil {
		return nil, err
	}
	got, err := e.Manifest()
	if err != nil {
		return nil, err
	}
	if fmt.Sprint(got.Components) != fmt.Sprint(m.Components) {
		diffs = append(diffs, fmt.Sprintf("components %v, manifest has %v", got.Components, m.Components))
	}
	return append(diffs, snapshot.DiffAgents(m.Agents, got.Agents)...), nil
}

func summarizeTrace(path string) error {
	evs, err := persistlog.ReadTrace(path)
	if err != nil {
		return err
	}
	steps := map[string]int{}
	failed := 0
	for _, ev := range evs {
		steps[ev.Step]++
		if ev.Error != "" {
			failed++
			fmt.Printf("  failed agent=%s: %s\n", ev.AgentID, ev.Error)
		}
	}
	names := make([]string, 0, len(steps))
	for s := range steps {
		names = append(names, s)
	}
	sort.Strings(names)
	fmt.Printf("trace %s: events=%d failed=%d\n", path, len(evs), failed)
	for _, s := range names {
		fmt.Printf("  %-12s %d\n", s, steps[s])
	}
	return nil
}
