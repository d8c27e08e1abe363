package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"foundation.ai/internal/persistence/indexdb"
	"foundation.ai/internal/persistence/snapshot"
	"foundation.ai/internal/sim/agents"
)

type runtimeIndex interface {
	Close() error
	RecordManifest(path string, m snapshot.ManifestV1)
	Tracer(runID string) agents.Tracer
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("FA_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "runs.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported FA_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
