package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	persistlog "foundation.ai/internal/persistence/log"
	"foundation.ai/internal/persistence/snapshot"
	"foundation.ai/internal/sim/agents"
	"foundation.ai/internal/sim/env"
	"foundation.ai/internal/sim/tuning"
	"foundation.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "./configs/env.yaml", "path to env.yaml (empty for built-in defaults)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		runID      = flag.String("run", "", "run id (default: random uuid)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index of composed runs")
		trace      = flag.Bool("trace", true, "write compose trace JSONL under <data>/trace")
		verbose    = flag.Bool("verbose", false, "log every compose step")
		workers    = flag.Int("workers", 0, "parallel composition workers (0: GOMAXPROCS)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := tuning.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	id := strings.TrimSpace(*runID)
	if id == "" {
		id = uuid.NewString()
	}
	_ = os.MkdirAll(*dataDir, 0o755)

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	var tracers []agents.Tracer
	var traceLog *persistlog.TraceLogger
	if *trace {
		traceLog = persistlog.NewTraceLogger(*dataDir)
		tracers = append(tracers, traceLog.Tracer())
	}
	if idx != nil {
		tracers = append(tracers, idx.Tracer(id))
	}
	if *verbose {
		tracers = append(tracers, agents.LogTracer(log.New(os.Stdout, "[compose] ", log.LstdFlags|log.Lmicroseconds)))
	}

	e, err := env.Build(cfg, env.Options{
		Tracer:  agents.MultiTracer(tracers...),
		Logger:  logger,
		RunID:   id,
		Workers: *workers,
	})
	if traceLog != nil {
		if cerr := traceLog.Close(); cerr != nil {
			logger.Printf("trace log: %v", cerr)
		}
	}
	if err != nil {
		logger.Fatalf("build env: %v", err)
	}

	m, err := e.Manifest()
	if err != nil {
		logger.Fatalf("manifest: %v", err)
	}
	manifestPath := filepath.Join(*dataDir, "manifests", id+".manifest.zst")
	if err := snapshot.WriteManifest(manifestPath, m); err != nil {
		logger.Fatalf("write manifest: %v", err)
	}
	logger.Printf("manifest written: %s", manifestPath)
	if idx != nil {
		idx.RecordManifest(manifestPath, m)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	registerHandlers(mux, e, idx)
	if envBool("FA_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(e, id, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s run=%s", *addr, id)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
