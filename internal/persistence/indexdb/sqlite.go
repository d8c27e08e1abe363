package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"foundation.ai/internal/persistence/snapshot"
	"foundation.ai/internal/sim/agents"
)

const schemaVersion = "1"

// SQLiteIndex is a queryable secondary index of composed runs. Writes are
// queued and applied by one goroutine; the manifest files remain the source of truth.
type SQLiteIndex struct {
	db *sqlx.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropManifest atomic.Uint64
	dropEvent    atomic.Uint64
}

type reqKind int

const (
	reqManifest reqKind = iota + 1
	reqEvent
	reqFlush
)

type req struct {
	kind reqKind

	manifest manifestReq
	event    eventReq
	done     chan struct{}
}

type manifestReq struct {
	path       string
	recordedAt string
	m          snapshot.ManifestV1
}

type eventReq struct {
	runID string
	ev    agents.TraceEvent
}

type RunRow struct {
	RunID        string `db:"run_id"`
	Scenario     string `db:"scenario"`
	ConfigDigest string `db:"config_digest"`
	ManifestPath string `db:"manifest_path"`
	Agents       int    `db:"agents"`
	Components   string `db:"components_json"`
	RecordedAt   string `db:"recorded_at"`
}

type AgentRow struct {
	RunID        string        `db:"run_id"`
	AgentID      string        `db:"agent_id"`
	Seq          int           `db:"seq"`
	Kind         string        `db:"kind"`
	MultiAction  bool          `db:"multi_action"`
	Region       sql.NullInt64 `db:"region"`
	TotalActions int           `db:"total_actions"`
	Passive      bool          `db:"passive"`
	SingleFast   bool          `db:"single_fast"`
}

type ActionHeadRow struct {
	Seq  int    `db:"seq"`
	Name string `db:"name"`
	N    int    `db:"n"`
}

type StateFieldRow struct {
	Seq  int    `db:"seq"`
	Name string `db:"name"`
	JSON string `db:"json"`
}

type EventRow struct {
	Seq       int    `db:"seq"`
	AgentID   string `db:"agent_id"`
	Step      string `db:"step"`
	Component string `db:"component"`
	Action    string `db:"action"`
	N         int    `db:"n"`
	Error     string `db:"error"`
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropManifestTotal uint64
	DropEventTotal    uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			config_digest TEXT NOT NULL,
			manifest_path TEXT NOT NULL,
			agents INTEGER NOT NULL,
			components_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS agents (
			run_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			multi_action INTEGER NOT NULL,
			region INTEGER,
			total_actions INTEGER NOT NULL,
			passive INTEGER NOT NULL,
			single_fast INTEGER NOT NULL,
			PRIMARY KEY (run_id, agent_id)
		);`,
		`CREATE TABLE IF NOT EXISTS action_heads (
			run_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			n INTEGER NOT NULL,
			PRIMARY KEY (run_id, agent_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_action_heads_name ON action_heads(name);`,
		`CREATE TABLE IF NOT EXISTS state_fields (
			run_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			json TEXT NOT NULL,
			PRIMARY KEY (run_id, agent_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS compose_events (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			step TEXT NOT NULL,
			component TEXT NOT NULL,
			action TEXT NOT NULL,
			n INTEGER NOT NULL,
			error TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_compose_events_agent ON compose_events(run_id, agent_id);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordManifest queues a run and all of its agents. A run id recorded twice is replaced.
func (s *SQLiteIndex) RecordManifest(path string, m snapshot.ManifestV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := req{kind: reqManifest, manifest: manifestReq{
		path:       path,
		recordedAt: time.Now().UTC().Format(time.RFC3339Nano),
		m:          m,
	}}
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind.
		s.dropManifest.Add(1)
	}
}

// RecordEvent queues one composition event; sequence numbers are assigned per run in arrival order.
func (s *SQLiteIndex) RecordEvent(runID string, ev agents.TraceEvent) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqEvent, event: eventReq{runID: runID, ev: ev}}:
	default:
		s.dropEvent.Add(1)
	}
}

func (s *SQLiteIndex) Tracer(runID string) agents.Tracer {
	return func(ev agents.TraceEvent) { s.RecordEvent(runID, ev) }
}

// Flush waits until every request queued before it has been committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropManifestTotal: s.dropManifest.Load(),
		DropEventTotal:    s.dropEvent.Load(),
	}
}

func (s *SQLiteIndex) Runs(ctx context.Context) ([]RunRow, error) {
	var out []RunRow
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM runs ORDER BY recorded_at, run_id`)
	return out, err
}

func (s *SQLiteIndex) Run(ctx context.Context, runID string) (RunRow, error) {
	var r RunRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM runs WHERE run_id = ?`, runID)
	return r, err
}

func (s *SQLiteIndex) Agents(ctx context.Context, runID string) ([]AgentRow, error) {
	var out []AgentRow
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM agents WHERE run_id = ? ORDER BY seq`, runID)
	return out, err
}

func (s *SQLiteIndex) ActionHeads(ctx context.Context, runID, agentID string) ([]ActionHeadRow, error) {
	var out []ActionHeadRow
	err := s.db.SelectContext(ctx, &out,
		`SELECT seq,name,n FROM action_heads WHERE run_id = ? AND agent_id = ? ORDER BY seq`, runID, agentID)
	return out, err
}

func (s *SQLiteIndex) StateFields(ctx context.Context, runID, agentID string) ([]StateFieldRow, error) {
	var out []StateFieldRow
	err := s.db.SelectContext(ctx, &out,
		`SELECT seq,name,json FROM state_fields WHERE run_id = ? AND agent_id = ? ORDER BY seq`, runID, agentID)
	return out, err
}

func (s *SQLiteIndex) Events(ctx context.Context, runID, agentID string) ([]EventRow, error) {
	var out []EventRow
	err := s.db.SelectContext(ctx, &out,
		`SELECT seq,agent_id,step,component,action,n,error FROM compose_events WHERE run_id = ? AND agent_id = ? ORDER BY seq`,
		runID, agentID)
	return out, err
}

func (s *SQLiteIndex) loop() {
	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		eventSeq = map[string]int{}
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.Beginx()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqManifest:
			n, err := writeManifest(tx, r.manifest)
			if err != nil {
				rollback()
				continue
			}
			opCount += n

		case reqEvent:
			seq := eventSeq[r.event.runID]
			eventSeq[r.event.runID] = seq + 1
			ev := r.event.ev
			if _, err := tx.Exec(
				`INSERT OR REPLACE INTO compose_events(run_id,seq,agent_id,step,component,action,n,error) VALUES(?,?,?,?,?,?,?,?)`,
				r.event.runID, seq, ev.AgentID, ev.Step, ev.Component, ev.Action, ev.N, ev.Error,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		// Commit when idle so readers sharing the single connection are not starved.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}

func writeManifest(tx *sqlx.Tx, r manifestReq) (int, error) {
	m := r.m
	comps, err := json.Marshal(m.Components)
	if err != nil {
		return 0, err
	}
	run := RunRow{
		RunID:        m.Header.RunID,
		Scenario:     m.Header.Scenario,
		ConfigDigest: m.Header.ConfigDigest,
		ManifestPath: r.path,
		Agents:       len(m.Agents),
		Components:   string(comps),
		RecordedAt:   r.recordedAt,
	}
	for _, q := range []string{
		`DELETE FROM agents WHERE run_id = ?`,
		`DELETE FROM action_heads WHERE run_id = ?`,
		`DELETE FROM state_fields WHERE run_id = ?`,
	} {
		if _, err := tx.Exec(q, run.RunID); err != nil {
			return 0, err
		}
	}
	if _, err := tx.NamedExec(`INSERT OR REPLACE INTO runs(run_id,scenario,config_digest,manifest_path,agents,components_json,recorded_at)
		VALUES(:run_id,:scenario,:config_digest,:manifest_path,:agents,:components_json,:recorded_at)`, run); err != nil {
		return 0, err
	}
	ops := 4

	for i, a := range m.Agents {
		row := AgentRow{
			RunID:        run.RunID,
			AgentID:      a.ID,
			Seq:          i,
			Kind:         a.Kind,
			MultiAction:  a.MultiAction,
			Region:       sql.NullInt64{Int64: int64(a.Region), Valid: a.HasRegion},
			TotalActions: a.TotalActions,
			Passive:      a.Passive,
			SingleFast:   a.SingleFast,
		}
		if _, err := tx.NamedExec(`INSERT INTO agents(run_id,agent_id,seq,kind,multi_action,region,total_actions,passive,single_fast)
			VALUES(:run_id,:agent_id,:seq,:kind,:multi_action,:region,:total_actions,:passive,:single_fast)`, row); err != nil {
			return ops, err
		}
		ops++
		for j, h := range a.Actions {
			if _, err := tx.Exec(`INSERT INTO action_heads(run_id,agent_id,seq,name,n) VALUES(?,?,?,?,?)`,
				run.RunID, a.ID, j, h.Name, h.N); err != nil {
				return ops, err
			}
			ops++
		}
		for j, f := range a.State {
			if _, err := tx.Exec(`INSERT INTO state_fields(run_id,agent_id,seq,name,json) VALUES(?,?,?,?,?)`,
				run.RunID, a.ID, j, f.Name, string(f.JSON)); err != nil {
				return ops, err
			}
			ops++
		}
	}
	return ops, nil
}
