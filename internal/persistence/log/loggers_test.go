package log

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"foundation.ai/internal/sim/agents"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "x")
	clock := time.Date(2024, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	first := w.Path()
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"a": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	second := w.Path()
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if filepath.Base(first) != "x-2024-03-01-10.jsonl.zst" {
		t.Fatalf("first path: %s", first)
	}
	if filepath.Base(second) != "x-2024-03-01-11.jsonl.zst" {
		t.Fatalf("second path: %s", second)
	}
	if w.Path() != "" {
		t.Fatalf("closed writer still reports %s", w.Path())
	}
}

func TestTraceLogger_RoundTrip(t *testing.T) {
	l := NewTraceLogger(t.TempDir())
	a := agents.NewBasicMobile("0", true, agents.Loc{})
	comps := []agents.Component{
		fixed{name: "Move", c: agents.Scalar(4)},
		fixed{name: "Trade", c: agents.Grouped{{Name: "buy", N: 2}}},
	}
	if err := a.RegisterComponents(comps, agents.WithTracer(l.Tracer())); err != nil {
		t.Fatalf("compose: %v", err)
	}
	path := l.Path()
	if !strings.HasPrefix(filepath.Base(path), "compose-") {
		t.Fatalf("path: %s", path)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	evs, err := ReadTrace(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var actions []string
	for _, ev := range evs {
		if ev.AgentID != "0" {
			t.Fatalf("agent id: %+v", ev)
		}
		if ev.Step == agents.StepAction {
			actions = append(actions, ev.Action)
		}
	}
	if strings.Join(actions, ",") != "Move,Trade.buy" {
		t.Fatalf("actions: %v", actions)
	}
	if last := evs[len(evs)-1]; last.Step != agents.StepCommitted || last.N != 6 {
		t.Fatalf("last event: %+v", last)
	}
}

type fixed struct {
	name string
	c    agents.Contribution
}

func (f fixed) Name() string                                  { return f.name }
func (f fixed) Contribution(agents.Query) agents.Contribution { return f.c }
func (f fixed) StateFields(agents.Kind) []agents.Field        { return nil }
