package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"foundation.ai/internal/protocol"
	"foundation.ai/internal/sim/agents"
	"foundation.ai/internal/sim/env"
	"foundation.ai/internal/transport/ws"
)

type agentSummary struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	MultiAction  bool   `json:"multi_action_mode"`
	Heads        int    `json:"heads"`
	TotalActions int    `json:"total_actions"`
	Passive      bool   `json:"passive_placeholder,omitempty"`
	SingleFast   bool   `json:"single_action_fast_path,omitempty"`
	Region       *int   `json:"region,omitempty"`
}

func registerHandlers(mux *http.ServeMux, e *env.Env, idx runtimeIndex) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, e, idx)
	})
	mux.HandleFunc("GET /v1/agents", func(rw http.ResponseWriter, r *http.Request) {
		list := e.Agents()
		out := make([]agentSummary, 0, len(list))
		for _, a := range list {
			s := agentSummary{
				ID:           a.ID(),
				Kind:         string(a.Kind()),
				MultiAction:  a.MultiAction(),
				Heads:        len(a.Actions()),
				TotalActions: a.TotalActions(),
				Passive:      a.IsPassivePlaceholder(),
				SingleFast:   a.IsSingleActionFastPath(),
			}
			if region, ok := a.Region(); ok {
				s.Region = &region
			}
			out = append(out, s)
		}
		writeJSON(rw, http.StatusOK, out)
	})
	mux.HandleFunc("GET /v1/agents/{id}/action_space", func(rw http.ResponseWriter, r *http.Request) {
		a, ok := e.Agent(r.PathValue("id"))
		if !ok {
			writeJSON(rw, http.StatusNotFound, map[string]string{"code": protocol.ErrAgentNotFound})
			return
		}
		space, err := ws.ActionSpace(e.RunID, a)
		if err != nil {
			writeJSON(rw, http.StatusConflict, map[string]string{"code": agents.ErrorCode(err), "message": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, space)
	})
}

func writeMetrics(rw http.ResponseWriter, e *env.Env, idx runtimeIndex) {
	list := e.Agents()
	heads, passive, fast := 0, 0, 0
	for _, a := range list {
		heads += len(a.Actions())
		if a.IsPassivePlaceholder() {
			passive++
		}
		if a.IsSingleActionFastPath() {
			fast++
		}
	}

	fmt.Fprintf(rw, "# HELP foundation_agents Composed agents in this run.\n")
	fmt.Fprintf(rw, "# TYPE foundation_agents gauge\n")
	fmt.Fprintf(rw, "foundation_agents %d\n", len(list))

	fmt.Fprintf(rw, "# HELP foundation_action_heads Action heads across all agents.\n")
	fmt.Fprintf(rw, "# TYPE foundation_action_heads gauge\n")
	fmt.Fprintf(rw, "foundation_action_heads %d\n", heads)

	fmt.Fprintf(rw, "# HELP foundation_passive_agents Agents holding only the passive placeholder.\n")
	fmt.Fprintf(rw, "# TYPE foundation_passive_agents gauge\n")
	fmt.Fprintf(rw, "foundation_passive_agents %d\n", passive)

	fmt.Fprintf(rw, "# HELP foundation_single_action_fast_path_agents Agents on the single-action fast path.\n")
	fmt.Fprintf(rw, "# TYPE foundation_single_action_fast_path_agents gauge\n")
	fmt.Fprintf(rw, "foundation_single_action_fast_path_agents %d\n", fast)

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP foundation_index_queue_depth Current index queue depth.\n")
	fmt.Fprintf(rw, "# TYPE foundation_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "foundation_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP foundation_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE foundation_index_dropped_total counter\n")
	fmt.Fprintf(rw, "foundation_index_dropped_total{kind=\"manifest\"} %d\n", s.DropManifestTotal)
	fmt.Fprintf(rw, "foundation_index_dropped_total{kind=\"event\"} %d\n", s.DropEventTotal)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
