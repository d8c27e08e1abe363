package agents

import "log"

// Trace steps.
const (
	StepAction      = "action"
	StepSkip        = "skip"
	StepState       = "state"
	StepPlaceholder = "placeholder"
	StepFastPath    = "fast_path"
	StepCommitted   = "committed"
	StepFailed      = "failed"
)

// TraceEvent describes one step of composition. Events are emitted as the
// engine walks the components; a failed run ends with StepFailed and none of
// its action or state events take effect.
type TraceEvent struct {
	AgentID   string `json:"agent_id"`
	AgentKind Kind   `json:"agent_kind"`
	Step      string `json:"step"`
	Component string `json:"component,omitempty"`
	Action    string `json:"action,omitempty"`
	N         int    `json:"n,omitempty"`
	Field     string `json:"field,omitempty"`
	Region    *int   `json:"region,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Tracer observes composition. It must not mutate the agent.
type Tracer func(TraceEvent)

// LogTracer prints each event on logger.
func LogTracer(logger *log.Logger) Tracer {
	if logger == nil {
		return nil
	}
	return func(ev TraceEvent) {
		switch ev.Step {
		case StepAction, StepPlaceholder:
			logger.Printf("compose agent=%s kind=%s %s action=%s n=%d", ev.AgentID, ev.AgentKind, ev.Step, ev.Action, ev.N)
		case StepState:
			logger.Printf("compose agent=%s kind=%s state field=%s from=%s", ev.AgentID, ev.AgentKind, ev.Field, ev.Component)
		case StepFailed:
			logger.Printf("compose agent=%s kind=%s failed: %s", ev.AgentID, ev.AgentKind, ev.Error)
		default:
			logger.Printf("compose agent=%s kind=%s %s component=%s n=%d", ev.AgentID, ev.AgentKind, ev.Step, ev.Component, ev.N)
		}
	}
}

// MultiTracer fans an event out to every non-nil tracer.
func MultiTracer(ts ...Tracer) Tracer {
	var live []Tracer
	for _, t := range ts {
		if t != nil {
			live = append(live, t)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return func(ev TraceEvent) {
		for _, t := range live {
			t(ev)
		}
	}
}
