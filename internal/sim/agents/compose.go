package agents

import "strings"

type composeConfig struct {
	tracer          Tracer
	regionSensitive map[string]bool
}

type ComposeOption func(*composeConfig)

func WithTracer(t Tracer) ComposeOption {
	return func(c *composeConfig) { c.tracer = t }
}

// WithRegionSensitive designates additional component names that regional
// planners query with their region.
func WithRegionSensitive(names ...string) ComposeOption {
	return func(c *composeConfig) {
		for _, n := range names {
			c.regionSensitive[n] = true
		}
	}
}

func (c *composeConfig) isRegionSensitive(comp Component) bool {
	if c.regionSensitive[comp.Name()] {
		return true
	}
	rs, ok := comp.(RegionScoped)
	return ok && rs.RegionScoped()
}

func (c *composeConfig) emit(ev TraceEvent) {
	if c.tracer != nil {
		c.tracer(ev)
	}
}

// RegisterComponents composes the agent's action map and state from the
// components, in order. It runs at most once per agent; on error the agent is
// left exactly as it was and may not be used for simulation.
func (a *Agent) RegisterComponents(components []Component, opts ...ComposeOption) error {
	cfg := &composeConfig{regionSensitive: map[string]bool{RegionalTaxOrchestrator: true}}
	for _, o := range opts {
		o(cfg)
	}
	if a.registered {
		err := &AlreadyRegisteredError{AgentID: a.id}
		cfg.emit(TraceEvent{AgentID: a.id, AgentKind: a.kind, Step: StepFailed, Error: err.Error()})
		return err
	}

	var actions actionMap
	state := a.state.Clone()
	if err := a.compose(cfg, components, &actions, state); err != nil {
		cfg.emit(TraceEvent{AgentID: a.id, AgentKind: a.kind, Step: StepFailed, Error: err.Error()})
		return err
	}

	passive, singleFast := false, false
	if actions.len() == 0 && a.multiAction {
		_ = actions.insert(PassivePlaceholder, 0)
		passive = true
		cfg.emit(TraceEvent{AgentID: a.id, AgentKind: a.kind, Step: StepPlaceholder, Action: PassivePlaceholder})
	} else if actions.len() == 1 && !a.multiAction {
		singleFast = true
	}

	total := actions.total()
	noop := make([]HeadVector, actions.len())
	for i, h := range actions.heads {
		noop[i] = HeadVector{Name: h.Name, Values: make([]int, h.N)}
	}
	var premask []float32
	if singleFast {
		premask = make([]float32, total+1)
		for i := range premask {
			premask[i] = 1
		}
		cfg.emit(TraceEvent{AgentID: a.id, AgentKind: a.kind, Step: StepFastPath, Action: actions.heads[0].Name, N: total})
	}

	a.state = state
	a.actions = actions
	a.totalActions = total
	a.noop = noop
	a.passive = passive
	a.singleFast = singleFast
	a.premask = premask
	a.registered = true
	cfg.emit(TraceEvent{AgentID: a.id, AgentKind: a.kind, Step: StepCommitted, N: total})
	return nil
}

func (a *Agent) compose(cfg *composeConfig, components []Component, actions *actionMap, state *State) error {
	for _, comp := range components {
		name := comp.Name()
		q := Query{Kind: a.kind}
		var region *int
		if a.kind == KindMultiPlanner && a.hasRegion && cfg.isRegionSensitive(comp) {
			q.Region, q.HasRegion = a.region, true
			r := a.region
			region = &r
		}

		if err := a.mergeContribution(cfg, name, comp.Contribution(q), region, actions); err != nil {
			return err
		}

		// Field names are not unique across components: the last writer wins.
		for _, f := range comp.StateFields(a.kind) {
			state.Set(f.Name, f.Value)
			cfg.emit(TraceEvent{AgentID: a.id, AgentKind: a.kind, Step: StepState, Component: name, Field: f.Name})
		}
	}
	return nil
}

func (a *Agent) mergeContribution(cfg *composeConfig, name string, contrib Contribution, region *int, actions *actionMap) error {
	switch c := contrib.(type) {
	case nil:
		cfg.emit(TraceEvent{AgentID: a.id, AgentKind: a.kind, Step: StepSkip, Component: name, Region: region})
	case Scalar:
		n := int(c)
		if n < 0 {
			return &UnsupportedContributionError{Component: name, Got: shapeOf(c)}
		}
		if n == 0 {
			cfg.emit(TraceEvent{AgentID: a.id, AgentKind: a.kind, Step: StepSkip, Component: name, Region: region})
			return nil
		}
		if err := actions.insert(name, n); err != nil {
			return err
		}
		cfg.emit(TraceEvent{AgentID: a.id, AgentKind: a.kind, Step: StepAction, Component: name, Action: name, N: n, Region: region})
	case Grouped:
		for _, sub := range c {
			if sub.N < 0 {
				return &UnsupportedContributionError{Component: name, Got: "Grouped sub-action " + sub.Name + " with negative count"}
			}
			if sub.N == 0 {
				continue
			}
			if strings.Contains(sub.Name, Separator) {
				return &InvalidSubActionNameError{Component: name, SubAction: sub.Name}
			}
			qualified := name + Separator + sub.Name
			if err := actions.insert(qualified, sub.N); err != nil {
				return err
			}
			cfg.emit(TraceEvent{AgentID: a.id, AgentKind: a.kind, Step: StepAction, Component: name, Action: qualified, N: sub.N, Region: region})
		}
	default:
		return &UnsupportedContributionError{Component: name, Got: shapeOf(c)}
	}
	return nil
}
