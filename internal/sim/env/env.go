// Package env builds the agents of one environment and composes each of them
// against the configured component list.
package env

import (
	"encoding/json"
	"fmt"
	"log"
	"runtime"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"foundation.ai/internal/persistence/snapshot"
	"foundation.ai/internal/sim/agents"
	"foundation.ai/internal/sim/components"
	"foundation.ai/internal/sim/tuning"
)

type Options struct {
	// Registry resolves component names. Defaults to components.Default().
	Registry *components.Registry
	// Tracer receives composition events; it must be safe for concurrent use when Workers > 1.
	Tracer agents.Tracer
	Logger *log.Logger
	// RunID defaults to a random UUID.
	RunID string
	// Workers bounds parallel composition. Defaults to GOMAXPROCS.
	Workers int
}

type Env struct {
	RunID  string
	Config tuning.EnvConfig

	components []agents.Component
	agents     []*agents.Agent
	byID       map[string]*agents.Agent
}

// Build resolves the component list, creates every agent and composes it.
// Agents are ordered "0".."n-1" followed by the planners.
func Build(cfg tuning.EnvConfig, opts Options) (*Env, error) {
	reg := opts.Registry
	if reg == nil {
		reg = components.Default()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	nRegions := cfg.NRegions
	if nRegions <= 0 {
		nRegions = 1
	}
	comps, err := resolveComponents(reg, cfg.Components, nRegions)
	if err != nil {
		return nil, err
	}
	list, err := newAgents(cfg)
	if err != nil {
		return nil, err
	}
	if err := composeAll(list, comps, opts.Tracer, opts.Workers); err != nil {
		return nil, err
	}

	e := &Env{
		RunID:      runID,
		Config:     cfg,
		components: comps,
		agents:     list,
		byID:       make(map[string]*agents.Agent, len(list)),
	}
	planners := 0
	for _, a := range list {
		e.byID[a.ID()] = a
		if a.Kind().Planner() {
			planners++
		}
	}
	if opts.Logger != nil {
		opts.Logger.Printf("env run=%s scenario=%s agents=%d planners=%d components=%d",
			runID, cfg.ScenarioName, len(list)-planners, planners, len(comps))
	}
	return e, nil
}

func resolveComponents(reg *components.Registry, specs []tuning.ComponentSpec, nRegions int) ([]agents.Component, error) {
	out := make([]agents.Component, 0, len(specs))
	for i := range specs {
		var params = &specs[i].Params
		if params.Kind == 0 {
			params = nil
		}
		if specs[i].Name == agents.RegionalTaxOrchestrator {
			params = withRegionCount(params, nRegions)
		}
		c, err := reg.Build(specs[i].Name, params)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// withRegionCount fills in the orchestrator's n_regions from the env when the
// params leave it out, so every regional planner gets its own schedule.
func withRegionCount(params *yaml.Node, nRegions int) *yaml.Node {
	if _, ok := tuning.ParamRegions(params); ok {
		return params
	}
	if params != nil && params.Kind != yaml.MappingNode {
		return params
	}
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if params != nil {
		cp := *params
		cp.Content = append([]*yaml.Node(nil), params.Content...)
		out = &cp
	}
	out.Content = append(out.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "n_regions"},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(nRegions)},
	)
	return out
}

func newAgents(cfg tuning.EnvConfig) ([]*agents.Agent, error) {
	kind, err := agents.ParseKind(cfg.AgentKind)
	if err != nil {
		return nil, err
	}
	if !kind.Embodied() {
		return nil, fmt.Errorf("agent_kind %s is not embodied", kind)
	}
	h, w := cfg.WorldSize[0], cfg.WorldSize[1]
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("world_size must be positive")
	}
	nRegions := cfg.NRegions
	if nRegions <= 0 {
		nRegions = 1
	}

	out := make([]*agents.Agent, 0, cfg.NAgents+nRegions)
	for i := 0; i < cfg.NAgents; i++ {
		spec := agents.Spec{
			Kind:        kind,
			ID:          strconv.Itoa(i),
			MultiAction: cfg.MultiActionModeAgents,
			Loc:         agents.Loc{i % h, (i / h) % w},
		}
		if kind == agents.KindCitizen {
			spec.State = []agents.Field{{Name: agents.FieldNation, Value: i % nRegions}}
		}
		a, err := agents.New(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	switch cfg.PlannerKind {
	case tuning.PlannerNone, "":
	case string(agents.KindBasicPlanner):
		out = append(out, agents.NewBasicPlanner(agents.PlannerID, cfg.MultiActionModePlanner))
	case string(agents.KindMultiPlanner):
		for r := 0; r < nRegions; r++ {
			p, err := agents.NewRegionalPlanner(r, cfg.MultiActionModePlanner)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	default:
		return nil, fmt.Errorf("unknown planner_kind %q", cfg.PlannerKind)
	}
	return out, nil
}

// composeAll composes distinct agents in parallel. Components are only read.
func composeAll(list []*agents.Agent, comps []agents.Component, tracer agents.Tracer, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(list) {
		workers = len(list)
	}
	errs := make([]error, len(list))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = list[i].RegisterComponents(comps, agents.WithTracer(tracer))
			}
		}()
	}
	for i := range list {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("compose agent %s: %w", list[i].ID(), err)
		}
	}
	return nil
}

func (e *Env) Agents() []*agents.Agent {
	return append([]*agents.Agent(nil), e.agents...)
}

func (e *Env) Agent(id string) (*agents.Agent, bool) {
	a, ok := e.byID[id]
	return a, ok
}

func (e *Env) ComponentNames() []string {
	out := make([]string, len(e.components))
	for i, c := range e.components {
		out[i] = c.Name()
	}
	return out
}

// Manifest exports every composed agent.
func (e *Env) Manifest() (snapshot.ManifestV1, error) {
	m := snapshot.ManifestV1{
		Header: snapshot.Header{
			Version:      snapshot.Version,
			RunID:        e.RunID,
			Scenario:     e.Config.ScenarioName,
			ConfigDigest: e.Config.Digest(),
			Agents:       len(e.agents),
		},
		Components: e.ComponentNames(),
		Agents:     make([]snapshot.AgentV1, 0, len(e.agents)),
	}
	for _, a := range e.agents {
		av, err := ExportAgent(a)
		if err != nil {
			return m, err
		}
		m.Agents = append(m.Agents, av)
	}
	return m, nil
}

func ExportAgent(a *agents.Agent) (snapshot.AgentV1, error) {
	region, hasRegion := a.Region()
	av := snapshot.AgentV1{
		ID:           a.ID(),
		Kind:         string(a.Kind()),
		MultiAction:  a.MultiAction(),
		Region:       region,
		HasRegion:    hasRegion,
		TotalActions: a.TotalActions(),
		Passive:      a.IsPassivePlaceholder(),
		SingleFast:   a.IsSingleActionFastPath(),
	}
	for _, h := range a.Actions() {
		av.Actions = append(av.Actions, snapshot.ActionHeadV1{Name: h.Name, N: h.N})
	}
	for _, f := range a.State().Fields() {
		b, err := json.Marshal(f.Value)
		if err != nil {
			return av, fmt.Errorf("agent %s: state field %s: %w", a.ID(), f.Name, err)
		}
		av.State = append(av.State, snapshot.StateFieldV1{Name: f.Name, JSON: b})
	}
	return av, nil
}
