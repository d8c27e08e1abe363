package env

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"foundation.ai/internal/persistence/snapshot"
	"foundation.ai/internal/sim/agents"
	"foundation.ai/internal/sim/components"
	"foundation.ai/internal/sim/tuning"
)

func TestBuild_Defaults(t *testing.T) {
	var buf bytes.Buffer
	e, err := Build(tuning.Defaults(), Options{RunID: "run-1", Logger: log.New(&buf, "", 0), Workers: 2})
	require.NoError(t, err)

	all := e.Agents()
	require.Len(t, all, 5)
	ids := make([]string, len(all))
	for i, a := range all {
		ids[i] = a.ID()
		assert.True(t, a.Registered(), a.ID())
	}
	assert.Equal(t, []string{"0", "1", "2", "3", "p"}, ids)
	assert.Equal(t, []string{"Build", "ContinuousDoubleAuction", "Gather", "PeriodicBracketTax"}, e.ComponentNames())

	a0, ok := e.Agent("0")
	require.True(t, ok)
	assert.Equal(t, 6, len(a0.Actions()))
	assert.Equal(t, 1+4*11+4, a0.TotalActions())
	assert.False(t, a0.IsSingleActionFastPath())

	p, ok := e.Agent("p")
	require.True(t, ok)
	require.Len(t, p.Actions(), 7)
	assert.Equal(t, "PeriodicBracketTax.TaxIndexBracket_000", p.Actions()[0].Name)
	assert.Equal(t, "PeriodicBracketTax.TaxIndexBracket_510", p.Actions()[6].Name)

	assert.Contains(t, buf.String(), "run=run-1")
	assert.Contains(t, buf.String(), "agents=4 planners=1")
}

func TestBuild_LocationsAreDeterministic(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.NAgents = 3
	cfg.WorldSize = [2]int{2, 5}
	e, err := Build(cfg, Options{})
	require.NoError(t, err)

	want := []agents.Loc{{0, 0}, {1, 0}, {0, 1}}
	for i, w := range want {
		a := e.Agents()[i]
		loc, err := a.Loc()
		require.NoError(t, err)
		assert.Equal(t, w, loc, a.ID())
	}
}

func TestBuild_RegionalPlanners(t *testing.T) {
	cfg, err := tuning.Parse([]byte(`
n_agents: 3
n_regions: 2
agent_kind: Citizen
planner_kind: MultiPlanner
components:
  - name: Build
  - name: PeriodicTaxBracketMultiOrchestrator
    params:
      n_regions: 2
      bracket_spacing: uniform
      n_brackets: 2
      disabled_regions: [1]
`))
	require.NoError(t, err)

	e, err := Build(cfg, Options{})
	require.NoError(t, err)

	for i, wantNation := range []int{0, 1, 0} {
		a := e.Agents()[i]
		n, ok := a.Nation()
		require.True(t, ok)
		assert.Equal(t, wantNation, n, a.ID())
	}

	p0, ok := e.Agent("p0")
	require.True(t, ok)
	assert.Equal(t, []agents.ActionHead{
		{Name: "PeriodicTaxBracketMultiOrchestrator.TaxIndexBracket_000", N: 21},
		{Name: "PeriodicTaxBracketMultiOrchestrator.TaxIndexBracket_050", N: 21},
	}, p0.Actions())

	p1, ok := e.Agent("p1")
	require.True(t, ok)
	assert.True(t, p1.IsPassivePlaceholder())
	assert.Equal(t, []agents.ActionHead{{Name: agents.PassivePlaceholder, N: 0}}, p1.Actions())
}

func TestBuild_OrchestratorInheritsRegionCount(t *testing.T) {
	cfg, err := tuning.Parse([]byte(`
n_agents: 3
n_regions: 3
agent_kind: Citizen
planner_kind: MultiPlanner
components:
  - name: PeriodicTaxBracketMultiOrchestrator
`))
	require.NoError(t, err)

	e, err := Build(cfg, Options{})
	require.NoError(t, err)
	for _, id := range []string{"p0", "p1", "p2"} {
		p, ok := e.Agent(id)
		require.True(t, ok, id)
		assert.False(t, p.IsPassivePlaceholder(), id)
		assert.Len(t, p.Actions(), 7, id)
	}
}

func TestWithRegionCount_KeepsExplicitParams(t *testing.T) {
	var params yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("{period: 50, n_regions: 2}"), &params))
	body := params.Content[0]

	assert.Same(t, body, withRegionCount(body, 4))

	var partial yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("{period: 50}"), &partial))
	got := withRegionCount(partial.Content[0], 4)
	n, ok := tuning.ParamRegions(got)
	require.True(t, ok)
	assert.Equal(t, 4, n)
	assert.Len(t, partial.Content[0].Content, 2)

	n, ok = tuning.ParamRegions(withRegionCount(nil, 3))
	require.True(t, ok)
	assert.Equal(t, 3, n)
}

func TestBuild_NoPlanner(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.PlannerKind = tuning.PlannerNone
	e, err := Build(cfg, Options{})
	require.NoError(t, err)
	assert.Len(t, e.Agents(), 4)
	_, ok := e.Agent("p")
	assert.False(t, ok)
}

func TestBuild_UnknownComponent(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.Components = append(cfg.Components, tuning.ComponentSpec{Name: "Nope"})
	_, err := Build(cfg, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, components.ErrUnknownComponent))
}

type badLabels struct{}

func (badLabels) Name() string { return "Bad" }
func (badLabels) Contribution(agents.Query) agents.Contribution {
	return agents.Grouped{{Name: "a.b", N: 2}}
}
func (badLabels) StateFields(agents.Kind) []agents.Field { return nil }

func TestBuild_ComposeErrorNamesAgent(t *testing.T) {
	reg := components.Default()
	require.NoError(t, reg.Add("Bad", func(*yaml.Node) (agents.Component, error) { return badLabels{}, nil }))

	cfg := tuning.Defaults()
	cfg.PlannerKind = tuning.PlannerNone
	cfg.Components = []tuning.ComponentSpec{{Name: "Build"}, {Name: "Bad"}}
	_, err := Build(cfg, Options{Registry: reg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compose agent 0:")

	var bad *agents.InvalidSubActionNameError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, "a.b", bad.SubAction)
}

func TestBuild_TracerSeesEveryAgent(t *testing.T) {
	var mu sync.Mutex
	committed := map[string]bool{}
	tracer := func(ev agents.TraceEvent) {
		if ev.Step != agents.StepCommitted {
			return
		}
		mu.Lock()
		committed[ev.AgentID] = true
		mu.Unlock()
	}
	_, err := Build(tuning.Defaults(), Options{Tracer: tracer, Workers: 4})
	require.NoError(t, err)
	assert.Len(t, committed, 5)
}

func TestManifest(t *testing.T) {
	cfg := tuning.Defaults()
	e, err := Build(cfg, Options{RunID: "run-m"})
	require.NoError(t, err)

	m, err := e.Manifest()
	require.NoError(t, err)
	assert.Equal(t, snapshot.Version, m.Header.Version)
	assert.Equal(t, "run-m", m.Header.RunID)
	assert.Equal(t, cfg.Digest(), m.Header.ConfigDigest)
	assert.Equal(t, 5, m.Header.Agents)
	assert.Equal(t, e.ComponentNames(), m.Components)

	a0, ok := m.Agent("0")
	require.True(t, ok)
	assert.Equal(t, "BasicMobileAgent", a0.Kind)
	require.NotEmpty(t, a0.State)
	assert.Equal(t, agents.FieldLoc, a0.State[0].Name)
	var loc [2]int
	require.NoError(t, json.Unmarshal(a0.State[0].JSON, &loc))
	assert.Equal(t, [2]int{0, 0}, loc)

	p, ok := m.Agent("p")
	require.True(t, ok)
	assert.False(t, p.HasRegion)
	assert.Len(t, p.Actions, 7)

	// Recomposing the same config yields the same agents.
	again, err := Build(cfg, Options{RunID: "run-m"})
	require.NoError(t, err)
	m2, err := again.Manifest()
	require.NoError(t, err)
	assert.Empty(t, snapshot.DiffAgents(m.Agents, m2.Agents))
}
