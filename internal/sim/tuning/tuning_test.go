package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multiRegionYAML = `
scenario_name: layout_from_file/simple_wood_and_stone_citizen
n_agents: 6
n_regions: 3
agent_kind: Citizen
planner_kind: MultiPlanner
multi_action_mode_agents: false
multi_action_mode_planner: true
world_size: [25, 36]
components:
  - name: Build
    params:
      skill_dist: pareto
      payment_max_skill_multiplier: 3
  - name: ContinuousDoubleAuction
    params: {max_num_orders: 5}
  - name: Gather
  - name: PeriodicTaxBracketMultiOrchestrator
    params:
      bracket_spacing: us-federal
      period: 100
      n_regions: 3
`

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NAgents)
	assert.Equal(t, "BasicPlanner", cfg.PlannerKind)
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Components, 4)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte(multiRegionYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.NAgents)
	assert.Equal(t, 3, cfg.NRegions)
	assert.Equal(t, "Citizen", cfg.AgentKind)
	assert.Equal(t, "MultiPlanner", cfg.PlannerKind)
	assert.Equal(t, [2]int{25, 36}, cfg.WorldSize)
	assert.Equal(t, 1000, cfg.EpisodeLength)

	require.Len(t, cfg.Components, 4)
	assert.Equal(t, "Build", cfg.Components[0].Name)
	var build struct {
		SkillDist string `yaml:"skill_dist"`
	}
	require.NoError(t, cfg.Components[0].Params.Decode(&build))
	assert.Equal(t, "pareto", build.SkillDist)
	assert.Zero(t, cfg.Components[2].Params.Kind)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"zero agents":          "n_agents: 0\n",
		"unknown agent kind":   "agent_kind: Robot\n",
		"planner as agent":     "agent_kind: BasicPlanner\n",
		"unknown planner kind": "planner_kind: King\n",
		"dotted component":     "components: [{name: Trade.buy}]\n",
		"empty component":      "components: [{name: ''}]\n",
		"duplicate component":  "components: [{name: Build}, {name: Build}]\n",
		"orchestrator planner": "components: [{name: PeriodicTaxBracketMultiOrchestrator}]\n",
		"bad world size":       "world_size: [0, 10]\n",
		"bad yaml":             "n_agents: [\n",
	}
	for name, src := range cases {
		_, err := Parse([]byte(src))
		assert.Error(t, err, name)
	}
}

func TestParse_OrchestratorRegionMismatch(t *testing.T) {
	_, err := Parse([]byte(`
n_regions: 3
planner_kind: MultiPlanner
components:
  - name: PeriodicTaxBracketMultiOrchestrator
    params: {n_regions: 2}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "n_regions 2 does not match n_regions 3")

	cfg, err := Parse([]byte(`
n_regions: 3
planner_kind: MultiPlanner
components:
  - name: PeriodicTaxBracketMultiOrchestrator
`))
	require.NoError(t, err)
	_, ok := ParamRegions(&cfg.Components[0].Params)
	assert.False(t, ok)
}

func TestParse_PlannerNone(t *testing.T) {
	cfg, err := Parse([]byte("planner_kind: ''\n"))
	require.NoError(t, err)
	assert.Equal(t, PlannerNone, cfg.PlannerKind)

	cfg, err = Parse([]byte("n_regions: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.NRegions)
}

func TestDigest(t *testing.T) {
	a, err := Parse([]byte(multiRegionYAML))
	require.NoError(t, err)
	b, err := Parse([]byte(multiRegionYAML))
	require.NoError(t, err)
	require.NotEmpty(t, a.Digest())
	assert.Equal(t, a.Digest(), b.Digest())

	b.NAgents++
	assert.NotEqual(t, a.Digest(), b.Digest())

	c, err := Parse([]byte(multiRegionYAML))
	require.NoError(t, err)
	require.NoError(t, c.Components[0].Params.Encode(map[string]any{"skill_dist": "none"}))
	assert.NotEqual(t, a.Digest(), c.Digest())
}
