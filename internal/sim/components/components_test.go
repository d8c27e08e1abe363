package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"foundation.ai/internal/sim/agents"
)

func params(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	require.Len(t, doc.Content, 1)
	return doc.Content[0]
}

func TestRegistry_AddRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("Build", NewBuild))
	err := r.Add("Build", NewGather)
	assert.ErrorIs(t, err, ErrDuplicateName)

	assert.Error(t, r.Add("", NewBuild))
	assert.Error(t, r.Add("Bad.Name", NewBuild))
	assert.Error(t, r.Add("NilCtor", nil))
}

func TestRegistry_Build(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{BuildName, AuctionName, GatherName, BracketTaxName, agents.RegionalTaxOrchestrator}, r.Names())

	_, err := r.Build("Teleport", nil)
	assert.ErrorIs(t, err, ErrUnknownComponent)

	c, err := r.Build(BuildName, params(t, "skill_dist: pareto\npayment_max_skill_multiplier: 3\n"))
	require.NoError(t, err)
	b := c.(*Build)
	assert.Equal(t, "pareto", b.SkillDist)
	assert.Equal(t, 3.0, b.PaymentMaxSkillMultiplier)
	assert.Equal(t, 10.0, b.Payment)

	_, err = r.Build(BuildName, params(t, "skill_dist: cauchy\n"))
	assert.Error(t, err)
}

func TestRegistry_BuildRejectsMisnamedComponent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("Alias", NewGather))
	_, err := r.Build("Alias", nil)
	assert.Error(t, err)
}

func TestBuildAndGather_EmbodiedOnly(t *testing.T) {
	b, err := NewBuild(nil)
	require.NoError(t, err)
	g, err := NewGather(nil)
	require.NoError(t, err)

	for _, k := range []agents.Kind{agents.KindBasicMobile, agents.KindCitizen} {
		assert.Equal(t, agents.Scalar(1), b.Contribution(agents.Query{Kind: k}))
		assert.Equal(t, agents.Scalar(4), g.Contribution(agents.Query{Kind: k}))
		assert.Len(t, b.StateFields(k), 2)
	}
	for _, k := range []agents.Kind{agents.KindBasicPlanner, agents.KindMultiPlanner} {
		assert.Nil(t, b.Contribution(agents.Query{Kind: k}))
		assert.Nil(t, g.Contribution(agents.Query{Kind: k}))
		assert.Empty(t, g.StateFields(k))
	}
}

func TestAuction_Heads(t *testing.T) {
	c, err := NewContinuousDoubleAuction(params(t, "max_bid_ask: 3\nresources: [Wood]\n"))
	require.NoError(t, err)
	assert.Equal(t, agents.Grouped{{Name: "Buy_Wood", N: 4}, {Name: "Sell_Wood", N: 4}},
		c.Contribution(agents.Query{Kind: agents.KindCitizen}))
	assert.Nil(t, c.Contribution(agents.Query{Kind: agents.KindBasicPlanner}))

	_, err = NewContinuousDoubleAuction(params(t, "max_bid_ask: 0\n"))
	assert.Error(t, err)
	_, err = NewContinuousDoubleAuction(params(t, "resources: []\n"))
	assert.Error(t, err)
}

func TestBracketSchedules(t *testing.T) {
	cases := []struct {
		spacing string
		labels  []string
	}{
		{"us-federal", []string{"000", "009", "039", "084", "160", "204", "510"}},
		{"uniform", []string{"000", "020", "040", "060", "080"}},
		{"log", []string{"000", "012", "025", "050", "100"}},
	}
	for _, tc := range cases {
		s := defaultSchedule()
		s.Spacing = tc.spacing
		heads, err := s.heads()
		require.NoError(t, err, tc.spacing)
		require.Len(t, heads, len(tc.labels), tc.spacing)
		for i, h := range heads {
			assert.Equal(t, "TaxIndexBracket_"+tc.labels[i], h.Name)
			assert.Equal(t, 21, h.N)
		}
	}

	s := defaultSchedule()
	s.Spacing = "fibonacci"
	_, err := s.heads()
	assert.Error(t, err)

	s = defaultSchedule()
	s.Spacing = "uniform"
	s.NBrackets = 50
	s.TopBracketCutoff = 10
	_, err = s.heads()
	assert.Error(t, err, "truncated cutoffs collide")
}

func TestPeriodicBracketTax(t *testing.T) {
	c, err := NewPeriodicBracketTax(params(t, "bracket_spacing: uniform\nn_brackets: 3\nrate_disc: 0.25\n"))
	require.NoError(t, err)
	got := c.Contribution(agents.Query{Kind: agents.KindBasicPlanner})
	assert.Equal(t, agents.Grouped{
		{Name: "TaxIndexBracket_000", N: 5},
		{Name: "TaxIndexBracket_033", N: 5},
		{Name: "TaxIndexBracket_066", N: 5},
	}, got)
	assert.Nil(t, c.Contribution(agents.Query{Kind: agents.KindMultiPlanner, HasRegion: true}))
	assert.Nil(t, c.Contribution(agents.Query{Kind: agents.KindBasicMobile}))

	off, err := NewPeriodicBracketTax(params(t, "disable_taxes: true\n"))
	require.NoError(t, err)
	assert.Nil(t, off.Contribution(agents.Query{Kind: agents.KindBasicPlanner}))

	_, err = NewPeriodicBracketTax(params(t, "period: 0\n"))
	assert.Error(t, err)
}

func TestMultiOrchestrator_PerRegion(t *testing.T) {
	c, err := NewPeriodicTaxBracketMultiOrchestrator(params(t, `
n_regions: 3
disabled_regions: [1]
region_bracket_spacing:
  2: log
`))
	require.NoError(t, err)
	scoped, ok := c.(agents.RegionScoped)
	require.True(t, ok)
	assert.True(t, scoped.RegionScoped())

	r0 := c.Contribution(agents.Query{Kind: agents.KindMultiPlanner, Region: 0, HasRegion: true})
	assert.Len(t, r0, 7)
	assert.Nil(t, c.Contribution(agents.Query{Kind: agents.KindMultiPlanner, Region: 1, HasRegion: true}))
	r2 := c.Contribution(agents.Query{Kind: agents.KindMultiPlanner, Region: 2, HasRegion: true})
	assert.Len(t, r2, 5)
	assert.Nil(t, c.Contribution(agents.Query{Kind: agents.KindMultiPlanner, Region: 3, HasRegion: true}))
	assert.Nil(t, c.Contribution(agents.Query{Kind: agents.KindMultiPlanner}))
	assert.Nil(t, c.Contribution(agents.Query{Kind: agents.KindBasicPlanner, Region: 0, HasRegion: true}))

	_, err = NewPeriodicTaxBracketMultiOrchestrator(params(t, "n_regions: 2\ndisabled_regions: [5]\n"))
	assert.Error(t, err)
	_, err = NewPeriodicTaxBracketMultiOrchestrator(params(t, "n_regions: 0\n"))
	assert.Error(t, err)
}

func TestComposeWithBuiltins(t *testing.T) {
	r := Default()
	var list []agents.Component
	for _, name := range []string{BuildName, AuctionName, GatherName, agents.RegionalTaxOrchestrator} {
		var p *yaml.Node
		if name == agents.RegionalTaxOrchestrator {
			p = params(t, "n_regions: 2\nbracket_spacing: uniform\nn_brackets: 2\n")
		}
		c, err := r.Build(name, p)
		require.NoError(t, err)
		list = append(list, c)
	}

	citizen := agents.NewCitizen("0", false, agents.Loc{})
	require.NoError(t, citizen.RegisterComponents(list))
	assert.Equal(t, []agents.ActionHead{
		{Name: "Build", N: 1},
		{Name: "ContinuousDoubleAuction.Buy_Wood", N: 11},
		{Name: "ContinuousDoubleAuction.Sell_Wood", N: 11},
		{Name: "ContinuousDoubleAuction.Buy_Stone", N: 11},
		{Name: "ContinuousDoubleAuction.Sell_Stone", N: 11},
		{Name: "Gather", N: 4},
	}, citizen.Actions())
	assert.Equal(t, []string{agents.FieldLoc, agents.FieldNation, "build_payment", "build_skill", "bonus_gather_prob"}, citizen.State().Keys())

	planner, err := agents.NewRegionalPlanner(1, true)
	require.NoError(t, err)
	require.NoError(t, planner.RegisterComponents(list))
	assert.Equal(t, []agents.ActionHead{
		{Name: agents.RegionalTaxOrchestrator + ".TaxIndexBracket_000", N: 21},
		{Name: agents.RegionalTaxOrchestrator + ".TaxIndexBracket_050", N: 21},
	}, planner.Actions())
}
