package components

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"foundation.ai/internal/sim/agents"
)

const BracketTaxName = "PeriodicBracketTax"

var usFederalCutoffs = []float64{0, 9700, 39475, 84200, 160725, 204100, 510300}

// bracketSchedule describes marginal tax brackets. The planner gets one head
// per bracket choosing a discretized rate.
type bracketSchedule struct {
	Spacing          string  `yaml:"bracket_spacing"`
	NBrackets        int     `yaml:"n_brackets"`
	TopBracketCutoff float64 `yaml:"top_bracket_cutoff"`
	USDScaling       float64 `yaml:"usd_scaling"`
	RateMax          float64 `yaml:"rate_max"`
	RateDisc         float64 `yaml:"rate_disc"`
}

func defaultSchedule() bracketSchedule {
	return bracketSchedule{
		Spacing:          "us-federal",
		NBrackets:        5,
		TopBracketCutoff: 100,
		USDScaling:       1000,
		RateMax:          1,
		RateDisc:         0.05,
	}
}

func (s bracketSchedule) cutoffs() ([]float64, error) {
	switch s.Spacing {
	case "us-federal":
		if s.USDScaling <= 0 {
			return nil, fmt.Errorf("usd_scaling must be > 0")
		}
		out := make([]float64, len(usFederalCutoffs))
		for i, c := range usFederalCutoffs {
			out[i] = c / s.USDScaling
		}
		return out, nil
	case "uniform":
		if s.NBrackets < 1 || s.TopBracketCutoff <= 0 {
			return nil, fmt.Errorf("uniform spacing needs n_brackets >= 1 and top_bracket_cutoff > 0")
		}
		out := make([]float64, s.NBrackets)
		for i := range out {
			out[i] = float64(i) * s.TopBracketCutoff / float64(s.NBrackets)
		}
		return out, nil
	case "log":
		if s.NBrackets < 2 || s.TopBracketCutoff <= 0 {
			return nil, fmt.Errorf("log spacing needs n_brackets >= 2 and top_bracket_cutoff > 0")
		}
		out := make([]float64, s.NBrackets)
		for i := 1; i < s.NBrackets; i++ {
			out[i] = s.TopBracketCutoff * math.Pow(2, float64(i-(s.NBrackets-1)))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown bracket_spacing %q", s.Spacing)
}

func (s bracketSchedule) nRates() (int, error) {
	if s.RateMax <= 0 || s.RateDisc <= 0 || s.RateDisc > s.RateMax {
		return 0, fmt.Errorf("need 0 < rate_disc <= rate_max")
	}
	return int(math.Round(s.RateMax/s.RateDisc)) + 1, nil
}

// heads builds one "TaxIndexBracket_NNN" head per cutoff, labelled by the
// integer cutoff. Cutoffs must stay distinct after truncation.
func (s bracketSchedule) heads() (agents.Grouped, error) {
	cutoffs, err := s.cutoffs()
	if err != nil {
		return nil, err
	}
	n, err := s.nRates()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make(agents.Grouped, 0, len(cutoffs))
	for _, c := range cutoffs {
		label := fmt.Sprintf("TaxIndexBracket_%03d", int(c))
		if seen[label] {
			return nil, fmt.Errorf("bracket cutoffs collide at %s", label)
		}
		seen[label] = true
		out = append(out, agents.SubAction{Name: label, N: n})
	}
	return out, nil
}

// PeriodicBracketTax lets the single BasicPlanner set a bracket schedule every Period steps.
type PeriodicBracketTax struct {
	Period       int  `yaml:"period"`
	DisableTaxes bool `yaml:"disable_taxes"`

	bracketSchedule `yaml:",inline"`

	heads agents.Grouped
}

func NewPeriodicBracketTax(params *yaml.Node) (agents.Component, error) {
	t := &PeriodicBracketTax{Period: 100, bracketSchedule: defaultSchedule()}
	if err := decodeParams(params, t); err != nil {
		return nil, err
	}
	if t.Period < 1 {
		return nil, fmt.Errorf("period must be >= 1")
	}
	heads, err := t.bracketSchedule.heads()
	if err != nil {
		return nil, err
	}
	t.heads = heads
	return t, nil
}

func (t *PeriodicBracketTax) Name() string { return BracketTaxName }

func (t *PeriodicBracketTax) Contribution(q agents.Query) agents.Contribution {
	if q.Kind != agents.KindBasicPlanner || t.DisableTaxes {
		return nil
	}
	return append(agents.Grouped(nil), t.heads...)
}

func (t *PeriodicBracketTax) StateFields(agents.Kind) []agents.Field { return nil }

// PeriodicTaxBracketMultiOrchestrator runs one bracket schedule per region.
// Each regional planner only sees the heads of its own region.
type PeriodicTaxBracketMultiOrchestrator struct {
	Period          int            `yaml:"period"`
	NRegions        int            `yaml:"n_regions"`
	DisabledRegions []int          `yaml:"disabled_regions"`
	RegionSpacing   map[int]string `yaml:"region_bracket_spacing"`

	bracketSchedule `yaml:",inline"`

	byRegion []agents.Grouped
}

func NewPeriodicTaxBracketMultiOrchestrator(params *yaml.Node) (agents.Component, error) {
	t := &PeriodicTaxBracketMultiOrchestrator{Period: 100, NRegions: 1, bracketSchedule: defaultSchedule()}
	if err := decodeParams(params, t); err != nil {
		return nil, err
	}
	if t.Period < 1 {
		return nil, fmt.Errorf("period must be >= 1")
	}
	if t.NRegions < 1 {
		return nil, fmt.Errorf("n_regions must be >= 1")
	}
	for r := range t.RegionSpacing {
		if r < 0 || r >= t.NRegions {
			return nil, fmt.Errorf("region_bracket_spacing: region %d out of range", r)
		}
	}
	disabled := map[int]bool{}
	for _, r := range t.DisabledRegions {
		if r < 0 || r >= t.NRegions {
			return nil, fmt.Errorf("disabled_regions: region %d out of range", r)
		}
		disabled[r] = true
	}

	t.byRegion = make([]agents.Grouped, t.NRegions)
	for r := 0; r < t.NRegions; r++ {
		if disabled[r] {
			continue
		}
		sched := t.bracketSchedule
		if sp, ok := t.RegionSpacing[r]; ok {
			sched.Spacing = sp
		}
		heads, err := sched.heads()
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", r, err)
		}
		t.byRegion[r] = heads
	}
	return t, nil
}

func (t *PeriodicTaxBracketMultiOrchestrator) Name() string { return agents.RegionalTaxOrchestrator }

func (t *PeriodicTaxBracketMultiOrchestrator) RegionScoped() bool { return true }

func (t *PeriodicTaxBracketMultiOrchestrator) Contribution(q agents.Query) agents.Contribution {
	if q.Kind != agents.KindMultiPlanner || !q.HasRegion {
		return nil
	}
	if q.Region < 0 || q.Region >= len(t.byRegion) || t.byRegion[q.Region] == nil {
		return nil
	}
	return append(agents.Grouped(nil), t.byRegion[q.Region]...)
}

func (t *PeriodicTaxBracketMultiOrchestrator) StateFields(agents.Kind) []agents.Field { return nil }
