package components

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"foundation.ai/internal/sim/agents"
)

const (
	BuildName  = "Build"
	GatherName = "Gather"
)

// Build gives embodied agents one "build a house" action.
type Build struct {
	SkillDist                 string  `yaml:"skill_dist"`
	PaymentMaxSkillMultiplier float64 `yaml:"payment_max_skill_multiplier"`
	Payment                   float64 `yaml:"payment"`
}

func NewBuild(params *yaml.Node) (agents.Component, error) {
	b := &Build{SkillDist: "none", PaymentMaxSkillMultiplier: 1, Payment: 10}
	if err := decodeParams(params, b); err != nil {
		return nil, err
	}
	switch b.SkillDist {
	case "none", "pareto", "lognormal":
	default:
		return nil, fmt.Errorf("unknown skill_dist %q", b.SkillDist)
	}
	if b.PaymentMaxSkillMultiplier < 1 {
		return nil, fmt.Errorf("payment_max_skill_multiplier must be >= 1")
	}
	return b, nil
}

func (b *Build) Name() string { return BuildName }

func (b *Build) Contribution(q agents.Query) agents.Contribution {
	if !q.Kind.Embodied() {
		return nil
	}
	return agents.Scalar(1)
}

func (b *Build) StateFields(kind agents.Kind) []agents.Field {
	if !kind.Embodied() {
		return nil
	}
	return []agents.Field{
		{Name: "build_payment", Value: b.Payment},
		{Name: "build_skill", Value: 1.0},
	}
}

// Gather gives embodied agents four movement actions (left, right, up, down).
type Gather struct {
	MoveLaborCost    float64 `yaml:"move_labor"`
	CollectLaborCost float64 `yaml:"collect_labor"`
}

func NewGather(params *yaml.Node) (agents.Component, error) {
	g := &Gather{MoveLaborCost: 1, CollectLaborCost: 1}
	if err := decodeParams(params, g); err != nil {
		return nil, err
	}
	if g.MoveLaborCost < 0 || g.CollectLaborCost < 0 {
		return nil, fmt.Errorf("labor costs must be >= 0")
	}
	return g, nil
}

func (g *Gather) Name() string { return GatherName }

func (g *Gather) Contribution(q agents.Query) agents.Contribution {
	if !q.Kind.Embodied() {
		return nil
	}
	return agents.Scalar(4)
}

func (g *Gather) StateFields(kind agents.Kind) []agents.Field {
	if !kind.Embodied() {
		return nil
	}
	return []agents.Field{{Name: "bonus_gather_prob", Value: 0.0}}
}
