package agents

import "fmt"

// Contribution is the action surface a component offers one agent.
// The set of shapes is closed: nil (absent), Scalar, or Grouped.
type Contribution interface {
	contribution()
}

// Scalar is a single action head named after the component. Zero is equivalent to absent.
type Scalar int

// Grouped is an ordered list of sub-action heads, each qualified as
// component + Separator + label. Zero-count entries are dropped.
type Grouped []SubAction

type SubAction struct {
	Name string
	N    int
}

func (Scalar) contribution()  {}
func (Grouped) contribution() {}

func (s Scalar) String() string { return fmt.Sprintf("Scalar(%d)", int(s)) }

// Query is what a component is asked for one agent. Region is only set for
// regional planners querying a region-sensitive component.
type Query struct {
	Kind      Kind
	Region    int
	HasRegion bool
}

// Component is the capability a pluggable component must provide to take part
// in composition. Both methods must be free of side effects on shared state:
// different agents may be composed concurrently against the same components.
type Component interface {
	Name() string
	Contribution(q Query) Contribution
	StateFields(kind Kind) []Field
}

// RegionScoped marks a component that must be queried with the region of a
// regional planner. The PeriodicTaxBracketMultiOrchestrator name is always scoped.
type RegionScoped interface {
	RegionScoped() bool
}

func shapeOf(c Contribution) string {
	switch v := c.(type) {
	case nil:
		return "absent"
	case Scalar:
		return v.String()
	case Grouped:
		return fmt.Sprintf("Grouped(%d)", len(v))
	default:
		return fmt.Sprintf("%T", c)
	}
}
