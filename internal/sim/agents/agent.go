// Package agents holds the agent record and the engine that composes an
// agent's action space and state from an ordered list of components.
package agents

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind names an agent implementation.
type Kind string

const (
	KindBasicMobile  Kind = "BasicMobileAgent"
	KindCitizen      Kind = "Citizen"
	KindBasicPlanner Kind = "BasicPlanner"
	KindMultiPlanner Kind = "MultiPlanner"
)

// Embodied kinds occupy a location in the world; planners do not.
func (k Kind) Embodied() bool {
	return k == KindBasicMobile || k == KindCitizen
}

func (k Kind) Planner() bool {
	return k == KindBasicPlanner || k == KindMultiPlanner
}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(s)); k {
	case KindBasicMobile, KindCitizen, KindBasicPlanner, KindMultiPlanner:
		return k, nil
	}
	return "", fmt.Errorf("unknown agent kind %q", s)
}

const (
	// PlannerID is the fixed identity of the single BasicPlanner. Regional
	// planners are PlannerID followed by the region number ("p0", "p1", ...).
	PlannerID = "p"

	// Separator joins a component name and a sub-action label.
	Separator = "."

	// PassivePlaceholder is the zero-width head given to multi-action agents
	// that received no actions from any component.
	PassivePlaceholder = "PassiveAgentPlaceholder"

	// RegionalTaxOrchestrator is queried with the region of each regional planner.
	RegionalTaxOrchestrator = "PeriodicTaxBracketMultiOrchestrator"

	FieldLoc    = "loc"
	FieldNation = "nation"
)

// Loc is a (row, col) world position.
type Loc [2]int

// Spec describes an agent to construct.
type Spec struct {
	Kind        Kind
	ID          string
	MultiAction bool

	// Loc seeds the location field of embodied kinds; ignored for planners.
	Loc Loc
	// State is applied after kind seeding, in order.
	State []Field
}

// Agent is one simulated actor: its identity, persistent state and, once
// components are registered, its composed action interface.
type Agent struct {
	id          string
	kind        Kind
	multiAction bool

	region    int
	hasRegion bool

	state *State

	registered   bool
	actions      actionMap
	totalActions int
	noop         []HeadVector
	passive      bool
	singleFast   bool
	premask      []float32
}

// New builds an agent of spec.Kind, applying the identity and state rules of that kind.
func New(spec Spec) (*Agent, error) {
	a := &Agent{
		id:          spec.ID,
		kind:        spec.Kind,
		multiAction: spec.MultiAction,
		state:       NewState(),
	}
	switch spec.Kind {
	case KindBasicMobile:
		a.state.Set(FieldLoc, spec.Loc)
	case KindCitizen:
		a.state.Set(FieldLoc, spec.Loc)
		a.state.Set(FieldNation, 0)
	case KindBasicPlanner:
		// Only one planner is expected per simulation; it is always addressed as "p".
		a.id = PlannerID
	case KindMultiPlanner:
		region, err := ParseRegion(spec.ID)
		if err != nil {
			return nil, err
		}
		a.region = region
		a.hasRegion = true
	default:
		return nil, fmt.Errorf("unknown agent kind %q", spec.Kind)
	}
	for _, f := range spec.State {
		if f.Name == FieldLoc && !a.kind.Embodied() {
			return nil, fmt.Errorf("%s agents have no %s field", a.kind, FieldLoc)
		}
		a.state.Set(f.Name, f.Value)
	}
	return a, nil
}

func NewBasicMobile(id string, multiAction bool, loc Loc) *Agent {
	a, _ := New(Spec{Kind: KindBasicMobile, ID: id, MultiAction: multiAction, Loc: loc})
	return a
}

func NewCitizen(id string, multiAction bool, loc Loc) *Agent {
	a, _ := New(Spec{Kind: KindCitizen, ID: id, MultiAction: multiAction, Loc: loc})
	return a
}

// NewBasicPlanner ignores requestedID; see PlannerID.
func NewBasicPlanner(requestedID string, multiAction bool) *Agent {
	a, _ := New(Spec{Kind: KindBasicPlanner, ID: requestedID, MultiAction: multiAction})
	return a
}

// NewMultiPlanner parses the region from an identity of the form "p<N>".
func NewMultiPlanner(id string, multiAction bool) (*Agent, error) {
	return New(Spec{Kind: KindMultiPlanner, ID: id, MultiAction: multiAction})
}

func NewRegionalPlanner(region int, multiAction bool) (*Agent, error) {
	if region < 0 {
		return nil, &MalformedIdentityError{ID: RegionalPlannerID(region), Reason: "negative region"}
	}
	return NewMultiPlanner(RegionalPlannerID(region), multiAction)
}

func RegionalPlannerID(region int) string {
	return PlannerID + strconv.Itoa(region)
}

// ParseRegion extracts N from a regional planner identity "p<N>".
func ParseRegion(id string) (int, error) {
	if !strings.HasPrefix(id, PlannerID) {
		return 0, &MalformedIdentityError{ID: id, Reason: "missing planner prefix"}
	}
	suffix := id[len(PlannerID):]
	if suffix == "" {
		return 0, &MalformedIdentityError{ID: id, Reason: "missing region number"}
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, &MalformedIdentityError{ID: id, Reason: "region suffix is not a non-negative integer"}
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, &MalformedIdentityError{ID: id, Reason: err.Error()}
	}
	if RegionalPlannerID(n) != id {
		return 0, &MalformedIdentityError{ID: id, Reason: "region number is not canonical"}
	}
	return n, nil
}

func (a *Agent) ID() string        { return a.id }
func (a *Agent) Kind() Kind        { return a.kind }
func (a *Agent) MultiAction() bool { return a.multiAction }
func (a *Agent) Registered() bool  { return a.registered }

// State is the live state mapping. Callers must not use it while RegisterComponents runs.
func (a *Agent) State() *State { return a.state }

// Loc fails with *NoLocationError for planners.
func (a *Agent) Loc() (Loc, error) {
	if !a.kind.Embodied() {
		return Loc{}, &NoLocationError{AgentID: a.id, Kind: a.kind}
	}
	v, ok := a.state.Get(FieldLoc)
	if !ok {
		return Loc{}, &NoLocationError{AgentID: a.id, Kind: a.kind}
	}
	loc, ok := v.(Loc)
	if !ok {
		return Loc{}, fmt.Errorf("agent %s: loc has type %T", a.id, v)
	}
	return loc, nil
}

func (a *Agent) SetLoc(loc Loc) error {
	if !a.kind.Embodied() {
		return &NoLocationError{AgentID: a.id, Kind: a.kind}
	}
	a.state.Set(FieldLoc, loc)
	return nil
}

// Nation reports the nation index of a citizen.
func (a *Agent) Nation() (int, bool) {
	v, ok := a.state.Get(FieldNation)
	if !ok {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

// Region reports the region of a regional planner.
func (a *Agent) Region() (int, bool) {
	return a.region, a.hasRegion
}
