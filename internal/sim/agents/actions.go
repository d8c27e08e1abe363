package agents

import "fmt"

// ActionHead is one addressable action with N discrete choices.
type ActionHead struct {
	Name string
	N    int
}

// HeadVector is a per-head vector, e.g. the all-zero "choose nothing" selection.
type HeadVector struct {
	Name   string
	Values []int
}

// FlatAction maps a flat single-head index to a head and the choice within it.
type FlatAction struct {
	Index  int
	Name   string
	Choice int
}

// HeadChoice is the decoded choice for one head; 0 means no-op.
type HeadChoice struct {
	Name   string
	Choice int
}

// actionMap is ordered by first insertion; that order fixes action indices.
type actionMap struct {
	heads []ActionHead
	index map[string]int
}

func (m *actionMap) insert(name string, n int) error {
	if m.index == nil {
		m.index = map[string]int{}
	}
	if _, ok := m.index[name]; ok {
		return &DuplicateActionNameError{Name: name}
	}
	m.index[name] = len(m.heads)
	m.heads = append(m.heads, ActionHead{Name: name, N: n})
	return nil
}

func (m *actionMap) len() int { return len(m.heads) }

func (m *actionMap) total() int {
	t := 0
	for _, h := range m.heads {
		t += h.N
	}
	return t
}

// Actions returns the composed action map in index order.
func (a *Agent) Actions() []ActionHead {
	return append([]ActionHead(nil), a.actions.heads...)
}

func (a *Agent) ActionCount(name string) (int, bool) {
	i, ok := a.actions.index[name]
	if !ok {
		return 0, false
	}
	return a.actions.heads[i].N, true
}

func (a *Agent) TotalActions() int { return a.totalActions }

func (a *Agent) IsPassivePlaceholder() bool   { return a.passive }
func (a *Agent) IsSingleActionFastPath() bool { return a.singleFast }

// Premask returns a copy of the all-ones mask precomputed for single-head
// agents with exactly one action head. Slot 0 is the no-op.
func (a *Agent) Premask() ([]float32, bool) {
	if !a.singleFast {
		return nil, false
	}
	return append([]float32(nil), a.premask...), true
}

// NoOpAction has one all-zero vector per head, each as wide as the head.
func (a *Agent) NoOpAction() ([]HeadVector, error) {
	if !a.registered {
		return nil, ErrNotRegistered
	}
	out := make([]HeadVector, len(a.noop))
	for i, h := range a.noop {
		out[i] = HeadVector{Name: h.Name, Values: append([]int{}, h.Values...)}
	}
	return out, nil
}

// ActionSpaces is the size of each space the policy samples from: one per
// head (N choices plus no-op) in multi-action mode, otherwise a single space
// of TotalActions plus no-op.
func (a *Agent) ActionSpaces() ([]int, error) {
	if !a.registered {
		return nil, ErrNotRegistered
	}
	if !a.multiAction {
		return []int{a.totalActions + 1}, nil
	}
	out := make([]int, len(a.actions.heads))
	for i, h := range a.actions.heads {
		out[i] = h.N + 1
	}
	return out, nil
}

// SingleActionMap enumerates flat indices 1..TotalActions in head order.
func (a *Agent) SingleActionMap() ([]FlatAction, error) {
	if !a.registered {
		return nil, ErrNotRegistered
	}
	out := make([]FlatAction, 0, a.totalActions)
	idx := 1
	for _, h := range a.actions.heads {
		for c := 1; c <= h.N; c++ {
			out = append(out, FlatAction{Index: idx, Name: h.Name, Choice: c})
			idx++
		}
	}
	return out, nil
}

// ParseAction decodes raw policy output into one choice per head.
// Multi-action agents pass one value per head; single-action agents pass one flat index.
func (a *Agent) ParseAction(raw []int) ([]HeadChoice, error) {
	if !a.registered {
		return nil, ErrNotRegistered
	}
	out := make([]HeadChoice, len(a.actions.heads))
	for i, h := range a.actions.heads {
		out[i] = HeadChoice{Name: h.Name}
	}

	if a.multiAction {
		if len(raw) != len(a.actions.heads) {
			return nil, fmt.Errorf("%w: got %d values for %d heads", ErrBadAction, len(raw), len(a.actions.heads))
		}
		for i, v := range raw {
			h := a.actions.heads[i]
			if v < 0 || v > h.N {
				return nil, fmt.Errorf("%w: %s choice %d out of range [0,%d]", ErrBadAction, h.Name, v, h.N)
			}
			out[i].Choice = v
		}
		return out, nil
	}

	if len(raw) != 1 {
		return nil, fmt.Errorf("%w: single-action agent expects 1 value, got %d", ErrBadAction, len(raw))
	}
	v := raw[0]
	if v < 0 || v > a.totalActions {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d]", ErrBadAction, v, a.totalActions)
	}
	if v == 0 {
		return out, nil
	}
	offset := 0
	for i, h := range a.actions.heads {
		if v <= offset+h.N {
			out[i].Choice = v - offset
			break
		}
		offset += h.N
	}
	return out, nil
}
