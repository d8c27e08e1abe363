// Package components provides the name -> constructor registry used to build
// an environment's component list, and the built-in components.
package components

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"foundation.ai/internal/sim/agents"
)

var (
	ErrDuplicateName    = errors.New("component already registered")
	ErrUnknownComponent = errors.New("unknown component")
)

// Constructor builds a component from its YAML params. params may be nil.
type Constructor func(params *yaml.Node) (agents.Component, error)

type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: map[string]Constructor{}}
}

// Default returns a registry holding every built-in component.
func Default() *Registry {
	r := NewRegistry()
	for _, b := range []struct {
		name string
		ctor Constructor
	}{
		{BuildName, NewBuild},
		{GatherName, NewGather},
		{AuctionName, NewContinuousDoubleAuction},
		{BracketTaxName, NewPeriodicBracketTax},
		{agents.RegionalTaxOrchestrator, NewPeriodicTaxBracketMultiOrchestrator},
	} {
		if err := r.Add(b.name, b.ctor); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Add(name string, ctor Constructor) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty component name")
	}
	if strings.Contains(name, agents.Separator) {
		return fmt.Errorf("component name %q contains %q", name, agents.Separator)
	}
	if ctor == nil {
		return fmt.Errorf("component %s: nil constructor", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ctors[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.ctors[name] = ctor
	return nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[name]
	return ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Build(name string, params *yaml.Node) (agents.Component, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	c, err := ctor(params)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", name, err)
	}
	if c.Name() != name {
		return nil, fmt.Errorf("component %s: constructor returned %s", name, c.Name())
	}
	return c, nil
}

func decodeParams(params *yaml.Node, v any) error {
	if params == nil || params.Kind == 0 {
		return nil
	}
	if params.Kind == yaml.ScalarNode && params.Tag == "!!null" {
		return nil
	}
	return params.Decode(v)
}
