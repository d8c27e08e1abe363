package agents

import (
	"bytes"
	"encoding/json"
)

// Field is one named state value.
type Field struct {
	Name  string
	Value any
}

// State is an insertion-ordered mapping from field name to value.
// Overwriting an existing field keeps its original position.
type State struct {
	keys []string
	vals map[string]any
}

func NewState(fields ...Field) *State {
	s := &State{vals: make(map[string]any, len(fields))}
	for _, f := range fields {
		s.Set(f.Name, f.Value)
	}
	return s
}

func (s *State) Get(name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.vals[name]
	return v, ok
}

func (s *State) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

func (s *State) Set(name string, v any) {
	if s.vals == nil {
		s.vals = map[string]any{}
	}
	if _, ok := s.vals[name]; !ok {
		s.keys = append(s.keys, name)
	}
	s.vals[name] = v
}

func (s *State) Delete(name string) {
	if _, ok := s.vals[name]; !ok {
		return
	}
	delete(s.vals, name)
	for i, k := range s.keys {
		if k == name {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

func (s *State) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// Fields returns the fields in insertion order.
func (s *State) Fields() []Field {
	if s == nil {
		return nil
	}
	out := make([]Field, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, Field{Name: k, Value: s.vals[k]})
	}
	return out
}

// Clone is shallow: values are shared with s.
func (s *State) Clone() *State {
	return NewState(s.Fields()...)
}

func (s *State) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(s.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
