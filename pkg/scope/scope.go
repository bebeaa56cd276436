// Package scope implements the ordered name→value map threaded through
// workflow execution. A step never mutates its caller's scope: it clones,
// works on the copy, and hands the copy (or a projection of it) forward.
package scope

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Scope is an ordered string→string map. Keys keep their insertion position
// when overwritten and are never deleted.
type Scope struct {
	m *orderedmap.OrderedMap[string, string]
}

// New creates an empty scope.
func New() *Scope {
	return &Scope{m: orderedmap.New[string, string]()}
}

// FromPairs creates a scope from alternating key/value arguments.
// Panics on an odd argument count; it is a test/fixture helper.
func FromPairs(pairs ...string) *Scope {
	if len(pairs)%2 != 0 {
		panic(fmt.Sprintf("scope.FromPairs: odd argument count %d", len(pairs)))
	}
	s := New()
	for i := 0; i < len(pairs); i += 2 {
		s.Set(pairs[i], pairs[i+1])
	}
	return s
}

// Get returns the value bound to name.
func (s *Scope) Get(name string) (string, bool) {
	return s.m.Get(name)
}

// Value returns the value bound to name, or "" if absent.
func (s *Scope) Value(name string) string {
	v, _ := s.m.Get(name)
	return v
}

// Has reports whether name is bound.
func (s *Scope) Has(name string) bool {
	_, ok := s.m.Get(name)
	return ok
}

// Set binds name to value. An existing key keeps its position.
func (s *Scope) Set(name, value string) {
	s.m.Set(name, value)
}

// Len returns the number of bindings.
func (s *Scope) Len() int {
	return s.m.Len()
}

// Names returns all keys in insertion order.
func (s *Scope) Names() []string {
	names := make([]string, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Each calls fn for every binding in insertion order.
func (s *Scope) Each(fn func(name, value string)) {
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Clone returns an independent copy preserving order.
func (s *Scope) Clone() *Scope {
	c := New()
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		c.m.Set(pair.Key, pair.Value)
	}
	return c
}

// Env returns the bindings as a plain map for expression evaluation.
// Order is not meaningful for the consumers of this form.
func (s *Scope) Env() map[string]any {
	env := make(map[string]any, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		env[pair.Key] = pair.Value
	}
	return env
}

// MarshalJSON encodes the scope as a JSON object in insertion order.
func (s *Scope) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.m)
}

// String renders the scope for diagnostics.
func (s *Scope) String() string {
	data, err := s.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("scope(%d bindings)", s.Len())
	}
	return string(data)
}
