// Package summary provides the summary values an action condition is
// evaluated against.
package summary

import (
	"path"
	"sort"
	"sync"
	"time"

	"github.com/liamcoop/actionx/action"
)

// State holds field, well and group summary values for one report step and
// implements action.Context.
type State struct {
	mu      sync.RWMutex
	field   map[string]float64
	wells   map[string]map[string]float64 // well -> key -> value
	groups  map[string]map[string]float64 // group -> key -> value
	derived map[string]*Derived
}

func NewState() *State {
	return &State{
		field:   make(map[string]float64),
		wells:   make(map[string]map[string]float64),
		groups:  make(map[string]map[string]float64),
		derived: make(map[string]*Derived),
	}
}

// Snapshot is the serialisable form of a State
type Snapshot struct {
	Time   *time.Time                    `json:"time,omitempty"`
	Field  map[string]float64            `json:"field,omitempty"`
	Wells  map[string]map[string]float64 `json:"wells,omitempty"`
	Groups map[string]map[string]float64 `json:"groups,omitempty"`
}

// FromSnapshot builds a State from snap and registers the derived quantities
func FromSnapshot(snap Snapshot, derived ...*Derived) *State {
	st := NewState()
	if snap.Time != nil {
		st.SetTime(*snap.Time)
	}
	for k, v := range snap.Field {
		st.SetField(k, v)
	}
	for well, values := range snap.Wells {
		for k, v := range values {
			st.SetWell(k, well, v)
		}
	}
	for group, values := range snap.Groups {
		for k, v := range values {
			st.SetGroup(k, group, v)
		}
	}
	for _, d := range derived {
		st.Define(d)
	}
	return st
}

func (s *State) SetField(key string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field[key] = v
}

func (s *State) SetWell(key, well string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set(s.wells, well, key, v)
}

func (s *State) SetGroup(key, group string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set(s.groups, group, key, v)
}

// SetTime publishes the calendar quantities DAY, MNTH and YEAR
func (s *State) SetTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field["DAY"] = float64(t.Day())
	s.field["MNTH"] = float64(t.Month())
	s.field["YEAR"] = float64(t.Year())
}

// Define registers a derived field quantity, replacing one with the same key
func (s *State) Define(d *Derived) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derived[d.Key()] = d
}

func set(m map[string]map[string]float64, entity, key string, v float64) {
	values, ok := m[entity]
	if !ok {
		values = make(map[string]float64)
		m[entity] = values
	}
	values[key] = v
}

// Resolve implements action.Context
func (s *State) Resolve(q action.Quantity) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch q.Kind {
	case action.Field:
		if v, ok := s.field[q.Key]; ok {
			return v, true
		}
		if d, ok := s.derived[q.Key]; ok {
			return d.eval(s.field, s.wells, s.groups)
		}
		return 0, false
	case action.Well:
		v, ok := s.wells[q.Entity][q.Key]
		return v, ok
	case action.Group:
		v, ok := s.groups[q.Entity][q.Key]
		return v, ok
	}
	return 0, false
}

// Entities implements action.Context. Patterns use shell wildcard syntax.
func (s *State) Entities(kind action.EntityKind, key, pattern string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m map[string]map[string]float64
	switch kind {
	case action.Well:
		m = s.wells
	case action.Group:
		m = s.groups
	default:
		return nil
	}

	var names []string
	for name, values := range m {
		if _, ok := values[key]; !ok {
			continue
		}
		if pattern != "" {
			if ok, err := path.Match(pattern, name); err != nil || !ok {
				continue
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
