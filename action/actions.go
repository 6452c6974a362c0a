package action

import (
	"fmt"
	"sync"
	"time"
)

// Fired is one action that fired during a report step
type Fired struct {
	Action   *ActionX
	Result   Result
	RunCount int
}

// Actions is an ordered collection of actions. Evaluation always follows
// insertion order; replacing an action by name keeps its position.
type Actions struct {
	mu    sync.RWMutex
	list  []*ActionX
	index map[string]int
}

func NewActions() *Actions {
	return &Actions{index: make(map[string]int)}
}

// Add appends a, or replaces the action with the same name in place
func (s *Actions) Add(a *ActionX) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[a.Name()]; ok {
		s.list[i] = a
		return
	}
	s.index[a.Name()] = len(s.list)
	s.list = append(s.list, a)
}

func (s *Actions) Get(name string) (*ActionX, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}
	return s.list[i], nil
}

// Remove deletes the named action, preserving the order of the rest
func (s *Actions) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}
	s.list = append(s.list[:i], s.list[i+1:]...)
	delete(s.index, name)
	for j := i; j < len(s.list); j++ {
		s.index[s.list[j].Name()] = j
	}
	return nil
}

func (s *Actions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

// All returns the actions in insertion order
func (s *Actions) All() []*ActionX {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ActionX, len(s.list))
	copy(out, s.list)
	return out
}

// Ready returns the actions whose gate is open at now
func (s *Actions) Ready(now time.Time) []*ActionX {
	var out []*ActionX
	for _, a := range s.All() {
		if a.Ready(now) {
			out = append(out, a)
		}
	}
	return out
}

// Pending evaluates every ready action at now in insertion order and returns
// those that fired. The first evaluation error stops the step; actions that
// fired before it keep their updated run state.
func (s *Actions) Pending(now time.Time, ctx Context) ([]Fired, error) {
	var fired []Fired
	for _, a := range s.Ready(now) {
		res, err := a.Eval(now, ctx)
		if err != nil {
			return fired, err
		}
		if res.Fired {
			fired = append(fired, Fired{Action: a, Result: res, RunCount: a.RunCount()})
		}
	}
	return fired, nil
}
