package action

import (
	"fmt"
	"sync"
	"time"
)

// Store manages action definition persistence and retrieval
type Store interface {
	// Add a new definition
	Add(def *Definition) error

	// Get a definition by action name
	Get(name string) (*Definition, error)

	// List all definitions in the order they were added
	List() ([]*Definition, error)

	// Update an existing definition
	Update(def *Definition) error

	// Delete a definition
	Delete(name string) error
}

// InMemoryStore implements Store using an in-memory map
type InMemoryStore struct {
	defs  map[string]*Definition
	order []string
	mu    sync.RWMutex
}

// NewInMemoryStore creates a new in-memory definition store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		defs: make(map[string]*Definition),
	}
}

// Add adds a new definition, setting CreatedAt and UpdatedAt
func (s *InMemoryStore) Add(def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrActionExists, def.Name)
	}

	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now
	s.defs[def.Name] = def
	s.order = append(s.order, def.Name)
	return nil
}

// Get retrieves a definition by name
func (s *InMemoryStore) Get(name string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, exists := s.defs[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}
	return def, nil
}

// List returns all definitions in insertion order
func (s *InMemoryStore) List() ([]*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Definition, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.defs[name])
	}
	return out, nil
}

// Update replaces an existing definition, preserving CreatedAt
func (s *InMemoryStore) Update(def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.defs[def.Name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrActionNotFound, def.Name)
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()
	s.defs[def.Name] = def
	return nil
}

// Delete removes a definition from the store
func (s *InMemoryStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[name]; !exists {
		return fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}

	delete(s.defs, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
