package schedule

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var ErrCaseNotFound = errors.New("case not found")

// Case is one simulation run owning an ordered set of actions. Derived maps
// derived field keys to their CEL expressions.
type Case struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Derived   map[string]string `json:"derived,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// CaseStore persists case metadata
type CaseStore interface {
	Create(c *Case) error
	Get(id string) (*Case, error)
	List() ([]*Case, error)
	Delete(id string) error
}

// InMemoryCaseStore implements CaseStore using an in-memory map
type InMemoryCaseStore struct {
	cases map[string]*Case
	mu    sync.RWMutex
}

func NewInMemoryCaseStore() *InMemoryCaseStore {
	return &InMemoryCaseStore{cases: make(map[string]*Case)}
}

func (s *InMemoryCaseStore) Create(c *Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cases[c.ID]; exists {
		return fmt.Errorf("case %s already exists", c.ID)
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.cases[c.ID] = c
	return nil
}

func (s *InMemoryCaseStore) Get(id string) (*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.cases[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	return c, nil
}

// List returns cases oldest first
func (s *InMemoryCaseStore) List() ([]*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Case, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, c)
	}
	sortCases(out)
	return out, nil
}

func (s *InMemoryCaseStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cases[id]; !exists {
		return fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	delete(s.cases, id)
	return nil
}

// PostgresCaseStore implements CaseStore backed by PostgreSQL
type PostgresCaseStore struct {
	db *sql.DB
}

func NewPostgresCaseStore(db *sql.DB) *PostgresCaseStore {
	return &PostgresCaseStore{db: db}
}

func (s *PostgresCaseStore) Create(c *Case) error {
	derived, err := json.Marshal(nonNil(c.Derived))
	if err != nil {
		return fmt.Errorf("failed to marshal derived quantities: %w", err)
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO cases (id, name, derived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Name, derived, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}

func (s *PostgresCaseStore) Get(id string) (*Case, error) {
	var (
		c       Case
		derived []byte
	)
	err := s.db.QueryRow(`
		SELECT id, name, derived, created_at, updated_at
		FROM cases
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &derived, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	if err := json.Unmarshal(derived, &c.Derived); err != nil {
		return nil, fmt.Errorf("invalid derived quantities for case %s: %w", id, err)
	}
	return &c, nil
}

func (s *PostgresCaseStore) List() ([]*Case, error) {
	rows, err := s.db.Query(`
		SELECT id, name, derived, created_at, updated_at
		FROM cases
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []*Case
	for rows.Next() {
		var (
			c       Case
			derived []byte
		)
		if err := rows.Scan(&c.ID, &c.Name, &derived, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan case row: %w", err)
		}
		if err := json.Unmarshal(derived, &c.Derived); err != nil {
			return nil, fmt.Errorf("invalid derived quantities for case %s: %w", c.ID, err)
		}
		cases = append(cases, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating case rows: %w", err)
	}
	return cases, nil
}

func (s *PostgresCaseStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	return nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func sortCases(cases []*Case) {
	sort.Slice(cases, func(i, j int) bool {
		if cases[i].CreatedAt.Equal(cases[j].CreatedAt) {
			return cases[i].ID < cases[j].ID
		}
		return cases[i].CreatedAt.Before(cases[j].CreatedAt)
	})
}
