package action

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL, scoped to one case
type PostgresStore struct {
	db     *sql.DB
	caseID string
}

// NewPostgresStore creates a PostgreSQL-backed Store for a specific case
func NewPostgresStore(db *sql.DB, caseID string) *PostgresStore {
	return &PostgresStore{
		db:     db,
		caseID: caseID,
	}
}

// Add inserts a new definition into the database
func (s *PostgresStore) Add(def *Definition) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM actions WHERE case_id = $1 AND name = $2)
	`, s.caseID, def.Name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check action existence: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrActionExists, def.Name)
	}

	conditions, keywords, err := encodeDefinition(def)
	if err != nil {
		return err
	}

	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO actions (case_id, name, max_run, min_wait_seconds, start_time, conditions, keywords, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.caseID, def.Name, def.MaxRun, def.MinWait.Seconds(), def.StartTime,
		conditions, keywords, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}

	return nil
}

// Get retrieves a definition by name
func (s *PostgresStore) Get(name string) (*Definition, error) {
	row := s.db.QueryRow(`
		SELECT name, max_run, min_wait_seconds, start_time, conditions, keywords, created_at, updated_at
		FROM actions
		WHERE case_id = $1 AND name = $2
	`, s.caseID, name)

	def, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	return def, nil
}

// List returns the case's definitions in insertion order
func (s *PostgresStore) List() ([]*Definition, error) {
	rows, err := s.db.Query(`
		SELECT name, max_run, min_wait_seconds, start_time, conditions, keywords, created_at, updated_at
		FROM actions
		WHERE case_id = $1
		ORDER BY position ASC
	`, s.caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return defs, nil
}

// Update modifies an existing definition
func (s *PostgresStore) Update(def *Definition) error {
	existing, err := s.Get(def.Name)
	if err != nil {
		return err
	}

	conditions, keywords, err := encodeDefinition(def)
	if err != nil {
		return err
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE actions
		SET max_run = $1, min_wait_seconds = $2, start_time = $3, conditions = $4, keywords = $5, updated_at = $6
		WHERE case_id = $7 AND name = $8
	`, def.MaxRun, def.MinWait.Seconds(), def.StartTime, conditions, keywords, def.UpdatedAt, s.caseID, def.Name)
	if err != nil {
		return fmt.Errorf("failed to update action: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrActionNotFound, def.Name)
	}

	return nil
}

// Delete removes a definition from the database
func (s *PostgresStore) Delete(name string) error {
	result, err := s.db.Exec(`
		DELETE FROM actions
		WHERE case_id = $1 AND name = $2
	`, s.caseID, name)
	if err != nil {
		return fmt.Errorf("failed to delete action: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row scanner) (*Definition, error) {
	var (
		def        Definition
		minWait    float64
		conditions []byte
		keywords   []byte
	)
	if err := row.Scan(&def.Name, &def.MaxRun, &minWait, &def.StartTime,
		&conditions, &keywords, &def.CreatedAt, &def.UpdatedAt); err != nil {
		return nil, err
	}
	def.MinWait = time.Duration(minWait * float64(time.Second))

	if err := json.Unmarshal(conditions, &def.Conditions); err != nil {
		return nil, fmt.Errorf("invalid conditions for action %s: %w", def.Name, err)
	}
	if err := json.Unmarshal(keywords, &def.Keywords); err != nil {
		return nil, fmt.Errorf("invalid keywords for action %s: %w", def.Name, err)
	}
	return &def, nil
}

func encodeDefinition(def *Definition) ([]byte, []byte, error) {
	conditions := def.Conditions
	if conditions == nil {
		conditions = []Condition{}
	}
	keywords := def.Keywords
	if keywords == nil {
		keywords = []DeckKeyword{}
	}

	c, err := json.Marshal(conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal conditions: %w", err)
	}
	k, err := json.Marshal(keywords)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal keywords: %w", err)
	}
	return c, k, nil
}
