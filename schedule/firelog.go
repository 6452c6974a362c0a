package schedule

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"
)

// FireRecord logs one successful action fire together with the keyword
// lines handed back for replay
type FireRecord struct {
	ID         string    `json:"id"`
	CaseID     string    `json:"caseId"`
	Action     string    `json:"action"`
	SimTime    time.Time `json:"simTime"`
	RunCount   int       `json:"runCount"`
	Entities   []string  `json:"entities,omitempty"`
	Lines      []string  `json:"lines"`
	RecordedAt time.Time `json:"recordedAt"`
}

// FireLog is an append-only record of fires per case
type FireLog interface {
	Record(rec *FireRecord) error
	List(caseID string) ([]*FireRecord, error)
}

// InMemoryFireLog implements FireLog in memory
type InMemoryFireLog struct {
	records map[string][]*FireRecord
	mu      sync.RWMutex
}

func NewInMemoryFireLog() *InMemoryFireLog {
	return &InMemoryFireLog{records: make(map[string][]*FireRecord)}
}

func (l *InMemoryFireLog) Record(rec *FireRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.RecordedAt = time.Now()
	l.records[rec.CaseID] = append(l.records[rec.CaseID], rec)
	return nil
}

// List returns the case's fires ordered by simulation time, then record order
func (l *InMemoryFireLog) List(caseID string) ([]*FireRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*FireRecord, len(l.records[caseID]))
	copy(out, l.records[caseID])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SimTime.Before(out[j].SimTime)
	})
	return out, nil
}

// PostgresFireLog implements FireLog backed by PostgreSQL
type PostgresFireLog struct {
	db *sql.DB
}

func NewPostgresFireLog(db *sql.DB) *PostgresFireLog {
	return &PostgresFireLog{db: db}
}

func (l *PostgresFireLog) Record(rec *FireRecord) error {
	lines, err := json.Marshal(rec.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal keyword lines: %w", err)
	}
	entities := rec.Entities
	if entities == nil {
		entities = []string{}
	}
	rec.RecordedAt = time.Now()

	_, err = l.db.Exec(`
		INSERT INTO fires (id, case_id, action_name, sim_time, run_count, entities, lines, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.ID, rec.CaseID, rec.Action, rec.SimTime, rec.RunCount,
		pq.Array(entities), lines, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record fire: %w", err)
	}
	return nil
}

func (l *PostgresFireLog) List(caseID string) ([]*FireRecord, error) {
	rows, err := l.db.Query(`
		SELECT id, case_id, action_name, sim_time, run_count, entities, lines, recorded_at
		FROM fires
		WHERE case_id = $1
		ORDER BY sim_time ASC, seq ASC
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fires: %w", err)
	}
	defer rows.Close()

	var out []*FireRecord
	for rows.Next() {
		var (
			rec   FireRecord
			lines []byte
		)
		if err := rows.Scan(&rec.ID, &rec.CaseID, &rec.Action, &rec.SimTime, &rec.RunCount,
			pq.Array(&rec.Entities), &lines, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fire: %w", err)
		}
		if err := json.Unmarshal(lines, &rec.Lines); err != nil {
			return nil, fmt.Errorf("invalid keyword lines for fire %s: %w", rec.ID, err)
		}
		out = append(out, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fires: %w", err)
	}
	return out, nil
}
