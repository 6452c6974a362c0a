// Package schedule owns the actions of each simulation case and runs them at
// every report step.
package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/liamcoop/actionx/action"
	"github.com/liamcoop/actionx/internal/logger"
	"github.com/liamcoop/actionx/summary"
)

var tracer = otel.Tracer("github.com/liamcoop/actionx/schedule")

// Schedule is the ordered set of actions of one case. Steps are serialised:
// a case is advanced by one caller at a time.
type Schedule struct {
	Case    *Case
	store   action.Store
	actions *action.Actions
	derived []*summary.Derived
	fires   FireLog
	step    sync.Mutex
}

// Manager manages the schedules of all cases
type Manager struct {
	cases     CaseStore
	newStore  func(caseID string) action.Store
	fires     FireLog
	schedules map[string]*Schedule
	mu        sync.RWMutex
}

// NewManager creates a manager backed by PostgreSQL
func NewManager(db *sql.DB) *Manager {
	return &Manager{
		cases: NewPostgresCaseStore(db),
		newStore: func(caseID string) action.Store {
			return action.NewCachedStore(
				action.NewPostgresStore(db, caseID),
				action.NewInMemoryCache(action.DefaultCacheConfig()),
			)
		},
		fires:     NewPostgresFireLog(db),
		schedules: make(map[string]*Schedule),
	}
}

// NewInMemoryManager creates a manager that keeps everything in memory
func NewInMemoryManager() *Manager {
	return &Manager{
		cases: NewInMemoryCaseStore(),
		newStore: func(string) action.Store {
			return action.NewInMemoryStore()
		},
		fires:     NewInMemoryFireLog(),
		schedules: make(map[string]*Schedule),
	}
}

// compileDerived compiles the case's derived quantities in key order
func compileDerived(derived map[string]string) ([]*summary.Derived, error) {
	keys := make([]string, 0, len(derived))
	for k := range derived {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*summary.Derived, 0, len(keys))
	for _, k := range keys {
		d, err := summary.NewDerived(k, derived[k])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// LoadAllCases loads every stored case and rebuilds its actions. Run counts
// start from zero: gate state lives for one continuous run only.
func (m *Manager) LoadAllCases() error {
	cases, err := m.cases.List()
	if err != nil {
		return fmt.Errorf("failed to fetch cases: %w", err)
	}

	for _, c := range cases {
		if err := m.load(c); err != nil {
			return fmt.Errorf("failed to initialize case %s: %w", c.ID, err)
		}
	}
	return nil
}

func (m *Manager) load(c *Case) error {
	derived, err := compileDerived(c.Derived)
	if err != nil {
		return err
	}

	store := m.newStore(c.ID)
	defs, err := store.List()
	if err != nil {
		return err
	}

	actions := action.NewActions()
	for _, def := range defs {
		a, err := def.Build()
		if err != nil {
			return err
		}
		actions.Add(a)
	}

	m.mu.Lock()
	m.schedules[c.ID] = &Schedule{
		Case:    c,
		store:   store,
		actions: actions,
		derived: derived,
		fires:   m.fires,
	}
	m.mu.Unlock()

	slog.Info("case loaded", "case", c.ID, "actions", actions.Len(), "derived", len(derived))
	return nil
}

// CreateCase stores a new case and creates its empty schedule
func (m *Manager) CreateCase(name string, derived map[string]string) (*Case, error) {
	if err := ValidateDerived(derived); err != nil {
		return nil, err
	}
	if _, err := compileDerived(derived); err != nil {
		return nil, err
	}

	c := &Case{
		ID:      uuid.New().String(),
		Name:    name,
		Derived: derived,
	}
	if err := m.cases.Create(c); err != nil {
		return nil, err
	}
	if err := m.load(c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetSchedule retrieves the schedule of a case
func (m *Manager) GetSchedule(caseID string) (*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.schedules[caseID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	return s, nil
}

// ListCases returns all loaded cases, oldest first
func (m *Manager) ListCases() []*Case {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cases := make([]*Case, 0, len(m.schedules))
	for _, s := range m.schedules {
		cases = append(cases, s.Case)
	}
	sortCases(cases)
	return cases
}

// DeleteCase removes a case from the store and from memory
func (m *Manager) DeleteCase(caseID string) error {
	if err := m.cases.Delete(caseID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.schedules, caseID)
	m.mu.Unlock()
	return nil
}

// Fires lists the fire log of a case
func (m *Manager) Fires(caseID string) ([]*FireRecord, error) {
	if _, err := m.GetSchedule(caseID); err != nil {
		return nil, err
	}
	return m.fires.List(caseID)
}

// Actions returns the live actions in evaluation order
func (s *Schedule) Actions() *action.Actions { return s.actions }

// AddAction validates and builds def, stores it and appends the action
func (s *Schedule) AddAction(def *action.Definition) (*action.ActionX, error) {
	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}
	a, err := def.Build()
	if err != nil {
		return nil, err
	}

	s.step.Lock()
	defer s.step.Unlock()

	if err := s.store.Add(def); err != nil {
		return nil, err
	}
	s.actions.Add(a)
	return a, nil
}

// UpdateAction replaces the stored definition with the same name and swaps
// in a freshly built action at the old position. Run state starts over.
func (s *Schedule) UpdateAction(def *action.Definition) (*action.ActionX, error) {
	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}
	a, err := def.Build()
	if err != nil {
		return nil, err
	}

	s.step.Lock()
	defer s.step.Unlock()

	if err := s.store.Update(def); err != nil {
		return nil, err
	}
	s.actions.Add(a)
	return a, nil
}

// Definition returns the stored definition of the named action
func (s *Schedule) Definition(name string) (*action.Definition, error) {
	return s.store.Get(name)
}

// RemoveAction deletes the named action from the store and the schedule
func (s *Schedule) RemoveAction(name string) error {
	s.step.Lock()
	defer s.step.Unlock()

	if err := s.store.Delete(name); err != nil {
		return err
	}
	return s.actions.Remove(name)
}

// Definitions lists the stored definitions in evaluation order
func (s *Schedule) Definitions() ([]*action.Definition, error) {
	return s.store.List()
}

// Step evaluates every ready action at now against snap, in insertion order,
// and records each fire. When snap carries no time, calendar quantities are
// taken from now.
func (s *Schedule) Step(ctx context.Context, now time.Time, snap summary.Snapshot) ([]*FireRecord, error) {
	_, span := tracer.Start(ctx, "schedule.Step",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("case.id", s.Case.ID),
			attribute.String("sim.time", now.Format(time.RFC3339)),
		),
	)
	defer span.End()

	s.step.Lock()
	defer s.step.Unlock()

	logger.ReportSteps.Add(1)
	if snap.Time == nil {
		snap.Time = &now
	}
	state := summary.FromSnapshot(snap, s.derived...)

	fired, evalErr := s.actions.Pending(now, state)

	records := make([]*FireRecord, 0, len(fired))
	for _, f := range fired {
		rec := &FireRecord{
			ID:       uuid.New().String(),
			CaseID:   s.Case.ID,
			Action:   f.Action.Name(),
			SimTime:  now,
			RunCount: f.RunCount,
			Entities: f.Result.Entities.Names(),
			Lines:    f.Action.SerializeToLines(),
		}
		if err := s.fires.Record(rec); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to record fire")
			return records, err
		}
		logger.ActionsFired.Add(1)
		slog.Info("action fired",
			"case", s.Case.ID,
			"action", rec.Action,
			"runCount", rec.RunCount,
			"entities", rec.Entities,
			"simTime", now,
		)
		records = append(records, rec)
	}

	span.SetAttributes(attribute.Int("actions.fired", len(records)))
	if evalErr != nil {
		span.RecordError(evalErr)
		span.SetStatus(codes.Error, "evaluation failed")
		logger.EvaluationErrors.Add(1)
		logger.Error("report step failed", "case", s.Case.ID, "simTime", now, "error", evalErr)
		return records, evalErr
	}
	return records, nil
}
