package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/liamcoop/actionx/action"
	"github.com/liamcoop/actionx/schedule"
	"github.com/liamcoop/actionx/summary"
)

// Fixture is an offline replay input: the actions of one case and the report
// steps to run them against
type Fixture struct {
	Name    string            `json:"name"`
	Derived map[string]string `json:"derived,omitempty"`
	Actions []FixtureAction   `json:"actions"`
	Steps   []FixtureStep     `json:"steps"`
}

// FixtureAction describes one action either by its header fields and
// condition records or by an ACTIONX deck keyword. Keywords are queued in
// both cases.
type FixtureAction struct {
	Name           string               `json:"name,omitempty"`
	MaxRun         *int                 `json:"maxRun,omitempty"`
	MinWaitSeconds float64              `json:"minWaitSeconds,omitempty"`
	StartTime      time.Time            `json:"startTime"`
	Conditions     []action.Condition   `json:"conditions,omitempty"`
	ActionX        *action.DeckKeyword  `json:"actionx,omitempty"`
	Keywords       []action.DeckKeyword `json:"keywords"`
}

type FixtureStep struct {
	Time    time.Time        `json:"time"`
	Summary summary.Snapshot `json:"summary"`
}

func (a FixtureAction) definition() (*action.Definition, error) {
	if a.ActionX != nil {
		if a.Name != "" || a.MaxRun != nil || a.MinWaitSeconds != 0 || len(a.Conditions) > 0 {
			return nil, errors.New("actionx cannot be combined with name, maxRun, minWaitSeconds or conditions")
		}
		built, err := action.FromKeyword(*a.ActionX, a.StartTime)
		if err != nil {
			return nil, err
		}
		def := built.Definition()
		def.Keywords = a.Keywords
		return def, nil
	}

	maxRun := 1
	if a.MaxRun != nil {
		maxRun = *a.MaxRun
	}
	return &action.Definition{
		Name:       a.Name,
		MaxRun:     maxRun,
		MinWait:    time.Duration(a.MinWaitSeconds * float64(time.Second)),
		StartTime:  a.StartTime,
		Conditions: a.Conditions,
		Keywords:   a.Keywords,
	}, nil
}

func loadFixture(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()
	return decodeFixture(f)
}

func decodeFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	if fx.Name == "" {
		fx.Name = "replay"
	}
	return &fx, nil
}

// loadKeywords reads a JSON array of deck keywords
func loadKeywords(path string) ([]action.DeckKeyword, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword file: %w", err)
	}
	defer f.Close()

	var keywords []action.DeckKeyword
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&keywords); err != nil {
		return nil, fmt.Errorf("invalid keyword file: %w", err)
	}
	return keywords, nil
}

// replay runs every step of fx in order on a fresh in-memory case and returns
// the fires. Steps stop at the first evaluation error.
func replay(ctx context.Context, fx *Fixture) ([]*schedule.FireRecord, error) {
	m := schedule.NewInMemoryManager()
	c, err := m.CreateCase(fx.Name, fx.Derived)
	if err != nil {
		return nil, err
	}
	sched, err := m.GetSchedule(c.ID)
	if err != nil {
		return nil, err
	}

	for i, a := range fx.Actions {
		def, err := a.definition()
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i+1, err)
		}
		if _, err := sched.AddAction(def); err != nil {
			return nil, err
		}
	}

	var fires []*schedule.FireRecord
	for i, step := range fx.Steps {
		fired, err := sched.Step(ctx, step.Time, step.Summary)
		fires = append(fires, fired...)
		if err != nil {
			return fires, fmt.Errorf("step %d at %s: %w", i+1, step.Time.Format(time.RFC3339), err)
		}
	}
	return fires, nil
}
