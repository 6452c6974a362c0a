package main

import (
	"time"

	"github.com/liamcoop/actionx/action"
	"github.com/liamcoop/actionx/schedule"
	"github.com/liamcoop/actionx/summary"
)

// API request and response models

// CreateCaseRequest represents the request body for creating a case
type CreateCaseRequest struct {
	Name    string            `json:"name" example:"NORNE-BASE"`
	Derived map[string]string `json:"derived,omitempty" example:"FWCUT:field.FWPR / (field.FOPR + field.FWPR)"`
}

// CasesListResponse represents the response for listing cases
type CasesListResponse struct {
	Cases []*schedule.Case `json:"cases"`
}

// CreateActionRequest represents one ACTIONX block. MaxRun defaults to 1 and
// MinWaitSeconds to 0.
type CreateActionRequest struct {
	Name           string               `json:"name" example:"WCUT"`
	MaxRun         *int                 `json:"maxRun,omitempty" example:"10"`
	MinWaitSeconds float64              `json:"minWaitSeconds" example:"86400"`
	StartTime      time.Time            `json:"startTime" example:"2020-01-01T00:00:00Z"`
	Conditions     []action.Condition   `json:"conditions"`
	Keywords       []action.DeckKeyword `json:"keywords"`
}

func (r *CreateActionRequest) definition() *action.Definition {
	maxRun := 1
	if r.MaxRun != nil {
		maxRun = *r.MaxRun
	}
	return &action.Definition{
		Name:       r.Name,
		MaxRun:     maxRun,
		MinWait:    time.Duration(r.MinWaitSeconds * float64(time.Second)),
		StartTime:  r.StartTime,
		Conditions: r.Conditions,
		Keywords:   r.Keywords,
	}
}

// ActionResponse represents the live state of an action
type ActionResponse struct {
	Name           string     `json:"name" example:"WCUT"`
	MaxRun         int        `json:"maxRun" example:"10"`
	MinWaitSeconds float64    `json:"minWaitSeconds" example:"86400"`
	StartTime      time.Time  `json:"startTime"`
	RunCount       int        `json:"runCount" example:"0"`
	LastRun        *time.Time `json:"lastRun,omitempty"`
	State          string     `json:"state" example:"ELIGIBLE"`
	Expression     string     `json:"expression" example:"(FWCT > 0.8 AND WWCT 'OP*' > 0.9)"`
	Keywords       int        `json:"keywords" example:"2"`
}

func newActionResponse(a *action.ActionX, now time.Time) ActionResponse {
	resp := ActionResponse{
		Name:           a.Name(),
		MaxRun:         a.MaxRun(),
		MinWaitSeconds: a.MinWait().Seconds(),
		StartTime:      a.StartTime(),
		RunCount:       a.RunCount(),
		State:          a.State(now).String(),
		Expression:     a.Expression().String(),
		Keywords:       len(a.Keywords()),
	}
	if t, ok := a.LastRun(); ok {
		resp.LastRun = &t
	}
	return resp
}

// ActionsListResponse represents the response for listing actions
type ActionsListResponse struct {
	Actions []ActionResponse `json:"actions"`
}

// StepRequest carries the summary values of one report step. Time is the
// simulation time of the step.
type StepRequest struct {
	Time    time.Time        `json:"time" example:"2020-03-01T00:00:00Z"`
	Summary summary.Snapshot `json:"summary"`
}

// StepResponse lists the fires of one report step
type StepResponse struct {
	Fires          []*schedule.FireRecord `json:"fires"`
	EvaluationTime string                 `json:"evaluationTime" example:"120µs"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid action"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status" example:"healthy"`
	CasesLoaded int    `json:"casesLoaded" example:"3"`
	Error       string `json:"error,omitempty"`
}
