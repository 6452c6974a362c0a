package action

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// GateState is the eligibility of an action at a given simulation time,
// independent of whether its condition holds
type GateState int

const (
	Pending   GateState = iota // before the activation time
	Eligible                   // may be evaluated
	Cooling                    // fired and still inside the minimum wait
	Exhausted                  // fired the maximum number of times
)

func (s GateState) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Eligible:
		return "ELIGIBLE"
	case Cooling:
		return "COOLING"
	case Exhausted:
		return "EXHAUSTED"
	default:
		return "UNKNOWN"
	}
}

// ActionX is one named, gated rule: a trigger condition over summary
// quantities and a batch of keywords to replay when it fires.
//
// The condition is parsed once in the constructor. Run count and last run
// time change only inside Eval, which holds the action lock for the whole
// check-evaluate-update sequence.
type ActionX struct {
	name       string
	maxRun     int
	minWait    time.Duration
	startTime  time.Time
	conditions []Condition
	condition  *Expression
	keywords   []DeckKeyword

	mu       sync.Mutex
	runCount int
	lastRun  time.Time
}

// New creates an action from already extracted header values and condition
// records.
func New(name string, maxRun int, minWait time.Duration, startTime time.Time, conditions []Condition) (*ActionX, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &StructuralRecordError{Field: "NAME", Reason: "action name is required"}
	}
	if maxRun < 0 {
		return nil, &StructuralRecordError{Action: name, Field: "NUM", Reason: "run limit cannot be negative"}
	}
	if minWait < 0 {
		return nil, &StructuralRecordError{Action: name, Field: "MIN_WAIT", Reason: "minimum wait cannot be negative"}
	}

	conds := make([]Condition, len(conditions))
	for i, c := range conditions {
		conds[i] = NewCondition(c.Tokens, c.Location)
	}

	expr, err := BuildExpression(name, conds)
	if err != nil {
		return nil, err
	}

	return &ActionX{
		name:       name,
		maxRun:     maxRun,
		minWait:    minWait,
		startTime:  startTime,
		conditions: conds,
		condition:  expr,
	}, nil
}

// FromKeyword creates an action from an ACTIONX keyword. The first record is
// the header with NAME, NUM and MIN_WAIT (seconds); every further record
// contributes its CONDITION items.
func FromKeyword(kw DeckKeyword, startTime time.Time) (*ActionX, error) {
	if kw.Name != "ACTIONX" {
		return nil, &StructuralRecordError{Keyword: kw.Name, Reason: "expected ACTIONX keyword"}
	}
	if len(kw.Records) == 0 {
		return nil, &StructuralRecordError{Keyword: kw.Name, Reason: "missing header record"}
	}
	header := kw.Records[0]

	nameItem, ok := header.Item("NAME")
	if !ok || nameItem.Defaulted {
		return nil, &StructuralRecordError{Field: "NAME", Reason: "missing in header record"}
	}
	name := strings.TrimSpace(nameItem.Str)

	num, ok := header.Item("NUM")
	if !ok {
		return nil, &StructuralRecordError{Action: name, Field: "NUM", Reason: "missing in header record"}
	}
	maxRun := 1
	if !num.Defaulted {
		maxRun = num.Int
	}

	wait, ok := header.Item("MIN_WAIT")
	if !ok {
		return nil, &StructuralRecordError{Action: name, Field: "MIN_WAIT", Reason: "missing in header record"}
	}
	var minWait time.Duration
	if !wait.Defaulted {
		seconds := wait.Float
		if wait.Kind == IntItem {
			seconds = float64(wait.Int)
		}
		minWait = time.Duration(seconds * float64(time.Second))
	}

	var conditions []Condition
	for _, rec := range kw.Records[1:] {
		loc := kw.Location
		if rec.Location != nil {
			loc = *rec.Location
		}
		conditions = append(conditions, NewCondition(rec.Strings("CONDITION"), loc))
	}

	return New(name, maxRun, minWait, startTime, conditions)
}

func (a *ActionX) Name() string            { return a.name }
func (a *ActionX) MaxRun() int             { return a.maxRun }
func (a *ActionX) MinWait() time.Duration  { return a.minWait }
func (a *ActionX) StartTime() time.Time    { return a.startTime }
func (a *ActionX) Expression() *Expression { return a.condition }

// RunCount returns how many times the action has fired
func (a *ActionX) RunCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runCount
}

// LastRun returns the time of the most recent fire; ok is false before the
// first fire
func (a *ActionX) LastRun() (t time.Time, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRun, a.runCount > 0
}

// Conditions returns the condition records exactly as supplied
func (a *ActionX) Conditions() []Condition {
	out := make([]Condition, len(a.conditions))
	for i, c := range a.conditions {
		out[i] = NewCondition(c.Tokens, c.Location)
	}
	return out
}

// Ready reports whether the action may be evaluated at now
func (a *ActionX) Ready(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready(now)
}

func (a *ActionX) ready(now time.Time) bool {
	return a.state(now) == Eligible
}

// State reports the gate state at now
func (a *ActionX) State(now time.Time) GateState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state(now)
}

func (a *ActionX) state(now time.Time) GateState {
	if a.runCount >= a.maxRun {
		return Exhausted
	}
	if now.Before(a.startTime) {
		return Pending
	}
	if a.runCount == 0 || a.minWait <= 0 {
		return Eligible
	}
	if now.Sub(a.lastRun) > a.minWait {
		return Eligible
	}
	return Cooling
}

// Eval evaluates the condition at now when the gate is open. A true condition
// increments the run count and records now as the last run. A closed gate, a
// false condition or an error leave the action untouched.
func (a *ActionX) Eval(now time.Time, ctx Context) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ready(now) {
		return Result{}, nil
	}

	res, err := a.condition.Eval(a.name, ctx)
	if err != nil {
		return Result{}, err
	}
	if res.Fired {
		a.runCount++
		a.lastRun = now
		slog.Debug("action fired", "action", a.name, "runCount", a.runCount, "time", now)
	}
	return res, nil
}

// AddKeyword queues a keyword for replay. Callers check CheckKeyword first.
func (a *ActionX) AddKeyword(kw DeckKeyword) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keywords = append(a.keywords, kw)
}

// Keywords returns the queued keywords in insertion order
func (a *ActionX) Keywords() []DeckKeyword {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]DeckKeyword, len(a.keywords))
	copy(out, a.keywords)
	return out
}

// SerializeToLines renders the keyword batch, terminated by ENDACTIO
func (a *ActionX) SerializeToLines() []string {
	return KeywordLines(a.Keywords())
}
