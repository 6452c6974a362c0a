package action

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func newAction(t *testing.T, maxRun int, minWait time.Duration, tokens ...string) *ActionX {
	t.Helper()
	a, err := New("ACT", maxRun, minWait, t0, []Condition{cond(1, tokens...)})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return a
}

func TestActionFiresOnceThenExhausted(t *testing.T) {
	a := newAction(t, 1, 0, "FOPR", ">", "100")
	ctx := testContext()

	res, err := a.Eval(t0, ctx)
	if err != nil {
		t.Fatalf("Eval() failed: %v", err)
	}
	if !res.Fired {
		t.Fatal("first evaluation should fire")
	}
	if a.RunCount() != 1 {
		t.Errorf("RunCount() = %d, want 1", a.RunCount())
	}
	if last, ok := a.LastRun(); !ok || !last.Equal(t0) {
		t.Errorf("LastRun() = %v, %v, want %v, true", last, ok, t0)
	}

	later := t0.Add(30 * day)
	if a.Ready(later) {
		t.Error("exhausted action should not be ready")
	}
	if got := a.State(later); got != Exhausted {
		t.Errorf("State() = %v, want EXHAUSTED", got)
	}
	res, err = a.Eval(later, ctx)
	if err != nil {
		t.Fatalf("Eval() failed: %v", err)
	}
	if res.Fired || a.RunCount() != 1 {
		t.Errorf("exhausted action fired again: run count %d", a.RunCount())
	}
}

func TestActionMinimumWait(t *testing.T) {
	a := newAction(t, 3, 10*day, "FOPR", ">", "100")
	ctx := testContext()

	if res, _ := a.Eval(t0, ctx); !res.Fired {
		t.Fatal("first evaluation should fire")
	}

	steps := []struct {
		at        time.Time
		wantState GateState
		wantFired bool
		wantRuns  int
	}{
		{t0.Add(5 * day), Cooling, false, 1},
		{t0.Add(10 * day), Cooling, false, 1}, // elapsed must exceed the wait
		{t0.Add(11 * day), Eligible, true, 2},
		{t0.Add(12 * day), Cooling, false, 2},
		{t0.Add(22 * day), Eligible, true, 3},
		{t0.Add(40 * day), Exhausted, false, 3},
	}

	for _, s := range steps {
		if got := a.State(s.at); got != s.wantState {
			t.Errorf("State(%s) = %v, want %v", s.at.Format(time.DateOnly), got, s.wantState)
		}
		res, err := a.Eval(s.at, ctx)
		if err != nil {
			t.Fatalf("Eval() failed: %v", err)
		}
		if res.Fired != s.wantFired {
			t.Errorf("Eval(%s) fired = %v, want %v", s.at.Format(time.DateOnly), res.Fired, s.wantFired)
		}
		if a.RunCount() != s.wantRuns {
			t.Errorf("RunCount() after %s = %d, want %d", s.at.Format(time.DateOnly), a.RunCount(), s.wantRuns)
		}
	}
}

func TestActionZeroWaitFiresEveryStep(t *testing.T) {
	a := newAction(t, 2, 0, "FOPR", ">", "100")
	ctx := testContext()

	for i := 0; i < 2; i++ {
		res, err := a.Eval(t0, ctx)
		if err != nil || !res.Fired {
			t.Fatalf("evaluation %d: fired = %v, err = %v", i+1, res.Fired, err)
		}
	}
	if a.State(t0) != Exhausted {
		t.Errorf("State() = %v, want EXHAUSTED", a.State(t0))
	}
}

func TestActionPendingBeforeStart(t *testing.T) {
	// FMISSING would fail evaluation; a closed gate never evaluates
	a := newAction(t, 1, 0, "FMISSING", ">", "1")
	before := t0.Add(-time.Hour)

	if got := a.State(before); got != Pending {
		t.Errorf("State() = %v, want PENDING", got)
	}
	res, err := a.Eval(before, testContext())
	if err != nil {
		t.Fatalf("closed gate should not evaluate, got %v", err)
	}
	if res.Fired {
		t.Error("action fired before its start time")
	}
}

func TestActionZeroRunLimit(t *testing.T) {
	a := newAction(t, 0, 0, "FOPR", ">", "100")
	if got := a.State(t0); got != Exhausted {
		t.Errorf("State() = %v, want EXHAUSTED", got)
	}
	if res, _ := a.Eval(t0, testContext()); res.Fired {
		t.Error("action with a zero run limit fired")
	}
}

func TestActionFalseConditionKeepsState(t *testing.T) {
	a := newAction(t, 1, 0, "FOPR", "<", "100")

	res, err := a.Eval(t0, testContext())
	if err != nil {
		t.Fatalf("Eval() failed: %v", err)
	}
	if res.Fired || a.RunCount() != 0 {
		t.Errorf("false condition changed state: fired %v, run count %d", res.Fired, a.RunCount())
	}
	if _, ok := a.LastRun(); ok {
		t.Error("LastRun() should report no run")
	}
	if a.State(t0) != Eligible {
		t.Errorf("State() = %v, want ELIGIBLE", a.State(t0))
	}
}

func TestActionEvalErrorKeepsState(t *testing.T) {
	a := newAction(t, 1, 0, "FMISSING", ">", "1")

	_, err := a.Eval(t0, testContext())
	if !errors.Is(err, ErrUnresolvedQuantity) {
		t.Fatalf("error = %v, want ErrUnresolvedQuantity", err)
	}
	if a.RunCount() != 0 {
		t.Errorf("RunCount() = %d after failed evaluation, want 0", a.RunCount())
	}
}

func TestActionWithoutConditionsNeverFires(t *testing.T) {
	a, err := New("EMPTY", 5, 0, t0, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if res, _ := a.Eval(t0, testContext()); res.Fired {
		t.Error("action without conditions fired")
	}
}

func TestActionConcurrentEval(t *testing.T) {
	a := newAction(t, 10, 0, "FOPR", ">", "100")
	ctx := testContext()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fired int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := a.Eval(t0, ctx)
			if err != nil {
				t.Errorf("Eval() failed: %v", err)
				return
			}
			if res.Fired {
				mu.Lock()
				fired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if fired != 10 || a.RunCount() != 10 {
		t.Errorf("fired %d times with run count %d, want 10", fired, a.RunCount())
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name      string
		action    string
		maxRun    int
		minWait   time.Duration
		wantField string
	}{
		{"empty name", "  ", 1, 0, "NAME"},
		{"negative run limit", "ACT", -1, 0, "NUM"},
		{"negative wait", "ACT", 1, -time.Second, "MIN_WAIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.action, tt.maxRun, tt.minWait, t0, nil)
			var sre *StructuralRecordError
			if !errors.As(err, &sre) {
				t.Fatalf("error = %v, want *StructuralRecordError", err)
			}
			if sre.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", sre.Field, tt.wantField)
			}
			if !errors.Is(err, ErrStructuralRecord) {
				t.Error("error should match ErrStructuralRecord")
			}
		})
	}
}

func TestNewCopiesConditions(t *testing.T) {
	tokens := []string{"FOPR", ">", "100"}
	a, err := New("ACT", 1, 0, t0, []Condition{NewCondition(tokens, Location{Line: 7})})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	tokens[0] = "FWCT"

	got := a.Conditions()
	if got[0].Tokens[0] != "FOPR" {
		t.Errorf("caller changes leaked into the action: %v", got[0].Tokens)
	}
	got[0].Tokens[0] = "FGOR"
	if a.Conditions()[0].Tokens[0] != "FOPR" {
		t.Error("Conditions() should return a copy")
	}
	if a.Conditions()[0].Location.Line != 7 {
		t.Errorf("Location = %v, want line 7", a.Conditions()[0].Location)
	}
}

func actionxKeyword(header DeckRecord, conditions ...DeckRecord) DeckKeyword {
	return DeckKeyword{
		Name:            "ACTIONX",
		Records:         append([]DeckRecord{header}, conditions...),
		SlashTerminated: true,
		Location:        Location{File: "CASE.DATA", Line: 100},
	}
}

func conditionRecord(line int, tokens ...string) DeckRecord {
	rec := DeckRecord{Location: &Location{File: "CASE.DATA", Line: line}}
	for _, tok := range tokens {
		rec.Items = append(rec.Items, StringValue("CONDITION", tok))
	}
	return rec
}

func TestFromKeyword(t *testing.T) {
	kw := actionxKeyword(
		DeckRecord{Items: []DeckItem{StringValue("NAME", "WCUT"), IntValue("NUM", 3), FloatValue("MIN_WAIT", 86400)}},
		conditionRecord(101, "FOPR", ">", "100", "AND"),
		conditionRecord(102, "WWCT", "'OP*'", ">", "0.8"),
	)

	a, err := FromKeyword(kw, t0)
	if err != nil {
		t.Fatalf("FromKeyword() failed: %v", err)
	}
	if a.Name() != "WCUT" || a.MaxRun() != 3 || a.MinWait() != day {
		t.Errorf("header = %s/%d/%s, want WCUT/3/24h", a.Name(), a.MaxRun(), a.MinWait())
	}
	if !a.StartTime().Equal(t0) {
		t.Errorf("StartTime() = %v, want %v", a.StartTime(), t0)
	}
	if got := a.Expression().String(); got != "(FOPR > 100 AND WWCT 'OP*' > 0.8)" {
		t.Errorf("Expression() = %q", got)
	}

	conds := a.Conditions()
	if len(conds) != 2 || conds[1].Location.Line != 102 {
		t.Fatalf("Conditions() = %+v", conds)
	}
	if !reflect.DeepEqual(conds[0].Tokens, []string{"FOPR", ">", "100", "AND"}) {
		t.Errorf("Tokens = %v", conds[0].Tokens)
	}
}

func TestFromKeywordDefaults(t *testing.T) {
	kw := actionxKeyword(DeckRecord{Items: []DeckItem{StringValue("NAME", "A1"), Defaulted("NUM"), Defaulted("MIN_WAIT")}})

	a, err := FromKeyword(kw, t0)
	if err != nil {
		t.Fatalf("FromKeyword() failed: %v", err)
	}
	if a.MaxRun() != 1 {
		t.Errorf("MaxRun() = %d, want 1", a.MaxRun())
	}
	if a.MinWait() != 0 {
		t.Errorf("MinWait() = %s, want 0", a.MinWait())
	}
	if a.Expression().Root() != nil {
		t.Error("action without condition records should have an empty expression")
	}
}

func TestFromKeywordIntegerWait(t *testing.T) {
	kw := actionxKeyword(DeckRecord{Items: []DeckItem{StringValue("NAME", "A1"), IntValue("NUM", 1), IntValue("MIN_WAIT", 3600)}})

	a, err := FromKeyword(kw, t0)
	if err != nil {
		t.Fatalf("FromKeyword() failed: %v", err)
	}
	if a.MinWait() != time.Hour {
		t.Errorf("MinWait() = %s, want 1h", a.MinWait())
	}
}

func TestFromKeywordStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		kw   DeckKeyword
	}{
		{"wrong keyword", DeckKeyword{Name: "WELOPEN"}},
		{"no header", DeckKeyword{Name: "ACTIONX"}},
		{"missing name", actionxKeyword(DeckRecord{Items: []DeckItem{IntValue("NUM", 1), IntValue("MIN_WAIT", 0)}})},
		{"defaulted name", actionxKeyword(DeckRecord{Items: []DeckItem{Defaulted("NAME"), IntValue("NUM", 1), IntValue("MIN_WAIT", 0)}})},
		{"missing run limit", actionxKeyword(DeckRecord{Items: []DeckItem{StringValue("NAME", "A"), IntValue("MIN_WAIT", 0)}})},
		{"missing wait", actionxKeyword(DeckRecord{Items: []DeckItem{StringValue("NAME", "A"), IntValue("NUM", 1)}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromKeyword(tt.kw, t0)
			if !errors.Is(err, ErrStructuralRecord) {
				t.Errorf("error = %v, want ErrStructuralRecord", err)
			}
		})
	}
}

func TestFromKeywordConditionLocation(t *testing.T) {
	kw := actionxKeyword(
		DeckRecord{Items: []DeckItem{StringValue("NAME", "A1"), IntValue("NUM", 1), IntValue("MIN_WAIT", 0)}},
		conditionRecord(101, "FOPR", ">", "100", "AND"),
		conditionRecord(102, "QQQ", ">", "1"),
	)

	_, err := FromKeyword(kw, t0)
	var mce *MalformedConditionError
	if !errors.As(err, &mce) {
		t.Fatalf("error = %v, want *MalformedConditionError", err)
	}
	if mce.Location.Line != 102 || mce.Action != "A1" {
		t.Errorf("error at %v in %s, want line 102 in A1", mce.Location, mce.Action)
	}

	// records without their own location fall back to the keyword's
	kw.Records[2].Location = nil
	_, err = FromKeyword(kw, t0)
	if !errors.As(err, &mce) || mce.Location.Line != 100 {
		t.Errorf("error = %v, want location line 100", err)
	}
}

func welopen(well, status string) DeckKeyword {
	return DeckKeyword{
		Name:            "WELOPEN",
		Records:         []DeckRecord{{Items: []DeckItem{StringValue("WELL", well), StringValue("STATUS", status)}}},
		SlashTerminated: true,
	}
}

func TestSerializeToLines(t *testing.T) {
	a := newAction(t, 1, 0, "FOPR", ">", "100")

	if got := a.SerializeToLines(); !reflect.DeepEqual(got, []string{"ENDACTIO"}) {
		t.Errorf("empty batch = %q, want only ENDACTIO", got)
	}

	a.AddKeyword(welopen("OP1", "SHUT"))
	a.AddKeyword(DeckKeyword{
		Name: "WEFAC",
		Records: []DeckRecord{
			{Items: []DeckItem{StringValue("WELL", "OP2"), FloatValue("EFFICIENCY_FACTOR", 0.9)}},
		},
	})

	want := []string{
		"WELOPEN",
		"  'OP1' 'SHUT' /",
		"/",
		"WEFAC",
		"  'OP2' 0.9 /",
		"ENDACTIO",
	}
	if got := a.SerializeToLines(); !reflect.DeepEqual(got, want) {
		t.Errorf("SerializeToLines() = %q, want %q", got, want)
	}

	kws := a.Keywords()
	if len(kws) != 2 || kws[0].Name != "WELOPEN" || kws[1].Name != "WEFAC" {
		t.Errorf("Keywords() = %v", kws)
	}
}

func TestValidKeyword(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"WELSPECS", true},
		{"WELOPEN", true},
		{"welopen", true},
		{" WCONPROD ", true},
		{"GCONPROD", true},
		{"COMPDAT", false},
		{"PORO", false},
		{"DIMENS", false},
		{"ACTIONX", false},
		{"ENDACTIO", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidKeyword(tt.name); got != tt.want {
			t.Errorf("ValidKeyword(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCheckKeyword(t *testing.T) {
	tests := []struct {
		name    string
		kw      DeckKeyword
		wantErr string
	}{
		{"allowed", welopen("OP1", "SHUT"), ""},
		{"not replayable", DeckKeyword{Name: "COMPDAT"}, "not allowed inside an action"},
		{"quote in string item", welopen("O'NEIL", "SHUT"), `item WELL value "O'NEIL" contains a quote`},
		{"defaulted item ignored", DeckKeyword{Name: "WELTARG", Records: []DeckRecord{{Items: []DeckItem{StringValue("WELL", "OP1"), Defaulted("CMODE")}}}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckKeyword("ACT", tt.kw)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("CheckKeyword() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrStructuralRecord) {
				t.Fatalf("CheckKeyword() = %v, want ErrStructuralRecord", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefinitionBuildRejectsQuotedValue(t *testing.T) {
	def := &Definition{
		Name:       "QUOTE",
		MaxRun:     1,
		Conditions: []Condition{cond(1, "FWCT", ">", "0.8")},
		Keywords:   []DeckKeyword{welopen("O'NEIL", "SHUT")},
	}

	var sre *StructuralRecordError
	if _, err := def.Build(); !errors.As(err, &sre) || sre.Action != "QUOTE" {
		t.Errorf("Build() = %v, want StructuralRecordError for QUOTE", err)
	}
}

func TestDefinitionBuild(t *testing.T) {
	def := &Definition{
		Name:       "WCUT",
		MaxRun:     2,
		MinWait:    day,
		StartTime:  t0,
		Conditions: []Condition{cond(1, "FWCT", ">", "0.8")},
		Keywords:   []DeckKeyword{welopen("OP1", "SHUT")},
	}

	a, err := def.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if a.Name() != "WCUT" || a.MaxRun() != 2 || a.MinWait() != day || len(a.Keywords()) != 1 {
		t.Errorf("Build() = %s/%d/%s with %d keywords", a.Name(), a.MaxRun(), a.MinWait(), len(a.Keywords()))
	}

	back := a.Definition()
	if back.Name != def.Name || back.MaxRun != def.MaxRun || back.MinWait != def.MinWait || !back.StartTime.Equal(t0) {
		t.Errorf("Definition() = %+v", back)
	}
	if !reflect.DeepEqual(back.Conditions, def.Conditions) {
		t.Errorf("Definition() conditions = %+v", back.Conditions)
	}
}

func TestDefinitionBuildRejectsKeyword(t *testing.T) {
	def := &Definition{
		Name:     "BAD",
		MaxRun:   1,
		Keywords: []DeckKeyword{welopen("OP1", "SHUT"), {Name: "COMPDAT"}},
	}

	_, err := def.Build()
	var sre *StructuralRecordError
	if !errors.As(err, &sre) {
		t.Fatalf("error = %v, want *StructuralRecordError", err)
	}
	if sre.Keyword != "COMPDAT" {
		t.Errorf("Keyword = %q, want COMPDAT", sre.Keyword)
	}
}

func TestGateStateString(t *testing.T) {
	states := map[GateState]string{
		Pending:       "PENDING",
		Eligible:      "ELIGIBLE",
		Cooling:       "COOLING",
		Exhausted:     "EXHAUSTED",
		GateState(42): "UNKNOWN",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("String() = %q, want %q", s.String(), want)
		}
	}
}
