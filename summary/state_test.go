package summary

import (
	"sync"
	"testing"
	"time"

	"github.com/liamcoop/actionx/action"
)

func fixture() *State {
	st := NewState()
	st.SetField("FOPR", 200)
	st.SetField("FWPR", 99)
	st.SetWell("WWCT", "OP1", 0.9)
	st.SetWell("WWCT", "OP2", 0.3)
	st.SetWell("WWCT", "INJ1", 0.99)
	st.SetWell("WBHP", "OP1", 150)
	st.SetGroup("GOPR", "PLAT-A", 170)
	st.SetGroup("GOPR", "PLAT-B", 30)
	return st
}

func TestStateResolve(t *testing.T) {
	st := fixture()

	tests := []struct {
		name   string
		q      action.Quantity
		want   float64
		wantOK bool
	}{
		{"field", action.Quantity{Kind: action.Field, Key: "FOPR"}, 200, true},
		{"missing field", action.Quantity{Kind: action.Field, Key: "FGPR"}, 0, false},
		{"well", action.Quantity{Kind: action.Well, Key: "WWCT", Entity: "OP2"}, 0.3, true},
		{"well missing key", action.Quantity{Kind: action.Well, Key: "WBHP", Entity: "OP2"}, 0, false},
		{"unknown well", action.Quantity{Kind: action.Well, Key: "WWCT", Entity: "OP9"}, 0, false},
		{"group", action.Quantity{Kind: action.Group, Key: "GOPR", Entity: "PLAT-B"}, 30, true},
		{"group key on a well", action.Quantity{Kind: action.Well, Key: "GOPR", Entity: "PLAT-B"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := st.Resolve(tt.q)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Resolve(%v) = %v, %v; want %v, %v", tt.q, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStateEntities(t *testing.T) {
	st := fixture()

	tests := []struct {
		name    string
		kind    action.EntityKind
		key     string
		pattern string
		want    []string
	}{
		{"every well with key", action.Well, "WWCT", "", []string{"INJ1", "OP1", "OP2"}},
		{"wildcard", action.Well, "WWCT", "OP*", []string{"OP1", "OP2"}},
		{"single character wildcard", action.Well, "WWCT", "OP?", []string{"OP1", "OP2"}},
		{"key limits entities", action.Well, "WBHP", "", []string{"OP1"}},
		{"exact name", action.Group, "GOPR", "PLAT-A", []string{"PLAT-A"}},
		{"no match", action.Group, "GOPR", "SUB*", nil},
		{"field has no entities", action.Field, "FOPR", "", nil},
		{"malformed pattern", action.Well, "WWCT", "[", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := st.Entities(tt.kind, tt.key, tt.pattern)
			if len(got) != len(tt.want) {
				t.Fatalf("Entities() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Entities()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestStateSetTime(t *testing.T) {
	st := NewState()
	st.SetTime(time.Date(2021, time.June, 15, 0, 0, 0, 0, time.UTC))

	for key, want := range map[string]float64{"DAY": 15, "MNTH": 6, "YEAR": 2021} {
		got, ok := st.Resolve(action.Quantity{Kind: action.Field, Key: key})
		if !ok || got != want {
			t.Errorf("Resolve(%s) = %v, %v; want %v", key, got, ok, want)
		}
	}
}

func TestStateDerivedQuantity(t *testing.T) {
	st := fixture()
	d, err := NewDerived("FWOR", "field.FWPR / (field.FOPR + 1.0)")
	if err != nil {
		t.Fatalf("NewDerived() failed: %v", err)
	}
	st.Define(d)

	got, ok := st.Resolve(action.Quantity{Kind: action.Field, Key: "FWOR"})
	if !ok || got != 99.0/201.0 {
		t.Errorf("Resolve(FWOR) = %v, %v; want %v", got, ok, 99.0/201.0)
	}

	// a reported value wins over a derived one with the same key
	st.SetField("FWOR", 7)
	if got, _ := st.Resolve(action.Quantity{Kind: action.Field, Key: "FWOR"}); got != 7 {
		t.Errorf("Resolve(FWOR) = %v, want reported value 7", got)
	}
}

func TestStateDerivedMissingInput(t *testing.T) {
	st := NewState()
	d, err := NewDerived("FRATIO", "field.FWPR / field.FOPR")
	if err != nil {
		t.Fatalf("NewDerived() failed: %v", err)
	}
	st.Define(d)

	if _, ok := st.Resolve(action.Quantity{Kind: action.Field, Key: "FRATIO"}); ok {
		t.Error("derived quantity with missing inputs should not resolve")
	}
}

func TestFromSnapshot(t *testing.T) {
	at := time.Date(2020, time.March, 2, 0, 0, 0, 0, time.UTC)
	d, _ := NewDerived("FTOTAL", "field.FOPR + group['PLAT'].GOPR")
	st := FromSnapshot(Snapshot{
		Time:   &at,
		Field:  map[string]float64{"FOPR": 10},
		Wells:  map[string]map[string]float64{"OP1": {"WOPR": 4}},
		Groups: map[string]map[string]float64{"PLAT": {"GOPR": 5}},
	}, d)

	checks := []struct {
		q    action.Quantity
		want float64
	}{
		{action.Quantity{Kind: action.Field, Key: "FOPR"}, 10},
		{action.Quantity{Kind: action.Field, Key: "MNTH"}, 3},
		{action.Quantity{Kind: action.Well, Key: "WOPR", Entity: "OP1"}, 4},
		{action.Quantity{Kind: action.Group, Key: "GOPR", Entity: "PLAT"}, 5},
		{action.Quantity{Kind: action.Field, Key: "FTOTAL"}, 15},
	}
	for _, c := range checks {
		if got, ok := st.Resolve(c.q); !ok || got != c.want {
			t.Errorf("Resolve(%v) = %v, %v; want %v", c.q, got, ok, c.want)
		}
	}
}

func TestStateDrivesConditions(t *testing.T) {
	a, err := action.New("WATER", 1, 0, time.Time{}, []action.Condition{
		action.NewCondition([]string{"WWCT", "'OP*'", ">", "0.5", "AND", "FOPR", ">", "100"}, action.Location{Line: 1}),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	res, err := a.Eval(time.Time{}, fixture())
	if err != nil {
		t.Fatalf("Eval() failed: %v", err)
	}
	if !res.Fired {
		t.Fatal("condition should hold")
	}
	if got := res.Entities.Names(); len(got) != 1 || got[0] != "OP1" {
		t.Errorf("entities = %v, want [OP1]", got)
	}
}

func TestStateConcurrentAccess(t *testing.T) {
	st := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			st.SetWell("WOPR", "OP1", float64(i))
		}(i)
		go func() {
			defer wg.Done()
			st.Entities(action.Well, "WOPR", "OP*")
			st.Resolve(action.Quantity{Kind: action.Well, Key: "WOPR", Entity: "OP1"})
		}()
	}
	wg.Wait()

	if _, ok := st.Resolve(action.Quantity{Kind: action.Well, Key: "WOPR", Entity: "OP1"}); !ok {
		t.Error("WOPR for OP1 should resolve")
	}
}
