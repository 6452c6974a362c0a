package action

import "time"

// Definition is the storable form of one action: header values, condition
// records and keyword batch. Run state is not part of it.
type Definition struct {
	Name       string        `json:"name"`
	MaxRun     int           `json:"maxRun"`
	MinWait    time.Duration `json:"minWait"`
	StartTime  time.Time     `json:"startTime"`
	Conditions []Condition   `json:"conditions"`
	Keywords   []DeckKeyword `json:"keywords"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy of d
func (d *Definition) Clone() *Definition {
	cp := *d
	if d.Conditions != nil {
		cp.Conditions = make([]Condition, len(d.Conditions))
		for i, c := range d.Conditions {
			cp.Conditions[i] = NewCondition(c.Tokens, c.Location)
		}
	}
	if d.Keywords != nil {
		cp.Keywords = make([]DeckKeyword, len(d.Keywords))
		for i, kw := range d.Keywords {
			cp.Keywords[i] = kw.clone()
		}
	}
	return &cp
}

// Build parses the condition and queues the keyword batch. Every keyword must
// pass CheckKeyword.
func (d *Definition) Build() (*ActionX, error) {
	a, err := New(d.Name, d.MaxRun, d.MinWait, d.StartTime, d.Conditions)
	if err != nil {
		return nil, err
	}
	for _, kw := range d.Keywords {
		if err := CheckKeyword(a.Name(), kw); err != nil {
			return nil, err
		}
		a.AddKeyword(kw)
	}
	return a, nil
}

// Definition returns the storable form of the action
func (a *ActionX) Definition() *Definition {
	return &Definition{
		Name:       a.name,
		MaxRun:     a.maxRun,
		MinWait:    a.minWait,
		StartTime:  a.startTime,
		Conditions: a.Conditions(),
		Keywords:   a.Keywords(),
	}
}
