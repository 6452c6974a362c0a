package action

import (
	"fmt"
	"strings"
)

// EntityKind says what a summary quantity is measured on
type EntityKind int

const (
	Field EntityKind = iota
	Well
	Group
)

func (k EntityKind) String() string {
	switch k {
	case Field:
		return "field"
	case Well:
		return "well"
	case Group:
		return "group"
	default:
		return "unknown"
	}
}

// Quantity references one summary vector, optionally bound to a well or group.
// An empty Entity on a well or group quantity means every entity carrying Key.
type Quantity struct {
	Kind   EntityKind `json:"kind"`
	Key    string     `json:"key"`
	Entity string     `json:"entity,omitempty"`
}

func (q Quantity) String() string {
	if q.Entity == "" {
		return q.Key
	}
	return fmt.Sprintf("%s '%s'", q.Key, q.Entity)
}

// Multi reports whether the quantity can resolve to more than one entity
func (q Quantity) Multi() bool {
	if q.Kind == Field {
		return false
	}
	return q.Entity == "" || IsPattern(q.Entity)
}

// IsPattern reports whether name contains shell wildcard characters
func IsPattern(name string) bool {
	return strings.ContainsAny(name, "*?[")
}

// calendar keys are field level quantities supplied by the context
var calendarKeys = map[string]bool{
	"DAY":  true,
	"MNTH": true,
	"YEAR": true,
}

// kindOf classifies a summary key by its prefix
func kindOf(key string) (EntityKind, bool) {
	if calendarKeys[key] {
		return Field, true
	}
	if len(key) < 2 {
		return Field, false
	}
	switch key[0] {
	case 'F':
		return Field, true
	case 'W':
		return Well, true
	case 'G':
		return Group, true
	}
	return Field, false
}

var months = map[string]float64{
	"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
	"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
}
