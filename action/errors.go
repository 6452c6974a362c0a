package action

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedCondition = errors.New("malformed condition")
	ErrUnresolvedQuantity = errors.New("unresolved quantity")
	ErrStructuralRecord   = errors.New("structural record error")
	ErrActionNotFound     = errors.New("action not found")
	ErrActionExists       = errors.New("action already exists")
)

// MalformedConditionError is returned when the condition tokens of an action
// do not form a valid expression
type MalformedConditionError struct {
	Action   string
	Location Location
	Token    string // offending token, empty at end of input
	Reason   string
}

func (e *MalformedConditionError) Error() string {
	at := "end of condition"
	if e.Token != "" {
		at = fmt.Sprintf("token %q", e.Token)
	}
	return fmt.Sprintf("action %s: malformed condition at %s (%s): %s", e.Action, at, e.Location, e.Reason)
}

func (e *MalformedConditionError) Unwrap() error { return ErrMalformedCondition }

// UnresolvedQuantityError is returned when the evaluation context has no value
// for a quantity the condition refers to
type UnresolvedQuantityError struct {
	Action   string
	Quantity Quantity
}

func (e *UnresolvedQuantityError) Error() string {
	return fmt.Sprintf("action %s: cannot resolve %s", e.Action, e.Quantity)
}

func (e *UnresolvedQuantityError) Unwrap() error { return ErrUnresolvedQuantity }

// StructuralRecordError covers missing header fields and keywords that are not
// allowed inside an action
type StructuralRecordError struct {
	Action  string
	Field   string
	Keyword string
	Reason  string
}

func (e *StructuralRecordError) Error() string {
	switch {
	case e.Keyword != "":
		return fmt.Sprintf("action %s: keyword %s: %s", e.Action, e.Keyword, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("action %s: field %s: %s", e.Action, e.Field, e.Reason)
	default:
		return fmt.Sprintf("action %s: %s", e.Action, e.Reason)
	}
}

func (e *StructuralRecordError) Unwrap() error { return ErrStructuralRecord }
