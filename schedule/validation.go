package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/liamcoop/actionx/action"
)

const (
	maxActionNameLength = 8
	maxConditionRecords = 100
	maxKeywords         = 200
	maxDerived          = 100
)

// ErrInvalidDefinition wraps every structural validation failure of an action
// definition or a case
var ErrInvalidDefinition = errors.New("invalid definition")

var (
	actionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
	derivedKeyPattern = regexp.MustCompile(`^F[A-Z0-9_]+$`)
)

// ValidateDefinition checks the structure of an action definition before it
// is built or stored. Condition grammar is checked when the action is built.
func ValidateDefinition(def *action.Definition) error {
	if err := validateActionName(def.Name); err != nil {
		return fmt.Errorf("%w: action name %q: %v", ErrInvalidDefinition, def.Name, err)
	}

	if def.MaxRun < 0 {
		return fmt.Errorf("%w: action %s: run limit %d cannot be negative", ErrInvalidDefinition, def.Name, def.MaxRun)
	}
	if def.MinWait < 0 {
		return fmt.Errorf("%w: action %s: minimum wait %s cannot be negative", ErrInvalidDefinition, def.Name, def.MinWait)
	}

	if len(def.Conditions) > maxConditionRecords {
		return fmt.Errorf("%w: action %s has %d condition records, maximum allowed is %d", ErrInvalidDefinition, def.Name, len(def.Conditions), maxConditionRecords)
	}
	for i, c := range def.Conditions {
		if len(c.Tokens) == 0 {
			return fmt.Errorf("%w: action %s: condition record %d is empty", ErrInvalidDefinition, def.Name, i+1)
		}
	}

	if len(def.Keywords) > maxKeywords {
		return fmt.Errorf("%w: action %s has %d keywords, maximum allowed is %d", ErrInvalidDefinition, def.Name, len(def.Keywords), maxKeywords)
	}
	for _, kw := range def.Keywords {
		if err := action.CheckKeyword(def.Name, kw); err != nil {
			return err
		}
	}

	return nil
}

// validateActionName follows deck naming: 1-8 characters, no spaces or quotes
func validateActionName(name string) error {
	if len(name) == 0 {
		return errors.New("name cannot be empty")
	}
	if len(name) > maxActionNameLength {
		return fmt.Errorf("name length %d exceeds maximum of %d characters", len(name), maxActionNameLength)
	}
	if !actionNamePattern.MatchString(name) {
		return fmt.Errorf("must match pattern %s", actionNamePattern)
	}
	return nil
}

// ValidateDerived checks the derived quantity keys of a case. Expressions are
// checked when they are compiled.
func ValidateDerived(derived map[string]string) error {
	if len(derived) > maxDerived {
		return fmt.Errorf("%w: case defines %d derived quantities, maximum allowed is %d", ErrInvalidDefinition, len(derived), maxDerived)
	}
	for key, expr := range derived {
		if !derivedKeyPattern.MatchString(key) {
			return fmt.Errorf("%w: derived key %q must match pattern %s", ErrInvalidDefinition, key, derivedKeyPattern)
		}
		if strings.TrimSpace(expr) == "" {
			return fmt.Errorf("%w: derived key %s has an empty expression", ErrInvalidDefinition, key)
		}
	}
	return nil
}
