package action

import (
	"fmt"
	"strings"
)

// EndKeyword closes the keyword block of an action in rendered output
const EndKeyword = "ENDACTIO"

// replayable lists the directives that may be queued inside an action. Only
// well and group specification or operating state directives are allowed;
// grid, PVT and run configuration keywords cannot be applied mid run.
var replayable = map[string]struct{}{
	"WELSPECS": {},
	"WELOPEN":  {},
	"WCONPROD": {},
	"WCONINJE": {},
	"WELTARG":  {},
	"WTEST":    {},
	"WELPI":    {},
	"WEFAC":    {},
	"WECON":    {},
	"WSEGVALV": {},
	"GCONPROD": {},
	"GCONINJE": {},
	"GEFAC":    {},
}

// ValidKeyword reports whether a directive may be queued in an action
func ValidKeyword(name string) bool {
	_, ok := replayable[strings.ToUpper(strings.TrimSpace(name))]
	return ok
}

// CheckKeyword reports a StructuralRecordError when kw may not be queued in
// the named action. String items cannot contain a single quote; deck records
// have no way to escape one.
func CheckKeyword(actionName string, kw DeckKeyword) error {
	if !ValidKeyword(kw.Name) {
		return &StructuralRecordError{Action: actionName, Keyword: kw.Name, Reason: "not allowed inside an action"}
	}
	for i, rec := range kw.Records {
		for _, it := range rec.Items {
			if it.Kind == StringItem && !it.Defaulted && strings.Contains(it.Str, "'") {
				return &StructuralRecordError{
					Action:  actionName,
					Keyword: kw.Name,
					Reason:  fmt.Sprintf("record %d: item %s value %q contains a quote", i+1, it.Name, it.Str),
				}
			}
		}
	}
	return nil
}

// KeywordLines renders keywords one line per emitted record line, drops empty
// lines and always ends with EndKeyword.
func KeywordLines(keywords []DeckKeyword) []string {
	var b strings.Builder
	for _, kw := range keywords {
		b.WriteString(kw.String())
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return append(lines, EndKeyword)
}
