package action

import "fmt"

// Location identifies the input record a condition was read from
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("line %d", l.Line)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Token is one raw lexical unit of a condition expression
type Token struct {
	Text   string `json:"text"`
	Record int    `json:"record"` // index of the condition record the token came from
}

// Condition holds the raw tokens of one condition record and where it was read.
// Tokens are kept exactly as supplied for diagnostics.
type Condition struct {
	Tokens   []string `json:"tokens"`
	Location Location `json:"location"`
}

// NewCondition copies tokens so later changes by the caller do not leak in
func NewCondition(tokens []string, loc Location) Condition {
	cp := make([]string, len(tokens))
	copy(cp, tokens)
	return Condition{Tokens: cp, Location: loc}
}

// flatten concatenates the tokens of every condition in record order
func flatten(conditions []Condition) []Token {
	var out []Token
	for i, c := range conditions {
		for _, text := range c.Tokens {
			out = append(out, Token{Text: text, Record: i})
		}
	}
	return out
}
