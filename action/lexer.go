package action

import (
	"strconv"
	"strings"
)

type lexKind int

const (
	lexWord lexKind = iota
	lexNumber
	lexCompare
	lexAnd
	lexOr
	lexOpen
	lexClose
)

func (k lexKind) String() string {
	switch k {
	case lexWord:
		return "WORD"
	case lexNumber:
		return "NUMBER"
	case lexCompare:
		return "COMPARATOR"
	case lexAnd:
		return "AND"
	case lexOr:
		return "OR"
	case lexOpen:
		return "OPEN_PAREN"
	case lexClose:
		return "CLOSE_PAREN"
	default:
		return "UNKNOWN"
	}
}

type lexeme struct {
	kind   lexKind
	text   string
	number float64
	quoted bool
	src    Token
}

// lex classifies raw tokens. Parentheses glued to a word ("(WWCT", "'OP1')")
// are split off first; single quotes around what remains are removed and the
// token is then always a word.
func lex(tokens []Token) []lexeme {
	var out []lexeme
	for _, tok := range tokens {
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}

		for strings.HasPrefix(text, "(") {
			out = append(out, lexeme{kind: lexOpen, text: "(", src: tok})
			text = text[1:]
		}
		closing := 0
		for strings.HasSuffix(text, ")") && !isQuoted(text) {
			closing++
			text = text[:len(text)-1]
		}
		switch {
		case isQuoted(text):
			out = append(out, lexeme{kind: lexWord, text: text[1 : len(text)-1], quoted: true, src: tok})
		case text != "":
			out = append(out, classify(text, tok))
		}
		for i := 0; i < closing; i++ {
			out = append(out, lexeme{kind: lexClose, text: ")", src: tok})
		}
	}
	return out
}

func isQuoted(text string) bool {
	return len(text) >= 2 && text[0] == '\'' && text[len(text)-1] == '\''
}

func classify(text string, tok Token) lexeme {
	switch text {
	case ">", ">=", "<", "<=", "=", "!=":
		return lexeme{kind: lexCompare, text: text, src: tok}
	}

	switch strings.ToUpper(text) {
	case "AND":
		return lexeme{kind: lexAnd, text: "AND", src: tok}
	case "OR":
		return lexeme{kind: lexOr, text: "OR", src: tok}
	}

	if v, ok := parseNumber(text); ok {
		return lexeme{kind: lexNumber, text: text, number: v, src: tok}
	}
	return lexeme{kind: lexWord, text: text, src: tok}
}

// parseNumber accepts Fortran style D exponents as written in deck files
func parseNumber(text string) (float64, bool) {
	c := text[0]
	if !(c >= '0' && c <= '9') && c != '.' && c != '-' && c != '+' {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.NewReplacer("D", "E", "d", "e").Replace(text), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
