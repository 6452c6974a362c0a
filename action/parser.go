package action

import (
	"fmt"
	"strings"
)

// Expression is the parsed trigger condition of an action. It is immutable
// once built and may be shared between goroutines.
type Expression struct {
	root Node
}

// Root returns the top node, nil for an action without condition records
func (e *Expression) Root() Node { return e.root }

func (e *Expression) String() string {
	if e.root == nil {
		return ""
	}
	return e.root.String()
}

// BuildExpression parses the tokens of all condition records, concatenated in
// record order, into one expression. AND binds tighter than OR and both are
// left associative; a connective at the end of one record continues into the
// next.
func BuildExpression(action string, conditions []Condition) (*Expression, error) {
	p := &parser{
		action:     action,
		conditions: conditions,
		lexemes:    lex(flatten(conditions)),
	}
	if len(p.lexemes) == 0 {
		return &Expression{}, nil
	}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		lx := p.peek()
		if lx.kind == lexClose {
			return nil, p.errorf(lx, "unbalanced closing parenthesis")
		}
		return nil, p.errorf(lx, "unexpected %s after complete condition", lx.kind)
	}
	return &Expression{root: root}, nil
}

type parser struct {
	action     string
	conditions []Condition
	lexemes    []lexeme
	pos        int
}

func (p *parser) done() bool { return p.pos >= len(p.lexemes) }

func (p *parser) peek() lexeme { return p.lexemes[p.pos] }

func (p *parser) next() lexeme {
	lx := p.lexemes[p.pos]
	p.pos++
	return lx
}

func (p *parser) errorf(lx lexeme, reason string, args ...any) error {
	err := &MalformedConditionError{
		Action: p.action,
		Token:  lx.text,
		Reason: fmt.Sprintf(reason, args...),
	}
	if lx.src.Record < len(p.conditions) {
		err.Location = p.conditions[lx.src.Record].Location
	}
	return err
}

func (p *parser) errorEOF(reason string) error {
	err := &MalformedConditionError{Action: p.action, Reason: reason}
	if n := len(p.conditions); n > 0 {
		err.Location = p.conditions[n-1].Location
	}
	return err
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for !p.done() && p.peek().kind == lexOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: Or, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for !p.done() && p.peek().kind == lexAnd {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: And, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (Node, error) {
	if p.done() {
		return nil, p.errorEOF("missing operand")
	}

	if p.peek().kind == lexOpen {
		open := p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.done() {
			return nil, p.errorf(open, "unbalanced opening parenthesis")
		}
		if lx := p.next(); lx.kind != lexClose {
			return nil, p.errorf(lx, "expected closing parenthesis, found %s", lx.kind)
		}
		return inner, nil
	}

	left, err := p.parseOperand(true)
	if err != nil {
		return nil, err
	}

	if p.done() {
		return nil, p.errorEOF("missing comparison operator")
	}
	lx := p.next()
	if lx.kind != lexCompare {
		return nil, p.errorf(lx, "expected comparison operator, found %s", lx.kind)
	}
	op, _ := parseCompareOp(lx.text)

	right, err := p.parseOperand(false)
	if err != nil {
		return nil, err
	}
	if _, ok := left.(*Literal); ok {
		if _, ok := right.(*Literal); ok {
			return nil, p.errorf(lx, "comparison between two constants")
		}
	}
	return &Comparison{Op: op, Left: left, Right: right}, nil
}

// parseOperand reads a number, a month name or a quantity with its optional
// well/group argument. Only the left operand may name several entities.
func (p *parser) parseOperand(left bool) (Node, error) {
	if p.done() {
		return nil, p.errorEOF("missing operand")
	}
	lx := p.next()

	switch lx.kind {
	case lexNumber:
		return &Literal{Value: lx.number}, nil
	case lexWord:
	default:
		return nil, p.errorf(lx, "expected operand, found %s", lx.kind)
	}

	key := strings.ToUpper(lx.text)
	if !lx.quoted {
		if m, ok := months[key]; ok {
			return &Literal{Value: m}, nil
		}
	}

	kind, ok := kindOf(key)
	if lx.quoted || !ok {
		return nil, p.errorf(lx, "unknown quantity %q", lx.text)
	}
	q := Quantity{Kind: kind, Key: key}

	if kind != Field && !p.done() && isArgument(p.peek()) {
		q.Entity = p.next().text
	}

	if !left && q.Multi() {
		return nil, p.errorf(lx, "right hand side %s must name a single %s", q, q.Kind)
	}
	return &QuantityRef{Quantity: q}, nil
}

func isArgument(lx lexeme) bool {
	return lx.kind == lexWord || lx.kind == lexNumber
}
