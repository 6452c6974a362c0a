package action

import (
	"strconv"
	"strings"
)

// Node is one node of a parsed condition. The set of node types is closed:
// Literal, QuantityRef, Comparison and Logical.
type Node interface {
	node()
	String() string
}

// CompareOp is a numeric comparison operator
type CompareOp int

const (
	Greater CompareOp = iota
	GreaterEqual
	Less
	LessEqual
	Equal
	NotEqual
)

var compareSymbols = map[CompareOp]string{
	Greater:      ">",
	GreaterEqual: ">=",
	Less:         "<",
	LessEqual:    "<=",
	Equal:        "=",
	NotEqual:     "!=",
}

func (op CompareOp) String() string { return compareSymbols[op] }

func parseCompareOp(s string) (CompareOp, bool) {
	for op, sym := range compareSymbols {
		if sym == s {
			return op, true
		}
	}
	return 0, false
}

// Apply compares two values exactly as written; "=" is plain float equality
func (op CompareOp) Apply(lhs, rhs float64) bool {
	switch op {
	case Greater:
		return lhs > rhs
	case GreaterEqual:
		return lhs >= rhs
	case Less:
		return lhs < rhs
	case LessEqual:
		return lhs <= rhs
	case Equal:
		return lhs == rhs
	case NotEqual:
		return lhs != rhs
	}
	return false
}

// LogicalOp joins two boolean sub-conditions
type LogicalOp int

const (
	And LogicalOp = iota
	Or
)

func (op LogicalOp) String() string {
	if op == And {
		return "AND"
	}
	return "OR"
}

// Literal is a numeric constant
type Literal struct {
	Value float64
}

// QuantityRef is a reference to a summary quantity resolved through the Context
type QuantityRef struct {
	Quantity Quantity
}

// Comparison compares two operands, each a Literal or a QuantityRef
type Comparison struct {
	Op    CompareOp
	Left  Node
	Right Node
}

// Logical combines two sub-conditions with AND or OR
type Logical struct {
	Op    LogicalOp
	Left  Node
	Right Node
}

func (*Literal) node()     {}
func (*QuantityRef) node() {}
func (*Comparison) node()  {}
func (*Logical) node()     {}

func (l *Literal) String() string {
	return strconv.FormatFloat(l.Value, 'g', -1, 64)
}

func (q *QuantityRef) String() string { return q.Quantity.String() }

func (c *Comparison) String() string {
	return c.Left.String() + " " + c.Op.String() + " " + c.Right.String()
}

func (l *Logical) String() string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(l.Left.String())
	b.WriteString(" ")
	b.WriteString(l.Op.String())
	b.WriteString(" ")
	b.WriteString(l.Right.String())
	b.WriteString(")")
	return b.String()
}
