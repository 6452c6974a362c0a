package action

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Context is the read-only view of the simulation an expression is evaluated
// against. One Context must return consistent answers for the duration of an
// evaluation call and is never retained afterwards.
type Context interface {
	// Resolve returns the value of a single quantity. Field quantities carry
	// no entity; well and group quantities carry an exact entity name.
	Resolve(q Quantity) (float64, bool)

	// Entities lists the wells or groups that carry key and match pattern.
	// An empty pattern matches every entity.
	Entities(kind EntityKind, key, pattern string) []string
}

// EntitySet is a set of well or group names
type EntitySet map[string]struct{}

func NewEntitySet(names ...string) EntitySet {
	s := make(EntitySet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s EntitySet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members in sorted order
func (s EntitySet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s EntitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s *EntitySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewEntitySet(names...)
	return nil
}

func (s EntitySet) intersect(o EntitySet) EntitySet {
	out := make(EntitySet)
	for n := range s {
		if o.Has(n) {
			out[n] = struct{}{}
		}
	}
	return out
}

// Result is the outcome of one evaluation. Entities is nil when no
// entity-qualified comparison contributed to the result.
type Result struct {
	Fired    bool      `json:"fired"`
	Entities EntitySet `json:"entities,omitempty"`
}

// Eval evaluates the expression against ctx. An expression without condition
// records never holds.
func (e *Expression) Eval(action string, ctx Context) (Result, error) {
	if e.root == nil {
		return Result{}, nil
	}
	ev := evaluator{action: action, ctx: ctx}
	return ev.eval(e.root)
}

type evaluator struct {
	action string
	ctx    Context
}

func (ev evaluator) eval(n Node) (Result, error) {
	switch n := n.(type) {
	case *Logical:
		return ev.logical(n)
	case *Comparison:
		return ev.compare(n)
	case *Literal, *QuantityRef:
		return Result{}, fmt.Errorf("action %s: operand %s used as a condition", ev.action, n)
	default:
		panic(fmt.Sprintf("action: unhandled node type %T", n))
	}
}

func (ev evaluator) logical(n *Logical) (Result, error) {
	left, err := ev.eval(n.Left)
	if err != nil {
		return Result{}, err
	}

	switch n.Op {
	case And:
		if !left.Fired {
			return Result{}, nil
		}
		right, err := ev.eval(n.Right)
		if err != nil {
			return Result{}, err
		}
		if !right.Fired {
			return Result{}, nil
		}
		switch {
		case left.Entities != nil && right.Entities != nil:
			return Result{Fired: true, Entities: left.Entities.intersect(right.Entities)}, nil
		case left.Entities != nil:
			return left, nil
		default:
			return right, nil
		}
	case Or:
		if left.Fired {
			return left, nil
		}
		return ev.eval(n.Right)
	default:
		panic(fmt.Sprintf("action: unhandled logical operator %d", n.Op))
	}
}

// compare evaluates one comparison. Every well or group reference on either
// side of a comparison that holds contributes its entity to the result.
func (ev evaluator) compare(n *Comparison) (Result, error) {
	rhs, err := ev.scalar(n.Right)
	if err != nil {
		return Result{}, err
	}

	var res Result
	ref, ok := n.Left.(*QuantityRef)
	if ok && ref.Quantity.Multi() {
		res, err = ev.compareEach(ref.Quantity, n.Op, rhs)
	} else {
		res, err = ev.compareOne(n.Left, n.Op, rhs)
	}
	if err != nil || !res.Fired {
		return res, err
	}

	if r, ok := n.Right.(*QuantityRef); ok && r.Quantity.Kind != Field {
		if res.Entities == nil {
			res.Entities = make(EntitySet)
		}
		res.Entities[r.Quantity.Entity] = struct{}{}
	}
	return res, nil
}

func (ev evaluator) compareOne(left Node, op CompareOp, rhs float64) (Result, error) {
	lhs, err := ev.scalar(left)
	if err != nil {
		return Result{}, err
	}
	res := Result{Fired: op.Apply(lhs, rhs)}
	if ref, ok := left.(*QuantityRef); ok && ref.Quantity.Kind != Field && res.Fired {
		res.Entities = NewEntitySet(ref.Quantity.Entity)
	}
	return res, nil
}

func (ev evaluator) compareEach(q Quantity, op CompareOp, rhs float64) (Result, error) {
	names := ev.ctx.Entities(q.Kind, q.Key, q.Entity)
	sort.Strings(names)

	matched := make(EntitySet)
	for _, name := range names {
		v, err := ev.resolve(Quantity{Kind: q.Kind, Key: q.Key, Entity: name})
		if err != nil {
			return Result{}, err
		}
		if op.Apply(v, rhs) {
			matched[name] = struct{}{}
		}
	}
	if len(matched) == 0 {
		return Result{}, nil
	}
	return Result{Fired: true, Entities: matched}, nil
}

func (ev evaluator) scalar(n Node) (float64, error) {
	switch n := n.(type) {
	case *Literal:
		return n.Value, nil
	case *QuantityRef:
		return ev.resolve(n.Quantity)
	case *Comparison, *Logical:
		return 0, fmt.Errorf("action %s: condition %s used as an operand", ev.action, n)
	default:
		panic(fmt.Sprintf("action: unhandled node type %T", n))
	}
}

func (ev evaluator) resolve(q Quantity) (float64, error) {
	v, ok := ev.ctx.Resolve(q)
	if !ok {
		return 0, &UnresolvedQuantityError{Action: ev.action, Quantity: q}
	}
	return v, nil
}
