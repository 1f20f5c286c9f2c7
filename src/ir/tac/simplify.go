package tac

import (
	"fmt"

	"decafc/src/backend/regfile"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// TermKind differentiates leaves from operator nodes of an expression Term.
type TermKind int

// Term is an expression tree ready to be flattened. Leaves hold an operand plus the
// instructions that compute it, e.g. a dynamic array index or a method call. Operator
// nodes hold an operator and one or two children.
type Term struct {
	kind  TermKind
	op    string
	args  []*Term
	value Operand
	setup []Instruction
	lower Lowering
}

// Lowering computes the operand of a deferred leaf. It may acquire temporaries, so it
// runs only when the leaf is reached during flattening.
type Lowering func() (Operand, []Instruction, error)

// Flat is a flattened expression. When the result is pending, the last instruction
// of Code still lacks a destination and Into patches it. Otherwise Value holds the
// result, which may keep temporaries alive until Into consumes it.
type Flat struct {
	Code    []Instruction
	Value   Operand
	pending bool
	used    bool
	regs    regfile.RegisterFile
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	LeafTerm TermKind = iota
	UnaryTerm
	BinaryTerm
)

// ---------------------
// ----- Functions -----
// ---------------------

// Leaf returns a leaf Term whose value is computed by setup.
func Leaf(v Operand, setup ...Instruction) *Term {
	return &Term{kind: LeafTerm, value: v, setup: setup}
}

// Deferred returns a leaf Term lowered by fn once every operand to its left has been
// flattened and holds its temporary.
func Deferred(fn Lowering) *Term {
	return &Term{kind: LeafTerm, lower: fn}
}

// Unary returns the Term applying op to x.
func Unary(op string, x *Term) *Term {
	return &Term{kind: UnaryTerm, op: op, args: []*Term{x}}
}

// Binary returns the Term applying op to l and r.
func Binary(l *Term, op string, r *Term) *Term {
	return &Term{kind: BinaryTerm, op: op, args: []*Term{l, r}}
}

// Kind returns the term kind.
func (t *Term) Kind() TermKind {
	return t.kind
}

// Internal returns true for operator nodes.
func (t *Term) Internal() bool {
	return t.kind != LeafTerm
}

// Nodes returns the number of operator nodes in t.
func (t *Term) Nodes() int {
	if t == nil || !t.Internal() {
		return 0
	}
	n := 1
	for _, e1 := range t.args {
		n += e1.Nodes()
	}
	return n
}

// operand returns the value of leaf t and the instructions computing it, running the
// lowering of a deferred leaf.
func (t *Term) operand() (Operand, []Instruction, error) {
	if t.lower == nil {
		if t.value.IsZero() {
			return Operand{}, nil, malformed("leaf without value")
		}
		return t.value, t.setup, nil
	}
	v, code, err := t.lower()
	if err != nil {
		return Operand{}, nil, err
	}
	if v.IsZero() {
		return Operand{}, nil, malformed("leaf without value")
	}
	return v, code, nil
}

// arity returns the number of children an operator node must have.
func (t *Term) arity() int {
	switch t.kind {
	case UnaryTerm:
		return 1
	case BinaryTerm:
		return 2
	default:
		return 0
	}
}

// Simplify flattens t into three-address instructions, visiting children depth first
// and left to right. Every operator node other than the top one writes a freshly
// acquired temporary; the temporaries and index registers of its operands are
// released after the acquisition, so a destination never aliases its own operands.
// Deferred leaves are lowered when visited, while the results of their left siblings
// still hold their temporaries. When top is set the top node is left without a
// destination for Into to patch.
func Simplify(t *Term, regs regfile.RegisterFile, top bool) (*Flat, error) {
	if t == nil {
		return nil, malformed("expression is <nil>")
	}
	if !t.Internal() {
		v, setup, err := t.operand()
		if err != nil {
			return nil, err
		}
		code := make([]Instruction, len(setup))
		copy(code, setup)
		return &Flat{Code: code, Value: v, regs: regs}, nil
	}
	code, v, err := simplify(t, regs, top)
	if err != nil {
		return nil, err
	}
	return &Flat{Code: code, Value: v, pending: top, regs: regs}, nil
}

// simplify flattens operator node t. On failure, temporaries held by the operands
// flattened so far are released.
func simplify(t *Term, regs regfile.RegisterFile, top bool) ([]Instruction, Operand, error) {
	if len(t.args) != t.arity() {
		return nil, Operand{}, malformed("operator %q takes %d operands, got %d", t.op, t.arity(), len(t.args))
	}
	res := make([]Instruction, 0, 4)
	ops := make([]Operand, 0, len(t.args))
	fail := func(err error) ([]Instruction, Operand, error) {
		for _, e1 := range ops {
			release(regs, e1)
		}
		return nil, Operand{}, err
	}

	for _, e1 := range t.args {
		switch {
		case e1 == nil:
			return fail(malformed("operator %q has a <nil> operand", t.op))
		case e1.Internal():
			c, v, err := simplify(e1, regs, false)
			if err != nil {
				return fail(err)
			}
			res = append(res, c...)
			ops = append(ops, v)
		default:
			v, setup, err := e1.operand()
			if err != nil {
				return fail(fmt.Errorf("operator %q: %w", t.op, err))
			}
			res = append(res, setup...)
			ops = append(ops, v)
		}
	}

	var dest Operand
	if !top {
		r, err := regs.Acquire()
		if err != nil {
			return fail(err)
		}
		dest = Reg(r)
	}
	for _, e1 := range ops {
		release(regs, e1)
	}

	ins := NewExpr(t.op, ops[0], Operand{})
	if len(ops) > 1 {
		ins.arg2 = ops[1]
	}
	ins.dest = dest
	return append(res, ins), dest, nil
}

// Pending returns true if the last instruction still lacks a destination.
func (f *Flat) Pending() bool {
	return f.pending
}

// Into returns the instructions storing the value of f in dst. A pending result is
// patched in place; otherwise a move is appended and the temporaries held by the
// value are released. A Flat is consumed by Into.
func (f *Flat) Into(dst Operand) ([]Instruction, error) {
	if f.used {
		return nil, malformed("expression result already stored")
	}
	res := make([]Instruction, len(f.Code), len(f.Code)+1)
	copy(res, f.Code)
	if f.pending {
		last, err := res[len(res)-1].Patch(dst)
		if err != nil {
			return nil, err
		}
		res[len(res)-1] = last
		f.used = true
		return res, nil
	}
	if dst.IsZero() || dst.Kind() == LiteralOperand || dst.Kind() == LabelOperand {
		return nil, malformed("invalid destination %q", dst.String())
	}
	res = append(res, Mov(dst, f.Value))
	release(f.regs, f.Value)
	f.used = true
	return res, nil
}
