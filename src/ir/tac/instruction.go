// Package tac generates three-address code from the typed syntax tree.
package tac

import (
	"strings"

	"decafc/src/backend/regfile"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Kind differentiates instructions with operands from labels and single operation markers.
type Kind int

// Instruction is one line of three-address code. Instructions are immutable; Patch
// returns a copy with the destination set.
type Instruction struct {
	op   string  // Operation code. Doubles as the label text for labels.
	arg1 Operand // First source operand. Destination of MOV.
	arg2 Operand // Second source operand. Source of MOV, target of conditional jumps.
	dest Operand // Destination, zero if unset.
	kind Kind
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	ExprKind Kind = iota
	LabelKind
	SingleKind
)

// Operation codes other than the source language operators.
const (
	OpMov     = "MOV"    // MOV DST SRC
	OpGoto    = "GOTO"   // GOTO LABEL
	OpIf      = "IF"     // IF FLAG GOTO LABEL
	OpIfNot   = "IF NOT" // IF NOT FLAG GOTO LABEL
	OpBranch  = "BX"     // BX LR, return to caller.
	OpSave    = "PSHA"   // Save all registers.
	OpRestore = "POPA"   // Restore all registers.
)

// ---------------------
// ----- Functions -----
// ---------------------

// NewExpr returns an instruction applying op to arg1 and, for binary operators, arg2.
// The destination is unset.
func NewExpr(op string, arg1, arg2 Operand) Instruction {
	return Instruction{op: op, arg1: arg1, arg2: arg2, kind: ExprKind}
}

// NewLabel returns a label instruction.
func NewLabel(name string) Instruction {
	return Instruction{op: name, kind: LabelKind}
}

// NewSingle returns a single operation marker such as OpSave.
func NewSingle(op string) Instruction {
	return Instruction{op: op, kind: SingleKind}
}

// Mov returns a move of src into dst.
func Mov(dst, src Operand) Instruction {
	return NewExpr(OpMov, dst, src)
}

// Goto returns an unconditional jump to label.
func Goto(label string) Instruction {
	return NewExpr(OpGoto, LabelRef(label), Operand{})
}

// If returns a jump to label taken when flag is set.
func If(flag regfile.Register, label string) Instruction {
	return NewExpr(OpIf, Reg(flag), LabelRef(label))
}

// IfNot returns a jump to label taken when flag is clear.
func IfNot(flag regfile.Register, label string) Instruction {
	return NewExpr(OpIfNot, Reg(flag), LabelRef(label))
}

// Return returns the branch to the link register.
func Return() Instruction {
	return NewExpr(OpBranch, Reg(regfile.LR), Operand{})
}

// Op returns the operation code.
func (ins Instruction) Op() string {
	return ins.op
}

// Arg1 returns the first operand.
func (ins Instruction) Arg1() Operand {
	return ins.arg1
}

// Arg2 returns the second operand.
func (ins Instruction) Arg2() Operand {
	return ins.arg2
}

// Dest returns the destination.
func (ins Instruction) Dest() Operand {
	return ins.dest
}

// Kind returns the instruction kind.
func (ins Instruction) Kind() Kind {
	return ins.kind
}

// IsControl returns true for moves, jumps, returns and markers: instructions that
// never take a destination.
func (ins Instruction) IsControl() bool {
	if ins.kind != ExprKind {
		return true
	}
	switch ins.op {
	case OpMov, OpGoto, OpIf, OpIfNot, OpBranch:
		return true
	}
	return false
}

// Patch returns a copy of ins writing its result to dst. Only operator instructions
// without a destination can be patched.
func (ins Instruction) Patch(dst Operand) (Instruction, error) {
	if ins.IsControl() {
		return ins, malformed("cannot set destination of %q", ins.String())
	}
	if !ins.dest.IsZero() {
		return ins, malformed("destination of %q already set", ins.String())
	}
	if dst.IsZero() || dst.Kind() == LiteralOperand || dst.Kind() == LabelOperand {
		return ins, malformed("invalid destination %q", dst.String())
	}
	ins.dest = dst
	return ins, nil
}

// String returns the textual form of the instruction.
func (ins Instruction) String() string {
	if ins.kind == LabelKind || ins.kind == SingleKind {
		return ins.op
	}
	sb := strings.Builder{}
	if !ins.dest.IsZero() {
		sb.WriteString(ins.dest.String())
		sb.WriteString(" := ")
	}
	sb.WriteString(ins.op)
	if !ins.arg1.IsZero() {
		sb.WriteRune(' ')
		sb.WriteString(ins.arg1.String())
	}
	if !ins.arg2.IsZero() {
		sb.WriteRune(' ')
		if ins.op == OpIf || ins.op == OpIfNot {
			sb.WriteString(OpGoto)
			sb.WriteRune(' ')
		}
		sb.WriteString(ins.arg2.String())
	}
	return sb.String()
}
