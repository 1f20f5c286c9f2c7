package tac

import (
	"fmt"

	"decafc/src/backend/regfile"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// OperandKind differentiates the variants of Operand.
type OperandKind int

// Address is a memory location inside the frame of a scope. A static address is
// Frame[Offset]; a dynamic one is Frame[Offset+Scale*Index], with the product left
// to the emission stage.
type Address struct {
	Scope  int              // Identifier of the scope owning the frame.
	Frame  string           // Frame name, e.g. M3.
	Offset int              // Static byte offset.
	Scale  int              // Element size multiplying Index. 0 for static addresses.
	Index  regfile.Register // Register holding the dynamic index.
}

// Operand is a source or destination of an Instruction: a register, a memory
// address, a literal or a label reference. The zero Operand is "no operand".
type Operand struct {
	kind OperandKind
	reg  regfile.Register
	mem  Address
	text string // Literal text or label name.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	NoOperand OperandKind = iota
	RegisterOperand
	MemoryOperand
	LiteralOperand
	LabelOperand
)

// ---------------------
// ----- Functions -----
// ---------------------

// Static returns true if the address has no dynamic index.
func (a Address) Static() bool {
	return a.Scale == 0
}

// String renders the address as FRAME[OFFSET-EXPRESSION].
func (a Address) String() string {
	if a.Static() {
		return fmt.Sprintf("%s[%d]", a.Frame, a.Offset)
	}
	return fmt.Sprintf("%s[%d+%d*%s]", a.Frame, a.Offset, a.Scale, a.Index)
}

// Reg returns a register operand.
func Reg(r regfile.Register) Operand {
	return Operand{kind: RegisterOperand, reg: r}
}

// Mem returns a memory operand.
func Mem(a Address) Operand {
	return Operand{kind: MemoryOperand, mem: a}
}

// Lit returns a literal operand.
func Lit(text string) Operand {
	return Operand{kind: LiteralOperand, text: text}
}

// LabelRef returns a label reference operand.
func LabelRef(name string) Operand {
	return Operand{kind: LabelOperand, text: name}
}

// Kind returns the variant of the operand.
func (o Operand) Kind() OperandKind {
	return o.kind
}

// IsZero returns true for the "no operand" value.
func (o Operand) IsZero() bool {
	return o.kind == NoOperand
}

// Register returns the register of a register operand.
func (o Operand) Register() regfile.Register {
	return o.reg
}

// Address returns the address of a memory operand.
func (o Operand) Address() Address {
	return o.mem
}

// Text returns the text of a literal or the name of a label reference.
func (o Operand) Text() string {
	return o.text
}

// String returns the listing form of the operand.
func (o Operand) String() string {
	switch o.kind {
	case RegisterOperand:
		return o.reg.String()
	case MemoryOperand:
		return o.mem.String()
	case LiteralOperand, LabelOperand:
		return o.text
	default:
		return ""
	}
}

// temporaries returns the temporaries an operand keeps alive: the register of a
// temporary register operand, or the index register of a dynamic address.
func (o Operand) temporaries() []regfile.Register {
	switch o.kind {
	case RegisterOperand:
		if o.reg.IsTemporary() {
			return []regfile.Register{o.reg}
		}
	case MemoryOperand:
		if !o.mem.Static() && o.mem.Index.IsTemporary() {
			return []regfile.Register{o.mem.Index}
		}
	}
	return nil
}

// release returns the temporaries kept alive by o to regs. Literals and named
// memory never occupy the pool and are left alone.
func release(regs regfile.RegisterFile, o Operand) {
	for _, e1 := range o.temporaries() {
		regs.Release(e1)
	}
}
