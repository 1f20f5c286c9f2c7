package tac

import (
	"strconv"

	"decafc/src/ir"
)

// location resolves loc to a memory operand in the frame of the scope that declares
// its root variable. The returned instructions compute dynamic indices; the index
// register stays acquired until the operand is released by its consumer.
func (g *Generator) location(loc *ir.Location) (Operand, []Instruction, error) {
	if loc == nil {
		return Operand{}, nil, malformed("location is <nil>")
	}
	sym, frame, err := g.table.Lookup(loc.Name, g.scopes.CurrentID())
	if err != nil {
		return Operand{}, nil, undeclared(loc.Name, g.scopes.label(), err)
	}
	addr := Address{Scope: frame.ID, Frame: frame.Label()}
	code, err := g.resolve(loc, sym, &addr)
	if err != nil {
		return Operand{}, nil, err
	}
	return Mem(addr), code, nil
}

// resolve adds the offset of sym, its index and the rest of the field chain of loc
// to addr.
func (g *Generator) resolve(loc *ir.Location, sym *ir.Symbol, addr *Address) ([]Instruction, error) {
	var code []Instruction
	addr.Offset += sym.Offset

	if loc.Index != nil {
		size, err := g.table.TypeSize(sym.Typ)
		if err != nil {
			return nil, undeclared("type "+sym.Typ, g.scopes.label(), err)
		}
		c, err := g.index(loc.Index, size, addr)
		if err != nil {
			return nil, err
		}
		code = append(code, c...)
	}
	if loc.Field == nil {
		return code, nil
	}

	fields, err := g.table.Fields(sym.Typ)
	if err != nil {
		return nil, undeclared("field "+loc.Field.Name+" of "+sym.Name, g.scopes.label(), err)
	}
	fsym, ok := fields.Get(loc.Field.Name)
	if !ok {
		return nil, undeclared("field "+loc.Field.Name+" of struct "+sym.Typ, fields.Label(), nil)
	}
	c, err := g.resolve(loc.Field, fsym, addr)
	if err != nil {
		return nil, err
	}
	return append(code, c...), nil
}

// index adds the element at index of an array with elements of size bytes to addr.
// Literal indices are folded into the static offset. Other indices are computed into
// a temporary that addr scales by size; a second dynamic index in the same chain is
// combined with the first into one unscaled register.
func (g *Generator) index(index ir.Expr, size int, addr *Address) ([]Instruction, error) {
	f, err := g.expression(index)
	if err != nil {
		return nil, err
	}
	if !f.Pending() && len(f.Code) == 0 && f.Value.Kind() == LiteralOperand {
		n, err := strconv.Atoi(f.Value.Text())
		if err != nil {
			return nil, malformed("array index %q is not an integer", f.Value.Text())
		}
		addr.Offset += n * size
		return nil, nil
	}

	r, err := g.regs.Acquire()
	if err != nil {
		return nil, err
	}
	code, err := f.Into(Reg(r))
	if err != nil {
		return nil, err
	}
	if addr.Static() {
		addr.Scale, addr.Index = size, r
		return code, nil
	}

	// base := Scale*Index + size*r
	base, err := g.regs.Acquire()
	if err != nil {
		return nil, err
	}
	scaled := NewExpr("*", Reg(addr.Index), Lit(strconv.Itoa(addr.Scale)))
	scaled.dest = Reg(base)
	g.regs.Release(addr.Index)
	elem := NewExpr("*", Reg(r), Lit(strconv.Itoa(size)))
	elem.dest = Reg(r)
	sum := NewExpr("+", Reg(base), Reg(r))
	sum.dest = Reg(base)
	g.regs.Release(r)
	addr.Scale, addr.Index = 1, base
	return append(code, scaled, elem, sum), nil
}
