package tac

import (
	"decafc/src/backend/regfile"
	"decafc/src/ir"
	"decafc/src/util"
)

// call lowers a method call: every argument is stored in the frame slot of the
// matching parameter, then registers are saved around the jump to the callee. The
// result, if any, is left in EAX.
func (g *Generator) call(c *ir.MethodCall) ([]Instruction, error) {
	if c == nil {
		return nil, malformed("method call is <nil>")
	}
	m, err := g.table.Method(c.Name, g.scopes.CurrentID())
	if err != nil {
		return nil, undeclared("method "+c.Name, g.scopes.label(), err)
	}
	params, err := g.table.Params(m.ID)
	if err != nil {
		return nil, undeclared("parameters of "+c.Name, m.Label(), err)
	}
	if len(params) != len(c.Args) {
		return nil, malformed("method %q takes %d arguments, got %d", c.Name, len(params), len(c.Args))
	}

	code := make([]Instruction, 0, 2*len(c.Args)+3)
	for i1, e1 := range c.Args {
		f, err := g.expression(e1)
		if err != nil {
			return nil, err
		}
		dst := Address{Scope: m.ID, Frame: m.Label(), Offset: params[i1].Offset}
		a, err := f.Into(Mem(dst))
		if err != nil {
			return nil, err
		}
		code = append(code, a...)
	}
	return append(code,
		NewSingle(OpSave),
		Goto(util.NewLabel(util.LabelStart, m.Label())),
		NewSingle(OpRestore),
	), nil
}

// callTerm lowers a call used as an expression and returns where its result is. A call
// nested in a larger expression has its result moved out of EAX before anything else
// can call.
func (g *Generator) callTerm(c *ir.MethodCall, nested bool) (Operand, []Instruction, error) {
	code, err := g.call(c)
	if err != nil {
		return Operand{}, nil, err
	}
	if !nested {
		return Reg(regfile.EAX), code, nil
	}
	r, err := g.regs.Acquire()
	if err != nil {
		return Operand{}, nil, err
	}
	return Reg(r), append(code, Mov(Reg(r), Reg(regfile.EAX))), nil
}
