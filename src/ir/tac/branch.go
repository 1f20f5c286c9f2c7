package tac

import (
	"decafc/src/backend/regfile"
	"decafc/src/ir"
	"decafc/src/util"
)

// genIf lowers a conditional. The condition is stored in FL and a false condition
// jumps past the then-block. With an else-block the then-block ends with a jump past
// the else-block, which runs in its own scope.
func (g *Generator) genIf(n *ir.IfStmt) ([]Instruction, error) {
	scope, err := g.scopes.Push()
	if err != nil {
		return nil, err
	}
	f, err := g.expression(n.Cond)
	if err != nil {
		return nil, err
	}
	code, err := f.Into(Reg(regfile.FL))
	if err != nil {
		return nil, err
	}

	end := util.NewLabel(util.LabelEnd, scope.Label())
	code = append(code,
		IfNot(regfile.FL, end),
		NewLabel(util.NewLabel(util.LabelStart, scope.Label())),
	)
	body, err := g.block(n.Then)
	if err != nil {
		return nil, err
	}
	code = append(code, body...)

	if n.Else != nil {
		if _, err = g.scopes.Pop(); err != nil {
			return nil, err
		}
		if scope, err = g.scopes.Push(); err != nil {
			return nil, err
		}
		elseEnd := util.NewLabel(util.LabelEnd, scope.Label())
		code = append(code,
			Goto(elseEnd),
			NewLabel(end),
			NewLabel(util.NewLabel(util.LabelStart, scope.Label())),
		)
		if body, err = g.block(n.Else); err != nil {
			return nil, err
		}
		code = append(code, body...)
		end = elseEnd
	}

	if _, err = g.scopes.Pop(); err != nil {
		return nil, err
	}
	return append(code, NewLabel(end)), nil
}

// genWhile lowers a loop with the test at the bottom: a jump to the end label, the
// body between the start and end labels, then the condition jumping back to start.
// The condition is flattened in the loop scope before the body and emitted after it.
func (g *Generator) genWhile(n *ir.WhileStmt) ([]Instruction, error) {
	scope, err := g.scopes.Push()
	if err != nil {
		return nil, err
	}
	f, err := g.expression(n.Cond)
	if err != nil {
		return nil, err
	}

	start := util.NewLabel(util.LabelStart, scope.Label())
	end := util.NewLabel(util.LabelEnd, scope.Label())
	code := []Instruction{Goto(end), NewLabel(start)}
	body, err := g.block(n.Body)
	if err != nil {
		return nil, err
	}
	code = append(code, body...)
	code = append(code, NewLabel(end))

	if _, err = g.scopes.Pop(); err != nil {
		return nil, err
	}
	cond, err := f.Into(Reg(regfile.FL))
	if err != nil {
		return nil, err
	}
	code = append(code, cond...)
	return append(code, If(regfile.FL, start)), nil
}
