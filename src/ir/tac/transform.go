package tac

import (
	"errors"
	"fmt"
	"sync"

	"decafc/src/backend/regfile"
	"decafc/src/ir"
	"decafc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Generator lowers classes to three-address code. A Generator owns its scope stack,
// register pool and buffer and must be used by one goroutine at a time; the symbol
// table is only read and may be shared.
type Generator struct {
	table  ir.SymbolTable
	scopes *ScopeStack
	regs   *regfile.Pool
	code   *Code
}

// ---------------------
// ----- Functions -----
// ---------------------

// Generate generates three-address code for every class of p. With opt.Threads > 1
// classes are generated on worker goroutines and their buffers concatenated in
// source order.
func Generate(opt util.Options, table ir.SymbolTable, p *ir.Program) (*Code, error) {
	if p == nil {
		return nil, malformed("program is <nil>")
	}
	if opt.Threads <= 1 || len(p.Classes) < 2 {
		g := NewGenerator(table, regfile.NewPool(opt.Registers), ir.RootScope)
		if err := g.Program(p); err != nil {
			return nil, err
		}
		return g.Code(), nil
	}

	// Scope counter of each class: the number of scopes opened by preceding classes.
	starts := make([]int, len(p.Classes))
	for i1 := 1; i1 < len(p.Classes); i1++ {
		starts[i1] = starts[i1-1] + len(ir.ScopeKinds(p.Classes[i1-1]))
	}

	t := opt.Threads
	l := len(p.Classes)
	if t > l {
		t = l
	}
	n := l / t
	res := l % t

	start := 0
	end := n

	wg := sync.WaitGroup{}
	wg.Add(t)
	perr := util.NewPerror(t)
	codes := make([]*Code, l)

	// Spawn t worker go routines.
	for i1 := 0; i1 < t; i1++ {
		if i1 < res {
			// This worker go routine should perform one residual job.
			end++
		}

		go func(start, end int) {
			defer wg.Done()
			for i2 := start; i2 < end; i2++ {
				g := NewGenerator(table, regfile.NewPool(opt.Registers), starts[i2])
				if err := g.Class(p.Classes[i2]); err != nil {
					perr.Append(err)
					continue
				}
				codes[i2] = g.Code()
			}
		}(start, end)

		start = end
		end += n
	}

	wg.Wait()
	perr.Stop()
	if perr.Len() > 0 {
		return nil, fmt.Errorf("%d errors during parallel code generation: %w", perr.Len(), errors.Join(perr.Errors()...))
	}

	code := NewCode()
	for _, e1 := range codes {
		code.Extend(e1)
	}
	return code, nil
}

// NewGenerator returns a Generator whose next scope push enters scope start+1.
func NewGenerator(table ir.SymbolTable, regs *regfile.Pool, start int) *Generator {
	return &Generator{
		table:  table,
		scopes: NewScopeStack(table, start),
		regs:   regs,
		code:   NewCode(),
	}
}

// Code returns the instruction buffer.
func (g *Generator) Code() *Code {
	return g.code
}

// Scopes returns the scope stack.
func (g *Generator) Scopes() *ScopeStack {
	return g.scopes
}

// Registers returns the register pool.
func (g *Generator) Registers() *regfile.Pool {
	return g.regs
}

// Program generates every class of p in order.
func (g *Generator) Program(p *ir.Program) error {
	for _, e1 := range p.Classes {
		if err := g.Class(e1); err != nil {
			return err
		}
	}
	return nil
}

// Class generates class c and appends its code to the buffer. Nothing is appended
// if generation fails.
func (g *Generator) Class(c *ir.ClassDecl) error {
	if c == nil {
		return malformed("class declaration is <nil>")
	}
	code, err := g.scoped(func(*ir.Scope) ([]Instruction, error) {
		res := make([]Instruction, 0, 16)
		for _, e1 := range c.Members {
			var code []Instruction
			var err error
			switch m := e1.(type) {
			case *ir.MethodDecl:
				code, err = g.method(m)
			case *ir.StructDecl:
				code, err = g.structDecl(m)
			case *ir.VarDecl:
				// Storage is laid out by the symbol table.
			default:
				err = malformed("unexpected class member %v", nodeType(e1))
			}
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", c.Name, err)
			}
			res = append(res, code...)
		}
		return res, nil
	})
	if err != nil {
		return err
	}
	g.code.Append(code...)
	return nil
}

// scoped enters the next scope, brackets the code produced by body with the
// scope's start and end labels and leaves the scope.
func (g *Generator) scoped(body func(*ir.Scope) ([]Instruction, error)) ([]Instruction, error) {
	s, err := g.scopes.Push()
	if err != nil {
		return nil, err
	}
	code := []Instruction{NewLabel(util.NewLabel(util.LabelStart, s.Label()))}
	c, err := body(s)
	if err != nil {
		return nil, err
	}
	code = append(code, c...)
	code = append(code, NewLabel(util.NewLabel(util.LabelEnd, s.Label())))
	if _, err = g.scopes.Pop(); err != nil {
		return nil, err
	}
	return code, nil
}

// method generates a method declaration.
func (g *Generator) method(m *ir.MethodDecl) ([]Instruction, error) {
	return g.scoped(func(s *ir.Scope) ([]Instruction, error) {
		util.Trace("method", "name", m.Name, "scope", s.Label())
		code, err := g.block(m.Body)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Name, err)
		}
		return code, nil
	})
}

// structDecl generates the labels of a struct declaration. Fields are laid out by
// the symbol table.
func (g *Generator) structDecl(s *ir.StructDecl) ([]Instruction, error) {
	return g.scoped(func(*ir.Scope) ([]Instruction, error) {
		return nil, nil
	})
}

// block generates the statements of b in order. A <nil> block is empty.
func (g *Generator) block(b *ir.Block) ([]Instruction, error) {
	if b == nil {
		return nil, nil
	}
	res := make([]Instruction, 0, 4*len(b.Stmts))
	for _, e1 := range b.Stmts {
		code, err := g.stmt(e1)
		if err != nil {
			return nil, err
		}
		res = append(res, code...)
	}
	return res, nil
}

// stmt generates one statement. Temporaries acquired while lowering the statement
// are released when it returns.
func (g *Generator) stmt(n ir.Stmt) ([]Instruction, error) {
	m := g.regs.Mark()
	defer g.regs.Reset(m)

	var code []Instruction
	var err error
	switch n := n.(type) {
	case *ir.Block:
		code, err = g.block(n)
	case *ir.VarDecl:
		return nil, nil
	case *ir.StructDecl:
		code, err = g.structDecl(n)
	case *ir.IfStmt:
		code, err = g.genIf(n)
	case *ir.WhileStmt:
		code, err = g.genWhile(n)
	case *ir.ReturnStmt:
		code, err = g.genReturn(n)
	case *ir.AssignStmt:
		code, err = g.genAssign(n)
	case *ir.CallStmt:
		code, err = g.call(n.Call)
	default:
		err = malformed("unexpected statement %v", nodeType(n))
	}
	if err != nil {
		if n != nil {
			line, pos := n.Position()
			return nil, fmt.Errorf("line %d:%d: %w", line, pos, err)
		}
		return nil, err
	}
	util.Trace("statement", "type", n.Type(), "instructions", len(code), "live", g.regs.Live())
	return code, nil
}

// genReturn stores the returned value in EAX and branches to the link register.
func (g *Generator) genReturn(n *ir.ReturnStmt) ([]Instruction, error) {
	if n.Value == nil {
		return []Instruction{Return()}, nil
	}
	f, err := g.expression(n.Value)
	if err != nil {
		return nil, err
	}
	code, err := f.Into(Reg(regfile.EAX))
	if err != nil {
		return nil, err
	}
	return append(code, Return()), nil
}

// genAssign computes the target address, then the value, and stores the value to
// the target.
func (g *Generator) genAssign(n *ir.AssignStmt) ([]Instruction, error) {
	dst, code, err := g.location(n.Target)
	if err != nil {
		return nil, err
	}
	f, err := g.expression(n.Value)
	if err != nil {
		return nil, err
	}
	c, err := f.Into(dst)
	if err != nil {
		return nil, err
	}
	release(g.regs, dst)
	return append(code, c...), nil
}

// expression flattens e with its top-level operation left for the caller to store.
func (g *Generator) expression(e ir.Expr) (*Flat, error) {
	t, err := g.term(e, false)
	if err != nil {
		return nil, err
	}
	return Simplify(t, g.regs, true)
}

// term converts e to an expression Term. Locations and calls become deferred leaves,
// lowered in evaluation order while the expression is flattened. nested is set below
// the top of an expression.
func (g *Generator) term(e ir.Expr, nested bool) (*Term, error) {
	switch e := e.(type) {
	case *ir.Literal:
		return Leaf(Lit(e.Value())), nil
	case *ir.ParenExpr:
		return g.term(e.X, nested)
	case *ir.UnaryExpr:
		x, err := g.term(e.X, true)
		if err != nil {
			return nil, err
		}
		return Unary(e.Op, x), nil
	case *ir.BinaryExpr:
		l, err := g.term(e.Left, true)
		if err != nil {
			return nil, err
		}
		r, err := g.term(e.Right, true)
		if err != nil {
			return nil, err
		}
		return Binary(l, e.Op, r), nil
	case *ir.Location:
		return Deferred(func() (Operand, []Instruction, error) {
			return g.location(e)
		}), nil
	case *ir.MethodCall:
		return Deferred(func() (Operand, []Instruction, error) {
			return g.callTerm(e, nested)
		}), nil
	default:
		return nil, malformed("unexpected expression %v", nodeType(e))
	}
}

// nodeType returns the type of n for diagnostics, also for <nil> nodes.
func nodeType(n ir.Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.Type().String()
}
