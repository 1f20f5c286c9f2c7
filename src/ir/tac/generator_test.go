package tac_test

import (
	"strings"

	"decafc/src/backend/regfile"
	"decafc/src/ir"
	"decafc/src/ir/tac"
	"decafc/src/util"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// ----- Syntax tree helpers -----

func num(s string) *ir.Literal {
	return &ir.Literal{Kind: ir.IntLiteral, Text: s}
}

func loc(name string) *ir.Location {
	return &ir.Location{Name: name}
}

func elem(name string, index ir.Expr) *ir.Location {
	return &ir.Location{Name: name, Index: index}
}

func bin(l ir.Expr, op string, r ir.Expr) *ir.BinaryExpr {
	return &ir.BinaryExpr{Left: l, Op: op, Right: r}
}

func assign(target *ir.Location, value ir.Expr) *ir.AssignStmt {
	return &ir.AssignStmt{Target: target, Value: value}
}

func call(name string, args ...ir.Expr) *ir.MethodCall {
	return &ir.MethodCall{Name: name, Args: args}
}

func block(stmts ...ir.Stmt) *ir.Block {
	return &ir.Block{Stmts: stmts}
}

func sym(name, typ string, offset, length int) *ir.Symbol {
	return &ir.Symbol{Name: name, Typ: typ, Offset: offset, Len: length, Param: -1}
}

func param(name, typ string, offset, ordinal int) *ir.Symbol {
	return &ir.Symbol{Name: name, Typ: typ, Offset: offset, Param: ordinal}
}

// numberScopes declares the scopes of p in the order the generator enters them.
// symbols holds the symbols of each scope by frame name.
func numberScopes(t *ir.Table, p *ir.Program, symbols map[string][]*ir.Symbol) {
	next := ir.RootScope
	open := func(kind ir.ScopeKind, name string, parent int) int {
		next++
		s := &ir.Scope{ID: next, Kind: kind, Name: name, Parent: parent}
		s.Symbols = symbols[s.Label()]
		Expect(t.AddScope(s)).To(Succeed())
		return next
	}
	var visit func(n ir.Node, parent int)
	visit = func(n ir.Node, parent int) {
		switch n := n.(type) {
		case *ir.ClassDecl:
			id := open(ir.ScopeClass, n.Name, parent)
			for _, e1 := range n.Members {
				visit(e1, id)
			}
		case *ir.MethodDecl:
			visit(n.Body, open(ir.ScopeMethod, n.Name, parent))
		case *ir.StructDecl:
			open(ir.ScopeStruct, n.Name, parent)
		case *ir.Block:
			if n == nil {
				return
			}
			for _, e1 := range n.Stmts {
				visit(e1, parent)
			}
		case *ir.IfStmt:
			visit(n.Then, open(ir.ScopeIf, "", parent))
			if n.Else != nil {
				visit(n.Else, open(ir.ScopeElse, "", parent))
			}
		case *ir.WhileStmt:
			visit(n.Body, open(ir.ScopeWhile, "", parent))
		}
	}
	for _, e1 := range p.Classes {
		visit(e1, ir.RootScope)
	}
}

// program returns a class Program with struct Point (S2), method add(m, n) (M3)
// returning m+n and method main (M4) running body, plus its symbol table.
func program(body ...ir.Stmt) (*ir.Program, *ir.Table) {
	p := &ir.Program{Classes: []*ir.ClassDecl{{
		Name: "Program",
		Members: []ir.Node{
			&ir.StructDecl{Name: "Point"},
			&ir.MethodDecl{Name: "add", Body: block(
				&ir.ReturnStmt{Value: bin(loc("m"), "+", loc("n"))},
			)},
			&ir.MethodDecl{Name: "main", Body: block(body...)},
		},
	}}}

	t := ir.NewTable()
	Expect(t.AddScope(&ir.Scope{ID: ir.RootScope, Kind: ir.ScopeGlobal, Parent: -1})).To(Succeed())
	Expect(t.AddType(&ir.Type{Name: "int", Size: 4, Fields: -1})).To(Succeed())
	Expect(t.AddType(&ir.Type{Name: "Point", Size: 16, Fields: 2})).To(Succeed())
	numberScopes(t, p, map[string][]*ir.Symbol{
		"C1": {sym("x", "int", 0, 0), sym("a", "int", 4, 10), sym("p", "Point", 44, 0), sym("ps", "Point", 60, 4)},
		"S2": {sym("x", "int", 0, 0), sym("y", "int", 4, 0), sym("zs", "int", 8, 2)},
		"M3": {param("m", "int", 0, 0), param("n", "int", 4, 1)},
		"M4": {sym("i", "int", 0, 0)},
	})
	return p, t
}

// lines returns the listing of code between the start and end labels of frame.
func lines(code *tac.Code, frame string) []string {
	all := strings.Split(strings.TrimSpace(code.String()), "\n")
	start, end := -1, -1
	for i1, e1 := range all {
		switch e1 {
		case util.NewLabel(util.LabelStart, frame):
			start = i1
		case util.NewLabel(util.LabelEnd, frame):
			end = i1
		}
	}
	Expect(start).To(BeNumerically(">=", 0))
	Expect(end).To(BeNumerically(">", start))
	return all[start+1 : end]
}

var _ = Describe("Generator", func() {
	var (
		pool *regfile.Pool
		gen  *tac.Generator
	)

	run := func(body ...ir.Stmt) []string {
		p, t := program(body...)
		gen = tac.NewGenerator(t, pool, ir.RootScope)
		Expect(gen.Program(p)).To(Succeed())
		return lines(gen.Code(), "M4")
	}

	fail := func(body ...ir.Stmt) error {
		p, t := program(body...)
		gen = tac.NewGenerator(t, pool, ir.RootScope)
		err := gen.Program(p)
		Expect(err).To(HaveOccurred())
		Expect(gen.Code().Len()).To(BeZero())
		return err
	}

	BeforeEach(func() {
		pool = regfile.NewPool(9)
	})

	AfterEach(func() {
		Expect(pool.Live()).To(BeZero())
	})

	It("should bracket declarations with scope labels", func() {
		p, t := program()
		gen = tac.NewGenerator(t, pool, ir.RootScope)
		Expect(gen.Program(p)).To(Succeed())
		Expect(strings.Split(strings.TrimSpace(gen.Code().String()), "\n")).To(Equal([]string{
			"START_C1",
			"START_S2",
			"END_S2",
			"START_M3",
			"EAX := + M3[0] M3[4]",
			"BX LR",
			"END_M3",
			"START_M4",
			"END_M4",
			"END_C1",
		}))
		Expect(gen.Scopes().Depth()).To(BeZero())
		Expect(gen.Scopes().Count()).To(Equal(4))
	})

	It("should move a literal", func() {
		Expect(run(assign(loc("x"), num("5")))).To(Equal([]string{"MOV C1[0] 5"}))
	})

	It("should store a single operation directly", func() {
		Expect(run(assign(loc("x"), bin(elem("a", num("2")), "+", num("1"))))).
			To(Equal([]string{"C1[0] := + C1[12] 1"}))
	})

	It("should store boolean literals as integers", func() {
		Expect(run(assign(loc("x"), &ir.Literal{Kind: ir.BoolLiteral, Text: "true"}))).
			To(Equal([]string{"MOV C1[0] 1"}))
	})

	It("should compute dynamic indices into a temporary", func() {
		Expect(run(assign(elem("a", loc("i")), num("3")))).To(Equal([]string{
			"MOV _t0 M4[0]",
			"MOV C1[4+4*_t0] 3",
		}))
	})

	It("should accumulate field offsets", func() {
		p := loc("p")
		p.Field = loc("y")
		Expect(run(assign(p, num("7")))).To(Equal([]string{"MOV C1[48] 7"}))
	})

	It("should fold constant indices along a field chain", func() {
		ps := elem("ps", num("2"))
		ps.Field = elem("zs", num("1"))
		Expect(run(assign(ps, num("0")))).To(Equal([]string{"MOV C1[104] 0"}))
	})

	It("should index struct arrays", func() {
		ps := elem("ps", loc("i"))
		ps.Field = loc("y")
		Expect(run(assign(ps, elem("a", loc("i"))))).To(Equal([]string{
			"MOV _t0 M4[0]",
			"MOV _t1 M4[0]",
			"MOV C1[64+16*_t0] C1[4+4*_t1]",
		}))
	})

	It("should combine two dynamic indices in one chain", func() {
		ps := elem("ps", loc("i"))
		ps.Field = elem("zs", loc("x"))
		Expect(run(assign(ps, num("1")))).To(Equal([]string{
			"MOV _t0 M4[0]",
			"MOV _t1 C1[0]",
			"_t2 := * _t0 16",
			"_t1 := * _t1 4",
			"_t2 := + _t2 _t1",
			"MOV C1[68+1*_t2] 1",
		}))
	})

	It("should test a loop at the bottom", func() {
		Expect(run(&ir.WhileStmt{
			Cond: bin(loc("i"), "<", num("10")),
			Body: block(assign(loc("i"), bin(loc("i"), "+", num("1")))),
		})).To(Equal([]string{
			"GOTO END_W5",
			"START_W5",
			"M4[0] := + M4[0] 1",
			"END_W5",
			"FL := < M4[0] 10",
			"IF FL GOTO START_W5",
		}))
		Expect(gen.Scopes().Depth()).To(BeZero())
	})

	It("should evaluate indexed loop conditions on every iteration", func() {
		Expect(run(&ir.WhileStmt{
			Cond: bin(elem("a", loc("i")), "<", num("10")),
			Body: block(assign(loc("i"), bin(loc("i"), "+", num("1")))),
		})).To(Equal([]string{
			"GOTO END_W5",
			"START_W5",
			"M4[0] := + M4[0] 1",
			"END_W5",
			"MOV _t0 M4[0]",
			"FL := < C1[4+4*_t0] 10",
			"IF FL GOTO START_W5",
		}))
	})

	It("should lower a conditional without else", func() {
		Expect(run(&ir.IfStmt{
			Cond: bin(loc("x"), "==", num("1")),
			Then: block(assign(loc("x"), num("2"))),
		})).To(Equal([]string{
			"FL := == C1[0] 1",
			"IF NOT FL GOTO END_I5",
			"START_I5",
			"MOV C1[0] 2",
			"END_I5",
		}))
	})

	It("should lower a conditional with else", func() {
		Expect(run(&ir.IfStmt{
			Cond: bin(loc("x"), "==", num("1")),
			Then: block(assign(loc("x"), num("2"))),
			Else: block(assign(loc("x"), num("3"))),
		})).To(Equal([]string{
			"FL := == C1[0] 1",
			"IF NOT FL GOTO END_I5",
			"START_I5",
			"MOV C1[0] 2",
			"GOTO END_E6",
			"END_I5",
			"START_E6",
			"MOV C1[0] 3",
			"END_E6",
		}))
		Expect(gen.Scopes().Count()).To(Equal(6))
	})

	It("should number nested scopes in visit order", func() {
		Expect(run(
			&ir.IfStmt{
				Cond: loc("x"),
				Then: block(&ir.WhileStmt{Cond: loc("x"), Body: block()}),
				Else: block(&ir.ReturnStmt{}),
			},
			&ir.WhileStmt{Cond: num("0"), Body: block()},
		)).To(Equal([]string{
			"MOV FL C1[0]",
			"IF NOT FL GOTO END_I5",
			"START_I5",
			"GOTO END_W6",
			"START_W6",
			"END_W6",
			"MOV FL C1[0]",
			"IF FL GOTO START_W6",
			"GOTO END_E7",
			"END_I5",
			"START_E7",
			"BX LR",
			"END_E7",
			"GOTO END_W8",
			"START_W8",
			"END_W8",
			"MOV FL 0",
			"IF FL GOTO START_W8",
		}))
	})

	It("should install arguments and save registers around a call", func() {
		Expect(run(&ir.CallStmt{Call: call("add", num("1"), loc("x"))})).To(Equal([]string{
			"MOV M3[0] 1",
			"MOV M3[4] C1[0]",
			"PSHA",
			"GOTO START_M3",
			"POPA",
		}))
	})

	It("should read a call result from EAX", func() {
		Expect(run(assign(loc("x"), call("add", num("1"), num("2"))))).To(Equal([]string{
			"MOV M3[0] 1",
			"MOV M3[4] 2",
			"PSHA",
			"GOTO START_M3",
			"POPA",
			"MOV C1[0] EAX",
		}))
	})

	It("should keep the results of several calls in one expression", func() {
		Expect(run(assign(loc("x"), bin(call("add", num("1"), num("2")), "+", call("add", num("3"), num("4")))))).
			To(Equal([]string{
				"MOV M3[0] 1",
				"MOV M3[4] 2",
				"PSHA",
				"GOTO START_M3",
				"POPA",
				"MOV _t0 EAX",
				"MOV M3[0] 3",
				"MOV M3[4] 4",
				"PSHA",
				"GOTO START_M3",
				"POPA",
				"MOV _t1 EAX",
				"C1[0] := + _t0 _t1",
			}))
	})

	It("should keep a left result live while computing a dynamic index", func() {
		index := bin(bin(loc("i"), "*", num("2")), "+", bin(loc("x"), "*", num("3")))
		Expect(run(assign(loc("x"), bin(bin(loc("x"), "+", loc("i")), "*", elem("a", index))))).
			To(Equal([]string{
				"_t0 := + C1[0] M4[0]",
				"_t1 := * M4[0] 2",
				"_t2 := * C1[0] 3",
				"_t1 := + _t1 _t2",
				"C1[0] := * _t0 C1[4+4*_t1]",
			}))
	})

	It("should keep a left result live while installing call arguments", func() {
		arg := bin(bin(loc("i"), "*", loc("i")), "+", bin(loc("x"), "*", loc("x")))
		Expect(run(assign(loc("x"), bin(bin(loc("x"), "+", loc("i")), "*", call("add", arg, num("1")))))).
			To(Equal([]string{
				"_t0 := + C1[0] M4[0]",
				"_t1 := * M4[0] M4[0]",
				"_t2 := * C1[0] C1[0]",
				"M3[0] := + _t1 _t2",
				"MOV M3[4] 1",
				"PSHA",
				"GOTO START_M3",
				"POPA",
				"MOV _t1 EAX",
				"C1[0] := * _t0 _t1",
			}))
	})

	It("should return without a value", func() {
		Expect(run(&ir.ReturnStmt{})).To(Equal([]string{"BX LR"}))
	})

	It("should emit nothing for declarations and blocks", func() {
		Expect(run(&ir.VarDecl{Name: "i", Typ: "int"}, block())).To(BeEmpty())
	})

	It("should report undeclared names", func() {
		err := fail(assign(loc("y"), num("1")))
		Expect(err).To(MatchError(tac.ErrUndeclared))
		Expect(err.Error()).To(ContainSubstring("y"))
		Expect(err.Error()).To(ContainSubstring("M4"))
	})

	It("should report undeclared fields", func() {
		p := loc("p")
		p.Field = loc("w")
		Expect(fail(assign(p, num("1")))).To(MatchError(tac.ErrUndeclared))

		x := loc("x")
		x.Field = loc("y")
		Expect(fail(assign(x, num("1")))).To(MatchError(tac.ErrUndeclared))
	})

	It("should report undeclared methods", func() {
		Expect(fail(&ir.CallStmt{Call: call("sub")})).To(MatchError(tac.ErrUndeclared))
	})

	It("should report argument count mismatches", func() {
		Expect(fail(&ir.CallStmt{Call: call("add", num("1"))})).To(MatchError(tac.ErrMalformed))
	})

	It("should reject non-integer constant indices", func() {
		Expect(fail(assign(loc("x"), elem("a", &ir.Literal{Kind: ir.CharLiteral, Text: "'c'"})))).
			To(MatchError(tac.ErrMalformed))
	})

	It("should report pool exhaustion", func() {
		pool = regfile.NewPool(1)
		Expect(fail(assign(loc("x"), bin(bin(num("1"), "+", num("2")), "*", bin(num("3"), "+", num("4")))))).
			To(MatchError(tac.ErrPoolExhausted))
	})

	It("should reject unknown statements", func() {
		Expect(fail(nil)).To(MatchError(tac.ErrMalformed))
	})
})

var _ = Describe("Generate", func() {
	var (
		p *ir.Program
		t *ir.Table
	)

	BeforeEach(func() {
		p = &ir.Program{Classes: []*ir.ClassDecl{
			{Name: "A", Members: []ir.Node{&ir.MethodDecl{Name: "f", Body: block(
				&ir.WhileStmt{Cond: num("1"), Body: block(assign(loc("v"), num("1")))},
			)}}},
			{Name: "B", Members: []ir.Node{&ir.MethodDecl{Name: "g", Body: block(
				&ir.IfStmt{Cond: num("1"), Then: block(), Else: block(assign(loc("v"), num("2")))},
			)}}},
			{Name: "C", Members: []ir.Node{&ir.MethodDecl{Name: "h", Body: block(
				&ir.ReturnStmt{Value: bin(num("1"), "+", num("2"))},
			)}}},
		}}
		t = ir.NewTable()
		Expect(t.AddScope(&ir.Scope{ID: ir.RootScope, Kind: ir.ScopeGlobal, Parent: -1})).To(Succeed())
		Expect(t.AddType(&ir.Type{Name: "int", Size: 4, Fields: -1})).To(Succeed())
		numberScopes(t, p, map[string][]*ir.Symbol{
			"C1": {sym("v", "int", 0, 0)},
			"C4": {sym("v", "int", 0, 0)},
		})
	})

	It("should produce the same code on worker goroutines", func() {
		opt := util.DefaultOptions()
		seq, err := tac.Generate(opt, t, p)
		Expect(err).NotTo(HaveOccurred())

		opt.Threads = 2
		par, err := tac.Generate(opt, t, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(par.String()).To(Equal(seq.String()))

		Expect(lines(par, "M9")).To(Equal([]string{"EAX := + 1 2", "BX LR"}))
		Expect(lines(par, "E7")).To(Equal([]string{"MOV C4[0] 2"}))
		Expect(lines(par, "W3")).To(Equal([]string{"MOV C1[0] 1"}))
	})

	It("should collect errors of every worker", func() {
		p.Classes[2].Members = append(p.Classes[2].Members, &ir.MethodDecl{Name: "k", Body: block(
			assign(loc("w"), num("1")),
		)})
		opt := util.DefaultOptions()
		opt.Threads = 3
		_, err := tac.Generate(opt, t, p)
		Expect(err).To(HaveOccurred())
	})
})
