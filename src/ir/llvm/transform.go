// Package llvm lowers the three-address instruction buffer into LLVM IR for the system installed LLVM
// runtime.
package llvm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

import (
	"tinygo.org/x/go-llvm"
)

import (
	"decafc/src/backend/regfile"
	"decafc/src/ir"
	"decafc/src/ir/tac"
	"decafc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// lowering holds the state of one translation of an instruction buffer into an LLVM module.
//
// Every register and every frame becomes a module global. Frames are byte arrays addressed
// by the byte offsets of the listing. Every method region START_Mx .. END_Mx becomes a
// function without parameters or return value, a jump to a method start label becomes a call
// and every other label a basic block.
type lowering struct {
	ctx    llvm.Context
	m      llvm.Module
	b      llvm.Builder
	t      ir.SymbolTable
	i      llvm.Type                  // Machine word of the listing.
	regs   map[string]llvm.Value      // Register globals by name.
	temps  []string                   // Temporaries saved by PSHA, in allocation order.
	frames map[string]llvm.Value      // Frame globals by frame name.
	funcs  map[string]llvm.Value      // Method functions by frame name.
	blocks map[string]llvm.BasicBlock // Basic blocks of the current function by label.
	fun    llvm.Value                 // Current function. Nil outside method regions.
	open   bool                       // Set true while the current basic block lacks a terminator.
	saved  [][]llvm.Value             // Temporaries saved by PSHA, innermost last.
	main   string                     // Frame name of the entry method.
}

// ---------------------
// ----- Constants -----
// ---------------------

const mapSize = 16 // Predefined size for a decently sized symbol table hash table.

// entryMethod names the method called by the generated C entry point.
const entryMethod = "main"

// -------------------
// ----- globals -----
// -------------------

// predicates maps relational operators to LLVM integer comparison predicates.
var predicates = map[string]llvm.IntPredicate{
	"==": llvm.IntEQ,
	"!=": llvm.IntNE,
	"<":  llvm.IntSLT,
	"<=": llvm.IntSLE,
	">":  llvm.IntSGT,
	">=": llvm.IntSGE,
}

// ---------------------
// ----- functions -----
// ---------------------

// GenLLVM lowers code into an LLVM module, verifies it and writes it to the output file. An output
// path ending in .ll receives textual LLVM IR, any other path an object file for the host target.
func GenLLVM(opt util.Options, code *tac.Code, t ir.SymbolTable) error {
	ctx := llvm.NewContext()
	defer ctx.Dispose()

	m, err := Lower(ctx, moduleName(opt), code, t)
	if err != nil {
		return err
	}
	defer m.Dispose()

	if err := llvm.VerifyModule(m, llvm.ReturnStatusAction); err != nil {
		return fmt.Errorf("module verification failed: %w", err)
	}
	if opt.Verbose {
		fmt.Fprintln(os.Stderr, "LLVM IR:")
		m.Dump()
	}

	out := outputPath(opt)
	util.Trace("writing module", "out", out)
	if strings.HasSuffix(out, ".ll") {
		return os.WriteFile(out, []byte(m.String()), 0644)
	}

	buf, err := emitObject(m)
	if err != nil {
		return err
	}
	defer buf.Dispose()
	return os.WriteFile(out, buf.Bytes(), 0644)
}

// Lower translates code into a new module of ctx. The caller owns the returned module.
func Lower(ctx llvm.Context, name string, code *tac.Code, t ir.SymbolTable) (llvm.Module, error) {
	if code == nil {
		return llvm.Module{}, errors.New("instruction buffer is <nil>")
	}
	l := &lowering{
		ctx:    ctx,
		m:      ctx.NewModule(name),
		b:      ctx.NewBuilder(),
		t:      t,
		i:      ctx.Int32Type(),
		regs:   make(map[string]llvm.Value, mapSize),
		frames: make(map[string]llvm.Value, mapSize),
		funcs:  make(map[string]llvm.Value, mapSize),
	}
	defer l.b.Dispose()

	err := l.declare(code)
	if err == nil {
		err = l.define(code)
	}
	if err == nil {
		err = l.genMain()
	}
	if err != nil {
		l.m.Dispose()
		return llvm.Module{}, err
	}
	return l.m, nil
}

// declare creates the functions, register globals and frame globals referenced by code.
func (l *lowering) declare(code *tac.Code) error {
	for i1 := 0; i1 < code.Len(); i1++ {
		e1 := code.At(i1)
		if e1.Kind() == tac.LabelKind {
			if typ, frame, ok := util.SplitLabel(e1.Op()); ok && typ == util.LabelStart && frame[0] == 'M' {
				if err := l.declareMethod(frame); err != nil {
					return fmt.Errorf("instruction %d: %w", i1, err)
				}
			}
			continue
		}
		for _, e2 := range []tac.Operand{e1.Arg1(), e1.Arg2(), e1.Dest()} {
			if err := l.declareOperand(e2); err != nil {
				return fmt.Errorf("instruction %d: %w", i1, err)
			}
		}
	}
	sort.Strings(l.temps)
	return nil
}

// declareMethod adds the function of method frame to the module.
func (l *lowering) declareMethod(frame string) error {
	if _, ok := l.funcs[frame]; ok {
		return fmt.Errorf("duplicate method region %s", frame)
	}
	id, err := strconv.Atoi(frame[1:])
	if err != nil {
		return fmt.Errorf("malformed method frame %q", frame)
	}
	s, err := l.t.Scope(id)
	if err != nil {
		return err
	}
	ftyp := llvm.FunctionType(l.ctx.VoidType(), nil, false)
	l.funcs[frame] = llvm.AddFunction(l.m, fmt.Sprintf("%s_%s", frame, s.Name), ftyp)
	if s.Name == entryMethod && len(l.main) == 0 {
		l.main = frame
	}
	return nil
}

// declareOperand adds the globals o refers to.
func (l *lowering) declareOperand(o tac.Operand) error {
	switch o.Kind() {
	case tac.RegisterOperand:
		l.declareRegister(o.Register())
	case tac.MemoryOperand:
		a := o.Address()
		if !a.Static() {
			l.declareRegister(a.Index)
		}
		if _, ok := l.frames[a.Frame]; ok {
			return nil
		}
		size, err := ir.FrameSize(l.t, a.Scope)
		if err != nil {
			return err
		}
		typ := llvm.ArrayType(l.ctx.Int8Type(), size)
		g := llvm.AddGlobal(l.m, typ, a.Frame)
		g.SetInitializer(llvm.ConstNull(typ))
		l.frames[a.Frame] = g
	}
	return nil
}

// declareRegister adds the global of register r.
func (l *lowering) declareRegister(r regfile.Register) {
	name := r.String()
	if _, ok := l.regs[name]; ok {
		return
	}
	g := llvm.AddGlobal(l.m, l.i, name)
	g.SetInitializer(llvm.ConstInt(l.i, 0, false))
	l.regs[name] = g
	if r.IsTemporary() {
		l.temps = append(l.temps, name)
	}
}

// define generates the bodies of the declared functions.
func (l *lowering) define(code *tac.Code) error {
	for i1 := 0; i1 < code.Len(); i1++ {
		e1 := code.At(i1)
		var err error
		if e1.Kind() == tac.LabelKind {
			err = l.label(code, i1)
		} else {
			err = l.ins(e1)
		}
		if err != nil {
			return fmt.Errorf("instruction %d %q: %w", i1, e1.String(), err)
		}
	}
	if !l.fun.IsNil() {
		return fmt.Errorf("method region %s is not closed", l.fun.Name())
	}
	return nil
}

// label opens or closes a method region, or continues in the basic block of the label at index i1.
// Class and struct labels have no code of their own.
func (l *lowering) label(code *tac.Code, i1 int) error {
	name := code.At(i1).Op()
	if typ, frame, ok := util.SplitLabel(name); ok && frame[0] == 'M' {
		if typ == util.LabelStart {
			return l.enter(code, i1, frame)
		}
		return l.leave(frame)
	}
	if l.fun.IsNil() {
		return nil
	}
	bb, ok := l.blocks[name]
	if !ok {
		return fmt.Errorf("label %s has no basic block", name)
	}
	if l.open {
		l.b.CreateBr(bb)
	}
	l.b.SetInsertPointAtEnd(bb)
	l.open = true
	return nil
}

// enter starts the function of method frame, whose start label is at index i1, and creates one
// basic block per label of its region.
func (l *lowering) enter(code *tac.Code, i1 int, frame string) error {
	if !l.fun.IsNil() {
		return fmt.Errorf("method region %s opened inside %s", frame, l.fun.Name())
	}
	l.fun = l.funcs[frame]
	l.blocks = make(map[string]llvm.BasicBlock, mapSize)
	l.saved = l.saved[:0]

	entry := l.ctx.AddBasicBlock(l.fun, "entry")
	end := util.NewLabel(util.LabelEnd, frame)
	for i2 := i1 + 1; i2 < code.Len(); i2++ {
		e2 := code.At(i2)
		if e2.Kind() != tac.LabelKind {
			continue
		}
		if e2.Op() == end {
			break
		}
		l.blocks[e2.Op()] = l.ctx.AddBasicBlock(l.fun, e2.Op())
	}
	l.b.SetInsertPointAtEnd(entry)
	l.open = true
	return nil
}

// leave ends the function of method frame. Falling off the end of a method returns.
func (l *lowering) leave(frame string) error {
	if l.fun.IsNil() || l.funcs[frame] != l.fun {
		return fmt.Errorf("method region %s closed without being opened", frame)
	}
	if len(l.saved) > 0 {
		return fmt.Errorf("method region %s has %d unmatched %s", frame, len(l.saved), tac.OpSave)
	}
	if l.open {
		l.b.CreateRetVoid()
	}
	l.fun = llvm.Value{}
	l.blocks = nil
	l.open = false
	return nil
}

// ins generates the LLVM IR of one instruction.
func (l *lowering) ins(ins tac.Instruction) error {
	if l.fun.IsNil() {
		return errors.New("instruction outside any method region")
	}
	if !l.open {
		// Code following a jump is only reachable through a label, if at all.
		l.b.SetInsertPointAtEnd(l.ctx.AddBasicBlock(l.fun, ""))
		l.open = true
	}

	if ins.Kind() == tac.SingleKind {
		switch ins.Op() {
		case tac.OpSave:
			vals := make([]llvm.Value, len(l.temps))
			for i1, e1 := range l.temps {
				vals[i1] = l.b.CreateLoad(l.regs[e1], "")
			}
			l.saved = append(l.saved, vals)
		case tac.OpRestore:
			if len(l.saved) == 0 {
				return fmt.Errorf("%s without %s", tac.OpRestore, tac.OpSave)
			}
			vals := l.saved[len(l.saved)-1]
			l.saved = l.saved[:len(l.saved)-1]
			for i1, e1 := range l.temps {
				l.b.CreateStore(vals[i1], l.regs[e1])
			}
		default:
			return fmt.Errorf("unknown operation %s", ins.Op())
		}
		return nil
	}

	switch ins.Op() {
	case tac.OpMov:
		v, err := l.value(ins.Arg2())
		if err != nil {
			return err
		}
		p, err := l.pointer(ins.Arg1())
		if err != nil {
			return err
		}
		l.b.CreateStore(v, p)
	case tac.OpGoto:
		target := ins.Arg1().Text()
		if typ, frame, ok := util.SplitLabel(target); ok && typ == util.LabelStart && frame[0] == 'M' {
			fn, ok := l.funcs[frame]
			if !ok {
				return fmt.Errorf("call of undeclared method %s", frame)
			}
			l.b.CreateCall(fn, nil, "")
			return nil
		}
		bb, ok := l.blocks[target]
		if !ok {
			return fmt.Errorf("jump to unknown label %s", target)
		}
		l.b.CreateBr(bb)
		l.open = false
	case tac.OpIf, tac.OpIfNot:
		flag, err := l.value(ins.Arg1())
		if err != nil {
			return err
		}
		target, ok := l.blocks[ins.Arg2().Text()]
		if !ok {
			return fmt.Errorf("jump to unknown label %s", ins.Arg2().Text())
		}
		cond := l.b.CreateICmp(llvm.IntNE, flag, llvm.ConstInt(l.i, 0, false), "")
		next := l.ctx.AddBasicBlock(l.fun, "")
		if ins.Op() == tac.OpIf {
			l.b.CreateCondBr(cond, target, next)
		} else {
			l.b.CreateCondBr(cond, next, target)
		}
		l.b.SetInsertPointAtEnd(next)
	case tac.OpBranch:
		l.b.CreateRetVoid()
		l.open = false
	default:
		return l.genExpression(ins)
	}
	return nil
}

// genExpression generates DEST := OP ARG1 [ARG2].
func (l *lowering) genExpression(ins tac.Instruction) error {
	if ins.Dest().IsZero() {
		return fmt.Errorf("operation %s has no destination", ins.Op())
	}
	x, err := l.value(ins.Arg1())
	if err != nil {
		return err
	}
	var res llvm.Value
	if ins.Arg2().IsZero() {
		switch ins.Op() {
		case "-":
			res = l.b.CreateNeg(x, "")
		case "!":
			res = l.b.CreateZExt(l.b.CreateICmp(llvm.IntEQ, x, llvm.ConstInt(l.i, 0, false), ""), l.i, "")
		default:
			return fmt.Errorf("unknown unary operator %q", ins.Op())
		}
	} else {
		y, err := l.value(ins.Arg2())
		if err != nil {
			return err
		}
		switch ins.Op() {
		case "+":
			res = l.b.CreateAdd(x, y, "")
		case "-":
			res = l.b.CreateSub(x, y, "")
		case "*":
			res = l.b.CreateMul(x, y, "")
		case "/":
			res = l.b.CreateSDiv(x, y, "")
		case "%":
			res = l.b.CreateSRem(x, y, "")
		case "&&":
			res = l.b.CreateAnd(x, y, "")
		case "||":
			res = l.b.CreateOr(x, y, "")
		default:
			pred, ok := predicates[ins.Op()]
			if !ok {
				return fmt.Errorf("unknown binary operator %q", ins.Op())
			}
			res = l.b.CreateZExt(l.b.CreateICmp(pred, x, y, ""), l.i, "")
		}
	}
	p, err := l.pointer(ins.Dest())
	if err != nil {
		return err
	}
	l.b.CreateStore(res, p)
	return nil
}

// value returns the value of source operand o.
func (l *lowering) value(o tac.Operand) (llvm.Value, error) {
	switch o.Kind() {
	case tac.LiteralOperand:
		return l.literal(o.Text())
	case tac.RegisterOperand, tac.MemoryOperand:
		p, err := l.pointer(o)
		if err != nil {
			return llvm.Value{}, err
		}
		return l.b.CreateLoad(p, ""), nil
	default:
		return llvm.Value{}, fmt.Errorf("operand %q has no value", o.String())
	}
}

// pointer returns the storage location of register or memory operand o.
func (l *lowering) pointer(o tac.Operand) (llvm.Value, error) {
	switch o.Kind() {
	case tac.RegisterOperand:
		g, ok := l.regs[o.Register().String()]
		if !ok {
			return llvm.Value{}, fmt.Errorf("undeclared register %s", o.Register())
		}
		return g, nil
	case tac.MemoryOperand:
		return l.address(o.Address())
	default:
		return llvm.Value{}, fmt.Errorf("operand %q is not a storage location", o.String())
	}
}

// address computes the word pointer Frame + Offset [+ Scale * Index].
func (l *lowering) address(a tac.Address) (llvm.Value, error) {
	g, ok := l.frames[a.Frame]
	if !ok {
		return llvm.Value{}, fmt.Errorf("undeclared frame %s", a.Frame)
	}
	word := l.ctx.Int64Type()
	off := llvm.ConstInt(word, uint64(a.Offset), false)
	if !a.Static() {
		r, ok := l.regs[a.Index.String()]
		if !ok {
			return llvm.Value{}, fmt.Errorf("undeclared register %s", a.Index)
		}
		idx := l.b.CreateSExt(l.b.CreateLoad(r, ""), word, "")
		off = l.b.CreateAdd(off, l.b.CreateMul(idx, llvm.ConstInt(word, uint64(a.Scale), false), ""), "")
	}
	p := l.b.CreateGEP(g, []llvm.Value{llvm.ConstInt(word, 0, false), off}, "")
	return l.b.CreateBitCast(p, llvm.PointerType(l.i, 0), ""), nil
}

// literal returns the constant of an integer or quoted character literal.
func (l *lowering) literal(text string) (llvm.Value, error) {
	if strings.HasPrefix(text, "'") {
		s, err := strconv.Unquote(text)
		if err != nil {
			return llvm.Value{}, fmt.Errorf("malformed character literal %s", text)
		}
		return llvm.ConstInt(l.i, uint64([]rune(s)[0]), false), nil
	}
	v, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return llvm.Value{}, fmt.Errorf("malformed integer literal %s", text)
	}
	return llvm.ConstInt(l.i, uint64(v), true), nil
}

// genMain generates the C entry point calling the first method named main.
func (l *lowering) genMain() error {
	if len(l.main) == 0 {
		return fmt.Errorf("no method %q declared", entryMethod)
	}
	fn := llvm.AddFunction(l.m, "main", llvm.FunctionType(l.i, nil, false))
	l.b.SetInsertPointAtEnd(l.ctx.AddBasicBlock(fn, "entry"))
	l.b.CreateCall(l.funcs[l.main], nil, "")
	l.b.CreateRet(llvm.ConstInt(l.i, 0, false))
	return nil
}

// emitObject compiles m for the host target.
func emitObject(m llvm.Module) (llvm.MemoryBuffer, error) {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	triple := llvm.DefaultTargetTriple()
	t, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return llvm.MemoryBuffer{}, err
	}
	util.Trace("compiling for target", "triple", triple)

	tm := t.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelNone,
		llvm.RelocDefault,
		llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()

	m.SetDataLayout(td.String())
	m.SetTarget(tm.Triple())

	buf, err := tm.EmitToMemoryBuffer(m, llvm.ObjectFile)
	if err != nil {
		return llvm.MemoryBuffer{}, err
	} else if buf.IsNil() {
		return llvm.MemoryBuffer{}, errors.New("could not emit compiled code to memory")
	}
	return buf, nil
}

// moduleName returns the file name of the compilation unit without extension.
func moduleName(opt util.Options) string {
	if len(opt.Src) == 0 {
		return "stdin"
	}
	return strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src))
}

// outputPath returns the output file, defaulting to an object file named after the compilation unit.
func outputPath(opt util.Options) string {
	if len(opt.Out) > 0 {
		return opt.Out
	}
	return fmt.Sprintf("./%s.o", moduleName(opt))
}
