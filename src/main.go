package main

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"decafc/src/backend"
	"decafc/src/frontend"
	"decafc/src/ir"
	"decafc/src/ir/llvm"
	"decafc/src/ir/tac"
	"decafc/src/util"
)

// fail prints err prefixed by the failing stage and exits through the registered exit handlers.
func fail(stage string, err error) {
	fmt.Fprintf(os.Stderr, "%s error: %s\n", stage, err)
	atexit.Exit(1)
}

func main() {
	// Parse command line arguments.
	opt, err := util.ParseArgs()
	if err != nil {
		fail("Command line argument", err)
	}
	util.SetupLogging(opt, os.Stderr)

	// Read compilation unit.
	src, err := util.ReadSource(opt)
	if err != nil {
		fail("Input", err)
	}

	// Decode syntax tree and symbol table.
	p, t, err := frontend.Decode(src)
	if err != nil {
		fail("Decode", err)
	}
	if err := ir.ValidateTable(t); err != nil {
		fail("Symbol table", err)
	}
	if err := ir.ValidateProgram(p, t); err != nil {
		fail("Syntax tree", err)
	}

	// Generate three-address code.
	code, err := tac.Generate(opt, t, p)
	if err != nil {
		fail("Code generation", err)
	}

	if opt.LLVM {
		if err := llvm.GenLLVM(opt, code, t); err != nil {
			fail("LLVM", err)
		}
		atexit.Exit(0)
	}

	// Initiate output writer. The writer is flushed before the output file is closed.
	var f *os.File
	if len(opt.Out) > 0 {
		if f, err = os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644); err != nil {
			fail("Output", err)
		}
	}
	if f != nil {
		util.ListenWrite(opt.Threads, f)
	} else {
		util.ListenWrite(opt.Threads, nil)
	}
	atexit.Register(func() {
		if err := util.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		if f == nil {
			return
		}
		if err := f.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})

	if err := backend.Emit(code); err != nil {
		fail("Output", err)
	}

	if opt.Verbose {
		stats, err := backend.Stats(code, t)
		if err != nil {
			fail("Statistics", err)
		}
		fmt.Fprintln(os.Stderr, backend.StatsTable(stats))
	}
	atexit.Exit(0)
}
