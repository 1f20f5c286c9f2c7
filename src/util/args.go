package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds the driver configuration parsed from the command line.
type Options struct {
	Src       string // Path to compilation unit file. Empty means stdin.
	Out       string // Path to output file. Empty means stdout.
	Threads   int    // Number of worker goroutines generating classes in parallel.
	Registers int    // Number of temporary registers in the register pool.
	Verbose   bool   // Set true if the compiler should trace generation and print statistics.
	LLVM      bool   // Set true if the instruction buffer should be lowered to LLVM.
}

// ---------------------
// ----- Constants -----
// ---------------------

const maxThreads = 64 // Maximum threads allowed executing in parallel.
const appVersion = "decaf intermediate code generator 1.0"

// DefaultRegisters is the size of the temporary register pool when -regs is not given.
const DefaultRegisters = 9

// maxRegisters bounds the -regs flag.
const maxRegisters = 32

// ---------------------
// ----- functions -----
// ---------------------

// DefaultOptions returns the configuration used when no flags are given.
func DefaultOptions() Options {
	return Options{
		Threads:   1,
		Registers: DefaultRegisters,
	}
}

// ParseArgs parses command line arguments.
func ParseArgs() (Options, error) {
	return parseArgs(os.Args[1:])
}

// parseArgs parses the argument list args, excluding the program name.
// The last argument not consumed by a flag is the path to the compilation unit.
func parseArgs(args []string) (Options, error) {
	opt := DefaultOptions()
	for i1 := 0; i1 < len(args); i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			// Help and usage.
			printHelp()
			os.Exit(0)
		case "-ll":
			// Lower to LLVM.
			opt.LLVM = true
		case "-o", "-t", "-regs":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			if strings.HasPrefix(args[i1+1], "-") {
				return opt, fmt.Errorf("expected argument to %s, got new flag %s", args[i1], args[i1+1])
			}
			switch args[i1] {
			case "-o":
				// Output file.
				opt.Out = args[i1+1]
			case "-t":
				// Thread count.
				t, err := strconv.Atoi(args[i1+1])
				if err != nil {
					return opt, fmt.Errorf("expected integer thread count, got: %s", args[i1+1])
				}
				if t < 1 || t > maxThreads {
					return opt, fmt.Errorf("thread count must be integer in range [1, %d]", maxThreads)
				}
				opt.Threads = t
			case "-regs":
				// Register pool size.
				r, err := strconv.Atoi(args[i1+1])
				if err != nil {
					return opt, fmt.Errorf("expected integer register count, got: %s", args[i1+1])
				}
				if r < 1 || r > maxRegisters {
					return opt, fmt.Errorf("register count must be integer in range [1, %d]", maxRegisters)
				}
				opt.Registers = r
			}
			i1++
		case "-v", "--v", "-version", "--version":
			// Application version.
			fmt.Println(appVersion)
			os.Exit(0)
		case "-vb":
			// Verbose mode.
			opt.Verbose = true
		default:
			if strings.HasPrefix(args[i1], "-") {
				return opt, fmt.Errorf("unexpected flag: %s", args[i1])
			}
			if i1 != len(args)-1 {
				return opt, fmt.Errorf("unexpected argument %q, source file must be the last argument", args[i1])
			}
			opt.Src = args[i1]
		}
	}
	return opt, nil
}

// printHelp prints a helpful usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "Usage: decafc [flags] [unit.yaml]")
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits the application.")
	_, _ = fmt.Fprintln(w, "--h, --help")
	_, _ = fmt.Fprintln(w, "-ll\tLower the generated code to LLVM. Output ending in .ll is textual IR, else an object file.")
	_, _ = fmt.Fprintln(w, "-o\tPath and name of the output file.")
	_, _ = fmt.Fprintf(w, "-regs\tNumber of temporary registers. Must be in range [1, %d]. Defaults to %d.\n", maxRegisters, DefaultRegisters)
	_, _ = fmt.Fprintf(w, "-t\tNumber of threads to run in parallel. Must be in range [1, %d].\n", maxThreads)
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints application version and exits the application.")
	_, _ = fmt.Fprintln(w, "--v, --version")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode: trace code generation and print statistics.")
	_ = w.Flush()
}
