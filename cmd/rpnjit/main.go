// Command rpnjit drives both language front ends this repo exposes over
// one JIT back end: the stack-calculator mini-language (-calc) and the
// register-machine surface language compiled by package compiler. The
// two share the same executable-memory loader; -llvm swaps that loader
// for the supplemental ahead-of-time LLVM path instead.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rpnjit/aotllvm"
	"rpnjit/ast"
	"rpnjit/calc"
	"rpnjit/compiler"
	"rpnjit/jit"
	"rpnjit/lexer"
	"rpnjit/parser"
)

func main() {
	calcMode := flag.Bool("calc", false, "interpret the file as a stack-calculator expression instead of the surface language")
	llvmMode := flag.Bool("llvm", false, "emit and link native code via the LLVM ahead-of-time backend instead of JIT-installing it (surface language only)")
	fnName := flag.String("fn", "main", "entry function to call in the surface language (ignored with -calc)")
	outPath := flag.String("o", "a.out", "linked executable path, used only with -llvm")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	args := flag.Args()
	if len(args) < 1 {
		if *calcMode {
			startCalcREPL()
			return
		}
		fmt.Fprintln(os.Stderr, "usage: rpnjit [-calc] [-llvm] [-fn name] file [args...]")
		os.Exit(1)
	}

	filename := args[0]
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %v\n", filename, err)
		os.Exit(1)
	}

	callArgs, err := parseIntArgs(args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *calcMode {
		if err := runCalcFile(string(source), callArgs); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	if *llvmMode {
		if err := runLLVM(string(source), *outPath); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runSurfaceFile(string(source), *fnName, callArgs); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func parseIntArgs(raw []string) ([]int64, error) {
	out := make([]int64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not an integer", s)
		}
		out[i] = v
	}
	return out, nil
}

func runCalcFile(source string, callArgs []int64) error {
	cmds, paramCount, err := calc.Parse(source)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	fn, err := jit.AssembleFunction(cmds)
	if err != nil {
		return fmt.Errorf("assemble error: %w", err)
	}
	defer fn.Close()

	if len(callArgs) < paramCount {
		return fmt.Errorf("expression references parameter %c, but only %d argument(s) were given",
			'a'+paramCount-1, len(callArgs))
	}
	result, err := fn.CallN(callArgs...)
	if err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	fmt.Println(result)
	return nil
}

func runSurfaceFile(source, fnName string, callArgs []int64) error {
	program, err := parseProgram(source)
	if err != nil {
		return err
	}
	obj, err := compiler.Compile(program, compiler.AMD64{})
	if err != nil {
		return fmt.Errorf("compile error: %w", err)
	}
	prog, err := jit.LoadProgram(obj)
	if err != nil {
		return fmt.Errorf("load error: %w", err)
	}
	defer prog.Close()

	entry, ok := prog.Lookup(fnName)
	if !ok {
		return fmt.Errorf("no function named %q in this program", fnName)
	}
	result, err := entry.CallN(callArgs...)
	if err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	fmt.Println(result)
	return nil
}

func runLLVM(source, outPath string) error {
	program, err := parseProgram(source)
	if err != nil {
		return err
	}
	gen := aotllvm.NewCodeGenerator()
	native, err := gen.Generate(program)
	if err != nil {
		return fmt.Errorf("codegen error: %w", err)
	}
	if err := aotllvm.LinkExecutable(native.ObjectFile, outPath); err != nil {
		return err
	}
	log.Info().Str("path", outPath).Msg("rpnjit: linked executable")
	fmt.Printf("Linked executable written to %s\n", outPath)
	return nil
}

func parseProgram(source string) (*ast.Program, error) {
	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		var b strings.Builder
		b.WriteString("parse errors:\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "  %s\n", e)
		}
		return nil, fmt.Errorf("%s", b.String())
	}
	return program, nil
}

func startCalcREPL() {
	fmt.Println("rpnjit calc REPL")
	fmt.Println("Type ':help' for help, ':quit' to exit")
	fmt.Print("» ")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, ":") {
			handleREPLCommand(line)
			fmt.Print("» ")
			continue
		}
		if line == "" {
			fmt.Print("» ")
			continue
		}
		evaluateCalcLine(line)
		fmt.Print("» ")
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "reading input: %v\n", err)
	}
}

func handleREPLCommand(command string) {
	switch command {
	case ":help":
		fmt.Println("Available commands:")
		fmt.Println("  :help  - show this help message")
		fmt.Println("  :quit  - exit the REPL")
		fmt.Println("")
		fmt.Println("Enter a stack-calculator expression to evaluate it (no parameters: the REPL always calls with zero arguments)")
	case ":quit":
		fmt.Println("Goodbye!")
		os.Exit(0)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Type ':help' for available commands")
	}
}

func evaluateCalcLine(line string) {
	cmds, paramCount, err := calc.Parse(line)
	if err != nil {
		fmt.Printf("parse error: %v\n", err)
		return
	}
	if paramCount > 0 {
		fmt.Printf("expression references parameter %c; the REPL only evaluates parameterless expressions, run a file with arguments instead\n", 'a'+paramCount-1)
		return
	}
	fn, err := jit.AssembleFunction(cmds)
	if err != nil {
		fmt.Printf("assemble error: %v\n", err)
		return
	}
	defer fn.Close()

	result, err := fn.CallN()
	if err != nil {
		fmt.Printf("runtime error: %v\n", err)
		return
	}
	fmt.Println(result)
}
