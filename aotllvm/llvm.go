//go:build llvm14 || llvm15 || llvm16 || llvm17 || llvm18 || llvm19 || llvm20

// Package aotllvm is a supplemental ahead-of-time backend that lowers
// the same AST the compiler package hand-encodes into amd64 machine
// code into LLVM IR instead, letting clang's own codegen and optimizer
// produce the executable. It exists to cross-check the hand-rolled
// Machine/Register backend, not to replace it: the two backends share
// an AST and should agree on every program's observable behavior.
package aotllvm

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"tinygo.org/x/go-llvm"

	"rpnjit/ast"
)

// NativeCode is the on-disk result of a Generate call: an object file
// ready for LinkExecutable.
type NativeCode struct {
	ObjectFile string
}

// CodeGenerator lowers a Program to an LLVM module and emits it as a
// native object file.
type CodeGenerator struct {
	context llvm.Context
	module  llvm.Module
	builder llvm.Builder

	functions map[string]llvm.Value
	globals   map[string]llvm.Value
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{functions: map[string]llvm.Value{}, globals: map[string]llvm.Value{}}
}

// Generate lowers program into a freestanding object file: every
// static becomes an i64 global, every function an LLVM function over
// i64 parameters and an i64 return, and every statement/expression the
// surface grammar allows a corresponding IR construct.
func (g *CodeGenerator) Generate(program *ast.Program) (*NativeCode, error) {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	g.context = llvm.NewContext()
	defer g.context.Dispose()
	g.module = g.context.NewModule("rpnjit_module")
	defer g.module.Dispose()
	g.builder = g.context.NewBuilder()
	defer g.builder.Dispose()

	i64 := g.context.Int64Type()

	for _, item := range program.Items {
		if sd, ok := item.(*ast.StaticDeclaration); ok {
			v, ok := constantValue(sd.Value)
			if !ok {
				return nil, fmt.Errorf("aotllvm: static %q initializer must be a constant", sd.Name.Value)
			}
			global := llvm.AddGlobal(g.module, i64, sd.Name.Value)
			global.SetInitializer(llvm.ConstInt(i64, uint64(v), false))
			if !sd.Atomic {
				// Non-atomic statics still need a stable address; nothing
				// further distinguishes them from an atomic one in plain
				// LLVM IR without an explicit atomic load/store, which this
				// backend doesn't need since it has no concurrent callers.
			}
			g.globals[sd.Name.Value] = global
		}
	}

	// Pre-declare every function so forward and mutually recursive
	// calls resolve regardless of declaration order.
	for _, item := range program.Items {
		if fd, ok := item.(*ast.FunctionDeclaration); ok {
			params := make([]llvm.Type, len(fd.Parameters))
			for i := range params {
				params[i] = i64
			}
			fnType := llvm.FunctionType(i64, params, false)
			g.functions[fd.Name.Value] = llvm.AddFunction(g.module, fd.Name.Value, fnType)
		}
	}

	for _, item := range program.Items {
		if fd, ok := item.(*ast.FunctionDeclaration); ok {
			if err := g.generateFunction(fd); err != nil {
				return nil, err
			}
		}
	}

	if err := llvm.VerifyModule(g.module, llvm.ReturnStatusAction); err != nil {
		return nil, fmt.Errorf("aotllvm: module verification failed: %w", err)
	}

	targetTriple := llvm.DefaultTargetTriple()
	target, err := llvm.GetTargetFromTriple(targetTriple)
	if err != nil {
		return nil, fmt.Errorf("aotllvm: get target: %w", err)
	}
	machine := target.CreateTargetMachine(targetTriple, "generic", "",
		llvm.CodeGenLevelDefault, llvm.RelocDefault, llvm.CodeModelDefault)
	defer machine.Dispose()

	targetData := machine.CreateTargetData()
	defer targetData.Dispose()
	g.module.SetDataLayout(targetData.String())
	g.module.SetTarget(targetTriple)

	memBuf, err := machine.EmitToMemoryBuffer(g.module, llvm.ObjectFile)
	if err != nil {
		return nil, fmt.Errorf("aotllvm: emit object: %w", err)
	}
	defer memBuf.Dispose()

	objectFile := filepath.Join(os.TempDir(), "rpnjit_module.o")
	if err := os.WriteFile(objectFile, memBuf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("aotllvm: write object file: %w", err)
	}
	return &NativeCode{ObjectFile: objectFile}, nil
}

// LinkExecutable links an emitted object file into a standalone
// executable via clang, the same handoff the hand-rolled backend's
// own jit package avoids needing (it installs its code directly into
// executable memory instead).
func LinkExecutable(objectFile, outputPath string) error {
	cmd := exec.Command("clang", "-o", outputPath, objectFile)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("aotllvm: linking failed: %w\noutput: %s", err, string(output))
	}
	return nil
}

func constantValue(e ast.Expression) (int64, bool) {
	switch e := e.(type) {
	case *ast.IntegerLiteral:
		return e.Value, true
	case *ast.BooleanLiteral:
		if e.Value {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
