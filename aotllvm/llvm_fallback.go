//go:build !llvm14 && !llvm15 && !llvm16 && !llvm17 && !llvm18 && !llvm19 && !llvm20

package aotllvm

import (
	"fmt"

	"rpnjit/ast"
)

// NativeCode is the on-disk result of a Generate call: an object file
// ready for LinkExecutable.
type NativeCode struct {
	ObjectFile string
}

// CodeGenerator is a stand-in used when this binary wasn't built
// against an LLVM version tag; every method reports why.
type CodeGenerator struct{}

func NewCodeGenerator() *CodeGenerator { return &CodeGenerator{} }

func (g *CodeGenerator) Generate(program *ast.Program) (*NativeCode, error) {
	return nil, fmt.Errorf("aotllvm: not available in this build: rebuild with -tags llvm18 (or another supported LLVM version)")
}

func LinkExecutable(objectFile, outputPath string) error {
	return fmt.Errorf("aotllvm: not available in this build: rebuild with -tags llvm18 (or another supported LLVM version)")
}
