//go:build llvm14 || llvm15 || llvm16 || llvm17 || llvm18 || llvm19 || llvm20

package aotllvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"rpnjit/ast"
)

// funcScope holds the current function's local variable allocas —
// LLVM IR is SSA, so a mutable local becomes a stack slot loaded and
// stored through, the same role compiler.Variable's stack-offset plays
// in the hand-rolled backend.
type funcScope struct {
	locals map[string]llvm.Value
}

func (g *CodeGenerator) generateFunction(fd *ast.FunctionDeclaration) error {
	fn := g.functions[fd.Name.Value]
	entry := g.context.AddBasicBlock(fn, "entry")
	g.builder.SetInsertPointAtEnd(entry)

	scope := &funcScope{locals: map[string]llvm.Value{}}
	i64 := g.context.Int64Type()
	for i, p := range fd.Parameters {
		alloca := g.builder.CreateAlloca(i64, p.Value)
		g.builder.CreateStore(fn.Param(i), alloca)
		scope.locals[p.Value] = alloca
	}

	terminated, err := g.generateBlock(fd.Body, scope)
	if err != nil {
		return err
	}
	if !terminated {
		// A body that falls off the end without an explicit return
		// yields 0, matching the convention an interpreter with a
		// default "no value" result would use.
		g.builder.CreateRet(llvm.ConstInt(i64, 0, false))
	}
	return nil
}

// generateBlock lowers every statement in sequence, returning whether
// the block ended in a terminator (a return) so the caller knows not
// to add one of its own or to fall through to code after it.
func (g *CodeGenerator) generateBlock(block *ast.BlockStatement, scope *funcScope) (bool, error) {
	for _, stmt := range block.Statements {
		terminated, err := g.generateStatement(stmt, scope)
		if err != nil {
			return false, err
		}
		if terminated {
			return true, nil
		}
	}
	return false, nil
}

func (g *CodeGenerator) generateStatement(stmt ast.Statement, scope *funcScope) (bool, error) {
	switch stmt := stmt.(type) {
	case *ast.AssignmentStatement:
		val, err := g.generateExpr(stmt.Value, scope)
		if err != nil {
			return false, err
		}
		alloca, ok := scope.locals[stmt.Name.Value]
		if !ok {
			alloca = g.builder.CreateAlloca(g.context.Int64Type(), stmt.Name.Value)
			scope.locals[stmt.Name.Value] = alloca
		}
		g.builder.CreateStore(val, alloca)
		return false, nil

	case *ast.ReturnStatement:
		val, err := g.generateExpr(stmt.ReturnValue, scope)
		if err != nil {
			return false, err
		}
		g.builder.CreateRet(val)
		return true, nil

	case *ast.WhileStatement:
		return false, g.generateWhile(stmt, scope)

	case *ast.ExpressionStatement:
		_, err := g.generateExpr(stmt.Expression, scope)
		return false, err

	default:
		return false, fmt.Errorf("aotllvm: unknown statement type %T", stmt)
	}
}

func (g *CodeGenerator) generateWhile(ws *ast.WhileStatement, scope *funcScope) error {
	fn := g.builder.GetInsertBlock().Parent()
	headerBB := g.context.AddBasicBlock(fn, "while.header")
	bodyBB := g.context.AddBasicBlock(fn, "while.body")
	endBB := g.context.AddBasicBlock(fn, "while.end")

	g.builder.CreateBr(headerBB)

	g.builder.SetInsertPointAtEnd(headerBB)
	cond, err := g.generateExpr(ws.Condition, scope)
	if err != nil {
		return err
	}
	zero := llvm.ConstInt(g.context.Int64Type(), 0, false)
	nonZero := g.builder.CreateICmp(llvm.IntNE, cond, zero, "while.cond")
	g.builder.CreateCondBr(nonZero, bodyBB, endBB)

	g.builder.SetInsertPointAtEnd(bodyBB)
	terminated, err := g.generateBlock(ws.Body, scope)
	if err != nil {
		return err
	}
	if !terminated {
		g.builder.CreateBr(headerBB)
	}

	g.builder.SetInsertPointAtEnd(endBB)
	return nil
}

func (g *CodeGenerator) generateExpr(e ast.Expression, scope *funcScope) (llvm.Value, error) {
	i64 := g.context.Int64Type()
	switch e := e.(type) {
	case *ast.IntegerLiteral:
		return llvm.ConstInt(i64, uint64(e.Value), false), nil

	case *ast.BooleanLiteral:
		v := uint64(0)
		if e.Value {
			v = 1
		}
		return llvm.ConstInt(i64, v, false), nil

	case *ast.Identifier:
		if alloca, ok := scope.locals[e.Value]; ok {
			return g.builder.CreateLoad(i64, alloca, e.Value), nil
		}
		if global, ok := g.globals[e.Value]; ok {
			return g.builder.CreateLoad(i64, global, e.Value), nil
		}
		return llvm.Value{}, fmt.Errorf("aotllvm: undefined name %q", e.Value)

	case *ast.InfixExpression:
		if e.Operator == "&&" || e.Operator == "||" {
			return g.generateShortCircuit(e, scope)
		}
		return g.generateBinary(e, scope)

	case *ast.CallExpression:
		fn, ok := g.functions[e.Function.Value]
		if !ok {
			return llvm.Value{}, fmt.Errorf("aotllvm: undefined function %q", e.Function.Value)
		}
		args := make([]llvm.Value, len(e.Arguments))
		for i, a := range e.Arguments {
			v, err := g.generateExpr(a, scope)
			if err != nil {
				return llvm.Value{}, err
			}
			args[i] = v
		}
		return g.builder.CreateCall(fn.GlobalValueType(), fn, args, "call"), nil

	default:
		return llvm.Value{}, fmt.Errorf("aotllvm: unknown expression type %T", e)
	}
}

func (g *CodeGenerator) generateBinary(e *ast.InfixExpression, scope *funcScope) (llvm.Value, error) {
	left, err := g.generateExpr(e.Left, scope)
	if err != nil {
		return llvm.Value{}, err
	}
	right, err := g.generateExpr(e.Right, scope)
	if err != nil {
		return llvm.Value{}, err
	}

	switch e.Operator {
	case "+":
		return g.builder.CreateAdd(left, right, "add"), nil
	case "-":
		return g.builder.CreateSub(left, right, "sub"), nil
	case "==", "!=", "<", ">", "<=", ">=":
		cmp := g.builder.CreateICmp(predicateFor(e.Operator), left, right, "cmp")
		return g.builder.CreateZExt(cmp, g.context.Int64Type(), "cmp.ext"), nil
	default:
		return llvm.Value{}, fmt.Errorf("aotllvm: unknown operator %q", e.Operator)
	}
}

func predicateFor(op string) llvm.IntPredicate {
	switch op {
	case "==":
		return llvm.IntEQ
	case "!=":
		return llvm.IntNE
	case "<":
		return llvm.IntSLT
	case ">":
		return llvm.IntSGT
	case "<=":
		return llvm.IntSLE
	case ">=":
		return llvm.IntSGE
	default:
		panic("aotllvm: unknown comparison operator " + op)
	}
}

// generateShortCircuit lowers && and || with real control flow (a
// branch that skips the right operand) rather than as a bitwise and/or
// over two always-evaluated zero-extended booleans, matching the
// hand-rolled backend's conditional-skip semantics in compiler.go.
func (g *CodeGenerator) generateShortCircuit(e *ast.InfixExpression, scope *funcScope) (llvm.Value, error) {
	fn := g.builder.GetInsertBlock().Parent()
	rhsBB := g.context.AddBasicBlock(fn, "logic.rhs")
	doneBB := g.context.AddBasicBlock(fn, "logic.done")

	left, err := g.generateExpr(e.Left, scope)
	if err != nil {
		return llvm.Value{}, err
	}
	zero := llvm.ConstInt(g.context.Int64Type(), 0, false)
	leftTrue := g.builder.CreateICmp(llvm.IntNE, left, zero, "logic.left")
	leftBB := g.builder.GetInsertBlock()

	if e.Operator == "&&" {
		g.builder.CreateCondBr(leftTrue, rhsBB, doneBB)
	} else {
		g.builder.CreateCondBr(leftTrue, doneBB, rhsBB)
	}

	g.builder.SetInsertPointAtEnd(rhsBB)
	right, err := g.generateExpr(e.Right, scope)
	if err != nil {
		return llvm.Value{}, err
	}
	rightTrue := g.builder.CreateICmp(llvm.IntNE, right, zero, "logic.right")
	rhsEndBB := g.builder.GetInsertBlock()
	g.builder.CreateBr(doneBB)

	g.builder.SetInsertPointAtEnd(doneBB)
	phi := g.builder.CreatePHI(g.context.Int1Type(), "logic.result")
	phi.AddIncoming([]llvm.Value{leftTrue, rightTrue}, []llvm.BasicBlock{leftBB, rhsEndBB})
	return g.builder.CreateZExt(phi, g.context.Int64Type(), "logic.ext"), nil
}
