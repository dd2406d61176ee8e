package compiler

import (
	"encoding/binary"
	"fmt"

	"rpnjit/ast"
	"rpnjit/object"
	"rpnjit/symbol"
)

// UndefinedName is returned when an identifier or call target has no
// matching static, local, or function declaration in scope.
type UndefinedName struct {
	Name string
}

func (e *UndefinedName) Error() string {
	return fmt.Sprintf("compiler: undefined name %q", e.Name)
}

// NonConstantInitializer is returned when a static's initializer isn't
// a literal — this compiler has no notion of module load order, so
// every static must be installed fully formed before any function runs.
type NonConstantInitializer struct {
	Expr ast.Expression
}

func (e *NonConstantInitializer) Error() string {
	return fmt.Sprintf("compiler: static initializer must be a constant, got %q", e.Expr.String())
}

// TooManyArguments is returned when a call passes more arguments than
// the target machine has argument registers for — this compiler does
// not spill call arguments to the stack.
type TooManyArguments struct {
	Function string
	Got, Max int
}

func (e *TooManyArguments) Error() string {
	return fmt.Sprintf("compiler: call to %q passes %d arguments, max %d", e.Function, e.Got, e.Max)
}

// Compiler lowers a Program into a linkable Object against one Machine.
type Compiler struct {
	machine  Machine
	symbols  *SymbolTable
	epilogue symbol.Symbol
}

// Compile lowers program to a single Object: every static's backing
// storage in Data, every function's prologue/body/epilogue in Code,
// linked by symbol so functions can call each other and reference
// statics regardless of compile order.
func Compile(program *ast.Program, machine Machine) (object.Object, error) {
	c := &Compiler{machine: machine, symbols: NewSymbolTable()}
	var out object.Object
	for _, item := range program.Items {
		var obj object.Object
		var err error
		switch item := item.(type) {
		case *ast.StaticDeclaration:
			obj, err = c.compileStatic(item)
		case *ast.FunctionDeclaration:
			obj, err = c.compileFunction(item)
		default:
			err = fmt.Errorf("compiler: unknown item type %T", item)
		}
		if err != nil {
			return object.Object{}, err
		}
		out.Append(obj)
	}
	return out, nil
}

// constantValue folds the handful of expression shapes this grammar
// permits as a static initializer: integer and boolean literals.
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

func (c *Compiler) compileStatic(sd *ast.StaticDeclaration) (object.Object, error) {
	v, ok := constantValue(sd.Value)
	if !ok {
		return object.Object{}, &NonConstantInitializer{Expr: sd.Value}
	}
	typ := Integer
	if _, isBool := sd.Value.(*ast.BooleanLiteral); isBool {
		typ = Boolean
	}
	variable := c.symbols.DefineStatic(sd.Name.Value, typ, sd.Atomic)

	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(v))

	var obj object.Object
	obj.Data.Data = data
	obj.Data.Alignment = 3 // 8 bytes, so a statically-addressed load/store is naturally aligned
	obj.Data.Symbols = append(obj.Data.Symbols, object.SymbolDef{Sym: variable.Symbol, Offset: 0})
	return obj, nil
}

func (c *Compiler) compileFunction(fd *ast.FunctionDeclaration) (object.Object, error) {
	c.symbols.BeginFunction()
	c.epilogue = symbol.New()

	for _, p := range fd.Parameters {
		c.symbols.DefineLocal(p.Value, Integer)
	}

	bodyCode, err := c.compileBlock(fd.Body)
	if err != nil {
		return object.Object{}, err
	}

	var code object.Relocatable
	code.Symbols = append(code.Symbols, object.SymbolDef{
		Sym: symbol.Global(functionSymbolName(fd.Name.Value)), Offset: 0,
	})
	code.Append(c.machine.Prologue(c.symbols.StackSlots()))

	argRegs := c.machine.ArgRegisters()
	for i, p := range fd.Parameters {
		v, _ := c.symbols.Resolve(p.Value)
		code.Append(argRegs[i].StoreTo(v))
	}

	code.Append(bodyCode)
	code.DefineLocal(c.epilogue)
	code.Append(c.machine.Epilogue())

	return object.Object{Code: code}, nil
}

func (c *Compiler) compileBlock(block *ast.BlockStatement) (object.Relocatable, error) {
	var out object.Relocatable
	for _, stmt := range block.Statements {
		code, err := c.compileStatement(stmt)
		if err != nil {
			return object.Relocatable{}, err
		}
		out.Append(code)
	}
	return out, nil
}

func (c *Compiler) compileStatement(stmt ast.Statement) (object.Relocatable, error) {
	switch stmt := stmt.(type) {
	case *ast.AssignmentStatement:
		return c.compileAssignment(stmt)
	case *ast.ReturnStatement:
		return c.compileReturn(stmt)
	case *ast.WhileStatement:
		return c.compileWhile(stmt)
	case *ast.ExpressionStatement:
		code, _, err := c.compileExpr(stmt.Expression, c.machine.UsableRegisters())
		return code, err
	default:
		return object.Relocatable{}, fmt.Errorf("compiler: unknown statement type %T", stmt)
	}
}

func (c *Compiler) compileAssignment(as *ast.AssignmentStatement) (object.Relocatable, error) {
	code, reg, err := c.compileExpr(as.Value, c.machine.UsableRegisters())
	if err != nil {
		return object.Relocatable{}, err
	}
	v, ok := c.symbols.Resolve(as.Name.Value)
	if !ok {
		v = c.symbols.DefineLocal(as.Name.Value, Integer)
	}
	var out object.Relocatable
	out.Append(code)
	out.Append(reg.StoreTo(v))
	return out, nil
}

func (c *Compiler) compileReturn(rs *ast.ReturnStatement) (object.Relocatable, error) {
	code, reg, err := c.compileExpr(rs.ReturnValue, c.machine.UsableRegisters())
	if err != nil {
		return object.Relocatable{}, err
	}
	var out object.Relocatable
	out.Append(code)
	ret := c.machine.ReturnRegister()
	if reg != ret {
		out.Append(ret.CopyFrom(reg))
	}
	out.Append(c.machine.Jump(c.epilogue))
	return out, nil
}

func (c *Compiler) compileWhile(ws *ast.WhileStatement) (object.Relocatable, error) {
	header := symbol.New()
	footer := symbol.New()

	var out object.Relocatable
	out.DefineLocal(header)

	condCode, condReg, err := c.compileExpr(ws.Condition, c.machine.UsableRegisters())
	if err != nil {
		return object.Relocatable{}, err
	}
	out.Append(condCode)
	out.Append(c.machine.JumpIfZero(condReg, footer))

	bodyCode, err := c.compileBlock(ws.Body)
	if err != nil {
		return object.Relocatable{}, err
	}
	out.Append(bodyCode)
	out.Append(c.machine.Jump(header))
	out.DefineLocal(footer)
	return out, nil
}

// compileExpr lowers e into a value held in one of the registers in
// avail, returning the code and which register holds the result.
// Register selection is the trivial scheme this backend commits to:
// always take the next still-free register in avail, recursing into
// subexpressions with it and anything it used removed from the pool.
// An expression nested deeper than the usable register count is a
// compile error rather than a spill — this backend has no spill code.
func (c *Compiler) compileExpr(e ast.Expression, avail []Register) (object.Relocatable, Register, error) {
	if len(avail) == 0 {
		return object.Relocatable{}, nil, fmt.Errorf("compiler: expression too deep for available registers")
	}

	switch e := e.(type) {
	case *ast.IntegerLiteral:
		reg := avail[0]
		return c.machine.LoadImmediate(reg, e.Value), reg, nil

	case *ast.BooleanLiteral:
		reg := avail[0]
		v := int64(0)
		if e.Value {
			v = 1
		}
		return c.machine.LoadImmediate(reg, v), reg, nil

	case *ast.Identifier:
		v, ok := c.symbols.Resolve(e.Value)
		if !ok {
			return object.Relocatable{}, nil, &UndefinedName{Name: e.Value}
		}
		reg := avail[0]
		return reg.LoadFrom(v), reg, nil

	case *ast.InfixExpression:
		if e.Operator == "&&" || e.Operator == "||" {
			return c.compileShortCircuit(e, avail)
		}
		return c.compileBinary(e, avail)

	case *ast.CallExpression:
		return c.compileCall(e, avail)

	default:
		return object.Relocatable{}, nil, fmt.Errorf("compiler: unknown expression type %T", e)
	}
}

func (c *Compiler) compileBinary(e *ast.InfixExpression, avail []Register) (object.Relocatable, Register, error) {
	leftCode, leftReg, err := c.compileExpr(e.Left, avail)
	if err != nil {
		return object.Relocatable{}, nil, err
	}
	rest := removeRegister(avail, leftReg)
	rightCode, rightReg, err := c.compileExpr(e.Right, rest)
	if err != nil {
		return object.Relocatable{}, nil, err
	}

	var out object.Relocatable
	out.Append(leftCode)
	out.Append(rightCode)

	switch e.Operator {
	case "+":
		out.Append(Add(leftReg, rightReg, leftReg))
		return out, leftReg, nil
	case "-":
		out.Append(Sub(leftReg, rightReg, leftReg))
		return out, leftReg, nil
	case "==", "!=", "<", ">", "<=", ">=":
		out.Append(c.machine.Compare(leftReg, e.Operator, rightReg))
		return out, leftReg, nil
	default:
		return object.Relocatable{}, nil, fmt.Errorf("compiler: unknown operator %q", e.Operator)
	}
}

// compileShortCircuit lowers && and ||: the left operand always runs;
// the right only runs when it can still change the result, so its side
// effects (if this grammar ever grows any) are conditional exactly the
// way a source-level reader would expect.
func (c *Compiler) compileShortCircuit(e *ast.InfixExpression, avail []Register) (object.Relocatable, Register, error) {
	leftCode, leftReg, err := c.compileExpr(e.Left, avail)
	if err != nil {
		return object.Relocatable{}, nil, err
	}

	skip := symbol.New()
	var out object.Relocatable
	out.Append(leftCode)
	if e.Operator == "&&" {
		out.Append(c.machine.JumpIfZero(leftReg, skip))
	} else {
		out.Append(c.machine.JumpIfNotZero(leftReg, skip))
	}

	rest := removeRegister(avail, leftReg)
	rightCode, rightReg, err := c.compileExpr(e.Right, rest)
	if err != nil {
		return object.Relocatable{}, nil, err
	}
	out.Append(rightCode)
	if rightReg != leftReg {
		out.Append(leftReg.CopyFrom(rightReg))
	}
	out.DefineLocal(skip)
	return out, leftReg, nil
}

func (c *Compiler) compileCall(ce *ast.CallExpression, avail []Register) (object.Relocatable, Register, error) {
	argRegs := c.machine.ArgRegisters()
	if len(ce.Arguments) > len(argRegs) {
		return object.Relocatable{}, nil, &TooManyArguments{
			Function: ce.Function.Value, Got: len(ce.Arguments), Max: len(argRegs),
		}
	}

	var out object.Relocatable
	for i, argExpr := range ce.Arguments {
		// Committed argument registers (0..i) already hold values for
		// this call and must not be clobbered computing the rest.
		free := removeRegisters(avail, argRegs[:i])
		code, reg, err := c.compileExpr(argExpr, free)
		if err != nil {
			return object.Relocatable{}, nil, err
		}
		out.Append(code)
		if reg != argRegs[i] {
			out.Append(argRegs[i].CopyFrom(reg))
		}
	}

	target := symbol.Global(functionSymbolName(ce.Function.Value))
	out.Append(c.machine.Call(target))
	return out, c.machine.ReturnRegister(), nil
}
