//go:build amd64

package jit

import (
	"rpnjit/command"
	"rpnjit/object"
	"rpnjit/template"
)

// AssembleFunction validates and compiles a top-level command sequence
// into an installed, callable Function.
//
// Validation walks the same running-depth bookkeeping command.While
// uses internally, applied to a function body starting from a
// genuinely empty operand stack: a step that needs more depth than is
// available yields StackUnderflow. A body that nets to zero final
// values yields EmptyResult; a body left deeper than one is fine, since
// only the top is ever read back (see EmptyResult's doc comment).
func AssembleFunction(cmds []command.Command) (*Function, error) {
	depth := 0
	paramCount := 0
	for _, c := range cmds {
		if c.RequiredStackDepth > depth {
			return nil, &StackUnderflow{Needed: c.RequiredStackDepth}
		}
		depth += c.StackDifference
		if c.MaxParamLetter > paramCount {
			paramCount = c.MaxParamLetter
		}
	}
	if depth == 0 {
		return nil, &EmptyResult{}
	}

	var obj object.Object
	obj.Code.Data = append(obj.Code.Data, template.PushRbp()...)
	obj.Code.Data = append(obj.Code.Data, template.MovRbpRsp()...)
	for _, c := range cmds {
		obj.Append(c.Obj)
	}
	obj.Code.Data = append(obj.Code.Data, template.Pop(template.RAX)...)
	obj.Code.Data = append(obj.Code.Data, template.XorRegReg(template.RDX, template.RDX)...)
	obj.Code.Data = append(obj.Code.Data, template.Leave()...)
	obj.Code.Data = append(obj.Code.Data, template.Ret()...)

	trapDef, err := trapSymbolValue(command.TrapDispatchSymbol)
	if err != nil {
		return nil, err
	}
	obj.Code.AbsSymbols = append(obj.Code.AbsSymbols, trapDef)

	if err := obj.Code.Assemble(0); err != nil {
		return nil, err
	}

	region, err := installCode(obj.Code.Data)
	if err != nil {
		return nil, err
	}
	return newFunction(region, paramCount), nil
}
