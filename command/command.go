//go:build amd64

// Package command implements the Command Composer: the small set of
// stack-machine primitives (parameter pushes, arithmetic, stack-slot
// access, and a structured while loop) that a Function is built out of,
// each carrying enough bookkeeping (MaxParamLetter, RequiredStackDepth,
// StackDifference) for sequential composition to validate itself before
// any code ever runs.
package command

import (
	"encoding/binary"
	"fmt"
	"math"

	"rpnjit/object"
	"rpnjit/reloc"
	"rpnjit/symbol"
	"rpnjit/template"
)

// TrapDispatchSymbol names the process-wide trap dispatcher every
// trapping arithmetic command branches to. It is defined once, with its
// live runtime address, by the jit package's loader; Commands only ever
// reference it, so they stay context-free and composable regardless of
// which function or loop they end up in.
var TrapDispatchSymbol = symbol.Global("rpnjit.trap_dispatch")

// TrapCode identifies why a function aborted, returned to the caller as
// the second word of the {value, error_code} ABI.
type TrapCode int64

const (
	TrapNone                   TrapCode = 0
	TrapDivideByZero           TrapCode = 1
	TrapDivideMinByNegativeOne TrapCode = 2
)

// Command is one composable unit of generated code: MaxParamLetter is the
// highest function parameter letter (a..f) reachable from this command,
// used to size a Function's required argument count — distinct from
// spec's own "ParamCount" (values consumed from the operand stack),
// which this field never tracked; that bookkeeping lives entirely in
// RequiredStackDepth/StackDifference below. RequiredStackDepth is the
// minimum operand-stack depth it needs when it executes, and
// StackDifference is the net change in depth it leaves behind. Composing
// two commands requires the second's RequiredStackDepth to be no more
// than the first's resulting depth.
type Command struct {
	MaxParamLetter     int
	RequiredStackDepth int
	StackDifference    int
	Obj                object.Object
}

// LoopChangedStackDepth is returned by While when the loop body does not
// return the stack to the same depth it found it at — the invariant
// that lets the same top-of-stack slot serve as the loop's condition,
// peeked and replaced once per iteration, for as many iterations as the
// loop runs.
type LoopChangedStackDepth struct {
	Got int
}

func (e *LoopChangedStackDepth) Error() string {
	return fmt.Sprintf("while loop body must leave the stack at the same depth it started (net 0), left a net change of %d", e.Got)
}

func code(data []byte) object.Object {
	return object.Object{Code: object.Relocatable{Data: data}}
}

func patchU32(data []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(data[offset:offset+4], v)
}

func patchI64(data []byte, offset int, v int64) {
	binary.LittleEndian.PutUint64(data[offset:offset+8], uint64(v))
}

// PushParam returns the command for PUSH_A..PUSH_F: letter is 0 for 'a'
// through 5 for 'f'. It requires no existing stack depth and leaves one
// new value on top, read from the corresponding SysV argument register.
func PushParam(letter int) Command {
	if letter < 0 || letter > 5 {
		panic("command: PushParam letter out of range")
	}
	reg := template.ArgRegisters[letter]
	return Command{
		MaxParamLetter:  letter + 1,
		StackDifference: 1,
		Obj:             code(template.Push(reg)),
	}
}

// PushValue returns the command for a literal integer push: no stack
// depth required, leaves one new value.
func PushValue(v int64) Command {
	data, hole := template.MovImm64(template.RAX)
	patchI64(data, hole, v)
	data = append(data, template.Push(template.RAX)...)
	return Command{StackDifference: 1, Obj: code(data)}
}

// binaryArith builds the shared shape for the four non-trapping
// arithmetic commands: pop the right operand into RCX, pop the left
// operand into RAX, combine with op, push the result.
func binaryArith(op func(dst, src byte) []byte) Command {
	var data []byte
	data = append(data, template.Pop(template.RCX)...)
	data = append(data, template.Pop(template.RAX)...)
	data = append(data, op(template.RAX, template.RCX)...)
	data = append(data, template.Push(template.RAX)...)
	return Command{RequiredStackDepth: 2, StackDifference: -1, Obj: code(data)}
}

// Add returns ADD: pop b, pop a, push a+b.
func Add() Command { return binaryArith(template.AddRegReg) }

// Subtract returns SUBTRACT: pop b, pop a, push a-b.
func Subtract() Command { return binaryArith(template.SubRegReg) }

// Multiply returns MULTIPLY: pop b, pop a, push a*b.
func Multiply() Command { return binaryArith(template.ImulRegReg) }

// trapOnZero emits: cmp rcx,0; jnz past; <set trap code and branch to
// TrapDispatchSymbol>; past: — returning the bytes and the relocation
// needed for the absolute load of TrapDispatchSymbol, both relative to
// the start of the returned slice so the caller can append and shift.
func trapOnZero(trapCode TrapCode) ([]byte, []object.Relocation) {
	var data []byte
	data = append(data, template.CmpRegImm8(template.RCX, 0)...)
	jnz, jnzHole := template.Jnz32()
	jnzAt := len(data)
	data = append(data, jnz...)

	movImm, movHole := template.MovImm64(template.R11)
	patchI64(movImm, movHole, int64(trapCode))
	data = append(data, movImm...)

	loadDispatch, dispHole := template.MovImm64(template.R10)
	dispAt := len(data) + dispHole
	data = append(data, loadDispatch...)
	relocs := []object.Relocation{{Offset: int64(dispAt), Kind: reloc.Direct64, Target: TrapDispatchSymbol}}

	data = append(data, template.JmpReg(template.R10)...)

	pastOffset := len(data)
	patchU32(data, jnzAt+jnzHole, uint32(int32(pastOffset-(jnzAt+len(jnz)))))
	return data, relocs
}

// signedDivMod builds DIVIDE (wantRemainder=false) or MOD
// (wantRemainder=true): pop divisor, pop dividend, guard against divide
// by zero and INT64_MIN/-1 overflow, then idiv.
func signedDivMod(wantRemainder bool) Command {
	var data []byte
	var relocs []object.Relocation

	data = append(data, template.Pop(template.RCX)...) // divisor
	data = append(data, template.Pop(template.RAX)...) // dividend

	guarded, zeroRelocs := trapOnZero(TrapDivideByZero)
	data = append(data, guarded...)
	relocs = append(relocs, shiftRelocs(zeroRelocs, len(data)-len(guarded))...)

	// Guard against INT64_MIN / -1, which overflows idiv.
	data = append(data, template.CmpRegImm8(template.RCX, -1)...)
	jnz, jnzHole := template.Jnz32()
	jnzAt := len(data)
	data = append(data, jnz...)
	minMov, minHole := template.MovImm64(template.R11)
	patchI64(minMov, minHole, math.MinInt64)
	data = append(data, minMov...)
	data = append(data, template.CmpRegReg(template.RAX, template.R11)...)
	jnzMin, jnzMinHole := template.Jnz32()
	jnzMinAt := len(data)
	data = append(data, jnzMin...)

	overflowMov, movHole := template.MovImm64(template.R11)
	patchI64(overflowMov, movHole, int64(TrapDivideMinByNegativeOne))
	data = append(data, overflowMov...)
	loadDispatch, dispHole := template.MovImm64(template.R10)
	dispAt := len(data) + dispHole
	data = append(data, loadDispatch...)
	relocs = append(relocs, object.Relocation{Offset: int64(dispAt), Kind: reloc.Direct64, Target: TrapDispatchSymbol})
	data = append(data, template.JmpReg(template.R10)...)

	pastOffset := len(data)
	patchU32(data, jnzAt+jnzHole, uint32(int32(pastOffset-(jnzAt+len(jnz)))))
	patchU32(data, jnzMinAt+jnzMinHole, uint32(int32(pastOffset-(jnzMinAt+len(jnzMin)))))

	data = append(data, template.Cqo()...)
	data = append(data, template.IdivReg(template.RCX)...)
	result := template.RAX
	if wantRemainder {
		result = template.RDX
	}
	data = append(data, template.Push(result)...)

	return Command{
		RequiredStackDepth: 2,
		StackDifference:    -1,
		Obj:                object.Object{Code: object.Relocatable{Data: data, Relocations: relocs}},
	}
}

// Divide returns DIVIDE: signed 64-bit division, traps on divide by
// zero or INT64_MIN / -1.
func Divide() Command { return signedDivMod(false) }

// Mod returns MOD: signed 64-bit remainder, same traps as Divide.
func Mod() Command { return signedDivMod(true) }

func unsignedDivMod(wantRemainder bool) Command {
	var data []byte
	var relocs []object.Relocation

	data = append(data, template.Pop(template.RCX)...)
	data = append(data, template.Pop(template.RAX)...)

	guarded, zeroRelocs := trapOnZero(TrapDivideByZero)
	data = append(data, guarded...)
	relocs = append(relocs, shiftRelocs(zeroRelocs, len(data)-len(guarded))...)

	data = append(data, template.XorRegReg(template.RDX, template.RDX)...)
	data = append(data, template.DivReg(template.RCX)...)
	result := template.RAX
	if wantRemainder {
		result = template.RDX
	}
	data = append(data, template.Push(result)...)

	return Command{
		RequiredStackDepth: 2,
		StackDifference:    -1,
		Obj:                object.Object{Code: object.Relocatable{Data: data, Relocations: relocs}},
	}
}

// UDivide returns UDIVIDE: unsigned 64-bit division, traps on divide by
// zero.
func UDivide() Command { return unsignedDivMod(false) }

// UMod returns UMOD: unsigned 64-bit remainder, traps on divide by
// zero.
func UMod() Command { return unsignedDivMod(true) }

func shiftRelocs(rs []object.Relocation, base int) []object.Relocation {
	out := make([]object.Relocation, len(rs))
	for i, r := range rs {
		r.Offset += int64(base)
		out[i] = r
	}
	return out
}

// PushStackIndex returns PUSH_STACK_INDEX(i): a non-negative i reads the
// value i slots below the current top (0 = the current top itself),
// addressed relative to RSP — its meaning shifts as the stack grows and
// shrinks around it. A negative i = -n instead reads frame slot n, a
// fixed RBP-relative location that survives pushes and pops elsewhere on
// the stack — useful for a value, like a loop accumulator, that must
// persist across iterations rather than sitting at a shifting RSP
// offset. RequiredStackDepth for the negative form is n itself,
// reflecting that n values must already have passed through the stack
// for slot n to hold anything meaningful (it is only ever written by an
// earlier POP_STACK_INDEX(-n)). Both forms read without consuming.
func PushStackIndex(i int) Command {
	if i >= 0 {
		data, hole := template.MovRegFromRspDisp32(template.RAX)
		patchU32(data, hole, uint32(int32(i*8)))
		data = append(data, template.Push(template.RAX)...)
		return Command{RequiredStackDepth: i + 1, StackDifference: 1, Obj: code(data)}
	}
	n := -i
	data, hole := template.MovRegFromRbpDisp32(template.RAX)
	patchU32(data, hole, uint32(int32(-n*8)))
	data = append(data, template.Push(template.RAX)...)
	return Command{RequiredStackDepth: n, StackDifference: 1, Obj: code(data)}
}

// PopStackIndex returns POP_STACK_INDEX(i): pops the top of stack and
// stores it into the slot at index i, addressed the same way as
// PushStackIndex (RSP-relative for i>=0, fixed frame slot for i<0).
// RequiredStackDepth for the negative form is n+1: one value must be on
// top of stack to consume.
func PopStackIndex(i int) Command {
	if i >= 0 {
		var data []byte
		data = append(data, template.Pop(template.RAX)...)
		store, hole := template.MovRegToRspDisp32(template.RAX)
		patchU32(store, hole, uint32(int32(i*8)))
		data = append(data, store...)
		return Command{RequiredStackDepth: i + 2, StackDifference: -1, Obj: code(data)}
	}
	n := -i
	var data []byte
	data = append(data, template.Pop(template.RAX)...)
	store, hole := template.MovRegToRbpDisp32(template.RAX)
	patchU32(store, hole, uint32(int32(-n*8)))
	data = append(data, store...)
	return Command{RequiredStackDepth: n + 1, StackDifference: -1, Obj: code(data)}
}

// While folds inner into a structured while loop. Each pass, the header
// peeks (not pops) the value on top of the stack; if it is zero, the
// loop falls through to whatever follows, with that same value — now
// spent — still sitting on top. Otherwise inner runs. inner is expected
// to consume that top-of-stack condition itself as part of its own
// arithmetic and push a replacement in its place, so across inner as a
// whole the net stack depth must come back to exactly where it started:
// a non-zero net (LoopChangedStackDepth) means inner isn't actually
// maintaining a single rolling condition value.
func While(inner []Command) (Command, error) {
	innerDepth := 1
	innerParams := 0
	var innerObj object.Object
	runningDiff := 0
	for _, c := range inner {
		need := c.RequiredStackDepth - runningDiff
		if need > innerDepth {
			innerDepth = need
		}
		runningDiff += c.StackDifference
		if c.MaxParamLetter > innerParams {
			innerParams = c.MaxParamLetter
		}
		innerObj.Append(c.Obj)
	}
	innerDiff := runningDiff

	if innerDiff != 0 {
		return Command{}, &LoopChangedStackDepth{Got: innerDiff}
	}

	headerSym := symbol.New()
	footerSym := symbol.New()

	var body object.Object
	body.Code.DefineLocal(headerSym)
	peek, peekHole := template.MovRegFromRspDisp32(template.RAX)
	patchU32(peek, peekHole, 0)
	body.Code.Data = append(body.Code.Data, peek...)
	body.Code.Data = append(body.Code.Data, template.CmpRegImm8(template.RAX, 0)...)
	jz, jzHole := template.Jz32()
	jzAt := len(body.Code.Data)
	body.Code.Data = append(body.Code.Data, jz...)
	body.Code.Relocations = append(body.Code.Relocations, object.Relocation{
		Offset: int64(jzAt + jzHole), Kind: reloc.Pc32, Target: footerSym, Addend: -4,
	})

	body.Append(innerObj)

	jmp, jmpHole := template.Jmp32()
	jmpAt := len(body.Code.Data)
	body.Code.Data = append(body.Code.Data, jmp...)
	body.Code.Relocations = append(body.Code.Relocations, object.Relocation{
		Offset: int64(jmpAt + jmpHole), Kind: reloc.Pc32, Target: headerSym, Addend: -4,
	})
	body.Code.DefineLocal(footerSym)

	return Command{
		MaxParamLetter:     innerParams,
		RequiredStackDepth: innerDepth,
		StackDifference:    0,
		Obj:                body,
	}, nil
}
