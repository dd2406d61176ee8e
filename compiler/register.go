// Package compiler lowers the surface AST directly to native object
// code through a small Machine/Register abstraction, rather than to an
// intermediate bytecode: every statement and expression emits
// relocatable machine code immediately, the same way the lower-level
// command package composes Commands.
package compiler

import (
	"rpnjit/object"
	"rpnjit/symbol"
)

// Type is the type of a surface-language value. Both Integer and
// Boolean are represented as a 64-bit register value (0/1 for
// Boolean); the distinction exists for diagnostics, not codegen.
type Type int

const (
	Integer Type = iota
	Boolean
)

// Register is one machine register, able to move values between
// itself, memory-resident variables, and other registers. Concrete
// architectures (amd64's Reg) implement this directly; Go has no trait
// default methods, so the composed operations (Add, Sub) live as
// package-level functions built from the assign primitives below,
// mirroring how the original register trait supplied them.
type Register interface {
	LoadFrom(v *Variable) object.Relocatable
	StoreTo(v *Variable) object.Relocatable
	CopyFrom(src Register) object.Relocatable

	AddAssign(rhs Register) object.Relocatable
	SubAssign(rhs Register) object.Relocatable

	// CheckedAddAssign and CheckedSubAssign exist for parity with the
	// trait this package is grounded on; this language's arithmetic is
	// non-trapping and wrapping at every layer (see command.Add/Subtract),
	// so both are implemented identically to the plain assign variants.
	CheckedAddAssign(rhs Register) object.Relocatable
	CheckedSubAssign(rhs Register) object.Relocatable
}

// Add computes self+rhs into result, copying self into result first
// when result isn't already self.
func Add(self, rhs, result Register) object.Relocatable {
	var out object.Relocatable
	if result != self {
		out.Append(result.CopyFrom(self))
	}
	out.Append(result.AddAssign(rhs))
	return out
}

// Sub computes self-rhs into result, copying self into result first
// when result isn't already self.
func Sub(self, rhs, result Register) object.Relocatable {
	var out object.Relocatable
	if result != self {
		out.Append(result.CopyFrom(self))
	}
	out.Append(result.SubAssign(rhs))
	return out
}

// Machine is the architecture-specific surface the compiler lowers
// against: which registers exist, how calls and branches are shaped,
// and how a function's prologue/epilogue are built.
type Machine interface {
	UsableRegisters() []Register
	ArgRegisters() []Register
	ReturnRegister() Register

	LoadImmediate(reg Register, value int64) object.Relocatable
	Compare(dst Register, op string, rhs Register) object.Relocatable

	Jump(target symbol.Symbol) object.Relocatable
	JumpIfZero(reg Register, target symbol.Symbol) object.Relocatable
	JumpIfNotZero(reg Register, target symbol.Symbol) object.Relocatable
	Call(target symbol.Symbol) object.Relocatable

	Prologue(frameSlots int64) object.Relocatable
	Epilogue() object.Relocatable
}

// removeRegister returns avail without reg, preserving order. Used to
// shrink the pool of registers still free to hold an intermediate
// value as an expression tree is walked.
func removeRegister(avail []Register, reg Register) []Register {
	out := make([]Register, 0, len(avail))
	for _, r := range avail {
		if r != reg {
			out = append(out, r)
		}
	}
	return out
}

// removeRegisters removes every register in used from avail.
func removeRegisters(avail []Register, used []Register) []Register {
	out := avail
	for _, r := range used {
		out = removeRegister(out, r)
	}
	return out
}
