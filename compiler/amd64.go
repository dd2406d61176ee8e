//go:build amd64

package compiler

import (
	"encoding/binary"

	"rpnjit/object"
	"rpnjit/reloc"
	"rpnjit/symbol"
	"rpnjit/template"
)

// Reg is an x86-64 general-purpose register, numbered the way
// template's REX/ModRM encoders expect: 0=RAX .. 15=R15.
type Reg byte

const (
	regRAX Reg = iota
	regRCX
	regRDX
	regRBX
	regRSP
	regRBP
	regRSI
	regRDI
	regR8
	regR9
	regR10
	regR11
)

func (r Reg) b() byte { return byte(r) }

func (r Reg) LoadFrom(v *Variable) object.Relocatable {
	switch v.Scope {
	case ScopeLocal:
		data, hole := template.MovRegFromRspDisp32(r.b())
		patchU32(data, hole, uint32(v.Offset))
		return object.Relocatable{Data: data}
	case ScopeStatic:
		data, hole := template.MovRegFromRip(r.b())
		return object.Relocatable{
			Data:        data,
			Relocations: []object.Relocation{{Offset: int64(hole), Kind: reloc.Pc32, Target: v.Symbol, Addend: -4}},
		}
	default:
		panic("compiler: unknown variable scope")
	}
}

func (r Reg) StoreTo(v *Variable) object.Relocatable {
	switch v.Scope {
	case ScopeLocal:
		data, hole := template.MovRegToRspDisp32(r.b())
		patchU32(data, hole, uint32(v.Offset))
		return object.Relocatable{Data: data}
	case ScopeStatic:
		data, hole := template.MovRegToRip(r.b())
		return object.Relocatable{
			Data:        data,
			Relocations: []object.Relocation{{Offset: int64(hole), Kind: reloc.Pc32, Target: v.Symbol, Addend: -4}},
		}
	default:
		panic("compiler: unknown variable scope")
	}
}

func (r Reg) CopyFrom(src Register) object.Relocatable {
	return object.Relocatable{Data: template.MovRegReg(r.b(), src.(Reg).b())}
}

func (r Reg) AddAssign(rhs Register) object.Relocatable {
	return object.Relocatable{Data: template.AddRegReg(r.b(), rhs.(Reg).b())}
}

func (r Reg) SubAssign(rhs Register) object.Relocatable {
	return object.Relocatable{Data: template.SubRegReg(r.b(), rhs.(Reg).b())}
}

// CheckedAddAssign and CheckedSubAssign are identical to the plain
// assign forms: this language's arithmetic is non-trapping and
// wrapping at every layer (see command.Add/Subtract), so there is no
// overflow condition left for a "checked" variant to guard against at
// this level.
func (r Reg) CheckedAddAssign(rhs Register) object.Relocatable { return r.AddAssign(rhs) }
func (r Reg) CheckedSubAssign(rhs Register) object.Relocatable { return r.SubAssign(rhs) }

func patchU32(data []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(data[offset:offset+4], v)
}

func patchI64(data []byte, offset int, v int64) {
	binary.LittleEndian.PutUint64(data[offset:offset+8], uint64(v))
}

// AMD64 is the Machine backing this package's codegen on amd64: 9
// caller-saved general-purpose registers, the SysV integer calling
// convention, and a standard rbp-based prologue/epilogue.
type AMD64 struct{}

func (AMD64) UsableRegisters() []Register {
	return []Register{regRAX, regRCX, regRDX, regRSI, regRDI, regR8, regR9, regR10, regR11}
}

func (AMD64) ArgRegisters() []Register {
	return []Register{regRDI, regRSI, regRDX, regRCX, regR8, regR9}
}

func (AMD64) ReturnRegister() Register { return regRAX }

func (AMD64) LoadImmediate(reg Register, value int64) object.Relocatable {
	data, hole := template.MovImm64(reg.(Reg).b())
	patchI64(data, hole, value)
	return object.Relocatable{Data: data}
}

// conditionSkipJump returns the conditional jump that skips the
// "result is true" branch in Compare: the logical negation of op, so
// that falling through (condition true) reaches the mov-one, and
// jumping (condition false) skips past it, leaving the zero that
// Compare already moved in before the jump.
func conditionSkipJump(op string) (code []byte, holeOffset int) {
	switch op {
	case "==":
		return template.Jnz32()
	case "!=":
		return template.Jz32()
	case "<":
		return template.Jge32()
	case ">":
		return template.Jle32()
	case "<=":
		return template.Jg32()
	case ">=":
		return template.Jl32()
	default:
		panic("compiler: unknown comparison operator " + op)
	}
}

// Compare computes dst = (dst op rhs) ? 1 : 0, via a compare-and-branch
// shape rather than setcc — cmp, assume false (mov dst,0), conditional
// jump over the true case, mov dst,1. The jump displacement is patched
// in place since both ends sit in the same just-built buffer; no
// relocation is needed, the same reasoning as the intra-command jumps
// in the lower-level command package.
func (AMD64) Compare(dst Register, op string, rhs Register) object.Relocatable {
	d, s := dst.(Reg).b(), rhs.(Reg).b()
	var data []byte
	data = append(data, template.CmpRegReg(d, s)...)

	zero, zeroHole := template.MovImm64(d)
	patchI64(zero, zeroHole, 0)
	data = append(data, zero...)

	skip, skipHole := conditionSkipJump(op)
	skipAt := len(data)
	data = append(data, skip...)

	one, oneHole := template.MovImm64(d)
	patchI64(one, oneHole, 1)
	data = append(data, one...)

	pastOffset := len(data)
	patchU32(data, skipAt+skipHole, uint32(int32(pastOffset-(skipAt+len(skip)))))
	return object.Relocatable{Data: data}
}

func (AMD64) Jump(target symbol.Symbol) object.Relocatable {
	jmp, hole := template.Jmp32()
	return object.Relocatable{
		Data:        jmp,
		Relocations: []object.Relocation{{Offset: int64(hole), Kind: reloc.Pc32, Target: target, Addend: -4}},
	}
}

func (AMD64) JumpIfZero(reg Register, target symbol.Symbol) object.Relocatable {
	var data []byte
	data = append(data, template.CmpRegImm8(reg.(Reg).b(), 0)...)
	jz, hole := template.Jz32()
	at := len(data)
	data = append(data, jz...)
	return object.Relocatable{
		Data:        data,
		Relocations: []object.Relocation{{Offset: int64(at + hole), Kind: reloc.Pc32, Target: target, Addend: -4}},
	}
}

func (AMD64) JumpIfNotZero(reg Register, target symbol.Symbol) object.Relocatable {
	var data []byte
	data = append(data, template.CmpRegImm8(reg.(Reg).b(), 0)...)
	jnz, hole := template.Jnz32()
	at := len(data)
	data = append(data, jnz...)
	return object.Relocatable{
		Data:        data,
		Relocations: []object.Relocation{{Offset: int64(at + hole), Kind: reloc.Pc32, Target: target, Addend: -4}},
	}
}

func (AMD64) Call(target symbol.Symbol) object.Relocatable {
	call, hole := template.CallRel32()
	return object.Relocatable{
		Data:        call,
		Relocations: []object.Relocation{{Offset: int64(hole), Kind: reloc.Pc32, Target: target, Addend: -4}},
	}
}

func (AMD64) Prologue(frameSlots int64) object.Relocatable {
	var data []byte
	data = append(data, template.PushRbp()...)
	data = append(data, template.MovRbpRsp()...)
	if frameSlots > 0 {
		data = append(data, template.SubRspImm32(uint32(frameSlots*8))...)
	}
	return object.Relocatable{Data: data}
}

// Epilogue zeroes rdx before returning so every compiled function honors
// the same {value, error_code} result convention jit.callNative expects
// of calc's assembled functions, even though this backend's arithmetic
// never traps and so never has a nonzero error code to report.
func (AMD64) Epilogue() object.Relocatable {
	var data []byte
	data = append(data, template.XorRegReg(template.RDX, template.RDX)...)
	data = append(data, template.Leave()...)
	data = append(data, template.Ret()...)
	return object.Relocatable{Data: data}
}
