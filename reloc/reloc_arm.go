//go:build arm

package reloc

// Kind enumerates the 32-bit ARM relocation kinds this code generator
// emits. Numbering mirrors the ELF ARM relocation numbering the teacher's
// corpus uses as its reference vocabulary (R_ARM_*). ARM support here is
// partial: only the kinds the command/template catalog actually needs
// (branch displacement and the MOVW/MOVT immediate-load pair) are
// implemented.
type Kind int

const (
	None   Kind = 0
	Jump24 Kind = 29
	Movw   Kind = 43
	Movt   Kind = 44
)

func (k Kind) String() string {
	switch k {
	case None:
		return "None"
	case Jump24:
		return "Jump24"
	case Movw:
		return "Movw"
	case Movt:
		return "Movt"
	default:
		return "Unknown"
	}
}

// ApplyRelative patches a 4-byte ARM branch instruction's low 24 bits
// with (disp>>2), where disp is the PC-relative displacement from the
// relocation's location to a relatively-defined symbol at value, biased
// by addend. ARM's PC reads two instructions (8 bytes) ahead of the
// instruction performing the branch, so callers conventionally supply
// addend = -8.
//
// The instruction word is addressed big-endian within field: field[0] is
// the condition/opcode byte, field[1..3] carry the 24-bit signed
// displacement high-to-low.
func (k Kind) ApplyRelative(field []byte, location, value int64, addend int64) error {
	switch k {
	case Jump24:
		disp := value - location + addend
		if disp&3 != 0 {
			return &InvalidRelocation{Kind: k, Reason: ReasonMisaligned}
		}
		shifted := disp >> 2
		if shifted < -(1<<23) || shifted > (1<<23)-1 {
			return &InvalidRelocation{Kind: k, Reason: ReasonOutOfRange}
		}
		v := uint32(shifted) & 0x00FFFFFF
		field[1] = byte(v >> 16)
		field[2] = byte(v >> 8)
		field[3] = byte(v)
		return nil
	case Movw, Movt:
		return &InvalidRelocation{Kind: k, Reason: ReasonWrongKindForAbsolute}
	case None:
		return nil
	default:
		return &InvalidRelocation{Kind: k, Reason: "unknown relocation kind"}
	}
}

// ApplyAbsolute patches a MOVW/MOVT immediate-load instruction (or errors
// for Jump24, which only ever targets relatively-defined branch labels)
// with a 16-bit half of the absolute value of a symbol, biased by
// addend. MOVW carries the low 16 bits, MOVT the high 16 bits; each half
// is split into imm4 (bits 19:16 of the instruction) and imm12 (bits
// 11:0), per the ARM A32 encoding of MOVW/MOVT.
func (k Kind) ApplyAbsolute(field []byte, value int64, addend int64) error {
	v := value + addend
	switch k {
	case Movw, Movt:
		var half uint32
		if k == Movw {
			half = uint32(v) & 0xFFFF
		} else {
			half = uint32(v>>16) & 0xFFFF
		}
		imm12 := half & 0x0FFF
		imm4 := (half >> 12) & 0xF
		field[1] = (field[1] & 0xF0) | byte(imm4)
		field[2] = (field[2] & 0xF0) | byte(imm12>>8)
		field[3] = byte(imm12)
		return nil
	case Jump24:
		return &InvalidRelocation{Kind: k, Reason: ReasonWrongKindForRelative}
	case None:
		return nil
	default:
		return &InvalidRelocation{Kind: k, Reason: "unknown relocation kind"}
	}
}

// Size returns the number of bytes a relocation of this kind patches.
func (k Kind) Size() int {
	switch k {
	case Jump24, Movw, Movt:
		return 4
	default:
		return 0
	}
}
