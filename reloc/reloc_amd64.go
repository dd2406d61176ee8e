//go:build amd64

package reloc

import "encoding/binary"

// Kind enumerates the x86-64 relocation kinds this code generator emits.
// The numeric values mirror the ELF x86-64 relocation numbering the
// teacher's corpus uses as its reference vocabulary (R_X86_64_*).
type Kind int

const (
	None      Kind = 0
	Direct64  Kind = 1
	Pc32      Kind = 2
	Direct32  Kind = 10
	Direct32S Kind = 11
	Pc8       Kind = 15
)

func (k Kind) String() string {
	switch k {
	case None:
		return "None"
	case Direct64:
		return "Direct64"
	case Pc32:
		return "Pc32"
	case Direct32:
		return "Direct32"
	case Direct32S:
		return "Direct32S"
	case Pc8:
		return "Pc8"
	default:
		return "Unknown"
	}
}

// ApplyRelative patches field (a slice into the owning buffer starting at
// the relocation's offset) with the PC-relative displacement from the
// relocation's own location to a relatively-defined symbol whose offset
// is value, biased by addend. The caller supplies addend to account for
// how far the processor's program counter has already advanced past the
// field by the time it is read (one instruction ahead for Pc32/Pc8 on
// x86-64, conventionally -4 or -1, since the displacement is taken from
// the end of the encoded instruction, not its start).
func (k Kind) ApplyRelative(field []byte, location, value int64, addend int64) error {
	disp := value - location + addend
	switch k {
	case Pc32:
		if disp < int64(-1<<31) || disp > int64(1<<31-1) {
			return &InvalidRelocation{Kind: k, Reason: ReasonOutOfRange}
		}
		binary.LittleEndian.PutUint32(field[:4], uint32(int32(disp)))
		return nil
	case Pc8:
		if disp < -128 || disp > 127 {
			return &InvalidRelocation{Kind: k, Reason: ReasonOutOfRange}
		}
		field[0] = byte(int8(disp))
		return nil
	case Direct64, Direct32, Direct32S:
		return &InvalidRelocation{Kind: k, Reason: ReasonWrongKindForAbsolute}
	case None:
		return nil
	default:
		return &InvalidRelocation{Kind: k, Reason: "unknown relocation kind"}
	}
}

// ApplyAbsolute patches field with the absolute value of a globally
// defined symbol (value), biased by addend.
func (k Kind) ApplyAbsolute(field []byte, value int64, addend int64) error {
	v := value + addend
	switch k {
	case Direct64:
		binary.LittleEndian.PutUint64(field[:8], uint64(v))
		return nil
	case Direct32:
		if v < 0 || v > int64(1<<32-1) {
			return &InvalidRelocation{Kind: k, Reason: ReasonOutOfRange}
		}
		binary.LittleEndian.PutUint32(field[:4], uint32(v))
		return nil
	case Direct32S:
		if v < int64(-1<<31) || v > int64(1<<31-1) {
			return &InvalidRelocation{Kind: k, Reason: ReasonOutOfRange}
		}
		binary.LittleEndian.PutUint32(field[:4], uint32(int32(v)))
		return nil
	case Pc32, Pc8:
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
	case Direct64:
		return 8
	case Pc32, Direct32, Direct32S:
		return 4
	case Pc8:
		return 1
	default:
		return 0
	}
}
