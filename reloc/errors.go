// Package reloc implements the closed set of relocation kinds a
// Relocatable can carry, and the byte-patching rules ("apply") that turn
// a resolved symbol value into bits written at a fixed offset.
//
// Two architectures are supported, selected by Go build tags at compile
// time (this repo never dispatches between architectures at runtime):
// amd64 (reloc_amd64.go) and arm (reloc_arm.go, partial).
package reloc

import "fmt"

// InvalidRelocation reports a relocation whose kind cannot accept the
// value it was asked to apply: a relative-only kind given an absolute
// symbol, a value that does not fit the field width, or a PC-relative
// displacement that is not instruction-aligned.
type InvalidRelocation struct {
	Kind   Kind
	Reason string
}

func (e *InvalidRelocation) Error() string {
	return fmt.Sprintf("invalid relocation %s: %s", e.Kind, e.Reason)
}

const (
	ReasonWrongKindForAbsolute = "cannot apply a direct relocation for a relative symbol"
	ReasonWrongKindForRelative = "this relocation kind only accepts absolute symbols"
	ReasonOutOfRange           = "value does not fit in the relocation field"
	ReasonMisaligned           = "pc-relative displacement is not instruction-aligned"
)
