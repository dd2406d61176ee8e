// Package object implements the Relocatable/Object data model: a buffer
// of bytes carrying symbol definitions and pending relocations, and the
// Assemble step that resolves every symbol and patches every relocation
// in place.
package object

import (
	"fmt"

	"rpnjit/reloc"
	"rpnjit/symbol"
)

// Relocation is a pending patch: at Offset bytes into the owning
// Relocatable's data, apply Kind using the eventual value of Target,
// biased by Addend.
type Relocation struct {
	Offset int64
	Kind   reloc.Kind
	Target symbol.Symbol
	Addend int64
}

// Relocatable is a chunk of bytes plus everything needed to finish
// linking it: symbols it defines at offsets relative to its own start
// (Symbols), symbols it defines at fixed absolute addresses (AbsSymbols,
// used for static data installed at a known runtime address), and
// relocations still to be applied once every symbol used anywhere is
// known (Relocations).
//
// Alignment is expressed as a power of two exponent (log2): a
// Relocatable requiring 8-byte alignment carries Alignment == 3.
type Relocatable struct {
	Data        []byte
	Alignment   uint
	Symbols     []SymbolDef
	AbsSymbols  []AbsSymbolDef
	Relocations []Relocation
}

// SymbolDef records that sym is defined at Offset bytes into the
// Relocatable's data.
type SymbolDef struct {
	Sym    symbol.Symbol
	Offset int64
}

// AbsSymbolDef records that sym is defined at a fixed absolute address,
// independent of where this Relocatable ends up in the final buffer.
type AbsSymbolDef struct {
	Sym   symbol.Symbol
	Value int64
}

// Append concatenates other onto r in place: other's data follows r's
// data, and every offset other carries (its own symbol offsets and
// relocation offsets) is shifted by len(r.Data) so it still refers to
// the same logical position. Absolute symbols are carried over
// unchanged, since they do not depend on position within the buffer.
// The combined alignment is the stricter (larger) of the two.
func (r *Relocatable) Append(other Relocatable) {
	base := int64(len(r.Data))
	r.Data = append(r.Data, other.Data...)
	for _, s := range other.Symbols {
		r.Symbols = append(r.Symbols, SymbolDef{Sym: s.Sym, Offset: s.Offset + base})
	}
	r.AbsSymbols = append(r.AbsSymbols, other.AbsSymbols...)
	for _, rel := range other.Relocations {
		rel.Offset += base
		r.Relocations = append(r.Relocations, rel)
	}
	if other.Alignment > r.Alignment {
		r.Alignment = other.Alignment
	}
}

// DefineLocal records that sym names the current end of r's data —
// useful for labeling a position just written, such as a loop header.
func (r *Relocatable) DefineLocal(sym symbol.Symbol) {
	r.Symbols = append(r.Symbols, SymbolDef{Sym: sym, Offset: int64(len(r.Data))})
}

// Object is the split {code, data} Relocatable pair a Command or an
// assembled Function carries: instructions in Code, constant or mutable
// storage (e.g. static variable backing) in Data. The two halves are
// never concatenated by the loaders: jit.LoadProgram installs them as
// two separate memory regions, and jit.AssembleFunction installs Code
// only.
type Object struct {
	Code Relocatable
	Data Relocatable
}

// Append concatenates other's code onto o's code, and other's data onto
// o's data, preserving the code/data split.
func (o *Object) Append(other Object) {
	o.Code.Append(other.Code)
	o.Data.Append(other.Data)
}

// UndefinedSymbol is returned by Assemble when a relocation targets a
// symbol that no Relocatable in the assembly defines.
type UndefinedSymbol struct {
	Symbol symbol.Symbol
}

func (e *UndefinedSymbol) Error() string {
	return fmt.Sprintf("undefined symbol: %s", e.Symbol)
}

// MultiplyDefinedSymbol is returned by Assemble when two Relocatables
// (or two definitions within the same one) define the same symbol.
type MultiplyDefinedSymbol struct {
	Symbol symbol.Symbol
}

func (e *MultiplyDefinedSymbol) Error() string {
	return fmt.Sprintf("multiply defined symbol: %s", e.Symbol)
}

// value is a resolved symbol's location: either relative to the start of
// the buffer it was assembled into, or a fixed absolute address.
type value struct {
	absolute bool
	v        int64
}

// Assemble resolves every symbol r defines into a single map and applies
// every pending relocation in place against r.Data. codeBase is the
// address (or offset, for a position-independent assembly) the start of
// r.Data will eventually occupy — relative symbol offsets are resolved
// against this base so that ApplyRelative's location/value arithmetic is
// expressed in one consistent coordinate space with any absolute
// symbols also participating in the same assembly.
//
// Assemble does not truncate or otherwise normalize r.Data; callers
// needing a specific final length (e.g. page-aligned) must pad before
// calling Assemble, since relocations reference fixed offsets.
func (r *Relocatable) Assemble(codeBase int64) error {
	resolved := make(map[symbol.Symbol]value, len(r.Symbols)+len(r.AbsSymbols))
	for _, s := range r.Symbols {
		if _, dup := resolved[s.Sym]; dup {
			return &MultiplyDefinedSymbol{Symbol: s.Sym}
		}
		resolved[s.Sym] = value{absolute: false, v: codeBase + s.Offset}
	}
	for _, s := range r.AbsSymbols {
		if _, dup := resolved[s.Sym]; dup {
			return &MultiplyDefinedSymbol{Symbol: s.Sym}
		}
		resolved[s.Sym] = value{absolute: true, v: s.Value}
	}

	for _, rel := range r.Relocations {
		val, ok := resolved[rel.Target]
		if !ok {
			return &UndefinedSymbol{Symbol: rel.Target}
		}
		size := rel.Kind.Size()
		if rel.Offset < 0 || rel.Offset+int64(size) > int64(len(r.Data)) {
			return &reloc.InvalidRelocation{Kind: rel.Kind, Reason: "relocation offset out of bounds"}
		}
		field := r.Data[rel.Offset : rel.Offset+int64(size)]
		location := codeBase + rel.Offset
		var err error
		if val.absolute {
			err = rel.Kind.ApplyAbsolute(field, val.v, rel.Addend)
		} else {
			err = rel.Kind.ApplyRelative(field, location, val.v, rel.Addend)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
