//go:build amd64

package object

import (
	"testing"

	"rpnjit/reloc"
	"rpnjit/symbol"
)

func TestAppendOffsetShifting(t *testing.T) {
	a := Relocatable{Data: []byte{0x01, 0x02}}
	sym := symbol.New()
	a.Symbols = append(a.Symbols, SymbolDef{Sym: sym, Offset: 1})

	b := Relocatable{Data: []byte{0x03, 0x04, 0x05}}
	target := symbol.New()
	b.Symbols = append(b.Symbols, SymbolDef{Sym: target, Offset: 2})

	a.Append(b)

	if len(a.Data) != 5 {
		t.Fatalf("len(Data) = %d, want 5", len(a.Data))
	}
	if a.Symbols[0].Offset != 1 {
		t.Errorf("first symbol offset shifted unexpectedly: %d", a.Symbols[0].Offset)
	}
	if a.Symbols[1].Offset != 4 {
		t.Errorf("appended symbol offset = %d, want 4 (2 + len(a.Data) before append)", a.Symbols[1].Offset)
	}
}

func TestAppendAdditivity(t *testing.T) {
	a := Relocatable{Data: []byte{1, 2}}
	b := Relocatable{Data: []byte{3, 4}}
	c := Relocatable{Data: []byte{5, 6}}

	left := a
	left.Append(b)
	left.Append(c)

	bc := b
	bc.Append(c)
	right := a
	right.Append(bc)

	if string(left.Data) != string(right.Data) {
		t.Fatalf("(a+b)+c = %v, a+(b+c) = %v", left.Data, right.Data)
	}
}

func TestAssembleUndefinedSymbol(t *testing.T) {
	r := Relocatable{Data: make([]byte, 4)}
	r.Relocations = append(r.Relocations, Relocation{Offset: 0, Kind: reloc.Pc32, Target: symbol.New(), Addend: -4})

	err := r.Assemble(0)
	var undef *UndefinedSymbol
	if err == nil {
		t.Fatal("expected UndefinedSymbol error")
	}
	if !isUndefinedSymbol(err, &undef) {
		t.Errorf("got %v (%T), want *UndefinedSymbol", err, err)
	}
}

func isUndefinedSymbol(err error, target **UndefinedSymbol) bool {
	u, ok := err.(*UndefinedSymbol)
	if ok {
		*target = u
	}
	return ok
}

func TestAssembleMultiplyDefinedSymbol(t *testing.T) {
	sym := symbol.New()
	r := Relocatable{Data: make([]byte, 4)}
	r.Symbols = append(r.Symbols, SymbolDef{Sym: sym, Offset: 0}, SymbolDef{Sym: sym, Offset: 1})

	err := r.Assemble(0)
	if _, ok := err.(*MultiplyDefinedSymbol); !ok {
		t.Fatalf("got %v (%T), want *MultiplyDefinedSymbol", err, err)
	}
}

func TestAssembleAppliesRelativeRelocation(t *testing.T) {
	r := Relocatable{Data: make([]byte, 8)}
	target := symbol.New()
	r.Symbols = append(r.Symbols, SymbolDef{Sym: target, Offset: 8})
	r.Relocations = append(r.Relocations, Relocation{Offset: 4, Kind: reloc.Pc32, Target: target, Addend: -4})

	if err := r.Assemble(100); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	// location = 100+4 = 104, value = 100+8 = 108, disp = 108-104-4 = 0
	got := int32(r.Data[4]) | int32(r.Data[5])<<8 | int32(r.Data[6])<<16 | int32(r.Data[7])<<24
	if got != 0 {
		t.Errorf("disp = %d, want 0", got)
	}
}

func TestAssembleOutOfBoundsRelocation(t *testing.T) {
	r := Relocatable{Data: make([]byte, 2)}
	target := symbol.New()
	r.AbsSymbols = append(r.AbsSymbols, AbsSymbolDef{Sym: target, Value: 1})
	r.Relocations = append(r.Relocations, Relocation{Offset: 0, Kind: reloc.Direct64, Target: target})

	if err := r.Assemble(0); err == nil {
		t.Fatal("expected an out-of-bounds InvalidRelocation error")
	}
}
