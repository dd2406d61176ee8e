//go:build amd64

package jit

import (
	"fmt"
	"unsafe"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"rpnjit/compiler"
	"rpnjit/object"
	"rpnjit/reloc"
	"rpnjit/symbol"
)

// Program is a loaded compiler.Compile result: one executable region
// holding every function's machine code, and one writable region holding
// every static's backing storage. Splitting the two, where AssembleFunction
// installs a single calc expression as one read-execute page, lets a
// static survive being written by an AssignmentStatement without the
// code page ever needing to be anything but read-execute.
type Program struct {
	code    *executableRegion
	data    *writableRegion
	entries map[string]uintptr
	closed  bool
}

// writableRegion is a page of memory holding mutable static storage,
// installed read-write and released exactly once. Unlike executableRegion
// it is never flipped to execute permission.
type writableRegion struct {
	addr   uintptr
	length int
}

func installData(data []byte) (*writableRegion, error) {
	length := pageAlign(len(data))
	if length == 0 {
		length = pageSize()
	}
	mem, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("jit: mmap data: %w", err)
	}
	copy(mem, data)
	return &writableRegion{addr: uintptr(unsafe.Pointer(&mem[0])), length: length}, nil
}

func (r *writableRegion) release() error {
	if r == nil || r.addr == 0 {
		return nil
	}
	mem := unsafe.Slice((*byte)(unsafe.Pointer(r.addr)), r.length)
	if err := unix.Munmap(mem); err != nil {
		return err
	}
	r.addr = 0
	return nil
}

// LoadProgram links and installs a compiler.Compile result. Code and data
// are resolved against one shared symbol table (so a function's reference
// to a static resolves to the data region's live address) but are mapped
// into two separate regions, since the compiled code may write to a
// static and a single RWX mapping is not something this loader will do.
func LoadProgram(obj object.Object) (*Program, error) {
	dataRegion, err := installData(obj.Data.Data)
	if err != nil {
		return nil, err
	}

	codeLen := len(obj.Code.Data)
	if codeLen == 0 {
		_ = dataRegion.release()
		return nil, fmt.Errorf("jit: refusing to load a program with no code")
	}
	length := pageAlign(codeLen)
	mem, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		_ = dataRegion.release()
		return nil, fmt.Errorf("jit: mmap code: %w", err)
	}
	copy(mem, obj.Code.Data)
	codeBase := int64(uintptr(unsafe.Pointer(&mem[0])))

	resolved := make(map[symbol.Symbol]int64, len(obj.Code.Symbols)+len(obj.Data.Symbols))
	entries := make(map[string]uintptr, len(obj.Code.Symbols))
	for _, s := range obj.Code.Symbols {
		addr := codeBase + s.Offset
		resolved[s.Sym] = addr
		if name, ok := compiler.FunctionName(s.Sym.String()); ok {
			entries[name] = uintptr(addr)
		}
	}
	dataBase := int64(dataRegion.addr)
	for _, s := range obj.Data.Symbols {
		resolved[s.Sym] = dataBase + s.Offset
	}
	for _, s := range obj.Code.AbsSymbols {
		resolved[s.Sym] = s.Value
	}
	for _, s := range obj.Data.AbsSymbols {
		resolved[s.Sym] = s.Value
	}

	for _, rel := range obj.Code.Relocations {
		if err := applyRelocation(mem, codeBase, rel, resolved); err != nil {
			_ = unix.Munmap(mem)
			_ = dataRegion.release()
			return nil, err
		}
	}
	dataBytes := unsafe.Slice((*byte)(unsafe.Pointer(dataRegion.addr)), dataRegion.length)
	for _, rel := range obj.Data.Relocations {
		if err := applyRelocation(dataBytes, dataBase, rel, resolved); err != nil {
			_ = unix.Munmap(mem)
			_ = dataRegion.release()
			return nil, err
		}
	}

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		_ = dataRegion.release()
		return nil, fmt.Errorf("jit: mprotect rx: %w", err)
	}
	log.Debug().Int("functions", len(entries)).Int("code_bytes", codeLen).
		Int("data_bytes", len(obj.Data.Data)).Msg("jit: program loaded")

	return &Program{
		code:    &executableRegion{addr: uintptr(codeBase), length: length},
		data:    dataRegion,
		entries: entries,
	}, nil
}

func applyRelocation(buf []byte, base int64, rel object.Relocation, resolved map[symbol.Symbol]int64) error {
	value, ok := resolved[rel.Target]
	if !ok {
		return &object.UndefinedSymbol{Symbol: rel.Target}
	}
	size := rel.Kind.Size()
	if rel.Offset < 0 || int(rel.Offset)+size > len(buf) {
		return &reloc.InvalidRelocation{Kind: rel.Kind, Reason: "relocation offset out of bounds"}
	}
	field := buf[rel.Offset : int64(rel.Offset)+int64(size)]
	location := base + rel.Offset
	if rel.Kind == reloc.Pc32 || rel.Kind == reloc.Pc8 {
		return rel.Kind.ApplyRelative(field, location, value, rel.Addend)
	}
	return rel.Kind.ApplyAbsolute(field, value, rel.Addend)
}

// Lookup returns a callable handle to the named top-level function, or
// false if the program defines no such function.
func (p *Program) Lookup(name string) (*NativeFunc, bool) {
	entry, ok := p.entries[name]
	if !ok {
		return nil, false
	}
	return &NativeFunc{entry: entry}, true
}

// Close releases both the code and data regions. Calling Close more than
// once is a no-op.
func (p *Program) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.code.release(); err != nil {
		return err
	}
	return p.data.release()
}

// NativeFunc is a callable entry point into a loaded Program.
type NativeFunc struct {
	entry uintptr
}

// CallN invokes the function with 0-6 integer arguments, following the
// same {value, error_code} convention calc-assembled functions use —
// this backend's error code is always zero, since its arithmetic never
// traps.
func (f *NativeFunc) CallN(args ...int64) (int64, error) {
	if len(args) > 6 {
		return 0, &ArityError{Got: len(args), Want: len(args)}
	}
	var argPtr *int64
	if len(args) > 0 {
		argPtr = (*int64)(unsafe.Pointer(&args[0]))
	}
	value, errCode := callNative(f.entry, argPtr, int64(len(args)))
	if errCode != 0 {
		return 0, fmt.Errorf("jit: unexpected nonzero error code %d from compiled function", errCode)
	}
	return value, nil
}
