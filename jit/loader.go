//go:build amd64

package jit

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"rpnjit/object"
	"rpnjit/symbol"
	"rpnjit/template"
)

// executableRegion is a page of memory holding finished machine code,
// installed read-execute and released exactly once via munmap.
//
// The install discipline mirrors how every mmap-a-trampoline example in
// the pack does it: map RW, populate, flip to RX, never write again.
// Mapping RWX directly (as the original Rust prototype did) is not
// carried forward — a page that is simultaneously writable and
// executable is unnecessary here and is the shape W^X hardening exists
// to forbid.
type executableRegion struct {
	addr   uintptr
	length int
}

func installCode(code []byte) (*executableRegion, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("jit: refusing to install empty code")
	}
	length := pageAlign(len(code))
	mem, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("jit: mmap: %w", err)
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, fmt.Errorf("jit: mprotect rx: %w", err)
	}
	log.Debug().Int("bytes", len(code)).Int("pages", length/pageSize()).Msg("jit: installed executable region")
	return &executableRegion{addr: uintptr(unsafe.Pointer(&mem[0])), length: length}, nil
}

func (r *executableRegion) release() error {
	if r == nil || r.addr == 0 {
		return nil
	}
	mem := unsafe.Slice((*byte)(unsafe.Pointer(r.addr)), r.length)
	if err := unix.Munmap(mem); err != nil {
		log.Error().Err(err).Msg("jit: munmap failed")
		return &MunmapFailed{Err: err}
	}
	r.addr = 0
	return nil
}

func pageSize() int { return unix.Getpagesize() }

func pageAlign(n int) int {
	ps := pageSize()
	return (n + ps - 1) / ps * ps
}

var (
	trapDispatchOnce   sync.Once
	trapDispatchRegion *executableRegion
	trapDispatchAddr   int64
	trapDispatchErr    error
)

// trapDispatcher installs the single process-wide trap dispatcher every
// assembled function's trapping commands branch into, and returns its
// live address. Every function sets up an identical stack frame (push
// rbp; mov rbp, rsp before any operand push), so one shared dispatcher
// — mov rdx, r11; xor rax, rax; leave; ret — can unwind any of them.
func trapDispatcher() (int64, error) {
	trapDispatchOnce.Do(func() {
		var code []byte
		code = append(code, 0x4C, 0x89, 0xDA) // mov rdx, r11
		code = append(code, 0x48, 0x31, 0xC0) // xor rax, rax
		code = append(code, template.Leave()...)
		code = append(code, template.Ret()...)
		region, err := installCode(code)
		if err != nil {
			trapDispatchErr = fmt.Errorf("jit: installing trap dispatcher: %w", err)
			return
		}
		trapDispatchRegion = region
		trapDispatchAddr = int64(region.addr)
		log.Debug().Int64("addr", trapDispatchAddr).Msg("jit: trap dispatcher installed")
	})
	return trapDispatchAddr, trapDispatchErr
}

// trapSymbolValue returns the AbsSymbolDef binding the object model's
// symbolic trap-dispatch target to its live runtime address for this
// process.
func trapSymbolValue(sym symbol.Symbol) (object.AbsSymbolDef, error) {
	addr, err := trapDispatcher()
	if err != nil {
		return object.AbsSymbolDef{}, err
	}
	return object.AbsSymbolDef{Sym: sym, Value: addr}, nil
}
