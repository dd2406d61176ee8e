//go:build amd64

package jit

import (
	"runtime"
	"unsafe"

	"rpnjit/command"
)

// Function is a handle to a compiled, installed, and callable piece of
// native code. Its executable memory is released exactly once, either
// explicitly via Close or, if the caller forgets, by a finalizer — the
// same last-resort discipline spec's resource model calls for, though
// callers should not rely on finalization timing.
type Function struct {
	region     *executableRegion
	entry      uintptr
	paramCount int
	closed     bool
}

func newFunction(region *executableRegion, paramCount int) *Function {
	f := &Function{region: region, entry: region.addr, paramCount: paramCount}
	runtime.SetFinalizer(f, func(f *Function) { _ = f.Close() })
	return f
}

// Close releases the function's executable memory. Calling Close more
// than once is a no-op. A munmap failure is returned, never swallowed.
func (f *Function) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	runtime.SetFinalizer(f, nil)
	return f.region.release()
}

// ParamCount is the number of leading parameters (a..f) this function's
// body references, inferred while it was composed.
func (f *Function) ParamCount() int { return f.paramCount }

// CallN invokes the function with 0-6 integer arguments. It returns the
// function's result and nil on a normal return, or 0 and a *TrapError
// if the function aborted (divide by zero, signed divide overflow).
func (f *Function) CallN(args ...int64) (int64, error) {
	if len(args) > 6 {
		return 0, &ArityError{Got: len(args), Want: f.paramCount}
	}
	if len(args) < f.paramCount {
		return 0, &ArityError{Got: len(args), Want: f.paramCount}
	}
	var argPtr *int64
	if len(args) > 0 {
		argPtr = (*int64)(unsafe.Pointer(&args[0]))
	}
	value, errCode := callNative(f.entry, argPtr, int64(len(args)))
	if errCode != int64(command.TrapNone) {
		return 0, &TrapError{Code: command.TrapCode(errCode)}
	}
	return value, nil
}
