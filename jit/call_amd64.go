//go:build amd64

package jit

// callNative is implemented in call_amd64.s. argc must be 0-6; args
// must point at an array of at least argc int64s (ignored when argc is
// 0, in which case args may be nil).
func callNative(fn uintptr, args *int64, argc int64) (value int64, errorCode int64)
