package jit

import (
	"fmt"

	"rpnjit/command"
)

// StackUnderflow is returned by AssembleFunction when the composed
// command sequence reads stack slots that were never pushed — the
// function as written would need values to already exist on entry,
// which a zero-argument operand stack can never provide.
type StackUnderflow struct {
	Needed int
}

func (e *StackUnderflow) Error() string {
	return fmt.Sprintf("function body requires %d value(s) on entry, but a function starts with an empty operand stack", e.Needed)
}

// EmptyResult is returned by AssembleFunction when the composed body
// leaves nothing on the stack to return. A body that leaves more than
// one value is not an error: the epilogue only ever reads the top of
// stack, and the frame-pointer teardown discards anything left below
// it (which is exactly how a persistent accumulator in a negative
// stack-index slot is meant to survive to the end of a function
// without needing to be explicitly torn down).
type EmptyResult struct{}

func (e *EmptyResult) Error() string { return "function body leaves no value to return" }

// MunmapFailed is returned by Function.Close (and surfaced, never
// silently swallowed) when releasing a function's executable memory
// fails.
type MunmapFailed struct {
	Err error
}

func (e *MunmapFailed) Error() string { return fmt.Sprintf("munmap failed: %v", e.Err) }
func (e *MunmapFailed) Unwrap() error { return e.Err }

// TrapError is returned by Function.CallN when the generated code
// aborted instead of returning normally: Code is the raw trap code the
// {value, error_code} ABI returned.
type TrapError struct {
	Code command.TrapCode
}

func (e *TrapError) Error() string {
	switch e.Code {
	case command.TrapDivideByZero:
		return "divide by zero"
	case command.TrapDivideMinByNegativeOne:
		return "signed divide overflow (INT64_MIN / -1)"
	default:
		return fmt.Sprintf("trap %d", e.Code)
	}
}

// ArityError is returned by Function.CallN when called with a number of
// arguments outside 0-6, or fewer than the function's inferred
// parameter count.
type ArityError struct {
	Got, Want int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("called with %d argument(s), function needs %d", e.Got, e.Want)
}
