//go:build amd64

package command

import "testing"

func TestPushParamBookkeeping(t *testing.T) {
	c := PushParam(2) // 'c'
	if c.MaxParamLetter != 3 {
		t.Errorf("MaxParamLetter = %d, want 3", c.MaxParamLetter)
	}
	if c.StackDifference != 1 {
		t.Errorf("StackDifference = %d, want 1", c.StackDifference)
	}
	if len(c.Obj.Code.Data) == 0 {
		t.Error("expected non-empty generated code")
	}
}

func TestPushParamPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range letter")
		}
	}()
	PushParam(6)
}

func TestArithmeticBookkeeping(t *testing.T) {
	for _, c := range []Command{Add(), Subtract(), Multiply(), Divide(), Mod(), UDivide(), UMod()} {
		if c.RequiredStackDepth != 2 {
			t.Errorf("RequiredStackDepth = %d, want 2", c.RequiredStackDepth)
		}
		if c.StackDifference != -1 {
			t.Errorf("StackDifference = %d, want -1", c.StackDifference)
		}
	}
}

func TestDivideEmitsTrapRelocations(t *testing.T) {
	c := Divide()
	if len(c.Obj.Code.Relocations) != 2 {
		t.Fatalf("got %d relocations, want 2 (divide-by-zero + overflow guard)", len(c.Obj.Code.Relocations))
	}
	for _, r := range c.Obj.Code.Relocations {
		if r.Target != TrapDispatchSymbol {
			t.Errorf("relocation target = %v, want TrapDispatchSymbol", r.Target)
		}
	}
}

func TestPushStackIndexPositiveNegative(t *testing.T) {
	pos := PushStackIndex(2)
	if pos.RequiredStackDepth != 3 {
		t.Errorf("positive index 2: RequiredStackDepth = %d, want 3", pos.RequiredStackDepth)
	}
	// A negative index reads a fixed, RBP-relative frame slot; it must
	// already have been written by a prior POP_STACK_INDEX(-n).
	neg := PushStackIndex(-1)
	if neg.RequiredStackDepth != 1 {
		t.Errorf("negative index -1: RequiredStackDepth = %d, want 1", neg.RequiredStackDepth)
	}
}

func TestPopStackIndexPositiveNegative(t *testing.T) {
	pos := PopStackIndex(0)
	if pos.RequiredStackDepth != 2 {
		t.Errorf("positive index 0: RequiredStackDepth = %d, want 2", pos.RequiredStackDepth)
	}
	if pos.StackDifference != -1 {
		t.Errorf("StackDifference = %d, want -1", pos.StackDifference)
	}
	// A negative index needs one value on top to consume, plus the
	// frame slot it targets to already exist.
	neg := PopStackIndex(-1)
	if neg.RequiredStackDepth != 2 {
		t.Errorf("negative index -1: RequiredStackDepth = %d, want 2", neg.RequiredStackDepth)
	}
}

func TestWhileRejectsWrongNetStackDifference(t *testing.T) {
	// A body that leaves a value behind (net +1) instead of returning
	// the stack to its starting depth must be rejected.
	_, err := While([]Command{PushValue(1)})
	if _, ok := err.(*LoopChangedStackDepth); !ok {
		t.Fatalf("expected LoopChangedStackDepth, got %v (%T)", err, err)
	}
}

func TestWhileAcceptsNetZeroBody(t *testing.T) {
	// Pushes a value and immediately consumes it again: net 0.
	_, err := While([]Command{PushParam(0), PopStackIndex(-1)})
	if err != nil {
		t.Fatalf("While: %v", err)
	}
}

func TestPowLoopBodyShape(t *testing.T) {
	// Shaped after "a p-1 * s-1 1 -": multiply the accumulator (held in
	// the fixed frame slot -1) by a and write the product back, then
	// subtract 1 from whatever the header just peeked as the loop
	// condition, replacing it in place — nets to 0 overall.
	body := []Command{
		PushParam(0),       // a
		PushStackIndex(-1), // read accumulator
		Multiply(),
		PopStackIndex(-1), // write accumulator back
		PushValue(1),
		Subtract(), // condition - 1, replacing the peeked value
	}
	c, err := While(body)
	if err != nil {
		t.Fatalf("While: %v", err)
	}
	if c.StackDifference != 0 {
		t.Errorf("overall While StackDifference = %d, want 0", c.StackDifference)
	}
	if c.RequiredStackDepth != 1 {
		t.Errorf("overall While RequiredStackDepth = %d, want 1", c.RequiredStackDepth)
	}
}
