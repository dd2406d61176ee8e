//go:build amd64

package reloc

import "testing"

func TestApplyRelativePc32RoundTrip(t *testing.T) {
	field := make([]byte, 4)
	// location=10, value=20, addend=-4 -> disp = 20-10-4 = 6
	if err := Pc32.ApplyRelative(field, 10, 20, -4); err != nil {
		t.Fatalf("ApplyRelative: %v", err)
	}
	got := int32(field[0]) | int32(field[1])<<8 | int32(field[2])<<16 | int32(field[3])<<24
	if got != 6 {
		t.Errorf("disp = %d, want 6", got)
	}
}

func TestApplyRelativePc32Backward(t *testing.T) {
	field := make([]byte, 4)
	// a loop branching back: location=100, value=10, addend=-4 -> disp = -94
	if err := Pc32.ApplyRelative(field, 100, 10, -4); err != nil {
		t.Fatalf("ApplyRelative: %v", err)
	}
	got := int32(field[0]) | int32(field[1])<<8 | int32(field[2])<<16 | int32(field[3])<<24
	if got != -94 {
		t.Errorf("disp = %d, want -94", got)
	}
}

func TestApplyRelativePc8OutOfRange(t *testing.T) {
	field := make([]byte, 1)
	if err := Pc8.ApplyRelative(field, 0, 1000, 0); err == nil {
		t.Fatal("expected out-of-range error for a displacement that does not fit in 8 bits")
	}
}

func TestApplyRelativeDirectKindsRejected(t *testing.T) {
	field := make([]byte, 8)
	for _, k := range []Kind{Direct64, Direct32, Direct32S} {
		if err := k.ApplyRelative(field, 0, 10, 0); err == nil {
			t.Errorf("%s: expected rejection for relative use", k)
		}
	}
}

func TestApplyAbsoluteDirect64(t *testing.T) {
	field := make([]byte, 8)
	if err := Direct64.ApplyAbsolute(field, 0x1122334455667788, 0); err != nil {
		t.Fatalf("ApplyAbsolute: %v", err)
	}
	want := []byte{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	for i := range want {
		if field[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, field[i], want[i])
		}
	}
}

func TestApplyAbsoluteDirect32SRejectsOverflow(t *testing.T) {
	field := make([]byte, 4)
	if err := Direct32S.ApplyAbsolute(field, int64(1)<<40, 0); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestApplyAbsolutePcKindsRejected(t *testing.T) {
	field := make([]byte, 4)
	if err := Pc32.ApplyAbsolute(field, 10, 0); err == nil {
		t.Fatal("Pc32 must reject absolute application")
	}
}
