package randutil

import (
	"encoding/hex"
	"testing"
)

func TestString(t *testing.T) {
	s := String(12)
	if len(s) != 12 {
		t.Fatalf("expected 12 characters, got %q", s)
	}

	h := Hex(32)
	if _, err := hex.DecodeString(h); err != nil {
		t.Fatal(err)
	}
}
