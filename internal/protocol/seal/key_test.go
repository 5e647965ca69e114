package seal

import (
	"errors"
	"strings"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	a, err := DeriveKey("correct horse", "lab-1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := DeriveKey("correct horse", "lab-1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a != b {
		t.Fatalf("derivation not deterministic")
	}
	c, err := DeriveKey("correct horse", "lab-2")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a == c {
		t.Fatalf("salt did not change key")
	}
	if _, err := DeriveKey("", "x"); err == nil {
		t.Fatalf("expected error for empty passphrase")
	}
}

func TestParseHexKey(t *testing.T) {
	raw := "0123456789abcdeffedcba98765432100f1e2d3c4b5a69788796a5b4c3d2e1f0"
	key, err := ParseHexKey(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if key != DefaultKey {
		t.Fatalf("parsed key mismatch")
	}
	if _, err := ParseHexKey(strings.Repeat("ab", 16)); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := ParseHexKey("zz"); err == nil {
		t.Fatalf("expected hex error")
	}
}
