package codes

import (
	"strings"
	"testing"
)

func TestJoinCodeFormat(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := JoinCode()
		if err != nil {
			t.Fatalf("join code: %v", err)
		}
		if len(code) != JoinCodeLength {
			t.Fatalf("expected %d characters, got %q", JoinCodeLength, code)
		}
		for _, r := range code {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("unexpected character %q in %q", r, code)
			}
		}
	}
}

func TestAccessCodeLength(t *testing.T) {
	code, err := AccessCode()
	if err != nil {
		t.Fatalf("access code: %v", err)
	}
	if len(code) != AccessCodeLength {
		t.Fatalf("expected %d characters, got %q", AccessCodeLength, code)
	}
}

func TestNewRejectsNonPositiveLength(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("ab3x9z"); got != "AB3X9Z" {
		t.Fatalf("expected upper-cased code, got %q", got)
	}
}
