package verify

import (
	"regexp"
	"testing"
)

var codeRE = regexp.MustCompile(`^[0-9]{8}$`)

// TestGenerateCode_Format verifies codes always render to exactly
// CodeLength digits, including low values that need zero padding.
func TestGenerateCode_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := generateCode()
		if code < 0 || code >= codeModulus {
			t.Fatalf("code %d out of range [0, %d)", code, codeModulus)
		}
		if s := formatCode(code); !codeRE.MatchString(s) {
			t.Errorf("formatCode(%d) = %q, want 8 digits", code, s)
		}
	}
	if s := formatCode(42); s != "00000042" {
		t.Errorf("formatCode(42) = %q, want zero padding", s)
	}
}

// TestGenerateCode_Unique draws 2000 codes and checks for collisions. With
// 10^8 possible codes the collision probability over 2000 draws is ~2%, so
// allow a handful rather than none.
func TestGenerateCode_Unique(t *testing.T) {
	const n = 2000
	seen := make(map[int]int, n)
	dups := 0
	for i := 0; i < n; i++ {
		c := generateCode()
		if seen[c] > 0 {
			dups++
		}
		seen[c]++
	}
	if dups > 3 {
		t.Errorf("%d duplicate codes in %d draws, generator looks biased", dups, n)
	}
}

func TestDisplayCode_Grouping(t *testing.T) {
	if got := displayCode(12345678); got != "1234 5678" {
		t.Errorf("displayCode = %q, want %q", got, "1234 5678")
	}
	if got := displayCode(42); got != "0000 0042" {
		t.Errorf("displayCode = %q, want %q", got, "0000 0042")
	}
}
