package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"+1 (512) 555-0123": "5125550123",
		"512.555.0123":      "5125550123",
		"15125550123":       "5125550123",
		"25125550123":       "25125550123",
		"555-0123":          "5550123",
		"":                  "",
		"1":                 "1",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsTenDigit(t *testing.T) {
	if !IsTenDigit("+1 512 555 0123") {
		t.Fatalf("expected country-coded number to count as ten digits")
	}
	if IsTenDigit("555-0123") {
		t.Fatalf("expected seven-digit number to be rejected")
	}
}

func TestNormalizeE164FallsBackToInput(t *testing.T) {
	if got := NormalizeE164("  not a phone "); got != "not a phone" {
		t.Fatalf("expected trimmed input back, got %q", got)
	}
}
