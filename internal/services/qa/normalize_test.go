package qa

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer("Laila", "LailaVCBot")

	tests := []struct {
		in   string
		want string
	}{
		{"Hello", "hello"},
		{"  What   Time  Is It ", "what time is it"},
		{"@LailaVCBot what is go", "what is go"},
		{"Laila ko batao kya haal hai", "batao kya haal hai"},
		{"laila se poocho", "poocho"},
		{"LAILA kaisi ho", "kaisi ho"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := n.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := NewNormalizer("Laila", "LailaVCBot")

	inputs := []string{
		"@LailaVCBot Laila ko batao, kya haal hai?",
		"How ARE you",
		"laila ne kya kaha",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
