package filter

import (
	"testing"
)

func TestContainsSensitive(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"what is your name", false},
		{"tell me a joke", false},
		{"my phone number is 12345", true},
		{"MY PHONE NUMBER IS 12345", true},
		{"send me your OTP", true},
		{"what is a Credit Card", true},
		{"मेरा आधार नंबर क्या है", true},
		{"पासवर्ड भूल गया", true},
		{"pinch of salt", true}, // "pin" matches as a substring
		{"", false},
	}

	for _, tt := range tests {
		if got := ContainsSensitive(tt.text); got != tt.want {
			t.Errorf("ContainsSensitive(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
