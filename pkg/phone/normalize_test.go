package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"e164", "+56982221070", []string{"+56982221070", "56982221070"}},
		{"digits only", "56982221070", []string{"56982221070", "+56982221070"}},
		{"separators", " +56 9 8222-1070 ", []string{"+56 9 8222-1070", "56982221070", "+56982221070"}},
		{"no digits", "anonymous", []string{"anonymous"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Candidates(tt.raw))
		})
	}
}

func TestCandidates_NonEmptyAndUnique(t *testing.T) {
	inputs := []string{"1", "+1", "++1", "(02) 555 0100", "+56982221070", "x", "+", "0-0-0"}

	for _, in := range inputs {
		got := Candidates(in)
		assert.NotEmpty(t, got, "input %q", in)

		seen := map[string]bool{}
		for _, c := range got {
			assert.False(t, seen[c], "duplicate candidate %q for input %q", c, in)
			seen[c] = true
		}
	}
}

func TestIsValidE164(t *testing.T) {
	assert.True(t, IsValidE164("+56982221070"))
	assert.False(t, IsValidE164("56982221070"))
	assert.False(t, IsValidE164("+56-98"))
	assert.False(t, IsValidE164("+1"))
}
