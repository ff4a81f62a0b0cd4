package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"529.982.247-25", true},
		{"52998224725", true},
		{"52998224724", false},
		{"111.111.111-11", false},
		{"11.222.333/0001-81", true},
		{"11222333000181", true},
		{"11222333000182", false},
		{"00000000000000", false},
		{"1234", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Valid(tc.raw), tc.raw)
	}
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "52998224725", Digits(" 529.982.247-25 "))
	assert.Equal(t, "", Digits("abc"))
}
