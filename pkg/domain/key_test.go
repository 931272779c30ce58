package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{"Simple", "labels", true},
		{"Punctuation", "run-42:sssp.v1", true},
		{"Unicode", "distâncias", true},
		{"Slash", "a/b", false},
		{"Space", "a b", false},
		{"Escape", "a\x1b[31m", false},
		{"Newline", "a\nb", false},
		{"InvalidUTF8", "a\xff", false},
		{"TooLong", strings.Repeat("k", MaxKeySize+1), false},
		{"AtLimit", strings.Repeat("k", MaxKeySize), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidKey)
			}
		})
	}
}
