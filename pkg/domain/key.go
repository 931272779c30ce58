package domain

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// MaxKeySize bounds the length of a result key in bytes.
const MaxKeySize = 256

// ErrInvalidKey is returned for result keys that cannot be stored or addressed.
var ErrInvalidKey = errors.New("invalid result key")

// ValidateKey checks a non-empty result key. Keys end up in store keys and URL
// paths, so they must be valid UTF-8 without control characters, slashes or
// whitespace. Keys are rejected rather than cleaned so that a key always names
// the same result.
func ValidateKey(key string) error {
	if len(key) > MaxKeySize {
		return fmt.Errorf("%w: size=%d limit=%d", ErrInvalidKey, len(key), MaxKeySize)
	}
	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: invalid UTF-8", ErrInvalidKey)
	}
	for _, r := range key {
		if unicode.IsControl(r) || unicode.IsSpace(r) || r == '/' {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidKey, key, r)
		}
	}
	return nil
}
