package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_KindAndUnwrap(t *testing.T) {
	err := ConfigurationError("query", ErrNotInitialized)

	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, "configuration error in query: worker not initialized", err.Error())

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, KindConfiguration, KindOf(wrapped))
}

func TestNewError_KeepsExistingKind(t *testing.T) {
	inner := ArgumentError("decode params", ErrMalformedArgs)
	outer := ProgramError("peval", fmt.Errorf("callback: %w", inner))

	assert.Equal(t, KindArgument, KindOf(outer))
	assert.Same(t, inner, outer)
}

func TestKindOf_Untyped(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ProgramError("peval", errors.New("x"))))
	assert.True(t, IsRecoverable(ArgumentError("query", ErrMalformedArgs)))
	assert.False(t, IsRecoverable(ConfigurationError("query", ErrPoisoned)))
	assert.False(t, IsRecoverable(CommunicationError("exchange", ErrPeerLeft)))
	assert.False(t, IsRecoverable(InternalError("query", errors.New("panic"))))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestError_WithoutOp(t *testing.T) {
	err := &Error{Kind: KindInternal, Err: errors.New("x")}
	assert.Equal(t, "internal error: x", err.Error())
}
