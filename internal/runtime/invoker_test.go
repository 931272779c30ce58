package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/pie/pkg/domain"
	"github.com/stretchr/testify/assert"
)

type fakeTarget struct {
	query    func(domain.Params) error
	params   domain.Params
	calls    int
	poisoned bool
}

func (f *fakeTarget) Query(_ context.Context, params domain.Params) error {
	f.calls++
	f.params = params
	return f.query(params)
}

func (f *fakeTarget) State() domain.WorkerState {
	if f.poisoned {
		return domain.StatePoisoned
	}
	return domain.StateReady
}

func (f *fakeTarget) poison(context.Context) { f.poisoned = true }

func TestInvoker_Query(t *testing.T) {
	ok := func(domain.Params) error { return nil }

	t.Run("Passes Decoded Params", func(t *testing.T) {
		target := &fakeTarget{query: ok}
		err := NewInvoker(nil).Query(context.Background(), target, domain.QueryArgs(`{"source": 3}`))
		assert.NoError(t, err)
		assert.Equal(t, 1, target.calls)
		assert.Contains(t, target.params, "source")
	})

	t.Run("Empty Args", func(t *testing.T) {
		target := &fakeTarget{query: ok}
		assert.NoError(t, NewInvoker(nil).Query(context.Background(), target, nil))
		assert.Empty(t, target.params)
	})

	t.Run("Malformed Args Never Reach The Worker", func(t *testing.T) {
		for _, blob := range []string{`[1,2]`, `{"a":`, `null`, `{} {}`} {
			target := &fakeTarget{query: ok}
			err := NewInvoker(nil).Query(context.Background(), target, domain.QueryArgs(blob))
			assert.ErrorIs(t, err, domain.ErrMalformedArgs, blob)
			assert.Equal(t, domain.KindArgument, domain.KindOf(err), blob)
			assert.Zero(t, target.calls, blob)
		}
	})

	t.Run("Typed Errors Keep Their Kind", func(t *testing.T) {
		target := &fakeTarget{query: func(domain.Params) error {
			return domain.ProgramError("peval", errors.New("boom"))
		}}
		err := NewInvoker(nil).Query(context.Background(), target, nil)
		assert.Equal(t, domain.KindProgram, domain.KindOf(err))
	})

	t.Run("Untyped Errors Become Internal", func(t *testing.T) {
		target := &fakeTarget{query: func(domain.Params) error { return errors.New("boom") }}
		err := NewInvoker(nil).Query(context.Background(), target, nil)
		assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	})

	t.Run("Panics Poison The Worker", func(t *testing.T) {
		target := &fakeTarget{query: func(domain.Params) error { panic("corrupt") }}
		var err error
		assert.NotPanics(t, func() {
			err = NewInvoker(nil).Query(context.Background(), target, nil)
		})
		assert.Equal(t, domain.KindInternal, domain.KindOf(err))
		assert.Contains(t, err.Error(), "corrupt")
		assert.True(t, target.poisoned)
	})

	t.Run("Nil Target", func(t *testing.T) {
		err := NewInvoker(nil).Query(context.Background(), nil, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidHandle)
	})
}
