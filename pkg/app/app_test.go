package app_test

import (
	"errors"
	"testing"

	"github.com/aretw0/pie/pkg/app"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/fragment"
	"github.com/aretw0/pie/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nop(ports.Fragment, *app.Context[int, int]) error { return nil }

func singleFragment(t *testing.T) *fragment.Fragment {
	t.Helper()
	frags, err := fragment.Build([]domain.EdgeTriple{{Src: 1, Dst: 2, Weight: 1}}, nil, 1, nil)
	require.NoError(t, err)
	return frags[0]
}

func TestProgram_Validate(t *testing.T) {
	p := app.NewProgram[int, int]()
	err := p.Validate()
	assert.ErrorIs(t, err, domain.ErrUnboundCallback)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
	assert.Contains(t, err.Error(), "init, peval, inceval")

	require.NoError(t, p.SetInit(nop))
	require.NoError(t, p.SetPEval(nop))
	assert.ErrorIs(t, p.Validate(), domain.ErrUnboundCallback)

	require.NoError(t, p.SetIncEval(nop))
	assert.NoError(t, p.Validate())
}

func TestProgram_SealedByApp(t *testing.T) {
	p := app.Bind[int, int](nop, nop, nop)
	assert.False(t, p.Sealed())

	a := app.New(p, app.WithName("test"))
	assert.Equal(t, "test", a.Name())
	assert.True(t, p.Sealed())

	err := p.SetInit(nop)
	assert.ErrorIs(t, err, domain.ErrProgramSealed)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestApp_NilProgramIsIncomplete(t *testing.T) {
	a := app.New[int, int](nil)
	assert.Equal(t, "app", a.Name())
	assert.ErrorIs(t, a.Validate(), domain.ErrUnboundCallback)
}

func TestApp_Eval(t *testing.T) {
	frag := singleFragment(t)

	t.Run("Runs The Phase Callback", func(t *testing.T) {
		var seen []domain.Phase
		record := func(phase domain.Phase) app.Callback[int, int] {
			return func(ports.Fragment, *app.Context[int, int]) error {
				seen = append(seen, phase)
				return nil
			}
		}
		a := app.New(app.Bind(record(domain.PhaseInit), record(domain.PhasePEval), record(domain.PhaseIncEval)))
		ctx := a.NewContext(frag, nil)
		for _, phase := range []domain.Phase{domain.PhaseInit, domain.PhasePEval, domain.PhaseIncEval} {
			require.NoError(t, a.Eval(phase, frag, ctx))
		}
		assert.Equal(t, []domain.Phase{domain.PhaseInit, domain.PhasePEval, domain.PhaseIncEval}, seen)
	})

	t.Run("Unbound Phase", func(t *testing.T) {
		a := app.New[int, int](nil)
		err := a.Eval(domain.PhasePEval, frag, a.NewContext(frag, nil))
		assert.ErrorIs(t, err, domain.ErrUnboundCallback)
	})

	t.Run("Errors Become Program Errors", func(t *testing.T) {
		boom := errors.New("boom")
		a := app.New(app.Bind[int, int](nop, func(ports.Fragment, *app.Context[int, int]) error { return boom }, nop))
		err := a.Eval(domain.PhasePEval, frag, a.NewContext(frag, nil))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, domain.KindProgram, domain.KindOf(err))
	})

	t.Run("Argument Errors Keep Their Kind", func(t *testing.T) {
		a := app.New(app.Bind[int, int](func(_ ports.Fragment, ctx *app.Context[int, int]) error {
			var p struct {
				Source int `mapstructure:"source"`
			}
			return app.DecodeParams(ctx.Params(), &p)
		}, nop, nop))
		ctx := a.NewContext(frag, nil)
		ctx.Reset(domain.Params{"source": "not-a-number"})
		err := a.Eval(domain.PhaseInit, frag, ctx)
		assert.Equal(t, domain.KindArgument, domain.KindOf(err))
	})

	t.Run("Panics Are Recovered", func(t *testing.T) {
		a := app.New(app.Bind[int, int](nop, nop, func(ports.Fragment, *app.Context[int, int]) error {
			panic("index out of range")
		}))
		var err error
		assert.NotPanics(t, func() {
			err = a.Eval(domain.PhaseIncEval, frag, a.NewContext(frag, nil))
		})
		assert.Equal(t, domain.KindProgram, domain.KindOf(err))
		assert.Contains(t, err.Error(), "index out of range")
	})
}
