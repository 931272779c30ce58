package app

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/aretw0/pie/internal/parallel"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
)

// App composes a Program with its Context type. The same App may back several
// workers; it keeps no per-query state.
type App[VD, MD any] struct {
	name    string
	program *Program[VD, MD]
}

// Option configures an App.
type Option func(*appOptions)

type appOptions struct {
	name string
}

// WithName labels the app in logs, metrics and published results.
func WithName(name string) Option {
	return func(o *appOptions) {
		o.name = name
	}
}

// New builds an App around program and seals the program's binding.
// An incomplete program is accepted here; it is rejected when a query starts.
func New[VD, MD any](program *Program[VD, MD], opts ...Option) *App[VD, MD] {
	o := &appOptions{name: "app"}
	for _, opt := range opts {
		opt(o)
	}
	if program == nil {
		program = NewProgram[VD, MD]()
	}
	program.seal()
	return &App[VD, MD]{name: o.name, program: program}
}

// Name returns the app label.
func (a *App[VD, MD]) Name() string { return a.name }

// Validate checks that every callback slot is bound.
func (a *App[VD, MD]) Validate() error {
	return a.program.Validate()
}

// NewContext allocates a context for frag driven by engine.
func (a *App[VD, MD]) NewContext(frag ports.Fragment, engine *parallel.Engine) *Context[VD, MD] {
	return NewContext[VD, MD](frag, engine)
}

// Eval runs the callback of phase. Returned errors and panics become program
// errors; errors that already carry a kind (e.g. from DecodeParams) keep it.
func (a *App[VD, MD]) Eval(phase domain.Phase, frag ports.Fragment, ctx *Context[VD, MD]) (err error) {
	cb := a.program.callback(phase)
	if cb == nil {
		return domain.ConfigurationError(string(phase), fmt.Errorf("%w: %s", domain.ErrUnboundCallback, phase))
	}

	defer func() {
		if r := recover(); r != nil {
			err = domain.ProgramError(string(phase), fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	if err := cb(frag, ctx); err != nil {
		var typed *domain.Error
		if errors.As(err, &typed) {
			return typed
		}
		return domain.ProgramError(string(phase), err)
	}
	return nil
}
