package app

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
)

// Callback is one phase of a program. It mutates ctx in place and must not mutate frag.
type Callback[VD, MD any] func(frag ports.Fragment, ctx *Context[VD, MD]) error

// Program is a dispatch table of the three PIE callbacks.
// It holds no computation state; the binding is frozen once an App is built from it.
type Program[VD, MD any] struct {
	mu      sync.RWMutex
	init    Callback[VD, MD]
	peval   Callback[VD, MD]
	incEval Callback[VD, MD]
	sealed  bool
}

// NewProgram returns a program with no callbacks bound.
func NewProgram[VD, MD any]() *Program[VD, MD] {
	return &Program[VD, MD]{}
}

// Bind returns a program with all three callbacks bound.
func Bind[VD, MD any](init, peval, incEval Callback[VD, MD]) *Program[VD, MD] {
	return &Program[VD, MD]{init: init, peval: peval, incEval: incEval}
}

// SetInit binds the Init callback.
func (p *Program[VD, MD]) SetInit(cb Callback[VD, MD]) error {
	return p.set(&p.init, cb)
}

// SetPEval binds the PEval callback.
func (p *Program[VD, MD]) SetPEval(cb Callback[VD, MD]) error {
	return p.set(&p.peval, cb)
}

// SetIncEval binds the IncEval callback.
func (p *Program[VD, MD]) SetIncEval(cb Callback[VD, MD]) error {
	return p.set(&p.incEval, cb)
}

func (p *Program[VD, MD]) set(slot *Callback[VD, MD], cb Callback[VD, MD]) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealed {
		return domain.ConfigurationError("bind", domain.ErrProgramSealed)
	}
	*slot = cb
	return nil
}

// Validate fails with a configuration error naming every unbound slot.
func (p *Program[VD, MD]) Validate() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var missing []string
	if p.init == nil {
		missing = append(missing, string(domain.PhaseInit))
	}
	if p.peval == nil {
		missing = append(missing, string(domain.PhasePEval))
	}
	if p.incEval == nil {
		missing = append(missing, string(domain.PhaseIncEval))
	}
	if len(missing) > 0 {
		return domain.ConfigurationError("validate",
			fmt.Errorf("%w: %s", domain.ErrUnboundCallback, strings.Join(missing, ", ")))
	}
	return nil
}

// Sealed reports whether the binding is frozen.
func (p *Program[VD, MD]) Sealed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sealed
}

func (p *Program[VD, MD]) seal() {
	p.mu.Lock()
	p.sealed = true
	p.mu.Unlock()
}

func (p *Program[VD, MD]) callback(phase domain.Phase) Callback[VD, MD] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch phase {
	case domain.PhaseInit:
		return p.init
	case domain.PhasePEval:
		return p.peval
	case domain.PhaseIncEval:
		return p.incEval
	}
	return nil
}
