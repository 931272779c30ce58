// Package degree stores the number of incident edges of every inner vertex.
// It finishes in PEval and never exchanges messages.
package degree

import (
	"github.com/aretw0/pie/pkg/app"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
)

// Name is the catalog name of the program.
const Name = "degree"

// New returns a sealed degree app.
func New() *app.App[int, int] {
	return app.New(NewProgram(), app.WithName(Name))
}

// NewProgram returns the bound degree program.
func NewProgram() *app.Program[int, int] {
	return app.Bind[int, int](initDegrees, noop, noop)
}

func initDegrees(frag ports.Fragment, ctx *app.Context[int, int]) error {
	return ctx.ForEachInner(func(v domain.VertexID) error {
		return ctx.SetValue(v, len(frag.Neighbors(v)))
	})
}

func noop(ports.Fragment, *app.Context[int, int]) error { return nil }
