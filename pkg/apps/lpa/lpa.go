// Package lpa propagates the minimum vertex id through each connected component.
//
// Every vertex starts with its own id as label and repeatedly adopts the smallest
// label among its neighbors. Changed labels are pushed to the fragments that
// mirror the vertex, so each superstep advances the frontier by one partition.
// The graph is expected to be undirected (the default fragment build).
package lpa

import (
	"github.com/aretw0/pie/pkg/app"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
)

// Name is the catalog name of the program.
const Name = "lpa"

// Label is both the vertex data and the message payload.
type Label = int64

// New returns a sealed LPA app.
func New() *app.App[Label, Label] {
	return app.New(NewProgram(), app.WithName(Name))
}

// NewProgram returns the bound LPA program.
func NewProgram() *app.Program[Label, Label] {
	return app.Bind[Label, Label](initLabels, peval, incEval)
}

func initLabels(frag ports.Fragment, ctx *app.Context[Label, Label]) error {
	err := ctx.ForEachInner(func(v domain.VertexID) error {
		return ctx.SetValue(v, int64(v))
	})
	if err != nil {
		return err
	}
	for _, v := range frag.OuterVertices() {
		if err := ctx.SetValue(v, int64(v)); err != nil {
			return err
		}
	}
	return nil
}

func peval(frag ports.Fragment, ctx *app.Context[Label, Label]) error {
	return propagate(frag, ctx, nil)
}

func incEval(frag ports.Fragment, ctx *app.Context[Label, Label]) error {
	changed := make(map[domain.VertexID]bool)
	for _, v := range ctx.Active() {
		best := ctx.Value(v)
		for _, label := range ctx.Messages(v) {
			best = min(best, label)
		}
		if best < ctx.Value(v) {
			if err := ctx.SetValue(v, best); err != nil {
				return err
			}
			if frag.IsInner(v) {
				changed[v] = true
			}
		}
	}
	return propagate(frag, ctx, changed)
}

// propagate runs the local min-label fixpoint over the inner vertices and sends
// every label that moved to the vertex mirrors.
func propagate(frag ports.Fragment, ctx *app.Context[Label, Label], changed map[domain.VertexID]bool) error {
	if changed == nil {
		changed = make(map[domain.VertexID]bool)
	}
	for moved := true; moved; {
		moved = false
		for _, v := range frag.InnerVertices() {
			best := ctx.Value(v)
			for _, e := range frag.Neighbors(v) {
				best = min(best, ctx.Value(e.To))
			}
			if best < ctx.Value(v) {
				if err := ctx.SetValue(v, best); err != nil {
					return err
				}
				changed[v] = true
				moved = true
			}
		}
	}

	for _, v := range frag.InnerVertices() {
		if !changed[v] {
			continue
		}
		if err := ctx.SendToMirrors(v, ctx.Value(v)); err != nil {
			return err
		}
	}
	return nil
}
