// Package sssp computes single-source shortest path distances.
//
// Each fragment runs Dijkstra locally from the vertices whose distance improved and
// sends improved distances of outer vertices to their owners. Edge weights must be
// non-negative; unweighted edge lists load with weight 1.
package sssp

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/aretw0/pie/pkg/app"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
)

// Name is the catalog name of the program.
const Name = "sssp"

// Unreachable is the distance of a vertex not connected to the source.
const Unreachable = math.MaxFloat64

// Params are the query arguments.
type Params struct {
	Source *int64 `mapstructure:"source"`
}

// New returns a sealed SSSP app.
func New() *app.App[float64, float64] {
	return app.New(NewProgram(), app.WithName(Name))
}

// NewProgram returns the bound SSSP program.
func NewProgram() *app.Program[float64, float64] {
	return app.Bind[float64, float64](initDistances, peval, incEval)
}

func source(ctx *app.Context[float64, float64]) (domain.VertexID, error) {
	var p Params
	if err := app.DecodeParams(ctx.Params(), &p); err != nil {
		return 0, err
	}
	if p.Source == nil {
		return 0, domain.ArgumentError("sssp", fmt.Errorf("%w: source is required", domain.ErrMalformedArgs))
	}
	return domain.VertexID(*p.Source), nil
}

func initDistances(frag ports.Fragment, ctx *app.Context[float64, float64]) error {
	if _, err := source(ctx); err != nil {
		return err
	}
	err := ctx.ForEachInner(func(v domain.VertexID) error {
		return ctx.SetValue(v, Unreachable)
	})
	if err != nil {
		return err
	}
	for _, v := range frag.OuterVertices() {
		if err := ctx.SetValue(v, Unreachable); err != nil {
			return err
		}
	}
	return nil
}

func peval(frag ports.Fragment, ctx *app.Context[float64, float64]) error {
	src, err := source(ctx)
	if err != nil {
		return err
	}
	if !frag.IsInner(src) {
		return nil
	}
	if err := ctx.SetValue(src, 0); err != nil {
		return err
	}
	return relax(frag, ctx, []domain.VertexID{src})
}

func incEval(frag ports.Fragment, ctx *app.Context[float64, float64]) error {
	var seeds []domain.VertexID
	for _, v := range ctx.Active() {
		if !frag.IsInner(v) {
			continue
		}
		best := ctx.Value(v)
		for _, d := range ctx.Messages(v) {
			best = min(best, d)
		}
		if best < ctx.Value(v) {
			if err := ctx.SetValue(v, best); err != nil {
				return err
			}
			seeds = append(seeds, v)
		}
	}
	return relax(frag, ctx, seeds)
}

// relax runs Dijkstra from seeds over the inner vertices and forwards every improved
// outer distance to the vertex owner.
func relax(frag ports.Fragment, ctx *app.Context[float64, float64], seeds []domain.VertexID) error {
	if len(seeds) == 0 {
		return nil
	}
	q := make(queue, 0, len(seeds))
	for _, v := range seeds {
		q = append(q, entry{vertex: v, dist: ctx.Value(v)})
	}
	heap.Init(&q)

	improved := make(map[domain.VertexID]bool)
	for q.Len() > 0 {
		cur := heap.Pop(&q).(entry)
		if cur.dist > ctx.Value(cur.vertex) {
			continue
		}
		for _, e := range frag.Neighbors(cur.vertex) {
			if e.Weight < 0 {
				return fmt.Errorf("negative edge weight %v on %d -> %d", e.Weight, cur.vertex, e.To)
			}
			nd := cur.dist + e.Weight
			if nd >= ctx.Value(e.To) {
				continue
			}
			if err := ctx.SetValue(e.To, nd); err != nil {
				return err
			}
			if frag.IsInner(e.To) {
				heap.Push(&q, entry{vertex: e.To, dist: nd})
			} else {
				improved[e.To] = true
			}
		}
	}

	for _, v := range frag.OuterVertices() {
		if !improved[v] {
			continue
		}
		if err := ctx.SendTo(v, ctx.Value(v)); err != nil {
			return err
		}
	}
	return nil
}

type entry struct {
	vertex domain.VertexID
	dist   float64
}

// queue is a min-heap of tentative distances.
type queue []entry

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].dist == q[j].dist {
		return q[i].vertex < q[j].vertex
	}
	return q[i].dist < q[j].dist
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) {
	*q = append(*q, x.(entry))
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
