// Package parallel runs vertex-level work of one worker across a bounded set of goroutines.
package parallel

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/aretw0/pie/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// Engine is the intra-worker parallel executor configured from a ParallelSpec.
type Engine struct {
	threads int
}

// New creates an engine. Non-positive thread counts mean one.
func New(spec domain.ParallelSpec) *Engine {
	threads := spec.Threads
	if threads <= 0 {
		threads = 1
	}
	return &Engine{threads: threads}
}

// Threads is the configured degree of parallelism.
func (e *Engine) Threads() int {
	if e == nil {
		return 1
	}
	return e.threads
}

// ForEach calls fn for every vertex and returns once all calls have finished.
// Vertices are split into contiguous chunks, one chunk per goroutine. The first
// error (or panic, converted to an error) is returned; remaining chunks stop early.
func (e *Engine) ForEach(ctx context.Context, vertices []domain.VertexID, fn func(domain.VertexID) error) error {
	threads := e.Threads()
	if threads == 1 || len(vertices) < 2 {
		return runChunk(ctx, vertices, fn)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	chunk := (len(vertices) + threads - 1) / threads
	for start := 0; start < len(vertices); start += chunk {
		part := vertices[start:min(start+chunk, len(vertices))]
		g.Go(func() error {
			return runChunk(gctx, part, fn)
		})
	}
	return g.Wait()
}

func runChunk(ctx context.Context, vertices []domain.VertexID, fn func(domain.VertexID) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in vertex function: %v\n%s", r, debug.Stack())
		}
	}()
	for _, v := range vertices {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}
