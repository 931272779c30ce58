package pie

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/pie/pkg/app"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Group is a set of workers, one per fragment, sharing a communication group.
type Group struct {
	rt      *Runtime
	name    string
	handles []Handle
}

// NewGroup creates and initializes one worker per fragment over transport.
// Fragments must be ordered by fragment id. When name is empty a random group
// name is used.
func NewGroup[VD, MD any](ctx context.Context, r *Runtime, a *app.App[VD, MD], frags []ports.Fragment, transport ports.Transport[MD], par domain.ParallelSpec, name string) (*Group, error) {
	if len(frags) == 0 {
		return nil, domain.ConfigurationError("create group", fmt.Errorf("no fragments"))
	}
	if name == "" {
		name = "pie-" + uuid.NewString()
	}

	// A failed rank cancels the joins of the others.
	handles := make([]Handle, len(frags))
	eg, joinCtx := errgroup.WithContext(ctx)
	for i, frag := range frags {
		comm := domain.CommSpec{Group: name, Rank: i, Size: len(frags)}
		eg.Go(func() error {
			h, err := CreateWorker(joinCtx, r, a, frag, transport, comm, par)
			handles[i] = h
			return err
		})
	}
	g := &Group{rt: r, name: name, handles: handles}
	if err := eg.Wait(); err != nil {
		g.Close(ctx)
		return nil, err
	}
	return g, nil
}

// Name returns the communication group name.
func (g *Group) Name() string { return g.name }

// Handles returns the worker handles ordered by rank.
func (g *Group) Handles() []Handle { return g.handles }

// Query runs the same query on every worker concurrently and returns the published
// views ordered by rank (nil when key is empty).
//
// When several partitions fail, the error of a partition that failed on its own is
// preferred over the peer-failed errors it caused elsewhere.
func (g *Group) Query(ctx context.Context, args domain.QueryArgs, key string) ([]*domain.ResultView, error) {
	views := make([]*domain.ResultView, len(g.handles))
	errs := make([]error, len(g.handles))

	var eg errgroup.Group
	for i, h := range g.handles {
		eg.Go(func() error {
			views[i], errs[i] = g.rt.Query(ctx, h, args, key)
			return nil
		})
	}
	_ = eg.Wait()

	if err := rootCause(errs); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, nil
	}
	return views, nil
}

func rootCause(errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrPeerFailed) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// Close deletes every worker of the group.
func (g *Group) Close(ctx context.Context) {
	for _, h := range g.handles {
		if h == "" {
			continue
		}
		if err := g.rt.DeleteWorker(ctx, h); err != nil {
			g.rt.logger.Warn("failed to delete group worker", "group", g.name, "handle", h, "err", err)
		}
	}
}
