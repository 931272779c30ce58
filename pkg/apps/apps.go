// Package apps is the catalog of built-in programs.
//
// Each entry is instantiated for its own vertex and message types at compile time;
// the catalog only selects an entry by name.
package apps

import (
	"context"
	"fmt"

	"github.com/aretw0/pie"
	"github.com/aretw0/pie/pkg/adapters/memory"
	"github.com/aretw0/pie/pkg/adapters/redis"
	"github.com/aretw0/pie/pkg/app"
	"github.com/aretw0/pie/pkg/apps/degree"
	"github.com/aretw0/pie/pkg/apps/lpa"
	"github.com/aretw0/pie/pkg/apps/sssp"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/loader"
	"github.com/aretw0/pie/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// RunOptions configure a catalog run.
type RunOptions struct {
	// Redis selects the Redis transport; nil runs every partition over an in-process hub.
	Redis *backend.Client
	// TransportPrefix is the Redis key prefix of communication groups.
	TransportPrefix string
	// Group names the communication group (random when empty).
	Group    string
	Parallel domain.ParallelSpec
	Args     domain.QueryArgs
	// Key publishes the result when not empty.
	Key string
}

// Entry is a catalog program.
type Entry struct {
	Name        string
	Description string
	// Params documents the accepted query arguments.
	Params string

	register func(*loader.Loader) error
	run      func(ctx context.Context, rt *pie.Runtime, l *loader.Loader, frags []ports.Fragment, opts RunOptions) ([]*domain.ResultView, error)
}

// catalog is ordered by name.
var catalog = []Entry{
	entry(degree.Name, "Number of incident edges per vertex, no messages.", "", degree.New),
	entry(lpa.Name, "Connected components by minimum label propagation.", "", lpa.New),
	entry(sssp.Name, "Single-source shortest path distances (Dijkstra per fragment).", `{"source": <vertex id>}`, sssp.New),
}

func entry[VD, MD any](name, description, params string, build func() *app.App[VD, MD]) Entry {
	return Entry{
		Name:        name,
		Description: description,
		Params:      params,
		register: func(l *loader.Loader) error {
			return loader.Register(l, name, build)
		},
		run: func(ctx context.Context, rt *pie.Runtime, l *loader.Loader, frags []ports.Fragment, opts RunOptions) ([]*domain.ResultView, error) {
			return run[VD, MD](ctx, rt, l, name, frags, opts)
		},
	}
}

// run loads name into l, runs one query over a fresh group and unloads it.
func run[VD, MD any](ctx context.Context, rt *pie.Runtime, l *loader.Loader, name string, frags []ports.Fragment, opts RunOptions) ([]*domain.ResultView, error) {
	if err := l.Load(ctx, name); err != nil {
		return nil, domain.ConfigurationError("load program", err)
	}
	defer func() {
		_ = l.Unload(ctx)
	}()

	a, err := loader.App[VD, MD](l)
	if err != nil {
		return nil, domain.ConfigurationError("load program", err)
	}

	var transport ports.Transport[MD]
	if opts.Redis != nil {
		var topts []redis.TransportOption
		if opts.TransportPrefix != "" {
			topts = append(topts, redis.WithTransportPrefix(opts.TransportPrefix))
		}
		transport = redis.NewTransport[MD](opts.Redis, topts...)
	} else {
		transport = memory.NewHub[MD]()
	}

	group, err := pie.NewGroup(ctx, rt, a, frags, transport, opts.Parallel, opts.Group)
	if err != nil {
		return nil, err
	}
	defer group.Close(ctx)
	return group.Query(ctx, opts.Args, opts.Key)
}

// Lookup returns the catalog entry called name.
func Lookup(name string) (Entry, bool) {
	for _, e := range catalog {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// List returns every entry ordered by name.
func List() []Entry {
	return append([]Entry(nil), catalog...)
}

// Register adds every catalog program to l.
func Register(l *loader.Loader) error {
	for _, e := range List() {
		if err := e.register(l); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the named program over frags. l must have the catalog registered
// (see Register) and nothing loaded.
func Run(ctx context.Context, rt *pie.Runtime, l *loader.Loader, name string, frags []ports.Fragment, opts RunOptions) ([]*domain.ResultView, error) {
	e, ok := Lookup(name)
	if !ok {
		return nil, domain.ConfigurationError("run", fmt.Errorf("%w: %s", domain.ErrProgramNotFound, name))
	}
	return e.run(ctx, rt, l, frags, opts)
}
