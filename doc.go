/*
Package pie runs graph computations written as PIE programs over a partitioned graph.

A PIE program binds three callbacks: Init sets up per-vertex state, PEval runs a
partial evaluation over one fragment, and IncEval absorbs the messages received from
other fragments. Every fragment is driven by its own worker; workers of the same
communication group advance in lockstep supersteps until no fragment sent a message
in the last superstep.

# Concept

The module is split in the same way as the computation:

  - pkg/app binds callbacks (Program) and owns per-query state (Context).
  - internal/runtime drives one fragment through the lifecycle and the superstep loop.
  - pkg/ports defines what the runtime needs from the outside: fragments, a
    transport with a barrier exchange, and a result store.
  - pkg/adapters ships in-process and Redis backed implementations of those ports.

# Usage

	frags, err := fragment.LoadFile("graph.txt", 4, "hash")
	if err != nil {
		log.Fatal(err)
	}

	rt := pie.New(pie.WithLogger(logging.New(slog.LevelInfo)))
	group, err := pie.NewGroup(ctx, rt, lpa.New(), fragment.Ports(frags),
		memory.NewHub[lpa.Label](), domain.ParallelSpec{Threads: 4}, "")
	if err != nil {
		log.Fatal(err)
	}
	defer group.Close(ctx)

	views, err := group.Query(ctx, nil, "components")

Lower level, a single partition is managed through a handle:

	h, err := pie.CreateWorker(ctx, rt, app, frag, transport, comm, par)
	view, err := rt.Query(ctx, h, args, "result-key")
	err = rt.DeleteWorker(ctx, h)

# Errors

Every failure crossing the Runtime is a *domain.Error. Its Kind tells what happened to
the worker: configuration and argument errors leave it untouched, program errors
return it to Ready, communication and internal errors poison it so that only
DeleteWorker is useful. The one configuration error that poisons is a Query on a
worker that was never initialized.
*/
package pie
