package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/pie/internal/parallel"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
)

// ErrUnknownVertex is returned when a callback reads, writes or messages a vertex
// that is neither inner nor outer to the fragment.
var ErrUnknownVertex = errors.New("vertex unknown to this fragment")

// Context is the mutable state of one query: a value per inner vertex, a mirror
// value per outer vertex, and the messages in flight.
//
// It is owned by a single worker. Inside ForEach, callbacks may call SetValue for
// distinct vertices and the Send methods from several goroutines.
type Context[VD, MD any] struct {
	frag     ports.Fragment
	parallel *parallel.Engine
	outerIdx map[domain.VertexID]int
	query    context.Context

	params    domain.Params
	superstep int
	populated bool
	values    []VD

	mu       sync.Mutex
	outgoing map[int][]domain.Message[MD]
	sent     int

	incoming map[domain.VertexID][]MD
	active   []domain.VertexID
	received int
}

// NewContext creates an empty, unpopulated context over frag.
func NewContext[VD, MD any](frag ports.Fragment, engine *parallel.Engine) *Context[VD, MD] {
	if engine == nil {
		engine = parallel.New(domain.ParallelSpec{})
	}
	outer := frag.OuterVertices()
	idx := make(map[domain.VertexID]int, len(outer))
	for i, v := range outer {
		idx[v] = frag.InnerCount() + i
	}
	c := &Context[VD, MD]{
		frag:     frag,
		parallel: engine,
		outerIdx: idx,
	}
	c.Reset(nil)
	return c
}

// Fragment returns the fragment the context is bound to.
func (c *Context[VD, MD]) Fragment() ports.Fragment { return c.frag }

// Params returns the decoded query arguments.
func (c *Context[VD, MD]) Params() domain.Params { return c.params }

// Superstep is 0 during Init and PEval and n during the n-th IncEval round.
func (c *Context[VD, MD]) Superstep() int { return c.superstep }

// Populated reports whether Init has run since the last Reset.
func (c *Context[VD, MD]) Populated() bool { return c.populated }

func (c *Context[VD, MD]) index(v domain.VertexID) (int, bool) {
	if lid, ok := c.frag.Lid(v); ok {
		return lid, true
	}
	i, ok := c.outerIdx[v]
	return i, ok
}

// Value returns the data of an inner vertex or the mirror data of an outer vertex.
// Unknown vertices yield the zero value.
func (c *Context[VD, MD]) Value(v domain.VertexID) VD {
	i, ok := c.index(v)
	if !ok || i >= len(c.values) {
		var zero VD
		return zero
	}
	return c.values[i]
}

// SetValue stores the data of an inner vertex, or the local mirror of an outer one.
// Mirror writes are never propagated; use SendToMirrors for that.
func (c *Context[VD, MD]) SetValue(v domain.VertexID, value VD) error {
	i, ok := c.index(v)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVertex, v)
	}
	c.values[i] = value
	return nil
}

// SendTo queues a message for vertex v, delivered to v's owner at the next superstep.
func (c *Context[VD, MD]) SendTo(v domain.VertexID, msg MD) error {
	fid, ok := c.frag.Owner(v)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVertex, v)
	}
	c.enqueue(fid, v, msg)
	return nil
}

// SendToNeighbors queues msg for every neighbor of the inner vertex v.
func (c *Context[VD, MD]) SendToNeighbors(v domain.VertexID, msg MD) error {
	for _, e := range c.frag.Neighbors(v) {
		if err := c.SendTo(e.To, msg); err != nil {
			return err
		}
	}
	return nil
}

// SendToMirrors queues msg, addressed to the inner vertex v itself, for every other
// fragment that holds v as an outer vertex. Those are the owners of v's neighbors,
// which assumes symmetric adjacency (the default fragment build).
func (c *Context[VD, MD]) SendToMirrors(v domain.VertexID, msg MD) error {
	if !c.frag.IsInner(v) {
		return fmt.Errorf("%w: %d is not inner", ErrUnknownVertex, v)
	}
	self := c.frag.FID()
	seen := make(map[int]struct{}, 2)
	for _, e := range c.frag.Neighbors(v) {
		fid, ok := c.frag.Owner(e.To)
		if !ok || fid == self {
			continue
		}
		if _, dup := seen[fid]; dup {
			continue
		}
		seen[fid] = struct{}{}
		c.enqueue(fid, v, msg)
	}
	return nil
}

func (c *Context[VD, MD]) enqueue(fid int, target domain.VertexID, msg MD) {
	c.mu.Lock()
	queue := c.outgoing[fid]
	c.outgoing[fid] = append(queue, domain.Message[MD]{
		Target:  target,
		Payload: msg,
		Source:  c.frag.FID(),
		Seq:     len(queue),
	})
	c.sent++
	c.mu.Unlock()
}

// Messages returns the messages delivered to v for the current superstep, ordered
// by sending fragment and then by send order within that fragment.
func (c *Context[VD, MD]) Messages(v domain.VertexID) []MD {
	return c.incoming[v]
}

// Active lists the vertices that received messages this superstep: inner vertices
// in local id order, then outer vertices in fragment order.
func (c *Context[VD, MD]) Active() []domain.VertexID {
	return c.active
}

// Pending is the number of messages queued and not yet exchanged.
func (c *Context[VD, MD]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// Received is the number of messages delivered for the current superstep.
func (c *Context[VD, MD]) Received() int { return c.received }

// ForEach runs fn over vertices on the worker's parallel engine and returns after
// every call has finished. Once the query's context is done, remaining vertices
// are skipped and its error is returned.
func (c *Context[VD, MD]) ForEach(vertices []domain.VertexID, fn func(domain.VertexID) error) error {
	return c.parallel.ForEach(c.query, vertices, fn)
}

// ForEachInner runs fn over every inner vertex.
func (c *Context[VD, MD]) ForEachInner(fn func(domain.VertexID) error) error {
	return c.ForEach(c.frag.InnerVertices(), fn)
}

// Snapshot copies the inner vertex data into a map keyed by vertex id.
func (c *Context[VD, MD]) Snapshot() map[domain.VertexID]VD {
	n := min(c.frag.InnerCount(), len(c.values))
	out := make(map[domain.VertexID]VD, n)
	for lid := 0; lid < n; lid++ {
		out[c.frag.Oid(lid)] = c.values[lid]
	}
	return out
}

// The methods below are driven by the worker between phases.

// Reset discards all state and prepares the context for a fresh PIE cycle.
func (c *Context[VD, MD]) Reset(params domain.Params) {
	if params == nil {
		params = domain.Params{}
	}
	c.params = params
	c.query = context.Background()
	c.superstep = 0
	c.populated = false
	c.values = make([]VD, c.frag.InnerCount()+len(c.outerIdx))
	c.mu.Lock()
	c.outgoing = make(map[int][]domain.Message[MD])
	c.sent = 0
	c.mu.Unlock()
	c.incoming = make(map[domain.VertexID][]MD)
	c.active = nil
	c.received = 0
}

// Attach binds the context of the running query. It is cleared by Reset.
func (c *Context[VD, MD]) Attach(ctx context.Context) {
	if ctx != nil {
		c.query = ctx
	}
}

// MarkPopulated records that Init has completed.
func (c *Context[VD, MD]) MarkPopulated() { c.populated = true }

// TakeOutgoing hands the queued messages to the caller and clears the queue.
func (c *Context[VD, MD]) TakeOutgoing() (map[int][]domain.Message[MD], int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, sent := c.outgoing, c.sent
	c.outgoing = make(map[int][]domain.Message[MD])
	c.sent = 0
	return out, sent
}

// Deliver installs the messages received at the barrier for the given superstep.
// Messages for vertices unknown to this fragment are dropped and counted. msgs is
// reordered in place by (Source, Seq).
func (c *Context[VD, MD]) Deliver(superstep int, msgs []domain.Message[MD]) (dropped int) {
	slices.SortStableFunc(msgs, func(a, b domain.Message[MD]) int {
		if n := cmp.Compare(a.Source, b.Source); n != 0 {
			return n
		}
		return cmp.Compare(a.Seq, b.Seq)
	})

	c.superstep = superstep
	c.incoming = make(map[domain.VertexID][]MD)
	c.received = 0
	for _, m := range msgs {
		if _, ok := c.index(m.Target); !ok {
			dropped++
			continue
		}
		c.incoming[m.Target] = append(c.incoming[m.Target], m.Payload)
		c.received++
	}

	c.active = make([]domain.VertexID, 0, len(c.incoming))
	for _, v := range c.frag.InnerVertices() {
		if _, ok := c.incoming[v]; ok {
			c.active = append(c.active, v)
		}
	}
	for _, v := range c.frag.OuterVertices() {
		if _, ok := c.incoming[v]; ok {
			c.active = append(c.active, v)
		}
	}
	return dropped
}
