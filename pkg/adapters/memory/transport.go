package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
)

// Hub implements ports.Transport for workers living in the same process.
// Groups are created on first Join and removed once every member has closed.
type Hub[M any] struct {
	mu     sync.Mutex
	groups map[string]*group[M]
}

// NewHub creates an empty in-process transport.
func NewHub[M any]() *Hub[M] {
	return &Hub[M]{groups: make(map[string]*group[M])}
}

type group[M any] struct {
	name    string
	size    int
	members []bool
	closed  []bool
	joined  int
	ready   chan struct{}
	left    chan struct{}
	leftAny bool
	rounds  map[int]*round[M]
}

type round[M any] struct {
	arrived   int
	collected int
	sent      int
	failed    []int
	inbox     [][]domain.Message[M]
	outcome   domain.RoundOutcome
	done      chan struct{}
}

// Join registers spec.Rank in spec.Group and blocks until the group is complete.
func (h *Hub[M]) Join(ctx context.Context, spec domain.CommSpec) (ports.Endpoint[M], error) {
	if spec.Size <= 0 || spec.Rank < 0 || spec.Rank >= spec.Size {
		return nil, fmt.Errorf("invalid comm spec rank=%d size=%d", spec.Rank, spec.Size)
	}

	h.mu.Lock()
	g, ok := h.groups[spec.Group]
	if !ok {
		g = &group[M]{
			name:    spec.Group,
			size:    spec.Size,
			members: make([]bool, spec.Size),
			closed:  make([]bool, spec.Size),
			ready:   make(chan struct{}),
			left:    make(chan struct{}),
			rounds:  make(map[int]*round[M]),
		}
		h.groups[spec.Group] = g
	}
	if g.size != spec.Size {
		h.mu.Unlock()
		return nil, fmt.Errorf("group %q has size %d, rank %d asked for %d", spec.Group, g.size, spec.Rank, spec.Size)
	}
	if g.members[spec.Rank] {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: rank %d of %q", domain.ErrGroupFull, spec.Rank, spec.Group)
	}
	g.members[spec.Rank] = true
	g.joined++
	if g.joined == g.size {
		close(g.ready)
	}
	h.mu.Unlock()

	select {
	case <-g.ready:
		return &endpoint[M]{hub: h, group: g, rank: spec.Rank}, nil
	case <-ctx.Done():
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-g.ready:
		// Completed concurrently with the cancellation; the peers count on us now.
		return &endpoint[M]{hub: h, group: g, rank: spec.Rank}, nil
	default:
	}
	g.members[spec.Rank] = false
	g.joined--
	if g.joined == 0 {
		delete(h.groups, g.name)
	}
	return nil, fmt.Errorf("join %q: %w", spec.Group, ctx.Err())
}

type endpoint[M any] struct {
	hub   *Hub[M]
	group *group[M]
	rank  int
}

func (e *endpoint[M]) Rank() int { return e.rank }
func (e *endpoint[M]) Size() int { return e.group.size }

func (e *endpoint[M]) Exchange(ctx context.Context, n int, out map[int][]domain.Message[M], vote domain.Vote) ([]domain.Message[M], domain.RoundOutcome, error) {
	g := e.group

	e.hub.mu.Lock()
	if g.closed[e.rank] || g.leftAny {
		e.hub.mu.Unlock()
		return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: %w", n, domain.ErrPeerLeft)
	}
	for dst := range out {
		if dst < 0 || dst >= g.size {
			e.hub.mu.Unlock()
			return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: destination rank %d out of range", n, dst)
		}
	}

	r, ok := g.rounds[n]
	if !ok {
		r = &round[M]{inbox: make([][]domain.Message[M], g.size), done: make(chan struct{})}
		g.rounds[n] = r
	}
	for dst, msgs := range out {
		r.inbox[dst] = append(r.inbox[dst], msgs...)
	}
	r.sent += vote.Sent
	if vote.Failed {
		r.failed = append(r.failed, e.rank)
	}
	r.arrived++
	if r.arrived == g.size {
		sort.Ints(r.failed)
		r.outcome = domain.RoundOutcome{Active: r.sent > 0, FailedRanks: r.failed}
		close(r.done)
	}
	e.hub.mu.Unlock()

	select {
	case <-r.done:
	default:
		select {
		case <-r.done:
		case <-g.left:
			return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: %w", n, domain.ErrPeerLeft)
		case <-ctx.Done():
			return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: %w", n, ctx.Err())
		}
	}

	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()
	in := r.inbox[e.rank]
	r.inbox[e.rank] = nil
	r.collected++
	if r.collected == g.size {
		delete(g.rounds, n)
	}
	outcome := r.outcome
	if len(outcome.FailedRanks) > 0 {
		outcome.FailedRanks = append([]int(nil), outcome.FailedRanks...)
	}
	return in, outcome, nil
}

// Close leaves the group. Further calls are no-ops.
func (e *endpoint[M]) Close() error {
	g := e.group

	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()
	if g.closed[e.rank] {
		return nil
	}
	g.closed[e.rank] = true
	if !g.leftAny {
		g.leftAny = true
		close(g.left)
	}
	for _, c := range g.closed {
		if !c {
			return nil
		}
	}
	delete(e.hub.groups, g.name)
	return nil
}
