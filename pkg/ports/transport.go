package ports

import (
	"context"

	"github.com/aretw0/pie/pkg/domain"
)

// Transport connects the workers of one communication group.
type Transport[M any] interface {
	// Join registers this partition in the group described by spec and blocks until
	// every rank has joined, the context is canceled, or the transport fails.
	Join(ctx context.Context, spec domain.CommSpec) (Endpoint[M], error)
}

// Endpoint is one partition's membership in a communication group.
type Endpoint[M any] interface {
	Rank() int
	Size() int

	// Exchange is the superstep barrier. It delivers out (keyed by destination rank),
	// blocks until every rank has called Exchange for the same round, and returns the
	// messages addressed to this rank together with the group-wide outcome.
	// Delivery order within a round is unspecified.
	Exchange(ctx context.Context, round int, out map[int][]domain.Message[M], vote domain.Vote) ([]domain.Message[M], domain.RoundOutcome, error)

	// Close leaves the group. Peers blocked in Exchange observe domain.ErrPeerLeft.
	Close() error
}
