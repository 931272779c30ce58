package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStateChange  EventType = "state_change"
	EventQueryStart   EventType = "query_start"
	EventQueryFinish  EventType = "query_finish"
	EventSuperstepEnd EventType = "superstep_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	Group      string    `json:"group"`
	FragmentID int       `json:"fragment_id"`
}

// StateEvent records a lifecycle transition.
type StateEvent struct {
	EventBase
	From WorkerState `json:"from"`
	To   WorkerState `json:"to"`
}

// QueryEvent represents the start or end of a Query.
type QueryEvent struct {
	EventBase
	Supersteps int           `json:"supersteps,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// SuperstepEvent is emitted after each round's exchange.
type SuperstepEvent struct {
	EventBase
	Superstep int           `json:"superstep"`
	Sent      int           `json:"sent"`
	Received  int           `json:"received"`
	Active    bool          `json:"active"`
	Duration  time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for worker observability.
// Hooks run on the worker's goroutine and must not block.
type LifecycleHooks struct {
	OnStateChange func(context.Context, *StateEvent)
	OnQueryStart  func(context.Context, *QueryEvent)
	OnQueryFinish func(context.Context, *QueryEvent)
	OnSuperstep   func(context.Context, *SuperstepEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStateChange: chain(h.OnStateChange, other.OnStateChange),
		OnQueryStart:  chain(h.OnQueryStart, other.OnQueryStart),
		OnQueryFinish: chain(h.OnQueryFinish, other.OnQueryFinish),
		OnSuperstep:   chain(h.OnSuperstep, other.OnSuperstep),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
