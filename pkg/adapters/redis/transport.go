package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Transport implements ports.Transport over Redis, so the workers of one group may
// live in different processes. Messages are JSON encoded.
//
// Layout under <prefix><group>:
//
//	size               group size, set by the first rank
//	members            set of joined ranks
//	left               set of ranks that closed
//	r:<n>:in:<rank>    list of JSON message batches for rank in round n
//	r:<n>:sent         total messages voted in round n
//	r:<n>:failed       set of ranks that voted failed in round n
//	r:<n>:arrived      number of ranks that reached round n
//	r:<n>:collected    number of ranks that read the outcome of round n
type Transport[M any] struct {
	client *backend.Client
	prefix string
	poll   time.Duration
	ttl    time.Duration
}

// TransportOption configures a Transport.
type TransportOption func(*transportOptions)

type transportOptions struct {
	prefix string
	poll   time.Duration
	ttl    time.Duration
}

// WithTransportPrefix sets the key prefix of communication groups.
func WithTransportPrefix(prefix string) TransportOption {
	return func(o *transportOptions) {
		o.prefix = prefix
	}
}

// WithPollInterval sets how often blocked ranks poll the barrier.
func WithPollInterval(d time.Duration) TransportOption {
	return func(o *transportOptions) {
		if d > 0 {
			o.poll = d
		}
	}
}

// WithGroupTTL bounds how long abandoned group keys survive.
func WithGroupTTL(ttl time.Duration) TransportOption {
	return func(o *transportOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// NewTransport creates a Redis transport from an existing client.
func NewTransport[M any](client *backend.Client, opts ...TransportOption) *Transport[M] {
	o := &transportOptions{
		prefix: "pie:comm:",
		poll:   10 * time.Millisecond,
		ttl:    time.Hour,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Transport[M]{client: client, prefix: o.prefix, poll: o.poll, ttl: o.ttl}
}

var _ ports.Transport[int] = (*Transport[int])(nil)

// Join registers spec.Rank and polls until every rank of spec.Group has joined.
func (t *Transport[M]) Join(ctx context.Context, spec domain.CommSpec) (ports.Endpoint[M], error) {
	if spec.Size <= 0 || spec.Rank < 0 || spec.Rank >= spec.Size {
		return nil, fmt.Errorf("invalid comm spec rank=%d size=%d", spec.Rank, spec.Size)
	}
	ep := &endpoint[M]{t: t, base: t.prefix + spec.Group + ":", rank: spec.Rank, size: spec.Size}

	if _, err := t.client.SetNX(ctx, ep.key("size"), spec.Size, t.ttl).Result(); err != nil {
		return nil, fmt.Errorf("failed to register group: %w", err)
	}
	size, err := t.client.Get(ctx, ep.key("size")).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to read group size: %w", err)
	}
	if size != spec.Size {
		return nil, fmt.Errorf("group %q has size %d, rank %d asked for %d", spec.Group, size, spec.Rank, spec.Size)
	}

	added, err := t.client.SAdd(ctx, ep.key("members"), spec.Rank).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to join group: %w", err)
	}
	if added == 0 {
		return nil, fmt.Errorf("%w: rank %d of %q", domain.ErrGroupFull, spec.Rank, spec.Group)
	}
	t.client.Expire(ctx, ep.key("members"), t.ttl)

	err = t.wait(ctx, func(ctx context.Context) (bool, error) {
		n, err := t.client.SCard(ctx, ep.key("members")).Result()
		return n >= int64(spec.Size), err
	})
	if err != nil {
		// Release the rank so it can join again; ctx may be done already.
		t.client.SRem(context.Background(), ep.key("members"), spec.Rank)
		return nil, fmt.Errorf("join %q: %w", spec.Group, err)
	}
	return ep, nil
}

// wait polls cond until it holds, fails, or ctx is done.
func (t *Transport[M]) wait(ctx context.Context, cond func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type endpoint[M any] struct {
	t    *Transport[M]
	base string
	rank int
	size int

	mu     sync.Mutex
	closed bool
}

func (e *endpoint[M]) key(parts ...string) string {
	k := e.base
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func (e *endpoint[M]) roundKey(n int, parts ...string) string {
	return e.key(append([]string{"r", strconv.Itoa(n)}, parts...)...)
}

func (e *endpoint[M]) Rank() int { return e.rank }
func (e *endpoint[M]) Size() int { return e.size }

func (e *endpoint[M]) peerLeft(ctx context.Context) (bool, error) {
	n, err := e.t.client.SCard(ctx, e.key("left")).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (e *endpoint[M]) Exchange(ctx context.Context, n int, out map[int][]domain.Message[M], vote domain.Vote) ([]domain.Message[M], domain.RoundOutcome, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: %w", n, domain.ErrPeerLeft)
	}
	if left, err := e.peerLeft(ctx); err != nil {
		return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: %w", n, err)
	} else if left {
		return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: %w", n, domain.ErrPeerLeft)
	}

	batches := make(map[int][]byte, len(out))
	for dst, msgs := range out {
		if dst < 0 || dst >= e.size {
			return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: destination rank %d out of range", n, dst)
		}
		if len(msgs) == 0 {
			continue
		}
		data, err := json.Marshal(msgs)
		if err != nil {
			return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: failed to encode messages: %w", n, err)
		}
		batches[dst] = data
	}

	// Messages and votes land before the arrival is counted.
	pipe := e.t.client.TxPipeline()
	for dst, data := range batches {
		in := e.roundKey(n, "in", strconv.Itoa(dst))
		pipe.RPush(ctx, in, data)
		pipe.Expire(ctx, in, e.t.ttl)
	}
	pipe.IncrBy(ctx, e.roundKey(n, "sent"), int64(vote.Sent))
	if vote.Failed {
		pipe.SAdd(ctx, e.roundKey(n, "failed"), e.rank)
	}
	pipe.Incr(ctx, e.roundKey(n, "arrived"))
	for _, k := range []string{"sent", "failed", "arrived"} {
		pipe.Expire(ctx, e.roundKey(n, k), e.t.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: failed to publish: %w", n, err)
	}

	err := e.t.wait(ctx, func(ctx context.Context) (bool, error) {
		arrived, err := e.t.client.Get(ctx, e.roundKey(n, "arrived")).Int()
		if err != nil && !errors.Is(err, backend.Nil) {
			return false, err
		}
		if arrived >= e.size {
			return true, nil
		}
		left, err := e.peerLeft(ctx)
		if err != nil {
			return false, err
		}
		if left {
			return false, domain.ErrPeerLeft
		}
		return false, nil
	})
	if err != nil {
		return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: %w", n, err)
	}

	in, outcome, err := e.collect(ctx, n)
	if err != nil {
		return nil, domain.RoundOutcome{}, fmt.Errorf("exchange round %d: %w", n, err)
	}
	return in, outcome, nil
}

func (e *endpoint[M]) collect(ctx context.Context, n int) ([]domain.Message[M], domain.RoundOutcome, error) {
	inKey := e.roundKey(n, "in", strconv.Itoa(e.rank))
	pipe := e.t.client.Pipeline()
	batchesCmd := pipe.LRange(ctx, inKey, 0, -1)
	sentCmd := pipe.Get(ctx, e.roundKey(n, "sent"))
	failedCmd := pipe.SMembers(ctx, e.roundKey(n, "failed"))
	pipe.Del(ctx, inKey)
	collectedCmd := pipe.Incr(ctx, e.roundKey(n, "collected"))
	pipe.Expire(ctx, e.roundKey(n, "collected"), e.t.ttl)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return nil, domain.RoundOutcome{}, fmt.Errorf("failed to collect: %w", err)
	}

	var in []domain.Message[M]
	for _, raw := range batchesCmd.Val() {
		var batch []domain.Message[M]
		if err := json.Unmarshal([]byte(raw), &batch); err != nil {
			return nil, domain.RoundOutcome{}, fmt.Errorf("failed to decode messages: %w", err)
		}
		in = append(in, batch...)
	}

	sent, _ := strconv.Atoi(sentCmd.Val())
	outcome := domain.RoundOutcome{Active: sent > 0}
	for _, member := range failedCmd.Val() {
		rank, err := strconv.Atoi(member)
		if err != nil {
			return nil, domain.RoundOutcome{}, fmt.Errorf("invalid failed rank %q", member)
		}
		outcome.FailedRanks = append(outcome.FailedRanks, rank)
	}
	sort.Ints(outcome.FailedRanks)

	// The last rank to read the round removes its shared keys.
	if collectedCmd.Val() >= int64(e.size) {
		e.t.client.Del(ctx,
			e.roundKey(n, "sent"),
			e.roundKey(n, "failed"),
			e.roundKey(n, "arrived"),
			e.roundKey(n, "collected"),
		)
	}
	return in, outcome, nil
}

// Close leaves the group. Further calls are no-ops. The last rank to leave removes
// the group keys.
func (e *endpoint[M]) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()
	pipe := e.t.client.TxPipeline()
	pipe.SAdd(ctx, e.key("left"), e.rank)
	pipe.Expire(ctx, e.key("left"), e.t.ttl)
	leftCmd := pipe.SCard(ctx, e.key("left"))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to leave group: %w", err)
	}
	if leftCmd.Val() >= int64(e.size) {
		if err := e.t.client.Del(ctx, e.key("size"), e.key("members"), e.key("left")).Err(); err != nil {
			return fmt.Errorf("failed to remove group: %w", err)
		}
	}
	return nil
}
