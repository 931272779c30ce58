package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/pie/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

// unlockScript deletes the lock only if it still holds our token.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// renewScript extends the lock only if it still holds our token.
const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Locker implements ports.DistributedLocker using Redis.
type Locker struct {
	client *backend.Client
	prefix string
	poll   time.Duration
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		poll:   50 * time.Millisecond,
	}
}

var _ ports.DistributedLocker = (*Locker)(nil)

// Lock acquires a distributed lock for the given key using Redis SET NX PX.
// It polls until the lock is free or ctx is done. The returned lease extends the
// key every ttl/3 while it still holds its token.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		success, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if success {
			return newLease(l.client, lockKey, token, ttl), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockAcquire, ctx.Err())
		case <-ticker.C:
		}
	}
}

type lease struct {
	client   *backend.Client
	key      string
	token    string
	ttl      time.Duration
	interval time.Duration

	stop     chan struct{}
	stopped  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newLease(client *backend.Client, key, token string, ttl time.Duration) *lease {
	s := &lease{
		client:   client,
		key:      key,
		token:    token,
		ttl:      ttl,
		interval: max(ttl/3, 10*time.Millisecond),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.keepAlive()
	return s
}

func (s *lease) Done() <-chan struct{} { return s.done }

// Release stops the renewals and deletes the key if it still holds our token.
func (s *lease) Release(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.stopped
	return s.client.Eval(ctx, unlockScript, []string{s.key}, s.token).Err()
}

// keepAlive renews the key until Release. The lease is lost when the key no
// longer holds our token, or when no renewal succeeded for a whole ttl.
func (s *lease) keepAlive() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	renewed := time.Now()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		held, err := s.client.Eval(ctx, renewScript, []string{s.key}, s.token, s.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err == nil && held == 1:
			renewed = time.Now()
		case err == nil, time.Since(renewed) >= s.ttl:
			close(s.done)
			return
		}
	}
}
