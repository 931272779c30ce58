package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/pie/internal/logging"
	"github.com/aretw0/pie/pkg/app"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
)

// Factory builds a fresh program environment. It must return an *app.App.
type Factory func() any

// Loader keeps a catalog of named programs and at most one loaded environment.
// It is safe for concurrent use.
type Loader struct {
	mu        sync.Mutex
	factories map[string]Factory
	active    *loaded
	acquiring bool

	locker  ports.DistributedLocker
	lockKey string
	lockTTL time.Duration
	logger  *slog.Logger
}

type loaded struct {
	name  string
	app   any
	lease ports.Lease
}

// Option configures a Loader.
type Option func(*Loader)

// WithLocker makes Load hold a distributed lock on key until Unload, so a single
// program environment is active across every process sharing the backend. The
// locker keeps the lock alive; ttl bounds how long it survives a dead holder.
// Should the lock be lost anyway, the program is dropped and App reports
// domain.ErrLockLost.
func WithLocker(locker ports.DistributedLocker, key string, ttl time.Duration) Option {
	return func(l *Loader) {
		l.locker = locker
		l.lockKey = key
		l.lockTTL = ttl
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates an empty loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		factories: make(map[string]Factory),
		lockKey:   "pie:loader",
		lockTTL:   time.Minute,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Default is the process-wide loader.
var Default = New()

// Register adds a named program factory.
func (l *Loader) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("register: name and factory are required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.factories[name]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateProgram, name)
	}
	l.factories[name] = factory
	return nil
}

// Register adds a typed program to the loader's catalog.
func Register[VD, MD any](l *Loader, name string, build func() *app.App[VD, MD]) error {
	if build == nil {
		return fmt.Errorf("register: name and factory are required")
	}
	return l.Register(name, func() any { return build() })
}

// Programs lists registered names in lexical order.
func (l *Loader) Programs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.factories))
	for name := range l.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load builds the named program and makes it the active environment.
// It fails with domain.ErrLoaderBusy while another environment is loaded or
// being loaded. The distributed lock, if any, is awaited without blocking the
// loader's other methods.
func (l *Loader) Load(ctx context.Context, name string) error {
	l.mu.Lock()
	if active, _ := l.currentLocked(); active != nil {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s is loaded", domain.ErrLoaderBusy, active.name)
	}
	if l.acquiring {
		l.mu.Unlock()
		return fmt.Errorf("%w: another load is in progress", domain.ErrLoaderBusy)
	}
	factory, ok := l.factories[name]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrProgramNotFound, name)
	}
	l.acquiring = true
	l.mu.Unlock()

	var lease ports.Lease
	if l.locker != nil {
		var err error
		lease, err = l.locker.Lock(ctx, l.lockKey, l.lockTTL)
		if err != nil {
			l.mu.Lock()
			l.acquiring = false
			l.mu.Unlock()
			return fmt.Errorf("%w: %v", domain.ErrLoaderBusy, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquiring = false

	built := factory()
	if built == nil {
		if lease != nil {
			_ = lease.Release(ctx)
		}
		return fmt.Errorf("%w: factory for %s returned nil", domain.ErrProgramType, name)
	}
	l.active = &loaded{name: name, app: built, lease: lease}
	l.logger.Info("program loaded", "program", name)
	return nil
}

// currentLocked returns the active environment, dropping it first if its lock
// has been lost. l.mu must be held.
func (l *Loader) currentLocked() (*loaded, error) {
	if l.active == nil {
		return nil, domain.ErrNoProgramLoaded
	}
	if l.active.lease != nil {
		select {
		case <-l.active.lease.Done():
			name := l.active.name
			l.active = nil
			l.logger.Warn("loader lock lost, program dropped", "program", name)
			return nil, fmt.Errorf("%w: %s", domain.ErrLockLost, name)
		default:
		}
	}
	return l.active, nil
}

// Unload tears down the active environment.
func (l *Loader) Unload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active == nil {
		return domain.ErrNoProgramLoaded
	}
	name, lease := l.active.name, l.active.lease
	l.active = nil
	l.logger.Info("program unloaded", "program", name)
	if lease != nil {
		if err := lease.Release(ctx); err != nil {
			return fmt.Errorf("release loader lock: %w", err)
		}
	}
	return nil
}

// Loaded returns the name of the active environment.
func (l *Loader) Loaded() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	active, _ := l.currentLocked()
	if active == nil {
		return "", false
	}
	return active.name, true
}

// App returns the active environment as an App of the requested data types.
func App[VD, MD any](l *Loader) (*app.App[VD, MD], error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	active, err := l.currentLocked()
	if err != nil {
		return nil, err
	}
	a, ok := active.app.(*app.App[VD, MD])
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", domain.ErrProgramType, active.name, active.app)
	}
	return a, nil
}
