package pie

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/pie/internal/logging"
	"github.com/aretw0/pie/internal/runtime"
	"github.com/aretw0/pie/pkg/adapters/memory"
	"github.com/aretw0/pie/pkg/app"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/loader"
	"github.com/aretw0/pie/pkg/ports"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Handle is an opaque reference to a worker owned by a Runtime.
// It is valid from CreateWorker until DeleteWorker.
type Handle string

// worker is the type-erased surface of runtime.Worker[VD, MD].
type worker interface {
	runtime.Target
	View(key string) (*domain.ResultView, error)
	Finalize(ctx context.Context) error
	AppName() string
	Fragment() ports.Fragment
}

// Runtime is the high-level entry point: it owns workers behind handles, drives
// queries through an invoker and publishes results.
type Runtime struct {
	mu      sync.Mutex
	workers map[Handle]worker

	invoker       *runtime.Invoker
	store         ports.ResultStore
	hooks         domain.LifecycleHooks
	tracer        trace.Tracer
	maxSupersteps int
	logger        *slog.Logger
}

// Option defines a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks on every worker.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runtime) {
		r.hooks = r.hooks.Merge(hooks)
	}
}

// WithResultStore sets where published results go (default: in-memory).
func WithResultStore(store ports.ResultStore) Option {
	return func(r *Runtime) {
		r.store = store
	}
}

// WithTracer sets the OpenTelemetry tracer used by workers.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runtime) {
		r.tracer = tracer
	}
}

// WithMaxSupersteps bounds the IncEval rounds of every query. Zero means unbounded.
func WithMaxSupersteps(n int) Option {
	return func(r *Runtime) {
		r.maxSupersteps = n
	}
}

// New creates a Runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{workers: make(map[Handle]worker)}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if r.store == nil {
		r.store = memory.NewStore()
	}
	r.invoker = runtime.NewInvoker(r.logger)
	return r
}

// Results returns the store that receives published views.
func (r *Runtime) Results() ports.ResultStore { return r.store }

func (r *Runtime) workerOptions() []runtime.Option {
	opts := []runtime.Option{
		runtime.WithLogger(r.logger),
		runtime.WithLifecycleHooks(r.hooks),
		runtime.WithMaxSupersteps(r.maxSupersteps),
	}
	if r.tracer != nil {
		opts = append(opts, runtime.WithTracer(r.tracer))
	}
	return opts
}

// CreateWorker binds a to frag, joins the communication group and returns the
// handle of a Ready worker. Init blocks until every rank of comm has joined.
// On failure no handle is issued and the worker's resources are released.
func CreateWorker[VD, MD any](ctx context.Context, r *Runtime, a *app.App[VD, MD], frag ports.Fragment, transport ports.Transport[MD], comm domain.CommSpec, par domain.ParallelSpec) (Handle, error) {
	if a == nil || frag == nil {
		return "", domain.ConfigurationError("create worker", fmt.Errorf("app and fragment are required"))
	}
	w := runtime.NewWorker(a, frag, transport, r.workerOptions()...)
	if err := w.Init(ctx, comm, par); err != nil {
		if ferr := w.Finalize(ctx); ferr != nil {
			r.logger.Warn("cleanup after failed init", "err", ferr)
		}
		return "", err
	}

	h := Handle(uuid.NewString())
	r.mu.Lock()
	r.workers[h] = w
	r.mu.Unlock()
	r.logger.Debug("worker created", "handle", h, "app", a.Name(), "fragment", frag.FID())
	return h, nil
}

// CreateLoadedWorker is CreateWorker with the program currently loaded in l.
func CreateLoadedWorker[VD, MD any](ctx context.Context, r *Runtime, l *loader.Loader, frag ports.Fragment, transport ports.Transport[MD], comm domain.CommSpec, par domain.ParallelSpec) (Handle, error) {
	a, err := loader.App[VD, MD](l)
	if err != nil {
		return "", domain.ConfigurationError("create worker", err)
	}
	return CreateWorker(ctx, r, a, frag, transport, comm, par)
}

func (r *Runtime) lookup(h Handle) (worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[h]
	if !ok {
		return nil, domain.ConfigurationError("lookup", fmt.Errorf("%w: %s", domain.ErrInvalidHandle, h))
	}
	return w, nil
}

// Query runs one PIE cycle on the worker behind h.
//
// When the query succeeds and key is not empty, a snapshot of the worker's inner
// vertex values is published under key and returned. With an empty key nothing is
// published and the view is nil. A failed query publishes nothing. An invalid key
// is an argument error reported before the worker runs.
func (r *Runtime) Query(ctx context.Context, h Handle, args domain.QueryArgs, key string) (*domain.ResultView, error) {
	w, err := r.lookup(h)
	if err != nil {
		return nil, err
	}
	if key != "" {
		if err := domain.ValidateKey(key); err != nil {
			return nil, domain.ArgumentError("query", err)
		}
	}
	if err := r.invoker.Query(ctx, w, args); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, nil
	}

	view, err := w.View(key)
	if err != nil {
		return nil, err
	}
	if err := r.store.Publish(ctx, view); err != nil {
		// The worker stays Ready; only the publication is lost.
		return nil, domain.InternalError("publish", fmt.Errorf("key %q: %w", key, err))
	}
	return view, nil
}

// State reports the lifecycle state of the worker behind h.
func (r *Runtime) State(h Handle) (domain.WorkerState, error) {
	w, err := r.lookup(h)
	if err != nil {
		return "", err
	}
	return w.State(), nil
}

// Handles lists the live handles in lexical order.
func (r *Runtime) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	hs := make([]Handle, 0, len(r.workers))
	for h := range r.workers {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// DeleteWorker finalizes the worker behind h and invalidates the handle.
// Cleanup failures are logged; only an unknown handle is reported.
func (r *Runtime) DeleteWorker(ctx context.Context, h Handle) error {
	w, err := r.lookup(h)
	if err != nil {
		return err
	}
	if err := w.Finalize(ctx); err != nil {
		if errors.Is(err, domain.ErrQueryInFlight) {
			return err
		}
		r.logger.Warn("worker cleanup failed", "handle", h, "err", err)
	}

	r.mu.Lock()
	delete(r.workers, h)
	r.mu.Unlock()
	r.logger.Debug("worker deleted", "handle", h)
	return nil
}

// Close deletes every remaining worker. Workers that cannot be deleted, such as
// one with a query in flight, are logged and keep their handle.
func (r *Runtime) Close(ctx context.Context) {
	for _, h := range r.Handles() {
		if err := r.DeleteWorker(ctx, h); err != nil {
			r.logger.Warn("failed to delete worker", "handle", h, "err", err)
		}
	}
}
