package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/pie/internal/logging"
	"github.com/aretw0/pie/internal/parallel"
	"github.com/aretw0/pie/pkg/app"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/pie/internal/runtime"

// Worker binds one App to one Fragment and drives the PIE cycle in lockstep with
// the other partitions of its communication group.
//
// Lifecycle: Uninitialized -> Init -> Ready -> Query -> Evaluating -> Ready ... ->
// Finalize -> Finalized. Communication failures and Query-before-Init move the
// worker to Poisoned, from which only Finalize is accepted.
type Worker[VD, MD any] struct {
	app       *app.App[VD, MD]
	frag      ports.Fragment
	transport ports.Transport[MD]

	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	tracer        trace.Tracer
	maxSupersteps int

	mu         sync.Mutex
	state      domain.WorkerState
	comm       domain.CommSpec
	endpoint   ports.Endpoint[MD]
	engine     *parallel.Engine
	ctx        *app.Context[VD, MD]
	round      int
	supersteps int
}

// Option configures a Worker.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	tracer        trace.Tracer
	maxSupersteps int
}

// WithLogger sets a structured logger for the worker.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = o.hooks.Merge(hooks)
	}
}

// WithTracer overrides the OpenTelemetry tracer (default: the global provider).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithMaxSupersteps bounds the number of IncEval rounds per query. Zero means unbounded.
func WithMaxSupersteps(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxSupersteps = n
		}
	}
}

// NewWorker binds a to frag. The worker does not join any group until Init.
func NewWorker[VD, MD any](a *app.App[VD, MD], frag ports.Fragment, transport ports.Transport[MD], opts ...Option) *Worker[VD, MD] {
	o := &options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return &Worker[VD, MD]{
		app:           a,
		frag:          frag,
		transport:     transport,
		logger:        o.logger.With("app", a.Name(), "fragment", frag.FID()),
		hooks:         o.hooks,
		tracer:        o.tracer,
		maxSupersteps: o.maxSupersteps,
		state:         domain.StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (w *Worker[VD, MD]) State() domain.WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Fragment returns the fragment the worker reads.
func (w *Worker[VD, MD]) Fragment() ports.Fragment { return w.frag }

// AppName returns the label of the bound app.
func (w *Worker[VD, MD]) AppName() string { return w.app.Name() }

// Comm returns the communication spec given to Init.
func (w *Worker[VD, MD]) Comm() domain.CommSpec {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.comm
}

// Supersteps is the number of IncEval rounds run by the last query.
func (w *Worker[VD, MD]) Supersteps() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.supersteps
}

// Context returns the computation state of the last query. It must be treated as
// read-only and is only stable while the worker is not Evaluating.
func (w *Worker[VD, MD]) Context() *app.Context[VD, MD] {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctx
}

// Init joins the communication group and configures intra-worker parallelism.
// It blocks until every rank of the group has joined. It must be called exactly once.
func (w *Worker[VD, MD]) Init(ctx context.Context, comm domain.CommSpec, par domain.ParallelSpec) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case domain.StateUninitialized:
	case domain.StateReady, domain.StateEvaluating:
		return domain.ConfigurationError("init", domain.ErrAlreadyInitialized)
	case domain.StatePoisoned:
		return domain.ConfigurationError("init", domain.ErrPoisoned)
	default:
		return domain.ConfigurationError("init", domain.ErrFinalized)
	}

	if err := w.checkComm(comm); err != nil {
		return domain.ConfigurationError("init", err)
	}
	if w.transport == nil {
		return domain.ConfigurationError("init", fmt.Errorf("no transport configured"))
	}

	w.logger.Debug("joining communication group", "group", comm.Group, "rank", comm.Rank, "size", comm.Size)
	endpoint, err := w.transport.Join(ctx, comm)
	if err != nil {
		w.transitionLocked(ctx, domain.StatePoisoned)
		w.logger.Error("failed to join communication group", "group", comm.Group, "err", err)
		return domain.CommunicationError("init", err)
	}

	w.comm = comm
	w.endpoint = endpoint
	w.engine = parallel.New(par)
	w.ctx = w.app.NewContext(w.frag, w.engine)
	w.transitionLocked(ctx, domain.StateReady)
	w.logger.Info("worker ready", "group", comm.Group, "threads", w.engine.Threads())
	return nil
}

func (w *Worker[VD, MD]) checkComm(comm domain.CommSpec) error {
	if comm.Size <= 0 {
		return fmt.Errorf("group size must be positive, got %d", comm.Size)
	}
	if comm.Rank < 0 || comm.Rank >= comm.Size {
		return fmt.Errorf("rank %d out of range [0, %d)", comm.Rank, comm.Size)
	}
	if comm.Size != w.frag.FNum() || comm.Rank != w.frag.FID() {
		return fmt.Errorf("comm spec rank %d/%d does not match fragment %d/%d",
			comm.Rank, comm.Size, w.frag.FID(), w.frag.FNum())
	}
	return nil
}

// Query runs a fresh PIE cycle: Init, PEval, then IncEval rounds until no partition
// of the group has pending messages.
//
// The returned error is always a *domain.Error. Program and argument errors leave
// the worker Ready; communication errors poison it. A Query issued while another
// one is in flight fails immediately.
func (w *Worker[VD, MD]) Query(ctx context.Context, params domain.Params) error {
	if err := w.begin(ctx); err != nil {
		return err
	}

	start := time.Now()
	ctx, span := w.tracer.Start(ctx, "pie.query", trace.WithAttributes(
		attribute.String("pie.app", w.app.Name()),
		attribute.Int("pie.fragment", w.frag.FID()),
	))
	defer span.End()
	w.fireQuery(ctx, w.hooks.OnQueryStart, domain.EventQueryStart, 0, 0, nil)

	supersteps, err := w.evaluate(ctx, params)

	next := domain.StateReady
	if err != nil && !domain.IsRecoverable(err) && domain.KindOf(err) != domain.KindConfiguration {
		next = domain.StatePoisoned
	}
	w.mu.Lock()
	w.supersteps = supersteps
	w.transitionLocked(ctx, next)
	w.mu.Unlock()

	span.SetAttributes(attribute.Int("pie.supersteps", supersteps))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.logger.Warn("query failed", "supersteps", supersteps, "kind", domain.KindOf(err), "err", err)
	} else {
		w.logger.Info("query converged", "supersteps", supersteps, "duration", time.Since(start))
	}
	w.fireQuery(ctx, w.hooks.OnQueryFinish, domain.EventQueryFinish, supersteps, time.Since(start), err)
	return err
}

// begin moves Ready -> Evaluating, failing fast on any other state.
func (w *Worker[VD, MD]) begin(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case domain.StateReady:
		w.transitionLocked(ctx, domain.StateEvaluating)
		return nil
	case domain.StateUninitialized:
		w.transitionLocked(ctx, domain.StatePoisoned)
		return domain.ConfigurationError("query", domain.ErrNotInitialized)
	case domain.StateEvaluating:
		return domain.ConfigurationError("query", domain.ErrQueryInFlight)
	case domain.StatePoisoned:
		return domain.ConfigurationError("query", domain.ErrPoisoned)
	default:
		return domain.ConfigurationError("query", domain.ErrFinalized)
	}
}

// evaluate is the PIE cycle. A partition whose callback fails still joins the
// current round's exchange with a failed vote, so every partition leaves the
// cycle in the same round and the group stays aligned for the next query.
func (w *Worker[VD, MD]) evaluate(ctx context.Context, params domain.Params) (int, error) {
	if err := w.app.Validate(); err != nil {
		return 0, err
	}

	pctx := w.ctx
	pctx.Reset(params)
	pctx.Attach(ctx)

	localErr := w.app.Eval(domain.PhaseInit, w.frag, pctx)
	if localErr == nil {
		pctx.MarkPopulated()
		localErr = w.app.Eval(domain.PhasePEval, w.frag, pctx)
	}

	superstep := 0
	for {
		outcome, in, err := w.exchange(ctx, superstep, pctx, localErr != nil)
		if err != nil {
			return superstep, domain.CommunicationError("exchange", err)
		}
		if localErr != nil {
			return superstep, localErr
		}
		if len(outcome.FailedRanks) > 0 {
			return superstep, domain.ProgramError("exchange",
				fmt.Errorf("%w: ranks %v in superstep %d", domain.ErrPeerFailed, outcome.FailedRanks, superstep))
		}
		if outcome.Quiescent() {
			return superstep, nil
		}
		if w.maxSupersteps > 0 && superstep >= w.maxSupersteps {
			return superstep, domain.ProgramError("exchange",
				fmt.Errorf("%w: %d", domain.ErrSuperstepLimit, w.maxSupersteps))
		}

		superstep++
		if dropped := pctx.Deliver(superstep, in); dropped > 0 {
			w.logger.Warn("dropped messages for unknown vertices", "superstep", superstep, "count", dropped)
		}
		localErr = w.app.Eval(domain.PhaseIncEval, w.frag, pctx)
	}
}

func (w *Worker[VD, MD]) exchange(ctx context.Context, superstep int, pctx *app.Context[VD, MD], failed bool) (domain.RoundOutcome, []domain.Message[MD], error) {
	start := time.Now()
	ctx, span := w.tracer.Start(ctx, "pie.superstep", trace.WithAttributes(
		attribute.Int("pie.superstep", superstep),
		attribute.Int("pie.round", w.round),
	))
	defer span.End()

	out, sent := pctx.TakeOutgoing()
	if failed {
		out, sent = nil, 0
	}
	in, outcome, err := w.endpoint.Exchange(ctx, w.round, out, domain.Vote{Sent: sent, Failed: failed})
	w.round++
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.logger.Error("superstep exchange failed", "superstep", superstep, "err", err)
		return outcome, nil, err
	}

	w.logger.Debug("superstep exchanged", "superstep", superstep, "sent", sent, "received", len(in), "active", outcome.Active)
	if w.hooks.OnSuperstep != nil {
		w.hooks.OnSuperstep(ctx, &domain.SuperstepEvent{
			EventBase: w.eventBase(domain.EventSuperstepEnd),
			Superstep: superstep,
			Sent:      sent,
			Received:  len(in),
			Active:    outcome.Active,
			Duration:  time.Since(start),
		})
	}
	return outcome, in, nil
}

// View snapshots the last query's result for publication under key.
func (w *Worker[VD, MD]) View(key string) (*domain.ResultView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != domain.StateReady {
		return nil, domain.ConfigurationError("view", fmt.Errorf("worker is %s", w.state))
	}
	if w.ctx == nil || !w.ctx.Populated() {
		return nil, domain.ConfigurationError("view", fmt.Errorf("no query result available"))
	}
	snapshot := w.ctx.Snapshot()
	values := make(map[domain.VertexID]any, len(snapshot))
	for v, val := range snapshot {
		values[v] = val
	}
	return &domain.ResultView{
		Key:        key,
		FragmentID: w.frag.FID(),
		Supersteps: w.supersteps,
		CreatedAt:  time.Now(),
		Values:     values,
	}, nil
}

// Finalize leaves the communication group and releases parallel resources.
// It is accepted from Uninitialized, Ready and Poisoned. A second call returns a
// configuration error and releases nothing. A failure to leave the group is logged
// and returned, but the worker is Finalized regardless.
func (w *Worker[VD, MD]) Finalize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case domain.StateFinalized:
		return domain.ConfigurationError("finalize", domain.ErrFinalized)
	case domain.StateEvaluating:
		return domain.ConfigurationError("finalize", domain.ErrQueryInFlight)
	}

	var err error
	if w.endpoint != nil {
		if cerr := w.endpoint.Close(); cerr != nil {
			w.logger.Warn("failed to leave communication group", "group", w.comm.Group, "err", cerr)
			err = domain.CommunicationError("finalize", cerr)
		}
		w.endpoint = nil
	}
	w.engine = nil
	w.transitionLocked(ctx, domain.StateFinalized)
	w.logger.Info("worker finalized")
	return err
}

// poison marks the worker unusable after a failure outside the normal paths.
func (w *Worker[VD, MD]) poison(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != domain.StateFinalized {
		w.transitionLocked(ctx, domain.StatePoisoned)
	}
}

func (w *Worker[VD, MD]) transitionLocked(ctx context.Context, to domain.WorkerState) {
	from := w.state
	if from == to {
		return
	}
	w.state = to
	if w.hooks.OnStateChange != nil {
		w.hooks.OnStateChange(ctx, &domain.StateEvent{
			EventBase: w.eventBase(domain.EventStateChange),
			From:      from,
			To:        to,
		})
	}
}

func (w *Worker[VD, MD]) fireQuery(ctx context.Context, hook func(context.Context, *domain.QueryEvent), typ domain.EventType, supersteps int, d time.Duration, err error) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.QueryEvent{
		EventBase:  w.eventBase(typ),
		Supersteps: supersteps,
		Duration:   d,
		Err:        err,
	})
}

func (w *Worker[VD, MD]) eventBase(typ domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp:  time.Now(),
		Type:       typ,
		Group:      w.comm.Group,
		FragmentID: w.frag.FID(),
	}
}
