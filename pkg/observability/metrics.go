package observability

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aretw0/pie/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by worker hooks.
type Metrics struct {
	Queries     *prometheus.CounterVec
	QueryTime   *prometheus.HistogramVec
	Supersteps  *prometheus.CounterVec
	Messages    *prometheus.CounterVec
	Transitions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pie_queries_total",
				Help: "Queries finished per partition, by outcome.",
			},
			[]string{"group", "fragment", "outcome"},
		),
		QueryTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pie_query_duration_seconds",
				Help:    "Wall time of one PIE cycle on a partition.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"group", "fragment"},
		),
		Supersteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pie_exchanges_total",
				Help: "Barrier exchanges completed per partition.",
			},
			[]string{"group", "fragment"},
		),
		Messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pie_messages_total",
				Help: "Messages crossing partition boundaries, by direction.",
			},
			[]string{"group", "fragment", "direction"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pie_state_transitions_total",
				Help: "Worker lifecycle transitions, by target state.",
			},
			[]string{"group", "fragment", "state"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Queries, m.QueryTime, m.Supersteps, m.Messages, m.Transitions)
	}
	return m
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(_ context.Context, e *domain.StateEvent) {
			m.Transitions.WithLabelValues(e.Group, fid(e.EventBase), string(e.To)).Inc()
		},
		OnQueryFinish: func(_ context.Context, e *domain.QueryEvent) {
			m.Queries.WithLabelValues(e.Group, fid(e.EventBase), outcome(e.Err)).Inc()
			m.QueryTime.WithLabelValues(e.Group, fid(e.EventBase)).Observe(e.Duration.Seconds())
		},
		OnSuperstep: func(_ context.Context, e *domain.SuperstepEvent) {
			f := fid(e.EventBase)
			m.Supersteps.WithLabelValues(e.Group, f).Inc()
			m.Messages.WithLabelValues(e.Group, f, "sent").Add(float64(e.Sent))
			m.Messages.WithLabelValues(e.Group, f, "received").Add(float64(e.Received))
		},
	}
}

func fid(e domain.EventBase) string {
	return strconv.Itoa(e.FragmentID)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := domain.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// LogHooks returns lifecycle hooks writing one record per event to logger.
// Supersteps are logged at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *domain.StateEvent) {
			logger.InfoContext(ctx, "state_change",
				"group", e.Group,
				"fragment", e.FragmentID,
				"from", e.From,
				"to", e.To,
			)
		},
		OnQueryStart: func(ctx context.Context, e *domain.QueryEvent) {
			logger.InfoContext(ctx, "query_start", "group", e.Group, "fragment", e.FragmentID)
		},
		OnQueryFinish: func(ctx context.Context, e *domain.QueryEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "query_failed",
					"group", e.Group,
					"fragment", e.FragmentID,
					"kind", domain.KindOf(e.Err),
					"err", e.Err,
				)
				return
			}
			logger.InfoContext(ctx, "query_finish",
				"group", e.Group,
				"fragment", e.FragmentID,
				"supersteps", e.Supersteps,
				"duration", e.Duration,
			)
		},
		OnSuperstep: func(ctx context.Context, e *domain.SuperstepEvent) {
			logger.DebugContext(ctx, "superstep",
				"group", e.Group,
				"fragment", e.FragmentID,
				"superstep", e.Superstep,
				"sent", e.Sent,
				"received", e.Received,
				"active", e.Active,
			)
		},
	}
}
