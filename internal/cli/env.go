package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/pie"
	"github.com/aretw0/pie/internal/config"
	"github.com/aretw0/pie/internal/logging"
	httpAdapter "github.com/aretw0/pie/pkg/adapters/http"
	"github.com/aretw0/pie/pkg/adapters/memory"
	"github.com/aretw0/pie/pkg/adapters/redis"
	"github.com/aretw0/pie/pkg/apps"
	"github.com/aretw0/pie/pkg/loader"
	"github.com/aretw0/pie/pkg/observability"
	"github.com/aretw0/pie/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

// Env is everything a CLI command needs, wired from a Config.
type Env struct {
	Config   config.Config
	Logger   *slog.Logger
	Redis    *backend.Client
	Store    ports.ResultStore
	Loader   *loader.Loader
	Runtime  *pie.Runtime
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Streams  *httpAdapter.StreamManager
}

// NewEnv validates the backend part of cfg and connects what it names.
func NewEnv(ctx context.Context, cfg config.Config) (*Env, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	env := &Env{Config: cfg, Logger: logging.New(level)}

	env.Store = memory.NewStore()
	lopts := []loader.Option{loader.WithLogger(env.Logger)}
	if cfg.UsesRedis() {
		env.Redis = backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := env.Redis.Ping(pingCtx).Err(); err != nil {
			env.Redis.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		if cfg.Store == config.TransportRedis {
			sopts := []redis.Option{redis.WithPrefix(cfg.Redis.Prefix + "result:")}
			if cfg.Redis.TTL > 0 {
				sopts = append(sopts, redis.WithTTL(cfg.Redis.TTL))
			}
			env.Store = redis.NewFromClient(env.Redis, sopts...)
		}
		lopts = append(lopts, loader.WithLocker(redis.NewLocker(env.Redis, cfg.Redis.Prefix), "loader", time.Minute))
	}

	env.Loader = loader.New(lopts...)
	if err := apps.Register(env.Loader); err != nil {
		env.Close()
		return nil, err
	}

	env.Registry = prometheus.NewRegistry()
	env.Registry.MustRegister(collectors.NewGoCollector())
	env.Metrics = observability.NewMetrics(env.Registry)
	env.Streams = httpAdapter.NewStreamManager(env.Logger)

	hooks := env.Metrics.Hooks().Merge(env.Streams.Hooks())
	if level <= slog.LevelDebug {
		hooks = hooks.Merge(observability.LogHooks(env.Logger))
	}
	env.Runtime = pie.New(
		pie.WithLogger(env.Logger),
		pie.WithResultStore(env.Store),
		pie.WithLifecycleHooks(hooks),
		pie.WithMaxSupersteps(cfg.MaxSupersteps),
	)
	return env, nil
}

// Close releases the workers and connections of env.
func (e *Env) Close() {
	if e.Runtime != nil {
		e.Runtime.Close(context.Background())
	}
	if e.Loader != nil {
		if _, ok := e.Loader.Loaded(); ok {
			if err := e.Loader.Unload(context.Background()); err != nil {
				e.Logger.Warn("failed to unload program", "err", err)
			}
		}
	}
	if e.Redis != nil {
		if err := e.Redis.Close(); err != nil {
			e.Logger.Warn("failed to close redis client", "err", err)
		}
	}
}
