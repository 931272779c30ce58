package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/pie/internal/config"
	"github.com/aretw0/pie/internal/presentation/tui"
	"github.com/aretw0/pie/pkg/apps"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/fragment"
	"github.com/aretw0/pie/pkg/ports"
)

// RunOptions controls how a run is printed.
type RunOptions struct {
	JSON  bool
	Quiet bool
	// Limit caps the vertex rows of the report; zero shows them all.
	Limit int
}

// LoadGraph reads and partitions the graph named by cfg.
func LoadGraph(cfg config.Config) ([]ports.Fragment, error) {
	var opts []fragment.Option
	if cfg.Directed {
		opts = append(opts, fragment.Directed())
	}
	frags, err := fragment.LoadFile(cfg.Graph, cfg.Partitions, cfg.Partitioner, opts...)
	if err != nil {
		return nil, err
	}
	return fragment.Ports(frags), nil
}

// Execute runs the configured program once and returns the report.
func Execute(ctx context.Context, env *Env) (*tui.Report, error) {
	cfg := env.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	frags, err := LoadGraph(cfg)
	if err != nil {
		return nil, err
	}
	args, err := domain.ArgsFrom(cfg.Params)
	if err != nil {
		return nil, domain.ArgumentError("params", err)
	}

	opts := apps.RunOptions{
		Group:    cfg.Group,
		Parallel: domain.ParallelSpec{Threads: cfg.Threads},
		Args:     args,
		Key:      cfg.ResultKey,
	}
	if cfg.Transport == config.TransportRedis {
		opts.Redis = env.Redis
		opts.TransportPrefix = cfg.Redis.Prefix + "comm:"
	}

	env.Logger.Info("running program", "app", cfg.App, "graph", cfg.Graph, "partitions", len(frags), "transport", cfg.Transport)
	start := time.Now()
	views, err := apps.Run(ctx, env.Runtime, env.Loader, cfg.App, frags, opts)
	if err != nil {
		env.Logger.Error("run failed", "app", cfg.App, "kind", domain.KindOf(err), "err", err)
		return nil, err
	}
	report := &tui.Report{App: cfg.App, Key: cfg.ResultKey, Duration: time.Since(start), Views: views}
	env.Logger.Info("run finished", "app", cfg.App, "duration", report.Duration)
	return report, nil
}

// Print writes report to w as JSON or as rendered markdown.
func Print(w io.Writer, report *tui.Report, opts RunOptions) error {
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Views)
	}
	report.Limit = opts.Limit
	out, err := tui.NewRenderer()(report.Markdown())
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}
