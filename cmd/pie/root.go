package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/pie/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "pie",
	Short: "pie runs partitioned graph programs in the PIE model",
	Long: `pie splits a graph into fragments and runs one worker per fragment through
Init, PEval and IncEval supersteps until no messages remain.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	addConfigFlags(rootCmd.PersistentFlags())
}

// addConfigFlags declares the flags that override config file fields.
func addConfigFlags(f *pflag.FlagSet) {
	f.StringP("config", "c", config.DefaultPath, "Configuration file (YAML or JSON)")
	f.String("log-level", "", "Log level: debug, info, warn, error")
	f.String("app", "", "Program to run (see 'pie apps')")
	f.StringP("graph", "g", "", "Edge list file")
	f.BoolP("directed", "d", false, "Treat edges as directed")
	f.IntP("partitions", "n", 0, "Number of fragments")
	f.String("partitioner", "", "Partitioner: hash or range")
	f.IntP("threads", "t", 0, "Goroutines per worker")
	f.String("transport", "", "Worker transport: memory or redis")
	f.String("store", "", "Result store: memory or redis")
	f.String("redis-addr", "", "Redis address")
	f.String("params", "", "Query params as a JSON object")
	f.StringP("key", "k", "", "Key the results are published under")
	f.Int("max-supersteps", 0, "Abort after this many IncEval rounds (0: unbounded)")
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	str("log-level", &cfg.LogLevel)
	str("app", &cfg.App)
	str("graph", &cfg.Graph)
	str("partitioner", &cfg.Partitioner)
	str("transport", &cfg.Transport)
	str("store", &cfg.Store)
	str("redis-addr", &cfg.Redis.Addr)
	str("key", &cfg.ResultKey)
	num("partitions", &cfg.Partitions)
	num("threads", &cfg.Threads)
	num("max-supersteps", &cfg.MaxSupersteps)
	if flags.Changed("directed") {
		cfg.Directed, _ = flags.GetBool("directed")
	}
	if flags.Changed("params") {
		raw, _ := flags.GetString("params")
		var params map[string]any
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return cfg, fmt.Errorf("error parsing --params JSON: %w", err)
		}
		cfg.Params = params
	}
	return cfg, nil
}
