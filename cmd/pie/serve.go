package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/pie/internal/cli"
	httpAdapter "github.com/aretw0/pie/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve published results and metrics over HTTP",
	Long: `Starts an HTTP server exposing /results, /events and /metrics. When an app and a
graph are configured, the program runs once in the background after the server starts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("listen") {
			cfg.Listen, _ = cmd.Flags().GetString("listen")
		}

		env, err := cli.NewEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		handler := httpAdapter.NewHandler(env.Store,
			httpAdapter.WithStreams(env.Streams),
			httpAdapter.WithGatherer(env.Registry),
			httpAdapter.WithLogger(env.Logger),
		)
		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			env.Logger.Info("starting pie server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		if cfg.App != "" && cfg.Graph != "" {
			go func() {
				if _, err := cli.Execute(ctx, env); err != nil {
					env.Logger.Error("background run failed", "err", err)
				}
			}()
		}

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			env.Logger.Info("shutting down")

			// Give outstanding requests a deadline for completion.
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := srv.Shutdown(sctx); err != nil {
				env.Logger.Warn("graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			env.Logger.Info("pie server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", ":8080", "Address to listen on")
}
