// Command server runs the planrelay HTTP service and a few operator commands
// against the same store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rohits-web03/planrelay/internal/api"
	"github.com/rohits-web03/planrelay/internal/api/handlers"
	"github.com/rohits-web03/planrelay/internal/config"
)

// @title planrelay API
// @version 1.0
// @description Folders, plans and input files launched on the Remote Planning API.
// @BasePath /
func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "planrelay",
		Short:        "Plan lifecycle service for the Remote Planning API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})
	cmd.AddCommand(planCmd())
	return cmd
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect or launch a plan",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status <plan-id>",
		Short: "Print a plan after refreshing it from the remote system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid plan id %q", args[0])
			}
			a, err := newApp(config.Envs, newLogger(config.Envs))
			if err != nil {
				return err
			}
			defer a.Close()
			plan, err := a.planner.GetPlan(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, plan)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "launch <plan-id>",
		Short: "Launch a plan and wait for the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid plan id %q", args[0])
			}
			a, err := newApp(config.Envs, newLogger(config.Envs))
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.planner.LaunchPlan(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if len(res.Errors) > 0 {
				return fmt.Errorf("plan ended in %s", res.State)
			}
			return nil
		},
	})
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func serve(ctx context.Context) error {
	cfg := config.Envs
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := handlers.New(a.planner, cfg.MaxUploadBytes, logger)
	mux := api.SetupRouter(h, cfg.CorsConfig, a.registry, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: mux,
		// Timeouts prevent resource exhaustion from slow clients; uploads and
		// launches lift the write deadline themselves
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting planrelay server", "port", cfg.Port, "env", cfg.Environment)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on port %s: %w", cfg.Port, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
