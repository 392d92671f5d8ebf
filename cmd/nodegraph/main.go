// Command nodegraph serves and administers a node graph store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/systemshift/nodegraph/internal/backends"
	"github.com/systemshift/nodegraph/internal/config"
	"github.com/systemshift/nodegraph/internal/graph"
	"github.com/systemshift/nodegraph/internal/logger"
	"github.com/systemshift/nodegraph/internal/tracing"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	configPath      string
	backendOverride string
)

var rootCmd = &cobra.Command{
	Use:           "nodegraph",
	Short:         "Transactional typed node graph over SQLite or Neo4j",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/nodegraph/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendOverride, "backend", "", "backend string, e.g. sqlite://graph.db or neo4j://host:7687")

	rootCmd.AddCommand(serveCmd, dumpCmd, statsCmd, migrateCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime is what every subcommand needs: settings, a logger and an open
// backend.
type runtime struct {
	cfg     *config.Config
	log     *slog.Logger
	backend *backends.Opened
	tracer  *sdktrace.TracerProvider
	store   *graph.Store
}

func setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if backendOverride != "" {
		cfg.Backend = backendOverride
	}
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	tp, err := tracing.Init(ctx, cfg.Tracing, Version, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	b, err := backends.Open(ctx, cfg.Backend, log)
	if err != nil {
		tracing.Shutdown(ctx, tp)
		return nil, fmt.Errorf("opening backend: %w", err)
	}
	traced := graph.Instrument(b, tp, log)
	return &runtime{
		cfg:     cfg,
		log:     log,
		backend: b,
		tracer:  tp,
		store:   graph.NewStore(traced, nil, log),
	}, nil
}

func (r *runtime) Close(ctx context.Context) {
	if err := r.backend.Close(ctx); err != nil {
		r.log.ErrorContext(ctx, "closing backend", "error", err)
	}
	if err := tracing.Shutdown(ctx, r.tracer); err != nil {
		r.log.ErrorContext(ctx, "flushing traces", "error", err)
	}
}

func (r *runtime) admin() (graph.Admin, error) {
	admin, ok := graph.AdminOf(r.backend.Backend)
	if !ok {
		return nil, fmt.Errorf("backend %q: %w", r.cfg.Backend, graph.ErrNotSupported)
	}
	return admin, nil
}
