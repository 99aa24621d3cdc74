package commands

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docsearch/internal/api"
	"github.com/dshills/docsearch/internal/metrics"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with background workers",
		Long: `Run the HTTP API together with the background job workers and the
rate-limiter reclamation loop. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, metrics.New())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	server := api.NewServer(api.Deps{
		Documents:      a.docs,
		Reconciler:     a.reconciler,
		Health:         a.store,
		Embedder:       a.embedder.Uncached(),
		Auth:           a.auth,
		Limiter:        a.limiter,
		Metrics:        a.metrics,
		APIKeyHeader:   cfg.APIKeyName,
		AllowedOrigins: cfg.AllowedOrigins,
		BatchSize:      cfg.BatchSize,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.ListenAndServe(ctx, cfg.ListenAddr) })
	g.Go(func() error { return a.queue.Run(ctx) })
	g.Go(func() error { return a.limiter.Run(ctx, a.limiter.Window()) })

	err = g.Wait()
	log.Println("Server stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
