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

	"github.com/dshills/docsearch/internal/mcp"
	"github.com/dshills/docsearch/internal/storage"
)

// NewMCPCmd creates the mcp command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server on stdio",
		Long: `Serve create_document, search_documents, fill_embeddings and get_status
as Model Context Protocol tools over stdin/stdout.`,
		RunE: runMCP,
		Example: `  # Configure in an MCP client:
  # {
  #   "mcpServers": {
  #     "docsearch": {"command": "docsearch", "args": ["mcp"]}
  #   }
  # }`,
	}
	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	server := mcp.NewServer(mcp.Deps{
		Documents:  a.docs,
		Reconciler: a.reconciler,
		Stats:      a.store,
		Embedder:   a.embedder,
		Auth:       a.auth,
		Limiter:    a.limiter,
		BuildMode:  storage.BuildMode,
		BatchSize:  cfg.BatchSize,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("MCP server ready, listening on stdio...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.queue.Run(ctx) })
	g.Go(func() error { return a.limiter.Run(ctx, a.limiter.Window()) })
	g.Go(func() error {
		if err := server.Serve(ctx); err != nil {
			return err
		}
		// stdin closed: stop the background loops too
		return context.Canceled
	})

	err = g.Wait()
	log.Println("Server stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
