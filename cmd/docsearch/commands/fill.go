package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewFillEmbeddingsCmd creates the fill-embeddings command
func NewFillEmbeddingsCmd() *cobra.Command {
	var (
		limit     int
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "fill-embeddings",
		Short: "Compute embeddings for documents stored without one",
		Long: `Run one backfill pass over documents whose embedding is missing and print
a summary. Failed documents are reported and left for a later pass.`,
		Example: `  docsearch fill-embeddings
  docsearch fill-embeddings -n 100 --batch-size 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be non-negative")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if batchSize <= 0 {
				batchSize = cfg.BatchSize
			}

			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := a.reconciler.TryReconcile(ctx, 0, batchSize, limit)
			if err != nil {
				return fmt.Errorf("backfill failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum documents to process (0 for all)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Documents per selection (default EMBEDDING_BATCH_SIZE)")
	return cmd
}
