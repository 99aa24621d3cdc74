package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docsearch/internal/embedder"
)

const previewComponents = 5

// NewEmbedCmd creates the embed command
func NewEmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed TEXT",
		Short: "Embed text with the configured provider",
		Long:  `Embed TEXT once with the configured provider and print the provider details and the first vector components. Useful for checking credentials.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			emb, err := embedder.New(embedderConfig(cfg))
			if err != nil {
				return err
			}
			defer func() { _ = emb.Close() }()

			start := time.Now()
			vector, err := emb.Embed(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("embedding failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider:  %s\n", emb.Provider())
			fmt.Fprintf(out, "Model:     %s\n", emb.Model())
			fmt.Fprintf(out, "Dimension: %d\n", len(vector))
			fmt.Fprintf(out, "Latency:   %s\n", time.Since(start).Round(time.Millisecond))
			fmt.Fprintf(out, "Vector:    %v...\n", vector[:min(previewComponents, len(vector))])
			return nil
		},
	}
	return cmd
}
