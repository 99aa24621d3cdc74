// Package commands implements the docsearch command line.
package commands

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dshills/docsearch/internal/config"
)

var configPath string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Document store with semantic search",
		Long: `docsearch stores text documents with vector embeddings and answers
top-3 semantic queries, falling back to keyword search when the vector
path is unavailable.

Configuration is read from an optional YAML file (--config), then from
the environment. A .env file in the working directory is loaded first.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// stdout is reserved for MCP and command output
			log.SetOutput(os.Stderr)
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log.Printf("Warning: failed to load .env: %v", err)
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	cmd.AddCommand(
		NewServeCmd(),
		NewMCPCmd(),
		NewFillEmbeddingsCmd(),
		NewEmbedCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
