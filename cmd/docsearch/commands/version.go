package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/docsearch/internal/storage"
)

var versionInfo = struct {
	Version   string
	BuildTime string
}{
	Version:   "dev",
	BuildTime: "unknown",
}

// SetVersion sets the version information (called from main)
func SetVersion(version, buildTime string) {
	versionInfo.Version = version
	versionInfo.BuildTime = buildTime
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the version, build time and SQLite build mode.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "docsearch %s\n", versionInfo.Version)
			fmt.Fprintf(out, "Build Time: %s\n", versionInfo.BuildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		},
	}
}
