package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/pqgate/pqgate/pkg/version"
)

// Build-time variables (set via -ldflags "-X github.com/pqgate/pqgate/internal/cli.GitCommit=...")
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pqgate version %s\n", version.String())
		if GitCommit != "unknown" {
			fmt.Printf("Git commit: %s\n", GitCommit)
		}
		if BuildDate != "unknown" {
			fmt.Printf("Build date: %s\n", BuildDate)
		}
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
