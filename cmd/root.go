package cmd

import (
	"fmt"
	"os"

	"github.com/ghcr-tools/ghcr-prune/internal/logging"
	"github.com/ghcr-tools/ghcr-prune/internal/quiet"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags
	// Example: go build -ldflags "-X github.com/ghcr-tools/ghcr-prune/cmd.Version=v1.0.0"
	Version = "dev"
)

// NewRootCmd creates a new root command with isolated flag state.
// This enables parallel test execution by avoiding shared global state.
func NewRootCmd() *cobra.Command {
	var logAPICalls bool
	var quietMode bool

	root := &cobra.Command{
		Use:   "ghcr-prune",
		Short: "Prune obsolete artifacts from a GitHub Container Registry package",
		Long: fmt.Sprintf(`ghcr-prune version %s

A command-line tool and GitHub Action for pruning obsolete container
artifacts from a ghcr.io package, while preserving the referential
integrity of every artifact it keeps (multi-arch indexes, attestations).

It provides functionality for:
- Running the prune engine against a package (the "run" command/Action entrypoint)
- Exploring a package's artifact graph (image, SBOM, provenance, signatures)
- Managing individual tags`, Version),
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			if logAPICalls {
				ctx = logging.EnableLogging(ctx)
			}
			if quietMode {
				ctx = quiet.EnableQuiet(ctx)
			}
			cmd.SetContext(ctx)
		},
	}

	root.Version = Version

	root.PersistentFlags().BoolVar(&logAPICalls, "log-api-calls", false, "Log all API calls with timing and categorization to stderr")
	root.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Suppress informational output (for scripting)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newTagCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

// rootCmd is the global command instance used by main.go
var rootCmd = NewRootCmd()

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
