// ravenctl is the operator console for a raven automation platform
// deployment: authentication, resource browsing and execution, plugin and
// scope inspection, pipeline I/O management, and a live event tail.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/raven-automation/ravenctl/cmd/ravenctl/cli"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "ravenctl",
		Short:   "raven platform operator console",
		Version: version,
	}

	rootCmd.PersistentFlags().String("host", "", "API host (overrides config)")
	rootCmd.PersistentFlags().Bool("insecure", false, "Skip TLS verification (lab deployments)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace|debug|info|warn|error)")

	cli.RegisterAuthCommands(rootCmd)
	cli.RegisterScopeCommands(rootCmd)
	cli.RegisterResourceCommands(rootCmd)
	cli.RegisterPluginCommands(rootCmd)
	cli.RegisterPipelineCommands(rootCmd)
	cli.RegisterEventCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
