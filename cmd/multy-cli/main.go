// Multy-cli talks to Zyxel Multy mesh routers over their ZAPI interface.
//
// It discovers routers on the LAN, reads and watches router state, runs
// commands such as reboot or set-wifi, and can serve the live state cache to
// other programs over HTTP and WebSocket.
//
// Usage:
//
//	multy-cli [command] [flags]
//
// See 'multy-cli --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/multy/internal/logging"
	"github.com/muurk/multy/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "multy-cli",
	Short: "Zyxel Multy router client",
	Long: `A command line client for Zyxel Multy mesh routers.

Routers are addressed by a name from the configuration file (see 'login')
or directly with --host. The admin password is read from the config file,
from the environment variable named by password_env, or prompted for.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// An empty level falls back to MULTY_LOG_LEVEL
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("multy-cli %s (commit: %s)\n", version.Version, version.Commit)
	},
}
