// Package commands implements the photosyncd CLI subcommands.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "photosyncd",
	Short: "PhotoSync backup server",
	Long: `photosyncd serves PhotoSync's classic per-device backup store and the
StealthCloud zero-knowledge chunked object store behind one HTTP API,
and runs the background maintenance workers that keep disk usage, quota,
and subscription state reconciled.

Configuration is read entirely from the environment; the recognized
variables are those bound in internal/config. Use "photosyncd [command] --help" for details on
a specific subcommand.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(capacityReportCmd)
	rootCmd.AddCommand(initAdminCmd)
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
