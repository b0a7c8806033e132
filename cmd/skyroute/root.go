package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "skyroute",
	Short: "Skyroute - cache-aware reverse proxy gateway",
	Long: `Skyroute is a reverse proxy gateway that routes inbound requests by
domain and path prefix to configured upstream targets.

It provides:
  - Per-route CORS policies (disabled, permissive, or structured)
  - A disk-backed, per-identity response cache with TTL and size bounds
  - Automatic retry with backoff for rate-limited upstreams
  - On-demand PDF-to-image conversion via external tools`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
