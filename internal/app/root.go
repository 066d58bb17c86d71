// Package app implements the cubby command-line interface.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	dbPath string

	// RootCmd is the root command for cubby
	RootCmd = &cobra.Command{
		Use:   "cubby",
		Short: "Container assignment engine for suffix-based browsing isolation",
		Long: `cubby decides which browser container each tab belongs to, using
domain-suffix rules with defined precedence and public-suffix-aware
domain boundaries.

The engine runs as a native-messaging host ('cubby serve') that the
browser extension talks to over stdin/stdout. Container definitions and
suffix rules persist in a local sqlite database, so the same state can
be inspected and edited from this CLI while the host is not running.

Rule forms:
  example.com     exact: matches only example.com
  *example.com    wildcard: matches example.com and all subdomains
  !example.com    exclusion: never auto-assign this suffix

Examples:
  # List containers
  cubby containers

  # Show one container's rules
  cubby containers cubby-2f1c

  # Check the public suffix list
  cubby psl status

  # Refresh the public suffix list
  cubby psl update

  # Import identities exported from another extension
  cubby migrate identities.json --detect-temp`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("cubby: container assignment engine")
			fmt.Println()
			fmt.Println("Run 'cubby serve' from a native-messaging manifest.")
			fmt.Println("Run 'cubby --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.cubby/cubby.db)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(containersCmd)
	RootCmd.AddCommand(pslCmd)
	RootCmd.AddCommand(migrateCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// getDBPath returns the database path, using the flag value or default
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	// Create .cubby directory if it doesn't exist
	cubbyDir := filepath.Join(home, ".cubby")
	if err := os.MkdirAll(cubbyDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cubby directory: %w", err)
	}

	return filepath.Join(cubbyDir, "cubby.db"), nil
}
