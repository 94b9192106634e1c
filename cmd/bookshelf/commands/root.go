package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bookshelf/internal/config"
)

var (
	// Global flags
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "bookshelf",
	Short: "Library catalog API",
	Long: `bookshelf serves a REST API for a library catalog of users, books and reviews.

Running without a subcommand is the same as "bookshelf serve".`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.ConfigPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the config")
}
