// Package main implements the artindex CLI: the MCP server plus manual
// rebuild, query and search operations against the artifact index.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// version information
	version   = "dev"
	buildTime = "unknown"
)

// Persistent flags shared by every command
var (
	configPath string
	dbPath     string
	backend    string
	logLevel   string
	logFormat  string
)

func main() {
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "artindex",
	Short: "Metadata index and search engine for artifact vaults",
	Long: `artindex maintains a regenerable index over the YAML metadata files of an
artifact vault. It answers exact-filter queries, full-text search and
semantic search, and serves them to AI assistants over MCP.

Configuration is read from ~/.config/artindex/config.yaml and overridden by
ARTINDEX_* environment variables and command-line flags.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/artindex/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "index database file")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "database backend: sqlite or duckdb")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or console")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
