package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/artifact-index/internal/driver"
)

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("artindex\n")
		cmd.Printf("Version: %s\n", version)
		cmd.Printf("Build Time: %s\n", buildTime)
		cmd.Printf("Build Mode: %s\n", driver.BuildMode)
		cmd.Printf("Backends: %v\n", driver.Available())
		cmd.Printf("Vector Extension: %v\n", driver.SQLiteVectorExtension)
	},
}
