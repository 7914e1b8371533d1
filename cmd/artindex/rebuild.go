package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/artifact-index/internal/indexer"
)

var (
	rebuildWorkers int
	rebuildVaultID string
	rebuildNoPrune bool
)

func init() {
	rebuildCmd.Flags().IntVarP(&rebuildWorkers, "workers", "w", 0, "concurrent parsers (default: number of CPUs)")
	rebuildCmd.Flags().StringVar(&rebuildVaultID, "vault-id", "", "only prune artifacts of this vault")
	rebuildCmd.Flags().BoolVar(&rebuildNoPrune, "no-prune", false, "keep index rows whose files are gone")
}

// rebuildCmd re-syncs a vault into the index
var rebuildCmd = &cobra.Command{
	Use:   "rebuild [vault]",
	Short: "Rebuild the index from a vault's metadata files",
	Long: `Parse every *.yaml and *.yml metadata file under the vault, sync each one
into the index together with its links, and drop index rows whose files no
longer exist.

Examples:
  # Rebuild the configured vault
  artindex rebuild

  # Rebuild a specific vault with 8 parsers
  artindex rebuild ~/vault -w 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRebuild,
}

func runRebuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	root, err := a.vaultRoot(args)
	if err != nil {
		return err
	}

	stats, err := a.indexer.Rebuild(ctx, root, &indexer.Config{
		Workers: rebuildWorkers,
		VaultID: rebuildVaultID,
		NoPrune: rebuildNoPrune,
	})
	if err != nil {
		return err
	}

	cmd.Printf("Rebuilt %s in %s\n", root, stats.Duration.Round(time.Millisecond))
	cmd.Printf("  files found:       %d\n", stats.FilesFound)
	cmd.Printf("  files indexed:     %d\n", stats.FilesIndexed)
	cmd.Printf("  files failed:      %d\n", stats.FilesFailed)
	cmd.Printf("  artifacts removed: %d\n", stats.ArtifactsRemoved)
	cmd.Printf("  links written:     %d\n", stats.LinksWritten)
	for _, msg := range stats.ErrorMessages {
		cmd.PrintErrf("  error: %s\n", msg)
	}
	return nil
}
