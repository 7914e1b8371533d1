package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/artifact-index/internal/indexer"
	"github.com/dshills/artifact-index/internal/watcher"
)

var (
	watchNoRebuild bool
	watchDebounce  = watcher.DefaultDebounce
)

func init() {
	watchCmd.Flags().BoolVar(&watchNoRebuild, "no-rebuild", false, "skip the initial rebuild")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before applying changes")
}

// watchCmd keeps the index in sync with a vault
var watchCmd = &cobra.Command{
	Use:   "watch [vault]",
	Short: "Rebuild, then re-sync metadata files as they change",
	Long: `Rebuild the index from the vault, then watch it and apply every created,
modified or deleted metadata file until interrupted.

Examples:
  artindex watch ~/vault`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	if !watchNoRebuild {
		stats, err := a.indexer.Rebuild(ctx, root, &indexer.Config{})
		if err != nil {
			return err
		}
		cmd.Printf("Indexed %d of %d files, removed %d artifacts\n",
			stats.FilesIndexed, stats.FilesFound, stats.ArtifactsRemoved)
	}

	w, err := watcher.New(root, a.indexer, watcher.Options{
		Debounce: watchDebounce,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", root)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Done():
			return nil
		case ev := <-w.Events():
			if ev.Err != nil {
				cmd.PrintErrf("%s %s: %v\n", ev.Op, ev.Path, ev.Err)
				continue
			}
			cmd.Printf("%s %s\n", ev.Op, ev.Path)
		}
	}
}
