package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/artifact-index/internal/searcher"
)

var (
	searchMode  string
	searchLimit int
	searchJSON  bool
)

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", string(searcher.SearchModeHybrid), "hybrid, keyword or vector")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default search.default_limit)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print JSON")
}

// searchCmd runs a ranked search
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search artifacts by keywords and meaning",
	Long: `Search artifact titles and descriptions. Hybrid mode fuses full-text and
semantic results with Reciprocal Rank Fusion.

Examples:
  artindex search "payment retries"
  artindex search --mode keyword kafka`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	resp, err := a.searcher.Search(cmd.Context(), searcher.SearchRequest{
		Query: strings.Join(args, " "),
		Limit: searchLimit,
		Mode:  searcher.SearchMode(searchMode),
	})
	if err != nil {
		return err
	}

	if searchJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Results)
	}

	if len(resp.Results) == 0 {
		cmd.Println("No results.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tARTIFACT\tTITLE\tFILE")
	for _, r := range resp.Results {
		fmt.Fprintf(tw, "%d\t%.4f\t%s\t%s\t%s\n", r.Rank, r.RelevanceScore, r.ArtifactID, r.Title, r.MetadataFilePath)
	}
	return tw.Flush()
}
