package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dshills/artifact-index/pkg/types"
)

var (
	queryFilter types.Filter
	queryJSON   bool
)

func init() {
	f := queryCmd.Flags()
	f.StringVar(&queryFilter.VaultID, "vault-id", "", "vault id")
	f.StringVar(&queryFilter.VaultName, "vault-name", "", "vault name")
	f.StringVarP(&queryFilter.Type, "type", "t", "", "artifact type")
	f.StringVarP(&queryFilter.Category, "category", "c", "", "artifact category")
	f.StringSliceVar(&queryFilter.Tags, "tag", nil, "required tag (repeatable)")
	f.IntVarP(&queryFilter.Limit, "limit", "n", 0, "maximum number of paths")
	f.StringVar(&queryFilter.OrderBy, "order-by", "", "sort column: created_at, updated_at, title or id")
	f.BoolVar(&queryFilter.OrderDesc, "desc", false, "sort descending")
	f.BoolVar(&queryJSON, "json", false, "print JSON")
}

// queryCmd lists artifacts matching exact filters
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List metadata files of artifacts matching filters",
	Long: `List the metadata file paths of indexed artifacts. Every given filter must
match; tags must all be present.

Examples:
  # All design documents tagged api, newest first
  artindex query --type design --tag api --order-by updated_at --desc`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	paths, err := a.index.QueryIndex(cmd.Context(), queryFilter)
	if err != nil {
		return err
	}

	if queryJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(paths)
	}
	for _, p := range paths {
		cmd.Println(p)
	}
	return nil
}
