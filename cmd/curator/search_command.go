package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed files by path and tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeIndex, err := ctx.openIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = closeIndex() }()

			query := strings.Join(args, " ")
			hits, err := client.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, hits)
			}

			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintf(out, "No matches for %q\n", query)
				return nil
			}
			rows := make([][]string, 0, len(hits))
			for _, hit := range hits {
				rows = append(rows, []string{
					hit.Path,
					strings.Join(hit.Tags, ", "),
					fmt.Sprintf("%.2f", hit.Score),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Path", "Tags", "Score"}, rows, 3))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	return cmd
}
