package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"media-insights-go/internal/app"
	"media-insights-go/internal/types"
)

func newSegmentsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit    int
		jsonFlag bool
	)
	cmd := &cobra.Command{
		Use:   "segments <asset-id> [query]",
		Short: "List or search the stored transcript segments of an asset",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID := args[0]
			query := ""
			if len(args) == 2 {
				query = args[1]
			}
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				var (
					segs []types.Segment
					err  error
				)
				if query == "" {
					segs, err = a.Segments.ListSegments(cmd.Context(), assetID)
					if err == nil && limit > 0 && len(segs) > limit {
						segs = segs[:limit]
					}
				} else {
					segs, err = a.Segments.Search(cmd.Context(), assetID, query, limit)
				}
				if err != nil {
					return err
				}
				if jsonFlag {
					return writeJSON(cmd, segs)
				}
				if len(segs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No segments found")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderSegments(segs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum segments to show (0 = all)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print segments as JSON")
	return cmd
}

func renderSegments(segs []types.Segment) string {
	rows := make([][]string, 0, len(segs))
	for _, s := range segs {
		rows = append(rows, []string{clock(s.StartSeconds), clock(s.EndSeconds), strings.TrimSpace(s.Text)})
	}
	return renderTable([]string{"Start", "End", "Text"}, rows, []columnAlignment{alignRight, alignRight, alignLeft})
}

// clock formats seconds as [h:]mm:ss.
func clock(sec float64) string {
	total := int(sec)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
