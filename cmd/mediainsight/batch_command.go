package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"media-insights-go/internal/aggregator"
	"media-insights-go/internal/app"
	"media-insights-go/internal/processor"
	"media-insights-go/internal/workbook"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "batch <manifest.xlsx>",
		Short: "Analyze every row of an xlsx manifest and write a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := workbook.LoadManifest(args[0])
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				return errors.New("manifest has no rows with a location key")
			}
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				stderr := cmd.ErrOrStderr()
				results := processor.RunBatch(cmd.Context(), a.Pipeline, reqs, a.Config.PipelineTimeout, func(i int, res processor.Result) {
					status := "ok"
					if !res.OK() {
						status = "failed: " + string(res.ErrorKind)
					}
					fmt.Fprintf(stderr, "[%d/%d] %s %s\n", i+1, len(reqs), res.Request.MediaLocationKey, status)
				})
				sum := aggregator.Aggregate(results)
				if err := workbook.WriteReport(out, results, sum); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary(sum))
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", out)
				return cmd.Context().Err()
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "report.xlsx", "Report path")
	return cmd
}

func renderSummary(sum aggregator.Summary) string {
	rows := [][]string{
		{"Total", strconv.Itoa(sum.Total)},
		{"Succeeded", strconv.Itoa(sum.Succeeded)},
		{"Failed", strconv.Itoa(sum.Failed)},
		{"Avg audio quality", fmt.Sprintf("%.1f", sum.AvgAudioQuality)},
		{"Total minutes", strconv.Itoa(sum.TotalMinutes)},
	}
	rows = append(rows, countRows("Content", sum.ContentTypeCounts)...)
	rows = append(rows, countRows("Failure", sum.FailureKinds)...)
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func countRows(label string, m map[string]int) [][]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, []string{label + " " + k, strconv.Itoa(m[k])})
	}
	return out
}
