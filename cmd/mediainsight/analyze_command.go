package main

import (
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"media-insights-go/internal/app"
	"media-insights-go/internal/processor"
	"media-insights-go/internal/types"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		req      types.AnalyzeRequest
		jsonFlag bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <location-key>",
		Short: "Analyze one media file from the blob store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.MediaLocationKey = args[0]
			if req.FileName == "" {
				req.FileName = path.Base(req.MediaLocationKey)
			}
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				res := processor.Process(cmd.Context(), a.Pipeline, req, a.Config.PipelineTimeout)
				if jsonFlag {
					if err := writeJSON(cmd, res); err != nil {
						return err
					}
				} else {
					printResult(cmd.OutOrStdout(), res)
				}
				if !res.OK() {
					return fmt.Errorf("analysis failed: %s", res.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.FileName, "name", "", "Original file name (defaults to the key's base name)")
	cmd.Flags().StringVar(&req.FileType, "type", "", "MIME type, e.g. video/mp4")
	cmd.Flags().StringVar(&req.AssetID, "asset", "", "Asset id; enables segment storage")
	cmd.Flags().StringVar(&req.AdditionalContext, "context", "", "Notes passed to the analysis model")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the full result as JSON")
	return cmd
}

func printResult(w io.Writer, res processor.Result) {
	if !res.OK() {
		kind := string(res.ErrorKind)
		if kind == "" {
			kind = "Error"
		}
		fmt.Fprintf(w, "%s: %s\n", kind, res.Error)
		if res.Remediation != "" {
			fmt.Fprintf(w, "\n%s\n", res.Remediation)
		}
		return
	}
	a := res.Analysis
	fmt.Fprintln(w, renderTable(
		[]string{"Field", "Value"},
		[][]string{
			{"Content type", string(a.ContentType)},
			{"Suggested asset", string(a.SuggestedAssetType)},
			{"Audio quality", strconv.Itoa(a.AudioQualityScore)},
			{"Minutes", strconv.Itoa(a.EstimatedDurationMinutes)},
			{"Topics", strings.Join(a.Topics, ", ")},
			{"Pain points", strings.Join(a.PainPointsMentioned, ", ")},
			{"Summary", a.Summary},
		},
		nil,
	))
	if len(a.Snippets) > 0 {
		rows := make([][]string, 0, len(a.Snippets))
		for _, s := range a.Snippets {
			rows = append(rows, []string{string(s.Type), s.Content, s.Speaker, s.Timestamp, strconv.Itoa(s.ConfidenceScore)})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Type", "Snippet", "Speaker", "At", "Conf"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
	}
	if c := res.ActionCard; c != nil {
		fmt.Fprintf(w, "Next: %s\n%s\n", c.Action, c.Impact)
	}
}
