package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"media-insights-go/internal/app"
	"media-insights-go/internal/media"
	"media-insights-go/internal/strategy"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report the transcoder and configuration this process would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.ensureConfig()
			res := app.Resolve(cfg)
			p := media.CurrentPlatform()

			binary := res.Binary
			if binary == "" {
				binary = "-"
			}
			rows := [][]string{
				{"Platform", p.OS + "/" + p.Arch},
				{"Transcoder source", res.Source},
				{"Transcoder binary", binary},
				{"Blob backend", cfg.BlobBackend},
				{"Segment backend", cfg.SegmentBackend},
				{"Transcription model", cfg.TranscribeModel},
				{"Analysis model", cfg.AnalysisModel},
				{"Direct upload limit", humanize.IBytes(uint64(strategy.TranscribeLimit))},
				{"Max processable", humanize.IBytes(uint64(strategy.MaxProcessable))},
			}
			if res.Detail != "" {
				rows = append(rows, []string{"Transcoder detail", res.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Value"}, rows, nil))

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration problems:\n%w", err)
			}
			if res.Source == "none" {
				fmt.Fprintln(cmd.OutOrStdout(), "Warning: video files above the direct upload limit cannot be processed without ffmpeg")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration OK")
			return nil
		},
	}
}
