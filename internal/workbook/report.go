package workbook

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"media-insights-go/internal/aggregator"
	"media-insights-go/internal/processor"
)

const (
	SheetResults  = "Results"
	SheetSnippets = "Snippets"
	SheetSummary  = "Summary"
)

var (
	resultsHeader = []interface{}{
		"Location Key", "File Name", "Asset ID", "Status", "Error Kind", "Error",
		"Content Type", "Suggested Asset", "Audio Quality", "Minutes", "Summary",
		"Topics", "Pain Points", "Action", "Duration (ms)",
	}
	snippetsHeader = []interface{}{
		"Location Key", "Type", "Content", "Speaker", "Timestamp", "Context", "Confidence",
	}
)

// WriteReport writes per-file results, every snippet and the roll-up.
func WriteReport(p string, results []processor.Result, sum aggregator.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetResults); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, s := range []string{SheetSnippets, SheetSummary} {
		if _, err := f.NewSheet(s); err != nil {
			return fmt.Errorf("new sheet %s: %w", s, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("style: %w", err)
	}

	w := &sheetWriter{f: f}
	w.row(SheetResults, 1, resultsHeader)
	snippetRow := 2
	w.row(SheetSnippets, 1, snippetsHeader)

	for i, r := range results {
		status := "ok"
		if !r.OK() {
			status = "failed"
		}
		row := []interface{}{
			r.Request.MediaLocationKey, r.Request.FileName, r.Request.AssetID, status,
			string(r.ErrorKind), r.Error,
		}
		if a := r.Analysis; a != nil {
			action := ""
			if r.ActionCard != nil {
				action = r.ActionCard.Action
			}
			row = append(row,
				string(a.ContentType), string(a.SuggestedAssetType), a.AudioQualityScore,
				a.EstimatedDurationMinutes, a.Summary,
				strings.Join(a.Topics, ", "), strings.Join(a.PainPointsMentioned, ", "),
				action,
			)
			for _, s := range a.Snippets {
				w.row(SheetSnippets, snippetRow, []interface{}{
					r.Request.MediaLocationKey, string(s.Type), s.Content, s.Speaker,
					s.Timestamp, s.Context, s.ConfidenceScore,
				})
				snippetRow++
			}
		} else {
			row = append(row, "", "", "", "", "", "", "", "")
		}
		row = append(row, r.DurationMs)
		w.row(SheetResults, i+2, row)
	}

	summaryRows := [][]interface{}{
		{"Metric", "Value"},
		{"Total", sum.Total},
		{"Succeeded", sum.Succeeded},
		{"Failed", sum.Failed},
		{"Average audio quality", fmt.Sprintf("%.1f", sum.AvgAudioQuality)},
		{"Total minutes", sum.TotalMinutes},
	}
	summaryRows = append(summaryRows, countRows("Content type", sum.ContentTypeCounts)...)
	summaryRows = append(summaryRows, countRows("Suggested asset", sum.AssetTypeCounts)...)
	summaryRows = append(summaryRows, countRows("Snippet type", sum.SnippetTypeCounts)...)
	summaryRows = append(summaryRows, countRows("Failure", sum.FailureKinds)...)
	for _, t := range sum.TopTopics {
		summaryRows = append(summaryRows, []interface{}{"Topic: " + t.Topic, t.Count})
	}
	for i, r := range summaryRows {
		w.row(SheetSummary, i+1, r)
	}

	for _, s := range []string{SheetResults, SheetSnippets, SheetSummary} {
		if w.err == nil {
			w.err = f.SetRowStyle(s, 1, 1, bold)
		}
	}
	if w.err == nil {
		w.err = f.SetColWidth(SheetResults, "K", "K", 60)
	}
	if w.err == nil {
		w.err = f.SetColWidth(SheetSnippets, "C", "C", 60)
	}
	if w.err != nil {
		return fmt.Errorf("write report: %w", w.err)
	}
	if err := f.SaveAs(p); err != nil {
		return fmt.Errorf("save %s: %w", p, err)
	}
	return nil
}

// sheetWriter keeps the first error so rows can be written without a
// check after each one.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) row(sheet string, n int, vals []interface{}) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetSheetRow(sheet, fmt.Sprintf("A%d", n), &vals)
}

func countRows(label string, m map[string]int) [][]interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, []interface{}{label + ": " + k, m[k]})
	}
	return out
}
