// Package workbook reads batch manifests from and writes batch reports to
// xlsx workbooks.
package workbook

import (
	"fmt"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"media-insights-go/internal/logger"
	"media-insights-go/internal/types"
)

type columns struct {
	key, name, fileType, asset, context int
}

// detectColumns maps header cells to request fields by keyword.
func detectColumns(header []string) columns {
	c := columns{key: -1, name: -1, fileType: -1, asset: -1, context: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "asset"):
			if c.asset == -1 {
				c.asset = i
			}
		case strings.Contains(l, "key") || strings.Contains(l, "location") || strings.Contains(l, "path") || strings.Contains(l, "url"):
			if c.key == -1 {
				c.key = i
			}
		case strings.Contains(l, "type") || strings.Contains(l, "mime"):
			if c.fileType == -1 {
				c.fileType = i
			}
		case strings.Contains(l, "name") || strings.Contains(l, "file"):
			if c.name == -1 {
				c.name = i
			}
		case strings.Contains(l, "context") || strings.Contains(l, "notes"):
			if c.context == -1 {
				c.context = i
			}
		}
	}
	// fallback: first column holds the location key
	if c.key == -1 && len(header) > 0 {
		c.key = 0
	}
	return c
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// LoadManifest reads requests from the first sheet. Rows without a
// location key are skipped; a missing file name defaults to the key's base.
func LoadManifest(p string) ([]types.AnalyzeRequest, error) {
	log := logger.Component("workbook.manifest").WithField("path", p)
	f, err := excelize.OpenFile(p)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	cols := detectColumns(rows[0])
	log.WithFields(map[string]interface{}{
		"keyIdx":     cols.key,
		"nameIdx":    cols.name,
		"typeIdx":    cols.fileType,
		"assetIdx":   cols.asset,
		"contextIdx": cols.context,
	}).Info("detected manifest column indices")

	var out []types.AnalyzeRequest
	for _, r := range rows[1:] {
		req := types.AnalyzeRequest{
			MediaLocationKey:  cell(r, cols.key),
			FileName:          cell(r, cols.name),
			FileType:          cell(r, cols.fileType),
			AssetID:           cell(r, cols.asset),
			AdditionalContext: cell(r, cols.context),
		}
		if req.MediaLocationKey == "" {
			continue
		}
		if req.FileName == "" {
			req.FileName = path.Base(req.MediaLocationKey)
		}
		out = append(out, req)
	}
	log.WithField("requests", len(out)).Info("manifest loaded")
	return out, nil
}
