// Package segments persists timestamped transcript segments for deep search
// within a single asset.
package segments

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"media-insights-go/internal/config"
	"media-insights-go/internal/types"
)

// Store holds segments keyed by asset id. ReplaceSegments discards any
// previous segments of the asset and installs the new set atomically:
// readers see either the old set or the new one, never a mix.
type Store interface {
	ReplaceSegments(ctx context.Context, assetID string, segs []types.Segment) error
	ListSegments(ctx context.Context, assetID string) ([]types.Segment, error)
	Search(ctx context.Context, assetID, query string, limit int) ([]types.Segment, error)
	Close() error
}

// Open connects the backend selected in cfg.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.SegmentBackend {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres":
		return OpenPostgres(ctx, PostgresConfig{DSN: cfg.PostgresDSN, MaxOpenConns: 10, MaxIdleConns: 5})
	case "mongo":
		m, err := OpenMongo(ctx, MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDatabase, Collection: cfg.MongoCollection})
		if err != nil {
			return nil, err
		}
		return m, nil
	case "none":
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown segment backend %q", cfg.SegmentBackend)
	}
}

// Discard drops writes and returns nothing; used when deep search is off.
type Discard struct{}

func (Discard) ReplaceSegments(context.Context, string, []types.Segment) error { return nil }
func (Discard) ListSegments(context.Context, string) ([]types.Segment, error) { return nil, nil }
func (Discard) Search(context.Context, string, string, int) ([]types.Segment, error) {
	return nil, nil
}
func (Discard) Close() error { return nil }

func requireAsset(assetID string) error {
	if strings.TrimSpace(assetID) == "" {
		return fmt.Errorf("segments: asset id required")
	}
	return nil
}

// filterSegments applies a case-insensitive substring match and limit to an
// already ordered slice.
func filterSegments(segs []types.Segment, query string, limit int) []types.Segment {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []types.Segment
	for _, s := range segs {
		if q != "" && !strings.Contains(strings.ToLower(s.Text), q) {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func sortByStart(segs []types.Segment) {
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].StartSeconds < segs[j].StartSeconds })
}
