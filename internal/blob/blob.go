// Package blob fetches uploaded media bytes by location key.
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-insights-go/internal/config"
)

// ErrNotFound is returned when the key does not exist in the store.
var ErrNotFound = errors.New("blob not found")

// Downloader is the only capability the pipeline needs from storage.
type Downloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// Sizer is implemented by stores that can report an object's size from
// metadata without fetching it.
type Sizer interface {
	Size(ctx context.Context, key string) (int64, error)
}

// Open builds the store selected in cfg.
func Open(cfg config.Config) (Downloader, error) {
	switch cfg.BlobBackend {
	case "", "local":
		return NewLocalStore(cfg.BlobLocalDir), nil
	case "http":
		return NewHTTPStore(cfg.BlobHTTPBaseURL, cfg.HTTPTimeout, 30*time.Second), nil
	case "supabase":
		s, err := NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
