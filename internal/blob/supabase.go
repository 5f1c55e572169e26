package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseStore reads objects from one Supabase Storage bucket.
type SupabaseStore struct {
	storage *storage_go.Client
	bucket  string
}

func NewSupabaseStore(projectURL, key, bucket string) (*SupabaseStore, error) {
	if bucket == "" {
		return nil, errors.New("supabase bucket is required")
	}
	client, err := supabase.NewClient(strings.TrimRight(projectURL, "/"), key, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase SDK: %w", err)
	}
	return &SupabaseStore{storage: client.Storage, bucket: bucket}, nil
}

// The storage SDK takes no context; ctx is only checked before the call.
func (s *SupabaseStore) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.storage.DownloadFile(s.bucket, strings.TrimPrefix(key, "/"))
	if err != nil {
		return nil, fmt.Errorf("supabase download %s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

const (
	listPageSize = 100
	// listMaxPages bounds the scan; a hint that is not found is only a
	// missed early rejection.
	listMaxPages = 50
)

// Size looks the object up in its folder listing and reads metadata.size.
// storage-go's list call has no name filter, so the folder is paged through
// in name order.
func (s *SupabaseStore) Size(ctx context.Context, key string) (int64, error) {
	key = strings.TrimPrefix(key, "/")
	dir, name := path.Split(key)
	prefix := strings.TrimSuffix(dir, "/")

	for page := 0; page < listMaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		files, err := s.storage.ListFiles(s.bucket, prefix, storage_go.FileSearchOptions{
			Limit:         listPageSize,
			Offset:        page * listPageSize,
			SortByOptions: storage_go.SortBy{Column: "name", Order: "asc"},
		})
		if err != nil {
			return 0, fmt.Errorf("supabase list %s: %w", dir, err)
		}
		for _, f := range files {
			if f.Name != name {
				continue
			}
			meta, ok := f.Metadata.(map[string]interface{})
			if !ok {
				return 0, fmt.Errorf("supabase object %s has no metadata", key)
			}
			if size, ok := meta["size"].(float64); ok {
				return int64(size), nil
			}
			return 0, fmt.Errorf("supabase object %s has no size", key)
		}
		if len(files) < listPageSize {
			break
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
}
