package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore reads keys as paths relative to a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	if root == "" {
		root = "."
	}
	return &LocalStore{root: root}
}

func (s *LocalStore) path(key string) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, rel), nil
}

func (s *LocalStore) Download(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *LocalStore) Size(ctx context.Context, key string) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
