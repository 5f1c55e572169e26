package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"media-insights-go/internal/config"
)

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "uploads"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "uploads", "clip.mp4"), []byte("video-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewLocalStore(root)
	ctx := context.Background()

	data, err := s.Download(ctx, "uploads/clip.mp4")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Fatalf("Download = %q", data)
	}
	size, err := s.Size(ctx, "/uploads/clip.mp4")
	if err != nil || size != int64(len("video-bytes")) {
		t.Fatalf("Size = %d, %v", size, err)
	}

	if _, err := s.Download(ctx, "uploads/missing.mp4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err = %v, want ErrNotFound", err)
	}
	for _, key := range []string{"../etc/passwd", "uploads/../../x", ""} {
		if _, err := s.Download(ctx, key); err == nil || errors.Is(err, ErrNotFound) {
			t.Fatalf("Download(%q) err = %v, want invalid key error", key, err)
		}
	}
}

func TestHTTPStoreRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/media/a%20b/clip.mp4" {
			t.Errorf("path = %s", got)
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL+"/media/", time.Second, 5*time.Second)
	data, err := s.Download(context.Background(), "a b/clip.mp4")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "payload" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("data = %q calls = %d", data, calls)
	}
}

func TestHTTPStoreNotFoundIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, time.Second, 5*time.Second)
	_, err := s.Download(context.Background(), "nope.mp4")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestHTTPStoreSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.Header().Set("Content-Length", "629145600")
	}))
	defer srv.Close()

	size, err := NewHTTPStore(srv.URL, time.Second, time.Second).Size(context.Background(), "big.mp4")
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 629145600 {
		t.Fatalf("Size = %d, want 629145600", size)
	}
}

func newSupabaseServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("apikey"); got != "service-key" {
			t.Errorf("apikey = %q", got)
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/storage/v1/object/media/uploads/talk.mp4":
			_, _ = w.Write([]byte("mp4-bytes"))
		case r.Method == http.MethodPost && r.URL.Path == "/storage/v1/object/list/media":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"name":"other.mp4","metadata":{"size":10}},
				{"name":"talk.mp4","metadata":{"size":157286400,"mimetype":"video/mp4"}}
			]`))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"statusCode":"404","error":"not_found","message":"Object not found"}`))
		}
	}))
}

func TestSupabaseStore(t *testing.T) {
	srv := newSupabaseServer(t)
	defer srv.Close()

	s, err := NewSupabaseStore(srv.URL, "service-key", "media")
	if err != nil {
		t.Fatalf("NewSupabaseStore: %v", err)
	}
	ctx := context.Background()

	data, err := s.Download(ctx, "uploads/talk.mp4")
	if err != nil || string(data) != "mp4-bytes" {
		t.Fatalf("Download = %q, %v", data, err)
	}
	size, err := s.Size(ctx, "uploads/talk.mp4")
	if err != nil || size != 157286400 {
		t.Fatalf("Size = %d, %v", size, err)
	}
	if _, err := s.Size(ctx, "uploads/absent.mp4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Size(absent) err = %v, want ErrNotFound", err)
	}
	if _, err := s.Download(ctx, "uploads/absent.mp4"); err == nil {
		t.Fatal("expected error downloading missing object")
	}
}

func TestSupabaseSizePagesThroughLargeFolders(t *testing.T) {
	// 250 objects named clip-000.mp4 ... clip-249.mp4, served in pages.
	var offsets []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Limit  int    `json:"limit"`
			Offset int    `json:"offset"`
			Prefix string `json:"prefix"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode list body: %v", err)
		}
		if body.Prefix != "uploads" {
			t.Errorf("prefix = %q", body.Prefix)
		}
		offsets = append(offsets, body.Offset)
		var page []map[string]interface{}
		for i := body.Offset; i < body.Offset+body.Limit && i < 250; i++ {
			page = append(page, map[string]interface{}{
				"name":     fmt.Sprintf("clip-%03d.mp4", i),
				"metadata": map[string]interface{}{"size": 1000 + i},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	s, err := NewSupabaseStore(srv.URL, "service-key", "media")
	if err != nil {
		t.Fatal(err)
	}
	size, err := s.Size(context.Background(), "uploads/clip-180.mp4")
	if err != nil || size != 1180 {
		t.Fatalf("Size = %d, %v", size, err)
	}
	if len(offsets) != 2 || offsets[1] != listPageSize {
		t.Fatalf("offsets = %v", offsets)
	}

	offsets = nil
	if _, err := s.Size(context.Background(), "uploads/clip-999.mp4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Size(absent) err = %v", err)
	}
	if len(offsets) != 3 {
		t.Fatalf("scan stopped after %d pages, want 3", len(offsets))
	}
}

func TestOpen(t *testing.T) {
	d, err := Open(config.Config{BlobBackend: "local", BlobLocalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open(local): %v", err)
	}
	if _, ok := d.(Sizer); !ok {
		t.Fatal("local store should report sizes")
	}
	if _, err := Open(config.Config{BlobBackend: "ftp"}); err == nil || !strings.Contains(err.Error(), "ftp") {
		t.Fatalf("Open(ftp) err = %v", err)
	}
	if _, err := Open(config.Config{BlobBackend: "supabase", SupabaseBucket: "media"}); err == nil {
		t.Fatal("Open(supabase) without URL/key should fail")
	}
}
