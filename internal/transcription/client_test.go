package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type recorded struct {
	format      string
	granularity string
	fileName    string
	model       string
	body        []byte
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, rec recorded)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		body, _ := io.ReadAll(f)
		rec := recorded{
			format:      r.FormValue("response_format"),
			granularity: r.FormValue("timestamp_granularities[]"),
			fileName:    hdr.Filename,
			model:       r.FormValue("model"),
			body:        body,
		}
		calls = append(calls, rec)
		handler(w, rec)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newClient(srv *httptest.Server, retry time.Duration) *Client {
	return New(Config{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "whisper-1", MaxRetryTime: retry})
}

func TestTranscribeText(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, rec recorded) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "  hello from the webinar \n")
	})

	text, err := newClient(srv, time.Second).TranscribeText(context.Background(), []byte("mp3data"), "talk.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("TranscribeText: %v", err)
	}
	if text != "hello from the webinar" {
		t.Fatalf("text = %q", text)
	}
	got := (*calls)[0]
	if got.format != "text" {
		t.Fatalf("response_format = %q, want text", got.format)
	}
	if got.fileName != "talk.mp3" || string(got.body) != "mp3data" || got.model != "whisper-1" {
		t.Fatalf("unexpected upload %+v", got)
	}
}

func TestTranscribeSegmented(t *testing.T) {
	srv, calls := newServer(t, func(w http.ResponseWriter, rec recorded) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"task": "transcribe",
			"language": "english",
			"duration": 12.5,
			"text": "Welcome everyone. Our customers saved forty percent.",
			"segments": [
				{"id": 0, "start": 0.0, "end": 4.2, "text": " Welcome everyone."},
				{"id": 1, "start": 4.2, "end": 6.0, "text": "   "},
				{"id": 2, "start": 6.0, "end": 12.5, "text": " Our customers saved forty percent."}
			]
		}`)
	})

	out, err := newClient(srv, time.Second).TranscribeSegmented(context.Background(), []byte("x"), "episode", "audio/mpeg")
	if err != nil {
		t.Fatalf("TranscribeSegmented: %v", err)
	}
	if len(out.Segments) != 2 {
		t.Fatalf("segments = %d, want 2 (blank segment dropped)", len(out.Segments))
	}
	if out.Segments[1].StartSeconds != 6.0 || out.Segments[1].EndSeconds != 12.5 {
		t.Fatalf("segment timing = %+v", out.Segments[1])
	}
	if out.Segments[0].Text != "Welcome everyone." {
		t.Fatalf("segment text = %q", out.Segments[0].Text)
	}
	got := (*calls)[0]
	if got.format != "verbose_json" || got.granularity != "segment" {
		t.Fatalf("format/granularity = %q/%q", got.format, got.granularity)
	}
	if got.fileName != "episode.mp3" {
		t.Fatalf("upload name = %q, want episode.mp3", got.fileName)
	}
}

func TestTranscribeRetriesServerErrors(t *testing.T) {
	var n int32
	srv, _ := newServer(t, func(w http.ResponseWriter, rec recorded) {
		if atomic.AddInt32(&n, 1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"error": {"message": "upstream hiccup", "type": "server_error"}}`)
			return
		}
		fmt.Fprint(w, "recovered")
	})

	text, err := newClient(srv, 10*time.Second).TranscribeText(context.Background(), []byte("x"), "a.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("TranscribeText: %v", err)
	}
	if text != "recovered" || atomic.LoadInt32(&n) != 2 {
		t.Fatalf("text = %q after %d calls", text, n)
	}
}

func TestTranscribeClientErrorIsBackendError(t *testing.T) {
	var n int32
	srv, _ := newServer(t, func(w http.ResponseWriter, rec recorded) {
		atomic.AddInt32(&n, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "Maximum content size limit exceeded", "type": "invalid_request_error"}}`)
	})

	_, err := newClient(srv, 10*time.Second).TranscribeText(context.Background(), []byte("x"), "a.mp4", "video/mp4")
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("error = %v, want *BackendError", err)
	}
	if be.Op != "text" {
		t.Fatalf("Op = %q, want text", be.Op)
	}
	if atomic.LoadInt32(&n) != 1 {
		t.Fatalf("4xx should not be retried, got %d calls", n)
	}
}

func TestUploadName(t *testing.T) {
	cases := []struct {
		name, mime, want string
	}{
		{"clip.mp4", "video/mp4", "clip.mp4"},
		{"clip", "video/mp4", "clip.mp4"},
		{"voice", "audio/wav; codecs=1", "voice.wav"},
		{"", "audio/mpeg", "audio.mp3"},
		{"dir/sub/memo", "", "memo.mp3"},
	}
	for _, tc := range cases {
		if got := uploadName(tc.name, tc.mime); got != tc.want {
			t.Fatalf("uploadName(%q, %q) = %q, want %q", tc.name, tc.mime, got, tc.want)
		}
	}
}
