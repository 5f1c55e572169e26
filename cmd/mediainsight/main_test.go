package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"media-insights-go/internal/app"
	"media-insights-go/internal/blob"
	"media-insights-go/internal/config"
	"media-insights-go/internal/pipeline"
	"media-insights-go/internal/segments"
	"media-insights-go/internal/types"
)

type fakeTranscriber struct{ text string }

func (f fakeTranscriber) TranscribeText(ctx context.Context, audio []byte, fileName, mimeType string) (string, error) {
	return f.text, nil
}

func (f fakeTranscriber) TranscribeSegmented(ctx context.Context, audio []byte, fileName, mimeType string) (types.TranscriptionOutcome, error) {
	return types.TranscriptionOutcome{
		FullText: f.text,
		Segments: []types.Segment{{StartSeconds: 0, EndSeconds: 3, Text: f.text}},
	}, nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(ctx context.Context, transcript, additionalContext string) (types.AnalysisResult, error) {
	return types.AnalysisResult{
		ContentType:        types.ContentPodcast,
		Summary:            "Two founders on pricing.",
		SuggestedAssetType: types.AssetBlogPost,
		AudioQualityScore:  82,
		Snippets: []types.Snippet{
			{Type: types.SnippetValueProp, Content: "Setup takes five minutes", ConfidenceScore: 90},
		},
	}, nil
}

type cliTestEnv struct {
	dir   string
	store segments.Store
	ctx   *commandContext
}

func setupCLITestEnv(t *testing.T, transcript string) *cliTestEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := segments.OpenSQLite(context.Background(), filepath.Join(dir, "segments.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	env := &cliTestEnv{dir: dir, store: store}
	env.ctx = newCommandContext(new(string))
	env.ctx.build = func(ctx context.Context, cfg config.Config) (*app.App, error) {
		blobs := blob.NewLocalStore(dir)
		return &app.App{
			Config:   cfg,
			Blobs:    blobs,
			Segments: nopCloser{store},
			Pipeline: pipeline.New(blobs, nil, fakeTranscriber{text: transcript}, store, fakeAnalyzer{}),
		}, nil
	}
	return env
}

// nopCloser keeps the shared store open across commands.
type nopCloser struct{ segments.Store }

func (nopCloser) Close() error { return nil }

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommandWithContext(e.ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyzeAndSearchSegments(t *testing.T) {
	env := setupCLITestEnv(t, "we cut onboarding time in half")
	if err := os.WriteFile(filepath.Join(env.dir, "ep1.mp3"), []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "analyze", "ep1.mp3", "--type", "audio/mpeg", "--asset", "ep1")
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, out)
	}
	for _, want := range []string{"PODCAST", "BLOG_POST", "Setup takes five minutes", "Next:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("analyze output missing %q:\n%s", want, out)
		}
	}

	out, err = env.run(t, "segments", "ep1", "ONBOARDING")
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if !strings.Contains(out, "onboarding time") || !strings.Contains(out, "00:03") {
		t.Fatalf("segments output:\n%s", out)
	}

	out, err = env.run(t, "segments", "ep1", "pricing")
	if err != nil || !strings.Contains(out, "No segments found") {
		t.Fatalf("segments miss = %q, %v", out, err)
	}
}

func TestAnalyzeReportsPipelineError(t *testing.T) {
	env := setupCLITestEnv(t, "   ")
	if err := os.WriteFile(filepath.Join(env.dir, "silent.mp3"), []byte("hiss"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := env.run(t, "analyze", "silent.mp3")
	if err == nil {
		t.Fatal("expected failure for empty transcript")
	}
	if !strings.Contains(out, string(pipeline.KindNoSpeech)) {
		t.Fatalf("output = %q", out)
	}
}

func TestBatchWritesReport(t *testing.T) {
	env := setupCLITestEnv(t, "pricing came up twice")
	for _, name := range []string{"a.mp3", "b.mp3"} {
		if err := os.WriteFile(filepath.Join(env.dir, name), []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	manifest := filepath.Join(env.dir, "manifest.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{{"Location Key"}, {"a.mp3"}, {"b.mp3"}, {"missing.mp3"}}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := r
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(manifest); err != nil {
		t.Fatal(err)
	}
	f.Close()

	report := filepath.Join(env.dir, "report.xlsx")
	out, err := env.run(t, "batch", manifest, "-o", report)
	if err != nil {
		t.Fatalf("batch: %v\n%s", err, out)
	}
	for _, want := range []string{"[3/3] missing.mp3 failed: DownloadFailed", "Failure DownloadFailed", "Report written to"} {
		if !strings.Contains(out, want) {
			t.Fatalf("batch output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(report); err != nil {
		t.Fatalf("report: %v", err)
	}
}

func TestDoctor(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test")
	t.Setenv("BLOB_BACKEND", "local")
	t.Setenv("SEGMENT_BACKEND", "none")
	t.Setenv("FFMPEG_PATH", filepath.Join(t.TempDir(), "missing-ffmpeg"))

	env := setupCLITestEnv(t, "")
	out, err := env.run(t, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	for _, want := range []string{"Transcoder source", "none", "25 MiB", "Configuration OK"} {
		if !strings.Contains(out, want) {
			t.Fatalf("doctor output missing %q:\n%s", want, out)
		}
	}
}

func TestDoctorReportsConfigProblems(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("BLOB_BACKEND", "http")
	t.Setenv("BLOB_HTTP_BASE_URL", "")

	env := setupCLITestEnv(t, "")
	_, err := env.run(t, "doctor")
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") || !strings.Contains(err.Error(), "BLOB_HTTP_BASE_URL") {
		t.Fatalf("err = %v", err)
	}
}

func TestClock(t *testing.T) {
	cases := map[float64]string{0: "00:00", 65.4: "01:05", 3725: "1:02:05"}
	for in, want := range cases {
		if got := clock(in); got != want {
			t.Fatalf("clock(%v) = %q, want %q", in, got, want)
		}
	}
}
