// Package config reads service settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	TranscribeModel string
	AnalysisModel   string
	HTTPTimeout     time.Duration

	FFmpegPath      string
	FFmpegBundleDir string
	ScratchDir      string

	BlobBackend     string
	BlobLocalDir    string
	BlobHTTPBaseURL string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseBucket  string

	SegmentBackend  string
	SQLitePath      string
	PostgresDSN     string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	PipelineTimeout time.Duration
	// BatchDir confines the manifest and report paths accepted over HTTP.
	BatchDir string
}

// Load reads .env (when present) and the process environment.
func Load(envFiles ...string) Config {
	_ = godotenv.Load(envFiles...) // missing .env is fine

	return Config{
		Port:        envOr("PORT", "8080"),
		Environment: envOr("ENVIRONMENT", "local"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		TranscribeModel: envOr("TRANSCRIBE_MODEL", "whisper-1"),
		AnalysisModel:   envOr("ANALYSIS_MODEL", "gpt-4o-mini"),
		HTTPTimeout:     seconds("HTTP_TIMEOUT_SEC", 300),

		FFmpegPath:      os.Getenv("FFMPEG_PATH"),
		FFmpegBundleDir: os.Getenv("FFMPEG_BUNDLE_DIR"),
		ScratchDir:      envOr("SCRATCH_DIR", os.TempDir()),

		BlobBackend:     strings.ToLower(envOr("BLOB_BACKEND", "local")),
		BlobLocalDir:    envOr("BLOB_LOCAL_DIR", "."),
		BlobHTTPBaseURL: os.Getenv("BLOB_HTTP_BASE_URL"),
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseKey:     os.Getenv("SUPABASE_KEY"),
		SupabaseBucket:  envOr("SUPABASE_BUCKET", "media"),

		SegmentBackend:  strings.ToLower(envOr("SEGMENT_BACKEND", "sqlite")),
		SQLitePath:      envOr("SQLITE_PATH", "segments.db"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   envOr("MONGO_DATABASE", "media_insights"),
		MongoCollection: envOr("MONGO_COLLECTION", "transcript_segments"),

		PipelineTimeout: seconds("PIPELINE_TIMEOUT_SEC", 600),
		BatchDir:        envOr("BATCH_DIR", "batch"),
	}
}

// Validate reports settings missing for the selected backends.
func (c Config) Validate() error {
	var errs []error
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY not set"))
	}
	switch c.BlobBackend {
	case "local":
	case "http":
		if c.BlobHTTPBaseURL == "" {
			errs = append(errs, errors.New("BLOB_HTTP_BASE_URL not set"))
		}
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend))
	}
	switch c.SegmentBackend {
	case "none", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN not set"))
		}
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SEGMENT_BACKEND %q", c.SegmentBackend))
	}
	return errors.Join(errs...)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func seconds(k string, def int) time.Duration {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil || n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}
