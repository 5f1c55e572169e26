// Package transcription wraps the hosted speech-to-text service.
package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"media-insights-go/internal/logger"
	"media-insights-go/internal/types"
)

// BackendError is returned for any transport or API failure.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("transcription %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Config holds the hosted service settings.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	HTTPTimeout  time.Duration
	MaxRetryTime time.Duration
}

// Client sends audio to the speech-to-text service. Callers must keep the
// payload within strategy.TranscribeLimit; size is not re-checked here.
type Client struct {
	api          *openai.Client
	model        string
	maxRetryTime time.Duration
	log          *logrus.Entry
}

func New(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	retry := cfg.MaxRetryTime
	if retry <= 0 {
		retry = 30 * time.Second
	}
	return &Client{
		api:          openai.NewClientWithConfig(oc),
		model:        model,
		maxRetryTime: retry,
		log:          logger.Component("transcription"),
	}
}

// TranscribeText returns the plain-text transcript.
func (c *Client) TranscribeText(ctx context.Context, audio []byte, fileName, mimeType string) (string, error) {
	resp, err := c.call(ctx, "text", audio, fileName, mimeType, openai.AudioResponseFormatText, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// TranscribeSegmented returns the transcript with segment-level timestamps.
// Segments carry no AssetID; the caller assigns one.
func (c *Client) TranscribeSegmented(ctx context.Context, audio []byte, fileName, mimeType string) (types.TranscriptionOutcome, error) {
	resp, err := c.call(ctx, "segmented", audio, fileName, mimeType,
		openai.AudioResponseFormatVerboseJSON,
		[]openai.TranscriptionTimestampGranularity{openai.TranscriptionTimestampGranularitySegment})
	if err != nil {
		return types.TranscriptionOutcome{}, err
	}
	out := types.TranscriptionOutcome{FullText: strings.TrimSpace(resp.Text)}
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		out.Segments = append(out.Segments, types.Segment{
			StartSeconds: s.Start,
			EndSeconds:   s.End,
			Text:         text,
		})
	}
	return out, nil
}

func (c *Client) call(
	ctx context.Context,
	op string,
	audio []byte,
	fileName, mimeType string,
	format openai.AudioResponseFormat,
	granularity []openai.TranscriptionTimestampGranularity,
) (openai.AudioResponse, error) {
	name := uploadName(fileName, mimeType)
	log := c.log.WithFields(logrus.Fields{"op": op, "file_name": name, "bytes": len(audio)})
	log.Info("starting transcription")

	var resp openai.AudioResponse
	var lastErr error
	attempt := func() error {
		req := openai.AudioRequest{
			Model:                  c.model,
			FilePath:               name,
			Reader:                 bytes.NewReader(audio),
			Format:                 format,
			TimestampGranularities: granularity,
		}
		r, err := c.api.CreateTranscription(ctx, req)
		if err != nil {
			lastErr = err
			if retryable(err) {
				log.WithField("error", err.Error()).Warn("transcription attempt failed, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetryTime
	if err := backoff.Retry(attempt, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		log.WithField("error", lastErr.Error()).Error("transcription failed")
		return openai.AudioResponse{}, &BackendError{Op: op, Err: lastErr}
	}
	log.WithField("segments", len(resp.Segments)).Info("transcription complete")
	return resp, nil
}

// retryable reports transport errors, rate limits and 5xx responses.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	// no HTTP status: network-level failure
	return true
}

var extensionsByMIME = map[string]string{
	"audio/mpeg":      ".mp3",
	"audio/mp3":       ".mp3",
	"audio/mp4":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"audio/wav":       ".wav",
	"audio/x-wav":     ".wav",
	"audio/wave":      ".wav",
	"audio/webm":      ".webm",
	"audio/ogg":       ".ogg",
	"audio/flac":      ".flac",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/mpeg":      ".mpeg",
	"video/quicktime": ".mp4",
}

// uploadName makes sure the upload carries an extension the service can
// use to detect the container, since the multipart part has no type.
func uploadName(fileName, mimeType string) string {
	base := filepath.Base(strings.TrimSpace(fileName))
	if base == "." || base == "/" || base == "" {
		base = "audio"
	}
	if filepath.Ext(base) != "" {
		return base
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	if ext, ok := extensionsByMIME[mt]; ok {
		return base + ext
	}
	return base + ".mp3"
}
