// Package extractor turns a transcript into structured marketing insight
// with one schema-constrained chat completion.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"media-insights-go/internal/logger"
	"media-insights-go/internal/types"
)

// WordsPerMinute drives the duration estimate.
const WordsPerMinute = 150

// BackendError covers transport failures and malformed or missing model
// output. It is terminal; nothing retries above the transport.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string { return "analysis: " + e.Err.Error() }

func (e *BackendError) Unwrap() error { return e.Err }

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	HTTPTimeout  time.Duration
	MaxRetryTime time.Duration
}

type Analyzer struct {
	api          *openai.Client
	model        string
	maxRetryTime time.Duration
	log          *logrus.Entry
}

func New(cfg Config) *Analyzer {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	retry := cfg.MaxRetryTime
	if retry <= 0 {
		retry = 45 * time.Second
	}
	return &Analyzer{
		api:          openai.NewClientWithConfig(oc),
		model:        model,
		maxRetryTime: retry,
		log:          logger.Component("analyzer"),
	}
}

// Analyze sends the (possibly truncated) transcript to the model and
// returns the normalized result. The returned Transcript is always the full
// input, and EstimatedDurationMinutes is recomputed from its word count.
func (a *Analyzer) Analyze(ctx context.Context, transcript, additionalContext string) (types.AnalysisResult, error) {
	prepared, truncated := TruncateTranscript(transcript)
	log := a.log.WithFields(logrus.Fields{
		"transcript_bytes": len(transcript),
		"truncated":        truncated,
		"model":            a.model,
	})
	if truncated {
		log.Warn("transcript exceeds analysis limit, truncating")
	}

	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: BuildUserPrompt(prepared, additionalContext)},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        "media_analysis",
				Description: "Structured marketing insight extracted from a media transcript",
				Schema:      responseSchema(),
				Strict:      false,
			},
		},
	}

	content, err := a.complete(ctx, req, log)
	if err != nil {
		return types.AnalysisResult{}, &BackendError{Err: err}
	}

	result, err := parseResult(content)
	if err != nil {
		log.WithField("error", err.Error()).Debug("model output:\n" + content)
		log.WithField("error", err.Error()).Error("malformed analysis output")
		return types.AnalysisResult{}, &BackendError{Err: err}
	}

	result.Transcript = transcript
	result.EstimatedDurationMinutes = EstimateDurationMinutes(transcript)

	log.WithFields(logrus.Fields{
		"content_type": result.ContentType,
		"snippets":     len(result.Snippets),
		"speakers":     len(result.Speakers),
	}).Info("analysis complete")
	return result, nil
}

// complete runs the chat call, retrying transport failures only.
func (a *Analyzer) complete(ctx context.Context, req openai.ChatCompletionRequest, log *logrus.Entry) (string, error) {
	var resp openai.ChatCompletionResponse
	var lastErr error
	op := func() error {
		r, err := a.api.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if retryable(err) {
				log.WithField("error", err.Error()).Warn("analysis request failed, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = a.maxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return "", fmt.Errorf("chat completion failed: %w", lastErr)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in model response")
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", msg.Refusal)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return "", errors.New("empty model response")
	}
	return msg.Content, nil
}

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
	return true
}

// EstimateDurationMinutes is round(words / WordsPerMinute).
func EstimateDurationMinutes(transcript string) int {
	words := len(strings.Fields(transcript))
	return int(math.Round(float64(words) / WordsPerMinute))
}

// wire types: numbers arrive as floats and optional strings as null.
type wireResult struct {
	ContentType         string        `json:"contentType"`
	Summary             string        `json:"summary"`
	Speakers            []wireSpeaker `json:"speakers"`
	Snippets            []wireSnippet `json:"snippets"`
	Topics              []string      `json:"topics"`
	PainPointsMentioned []string      `json:"painPointsMentioned"`
	SuggestedAssetType  string        `json:"suggestedAssetType"`
	AudioQualityScore   *float64      `json:"audioQualityScore"`
}

type wireSpeaker struct {
	SpeakerLabel  string   `json:"speakerLabel"`
	KeyPoints     []string `json:"keyPoints"`
	EstimatedRole *string  `json:"estimatedRole"`
}

type wireSnippet struct {
	Type            string   `json:"type"`
	Content         string   `json:"content"`
	Timestamp       *string  `json:"timestamp"`
	Speaker         *string  `json:"speaker"`
	Context         string   `json:"context"`
	ConfidenceScore *float64 `json:"confidenceScore"`
}

// parseResult decodes model output, falling back to the first balanced
// JSON object when the content carries fences or prose, then enforces
// enums and caps.
func parseResult(content string) (types.AnalysisResult, error) {
	var w wireResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &w); err != nil {
		raw := extractJSON(content)
		if raw == "" {
			return types.AnalysisResult{}, errors.New("no JSON object in model output")
		}
		w = wireResult{}
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return types.AnalysisResult{}, fmt.Errorf("decode model output: %w", err)
		}
	}
	return normalize(w)
}

func normalize(w wireResult) (types.AnalysisResult, error) {
	ct := types.ContentType(strings.ToUpper(strings.TrimSpace(w.ContentType)))
	if !ct.Valid() {
		return types.AnalysisResult{}, fmt.Errorf("contentType %q not in %s", w.ContentType, joinEnum(types.ContentTypes))
	}
	at := types.AssetType(strings.ToUpper(strings.TrimSpace(w.SuggestedAssetType)))
	if !at.Valid() {
		return types.AnalysisResult{}, fmt.Errorf("suggestedAssetType %q not in %s", w.SuggestedAssetType, joinEnum(types.AssetTypes))
	}
	if w.AudioQualityScore == nil {
		return types.AnalysisResult{}, errors.New("audioQualityScore missing")
	}

	out := types.AnalysisResult{
		ContentType:         ct,
		Summary:             truncateRunes(strings.TrimSpace(w.Summary), types.MaxSummaryChars),
		Speakers:            []types.SpeakerInsight{},
		Snippets:            []types.Snippet{},
		Topics:              capStrings(w.Topics, types.MaxTopics),
		PainPointsMentioned: capStrings(w.PainPointsMentioned, types.MaxPainPoints),
		SuggestedAssetType:  at,
		AudioQualityScore:   clampScore(*w.AudioQualityScore),
	}

	for _, s := range w.Speakers {
		if len(out.Speakers) == types.MaxSpeakers {
			break
		}
		label := strings.TrimSpace(s.SpeakerLabel)
		if label == "" {
			continue
		}
		out.Speakers = append(out.Speakers, types.SpeakerInsight{
			SpeakerLabel:  label,
			KeyPoints:     capStrings(s.KeyPoints, types.MaxSpeakerPoints),
			EstimatedRole: deref(s.EstimatedRole),
		})
	}

	for _, s := range w.Snippets {
		if len(out.Snippets) == types.MaxSnippets {
			break
		}
		st := types.SnippetType(strings.ToUpper(strings.TrimSpace(s.Type)))
		content := strings.TrimSpace(s.Content)
		// snippets outside the closed type set or without text are unusable
		if !st.Valid() || content == "" {
			continue
		}
		score := 50
		if s.ConfidenceScore != nil {
			score = clampScore(*s.ConfidenceScore)
		}
		out.Snippets = append(out.Snippets, types.Snippet{
			Type:            st,
			Content:         truncateRunes(content, types.MaxSnippetChars),
			Timestamp:       deref(s.Timestamp),
			Speaker:         deref(s.Speaker),
			Context:         strings.TrimSpace(s.Context),
			ConfidenceScore: score,
		})
	}
	return out, nil
}

func capStrings(in []string, limit int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func clampScore(f float64) int {
	n := int(math.Round(f))
	if n < 1 {
		return 1
	}
	if n > 100 {
		return 100
	}
	return n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
