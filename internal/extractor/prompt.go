package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai/jsonschema"

	"media-insights-go/internal/types"
)

const (
	// MaxTranscriptChars bounds what is sent to the model, in characters.
	MaxTranscriptChars = 80000
	TruncationMarker   = "\n\n[TRANSCRIPT TRUNCATED]"
)

const systemPrompt = `You are a B2B content strategist who mines recorded webinars, podcasts, demos and customer calls for reusable marketing material.

Analyze the TRANSCRIPT supplied by the user and return ONLY a JSON object that matches the "media_analysis" schema.

----------------------------------------------------------------------
EXTRACTION RULES

1. Quotes and stats must be exact or closely paraphrased from the transcript.
   DO NOT invent numbers, percentages, customer names or outcomes.
2. Every snippet MUST carry a "context" explaining when and how a marketer should use it
   (e.g. "Hero stat for a case study landing page", "Objection handler for sales emails").
3. confidenceScore (1-100) reflects how clearly the snippet was stated in the audio,
   NOT its business value.
4. audioQualityScore (1-100) reflects transcript coherence: garbled or fragmentary text scores low.
5. Label speakers consistently ("Speaker 1", "Host", a stated name). Only set estimatedRole when the
   transcript supports it.
6. Limits: at most %d speakers with %d key points each, %d snippets, %d topics, %d pain points.
   summary at most %d characters; snippet content at most %d characters.
7. contentType must be one of: %s.
   suggestedAssetType must be one of: %s.
   snippet type must be one of: %s.
8. If information is missing, return empty arrays instead of guessing.

DO NOT wrap the JSON in backticks. DO NOT add commentary.
----------------------------------------------------------------------`

// SystemPrompt returns the instruction sent with every analysis request.
func SystemPrompt() string {
	return fmt.Sprintf(systemPrompt,
		types.MaxSpeakers, types.MaxSpeakerPoints, types.MaxSnippets, types.MaxTopics, types.MaxPainPoints,
		types.MaxSummaryChars, types.MaxSnippetChars,
		joinEnum(types.ContentTypes), joinEnum(types.AssetTypes), joinEnum(types.SnippetTypes),
	)
}

// BuildUserPrompt combines the optional context hint with the (already
// truncated) transcript.
func BuildUserPrompt(transcript, additionalContext string) string {
	var b strings.Builder
	if ctx := strings.TrimSpace(additionalContext); ctx != "" {
		b.WriteString("ADDITIONAL CONTEXT FROM THE UPLOADER:\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}
	b.WriteString("TRANSCRIPT:\n")
	b.WriteString(transcript)
	return b.String()
}

// TruncateTranscript cuts s to MaxTranscriptChars characters and appends
// TruncationMarker. Shorter input is returned unchanged.
func TruncateTranscript(s string) (string, bool) {
	if utf8.RuneCountInString(s) <= MaxTranscriptChars {
		return s, false
	}
	return truncateRunes(s, MaxTranscriptChars) + TruncationMarker, true
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func joinEnum[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func enumStrings[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

// responseSchema is the JSON schema the chat model is asked to follow.
// Optional fields are kept off the required lists; caps and enums are
// re-checked after decoding.
func responseSchema() *jsonschema.Definition {
	str := jsonschema.Definition{Type: jsonschema.String}
	strList := jsonschema.Definition{Type: jsonschema.Array, Items: &str}

	speaker := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"speakerLabel":  str,
			"keyPoints":     strList,
			"estimatedRole": str,
		},
		Required: []string{"speakerLabel", "keyPoints"},
	}
	snippet := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"type":            {Type: jsonschema.String, Enum: enumStrings(types.SnippetTypes)},
			"content":         {Type: jsonschema.String, Description: fmt.Sprintf("at most %d characters", types.MaxSnippetChars)},
			"timestamp":       {Type: jsonschema.String, Description: "approximate mm:ss position, when known"},
			"speaker":         str,
			"context":         {Type: jsonschema.String, Description: "when and how to use this snippet"},
			"confidenceScore": {Type: jsonschema.Integer, Description: "1-100, clarity of extraction"},
		},
		Required: []string{"type", "content", "context", "confidenceScore"},
	}

	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"contentType":              {Type: jsonschema.String, Enum: enumStrings(types.ContentTypes)},
			"summary":                  {Type: jsonschema.String, Description: fmt.Sprintf("at most %d characters", types.MaxSummaryChars)},
			"speakers":                 {Type: jsonschema.Array, Items: &speaker},
			"snippets":                 {Type: jsonschema.Array, Items: &snippet},
			"topics":                   strList,
			"painPointsMentioned":      strList,
			"suggestedAssetType":       {Type: jsonschema.String, Enum: enumStrings(types.AssetTypes)},
			"audioQualityScore":        {Type: jsonschema.Integer, Description: "1-100"},
			"estimatedDurationMinutes": {Type: jsonschema.Number},
		},
		Required: []string{
			"contentType", "summary", "speakers", "snippets", "topics",
			"painPointsMentioned", "suggestedAssetType", "audioQualityScore",
		},
	}
}
