package types

// MediaReference identifies an uploaded file in blob storage.
type MediaReference struct {
	LocationKey string `json:"location_key"`
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// AnalyzeRequest is the pipeline entry point input.
type AnalyzeRequest struct {
	MediaLocationKey  string `json:"mediaLocationKey"`
	FileName          string `json:"fileName"`
	FileType          string `json:"fileType"`
	AdditionalContext string `json:"additionalContext,omitempty"`
	AssetID           string `json:"assetId,omitempty"`
}

// ExtractionOutcome is the audio payload handed to transcription.
// Extracted=false means the original bytes are passed through unchanged.
type ExtractionOutcome struct {
	AudioBytes     []byte
	Extracted      bool
	SourceFileName string
}

// Segment is one timestamped span of transcript text.
type Segment struct {
	AssetID      string  `json:"asset_id" bson:"asset_id"`
	StartSeconds float64 `json:"start_seconds" bson:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds" bson:"end_seconds"`
	Text         string  `json:"text" bson:"text"`
}

type TranscriptionOutcome struct {
	FullText string    `json:"full_text"`
	Segments []Segment `json:"segments,omitempty"`
}

type ContentType string

const (
	ContentWebinar      ContentType = "WEBINAR"
	ContentPodcast      ContentType = "PODCAST"
	ContentTestimonial  ContentType = "CUSTOMER_TESTIMONIAL"
	ContentProductDemo  ContentType = "PRODUCT_DEMO"
	ContentSalesCall    ContentType = "SALES_CALL"
	ContentInterview    ContentType = "INTERVIEW"
	ContentPresentation ContentType = "PRESENTATION"
	ContentTraining     ContentType = "TRAINING"
	ContentOther        ContentType = "OTHER"
)

// ContentTypes is the closed set accepted from the extraction model.
var ContentTypes = []ContentType{
	ContentWebinar, ContentPodcast, ContentTestimonial, ContentProductDemo,
	ContentSalesCall, ContentInterview, ContentPresentation, ContentTraining, ContentOther,
}

type AssetType string

const (
	AssetCaseStudy     AssetType = "CASE_STUDY"
	AssetBlogPost      AssetType = "BLOG_POST"
	AssetSocialPost    AssetType = "SOCIAL_POST"
	AssetWhitepaper    AssetType = "WHITEPAPER"
	AssetEmailSequence AssetType = "EMAIL_SEQUENCE"
	AssetVideoClip     AssetType = "VIDEO_CLIP"
	AssetOnePager      AssetType = "SALES_ONE_PAGER"
	AssetOther         AssetType = "OTHER"
)

var AssetTypes = []AssetType{
	AssetCaseStudy, AssetBlogPost, AssetSocialPost, AssetWhitepaper,
	AssetEmailSequence, AssetVideoClip, AssetOnePager, AssetOther,
}

type SnippetType string

const (
	SnippetROIStat          SnippetType = "ROI_STAT"
	SnippetCustomerQuote    SnippetType = "CUSTOMER_QUOTE"
	SnippetValueProp        SnippetType = "VALUE_PROP"
	SnippetCompetitiveWedge SnippetType = "COMPETITIVE_WEDGE"
	SnippetPainPoint        SnippetType = "PAIN_POINT"
	SnippetCallToAction     SnippetType = "CALL_TO_ACTION"
)

var SnippetTypes = []SnippetType{
	SnippetROIStat, SnippetCustomerQuote, SnippetValueProp,
	SnippetCompetitiveWedge, SnippetPainPoint, SnippetCallToAction,
}

// List caps on AnalysisResult.
const (
	MaxSpeakers      = 5
	MaxSpeakerPoints = 5
	MaxSnippets      = 10
	MaxTopics        = 8
	MaxPainPoints    = 5
	MaxSummaryChars  = 500
	MaxSnippetChars  = 280
)

type SpeakerInsight struct {
	SpeakerLabel  string   `json:"speakerLabel"`
	KeyPoints     []string `json:"keyPoints"`
	EstimatedRole string   `json:"estimatedRole,omitempty"`
}

type Snippet struct {
	Type            SnippetType `json:"type"`
	Content         string      `json:"content"`
	Timestamp       string      `json:"timestamp,omitempty"`
	Speaker         string      `json:"speaker,omitempty"`
	Context         string      `json:"context"`
	ConfidenceScore int         `json:"confidenceScore"`
}

// AnalysisResult is the terminal output of the pipeline.
type AnalysisResult struct {
	ContentType              ContentType      `json:"contentType"`
	Transcript               string           `json:"transcript"`
	Summary                  string           `json:"summary"`
	Speakers                 []SpeakerInsight `json:"speakers"`
	Snippets                 []Snippet        `json:"snippets"`
	Topics                   []string         `json:"topics"`
	PainPointsMentioned      []string         `json:"painPointsMentioned"`
	SuggestedAssetType       AssetType        `json:"suggestedAssetType"`
	AudioQualityScore        int              `json:"audioQualityScore"`
	EstimatedDurationMinutes int              `json:"estimatedDurationMinutes"`
}

func (c ContentType) Valid() bool {
	for _, v := range ContentTypes {
		if v == c {
			return true
		}
	}
	return false
}

func (a AssetType) Valid() bool {
	for _, v := range AssetTypes {
		if v == a {
			return true
		}
	}
	return false
}

func (s SnippetType) Valid() bool {
	for _, v := range SnippetTypes {
		if v == s {
			return true
		}
	}
	return false
}
