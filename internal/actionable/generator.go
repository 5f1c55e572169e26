package actionable

import (
	"fmt"
	"strings"

	"media-insights-go/internal/types"
)

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// minStrongConfidence is the snippet confidence treated as quotable as-is.
const minStrongConfidence = 70

// Generate turns one analysis into the next marketing asset to produce,
// judged from the snippet mix first and the model's suggestion second.
func Generate(res types.AnalysisResult) ActionCard {
	counts := map[types.SnippetType]int{}
	strong := 0
	for _, s := range res.Snippets {
		counts[s.Type]++
		if s.ConfidenceScore >= minStrongConfidence {
			strong++
		}
	}

	if len(res.Snippets) == 0 {
		return ActionCard{
			Insight: "No quotable snippets found",
			Action:  "Use the transcript for an internal recap; re-record key messages if they matter",
			Impact:  "Low immediate reuse value",
		}
	}

	switch {
	case counts[types.SnippetROIStat] > 0 && counts[types.SnippetCustomerQuote] > 0:
		return ActionCard{
			Insight: fmt.Sprintf("%d ROI stat(s) and %d customer quote(s) on record", counts[types.SnippetROIStat], counts[types.SnippetCustomerQuote]),
			Action:  "Draft a case study around the strongest stat; get quote approval from the speaker",
			Impact:  "Proof asset for late-stage deals",
		}
	case counts[types.SnippetCompetitiveWedge] > 0:
		return ActionCard{
			Insight: fmt.Sprintf("%d competitive wedge(s) mentioned", counts[types.SnippetCompetitiveWedge]),
			Action:  "Add the wedges to the battlecard and a sales one-pager",
			Impact:  "Sharper positioning in competitive deals",
		}
	case counts[types.SnippetPainPoint] >= 2 || len(res.PainPointsMentioned) >= 3:
		return ActionCard{
			Insight: fmt.Sprintf("Recurring pain points: %s", strings.Join(firstN(res.PainPointsMentioned, 3), "; ")),
			Action:  "Write a problem-led blog post and a three-step email sequence",
			Impact:  "Top-of-funnel content matched to buyer language",
		}
	}

	return ActionCard{
		Insight: fmt.Sprintf("%d snippet(s), %d high-confidence; suggested asset %s", len(res.Snippets), strong, res.SuggestedAssetType),
		Action:  actionFor(res.SuggestedAssetType),
		Impact:  "Repurposes existing recording with no new production",
	}
}

func actionFor(a types.AssetType) string {
	switch a {
	case types.AssetCaseStudy:
		return "Draft a case study from the quotes and outcomes"
	case types.AssetBlogPost:
		return "Turn the main topics into a blog post"
	case types.AssetSocialPost:
		return "Schedule the top snippets as social posts"
	case types.AssetWhitepaper:
		return "Outline a whitepaper from the topics covered"
	case types.AssetEmailSequence:
		return "Build a nurture email sequence from the value props"
	case types.AssetVideoClip:
		return "Cut short video clips at the snippet timestamps"
	case types.AssetOnePager:
		return "Summarize the value props in a sales one-pager"
	default:
		return "Review snippets and pick a format"
	}
}

func firstN(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
