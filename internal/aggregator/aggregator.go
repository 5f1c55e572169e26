package aggregator

import (
	"sort"
	"strings"

	"media-insights-go/internal/processor"
)

type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Summary rolls up a batch of processed media.
type Summary struct {
	Total             int            `json:"total"`
	Succeeded         int            `json:"succeeded"`
	Failed            int            `json:"failed"`
	ContentTypeCounts map[string]int `json:"content_type_counts"`
	AssetTypeCounts   map[string]int `json:"asset_type_counts"`
	SnippetTypeCounts map[string]int `json:"snippet_type_counts"`
	FailureKinds      map[string]int `json:"failure_kinds"`
	TopTopics         []TopicCount   `json:"top_topics"`
	AvgAudioQuality   float64        `json:"avg_audio_quality"`
	TotalMinutes      int            `json:"total_minutes"`
}

const topTopicsN = 10

func Aggregate(results []processor.Result) Summary {
	s := Summary{
		Total:             len(results),
		ContentTypeCounts: map[string]int{},
		AssetTypeCounts:   map[string]int{},
		SnippetTypeCounts: map[string]int{},
		FailureKinds:      map[string]int{},
	}
	topics := map[string]int{}
	display := map[string]string{}
	quality := 0

	for _, r := range results {
		if !r.OK() || r.Analysis == nil {
			s.Failed++
			kind := string(r.ErrorKind)
			if kind == "" {
				kind = "Unknown"
			}
			s.FailureKinds[kind]++
			continue
		}
		s.Succeeded++
		a := r.Analysis
		s.ContentTypeCounts[string(a.ContentType)]++
		s.AssetTypeCounts[string(a.SuggestedAssetType)]++
		for _, sn := range a.Snippets {
			s.SnippetTypeCounts[string(sn.Type)]++
		}
		for _, t := range a.Topics {
			k := strings.ToLower(strings.TrimSpace(t))
			if k == "" {
				continue
			}
			if _, ok := display[k]; !ok {
				display[k] = strings.TrimSpace(t)
			}
			topics[k]++
		}
		quality += a.AudioQualityScore
		s.TotalMinutes += a.EstimatedDurationMinutes
	}

	if s.Succeeded > 0 {
		s.AvgAudioQuality = float64(quality) / float64(s.Succeeded)
	}

	for k, n := range topics {
		s.TopTopics = append(s.TopTopics, TopicCount{Topic: display[k], Count: n})
	}
	sort.Slice(s.TopTopics, func(i, j int) bool {
		if s.TopTopics[i].Count != s.TopTopics[j].Count {
			return s.TopTopics[i].Count > s.TopTopics[j].Count
		}
		return s.TopTopics[i].Topic < s.TopTopics[j].Topic
	})
	if len(s.TopTopics) > topTopicsN {
		s.TopTopics = s.TopTopics[:topTopicsN]
	}
	return s
}
