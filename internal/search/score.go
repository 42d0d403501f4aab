package search

import (
	"math"
	"sort"

	"github.com/wassim249/YT-Navigator/internal/chunk"
)

// NeutralScore is assigned to every retained chunk when min-max scaling
// degenerates (fewer than two values, or all values equal).
const NeutralScore = 50.0

// DefaultTopVideos is the number of distinct videos retained per query.
const DefaultTopVideos = 5

// StandardizeScores rescales raw reranker scores to [0, 100] with min-max
// scaling, rounded to 2 decimals. Degenerate inputs map every score to
// NeutralScore.
func StandardizeScores(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	if len(scores) < 2 || maxScore == minScore {
		for i := range out {
			out[i] = NeutralScore
		}
		return out
	}

	span := maxScore - minScore
	for i, s := range scores {
		out[i] = round2((s - minScore) / span * 100)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// selectTopVideos returns the topN most frequent video ids among the
// candidates. Ties break toward the first-encountered id.
func selectTopVideos(candidates []RerankedCandidate, topN int) []string {
	counts := make(map[string]int, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		id := c.Chunk.VideoID
		if id == "" {
			continue
		}
		if _, ok := counts[id]; !ok {
			order = append(order, id)
		}
		counts[id]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > topN {
		order = order[:topN]
	}
	return order
}

// Aggregate turns reranked candidates into the caller-facing result:
// chunks restricted to the topN most frequent videos with standardized
// scores, plus per-video summaries ordered by average score descending.
//
// Candidates are expected to carry resolved video metadata, which the
// enrichment stage guarantees. A candidate with a nil Video keeps its
// chunks in the result while its video is dropped from the summaries,
// unless no selected video resolves at all (then minimal summaries are
// synthesized).
func Aggregate(candidates []RerankedCandidate, topN int) QueryResult {
	if topN <= 0 {
		topN = DefaultTopVideos
	}

	valid := make([]RerankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Chunk.VideoID != "" {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return EmptyQueryResult()
	}

	topIDs := selectTopVideos(valid, topN)
	selected := make(map[string]bool, len(topIDs))
	for _, id := range topIDs {
		selected[id] = true
	}

	retained := make([]RerankedCandidate, 0, len(valid))
	for _, c := range valid {
		if selected[c.Chunk.VideoID] {
			retained = append(retained, c)
		}
	}
	if len(retained) == 0 {
		return EmptyQueryResult()
	}

	raw := make([]float64, len(retained))
	for i, c := range retained {
		raw[i] = c.Score
	}
	standardized := StandardizeScores(raw)

	chunks := make([]ScoredChunk, len(retained))
	scoresByVideo := make(map[string][]float64, len(topIDs))
	for i, c := range retained {
		chunks[i] = ScoredChunk{
			Text:    c.Chunk.Text,
			Start:   chunk.FormatTimestamp(c.Chunk.Start),
			End:     chunk.FormatTimestamp(c.Chunk.End),
			VideoID: c.Chunk.VideoID,
			Score:   standardized[i],
		}
		scoresByVideo[c.Chunk.VideoID] = append(scoresByVideo[c.Chunk.VideoID], standardized[i])
	}

	videos := summarizeVideos(retained, topIDs, scoresByVideo, topN)

	return QueryResult{Chunks: chunks, Videos: videos}
}

// summarizeVideos builds one VideoSummary per selected video id that has
// resolvable metadata. If none resolve but scored chunks exist, minimal
// summaries are built from chunk-level fields instead, capped to topN.
func summarizeVideos(retained []RerankedCandidate, topIDs []string, scoresByVideo map[string][]float64, topN int) []VideoSummary {
	metaByID := make(map[string]*EnrichedCandidate, len(topIDs))
	for i := range retained {
		c := &retained[i]
		if c.Video != nil {
			if _, ok := metaByID[c.Chunk.VideoID]; !ok {
				metaByID[c.Chunk.VideoID] = &c.EnrichedCandidate
			}
		}
	}

	videos := make([]VideoSummary, 0, len(topIDs))
	for _, id := range topIDs {
		c, ok := metaByID[id]
		if !ok {
			continue
		}
		videos = append(videos, VideoSummary{
			VideoID:     id,
			Title:       c.Video.Title,
			Thumbnail:   c.Video.Thumbnail,
			PublishedAt: c.Video.PublishedAt,
			AvgScore:    mean(scoresByVideo[id]),
		})
	}

	if len(videos) == 0 {
		for _, id := range topIDs {
			if len(videos) == topN {
				break
			}
			videos = append(videos, VideoSummary{
				VideoID:  id,
				Title:    "Unknown Title",
				AvgScore: mean(scoresByVideo[id]),
			})
		}
	}

	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].AvgScore > videos[j].AvgScore
	})

	return videos
}

// mean returns the arithmetic mean rounded to 2 decimals, 0 for empty input.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return round2(sum / float64(len(values)))
}
