package summarizer

import (
	"context"
	"log"

	"github.com/Protocol-Lattice/go-recap/src/embed"
	"github.com/Protocol-Lattice/go-recap/src/model"
)

// refineTopicGroups splits merge groups at topic boundaries. Adjacent
// layer-1 summaries whose embeddings fall below the similarity threshold are
// kept in separate groups so a layer-2 merge never blends unrelated topics.
// Splitting only ever shrinks a group, so the token bound established by
// GroupTexts still holds. Without an embedder, or on any embedding failure,
// the token-bounded groups are used as-is.
func (s *RecursiveSummarizer) refineTopicGroups(ctx context.Context, layer1 []model.Summary, groups [][]int) [][]int {
	if s.embedder == nil || len(layer1) < 2 {
		return groups
	}

	vectors := make([][]float32, len(layer1))
	for i, sum := range layer1 {
		v, err := s.embedder.Embed(ctx, sum.Content)
		if err != nil {
			log.Printf("summarizer: topic embedding failed, keeping token groups: %v", err)
			return groups
		}
		vectors[i] = v
	}

	refined := make([][]int, 0, len(groups))
	for _, group := range groups {
		refined = append(refined, s.splitAtTopicShifts(group, vectors)...)
	}
	return refined
}

// splitAtTopicShifts cuts a group before every member whose similarity to
// its predecessor drops below the threshold.
func (s *RecursiveSummarizer) splitAtTopicShifts(group []int, vectors [][]float32) [][]int {
	if len(group) < 2 {
		return [][]int{group}
	}

	var out [][]int
	current := []int{group[0]}
	for _, idx := range group[1:] {
		prev := current[len(current)-1]
		if embed.CosineSimilarity(vectors[prev], vectors[idx]) < s.topicThreshold {
			out = append(out, current)
			current = []int{idx}
			continue
		}
		current = append(current, idx)
	}
	return append(out, current)
}
