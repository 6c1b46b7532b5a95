package summarizer

import (
	"context"
	"errors"
	"testing"

	"github.com/Protocol-Lattice/go-recap/src/model"
	"github.com/Protocol-Lattice/go-recap/src/store"
)

// vectorEmbedder returns a fixed vector per text.
type vectorEmbedder struct {
	vectors map[string][]float32
}

func (e vectorEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := e.vectors[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return v, nil
}

func summariesWithContent(contents ...string) []model.Summary {
	out := make([]model.Summary, len(contents))
	for i, c := range contents {
		out[i] = model.Summary{Content: c, MessageCount: 1, Layer: 1}
	}
	return out
}

func TestRefineTopicGroups_SplitsAtTopicShift(t *testing.T) {
	// a and b point the same way; c is orthogonal. The token grouping put
	// all three together, the topic shift between b and c must cut it.
	embedder := vectorEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {0.9, 0.1},
		"c": {0, 1},
	}}
	s := newTestSummarizer(store.NewInMemoryStore(), &countingAgent{},
		WithEmbedder(embedder), WithTopicThreshold(0.5))

	layer1 := summariesWithContent("a", "b", "c")
	groups := s.refineTopicGroups(context.Background(), layer1, [][]int{{0, 1, 2}})

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups after refinement, got %d: %v", len(groups), groups)
	}
	if len(groups[0]) != 2 || groups[0][0] != 0 || groups[0][1] != 1 {
		t.Errorf("group 0 = %v, want [0 1]", groups[0])
	}
	if len(groups[1]) != 1 || groups[1][0] != 2 {
		t.Errorf("group 1 = %v, want [2]", groups[1])
	}
}

func TestRefineTopicGroups_KeepsCohesiveGroup(t *testing.T) {
	embedder := vectorEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {0.9, 0.1},
	}}
	s := newTestSummarizer(store.NewInMemoryStore(), &countingAgent{},
		WithEmbedder(embedder), WithTopicThreshold(0.5))

	groups := s.refineTopicGroups(context.Background(),
		summariesWithContent("a", "b"), [][]int{{0, 1}})

	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Errorf("cohesive group must stay intact, got %v", groups)
	}
}

func TestRefineTopicGroups_NoEmbedderIsIdentity(t *testing.T) {
	s := newTestSummarizer(store.NewInMemoryStore(), &countingAgent{})

	in := [][]int{{0, 1}, {2}}
	groups := s.refineTopicGroups(context.Background(),
		summariesWithContent("a", "b", "c"), in)

	if len(groups) != 2 || len(groups[0]) != 2 || len(groups[1]) != 1 {
		t.Errorf("without an embedder groups must pass through, got %v", groups)
	}
}

func TestRefineTopicGroups_EmbeddingFailureFallsBack(t *testing.T) {
	embedder := vectorEmbedder{vectors: map[string][]float32{"a": {1, 0}}}
	s := newTestSummarizer(store.NewInMemoryStore(), &countingAgent{},
		WithEmbedder(embedder))

	in := [][]int{{0, 1}}
	groups := s.refineTopicGroups(context.Background(),
		summariesWithContent("a", "unembeddable"), in)

	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Errorf("embedding failure must keep token groups, got %v", groups)
	}
}
