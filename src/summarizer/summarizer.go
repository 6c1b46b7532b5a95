package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Protocol-Lattice/go-recap/src/cache"
	"github.com/Protocol-Lattice/go-recap/src/chunker"
	"github.com/Protocol-Lattice/go-recap/src/concurrent"
	"github.com/Protocol-Lattice/go-recap/src/embed"
	"github.com/Protocol-Lattice/go-recap/src/model"
	"github.com/Protocol-Lattice/go-recap/src/models"
	"github.com/Protocol-Lattice/go-recap/src/store"
	"github.com/Protocol-Lattice/go-recap/src/tokens"
)

// Cache key prefixes, one per reduction layer.
const (
	keyPrefixLayer1 = "sum_l1_"
	keyPrefixLayer2 = "sum_l2_"
	keyPrefixLayer3 = "sum_l3_"
)

// RecursiveSummarizer reduces an arbitrary time window of chat messages to
// one bounded summary through three layers: per-chunk summaries, token-
// bounded topic merges, and a final merge. Every reduction unit is memoized
// in the injected cache by a fingerprint of its exact ordered input, so
// re-running a window is idempotent and cheap.
type RecursiveSummarizer struct {
	messages  store.MessageStore
	agent     models.Agent
	estimator chunker.Estimator
	chunks    *chunker.Chunker
	cache     *cache.MultiLevelCache
	embedder  embed.Embedder

	chunkTokens    int
	mergeTokens    int
	concurrency    int
	style          Style
	topicThreshold float64
	now            func() time.Time
}

// Option configures the summarizer during construction.
type Option func(*RecursiveSummarizer)

// WithEstimator replaces the token estimator.
func WithEstimator(est chunker.Estimator) Option {
	return func(s *RecursiveSummarizer) { s.estimator = est }
}

// WithCache replaces the multi-level cache.
func WithCache(c *cache.MultiLevelCache) Option {
	return func(s *RecursiveSummarizer) { s.cache = c }
}

// WithChunkTokens sets the per-chunk token budget for layer 1.
func WithChunkTokens(n int) Option {
	return func(s *RecursiveSummarizer) {
		if n > 0 {
			s.chunkTokens = n
		}
	}
}

// WithMergeTokens sets the token budget for layer-2 merge groups.
func WithMergeTokens(n int) Option {
	return func(s *RecursiveSummarizer) {
		if n > 0 {
			s.mergeTokens = n
		}
	}
}

// WithConcurrency bounds how many layer-1 chunk reductions run at once.
func WithConcurrency(n int) Option {
	return func(s *RecursiveSummarizer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithStyle selects the summary style used in layer-1 prompts.
func WithStyle(style Style) Option {
	return func(s *RecursiveSummarizer) { s.style = style }
}

// WithEmbedder enables embedding-driven topic boundary refinement at layer 2.
func WithEmbedder(e embed.Embedder) Option {
	return func(s *RecursiveSummarizer) { s.embedder = e }
}

// WithTopicThreshold sets the cosine-similarity floor below which adjacent
// layer-1 summaries are considered separate topics.
func WithTopicThreshold(t float64) Option {
	return func(s *RecursiveSummarizer) { s.topicThreshold = t }
}

// WithClock overrides the wall clock; tests pin it.
func WithClock(now func() time.Time) Option {
	return func(s *RecursiveSummarizer) { s.now = now }
}

// New constructs a summarizer over the given message store and model.
// Defaults: a cl100k estimator, a 3000-token chunk budget, 2000-token merge
// groups, four concurrent chunk reductions, and a tier-1-only cache.
func New(messages store.MessageStore, agent models.Agent, opts ...Option) *RecursiveSummarizer {
	s := &RecursiveSummarizer{
		messages:       messages,
		agent:          agent,
		chunkTokens:    3000,
		mergeTokens:    2000,
		concurrency:    4,
		style:          StyleBrief,
		topicThreshold: 0.35,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.estimator == nil {
		s.estimator = tokens.NewEstimator("")
	}
	if s.cache == nil {
		s.cache = cache.NewMultiLevelCache(1000, time.Hour, nil)
	}
	s.chunks = chunker.New(s.estimator)
	return s
}

// Result is the outcome of a successful window summarization.
type Result struct {
	Summary model.Summary
	// Truncated reports that the requested window was clipped to the
	// resolver's cap rather than honored as asked.
	Truncated bool
	// Quarantined counts malformed messages rejected at ingestion.
	Quarantined int
}

// SummarizeWindow summarizes all messages in the window described by
// rangeExpr (optionally filtered to one author). Failures map to the
// sentinel errors in errors.go; anything else is an infrastructure error.
func (s *RecursiveSummarizer) SummarizeWindow(ctx context.Context, rangeExpr, userFilter string) (*Result, error) {
	window, truncated, err := ParseWindow(rangeExpr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	if truncated {
		log.Printf("summarizer: window %q truncated to %s", rangeExpr, window)
	}

	end := s.now()
	start := end.Add(-window)

	msgs, err := s.messages.QueryMessages(ctx, start, end, userFilter, 0)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	valid, quarantined := model.ValidMessages(msgs)
	if len(quarantined) > 0 {
		log.Printf("summarizer: quarantined %d malformed messages", len(quarantined))
	}
	if len(valid) == 0 {
		return nil, ErrNoData
	}

	chunks := s.chunks.Split(valid, s.chunkTokens)
	if len(chunks) == 0 {
		return nil, ErrNoData
	}

	layer1, err := s.reduceLayer1(ctx, chunks)
	if err != nil {
		return nil, err
	}

	layer2, err := s.reduceLayer2(ctx, layer1)
	if err != nil {
		return nil, err
	}

	final, err := s.reduceLayer3(ctx, layer2)
	if err != nil {
		return nil, err
	}

	return &Result{Summary: *final, Truncated: truncated, Quarantined: len(quarantined)}, nil
}

// reduceLayer1 produces one summary per chunk. Chunks are independent, so
// they run concurrently; a failed unit is logged and dropped, and the layer
// fails only when every unit does.
func (s *RecursiveSummarizer) reduceLayer1(ctx context.Context, chunks []model.Chunk) ([]model.Summary, error) {
	results, errs := concurrent.ParallelMap(ctx, chunks, s.summarizeChunk, s.concurrency)

	summaries := make([]model.Summary, 0, len(results))
	for i, err := range errs {
		if err != nil {
			log.Printf("summarizer: layer-1 unit %d/%d failed: %v", i+1, len(chunks), err)
			continue
		}
		summaries = append(summaries, results[i])
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("%w: all %d layer-1 units failed", ErrGenerationFailed, len(chunks))
	}
	return summaries, nil
}

func (s *RecursiveSummarizer) summarizeChunk(ctx context.Context, c model.Chunk) (model.Summary, error) {
	parts := make([]string, len(c.Messages))
	for i, m := range c.Messages {
		parts[i] = m.Render()
	}
	key := keyPrefixLayer1 + cache.Fingerprint(parts...)

	return s.cachedSummary(ctx, key, func(ctx context.Context) (model.Summary, error) {
		content, err := s.agent.Summarize(ctx, chunkPrompt(c, s.style))
		if err != nil {
			return model.Summary{}, err
		}
		return model.Summary{
			Content:        content,
			TimeRangeStart: c.First().Time(),
			TimeRangeEnd:   c.Last().Time(),
			MessageCount:   len(c.Messages),
			Layer:          1,
		}, nil
	})
}

// reduceLayer2 batches layer-1 summaries into token-bounded groups and
// merges each group. Groups are formed over the full ordered layer-1
// output, so this layer is a barrier. Singleton groups pass through without
// an external call.
func (s *RecursiveSummarizer) reduceLayer2(ctx context.Context, layer1 []model.Summary) ([]model.Summary, error) {
	serialized := make([]string, len(layer1))
	for i, sum := range layer1 {
		serialized[i] = encodeEnvelope(sum)
	}

	groups := s.chunks.GroupTexts(serialized, s.mergeTokens)
	groups = s.refineTopicGroups(ctx, layer1, groups)

	merged := make([]model.Summary, 0, len(groups))
	failed := 0
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(group) == 1 {
			merged = append(merged, layer1[group[0]])
			continue
		}

		members := make([]model.Summary, len(group))
		keyParts := make([]string, len(group))
		for i, idx := range group {
			members[i] = layer1[idx]
			keyParts[i] = serialized[idx]
		}
		key := keyPrefixLayer2 + cache.Fingerprint(keyParts...)

		sum, err := s.cachedSummary(ctx, key, func(ctx context.Context) (model.Summary, error) {
			content, err := s.agent.Summarize(ctx, mergePrompt(members))
			if err != nil {
				return model.Summary{}, err
			}
			return aggregate(content, members, 2), nil
		})
		if err != nil {
			log.Printf("summarizer: layer-2 merge of %d summaries failed: %v", len(members), err)
			failed++
			continue
		}
		merged = append(merged, sum)
	}

	if len(merged) == 0 {
		return nil, fmt.Errorf("%w: all %d layer-2 units failed", ErrGenerationFailed, failed)
	}
	return merged, nil
}

// reduceLayer3 merges all layer-2 summaries into exactly one final summary.
// A single input passes through as a well-formed final summary without an
// external call.
func (s *RecursiveSummarizer) reduceLayer3(ctx context.Context, layer2 []model.Summary) (*model.Summary, error) {
	if len(layer2) == 1 {
		final := layer2[0]
		final.Layer = 3
		return &final, nil
	}

	keyParts := make([]string, len(layer2))
	for i, sum := range layer2 {
		keyParts[i] = encodeEnvelope(sum)
	}
	key := keyPrefixLayer3 + cache.Fingerprint(keyParts...)

	sum, err := s.cachedSummary(ctx, key, func(ctx context.Context) (model.Summary, error) {
		content, err := s.agent.Summarize(ctx, finalPrompt(layer2))
		if err != nil {
			return model.Summary{}, err
		}
		return aggregate(content, layer2, 3), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: final merge: %v", ErrGenerationFailed, err)
	}
	return &sum, nil
}

// cachedSummary looks the key up in the cache and otherwise computes the
// summary exactly once, even under concurrent requests for the same key.
// Summaries cross the cache boundary as JSON.
func (s *RecursiveSummarizer) cachedSummary(ctx context.Context, key string, fn func(context.Context) (model.Summary, error)) (model.Summary, error) {
	raw, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (string, error) {
		sum, err := fn(ctx)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(sum)
		if err != nil {
			return "", fmt.Errorf("marshal summary: %w", err)
		}
		return string(data), nil
	})
	if err != nil {
		return model.Summary{}, err
	}

	var sum model.Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		// A corrupt cache entry must not poison the pipeline: drop it and
		// recompute once.
		s.cache.Delete(ctx, key)
		raw, err = s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (string, error) {
			fresh, err := fn(ctx)
			if err != nil {
				return "", err
			}
			data, err := json.Marshal(fresh)
			if err != nil {
				return "", fmt.Errorf("marshal summary: %w", err)
			}
			return string(data), nil
		})
		if err != nil {
			return model.Summary{}, err
		}
		if err := json.Unmarshal([]byte(raw), &sum); err != nil {
			return model.Summary{}, fmt.Errorf("decode cached summary: %w", err)
		}
	}
	return sum, nil
}

// aggregate wraps merged content with bookkeeping spanning all inputs:
// earliest start, latest end, summed message count.
func aggregate(content string, inputs []model.Summary, layer int) model.Summary {
	out := model.Summary{Content: content, Layer: layer}
	r := model.TimeRange{}
	for _, in := range inputs {
		r = r.Span(in.TimeRange())
		out.MessageCount += in.MessageCount
	}
	out.TimeRangeStart = r.Start
	out.TimeRangeEnd = r.End
	return out
}
