package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Protocol-Lattice/go-recap/src/model"
	"github.com/Protocol-Lattice/go-recap/src/store"
)

// countingAgent is a deterministic fake model. It counts invocations and can
// be told to fail on prompts containing a marker, or on all prompts.
type countingAgent struct {
	calls   atomic.Int64
	failOn  string
	failAll bool
}

func (a *countingAgent) Summarize(_ context.Context, prompt string) (string, error) {
	a.calls.Add(1)
	if a.failAll {
		return "", errors.New("model unavailable")
	}
	if a.failOn != "" && strings.Contains(prompt, a.failOn) {
		return "", errors.New("model rejected prompt")
	}
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	return "S(" + lines[len(lines)-1] + ")", nil
}

// flatEstimator charges ten tokens for any text, making chunk and group
// boundaries deterministic.
type flatEstimator struct{}

func (flatEstimator) Count(string) int          { return 10 }
func (flatEstimator) Fits(_ string, l int) bool { return 10 <= l }

var testNow = time.Unix(1700003600, 0).UTC()

func fixedClock() time.Time { return testNow }

func seedMessages(t *testing.T, n int) *store.InMemoryStore {
	t.Helper()
	s := store.NewInMemoryStore()
	for i := 0; i < n; i++ {
		msg := model.Message{
			ID:            fmt.Sprintf("m%d", i+1),
			Content:       fmt.Sprintf("message %d", i+1),
			Author:        "tester",
			GroupID:       "g",
			TimestampUnix: testNow.Add(-time.Duration(n-i) * time.Minute).Unix(),
		}
		if err := s.StoreMessage(context.Background(), msg); err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
	}
	return s
}

// newTestSummarizer builds a pipeline that splits five messages into chunks
// of two: ten tokens per message against a 25-token chunk budget.
func newTestSummarizer(msgs store.MessageStore, agent *countingAgent, opts ...Option) *RecursiveSummarizer {
	base := []Option{
		WithEstimator(flatEstimator{}),
		WithChunkTokens(25),
		WithMergeTokens(25),
		WithClock(fixedClock),
	}
	return New(msgs, agent, append(base, opts...)...)
}

func TestSummarizeWindow_InvalidRange(t *testing.T) {
	agent := &countingAgent{}
	s := newTestSummarizer(seedMessages(t, 3), agent)

	_, err := s.SummarizeWindow(context.Background(), "abc", "")
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if n := agent.calls.Load(); n != 0 {
		t.Errorf("invalid range must not reach the model, got %d calls", n)
	}
}

func TestSummarizeWindow_NoData(t *testing.T) {
	agent := &countingAgent{}
	s := newTestSummarizer(store.NewInMemoryStore(), agent)

	_, err := s.SummarizeWindow(context.Background(), "1h", "")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if n := agent.calls.Load(); n != 0 {
		t.Errorf("empty window must not reach the model, got %d calls", n)
	}
}

func TestSummarizeWindow_UserFilterWithoutMatches(t *testing.T) {
	agent := &countingAgent{}
	s := newTestSummarizer(seedMessages(t, 3), agent)

	_, err := s.SummarizeWindow(context.Background(), "1h", "nobody")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData for unmatched filter, got %v", err)
	}
}

func TestSummarizeWindow_SingleChunkPassthrough(t *testing.T) {
	agent := &countingAgent{}
	// Two messages at ten tokens each fit one 25-token chunk: exactly one
	// model call, then passthrough at layers 2 and 3.
	s := newTestSummarizer(seedMessages(t, 2), agent)

	res, err := s.SummarizeWindow(context.Background(), "1h", "")
	if err != nil {
		t.Fatalf("SummarizeWindow: %v", err)
	}
	if n := agent.calls.Load(); n != 1 {
		t.Errorf("expected 1 model call, got %d", n)
	}
	if res.Summary.Layer != 3 {
		t.Errorf("final layer = %d, want 3", res.Summary.Layer)
	}
	if res.Summary.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", res.Summary.MessageCount)
	}
	if res.Truncated {
		t.Error("1h window must not be truncated")
	}
}

func TestSummarizeWindow_MultiChunkPipeline(t *testing.T) {
	agent := &countingAgent{}
	// Five messages chunk as [2 2 1]: three layer-1 calls. The serialized
	// layer-1 summaries group as [2][1]: one merge call plus a passthrough.
	// Two layer-2 summaries need one final call. Five calls total.
	s := newTestSummarizer(seedMessages(t, 5), agent)

	res, err := s.SummarizeWindow(context.Background(), "1h", "")
	if err != nil {
		t.Fatalf("SummarizeWindow: %v", err)
	}
	if n := agent.calls.Load(); n != 5 {
		t.Errorf("expected 5 model calls, got %d", n)
	}
	if res.Summary.MessageCount != 5 {
		t.Errorf("message count = %d, want 5", res.Summary.MessageCount)
	}
	wantStart := testNow.Add(-5 * time.Minute)
	if !res.Summary.TimeRangeStart.Equal(wantStart) {
		t.Errorf("range start = %v, want %v", res.Summary.TimeRangeStart, wantStart)
	}
	wantEnd := testNow.Add(-time.Minute)
	if !res.Summary.TimeRangeEnd.Equal(wantEnd) {
		t.Errorf("range end = %v, want %v", res.Summary.TimeRangeEnd, wantEnd)
	}
	if res.Summary.Content == "" {
		t.Error("final summary content is empty")
	}
}

func TestSummarizeWindow_SecondRunHitsCache(t *testing.T) {
	agent := &countingAgent{}
	s := newTestSummarizer(seedMessages(t, 5), agent)
	ctx := context.Background()

	first, err := s.SummarizeWindow(ctx, "1h", "")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := agent.calls.Load()

	second, err := s.SummarizeWindow(ctx, "1h", "")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if n := agent.calls.Load(); n != before {
		t.Errorf("identical rerun made %d extra model calls", n-before)
	}
	if first.Summary.Content != second.Summary.Content {
		t.Errorf("rerun produced different content: %q vs %q",
			first.Summary.Content, second.Summary.Content)
	}
}

func TestSummarizeWindow_AllUnitsFail(t *testing.T) {
	agent := &countingAgent{failAll: true}
	s := newTestSummarizer(seedMessages(t, 5), agent)

	_, err := s.SummarizeWindow(context.Background(), "1h", "")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestSummarizeWindow_PartialFailureDropsUnit(t *testing.T) {
	// "message 3" lands in the second chunk; that unit fails and is dropped
	// while the rest of the pipeline completes.
	agent := &countingAgent{failOn: "message 3"}
	s := newTestSummarizer(seedMessages(t, 5), agent)

	res, err := s.SummarizeWindow(context.Background(), "1h", "")
	if err != nil {
		t.Fatalf("SummarizeWindow: %v", err)
	}
	if res.Summary.MessageCount != 3 {
		t.Errorf("message count = %d, want 3 (failed chunk's 2 messages dropped)",
			res.Summary.MessageCount)
	}
}

func TestSummarizeWindow_TruncatedWindowSurfaces(t *testing.T) {
	agent := &countingAgent{}
	s := newTestSummarizer(seedMessages(t, 2), agent)

	res, err := s.SummarizeWindow(context.Background(), "2d", "")
	if err != nil {
		t.Fatalf("SummarizeWindow: %v", err)
	}
	if !res.Truncated {
		t.Error("2d request must report truncation to the 1d cap")
	}
}

// malformedStore returns a fixed mix of valid and invalid messages.
type malformedStore struct{}

func (malformedStore) QueryMessages(context.Context, time.Time, time.Time, string, int) ([]model.Message, error) {
	return []model.Message{
		{ID: "ok", Content: "hello", Author: "a", TimestampUnix: testNow.Add(-time.Minute).Unix()},
		{ID: "bad", Content: "", Author: "a", TimestampUnix: testNow.Add(-time.Minute).Unix()},
		{ID: "", Content: "orphan", Author: "a", TimestampUnix: testNow.Add(-time.Minute).Unix()},
	}, nil
}

func TestSummarizeWindow_QuarantinesMalformed(t *testing.T) {
	agent := &countingAgent{}
	s := newTestSummarizer(malformedStore{}, agent)

	res, err := s.SummarizeWindow(context.Background(), "1h", "")
	if err != nil {
		t.Fatalf("SummarizeWindow: %v", err)
	}
	if res.Quarantined != 2 {
		t.Errorf("quarantined = %d, want 2", res.Quarantined)
	}
	if res.Summary.MessageCount != 1 {
		t.Errorf("message count = %d, want 1", res.Summary.MessageCount)
	}
}

// brokenStore fails every query.
type brokenStore struct{}

func (brokenStore) QueryMessages(context.Context, time.Time, time.Time, string, int) ([]model.Message, error) {
	return nil, errors.New("connection refused")
}

func TestSummarizeWindow_StoreErrorSurfaces(t *testing.T) {
	agent := &countingAgent{}
	s := newTestSummarizer(brokenStore{}, agent)

	_, err := s.SummarizeWindow(context.Background(), "1h", "")
	if err == nil {
		t.Fatal("expected store error to surface")
	}
	if errors.Is(err, ErrNoData) || errors.Is(err, ErrInvalidRange) || errors.Is(err, ErrGenerationFailed) {
		t.Errorf("infrastructure failure must not map to a contract sentinel: %v", err)
	}
	if n := agent.calls.Load(); n != 0 {
		t.Errorf("store failure must not reach the model, got %d calls", n)
	}
}

func TestSummarizeWindow_Cancellation(t *testing.T) {
	agent := &countingAgent{}
	s := newTestSummarizer(seedMessages(t, 5), agent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SummarizeWindow(ctx, "1h", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
