package chunker

import (
	"strings"

	"github.com/Protocol-Lattice/go-recap/src/model"
)

// fixedCutRunes is the last-resort fragment length when no punctuation can
// bring a sentence under budget.
const fixedCutRunes = 100

var (
	sentenceEnders = []rune{'。', '．', '.', '!', '！', '?', '？', '\n'}
	clauseEnders   = []rune{'，', ',', ';', '；', '、', ':', '：'}
)

// Estimator is the token-counting dependency. *tokens.Estimator satisfies it.
type Estimator interface {
	Count(text string) int
	Fits(text string, limit int) bool
}

// Chunker partitions ordered message streams into token-bounded chunks.
type Chunker struct {
	estimator Estimator
}

// New creates a chunker on top of the given estimator.
func New(estimator Estimator) *Chunker {
	return &Chunker{estimator: estimator}
}

// Split greedily accumulates messages into chunks of at most maxTokens.
// A message whose own cost exceeds the budget is force-split into fragments
// (sentence, then clause, then fixed-length boundaries), each fragment
// becoming its own single-message chunk tagged with the source metadata.
// Order is preserved: concatenating the chunks' messages reproduces msgs
// exactly once each. Empty input yields a nil slice.
func (c *Chunker) Split(msgs []model.Message, maxTokens int) []model.Chunk {
	if len(msgs) == 0 || maxTokens <= 0 {
		return nil
	}

	var chunks []model.Chunk
	var current []model.Message
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, model.Chunk{Messages: current, TokenCount: currentTokens})
			current = nil
			currentTokens = 0
		}
	}

	for _, msg := range msgs {
		cost := c.estimator.Count(msg.Render())

		if cost > maxTokens {
			flush()
			chunks = append(chunks, c.forceSplit(msg, maxTokens)...)
			continue
		}

		if currentTokens+cost > maxTokens {
			flush()
		}
		current = append(current, msg)
		currentTokens += cost
	}

	// The trailing partial chunk is always emitted.
	flush()

	return chunks
}

// forceSplit reduces one oversized message to a sequence of single-message
// chunks, each fragment carrying the original message's metadata.
func (c *Chunker) forceSplit(msg model.Message, maxTokens int) []model.Chunk {
	parts := c.splitText(msg.Content, maxTokens)
	chunks := make([]model.Chunk, 0, len(parts))
	for _, part := range parts {
		frag := msg
		frag.Content = part
		chunks = append(chunks, model.Chunk{
			Messages:   []model.Message{frag},
			TokenCount: c.estimator.Count(frag.Render()),
			Forced:     true,
		})
	}
	return chunks
}

// splitText breaks text into fragments within maxTokens, trying sentence
// boundaries first, clause punctuation second, and a fixed rune cut last.
func (c *Chunker) splitText(text string, maxTokens int) []string {
	var parts []string
	var current string

	for _, sentence := range splitAfter(text, sentenceEnders) {
		if strings.TrimSpace(sentence) == "" {
			continue
		}
		switch {
		case c.estimator.Count(sentence) > maxTokens:
			if current != "" {
				parts = append(parts, current)
				current = ""
			}
			parts = append(parts, c.splitSentence(sentence, maxTokens)...)
		case c.estimator.Count(current+sentence) > maxTokens:
			if current != "" {
				parts = append(parts, current)
			}
			current = sentence
		default:
			current += sentence
		}
	}

	if current != "" {
		parts = append(parts, current)
	}
	if len(parts) == 0 {
		// No sentence boundary at all; keep the text as one best-effort part.
		parts = append(parts, text)
	}
	return parts
}

func (c *Chunker) splitSentence(sentence string, maxTokens int) []string {
	var parts []string
	var current string

	for _, clause := range splitAfter(sentence, clauseEnders) {
		switch {
		case c.estimator.Count(clause) > maxTokens:
			if current != "" {
				parts = append(parts, current)
				current = ""
			}
			parts = append(parts, cutRunes(clause, fixedCutRunes)...)
		case c.estimator.Count(current+clause) > maxTokens:
			if current != "" {
				parts = append(parts, current)
			}
			current = clause
		default:
			current += clause
		}
	}

	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

// GroupTexts assigns consecutive texts to token-bounded groups and returns
// the index ranges. A text that alone exceeds the budget forms a singleton
// group; it is never dropped. Used to re-chunk serialized layer-1 summaries
// for the topic-merge layer.
func (c *Chunker) GroupTexts(texts []string, maxTokens int) [][]int {
	if len(texts) == 0 || maxTokens <= 0 {
		return nil
	}

	var groups [][]int
	var current []int
	currentTokens := 0

	for i, text := range texts {
		cost := c.estimator.Count(text)
		if len(current) > 0 && currentTokens+cost > maxTokens {
			groups = append(groups, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, i)
		currentTokens += cost
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// splitAfter cuts s after each rune in enders, keeping the delimiter with
// the preceding fragment.
func splitAfter(s string, enders []rune) []string {
	var parts []string
	start := 0
	for i, r := range s {
		for _, e := range enders {
			if r == e {
				end := i + len(string(r))
				parts = append(parts, s[start:end])
				start = end
				break
			}
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

// cutRunes slices s into pieces of at most n runes.
func cutRunes(s string, n int) []string {
	if n <= 0 {
		return []string{s}
	}
	var parts []string
	runes := []rune(s)
	for start := 0; start < len(runes); start += n {
		end := start + n
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
