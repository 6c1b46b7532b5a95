package tokens

import (
	"log"
	"unicode"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Protocol-Lattice/go-recap/src/cache"
)

// DefaultEncoding is the BPE encoding used when no model is specified.
const DefaultEncoding = "cl100k_base"

// memoCapacity bounds the per-text count memo.
const memoCapacity = 4096

// Estimator converts text into model token counts. The primary path is exact
// BPE tokenization; if the tokenizer cannot be built or fails on a given
// input, the estimator degrades to a script-aware character heuristic. It
// never returns an error and never panics.
type Estimator struct {
	enc  *tiktoken.Tiktoken
	memo *cache.LRUCache
}

// NewEstimator builds an estimator for the given model name. An unknown or
// empty model falls back to the default encoding; a tokenizer that cannot be
// initialized at all leaves the estimator on the heuristic path.
func NewEstimator(model string) *Estimator {
	est := &Estimator{memo: cache.NewLRUCache(memoCapacity, 0)}

	var enc *tiktoken.Tiktoken
	var err error
	if model != "" {
		enc, err = tiktoken.EncodingForModel(model)
	}
	if enc == nil {
		enc, err = tiktoken.GetEncoding(DefaultEncoding)
	}
	if err != nil {
		log.Printf("tokens: tokenizer init failed, using heuristic estimates: %v", err)
		return est
	}
	est.enc = enc
	return est
}

// Count returns the token count for text. Results are memoized per distinct
// text so repeated counting across chunking passes is cheap.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	key := cache.HashKey(text)
	if v, ok := e.memo.Get(key); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}

	n := e.count(text)
	e.memo.Set(key, n)
	return n
}

// Fits reports whether text stays within limit tokens.
func (e *Estimator) Fits(text string, limit int) bool {
	return e.Count(text) <= limit
}

func (e *Estimator) count(text string) (n int) {
	if e.enc == nil {
		return estimateByScript(text)
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("tokens: tokenizer failed, falling back to heuristic: %v", r)
			n = estimateByScript(text)
		}
	}()

	return len(e.enc.Encode(text, nil, nil))
}

// estimateByScript weighs CJK runes at 1.5 tokens and everything else at
// 0.25 tokens. CJK scripts pack far more meaning per rune, so BPE spends
// more tokens on them; the weights err toward over-counting because an
// under-count risks blowing the real inference budget.
func estimateByScript(text string) int {
	var cjk, other int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	// Round both terms up.
	return (cjk*3+1)/2 + (other+3)/4
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
