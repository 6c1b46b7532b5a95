package embed

import (
	"context"
	"log"
	"os"
	"strings"

	fastembed "github.com/anush008/fastembed-go"
)

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configures the local FastEmbed backend.
type Options struct {
	Model     fastembed.EmbeddingModel // zero value picks the library default
	CacheDir  string                   // e.g. ".fastembed"
	MaxLength int                      // token limit, 0 = default
	BatchSize int
}

// ---------- Dummy (fallback) ----------

type DummyEmbedder struct{}

func (DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return DummyEmbedding(text), nil
}

// DummyEmbedding is deterministic and cheap; kept for tests.
func DummyEmbedding(text string) []float32 {
	vec := make([]float32, 384)
	for i, ch := range []byte(text) {
		vec[i%384] += float32(ch) / 255.0
	}
	return vec
}

// AutoEmbedder chooses a provider from env:
// RECAP_EMBED_PROVIDER=openai|fastembed, RECAP_EMBED_MODEL=<model string>.
// Unset or unavailable providers fall back to nil, which disables
// topic-boundary refinement entirely.
func AutoEmbedder() Embedder {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("RECAP_EMBED_PROVIDER")))
	model := strings.TrimSpace(os.Getenv("RECAP_EMBED_MODEL"))

	switch provider {
	case "openai":
		if e, err := NewOpenAIEmbedder(model); err == nil {
			return e
		}
	case "fastembed":
		if e, err := NewFastEmbed(context.Background(), &Options{CacheDir: ".fastembed"}); err == nil {
			return e
		}
	case "dummy":
		return DummyEmbedder{}
	case "":
		return nil
	}

	log.Printf("AutoEmbedder: provider %q unavailable, topic refinement disabled", provider)
	return nil
}
