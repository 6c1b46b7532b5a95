package embed

import (
	"context"
	"fmt"
	"runtime"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedder runs a local ONNX embedding model; no API key required.
type FastEmbedder struct {
	m  *fastembed.FlagEmbedding
	bs int
}

// NewFastEmbed initializes the local model, downloading it into the cache
// dir on first use.
func NewFastEmbed(_ context.Context, opt *Options) (*FastEmbedder, error) {
	var init *fastembed.InitOptions
	if opt != nil {
		init = &fastembed.InitOptions{
			Model:     opt.Model,
			CacheDir:  opt.CacheDir,
			MaxLength: opt.MaxLength,
		}
	}
	m, err := fastembed.NewFlagEmbedding(init)
	if err != nil {
		return nil, err
	}
	// Batch heuristic: keep it modest for desktop CPUs
	bs := 64
	if opt != nil && opt.BatchSize > 0 {
		bs = opt.BatchSize
	}
	if bs > 4*runtime.GOMAXPROCS(0) {
		bs = 4 * runtime.GOMAXPROCS(0)
	}
	return &FastEmbedder{m: m, bs: bs}, nil
}

func (e *FastEmbedder) Close() error {
	if e.m != nil {
		e.m.Destroy()
	}
	return nil
}

// Embed returns the query embedding for one text.
func (e *FastEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec, err := e.m.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("query embed: %w", err)
	}
	return vec, nil
}

// EmbedPassages embeds a batch of passages in one call.
func (e *FastEmbedder) EmbedPassages(_ context.Context, docs []string) ([][]float32, error) {
	out, err := e.m.PassageEmbed(docs, e.bs)
	if err != nil {
		return nil, fmt.Errorf("passage embed: %w", err)
	}
	return out, nil
}
