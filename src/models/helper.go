package models

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FromEnv selects a summarization backend from RECAP_MODEL_PROVIDER and
// RECAP_MODEL. Recognized providers: openai, anthropic, ollama, gemini,
// dummy. An empty provider defaults to dummy so the CLI demo works offline.
func FromEnv(ctx context.Context, systemPrompt string) (Agent, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("RECAP_MODEL_PROVIDER")))
	model := strings.TrimSpace(os.Getenv("RECAP_MODEL"))

	switch provider {
	case "", "dummy":
		return NewDummyLLM(""), nil
	case "openai":
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAILLM(model, systemPrompt), nil
	case "anthropic":
		if model == "" {
			model = "claude-3-5-haiku-latest"
		}
		return NewAnthropicLLM(model, systemPrompt), nil
	case "ollama":
		if model == "" {
			model = "llama3.2"
		}
		return NewOllamaLLM(model, systemPrompt)
	case "gemini":
		if model == "" {
			model = "gemini-1.5-flash"
		}
		return NewGeminiLLM(ctx, model, systemPrompt)
	default:
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}
}
