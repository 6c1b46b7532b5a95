package models

import (
	"context"
	"fmt"
	"strings"
)

// DummyLLM is a deterministic model implementation useful for local testing
// without API calls. It answers with a prefixed digest of the prompt.
type DummyLLM struct {
	Prefix string
}

func NewDummyLLM(prefix string) *DummyLLM {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Summary:"
	}
	return &DummyLLM{Prefix: prefix}
}

func (d *DummyLLM) Summarize(_ context.Context, prompt string) (string, error) {
	lines := strings.Split(prompt, "\n")
	var first, last string
	for _, line := range lines {
		if candidate := strings.TrimSpace(line); candidate != "" {
			first = candidate
			break
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if candidate := strings.TrimSpace(lines[i]); candidate != "" {
			last = candidate
			break
		}
	}
	if first == "" {
		return fmt.Sprintf("%s <empty prompt>", d.Prefix), nil
	}
	if first == last {
		return fmt.Sprintf("%s %s", d.Prefix, first), nil
	}
	return fmt.Sprintf("%s %s ... %s", d.Prefix, first, last), nil
}
