package models

import "context"

// Agent is the external summarization backend. Implementations own their own
// transport concerns; the pipeline owns none of the retry policy.
type Agent interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}
