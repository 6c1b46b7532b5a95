package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Message is a single chat message as delivered by the message store.
// Messages are immutable once ingested; the pipeline only reads them.
type Message struct {
	ID            string `json:"id"`
	Content       string `json:"content"`
	Author        string `json:"author"`
	GroupID       string `json:"group_id"`
	TimestampUnix int64  `json:"timestamp"`
}

// Validate reports whether the message carries every required field.
func (m Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("message missing id")
	}
	if m.Content == "" {
		return errors.New("message missing content")
	}
	if strings.TrimSpace(m.Author) == "" {
		return errors.New("message missing author")
	}
	if m.TimestampUnix <= 0 {
		return fmt.Errorf("message %s has invalid timestamp %d", m.ID, m.TimestampUnix)
	}
	return nil
}

// Time returns the message timestamp as a time.Time.
func (m Message) Time() time.Time {
	return time.Unix(m.TimestampUnix, 0).UTC()
}

// Render formats the message for inclusion in a summarization prompt.
func (m Message) Render() string {
	return fmt.Sprintf("[%s @ %s]: %s", m.Author, m.Time().Format("2006-01-02 15:04:05"), m.Content)
}

// ValidMessages partitions msgs into well-formed records and a quarantine of
// malformed ones. Malformed records never enter the pipeline.
func ValidMessages(msgs []Message) (valid, quarantined []Message) {
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			quarantined = append(quarantined, m)
			continue
		}
		valid = append(valid, m)
	}
	return valid, quarantined
}

// Chunk is an ordered, non-empty run of messages whose combined token cost
// fits the inference budget. Forced marks a chunk produced by splitting a
// single oversized message; its TokenCount may exceed the budget only when
// even maximal splitting could not reduce a fragment below it.
type Chunk struct {
	Messages   []Message `json:"messages"`
	TokenCount int       `json:"token_count"`
	Forced     bool      `json:"forced,omitempty"`
}

// First returns the chronologically first message of the chunk.
func (c Chunk) First() Message {
	return c.Messages[0]
}

// Last returns the chronologically last message of the chunk.
func (c Chunk) Last() Message {
	return c.Messages[len(c.Messages)-1]
}

// Render concatenates the chunk's messages in order, one per line.
func (c Chunk) Render() string {
	lines := make([]string, len(c.Messages))
	for i, m := range c.Messages {
		lines[i] = m.Render()
	}
	return strings.Join(lines, "\n")
}

// Summary is the output of one reduction unit at any layer.
type Summary struct {
	Content        string    `json:"content"`
	TimeRangeStart time.Time `json:"time_range_start"`
	TimeRangeEnd   time.Time `json:"time_range_end"`
	MessageCount   int       `json:"message_count"`
	Layer          int       `json:"layer"`
}

// TimeRange reports the summary's covered window.
func (s Summary) TimeRange() TimeRange {
	return TimeRange{Start: s.TimeRangeStart, End: s.TimeRangeEnd}
}

// TimeRange is a closed interval of wall-clock time.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Span widens the range to include other. Zero ranges adopt other outright.
func (r TimeRange) Span(other TimeRange) TimeRange {
	out := r
	if out.Start.IsZero() || (!other.Start.IsZero() && other.Start.Before(out.Start)) {
		out.Start = other.Start
	}
	if out.End.IsZero() || other.End.After(out.End) {
		out.End = other.End
	}
	return out
}
