package summarizer

import (
	"fmt"
	"strings"
	"time"

	toon "github.com/alpkeskin/gotoon"

	"github.com/Protocol-Lattice/go-recap/src/model"
)

// SystemPrompt is handed to model adapters that support a system role.
const SystemPrompt = "You are a professional conversation summarizer. Analyze the chat " +
	"content, extract the key information, and produce a concise but complete " +
	"summary. Focus on important topics, decisions, and discussion points. " +
	"Stay objective and accurate."

// Style selects the level of detail requested from the model.
type Style string

const (
	StyleBrief    Style = "brief"
	StyleDetailed Style = "detailed"
)

var styleInstructions = map[Style]string{
	StyleBrief: "Provide a brief summary of the chat history in a few sentences. " +
		"Focus on the main topics discussed and key decisions made.",
	StyleDetailed: "Provide a detailed summary of the chat history, including: " +
		"main topics discussed, key decisions and agreements, action items and " +
		"next steps, and important questions raised.",
}

// styleInstruction falls back to brief for unknown styles, matching the
// original template table.
func styleInstruction(style Style) string {
	if inst, ok := styleInstructions[style]; ok {
		return inst
	}
	return styleInstructions[StyleBrief]
}

// chunkPrompt builds the layer-1 prompt from a chunk's rendered messages.
func chunkPrompt(c model.Chunk, style Style) string {
	var b strings.Builder
	b.WriteString(styleInstruction(style))
	b.WriteString("\n\n")
	b.WriteString(c.Render())
	return b.String()
}

// summaryEnvelope is the serialized form a summary takes inside merge
// prompts. TOON encoding keeps the framing cheaper in tokens than JSON.
type summaryEnvelope struct {
	TimeRangeStart string `json:"time_range_start"`
	TimeRangeEnd   string `json:"time_range_end"`
	MessageCount   int    `json:"message_count"`
	Content        string `json:"content"`
}

func envelope(s model.Summary) summaryEnvelope {
	return summaryEnvelope{
		TimeRangeStart: s.TimeRangeStart.Format(time.RFC3339),
		TimeRangeEnd:   s.TimeRangeEnd.Format(time.RFC3339),
		MessageCount:   s.MessageCount,
		Content:        s.Content,
	}
}

func encodeEnvelope(s model.Summary) string {
	enc, err := toon.Encode(envelope(s), toon.WithSortedKeys(true))
	if err != nil {
		// TOON encoding of a flat struct cannot realistically fail; fall
		// back to a plain rendering rather than dropping the summary.
		return fmt.Sprintf("time range: %s - %s\nmessage count: %d\ncontent: %s",
			s.TimeRangeStart.Format(time.RFC3339), s.TimeRangeEnd.Format(time.RFC3339),
			s.MessageCount, s.Content)
	}
	return enc
}

// mergePrompt builds the layer-2 prompt for one topic group. Each input's
// time range and message count ride along so the model can keep the
// chronology straight.
func mergePrompt(group []model.Summary) string {
	var b strings.Builder
	b.WriteString("Merge the following segment summaries of one conversation into a ")
	b.WriteString("single coherent summary. Preserve chronological order and keep the ")
	b.WriteString("important topics, conclusions, and decisions.\n")
	for i, s := range group {
		fmt.Fprintf(&b, "\nSegment %d:\n%s\n", i+1, encodeEnvelope(s))
	}
	return b.String()
}

// finalPrompt builds the layer-3 prompt enumerating every topic summary.
func finalPrompt(groups []model.Summary) string {
	var b strings.Builder
	b.WriteString("Produce one overall summary covering the following topics. ")
	b.WriteString("Highlight the main themes and how the discussion developed, keep ")
	b.WriteString("chronological order, call out key conclusions and decisions, and ")
	b.WriteString("write plain text without markup.\n")
	for i, s := range groups {
		fmt.Fprintf(&b, "\nTopic %d:\n%s\n", i+1, encodeEnvelope(s))
	}
	return b.String()
}
