package model

import (
	"strings"
	"testing"
	"time"
)

func TestMessageValidate(t *testing.T) {
	valid := Message{ID: "1", Content: "hi", Author: "a", TimestampUnix: 1700000000}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid message rejected: %v", err)
	}

	cases := map[string]Message{
		"missing id":      {Content: "hi", Author: "a", TimestampUnix: 1700000000},
		"missing content": {ID: "1", Author: "a", TimestampUnix: 1700000000},
		"missing author":  {ID: "1", Content: "hi", TimestampUnix: 1700000000},
		"zero timestamp":  {ID: "1", Content: "hi", Author: "a"},
		"negative ts":     {ID: "1", Content: "hi", Author: "a", TimestampUnix: -5},
	}
	for name, msg := range cases {
		if err := msg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidMessagesPartition(t *testing.T) {
	msgs := []Message{
		{ID: "1", Content: "ok", Author: "a", TimestampUnix: 1700000000},
		{ID: "2", Author: "a", TimestampUnix: 1700000000},
		{ID: "3", Content: "ok", Author: "a", TimestampUnix: 1700000001},
	}
	valid, quarantined := ValidMessages(msgs)
	if len(valid) != 2 || len(quarantined) != 1 {
		t.Fatalf("partition = %d valid, %d quarantined; want 2, 1", len(valid), len(quarantined))
	}
	if quarantined[0].ID != "2" {
		t.Errorf("wrong message quarantined: %s", quarantined[0].ID)
	}
}

func TestMessageRender(t *testing.T) {
	msg := Message{ID: "1", Content: "hello", Author: "ada", TimestampUnix: 1700000000}
	got := msg.Render()
	if !strings.HasPrefix(got, "[ada @ ") || !strings.HasSuffix(got, "]: hello") {
		t.Errorf("unexpected render: %q", got)
	}
}

func TestChunkRender(t *testing.T) {
	c := Chunk{Messages: []Message{
		{ID: "1", Content: "one", Author: "a", TimestampUnix: 1700000000},
		{ID: "2", Content: "two", Author: "b", TimestampUnix: 1700000060},
	}}
	lines := strings.Split(c.Render(), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if c.First().ID != "1" || c.Last().ID != "2" {
		t.Errorf("First/Last = %s/%s, want 1/2", c.First().ID, c.Last().ID)
	}
}

func TestTimeRangeSpan(t *testing.T) {
	t1 := time.Unix(1700000000, 0)
	t2 := time.Unix(1700003600, 0)
	t3 := time.Unix(1700007200, 0)

	r := TimeRange{}
	r = r.Span(TimeRange{Start: t2, End: t2})
	if !r.Start.Equal(t2) || !r.End.Equal(t2) {
		t.Fatalf("zero range must adopt other: %+v", r)
	}
	r = r.Span(TimeRange{Start: t1, End: t3})
	if !r.Start.Equal(t1) || !r.End.Equal(t3) {
		t.Errorf("span must widen both ends: %+v", r)
	}
	r = r.Span(TimeRange{Start: t2, End: t2})
	if !r.Start.Equal(t1) || !r.End.Equal(t3) {
		t.Errorf("inner range must not shrink the span: %+v", r)
	}
}
