package summarizer

import (
	"testing"
	"time"
)

func TestParseWindow(t *testing.T) {
	cases := []struct {
		expr      string
		want      time.Duration
		truncated bool
		wantErr   bool
	}{
		{expr: "3h", want: 3 * time.Hour},
		{expr: "24h", want: 24 * time.Hour},
		{expr: "25h", want: 24 * time.Hour, truncated: true},
		{expr: "100h", want: 24 * time.Hour, truncated: true},
		{expr: "1d", want: 24 * time.Hour},
		{expr: "2d", want: 24 * time.Hour, truncated: true},
		{expr: "1w", want: 24 * time.Hour, truncated: true},
		{expr: "3w", want: 24 * time.Hour, truncated: true},
		{expr: "1m", want: 24 * time.Hour, truncated: true},
		{expr: " 3H ", want: 3 * time.Hour},
		{expr: "abc", wantErr: true},
		{expr: "h", wantErr: true},
		{expr: "", wantErr: true},
		{expr: "0h", wantErr: true},
		{expr: "-2h", wantErr: true},
		{expr: "3x", wantErr: true},
		{expr: "3.5h", wantErr: true},
	}

	for _, tc := range cases {
		d, truncated, err := ParseWindow(tc.expr)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseWindow(%q): expected error, got %v", tc.expr, d)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWindow(%q): unexpected error %v", tc.expr, err)
			continue
		}
		if d != tc.want || truncated != tc.truncated {
			t.Errorf("ParseWindow(%q) = %v, truncated=%v; want %v, truncated=%v",
				tc.expr, d, truncated, tc.want, tc.truncated)
		}
	}
}
