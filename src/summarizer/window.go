package summarizer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Hard caps on the summarization window. Whatever the caller asks for, the
// resolver never returns more than 24 hours of history; this protects the
// pipeline from runaway input volume.
const (
	maxWindowHours = 24
	maxWindowDays  = 1
)

// ParseWindow resolves a time-range expression such as "3h" or "1d" into a
// bounded duration. The unit is a single trailing character: h for hours
// (capped at 24) and d for days (capped at 1); w and m are accepted but
// always coerce to one day. truncated reports that the cap or coercion
// shrank the caller's request. Malformed expressions return an error and
// the caller must treat that as a hard stop.
func ParseWindow(expr string) (d time.Duration, truncated bool, err error) {
	expr = strings.TrimSpace(strings.ToLower(expr))
	if len(expr) < 2 {
		return 0, false, fmt.Errorf("time range %q: too short", expr)
	}

	unit := expr[len(expr)-1]
	magnitude, convErr := strconv.Atoi(expr[:len(expr)-1])
	if convErr != nil {
		return 0, false, fmt.Errorf("time range %q: non-numeric magnitude", expr)
	}
	if magnitude <= 0 {
		return 0, false, fmt.Errorf("time range %q: magnitude must be positive", expr)
	}

	switch unit {
	case 'h':
		if magnitude > maxWindowHours {
			return time.Duration(maxWindowHours) * time.Hour, true, nil
		}
		return time.Duration(magnitude) * time.Hour, false, nil
	case 'd':
		if magnitude > maxWindowDays {
			return time.Duration(maxWindowDays) * 24 * time.Hour, true, nil
		}
		return time.Duration(magnitude) * 24 * time.Hour, false, nil
	case 'w', 'm':
		// Weeks and months always coerce to the one-day cap.
		return 24 * time.Hour, true, nil
	default:
		return 0, false, fmt.Errorf("time range %q: unknown unit %q", expr, string(unit))
	}
}
