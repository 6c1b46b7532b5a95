package summarizer

import "errors"

// The produced contract maps every request to one of four outcomes: a
// summary, or one of these sentinel errors. Callers branch with errors.Is;
// anything else is an infrastructure failure surfaced verbatim.
var (
	// ErrInvalidRange means the time-range expression could not be parsed.
	// No work is attempted.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrNoData means the window contained no messages. Not a failure; no
	// external call is made.
	ErrNoData = errors.New("no messages in range")

	// ErrGenerationFailed means every reduction unit at some layer failed,
	// so no faithful summary can be produced.
	ErrGenerationFailed = errors.New("summary generation failed")
)
