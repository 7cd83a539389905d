package ihex

import (
	"fmt"

	"github.com/moffa90/go-mbfs/fault"
)

// RecordError reports a malformed record found while decoding hex text.
type RecordError struct {
	// Index is the 1-based position of the record in the text
	Index int

	// Record is the offending line, without line terminator
	Record string

	// Reason describes what is wrong with the record
	Reason string
}

func (e *RecordError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("record %d (%s): %s", e.Index, e.Record, e.Reason)
}

// Unwrap classifies every record error as a format error.
func (e *RecordError) Unwrap() error {
	return fault.ErrFormat
}
