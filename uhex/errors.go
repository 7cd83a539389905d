package uhex

import (
	"fmt"

	"github.com/moffa90/go-mbfs/fault"
)

// EOFError is returned when an image holds records after its End Of File
// record. Such an image cannot be merged because its trailing records would
// be lost.
type EOFError struct {
	BoardID int
	Index   int // 1-based position of the End Of File record
	Total   int

	// MakeCode is set when the image looks like a MakeCode export, which
	// must be imported into the MakeCode editor instead.
	MakeCode bool
}

func (e *EOFError) Error() string {
	if e.MakeCode {
		return fmt.Sprintf("board ID 0x%04X hex is from MakeCode, import this hex into the MakeCode editor to create a Universal Hex", e.BoardID)
	}
	return fmt.Sprintf("End Of File record found at record %d of %d in board ID 0x%04X hex", e.Index, e.Total, e.BoardID)
}

// Unwrap classifies the error as a format fault.
func (e *EOFError) Unwrap() error {
	return fault.ErrFormat
}

func newEOFError(boardID, index int, records []string) *EOFError {
	return &EOFError{
		BoardID:  boardID,
		Index:    index,
		Total:    len(records),
		MakeCode: isMakeCodeForV1(records),
	}
}
