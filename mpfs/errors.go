package mpfs

import (
	"fmt"

	"github.com/moffa90/go-mbfs/fault"
)

// NoSpaceError indicates that a file needs more chunks than are free.
type NoSpaceError struct {
	Filename string
	Needed   int // chunks
	Free     int
}

func (e *NoSpaceError) Error() string {
	if e.Filename == "" {
		return "there is no storage space left"
	}
	return fmt.Sprintf("not enough space for the %s file: needs %d chunks, %d free",
		e.Filename, e.Needed, e.Free)
}

// Unwrap classifies the error as a capacity fault.
func (e *NoSpaceError) Unwrap() error {
	return fault.ErrCapacity
}

// ChunkLinkError indicates a broken chain of file chunks.
type ChunkLinkError struct {
	Filename string
	Index    int // chunk holding the bad link
	Next     int // chunk it points to, 0 when the walk did not terminate
	Reason   string
}

func (e *ChunkLinkError) Error() string {
	return fmt.Sprintf("file %q chunk %d: %s", e.Filename, e.Index, e.Reason)
}

// Unwrap classifies the error as an integrity fault.
func (e *ChunkLinkError) Unwrap() error {
	return fault.ErrIntegrity
}
