package devmem

import (
	"errors"

	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/memmap"
)

// Source tells which on-device metadata format produced a MemInfo.
type Source int

const (
	// SourceUICR means the layout came from the UICR customer area.
	SourceUICR Source = iota + 1

	// SourceRegionTable means the layout came from the Flash Regions Table.
	SourceRegionTable
)

func (s Source) String() string {
	switch s {
	case SourceUICR:
		return "uicr"
	case SourceRegionTable:
		return "region-table"
	default:
		return "unknown"
	}
}

// MemInfo describes where the MicroPython runtime and its filesystem live in
// a firmware image.
type MemInfo struct {
	PageSize   int
	FlashSize  int
	FlashStart int
	FlashEnd   int

	RuntimeStart int
	RuntimeEnd   int
	FsStart      int
	FsEnd        int

	// UICRStart and UICREnd are zero when the layout came from the
	// Flash Regions Table.
	UICRStart int
	UICREnd   int

	MicroPythonVersion string
	DeviceVersion      string
	Source             Source
}

// Lookup reads the memory layout of a MicroPython image, trying the UICR
// data first and the Flash Regions Table second. When neither is present the
// error carries both reasons.
func Lookup(m *memmap.Map) (*MemInfo, error) {
	info, uicrErr := FromUICR(m)
	if uicrErr == nil {
		return info, nil
	}
	info, tableErr := FromRegionTable(m)
	if tableErr == nil {
		return info, nil
	}
	return nil, fault.Formatf("%s\n%s", reason(uicrErr), reason(tableErr))
}

// reason strips the kind suffix added by fault so combined messages read as
// two plain lines.
func reason(err error) string {
	var le *lookupError
	if errors.As(err, &le) {
		return le.msg
	}
	return err.Error()
}

// lookupError keeps the plain message of a failed lookup next to its kind.
type lookupError struct {
	msg string
}

func (e *lookupError) Error() string { return e.msg }

func (e *lookupError) Unwrap() error { return fault.ErrFormat }

func notFound(msg string) error {
	return &lookupError{msg: msg}
}
