package mpfs

import (
	"github.com/moffa90/go-mbfs/devmem"
	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/memmap"
)

// Chunk geometry.
const (
	ChunkLen     = 128
	ChunkDataLen = ChunkLen - 2

	// MaxFilenameLength is the longest name, in UTF-8 bytes.
	MaxFilenameLength = 120

	// MaxChunks keeps chunk indexes clear of the marker values.
	MaxChunks = 256 - 4
)

// Chunk marker values.
const (
	MarkerFreed          = 0x00
	MarkerPersistentData = 0xFD
	MarkerFileStart      = 0xFE
	MarkerUnused         = 0xFF
)

// Byte offsets inside a chunk.
const (
	chunkMarker     = 0
	chunkEndOffset  = 1
	chunkNameLength = 2
	chunkTail       = ChunkLen - 1
)

// Script appended by old V1 tools at a fixed address, flagged by "MP".
const (
	appendedScriptStart = 0x3E000
	appendedByte0       = 'M'
	appendedByte1       = 'P'
)

// Layout is the position of the filesystem inside an image.
type Layout struct {
	// Start is the address of chunk 1.
	Start int

	// End is the end of the filesystem, including the persistent page.
	End int

	// LastPage holds the persistent data marker. Chunks live below it.
	LastPage int

	PageSize int
	Info     *devmem.MemInfo
}

// NewLayout discovers the device memory layout of m and derives the
// filesystem boundaries from it.
func NewLayout(m *memmap.Map) (*Layout, error) {
	info, err := devmem.Lookup(m)
	if err != nil {
		return nil, err
	}
	return layoutFor(m, info)
}

func layoutFor(m *memmap.Map, info *devmem.MemInfo) (*Layout, error) {
	end := info.FsEnd
	if info.DeviceVersion == "V1" {
		if AppendedScriptPresent(m) {
			end = appendedScriptStart
		}
		// magnetometer calibration page
		end -= info.PageSize
	}

	start := max(info.FsStart, end-ChunkLen*MaxChunks)
	if info.PageSize <= 0 || start%info.PageSize != 0 {
		return nil, fault.Formatf("file system start address 0x%X does not align with flash page size %d",
			start, info.PageSize)
	}
	if start >= end-info.PageSize {
		return nil, fault.Formatf("file system area 0x%X-0x%X is too small", start, end)
	}

	return &Layout{
		Start:    start,
		End:      end,
		LastPage: end - info.PageSize,
		PageSize: info.PageSize,
		Info:     info,
	}, nil
}

// Size is the filesystem capacity in bytes, excluding the persistent page.
func (l *Layout) Size() int {
	return l.End - l.Start - l.PageSize
}

// Chunks is the number of chunk slots below the persistent page.
func (l *Layout) Chunks() int {
	return (l.LastPage - l.Start) / ChunkLen
}

// ChunkAddress returns the address of a 1-based chunk index.
func (l *Layout) ChunkAddress(index int) int {
	return l.Start + (index-1)*ChunkLen
}

// AppendedScriptPresent reports whether m carries a script appended at
// 0x3E000, the pre-filesystem way of storing user code on V1 boards.
func AppendedScriptPresent(m *memmap.Map) bool {
	header := m.SlicePad(appendedScriptStart, 2, memmap.Absent)
	return header[0] == appendedByte0 && header[1] == appendedByte1
}

// FsSize returns the filesystem capacity of an image in bytes.
func FsSize(m *memmap.Map) (int, error) {
	l, err := NewLayout(m)
	if err != nil {
		return 0, err
	}
	return l.Size(), nil
}
