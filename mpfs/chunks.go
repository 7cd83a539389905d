package mpfs

import (
	"bytes"
	"fmt"

	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/memmap"
)

// File is a named file of the MicroPython filesystem.
type File struct {
	Name string
	Data []byte
}

// fsFile is a file serialised the way MicroPython stores it: an end offset,
// the name length, the name, the data and one 0xFF sentinel.
type fsFile struct {
	name string
	raw  []byte
}

func newFsFile(name string, data []byte) (*fsFile, error) {
	if len(name) > MaxFilenameLength {
		return nil, fault.Usagef("file name %q is too long (max %d characters)", name, MaxFilenameLength)
	}
	headerSize := 2 + len(name)
	raw := make([]byte, 0, headerSize+len(data)+1)
	raw = append(raw, byte((headerSize+len(data))%ChunkDataLen), byte(len(name)))
	raw = append(raw, name...)
	raw = append(raw, data...)
	// a file ending on a chunk boundary still takes the next chunk
	raw = append(raw, 0xFF)
	return &fsFile{name: name, raw: raw}, nil
}

func (f *fsFile) chunkCount() int {
	return (len(f.raw) + ChunkDataLen - 1) / ChunkDataLen
}

func (f *fsFile) size() int {
	return f.chunkCount() * ChunkLen
}

// chunks lays the file out over the free chunk indexes, in order.
func (f *fsFile) chunks(free []int) ([][]byte, error) {
	n := f.chunkCount()
	if n > len(free) {
		return nil, &NoSpaceError{Filename: f.name, Needed: n, Free: len(free)}
	}
	chunks := make([][]byte, n)
	for k := range chunks {
		c := bytes.Repeat([]byte{MarkerUnused}, ChunkLen)
		if k == 0 {
			c[chunkMarker] = MarkerFileStart
		} else {
			c[chunkMarker] = byte(free[k-1])
			chunks[k-1][chunkTail] = byte(free[k])
		}
		copy(c[chunkMarker+1:chunkTail], f.raw[k*ChunkDataLen:min((k+1)*ChunkDataLen, len(f.raw))])
		chunks[k] = c
	}
	return chunks, nil
}

// CalculateFileSize returns the flash space a file takes, in whole chunks.
func CalculateFileSize(name string, data []byte) (int, error) {
	f, err := newFsFile(name, data)
	if err != nil {
		return 0, err
	}
	return f.size(), nil
}

// FreeChunks lists the 1-based indexes of chunks marked Unused or Freed.
func FreeChunks(m *memmap.Map, l *Layout) []int {
	var free []int
	index := 1
	for addr := l.Start; addr < l.LastPage; addr += ChunkLen {
		switch m.SlicePad(addr, 1, MarkerUnused)[0] {
		case MarkerUnused, MarkerFreed:
			free = append(free, index)
		}
		index++
	}
	return free
}

// AddFile writes a file into the filesystem of m and marks the persistent
// page. Every chunk is built before m is touched, so a failure leaves m
// unchanged.
func AddFile(m *memmap.Map, l *Layout, name string, data []byte) error {
	if name == "" {
		return fault.Usagef("file has to have a file name")
	}
	if len(data) == 0 {
		return fault.Usagef("file %s has to contain data", name)
	}
	free := FreeChunks(m, l)
	if len(free) == 0 {
		return &NoSpaceError{}
	}
	f, err := newFsFile(name, data)
	if err != nil {
		return err
	}
	chunks, err := f.chunks(free)
	if err != nil {
		return err
	}

	for i, c := range chunks {
		if err := m.Patch(l.ChunkAddress(free[i]), c); err != nil {
			return err
		}
	}
	return m.Patch(l.LastPage, []byte{MarkerPersistentData})
}

// readFiles walks the chunk chains of every file in m.
func readFiles(m *memmap.Map, l *Layout) ([]File, error) {
	used := make(map[int][]byte)
	var heads []int
	index := 1
	for addr := l.Start; addr < l.LastPage; addr += ChunkLen {
		c := m.SlicePad(addr, ChunkLen, MarkerUnused)
		switch c[chunkMarker] {
		case MarkerUnused, MarkerFreed, MarkerPersistentData:
		default:
			used[index] = c
			if c[chunkMarker] == MarkerFileStart {
				heads = append(heads, index)
			}
		}
		index++
	}

	var files []File
	seen := make(map[string]bool, len(heads))
	for _, head := range heads {
		f, err := readChain(used, head)
		if err != nil {
			return nil, err
		}
		if seen[f.Name] {
			return nil, fault.Integrityf("found multiple files named: %s", f.Name)
		}
		seen[f.Name] = true
		files = append(files, f)
	}
	return files, nil
}

// readChain follows the chunks of one file. The walk is bounded by the
// number of used chunks so that a cycle is reported instead of looping.
func readChain(used map[int][]byte, head int) (File, error) {
	cur := used[head]
	endOffset := int(cur[chunkEndOffset])
	dataStart := 3 + int(cur[chunkNameLength])
	if dataStart > chunkTail {
		return File{}, fault.Integrityf("chunk %d declares a %d byte file name", head, cur[chunkNameLength])
	}
	name := string(cur[3:dataStart])

	var data []byte
	idx := head
	for budget := len(used) + 1; budget > 0; budget-- {
		next := int(cur[chunkTail])
		if next == MarkerUnused {
			if stop := min(1+endOffset, ChunkLen); stop > dataStart {
				data = append(data, cur[dataStart:stop]...)
			}
			return File{Name: name, Data: data}, nil
		}
		data = append(data, cur[dataStart:chunkTail]...)

		nc, ok := used[next]
		if !ok {
			return File{}, &ChunkLinkError{Filename: name, Index: idx, Next: next,
				Reason: fmt.Sprintf("points to unused chunk %d", next)}
		}
		if int(nc[chunkMarker]) != idx {
			return File{}, &ChunkLinkError{Filename: name, Index: idx, Next: next,
				Reason: fmt.Sprintf("chunk %d does not link back to it", next)}
		}
		cur, idx = nc, next
		dataStart = 1
	}
	return File{}, &ChunkLinkError{Filename: name, Index: head,
		Reason: "malformed file chunks did not link correctly"}
}
