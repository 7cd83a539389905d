package mpfs

import (
	"strings"

	"github.com/moffa90/go-mbfs/ihex"
	"github.com/moffa90/go-mbfs/memmap"
)

// BuilderCache holds a parsed MicroPython image and the Intel Hex text of its
// runtime, so that images with different files can be generated without
// decoding or encoding the runtime again.
//
// A BuilderCache is read-only once built and may be shared.
type BuilderCache struct {
	boardID    int
	original   *memmap.Map
	layout     *Layout
	runtimeHex string
}

// NewBuilderCache decodes a MicroPython Intel Hex and caches it.
func NewBuilderCache(text string, boardID int) (*BuilderCache, error) {
	m, err := ihex.Decode(text)
	if err != nil {
		return nil, err
	}
	return NewBuilderCacheFromMap(m, boardID)
}

// NewBuilderCacheFromMap caches an already decoded image. The cache keeps a
// reference to m, which must not be modified afterwards.
func NewBuilderCacheFromMap(m *memmap.Map, boardID int) (*BuilderCache, error) {
	l, err := NewLayout(m)
	if err != nil {
		return nil, err
	}
	info := l.Info
	runtime, err := ihex.Encode(m.Slice(info.RuntimeStart, info.RuntimeEnd-info.RuntimeStart), ihex.DefaultLineSize)
	if err != nil {
		return nil, err
	}
	return &BuilderCache{
		boardID:    boardID,
		original:   m,
		layout:     l,
		runtimeHex: strings.Replace(runtime, ihex.EndOfFileLine, "", 1),
	}, nil
}

// BoardID returns the board the image targets.
func (c *BuilderCache) BoardID() int {
	return c.boardID
}

// Layout returns the filesystem layout of the image.
func (c *BuilderCache) Layout() *Layout {
	return c.layout
}

// FsSize returns the filesystem capacity of the image in bytes.
func (c *BuilderCache) FsSize() int {
	return c.layout.Size()
}

// RuntimeEnd returns the address where the runtime ends.
func (c *BuilderCache) RuntimeEnd() int {
	return c.layout.Info.RuntimeEnd
}

// Files returns the files already present in the cached image.
func (c *BuilderCache) Files() ([]File, error) {
	return readFiles(c.original, c.layout)
}

// withFiles writes files into a clone of the cached image.
func (c *BuilderCache) withFiles(files []File) (*memmap.Map, error) {
	m := c.original.Clone()
	for _, f := range files {
		if err := AddFile(m, c.layout, f.Name, f.Data); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Generate returns the Intel Hex of the image with files added, terminated
// by a newline. Only the part above the runtime is encoded again.
func (c *BuilderCache) Generate(files []File) (string, error) {
	m, err := c.withFiles(files)
	if err != nil {
		return "", err
	}
	rest, err := ihex.Encode(m.SliceFrom(c.RuntimeEnd()), ihex.DefaultLineSize)
	if err != nil {
		return "", err
	}
	return c.runtimeHex + rest + "\n", nil
}

// GenerateBytes returns the flash contents of the image with files added.
func (c *BuilderCache) GenerateBytes(files []File) ([]byte, error) {
	m, err := c.withFiles(files)
	if err != nil {
		return nil, err
	}
	return m.SlicePad(0, c.layout.Info.FlashSize, memmap.Absent), nil
}
