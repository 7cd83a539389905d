package mpfs

import (
	"github.com/moffa90/go-mbfs/ihex"
	"github.com/moffa90/go-mbfs/memmap"
)

// ReadFiles returns the files stored in the filesystem of m, in chunk order.
func ReadFiles(m *memmap.Map) ([]File, error) {
	l, err := NewLayout(m)
	if err != nil {
		return nil, err
	}
	return readFiles(m, l)
}

// ReadHexFiles decodes a MicroPython Intel Hex and returns its files.
func ReadHexFiles(text string) ([]File, error) {
	m, err := ihex.Decode(text)
	if err != nil {
		return nil, err
	}
	return ReadFiles(m)
}

// WithFiles returns a copy of m with files added to its filesystem, along
// with the layout used to place them. m is not modified.
func WithFiles(m *memmap.Map, files []File) (*memmap.Map, *Layout, error) {
	out := m.Clone()
	l, err := NewLayout(out)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range files {
		if err := AddFile(out, l, f.Name, f.Data); err != nil {
			return nil, nil, err
		}
	}
	return out, l, nil
}

// AddFiles adds files to the filesystem of a MicroPython Intel Hex and
// returns the new hex text, terminated by a newline.
func AddFiles(text string, files []File) (string, error) {
	m, err := ihex.Decode(text)
	if err != nil {
		return "", err
	}
	out, _, err := WithFiles(m, files)
	if err != nil {
		return "", err
	}
	hex, err := ihex.Encode(out, ihex.DefaultLineSize)
	if err != nil {
		return "", err
	}
	return hex + "\n", nil
}

// AddFilesBytes is like AddFiles but returns the flash contents, from
// address 0 to the end of flash, with unprogrammed bytes as 0xFF.
func AddFilesBytes(text string, files []File) ([]byte, error) {
	m, err := ihex.Decode(text)
	if err != nil {
		return nil, err
	}
	out, l, err := WithFiles(m, files)
	if err != nil {
		return nil, err
	}
	return out.SlicePad(0, l.Info.FlashSize, memmap.Absent), nil
}
