package devmem

import (
	"bytes"
	"encoding/binary"

	"github.com/moffa90/go-mbfs/memmap"
)

// Region identifiers of the Flash Regions Table.
const (
	RegionSoftDevice  = 1
	RegionMicroPython = 2
	RegionFs          = 3
)

// Hash types of a region row.
const (
	HashEmpty   = 0
	HashData    = 1
	HashPointer = 2
)

const (
	// TableMagic1 opens the table header, TableMagic2 closes it at the
	// end of a flash page.
	TableMagic1 = 0x597F30FE
	TableMagic2 = 0xC1B1D79D

	tableScanPageSize = 4096
	tableFlashSize    = 512 * 1024

	// header offsets, counted back from the end of the page
	headerMagic2      = 4
	headerPageSizeLog = 6
	headerRegionCount = 8
	headerTableLength = 10
	headerVersion     = 12
	headerMagic1      = 16

	// row offsets, counted back from the end of the row
	rowHashData = 8
	rowLength   = 12
	rowStart    = 14
	rowHashType = 15
	rowID       = 16

	rowSize = rowID
)

// TableHeader is the trailer of the Flash Regions Table.
type TableHeader struct {
	Version     int
	TableLength int
	RegionCount int
	PageSize    int

	// StartAddress is where the header begins, EndAddress is the end of
	// the page holding the table.
	StartAddress int
	EndAddress   int
}

// Region is one row of the Flash Regions Table.
type Region struct {
	ID        int
	HashType  int
	StartPage int
	Length    int
	HashData  uint64

	// Pointed holds the string referenced by HashData when HashType is
	// HashPointer.
	Pointed string
}

// FindTableHeader scans the image page by page for the Flash Regions Table
// header.
func FindTableHeader(m *memmap.Map) (*TableHeader, error) {
	pages, err := m.Paginate(tableScanPageSize, 0xFF)
	if err != nil {
		return nil, err
	}

	var magic1, magic2 [4]byte
	binary.LittleEndian.PutUint32(magic1[:], TableMagic1)
	binary.LittleEndian.PutUint32(magic2[:], TableMagic2)

	end := -1
	for addr, page := range pages.All() {
		if len(page) < headerMagic1 {
			continue
		}
		n := len(page)
		if bytes.Equal(page[n-headerMagic2:], magic2[:]) &&
			bytes.Equal(page[n-headerMagic1:n-headerMagic1+4], magic1[:]) {
			end = addr + tableScanPageSize
			break
		}
	}
	if end < 0 {
		return nil, notFound("could not find the Flash Regions Table header")
	}

	log2 := m.Uint16(end - headerPageSizeLog)
	if log2 > 30 {
		return nil, notFound("Flash Regions Table has an invalid page size")
	}
	return &TableHeader{
		Version:      int(m.Uint16(end - headerVersion)),
		TableLength:  int(m.Uint16(end - headerTableLength)),
		RegionCount:  int(m.Uint16(end - headerRegionCount)),
		PageSize:     1 << log2,
		StartAddress: end - headerMagic1,
		EndAddress:   end,
	}, nil
}

// readRegion parses the row ending at rowEnd.
func readRegion(m *memmap.Map, rowEnd int) Region {
	r := Region{
		ID:        int(m.Uint8(rowEnd - rowID)),
		HashType:  int(m.Uint8(rowEnd - rowHashType)),
		StartPage: int(m.Uint16(rowEnd - rowStart)),
		Length:    int(m.Uint32(rowEnd - rowLength)),
		HashData:  m.Uint64(rowEnd - rowHashData),
	}
	if r.HashType == HashPointer {
		r.Pointed = m.String(int(r.HashData & 0xFFFFFFFF))
	}
	return r
}

// Regions returns the rows of the table, keyed by region ID. A later row
// with the same ID replaces an earlier one.
func Regions(m *memmap.Map, h *TableHeader) map[int]Region {
	regions := make(map[int]Region, h.RegionCount)
	for i := 0; i < h.RegionCount; i++ {
		r := readRegion(m, h.StartAddress-i*rowSize)
		regions[r.ID] = r
	}
	return regions
}

// FromRegionTable reads the layout from the Flash Regions Table. The runtime
// is taken to span from address 0 to the end of the page holding the table.
func FromRegionTable(m *memmap.Map) (*MemInfo, error) {
	h, err := FindTableHeader(m)
	if err != nil {
		return nil, err
	}
	regions := Regions(m, h)

	upy, ok := regions[RegionMicroPython]
	if !ok {
		return nil, notFound("could not find a MicroPython region in the regions table")
	}
	fs, ok := regions[RegionFs]
	if !ok {
		return nil, notFound("could not find a File System region in the regions table")
	}

	fsStart := fs.StartPage * h.PageSize
	return &MemInfo{
		PageSize:           h.PageSize,
		FlashSize:          tableFlashSize,
		FlashStart:         0,
		FlashEnd:           tableFlashSize,
		RuntimeStart:       0,
		RuntimeEnd:         h.EndAddress,
		FsStart:            fsStart,
		FsEnd:              fsStart + fs.Length,
		MicroPythonVersion: upy.Pointed,
		DeviceVersion:      "V2",
		Source:             SourceRegionTable,
	}, nil
}
