package devmem

import (
	"github.com/moffa90/go-mbfs/memmap"
)

// UICR customer area used by MicroPython.
const (
	uicrStart          = 0x10001000
	uicrCustomerOffset = 0x80
	uicrUPyOffset      = 0x40

	// UICRStart is the address of the MicroPython magic value.
	UICRStart = uicrStart + uicrCustomerOffset + uicrUPyOffset

	uicrMagic       = UICRStart
	uicrEndMarker   = uicrMagic + 4
	uicrPageSizeLog = uicrEndMarker + 4
	uicrStartPage   = uicrPageSizeLog + 4
	uicrPagesUsed   = uicrStartPage + 2
	uicrDelimiter   = uicrPagesUsed + 2
	uicrVersionLoc  = uicrDelimiter + 4
	uicrRegionsTerm = uicrVersionLoc + 4

	// UICREnd is the address just past the MicroPython UICR data.
	UICREnd = uicrRegionsTerm + 4
)

type device struct {
	version   string
	magic     uint32
	flashSize int
	fsEnd     int
}

var devices = []device{
	{version: "V1", magic: 0x17EEB07C, flashSize: 256 * 1024, fsEnd: 256 * 1024},
	{version: "V2", magic: 0x47EEB07C, flashSize: 512 * 1024, fsEnd: 0x73000},
}

// FromUICR reads the layout from the MicroPython data in the UICR customer
// area. It fails when the magic value matches no known board revision.
func FromUICR(m *memmap.Map) (*MemInfo, error) {
	uicr := m.SliceFrom(UICRStart)
	magic := uicr.Uint32(uicrMagic)

	var dev *device
	for i := range devices {
		if devices[i].magic == magic {
			dev = &devices[i]
			break
		}
	}
	if dev == nil {
		return nil, notFound("could not find valid MicroPython UICR data")
	}

	log2 := uicr.Uint32(uicrPageSizeLog)
	if log2 > 30 {
		return nil, notFound("MicroPython UICR data has an invalid page size")
	}
	pageSize := 1 << log2
	flashStart := int(uicr.Uint16(uicrStartPage)) * pageSize
	runtimeEnd := int(uicr.Uint16(uicrPagesUsed)) * pageSize

	return &MemInfo{
		PageSize:           pageSize,
		FlashSize:          dev.flashSize,
		FlashStart:         flashStart,
		FlashEnd:           flashStart + dev.flashSize,
		RuntimeStart:       flashStart,
		RuntimeEnd:         runtimeEnd,
		FsStart:            runtimeEnd,
		FsEnd:              dev.fsEnd,
		UICRStart:          UICRStart,
		UICREnd:            UICREnd,
		MicroPythonVersion: m.String(int(uicr.Uint32(uicrVersionLoc))),
		DeviceVersion:      dev.version,
		Source:             SourceUICR,
	}, nil
}
