package ihex

import (
	"strings"

	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/memmap"
)

// DefaultLineSize is the number of data bytes per record written by Encode.
const DefaultLineSize = 16

// maxAddress is the last address reachable with Extended Linear Address records.
const maxAddress = 0xFFFFFFFF

// Encode writes m as Intel Hex text, lineSize data bytes per record (1-255).
// An Extended Linear Address record is emitted whenever the data enters a new
// 64 KiB window, and the text ends with the End Of File record without a
// trailing newline.
//
// Example:
//
//	text, err := ihex.Encode(m, ihex.DefaultLineSize)
func Encode(m *memmap.Map, lineSize int) (string, error) {
	if lineSize <= 0 || lineSize > 255 {
		return "", fault.Usagef("line size %d must be between 1 and 255", lineSize)
	}

	var sb strings.Builder
	window := -1
	lastEnd := 0
	for addr, data := range m.All() {
		if len(data) == 0 {
			continue
		}
		if addr < lastEnd {
			return "", fault.Formatf("block at 0x%08X overlaps the previous block ending at 0x%08X", addr, lastEnd)
		}
		end := addr + len(data)
		if int64(end) > maxAddress+1 {
			return "", fault.Formatf("block at 0x%08X ends past 0x%08X", addr, uint32(maxAddress))
		}
		for cur := addr; cur < end; {
			w := cur &^ (segmentSize - 1)
			if w != window {
				sb.WriteString(ExtLinearAddressRecord(uint32(w)))
				sb.WriteByte('\n')
				window = w
			}
			n := min(lineSize, end-cur, w+segmentSize-cur)
			sb.WriteString(Record{
				Address: uint16(cur - w),
				Type:    Data,
				Data:    data[cur-addr : cur-addr+n],
			}.String())
			sb.WriteByte('\n')
			cur += n
		}
		lastEnd = end
	}
	sb.WriteString(EndOfFileLine)
	return sb.String(), nil
}
