package ihex

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/moffa90/go-mbfs/memmap"
)

// lineRegexp matches one record: the hex digits up to the checksum, the
// checksum, and an optional line terminator.
var lineRegexp = regexp.MustCompile(`:([0-9A-Fa-f]{8,})([0-9A-Fa-f]{2})(?:\r\n|\r|\n|)`)

// segmentSize is the span addressable by the 16-bit offset of a data record.
const segmentSize = 0x10000

// Decode parses Intel Hex text into a memory map with contiguous data
// coalesced into single blocks.
//
// Example:
//
//	m, err := ihex.Decode(":0100000041BE\n:00000001FF\n")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	data, _ := m.Get(0) // []byte{0x41}
func Decode(text string) (*memmap.Map, error) {
	return DecodeBlocks(text, 0)
}

// DecodeBlocks is like Decode but caps coalesced blocks: contiguous data keeps
// growing a block only while it is shorter than maxBlockSize. A maxBlockSize
// <= 0 means no cap.
func DecodeBlocks(text string, maxBlockSize int) (*memmap.Map, error) {
	blocks := memmap.New()
	base := 0
	lastParsed := 0
	count := 0

	for _, loc := range lineRegexp.FindAllStringSubmatchIndex(text, -1) {
		count++
		line := strings.TrimRight(text[loc[0]:loc[1]], "\r\n")
		if loc[0] != lastParsed {
			return nil, &RecordError{
				Index:  count,
				Record: line,
				Reason: fmt.Sprintf("could not parse characters %d to %d (%q)",
					lastParsed, loc[0], strings.TrimSpace(text[lastParsed:min(loc[0], lastParsed+16)])),
			}
		}
		lastParsed = loc[1]

		raw, err := hex.DecodeString(text[loc[2]:loc[3]])
		if err != nil {
			return nil, &RecordError{Index: count, Record: line, Reason: "record has an odd number of hex digits"}
		}
		length := int(raw[0])
		if length+4 != len(raw) {
			return nil, &RecordError{
				Index:  count,
				Record: line,
				Reason: fmt.Sprintf("mismatched record length, expected %d data bytes but actual length is %d", length, len(raw)-4),
			}
		}
		want, _ := strconv.ParseUint(text[loc[4]:loc[5]], 16, 8)
		if cs := Checksum(raw); byte(want) != cs {
			return nil, &RecordError{
				Index:  count,
				Record: line,
				Reason: fmt.Sprintf("checksum failed, got 0x%02X, expected 0x%02X", want, cs),
			}
		}

		offset := int(raw[1])<<8 | int(raw[2])
		typ := RecordType(raw[3])
		data := raw[4:]

		if typ == Data {
			addr := base + offset
			if blocks.Has(addr) {
				return nil, &RecordError{Index: count, Record: line, Reason: fmt.Sprintf("duplicated data at address 0x%08X", addr)}
			}
			if offset+len(data) > segmentSize {
				return nil, &RecordError{
					Index:  count,
					Record: line,
					Reason: "data wraps over 0xFFFF, offset plus data length must not exceed the 64 KiB segment",
				}
			}
			if err := blocks.Set(addr, data); err != nil {
				return nil, &RecordError{Index: count, Record: line, Reason: err.Error()}
			}
			continue
		}

		if offset != 0 {
			return nil, &RecordError{Index: count, Record: line, Reason: "record must have 0000 as data offset"}
		}
		switch typ {
		case EndOfFile:
			if lastParsed != len(text) {
				return nil, &RecordError{Index: count, Record: line, Reason: "there is data after an End Of File record"}
			}
			return blocks.Join(maxBlockSize)
		case ExtendedSegmentAddress, ExtendedLinearAddress:
			if len(data) != 2 {
				return nil, &RecordError{Index: count, Record: line, Reason: "address record must carry 2 data bytes"}
			}
			base = int(data[0])<<8 | int(data[1])
			if typ == ExtendedSegmentAddress {
				base <<= 4
			} else {
				base <<= 16
			}
		case StartSegmentAddress, StartLinearAddress:
		default:
			return nil, &RecordError{
				Index:  count,
				Record: line,
				Reason: fmt.Sprintf("invalid record type 0x%02X, should be between 0x00 and 0x05", byte(typ)),
			}
		}
	}

	if count > 0 {
		return nil, &RecordError{Index: count, Reason: "no End Of File record at end of file"}
	}
	return nil, &RecordError{Reason: "malformed hex text, could not parse any records"}
}

// DecodeReader reads all of r and decodes it as Intel Hex.
func DecodeReader(r io.Reader) (*memmap.Map, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read hex: %w", err)
	}
	return Decode(string(b))
}

// DecodeFile decodes the Intel Hex file at path.
func DecodeFile(path string) (*memmap.Map, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return Decode(string(b))
}
