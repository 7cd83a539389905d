package uhex

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/ihex"
)

// Board identifiers of the micro:bit revisions.
const (
	BoardV1 = 0x9900
	BoardV2 = 0x9903
)

// BlockSize is the alignment, in characters including line feeds, of every
// board section or block in a Universal Hex.
const BlockSize = 512

// v1BoardIDs keep plain Data records so that older tools still flash them.
var v1BoardIDs = []int{0x9900, 0x9901}

const (
	elaPrefix        = ":02000004"
	blockStartPrefix = ":0400000A"
	eofLine          = ihex.EndOfFileLine + "\n"
)

// Hex is one Intel Hex image tagged with the board it targets.
type Hex struct {
	BoardID int
	Hex     string
}

// Format selects how board images are laid out in a Universal Hex.
type Format int

const (
	// FormatSections writes one contiguous section per board.
	FormatSections Format = iota

	// FormatBlocks interleaves boards in 512-character blocks.
	FormatBlocks
)

func (f Format) String() string {
	switch f {
	case FormatSections:
		return "sections"
	case FormatBlocks:
		return "blocks"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses "sections" or "blocks".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sections", "section":
		return FormatSections, nil
	case "blocks", "block":
		return FormatBlocks, nil
	default:
		return 0, fault.Usagef("unknown Universal Hex format %q", s)
	}
}

// Create merges the images into one Universal Hex. The result carries a
// single End Of File record, at the very end. No images yields "".
//
// Example:
//
//	universal, err := uhex.Create([]uhex.Hex{
//	    {BoardID: uhex.BoardV1, Hex: v1},
//	    {BoardID: uhex.BoardV2, Hex: v2},
//	}, uhex.FormatSections)
func Create(hexes []Hex, format Format) (string, error) {
	if len(hexes) == 0 {
		return "", nil
	}
	toCustom := sectionFormat
	if format == FormatBlocks {
		toCustom = blocksFormat
	}

	var sb strings.Builder
	for i, h := range hexes {
		if h.BoardID < 0 || h.BoardID > 0xFFFF {
			return "", fault.Usagef("board ID 0x%X is outside the 16-bit range", h.BoardID)
		}
		custom, err := toCustom(h.Hex, h.BoardID)
		if err != nil {
			return "", err
		}
		last := i == len(hexes)-1
		if !last {
			custom = strings.TrimSuffix(custom, eofLine)
		}
		sb.WriteString(custom)
		if last && !strings.HasSuffix(custom, eofLine) {
			sb.WriteString(eofLine)
		}
	}
	return sb.String(), nil
}

// sectionFormat converts one image into a section: an address record, a
// Block Start record, the image records and padding up to the next 512
// character boundary.
func sectionFormat(text string, boardID int) (string, error) {
	records := ihex.SplitRecords(text)
	if len(records) == 0 {
		return "", nil
	}
	if isUniversalHexRecords(records) {
		return "", fault.Formatf("board ID 0x%04X hex is already a Universal Hex", boardID)
	}

	var lines []string
	length := 0
	add := func(r string) {
		lines = append(lines, r)
		length += len(r) + 1
	}

	i := 0
	first, err := ihex.RecordTypeOf(records[0])
	if err != nil {
		return "", err
	}
	switch first {
	case ihex.ExtendedLinearAddress:
		add(records[0])
		i++
	case ihex.ExtendedSegmentAddress:
		ela, err := ihex.ConvertExtSegToLinAddress(records[0])
		if err != nil {
			return "", err
		}
		add(ela)
		i++
	default:
		add(ihex.ExtLinearAddressRecord(0))
	}
	start, err := ihex.BlockStartRecord(boardID)
	if err != nil {
		return "", err
	}
	add(start)

	replaceData := !slices.Contains(v1BoardIDs, boardID)
	endOfFile := false
	for i < len(records) && !endOfFile {
		r := records[i]
		i++
		typ, err := ihex.RecordTypeOf(r)
		if err != nil {
			return "", err
		}
		switch typ {
		case ihex.Data:
			if replaceData {
				if r, err = ihex.ConvertRecord(r, ihex.CustomData); err != nil {
					return "", err
				}
			}
			add(r)
		case ihex.ExtendedSegmentAddress:
			ela, err := ihex.ConvertExtSegToLinAddress(r)
			if err != nil {
				return "", err
			}
			add(ela)
		case ihex.ExtendedLinearAddress:
			add(r)
		case ihex.EndOfFile:
			endOfFile = true
		}
	}
	if i != len(records) {
		return "", newEOFError(boardID, i, records)
	}

	blockEnd, _ := ihex.BlockEndRecord(0)
	length += len(blockEnd) + 1
	emptyPad, _ := ihex.PaddedDataRecord(0)
	padOverhead := len(emptyPad) + 1
	maxBytes, err := ihex.FindDataFieldLength(records)
	if err != nil {
		return "", err
	}

	needed := (BlockSize - length%BlockSize) % BlockSize
	for needed > maxBytes*2 {
		pad, err := ihex.PaddedDataRecord(min((needed-padOverhead)>>1, maxBytes))
		if err != nil {
			return "", err
		}
		add(pad)
		needed = (BlockSize - length%BlockSize) % BlockSize
	}
	if blockEnd, err = ihex.BlockEndRecord(needed >> 1); err != nil {
		return "", err
	}
	lines = append(lines, blockEnd)
	if endOfFile {
		lines = append(lines, ihex.EndOfFileLine)
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n"), nil
}

// blocksFormat converts one image into self-contained 512 character blocks,
// each opened by the current address record and a Block Start record.
func blocksFormat(text string, boardID int) (string, error) {
	records := ihex.SplitRecords(text)
	if len(records) == 0 {
		return "", nil
	}
	if isUniversalHexRecords(records) {
		return "", fault.Formatf("board ID 0x%04X hex is already a Universal Hex", boardID)
	}
	capacity, err := ihex.FindDataFieldLength(records)
	if err != nil {
		return "", err
	}
	start, err := ihex.BlockStartRecord(boardID)
	if err != nil {
		return "", err
	}
	blockEnd, _ := ihex.BlockEndRecord(0)
	emptyPad, _ := ihex.PaddedDataRecord(0)
	replaceData := !slices.Contains(v1BoardIDs, boardID)
	currentELA := ihex.ExtLinearAddressRecord(0)

	var lines []string
	i := 0
	for i < len(records) {
		blockLen := 0
		typ, err := ihex.RecordTypeOf(records[i])
		if err != nil {
			return "", err
		}
		switch typ {
		case ihex.ExtendedLinearAddress:
			currentELA = records[i]
			i++
		case ihex.ExtendedSegmentAddress:
			if currentELA, err = ihex.ConvertExtSegToLinAddress(records[i]); err != nil {
				return "", err
			}
			i++
		}
		lines = append(lines, currentELA, start)
		blockLen += len(currentELA) + 1 + len(start) + 1 + len(blockEnd) + 1

		endOfFile := false
		for i < len(records) && BlockSize >= blockLen+len(records[i])+1 {
			r := records[i]
			i++
			typ, err := ihex.RecordTypeOf(r)
			if err != nil {
				return "", err
			}
			switch {
			case replaceData && typ == ihex.Data:
				if r, err = ihex.ConvertRecord(r, ihex.CustomData); err != nil {
					return "", err
				}
			case typ == ihex.ExtendedLinearAddress:
				currentELA = r
			case typ == ihex.ExtendedSegmentAddress:
				if r, err = ihex.ConvertExtSegToLinAddress(r); err != nil {
					return "", err
				}
				currentELA = r
			case typ == ihex.EndOfFile:
				endOfFile = true
			}
			if endOfFile {
				break
			}
			lines = append(lines, r)
			blockLen += len(r) + 1
		}

		if endOfFile {
			if i != len(records) {
				return "", newEOFError(boardID, i, records)
			}
			lines = append(lines, blockEnd, ihex.EndOfFileLine)
			continue
		}
		for BlockSize-blockLen > capacity*2 {
			pad, err := ihex.PaddedDataRecord(min((BlockSize-blockLen-(len(emptyPad)+1))/2, capacity))
			if err != nil {
				return "", err
			}
			lines = append(lines, pad)
			blockLen += len(pad) + 1
		}
		end, err := ihex.BlockEndRecord((BlockSize - blockLen) / 2)
		if err != nil {
			return "", err
		}
		lines = append(lines, end)
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n"), nil
}

// IsUniversalHex reports whether text opens with an Extended Linear Address
// record directly followed by a Block Start record. Only the start of the
// text is inspected.
func IsUniversalHex(text string) bool {
	if !strings.HasPrefix(text, elaPrefix) {
		return false
	}
	// line endings are unknown, look for the next start code
	i := len(elaPrefix)
	for {
		i++
		if i >= len(text) || text[i] == ':' || i >= ihex.MaxRecordLength+3 {
			break
		}
	}
	if i >= len(text) {
		return false
	}
	return strings.HasPrefix(text[i:], blockStartPrefix)
}

// isUniversalHexRecords checks the record framing of a Universal Hex: an
// address record, a Block Start record and a final End Of File record.
func isUniversalHexRecords(records []string) bool {
	if len(records) < 2 {
		return false
	}
	is := func(r string, want ihex.RecordType) bool {
		typ, err := ihex.RecordTypeOf(r)
		return err == nil && typ == want
	}
	return is(records[0], ihex.ExtendedLinearAddress) &&
		is(records[1], ihex.BlockStart) &&
		is(records[len(records)-1], ihex.EndOfFile)
}

// isMakeCodeForV1 reports whether records look like a MakeCode export for
// V1 boards, which stores project metadata past the End Of File record or in
// RAM at 0x20000000.
func isMakeCodeForV1(records []string) bool {
	ramELA := ihex.ExtLinearAddressRecord(0x20000000)
	eof := slices.Index(records, ihex.EndOfFileLine)
	from := eof + 1
	if eof == len(records)-1 {
		from = 1
	}
	for _, r := range records[min(from, len(records)):] {
		if strings.EqualFold(r, ramELA) {
			return true
		}
		if typ, err := ihex.RecordTypeOf(r); err == nil && typ == ihex.OtherData {
			return true
		}
	}
	return false
}

// Separate splits a Universal Hex into one Intel Hex per board, ordered by
// ascending board ID. Custom Data records are turned back into Data records
// and every image ends with an End Of File record.
func Separate(text string) ([]Hex, error) {
	records := ihex.SplitRecords(text)
	if len(records) == 0 {
		return nil, fault.Formatf("empty Universal Hex")
	}
	if !isUniversalHexRecords(records) {
		return nil, fault.Formatf("Universal Hex format invalid")
	}

	type board struct {
		lastELA string
		lines   []string
	}
	boards := make(map[int]*board)
	current := -1

	for i := 0; i < len(records); i++ {
		r := records[i]
		typ, err := ihex.RecordTypeOf(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}

		switch typ {
		case ihex.Data, ihex.EndOfFile, ihex.ExtendedSegmentAddress, ihex.StartSegmentAddress:
		case ihex.CustomData:
			if r, err = ihex.ConvertRecord(r, ihex.Data); err != nil {
				return nil, fmt.Errorf("record %d: %w", i+1, err)
			}
		case ihex.ExtendedLinearAddress:
			if i+1 < len(records) {
				next := records[i+1]
				if nextType, err := ihex.RecordTypeOf(next); err == nil && nextType == ihex.BlockStart {
					data, err := ihex.RecordData(next)
					if err != nil {
						return nil, fmt.Errorf("record %d: %w", i+2, err)
					}
					if len(data) != 4 {
						return nil, fault.Formatf("Block Start record invalid: %s", next)
					}
					current = int(data[0])<<8 | int(data[1])
					if boards[current] == nil {
						boards[current] = &board{lastELA: r, lines: []string{r}}
					}
					i++
				}
			}
			if b := boards[current]; b != nil && b.lastELA != r {
				b.lastELA = r
				b.lines = append(b.lines, r)
			}
			continue
		default:
			continue
		}

		b := boards[current]
		if b == nil {
			return nil, fault.Formatf("record %d appears before any Block Start record", i+1)
		}
		b.lines = append(b.lines, r)
	}

	ids := make([]int, 0, len(boards))
	for id := range boards {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Hex, 0, len(ids))
	for _, id := range ids {
		lines := boards[id].lines
		if lines[len(lines)-1] != ihex.EndOfFileLine {
			lines = append(lines, ihex.EndOfFileLine)
		}
		out = append(out, Hex{BoardID: id, Hex: strings.Join(lines, "\n") + "\n"})
	}
	return out, nil
}
