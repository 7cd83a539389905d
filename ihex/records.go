package ihex

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/moffa90/go-mbfs/fault"
)

// RecordType identifies the kind of an Intel Hex record.
type RecordType byte

// Standard Intel Hex record types plus the custom types used by Universal Hex.
const (
	Data                   RecordType = 0x00
	EndOfFile              RecordType = 0x01
	ExtendedSegmentAddress RecordType = 0x02
	StartSegmentAddress    RecordType = 0x03
	ExtendedLinearAddress  RecordType = 0x04
	StartLinearAddress     RecordType = 0x05
	BlockStart             RecordType = 0x0A
	BlockEnd               RecordType = 0x0B
	PaddedData             RecordType = 0x0C
	CustomData             RecordType = 0x0D
	OtherData              RecordType = 0x0E
)

// Record layout constants, in characters of the text form.
const (
	// RecordDataMaxBytes is the largest payload the record builders accept.
	RecordDataMaxBytes = 32

	// MinRecordLength is the length of a record without payload (":LLAAAATTCC").
	MinRecordLength = 11

	// MaxRecordLength is the length of a record carrying RecordDataMaxBytes.
	MaxRecordLength = MinRecordLength + 2*RecordDataMaxBytes

	startCode         = ':'
	recordTypeIndex   = 7
	dataIndex         = 9
	recordHeaderBytes = 4
)

// EndOfFileLine is the text of the End Of File record.
const EndOfFileLine = ":00000001FF"

func (t RecordType) String() string {
	switch t {
	case Data:
		return "Data"
	case EndOfFile:
		return "EndOfFile"
	case ExtendedSegmentAddress:
		return "ExtendedSegmentAddress"
	case StartSegmentAddress:
		return "StartSegmentAddress"
	case ExtendedLinearAddress:
		return "ExtendedLinearAddress"
	case StartLinearAddress:
		return "StartLinearAddress"
	case BlockStart:
		return "BlockStart"
	case BlockEnd:
		return "BlockEnd"
	case PaddedData:
		return "PaddedData"
	case CustomData:
		return "CustomData"
	case OtherData:
		return "OtherData"
	default:
		return fmt.Sprintf("RecordType(0x%02X)", byte(t))
	}
}

// valid reports whether t is a known record type.
func (t RecordType) valid() bool {
	return t <= StartLinearAddress || (t >= BlockStart && t <= OtherData)
}

// Record is one line of Intel Hex.
type Record struct {
	Address uint16
	Type    RecordType
	Data    []byte
}

// Checksum computes the two's complement of the byte sum, the value that
// makes all bytes of a record add up to zero.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

// bytes returns the record without the checksum.
func (r Record) bytes() []byte {
	b := make([]byte, 0, recordHeaderBytes+len(r.Data))
	b = append(b, byte(len(r.Data)), byte(r.Address>>8), byte(r.Address), byte(r.Type))
	return append(b, r.Data...)
}

// Checksum returns the checksum byte of the record.
func (r Record) Checksum() byte {
	return Checksum(r.bytes())
}

// String formats the record as an upper case Intel Hex line without line
// terminator.
func (r Record) String() string {
	b := r.bytes()
	b = append(b, Checksum(b))
	return string(startCode) + strings.ToUpper(hex.EncodeToString(b))
}

// NewRecord builds the text of a record, limiting the payload to
// RecordDataMaxBytes.
func NewRecord(address uint16, typ RecordType, data []byte) (string, error) {
	if len(data) > RecordDataMaxBytes {
		return "", fault.Usagef("record data has %d bytes, maximum is %d", len(data), RecordDataMaxBytes)
	}
	if !typ.valid() {
		return "", fault.Formatf("record type 0x%02X is not valid", byte(typ))
	}
	return Record{Address: address, Type: typ, Data: data}.String(), nil
}

// validateRecord checks the framing of a record built for Universal Hex.
func validateRecord(s string) error {
	if len(s) < MinRecordLength {
		return fault.Formatf("record %q is too short", s)
	}
	if len(s) > MaxRecordLength {
		return fault.Formatf("record %q is too long", s)
	}
	if s[0] != startCode {
		return fault.Formatf("record %q does not start with %q", s, startCode)
	}
	if (len(s)-MinRecordLength)%2 != 0 {
		return fault.Formatf("record %q has an odd number of characters", s)
	}
	return nil
}

// ParseRecord parses and verifies one record.
func ParseRecord(s string) (Record, error) {
	if err := validateRecord(s); err != nil {
		return Record{}, err
	}
	raw, err := hex.DecodeString(s[1:])
	if err != nil {
		return Record{}, fault.Formatf("record %q contains invalid hex: %v", s, err)
	}
	if int(raw[0])+recordHeaderBytes+1 != len(raw) {
		return Record{}, fault.Formatf("record %q declares %d data bytes but carries %d",
			s, raw[0], len(raw)-recordHeaderBytes-1)
	}
	if cs := Checksum(raw[:len(raw)-1]); cs != raw[len(raw)-1] {
		return Record{}, fault.Formatf("record %q checksum 0x%02X does not match calculated 0x%02X",
			s, raw[len(raw)-1], cs)
	}
	typ := RecordType(raw[3])
	if !typ.valid() {
		return Record{}, fault.Formatf("record %q has unknown type 0x%02X", s, raw[3])
	}
	return Record{
		Address: uint16(raw[1])<<8 | uint16(raw[2]),
		Type:    typ,
		Data:    raw[recordHeaderBytes : len(raw)-1],
	}, nil
}

// RecordTypeOf returns the type of a record after validating its framing.
func RecordTypeOf(s string) (RecordType, error) {
	if err := validateRecord(s); err != nil {
		return 0, err
	}
	b, err := hex.DecodeString(s[recordTypeIndex:dataIndex])
	if err != nil {
		return 0, fault.Formatf("record %q contains invalid hex: %v", s, err)
	}
	typ := RecordType(b[0])
	if !typ.valid() {
		return 0, fault.Formatf("record %q has unknown type 0x%02X", s, b[0])
	}
	return typ, nil
}

// RecordData returns the payload of a record.
func RecordData(s string) ([]byte, error) {
	r, err := ParseRecord(s)
	if err != nil {
		return nil, err
	}
	return r.Data, nil
}

// ConvertRecord changes the type of a record, recomputing its checksum.
func ConvertRecord(s string, typ RecordType) (string, error) {
	r, err := ParseRecord(s)
	if err != nil {
		return "", err
	}
	return NewRecord(r.Address, typ, r.Data)
}

// ExtLinearAddressRecord builds the Extended Linear Address record selecting
// the 64 KiB window holding address.
func ExtLinearAddressRecord(address uint32) string {
	return Record{
		Type: ExtendedLinearAddress,
		Data: []byte{byte(address >> 24), byte(address >> 16)},
	}.String()
}

// ConvertExtSegToLinAddress converts an Extended Segment Address record into
// the equivalent Extended Linear Address record. Only segments that are a
// multiple of 64 KiB can be expressed.
func ConvertExtSegToLinAddress(s string) (string, error) {
	data, err := RecordData(s)
	if err != nil {
		return "", err
	}
	if len(data) != 2 || data[0]&0x0F != 0 || data[1] != 0 {
		return "", fault.Formatf("invalid Extended Segment Address record %q", s)
	}
	return ExtLinearAddressRecord(uint32(data[0]) << 12), nil
}

// BlockStartRecord builds the Universal Hex record opening a board block.
func BlockStartRecord(boardID int) (string, error) {
	if boardID < 0 || boardID > 0xFFFF {
		return "", fault.Usagef("board ID 0x%X out of range", boardID)
	}
	return NewRecord(0, BlockStart, []byte{byte(boardID >> 8), byte(boardID), 0xC0, 0xDE})
}

// BlockEndRecord builds the Universal Hex record closing a board block,
// carrying padBytes bytes of 0xFF.
func BlockEndRecord(padBytes int) (string, error) {
	return padRecord(BlockEnd, padBytes)
}

// PaddedDataRecord builds a record of padBytes bytes of 0xFF used to align
// Universal Hex blocks.
func PaddedDataRecord(padBytes int) (string, error) {
	return padRecord(PaddedData, padBytes)
}

func padRecord(typ RecordType, n int) (string, error) {
	if n < 0 {
		return "", fault.Usagef("padding length %d is negative", n)
	}
	pad := make([]byte, n)
	for i := range pad {
		pad[i] = 0xFF
	}
	return NewRecord(0, typ, pad)
}

// SplitRecords splits hex text into its records, dropping carriage returns
// and empty lines.
func SplitRecords(text string) []string {
	text = strings.ReplaceAll(text, "\r", "")
	var records []string
	for _, line := range strings.Split(text, "\n") {
		if line != "" {
			records = append(records, line)
		}
	}
	return records
}

// FindDataFieldLength returns the payload length used by the data records,
// starting at 16 and settling on the largest size once it has been seen more
// than a dozen times.
func FindDataFieldLength(records []string) (int, error) {
	maxBytes, seen := 16, 0
	for _, r := range records {
		n := (len(r) - MinRecordLength) / 2
		if n > maxBytes {
			maxBytes, seen = n, 0
		} else if n == maxBytes {
			seen++
		}
		if seen > 12 {
			break
		}
	}
	if maxBytes > RecordDataMaxBytes {
		return 0, fault.Formatf("record data size %d is larger than %d bytes", maxBytes, RecordDataMaxBytes)
	}
	return maxBytes, nil
}
