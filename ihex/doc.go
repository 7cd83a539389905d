// Package ihex converts between Intel Hex text and memmap.Map.
//
// # Record Format
//
// Every record is one line of upper or lower case hex digits:
//
//	:LLAAAATT[DD...]CC
//	  LL   = number of data bytes
//	  AAAA = 16-bit offset (big-endian)
//	  TT   = record type
//	  DD   = data bytes
//	  CC   = two's complement of the sum of all previous bytes
//
// Besides the six standard types (Data, EndOfFile, ExtendedSegmentAddress,
// StartSegmentAddress, ExtendedLinearAddress, StartLinearAddress) the package
// knows the custom types used by Universal Hex: BlockStart, BlockEnd,
// PaddedData, CustomData and OtherData. Decode only accepts the standard ones.
//
// # Usage
//
// Decode a firmware file, change it and write it back:
//
//	m, err := ihex.DecodeFile("firmware.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = m.Patch(0x3E000, script)
//
//	text, err := ihex.Encode(m, ihex.DefaultLineSize)
//
// Build single records:
//
//	ela := ihex.ExtLinearAddressRecord(0x20000000) // ":020000042000DA"
//	start, err := ihex.BlockStartRecord(0x9903)
//
// # Error Handling
//
// Decode fails with a *RecordError naming the 1-based record index for:
//   - text that is not a record between two records
//   - byte count and payload length mismatches
//   - checksum mismatches
//   - duplicated data and data crossing a 64 KiB segment
//   - unknown record types and non-zero offsets on address records
//   - a missing or misplaced End Of File record
//
// All of them match fault.ErrFormat with errors.Is.
package ihex
