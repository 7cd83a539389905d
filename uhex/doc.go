// Package uhex creates and splits micro:bit Universal Hex files.
//
// A Universal Hex packs several Intel Hex images, one per board revision,
// into a single file. Every image is preceded by a Block Start record naming
// its board ID and followed by a Block End record that pads it to a 512
// character boundary, so a board's bootloader can skip blocks that are not
// meant for it.
//
// # Formats
//
// Two layouts are supported:
//
//   - FormatSections writes each image as one contiguous section.
//   - FormatBlocks cuts each image into 512 character blocks that repeat the
//     current Extended Linear Address record.
//
// Data records of images that are not for V1 boards are rewritten as Custom
// Data records so that V1 bootloaders ignore them.
//
// # Usage
//
//	universal, err := uhex.Create([]uhex.Hex{
//	    {BoardID: uhex.BoardV1, Hex: v1Hex},
//	    {BoardID: uhex.BoardV2, Hex: v2Hex},
//	}, uhex.FormatSections)
//	if err != nil {
//	    return err
//	}
//
//	if uhex.IsUniversalHex(universal) {
//	    hexes, err := uhex.Separate(universal)
//	    ...
//	}
//
// # Errors
//
// Malformed input fails with errors matching fault.ErrFormat. Images with
// records after their End Of File record fail with *EOFError.
package uhex
