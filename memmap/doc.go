// Package memmap models sparse device memory as address-keyed byte blocks.
//
// # Blocks
//
// A Map holds non-overlapping blocks, each keyed by its start address and
// iterated in ascending order. Set rejects blocks that would overlap a
// neighbour; Patch writes over existing blocks and fills the gaps between
// them, which is how the filesystem injects chunks into a firmware image.
//
//	m := memmap.New()
//	_ = m.Set(0x0000, []byte{0x01, 0x02})
//	_ = m.Set(0x0002, []byte{0x03})
//	joined, _ := m.Join(0) // one block: 01 02 03
//
// # Aliasing
//
// Slice, SliceFrom, Overlaps and FromPadded return blocks sharing storage
// with their input and must be treated as read-only. SlicePad, Paginate, Join
// and Clone always allocate.
//
// # Reads
//
// Uint8, Uint16, Uint32 and Uint64 read little-endian values through SlicePad,
// so missing bytes read back as 0xFF. String reads a NUL terminated string.
package memmap
