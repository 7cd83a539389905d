package memmap

import (
	"encoding/binary"
)

// Absent is the value unprogrammed flash reads back as.
const Absent = 0xFF

// Uint8 reads a byte at addr. Missing data reads as 0xFF.
func (m *Map) Uint8(addr int) uint8 {
	return m.SlicePad(addr, 1, Absent)[0]
}

// Uint16 reads a little-endian 16-bit value at addr.
func (m *Map) Uint16(addr int) uint16 {
	return binary.LittleEndian.Uint16(m.SlicePad(addr, 2, Absent))
}

// Uint32 reads a little-endian 32-bit value at addr.
func (m *Map) Uint32(addr int) uint32 {
	return binary.LittleEndian.Uint32(m.SlicePad(addr, 4, Absent))
}

// Uint64 reads a little-endian 64-bit value at addr.
func (m *Map) Uint64(addr int) uint64 {
	return binary.LittleEndian.Uint64(m.SlicePad(addr, 8, Absent))
}

// String reads a NUL terminated string starting at addr. The string must be
// fully contained in the block holding addr; otherwise "" is returned.
func (m *Map) String(addr int) string {
	i := m.firstEndingAfter(addr)
	if i >= len(m.addrs) || m.addrs[i] > addr {
		return ""
	}
	a := m.addrs[i]
	b := m.blocks[a][addr-a:]
	for n, c := range b {
		if c == 0 {
			return string(b[:n])
		}
	}
	return ""
}
