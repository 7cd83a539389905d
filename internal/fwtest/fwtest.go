// Package fwtest builds small synthetic MicroPython firmware images for tests.
//
// The images carry just enough runtime bytes and metadata for layout
// discovery and filesystem operations to behave like real firmware.
package fwtest

import (
	"encoding/binary"
	"testing"

	"github.com/moffa90/go-mbfs/ihex"
	"github.com/moffa90/go-mbfs/memmap"
)

// Versions embedded in the images.
const (
	V1Version = "micro:bit v1.0.1+b0 on 2019-12-05; MicroPython v1.9.2-34-gd64154c73 on 2017-09-01"
	V2Version = "micro:bit v2.0.0+b51 on 2020-12-04; MicroPython v1.13 on 2020-12-04"
)

// Layout of the V1 image, which describes itself through UICR data.
const (
	V1PageSize  = 1024
	V1PagesUsed = 230

	// V1FsStart is the first chunk, right after the runtime.
	V1FsStart = V1PagesUsed * V1PageSize
	// V1FsEnd is the end of flash minus the calibration page.
	V1FsEnd = 256*1024 - V1PageSize
	// V1Chunks is the number of chunks below the persistent page.
	V1Chunks = (V1FsEnd - V1PageSize - V1FsStart) / 128
	// V1FsSize is the filesystem capacity in bytes.
	V1FsSize = V1FsEnd - V1FsStart - V1PageSize

	v1VersionAddr = 0x1000
)

// Layout of the V2 image, which describes itself through a Flash Regions
// Table at the end of page 0x6C000.
const (
	V2PageSize   = 4096
	V2TableEnd   = 0x6D000
	V2FsStart    = 0x6D000
	V2FsEnd      = 0x73000
	V2Chunks     = (V2FsEnd - V2PageSize - V2FsStart) / 128
	V2FsSize     = V2FsEnd - V2FsStart - V2PageSize
	v2VersionAdr = 0x2000
)

// runtime returns deterministic bytes standing in for the interpreter.
func runtime(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed ^ byte(i*13+i>>8)
	}
	return b
}

// withString stores s NUL terminated at off inside data.
func withString(data []byte, off int, s string) {
	copy(data[off:], s)
	data[off+len(s)] = 0
}

// V1Map returns a V1 image: runtime bytes at 0 and MicroPython UICR data.
func V1Map(t testing.TB) *memmap.Map {
	t.Helper()
	code := runtime(0x3000, 0x5A)
	withString(code, v1VersionAddr, V1Version)

	uicr := make([]byte, 28)
	binary.LittleEndian.PutUint32(uicr[0:], 0x17EEB07C)
	binary.LittleEndian.PutUint32(uicr[4:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(uicr[8:], 10)
	binary.LittleEndian.PutUint16(uicr[12:], 0)
	binary.LittleEndian.PutUint16(uicr[14:], V1PagesUsed)
	binary.LittleEndian.PutUint32(uicr[16:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(uicr[20:], v1VersionAddr)
	binary.LittleEndian.PutUint32(uicr[24:], 0)

	m, err := memmap.FromBlocks(
		memmap.Block{Addr: 0, Data: code},
		memmap.Block{Addr: 0x100010C0, Data: uicr},
	)
	if err != nil {
		t.Fatalf("building V1 image: %v", err)
	}
	return m
}

// V2Map returns a V2 image: runtime bytes at 0 and a Flash Regions Table
// describing SoftDevice, MicroPython and filesystem regions.
func V2Map(t testing.TB) *memmap.Map {
	t.Helper()
	code := runtime(0x4000, 0xA5)
	withString(code, v2VersionAdr, V2Version)

	// rows grow downwards from the header
	table := make([]byte, 4*16)
	row := func(i int, id, hashType byte, startPage uint16, length uint32, hash uint64) {
		r := table[len(table)-16-(i+1)*16:]
		r[0] = id
		r[1] = hashType
		binary.LittleEndian.PutUint16(r[2:], startPage)
		binary.LittleEndian.PutUint32(r[4:], length)
		binary.LittleEndian.PutUint64(r[8:], hash)
	}
	row(0, 1, 1, 0, 0x1C000, 0xC0FFEE)
	row(1, 2, 2, 0x1C, V2TableEnd-0x1C000, v2VersionAdr)
	row(2, 3, 0, V2FsStart/V2PageSize, V2FsEnd-V2FsStart, 0)

	h := table[len(table)-16:]
	binary.LittleEndian.PutUint32(h[0:], 0x597F30FE)
	binary.LittleEndian.PutUint16(h[4:], 1)
	binary.LittleEndian.PutUint16(h[6:], 3*16)
	binary.LittleEndian.PutUint16(h[8:], 3)
	binary.LittleEndian.PutUint16(h[10:], 12)
	binary.LittleEndian.PutUint32(h[12:], 0xC1B1D79D)

	m, err := memmap.FromBlocks(
		memmap.Block{Addr: 0, Data: code},
		memmap.Block{Addr: V2TableEnd - len(table), Data: table},
	)
	if err != nil {
		t.Fatalf("building V2 image: %v", err)
	}
	return m
}

// Hex encodes a firmware image as Intel Hex text ending in a newline.
func Hex(t testing.TB, m *memmap.Map) string {
	t.Helper()
	text, err := ihex.Encode(m, ihex.DefaultLineSize)
	if err != nil {
		t.Fatalf("encoding image: %v", err)
	}
	return text + "\n"
}

// V1Hex returns the V1 image as Intel Hex text.
func V1Hex(t testing.TB) string {
	return Hex(t, V1Map(t))
}

// V2Hex returns the V2 image as Intel Hex text.
func V2Hex(t testing.TB) string {
	return Hex(t, V2Map(t))
}
