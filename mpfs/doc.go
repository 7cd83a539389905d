// Package mpfs reads and writes the MicroPython filesystem stored in
// micro:bit firmware images.
//
// # Filesystem Layout
//
// The filesystem is a run of 128 byte chunks between the end of the
// MicroPython runtime and the end of the filesystem area reported by
// package devmem. Chunks are numbered from 1. Each chunk starts with a
// marker byte and ends with a tail byte:
//
//	| marker | 126 data bytes | tail |
//
// The marker is MarkerFileStart for the first chunk of a file, the index of
// the previous chunk otherwise, or one of MarkerUnused, MarkerFreed and
// MarkerPersistentData. The tail holds the index of the next chunk, or
// MarkerUnused on the last chunk. The first chunk of a file begins with the
// offset of the data end in the last chunk, the name length and the name.
//
// The last page of the area is reserved for persistent data and is marked
// with MarkerPersistentData whenever a file is written.
//
// # Low-Level Functions
//
// AddFile, FreeChunks and ReadFiles operate on a decoded memory map and a
// Layout. AddFiles, AddFilesBytes and ReadHexFiles work on Intel Hex text.
//
//	files, err := mpfs.ReadHexFiles(firmware)
//	if err != nil {
//	    return err
//	}
//	for _, f := range files {
//	    fmt.Println(f.Name, len(f.Data))
//	}
//
// # Managing Files
//
// FsHex keeps a set of files in memory and writes them into one image per
// board on demand. The runtime of every image is decoded once and cached in
// a BuilderCache.
//
//	fs, err := mpfs.New([]uhex.Hex{
//	    {BoardID: uhex.BoardV1, Hex: v1Hex},
//	    {BoardID: uhex.BoardV2, Hex: v2Hex},
//	}, mpfs.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := fs.WriteString("main.py", script); err != nil {
//	    return err
//	}
//	universal, err := fs.UniversalHex()
//
// Capacity is checked when an image is generated, not on each write, so
// StorageRemaining may be negative in between.
//
// # Error Handling
//
// Errors wrap the kinds of package fault. Running out of chunks returns a
// *NoSpaceError (fault.ErrCapacity); a broken chunk chain returns a
// *ChunkLinkError (fault.ErrIntegrity).
//
//	if errors.Is(err, fault.ErrCapacity) {
//	    fmt.Println("program too large")
//	}
package mpfs
