// Package devmem locates the MicroPython runtime and filesystem inside a
// decoded micro:bit firmware image.
//
// Two metadata formats exist across board generations:
//
//   - UICR data: a magic value at 0x100010C0 identifies the board revision
//     and is followed by the flash page size, the runtime start page, the
//     number of pages used and a pointer to the version string.
//   - Flash Regions Table: a table stored at the end of a flash page lists
//     the SoftDevice, MicroPython and filesystem regions. It ends with a
//     16 byte header framed by two magic values.
//
// Lookup tries the UICR data first and falls back to the table:
//
//	m, err := ihex.Decode(firmware)
//	if err != nil {
//	    return err
//	}
//	info, err := devmem.Lookup(m)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%s fs 0x%X-0x%X\n", info.DeviceVersion, info.FsStart, info.FsEnd)
package devmem
