// Package store caches decoded firmware images on disk.
//
// Decoding a full MicroPython Intel Hex dominates the time spent building a
// Universal Hex. Store keeps the decoded memory map in a bbolt database,
// keyed by the SHA-256 digest of the hex text, and plugs into package mpfs
// through Store.Decode:
//
//	cache, err := store.Open(filepath.Join(dir, "mbfs.db"))
//	if err != nil {
//	    return err
//	}
//	defer cache.Close()
//
//	fs, err := mpfs.New(hexes, mpfs.WithDecoder(cache.Decode))
package store
