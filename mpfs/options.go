package mpfs

import (
	"github.com/moffa90/go-mbfs/ihex"
	"github.com/moffa90/go-mbfs/memmap"
	"github.com/moffa90/go-mbfs/uhex"
)

// Decoder turns Intel Hex text into a memory map.
type Decoder func(text string) (*memmap.Map, error)

// Config holds the FsHex configuration.
type Config struct {
	// MaxFsSize limits the storage size (optional, 0 uses the smallest
	// filesystem among the images)
	MaxFsSize int

	// Logger is used for logging operations (optional)
	Logger Logger

	// ProgressCallback is called while images are generated (optional)
	ProgressCallback ProgressCallback

	// UniversalFormat is the layout used by UniversalHex
	UniversalFormat uhex.Format

	// Decoder parses the input hex files
	Decoder Decoder
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		UniversalFormat: uhex.FormatSections,
		Decoder:         ihex.Decode,
	}
}

// Option is a functional option for configuring an FsHex.
type Option func(*Config)

// WithMaxFsSize limits the storage available to files.
//
// Example:
//
//	fs, err := mpfs.New(hexes, mpfs.WithMaxFsSize(16*1024))
func WithMaxFsSize(size int) Option {
	return func(c *Config) {
		c.MaxFsSize = size
	}
}

// WithLogger sets a logger for filesystem operations.
//
// Example:
//
//	fs, err := mpfs.New(hexes, mpfs.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithProgressCallback sets a callback to track image generation.
//
// Example:
//
//	fs, err := mpfs.New(hexes,
//	    mpfs.WithProgressCallback(func(p mpfs.Progress) {
//	        fmt.Printf("[%s] board 0x%04X %d/%d\n", p.Phase, p.BoardID, p.Current, p.Total)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithUniversalFormat selects how UniversalHex lays out the boards.
// Default is uhex.FormatSections.
func WithUniversalFormat(format uhex.Format) Option {
	return func(c *Config) {
		c.UniversalFormat = format
	}
}

// WithDecoder replaces the Intel Hex decoder, for example with one backed
// by a cache of decoded images.
//
// Example:
//
//	cache, _ := store.Open("mbfs.db")
//	fs, err := mpfs.New(hexes, mpfs.WithDecoder(cache.Decode))
func WithDecoder(decoder Decoder) Option {
	return func(c *Config) {
		if decoder != nil {
			c.Decoder = decoder
		}
	}
}
