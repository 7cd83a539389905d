package mpfs

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/uhex"
)

// FsHex manages the files written into one or more MicroPython images, one
// per board. Files are kept in memory and only laid out into flash when an
// image is generated.
//
// FsHex is not safe for concurrent use.
type FsHex struct {
	caches      []*BuilderCache
	names       []string
	files       map[string][]byte
	storageSize int
	config      Config
}

// ImportOptions control how files from an existing image are imported.
type ImportOptions struct {
	// Overwrite replaces files that already exist instead of failing.
	Overwrite bool

	// FormatFirst removes every existing file before importing.
	FormatFirst bool
}

// New creates an FsHex for the given MicroPython images. The images must not
// contain files already.
//
// Example:
//
//	fs, err := mpfs.New([]uhex.Hex{
//	    {BoardID: uhex.BoardV1, Hex: v1Hex},
//	    {BoardID: uhex.BoardV2, Hex: v2Hex},
//	})
//	if err != nil {
//	    return err
//	}
//	err = fs.WriteString("main.py", "from microbit import *\ndisplay.scroll('Hi')\n")
func New(hexes []uhex.Hex, opts ...Option) (*FsHex, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(hexes) == 0 {
		return nil, fault.Usagef("at least one MicroPython hex is required")
	}

	fs := &FsHex{
		files:  make(map[string][]byte),
		config: cfg,
	}

	minFsSize := math.MaxInt
	for _, h := range hexes {
		if strings.TrimSpace(h.Hex) == "" {
			return nil, fault.Formatf("invalid MicroPython hex for board ID 0x%04X", h.BoardID)
		}
		m, err := cfg.Decoder(h.Hex)
		if err != nil {
			return nil, fmt.Errorf("board ID 0x%04X: %w", h.BoardID, err)
		}
		cache, err := NewBuilderCacheFromMap(m, h.BoardID)
		if err != nil {
			return nil, fmt.Errorf("board ID 0x%04X: %w", h.BoardID, err)
		}
		fs.caches = append(fs.caches, cache)
		minFsSize = min(minFsSize, cache.FsSize())

		info := cache.Layout().Info
		fs.logDebug("cached MicroPython image",
			"board_id", fmt.Sprintf("0x%04X", h.BoardID),
			"device", info.DeviceVersion,
			"version", info.MicroPythonVersion,
			"fs_start", fmt.Sprintf("0x%X", cache.Layout().Start),
			"fs_size", cache.FsSize(),
		)
	}

	size := minFsSize
	if cfg.MaxFsSize > 0 {
		size = cfg.MaxFsSize
	}
	if err := fs.SetStorageSize(size); err != nil {
		return nil, err
	}

	for _, cache := range fs.caches {
		files, err := cache.Files()
		if err != nil {
			return nil, fmt.Errorf("board ID 0x%04X: %w", cache.BoardID(), err)
		}
		if len(files) > 0 {
			return nil, fault.Usagef("MicroPython hex for board ID 0x%04X already contains files", cache.BoardID())
		}
	}
	return fs, nil
}

// NewFromHex creates an FsHex from a single MicroPython Intel Hex, with board
// ID 0, or from a Universal Hex holding one image per board.
func NewFromHex(text string, opts ...Option) (*FsHex, error) {
	if uhex.IsUniversalHex(text) {
		hexes, err := uhex.Separate(text)
		if err != nil {
			return nil, err
		}
		return New(hexes, opts...)
	}
	return New([]uhex.Hex{{BoardID: 0, Hex: text}}, opts...)
}

// checkName validates a file name used to look up an existing file.
func (fs *FsHex) checkName(name string) error {
	if name == "" {
		return fault.Usagef("invalid filename")
	}
	if !fs.Exists(name) {
		return fault.Usagef("file %q does not exist", name)
	}
	return nil
}

// Create adds a new file. It fails if the file already exists.
func (fs *FsHex) Create(name string, data []byte) error {
	if fs.Exists(name) {
		return fault.Usagef("file %q already exists", name)
	}
	return fs.Write(name, data)
}

// Write creates or replaces a file. A replaced file keeps its position in
// the listing.
func (fs *FsHex) Write(name string, data []byte) error {
	if name == "" {
		return fault.Usagef("file was not provided a valid filename")
	}
	if len(data) == 0 {
		return fault.Usagef("file %s does not have valid content", name)
	}
	if len(name) > MaxFilenameLength {
		return fault.Usagef("file name %q is too long (max %d characters)", name, MaxFilenameLength)
	}
	if _, ok := fs.files[name]; !ok {
		fs.names = append(fs.names, name)
	}
	fs.files[name] = bytes.Clone(data)
	return nil
}

// WriteString creates or replaces a text file.
func (fs *FsHex) WriteString(name, content string) error {
	return fs.Write(name, []byte(content))
}

// Append is not supported; it only validates that the file exists.
func (fs *FsHex) Append(name string, data []byte) error {
	if err := fs.checkName(name); err != nil {
		return err
	}
	return fault.NotImplementedf("append operation not yet implemented")
}

// Read returns the content of a file as text.
func (fs *FsHex) Read(name string) (string, error) {
	if err := fs.checkName(name); err != nil {
		return "", err
	}
	return string(fs.files[name]), nil
}

// ReadBytes returns a copy of the content of a file.
func (fs *FsHex) ReadBytes(name string) ([]byte, error) {
	if err := fs.checkName(name); err != nil {
		return nil, err
	}
	return bytes.Clone(fs.files[name]), nil
}

// Remove deletes a file.
func (fs *FsHex) Remove(name string) error {
	if err := fs.checkName(name); err != nil {
		return err
	}
	delete(fs.files, name)
	fs.names = slices.DeleteFunc(fs.names, func(n string) bool { return n == name })
	return nil
}

// Exists reports whether a file is present.
func (fs *FsHex) Exists(name string) bool {
	_, ok := fs.files[name]
	return ok
}

// Size returns the flash space a file takes, in bytes.
func (fs *FsHex) Size(name string) (int, error) {
	if err := fs.checkName(name); err != nil {
		return 0, err
	}
	return fs.sizeOf(name), nil
}

func (fs *FsHex) sizeOf(name string) int {
	// names are validated on write
	size, _ := CalculateFileSize(name, fs.files[name])
	return size
}

// Ls lists the files in the order they were first written.
func (fs *FsHex) Ls() []string {
	return slices.Clone(fs.names)
}

// SetStorageSize limits the storage available to files. It fails when the
// size exceeds the smallest filesystem among the images.
func (fs *FsHex) SetStorageSize(size int) error {
	if size < 0 {
		return fault.Usagef("storage size %d must not be negative", size)
	}
	minFsSize := math.MaxInt
	for _, c := range fs.caches {
		minFsSize = min(minFsSize, c.FsSize())
	}
	if size > minFsSize {
		return fault.Usagef("storage size limit %d is larger than the %d bytes available in the MicroPython hex",
			size, minFsSize)
	}
	fs.storageSize = size
	return nil
}

// StorageSize returns the storage size in bytes.
func (fs *FsHex) StorageSize() int {
	return fs.storageSize
}

// StorageUsed returns the flash space taken by all files.
func (fs *FsHex) StorageUsed() int {
	used := 0
	for _, name := range fs.names {
		used += fs.sizeOf(name)
	}
	return used
}

// StorageRemaining returns the free storage. It is negative when the files
// written so far do not fit.
func (fs *FsHex) StorageRemaining() int {
	return fs.StorageSize() - fs.StorageUsed()
}

// importFiles stores files according to opts. Files that already exist are
// skipped and reported once every other file has been imported.
func (fs *FsHex) importFiles(files []File, opts ImportOptions) ([]string, error) {
	if opts.FormatFirst {
		fs.names = nil
		fs.files = make(map[string][]byte)
	}
	var existing []string
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
		if !opts.Overwrite && fs.Exists(f.Name) {
			existing = append(existing, f.Name)
			continue
		}
		if err := fs.Write(f.Name, f.Data); err != nil {
			return nil, err
		}
	}
	if len(existing) > 0 {
		return nil, fault.Usagef("files %q from hex already exist", strings.Join(existing, ","))
	}
	fs.logInfo("imported files", "count", len(names), "overwrite", opts.Overwrite, "format_first", opts.FormatFirst)
	return names, nil
}

// ImportFilesFromIntelHex copies the files of a MicroPython Intel Hex and
// returns their names.
func (fs *FsHex) ImportFilesFromIntelHex(text string, opts ImportOptions) ([]string, error) {
	m, err := fs.config.Decoder(text)
	if err != nil {
		return nil, err
	}
	files, err := ReadFiles(m)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fault.Usagef("Intel Hex does not have any files to import")
	}
	return fs.importFiles(files, opts)
}

// ImportFilesFromUniversalHex copies the files of a Universal Hex and returns
// their names. Every board must carry the same files.
func (fs *FsHex) ImportFilesFromUniversalHex(text string, opts ImportOptions) ([]string, error) {
	if !uhex.IsUniversalHex(text) {
		return nil, fault.Formatf("Universal Hex provided is invalid")
	}
	hexes, err := uhex.Separate(text)
	if err != nil {
		return nil, err
	}

	groups := make([][]File, 0, len(hexes))
	for _, h := range hexes {
		m, err := fs.config.Decoder(h.Hex)
		if err != nil {
			return nil, fmt.Errorf("board ID 0x%04X: %w", h.BoardID, err)
		}
		files, err := ReadFiles(m)
		if err != nil {
			return nil, fmt.Errorf("board ID 0x%04X: %w", h.BoardID, err)
		}
		if len(files) == 0 {
			return nil, fault.Usagef("hex with board ID 0x%04X from Universal Hex does not have any files to import", h.BoardID)
		}
		groups = append(groups, files)
	}
	for _, g := range groups[1:] {
		if !sameFiles(groups[0], g) {
			return nil, fault.Consistencyf("mismatch in the different hexes inside the Universal Hex")
		}
	}
	return fs.importFiles(groups[0], opts)
}

// sameFiles reports whether both lists hold the same names and contents,
// in any order.
func sameFiles(a, b []File) bool {
	if len(a) != len(b) {
		return false
	}
	byName := make(map[string][]byte, len(b))
	for _, f := range b {
		byName[f.Name] = f.Data
	}
	for _, f := range a {
		data, ok := byName[f.Name]
		if !ok || !bytes.Equal(data, f.Data) {
			return false
		}
	}
	return true
}

// ImportFilesFromHex imports from either a Universal Hex or an Intel Hex.
func (fs *FsHex) ImportFilesFromHex(text string, opts ImportOptions) ([]string, error) {
	if uhex.IsUniversalHex(text) {
		return fs.ImportFilesFromUniversalHex(text, opts)
	}
	return fs.ImportFilesFromIntelHex(text, opts)
}

// fileList returns the files in listing order.
func (fs *FsHex) fileList() []File {
	files := make([]File, 0, len(fs.names))
	for _, name := range fs.names {
		files = append(files, File{Name: name, Data: fs.files[name]})
	}
	return files
}

// selectCache finds the image for a board. A negative boardID selects the
// only image.
func (fs *FsHex) selectCache(boardID int) (*BuilderCache, error) {
	if fs.StorageRemaining() < 0 {
		return nil, &NoSpaceError{}
	}
	if boardID < 0 {
		if len(fs.caches) != 1 {
			return nil, fault.Usagef("the board ID must be specified if there are multiple MicroPythons")
		}
		return fs.caches[0], nil
	}
	for _, c := range fs.caches {
		if c.BoardID() == boardID {
			return c, nil
		}
	}
	return nil, fault.Usagef("board ID 0x%04X requested not found", boardID)
}

// IntelHex returns the Intel Hex of the only image with the files added.
func (fs *FsHex) IntelHex() (string, error) {
	return fs.intelHex(-1)
}

// IntelHexFor returns the Intel Hex of one board with the files added.
func (fs *FsHex) IntelHexFor(boardID int) (string, error) {
	if boardID < 0 {
		return "", fault.Usagef("board ID %d must not be negative", boardID)
	}
	return fs.intelHex(boardID)
}

func (fs *FsHex) intelHex(boardID int) (string, error) {
	c, err := fs.selectCache(boardID)
	if err != nil {
		return "", err
	}
	hex, err := c.Generate(fs.fileList())
	if err != nil {
		fs.logError("failed to generate image", "board_id", fmt.Sprintf("0x%04X", c.BoardID()), "error", err)
		return "", err
	}
	return hex, nil
}

// IntelHexBytes returns the flash contents of the only image with the files
// added.
func (fs *FsHex) IntelHexBytes() ([]byte, error) {
	return fs.intelHexBytes(-1)
}

// IntelHexBytesFor returns the flash contents of one board with the files
// added.
func (fs *FsHex) IntelHexBytesFor(boardID int) ([]byte, error) {
	if boardID < 0 {
		return nil, fault.Usagef("board ID %d must not be negative", boardID)
	}
	return fs.intelHexBytes(boardID)
}

func (fs *FsHex) intelHexBytes(boardID int) ([]byte, error) {
	c, err := fs.selectCache(boardID)
	if err != nil {
		return nil, err
	}
	return c.GenerateBytes(fs.fileList())
}

// UniversalHex returns a Universal Hex holding every board image with the
// files added.
func (fs *FsHex) UniversalHex() (string, error) {
	if len(fs.caches) < 2 {
		return "", fault.Usagef("more than one MicroPython Intel Hex is needed to generate a Universal Hex")
	}

	hexes := make([]uhex.Hex, 0, len(fs.caches))
	for i, c := range fs.caches {
		fs.reportProgress(Progress{Phase: PhaseWriting, BoardID: c.BoardID(), Current: i, Total: len(fs.caches)})
		hex, err := fs.intelHex(c.BoardID())
		if err != nil {
			return "", err
		}
		hexes = append(hexes, uhex.Hex{BoardID: c.BoardID(), Hex: hex})
	}

	fs.reportProgress(Progress{Phase: PhaseMerging, BoardID: -1, Current: len(hexes), Total: len(fs.caches)})
	universal, err := uhex.Create(hexes, fs.config.UniversalFormat)
	if err != nil {
		return "", err
	}
	fs.reportProgress(Progress{Phase: PhaseDone, BoardID: -1, Current: len(hexes), Total: len(fs.caches)})
	fs.logInfo("generated Universal Hex",
		"boards", len(hexes),
		"files", len(fs.names),
		"format", fs.config.UniversalFormat.String(),
		"bytes", len(universal),
	)
	return universal, nil
}

// reportProgress calls the progress callback if configured.
func (fs *FsHex) reportProgress(progress Progress) {
	if fs.config.ProgressCallback != nil {
		fs.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (fs *FsHex) logDebug(msg string, keysAndValues ...interface{}) {
	if fs.config.Logger != nil {
		fs.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (fs *FsHex) logInfo(msg string, keysAndValues ...interface{}) {
	if fs.config.Logger != nil {
		fs.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (fs *FsHex) logError(msg string, keysAndValues ...interface{}) {
	if fs.config.Logger != nil {
		fs.config.Logger.Error(msg, keysAndValues...)
	}
}
