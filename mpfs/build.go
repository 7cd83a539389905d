package mpfs

import (
	"fmt"
	"strings"

	"github.com/moffa90/go-mbfs/uhex"
)

// MainScript is the file MicroPython runs at boot.
const MainScript = "main.py"

// estimateOverhead covers record framing and padding added around the
// firmware and the script.
const estimateOverhead = 100000

// BuildUniversalHex writes a Python program as main.py into the V1 and V2
// MicroPython firmware and merges both into a Universal Hex.
//
// Example:
//
//	universal, err := mpfs.BuildUniversalHex(v1Hex, v2Hex, "print('hello')\n")
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("microbit.hex", []byte(universal), 0o644)
func BuildUniversalHex(v1Hex, v2Hex, mainPy string, opts ...Option) (string, error) {
	fs, err := New([]uhex.Hex{
		{BoardID: uhex.BoardV1, Hex: v1Hex},
		{BoardID: uhex.BoardV2, Hex: v2Hex},
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to build Universal Hex: %w", err)
	}
	if err := fs.WriteString(MainScript, mainPy); err != nil {
		return "", fmt.Errorf("failed to build Universal Hex: %w", err)
	}
	universal, err := fs.UniversalHex()
	if err != nil {
		return "", fmt.Errorf("failed to build Universal Hex: %w", err)
	}
	return universal, nil
}

// ValidateHex reports whether text looks like Intel Hex: its first non-blank
// line starts with a colon.
func ValidateHex(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return strings.HasPrefix(line, ":")
		}
	}
	return false
}

// EstimatedSize returns a rough upper bound, in bytes, for the Universal Hex
// built from the two firmware files and the program.
func EstimatedSize(v1Hex, v2Hex, mainPy string) int {
	return max(len(v1Hex), len(v2Hex)) + len(mainPy) + estimateOverhead
}
