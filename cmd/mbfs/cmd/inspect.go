package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/memmap"
	"github.com/moffa90/go-mbfs/mpfs"
	"github.com/moffa90/go-mbfs/uhex"
)

// image is one decoded board image of an input file.
type image struct {
	boardID   int
	universal bool
	m         *memmap.Map
}

func (img image) label() string {
	if !img.universal {
		return "intel hex"
	}
	return fmt.Sprintf("board 0x%04X", img.boardID)
}

// loadImages reads an Intel Hex or Universal Hex file and decodes every
// board image in it.
func (a *app) loadImages(path string) ([]image, error) {
	text, err := readHex(path)
	if err != nil {
		return nil, err
	}
	if !uhex.IsUniversalHex(text) {
		m, err := a.decode(text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []image{{m: m}}, nil
	}

	hexes, err := uhex.Separate(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	images := make([]image, 0, len(hexes))
	for _, h := range hexes {
		m, err := a.decode(h.Hex)
		if err != nil {
			return nil, fmt.Errorf("%s board 0x%04X: %w", path, h.BoardID, err)
		}
		images = append(images, image{boardID: h.BoardID, universal: true, m: m})
	}
	return images, nil
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <firmware.hex>",
		Short: "Show the memory layout of MicroPython firmware",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := a.loadImages(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, img := range images {
				if i > 0 {
					fmt.Fprintln(out)
				}
				if err := printInfo(out, img); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printInfo(w io.Writer, img image) error {
	l, err := mpfs.NewLayout(img.m)
	if err != nil {
		return fmt.Errorf("%s: %w", img.label(), err)
	}
	info := l.Info
	files, err := mpfs.ReadFiles(img.m)
	if err != nil {
		return fmt.Errorf("%s: %w", img.label(), err)
	}

	fmt.Fprintf(w, "image:        %s\n", img.label())
	fmt.Fprintf(w, "device:       %s\n", info.DeviceVersion)
	fmt.Fprintf(w, "micropython:  %s\n", info.MicroPythonVersion)
	fmt.Fprintf(w, "layout from:  %s\n", info.Source)
	fmt.Fprintf(w, "flash:        0x%08X-0x%08X (page size %d)\n", info.FlashStart, info.FlashEnd, info.PageSize)
	fmt.Fprintf(w, "runtime:      0x%08X-0x%08X\n", info.RuntimeStart, info.RuntimeEnd)
	fmt.Fprintf(w, "filesystem:   0x%08X-0x%08X (%d bytes, %d chunks)\n", l.Start, l.End, l.Size(), l.Chunks())
	fmt.Fprintf(w, "files:        %d\n", len(files))
	return nil
}

func newLsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <firmware.hex | universal.hex>",
		Short: "List the files stored in the MicroPython filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := a.loadImages(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, img := range images {
				files, err := mpfs.ReadFiles(img.m)
				if err != nil {
					return fmt.Errorf("%s: %w", img.label(), err)
				}
				if img.universal {
					fmt.Fprintf(out, "%s:\n", img.label())
				}
				for _, f := range files {
					fmt.Fprintf(out, "%8d  %s\n", len(f.Data), f.Name)
				}
			}
			return nil
		},
	}
}

func newCatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <firmware.hex | universal.hex> <filename>",
		Short: "Print a file stored in the MicroPython filesystem",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := a.loadImages(args[0])
			if err != nil {
				return err
			}
			// boards of a Universal Hex carry the same files
			for _, img := range images {
				files, err := mpfs.ReadFiles(img.m)
				if err != nil {
					return fmt.Errorf("%s: %w", img.label(), err)
				}
				for _, f := range files {
					if f.Name == args[1] {
						_, err := cmd.OutOrStdout().Write(f.Data)
						return err
					}
				}
			}
			return fault.Usagef("file %q not found in %s", args[1], args[0])
		},
	}
}
