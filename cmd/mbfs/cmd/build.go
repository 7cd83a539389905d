package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/mpfs"
	"github.com/moffa90/go-mbfs/uhex"
)

// boardArg is a firmware path with an optional board ID, written id=path.
type boardArg struct {
	boardID int
	path    string
}

// parseBoardArg parses "path" or "id=path"; the ID accepts 0x prefixes.
// A missing ID is returned as -1.
func parseBoardArg(s string) (boardArg, error) {
	id, path, ok := strings.Cut(s, "=")
	if !ok {
		return boardArg{boardID: -1, path: s}, nil
	}
	n, err := strconv.ParseInt(id, 0, 32)
	if err != nil || n < 0 || n > 0xFFFF {
		return boardArg{}, fault.Usagef("invalid board ID %q in %q", id, s)
	}
	if path == "" {
		return boardArg{}, fault.Usagef("missing firmware path in %q", s)
	}
	return boardArg{boardID: int(n), path: path}, nil
}

// readBoardHexes reads id=path arguments. A single argument may omit the ID
// and gets board ID 0.
func readBoardHexes(args []string) ([]uhex.Hex, error) {
	hexes := make([]uhex.Hex, 0, len(args))
	for _, s := range args {
		arg, err := parseBoardArg(s)
		if err != nil {
			return nil, err
		}
		if arg.boardID < 0 {
			if len(args) > 1 {
				return nil, fault.Usagef("board ID required for %q when several firmware files are given (use id=path)", s)
			}
			arg.boardID = 0
		}
		text, err := readHex(arg.path)
		if err != nil {
			return nil, err
		}
		hexes = append(hexes, uhex.Hex{BoardID: arg.boardID, Hex: text})
	}
	return hexes, nil
}

// parseFileArg parses "path" or "path:name". Without a name the file keeps
// its base name.
func parseFileArg(s string) (path, name string) {
	if i := strings.LastIndex(s, ":"); i > 0 {
		name = s[i+1:]
		if name != "" && !strings.ContainsAny(name, `/\`) {
			return s[:i], name
		}
	}
	return s, filepath.Base(s)
}

func newBuildCmd(a *app) *cobra.Command {
	var (
		hexArgs  []string
		fileArgs []string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "build --hex [id=]firmware.hex ... --file path[:name] ... -o out.hex",
		Short: "Write files into MicroPython firmware",
		Long: "Write files into one or more MicroPython firmware images. With one image the result is an Intel Hex, " +
			"with several it is a Universal Hex.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(hexArgs) == 0 {
				return fault.Usagef("at least one --hex is required")
			}
			hexes, err := readBoardHexes(hexArgs)
			if err != nil {
				return err
			}
			opts, err := a.fsOptions()
			if err != nil {
				return err
			}
			fs, err := mpfs.New(hexes, opts...)
			if err != nil {
				return err
			}

			for _, s := range fileArgs {
				path, name := parseFileArg(s)
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if err := fs.Write(name, data); err != nil {
					return err
				}
				a.logger.Debug("added file", "name", name, "bytes", len(data))
			}
			a.logger.Info("filesystem usage", "used", fs.StorageUsed(), "size", fs.StorageSize())

			var out string
			if len(hexes) == 1 {
				out, err = fs.IntelHex()
			} else {
				out, err = fs.UniversalHex()
			}
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, []byte(out))
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&hexArgs, "hex", nil, "MicroPython firmware as [board-id=]path, repeatable")
	flags.StringArrayVarP(&fileArgs, "file", "f", nil, "file to add as path[:name], repeatable")
	flags.StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newMergeCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "merge id=firmware.hex ... -o universal.hex",
		Short: "Combine Intel Hex files into a Universal Hex",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range args {
				if !strings.Contains(s, "=") {
					return fault.Usagef("board ID required for %q (use id=path)", s)
				}
			}
			hexes, err := readBoardHexes(args)
			if err != nil {
				return err
			}
			format, err := a.format()
			if err != nil {
				return err
			}
			universal, err := uhex.Create(hexes, format)
			if err != nil {
				return err
			}
			a.logger.Info("merged Universal Hex", "boards", len(hexes), "format", format.String())
			return writeOutput(cmd, output, []byte(universal))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newSplitCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "split <universal.hex> -o dir",
		Short: "Extract the Intel Hex of every board in a Universal Hex",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readHex(args[0])
			if err != nil {
				return err
			}
			hexes, err := uhex.Separate(text)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			for _, h := range hexes {
				path := filepath.Join(dir, fmt.Sprintf("board-0x%04X.hex", h.BoardID))
				if err := os.WriteFile(path, []byte(h.Hex), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			a.logger.Info("split Universal Hex", "boards", len(hexes), "dir", dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "output", "o", ".", "output directory")
	return cmd
}
