package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/ihex"
	"github.com/moffa90/go-mbfs/internal/fwtest"
	"github.com/moffa90/go-mbfs/mpfs"
	"github.com/moffa90/go-mbfs/store"
	"github.com/moffa90/go-mbfs/uhex"
)

type fixture struct {
	dir  string
	v1   string
	v2   string
	main string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	f := fixture{
		dir:  dir,
		v1:   filepath.Join(dir, "v1.hex"),
		v2:   filepath.Join(dir, "v2.hex"),
		main: filepath.Join(dir, "main.py"),
	}
	require.NoError(t, os.WriteFile(f.v1, []byte(fwtest.V1Hex(t)), 0o644))
	require.NoError(t, os.WriteFile(f.v2, []byte(fwtest.V2Hex(t)), 0o644))
	require.NoError(t, os.WriteFile(f.main, []byte("print('hello')\n"), 0o644))
	return f
}

func (f fixture) path(name string) string {
	return filepath.Join(f.dir, name)
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := run(t, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBuildUniversalAndInspect(t *testing.T) {
	f := newFixture(t)
	out := f.path("out.hex")

	mustRun(t, "build", "--hex", "0x9900="+f.v1, "--hex", "0x9903="+f.v2, "--file", f.main, "-o", out)
	require.True(t, uhex.IsUniversalHex(readFile(t, out)))

	listing := mustRun(t, "ls", out)
	assert.Contains(t, listing, "board 0x9900:")
	assert.Contains(t, listing, "board 0x9903:")
	assert.Contains(t, listing, "      15  main.py")

	assert.Equal(t, "print('hello')\n", mustRun(t, "cat", out, "main.py"))

	info := mustRun(t, "info", out)
	assert.Contains(t, info, "device:       V1")
	assert.Contains(t, info, "device:       V2")
	assert.Contains(t, info, "layout from:  region-table")
	assert.Contains(t, info, "files:        1")
}

func TestBuildSingleHexToStdout(t *testing.T) {
	f := newFixture(t)

	out := mustRun(t, "build", "--hex", f.v2, "-f", f.main+":code.py", "--log-level", "disabled")
	files, err := mpfs.ReadHexFiles(out)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "code.py", files[0].Name)

	info := mustRun(t, "info", f.v2)
	assert.Contains(t, info, "image:        intel hex")
	assert.Contains(t, info, "files:        0")
}

func TestMergeAndSplit(t *testing.T) {
	f := newFixture(t)
	hexes := []uhex.Hex{
		{BoardID: uhex.BoardV1, Hex: fwtest.V1Hex(t)},
		{BoardID: uhex.BoardV2, Hex: fwtest.V2Hex(t)},
	}

	tests := []struct {
		name   string
		env    string
		args   []string
		format uhex.Format
	}{
		{name: "default sections", format: uhex.FormatSections},
		{name: "flag", args: []string{"--format", "blocks"}, format: uhex.FormatBlocks},
		{name: "environment", env: "blocks", format: uhex.FormatBlocks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("MBFS_FORMAT", tt.env)
			}
			args := append([]string{"merge", "0x9900=" + f.v1, "39171=" + f.v2}, tt.args...)
			got := mustRun(t, args...)

			want, err := uhex.Create(hexes, tt.format)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	universal := f.path("universal.hex")
	mustRun(t, "merge", "0x9900="+f.v1, "0x9903="+f.v2, "-o", universal)
	dir := f.path("split")
	listing := mustRun(t, "split", universal, "-o", dir)
	assert.Contains(t, listing, "board-0x9900.hex")

	for board, src := range map[string]string{"board-0x9900.hex": f.v1, "board-0x9903.hex": f.v2} {
		got, err := ihex.Decode(readFile(t, filepath.Join(dir, board)))
		require.NoError(t, err)
		want, err := ihex.Decode(readFile(t, src))
		require.NoError(t, err)
		assert.True(t, got.Equal(want), "%s differs from its source", board)
	}
}

func TestConfigFile(t *testing.T) {
	f := newFixture(t)
	config := f.path("mbfs.yaml")
	require.NoError(t, os.WriteFile(config, []byte("format: blocks\nlog_level: debug\n"), 0o644))

	out, stderr, err := run(t, "--config", config, "merge", "0x9900="+f.v1, "0x9903="+f.v2)
	require.NoError(t, err)
	assert.Contains(t, stderr, "loaded config")

	want, err := uhex.Create([]uhex.Hex{
		{BoardID: uhex.BoardV1, Hex: fwtest.V1Hex(t)},
		{BoardID: uhex.BoardV2, Hex: fwtest.V2Hex(t)},
	}, uhex.FormatBlocks)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	_, _, err = run(t, "--config", f.path("missing.yaml"), "ls", f.v1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestCachePath(t *testing.T) {
	f := newFixture(t)
	db := f.path("cache.db")

	for i := 0; i < 2; i++ {
		mustRun(t, "--cache-path", db, "build", "--hex", "0x9900="+f.v1, "--hex", "0x9903="+f.v2,
			"--file", f.main, "-o", f.path("out.hex"))
	}
	t.Setenv("MBFS_CACHE_PATH", db)
	assert.Contains(t, mustRun(t, "ls", f.path("out.hex")), "main.py")

	s, err := store.Open(db)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Len()
	require.NoError(t, err)
	// two firmware images and the two boards of the built Universal Hex
	assert.Equal(t, 4, n)
}

func TestCommandErrors(t *testing.T) {
	f := newFixture(t)
	notHex := f.path("notes.txt")
	require.NoError(t, os.WriteFile(notHex, []byte("hello"), 0o644))
	big := f.path("big.bin")
	require.NoError(t, os.WriteFile(big, bytes.Repeat([]byte{'x'}, 4000), 0o644))
	blank, err := ihex.Encode(fwtest.V1Map(t).Slice(0, 0x100), ihex.DefaultLineSize)
	require.NoError(t, err)
	plain := f.path("plain.hex")
	require.NoError(t, os.WriteFile(plain, []byte(blank+"\n"), 0o644))

	tests := []struct {
		name   string
		args   []string
		errMsg string
		kind   error
	}{
		{name: "log level", args: []string{"--log-level", "loud", "ls", f.v1}, errMsg: "invalid log level", kind: fault.ErrUsage},
		{name: "format", args: []string{"--format", "zip", "merge", "1=" + f.v1}, errMsg: "unknown Universal Hex format", kind: fault.ErrUsage},
		{name: "not hex", args: []string{"ls", notHex}, errMsg: "is not an Intel Hex file", kind: fault.ErrFormat},
		{name: "no micropython", args: []string{"info", plain}, errMsg: "UICR", kind: fault.ErrFormat},
		{name: "build without hex", args: []string{"build"}, errMsg: "at least one --hex", kind: fault.ErrUsage},
		{name: "build ambiguous", args: []string{"build", "--hex", f.v1, "--hex", f.v2}, errMsg: "board ID required", kind: fault.ErrUsage},
		{name: "bad board id", args: []string{"merge", "0x1FFFF=" + f.v1}, errMsg: "invalid board ID", kind: fault.ErrUsage},
		{name: "merge without id", args: []string{"merge", f.v1}, errMsg: "board ID required", kind: fault.ErrUsage},
		{name: "cat missing", args: []string{"cat", f.v1, "main.py"}, errMsg: `file "main.py" not found`, kind: fault.ErrUsage},
		{
			name:   "too large",
			args:   []string{"--max-fs-size", "1024", "build", "--hex", f.v1, "--file", big},
			errMsg: "no storage space",
			kind:   fault.ErrCapacity,
		},
		{name: "split plain hex", args: []string{"split", f.v1, "-o", f.path("x")}, errMsg: "Universal Hex", kind: fault.ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, int(fault.KindOf(tt.kind).ABCICode()), ExitCode(err))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("plain")))
	assert.Equal(t, 3, ExitCode(&mpfs.NoSpaceError{}))
	assert.Equal(t, 4, ExitCode(fault.Integrityf("broken")))
}

func TestParseArgs(t *testing.T) {
	boardTests := []struct {
		input   string
		want    boardArg
		wantErr bool
	}{
		{input: "fw.hex", want: boardArg{boardID: -1, path: "fw.hex"}},
		{input: "0x9903=fw.hex", want: boardArg{boardID: 0x9903, path: "fw.hex"}},
		{input: "39168=dir/fw.hex", want: boardArg{boardID: 0x9900, path: "dir/fw.hex"}},
		{input: "v2=fw.hex", wantErr: true},
		{input: "-1=fw.hex", wantErr: true},
		{input: "0x9900=", wantErr: true},
	}
	for _, tt := range boardTests {
		got, err := parseBoardArg(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	fileTests := []struct {
		input, path, name string
	}{
		{input: "main.py", path: "main.py", name: "main.py"},
		{input: "src/app.py:main.py", path: "src/app.py", name: "main.py"},
		{input: "/tmp/lib/helper.py", path: "/tmp/lib/helper.py", name: "helper.py"},
		{input: "odd:dir/x.py", path: "odd:dir/x.py", name: "x.py"},
	}
	for _, tt := range fileTests {
		path, name := parseFileArg(tt.input)
		assert.Equal(t, tt.path, path, tt.input)
		assert.Equal(t, tt.name, name, tt.input)
	}
}
