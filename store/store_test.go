package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/internal/fwtest"
	"github.com/moffa90/go-mbfs/memmap"
	"github.com/moffa90/go-mbfs/mpfs"
	"github.com/moffa90/go-mbfs/uhex"
)

type countingLogger struct {
	debug, errors int
	messages      []string
}

func (l *countingLogger) Debug(msg string, _ ...interface{}) {
	l.debug++
	l.messages = append(l.messages, msg)
}

func (l *countingLogger) Info(msg string, _ ...interface{}) {
	l.messages = append(l.messages, msg)
}

func (l *countingLogger) Error(msg string, _ ...interface{}) {
	l.errors++
	l.messages = append(l.messages, msg)
}

func openTemp(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		m    *memmap.Map
	}{
		{name: "empty", m: memmap.New()},
		{name: "V1 image", m: fwtest.V1Map(t)},
		{name: "V2 image", m: fwtest.V2Map(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unmarshalMap(marshalMap(tt.m))
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.m))
		})
	}
}

func TestUnmarshalErrors(t *testing.T) {
	valid := marshalMap(fwtest.V1Map(t))

	tests := []struct {
		name   string
		input  []byte
		errMsg string
	}{
		{name: "empty", input: nil, errMsg: "unsupported cache entry encoding"},
		{name: "unknown version", input: []byte{9, 0}, errMsg: "unsupported cache entry encoding"},
		{name: "missing count", input: []byte{encodingVersion}, errMsg: "truncated cache entry"},
		{name: "truncated data", input: valid[:len(valid)-10], errMsg: "truncated cache entry at block"},
		{name: "trailing bytes", input: append(append([]byte{}, valid...), 0x00), errMsg: "trailing bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := unmarshalMap(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.ErrorIs(t, err, fault.ErrFormat)
		})
	}
}

func TestGetPutDelete(t *testing.T) {
	s := openTemp(t)
	key := Key("anything")
	assert.Len(t, key, 64)

	_, ok, err := s.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	m := fwtest.V2Map(t)
	require.NoError(t, s.Put(key, m))
	got, ok, err := s.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(m))

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Delete(key))
	_, ok, err = s.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeCachesAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	text := fwtest.V1Hex(t)

	logger := &countingLogger{}
	s, err := Open(path, WithLogger(logger))
	require.NoError(t, err)
	first, err := s.Decode(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"cache miss"}, logger.messages)
	require.NoError(t, s.Close())

	logger = &countingLogger{}
	s, err = Open(path, WithLogger(logger))
	require.NoError(t, err)
	defer s.Close()
	second, err := s.Decode(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"cache hit"}, logger.messages)
	assert.True(t, first.Equal(second))
}

func TestDecodeRecoversCorruptEntry(t *testing.T) {
	logger := &countingLogger{}
	// the store shares the filesystem logger interface
	var shared mpfs.Logger = logger
	s := openTemp(t, WithLogger(shared))
	text := fwtest.V2Hex(t)
	key := Key(text)

	require.NoError(t, s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(mapsBucket).Put([]byte(key), []byte{encodingVersion, 5})
	}))

	m, err := s.Decode(text)
	require.NoError(t, err)
	assert.True(t, m.Equal(fwtest.V2Map(t)))
	assert.Equal(t, 1, logger.errors)

	_, ok, err := s.Get(key)
	require.NoError(t, err)
	assert.True(t, ok, "entry was not rewritten")
}

func TestDecodeInvalidHex(t *testing.T) {
	s := openTemp(t)
	_, err := s.Decode(":zz\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrFormat)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPurge(t *testing.T) {
	s := openTemp(t)
	_, err := s.Decode(fwtest.V1Hex(t))
	require.NoError(t, err)
	_, err = s.Decode(fwtest.V2Hex(t))
	require.NoError(t, err)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Purge())
	n, err = s.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open("")
	assert.ErrorIs(t, err, fault.ErrUsage)

	_, err = Open(filepath.Join(t.TempDir(), "missing", "dir", "cache.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open cache")
}

func TestDecoderWithFsHex(t *testing.T) {
	s := openTemp(t)
	hexes := []uhex.Hex{
		{BoardID: uhex.BoardV1, Hex: fwtest.V1Hex(t)},
		{BoardID: uhex.BoardV2, Hex: fwtest.V2Hex(t)},
	}

	for i := 0; i < 2; i++ {
		fs, err := mpfs.New(hexes, mpfs.WithDecoder(s.Decode))
		require.NoError(t, err)
		require.NoError(t, fs.WriteString(mpfs.MainScript, "print(1)"))
		_, err = fs.UniversalHex()
		require.NoError(t, err)
	}

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
