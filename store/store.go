package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/moffa90/go-mbfs/fault"
	"github.com/moffa90/go-mbfs/ihex"
	"github.com/moffa90/go-mbfs/memmap"
	"github.com/moffa90/go-mbfs/mpfs"
)

var mapsBucket = []byte("decoded_maps")

// encodingVersion prefixes every stored value.
const encodingVersion = 1

// Config holds the store configuration.
type Config struct {
	// Timeout bounds the wait for the file lock held by another process.
	Timeout time.Duration

	// Logger receives cache hits and misses.
	Logger mpfs.Logger
}

// Option configures a Store.
type Option func(*Config)

func defaultConfig() Config {
	return Config{Timeout: time.Second}
}

// WithTimeout sets how long Open waits for the database lock.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger mpfs.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Store caches decoded firmware images in a bbolt database, keyed by the
// SHA-256 digest of their Intel Hex text. It is safe for concurrent use.
type Store struct {
	db     *bolt.DB
	config Config
}

// Open opens or creates the cache database at path.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if path == "" {
		return nil, fault.Usagef("cache path is required")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(mapsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise cache %s: %w", path, err)
	}
	return &Store{db: db, config: cfg}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key returns the cache key of an Intel Hex text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the map stored under key. The boolean is false on a miss.
func (s *Store) Get(key string) (*memmap.Map, bool, error) {
	var m *memmap.Map
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(mapsBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		var err error
		m, err = unmarshalMap(v)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return m, m != nil, nil
}

// Put stores m under key, replacing any previous entry.
func (s *Store) Put(key string, m *memmap.Map) error {
	v := marshalMap(m)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(mapsBucket).Put([]byte(key), v)
	})
}

// Delete removes the entry stored under key, if any.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(mapsBucket).Delete([]byte(key))
	})
}

// Len returns the number of cached images.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(mapsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Purge removes every cached image.
func (s *Store) Purge() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(mapsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(mapsBucket)
		return err
	})
}

// Decode returns the decoded map of an Intel Hex text, reading it from the
// cache when present and storing it otherwise. It has the signature of
// mpfs.Decoder:
//
//	fs, err := mpfs.New(hexes, mpfs.WithDecoder(cache.Decode))
//
// A corrupted entry is decoded again and overwritten. Callers own the
// returned map.
func (s *Store) Decode(text string) (*memmap.Map, error) {
	key := Key(text)
	m, ok, err := s.Get(key)
	if err != nil {
		s.logError("dropping unreadable cache entry", "key", key, "error", err)
	}
	if ok {
		s.logDebug("cache hit", "key", key)
		return m, nil
	}

	m, err = ihex.Decode(text)
	if err != nil {
		return nil, err
	}
	if err := s.Put(key, m); err != nil {
		s.logError("failed to store decoded image", "key", key, "error", err)
		return m, nil
	}
	s.logDebug("cache miss", "key", key, "blocks", m.Len())
	return m, nil
}

// marshalMap encodes blocks as a version byte followed by uvarint block
// count and, per block, uvarint address, uvarint length and the data.
func marshalMap(m *memmap.Map) []byte {
	size := 1 + binary.MaxVarintLen64
	for _, data := range m.All() {
		size += 2*binary.MaxVarintLen64 + len(data)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, encodingVersion)
	buf = binary.AppendUvarint(buf, uint64(m.Len()))
	for addr, data := range m.All() {
		buf = binary.AppendUvarint(buf, uint64(addr))
		buf = binary.AppendUvarint(buf, uint64(len(data)))
		buf = append(buf, data...)
	}
	return buf
}

func unmarshalMap(v []byte) (*memmap.Map, error) {
	if len(v) == 0 || v[0] != encodingVersion {
		return nil, fault.Formatf("unsupported cache entry encoding")
	}
	v = v[1:]
	count, n := binary.Uvarint(v)
	if n <= 0 {
		return nil, fault.Formatf("truncated cache entry")
	}
	v = v[n:]

	m := memmap.New()
	for i := uint64(0); i < count; i++ {
		addr, n := binary.Uvarint(v)
		if n <= 0 {
			return nil, fault.Formatf("truncated cache entry at block %d", i)
		}
		v = v[n:]
		length, n := binary.Uvarint(v)
		if n <= 0 || length > uint64(len(v)-n) {
			return nil, fault.Formatf("truncated cache entry at block %d", i)
		}
		v = v[n:]
		// bbolt values are only valid inside the transaction
		data := make([]byte, length)
		copy(data, v)
		v = v[length:]
		if err := m.Set(int(addr), data); err != nil {
			return nil, err
		}
	}
	if len(v) != 0 {
		return nil, fault.Formatf("%d trailing bytes in cache entry", len(v))
	}
	return m, nil
}

func (s *Store) logDebug(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (s *Store) logError(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Error(msg, keysAndValues...)
	}
}
