package memmap

import (
	"bytes"
	"iter"
	"sort"

	"github.com/moffa90/go-mbfs/fault"
)

// DefaultPageSize is the page size used by Paginate callers that have no
// device information.
const DefaultPageSize = 1024

// Block is one contiguous run of bytes starting at Addr.
type Block struct {
	Addr int
	Data []byte
}

// End returns the first address past the block.
func (b Block) End() int {
	return b.Addr + len(b.Data)
}

// Map is a sparse memory image: non-overlapping byte blocks keyed by their
// start address, iterated in ascending address order.
//
// A Map is not safe for concurrent use.
type Map struct {
	addrs  []int
	blocks map[int][]byte
}

// New returns an empty Map.
func New() *Map {
	return &Map{blocks: make(map[int][]byte)}
}

// FromBlocks builds a Map from blocks, rejecting overlaps.
func FromBlocks(blocks ...Block) (*Map, error) {
	m := New()
	for _, b := range blocks {
		if err := m.Set(b.Addr, b.Data); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Len returns the number of blocks.
func (m *Map) Len() int {
	return len(m.addrs)
}

// Get returns the block starting exactly at addr.
func (m *Map) Get(addr int) ([]byte, bool) {
	b, ok := m.blocks[addr]
	return b, ok
}

// Has reports whether a block starts exactly at addr.
func (m *Map) Has(addr int) bool {
	_, ok := m.blocks[addr]
	return ok
}

// Set creates or replaces the block at addr. The map takes ownership of data.
// Negative addresses and blocks overlapping a neighbour are rejected.
func (m *Map) Set(addr int, data []byte) error {
	if addr < 0 {
		return fault.Usagef("address %d must be a non-negative integer", addr)
	}
	i := sort.SearchInts(m.addrs, addr)
	exists := i < len(m.addrs) && m.addrs[i] == addr
	if i > 0 {
		prev := m.addrs[i-1]
		if prevEnd := prev + len(m.blocks[prev]); prevEnd > addr {
			return fault.Formatf("block at 0x%08X overlaps block 0x%08X-0x%08X", addr, prev, prevEnd)
		}
	}
	next := i
	if exists {
		next++
	}
	if next < len(m.addrs) && m.addrs[next] < addr+len(data) {
		return fault.Formatf("block 0x%08X-0x%08X overlaps block at 0x%08X", addr, addr+len(data), m.addrs[next])
	}
	m.put(addr, data)
	return nil
}

// Delete removes the block starting at addr, if any.
func (m *Map) Delete(addr int) {
	if _, ok := m.blocks[addr]; !ok {
		return
	}
	delete(m.blocks, addr)
	i := sort.SearchInts(m.addrs, addr)
	m.addrs = append(m.addrs[:i], m.addrs[i+1:]...)
}

// All iterates the blocks in ascending address order.
func (m *Map) All() iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		for _, a := range m.addrs {
			if !yield(a, m.blocks[a]) {
				return
			}
		}
	}
}

// Blocks returns the blocks in ascending address order. The data slices
// alias the map.
func (m *Map) Blocks() []Block {
	out := make([]Block, 0, len(m.addrs))
	for _, a := range m.addrs {
		out = append(out, Block{Addr: a, Data: m.blocks[a]})
	}
	return out
}

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	c := &Map{
		addrs:  append([]int(nil), m.addrs...),
		blocks: make(map[int][]byte, len(m.blocks)),
	}
	for a, b := range m.blocks {
		c.blocks[a] = bytes.Clone(b)
		if c.blocks[a] == nil {
			c.blocks[a] = []byte{}
		}
	}
	return c
}

// Join returns a new map where contiguous blocks are merged. A block is
// appended to the current run only while the run is shorter than
// maxBlockSize; maxBlockSize <= 0 means unbounded. The result never aliases m.
func (m *Map) Join(maxBlockSize int) (*Map, error) {
	type run struct {
		addr int
		size int
	}
	var runs []run
	lastAddr, lastEnd := -1, -1
	for _, a := range m.addrs {
		n := len(m.blocks[a])
		switch {
		case lastEnd == a && (maxBlockSize <= 0 || lastEnd-lastAddr < maxBlockSize):
			runs[len(runs)-1].size += n
			lastEnd += n
		case lastEnd <= a:
			runs = append(runs, run{addr: a, size: n})
			lastAddr, lastEnd = a, a+n
		default:
			return nil, fault.Formatf("overlapping data around address 0x%08X", a)
		}
	}

	joined := New()
	ri := -1
	var buf []byte
	for _, a := range m.addrs {
		if ri+1 < len(runs) && runs[ri+1].addr == a {
			ri++
			buf = make([]byte, 0, runs[ri].size)
		}
		buf = append(buf, m.blocks[a]...)
		if len(buf) == runs[ri].size {
			joined.put(runs[ri].addr, buf)
		}
	}
	return joined, nil
}

// Slice returns a map holding only the bytes in [addr, addr+length). Blocks
// of the result alias m. A negative length yields an empty map.
func (m *Map) Slice(addr, length int) *Map {
	out := New()
	if length < 0 {
		return out
	}
	end := addr + length
	for _, a := range m.addrs {
		b := m.blocks[a]
		if a+len(b) < addr || a >= end {
			continue
		}
		start := max(addr, a)
		stop := min(end, a+len(b))
		if stop-start > 0 {
			out.put(start, b[start-a:stop-a:stop-a])
		}
	}
	return out
}

// SliceFrom returns the bytes at or above addr. Blocks of the result alias m.
func (m *Map) SliceFrom(addr int) *Map {
	out := New()
	for _, a := range m.addrs {
		b := m.blocks[a]
		if a+len(b) <= addr {
			continue
		}
		start := max(addr, a)
		out.put(start, b[start-a:len(b):len(b)])
	}
	return out
}

// SlicePad copies [addr, addr+length) into a new buffer, filling bytes not
// covered by any block with pad.
func (m *Map) SlicePad(addr, length int, pad byte) []byte {
	if length <= 0 {
		return []byte{}
	}
	out := bytes.Repeat([]byte{pad}, length)
	end := addr + length
	i := m.firstEndingAfter(addr)
	for ; i < len(m.addrs) && m.addrs[i] < end; i++ {
		a := m.addrs[i]
		b := m.blocks[a]
		start := max(addr, a)
		stop := min(end, a+len(b))
		if stop > start {
			copy(out[start-addr:], b[start-a:stop-a])
		}
	}
	return out
}

// Paginate returns a new map where every block is one page of pageSize bytes
// aligned to pageSize. Gaps inside a page are filled with pad.
func (m *Map) Paginate(pageSize int, pad byte) (*Map, error) {
	if pageSize <= 0 {
		return nil, fault.Usagef("page size %d must be a positive integer", pageSize)
	}
	pages := New()
	for _, a := range m.addrs {
		end := a + len(m.blocks[a])
		for page := a - a%pageSize; page < end; page += pageSize {
			if pages.Has(page) {
				continue
			}
			pages.put(page, m.SlicePad(page, pageSize, pad))
		}
	}
	return pages, nil
}

// Contains reports whether every block of other is present, byte for byte,
// inside a single block of m.
func (m *Map) Contains(other *Map) bool {
	for _, oa := range other.addrs {
		ob := other.blocks[oa]
		if len(ob) == 0 {
			continue
		}
		i := m.firstEndingAfter(oa)
		if i >= len(m.addrs) {
			return false
		}
		a := m.addrs[i]
		b := m.blocks[a]
		if a > oa || oa+len(ob) > a+len(b) {
			return false
		}
		if !bytes.Equal(b[oa-a:oa-a+len(ob)], ob) {
			return false
		}
	}
	return true
}

// Patch writes data at addr, copying into the blocks that already cover the
// range and creating new blocks for the gaps between them.
func (m *Map) Patch(addr int, data []byte) error {
	if addr < 0 {
		return fault.Usagef("address %d must be a non-negative integer", addr)
	}
	end := addr + len(data)
	cur := addr
	for cur < end {
		i := m.firstEndingAfter(cur)
		if i < len(m.addrs) && m.addrs[i] <= cur {
			a := m.addrs[i]
			cur += copy(m.blocks[a][cur-a:], data[cur-addr:])
			continue
		}
		gapEnd := end
		if i < len(m.addrs) && m.addrs[i] < end {
			gapEnd = m.addrs[i]
		}
		m.put(cur, bytes.Clone(data[cur-addr:gapEnd-addr]))
		cur = gapEnd
	}
	return nil
}

// Equal reports whether both maps hold the same blocks at the same addresses.
func (m *Map) Equal(other *Map) bool {
	if len(m.addrs) != len(other.addrs) {
		return false
	}
	for i, a := range m.addrs {
		if other.addrs[i] != a || !bytes.Equal(m.blocks[a], other.blocks[a]) {
			return false
		}
	}
	return true
}

// put inserts or replaces a block without overlap checks.
func (m *Map) put(addr int, data []byte) {
	if data == nil {
		data = []byte{}
	}
	i := sort.SearchInts(m.addrs, addr)
	if i < len(m.addrs) && m.addrs[i] == addr {
		m.blocks[addr] = data
		return
	}
	m.addrs = append(m.addrs, 0)
	copy(m.addrs[i+1:], m.addrs[i:])
	m.addrs[i] = addr
	m.blocks[addr] = data
}

// firstEndingAfter returns the index of the first block whose end lies past addr.
func (m *Map) firstEndingAfter(addr int) int {
	return sort.Search(len(m.addrs), func(k int) bool {
		a := m.addrs[k]
		return a+len(m.blocks[a]) > addr
	})
}
