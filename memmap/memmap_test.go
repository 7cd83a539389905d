package memmap

import (
	"bytes"
	"strings"
	"testing"
)

func mustMap(t *testing.T, blocks ...Block) *Map {
	t.Helper()
	m, err := FromBlocks(blocks...)
	if err != nil {
		t.Fatalf("FromBlocks() error = %v", err)
	}
	return m
}

func TestSet(t *testing.T) {
	tests := []struct {
		name    string
		blocks  []Block
		addr    int
		data    []byte
		wantErr bool
		errMsg  string
	}{
		{
			name: "empty map",
			addr: 0x10,
			data: []byte{1, 2, 3},
		},
		{
			name:   "adjacent after",
			blocks: []Block{{Addr: 0, Data: []byte{1, 2}}},
			addr:   2,
			data:   []byte{3},
		},
		{
			name:   "adjacent before",
			blocks: []Block{{Addr: 4, Data: []byte{1, 2}}},
			addr:   2,
			data:   []byte{3, 4},
		},
		{
			name:   "replace same address",
			blocks: []Block{{Addr: 4, Data: []byte{1, 2}}},
			addr:   4,
			data:   []byte{9, 9, 9},
		},
		{
			name:    "negative address",
			addr:    -1,
			data:    []byte{1},
			wantErr: true,
			errMsg:  "non-negative",
		},
		{
			name:    "overlaps previous",
			blocks:  []Block{{Addr: 0, Data: []byte{1, 2, 3}}},
			addr:    2,
			data:    []byte{4},
			wantErr: true,
			errMsg:  "overlaps",
		},
		{
			name:    "overlaps next",
			blocks:  []Block{{Addr: 4, Data: []byte{1}}},
			addr:    2,
			data:    []byte{1, 2, 3},
			wantErr: true,
			errMsg:  "overlaps",
		},
		{
			name:    "replacement grows into next",
			blocks:  []Block{{Addr: 0, Data: []byte{1}}, {Addr: 1, Data: []byte{2}}},
			addr:    0,
			data:    []byte{1, 1},
			wantErr: true,
			errMsg:  "overlaps",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustMap(t, tt.blocks...)
			err := m.Set(tt.addr, tt.data)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Set() expected error containing %q, got nil", tt.errMsg)
					return
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Set() error = %v, want error containing %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Set() unexpected error = %v", err)
			}
			got, ok := m.Get(tt.addr)
			if !ok || !bytes.Equal(got, tt.data) {
				t.Errorf("Get(%d) = %v, want %v", tt.addr, got, tt.data)
			}
		})
	}
}

func TestAscendingIteration(t *testing.T) {
	m := New()
	for _, a := range []int{0x300, 0x100, 0x200, 0x000} {
		if err := m.Set(a, []byte{byte(a >> 8)}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	var got []int
	for a := range m.All() {
		got = append(got, a)
	}
	want := []int{0x000, 0x100, 0x200, 0x300}
	if len(got) != len(want) {
		t.Fatalf("All() yielded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("All()[%d] = 0x%X, want 0x%X", i, got[i], want[i])
		}
	}

	m.Delete(0x100)
	if m.Has(0x100) || m.Len() != 3 {
		t.Errorf("Delete() left %d blocks, has 0x100 = %v", m.Len(), m.Has(0x100))
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name    string
		blocks  []Block
		max     int
		want    []Block
		wantErr bool
	}{
		{
			name: "contiguous blocks merge",
			blocks: []Block{
				{Addr: 0, Data: []byte{1, 2}},
				{Addr: 2, Data: []byte{3, 4}},
				{Addr: 4, Data: []byte{5}},
			},
			want: []Block{{Addr: 0, Data: []byte{1, 2, 3, 4, 5}}},
		},
		{
			name: "gap keeps blocks apart",
			blocks: []Block{
				{Addr: 0, Data: []byte{1}},
				{Addr: 2, Data: []byte{2}},
			},
			want: []Block{{Addr: 0, Data: []byte{1}}, {Addr: 2, Data: []byte{2}}},
		},
		{
			name: "max block size splits runs",
			blocks: []Block{
				{Addr: 0, Data: []byte{1, 2}},
				{Addr: 2, Data: []byte{3, 4}},
				{Addr: 4, Data: []byte{5, 6}},
			},
			max: 4,
			want: []Block{
				{Addr: 0, Data: []byte{1, 2, 3, 4}},
				{Addr: 4, Data: []byte{5, 6}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustMap(t, tt.blocks...)
			got, err := m.Join(tt.max)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Join() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !got.Equal(mustMap(t, tt.want...)) {
				t.Errorf("Join() = %v, want %v", got.Blocks(), tt.want)
			}
		})
	}
}

func TestJoinIdempotent(t *testing.T) {
	m := mustMap(t,
		Block{Addr: 0x00, Data: bytes.Repeat([]byte{0xAA}, 16)},
		Block{Addr: 0x10, Data: bytes.Repeat([]byte{0xBB}, 16)},
		Block{Addr: 0x40, Data: []byte{1, 2, 3}},
		Block{Addr: 0x43, Data: []byte{4}},
	)
	once, err := m.Join(0)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	twice, err := once.Join(0)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if !once.Equal(twice) {
		t.Errorf("Join(Join(m)) = %v, want %v", twice.Blocks(), once.Blocks())
	}
}

func TestJoinDoesNotAlias(t *testing.T) {
	src := []byte{1, 2}
	m := mustMap(t, Block{Addr: 0, Data: src})
	joined, err := m.Join(0)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	got, _ := joined.Get(0)
	got[0] = 0xFF
	if src[0] != 1 {
		t.Error("Join() result aliases the source block")
	}
}

func TestSlice(t *testing.T) {
	m := mustMap(t,
		Block{Addr: 0, Data: []byte{0, 1, 2, 3}},
		Block{Addr: 8, Data: []byte{8, 9}},
	)

	got := m.Slice(2, 7)
	want := mustMap(t,
		Block{Addr: 2, Data: []byte{2, 3}},
		Block{Addr: 8, Data: []byte{8}},
	)
	if !got.Equal(want) {
		t.Errorf("Slice() = %v, want %v", got.Blocks(), want.Blocks())
	}

	b, _ := got.Get(2)
	b[0] = 0x22
	orig, _ := m.Get(0)
	if orig[2] != 0x22 {
		t.Error("Slice() should alias the source bytes")
	}

	if m.Slice(0, -1).Len() != 0 {
		t.Error("Slice() with negative length should be empty")
	}

	from := m.SliceFrom(3)
	if !from.Equal(mustMap(t, Block{Addr: 3, Data: []byte{3}}, Block{Addr: 8, Data: []byte{8, 9}})) {
		t.Errorf("SliceFrom() = %v", from.Blocks())
	}
}

func TestSlicePad(t *testing.T) {
	m := mustMap(t,
		Block{Addr: 2, Data: []byte{0x11, 0x22}},
		Block{Addr: 6, Data: []byte{0x33}},
	)

	tests := []struct {
		name   string
		addr   int
		length int
		want   []byte
	}{
		{name: "covers everything", addr: 0, length: 8, want: []byte{0xFF, 0xFF, 0x11, 0x22, 0xFF, 0xFF, 0x33, 0xFF}},
		{name: "inside block", addr: 3, length: 1, want: []byte{0x22}},
		{name: "nothing mapped", addr: 100, length: 2, want: []byte{0xFF, 0xFF}},
		{name: "zero length", addr: 0, length: 0, want: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.SlicePad(tt.addr, tt.length, 0xFF)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("SlicePad() = % X, want % X", got, tt.want)
			}
		})
	}

	got := m.SlicePad(2, 1, 0xFF)
	got[0] = 0
	b, _ := m.Get(2)
	if b[0] != 0x11 {
		t.Error("SlicePad() result aliases the map")
	}
}

func TestPaginate(t *testing.T) {
	m := mustMap(t,
		Block{Addr: 2, Data: []byte{1, 2, 3}},
		Block{Addr: 13, Data: []byte{4}},
	)
	pages, err := m.Paginate(4, 0x00)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	want := mustMap(t,
		Block{Addr: 0, Data: []byte{0, 0, 1, 2}},
		Block{Addr: 4, Data: []byte{3, 0, 0, 0}},
		Block{Addr: 12, Data: []byte{0, 4, 0, 0}},
	)
	if !pages.Equal(want) {
		t.Errorf("Paginate() = %v, want %v", pages.Blocks(), want.Blocks())
	}

	if _, err := m.Paginate(0, 0); err == nil {
		t.Error("Paginate(0) expected error")
	}
}

func TestPatch(t *testing.T) {
	m := mustMap(t,
		Block{Addr: 2, Data: []byte{0xAA, 0xAA}},
		Block{Addr: 6, Data: []byte{0xBB}},
	)
	if err := m.Patch(0, []byte{0, 1, 2, 3, 4, 5, 6, 7}); err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	got := m.SlicePad(0, 8, 0xFF)
	want := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	if !bytes.Equal(got, want) {
		t.Errorf("after Patch() memory = % X, want % X", got, want)
	}
	if _, err := m.Join(0); err != nil {
		t.Errorf("Patch() produced overlapping blocks: %v", err)
	}
	if err := m.Patch(-4, []byte{1}); err == nil {
		t.Error("Patch() with negative address expected error")
	}
}

func TestContains(t *testing.T) {
	m := mustMap(t, Block{Addr: 0x10, Data: []byte{1, 2, 3, 4}})

	tests := []struct {
		name  string
		other *Map
		want  bool
	}{
		{name: "empty", other: New(), want: true},
		{name: "sub range", other: mustMap(t, Block{Addr: 0x11, Data: []byte{2, 3}}), want: true},
		{name: "different bytes", other: mustMap(t, Block{Addr: 0x11, Data: []byte{9}}), want: false},
		{name: "runs past end", other: mustMap(t, Block{Addr: 0x13, Data: []byte{4, 5}}), want: false},
		{name: "unmapped", other: mustMap(t, Block{Addr: 0x00, Data: []byte{1}}), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Contains(tt.other); got != tt.want {
				t.Errorf("Contains() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClone(t *testing.T) {
	m := mustMap(t, Block{Addr: 0, Data: []byte{1, 2}})
	c := m.Clone()
	b, _ := c.Get(0)
	b[0] = 9
	orig, _ := m.Get(0)
	if orig[0] != 1 {
		t.Error("Clone() shares storage with the original")
	}
	if err := c.Set(2, []byte{3}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if m.Len() != 1 {
		t.Error("Clone() shares the address index with the original")
	}
}

func TestReads(t *testing.T) {
	m := mustMap(t,
		Block{Addr: 0x100, Data: []byte{0x78, 0x56, 0x34, 0x12, 0xEF, 0xCD, 0xAB, 0x90}},
		Block{Addr: 0x200, Data: []byte("v1.0.1\x00trailing")},
		Block{Addr: 0x300, Data: []byte("no terminator")},
	)

	if got := m.Uint8(0x100); got != 0x78 {
		t.Errorf("Uint8() = 0x%X", got)
	}
	if got := m.Uint16(0x100); got != 0x5678 {
		t.Errorf("Uint16() = 0x%X", got)
	}
	if got := m.Uint32(0x100); got != 0x12345678 {
		t.Errorf("Uint32() = 0x%X", got)
	}
	if got := m.Uint64(0x100); got != 0x90ABCDEF12345678 {
		t.Errorf("Uint64() = 0x%X", got)
	}
	if got := m.Uint32(0x106); got != 0xFFFF90AB {
		t.Errorf("Uint32() across the block end = 0x%X, want 0xFFFF90AB", got)
	}
	if got := m.Uint32(0x5000); got != 0xFFFFFFFF {
		t.Errorf("Uint32() of unmapped memory = 0x%X", got)
	}

	if got := m.String(0x200); got != "v1.0.1" {
		t.Errorf("String() = %q, want %q", got, "v1.0.1")
	}
	if got := m.String(0x201); got != "1.0.1" {
		t.Errorf("String() inside block = %q, want %q", got, "1.0.1")
	}
	if got := m.String(0x202); got != ".0.1" {
		t.Errorf("String() inside block = %q, want %q", got, ".0.1")
	}
	if got := m.String(0x300); got != "" {
		t.Errorf("String() without NUL = %q, want empty", got)
	}
	if got := m.String(0x400); got != "" {
		t.Errorf("String() of unmapped memory = %q, want empty", got)
	}
}

func BenchmarkSlicePad(b *testing.B) {
	m := New()
	for i := 0; i < 1024; i++ {
		_ = m.Set(i*32, bytes.Repeat([]byte{byte(i)}, 16))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.SlicePad(0x2000, 4096, 0xFF)
	}
}
