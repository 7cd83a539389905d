package memmap

import (
	"bytes"
	"testing"
)

func TestOverlaps(t *testing.T) {
	a := mustMap(t, Block{Addr: 0, Data: []byte{1, 1, 1, 1}})
	b := mustMap(t, Block{Addr: 2, Data: []byte{2, 2, 2, 2}})

	got := Overlaps([]Source{{ID: "a", Map: a}, {ID: "b", Map: b}})

	want := []Overlap{
		{Addr: 0, Parts: []Part{{ID: "a", Data: []byte{1, 1}}}},
		{Addr: 2, Parts: []Part{{ID: "a", Data: []byte{1, 1}}, {ID: "b", Data: []byte{2, 2}}}},
		{Addr: 4, Parts: []Part{{ID: "b", Data: []byte{2, 2}}}},
	}
	if len(got) != len(want) {
		t.Fatalf("Overlaps() returned %d regions, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Addr != want[i].Addr {
			t.Errorf("region %d addr = %d, want %d", i, got[i].Addr, want[i].Addr)
		}
		if len(got[i].Parts) != len(want[i].Parts) {
			t.Fatalf("region %d has %d parts, want %d", i, len(got[i].Parts), len(want[i].Parts))
		}
		for j := range want[i].Parts {
			if got[i].Parts[j].ID != want[i].Parts[j].ID || !bytes.Equal(got[i].Parts[j].Data, want[i].Parts[j].Data) {
				t.Errorf("region %d part %d = %+v, want %+v", i, j, got[i].Parts[j], want[i].Parts[j])
			}
		}
	}

	flat := Flatten(got)
	if mem := flat.SlicePad(0, 6, 0); !bytes.Equal(mem, []byte{1, 1, 2, 2, 2, 2}) {
		t.Errorf("Flatten() memory = % X", mem)
	}
}

func TestOverlapsSkipsGaps(t *testing.T) {
	a := mustMap(t, Block{Addr: 0, Data: []byte{1}}, Block{Addr: 10, Data: []byte{2}})
	got := Overlaps([]Source{{ID: "a", Map: a}})
	if len(got) != 2 || got[0].Addr != 0 || got[1].Addr != 10 {
		t.Errorf("Overlaps() = %+v, want regions at 0 and 10", got)
	}
}

func TestFromPadded(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		minPad int
		want   []Block
	}{
		{
			name:   "leading and trailing pads",
			data:   []byte{0xFF, 0xFF, 0xFF, 1, 2, 0xFF, 0xFF, 0xFF},
			minPad: 3,
			want:   []Block{{Addr: 3, Data: []byte{1, 2}}},
		},
		{
			name:   "short pad run kept inside block",
			data:   []byte{1, 0xFF, 2, 0xFF, 0xFF, 0xFF, 3},
			minPad: 3,
			want: []Block{
				{Addr: 0, Data: []byte{1, 0xFF, 2}},
				{Addr: 6, Data: []byte{3}},
			},
		},
		{
			name:   "all padding",
			data:   []byte{0xFF, 0xFF},
			minPad: 1,
			want:   nil,
		},
		{
			name:   "short trailing pad kept",
			data:   []byte{1, 0xFF},
			minPad: 2,
			want:   []Block{{Addr: 0, Data: []byte{1, 0xFF}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromPadded(tt.data, 0xFF, tt.minPad)
			if !got.Equal(mustMap(t, tt.want...)) {
				t.Errorf("FromPadded() = %v, want %v", got.Blocks(), tt.want)
			}
		})
	}
}
