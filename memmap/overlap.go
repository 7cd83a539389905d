package memmap

import (
	"sort"
)

// Source names one of the maps handed to Overlap.
type Source struct {
	ID  string
	Map *Map
}

// Part is the slice of one source covering an overlap region.
type Part struct {
	ID   string
	Data []byte
}

// Overlap describes a region where at least one source has data. Parts are
// listed in the same order as the sources.
type Overlap struct {
	Addr  int
	Parts []Part
}

// Overlaps cuts the address space at every block boundary of every source and
// returns, for each resulting region holding data, the sources covering it.
// Part data aliases the sources.
func Overlaps(sources []Source) []Overlap {
	cutSet := make(map[int]struct{})
	for _, s := range sources {
		for _, a := range s.Map.addrs {
			cutSet[a] = struct{}{}
			cutSet[a+len(s.Map.blocks[a])] = struct{}{}
		}
	}
	cuts := make([]int, 0, len(cutSet))
	for c := range cutSet {
		cuts = append(cuts, c)
	}
	sort.Ints(cuts)

	var out []Overlap
	for i := 1; i < len(cuts); i++ {
		prev, cut := cuts[i-1], cuts[i]
		var parts []Part
		for _, s := range sources {
			m := s.Map
			// last block starting at or before prev
			k := sort.SearchInts(m.addrs, prev+1) - 1
			if k < 0 {
				continue
			}
			a := m.addrs[k]
			b := m.blocks[a]
			from := prev - a
			if from >= len(b) {
				continue
			}
			to := min(cut-a, len(b))
			parts = append(parts, Part{ID: s.ID, Data: b[from:to:to]})
		}
		if len(parts) > 0 {
			out = append(out, Overlap{Addr: prev, Parts: parts})
		}
	}
	return out
}

// Flatten resolves overlaps by keeping the data of the last part of each
// region.
func Flatten(overlaps []Overlap) *Map {
	m := New()
	for _, o := range overlaps {
		m.put(o.Addr, o.Parts[len(o.Parts)-1].Data)
	}
	return m
}

// FromPadded builds a map from a flat image, dropping every run of at least
// minPadLength pad bytes. Blocks alias data.
func FromPadded(data []byte, pad byte, minPadLength int) *Map {
	m := New()
	if minPadLength <= 0 {
		minPadLength = 1
	}
	start, run := 0, 0
	inData := false
	for i, b := range data {
		if b != pad {
			if !inData {
				start = i
				inData = true
			}
			run = 0
			continue
		}
		run++
		if inData && run >= minPadLength {
			stop := i - run + 1
			m.put(start, data[start:stop:stop])
			inData = false
		}
	}
	if inData {
		m.put(start, data[start:len(data):len(data)])
	}
	return m
}
