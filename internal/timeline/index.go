package timeline

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
)

// Epsilon is the tolerance used by NextSegmentAfter so that a segment whose
// start equals the query position is not returned as "next".
const Epsilon = 1e-5

// Index is an immutable, start-sorted view over a session's segments and
// transcript entries. It is safe for concurrent readers.
type Index struct {
	segments []Segment
	segEnds  []float64 // prefix maximum of segment ends

	entries   []TranscriptEntry
	entryEnds []float64 // prefix maximum of entry ends

	boundsOnce sync.Once
	bounds     []float64
}

// Build constructs an Index from raw records. Inputs are not modified.
// Records with a missing or non-finite start/end, a negative start, or an
// end that does not exceed the start are dropped.
func Build(themes []RawTheme, transcript []RawTranscript) *Index {
	idx := &Index{}

	counts := make(map[string]int)
	for _, r := range themes {
		start, end, ok := validSpan(r.Start, r.End)
		if !ok {
			continue
		}
		counts[r.Name]++
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("%s#%d", r.Name, counts[r.Name])
		}
		color := r.Color
		if color == "" {
			color = ColorForTheme(r.Name)
		}
		idx.segments = append(idx.segments, Segment{
			ID:    id,
			Name:  r.Name,
			Start: start,
			End:   end,
			Color: color,
		})
	}
	slices.SortStableFunc(idx.segments, func(a, b Segment) int {
		return cmp.Compare(a.Start, b.Start)
	})
	idx.segEnds = prefixMax(len(idx.segments), func(i int) float64 { return idx.segments[i].End })

	for i, r := range transcript {
		start, end, ok := validSpan(r.Start, r.End)
		if !ok {
			continue
		}
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("t%d", i+1)
		}
		idx.entries = append(idx.entries, TranscriptEntry{
			ID:      id,
			Speaker: r.Speaker,
			Text:    r.Text,
			Start:   start,
			End:     end,
		})
	}
	slices.SortStableFunc(idx.entries, func(a, b TranscriptEntry) int {
		return cmp.Compare(a.Start, b.Start)
	})
	idx.entryEnds = prefixMax(len(idx.entries), func(i int) float64 { return idx.entries[i].End })

	return idx
}

func validSpan(start, end *float64) (float64, float64, bool) {
	if start == nil || end == nil {
		return 0, 0, false
	}
	s, e := *start, *end
	if math.IsNaN(s) || math.IsNaN(e) || math.IsInf(s, 0) || math.IsInf(e, 0) {
		return 0, 0, false
	}
	if s < 0 || e <= s {
		return 0, 0, false
	}
	return s, e, true
}

func prefixMax(n int, end func(int) float64) []float64 {
	out := make([]float64, n)
	m := math.Inf(-1)
	for i := range n {
		m = max(m, end(i))
		out[i] = m
	}
	return out
}

// Len returns the number of segments in the index.
func (x *Index) Len() int { return len(x.segments) }

// TranscriptLen returns the number of transcript entries in the index.
func (x *Index) TranscriptLen() int { return len(x.entries) }

// Segments returns the sorted segments. The slice must not be modified.
func (x *Index) Segments() []Segment { return x.segments }

// Entries returns the sorted transcript entries. The slice must not be modified.
func (x *Index) Entries() []TranscriptEntry { return x.entries }

// ActiveSegmentAt returns the earliest-starting segment covering t, or nil.
// A segment that ends exactly at t yields to one that continues past t.
func (x *Index) ActiveSegmentAt(t float64) *Segment {
	i := activeAt(t, len(x.segments), func(i int) float64 { return x.segments[i].Start }, x.segEnds)
	if i < 0 {
		return nil
	}
	return &x.segments[i]
}

// ActiveTranscriptEntryAt returns the transcript entry covering t, resolved
// with the same rule as ActiveSegmentAt.
func (x *Index) ActiveTranscriptEntryAt(t float64) *TranscriptEntry {
	i := x.TranscriptIndexAt(t)
	if i < 0 {
		return nil
	}
	return &x.entries[i]
}

// TranscriptIndexAt returns the position of the active transcript entry in
// Entries, or -1.
func (x *Index) TranscriptIndexAt(t float64) int {
	return activeAt(t, len(x.entries), func(i int) float64 { return x.entries[i].Start }, x.entryEnds)
}

// activeAt finds the first item (in start order) with start <= t <= end,
// preferring items with t < end. ends is the prefix maximum of item ends,
// so the first index whose prefix maximum reaches t is itself the earliest
// item reaching t.
func activeAt(t float64, n int, start func(int) float64, ends []float64) int {
	if n == 0 || math.IsNaN(t) {
		return -1
	}
	// candidates are [0, hi): every item starting at or before t
	hi := sort.Search(n, func(i int) bool { return start(i) > t })
	if hi == 0 {
		return -1
	}
	if i := sort.Search(hi, func(i int) bool { return ends[i] > t }); i < hi {
		return i
	}
	if i := sort.Search(hi, func(i int) bool { return ends[i] >= t }); i < hi {
		return i
	}
	return -1
}

// NextSegmentAfter returns the segment with the smallest start strictly
// greater than t+Epsilon, or nil when no such segment exists.
func (x *Index) NextSegmentAfter(t float64) *Segment {
	if math.IsNaN(t) {
		t = 0
	}
	limit := t + Epsilon
	i := sort.Search(len(x.segments), func(i int) bool { return x.segments[i].Start > limit })
	if i == len(x.segments) {
		return nil
	}
	return &x.segments[i]
}

// SegmentByName returns the earliest segment with the given name, or nil.
func (x *Index) SegmentByName(name string) *Segment {
	for i := range x.segments {
		if x.segments[i].Name == name {
			return &x.segments[i]
		}
	}
	return nil
}

// Snapshot resolves the active segment and transcript entry at t.
func (x *Index) Snapshot(t float64) Snapshot {
	return Snapshot{
		Position: t,
		Segment:  x.ActiveSegmentAt(t),
		Entry:    x.ActiveTranscriptEntryAt(t),
	}
}

// Boundaries returns the sorted unique segment start and end times strictly
// inside (0, duration). A non-positive duration imposes no upper bound.
func (x *Index) Boundaries(duration float64) []float64 {
	x.boundsOnce.Do(func() {
		all := make([]float64, 0, 2*len(x.segments))
		for _, s := range x.segments {
			all = append(all, s.Start, s.End)
		}
		slices.Sort(all)
		x.bounds = slices.Compact(all)
	})

	lo := sort.Search(len(x.bounds), func(i int) bool { return x.bounds[i] > 0 })
	hi := len(x.bounds)
	if duration > 0 {
		hi = sort.Search(len(x.bounds), func(i int) bool { return x.bounds[i] >= duration })
	}
	if lo >= hi {
		return nil
	}
	return slices.Clone(x.bounds[lo:hi])
}
