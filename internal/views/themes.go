package views

import (
	"math"
	"sync"

	"github.com/jwulff/vibeo/internal/seekbus"
	"github.com/jwulff/vibeo/internal/timeline"
)

// Preview is what the timeline shows under the pointer.
type Preview struct {
	Column  int
	Seconds float64
	Label   string
	Segment *timeline.Segment
}

// Cell describes one column of a rendered timeline bar.
type Cell struct {
	Segment  *timeline.Segment
	Boundary bool
	Playhead bool
	Hovered  bool
}

// ThemeTimeline maps a fixed-width bar onto the session duration, tracks
// the active and selected themes, and turns clicks into seeks.
type ThemeTimeline struct {
	bus *seekbus.Bus

	mu       sync.Mutex
	index    *timeline.Index
	duration float64
	position float64
	active   *timeline.Segment
	selected seekbus.ThemeSelected
	hover    int
	unsubs   []func()
}

// NewThemeTimeline subscribes to snapshots and theme broadcasts on bus.
func NewThemeTimeline(bus *seekbus.Bus, idx *timeline.Index) *ThemeTimeline {
	tl := &ThemeTimeline{bus: bus, index: idx, hover: -1}
	tl.unsubs = append(tl.unsubs,
		bus.OnSnapshot(func(s timeline.Snapshot) {
			tl.mu.Lock()
			defer tl.mu.Unlock()
			tl.position = s.Position
			tl.active = s.Segment
		}),
		bus.OnThemeSelected(func(ts seekbus.ThemeSelected) {
			tl.mu.Lock()
			defer tl.mu.Unlock()
			tl.selected = ts
		}),
	)
	return tl
}

// SetIndex replaces the segment index.
func (tl *ThemeTimeline) SetIndex(idx *timeline.Index) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.index = idx
	tl.active = nil
}

// SetDuration sets the length the bar spans.
func (tl *ThemeTimeline) SetDuration(d float64) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.duration = d
}

// span returns the effective bar length: the media duration when known,
// otherwise the end of the last segment. Caller holds mu.
func (tl *ThemeTimeline) span() float64 {
	if tl.duration > 0 {
		return tl.duration
	}
	end := 0.0
	for _, s := range tl.index.Segments() {
		end = math.Max(end, s.End)
	}
	return end
}

// ColumnSeconds maps column col of a width-column bar to the time at the
// column's centre.
func (tl *ThemeTimeline) ColumnSeconds(col, width int) float64 {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.columnSeconds(col, width)
}

func (tl *ThemeTimeline) columnSeconds(col, width int) float64 {
	if width <= 0 {
		return 0
	}
	col = max(min(col, width-1), 0)
	return (float64(col) + 0.5) / float64(width) * tl.span()
}

// Column maps seconds to the column that contains it.
func (tl *ThemeTimeline) Column(seconds float64, width int) int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.column(seconds, width)
}

func (tl *ThemeTimeline) column(seconds float64, width int) int {
	span := tl.span()
	if width <= 0 || span <= 0 {
		return 0
	}
	c := int(seconds / span * float64(width))
	return max(min(c, width-1), 0)
}

// Hover records the pointer column and returns the preview for it.
func (tl *ThemeTimeline) Hover(col, width int) Preview {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.hover = col
	secs := tl.columnSeconds(col, width)
	p := Preview{Column: col, Seconds: secs, Label: timeline.FormatTime(secs)}
	if seg := tl.index.ActiveSegmentAt(secs); seg != nil {
		p.Segment = seg
		p.Label += " " + seg.Name
	}
	return p
}

// ClearHover hides the preview.
func (tl *ThemeTimeline) ClearHover() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.hover = -1
}

// Hovered returns the hovered column, or -1.
func (tl *ThemeTimeline) Hovered() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.hover
}

// Click seeks to the time under column col and announces the theme there,
// or the null theme between themes.
func (tl *ThemeTimeline) Click(col, width int) float64 {
	tl.mu.Lock()
	secs := tl.columnSeconds(col, width)
	seg := tl.index.ActiveSegmentAt(secs)
	tl.mu.Unlock()

	tl.bus.PublishSeek(secs, SourceTimeline)
	if seg != nil {
		tl.announce(seg.Name, true)
	} else {
		tl.announce("", false)
	}
	return secs
}

// announce publishes the theme unless it is already the selected one. The
// seek handler runs before PublishSeek returns, so a theme change it
// broadcast is seen here and not repeated.
func (tl *ThemeTimeline) announce(name string, ok bool) {
	if !ok {
		name = ""
	}
	tl.mu.Lock()
	same := tl.selected == seekbus.ThemeSelected{Name: name, Valid: ok}
	tl.mu.Unlock()
	if !same {
		tl.bus.PublishThemeSelected(name, ok)
	}
}

// SelectTheme seeks to the start of the theme at row i of Segments.
func (tl *ThemeTimeline) SelectTheme(i int) bool {
	tl.mu.Lock()
	segs := tl.index.Segments()
	if i < 0 || i >= len(segs) {
		tl.mu.Unlock()
		return false
	}
	seg := segs[i]
	tl.mu.Unlock()

	tl.bus.PublishSeek(seg.Start, SourceTimeline)
	tl.announce(seg.Name, true)
	return true
}

// Cells lays the index out over width columns.
func (tl *ThemeTimeline) Cells(width int) []Cell {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if width <= 0 {
		return nil
	}
	cells := make([]Cell, width)
	for i := range cells {
		cells[i].Segment = tl.index.ActiveSegmentAt(tl.columnSeconds(i, width))
		cells[i].Hovered = i == tl.hover
	}
	span := tl.span()
	for _, b := range tl.index.Boundaries(span) {
		cells[tl.column(b, width)].Boundary = true
	}
	if span > 0 {
		cells[tl.column(tl.position, width)].Playhead = true
	}
	return cells
}

// Segments returns the indexed themes.
func (tl *ThemeTimeline) Segments() []timeline.Segment {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.index.Segments()
}

// Active returns the segment at the playback position, or nil.
func (tl *ThemeTimeline) Active() *timeline.Segment {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.active
}

// Selected returns the last theme broadcast.
func (tl *ThemeTimeline) Selected() seekbus.ThemeSelected {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.selected
}

// Position returns the last snapshot position.
func (tl *ThemeTimeline) Position() float64 {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.position
}

// Close unsubscribes from the bus.
func (tl *ThemeTimeline) Close() {
	for _, u := range tl.unsubs {
		u()
	}
}
