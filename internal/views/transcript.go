package views

import (
	"sync"

	"github.com/jwulff/vibeo/internal/seekbus"
	"github.com/jwulff/vibeo/internal/timeline"
)

// TranscriptFollower keeps a transcript list scrolled to the active entry.
// In follow mode it re-centres only when the active entry changes, so ticks
// inside one utterance never move the viewport. Any manual scroll or
// selection leaves follow mode until Resume.
type TranscriptFollower struct {
	bus *seekbus.Bus

	mu       sync.Mutex
	entries  []timeline.TranscriptEntry
	byID     map[string]int
	active   int
	selected int
	offset   int
	height   int
	follow   bool
	scrolls  int
	unsub    func()
}

// NewTranscriptFollower subscribes to bus snapshots. height is the number
// of visible rows.
func NewTranscriptFollower(bus *seekbus.Bus, entries []timeline.TranscriptEntry, height int) *TranscriptFollower {
	f := &TranscriptFollower{bus: bus, active: -1, height: max(height, 1), follow: true}
	f.setEntries(entries)
	f.unsub = bus.OnSnapshot(f.onSnapshot)
	return f
}

func (f *TranscriptFollower) setEntries(entries []timeline.TranscriptEntry) {
	f.entries = entries
	f.byID = make(map[string]int, len(entries))
	for i, e := range entries {
		f.byID[e.ID] = i
	}
	f.active = -1
	f.selected = min(f.selected, max(len(entries)-1, 0))
	f.offset = 0
}

// SetEntries replaces the transcript after an index rebuild.
func (f *TranscriptFollower) SetEntries(entries []timeline.TranscriptEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setEntries(entries)
}

func (f *TranscriptFollower) onSnapshot(s timeline.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := -1
	if s.Entry != nil {
		if i, ok := f.byID[s.Entry.ID]; ok {
			idx = i
		}
	}
	if idx == f.active {
		return
	}
	f.active = idx
	if f.follow && idx >= 0 {
		f.selected = idx
		f.center(idx)
	}
}

// center scrolls so that row i sits in the middle of the viewport.
func (f *TranscriptFollower) center(i int) {
	off := f.clampOffset(i - f.height/2)
	if off != f.offset {
		f.offset = off
		f.scrolls++
	}
}

func (f *TranscriptFollower) clampOffset(off int) int {
	return max(min(off, len(f.entries)-f.height), 0)
}

// SetHeight changes the number of visible rows.
func (f *TranscriptFollower) SetHeight(h int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.height = max(h, 1)
	f.offset = f.clampOffset(f.offset)
}

// ScrollBy moves the viewport by n rows and leaves follow mode.
func (f *TranscriptFollower) ScrollBy(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follow = false
	f.offset = f.clampOffset(f.offset + n)
}

// MoveSelection moves the cursor by delta rows, keeping it visible, and
// leaves follow mode.
func (f *TranscriptFollower) MoveSelection(delta int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return
	}
	f.follow = false
	f.selected = max(min(f.selected+delta, len(f.entries)-1), 0)
	if f.selected < f.offset {
		f.offset = f.selected
	} else if f.selected >= f.offset+f.height {
		f.offset = f.clampOffset(f.selected - f.height + 1)
	}
}

// Resume re-enters follow mode and jumps to the active entry.
func (f *TranscriptFollower) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follow = true
	if f.active >= 0 {
		f.selected = f.active
		f.center(f.active)
	}
}

// SeekSelected publishes a seek to the selected entry.
func (f *TranscriptFollower) SeekSelected() bool {
	f.mu.Lock()
	i := f.selected
	f.mu.Unlock()
	return f.SeekEntry(i)
}

// SeekEntry publishes a seek to the start of entry i.
func (f *TranscriptFollower) SeekEntry(i int) bool {
	f.mu.Lock()
	if i < 0 || i >= len(f.entries) {
		f.mu.Unlock()
		return false
	}
	start := f.entries[i].Start
	f.mu.Unlock()
	f.bus.PublishSeek(start, SourceTranscript)
	return true
}

// Entries returns the transcript.
func (f *TranscriptFollower) Entries() []timeline.TranscriptEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries
}

// Active returns the index of the active entry, or -1.
func (f *TranscriptFollower) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// ActiveEntry returns the active entry, or nil.
func (f *TranscriptFollower) ActiveEntry() *timeline.TranscriptEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active < 0 {
		return nil
	}
	e := f.entries[f.active]
	return &e
}

// Selected returns the cursor row.
func (f *TranscriptFollower) Selected() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selected
}

// Offset returns the first visible row.
func (f *TranscriptFollower) Offset() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// Following reports whether follow mode is on.
func (f *TranscriptFollower) Following() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.follow
}

// Scrolls counts automatic re-centres.
func (f *TranscriptFollower) Scrolls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrolls
}

// Close unsubscribes from the bus.
func (f *TranscriptFollower) Close() { f.unsub() }
