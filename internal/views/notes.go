package views

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jwulff/vibeo/internal/citation"
	"github.com/jwulff/vibeo/internal/notes"
	"github.com/jwulff/vibeo/internal/seekbus"
	"github.com/jwulff/vibeo/internal/timeline"
)

// NotesBinder backs the notes and insights panels: it lists and edits a
// session's notes and turns note timestamps and insight citations into
// seeks.
type NotesBinder struct {
	bus     *seekbus.Bus
	store   notes.Store
	session string
	table   citation.Table

	mu       sync.Mutex
	notes    []notes.Note
	position float64
	unsub    func()
}

// NewNotesBinder tracks the playback position on bus so new notes are
// stamped with it.
func NewNotesBinder(bus *seekbus.Bus, store notes.Store, sessionID string, table citation.Table) *NotesBinder {
	b := &NotesBinder{bus: bus, store: store, session: sessionID, table: table}
	b.unsub = bus.OnSnapshot(func(s timeline.Snapshot) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.position = s.Position
	})
	return b
}

// Load refreshes the note list from the store.
func (b *NotesBinder) Load(ctx context.Context) error {
	ns, err := b.store.List(ctx, b.session)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	b.mu.Lock()
	b.notes = ns
	b.mu.Unlock()
	return nil
}

// Notes returns the loaded notes.
func (b *NotesBinder) Notes() []notes.Note {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notes
}

// Add stores text as a note at the current position. Trailing "#tag"
// words become tags.
func (b *NotesBinder) Add(ctx context.Context, text string) (notes.Note, error) {
	body, tags := notes.SplitTags(text)
	if strings.TrimSpace(body) == "" {
		return notes.Note{}, fmt.Errorf("empty note")
	}
	b.mu.Lock()
	pos := b.position
	b.mu.Unlock()

	n, err := b.store.Add(ctx, notes.Note{
		SessionID: b.session,
		Text:      body,
		Tags:      tags,
		Timestamp: &pos,
	})
	if err != nil {
		return notes.Note{}, err
	}
	return n, b.Load(ctx)
}

// Delete removes note i.
func (b *NotesBinder) Delete(ctx context.Context, i int) error {
	b.mu.Lock()
	if i < 0 || i >= len(b.notes) {
		b.mu.Unlock()
		return notes.ErrNotFound
	}
	id := b.notes[i].ID
	b.mu.Unlock()

	if err := b.store.Delete(ctx, b.session, id); err != nil {
		return err
	}
	return b.Load(ctx)
}

// SeekNote seeks to note i's timestamp. Untimed notes do nothing.
func (b *NotesBinder) SeekNote(i int) bool {
	b.mu.Lock()
	if i < 0 || i >= len(b.notes) || b.notes[i].Timestamp == nil {
		b.mu.Unlock()
		return false
	}
	at := *b.notes[i].Timestamp
	b.mu.Unlock()
	b.bus.PublishSeek(at, SourceNotes)
	return true
}

// SeekCitation seeks to a citation id. Unknown ids seek to 0.
func (b *NotesBinder) SeekCitation(id string) float64 {
	return b.table.Seek(b.bus, id)
}

// RenderInsight replaces citation tokens in text with time labels and
// returns the links in order, for selection by index.
func (b *NotesBinder) RenderInsight(text string) (string, []citation.Link) {
	return b.table.Render(text)
}

// Close unsubscribes from the bus.
func (b *NotesBinder) Close() { b.unsub() }
