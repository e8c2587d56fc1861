package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jwulff/vibeo/internal/notes"
	"github.com/jwulff/vibeo/internal/timeline"
)

// createTestStore opens an in-memory store and closes it with the test.
func createTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

const (
	transcriptJSON = `[
		{"id": 1, "session_id": "sess-1", "speaker": "Interviewer", "text": "How was checkout?", "start_time": 0, "end_time": 4.5},
		{"id": 2, "session_id": "sess-1", "speaker_label": "P1", "text": "Slow.", "start_time": "4.5", "end_time": 9},
		{"id": 3, "session_id": "sess-1", "text": "no times"}
	]`
	themesJSON = `[
		{"theme": "Checkout", "start_time": 0, "end_time": 60},
		{"theme": "Pricing", "start_time": 60, "end_time": 125.5},
		{"theme": "Broken", "start_time": 90}
	]`
	insightsJSON = `[
		{"theme": "Checkout", "detailed_analysis": ["Users stall at payment #id=2#.", "Second paragraph."], "insights": [{"summary": "Payment friction"}]},
		{"theme": "Pricing", "detailed_analysis": "Confusing tiers #id=7#"},
		{"theme": "", "detailed_analysis": "dropped"}
	]`
	citationsJSON = `{"2": 4.5, "7": ["61.25", "x"], "9": "bad"}`
)

func importFixture(t *testing.T, store *Store) *Bundle {
	t.Helper()
	b, err := ParseBundle(Session{Title: "Checkout study", VideoURL: "https://example.com/v.mp4"}, Files{
		Transcript: []byte(transcriptJSON),
		Themes:     []byte(themesJSON),
		Insights:   []byte(insightsJSON),
		Citations:  []byte(citationsJSON),
	})
	if err != nil {
		t.Fatalf("ParseBundle: %v", err)
	}
	if err := store.Import(context.Background(), b); err != nil {
		t.Fatalf("Import: %v", err)
	}
	return b
}

func TestParseBundle(t *testing.T) {
	b, err := ParseBundle(Session{}, Files{
		Transcript: []byte(transcriptJSON),
		Themes:     []byte(themesJSON),
	})
	if err != nil {
		t.Fatalf("ParseBundle: %v", err)
	}
	if b.Session.ID != "sess-1" {
		t.Errorf("session ID = %q, want %q", b.Session.ID, "sess-1")
	}
	if b.Session.Duration != 125.5 {
		t.Errorf("duration = %v, want 125.5", b.Session.Duration)
	}
	if len(b.Transcript) != 3 || len(b.Themes) != 3 {
		t.Errorf("got %d transcript / %d themes, want 3 / 3", len(b.Transcript), len(b.Themes))
	}
}

func TestParseBundleErrors(t *testing.T) {
	if _, err := ParseBundle(Session{}, Files{Themes: []byte(themesJSON)}); err == nil {
		t.Error("expected error without a session id")
	}
	_, err := ParseBundle(Session{ID: "s"}, Files{Themes: []byte("{"), Citations: []byte("[1]")})
	if err == nil {
		t.Fatal("expected error for invalid documents")
	}
	if !errors.Is(err, timeline.ErrInvalidJSON) {
		t.Errorf("err = %v, want ErrInvalidJSON in chain", err)
	}
}

func TestParseInsights(t *testing.T) {
	ins, err := ParseInsights([]byte(insightsJSON))
	if err != nil {
		t.Fatalf("ParseInsights: %v", err)
	}
	if len(ins) != 2 {
		t.Fatalf("got %d insights, want 2", len(ins))
	}
	if ins[0].Analysis != "Users stall at payment #id=2#.\n\nSecond paragraph." {
		t.Errorf("analysis = %q", ins[0].Analysis)
	}
	if ins[0].Summary != "Payment friction" {
		t.Errorf("summary = %q, want %q", ins[0].Summary, "Payment friction")
	}
}

func TestImportAndRead(t *testing.T) {
	store := createTestStore(t)
	importFixture(t, store)

	sess, err := store.Session("sess-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if sess.Title != "Checkout study" || sess.VideoURL != "https://example.com/v.mp4" {
		t.Errorf("session = %+v", sess)
	}
	if sess.Duration != 125.5 {
		t.Errorf("duration = %v, want 125.5", sess.Duration)
	}

	themes, err := store.Themes("sess-1")
	if err != nil {
		t.Fatalf("Themes: %v", err)
	}
	if len(themes) != 3 {
		t.Fatalf("got %d themes, want 3", len(themes))
	}
	if themes[1].Name != "Pricing" || *themes[1].Start != 60 {
		t.Errorf("themes[1] = %+v", themes[1])
	}
	if themes[2].End != nil {
		t.Errorf("themes[2].End = %v, want nil", *themes[2].End)
	}

	transcript, err := store.Transcript("sess-1")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if len(transcript) != 3 {
		t.Fatalf("got %d transcript records, want 3", len(transcript))
	}
	if transcript[1].Speaker != "P1" || *transcript[1].Start != 4.5 {
		t.Errorf("transcript[1] = %+v", transcript[1])
	}

	idx, err := store.Index("sess-1")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("index segments = %d, want 2 (malformed dropped)", idx.Len())
	}
	if idx.TranscriptLen() != 2 {
		t.Errorf("index entries = %d, want 2", idx.TranscriptLen())
	}

	table, err := store.Citations("sess-1")
	if err != nil {
		t.Fatalf("Citations: %v", err)
	}
	if len(table) != 2 || table["7"] != 61.25 {
		t.Errorf("citations = %v", table)
	}

	ins, err := store.Insights("sess-1")
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if len(ins) != 2 || ins[1].Theme != "Pricing" {
		t.Errorf("insights = %+v", ins)
	}
}

func TestReimportReplacesAndKeepsNotes(t *testing.T) {
	store := createTestStore(t)
	importFixture(t, store)
	ctx := context.Background()

	if _, err := store.Add(ctx, notes.Note{SessionID: "sess-1", Text: "keep me"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	b, _ := ParseBundle(Session{ID: "sess-1", Title: "Renamed"}, Files{Themes: []byte(`[{"theme": "Only", "start_time": 0, "end_time": 10}]`)})
	if err := store.Import(ctx, b); err != nil {
		t.Fatalf("Import: %v", err)
	}

	c, err := store.Counts("sess-1")
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	want := Counts{Themes: 1, Notes: 1}
	if c != want {
		t.Errorf("counts = %+v, want %+v", c, want)
	}
	sess, _ := store.Session("sess-1")
	if sess.Title != "Renamed" {
		t.Errorf("title = %q, want %q", sess.Title, "Renamed")
	}
}

func TestSessionNotFound(t *testing.T) {
	store := createTestStore(t)

	if _, err := store.Session("nonexistent"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}

	sess, err := store.LatestSession()
	if err != nil {
		t.Fatalf("LatestSession: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil, got session %q", sess.ID)
	}
}

func TestLatestSession(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, s := range []Session{
		{ID: "sess-old", CreatedAt: now.Add(-time.Hour)},
		{ID: "sess-new", CreatedAt: now},
	} {
		if err := store.Import(ctx, &Bundle{Session: s}); err != nil {
			t.Fatalf("Import %s: %v", s.ID, err)
		}
	}

	sess, err := store.LatestSession()
	if err != nil {
		t.Fatalf("LatestSession: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.ID != "sess-new" {
		t.Errorf("session ID = %q, want %q", sess.ID, "sess-new")
	}

	all, err := store.Sessions()
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(all) != 2 || all[0].ID != "sess-new" {
		t.Errorf("sessions = %+v, want newest first", all)
	}
}

func TestNotes(t *testing.T) {
	store := createTestStore(t)
	importFixture(t, store)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	store.now = func() time.Time { return base }

	untimed, err := store.Add(ctx, notes.Note{SessionID: "sess-1", Text: "general"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := store.Add(ctx, notes.Note{
		SessionID: "sess-1",
		Text:      "slow payment",
		Tags:      []string{"ux", "checkout"},
		Timestamp: timeline.Seconds(42),
		AI:        true,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	store.Add(ctx, notes.Note{SessionID: "other", Text: "elsewhere"})

	list, err := store.List(ctx, "sess-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d notes, want 2", len(list))
	}
	if list[0].Text != "slow payment" {
		t.Errorf("list[0] = %q, want timed note first", list[0].Text)
	}
	if !list[0].AI || *list[0].Timestamp != 42 || len(list[0].Tags) != 2 || list[0].Tags[1] != "checkout" {
		t.Errorf("list[0] = %+v", list[0])
	}
	if !list[1].Created.Equal(base) {
		t.Errorf("created = %v, want %v", list[1].Created, base)
	}

	if err := store.Delete(ctx, "sess-1", untimed.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "sess-1", untimed.ID); !errors.Is(err, notes.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "sess-1", "abc"); !errors.Is(err, notes.ErrNotFound) {
		t.Errorf("Delete(bad id) = %v, want ErrNotFound", err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vibeo.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	importFixture(t, store)
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	sessions, err := reopened.Sessions()
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("got %d sessions after reopen, want 1", len(sessions))
	}
}
