package app

import (
	"github.com/jwulff/vibeo/internal/media"
	"github.com/jwulff/vibeo/internal/notes"
	"github.com/jwulff/vibeo/internal/timesource"
)

// AttachedMsg reports the outcome of loading the session media.
type AttachedMsg struct {
	Gen timesource.Generation
	Err error
}

// MediaEventMsg wraps a native player event read under Gen.
type MediaEventMsg struct {
	Gen   timesource.Generation
	Event media.Event
}

// MediaEventErrorMsg is sent when the player event stream of Gen ends.
type MediaEventErrorMsg struct {
	Gen timesource.Generation
	Err error
}

// NotesLoadedMsg is sent after the note list was refreshed from the store.
type NotesLoadedMsg struct {
	Err error
}

// NoteSavedMsg carries the result of adding a note.
type NoteSavedMsg struct {
	Note notes.Note
	Err  error
}

// NoteDeletedMsg carries the result of deleting a note.
type NoteDeletedMsg struct {
	Err error
}

// ClipboardMsg carries the result of a copy.
type ClipboardMsg struct {
	Text string
	Err  error
}

// ClearFlashMsg clears the status line after a timeout.
type ClearFlashMsg struct{}
