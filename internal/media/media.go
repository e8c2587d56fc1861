// Package media defines the playback primitive the review tool drives: a
// Driver opens a playable resource into an Element, which accepts control
// commands and reports native events (metadata, time ticks, play/pause,
// failures) one at a time through Next.
//
// Concrete drivers live in sub-packages or sibling packages: an mpv IPC
// driver, a simulated clock for headless use, and a programmable mock.
package media

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Element.Next after the element has been closed.
var ErrClosed = errors.New("media: element closed")

// Ref identifies the resource to attach.
type Ref struct {
	SessionID string
	URL       string
}

// EventKind enumerates native media events.
type EventKind int

const (
	// LoadedMetadata reports the resource duration in Value.
	LoadedMetadata EventKind = iota + 1
	// TimeUpdate reports the playback position in Value.
	TimeUpdate
	// Played reports that playback started.
	Played
	// Paused reports that playback stopped.
	Paused
	// Failed reports a decode or network failure in Message.
	Failed
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case LoadedMetadata:
		return "loaded-metadata"
	case TimeUpdate:
		return "time-update"
	case Played:
		return "play"
	case Paused:
		return "pause"
	case Failed:
		return "error"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one native callback from the underlying player.
type Event struct {
	Kind    EventKind
	Value   float64
	Message string
}

// Driver opens resources.
type Driver interface {
	// Open binds to ref and starts loading it in the background. An error
	// means the resource could not be opened at all.
	Open(ref Ref) (Element, error)
}

// Element is one opened resource. Control methods are best-effort commands;
// their errors may be ignored by callers.
type Element interface {
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(v float64) error
	SetMuted(muted bool) error

	// Next blocks until the next native event. It returns ErrClosed (or a
	// transport error) once the element can produce no more events.
	Next() (Event, error)

	Close() error
}

// MediaAttachError reports that a resource could not be loaded.
type MediaAttachError struct {
	URL string
	Err error
}

func (e *MediaAttachError) Error() string {
	return fmt.Sprintf("media: attach %q: %v", e.URL, e.Err)
}

func (e *MediaAttachError) Unwrap() error { return e.Err }

// PlaybackError reports a failure after the resource started loading.
type PlaybackError struct {
	Message string
}

func (e *PlaybackError) Error() string {
	return "media: playback failed: " + e.Message
}
