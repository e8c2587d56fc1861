// Package views holds the state behind each review panel. Binders listen to
// the session bus for snapshots and theme broadcasts and ask for seeks by
// publishing on it; none of them holds the time source.
package views

// Seek sources reported by the binders.
const (
	SourceTranscript = "transcript"
	SourceTimeline   = "theme-timeline"
	SourceNotes      = "notes"
)
