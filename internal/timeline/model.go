// Package timeline holds the timestamped data model of a review session
// (theme segments, transcript entries, playback snapshots) and the
// immutable index used to resolve which of them is active at a position.
package timeline

// Segment is a contiguous span of the recording attributed to one theme.
type Segment struct {
	ID    string
	Name  string
	Start float64
	End   float64
	Color string
}

// Duration returns the length of the segment in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// TranscriptEntry is one speaker utterance.
type TranscriptEntry struct {
	ID      string
	Speaker string
	Text    string
	Start   float64
	End     float64
}

// Snapshot is the derived playback state at one position. Segment and Entry
// are nil when nothing is active. Snapshots are values; the pointers refer
// into an immutable Index and must not be mutated.
type Snapshot struct {
	Position float64
	Segment  *Segment
	Entry    *TranscriptEntry
}

// SegmentName returns the active segment's name, or "" when none is active.
func (s Snapshot) SegmentName() string {
	if s.Segment == nil {
		return ""
	}
	return s.Segment.Name
}

// RawTheme is a theme span as supplied by upstream analysis. Start and End
// are nil when the record did not carry them.
type RawTheme struct {
	ID    string
	Name  string
	Color string
	Start *float64
	End   *float64
}

// RawTranscript is a transcript record as supplied by upstream analysis.
type RawTranscript struct {
	ID      string
	Speaker string
	Text    string
	Start   *float64
	End     *float64
}

// Seconds returns a pointer to v. Convenience for building raw records.
func Seconds(v float64) *float64 { return &v }
