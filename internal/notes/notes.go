// Package notes stores reviewer notes for a session. Notes are a plain
// key-value concern kept outside the playback core; the review UI only
// needs List, Add and Delete.
package notes

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

// ErrNotFound is returned when deleting a note that does not exist.
var ErrNotFound = errors.New("notes: not found")

// Note is one reviewer note.
type Note struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags,omitempty"`
	Timestamp *float64  `json:"timestamp_ref,omitempty"`
	AI        bool      `json:"is_ai_generated,omitempty"`
	Created   time.Time `json:"created_at"`
}

// Store persists notes per session.
type Store interface {
	List(ctx context.Context, sessionID string) ([]Note, error)
	Add(ctx context.Context, n Note) (Note, error)
	Delete(ctx context.Context, sessionID, id string) error
}

// Sort orders notes by timestamp, untimed notes last, then by creation.
func Sort(ns []Note) {
	slices.SortStableFunc(ns, func(a, b Note) int {
		switch {
		case a.Timestamp != nil && b.Timestamp != nil:
			if c := cmp.Compare(*a.Timestamp, *b.Timestamp); c != 0 {
				return c
			}
		case a.Timestamp != nil:
			return -1
		case b.Timestamp != nil:
			return 1
		}
		return a.Created.Compare(b.Created)
	})
}

// ParseTags splits "#ux #pricing, onboarding" style input into clean tags.
func ParseTags(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		f = strings.TrimPrefix(f, "#")
		if f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// SplitTags separates trailing "#tag" words from note text:
// "slow checkout #ux #pricing" → "slow checkout", [ux pricing].
func SplitTags(text string) (string, []string) {
	words := strings.Fields(text)
	i := len(words)
	for i > 0 && strings.HasPrefix(words[i-1], "#") && len(words[i-1]) > 1 {
		i--
	}
	return strings.Join(words[:i], " "), ParseTags(strings.Join(words[i:], " "))
}
