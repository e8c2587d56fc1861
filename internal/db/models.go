// Package db provides SQLite storage for imported review sessions: the
// transcript, theme spans, insights and citation table produced upstream,
// plus the reviewer's notes.
package db

import "time"

// Session represents an imported review session.
type Session struct {
	ID        string
	Title     string
	VideoURL  string
	Duration  float64
	CreatedAt time.Time
}

// Insight is one generated analysis for a theme. Analysis may contain
// "#id=N#" citation tokens.
type Insight struct {
	Theme    string
	Analysis string
	Summary  string
}

// Counts summarises what a session holds.
type Counts struct {
	Transcript int
	Themes     int
	Insights   int
	Citations  int
	Notes      int
}
