package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jwulff/vibeo/internal/citation"
	"github.com/jwulff/vibeo/internal/timeline"
)

// ErrSessionNotFound is returned when a session id is not in the store.
var ErrSessionNotFound = errors.New("db: session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	title TEXT,
	videoUrl TEXT NOT NULL DEFAULT '',
	duration REAL NOT NULL DEFAULT 0,
	createdAt REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
	sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	entryId TEXT NOT NULL DEFAULT '',
	speaker TEXT NOT NULL,
	text TEXT NOT NULL,
	startSeconds REAL,
	endSeconds REAL,
	PRIMARY KEY (sessionId, seq)
);

CREATE TABLE IF NOT EXISTS themes (
	sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	themeId TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	startSeconds REAL,
	endSeconds REAL,
	PRIMARY KEY (sessionId, seq)
);

CREATE TABLE IF NOT EXISTS insights (
	sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	theme TEXT NOT NULL,
	analysis TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (sessionId, seq)
);

CREATE TABLE IF NOT EXISTS citations (
	sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	citationId TEXT NOT NULL,
	seconds REAL NOT NULL,
	PRIMARY KEY (sessionId, citationId)
);

CREATE TABLE IF NOT EXISTS notes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sessionId TEXT NOT NULL,
	text TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '',
	timestampRef REAL,
	aiGenerated INTEGER NOT NULL DEFAULT 0,
	createdAt REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS notes_session ON notes(sessionId);
`

// Store provides access to the vibeo SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "vibeo", "vibeo.db")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "vibeo", "vibeo.db")
}

// Open opens (creating if needed) the database at path with WAL and foreign
// keys enabled, and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	return open(dsn, 0)
}

// OpenMemory opens a private in-memory database. All access goes through a
// single connection so every query sees the same data.
func OpenMemory() (*Store, error) {
	return open(":memory:?_pragma=foreign_keys(1)", 1)
}

func open(dsn string, maxConns int) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sessions returns every imported session, newest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, title, videoUrl, duration, createdAt
		FROM sessions
		ORDER BY createdAt DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// Session returns one session, or ErrSessionNotFound.
func (s *Store) Session(id string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, title, videoUrl, duration, createdAt
		FROM sessions
		WHERE id = ?
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, err
}

// LatestSession returns the most recently imported session, or nil when the
// store is empty.
func (s *Store) LatestSession() (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, title, videoUrl, duration, createdAt
		FROM sessions
		ORDER BY createdAt DESC
		LIMIT 1
	`)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var title sql.NullString
	var createdAt float64
	if err := row.Scan(&sess.ID, &title, &sess.VideoURL, &sess.Duration, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if title.Valid {
		sess.Title = title.String
	}
	sess.CreatedAt = timeFromUnix(createdAt)
	return &sess, nil
}

// Transcript returns the stored transcript records in import order.
// Records keep their missing or malformed times; timeline.Build drops them.
func (s *Store) Transcript(sessionID string) ([]timeline.RawTranscript, error) {
	rows, err := s.db.Query(`
		SELECT entryId, speaker, text, startSeconds, endSeconds
		FROM transcripts
		WHERE sessionId = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var out []timeline.RawTranscript
	for rows.Next() {
		var r timeline.RawTranscript
		var start, end sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Speaker, &r.Text, &start, &end); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		r.Start, r.End = nullable(start), nullable(end)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Themes returns the stored theme spans in import order.
func (s *Store) Themes(sessionID string) ([]timeline.RawTheme, error) {
	rows, err := s.db.Query(`
		SELECT themeId, name, color, startSeconds, endSeconds
		FROM themes
		WHERE sessionId = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query themes: %w", err)
	}
	defer rows.Close()

	var out []timeline.RawTheme
	for rows.Next() {
		var r timeline.RawTheme
		var start, end sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Name, &r.Color, &start, &end); err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		r.Start, r.End = nullable(start), nullable(end)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Index builds the segment index for a session.
func (s *Store) Index(sessionID string) (*timeline.Index, error) {
	themes, err := s.Themes(sessionID)
	if err != nil {
		return nil, err
	}
	transcript, err := s.Transcript(sessionID)
	if err != nil {
		return nil, err
	}
	return timeline.Build(themes, transcript), nil
}

// Insights returns the generated insights for a session.
func (s *Store) Insights(sessionID string) ([]Insight, error) {
	rows, err := s.db.Query(`
		SELECT theme, analysis, summary
		FROM insights
		WHERE sessionId = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()

	var out []Insight
	for rows.Next() {
		var in Insight
		if err := rows.Scan(&in.Theme, &in.Analysis, &in.Summary); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Citations returns the id → seconds table for a session.
func (s *Store) Citations(sessionID string) (citation.Table, error) {
	rows, err := s.db.Query(`
		SELECT citationId, seconds
		FROM citations
		WHERE sessionId = ?
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query citations: %w", err)
	}
	defer rows.Close()

	t := make(citation.Table)
	for rows.Next() {
		var id string
		var sec float64
		if err := rows.Scan(&id, &sec); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		t[id] = sec
	}
	return t, rows.Err()
}

// Counts reports how many records of each kind a session holds.
func (s *Store) Counts(sessionID string) (Counts, error) {
	var c Counts
	err := s.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM transcripts WHERE sessionId = ?),
			(SELECT COUNT(*) FROM themes WHERE sessionId = ?),
			(SELECT COUNT(*) FROM insights WHERE sessionId = ?),
			(SELECT COUNT(*) FROM citations WHERE sessionId = ?),
			(SELECT COUNT(*) FROM notes WHERE sessionId = ?)
	`, sessionID, sessionID, sessionID, sessionID, sessionID).Scan(&c.Transcript, &c.Themes, &c.Insights, &c.Citations, &c.Notes)
	if err != nil {
		return Counts{}, fmt.Errorf("count session records: %w", err)
	}
	return c, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
