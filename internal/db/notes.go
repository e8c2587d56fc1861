package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jwulff/vibeo/internal/notes"
)

var _ notes.Store = (*Store)(nil)

// List returns the notes for a session in notes.Sort order.
func (s *Store) List(ctx context.Context, sessionID string) ([]notes.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sessionId, text, tags, timestampRef, aiGenerated, createdAt
		FROM notes
		WHERE sessionId = ?
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var out []notes.Note
	for rows.Next() {
		var n notes.Note
		var id int64
		var tags string
		var ts sql.NullFloat64
		var createdAt float64
		if err := rows.Scan(&id, &n.SessionID, &n.Text, &tags, &ts, &n.AI, &createdAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.ID = strconv.FormatInt(id, 10)
		n.Tags = notes.ParseTags(tags)
		n.Timestamp = nullable(ts)
		n.Created = timeFromUnix(createdAt)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	notes.Sort(out)
	return out, nil
}

// Add inserts n and returns it with its assigned id.
func (s *Store) Add(ctx context.Context, n notes.Note) (notes.Note, error) {
	if n.Created.IsZero() {
		n.Created = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (sessionId, text, tags, timestampRef, aiGenerated, createdAt)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.SessionID, n.Text, strings.Join(n.Tags, ","), n.Timestamp, n.AI, unixFromTime(n.Created))
	if err != nil {
		return notes.Note{}, fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return notes.Note{}, fmt.Errorf("note id: %w", err)
	}
	n.ID = strconv.FormatInt(id, 10)
	return n, nil
}

// Delete removes a note. It returns notes.ErrNotFound when no note with that
// id belongs to the session.
func (s *Store) Delete(ctx context.Context, sessionID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE sessionId = ? AND id = ?`, sessionID, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n == 0 {
		return notes.ErrNotFound
	}
	return nil
}
