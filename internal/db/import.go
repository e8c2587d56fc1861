package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jwulff/vibeo/internal/citation"
	"github.com/jwulff/vibeo/internal/timeline"
)

// Bundle is one session's worth of upstream analysis output, ready to be
// written by Import.
type Bundle struct {
	Session    Session
	Transcript []timeline.RawTranscript
	Themes     []timeline.RawTheme
	Insights   []Insight
	Citations  citation.Table
}

// Files holds the raw upstream JSON documents for one session. Any of them
// may be nil.
type Files struct {
	Transcript []byte
	Themes     []byte
	Insights   []byte
	Citations  []byte
}

// ParseBundle decodes f into a Bundle. When meta.ID is empty the session id
// is taken from the first transcript record's session_id. When
// meta.Duration is zero it is the furthest end time seen.
func ParseBundle(meta Session, f Files) (*Bundle, error) {
	b := &Bundle{Session: meta}
	var errs []error

	if f.Transcript != nil {
		tr, err := timeline.ParseTranscript(f.Transcript)
		if err != nil {
			errs = append(errs, fmt.Errorf("transcript: %w", err))
		}
		b.Transcript = tr
		if b.Session.ID == "" {
			b.Session.ID = gjson.GetBytes(f.Transcript, "0.session_id").String()
		}
	}
	if f.Themes != nil {
		th, err := timeline.ParseThemes(f.Themes)
		if err != nil {
			errs = append(errs, fmt.Errorf("themes: %w", err))
		}
		b.Themes = th
	}
	if f.Insights != nil {
		in, err := ParseInsights(f.Insights)
		if err != nil {
			errs = append(errs, fmt.Errorf("insights: %w", err))
		}
		b.Insights = in
	}
	if f.Citations != nil {
		ct, err := citation.ParseTable(f.Citations)
		if err != nil {
			errs = append(errs, err)
		}
		b.Citations = ct
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if b.Session.ID == "" {
		return nil, errors.New("session id is required")
	}
	if b.Session.Duration == 0 {
		b.Session.Duration = furthestEnd(b)
	}
	return b, nil
}

func furthestEnd(b *Bundle) float64 {
	var end float64
	for _, r := range b.Transcript {
		if r.End != nil && *r.End > end {
			end = *r.End
		}
	}
	for _, r := range b.Themes {
		if r.End != nil && *r.End > end {
			end = *r.End
		}
	}
	return end
}

// ParseInsights decodes an array of generated insights:
//
//	[{"theme": "Comfort", "detailed_analysis": "... #id=12# ...",
//	  "insights": [{"summary": "..."}]}, ...]
//
// Records without a theme or any text are skipped.
func ParseInsights(data []byte) ([]Insight, error) {
	if !gjson.ValidBytes(data) {
		return nil, timeline.ErrInvalidJSON
	}
	var out []Insight
	gjson.ParseBytes(data).ForEach(func(_, v gjson.Result) bool {
		in := Insight{
			Theme:    strings.TrimSpace(v.Get("theme").String()),
			Analysis: analysisText(v.Get("detailed_analysis")),
			Summary:  v.Get("insights.0.summary").String(),
		}
		if in.Theme == "" || (in.Analysis == "" && in.Summary == "") {
			return true
		}
		out = append(out, in)
		return true
	})
	return out, nil
}

// analysisText normalises detailed_analysis, which upstream emits either as
// a string or as a list of paragraphs.
func analysisText(r gjson.Result) string {
	if !r.IsArray() {
		return r.String()
	}
	var parts []string
	r.ForEach(func(_, p gjson.Result) bool {
		if s := strings.TrimSpace(p.String()); s != "" {
			parts = append(parts, s)
		}
		return true
	})
	return strings.Join(parts, "\n\n")
}

// Import writes b in one transaction, replacing any existing data for the
// same session. Notes are kept.
func (s *Store) Import(ctx context.Context, b *Bundle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	id := b.Session.ID
	for _, table := range []string{"transcripts", "themes", "insights", "citations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE sessionId = ?", id); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	created := b.Session.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, title, videoUrl, duration, createdAt)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			videoUrl = excluded.videoUrl,
			duration = excluded.duration
	`, id, b.Session.Title, b.Session.VideoURL, b.Session.Duration, unixFromTime(created)); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	for i, r := range b.Transcript {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transcripts (sessionId, seq, entryId, speaker, text, startSeconds, endSeconds)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, i, r.ID, r.Speaker, r.Text, r.Start, r.End); err != nil {
			return fmt.Errorf("insert transcript %d: %w", i, err)
		}
	}
	for i, r := range b.Themes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO themes (sessionId, seq, themeId, name, color, startSeconds, endSeconds)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, i, r.ID, r.Name, r.Color, r.Start, r.End); err != nil {
			return fmt.Errorf("insert theme %d: %w", i, err)
		}
	}
	for i, in := range b.Insights {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO insights (sessionId, seq, theme, analysis, summary)
			VALUES (?, ?, ?, ?, ?)
		`, id, i, in.Theme, in.Analysis, in.Summary); err != nil {
			return fmt.Errorf("insert insight %d: %w", i, err)
		}
	}
	for cid, sec := range b.Citations {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO citations (sessionId, citationId, seconds)
			VALUES (?, ?, ?)
		`, id, cid, sec); err != nil {
			return fmt.Errorf("insert citation %s: %w", cid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	slog.Info("session imported",
		"session", id,
		"transcript", len(b.Transcript),
		"themes", len(b.Themes),
		"insights", len(b.Insights),
		"citations", len(b.Citations),
	)
	return nil
}
