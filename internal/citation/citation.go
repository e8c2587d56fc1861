// Package citation resolves "#id=<n>#" tokens embedded in generated insight
// text to playback positions and turns them into seek requests.
package citation

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jwulff/vibeo/internal/timeline"
)

// Source is the seek source reported for citation jumps.
const Source = "citation"

var tokenRE = regexp.MustCompile(`#id=(\d+)#`)

// Publisher is the subset of the session bus a citation needs.
type Publisher interface {
	PublishSeek(seconds float64, source string)
}

// Table maps citation ids to seconds.
type Table map[string]float64

// ParseTable reads an id → timestamp JSON object. Values may be numbers,
// numeric strings or arrays whose first element is the timestamp; anything
// else is skipped.
func ParseTable(data []byte) (Table, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("citation table: %w", timeline.ErrInvalidJSON)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("citation table: want object, got %s", root.Type)
	}
	t := make(Table)
	root.ForEach(func(k, v gjson.Result) bool {
		if v.IsArray() {
			v = v.Get("0")
		}
		if n := timeline.Number(v); n != nil {
			t[k.String()] = *n
		}
		return true
	})
	return t, nil
}

// Lookup returns the seconds for id.
func (t Table) Lookup(id string) (float64, bool) {
	s, ok := t[id]
	return s, ok
}

// Resolve returns the seconds for id, or 0 with a warning when id is
// unknown.
func (t Table) Resolve(id string) float64 {
	s, ok := t[id]
	if !ok {
		slog.Warn("citation id not found", "id", id)
		return 0
	}
	return s
}

// Seek resolves id and publishes a seek to it, even when the id is unknown.
func (t Table) Seek(p Publisher, id string) float64 {
	s := t.Resolve(id)
	p.PublishSeek(s, Source)
	return s
}

// Token is one citation occurrence in a text, with byte offsets.
type Token struct {
	ID    string
	Start int
	End   int
}

// Tokens lists the citation tokens in text in order of appearance.
func Tokens(text string) []Token {
	var out []Token
	for _, m := range tokenRE.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, Token{ID: text[m[2]:m[3]], Start: m[0], End: m[1]})
	}
	return out
}

// Link is a rendered citation.
type Link struct {
	ID      string
	Label   string
	Seconds float64
	Known   bool
}

// Render replaces every token in text with "[m:ss]" (or "[id:<n>]" for
// unknown ids) and returns the links in order.
func (t Table) Render(text string) (string, []Link) {
	tokens := Tokens(text)
	if len(tokens) == 0 {
		return text, nil
	}
	var b strings.Builder
	links := make([]Link, 0, len(tokens))
	last := 0
	for _, tok := range tokens {
		b.WriteString(text[last:tok.Start])
		l := Link{ID: tok.ID}
		l.Seconds, l.Known = t.Lookup(tok.ID)
		if l.Known {
			l.Label = timeline.FormatTime(l.Seconds)
		} else {
			l.Label = "id:" + tok.ID
		}
		b.WriteString("[" + l.Label + "]")
		links = append(links, l)
		last = tok.End
	}
	b.WriteString(text[last:])
	return b.String(), links
}
