package timeline

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned by the parsers when the input is not JSON at all.
var ErrInvalidJSON = errors.New("timeline: invalid json")

var (
	themeNameKeys = []string{"theme", "theme_name", "name"}
	startKeys     = []string{"start_time", "startSeconds", "start"}
	endKeys       = []string{"end_time", "endSeconds", "end"}
	speakerKeys   = []string{"speaker", "speaker_label"}
)

// ParseThemes decodes upstream theme timestamps. Three shapes are accepted:
//
//	[{"theme": "Comfort", "start_time": 12.5, "end_time": 40}, ...]
//	{"Comfort": {"start": 12.5, "end": 40}, ...}
//	{"Comfort": [12.5, 40], ...}
//
// Individual records are never rejected here; Build drops the malformed ones.
func ParseThemes(data []byte) ([]RawTheme, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)

	var out []RawTheme
	switch {
	case root.IsArray():
		root.ForEach(func(_, v gjson.Result) bool {
			if !v.IsObject() {
				return true
			}
			out = append(out, RawTheme{
				ID:    first(v, "id").String(),
				Name:  nameOr(first(v, themeNameKeys...).String(), "Other"),
				Color: first(v, "color").String(),
				Start: Number(first(v, startKeys...)),
				End:   Number(first(v, endKeys...)),
			})
			return true
		})
	case root.IsObject():
		root.ForEach(func(k, v gjson.Result) bool {
			r := RawTheme{Name: nameOr(k.String(), "Other")}
			switch {
			case v.IsArray():
				arr := v.Array()
				if len(arr) > 0 {
					r.Start = Number(arr[0])
				}
				if len(arr) > 1 {
					r.End = Number(arr[1])
				}
			case v.IsObject():
				r.ID = first(v, "id").String()
				r.Color = first(v, "color").String()
				r.Start = Number(first(v, startKeys...))
				r.End = Number(first(v, endKeys...))
			}
			out = append(out, r)
			return true
		})
	}
	return out, nil
}

// ParseTranscript decodes an array of upstream transcript records.
func ParseTranscript(data []byte) ([]RawTranscript, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	var out []RawTranscript
	gjson.ParseBytes(data).ForEach(func(_, v gjson.Result) bool {
		if !v.IsObject() {
			return true
		}
		out = append(out, RawTranscript{
			ID:      first(v, "id").String(),
			Speaker: nameOr(first(v, speakerKeys...).String(), "Speaker"),
			Text:    first(v, "text").String(),
			Start:   Number(first(v, startKeys...)),
			End:     Number(first(v, endKeys...)),
		})
		return true
	})
	return out, nil
}

func first(v gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func nameOr(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

// Number returns the numeric value of r, accepting numeric strings. It
// returns nil when r is absent or not a number.
func Number(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		v := r.Float()
		return &v
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		return &v
	}
	return nil
}
