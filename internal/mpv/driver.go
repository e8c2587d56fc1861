package mpv

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jwulff/vibeo/internal/media"
)

// Driver opens media in a running mpv instance. Each Open dials two
// connections: one for commands and one dedicated to the event stream.
type Driver struct {
	Socket string
}

// Open loads ref.URL into mpv paused and starts observing the playback
// properties the time source needs.
func (d Driver) Open(ref media.Ref) (media.Element, error) {
	cmd, err := Connect(d.Socket)
	if err != nil {
		return nil, err
	}
	ev, err := Connect(d.Socket)
	if err != nil {
		cmd.Close()
		return nil, err
	}
	e := &Element{cmd: cmd, ev: ev}

	// The command connection never reads events, so stop mpv queueing them.
	if err := cmd.Do("disable_event", "all"); err != nil {
		slog.Debug("mpv disable_event failed", "err", err)
	}
	for id, name := range map[int]string{
		propTimePos:  "time-pos",
		propDuration: "duration",
		propPause:    "pause",
	} {
		if err := ev.Do("observe_property", id, name); err != nil {
			e.Close()
			return nil, fmt.Errorf("observe %s: %w", name, err)
		}
	}
	if err := cmd.Do("set_property", "pause", true); err != nil {
		e.Close()
		return nil, err
	}
	if err := cmd.Do("loadfile", ref.URL, "replace"); err != nil {
		e.Close()
		return nil, err
	}
	slog.Debug("mpv loadfile", "session", ref.SessionID, "url", ref.URL)
	return e, nil
}

// Element is one file loaded into mpv.
type Element struct {
	cmd *Client
	ev  *Client

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// Play unpauses mpv.
func (e *Element) Play() error { return e.cmd.Do("set_property", "pause", false) }

// Pause pauses mpv.
func (e *Element) Pause() error { return e.cmd.Do("set_property", "pause", true) }

// Seek jumps to an absolute position.
func (e *Element) Seek(seconds float64) error {
	return e.cmd.Do("seek", seconds, "absolute+exact")
}

// SetVolume maps v in [0,1] to mpv's 0-100 scale.
func (e *Element) SetVolume(v float64) error {
	return e.cmd.Do("set_property", "volume", v*100)
}

// SetMuted toggles mpv's mute property.
func (e *Element) SetMuted(muted bool) error {
	return e.cmd.Do("set_property", "mute", muted)
}

// Next blocks until an mpv event maps onto a media event.
func (e *Element) Next() (media.Event, error) {
	for {
		raw, err := e.ev.ReadEvent()
		if err != nil {
			e.mu.Lock()
			closed := e.closed
			e.mu.Unlock()
			if closed || errors.Is(err, ErrConnClosed) {
				return media.Event{}, media.ErrClosed
			}
			return media.Event{}, err
		}
		if out, ok := translate(raw); ok {
			return out, nil
		}
	}
}

// translate maps an mpv event onto a media event. ok is false for events
// the time source does not care about.
func translate(raw Event) (media.Event, bool) {
	switch raw.Event {
	case "property-change":
		switch raw.ID {
		case propTimePos:
			if f, ok := raw.Float(); ok {
				return media.Event{Kind: media.TimeUpdate, Value: f}, true
			}
		case propDuration:
			if f, ok := raw.Float(); ok && f > 0 {
				return media.Event{Kind: media.LoadedMetadata, Value: f}, true
			}
		case propPause:
			if paused, ok := raw.Bool(); ok {
				if paused {
					return media.Event{Kind: media.Paused}, true
				}
				return media.Event{Kind: media.Played}, true
			}
		}
	case "end-file":
		if raw.Reason == "error" {
			msg := raw.FileError
			if msg == "" {
				msg = "playback failed"
			}
			return media.Event{Kind: media.Failed, Message: msg}, true
		}
	}
	return media.Event{}, false
}

// Close releases both connections. mpv itself keeps running.
func (e *Element) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		err = errors.Join(e.cmd.Close(), e.ev.Close())
	})
	return err
}
