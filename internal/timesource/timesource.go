// Package timesource owns the playback state of one attached media element:
// position, duration, play state and volume. It is the only component that
// commands the element; everything else observes it through a Listener.
package timesource

import (
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/jwulff/vibeo/internal/media"
)

// ErrStale is returned by Next when the requested generation has been
// superseded by a newer Attach or by Detach.
var ErrStale = errors.New("timesource: stale generation")

// DefaultVolume is the volume of a new TimeSource.
const DefaultVolume = 0.8

// Generation tags one Attach. Events carrying an older generation are
// discarded.
type Generation uint64

// State is a copy of the playback state.
type State struct {
	Position float64
	Duration float64
	Playing  bool
	Volume   float64
	Muted    bool
}

// Loaded reports whether metadata has arrived.
func (s State) Loaded() bool { return s.Duration > 0 }

// Listener receives state changes. Calls are made synchronously from the
// method that caused them, never while the TimeSource lock is held.
type Listener interface {
	PositionChanged(seconds float64)
	DurationChanged(seconds float64)
	PlayingChanged(playing bool)
	PlaybackError(err *media.PlaybackError)
}

// Funcs adapts plain functions to Listener. Nil fields are skipped.
type Funcs struct {
	OnPosition func(float64)
	OnDuration func(float64)
	OnPlaying  func(bool)
	OnError    func(*media.PlaybackError)
}

func (f Funcs) PositionChanged(s float64) {
	if f.OnPosition != nil {
		f.OnPosition(s)
	}
}

func (f Funcs) DurationChanged(s float64) {
	if f.OnDuration != nil {
		f.OnDuration(s)
	}
}

func (f Funcs) PlayingChanged(p bool) {
	if f.OnPlaying != nil {
		f.OnPlaying(p)
	}
}

func (f Funcs) PlaybackError(err *media.PlaybackError) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

// TimeSource wraps one media.Driver.
type TimeSource struct {
	driver media.Driver

	mu        sync.Mutex
	gen       Generation
	el        media.Element
	state     State
	pending   *float64
	failed    bool
	listeners map[int]Listener
	nextID    int
}

// New returns a TimeSource that opens elements with d.
func New(d media.Driver) *TimeSource {
	return &TimeSource{
		driver:    d,
		state:     State{Volume: DefaultVolume},
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l. The returned function removes it.
func (s *TimeSource) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *TimeSource) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

// Attach closes the current element, if any, and opens ref. The returned
// generation identifies events from the new element. A failure is returned
// as *media.MediaAttachError and is not retried.
func (s *TimeSource) Attach(ref media.Ref) (Generation, error) {
	s.mu.Lock()
	old := s.el
	s.el = nil
	s.gen++
	gen := s.gen
	s.state.Position = 0
	s.state.Duration = 0
	s.state.Playing = false
	s.pending = nil
	s.failed = false
	volume, muted := s.state.Volume, s.state.Muted
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			slog.Debug("close previous media element", "err", err)
		}
	}

	el, err := s.driver.Open(ref)
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.failed = true
		}
		s.mu.Unlock()
		return gen, &media.MediaAttachError{URL: ref.URL, Err: err}
	}

	s.mu.Lock()
	if s.gen != gen {
		// Superseded while opening.
		s.mu.Unlock()
		el.Close()
		return gen, nil
	}
	s.el = el
	s.mu.Unlock()

	best(el.SetVolume(volume), "volume")
	best(el.SetMuted(muted), "mute")
	return gen, nil
}

// Generation returns the current attach generation.
func (s *TimeSource) Generation() Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// State returns a copy of the playback state.
func (s *TimeSource) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Next blocks for the next native event of generation gen. It returns
// ErrStale once gen is no longer current.
func (s *TimeSource) Next(gen Generation) (media.Event, error) {
	s.mu.Lock()
	el := s.el
	current := s.gen == gen
	s.mu.Unlock()
	if !current || el == nil {
		return media.Event{}, ErrStale
	}
	ev, err := el.Next()
	if err != nil {
		if s.Generation() != gen {
			return media.Event{}, ErrStale
		}
		return media.Event{}, err
	}
	return ev, nil
}

// Seek moves playback to seconds, clamped to [0, duration]. Before metadata
// has loaded the request is queued (last one wins) and the current position
// is emitted unchanged. After a playback error the request is dropped and
// the current position is emitted unchanged.
func (s *TimeSource) Seek(seconds float64) {
	if math.IsNaN(seconds) {
		seconds = 0
	}

	s.mu.Lock()
	if s.failed {
		pos := s.state.Position
		ls := s.snapshotListeners()
		s.mu.Unlock()
		slog.Debug("seek ignored after playback error", "target", seconds)
		for _, l := range ls {
			l.PositionChanged(pos)
		}
		return
	}
	if !s.state.Loaded() || s.el == nil {
		target := math.Max(seconds, 0)
		s.pending = &target
		pos := s.state.Position
		ls := s.snapshotListeners()
		s.mu.Unlock()
		for _, l := range ls {
			l.PositionChanged(pos)
		}
		return
	}
	pos := clamp(seconds, s.state.Duration)
	s.state.Position = pos
	el := s.el
	ls := s.snapshotListeners()
	s.mu.Unlock()

	best(el.Seek(pos), "seek")
	for _, l := range ls {
		l.PositionChanged(pos)
	}
}

// SetPlaying starts or pauses playback. Failures of the underlying play
// command are swallowed; a later user gesture can retry.
func (s *TimeSource) SetPlaying(playing bool) {
	s.mu.Lock()
	if s.failed || s.state.Playing == playing {
		s.mu.Unlock()
		return
	}
	s.state.Playing = playing
	el := s.el
	ls := s.snapshotListeners()
	s.mu.Unlock()

	if el != nil {
		if playing {
			best(el.Play(), "play")
		} else {
			best(el.Pause(), "pause")
		}
	}
	for _, l := range ls {
		l.PlayingChanged(playing)
	}
}

// SetVolume sets the volume, clamped to [0,1]. Zero mutes; a positive value
// unmutes a muted source.
func (s *TimeSource) SetVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = min(max(v, 0), 1)

	s.mu.Lock()
	s.state.Volume = v
	mutedBefore := s.state.Muted
	s.state.Muted = v == 0
	muted := s.state.Muted
	el := s.el
	s.mu.Unlock()

	if el == nil {
		return
	}
	best(el.SetVolume(v), "volume")
	if muted != mutedBefore {
		best(el.SetMuted(muted), "mute")
	}
}

// SetMuted mutes or unmutes without touching the volume.
func (s *TimeSource) SetMuted(muted bool) {
	s.mu.Lock()
	s.state.Muted = muted
	el := s.el
	s.mu.Unlock()

	if el != nil {
		best(el.SetMuted(muted), "mute")
	}
}

// Handle applies a native event from generation gen. It reports whether
// the event was applied; stale events and events after a playback error
// are dropped.
func (s *TimeSource) Handle(gen Generation, ev media.Event) bool {
	s.mu.Lock()
	if gen != s.gen || s.failed || s.el == nil {
		s.mu.Unlock()
		return false
	}

	var emit []func(Listener)
	switch ev.Kind {
	case media.TimeUpdate:
		pos := math.Max(ev.Value, 0)
		if s.state.Loaded() {
			pos = clamp(pos, s.state.Duration)
		}
		if math.IsNaN(pos) {
			pos = 0
		}
		s.state.Position = pos
		emit = append(emit, func(l Listener) { l.PositionChanged(pos) })

	case media.LoadedMetadata:
		if !(ev.Value > 0) || math.IsInf(ev.Value, 0) {
			s.mu.Unlock()
			return false
		}
		d := ev.Value
		if d != s.state.Duration {
			s.state.Duration = d
			emit = append(emit, func(l Listener) { l.DurationChanged(d) })
		}
		if s.pending != nil {
			pos := clamp(*s.pending, d)
			s.pending = nil
			s.state.Position = pos
			best(s.el.Seek(pos), "queued seek")
			emit = append(emit, func(l Listener) { l.PositionChanged(pos) })
		}

	case media.Played, media.Paused:
		playing := ev.Kind == media.Played
		if playing == s.state.Playing {
			s.mu.Unlock()
			return true
		}
		s.state.Playing = playing
		emit = append(emit, func(l Listener) { l.PlayingChanged(playing) })

	case media.Failed:
		s.failed = true
		s.state.Playing = false
		perr := &media.PlaybackError{Message: ev.Message}
		emit = append(emit, func(l Listener) { l.PlaybackError(perr) })

	default:
		s.mu.Unlock()
		return false
	}
	ls := s.snapshotListeners()
	s.mu.Unlock()

	for _, fn := range emit {
		for _, l := range ls {
			fn(l)
		}
	}
	return true
}

// Detach closes the element and drops every listener. Pending Next calls
// return ErrStale.
func (s *TimeSource) Detach() {
	s.mu.Lock()
	el := s.el
	s.el = nil
	s.gen++
	s.pending = nil
	s.state.Playing = false
	s.listeners = make(map[int]Listener)
	s.mu.Unlock()

	if el != nil {
		best(el.Close(), "close")
	}
}

func clamp(v, duration float64) float64 {
	if v < 0 {
		return 0
	}
	if duration > 0 && v > duration {
		return duration
	}
	return v
}

func best(err error, op string) {
	if err != nil {
		slog.Debug("media command failed", "op", op, "err", err)
	}
}
