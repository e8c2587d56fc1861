// Package playback owns the canonical playback position of a review
// session. The Coordinator turns bus seek requests into TimeSource seeks,
// resolves the active theme and transcript entry on every position change,
// and broadcasts the resulting snapshot. It never publishes a seek itself.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwulff/vibeo/internal/media"
	"github.com/jwulff/vibeo/internal/observe"
	"github.com/jwulff/vibeo/internal/seekbus"
	"github.com/jwulff/vibeo/internal/timeline"
	"github.com/jwulff/vibeo/internal/timesource"
)

// ErrDetached is returned by Attach after Detach.
var ErrDetached = errors.New("playback: coordinator detached")

// State is the coordinator lifecycle state.
type State int

const (
	Unattached State = iota
	Loading
	Ready
	Playing
	Paused
	Error
	Detached
)

func (s State) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Error:
		return "error"
	case Detached:
		return "detached"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records coordinator metrics on m instead of the defaults.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// Coordinator mediates between one TimeSource and one session bus.
type Coordinator struct {
	ts      *timesource.TimeSource
	bus     *seekbus.Bus
	metrics *observe.Metrics

	mu       sync.Mutex
	index    *timeline.Index
	state    State
	ref      media.Ref
	gen      timesource.Generation
	snap     timeline.Snapshot
	activeID string
	skipping bool
	lastErr  error
	counted  bool

	unsubTS   func()
	unsubSeek func()
}

// New wires a coordinator to ts and bus and claims the bus's seek handler.
// idx may be nil until session data is available.
func New(ts *timesource.TimeSource, bus *seekbus.Bus, idx *timeline.Index, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{ts: ts, bus: bus, index: idx}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.index == nil {
		c.index = timeline.Build(nil, nil)
	}

	unsub, err := bus.HandleSeeks(c.onSeek)
	if err != nil {
		return nil, fmt.Errorf("claim seek handler: %w", err)
	}
	c.unsubSeek = unsub
	c.unsubTS = ts.Subscribe(timesource.Funcs{
		OnPosition: c.onPosition,
		OnDuration: c.onDuration,
		OnPlaying:  c.onPlaying,
		OnError:    c.onError,
	})
	return c, nil
}

// Attach loads ref. Any earlier attach is superseded; its late events are
// discarded by generation. A load failure moves the coordinator to Error
// and is returned as *media.MediaAttachError. A re-attach republishes the
// snapshot at the reset position.
func (c *Coordinator) Attach(ref media.Ref) (timesource.Generation, error) {
	c.mu.Lock()
	if c.state == Detached {
		c.mu.Unlock()
		return 0, ErrDetached
	}
	c.state = Loading
	c.ref = ref
	c.lastErr = nil
	first := !c.counted
	c.counted = true
	if first {
		c.snap = c.index.Snapshot(0)
	}
	c.mu.Unlock()

	if first {
		c.metrics.ActiveSessions.Add(context.Background(), 1)
	}

	gen, err := c.ts.Attach(ref)
	c.mu.Lock()
	c.gen = gen
	if err != nil && c.gen == gen && c.state == Loading {
		c.state = Error
		c.lastErr = err
	}
	c.mu.Unlock()

	if !first {
		c.onPosition(c.ts.State().Position)
	}
	if err != nil {
		slog.Warn("media attach failed", "session", ref.SessionID, "url", ref.URL, "err", err)
		c.metrics.RecordMediaError(context.Background(), "attach")
		return gen, err
	}
	slog.Info("media attached", "session", ref.SessionID, "generation", gen)
	return gen, nil
}

// HandleMedia applies a native event tagged with the generation it was read
// under. Stale events are dropped.
func (c *Coordinator) HandleMedia(gen timesource.Generation, ev media.Event) bool {
	return c.ts.Handle(gen, ev)
}

// Next blocks for the next native event of gen. See TimeSource.Next.
func (c *Coordinator) Next(gen timesource.Generation) (media.Event, error) {
	return c.ts.Next(gen)
}

// Generation returns the generation of the latest Attach.
func (c *Coordinator) Generation() timesource.Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Play starts playback.
func (c *Coordinator) Play() { c.ts.SetPlaying(true) }

// Pause pauses playback.
func (c *Coordinator) Pause() { c.ts.SetPlaying(false) }

// TogglePlay flips between playing and paused.
func (c *Coordinator) TogglePlay() {
	c.ts.SetPlaying(!c.ts.State().Playing)
}

// SetVolume sets the player volume in [0,1].
func (c *Coordinator) SetVolume(v float64) { c.ts.SetVolume(v) }

// ToggleMute flips the mute flag.
func (c *Coordinator) ToggleMute() { c.ts.SetMuted(!c.ts.State().Muted) }

// Playback returns the TimeSource state.
func (c *Coordinator) Playback() timesource.State { return c.ts.State() }

// SkipToNextTheme seeks to the start of the next theme and broadcasts it.
// At the end of the timeline it seeks to the duration and broadcasts the
// null theme. It reports whether a next theme existed. In Error and
// Detached nothing is seeked or broadcast.
func (c *Coordinator) SkipToNextTheme() bool {
	pos := c.ts.State().Position

	c.mu.Lock()
	if c.state == Detached || c.state == Error {
		c.mu.Unlock()
		return false
	}
	next := c.index.NextSegmentAfter(pos)
	c.skipping = true
	c.mu.Unlock()

	var target float64
	if next != nil {
		target = next.Start
	} else {
		target = c.ts.State().Duration
	}
	c.applySeek(target, "skip")

	c.mu.Lock()
	c.skipping = false
	c.mu.Unlock()

	if next != nil {
		c.bus.PublishThemeSelected(next.Name, true)
		return true
	}
	c.bus.PublishThemeSelected("", false)
	return false
}

// SetIndex replaces the segment index wholesale and republishes the
// snapshot for the current position.
func (c *Coordinator) SetIndex(idx *timeline.Index) {
	if idx == nil {
		idx = timeline.Build(nil, nil)
	}
	c.mu.Lock()
	if c.state == Detached {
		c.mu.Unlock()
		return
	}
	c.index = idx
	c.mu.Unlock()
	c.onPosition(c.ts.State().Position)
}

// Index returns the current segment index.
func (c *Coordinator) Index() *timeline.Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Snapshot returns the latest published snapshot.
func (c *Coordinator) Snapshot() timeline.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the *media.MediaAttachError or *media.PlaybackError that
// moved the coordinator to Error, or nil.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Detach releases the TimeSource and the bus seek handler. The coordinator
// cannot be reused.
func (c *Coordinator) Detach() {
	c.mu.Lock()
	if c.state == Detached {
		c.mu.Unlock()
		return
	}
	c.state = Detached
	c.index = timeline.Build(nil, nil)
	counted := c.counted
	c.mu.Unlock()

	c.unsubSeek()
	c.unsubTS()
	c.ts.Detach()
	if counted {
		c.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}

func (c *Coordinator) onSeek(req seekbus.SeekRequest) {
	c.applySeek(req.Target, req.Source)
}

func (c *Coordinator) applySeek(target float64, source string) {
	if c.State() == Detached {
		return
	}
	slog.Debug("seek", "target", target, "source", source)
	c.metrics.RecordSeek(context.Background(), source)
	c.ts.Seek(target)
}

func (c *Coordinator) onPosition(seconds float64) {
	start := time.Now()

	c.mu.Lock()
	if c.state == Detached {
		c.mu.Unlock()
		return
	}
	snap := c.index.Snapshot(seconds)
	c.snap = snap
	id := ""
	if snap.Segment != nil {
		id = snap.Segment.ID
	}
	changed := id != c.activeID
	c.activeID = id
	announce := changed && !c.skipping
	c.mu.Unlock()

	c.metrics.SnapshotDuration.Record(context.Background(), time.Since(start).Seconds())

	c.bus.PublishSnapshot(snap)
	if announce {
		c.metrics.ThemeChanges.Add(context.Background(), 1)
		c.bus.PublishThemeSelected(snap.SegmentName(), snap.Segment != nil)
	}
}

func (c *Coordinator) onDuration(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Loading && seconds > 0 {
		c.state = Ready
		if c.ts.State().Playing {
			c.state = Playing
		}
	}
}

func (c *Coordinator) onPlaying(playing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Ready, Playing, Paused:
		if playing {
			c.state = Playing
		} else {
			c.state = Paused
		}
	}
}

func (c *Coordinator) onError(perr *media.PlaybackError) {
	c.mu.Lock()
	var kind string
	switch c.state {
	case Loading:
		c.lastErr = &media.MediaAttachError{URL: c.ref.URL, Err: perr}
		kind = "attach"
	case Detached:
		c.mu.Unlock()
		return
	default:
		c.lastErr = perr
		kind = "playback"
	}
	c.state = Error
	ref := c.ref
	c.mu.Unlock()

	slog.Warn("media failed", "session", ref.SessionID, "kind", kind, "err", perr)
	c.metrics.RecordMediaError(context.Background(), kind)
}
