// Package sim implements a media.Driver backed by a wall clock instead of a
// real player. It is used when no mpv binary is available so the review UI
// can still be driven end to end.
package sim

import (
	"sync"
	"time"

	"github.com/jwulff/vibeo/internal/media"
)

// DefaultInterval is the tick period when Driver.Interval is zero (4 Hz).
const DefaultInterval = 250 * time.Millisecond

// Driver opens simulated elements of a fixed duration.
type Driver struct {
	// Duration is reported as the resource length for every Open.
	Duration float64

	// Interval is the time-update period while playing.
	Interval time.Duration
}

// Open returns an element that reports metadata on its first Next call.
func (d Driver) Open(ref media.Ref) (media.Element, error) {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	e := &Element{
		duration: d.Duration,
		interval: interval,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	e.pending = append(e.pending, media.Event{Kind: media.LoadedMetadata, Value: d.Duration})
	return e, nil
}

// Element is a simulated playing resource.
type Element struct {
	mu       sync.Mutex
	duration float64
	interval time.Duration
	position float64
	playing  bool
	since    time.Time
	pending  []media.Event
	closed   bool

	wake chan struct{}
	done chan struct{}
	now  func() time.Time
}

func (e *Element) push(ev media.Event) {
	e.pending = append(e.pending, ev)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// advance folds elapsed wall time into position. Caller holds mu.
func (e *Element) advance() {
	if !e.playing {
		return
	}
	now := e.now()
	e.position += now.Sub(e.since).Seconds()
	e.since = now
	if e.duration > 0 && e.position >= e.duration {
		e.position = e.duration
		e.playing = false
		e.push(media.Event{Kind: media.Paused})
	}
}

// Play starts the clock.
func (e *Element) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return media.ErrClosed
	}
	if e.playing {
		return nil
	}
	if e.duration > 0 && e.position >= e.duration {
		e.position = 0
	}
	e.playing = true
	e.since = e.now()
	e.push(media.Event{Kind: media.Played})
	return nil
}

// Pause stops the clock.
func (e *Element) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return media.ErrClosed
	}
	if !e.playing {
		return nil
	}
	e.advance()
	e.playing = false
	e.push(media.Event{Kind: media.Paused})
	return nil
}

// Seek moves the clock and reports the new position.
func (e *Element) Seek(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return media.ErrClosed
	}
	e.position = seconds
	e.since = e.now()
	e.push(media.Event{Kind: media.TimeUpdate, Value: seconds})
	return nil
}

// SetVolume is accepted and ignored.
func (e *Element) SetVolume(float64) error { return nil }

// SetMuted is accepted and ignored.
func (e *Element) SetMuted(bool) error { return nil }

// Next returns queued events first, then a time update every interval while
// the clock runs.
func (e *Element) Next() (media.Event, error) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return media.Event{}, media.ErrClosed
		}
		if len(e.pending) > 0 {
			ev := e.pending[0]
			e.pending = e.pending[1:]
			e.mu.Unlock()
			return ev, nil
		}
		e.mu.Unlock()

		select {
		case <-e.done:
		case <-e.wake:
		case <-ticker.C:
			e.mu.Lock()
			if e.playing {
				e.advance()
				e.pending = append([]media.Event{{Kind: media.TimeUpdate, Value: e.position}}, e.pending...)
			}
			e.mu.Unlock()
		}
	}
}

// Close stops the element and unblocks Next.
func (e *Element) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.done)
	}
	return nil
}
