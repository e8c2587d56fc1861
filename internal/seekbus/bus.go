// Package seekbus is the session-scoped message channel between the views
// of a review session and its playback coordinator.
//
// A Bus is created per session view and handed to every component that needs
// it. Views publish seek requests; exactly one component (the coordinator)
// registers with HandleSeeks and turns them into player seeks. Position and
// theme updates flow the other way as broadcasts.
//
// Delivery is synchronous on the goroutine that is draining the bus. A
// publish made from inside a handler, or from another goroutine while a
// delivery is in progress, is queued and delivered by the draining goroutine
// once the current message has reached all subscribers; that Publish returns
// before delivery. With a single publishing goroutine, Publish returns after
// every subscriber has seen the message and everything it caused to be
// published. Messages are always delivered in publish order. The order in
// which subscribers receive a given message is unspecified.
package seekbus

import (
	"errors"
	"sync"

	"github.com/jwulff/vibeo/internal/timeline"
)

// ErrSeekHandlerTaken is returned by HandleSeeks when a handler is already
// registered.
var ErrSeekHandlerTaken = errors.New("seekbus: seek handler already registered")

// Message is any value carried on the bus.
type Message interface{ isMessage() }

// SeekRequest asks the player to move to Target seconds. Source names the
// surface that asked (e.g. "transcript", "citation").
type SeekRequest struct {
	Target float64
	Source string
}

// ThemeSelected announces the theme now in focus. Valid is false when no
// theme is selected.
type ThemeSelected struct {
	Name  string
	Valid bool
}

// PositionChanged carries the snapshot derived from a new playback position.
type PositionChanged struct {
	Snapshot timeline.Snapshot
}

func (SeekRequest) isMessage()     {}
func (ThemeSelected) isMessage()   {}
func (PositionChanged) isMessage() {}

type subscriber struct {
	id int
	fn func(Message)
}

// Bus is a typed publish/subscribe channel. The zero value is not usable;
// create one with New.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	subs     []subscriber
	seek     *subscriber
	queue    []Message
	draining bool
	disposed bool
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers fn for every message. The returned function removes
// the subscription; calling it more than once is harmless.
func (b *Bus) Subscribe(fn func(Message)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	return func() { b.remove(id) }
}

// OnSeek subscribes to seek requests only. Observers registered here do not
// perform seeks; see HandleSeeks.
func (b *Bus) OnSeek(fn func(SeekRequest)) (unsubscribe func()) {
	return b.Subscribe(func(m Message) {
		if r, ok := m.(SeekRequest); ok {
			fn(r)
		}
	})
}

// OnThemeSelected subscribes to theme selection broadcasts.
func (b *Bus) OnThemeSelected(fn func(ThemeSelected)) (unsubscribe func()) {
	return b.Subscribe(func(m Message) {
		if t, ok := m.(ThemeSelected); ok {
			fn(t)
		}
	})
}

// OnSnapshot subscribes to position updates.
func (b *Bus) OnSnapshot(fn func(timeline.Snapshot)) (unsubscribe func()) {
	return b.Subscribe(func(m Message) {
		if p, ok := m.(PositionChanged); ok {
			fn(p.Snapshot)
		}
	})
}

// HandleSeeks registers the single component allowed to execute seek
// requests. It receives every SeekRequest after the observers.
func (b *Bus) HandleSeeks(fn func(SeekRequest)) (unsubscribe func(), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return nil, errors.New("seekbus: bus disposed")
	}
	if b.seek != nil {
		return nil, ErrSeekHandlerTaken
	}
	b.nextID++
	id := b.nextID
	b.seek = &subscriber{id: id, fn: func(m Message) {
		if r, ok := m.(SeekRequest); ok {
			fn(r)
		}
	}}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.seek != nil && b.seek.id == id {
			b.seek = nil
		}
	}, nil
}

// PublishSeek requests a seek to seconds.
func (b *Bus) PublishSeek(seconds float64, source string) {
	b.Publish(SeekRequest{Target: seconds, Source: source})
}

// PublishThemeSelected announces name as the selected theme; ok=false
// clears the selection.
func (b *Bus) PublishThemeSelected(name string, ok bool) {
	if !ok {
		name = ""
	}
	b.Publish(ThemeSelected{Name: name, Valid: ok})
}

// PublishSnapshot broadcasts a new playback snapshot.
func (b *Bus) PublishSnapshot(s timeline.Snapshot) {
	b.Publish(PositionChanged{Snapshot: s})
}

// Publish delivers m to all current subscribers.
func (b *Bus) Publish(m Message) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, m)
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	b.mu.Unlock()

	for {
		b.mu.Lock()
		if len(b.queue) == 0 || b.disposed {
			b.queue = nil
			b.draining = false
			b.mu.Unlock()
			return
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		targets := make([]subscriber, len(b.subs), len(b.subs)+1)
		copy(targets, b.subs)
		if b.seek != nil {
			targets = append(targets, *b.seek)
		}
		b.mu.Unlock()

		for _, s := range targets {
			s.fn(next)
		}
	}
}

// Len returns the number of subscribers, including the seek handler.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.subs)
	if b.seek != nil {
		n++
	}
	return n
}

// Dispose removes every subscriber and drops all later publishes. It is
// safe to call more than once.
func (b *Bus) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposed = true
	b.subs = nil
	b.seek = nil
	b.queue = nil
}

// Disposed reports whether Dispose has been called.
func (b *Bus) Disposed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposed
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}
