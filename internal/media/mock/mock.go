// Package mock provides test doubles for media.Driver and media.Element.
//
// Use Driver to hand out Elements and record every Open call; use Element to
// record control commands and to feed native events to whoever calls Next.
//
// Example:
//
//	d := &mock.Driver{}
//	el, _ := d.Open(media.Ref{URL: "file.mp4"})
//	d.Last().Emit(media.Event{Kind: media.LoadedMetadata, Value: 60})
package mock

import (
	"sync"

	"github.com/jwulff/vibeo/internal/media"
)

// Call records one control command sent to an Element.
type Call struct {
	// Method is one of "play", "pause", "seek", "volume", "muted".
	Method string
	// Value carries the seek target or volume; 1/0 for muted.
	Value float64
}

// Driver is a mock implementation of media.Driver.
type Driver struct {
	mu sync.Mutex

	// OpenErr, if non-nil, is returned from Open instead of an element.
	OpenErr error

	// PlayErr, if non-nil, is returned by Play on every element opened.
	PlayErr error

	// Opened records every element handed out, in order.
	Opened []*Element

	// Refs records the ref passed to every Open call, including failed ones.
	Refs []media.Ref
}

// Open records the call and returns a fresh Element unless OpenErr is set.
func (d *Driver) Open(ref media.Ref) (media.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Refs = append(d.Refs, ref)
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	el := NewElement()
	el.PlayErr = d.PlayErr
	d.Opened = append(d.Opened, el)
	return el, nil
}

// Last returns the most recently opened element, or nil.
func (d *Driver) Last() *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Opened) == 0 {
		return nil
	}
	return d.Opened[len(d.Opened)-1]
}

// Element is a mock implementation of media.Element.
type Element struct {
	mu     sync.Mutex
	events chan media.Event
	done   chan struct{}
	closed bool

	// PlayErr, if non-nil, is returned by Play.
	PlayErr error

	// Calls records every control command in order.
	Calls []Call
}

// NewElement returns an element with a buffered event queue.
func NewElement() *Element {
	return &Element{
		events: make(chan media.Event, 64),
		done:   make(chan struct{}),
	}
}

func (e *Element) record(method string, v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, Call{Method: method, Value: v})
}

// Play records the call.
func (e *Element) Play() error {
	e.record("play", 0)
	return e.PlayErr
}

// Pause records the call.
func (e *Element) Pause() error {
	e.record("pause", 0)
	return nil
}

// Seek records the call.
func (e *Element) Seek(seconds float64) error {
	e.record("seek", seconds)
	return nil
}

// SetVolume records the call.
func (e *Element) SetVolume(v float64) error {
	e.record("volume", v)
	return nil
}

// SetMuted records the call.
func (e *Element) SetMuted(muted bool) error {
	v := 0.0
	if muted {
		v = 1
	}
	e.record("muted", v)
	return nil
}

// Emit queues ev for the next call to Next. It is a no-op after Close.
func (e *Element) Emit(ev media.Event) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// Next returns the next emitted event, or media.ErrClosed after Close.
func (e *Element) Next() (media.Event, error) {
	select {
	case ev := <-e.events:
		return ev, nil
	case <-e.done:
		return media.Event{}, media.ErrClosed
	}
}

// Close marks the element closed and unblocks Next.
func (e *Element) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.done)
	}
	return nil
}

// Closed reports whether Close was called.
func (e *Element) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// CallsOf returns the recorded calls with the given method.
func (e *Element) CallsOf(method string) []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Call
	for _, c := range e.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}
