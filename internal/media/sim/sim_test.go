package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/jwulff/vibeo/internal/media"
)

func next(t *testing.T, el media.Element) media.Event {
	t.Helper()
	ch := make(chan media.Event, 1)
	errc := make(chan error, 1)
	go func() {
		ev, err := el.Next()
		if err != nil {
			errc <- err
			return
		}
		ch <- ev
	}()
	select {
	case ev := <-ch:
		return ev
	case err := <-errc:
		t.Fatalf("Next: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return media.Event{}
}

func TestMetadataFirst(t *testing.T) {
	el, err := Driver{Duration: 30, Interval: time.Millisecond}.Open(media.Ref{URL: "sim://"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer el.Close()

	ev := next(t, el)
	if ev.Kind != media.LoadedMetadata || ev.Value != 30 {
		t.Errorf("first event = %+v, want loaded-metadata 30", ev)
	}
}

func TestPlayTicksForward(t *testing.T) {
	el, _ := Driver{Duration: 30, Interval: time.Millisecond}.Open(media.Ref{})
	defer el.Close()
	next(t, el)

	if err := el.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if ev := next(t, el); ev.Kind != media.Played {
		t.Fatalf("event = %v, want play", ev.Kind)
	}
	ev := next(t, el)
	if ev.Kind != media.TimeUpdate {
		t.Fatalf("event = %v, want time-update", ev.Kind)
	}
	if ev.Value < 0 || ev.Value > 30 {
		t.Errorf("position = %v, out of range", ev.Value)
	}
}

func TestSeekReportsPosition(t *testing.T) {
	el, _ := Driver{Duration: 30}.Open(media.Ref{})
	defer el.Close()
	next(t, el)

	el.Seek(12)
	ev := next(t, el)
	if ev.Kind != media.TimeUpdate || ev.Value != 12 {
		t.Errorf("event = %+v, want time-update 12", ev)
	}
}

func TestPlayToEndPauses(t *testing.T) {
	el, _ := Driver{Duration: 0.01, Interval: time.Millisecond}.Open(media.Ref{})
	defer el.Close()
	next(t, el)
	el.Play()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("never paused at end")
		default:
		}
		if ev := next(t, el); ev.Kind == media.Paused {
			return
		}
	}
}

func TestCloseUnblocksNext(t *testing.T) {
	el, _ := Driver{Duration: 5}.Open(media.Ref{})
	next(t, el)

	errc := make(chan error, 1)
	go func() {
		_, err := el.Next()
		errc <- err
	}()
	el.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, media.ErrClosed) {
			t.Errorf("err = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}
	if err := el.Play(); !errors.Is(err, media.ErrClosed) {
		t.Errorf("Play after Close = %v, want ErrClosed", err)
	}
}
