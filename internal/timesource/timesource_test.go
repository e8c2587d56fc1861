package timesource

import (
	"errors"
	"math"
	"testing"

	"github.com/jwulff/vibeo/internal/media"
	"github.com/jwulff/vibeo/internal/media/mock"
)

type recorder struct {
	positions []float64
	durations []float64
	playing   []bool
	errs      []*media.PlaybackError
}

func (r *recorder) listener() Listener {
	return Funcs{
		OnPosition: func(s float64) { r.positions = append(r.positions, s) },
		OnDuration: func(s float64) { r.durations = append(r.durations, s) },
		OnPlaying:  func(p bool) { r.playing = append(r.playing, p) },
		OnError:    func(err *media.PlaybackError) { r.errs = append(r.errs, err) },
	}
}

func attached(t *testing.T, duration float64) (*TimeSource, *mock.Driver, Generation, *recorder) {
	t.Helper()
	d := &mock.Driver{}
	ts := New(d)
	rec := &recorder{}
	ts.Subscribe(rec.listener())
	gen, err := ts.Attach(media.Ref{SessionID: "s", URL: "video.mp4"})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if duration > 0 {
		ts.Handle(gen, media.Event{Kind: media.LoadedMetadata, Value: duration})
	}
	return ts, d, gen, rec
}

func TestSeekClamps(t *testing.T) {
	ts, d, _, rec := attached(t, 60)

	ts.Seek(-5)
	ts.Seek(90)
	ts.Seek(math.NaN())
	ts.Seek(12.5)

	want := []float64{0, 60, 0, 12.5}
	if len(rec.positions) != len(want) {
		t.Fatalf("positions = %v, want %v", rec.positions, want)
	}
	for i := range want {
		if rec.positions[i] != want[i] {
			t.Errorf("positions[%d] = %v, want %v", i, rec.positions[i], want[i])
		}
	}
	seeks := d.Last().CallsOf("seek")
	if len(seeks) != 4 || seeks[3].Value != 12.5 {
		t.Errorf("element seeks = %+v", seeks)
	}
	if got := ts.State().Position; got != 12.5 {
		t.Errorf("Position = %v, want 12.5", got)
	}
}

func TestSeekTwiceIsIdempotent(t *testing.T) {
	ts, _, _, rec := attached(t, 60)

	ts.Seek(30)
	once := ts.State().Position
	ts.Seek(30)

	if ts.State().Position != once {
		t.Errorf("Position after second seek = %v, want %v", ts.State().Position, once)
	}
	if len(rec.positions) != 2 || math.Abs(rec.positions[0]-rec.positions[1]) > 1e-9 {
		t.Errorf("positions = %v, want two equal emissions", rec.positions)
	}
}

func TestSeekBeforeMetadataQueues(t *testing.T) {
	ts, d, gen, rec := attached(t, 0)

	ts.Seek(10)
	ts.Seek(25)

	if len(rec.positions) != 2 || rec.positions[0] != 0 || rec.positions[1] != 0 {
		t.Errorf("positions before load = %v, want current position twice", rec.positions)
	}
	if n := len(d.Last().CallsOf("seek")); n != 0 {
		t.Errorf("element seeks before load = %d, want 0", n)
	}

	ts.Handle(gen, media.Event{Kind: media.LoadedMetadata, Value: 20})

	seeks := d.Last().CallsOf("seek")
	if len(seeks) != 1 || seeks[0].Value != 20 {
		t.Errorf("queued seek = %+v, want last request clamped to 20", seeks)
	}
	if got := rec.positions[len(rec.positions)-1]; got != 20 {
		t.Errorf("last position = %v, want 20", got)
	}
	if len(rec.durations) != 1 || rec.durations[0] != 20 {
		t.Errorf("durations = %v", rec.durations)
	}
}

func TestTimeUpdateEmits(t *testing.T) {
	ts, _, gen, rec := attached(t, 60)

	for i := 1; i <= 5; i++ {
		ts.Handle(gen, media.Event{Kind: media.TimeUpdate, Value: float64(i)})
	}
	if len(rec.positions) != 5 || rec.positions[4] != 5 {
		t.Errorf("positions = %v", rec.positions)
	}
}

func TestStaleGenerationDropped(t *testing.T) {
	ts, d, first, rec := attached(t, 60)

	second, err := ts.Attach(media.Ref{URL: "other.mp4"})
	if err != nil {
		t.Fatalf("second Attach: %v", err)
	}
	if second == first {
		t.Fatal("generation did not advance")
	}
	if !d.Opened[0].Closed() {
		t.Error("previous element not closed")
	}

	if ts.Handle(first, media.Event{Kind: media.TimeUpdate, Value: 33}) {
		t.Error("stale event applied")
	}
	if len(rec.positions) != 0 {
		t.Errorf("positions = %v, want none from stale generation", rec.positions)
	}
	if _, err := ts.Next(first); !errors.Is(err, ErrStale) {
		t.Errorf("Next(stale) err = %v, want ErrStale", err)
	}
}

func TestAttachFailure(t *testing.T) {
	cause := errors.New("404")
	ts := New(&mock.Driver{OpenErr: cause})

	_, err := ts.Attach(media.Ref{URL: "missing.mp4"})
	var ae *media.MediaAttachError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want *MediaAttachError", err)
	}
	if ae.URL != "missing.mp4" || !errors.Is(err, cause) {
		t.Errorf("attach error = %+v", ae)
	}
}

func TestPlaybackErrorIsTerminal(t *testing.T) {
	ts, d, gen, rec := attached(t, 60)

	ts.Handle(gen, media.Event{Kind: media.Failed, Message: "decode error"})
	if len(rec.errs) != 1 || rec.errs[0].Message != "decode error" {
		t.Fatalf("errs = %+v", rec.errs)
	}
	if ts.Handle(gen, media.Event{Kind: media.TimeUpdate, Value: 5}) {
		t.Error("event applied after playback error")
	}
	before := len(rec.positions)
	ts.Seek(10)
	if n := len(d.Last().CallsOf("seek")); n != 0 {
		t.Errorf("seeks after error = %d, want 0", n)
	}
	if len(rec.positions) != before+1 || rec.positions[before] != 0 {
		t.Errorf("positions after dropped seek = %v, want current position 0 emitted", rec.positions[before:])
	}

	gen2, err := ts.Attach(media.Ref{URL: "video.mp4"})
	if err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	if !ts.Handle(gen2, media.Event{Kind: media.LoadedMetadata, Value: 60}) {
		t.Error("re-attach did not clear the error")
	}
}

func TestSetPlayingSwallowsFailure(t *testing.T) {
	d := &mock.Driver{PlayErr: errors.New("autoplay blocked")}
	ts := New(d)
	rec := &recorder{}
	ts.Subscribe(rec.listener())
	ts.Attach(media.Ref{URL: "v.mp4"})

	ts.SetPlaying(true)
	if !ts.State().Playing {
		t.Error("Playing = false after SetPlaying(true)")
	}
	if len(rec.playing) != 1 || !rec.playing[0] {
		t.Errorf("playing = %v", rec.playing)
	}
	ts.SetPlaying(true)
	if len(d.Last().CallsOf("play")) != 1 {
		t.Error("redundant SetPlaying should not re-command")
	}
}

func TestNativePlayPause(t *testing.T) {
	ts, _, gen, rec := attached(t, 60)

	ts.Handle(gen, media.Event{Kind: media.Played})
	ts.Handle(gen, media.Event{Kind: media.Played})
	ts.Handle(gen, media.Event{Kind: media.Paused})

	if len(rec.playing) != 2 || !rec.playing[0] || rec.playing[1] {
		t.Errorf("playing = %v, want [true false]", rec.playing)
	}
}

func TestVolumeAndMute(t *testing.T) {
	ts, d, _, _ := attached(t, 60)

	ts.SetVolume(1.7)
	if st := ts.State(); st.Volume != 1 || st.Muted {
		t.Errorf("state = %+v, want volume 1 unmuted", st)
	}
	ts.SetVolume(0)
	if !ts.State().Muted {
		t.Error("volume 0 should mute")
	}
	ts.SetVolume(0.4)
	if st := ts.State(); st.Muted || st.Volume != 0.4 {
		t.Errorf("state = %+v, want unmuted at 0.4", st)
	}
	ts.SetMuted(true)
	if st := ts.State(); !st.Muted || st.Volume != 0.4 {
		t.Errorf("state = %+v, want muted keeping volume", st)
	}

	mutes := d.Last().CallsOf("muted")
	if len(mutes) < 3 {
		t.Errorf("mute commands = %+v", mutes)
	}
}

func TestDetachReleasesListeners(t *testing.T) {
	ts, d, gen, rec := attached(t, 60)

	ts.Detach()
	if !d.Last().Closed() {
		t.Error("element not closed on detach")
	}
	ts.Handle(gen, media.Event{Kind: media.TimeUpdate, Value: 3})
	ts.Seek(4)
	if len(rec.positions) != 0 {
		t.Errorf("positions after detach = %v", rec.positions)
	}
}

func TestNextReadsCurrentElement(t *testing.T) {
	ts, d, gen, _ := attached(t, 0)

	d.Last().Emit(media.Event{Kind: media.TimeUpdate, Value: 2})
	ev, err := ts.Next(gen)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Kind != media.TimeUpdate || ev.Value != 2 {
		t.Errorf("event = %+v", ev)
	}
}
