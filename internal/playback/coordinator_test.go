package playback

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jwulff/vibeo/internal/media"
	"github.com/jwulff/vibeo/internal/media/mock"
	"github.com/jwulff/vibeo/internal/observe"
	"github.com/jwulff/vibeo/internal/seekbus"
	"github.com/jwulff/vibeo/internal/timeline"
	"github.com/jwulff/vibeo/internal/timesource"
)

func scenarioIndex() *timeline.Index {
	s := timeline.Seconds
	return timeline.Build(
		[]timeline.RawTheme{
			{Name: "A", Start: s(0), End: s(10)},
			{Name: "B", Start: s(10), End: s(20)},
		},
		[]timeline.RawTranscript{
			{ID: "T1", Start: s(0), End: s(5)},
			{ID: "T2", Start: s(5), End: s(20)},
		},
	)
}

type harness struct {
	c      *Coordinator
	bus    *seekbus.Bus
	driver *mock.Driver
	gen    timesource.Generation
	reader *sdkmetric.ManualReader

	seeks  []seekbus.SeekRequest
	themes []seekbus.ThemeSelected
	snaps  []timeline.Snapshot
}

func newHarness(t *testing.T, duration float64) *harness {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	h := &harness{bus: seekbus.New(), driver: &mock.Driver{}, reader: reader}
	h.c, err = New(timesource.New(h.driver), h.bus, scenarioIndex(), WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.bus.OnSeek(func(r seekbus.SeekRequest) { h.seeks = append(h.seeks, r) })
	h.bus.OnThemeSelected(func(ts seekbus.ThemeSelected) { h.themes = append(h.themes, ts) })
	h.bus.OnSnapshot(func(s timeline.Snapshot) { h.snaps = append(h.snaps, s) })

	h.gen, err = h.c.Attach(media.Ref{SessionID: "s1", URL: "session.mp4"})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if duration > 0 {
		h.c.HandleMedia(h.gen, media.Event{Kind: media.LoadedMetadata, Value: duration})
	}
	return h
}

func (h *harness) tick(seconds float64) {
	h.c.HandleMedia(h.gen, media.Event{Kind: media.TimeUpdate, Value: seconds})
}

func (h *harness) elementSeeks() []mock.Call {
	return h.driver.Last().CallsOf("seek")
}

func TestNoFeedbackLoop(t *testing.T) {
	h := newHarness(t, 20)

	for i := 0; i < 1000; i++ {
		h.tick(float64(i) * 0.02)
	}

	if len(h.seeks) != 0 {
		t.Errorf("seek requests = %d, want 0", len(h.seeks))
	}
	if n := len(h.elementSeeks()); n != 0 {
		t.Errorf("element seeks = %d, want 0", n)
	}
	if len(h.snaps) != 1000 {
		t.Errorf("snapshots = %d, want 1000", len(h.snaps))
	}
}

func TestSeekRequestAppliedOnce(t *testing.T) {
	h := newHarness(t, 20)

	h.bus.PublishSeek(7, "transcript")

	seeks := h.elementSeeks()
	if len(seeks) != 1 || seeks[0].Value != 7 {
		t.Fatalf("element seeks = %+v, want one seek to 7", seeks)
	}
	if len(h.seeks) != 1 {
		t.Errorf("bus seeks = %d, want only the original request", len(h.seeks))
	}

	snap := h.c.Snapshot()
	if snap.Position != 7 || snap.SegmentName() != "A" || snap.Entry == nil || snap.Entry.ID != "T2" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSeekClampedThroughBus(t *testing.T) {
	h := newHarness(t, 20)

	h.bus.PublishSeek(500, "theme-timeline")
	h.bus.PublishSeek(-3, "theme-timeline")

	seeks := h.elementSeeks()
	if len(seeks) != 2 || seeks[0].Value != 20 || seeks[1].Value != 0 {
		t.Errorf("element seeks = %+v, want [20 0]", seeks)
	}
}

func TestSeekIdempotent(t *testing.T) {
	h := newHarness(t, 20)

	h.bus.PublishSeek(12, "test")
	first := h.c.Snapshot()
	h.bus.PublishSeek(12, "test")
	second := h.c.Snapshot()

	if first.Position != second.Position || first.SegmentName() != second.SegmentName() {
		t.Errorf("snapshots differ: %+v vs %+v", first, second)
	}
}

func TestBoundaryScenario(t *testing.T) {
	h := newHarness(t, 20)

	h.tick(10)
	snap := h.c.Snapshot()
	if snap.SegmentName() != "B" {
		t.Errorf("segment at 10 = %q, want B", snap.SegmentName())
	}
	if snap.Entry == nil || snap.Entry.ID != "T2" {
		t.Errorf("entry at 10 = %+v, want T2", snap.Entry)
	}
}

func TestThemeSelectedOnChangeOnly(t *testing.T) {
	h := newHarness(t, 30)

	h.tick(1)
	h.tick(2)
	h.tick(11)
	h.tick(12)
	h.tick(25)

	want := []seekbus.ThemeSelected{
		{Name: "A", Valid: true},
		{Name: "B", Valid: true},
		{Valid: false},
	}
	if len(h.themes) != len(want) {
		t.Fatalf("themes = %+v, want %+v", h.themes, want)
	}
	for i := range want {
		if h.themes[i] != want[i] {
			t.Errorf("themes[%d] = %+v, want %+v", i, h.themes[i], want[i])
		}
	}
}

func TestSkipToNextTheme(t *testing.T) {
	h := newHarness(t, 20)
	h.tick(3)
	h.themes = nil

	if !h.c.SkipToNextTheme() {
		t.Fatal("SkipToNextTheme = false, want true")
	}

	seeks := h.elementSeeks()
	if len(seeks) != 1 || seeks[0].Value != 10 {
		t.Errorf("element seeks = %+v, want seek to 10", seeks)
	}
	if len(h.themes) != 1 || h.themes[0].Name != "B" {
		t.Errorf("themes = %+v, want exactly B", h.themes)
	}
}

func TestSkipFromJustBeforeBoundary(t *testing.T) {
	h := newHarness(t, 20)
	h.tick(9.9999)

	h.c.SkipToNextTheme()

	if got := h.c.Snapshot().SegmentName(); got != "B" {
		t.Errorf("segment after skip = %q, want B", got)
	}
}

func TestSkipAtEndSeeksToDuration(t *testing.T) {
	h := newHarness(t, 25)
	h.tick(20)
	h.themes = nil

	if h.c.SkipToNextTheme() {
		t.Error("SkipToNextTheme = true at end of timeline")
	}

	seeks := h.elementSeeks()
	if len(seeks) != 1 || seeks[0].Value != 25 {
		t.Errorf("element seeks = %+v, want seek to duration 25", seeks)
	}
	if len(h.themes) == 0 || h.themes[len(h.themes)-1].Valid {
		t.Errorf("themes = %+v, want null theme last", h.themes)
	}
}

func TestStateTransitions(t *testing.T) {
	d := &mock.Driver{}
	bus := seekbus.New()
	c, err := New(timesource.New(d), bus, scenarioIndex())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.State() != Unattached {
		t.Errorf("initial state = %v", c.State())
	}

	gen, _ := c.Attach(media.Ref{URL: "v.mp4"})
	if c.State() != Loading {
		t.Errorf("after attach = %v, want loading", c.State())
	}
	c.HandleMedia(gen, media.Event{Kind: media.LoadedMetadata, Value: 20})
	if c.State() != Ready {
		t.Errorf("after metadata = %v, want ready", c.State())
	}
	c.Play()
	if c.State() != Playing {
		t.Errorf("after play = %v, want playing", c.State())
	}
	c.TogglePlay()
	if c.State() != Paused {
		t.Errorf("after toggle = %v, want paused", c.State())
	}
	c.HandleMedia(gen, media.Event{Kind: media.Played})
	if c.State() != Playing {
		t.Errorf("after native play = %v, want playing", c.State())
	}

	c.HandleMedia(gen, media.Event{Kind: media.Failed, Message: "stalled"})
	if c.State() != Error {
		t.Errorf("after failure = %v, want error", c.State())
	}
	var pe *media.PlaybackError
	if !errors.As(c.LastError(), &pe) || pe.Message != "stalled" {
		t.Errorf("LastError = %v, want PlaybackError", c.LastError())
	}

	c.Detach()
	if c.State() != Detached {
		t.Errorf("after detach = %v", c.State())
	}
	if _, err := c.Attach(media.Ref{URL: "v.mp4"}); !errors.Is(err, ErrDetached) {
		t.Errorf("Attach after detach err = %v, want ErrDetached", err)
	}
	if _, err := bus.HandleSeeks(func(seekbus.SeekRequest) {}); err != nil {
		t.Errorf("seek handler not released on detach: %v", err)
	}
}

func TestFailureWhileLoadingIsAttachError(t *testing.T) {
	h := newHarness(t, 0)

	h.c.HandleMedia(h.gen, media.Event{Kind: media.Failed, Message: "unrecognized file format"})

	var ae *media.MediaAttachError
	if !errors.As(h.c.LastError(), &ae) {
		t.Fatalf("LastError = %v, want MediaAttachError", h.c.LastError())
	}
	if ae.URL != "session.mp4" {
		t.Errorf("URL = %q", ae.URL)
	}
	if h.c.State() != Error {
		t.Errorf("state = %v, want error", h.c.State())
	}
}

func TestAttachFailure(t *testing.T) {
	c, err := New(timesource.New(&mock.Driver{OpenErr: errors.New("no such file")}), seekbus.New(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Attach(media.Ref{URL: "gone.mp4"})
	var ae *media.MediaAttachError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want MediaAttachError", err)
	}
	if c.State() != Error || c.LastError() == nil {
		t.Errorf("state = %v, LastError = %v", c.State(), c.LastError())
	}
}

func TestReattachRecoversFromError(t *testing.T) {
	h := newHarness(t, 20)
	h.c.HandleMedia(h.gen, media.Event{Kind: media.Failed, Message: "x"})

	gen, err := h.c.Attach(media.Ref{URL: "session.mp4"})
	if err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	if h.c.State() != Loading || h.c.LastError() != nil {
		t.Errorf("state = %v, LastError = %v", h.c.State(), h.c.LastError())
	}

	// late events from the first element are ignored
	h.c.HandleMedia(h.gen, media.Event{Kind: media.TimeUpdate, Value: 15})
	if h.c.Snapshot().Position != 0 {
		t.Errorf("stale event moved position to %v", h.c.Snapshot().Position)
	}
	h.c.HandleMedia(gen, media.Event{Kind: media.LoadedMetadata, Value: 20})
	if h.c.State() != Ready {
		t.Errorf("state = %v, want ready", h.c.State())
	}
}

func TestReattachPublishesResetSnapshot(t *testing.T) {
	h := newHarness(t, 20)
	h.tick(12)
	h.snaps, h.themes = nil, nil

	if _, err := h.c.Attach(media.Ref{SessionID: "s2", URL: "other.mp4"}); err != nil {
		t.Fatalf("re-attach: %v", err)
	}

	if len(h.snaps) != 1 {
		t.Fatalf("snapshots after re-attach = %d, want 1", len(h.snaps))
	}
	snap := h.snaps[0]
	if snap.Position != 0 || snap.SegmentName() != "A" || snap.Entry == nil || snap.Entry.ID != "T1" {
		t.Errorf("published snapshot = %+v, want position 0 in A/T1", snap)
	}
	if h.c.Snapshot().Position != 0 {
		t.Errorf("coordinator snapshot = %v, want 0", h.c.Snapshot().Position)
	}
	if len(h.themes) != 1 || h.themes[0] != (seekbus.ThemeSelected{Name: "A", Valid: true}) {
		t.Errorf("themes after re-attach = %+v, want A", h.themes)
	}
}

func TestSkipInErrorStateDoesNothing(t *testing.T) {
	h := newHarness(t, 20)
	h.tick(2)
	h.c.HandleMedia(h.gen, media.Event{Kind: media.Failed, Message: "stalled"})
	h.themes = nil

	if h.c.SkipToNextTheme() {
		t.Error("SkipToNextTheme = true in error state")
	}
	if n := len(h.elementSeeks()); n != 0 {
		t.Errorf("element seeks = %d, want 0", n)
	}
	if len(h.themes) != 0 {
		t.Errorf("themes = %+v, want none", h.themes)
	}
	if got := h.c.Snapshot().Position; got != 2 {
		t.Errorf("position = %v, want 2", got)
	}
}

func TestSecondCoordinatorOnSameBusFails(t *testing.T) {
	bus := seekbus.New()
	if _, err := New(timesource.New(&mock.Driver{}), bus, nil); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New(timesource.New(&mock.Driver{}), bus, nil); !errors.Is(err, seekbus.ErrSeekHandlerTaken) {
		t.Errorf("second New err = %v, want ErrSeekHandlerTaken", err)
	}
}

func TestSetIndexRepublishes(t *testing.T) {
	h := newHarness(t, 20)
	h.tick(5)
	before := len(h.snaps)

	s := timeline.Seconds
	h.c.SetIndex(timeline.Build([]timeline.RawTheme{{Name: "Z", Start: s(0), End: s(20)}}, nil))

	if len(h.snaps) != before+1 {
		t.Errorf("snapshots = %d, want %d", len(h.snaps), before+1)
	}
	if got := h.c.Snapshot().SegmentName(); got != "Z" {
		t.Errorf("segment = %q, want Z", got)
	}
	if got := h.themes[len(h.themes)-1]; got.Name != "Z" {
		t.Errorf("last theme = %+v, want Z", got)
	}
}

func TestVolumeAndMute(t *testing.T) {
	h := newHarness(t, 20)

	h.c.SetVolume(0.3)
	h.c.ToggleMute()
	if st := h.c.Playback(); !st.Muted || st.Volume != 0.3 {
		t.Errorf("playback = %+v", st)
	}
	h.c.ToggleMute()
	if h.c.Playback().Muted {
		t.Error("still muted after second toggle")
	}
}

func TestSeekMetricsBySource(t *testing.T) {
	h := newHarness(t, 20)
	h.bus.PublishSeek(1, "transcript")
	h.bus.PublishSeek(2, "citation")
	h.c.SkipToNextTheme()

	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "vibeo.seeks" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 3 {
		t.Errorf("seeks recorded = %d, want 3", total)
	}
}
