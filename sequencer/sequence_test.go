package sequencer_test

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/vsariola/stepseq"
	"github.com/vsariola/stepseq/event"
	"github.com/vsariola/stepseq/offline"
	"github.com/vsariola/stepseq/pool"
	"github.com/vsariola/stepseq/resample"
	"github.com/vsariola/stepseq/sequencer"
)

type recorder struct {
	events []event.Event
}

func testConfig() sequencer.Config {
	cfg := sequencer.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	// the tests render on the same goroutine that mutates, so commands are
	// always applied right away
	cfg.DetachedAfter = time.Nanosecond
	return cfg
}

func newSequence(t *testing.T, b stepseq.AudioBackend, cfg sequencer.Config) (*sequencer.Sequence, *event.Bus) {
	t.Helper()
	bus := event.NewBus(cfg.Logger)
	s, err := sequencer.New(b, bus, cfg)
	if err != nil {
		t.Fatalf("sequencer.New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, bus
}

func record(t *testing.T, s *sequencer.Sequence, bus *event.Bus, names ...string) *recorder {
	t.Helper()
	r := &recorder{}
	id := event.NewID()
	for _, name := range names {
		if _, err := bus.Subscribe(s.Subject(name), id, func(e event.Event) { r.events = append(r.events, e) }); err != nil {
			t.Fatalf("Subscribe(%s) failed: %v", name, err)
		}
	}
	return r
}

func (r *recorder) count(name string) int {
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func ramp(t *testing.T, frames int) *stepseq.Sample {
	t.Helper()
	data := make([]float32, frames)
	for i := range data {
		data[i] = float32(i+1) / float32(frames)
	}
	s, err := stepseq.NewSample("ramp", 1, 44100, data)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func constant(t *testing.T, frames int) *stepseq.Sample {
	t.Helper()
	data := make([]float32, frames)
	for i := range data {
		data[i] = 1
	}
	s, err := stepseq.NewSample("dc", 1, 44100, data)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// attackFrames is the declick ramp length the sequence derives from cfg.
func attackFrames(cfg sequencer.Config, framerate int) int {
	return int(cfg.MaskAttackDelay.Seconds() * float64(framerate))
}

// checkSmooth fails if the left channel of out jumps by more than one ramp
// step between two consecutive frames in [from, to).
func checkSmooth(t *testing.T, out []float32, from, to, attack int) {
	t.Helper()
	limit := 1/float64(attack) + 1e-6
	for i := max(from, 1); i < to; i++ {
		if d := math.Abs(float64(out[2*i] - out[2*i-2])); d > limit {
			t.Fatalf("discontinuity %v at frame %d (%v -> %v) exceeds %v", d, i, out[2*i-2], out[2*i], limit)
		}
	}
}

func TestBeatFrames(t *testing.T) {
	s, _ := newSequence(t, offline.New(44100, 512), testConfig())
	must(t, s.Resize(1, 16, 4, false))
	if got := s.BeatFrames(); got != 5512 {
		t.Errorf("expected 5512 frames per beat at 120 bpm, got %d", got)
	}
	for _, bpm := range []float64{0.01, 1, 60, 333.3, 1000} {
		must(t, s.SetBpm(bpm))
		if s.BeatFrames() <= 0 {
			t.Errorf("bpm %v: beat frames %d", bpm, s.BeatFrames())
		}
	}
	for _, bpm := range []float64{0, -1, 1000.5, math.NaN()} {
		if err := s.SetBpm(bpm); !errors.Is(err, sequencer.ErrParameterRejected) {
			t.Errorf("SetBpm(%v): expected ErrParameterRejected, got %v", bpm, err)
		}
	}
	if s.Bpm() != 1000 {
		t.Errorf("rejected bpm changed the tempo to %v", s.Bpm())
	}
}

func TestBeatBoundarySplitsBlock(t *testing.T) {
	b := offline.New(44100, 1024)
	s, bus := newSequence(t, b, testConfig())
	must(t, s.Resize(1, 4, 4, false))
	must(t, s.SetBeat(0, 0, true))
	must(t, s.SetBeat(0, 1, true))
	smp := ramp(t, 20000)
	must(t, s.SetSample(0, smp))
	must(t, s.Enable())
	must(t, s.Start())
	b.Render(5000)
	s.DispatchNotifications()
	r := record(t, s, bus, "beat-on", "beat-off")
	out := b.Render(1024)
	s.DispatchNotifications()
	if len(r.events) != 2 {
		t.Fatalf("expected one beat-off and one beat-on, got %+v", r.events)
	}
	if e := r.events[0]; e.Name != "beat-off" || e.Track != 0 || e.Beat != 0 {
		t.Errorf("expected beat-off of beat 0 first, got %+v", e)
	}
	if e := r.events[1]; e.Name != "beat-on" || e.Track != 0 || e.Beat != 1 {
		t.Errorf("expected beat-on of beat 1, got %+v", e)
	}
	// 512 frames still belong to beat 0, then the sample restarts
	if got, want := out[2*511], float32(5512)/20000; math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("last frame of the old beat: got %v, want %v", got, want)
	}
	if got, want := out[2*512], float32(1)/20000; math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("first frame of the new beat: got %v, want %v", got, want)
	}
	if out[2*512+1] != out[2*512] {
		t.Error("a mono sample should play on both channels")
	}
}

func TestSoloPrecedence(t *testing.T) {
	b := offline.New(44100, 256)
	s, bus := newSequence(t, b, testConfig())
	must(t, s.Resize(3, 4, 4, false))
	for i := 0; i < 3; i++ {
		must(t, s.SetBeat(i, 0, true))
	}
	must(t, s.Solo(1, true))
	must(t, s.Mute(1, true))
	r := record(t, s, bus, "beat-on")
	must(t, s.Enable())
	must(t, s.Start())
	b.Render(100)
	s.DispatchNotifications()
	if len(r.events) != 1 || r.events[0].Track != 1 {
		t.Fatalf("expected beat-on for the solo track only, got %+v", r.events)
	}
	if l, _ := s.Level(1); l != 1 {
		t.Errorf("an empty track with its beat on should meter 1, got %v", l)
	}
	if l, _ := s.Level(0); l != 0 {
		t.Errorf("a track silenced by solo mode should meter 0, got %v", l)
	}
}

func TestMuteIsEdgeTriggered(t *testing.T) {
	s, bus := newSequence(t, offline.New(44100, 256), testConfig())
	must(t, s.Resize(2, 4, 4, false))
	r := record(t, s, bus, "track-mute-changed")
	must(t, s.Mute(0, true))
	must(t, s.Mute(0, true))
	s.DispatchNotifications()
	if len(r.events) != 1 || !r.events[0].Flag || r.events[0].Track != 0 {
		t.Fatalf("expected exactly one mute notification, got %+v", r.events)
	}
	if m, _ := s.Muted(0); !m {
		t.Error("track should be muted")
	}
	must(t, s.Mute(0, false))
	s.DispatchNotifications()
	if r.count("track-mute-changed") != 2 {
		t.Errorf("unmuting should notify once more, got %d", len(r.events))
	}
}

func TestVolumeRoundTrip(t *testing.T) {
	s, bus := newSequence(t, offline.New(44100, 256), testConfig())
	must(t, s.Resize(1, 4, 4, false))
	r := record(t, s, bus, "track-volume-changed")
	for _, c := range []struct{ in, want float64 }{
		{-6, -6},
		{0, 0},
		{12.5, 12.5},
		{stepseq.DBMax + 30, stepseq.DBMax},
		{stepseq.DBMin - 30, stepseq.DBMin},
	} {
		must(t, s.SetVolumeDB(0, c.in))
		got, err := s.VolumeDB(0)
		if err != nil || math.Abs(got-c.want) > 1e-9 {
			t.Errorf("SetVolumeDB(%v): VolumeDB() = %v, %v; want %v", c.in, got, err, c.want)
		}
	}
	must(t, s.SetVolumeDB(0, -6))
	must(t, s.MultiplyVolume(0, 2))
	if got, _ := s.VolumeDB(0); math.Abs(got-(-6+20*math.Log10(2))) > 1e-9 {
		t.Errorf("MultiplyVolume(2) after -6 dB: got %v dB", got)
	}
	if err := s.MultiplyVolume(0, 0); !errors.Is(err, sequencer.ErrParameterRejected) {
		t.Errorf("expected a zero factor to be rejected, got %v", err)
	}
	s.DispatchNotifications()
	if len(r.events) == 0 {
		t.Error("volume changes should be notified")
	}
}

func TestMaskDeclick(t *testing.T) {
	b := offline.New(44100, 256)
	cfg := testConfig()
	s, _ := newSequence(t, b, cfg)
	must(t, s.Resize(1, 4, 4, false))
	must(t, s.SetBeat(0, 0, true))
	must(t, s.SetSmoothing(0, true))
	must(t, s.SetSample(0, constant(t, 44100)))
	must(t, s.EnableMask(0))
	must(t, s.Enable())
	must(t, s.Start())
	var out []float32
	out = append(out, b.Render(1000)...)
	must(t, s.SetMaskBeat(0, 0, false))
	out = append(out, b.Render(2000)...)
	if out[2*2999] != 0 {
		t.Errorf("masked beat should have faded out, got %v", out[2*2999])
	}
	must(t, s.SetMaskBeat(0, 0, true))
	out = append(out, b.Render(2000)...)
	if out[2*4999] != 1 {
		t.Errorf("unmasked beat should have faded back in, got %v", out[2*4999])
	}
	checkSmooth(t, out, 1, len(out)/2, attackFrames(cfg, 44100))
}

func TestChannelBackpressure(t *testing.T) {
	b := offline.New(44100, 64)
	cfg := testConfig()
	cfg.CommandCapacity = 1
	cfg.SendTimeout = 20 * time.Millisecond
	cfg.AckTimeout = 20 * time.Millisecond
	cfg.DetachedAfter = time.Hour
	s, bus := newSequence(t, b, cfg)
	r := record(t, s, bus, "bpm-changed")
	b.Render(64) // the audio callback is now considered running
	if err := s.SetBpm(100); !errors.Is(err, sequencer.ErrAckTimeout) {
		t.Fatalf("expected ErrAckTimeout with no callback running, got %v", err)
	}
	if err := s.SetBpm(110); !errors.Is(err, sequencer.ErrChannelFull) {
		t.Fatalf("expected ErrChannelFull, got %v", err)
	}
	if s.Bpm() != 100 {
		t.Errorf("the queued bpm should be mirrored, got %v", s.Bpm())
	}
	b.Render(64)
	s.DispatchNotifications()
	if len(r.events) != 1 || r.events[0].Value != 100 {
		t.Errorf("expected the queued command to arrive intact, got %+v", r.events)
	}
}

func TestStructuralRollback(t *testing.T) {
	b := offline.NewLimited(44100, 256, 4)
	s, _ := newSequence(t, b, testConfig())
	must(t, s.Resize(2, 8, 4, false))
	must(t, s.SetBeat(1, 3, true))
	err := s.Resize(3, 16, 4, false)
	var serr *sequencer.StructuralError
	if !errors.As(err, &serr) || !errors.Is(err, stepseq.ErrTooManyPorts) {
		t.Fatalf("expected a StructuralError wrapping ErrTooManyPorts, got %v", err)
	}
	if s.Err() == nil {
		t.Error("the failure should be recorded as the last error")
	}
	if s.TracksNum() != 2 || s.BeatsNum() != 8 || b.NumPorts() != 4 {
		t.Errorf("resize was not rolled back: %d tracks, %d beats, %d ports", s.TracksNum(), s.BeatsNum(), b.NumPorts())
	}
	if on, _ := s.Beat(1, 3); !on {
		t.Error("pattern lost after rollback")
	}
	must(t, s.RemoveTrack(0))
	if b.NumPorts() != 2 {
		t.Errorf("removed track should release its ports, %d left", b.NumPorts())
	}
	if on, _ := s.Beat(0, 3); !on {
		t.Error("the remaining track should have moved up")
	}
	if _, err := s.AddTrack("snare"); err != nil {
		t.Fatalf("AddTrack after freeing ports failed: %v", err)
	}
	if name, _ := s.TrackName(1); name != "snare" {
		t.Errorf("expected the new track to be named snare, got %q", name)
	}
}

func TestDetachedServicing(t *testing.T) {
	cfg := testConfig()
	cfg.DetachedAfter = 100 * time.Millisecond
	cfg.AckTimeout = 5 * time.Second
	s, _ := newSequence(t, offline.New(44100, 256), cfg)
	start := time.Now()
	must(t, s.Resize(4, 16, 4, false))
	must(t, s.SetBpm(140))
	must(t, s.SetBeat(2, 5, true))
	must(t, s.SwapTracks(1, 2))
	must(t, s.Enable())
	if d := time.Since(start); d > time.Second {
		t.Errorf("mutations without an audio callback took %v", d)
	}
	if on, _ := s.Beat(1, 5); !on {
		t.Error("swap did not move the pattern")
	}
}

func TestResizeDuplicatesPattern(t *testing.T) {
	s, _ := newSequence(t, offline.New(44100, 256), testConfig())
	must(t, s.Resize(1, 4, 4, false))
	must(t, s.SetBeat(0, 1, true))
	must(t, s.EnableMask(0))
	must(t, s.SetMaskBeat(0, 1, false))
	must(t, s.Resize(1, 8, 4, true))
	for b, want := range []bool{false, true, false, false, false, true, false, false} {
		if on, _ := s.Beat(0, b); on != want {
			t.Errorf("beat %d: got %v, want %v", b, on, want)
		}
	}
	if on, _ := s.MaskBeat(0, 5); on {
		t.Error("mask should be tiled along with the pattern")
	}
	must(t, s.Resize(1, 12, 4, false))
	if on, _ := s.Beat(0, 9); on {
		t.Error("growing without duplicate should add empty beats")
	}
	if err := s.SetMaskBeat(0, 42, true); !errors.Is(err, sequencer.ErrParameterRejected) {
		t.Errorf("expected out of range beat to be rejected, got %v", err)
	}
	must(t, s.DisableMask(0))
	if err := s.SetMaskBeat(0, 1, true); !errors.Is(err, sequencer.ErrParameterRejected) {
		t.Errorf("expected SetMaskBeat without a mask to be rejected, got %v", err)
	}
}

func TestNonLoopingEnd(t *testing.T) {
	b := offline.New(1000, 64)
	s, bus := newSequence(t, b, testConfig())
	must(t, s.Resize(1, 2, 1, false))
	must(t, s.SetBpm(600)) // 100 frames per beat
	must(t, s.SetLooping(false))
	must(t, s.SetBeat(0, 0, true))
	r := record(t, s, bus, "ended", "transport-changed", "beat-off")
	must(t, s.Enable())
	must(t, s.Start())
	b.Render(250)
	b.Render(250)
	s.DispatchNotifications()
	if r.count("ended") != 1 {
		t.Errorf("expected one ended event, got %+v", r.events)
	}
	if r.count("beat-off") != 1 {
		t.Errorf("expected beat 0 to be released once, got %+v", r.events)
	}
	last := r.events[len(r.events)-1]
	if last.Name != "transport-changed" || last.Flag {
		t.Errorf("expected the transport to stop at the end, got %+v", last)
	}
}

func TestSampleReferences(t *testing.T) {
	b := offline.New(44100, 256)
	s, _ := newSequence(t, b, testConfig())
	must(t, s.Resize(2, 4, 4, false))
	smp := constant(t, 100)
	must(t, s.SetSample(0, smp))
	must(t, s.SetSample(1, smp))
	if smp.Refs() != 3 {
		t.Errorf("expected 3 references, got %d", smp.Refs())
	}
	must(t, s.SetSample(1, nil))
	if smp.Refs() != 2 {
		t.Errorf("expected 2 references after clearing a track, got %d", smp.Refs())
	}
	must(t, s.Close())
	if smp.Refs() != 1 || b.NumPorts() != 0 {
		t.Errorf("close should release everything: %d references, %d ports", smp.Refs(), b.NumPorts())
	}
	if err := s.SetBpm(90); !errors.Is(err, sequencer.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestPitchRatio(t *testing.T) {
	b := offline.New(44100, 256)
	s, bus := newSequence(t, b, testConfig())
	must(t, s.Resize(1, 1, 1, false))
	must(t, s.SetBpm(1)) // one long beat
	must(t, s.SetBeat(0, 0, true))
	must(t, s.SetSample(0, ramp(t, 44100)))
	r := record(t, s, bus, "track-pitch-changed")
	must(t, s.SetPitch(0, 12))
	must(t, s.Enable())
	must(t, s.Start())
	out := b.Render(100)
	s.DispatchNotifications()
	if len(r.events) != 1 || r.events[0].Value != 12 {
		t.Errorf("expected one pitch notification, got %+v", r.events)
	}
	// an octave up reads two input frames per output frame
	if got, want := out[2*10], float32(21)/44100; math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("frame 10: got %v, want %v", got, want)
	}
}

func TestPumpOnPool(t *testing.T) {
	p := pool.New(1, nil)
	defer p.Close()
	s, bus := newSequence(t, offline.New(44100, 256), testConfig())
	got := make(chan event.Event, 1)
	if _, err := bus.Subscribe(s.Subject("looping-changed"), event.NewID(), func(e event.Event) { got <- e }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cancel, err := s.AttachPump(p, time.Millisecond)
	if err != nil {
		t.Fatalf("AttachPump failed: %v", err)
	}
	defer cancel()
	must(t, s.SetLooping(false))
	select {
	case e := <-got:
		if e.Flag || e.Source != s.Source() {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("the pump never delivered the notification")
	}
}

func TestSmoothingReleasesBeforeRetrigger(t *testing.T) {
	b := offline.New(44100, 256)
	cfg := testConfig()
	s, _ := newSequence(t, b, cfg)
	must(t, s.Resize(1, 4, 4, false))
	for i := 0; i < 4; i++ {
		must(t, s.SetBeat(0, i, true))
	}
	must(t, s.SetSmoothing(0, true))
	must(t, s.SetSample(0, constant(t, 44100)))
	must(t, s.Enable())
	must(t, s.Start())
	// the beat ends 136 frames into the last block, well inside the ramp
	out := b.Render(5522)
	attack := attackFrames(cfg, 44100)
	if got := out[2*(5512-attack-1)]; got != 1 {
		t.Errorf("the release should start %d frames before the retrigger, got %v before it", attack, got)
	}
	if got := out[2*(5512-attack)]; got >= 1 {
		t.Errorf("the release did not start on time, got %v", got)
	}
	if got := out[2*5511]; got > 1e-3 {
		t.Errorf("the ringing sample should have faded out before the retrigger, got %v", got)
	}
	if got := out[2*5512]; got != 1 {
		t.Errorf("the retriggered sample should start at full level, got %v", got)
	}
	checkSmooth(t, out, 1, 5512, attack)
}

func TestMaskedRetriggerFadesOut(t *testing.T) {
	b := offline.New(44100, 256)
	cfg := testConfig()
	s, bus := newSequence(t, b, cfg)
	must(t, s.Resize(1, 4, 4, false))
	must(t, s.SetBeat(0, 0, true))
	must(t, s.SetBeat(0, 1, true))
	must(t, s.EnableMask(0))
	must(t, s.SetMaskBeat(0, 1, false))
	must(t, s.SetSample(0, constant(t, 44100)))
	r := record(t, s, bus, "beat-on")
	must(t, s.Enable())
	must(t, s.Start())
	out := b.Render(8000)
	s.DispatchNotifications()
	attack := attackFrames(cfg, 44100)
	if got := out[2*(5512-attack-1)]; got != 1 {
		t.Errorf("the audible beat should play at full level until the release, got %v", got)
	}
	if got := out[2*5511]; got > 1e-3 {
		t.Errorf("the sound should have faded out before the masked beat, got %v", got)
	}
	if got := out[2*6000]; got != 0 {
		t.Errorf("the masked beat should be silent, got %v", got)
	}
	checkSmooth(t, out, 1, 8000, attack)
	if len(r.events) != 1 || r.events[0].Beat != 0 {
		t.Errorf("expected beat-on for the audible beat only, got %+v", r.events)
	}
}

func TestNonLoopingEndFadesOut(t *testing.T) {
	b := offline.New(44100, 256)
	cfg := testConfig()
	s, bus := newSequence(t, b, cfg)
	must(t, s.Resize(1, 2, 4, false))
	must(t, s.SetLooping(false))
	must(t, s.SetBeat(0, 0, true))
	must(t, s.SetSmoothing(0, true))
	must(t, s.SetSample(0, constant(t, 44100)))
	r := record(t, s, bus, "ended")
	must(t, s.Enable())
	must(t, s.Start())
	out := b.Render(12000)
	s.DispatchNotifications()
	if r.count("ended") != 1 {
		t.Fatalf("expected the song to end once, got %+v", r.events)
	}
	attack := attackFrames(cfg, 44100)
	end := 2 * 5512
	if got := out[2*(end-attack-1)]; got != 1 {
		t.Errorf("the sample should ring at full level until the release, got %v", got)
	}
	if got := out[2*(end-1)]; got > 1e-3 {
		t.Errorf("the sample should have faded out at the end, got %v", got)
	}
	for i := end; i < 12000; i++ {
		if out[2*i] != 0 {
			t.Fatalf("frame %d after the end: got %v, want silence", i, out[2*i])
		}
	}
	checkSmooth(t, out, 1, 12000, attack)
}

func TestTransportAware(t *testing.T) {
	b := offline.New(44100, 256)
	s, bus := newSequence(t, b, testConfig())
	must(t, s.Resize(1, 4, 4, false))
	r := record(t, s, bus, "transport-changed")
	must(t, s.SetTransport(true, false))
	if aware, query := s.Transport(); !aware || query {
		t.Errorf("Transport() = %v, %v", aware, query)
	}
	must(t, s.Start())
	if !b.IsStarted() {
		t.Error("Start should start the backend")
	}
	b.Render(1000)
	must(t, s.Stop())
	if b.IsStarted() {
		t.Error("Stop should stop the backend")
	}
	if b.Position() != 1000 {
		t.Errorf("expected the backend at frame 1000, got %d", b.Position())
	}
	must(t, s.Rewind())
	if b.Position() != 0 {
		t.Errorf("Rewind should seek the backend to 0, got %d", b.Position())
	}
	s.DispatchNotifications()
	if len(r.events) != 3 || !r.events[1].Flag || r.events[2].Flag {
		t.Errorf("expected mode change, start and stop, got %+v", r.events)
	}
}

func TestTransportQueryFollowsBackend(t *testing.T) {
	b := offline.New(44100, 256)
	s, bus := newSequence(t, b, testConfig())
	must(t, s.Resize(1, 4, 4, false))
	must(t, s.SetBeat(0, 2, true))
	must(t, s.SetTransport(false, true))
	must(t, s.Enable())
	r := record(t, s, bus, "beat-on")
	b.Render(256)
	s.DispatchNotifications()
	if len(r.events) != 0 {
		t.Fatalf("nothing should play while the backend is stopped, got %+v", r.events)
	}
	must(t, b.Seek(2*uint64(s.BeatFrames())))
	must(t, b.Start())
	b.Render(256)
	s.DispatchNotifications()
	if len(r.events) != 1 || r.events[0].Beat != 2 {
		t.Fatalf("expected beat-on for beat 2 at the backend position, got %+v", r.events)
	}
	if s.CurrentBeat() != 2 {
		t.Errorf("expected current beat 2, got %d", s.CurrentBeat())
	}
}

func TestLockedTrackIsSkipped(t *testing.T) {
	b := offline.New(44100, 256)
	s, bus := newSequence(t, b, testConfig())
	must(t, s.Resize(2, 4, 4, false))
	smp := constant(t, 44100)
	for i := 0; i < 2; i++ {
		must(t, s.SetBeat(i, 0, true))
		must(t, s.SetSample(i, smp))
	}
	must(t, s.LockTrack(0))
	r := record(t, s, bus, "beat-on")
	must(t, s.Enable())
	must(t, s.Start())
	out := b.Render(100)
	s.DispatchNotifications()
	if len(r.events) != 1 || r.events[0].Track != 1 {
		t.Errorf("expected beat-on for the unlocked track only, got %+v", r.events)
	}
	if out[2*50] != 1 {
		t.Errorf("only the unlocked track should sound, got %v", out[2*50])
	}
	if l, _ := s.Level(0); l != 0 {
		t.Errorf("a locked track should not meter, got %v", l)
	}
	must(t, s.UnlockTrack(0))
	must(t, s.Rewind())
	out = b.Render(100)
	if out[2*50] != 2 {
		t.Errorf("both tracks should sound after unlocking, got %v", out[2*50])
	}
}

func TestSwapTracksNotifiesReordered(t *testing.T) {
	s, bus := newSequence(t, offline.New(44100, 256), testConfig())
	must(t, s.Resize(3, 4, 4, false))
	must(t, s.SetTrackName(0, "kick"))
	must(t, s.SetTrackName(2, "hat"))
	r := record(t, s, bus, "reordered")
	must(t, s.SwapTracks(0, 2))
	must(t, s.SwapTracks(1, 1))
	s.DispatchNotifications()
	if len(r.events) != 1 || r.events[0].Track != 0 || r.events[0].Beat != 2 {
		t.Fatalf("expected one reordered event for tracks 0 and 2, got %+v", r.events)
	}
	if name, _ := s.TrackName(0); name != "hat" {
		t.Errorf("expected hat first, got %q", name)
	}
	if name, _ := s.TrackName(2); name != "kick" {
		t.Errorf("expected kick last, got %q", name)
	}
	if err := s.SwapTracks(0, 3); !errors.Is(err, sequencer.ErrParameterRejected) {
		t.Errorf("expected ErrParameterRejected for a missing track, got %v", err)
	}
}

func TestSetResamplerType(t *testing.T) {
	b := offline.New(44100, 256)
	s, _ := newSequence(t, b, testConfig())
	must(t, s.Resize(1, 1, 1, false))
	must(t, s.SetBpm(1))
	must(t, s.SetBeat(0, 0, true))
	smp := constant(t, 44100)
	must(t, s.SetSample(0, smp))
	// without libsamplerate the track falls back to the linear resampler
	must(t, s.SetResamplerType(resample.SincType))
	if s.ResamplerType() != resample.SincType {
		t.Errorf("expected sinc, got %v", s.ResamplerType())
	}
	if smp.Refs() != 2 {
		t.Errorf("expected 2 references after switching resamplers, got %d", smp.Refs())
	}
	if err := s.SetResamplerType(resample.NumTypes); !errors.Is(err, sequencer.ErrParameterRejected) {
		t.Errorf("expected an invalid type to be rejected, got %v", err)
	}
	must(t, s.SetResamplerType(resample.LinearType))
	must(t, s.Enable())
	must(t, s.Start())
	out := b.Render(100)
	if out[2*50] != 1 {
		t.Errorf("the sample should play through the new resampler, got %v", out[2*50])
	}
}
