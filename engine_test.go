package drumkit

import (
	"bytes"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestEngine(t testing.TB, opts ...Option) (*Engine, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	opts = append([]Option{WithLogger(log.New(logs, "", 0))}, opts...)
	e, err := New(48000, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e, logs
}

func constant(frames int, v float32) []float32 {
	out := make([]float32, frames)
	for i := range out {
		out[i] = v
	}
	return out
}

func singleLayerPad(sampleID string) PadSettings {
	ps := DefaultPadSettings()
	ps.Layers = []Layer{{SampleID: sampleID, Enabled: true}}
	return ps
}

// onsets returns the frames where the left channel goes from silent to
// sounding.
func onsets(buf []float32, channels int) []int {
	var out []int
	prev := float32(0)
	for f := 0; f*channels < len(buf); f++ {
		v := buf[f*channels]
		if v != 0 && prev == 0 {
			out = append(out, f)
		}
		prev = v
	}
	return out
}

func TestNewRejectsBadSampleRate(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestMasterVolumeRuntimeAPI(t *testing.T) {
	e, _ := newTestEngine(t)
	if got := e.MasterVolume(); got != 1 {
		t.Fatalf("default master volume = %v, want 1", got)
	}
	e.SetMasterVolume(0.35)
	if got := e.MasterVolume(); got != 0.35 {
		t.Fatalf("master volume = %v, want 0.35", got)
	}
	e.SetMasterVolume(-2)
	if got := e.MasterVolume(); got != 0 {
		t.Fatalf("master volume should clamp to 0, got %v", got)
	}
}

func TestOneSecondSampleEndToEnd(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.LoadSample("tone", 1, 48000, constant(48000, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.TriggerPadSample(ManualTrigger{SampleID: "tone", Velocity: 127, Volume: 1}); err != nil {
		t.Fatal(err)
	}
	if e.ActiveVoices() != 1 {
		t.Fatalf("active voices = %d, want 1", e.ActiveVoices())
	}

	const block = 960
	buf := make([]float32, block*2)
	nonZero := 0
	for pos := 0; pos < 48000+5*block; pos += block {
		if res := e.Render(buf, block, 2); res != Continue {
			t.Fatalf("render returned %v", res)
		}
		for f := 0; f < block; f++ {
			if buf[2*f] != 0 || buf[2*f+1] != 0 {
				nonZero++
			}
			if buf[2*f] != buf[2*f+1] {
				t.Fatalf("centre pan produced unequal channels at frame %d", pos+f)
			}
		}
		if pos+block == 48000 && e.ActiveVoices() != 0 {
			t.Fatalf("voice still active at frame 48000")
		}
	}
	if nonZero != 48000 {
		t.Fatalf("non-zero frames = %d, want 48000", nonZero)
	}
	if e.FrameClock() != 48000+5*block {
		t.Fatalf("frame clock = %d", e.FrameClock())
	}
}

func TestMetronomeCadence(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.LoadSample("click", 1, 48000, constant(100, 1)); err != nil {
		t.Fatal(err)
	}
	if err := e.SetMetronomeState(true, 120, 4, 4, "click", ""); err != nil {
		t.Fatal(err)
	}
	out, err := e.RenderOffline(5*48000, 960, 2)
	if err != nil {
		t.Fatal(err)
	}
	got := onsets(out, 2)
	if len(got) != 10 {
		t.Fatalf("clicks = %d (%v), want 10", len(got), got)
	}
	for i, f := range got {
		if f != i*24000 {
			t.Errorf("click %d at frame %d, want %d", i, f, i*24000)
		}
	}
}

func TestMetronomeAccentUsesPrimarySample(t *testing.T) {
	e, _ := newTestEngine(t)
	_ = e.LoadSample("hi", 1, 48000, constant(10, 1))
	_ = e.LoadSample("lo", 1, 48000, constant(10, 0.5))
	_ = e.SetMetronomeState(true, 120, 3, 4, "hi", "lo")
	out, _ := e.RenderOffline(4*24000, 512, 1)
	accent := []bool{true, false, false, true}
	for beat, primary := range accent {
		// mono sum of a centre-panned voice is gain * cos(pi/4)
		got := out[beat*24000]
		if got <= 0 || primary != (got > 0.6) {
			t.Errorf("beat %d level %v, primary=%v", beat, got, primary)
		}
	}
}

func TestInvalidMetronomeTempoIsNoOp(t *testing.T) {
	e, logs := newTestEngine(t)
	_ = e.SetMetronomeState(true, 100, 4, 4, "click", "")
	err := e.SetMetronomeState(true, 0, 4, 4, "click", "")
	if errors.Cause(err) != ErrInvalidTempo {
		t.Fatalf("err = %v, want ErrInvalidTempo", err)
	}
	if got := e.MetronomeState().BPM; got != 100 {
		t.Fatalf("bpm = %v, want previous 100", got)
	}
	if !strings.Contains(logs.String(), "invalid tempo") {
		t.Fatalf("missing log line, got %q", logs.String())
	}
}

func TestSequencerSpawnsPadVoices(t *testing.T) {
	e, _ := newTestEngine(t)
	_ = e.LoadSample("kick", 1, 48000, constant(200, 1))
	if err := e.ConfigurePad("A1", singleLayerPad("kick")); err != nil {
		t.Fatal(err)
	}
	seq := &Sequence{
		BPM: 120, PPQN: 24, Numerator: 4, Denominator: 4, BarLength: 1,
		Tracks: map[string][]Event{"drums": {
			{StartTick: 0, PadID: "A1", Velocity: 127},
			{StartTick: 24, PadID: "A1", Velocity: 127},
		}},
	}
	if err := e.LoadSequence(seq); err != nil {
		t.Fatal(err)
	}
	if err := e.PlaySequence(); err != nil {
		t.Fatal(err)
	}
	out, err := e.RenderOffline(48000, 960, 2)
	if err != nil {
		t.Fatal(err)
	}
	got := onsets(out, 2)
	if len(got) != 2 {
		t.Fatalf("onsets = %v, want 2", got)
	}
	if got[0] != 0 || got[1] < 23999 || got[1] > 24001 {
		t.Fatalf("onsets = %v, want [0 24000]", got)
	}
	if e.Playhead() < 47 || e.Playhead() > 48 {
		t.Fatalf("playhead = %d after one second", e.Playhead())
	}
}

func TestMissingPadOrSampleIsSkipped(t *testing.T) {
	e, logs := newTestEngine(t)
	_ = e.ConfigurePad("empty", singleLayerPad("nowhere"))
	_ = e.LoadSequence(&Sequence{
		BPM: 120, PPQN: 24, Numerator: 4, Denominator: 4, BarLength: 1,
		Tracks: map[string][]Event{"t": {
			{StartTick: 0, PadID: "ghost", Velocity: 100},
			{StartTick: 0, PadID: "empty", Velocity: 100},
		}},
	})
	_ = e.PlaySequence()
	out, err := e.RenderOffline(4800, 480, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %v, want silence", i, v)
		}
	}
	if e.ActiveVoices() != 0 {
		t.Fatalf("active voices = %d", e.ActiveVoices())
	}
	_ = e.Close()
	l := logs.String()
	if !strings.Contains(l, `unknown pad "ghost"`) || !strings.Contains(l, `unloaded sample "nowhere"`) {
		t.Fatalf("expected render warnings in log, got %q", l)
	}
}

func TestZeroFramesAndFailedStream(t *testing.T) {
	e, _ := newTestEngine(t)
	buf := constant(64, 1)
	if res := e.Render(buf, 0, 2); res != Continue {
		t.Fatalf("zero frames returned %v", res)
	}
	e.MarkStreamFailed(errors.New("device unplugged"))
	if e.Initialized() {
		t.Fatal("engine still initialized after stream failure")
	}
	if res := e.Render(buf, 32, 2); res != Stop {
		t.Fatalf("render after failure returned %v, want Stop", res)
	}
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d = %v, want zeroed buffer", i, v)
		}
	}
	if err := e.Start(); errors.Cause(err) != ErrNotInitialized {
		t.Fatalf("Start after failure = %v, want ErrNotInitialized", err)
	}
	if err := e.Reinitialize(); err != nil {
		t.Fatal(err)
	}
	if res := e.Render(buf, 32, 2); res != Continue {
		t.Fatalf("render after reinitialize returned %v", res)
	}
}

func TestControlPlaneErrors(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.ConfigurePad("", DefaultPadSettings()); err == nil {
		t.Error("expected error for empty pad key")
	}
	if err := e.SetPadVolume("nope", 1); errors.Cause(err) != ErrUnknownPad {
		t.Errorf("SetPadVolume = %v, want ErrUnknownPad", err)
	}
	if err := e.SetPadPan("nope", 0); errors.Cause(err) != ErrUnknownPad {
		t.Errorf("SetPadPan = %v, want ErrUnknownPad", err)
	}
	if err := e.Unload("nope"); errors.Cause(err) != ErrUnknownSample {
		t.Errorf("Unload = %v, want ErrUnknownSample", err)
	}
	if _, err := e.TriggerPadSample(ManualTrigger{SampleID: "nope"}); errors.Cause(err) != ErrUnknownSample {
		t.Errorf("trigger = %v, want ErrUnknownSample", err)
	}
	if _, err := e.TriggerPadSample(ManualTrigger{PadID: "nope"}); errors.Cause(err) != ErrUnknownPad {
		t.Errorf("trigger = %v, want ErrUnknownPad", err)
	}
	if err := e.SetSequenceBPM(-1); errors.Cause(err) != ErrInvalidTempo {
		t.Errorf("SetSequenceBPM = %v, want ErrInvalidTempo", err)
	}
	if err := e.PlaySequence(); err == nil {
		t.Error("PlaySequence without a sequence should fail")
	}
	if err := e.LoadSequence(&Sequence{BPM: 120, PPQN: 0, Numerator: 4, BarLength: 1}); err == nil {
		t.Error("expected error for PPQN 0")
	}
	if err := e.LoadSample("bad", 3, 48000, constant(9, 0)); err == nil {
		t.Error("expected error for three channels")
	}
}

func TestPadEditsDoNotTouchSoundingVoices(t *testing.T) {
	e, _ := newTestEngine(t)
	_ = e.LoadSample("s", 1, 48000, constant(4800, 1))
	_ = e.ConfigurePad("A1", singleLayerPad("s"))
	_ = e.LoadSequence(&Sequence{
		BPM: 120, PPQN: 24, Numerator: 4, Denominator: 4, BarLength: 1,
		Tracks: map[string][]Event{"t": {{StartTick: 0, PadID: "A1", Velocity: 127}}},
	})
	_ = e.PlaySequence()
	first, _ := e.RenderOffline(256, 256, 2)
	if err := e.SetPadVolume("A1", 0.25); err != nil {
		t.Fatal(err)
	}
	second, _ := e.RenderOffline(256, 256, 2)
	if first[0] == 0 || second[0] != first[0] {
		t.Fatalf("level changed from %v to %v", first[0], second[0])
	}
	ps, _ := e.PadSettings("A1")
	if ps.Volume != 0.25 {
		t.Fatalf("pad volume = %v", ps.Volume)
	}
}

func TestStopNoteReleasesGateVoice(t *testing.T) {
	e, _ := newTestEngine(t)
	_ = e.LoadSample("pad", 1, 48000, constant(48000, 1))
	amp := DefaultAmpEnvelope()
	amp.ReleaseMs = 10
	id, err := e.TriggerPadSample(ManualTrigger{SampleID: "pad", Volume: 1, Mode: Gate, Amp: &amp})
	if err != nil {
		t.Fatal(err)
	}
	_, _ = e.RenderOffline(960, 960, 2)
	if n := e.StopNote(id); n != 1 {
		t.Fatalf("StopNote matched %d voices", n)
	}
	_, _ = e.RenderOffline(960, 960, 2)
	if e.ActiveVoices() != 0 {
		t.Fatalf("voice still active 20ms after a 10ms release")
	}
}

func TestOneShotIgnoresStopNoteButNotKill(t *testing.T) {
	e, _ := newTestEngine(t)
	_ = e.LoadSample("hit", 1, 48000, constant(48000, 1))
	id, _ := e.TriggerPadSample(ManualTrigger{SampleID: "hit", Volume: 1})
	e.StopNote(id)
	_, _ = e.RenderOffline(1920, 960, 2)
	if e.ActiveVoices() != 1 {
		t.Fatal("one-shot voice should ignore note-off")
	}
	e.KillNote(id)
	_, _ = e.RenderOffline(960, 960, 2)
	if e.ActiveVoices() != 0 {
		t.Fatal("killed voice still in pool")
	}
}

func TestVoiceCapStealsOldest(t *testing.T) {
	e, _ := newTestEngine(t, WithMaxVoices(2))
	_ = e.LoadSample("s", 1, 48000, constant(4800, 1))
	for i := 0; i < 3; i++ {
		if _, err := e.TriggerPadSample(ManualTrigger{SampleID: "s", Volume: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if e.ActiveVoices() != 2 || e.StolenVoices() != 1 {
		t.Fatalf("active=%d stolen=%d, want 2 and 1", e.ActiveVoices(), e.StolenVoices())
	}
	e.StopAll()
	if e.ActiveVoices() != 0 {
		t.Fatal("StopAll left voices")
	}
}

func TestUnloadWhilePlayingIsDeferred(t *testing.T) {
	e, logs := newTestEngine(t)
	_ = e.LoadSample("s", 1, 48000, constant(4800, 1))
	_, _ = e.TriggerPadSample(ManualTrigger{SampleID: "s", Volume: 1})
	if err := e.Unload("s"); err != nil {
		t.Fatal(err)
	}
	if e.IsLoaded("s") {
		t.Fatal("sample still loaded")
	}
	out, _ := e.RenderOffline(100, 100, 2)
	if out[0] == 0 {
		t.Fatal("sounding voice lost its sample")
	}
	if !strings.Contains(logs.String(), "deferred") {
		t.Fatalf("expected deferred unload log, got %q", logs.String())
	}
}

func TestSampleTapAndMasterGain(t *testing.T) {
	var tapped int
	e, _ := newTestEngine(t, WithMasterGain(0.5), WithSampleTap(func(buf []float32) { tapped += len(buf) }))
	_ = e.LoadSample("s", 1, 48000, constant(100, 1))
	_, _ = e.TriggerPadSample(ManualTrigger{SampleID: "s", Volume: 1, Pan: -1})
	out, _ := e.RenderOffline(10, 10, 2)
	if out[0] != 0.5 || out[1] != 0 {
		t.Fatalf("hard-left half gain = (%v, %v), want (0.5, 0)", out[0], out[1])
	}
	if tapped != 20 {
		t.Fatalf("tap saw %d samples, want 20", tapped)
	}
}

func TestRecordingAndOfflineWAV(t *testing.T) {
	e, _ := newTestEngine(t)
	_ = e.LoadSample("s", 1, 48000, constant(4800, 0.5))
	dir := t.TempDir()
	take := filepath.Join(dir, "take.wav")
	if err := e.StartRecording(take); err != nil {
		t.Fatal(err)
	}
	_, _ = e.TriggerPadSample(ManualTrigger{SampleID: "s", Volume: 1})
	_, _ = e.RenderOffline(9600, 960, 2)
	path, err := e.StopRecording()
	if err != nil || path != take {
		t.Fatalf("StopRecording = %q, %v", path, err)
	}
	if _, err := e.StopRecording(); err == nil {
		t.Fatal("second StopRecording should fail")
	}
	if err := e.LoadSampleFile("take", take); err != nil {
		t.Fatal(err)
	}

	offline := filepath.Join(dir, "offline.wav")
	if err := e.RenderOfflineWAV(offline, 4800, 480); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadSampleFile("offline", offline); err != nil {
		t.Fatal(err)
	}
	if !e.IsLoaded("take") || !e.IsLoaded("offline") {
		t.Fatal("rendered files did not load back")
	}
}

func TestImportSMFMapsKeys(t *testing.T) {
	if _, err := ImportSMF(strings.NewReader("junk"), map[uint8]string{36: "A1"}); err == nil {
		t.Fatal("expected error for junk input")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err == nil {
		t.Fatal("Start after Close should fail")
	}
	if res := e.Render(make([]float32, 8), 4, 2); res != Stop {
		t.Fatalf("render after close returned %v", res)
	}
}

func BenchmarkRender32Voices(b *testing.B) {
	e, _ := newTestEngine(b, WithMaxVoices(0))
	_ = e.LoadSample("s", 2, 44100, constant(2*441000, 0.1))
	ps := singleLayerPad("s")
	ps.Filter.Enabled = true
	ps.Filter.CutoffHz = 2000
	_ = e.ConfigurePad("A1", ps)
	for i := 0; i < 32; i++ {
		_, _ = e.TriggerPadSample(ManualTrigger{PadID: "A1", SampleID: "s", Volume: 0.5, FineTune: float64(i)})
	}
	buf := make([]float32, 256*2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Render(buf, 256, 2)
	}
}

func TestMasterBusControls(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetEQBand(4, 0.5)
	if e.EQBand(4) != 0.5 {
		t.Fatalf("EQ band 4 = %v", e.EQBand(4))
	}
	e.SetEQBand(4, 1)

	_ = e.LoadSample("loud", 1, 48000, constant(48000, 1))
	_, _ = e.TriggerPadSample(ManualTrigger{SampleID: "loud", Volume: 2, Pan: -1})
	comp := DefaultBusCompressor()
	comp.Enabled = true
	e.SetBusCompressor(comp)
	if !e.BusCompressor().Enabled {
		t.Fatal("compressor settings not stored")
	}
	out, _ := e.RenderOffline(24000, 480, 2)
	if last := out[len(out)-2]; last >= 1 {
		t.Fatalf("compressed level = %v, want below 1", last)
	}
	if e.BusGainReduction() >= 1 {
		t.Fatal("no gain reduction reported")
	}
}
