package voice

import (
	"testing"

	"github.com/cbegin/drumkit-go/internal/envelope"
	"github.com/cbegin/drumkit-go/internal/pad"
)

func TestPoolRemovesFinishedVoices(t *testing.T) {
	s := mustSample(t, "s", 1, constant(100, 1))
	p := NewPool(0)
	short := mustVoice(t, Config{Sample: s, Volume: 1, Velocity: 1, EndFrame: 10})
	long := mustVoice(t, Config{Sample: s, Volume: 1, Velocity: 1})
	if s.Users() != 2 {
		t.Fatalf("users = %d, want 2", s.Users())
	}
	p.Render(make([]float32, 128), 64, 2, []*Voice{short, long})
	if p.Len() != 1 {
		t.Fatalf("pool len = %d, want 1", p.Len())
	}
	if s.Users() != 1 {
		t.Fatalf("users = %d, want 1 after removal", s.Users())
	}
	p.Render(make([]float32, 128), 64, 2, nil)
	if p.Len() != 0 || s.Users() != 0 {
		t.Fatalf("len=%d users=%d, want 0/0", p.Len(), s.Users())
	}
}

func TestPoolMixesCommutatively(t *testing.T) {
	s := mustSample(t, "s", 1, constant(8, 0.25))
	p := NewPool(0)
	a := mustVoice(t, Config{Sample: s, Volume: 1, Pan: -1, Velocity: 1})
	b := mustVoice(t, Config{Sample: s, Volume: 1, Pan: -1, Velocity: 1})
	out := make([]float32, 16)
	p.Render(out, 8, 2, []*Voice{a, b})
	for i := 0; i < 8; i++ {
		if out[i*2] != 0.5 {
			t.Fatalf("frame %d = %v, want 0.5", i, out[i*2])
		}
	}
}

func TestPoolStealsOldest(t *testing.T) {
	s := mustSample(t, "s", 1, constant(1000, 1))
	p := NewPool(2)
	var vs []*Voice
	for i := 0; i < 3; i++ {
		vs = append(vs, mustVoice(t, Config{NoteID: int64(i), Sample: s, Volume: 1, Velocity: 1}))
	}
	p.Add(vs...)
	if p.Len() != 2 {
		t.Fatalf("len = %d, want 2", p.Len())
	}
	if vs[0].Active() {
		t.Fatal("oldest voice should be stolen")
	}
	if p.Stolen() != 1 {
		t.Fatalf("stolen = %d", p.Stolen())
	}
	if s.Users() != 2 {
		t.Fatalf("users = %d, want 2", s.Users())
	}
}

func TestPoolStopAndRelease(t *testing.T) {
	s := mustSample(t, "s", 1, constant(48000, 1))
	amp := envelope.Settings{Kind: envelope.KindADSR, Sustain: 1, ReleaseMs: 50}
	p := NewPool(0)
	gate := mustVoice(t, Config{NoteID: 7, Sample: s, Volume: 1, Velocity: 1, Mode: pad.Gate, Amp: amp})
	other := mustVoice(t, Config{NoteID: 8, Sample: s, Volume: 1, Velocity: 1})
	p.Add(gate, other)

	if n := p.Release(7); n != 1 {
		t.Fatalf("released %d voices, want 1", n)
	}
	if gate.AmpStage() != envelope.StageRelease {
		t.Fatalf("stage = %v", gate.AmpStage())
	}
	if n := p.Stop(8); n != 1 {
		t.Fatalf("stopped %d voices, want 1", n)
	}
	p.Render(make([]float32, 128), 64, 2, nil)
	if p.Len() != 1 {
		t.Fatalf("len = %d, want 1 (releasing voice still sounding)", p.Len())
	}
	p.StopAll()
	if p.Len() != 0 || s.Users() != 0 {
		t.Fatalf("len=%d users=%d after StopAll", p.Len(), s.Users())
	}
}
