package sample

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestNewValidates(t *testing.T) {
	cases := []struct {
		name     string
		id       string
		channels int
		rate     int
		data     []float32
		wantErr  bool
	}{
		{"mono", "kick", 1, 48000, []float32{0, 1, 0}, false},
		{"stereo", "snare", 2, 44100, []float32{0, 0, 1, 1}, false},
		{"empty id", "", 1, 48000, nil, true},
		{"three channels", "x", 3, 48000, []float32{0, 0, 0}, true},
		{"zero rate", "x", 1, 0, nil, true},
		{"ragged stereo", "x", 2, 48000, []float32{0, 0, 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.id, tc.channels, tc.rate, tc.data)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Frames != len(tc.data)/tc.channels {
				t.Fatalf("frames = %d", s.Frames)
			}
		})
	}
}

func TestFrameReadsChannels(t *testing.T) {
	mono, _ := New("m", 1, 48000, []float32{0.25, 0.5})
	if l, r := mono.Frame(1); l != 0.5 || r != 0.5 {
		t.Fatalf("mono frame = %v,%v", l, r)
	}
	stereo, _ := New("s", 2, 48000, []float32{0.1, 0.2, 0.3, 0.4})
	if l, r := stereo.Frame(1); l != 0.3 || r != 0.4 {
		t.Fatalf("stereo frame = %v,%v", l, r)
	}
	if l, r := stereo.Frame(2); l != 0 || r != 0 {
		t.Fatalf("out of range frame = %v,%v", l, r)
	}
}

func TestTableUnloadKeepsBorrowedSample(t *testing.T) {
	tab := NewTable()
	s, _ := New("kick", 1, 48000, []float32{1, 1, 1})
	tab.Publish(s)
	if !tab.IsLoaded("kick") {
		t.Fatal("kick should be loaded")
	}
	got, ok := tab.Get("kick")
	if !ok {
		t.Fatal("lookup failed")
	}
	got.Acquire()

	removed, ok := tab.Unload("kick")
	if !ok || removed != s {
		t.Fatal("unload should return the published sample")
	}
	if tab.IsLoaded("kick") {
		t.Fatal("kick should no longer be loaded")
	}
	if removed.Users() != 1 {
		t.Fatalf("users = %d, want 1", removed.Users())
	}
	if l, _ := got.Frame(2); l != 1 {
		t.Fatal("borrowed sample data should remain readable")
	}
	got.Release()
	if removed.Users() != 0 {
		t.Fatalf("users = %d, want 0", removed.Users())
	}
	if _, ok := tab.Unload("kick"); ok {
		t.Fatal("second unload should report missing")
	}
}

func TestTableIDsSorted(t *testing.T) {
	tab := NewTable()
	for _, id := range []string{"tom", "clap", "kick"} {
		s, _ := New(id, 1, 48000, []float32{0})
		tab.Publish(s)
	}
	ids := tab.IDs()
	want := []string{"clap", "kick", "tom"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestLoadFileDecodesPCM16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hat.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 44100, 16, 2, 1)
	values := []int{0, 0, 16384, -16384, 32767, -32768}
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 44100},
		Data:           values,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	s, err := LoadFile("hat", path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Channels != 2 || s.SampleRate != 44100 || s.Frames != 3 {
		t.Fatalf("got channels=%d rate=%d frames=%d", s.Channels, s.SampleRate, s.Frames)
	}
	want := []float32{0, 0, 0.5, -0.5, 32767.0 / 32768.0, -1}
	for i, w := range want {
		if math.Abs(float64(s.Data[i]-w)) > 1e-6 {
			t.Fatalf("data[%d] = %f, want %f", i, s.Data[i], w)
		}
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile("nope", filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
