package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/cbegin/drumkit-go"
	"github.com/cbegin/drumkit-go/internal/recorder"
)

func writeWAV(t *testing.T, path string, frames int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	data := make([]float32, frames)
	for i := range data {
		data[i] = 0.5
	}
	if err := recorder.WriteWAV(f, data, 48000, 1); err != nil {
		t.Fatal(err)
	}
}

func TestLoadKit(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "snare.wav"), 100)
	writeWAV(t, filepath.Join(dir, "kick.WAV"), 100)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := drumkit.New(48000, drumkit.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	k, err := loadKit(e, dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(k.pads) != 2 || k.pads[0] != "kick" || k.pads[1] != "snare" {
		t.Fatalf("pads = %v", k.pads)
	}
	if k.keys['1'] != "kick" || k.keys['2'] != "snare" {
		t.Fatalf("keys = %v", k.keys)
	}
	if k.midi[35] != "kick" || k.midi[36] != "snare" {
		t.Fatalf("midi = %v", k.midi)
	}
	if !e.IsLoaded("kick") {
		t.Fatal("kick sample not loaded")
	}
	if _, ok := e.PadSettings("snare"); !ok {
		t.Fatal("snare pad not configured")
	}

	seq := patternFor(k, 100)
	if err := e.LoadSequence(seq); err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, evs := range seq.Tracks {
		n += len(evs)
	}
	if n != 8 || len(seq.Tracks["kick"]) != 4 {
		t.Fatalf("pattern has %d events, kick %d", n, len(seq.Tracks["kick"]))
	}
}

func TestLoadKitEmptyDir(t *testing.T) {
	e, _ := drumkit.New(48000, drumkit.WithLogger(log.New(io.Discard, "", 0)))
	defer e.Close()
	if _, err := loadKit(e, t.TempDir()); err == nil {
		t.Fatal("expected error for a kit without samples")
	}
}

func TestParseBackend(t *testing.T) {
	cases := map[string]drumkit.Backend{
		"":           drumkit.BackendEbiten,
		"OTO":        drumkit.BackendOto,
		" portaudio": drumkit.BackendPortAudio,
	}
	for in, want := range cases {
		got, err := parseBackend(in)
		if err != nil || got != want {
			t.Errorf("parseBackend(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := parseBackend("alsa"); err == nil {
		t.Error("expected error for alsa")
	}
}

func TestClickSample(t *testing.T) {
	s := clickSample(48000, 1000)
	if len(s) != 960 {
		t.Fatalf("len = %d, want 960", len(s))
	}
	if s[0] != 0 {
		t.Fatalf("click should start at zero, got %v", s[0])
	}
}
