package main

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/cbegin/drumkit-go"
)

// padKeys are the interactive keys, assigned to pads in sorted order.
const padKeys = "1234567890qwertyuiop"

// firstDrumKey is the General MIDI key of the first pad (acoustic bass drum).
const firstDrumKey = 35

type kit struct {
	pads []string
	keys map[byte]string
	midi map[uint8]string
}

// loadKit loads every WAV file in dir as a sample and configures one pad per
// file, named after the file.
func loadKit(e *drumkit.Engine, dir string) (*kit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read kit %s", dir)
	}
	var names []string
	for _, ent := range entries {
		if ent.IsDir() || !strings.EqualFold(filepath.Ext(ent.Name()), ".wav") {
			continue
		}
		names = append(names, ent.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, errors.Errorf("no .wav files in %s", dir)
	}
	k := &kit{keys: make(map[byte]string), midi: make(map[uint8]string)}
	for _, name := range names {
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if err := e.LoadSampleFile(id, filepath.Join(dir, name)); err != nil {
			return nil, err
		}
		ps := drumkit.DefaultPadSettings()
		ps.Layers = []drumkit.Layer{{SampleID: id, Enabled: true}}
		if err := e.ConfigurePad(id, ps); err != nil {
			return nil, err
		}
		k.add(id)
	}
	return k, nil
}

func (k *kit) add(id string) {
	i := len(k.pads)
	k.pads = append(k.pads, id)
	if i < len(padKeys) {
		k.keys[padKeys[i]] = id
	}
	if key := firstDrumKey + i; key < 128 {
		k.midi[uint8(key)] = id
	}
}

// clickSample is a short decaying sine used when the kit has no click.
func clickSample(sampleRate int, freq float64) []float32 {
	n := sampleRate / 50
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		decay := math.Exp(-t * 200)
		out[i] = float32(0.8 * decay * math.Sin(2*math.Pi*freq*t))
	}
	return out
}

// patternFor builds a one-bar sequence that plays every pad in turn on
// eighth notes.
func patternFor(k *kit, bpm float64) *drumkit.Sequence {
	const ppqn = 24
	seq := &drumkit.Sequence{
		BPM:         bpm,
		PPQN:        ppqn,
		Numerator:   4,
		Denominator: 4,
		BarLength:   1,
		Tracks:      make(map[string][]drumkit.Event),
	}
	for step := 0; step < 8; step++ {
		id := k.pads[step%len(k.pads)]
		seq.Tracks[id] = append(seq.Tracks[id], drumkit.Event{
			StartTick: step * ppqn / 2,
			PadID:     id,
			Velocity:  100,
		})
	}
	return seq
}
