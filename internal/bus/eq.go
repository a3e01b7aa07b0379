package bus

import (
	"math"
	"sync/atomic"
)

// Bands is the number of EQ bands.
const Bands = 5

var crossovers = [Bands - 1]float64{200, 800, 2500, 8000}

// EQ is a five-band crossover equalizer. Gains are bit-cast float32 values
// so the render thread can read them without locking.
type EQ struct {
	gains  [Bands]atomic.Uint32
	flat   atomic.Bool
	alphas [Bands - 1]float32
	lp     [2][Bands - 1]float32
}

// NewEQ returns a flat EQ. Bands split at 200Hz, 800Hz, 2.5kHz and 8kHz.
func NewEQ(sampleRate int) *EQ {
	eq := &EQ{}
	dt := 1.0 / float64(sampleRate)
	for i, freq := range crossovers {
		rc := 1.0 / (2.0 * math.Pi * freq)
		eq.alphas[i] = float32(dt / (rc + dt))
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1))
	}
	eq.flat.Store(true)
	return eq
}

// SetGain sets the linear gain of band (0-4). 1 is unity.
func (eq *EQ) SetGain(band int, gain float32) {
	if band < 0 || band >= Bands {
		return
	}
	if gain < 0 {
		gain = 0
	}
	eq.gains[band].Store(math.Float32bits(gain))
	flat := true
	for i := range eq.gains {
		if math.Float32frombits(eq.gains[i].Load()) != 1 {
			flat = false
		}
	}
	eq.flat.Store(flat)
}

func (eq *EQ) Gain(band int) float32 {
	if band < 0 || band >= Bands {
		return 1
	}
	return math.Float32frombits(eq.gains[band].Load())
}

// Flat reports whether every band is at unity. A flat EQ is bypassed.
func (eq *EQ) Flat() bool { return eq.flat.Load() }

// Process filters interleaved audio in place.
func (eq *EQ) Process(buf []float32, channels int) {
	if eq.flat.Load() {
		return
	}
	var g [Bands]float32
	for i := range g {
		g[i] = math.Float32frombits(eq.gains[i].Load())
	}
	for i, x := range buf {
		ch := 0
		if channels > 1 {
			if ch = i % channels; ch > 1 {
				continue
			}
		}
		lp := &eq.lp[ch]
		rem := x
		var out float32
		for b := 0; b < Bands-1; b++ {
			lp[b] += eq.alphas[b] * (rem - lp[b])
			out += lp[b] * g[b]
			rem -= lp[b]
		}
		buf[i] = out + rem*g[Bands-1]
	}
}

// Reset clears the filter state.
func (eq *EQ) Reset() {
	eq.lp = [2][Bands - 1]float32{}
}
