package bus

import (
	"math"
	"sync/atomic"
)

// CompressorSettings configures the bus compressor.
type CompressorSettings struct {
	Enabled     bool
	ThresholdDB float64 // e.g. -12
	Ratio       float64 // 4 means 4:1; values <= 1 disable reduction
	AttackMs    float64
	ReleaseMs   float64
	MakeupDB    float64
}

// DefaultCompressor is a gentle glue setting, disabled.
func DefaultCompressor() CompressorSettings {
	return CompressorSettings{ThresholdDB: -12, Ratio: 4, AttackMs: 5, ReleaseMs: 120}
}

type coeffs struct {
	settings  CompressorSettings
	threshold float32
	slope     float64 // 1/ratio - 1
	attack    float32
	release   float32
	makeup    float32
}

func newCoeffs(s CompressorSettings, sampleRate int) *coeffs {
	sr := float64(sampleRate)
	c := &coeffs{
		settings:  s,
		threshold: float32(math.Pow(10, s.ThresholdDB/20)),
		attack:    1,
		release:   1,
		makeup:    float32(math.Pow(10, s.MakeupDB/20)),
	}
	if s.Ratio > 1 {
		c.slope = 1/s.Ratio - 1
	}
	if s.AttackMs > 0 {
		c.attack = float32(1 - math.Exp(-1/(s.AttackMs*sr/1000)))
	}
	if s.ReleaseMs > 0 {
		c.release = float32(1 - math.Exp(-1/(s.ReleaseMs*sr/1000)))
	}
	return c
}

// Compressor is a stereo-linked peak compressor. Settings are swapped
// atomically; the envelope belongs to the render thread.
type Compressor struct {
	sampleRate int
	cur        atomic.Pointer[coeffs]
	env        float32
	reduction  atomic.Uint32 // float32 bits, last block's minimum gain
}

func NewCompressor(sampleRate int) *Compressor {
	c := &Compressor{sampleRate: sampleRate}
	c.cur.Store(newCoeffs(DefaultCompressor(), sampleRate))
	c.reduction.Store(math.Float32bits(1))
	return c
}

func (c *Compressor) Configure(s CompressorSettings) {
	c.cur.Store(newCoeffs(s, c.sampleRate))
}

func (c *Compressor) Settings() CompressorSettings { return c.cur.Load().settings }

// GainReduction returns the smallest gain applied during the last block.
func (c *Compressor) GainReduction() float32 {
	return math.Float32frombits(c.reduction.Load())
}

// Process compresses interleaved audio in place. All channels of a frame
// share one detector so the stereo image does not shift.
func (c *Compressor) Process(buf []float32, channels int) {
	k := c.cur.Load()
	if !k.settings.Enabled || channels <= 0 {
		return
	}
	minGain := float32(1)
	for f := 0; f+channels <= len(buf); f += channels {
		var peak float32
		for _, x := range buf[f : f+channels] {
			if x < 0 {
				x = -x
			}
			if x > peak {
				peak = x
			}
		}
		if peak > c.env {
			c.env += k.attack * (peak - c.env)
		} else {
			c.env += k.release * (peak - c.env)
		}
		g := k.makeup
		if c.env > k.threshold && k.threshold > 0 && k.slope != 0 {
			red := float32(math.Pow(float64(c.env/k.threshold), k.slope))
			g *= red
			if red < minGain {
				minGain = red
			}
		}
		for i := f; i < f+channels; i++ {
			buf[i] *= g
		}
	}
	c.reduction.Store(math.Float32bits(minGain))
}

func (c *Compressor) Reset() { c.env = 0 }
