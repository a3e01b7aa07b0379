// Package bus is the master processing applied to the mixed output: a
// five-band EQ followed by a compressor.
package bus

// Bus runs the master chain. Process belongs to the render thread; the
// setters may be called from anywhere.
type Bus struct {
	EQ         *EQ
	Compressor *Compressor
}

func New(sampleRate int) *Bus {
	return &Bus{
		EQ:         NewEQ(sampleRate),
		Compressor: NewCompressor(sampleRate),
	}
}

// Process applies the chain to interleaved audio in place.
func (b *Bus) Process(buf []float32, channels int) {
	b.EQ.Process(buf, channels)
	b.Compressor.Process(buf, channels)
}

func (b *Bus) Reset() {
	b.EQ.Reset()
	b.Compressor.Reset()
}
