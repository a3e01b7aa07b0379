package filter

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/ktye/fft"
)

const (
	testRate = 48000.0
	fftSize  = 4096
	lowBin   = 16  // 187.5 Hz
	highBin  = 640 // 7500 Hz
)

func binFreq(bin int) float64 { return float64(bin) * testRate / fftSize }

// magnitudes runs a two-tone signal through process and returns the FFT
// magnitudes at the low and high bins.
func magnitudes(t *testing.T, process func(float64) float64) (low, high float64) {
	t.Helper()
	tone := func(n int) float64 {
		ts := float64(n) / testRate
		return 0.5*math.Sin(2*math.Pi*binFreq(lowBin)*ts) + 0.5*math.Sin(2*math.Pi*binFreq(highBin)*ts)
	}
	for n := 0; n < fftSize; n++ {
		process(tone(n))
	}
	buf := make([]complex128, fftSize)
	for n := range buf {
		buf[n] = complex(process(tone(fftSize+n)), 0)
	}
	tr, err := fft.New(fftSize)
	if err != nil {
		t.Fatalf("fft: %v", err)
	}
	out := tr.Transform(buf)
	return cmplx.Abs(out[lowBin]), cmplx.Abs(out[highBin])
}

// spectrum returns the filter gain at the low and high test tones.
func spectrum(t *testing.T, f *SVF) (low, high float64) {
	t.Helper()
	refLow, refHigh := magnitudes(t, func(x float64) float64 { return x })
	gotLow, gotHigh := magnitudes(t, f.Process)
	return gotLow / refLow, gotHigh / refHigh
}

func TestLowPassAttenuatesHighTone(t *testing.T) {
	f := New(testRate)
	f.Configure(LowPass, 1000, 0)
	low, high := spectrum(t, f)
	if math.Abs(low-1) > 0.1 {
		t.Errorf("low tone gain = %f, want ~1", low)
	}
	if high > 0.05 {
		t.Errorf("high tone gain = %f, want < 0.05", high)
	}
}

func TestHighPassAttenuatesLowTone(t *testing.T) {
	f := New(testRate)
	f.Configure(HighPass, 2000, 0)
	low, high := spectrum(t, f)
	if low > 0.05 {
		t.Errorf("low tone gain = %f, want < 0.05", low)
	}
	if math.Abs(high-1) > 0.1 {
		t.Errorf("high tone gain = %f, want ~1", high)
	}
}

func TestBandPassRejectsBothTones(t *testing.T) {
	f := New(testRate)
	f.Configure(BandPass, 1200, 0.5)
	low, high := spectrum(t, f)
	if low > 0.3 || high > 0.3 {
		t.Errorf("band-pass gains low=%f high=%f, want both < 0.3", low, high)
	}
}

func TestLowPassUnityAtDC(t *testing.T) {
	f := New(testRate)
	f.Configure(LowPass, 500, 0.3)
	var y float64
	for i := 0; i < 20000; i++ {
		y = f.Process(1)
	}
	if math.Abs(y-1) > 1e-6 {
		t.Fatalf("DC output = %f, want 1", y)
	}
}

func TestCutoffClamped(t *testing.T) {
	f := New(testRate)
	f.Configure(LowPass, 1e6, 0)
	if f.Cutoff() != testRate*0.49 {
		t.Errorf("cutoff = %f, want nyquist clamp", f.Cutoff())
	}
	f.Configure(LowPass, -5, 0)
	if f.Cutoff() != minCutoff {
		t.Errorf("cutoff = %f, want %f", f.Cutoff(), minCutoff)
	}
}

func TestBlockRateRetuningStaysBounded(t *testing.T) {
	f := New(testRate)
	phase := 0.0
	for block := 0; block < 500; block++ {
		cutoff := 200 + 10000*(0.5+0.5*math.Sin(float64(block)*0.1))
		f.Configure(LowPass, cutoff, 0.9)
		for i := 0; i < 64; i++ {
			phase += 440 / testRate
			y := f.Process(math.Sin(2 * math.Pi * phase))
			if math.IsNaN(y) || math.Abs(y) > 50 {
				t.Fatalf("unstable output %f at block %d", y, block)
			}
		}
	}
}
