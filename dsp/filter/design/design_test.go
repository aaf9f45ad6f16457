package design

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/algo-mixer/dsp/filter/biquad"
)

// responseDB evaluates a section's magnitude response in dB at freq.
func responseDB(c biquad.Coefficients, freq, sampleRate float64) float64 {
	w := 2 * math.Pi * freq / sampleRate
	z := cmplx.Exp(complex(0, -w))

	num := complex(c.B0, 0) + complex(c.B1, 0)*z + complex(c.B2, 0)*z*z
	den := complex(1, 0) + complex(c.A1, 0)*z + complex(c.A2, 0)*z*z

	return 20 * math.Log10(cmplx.Abs(num/den))
}

func TestPeakGainAtCenterFrequency(t *testing.T) {
	t.Parallel()

	const (
		sr = 48000.0
		f  = 1000.0
	)

	for _, gain := range []float64{-12, -6, 6, 12} {
		c := Peak(f, gain, 0.707, sr)

		got := responseDB(c, f, sr)
		if math.Abs(got-gain) > 0.1 {
			t.Errorf("peak %v dB: response at center = %v dB", gain, got)
		}
	}
}

func TestLowShelfBoostsLowsOnly(t *testing.T) {
	t.Parallel()

	const sr = 48000.0

	c := LowShelf(200, 6, 0.707, sr)

	low := responseDB(c, 20, sr)
	if math.Abs(low-6) > 0.5 {
		t.Errorf("response at 20 Hz = %v dB, want ~6", low)
	}

	high := responseDB(c, 10000, sr)
	if math.Abs(high) > 0.5 {
		t.Errorf("response at 10 kHz = %v dB, want ~0", high)
	}
}

func TestHighShelfBoostsHighsOnly(t *testing.T) {
	t.Parallel()

	const sr = 48000.0

	c := HighShelf(5000, -6, 0.707, sr)

	high := responseDB(c, 20000, sr)
	if math.Abs(high+6) > 0.5 {
		t.Errorf("response at 20 kHz = %v dB, want ~-6", high)
	}

	low := responseDB(c, 50, sr)
	if math.Abs(low) > 0.5 {
		t.Errorf("response at 50 Hz = %v dB, want ~0", low)
	}
}

func TestLowpassAttenuatesAboveCutoff(t *testing.T) {
	t.Parallel()

	const sr = 48000.0

	c := Lowpass(1000, 0.707, sr)

	if got := responseDB(c, 100, sr); math.Abs(got) > 0.2 {
		t.Errorf("passband response = %v dB, want ~0", got)
	}

	if got := responseDB(c, 10000, sr); got > -30 {
		t.Errorf("stopband response = %v dB, want well below -30", got)
	}
}

func TestInvalidArgumentsYieldIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    biquad.Coefficients
	}{
		{"zero freq", Peak(0, 6, 1, 48000)},
		{"above nyquist", Peak(30000, 6, 1, 48000)},
		{"zero sample rate", LowShelf(200, 6, 1, 0)},
		{"nan freq", HighShelf(math.NaN(), 6, 1, 48000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.c != biquad.Identity() {
				t.Errorf("got %+v, want identity", tt.c)
			}
		})
	}
}
