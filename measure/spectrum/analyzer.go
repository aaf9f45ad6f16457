// Package spectrum provides a streaming spectrum analyzer that taps the
// mixer's master output and produces single-sided amplitude spectra on
// demand.
package spectrum

import (
	"fmt"
	"math"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-mixer/dsp/core"
	dspspectrum "github.com/cwbudde/algo-mixer/dsp/spectrum"
)

// fftPlan is the slice of the FFT backend the analyzer needs.
type fftPlan interface {
	Forward(dst, src []complex128) error
}

// Analyzer accumulates the mono sum of the tapped stereo signal in a ring
// buffer and transforms the most recent window on request. Push runs on
// the audio goroutine with a short bounded lock; Compute runs on a control
// goroutine and does the FFT outside the lock.
type Analyzer struct {
	mu sync.Mutex

	sampleRate float64
	size       int

	ring   []float64
	pos    int
	pushed int

	win     []float64
	winSum  float64
	plan    fftPlan
	in, out []complex128
	frame   []float64
	re, im  []float64
}

// NewAnalyzer returns an analyzer with the given FFT size, which must be a
// power of two.
func NewAnalyzer(sampleRate float64, fftSize int) (*Analyzer, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("spectrum: sample rate must be > 0 and finite: %f", sampleRate)
	}

	if fftSize < 2 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("spectrum: fft size must be a power of two >= 2: %d", fftSize)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("spectrum: fft plan: %w", err)
	}

	a := &Analyzer{
		sampleRate: sampleRate,
		size:       fftSize,
		ring:       make([]float64, fftSize),
		win:        hannWindow(fftSize),
		plan:       plan,
		in:         make([]complex128, fftSize),
		out:        make([]complex128, fftSize),
		frame:      make([]float64, fftSize),
		re:         make([]float64, fftSize/2+1),
		im:         make([]float64, fftSize/2+1),
	}

	for _, w := range a.win {
		a.winSum += w
	}

	return a, nil
}

// hannWindow generates the raised-cosine analysis window.
func hannWindow(n int) []float64 {
	win := make([]float64, n)
	for i := range win {
		win[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}

	return win
}

// Push feeds one block of the tapped stereo signal. Implements the mixer
// tap contract.
func (a *Analyzer) Push(left, right []float64) {
	if len(left) == 0 || len(left) != len(right) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range left {
		a.ring[a.pos] = (left[i] + right[i]) * 0.5
		a.pos++

		if a.pos == a.size {
			a.pos = 0
		}
	}

	a.pushed += len(left)
}

// Filled reports whether a full window of samples has been collected.
func (a *Analyzer) Filled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.pushed >= a.size
}

// Bins returns the number of spectrum bins Compute produces.
func (a *Analyzer) Bins() int { return a.size/2 + 1 }

// BinFrequency returns the center frequency of a bin in Hz.
func (a *Analyzer) BinFrequency(bin int) float64 {
	return float64(bin) * a.sampleRate / float64(a.size)
}

// Compute transforms the most recent window and writes the single-sided
// amplitude spectrum into dst, which must hold Bins() values. A full-scale
// sine at a bin center reads close to 1.0.
func (a *Analyzer) Compute(dst []float64) error {
	if len(dst) != a.Bins() {
		return fmt.Errorf("spectrum: dst length %d, want %d", len(dst), a.Bins())
	}

	a.snapshot()

	vecmath.MulBlockInPlace(a.frame, a.win)

	for i, v := range a.frame {
		a.in[i] = complex(v, 0)
	}

	err := a.plan.Forward(a.out, a.in)
	if err != nil {
		return fmt.Errorf("spectrum: fft: %w", err)
	}

	for i := range a.re {
		a.re[i] = real(a.out[i])
		a.im[i] = imag(a.out[i])
	}

	dspspectrum.MagnitudeFromParts(dst, a.re, a.im)

	// Single-sided amplitude normalization against the window's coherent
	// gain. Interior bins carry both halves of the spectrum.
	scale := 1 / a.winSum
	dst[0] *= scale
	dst[len(dst)-1] *= scale

	for i := 1; i < len(dst)-1; i++ {
		dst[i] *= 2 * scale
	}

	return nil
}

// snapshot linearizes the ring, oldest sample first, into the frame
// buffer.
func (a *Analyzer) snapshot() {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := copy(a.frame, a.ring[a.pos:])
	copy(a.frame[n:], a.ring[:a.pos])
}
