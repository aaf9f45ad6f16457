// Package level provides a stereo peak/RMS meter that taps the mixer's
// master output.
package level

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

// defaultDecayDBPerSecond is the peak fall-back rate between blocks.
const defaultDecayDBPerSecond = 20.0

// Meter tracks per-channel peak and RMS levels. Push runs on the audio
// goroutine and never allocates; the readout methods load atomically from
// any goroutine. Peaks decay exponentially between blocks so a meter
// display falls smoothly after a transient.
type Meter struct {
	sampleRate float64
	decayDBSec float64

	peakL core.AtomicFloat
	peakR core.AtomicFloat
	rmsL  core.AtomicFloat
	rmsR  core.AtomicFloat
}

// NewMeter returns a meter for the given sample rate.
func NewMeter(sampleRate float64) (*Meter, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("level: sample rate must be > 0 and finite: %f", sampleRate)
	}

	return &Meter{
		sampleRate: sampleRate,
		decayDBSec: defaultDecayDBPerSecond,
	}, nil
}

// SetDecay sets the peak fall-back rate in dB per second.
func (m *Meter) SetDecay(dbPerSecond float64) {
	if dbPerSecond > 0 {
		m.decayDBSec = dbPerSecond
	}
}

// Push feeds one block of the signal being metered. Implements the mixer
// tap contract.
func (m *Meter) Push(left, right []float64) {
	if len(left) == 0 || len(left) != len(right) {
		return
	}

	decay := core.DBToLinear(-m.decayDBSec * float64(len(left)) / m.sampleRate)

	m.updateChannel(&m.peakL, &m.rmsL, left, decay)
	m.updateChannel(&m.peakR, &m.rmsR, right, decay)
}

func (m *Meter) updateChannel(peak, rms *core.AtomicFloat, buf []float64, decay float64) {
	blockPeak := vecmath.MaxAbs(buf)

	held := peak.Load() * decay
	if blockPeak > held {
		held = blockPeak
	}

	peak.Store(held)
	rms.Store(math.Sqrt(vecmath.DotProduct(buf, buf) / float64(len(buf))))
}

// Peak returns the current held peak per channel, in linear amplitude.
func (m *Meter) Peak() (left, right float64) {
	return m.peakL.Load(), m.peakR.Load()
}

// RMS returns the most recent block RMS per channel, in linear amplitude.
func (m *Meter) RMS() (left, right float64) {
	return m.rmsL.Load(), m.rmsR.Load()
}

// PeakDB returns the held peak per channel in dBFS.
func (m *Meter) PeakDB() (left, right float64) {
	return core.LinearToDB(m.peakL.Load()), core.LinearToDB(m.peakR.Load())
}

// RMSDB returns the block RMS per channel in dBFS.
func (m *Meter) RMSDB() (left, right float64) {
	return core.LinearToDB(m.rmsL.Load()), core.LinearToDB(m.rmsR.Load())
}

// Reset clears all held levels.
func (m *Meter) Reset() {
	m.peakL.Store(0)
	m.peakR.Store(0)
	m.rmsL.Store(0)
	m.rmsR.Store(0)
}
