package fx

import (
	"math"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

const (
	defaultPan = 0.0
	minPan     = -1.0
	maxPan     = 1.0
)

// Pan places a stereo signal in the stereo field using the constant-power
// law: the position in [-1, 1] maps to [0, 1] and the channel gains are the
// cosine and sine of the quarter-turn-scaled position, so that
// gainL² + gainR² == 1 for every position. The position is smoothed.
type Pan struct {
	unitState

	pan *core.AtomicFloat
	pos *core.Smoothed
}

// NewPan returns a center-panned stage.
func NewPan() *Pan {
	p := &Pan{
		pan: core.NewAtomicFloat(defaultPan),
		pos: core.NewSmoothed(defaultPan, core.DefaultSmoothingSeconds),
	}
	p.init()

	return p
}

// Type returns "pan".
func (p *Pan) Type() string { return "pan" }

// Prepare sizes the position ramp for the given sample rate.
func (p *Pan) Prepare(sampleRate float64, maxBlock int) error {
	err := validateFormat(sampleRate, maxBlock)
	if err != nil {
		return err
	}

	p.sampleRate = sampleRate
	p.pos.Prepare(sampleRate)

	return nil
}

// PanGains returns the constant-power channel gains for a position in
// [-1, 1].
func PanGains(pan float64) (gainL, gainR float64) {
	p01 := (core.Clamp(pan, minPan, maxPan) + 1) * 0.5
	angle := p01 * math.Pi / 2

	return math.Cos(angle), math.Sin(angle)
}

// Process applies the constant-power gains to both channels.
func (p *Pan) Process(left, right []float64) {
	if !p.active(left, right) {
		return
	}

	if p.pos.Ramping() {
		for i := range left {
			gl, gr := PanGains(p.pos.Next())
			left[i] *= gl
			right[i] *= gr
		}

		return
	}

	gl, gr := PanGains(p.pos.Current())
	for i := range left {
		left[i] *= gl
		right[i] *= gr
	}
}

// Reset completes any pending position ramp.
func (p *Pan) Reset() {
	p.pos.Snap(p.pos.Target())
}

// SetParam recognizes "pan", clamped to [-1, 1].
func (p *Pan) SetParam(name string, value float64) bool {
	if name != "pan" {
		return false
	}

	v := core.Clamp(value, minPan, maxPan)
	p.pan.Store(v)
	p.pos.SetTarget(v)

	return true
}

// Params returns the current pan position.
func (p *Pan) Params() map[string]float64 {
	return map[string]float64{"pan": p.pan.Load()}
}

// SetPan is a typed convenience for SetParam("pan", v).
func (p *Pan) SetPan(v float64) {
	p.SetParam("pan", v)
}
