package fx

import (
	"math"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

const (
	reverbNumCombs     = 8
	reverbNumAllpasses = 4

	reverbInputGain = 0.015

	// Tuning values calibrated for 44.1 kHz; Prepare rescales them to the
	// actual sample rate. The right channel runs the same network offset by
	// a small spread so the tail decorrelates.
	reverbStereoSpread = 23

	reverbRoomScale  = 0.28
	reverbRoomOffset = 0.7
	reverbDampScale  = 0.4
)

var (
	reverbCombTunings    = [reverbNumCombs]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	reverbAllpassTunings = [reverbNumAllpasses]int{556, 441, 341, 225}
)

type reverbAllpass struct {
	feedback float64
	buffer   []float64
	index    int
}

func newReverbAllpass(size int) reverbAllpass {
	return reverbAllpass{
		feedback: 0.5,
		buffer:   make([]float64, size),
	}
}

func (a *reverbAllpass) process(input float64) float64 {
	bufOut := a.buffer[a.index]
	output := bufOut - input
	a.buffer[a.index] = input + bufOut*a.feedback
	a.index++
	if a.index >= len(a.buffer) {
		a.index = 0
	}

	return output
}

func (a *reverbAllpass) reset() {
	core.Zero(a.buffer)
	a.index = 0
}

type reverbComb struct {
	feedback    float64
	filterStore float64
	dampA       float64
	dampB       float64
	buffer      []float64
	index       int
}

func newReverbComb(size int) reverbComb {
	return reverbComb{buffer: make([]float64, size)}
}

func (c *reverbComb) setDamp(v float64) {
	c.dampA = v
	c.dampB = 1 - v
}

func (c *reverbComb) process(input float64) float64 {
	output := c.buffer[c.index]
	c.filterStore = core.FlushDenormals(output*c.dampB + c.filterStore*c.dampA)
	c.buffer[c.index] = input + c.filterStore*c.feedback
	c.index++
	if c.index >= len(c.buffer) {
		c.index = 0
	}

	return output
}

func (c *reverbComb) reset() {
	core.Zero(c.buffer)
	c.index = 0
	c.filterStore = 0
}

// reverbConfig is the parameter snapshot the audio goroutine applies.
type reverbConfig struct {
	roomSize float64
	damp     float64
	wet      float64
	dry      float64
	width    float64
}

// Reverb is a stereo Schroeder/Freeverb-style reverb: eight parallel
// lowpass-feedback combs into four serial allpasses per channel, with the
// right channel's delays offset to decorrelate the tail. The width setting
// cross-mixes the two wet signals from fully mono (0) to fully decoupled
// (1).
type Reverb struct {
	unitState

	roomSize *core.AtomicFloat
	damp     *core.AtomicFloat
	wet      *core.AtomicFloat
	dry      *core.AtomicFloat
	width    *core.AtomicFloat

	applied reverbConfig

	wet1, wet2 float64
	dryGain    float64

	combsL   [reverbNumCombs]reverbComb
	combsR   [reverbNumCombs]reverbComb
	allpassL [reverbNumAllpasses]reverbAllpass
	allpassR [reverbNumAllpasses]reverbAllpass
}

// NewReverb returns a reverb with a medium room, moderate damping, a 30%
// wet mix and full stereo width.
func NewReverb() *Reverb {
	r := &Reverb{
		roomSize: core.NewAtomicFloat(0.5),
		damp:     core.NewAtomicFloat(0.5),
		wet:      core.NewAtomicFloat(0.3),
		dry:      core.NewAtomicFloat(1),
		width:    core.NewAtomicFloat(1),
	}
	r.init()

	return r
}

// Type returns "reverb".
func (r *Reverb) Type() string { return "reverb" }

// Prepare allocates the comb and allpass networks, scaling the 44.1 kHz
// reference tunings to the given sample rate.
func (r *Reverb) Prepare(sampleRate float64, maxBlock int) error {
	err := validateFormat(sampleRate, maxBlock)
	if err != nil {
		return err
	}

	scale := sampleRate / 44100.0

	scaled := func(tuning int) int {
		n := int(math.Round(float64(tuning) * scale))
		if n < 1 {
			n = 1
		}

		return n
	}

	for i, tuning := range reverbCombTunings {
		r.combsL[i] = newReverbComb(scaled(tuning))
		r.combsR[i] = newReverbComb(scaled(tuning + reverbStereoSpread))
	}

	for i, tuning := range reverbAllpassTunings {
		r.allpassL[i] = newReverbAllpass(scaled(tuning))
		r.allpassR[i] = newReverbAllpass(scaled(tuning + reverbStereoSpread))
	}

	r.sampleRate = sampleRate
	r.rebuild(r.snapshot())

	return nil
}

func (r *Reverb) snapshot() reverbConfig {
	return reverbConfig{
		roomSize: r.roomSize.Load(),
		damp:     r.damp.Load(),
		wet:      r.wet.Load(),
		dry:      r.dry.Load(),
		width:    r.width.Load(),
	}
}

func (r *Reverb) rebuild(cfg reverbConfig) {
	feedback := cfg.roomSize*reverbRoomScale + reverbRoomOffset
	damp := cfg.damp * reverbDampScale

	for i := range r.combsL {
		r.combsL[i].feedback = feedback
		r.combsR[i].feedback = feedback
		r.combsL[i].setDamp(damp)
		r.combsR[i].setDamp(damp)
	}

	r.wet1 = cfg.wet * (cfg.width/2 + 0.5)
	r.wet2 = cfg.wet * (1 - cfg.width) / 2
	r.dryGain = cfg.dry

	r.applied = cfg
}

// Process runs both channels through their reverb networks and mixes the
// wet signals per the width setting.
func (r *Reverb) Process(left, right []float64) {
	if cfg := r.snapshot(); cfg != r.applied {
		r.rebuild(cfg)
	}

	if !r.active(left, right) || r.combsL[0].buffer == nil {
		return
	}

	for i := range left {
		input := (left[i] + right[i]) * reverbInputGain

		var outL, outR float64
		for j := range r.combsL {
			outL += r.combsL[j].process(input)
			outR += r.combsR[j].process(input)
		}

		for j := range r.allpassL {
			outL = r.allpassL[j].process(outL)
			outR = r.allpassR[j].process(outR)
		}

		left[i] = outL*r.wet1 + outR*r.wet2 + left[i]*r.dryGain
		right[i] = outR*r.wet1 + outL*r.wet2 + right[i]*r.dryGain
	}
}

// Reset clears every comb and allpass buffer.
func (r *Reverb) Reset() {
	for i := range r.combsL {
		r.combsL[i].reset()
		r.combsR[i].reset()
	}

	for i := range r.allpassL {
		r.allpassL[i].reset()
		r.allpassR[i].reset()
	}
}

// SetParam recognizes roomSize, damp, wet, dry and width, all in [0, 1].
func (r *Reverb) SetParam(name string, value float64) bool {
	v := core.Clamp(value, 0, 1)

	switch name {
	case "roomSize", "room":
		r.roomSize.Store(v)
	case "damp", "damping":
		r.damp.Store(v)
	case "wet":
		r.wet.Store(v)
	case "dry":
		r.dry.Store(v)
	case "width":
		r.width.Store(v)
	default:
		return false
	}

	return true
}

// Params returns the current reverb settings.
func (r *Reverb) Params() map[string]float64 {
	return map[string]float64{
		"roomSize": r.roomSize.Load(),
		"damp":     r.damp.Load(),
		"wet":      r.wet.Load(),
		"dry":      r.dry.Load(),
		"width":    r.width.Load(),
	}
}
