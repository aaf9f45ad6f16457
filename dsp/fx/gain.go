package fx

import (
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

const (
	defaultGainDB = 0.0
	minGainDB     = -60.0
	maxGainDB     = 12.0
)

// Gain is a smoothed linear gain stage. The target level ramps over ~50 ms
// so that control-thread writes never produce audible clicks.
type Gain struct {
	unitState

	gainDB *core.AtomicFloat
	level  *core.Smoothed
}

// NewGain returns a unity-gain stage.
func NewGain() *Gain {
	g := &Gain{
		gainDB: core.NewAtomicFloat(defaultGainDB),
		level:  core.NewSmoothed(core.DBToLinear(defaultGainDB), core.DefaultSmoothingSeconds),
	}
	g.init()

	return g
}

// Type returns "gain".
func (g *Gain) Type() string { return "gain" }

// Prepare sizes the ramp for the given sample rate.
func (g *Gain) Prepare(sampleRate float64, maxBlock int) error {
	err := validateFormat(sampleRate, maxBlock)
	if err != nil {
		return err
	}

	g.sampleRate = sampleRate
	g.level.Prepare(sampleRate)

	return nil
}

// Process scales both channels by the (possibly ramping) linear gain.
func (g *Gain) Process(left, right []float64) {
	if !g.active(left, right) {
		return
	}

	if g.level.Ramping() {
		for i := range left {
			v := g.level.Next()
			left[i] *= v
			right[i] *= v
		}

		return
	}

	v := g.level.Current()
	if v == 1 {
		return
	}

	vecmath.ScaleBlockInPlace(left, v)
	vecmath.ScaleBlockInPlace(right, v)
}

// Reset completes any pending ramp. Gain has no other transient state.
func (g *Gain) Reset() {
	g.level.Snap(g.level.Target())
}

// SetParam recognizes "gainDB" (alias "gain"), clamped to [-60, +12] dB.
func (g *Gain) SetParam(name string, value float64) bool {
	switch name {
	case "gainDB", "gain":
		db := core.Clamp(value, minGainDB, maxGainDB)
		g.gainDB.Store(db)
		g.level.SetTarget(core.DBToLinear(db))

		return true
	}

	return false
}

// Params returns the current gain in dB.
func (g *Gain) Params() map[string]float64 {
	return map[string]float64{"gainDB": g.gainDB.Load()}
}

// SetGainDB is a typed convenience for SetParam("gainDB", db).
func (g *Gain) SetGainDB(db float64) {
	g.SetParam("gainDB", db)
}
