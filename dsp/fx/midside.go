package fx

import (
	"github.com/cwbudde/algo-mixer/dsp/core"
)

// MidSide adjusts the stereo image in the mid/side domain: the block is
// encoded to mid = (L+R)/2 and side = (L-R)/2, the two components get
// independent smoothed gains plus a width multiplier on the side, and the
// result is decoded back to L/R. Width 0 collapses to mono, width 2
// doubles the stereo content.
type MidSide struct {
	unitState

	midGainDB  *core.AtomicFloat
	sideGainDB *core.AtomicFloat
	width      *core.AtomicFloat

	midLevel  *core.Smoothed
	sideLevel *core.Smoothed
	widthPos  *core.Smoothed
}

// NewMidSide returns a neutral stage: 0 dB on both components, width 1.
func NewMidSide() *MidSide {
	m := &MidSide{
		midGainDB:  core.NewAtomicFloat(0),
		sideGainDB: core.NewAtomicFloat(0),
		width:      core.NewAtomicFloat(1),
		midLevel:   core.NewSmoothed(1, core.DefaultSmoothingSeconds),
		sideLevel:  core.NewSmoothed(1, core.DefaultSmoothingSeconds),
		widthPos:   core.NewSmoothed(1, core.DefaultSmoothingSeconds),
	}
	m.init()

	return m
}

// Type returns "midside".
func (m *MidSide) Type() string { return "midside" }

// Prepare sizes the gain and width ramps for the given sample rate.
func (m *MidSide) Prepare(sampleRate float64, maxBlock int) error {
	err := validateFormat(sampleRate, maxBlock)
	if err != nil {
		return err
	}

	m.sampleRate = sampleRate
	m.midLevel.Prepare(sampleRate)
	m.sideLevel.Prepare(sampleRate)
	m.widthPos.Prepare(sampleRate)

	return nil
}

// Process encodes, scales and decodes both channels in place.
func (m *MidSide) Process(left, right []float64) {
	if !m.active(left, right) {
		return
	}

	for i := range left {
		var (
			mg = m.midLevel.Next()
			sg = m.sideLevel.Next()
			w  = m.widthPos.Next()
		)

		mid := (left[i] + right[i]) * 0.5 * mg
		side := (left[i] - right[i]) * 0.5 * sg * w

		left[i] = mid + side
		right[i] = mid - side
	}
}

// Reset completes any pending ramps.
func (m *MidSide) Reset() {
	m.midLevel.Snap(m.midLevel.Target())
	m.sideLevel.Snap(m.sideLevel.Target())
	m.widthPos.Snap(m.widthPos.Target())
}

// SetParam recognizes midGainDB and sideGainDB (±12 dB) and width
// ([0, 2]).
func (m *MidSide) SetParam(name string, value float64) bool {
	switch name {
	case "midGainDB", "midGain":
		db := core.Clamp(value, -12, 12)
		m.midGainDB.Store(db)
		m.midLevel.SetTarget(core.DBToLinear(db))
	case "sideGainDB", "sideGain":
		db := core.Clamp(value, -12, 12)
		m.sideGainDB.Store(db)
		m.sideLevel.SetTarget(core.DBToLinear(db))
	case "width":
		w := core.Clamp(value, 0, 2)
		m.width.Store(w)
		m.widthPos.SetTarget(w)
	default:
		return false
	}

	return true
}

// Params returns the current mid/side gains and width.
func (m *MidSide) Params() map[string]float64 {
	return map[string]float64{
		"midGainDB":  m.midGainDB.Load(),
		"sideGainDB": m.sideGainDB.Load(),
		"width":      m.width.Load(),
	}
}
