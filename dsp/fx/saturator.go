package fx

import (
	"math"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

// Saturator curve selectors. The curve parameter is rounded to the nearest
// selector.
const (
	CurveSoft = iota
	CurveTape
	CurveTube
	CurveHard
)

// Saturator is a stereo waveshaping distortion. The input is scaled by the
// drive, pushed through the selected nonlinearity, attenuated by 1/sqrt(
// drive) to keep the output level roughly stable, and blended with the dry
// signal per the mix setting.
type Saturator struct {
	unitState

	drive *core.AtomicFloat
	mix   *core.AtomicFloat
	curve *core.AtomicFloat
}

// NewSaturator returns a gentle soft-clip saturator at drive 2 and full
// wet mix.
func NewSaturator() *Saturator {
	s := &Saturator{
		drive: core.NewAtomicFloat(2),
		mix:   core.NewAtomicFloat(1),
		curve: core.NewAtomicFloat(CurveSoft),
	}
	s.init()

	return s
}

// Type returns "saturator".
func (s *Saturator) Type() string { return "saturator" }

// Prepare records the format. The saturator is memoryless.
func (s *Saturator) Prepare(sampleRate float64, maxBlock int) error {
	err := validateFormat(sampleRate, maxBlock)
	if err != nil {
		return err
	}

	s.sampleRate = sampleRate

	return nil
}

// shape applies the selected transfer curve to a single sample.
func shape(x float64, curve int) float64 {
	switch curve {
	case CurveTape:
		return math.Tanh(x)
	case CurveTube:
		if x < 0 {
			return -(1 - math.Exp(x))
		}

		return 1 - math.Exp(-x)
	case CurveHard:
		return core.Clamp(x, -1, 1)
	default:
		return x / (1 + math.Abs(x))
	}
}

// Process saturates both channels.
func (s *Saturator) Process(left, right []float64) {
	if !s.active(left, right) {
		return
	}

	var (
		drive = s.drive.Load()
		mix   = s.mix.Load()
		curve = int(math.Round(s.curve.Load()))
		comp  = 1 / math.Sqrt(drive)
	)

	for i := range left {
		wetL := shape(left[i]*drive, curve) * comp
		wetR := shape(right[i]*drive, curve) * comp

		left[i] = left[i] + (wetL-left[i])*mix
		right[i] = right[i] + (wetR-right[i])*mix
	}
}

// Reset is a no-op; the saturator has no state.
func (s *Saturator) Reset() {}

// SetParam recognizes drive ([1, 20]), mix ([0, 1]) and curve (rounded to
// one of the curve selectors).
func (s *Saturator) SetParam(name string, value float64) bool {
	switch name {
	case "drive":
		s.drive.Store(core.Clamp(value, 1, 20))
	case "mix":
		s.mix.Store(core.Clamp(value, 0, 1))
	case "curve":
		s.curve.Store(core.Clamp(math.Round(value), CurveSoft, CurveHard))
	default:
		return false
	}

	return true
}

// Params returns the current drive, mix and curve selector.
func (s *Saturator) Params() map[string]float64 {
	return map[string]float64{
		"drive": s.drive.Load(),
		"mix":   s.mix.Load(),
		"curve": s.curve.Load(),
	}
}
