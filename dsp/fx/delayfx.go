package fx

import (
	"math"

	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/dsp/delay"
)

// maxDelaySeconds bounds the delay time and sizes the lines at Prepare.
const maxDelaySeconds = 2.0

// Delay is a stereo feedback delay with independent lines per channel and
// a wet/dry mix. Both channels share one time, feedback and mix setting.
type Delay struct {
	unitState

	timeMs   *core.AtomicFloat
	feedback *core.AtomicFloat
	wet      *core.AtomicFloat
	dry      *core.AtomicFloat

	lineL *delay.Line
	lineR *delay.Line
}

// NewDelay returns a delay with 250 ms time, 0.3 feedback and a 30% wet
// mix.
func NewDelay() *Delay {
	d := &Delay{
		timeMs:   core.NewAtomicFloat(250),
		feedback: core.NewAtomicFloat(0.3),
		wet:      core.NewAtomicFloat(0.3),
		dry:      core.NewAtomicFloat(1),
	}
	d.init()

	return d
}

// Type returns "delay".
func (d *Delay) Type() string { return "delay" }

// Prepare allocates both delay lines for the maximum supported time at the
// given sample rate.
func (d *Delay) Prepare(sampleRate float64, maxBlock int) error {
	err := validateFormat(sampleRate, maxBlock)
	if err != nil {
		return err
	}

	size := int(math.Ceil(maxDelaySeconds*sampleRate)) + 1

	lineL, err := delay.New(size)
	if err != nil {
		return err
	}

	lineR, err := delay.New(size)
	if err != nil {
		return err
	}

	d.sampleRate = sampleRate
	d.lineL = lineL
	d.lineR = lineR

	return nil
}

// delaySamples converts the current time setting to a whole-sample delay,
// clamped to the line capacity.
func (d *Delay) delaySamples() int {
	n := int(math.Round(d.timeMs.Load() * 0.001 * d.sampleRate))
	if n < 1 {
		n = 1
	}

	if limit := d.lineL.Len(); n > limit {
		n = limit
	}

	return n
}

// Process mixes each channel with its delayed signal and feeds the sum
// back into the line.
func (d *Delay) Process(left, right []float64) {
	if !d.active(left, right) || d.lineL == nil {
		return
	}

	var (
		samples = d.delaySamples()
		fb      = d.feedback.Load()
		wet     = d.wet.Load()
		dry     = d.dry.Load()
	)

	for i := range left {
		wetL := d.lineL.Read(samples - 1)
		wetR := d.lineR.Read(samples - 1)

		d.lineL.Write(core.FlushDenormals(left[i] + wetL*fb))
		d.lineR.Write(core.FlushDenormals(right[i] + wetR*fb))

		left[i] = dry*left[i] + wet*wetL
		right[i] = dry*right[i] + wet*wetR
	}
}

// Reset clears both delay lines.
func (d *Delay) Reset() {
	if d.lineL != nil {
		d.lineL.Reset()
		d.lineR.Reset()
	}
}

// SetParam recognizes timeMs ([1, 2000]), feedback ([0, 0.95]), wet and
// dry ([0, 1]).
func (d *Delay) SetParam(name string, value float64) bool {
	switch name {
	case "timeMs", "time":
		d.timeMs.Store(core.Clamp(value, 1, maxDelaySeconds*1000))
	case "feedback":
		d.feedback.Store(core.Clamp(value, 0, 0.95))
	case "wet":
		d.wet.Store(core.Clamp(value, 0, 1))
	case "dry":
		d.dry.Store(core.Clamp(value, 0, 1))
	default:
		return false
	}

	return true
}

// Params returns the current delay settings.
func (d *Delay) Params() map[string]float64 {
	return map[string]float64{
		"timeMs":   d.timeMs.Load(),
		"feedback": d.feedback.Load(),
		"wet":      d.wet.Load(),
		"dry":      d.dry.Load(),
	}
}
