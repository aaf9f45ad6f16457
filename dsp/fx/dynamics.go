package fx

import (
	"math"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

// dbToLog2 converts a decibel figure to the log2 domain used by the gain
// computer.
const dbToLog2 = math.Ln10 / math.Ln2 / 20

// dynConfig is the parameter snapshot the audio goroutine applies.
type dynConfig struct {
	thresholdDB float64
	ratio       float64
	attackMs    float64
	releaseMs   float64
	kneeDB      float64
	makeupDB    float64
}

// Compressor is a feed-forward stereo compressor with a soft knee. Both
// channels share one detector (the per-sample max of the absolute values)
// so the stereo image does not shift under gain reduction. The static
// curve is evaluated in the log2 domain, which trades the usual ln-based
// transfer math for the cheaper Log2/Exp2 pair.
type Compressor struct {
	unitState

	threshold *core.AtomicFloat
	ratio     *core.AtomicFloat
	attack    *core.AtomicFloat
	release   *core.AtomicFloat
	knee      *core.AtomicFloat
	makeup    *core.AtomicFloat

	applied dynConfig

	// derived from applied at rebuild
	thresholdLog2 float64
	kneeLog2      float64
	slope         float64
	makeupLin     float64
	attackCoeff   float64
	releaseCoeff  float64

	envelope float64
}

// NewCompressor returns a compressor with a -18 dB threshold, 4:1 ratio,
// 10 ms attack, 100 ms release, 6 dB knee and no makeup gain.
func NewCompressor() *Compressor {
	c := &Compressor{
		threshold: core.NewAtomicFloat(-18),
		ratio:     core.NewAtomicFloat(4),
		attack:    core.NewAtomicFloat(10),
		release:   core.NewAtomicFloat(100),
		knee:      core.NewAtomicFloat(6),
		makeup:    core.NewAtomicFloat(0),
	}
	c.init()

	return c
}

// Type returns "compressor".
func (c *Compressor) Type() string { return "compressor" }

// Prepare recomputes the ballistics for the new sample rate and clears the
// envelope.
func (c *Compressor) Prepare(sampleRate float64, maxBlock int) error {
	err := validateFormat(sampleRate, maxBlock)
	if err != nil {
		return err
	}

	c.sampleRate = sampleRate
	c.rebuild(c.snapshot())
	c.Reset()

	return nil
}

func (c *Compressor) snapshot() dynConfig {
	return dynConfig{
		thresholdDB: c.threshold.Load(),
		ratio:       c.ratio.Load(),
		attackMs:    c.attack.Load(),
		releaseMs:   c.release.Load(),
		kneeDB:      c.knee.Load(),
		makeupDB:    c.makeup.Load(),
	}
}

// timeCoeff maps a time constant in milliseconds to a one-pole smoothing
// coefficient reaching half the step within the given time.
func timeCoeff(ms, sampleRate float64) float64 {
	samples := ms * 0.001 * sampleRate
	if samples < 1 {
		return 1
	}

	return 1 - math.Exp(-math.Ln2/samples)
}

func (c *Compressor) rebuild(cfg dynConfig) {
	c.thresholdLog2 = cfg.thresholdDB * dbToLog2
	c.kneeLog2 = cfg.kneeDB * dbToLog2
	c.slope = 1/cfg.ratio - 1
	c.makeupLin = core.DBToLinear(cfg.makeupDB)
	c.attackCoeff = timeCoeff(cfg.attackMs, c.sampleRate)
	c.releaseCoeff = timeCoeff(cfg.releaseMs, c.sampleRate)

	c.applied = cfg
}

// gainFor returns the linear gain for a detector level, per the soft-knee
// static curve.
func (c *Compressor) gainFor(level float64) float64 {
	if level < 1e-10 {
		return c.makeupLin
	}

	overshoot := math.Log2(level) - c.thresholdLog2

	var reduction float64

	switch {
	case 2*overshoot <= -c.kneeLog2:
		reduction = 0
	case 2*overshoot < c.kneeLog2:
		half := overshoot + c.kneeLog2/2
		reduction = c.slope * half * half / (2 * c.kneeLog2)
	default:
		reduction = c.slope * overshoot
	}

	return math.Exp2(reduction) * c.makeupLin
}

// Process compresses both channels against the shared detector.
func (c *Compressor) Process(left, right []float64) {
	if cfg := c.snapshot(); cfg != c.applied {
		c.rebuild(cfg)
	}

	if !c.active(left, right) {
		return
	}

	for i := range left {
		detector := math.Max(math.Abs(left[i]), math.Abs(right[i]))

		coeff := c.releaseCoeff
		if detector > c.envelope {
			coeff = c.attackCoeff
		}

		c.envelope += coeff * (detector - c.envelope)
		c.envelope = core.FlushDenormals(c.envelope)

		g := c.gainFor(c.envelope)
		left[i] *= g
		right[i] *= g
	}
}

// Reset clears the envelope follower.
func (c *Compressor) Reset() {
	c.envelope = 0
}

// SetParam recognizes thresholdDB, ratio, attackMs, releaseMs, kneeDB and
// makeupDB.
func (c *Compressor) SetParam(name string, value float64) bool {
	switch name {
	case "thresholdDB", "threshold":
		c.threshold.Store(core.Clamp(value, -60, 0))
	case "ratio":
		c.ratio.Store(core.Clamp(value, 1, 20))
	case "attackMs", "attack":
		c.attack.Store(core.Clamp(value, 0.1, 500))
	case "releaseMs", "release":
		c.release.Store(core.Clamp(value, 1, 2000))
	case "kneeDB", "knee":
		c.knee.Store(core.Clamp(value, 0, 24))
	case "makeupDB", "makeup":
		c.makeup.Store(core.Clamp(value, 0, 24))
	default:
		return false
	}

	return true
}

// Params returns the current compressor settings.
func (c *Compressor) Params() map[string]float64 {
	return map[string]float64{
		"thresholdDB": c.threshold.Load(),
		"ratio":       c.ratio.Load(),
		"attackMs":    c.attack.Load(),
		"releaseMs":   c.release.Load(),
		"kneeDB":      c.knee.Load(),
		"makeupDB":    c.makeup.Load(),
	}
}

// Limiter is a hard-knee compressor with a fixed 20:1 ratio and a near-
// instant attack, exposing only the ceiling and the release time.
type Limiter struct {
	comp *Compressor
}

// NewLimiter returns a limiter with a -1 dB ceiling and a 50 ms release.
func NewLimiter() *Limiter {
	l := &Limiter{comp: NewCompressor()}
	l.comp.ratio.Store(20)
	l.comp.attack.Store(0.05)
	l.comp.knee.Store(0)
	l.comp.threshold.Store(-1)
	l.comp.release.Store(50)

	return l
}

// Type returns "limiter".
func (l *Limiter) Type() string { return "limiter" }

// Prepare forwards to the wrapped compressor.
func (l *Limiter) Prepare(sampleRate float64, maxBlock int) error {
	return l.comp.Prepare(sampleRate, maxBlock)
}

// Process forwards to the wrapped compressor.
func (l *Limiter) Process(left, right []float64) {
	l.comp.Process(left, right)
}

// Reset clears the envelope follower.
func (l *Limiter) Reset() {
	l.comp.Reset()
}

// SetEnabled toggles the limiter.
func (l *Limiter) SetEnabled(enabled bool) {
	l.comp.SetEnabled(enabled)
}

// Enabled reports whether the limiter is active.
func (l *Limiter) Enabled() bool {
	return l.comp.Enabled()
}

// SetParam recognizes thresholdDB (the ceiling, [-24, 0]) and releaseMs
// ([1, 500]). The ratio, attack and knee are fixed.
func (l *Limiter) SetParam(name string, value float64) bool {
	switch name {
	case "thresholdDB", "threshold":
		l.comp.threshold.Store(core.Clamp(value, -24, 0))
	case "releaseMs", "release":
		l.comp.release.Store(core.Clamp(value, 1, 500))
	default:
		return false
	}

	return true
}

// Params returns the ceiling and release time.
func (l *Limiter) Params() map[string]float64 {
	return map[string]float64{
		"thresholdDB": l.comp.threshold.Load(),
		"releaseMs":   l.comp.release.Load(),
	}
}
