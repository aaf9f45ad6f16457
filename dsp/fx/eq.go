package fx

import (
	"github.com/cwbudde/algo-mixer/dsp/core"
	"github.com/cwbudde/algo-mixer/dsp/filter/biquad"
	"github.com/cwbudde/algo-mixer/dsp/filter/design"
)

const (
	defaultEQLowFreq  = 200.0
	defaultEQMidFreq  = 1000.0
	defaultEQHighFreq = 5000.0
	defaultEQMidQ     = 0.707

	minEQGainDB = -12.0
	maxEQGainDB = 12.0
)

// eqConfig is the parameter snapshot the audio goroutine applies. Coeffi-
// cients are recomputed only when the snapshot actually changed.
type eqConfig struct {
	lowGain, midGain, highGain float64
	lowFreq, midFreq, highFreq float64
	midQ                       float64
}

// EQ3 is a three-band equalizer: a low shelf, a peaking band and a high
// shelf in series, each with independently adjustable gain. Band frequen-
// cies default to 200 Hz / 1 kHz / 5 kHz and may be moved.
type EQ3 struct {
	unitState

	lowGain  *core.AtomicFloat
	midGain  *core.AtomicFloat
	highGain *core.AtomicFloat
	lowFreq  *core.AtomicFloat
	midFreq  *core.AtomicFloat
	highFreq *core.AtomicFloat
	midQ     *core.AtomicFloat

	applied eqConfig

	lowL, lowR   biquad.Section
	midL, midR   biquad.Section
	highL, highR biquad.Section
}

// NewEQ3 returns a flat (0 dB on all bands) equalizer.
func NewEQ3() *EQ3 {
	e := &EQ3{
		lowGain:  core.NewAtomicFloat(0),
		midGain:  core.NewAtomicFloat(0),
		highGain: core.NewAtomicFloat(0),
		lowFreq:  core.NewAtomicFloat(defaultEQLowFreq),
		midFreq:  core.NewAtomicFloat(defaultEQMidFreq),
		highFreq: core.NewAtomicFloat(defaultEQHighFreq),
		midQ:     core.NewAtomicFloat(defaultEQMidQ),
	}
	e.init()

	return e
}

// Type returns "eq".
func (e *EQ3) Type() string { return "eq" }

// Prepare recomputes all band coefficients for the new sample rate and
// clears filter history.
func (e *EQ3) Prepare(sampleRate float64, maxBlock int) error {
	err := validateFormat(sampleRate, maxBlock)
	if err != nil {
		return err
	}

	e.sampleRate = sampleRate
	e.rebuild(e.snapshot())
	e.Reset()

	return nil
}

func (e *EQ3) snapshot() eqConfig {
	return eqConfig{
		lowGain:  e.lowGain.Load(),
		midGain:  e.midGain.Load(),
		highGain: e.highGain.Load(),
		lowFreq:  e.lowFreq.Load(),
		midFreq:  e.midFreq.Load(),
		highFreq: e.highFreq.Load(),
		midQ:     e.midQ.Load(),
	}
}

func (e *EQ3) rebuild(cfg eqConfig) {
	low := design.LowShelf(cfg.lowFreq, cfg.lowGain, defaultEQMidQ, e.sampleRate)
	mid := design.Peak(cfg.midFreq, cfg.midGain, cfg.midQ, e.sampleRate)
	high := design.HighShelf(cfg.highFreq, cfg.highGain, defaultEQMidQ, e.sampleRate)

	e.lowL.SetCoefficients(low)
	e.lowR.SetCoefficients(low)
	e.midL.SetCoefficients(mid)
	e.midR.SetCoefficients(mid)
	e.highL.SetCoefficients(high)
	e.highR.SetCoefficients(high)

	e.applied = cfg
}

// Process runs both channels through the three bands in series.
func (e *EQ3) Process(left, right []float64) {
	if cfg := e.snapshot(); cfg != e.applied {
		e.rebuild(cfg)
	}

	if !e.active(left, right) {
		return
	}

	e.lowL.ProcessBlock(left)
	e.midL.ProcessBlock(left)
	e.highL.ProcessBlock(left)

	e.lowR.ProcessBlock(right)
	e.midR.ProcessBlock(right)
	e.highR.ProcessBlock(right)
}

// Reset clears the filter history of every band.
func (e *EQ3) Reset() {
	e.lowL.Reset()
	e.lowR.Reset()
	e.midL.Reset()
	e.midR.Reset()
	e.highL.Reset()
	e.highR.Reset()
}

// SetParam recognizes lowGainDB/midGainDB/highGainDB (±12 dB), the band
// frequencies lowFreq/midFreq/highFreq and midQ.
func (e *EQ3) SetParam(name string, value float64) bool {
	switch name {
	case "lowGainDB", "lowGain":
		e.lowGain.Store(core.Clamp(value, minEQGainDB, maxEQGainDB))
	case "midGainDB", "midGain":
		e.midGain.Store(core.Clamp(value, minEQGainDB, maxEQGainDB))
	case "highGainDB", "highGain":
		e.highGain.Store(core.Clamp(value, minEQGainDB, maxEQGainDB))
	case "lowFreq":
		e.lowFreq.Store(core.Clamp(value, 20, 1000))
	case "midFreq":
		e.midFreq.Store(core.Clamp(value, 200, 8000))
	case "highFreq":
		e.highFreq.Store(core.Clamp(value, 1000, 16000))
	case "midQ":
		e.midQ.Store(core.Clamp(value, 0.1, 10))
	default:
		return false
	}

	return true
}

// Params returns the current band gains, frequencies and mid Q.
func (e *EQ3) Params() map[string]float64 {
	return map[string]float64{
		"lowGainDB":  e.lowGain.Load(),
		"midGainDB":  e.midGain.Load(),
		"highGainDB": e.highGain.Load(),
		"lowFreq":    e.lowFreq.Load(),
		"midFreq":    e.midFreq.Load(),
		"highFreq":   e.highFreq.Load(),
		"midQ":       e.midQ.Load(),
	}
}
