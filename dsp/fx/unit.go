// Package fx provides the mixer's stereo effect units: stateful audio
// transforms with a uniform prepare/process/reset lifecycle and named,
// range-clamped parameters.
//
// All units share the same concurrency contract: parameters are written by
// a control goroutine through SetParam and observed by the audio goroutine
// at the start of the next processed block (gain-like parameters addition-
// ally ramp over ~50 ms to avoid clicks). The Process methods never
// allocate, never block, and never panic on malformed buffers.
package fx

import (
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

// Unit is the capability set common to every effect type. Parameter
// dispatch is uniform: SetParam reports whether the unit recognized the
// name, so callers never need to know concrete types.
type Unit interface {
	// Type returns the canonical effect type tag ("gain", "reverb", ...).
	Type() string

	// Prepare sizes internal state for the given format. It must be called
	// before Process and may be called again on format changes.
	Prepare(sampleRate float64, maxBlock int) error

	// Process transforms one block of planar stereo audio in place.
	// A disabled unit passes audio through unmodified. Mismatched or empty
	// buffers are a safe no-op.
	Process(left, right []float64)

	// Reset clears transient state (filter history, delay lines, envelopes)
	// without changing parameters.
	Reset()

	// SetEnabled toggles the unit. Safe to call concurrently with Process.
	SetEnabled(enabled bool)
	Enabled() bool

	// SetParam sets a named parameter, silently clamping out-of-range
	// values, and reports whether the name was recognized. Safe to call
	// concurrently with Process; the new value takes effect no later than
	// the next processed block.
	SetParam(name string, value float64) bool

	// Params returns the current parameter values keyed by name. Intended
	// for control-side serialization, not for the audio path.
	Params() map[string]float64
}

// unitState carries the plumbing shared by all units.
type unitState struct {
	enabled    atomic.Bool
	sampleRate float64
}

func (s *unitState) init() {
	s.enabled.Store(true)
}

// SetEnabled toggles the unit's bypass flag.
func (s *unitState) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Enabled reports whether the unit is active.
func (s *unitState) Enabled() bool {
	return s.enabled.Load()
}

// active reports whether the unit should transform the given block.
func (s *unitState) active(left, right []float64) bool {
	if !s.enabled.Load() || s.sampleRate <= 0 {
		return false
	}

	return len(left) > 0 && len(left) == len(right)
}

func validateFormat(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("fx: sample rate must be > 0 and finite: %f", sampleRate)
	}

	if maxBlock <= 0 {
		return fmt.Errorf("fx: max block size must be > 0: %d", maxBlock)
	}

	return nil
}
