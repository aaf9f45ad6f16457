package core

import "math"

// DefaultSmoothingSeconds is the ramp duration used by gain-like parameters
// when no explicit duration is configured. 50 ms is short enough to feel
// immediate and long enough to avoid audible zipper noise.
const DefaultSmoothingSeconds = 0.05

// Smoothed is a parameter value that ramps linearly toward a target over a
// fixed duration. The target may be written from a control goroutine at any
// time; the audio goroutine advances the ramp by calling Next once per
// sample. A write takes effect no later than the next processed sample.
type Smoothed struct {
	target AtomicFloat

	current     float64
	step        float64
	rampSeconds float64
	rampSamples float64
	lastTarget  float64
}

// NewSmoothed returns a Smoothed starting (and resting) at initial, ramping
// over rampSeconds. A rampSeconds of 0 or less snaps immediately.
func NewSmoothed(initial, rampSeconds float64) *Smoothed {
	s := &Smoothed{
		current:     initial,
		lastTarget:  initial,
		rampSeconds: rampSeconds,
	}
	s.target.Store(initial)

	return s
}

// Prepare recomputes the per-sample step count for the given sample rate and
// snaps the current value to the pending target. Call before processing.
func (s *Smoothed) Prepare(sampleRate float64) {
	s.rampSamples = s.rampSeconds * sampleRate
	s.Snap(s.target.Load())
}

// SetTarget sets the value the ramp moves toward. Safe to call concurrently
// with Next.
func (s *Smoothed) SetTarget(v float64) {
	s.target.Store(v)
}

// Snap jumps directly to v without ramping.
func (s *Smoothed) Snap(v float64) {
	s.target.Store(v)
	s.current = v
	s.lastTarget = v
	s.step = 0
}

// Target returns the most recently written target value.
func (s *Smoothed) Target() float64 {
	return s.target.Load()
}

// Current returns the present ramp position without advancing it.
func (s *Smoothed) Current() float64 {
	return s.current
}

// Ramping reports whether the current value has not yet reached the target.
// Only meaningful on the goroutine that calls Next.
func (s *Smoothed) Ramping() bool {
	s.observeTarget()
	return s.current != s.lastTarget
}

// Next advances the ramp by one sample and returns the new current value.
func (s *Smoothed) Next() float64 {
	s.observeTarget()

	if s.current == s.lastTarget {
		return s.current
	}

	s.current += s.step
	if (s.step > 0 && s.current >= s.lastTarget) ||
		(s.step < 0 && s.current <= s.lastTarget) {
		s.current = s.lastTarget
		s.step = 0
	}

	return s.current
}

// observeTarget picks up a target written by the control goroutine and
// recomputes the linear step. Called from the audio goroutine only.
func (s *Smoothed) observeTarget() {
	t := s.target.Load()
	if t == s.lastTarget {
		return
	}

	s.lastTarget = t

	if s.rampSamples <= 0 {
		s.current = t
		s.step = 0

		return
	}

	s.step = (t - s.current) / s.rampSamples
	if math.Abs(s.step) < 1e-15 {
		s.current = t
		s.step = 0
	}
}
