package core

import (
	"math"
	"sync/atomic"
)

// AtomicFloat is a float64 that can be written from a control goroutine and
// read from the audio goroutine without locking. Reads always observe a value
// that was fully written; there is no tearing.
type AtomicFloat struct {
	bits atomic.Uint64
}

// NewAtomicFloat returns an AtomicFloat initialized to v.
func NewAtomicFloat(v float64) *AtomicFloat {
	f := &AtomicFloat{}
	f.Store(v)

	return f
}

// Store atomically replaces the value.
func (f *AtomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

// Load atomically reads the value.
func (f *AtomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}
