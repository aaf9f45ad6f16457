package fx

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-mixer/dsp/core"
)

// TestGainConvergesToTarget ramps to -6 dB and checks that after the
// smoothing window the block is scaled by the exact linear gain.
func TestGainConvergesToTarget(t *testing.T) {
	t.Parallel()

	const sr = 48000.0

	g := NewGain()
	if err := g.Prepare(sr, 512); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	g.SetGainDB(-6)

	// Burn through the ramp.
	left := make([]float64, 512)
	right := make([]float64, 512)

	for range 10 {
		for i := range left {
			left[i] = 1
			right[i] = 1
		}

		g.Process(left, right)
	}

	want := core.DBToLinear(-6)
	for i := range left {
		left[i] = 1
		right[i] = 1
	}

	g.Process(left, right)

	for i := range left {
		if math.Abs(left[i]-want) > 1e-12 || math.Abs(right[i]-want) > 1e-12 {
			t.Fatalf("sample %d: got %v/%v, want %v", i, left[i], right[i], want)
		}
	}
}

// TestGainRampIsMonotonic checks that a downward gain change produces a
// strictly non-increasing sample sequence on constant input.
func TestGainRampIsMonotonic(t *testing.T) {
	t.Parallel()

	g := NewGain()
	if err := g.Prepare(48000, 4096); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	g.SetGainDB(-20)

	left := make([]float64, 4096)
	right := make([]float64, 4096)
	for i := range left {
		left[i] = 1
		right[i] = 1
	}

	g.Process(left, right)

	for i := 1; i < len(left); i++ {
		if left[i] > left[i-1]+1e-15 {
			t.Fatalf("ramp increased at %d: %v -> %v", i, left[i-1], left[i])
		}
	}
}

func TestGainParamClamping(t *testing.T) {
	t.Parallel()

	g := NewGain()
	g.SetParam("gainDB", 99)

	if got := g.Params()["gainDB"]; got != 12 {
		t.Errorf("over-range gain = %v, want 12", got)
	}

	g.SetParam("gainDB", -300)

	if got := g.Params()["gainDB"]; got != -60 {
		t.Errorf("under-range gain = %v, want -60", got)
	}
}
