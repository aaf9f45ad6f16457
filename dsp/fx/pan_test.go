package fx

import (
	"math"
	"testing"
)

// TestPanGainsConstantPower sweeps the position range and checks that the
// squared channel gains always sum to one.
func TestPanGainsConstantPower(t *testing.T) {
	t.Parallel()

	for pan := -1.0; pan <= 1.0; pan += 0.05 {
		gl, gr := PanGains(pan)

		if power := gl*gl + gr*gr; math.Abs(power-1) > 1e-12 {
			t.Errorf("pan %v: gl²+gr² = %v", pan, power)
		}
	}
}

func TestPanGainsExtremes(t *testing.T) {
	t.Parallel()

	gl, gr := PanGains(-1)
	if math.Abs(gl-1) > 1e-12 || math.Abs(gr) > 1e-12 {
		t.Errorf("hard left: gl=%v gr=%v", gl, gr)
	}

	gl, gr = PanGains(1)
	if math.Abs(gl) > 1e-12 || math.Abs(gr-1) > 1e-12 {
		t.Errorf("hard right: gl=%v gr=%v", gl, gr)
	}

	gl, gr = PanGains(0)
	if math.Abs(gl-gr) > 1e-12 {
		t.Errorf("center: gl=%v gr=%v, want equal", gl, gr)
	}
}

// TestPanHardLeftSilencesRight pans fully left, burns through the ramp
// and checks the right channel is silent.
func TestPanHardLeftSilencesRight(t *testing.T) {
	t.Parallel()

	p := NewPan()
	if err := p.Prepare(48000, 512); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	p.SetPan(-1)
	p.Reset()

	left := make([]float64, 256)
	right := make([]float64, 256)
	for i := range left {
		left[i] = 0.5
		right[i] = 0.5
	}

	p.Process(left, right)

	for i := range right {
		if math.Abs(right[i]) > 1e-12 {
			t.Fatalf("right[%d] = %v, want 0", i, right[i])
		}

		if math.Abs(left[i]-0.5) > 1e-12 {
			t.Fatalf("left[%d] = %v, want 0.5", i, left[i])
		}
	}
}
