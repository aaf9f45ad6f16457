package core

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		value, min, max  float64
		want             float64
	}{
		{"inside range", 0.5, 0, 1, 0.5},
		{"below min", -2, 0, 1, 0},
		{"above max", 7, 0, 1, 1},
		{"swapped bounds", 0.25, 1, 0, 0.25},
		{"at min", 0, 0, 1, 0},
		{"at max", 1, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Clamp(tt.value, tt.min, tt.max)
			if got != tt.want {
				t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.value, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestDBConversionsRoundTrip(t *testing.T) {
	t.Parallel()

	for _, db := range []float64{-60, -12, -6, 0, 6, 12} {
		lin := DBToLinear(db)

		back := LinearToDB(lin)
		if !NearlyEqual(back, db, 1e-9) {
			t.Errorf("round trip for %v dB: got %v", db, back)
		}
	}

	if !math.IsInf(LinearToDB(0), -1) {
		t.Error("LinearToDB(0) should be -Inf")
	}

	if !math.IsNaN(LinearToDB(-1)) {
		t.Error("LinearToDB(-1) should be NaN")
	}
}

func TestFlushDenormals(t *testing.T) {
	t.Parallel()

	if FlushDenormals(1e-40) != 0 {
		t.Error("tiny value should flush to zero")
	}

	if FlushDenormals(0.5) != 0.5 {
		t.Error("normal value should pass through")
	}

	if FlushDenormals(-1e-40) != 0 {
		t.Error("tiny negative value should flush to zero")
	}
}

func TestEnsureLen(t *testing.T) {
	t.Parallel()

	buf := make([]float64, 4, 16)

	grown := EnsureLen(buf, 8)
	if len(grown) != 8 {
		t.Fatalf("len = %d, want 8", len(grown))
	}

	if &grown[0] != &buf[:1][0] {
		t.Error("EnsureLen should reuse capacity when possible")
	}

	bigger := EnsureLen(buf, 32)
	if len(bigger) != 32 {
		t.Fatalf("len = %d, want 32", len(bigger))
	}
}
