package mathutil

import (
	"math"
	"testing"
)

func TestIsZero(t *testing.T) {
	tests := []struct {
		name      string
		input     float64
		tolerance float64
		expected  bool
	}{
		{"Exactly zero", 0.0, 1e-12, true},
		{"Below tolerance", 1e-13, 1e-12, true},
		{"Negative below tolerance", -1e-13, 1e-12, true},
		{"Exactly tolerance", 0.01, 0.01, true},
		{"Above tolerance", 0.02, 0.01, false},
		{"Large negative", -100.0, 0.01, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsZero(tt.input, tt.tolerance)
			if result != tt.expected {
				t.Errorf("IsZero(%v, %v) = %v, expected %v", tt.input, tt.tolerance, result, tt.expected)
			}
		})
	}
}

func TestRelativeError(t *testing.T) {
	tests := []struct {
		name     string
		got      float64
		want     float64
		expected float64
	}{
		{"Exact", 2, 2, 0},
		{"Ten percent", 1.1, 1, 0.1},
		{"Negative reference", -0.9, -1, 0.1},
		{"Zero reference falls back to absolute", 0.5, 0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RelativeError(tt.got, tt.want)
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("RelativeError(%v, %v) = %v, expected %v", tt.got, tt.want, result, tt.expected)
			}
		})
	}
}

func TestGrid(t *testing.T) {
	points := Grid(0, 5, 250)
	if len(points) != 251 {
		t.Fatalf("expected 251 points, got %d", len(points))
	}
	if points[0] != 0 || points[250] != 5 {
		t.Fatalf("grid endpoints = (%v, %v), expected (0, 5)", points[0], points[250])
	}
	for i := 1; i < len(points); i++ {
		if points[i] <= points[i-1] {
			t.Fatalf("grid not increasing at %d: %v <= %v", i, points[i], points[i-1])
		}
	}

	single := Grid(1, 2, 0)
	if len(single) != 1 || single[0] != 1 {
		t.Errorf("Grid with n=0 = %v, expected [1]", single)
	}
}

func TestCRRAUtility(t *testing.T) {
	tests := []struct {
		name     string
		wealth   float64
		gamma    float64
		expected float64
	}{
		{"Log utility", math.E, 1, 1},
		{"Gamma three at one", 1, 3, -0.5},
		{"Gamma two", 2, 2, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CRRAUtility(tt.wealth, tt.gamma)
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("CRRAUtility(%v, %v) = %v, expected %v", tt.wealth, tt.gamma, result, tt.expected)
			}
			if back := CertaintyEquivalent(result, tt.gamma); math.Abs(back-tt.wealth) > 1e-9 {
				t.Errorf("CertaintyEquivalent(%v, %v) = %v, expected %v", result, tt.gamma, back, tt.wealth)
			}
		})
	}

	if !math.IsNaN(CRRAUtility(0, 3)) {
		t.Error("expected NaN utility for zero wealth")
	}
	if !math.IsNaN(CRRAUtility(-1, 1)) {
		t.Error("expected NaN log utility for negative wealth")
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) {
		t.Error("expected 1.5 to be finite")
	}
	if IsFinite(math.NaN()) || IsFinite(math.Inf(1)) || IsFinite(math.Inf(-1)) {
		t.Error("expected NaN and infinities to be non-finite")
	}
}
