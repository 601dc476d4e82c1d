package visualization

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"niftiview/internal/models"
)

// TestApplyWindowing covers saturation on both sides and the linear ramp
func TestApplyWindowing(t *testing.T) {
	tests := []struct {
		value float64
		want  uint8
	}{
		{-1000, 0},
		{0, 0},
		{50, 128},
		{100, 255},
		{5000, 255},
	}
	for _, tt := range tests {
		if got := ApplyWindowing(tt.value, 50, 100); got != tt.want {
			t.Errorf("ApplyWindowing(%f): expected %d, got %d", tt.value, tt.want, got)
		}
	}

	if got := ApplyWindowing(10, 10, 0); got != 0 {
		t.Errorf("Expected zero-width window to saturate low at the center, got %d", got)
	}
}

// TestRenderSliceOrientation verifies row 0 ends up at the bottom of the image
func TestRenderSliceOrientation(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		0, 0, 0,
		100, 100, 100,
	})
	img := RenderSlice(m, models.WindowingParams{Center: 50, Width: 100})

	bounds := img.Bounds()
	if bounds.Dx() != 3 || bounds.Dy() != 2 {
		t.Fatalf("Expected 3x2 image, got %dx%d", bounds.Dx(), bounds.Dy())
	}
	if y := img.GrayAt(0, 1).Y; y != 0 {
		t.Errorf("Expected bottom row black, got %d", y)
	}
	if y := img.GrayAt(2, 0).Y; y != 255 {
		t.Errorf("Expected top row white, got %d", y)
	}
}

// TestRenderMinMax checks min/max stretching including a constant slice
func TestRenderMinMax(t *testing.T) {
	m := mat.NewDense(1, 3, []float64{-10, 0, 10})
	img := RenderMinMax(m)
	if img.GrayAt(0, 0).Y != 0 || img.GrayAt(2, 0).Y != 255 {
		t.Errorf("Expected full 0..255 stretch, got %d..%d", img.GrayAt(0, 0).Y, img.GrayAt(2, 0).Y)
	}

	flat := RenderMinMax(mat.NewDense(1, 2, []float64{3, 3}))
	if flat.Bounds().Dx() != 2 {
		t.Errorf("Expected constant slice to render, got bounds %v", flat.Bounds())
	}
}

// TestStats checks slice statistics
func TestStats(t *testing.T) {
	s := Stats(mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	if s.Min != 1 || s.Max != 4 {
		t.Errorf("Expected min 1 max 4, got %f %f", s.Min, s.Max)
	}
	if s.Mean != 2.5 {
		t.Errorf("Expected mean 2.5, got %f", s.Mean)
	}
	if math.Abs(s.StdDev-math.Sqrt(5.0/3.0)) > 1e-12 {
		t.Errorf("Expected sample std dev %f, got %f", math.Sqrt(5.0/3.0), s.StdDev)
	}
}

// TestFormatVoxelValue verifies modality-specific hover text
func TestFormatVoxelValue(t *testing.T) {
	tests := map[string]string{
		"CT":    "HU: -512",
		"mri":   "Signal Intensity: -512.750",
		"PET":   "PET Intensity: -512.8",
		"other": "Value: -512.750",
	}
	for modality, want := range tests {
		if got := FormatVoxelValue(-512.75, modality); got != want {
			t.Errorf("%s: expected %q, got %q", modality, want, got)
		}
	}
}
