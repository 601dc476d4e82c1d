package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"niftiview/internal/models"
)

// ApplyWindowing maps value into 0..255 through the window
// [center - width/2, center + width/2]. Values at or beyond the window
// edges saturate.
func ApplyWindowing(value, center, width float64) uint8 {
	lo := center - width/2
	hi := center + width/2
	switch {
	case value <= lo:
		return 0
	case value >= hi:
		return 255
	}
	p := math.Round((value - lo) / width * 255)
	if p < 0 {
		return 0
	}
	if p > 255 {
		return 255
	}
	return uint8(p)
}

// RenderSlice draws a slice as 8-bit grayscale using windowing.
//
// Display pixel (dx, dy) shows slice element (rows-dy-1, dx), so the image
// is cols wide and rows tall with row 0 at the bottom. MapPointerToVoxel in
// the interaction package inverts exactly this convention.
func RenderSlice(m *mat.Dense, w models.WindowingParams) *image.Gray {
	rows, cols := m.Dims()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		dy := rows - r - 1
		for c := 0; c < cols; c++ {
			img.SetGray(c, dy, color.Gray{Y: ApplyWindowing(m.At(r, c), w.Center, w.Width)})
		}
	}
	return img
}

// RenderMinMax draws a slice stretched so its minimum is black and its
// maximum white, with the same orientation as RenderSlice.
func RenderMinMax(m *mat.Dense) *image.Gray {
	s := Stats(m)
	width := s.Max - s.Min
	if width == 0 {
		width = 1
	}
	return RenderSlice(m, models.WindowingParams{Center: s.Min + width/2, Width: width})
}

// SliceStats summarises the intensities of one slice
type SliceStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
}

// Stats computes intensity statistics over every element of m
func Stats(m *mat.Dense) SliceStats {
	rows, cols := m.Dims()
	values := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		values = append(values, m.RawRowView(r)...)
	}

	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = 0
	}
	return SliceStats{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
	}
}

// FormatVoxelValue renders a hover value in the unit conventional for the
// modality (Hounsfield units for CT)
func FormatVoxelValue(value float64, modality string) string {
	switch strings.ToUpper(modality) {
	case "CT":
		return fmt.Sprintf("HU: %d", int(value))
	case "MR", "MRI":
		return fmt.Sprintf("Signal Intensity: %.3f", value)
	case "PET":
		return fmt.Sprintf("PET Intensity: %.1f", value)
	default:
		return fmt.Sprintf("Value: %.3f", value)
	}
}
