package visualization

import (
	"gonum.org/v1/gonum/mat"

	"niftiview/internal/models"
)

// Extent returns the number of slices available along an orientation:
// depth for axial, height for coronal and width for sagittal.
func Extent(v *models.Volume, o models.Orientation) int {
	switch o {
	case models.Coronal:
		return v.Dims.Height
	case models.Sagittal:
		return v.Dims.Width
	default:
		return v.Dims.Depth
	}
}

// ClampIndex limits index to [0, Extent(v, o)-1]
func ClampIndex(v *models.Volume, o models.Orientation, index int) int {
	n := Extent(v, o)
	if index >= n {
		index = n - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}

// SliceShape returns the rows and columns Slice produces for o
func SliceShape(v *models.Volume, o models.Orientation) (rows, cols int) {
	switch o {
	case models.Coronal:
		return v.Dims.Depth, v.Dims.Width
	case models.Sagittal:
		return v.Dims.Depth, v.Dims.Height
	default:
		return v.Dims.Height, v.Dims.Width
	}
}

// FixedSpacing is the voxel size along the axis an orientation holds fixed
func FixedSpacing(v *models.Volume, o models.Orientation) float64 {
	switch o {
	case models.Coronal:
		return v.Spacing.Y
	case models.Sagittal:
		return v.Spacing.X
	default:
		return v.Spacing.Z
	}
}

// InPlaneSpacing returns the physical size of one step along the rows and
// the columns of a slice, in the layout produced by Slice.
func InPlaneSpacing(v *models.Volume, o models.Orientation) (rowSpacing, colSpacing float64) {
	switch o {
	case models.Coronal:
		return v.Spacing.Z, v.Spacing.X
	case models.Sagittal:
		return v.Spacing.Z, v.Spacing.Y
	default:
		return v.Spacing.Y, v.Spacing.X
	}
}

// Slice extracts a 2D cross-section at index, which the caller must have
// clamped with ClampIndex. Values are the raw voxel magnitudes:
//
//   - axial at z:    (row, col) = data[z*W*H + row*W + col], H x W
//   - coronal at y:  (d, col)   = data[d*W*H + y*W + col],   D x W
//   - sagittal at x: (d, row)   = data[d*W*H + row*W + x],   D x H
//
// The second return value is the spacing along the fixed axis.
func Slice(v *models.Volume, o models.Orientation, index int) (*mat.Dense, float64) {
	w, h, d := v.Dims.Width, v.Dims.Height, v.Dims.Depth
	plane := w * h

	var rows, cols int
	var out []float64

	switch o {
	case models.Coronal:
		rows, cols = d, w
		out = make([]float64, rows*cols)
		for z := 0; z < d; z++ {
			copy(out[z*w:(z+1)*w], v.Data[z*plane+index*w:z*plane+index*w+w])
		}

	case models.Sagittal:
		rows, cols = d, h
		out = make([]float64, rows*cols)
		for z := 0; z < d; z++ {
			for y := 0; y < h; y++ {
				out[z*h+y] = v.Data[z*plane+y*w+index]
			}
		}

	default:
		rows, cols = h, w
		out = make([]float64, plane)
		copy(out, v.Data[index*plane:(index+1)*plane])
	}

	return mat.NewDense(rows, cols, out), FixedSpacing(v, o)
}
