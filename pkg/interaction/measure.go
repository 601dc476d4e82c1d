package interaction

import (
	"math"

	"niftiview/internal/models"
	"niftiview/pkg/visualization"
)

// Measurement is the two-click distance tool state of one view.
// The first click sets A, the second sets B and computes the distance,
// a third starts over from a new A.
type Measurement struct {
	A, B     *Voxel
	Distance *float64
}

// Click records p and updates the distance. spacingX scales steps along
// Voxel.X (rows), spacingY along Voxel.Y (columns).
func (m *Measurement) Click(p Voxel, spacingX, spacingY float64) {
	switch {
	case m.A == nil:
		m.A = &p
	case m.B == nil:
		m.B = &p
	default:
		m.A = &p
		m.B = nil
	}

	m.Distance = nil
	if m.A != nil && m.B != nil {
		d := VoxelDistance(*m.A, *m.B, spacingX, spacingY)
		m.Distance = &d
	}
}

// Clear drops both points and the distance
func (m *Measurement) Clear() {
	m.A, m.B, m.Distance = nil, nil, nil
}

// Complete reports whether both points are set
func (m *Measurement) Complete() bool {
	return m.A != nil && m.B != nil
}

// VoxelDistance is the Euclidean distance between a and b in physical units
func VoxelDistance(a, b Voxel, spacingX, spacingY float64) float64 {
	dx := float64(a.X-b.X) * spacingX
	dy := float64(a.Y-b.Y) * spacingY
	return math.Sqrt(dx*dx + dy*dy)
}

// Measure maps a click to a voxel on the slice vol currently shows for o
// and feeds it to m with that plane's in-plane spacing. Clicks outside the
// image are ignored and return false.
func (e *Engine) Measure(vol *models.Volume, o models.Orientation, m *Measurement, p Point, box Size) bool {
	rows, cols := visualization.SliceShape(vol, o)

	v, ok := MapPointerToVoxel(p, box, cols, rows)
	if !ok {
		return false
	}

	rowSpacing, colSpacing := visualization.InPlaneSpacing(vol, o)
	m.Click(v, rowSpacing, colSpacing)
	return true
}
