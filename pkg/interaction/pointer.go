package interaction

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"niftiview/internal/models"
	"niftiview/pkg/visualization"
)

// Point is a position in pointer or display pixel space
type Point struct {
	X, Y float64
}

// Size is the on-screen size of the box an image is fitted into
type Size struct {
	Width, Height float64
}

// Voxel addresses an element of a slice: X is the row, Y the column
type Voxel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MapPointerToImage converts a pointer position inside box into display
// pixel coordinates of an imgW x imgH image drawn centered with its aspect
// ratio preserved. It returns false when the pointer is on the letterbox
// padding or outside the image.
func MapPointerToImage(p Point, box Size, imgW, imgH int) (Point, bool) {
	if imgW <= 0 || imgH <= 0 || box.Width <= 0 || box.Height <= 0 {
		return Point{}, false
	}

	imageAspect := float64(imgW) / float64(imgH)
	boxAspect := box.Width / box.Height

	var renderW, renderH, offX, offY float64
	if boxAspect > imageAspect {
		// height-constrained, padding left and right
		renderH = box.Height
		renderW = math.Floor(renderH * imageAspect)
		offX = (box.Width - renderW) / 2
	} else {
		renderW = box.Width
		renderH = math.Floor(renderW / imageAspect)
		offY = (box.Height - renderH) / 2
	}
	if renderW <= 0 || renderH <= 0 {
		return Point{}, false
	}

	relX := p.X - offX
	relY := p.Y - offY
	if relX < 0 || relY < 0 || relX >= renderW || relY >= renderH {
		return Point{}, false
	}

	out := Point{
		X: relX / renderW * float64(imgW),
		Y: relY / renderH * float64(imgH),
	}
	if out.X < 0 || out.X >= float64(imgW) {
		return Point{}, false
	}
	return out, true
}

// MapPointerToVoxel maps a pointer position to the slice element under it.
// The display convention draws element (imgH-dy-1, dx) at pixel (dx, dy);
// this undoes it. imgW and imgH are the displayed image size, i.e. the
// slice's column and row counts.
func MapPointerToVoxel(p Point, box Size, imgW, imgH int) (Voxel, bool) {
	d, ok := MapPointerToImage(p, box, imgW, imgH)
	if !ok {
		return Voxel{}, false
	}

	dx := int(math.Floor(d.X))
	dy := int(math.Floor(d.Y))

	v := Voxel{X: imgH - dy - 1, Y: dx}
	if v.X < 0 || v.X >= imgH || v.Y < 0 || v.Y >= imgW {
		return Voxel{}, false
	}
	return v, true
}

// ValueAt returns the slice element addressed by v
func ValueAt(m *mat.Dense, v Voxel) (float64, bool) {
	rows, cols := m.Dims()
	if v.X < 0 || v.X >= rows || v.Y < 0 || v.Y >= cols {
		return 0, false
	}
	return m.At(v.X, v.Y), true
}

// Probe is the hover readout for one pointer position
type Probe struct {
	Orientation models.Orientation `json:"orientation"`
	Index       int                `json:"index"`
	Voxel       Voxel              `json:"voxel"`
	Value       float64            `json:"value"`
	Text        string             `json:"text"`
}

// Probe reads the voxel under the pointer on the slice vol currently shows
// for orientation o
func (e *Engine) Probe(vol *models.Volume, o models.Orientation, p Point, box Size) (Probe, bool) {
	return probeSlice(vol, o, e.SliceIndex(vol, o), p, box)
}

// ProbeAt is Probe for an explicit slice index, clamped to the volume
func ProbeAt(vol *models.Volume, o models.Orientation, index int, p Point, box Size) (Probe, bool) {
	return probeSlice(vol, o, visualization.ClampIndex(vol, o, index), p, box)
}

func probeSlice(vol *models.Volume, o models.Orientation, index int, p Point, box Size) (Probe, bool) {
	m, _ := visualization.Slice(vol, o, index)
	rows, cols := m.Dims()

	v, ok := MapPointerToVoxel(p, box, cols, rows)
	if !ok {
		return Probe{}, false
	}
	value, ok := ValueAt(m, v)
	if !ok {
		return Probe{}, false
	}
	return Probe{
		Orientation: o,
		Index:       index,
		Voxel:       v,
		Value:       value,
		Text:        visualization.FormatVoxelValue(value, vol.Modality),
	}, true
}
