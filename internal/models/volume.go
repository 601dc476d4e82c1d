package models

import (
	"fmt"
	"strings"
)

// Dimensions is the voxel extent of a volume along each axis
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Depth  int `json:"depth"`
}

// Voxels returns the total number of voxels
func (d Dimensions) Voxels() int {
	return d.Width * d.Height * d.Depth
}

// Spacing is the physical size of one voxel along each axis (usually mm)
type Spacing struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Volume is a decoded 3D dataset.
//
// Data is laid out row-major with index = z*Width*Height + y*Width + x,
// so len(Data) always equals Dims.Voxels(). A Volume handed to the
// repository is shared read-only with every reader and must not be
// modified afterwards.
type Volume struct {
	// ID is the caller-assigned unique identifier
	ID string

	// Name is a human-facing label, typically the file name
	Name string

	// Modality is a free-text acquisition tag such as "CT" or "PET"
	Modality string

	Dims Dimensions

	Spacing Spacing

	Data []float64
}

// Index returns the flat offset of voxel (x, y, z)
func (v *Volume) Index(x, y, z int) int {
	return z*v.Dims.Width*v.Dims.Height + y*v.Dims.Width + x
}

// At returns the voxel value at (x, y, z) and false when the coordinate
// lies outside the volume.
func (v *Volume) At(x, y, z int) (float64, bool) {
	if x < 0 || y < 0 || z < 0 || x >= v.Dims.Width || y >= v.Dims.Height || z >= v.Dims.Depth {
		return 0, false
	}
	return v.Data[v.Index(x, y, z)], true
}

// MaxExtent is the largest of width, height and depth
func (v *Volume) MaxExtent() int {
	m := v.Dims.Width
	if v.Dims.Height > m {
		m = v.Dims.Height
	}
	if v.Dims.Depth > m {
		m = v.Dims.Depth
	}
	return m
}

// Orientation is one of the three orthogonal viewing planes
type Orientation int

const (
	// Axial slices vary row/col at a fixed depth
	Axial Orientation = iota
	// Coronal slices vary col/depth at a fixed row
	Coronal
	// Sagittal slices vary row/depth at a fixed col
	Sagittal
)

// Orientations lists every orientation in display order
var Orientations = []Orientation{Axial, Coronal, Sagittal}

func (o Orientation) String() string {
	switch o {
	case Axial:
		return "axial"
	case Coronal:
		return "coronal"
	case Sagittal:
		return "sagittal"
	}
	return fmt.Sprintf("orientation(%d)", int(o))
}

// ParseOrientation accepts the plane name or the letter of its fixed axis
// (z, y, x).
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "axial", "z":
		return Axial, nil
	case "coronal", "y":
		return Coronal, nil
	case "sagittal", "x":
		return Sagittal, nil
	}
	return 0, fmt.Errorf("invalid orientation: %q (must be axial, coronal or sagittal)", s)
}

// WindowingParams describes the linear contrast stretch
// [Center - Width/2, Center + Width/2] applied at display time
type WindowingParams struct {
	Center float64 `json:"center" yaml:"center"`
	Width  float64 `json:"width" yaml:"width"`
}

// DefaultWindowing is used for any dataset without a stored entry
var DefaultWindowing = WindowingParams{Center: 40, Width: 1000}

// Bounds returns the lower and upper intensity of the window
func (w WindowingParams) Bounds() (lo, hi float64) {
	return w.Center - w.Width/2, w.Center + w.Width/2
}

func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Orientation) UnmarshalText(b []byte) error {
	parsed, err := ParseOrientation(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
