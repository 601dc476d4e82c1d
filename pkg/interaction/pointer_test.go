package interaction

import (
	"math"
	"testing"

	"niftiview/internal/models"
	"niftiview/pkg/visualization"
)

// TestMapPointerLetterboxCenter maps the box center of a wide box with a square image
func TestMapPointerLetterboxCenter(t *testing.T) {
	box := Size{Width: 200, Height: 100}

	p, ok := MapPointerToImage(Point{X: 100, Y: 50}, box, 100, 100)
	if !ok {
		t.Fatal("Expected box center to map inside the image")
	}
	if p.X != 50 || p.Y != 50 {
		t.Errorf("Expected image coordinate (50,50), got (%f,%f)", p.X, p.Y)
	}

	// padding on the left and the right
	for _, x := range []float64{0, 49.9, 150, 199} {
		if _, ok := MapPointerToImage(Point{X: x, Y: 50}, box, 100, 100); ok {
			t.Errorf("Expected x=%f to fall in the letterbox padding", x)
		}
	}

	v, ok := MapPointerToVoxel(Point{X: 100, Y: 50}, box, 100, 100)
	if !ok {
		t.Fatal("Expected box center to map to a voxel")
	}
	if v.X != 49 || v.Y != 50 {
		t.Errorf("Expected voxel (49,50), got (%d,%d)", v.X, v.Y)
	}
}

// TestMapPointerTallBox checks padding above and below a wide image
func TestMapPointerTallBox(t *testing.T) {
	box := Size{Width: 100, Height: 300}

	if _, ok := MapPointerToImage(Point{X: 50, Y: 10}, box, 200, 100); ok {
		t.Error("Expected top padding to map to none")
	}

	// rendered 100x50 starting at y=125
	p, ok := MapPointerToImage(Point{X: 0, Y: 125}, box, 200, 100)
	if !ok {
		t.Fatal("Expected top-left of the rendered image to map")
	}
	if p.X != 0 || p.Y != 0 {
		t.Errorf("Expected (0,0), got (%f,%f)", p.X, p.Y)
	}

	v, ok := MapPointerToVoxel(Point{X: 99.9, Y: 174.9}, box, 200, 100)
	if !ok {
		t.Fatal("Expected bottom-right corner to map")
	}
	if v.X != 0 || v.Y != 199 {
		t.Errorf("Expected voxel (0,199), got (%d,%d)", v.X, v.Y)
	}

	if _, ok := MapPointerToImage(Point{X: 10, Y: 10}, Size{}, 10, 10); ok {
		t.Error("Expected an empty box to map to none")
	}
}

// TestMapPointerMatchesRendering verifies the inverse agrees with RenderSlice
func TestMapPointerMatchesRendering(t *testing.T) {
	vol := newVolume("r", 4, 3, 2)
	m, _ := visualization.Slice(vol, models.Axial, 1)
	img := visualization.RenderSlice(m, models.WindowingParams{Center: 12, Width: 24})
	rows, cols := m.Dims()

	// with the box equal to the image, pixel centers map 1:1
	box := Size{Width: float64(cols), Height: float64(rows)}
	for dy := 0; dy < rows; dy++ {
		for dx := 0; dx < cols; dx++ {
			v, ok := MapPointerToVoxel(Point{X: float64(dx) + 0.5, Y: float64(dy) + 0.5}, box, cols, rows)
			if !ok {
				t.Fatalf("Expected pixel (%d,%d) to map", dx, dy)
			}
			value, _ := ValueAt(m, v)
			want := visualization.ApplyWindowing(value, 12, 24)
			if got := img.GrayAt(dx, dy).Y; got != want {
				t.Errorf("Pixel (%d,%d): rendered %d, probe value %f renders %d", dx, dy, got, value, want)
			}
		}
	}
}

// TestProbe reads hover values through the engine
func TestProbe(t *testing.T) {
	e := NewEngine(Options{})
	vol := newVolume("p", 2, 2, 2)
	e.SetScrollIndex(1)

	// axial slice 1 is [[4 5] [6 7]]; the top-left display pixel shows row 1, col 0
	pr, ok := e.Probe(vol, models.Axial, Point{X: 0.5, Y: 0.5}, Size{Width: 2, Height: 2})
	if !ok {
		t.Fatal("Expected probe to hit the image")
	}
	if pr.Value != 6 || pr.Index != 1 {
		t.Errorf("Expected value 6 on slice 1, got %f on slice %d", pr.Value, pr.Index)
	}
	if pr.Text != "HU: 6" {
		t.Errorf("Expected CT formatting, got %q", pr.Text)
	}

	if _, ok := ProbeAt(vol, models.Coronal, 5, Point{X: -1, Y: 0}, Size{Width: 2, Height: 2}); ok {
		t.Error("Expected pointer outside the box to miss")
	}
}

// TestMeasurement covers the two-click protocol and clearing
func TestMeasurement(t *testing.T) {
	var m Measurement

	m.Click(Voxel{X: 0, Y: 0}, 1, 1)
	if m.Distance != nil {
		t.Error("Expected no distance after one click")
	}

	m.Click(Voxel{X: 3, Y: 4}, 1, 1)
	if m.Distance == nil || *m.Distance != 5.0 {
		t.Fatalf("Expected distance 5.0, got %v", m.Distance)
	}

	m.Click(Voxel{X: 7, Y: 7}, 1, 1)
	if m.A == nil || *m.A != (Voxel{X: 7, Y: 7}) || m.B != nil || m.Distance != nil {
		t.Errorf("Expected third click to restart at A=(7,7), got %+v", m)
	}

	m.Clear()
	if m.A != nil || m.B != nil || m.Distance != nil {
		t.Errorf("Expected cleared measurement, got %+v", m)
	}

	if d := VoxelDistance(Voxel{X: 0, Y: 0}, Voxel{X: 3, Y: 4}, 0.5, 2); math.Abs(d-math.Sqrt(1.5*1.5+8*8)) > 1e-12 {
		t.Errorf("Expected spacing-scaled distance, got %f", d)
	}
}

// TestEngineMeasure maps clicks through the engine with in-plane spacing
func TestEngineMeasure(t *testing.T) {
	e := NewEngine(Options{})
	vol := newVolume("m", 10, 10, 10)
	vol.Spacing = models.Spacing{X: 2, Y: 3, Z: 4}
	box := Size{Width: 10, Height: 10}

	var m Measurement
	if !e.Measure(vol, models.Axial, &m, Point{X: 0.5, Y: 9.5}, box) {
		t.Fatal("Expected first click to land")
	}
	if !e.Measure(vol, models.Axial, &m, Point{X: 4.5, Y: 6.5}, box) {
		t.Fatal("Expected second click to land")
	}

	// (0,0) to (3,4): rows scale by Y spacing, columns by X spacing
	want := math.Sqrt(9*3*3 + 16*2*2)
	if m.Distance == nil || math.Abs(*m.Distance-want) > 1e-12 {
		t.Errorf("Expected distance %f, got %v", want, m.Distance)
	}

	if e.Measure(vol, models.Axial, &m, Point{X: 50, Y: 50}, box) {
		t.Error("Expected click outside the image to be ignored")
	}
	if !m.Complete() {
		t.Error("Expected ignored click to leave the measurement intact")
	}
}
