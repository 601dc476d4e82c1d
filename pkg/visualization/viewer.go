package visualization

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"niftiview/internal/models"
)

// Viewer exports windowed cross-sections of a single volume to disk
type Viewer struct {
	// volume is the dataset being viewed, never modified
	volume *models.Volume

	// windowing is the contrast stretch applied to every exported slice
	windowing models.WindowingParams
}

// NewViewer creates a viewer over vol using the given windowing
func NewViewer(vol *models.Volume, windowing models.WindowingParams) *Viewer {
	return &Viewer{
		volume:    vol,
		windowing: windowing,
	}
}

// ExtractSlice renders the slice at position along an orientation.
// Unlike Slice it validates the position instead of expecting a clamped one.
func (v *Viewer) ExtractSlice(o models.Orientation, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	if n := Extent(v.volume, o); position >= n {
		return nil, fmt.Errorf("position %d exceeds %s extent %d", position, o, n)
	}

	m, _ := Slice(v.volume, o, position)
	return RenderSlice(m, v.windowing), nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along an orientation
// and returns how many files were written
func (v *Viewer) SaveSliceSequence(o models.Orientation, outputDir string) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	maxPos := Extent(v.volume, o)
	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(o, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", o, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}

	return maxPos, nil
}
