package nifti

import (
	"bytes"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"niftiview/internal/models"
)

// Metadata carries the caller-assigned attributes of a decoded volume
type Metadata struct {
	ID       string
	Name     string
	Modality string

	// Spacing overrides the header pixdim values. Components <= 0 fall
	// back to pixdim, then to 1.
	Spacing models.Spacing
}

// IsGzip reports whether b starts with the gzip magic number
func IsGzip(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
}

// Decompress inflates gzip input completely. Anything else is returned
// unchanged.
func Decompress(b []byte) ([]byte, error) {
	if !IsGzip(b) {
		return b, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, &FormatError{Kind: CorruptCompression, Err: err}
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &FormatError{Kind: CorruptCompression, Err: err}
	}
	return out, nil
}

// payloadOffset is where voxel data starts. Files written with a
// vox_offset past the header (352 for single-file .nii) are honoured,
// otherwise the payload follows the header directly.
func payloadOffset(hdr *Header, n int) int {
	off := int(hdr.VoxOffset)
	if off >= HeaderSize && off <= n {
		return off
	}
	return HeaderSize
}

// DecodeVolume turns the payload of b into a volume using a header
// previously returned by ParseHeader. b must already be decompressed.
//
// A payload whose length differs from width*height*depth*8 still decodes
// and is reported through the returned warnings, as is a payload read from
// vox_offset instead of byte 348. A payload too short to fill the volume is
// a Truncated error.
func DecodeVolume(b []byte, hdr *Header, order ByteOrder, meta Metadata) (*models.Volume, []Warning, error) {
	width, height, depth := hdr.Dimensions()
	if width < 1 || height < 1 || depth < 1 {
		return nil, nil, &FormatError{Kind: InvalidDimensions, Dims: [3]int{width, height, depth}}
	}

	count := width * height * depth
	expected := count * 8

	start := payloadOffset(hdr, len(b))
	payload := b[start:]

	var warnings []Warning
	if start != HeaderSize {
		warnings = append(warnings, Warning{Kind: VoxOffsetUsed, Expected: HeaderSize, Actual: start})
	}
	if len(payload) != expected {
		warnings = append(warnings, Warning{Kind: SizeMismatch, Expected: expected, Actual: len(payload)})
	}
	if len(payload) < expected {
		return nil, warnings, &FormatError{Kind: Truncated, Expected: expected, Actual: len(payload)}
	}

	bo := order.Binary()
	data := make([]float64, count)
	for i := range data {
		data[i] = math.Float64frombits(bo.Uint64(payload[i*8 : i*8+8]))
	}

	vol := &models.Volume{
		ID:       meta.ID,
		Name:     meta.Name,
		Modality: meta.Modality,
		Dims:     models.Dimensions{Width: width, Height: height, Depth: depth},
		Spacing: models.Spacing{
			X: spacingOrPixDim(meta.Spacing.X, hdr.PixDim[1]),
			Y: spacingOrPixDim(meta.Spacing.Y, hdr.PixDim[2]),
			Z: spacingOrPixDim(meta.Spacing.Z, hdr.PixDim[3]),
		},
		Data: data,
	}
	return vol, warnings, nil
}

func spacingOrPixDim(given float64, pixdim float32) float64 {
	if given > 0 && !math.IsInf(given, 0) {
		return given
	}
	p := float64(pixdim)
	if p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p) {
		return p
	}
	return 1
}

// Decode runs the full pipeline on raw, possibly compressed, file bytes
func Decode(raw []byte, meta Metadata) (*models.Volume, []Warning, error) {
	b, err := Decompress(raw)
	if err != nil {
		return nil, nil, err
	}
	hdr, order, err := ParseHeader(b)
	if err != nil {
		return nil, nil, err
	}
	return DecodeVolume(b, hdr, order, meta)
}

// Load reads everything from r and decodes it
func Load(r io.Reader, meta Metadata) (*models.Volume, []Warning, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading nifti stream")
	}
	return Decode(raw, meta)
}

// ReadFile decodes the .nii or .nii.gz file at path
func ReadFile(path string, meta Metadata) (*models.Volume, []Warning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading %s", path)
	}
	vol, warnings, err := Decode(raw, meta)
	if err != nil {
		return nil, warnings, errors.Wrapf(err, "decoding %s", path)
	}
	return vol, warnings, nil
}
