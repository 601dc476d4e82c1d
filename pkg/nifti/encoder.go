package nifti

import (
	"bytes"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"niftiview/internal/models"
)

// Encode writes vol as a single-file NIfTI-1 image with a 348-byte header
// followed directly by float64 voxels. It is the inverse of Decode and is
// used to export volumes and to build fixtures.
func Encode(vol *models.Volume, order ByteOrder, compress bool) ([]byte, error) {
	if vol.Dims.Width < 1 || vol.Dims.Height < 1 || vol.Dims.Depth < 1 ||
		vol.Dims.Width > math.MaxInt16 || vol.Dims.Height > math.MaxInt16 || vol.Dims.Depth > math.MaxInt16 {
		return nil, &FormatError{Kind: InvalidDimensions, Dims: [3]int{vol.Dims.Width, vol.Dims.Height, vol.Dims.Depth}}
	}
	if len(vol.Data) != vol.Dims.Voxels() {
		return nil, errors.Errorf("volume %q has %d values for %d voxels", vol.ID, len(vol.Data), vol.Dims.Voxels())
	}

	bo := order.Binary()
	buf := make([]byte, HeaderSize+len(vol.Data)*8)

	bo.PutUint32(buf[0:4], HeaderSize)
	dims := []int{3, vol.Dims.Width, vol.Dims.Height, vol.Dims.Depth, 1, 1, 1, 1}
	for i, d := range dims {
		bo.PutUint16(buf[offsetDim+2*i:], uint16(d))
	}
	bo.PutUint16(buf[offsetDataType:], DataTypeFloat64)
	bo.PutUint16(buf[offsetBitPix:], 64)
	pixdim := []float64{1, vol.Spacing.X, vol.Spacing.Y, vol.Spacing.Z, 1, 1, 1, 1}
	for i, p := range pixdim {
		bo.PutUint32(buf[offsetPixDim+4*i:], math.Float32bits(float32(p)))
	}
	copy(buf[offsetDescrip:offsetDescrip+80], vol.Name)
	copy(buf[offsetMagic:], "ni1\x00")

	for i, v := range vol.Data {
		bo.PutUint64(buf[HeaderSize+i*8:], math.Float64bits(v))
	}

	if !compress {
		return buf, nil
	}

	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	if _, err := zw.Write(buf); err != nil {
		return nil, errors.Wrap(err, "compressing volume")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "compressing volume")
	}
	return out.Bytes(), nil
}

// WriteFile encodes vol to path, gzip-compressed when path ends in .gz
func WriteFile(path string, vol *models.Volume, order ByteOrder) error {
	b, err := Encode(vol, order, IsGzipPath(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// IsGzipPath reports whether path names a compressed image
func IsGzipPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}
