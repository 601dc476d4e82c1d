// Package nifti decodes NIfTI-1 files holding 64-bit floating point voxels.
// It handles byte order detection, gzip-compressed input and validation of
// the fixed 348-byte header before the payload is turned into a volume.
package nifti

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	// HeaderSize is the canonical NIfTI-1 header length and the value of
	// the sizeof_hdr field at offset 0
	HeaderSize = 348

	// DataTypeFloat64 is the only supported datatype code (DT_FLOAT64)
	DataTypeFloat64 = 64

	offsetDim       = 40
	offsetDataType  = 70
	offsetBitPix    = 72
	offsetPixDim    = 76
	offsetVoxOffset = 108
	offsetDescrip   = 148
	offsetMagic     = 344
)

// ByteOrder is the endianness a file was written in
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

// Binary returns the encoding/binary implementation for this order
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Header holds the fields of the NIfTI-1 header used by the decoder.
// A Header is never modified after ParseHeader returns it.
type Header struct {
	SizeOfHdr int32

	// Dim[0] is the number of dimensions, Dim[1..3] width, height and depth
	Dim [8]int16

	DataType int16
	BitPix   int16

	// PixDim[1..3] are the voxel sizes along x, y and z
	PixDim [8]float32

	VoxOffset float32
	Descrip   string
	Magic     string
}

// Dimensions returns width, height and depth as declared by dim[1..3]
func (h *Header) Dimensions() (width, height, depth int) {
	return int(h.Dim[1]), int(h.Dim[2]), int(h.Dim[3])
}

// ParseHeader decodes the fixed header at the start of b.
//
// The byte order is whichever interpretation of the first four bytes reads
// back as 348. If both would (which needs a palindromic size field and never
// happens for 348), little-endian wins.
func ParseHeader(b []byte) (*Header, ByteOrder, error) {
	if len(b) < HeaderSize {
		return nil, LittleEndian, &FormatError{Kind: TooSmall, Size: len(b)}
	}

	le := int32(binary.LittleEndian.Uint32(b[0:4]))
	be := int32(binary.BigEndian.Uint32(b[0:4]))

	var order ByteOrder
	switch {
	case le == HeaderSize:
		order = LittleEndian
	case be == HeaderSize:
		order = BigEndian
	default:
		return nil, LittleEndian, &FormatError{Kind: BadMagic, Size: int(le)}
	}

	bo := order.Binary()
	h := &Header{SizeOfHdr: HeaderSize}
	for i := range h.Dim {
		off := offsetDim + 2*i
		h.Dim[i] = int16(bo.Uint16(b[off : off+2]))
	}
	h.DataType = int16(bo.Uint16(b[offsetDataType : offsetDataType+2]))
	h.BitPix = int16(bo.Uint16(b[offsetBitPix : offsetBitPix+2]))
	for i := range h.PixDim {
		off := offsetPixDim + 4*i
		h.PixDim[i] = math.Float32frombits(bo.Uint32(b[off : off+4]))
	}
	h.VoxOffset = math.Float32frombits(bo.Uint32(b[offsetVoxOffset : offsetVoxOffset+4]))
	h.Descrip = cString(b[offsetDescrip : offsetDescrip+80])
	h.Magic = cString(b[offsetMagic : offsetMagic+4])

	if h.DataType != DataTypeFloat64 {
		return nil, order, &FormatError{Kind: UnsupportedDataType, DataType: h.DataType}
	}

	return h, order, nil
}

// cString trims a fixed-width field at its first NUL
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
