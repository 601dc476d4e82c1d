package nifti

import "fmt"

// FormatErrorKind classifies why a file could not be decoded
type FormatErrorKind int

const (
	TooSmall FormatErrorKind = iota
	BadMagic
	UnsupportedDataType
	InvalidDimensions
	CorruptCompression
	Truncated
)

func (k FormatErrorKind) String() string {
	switch k {
	case TooSmall:
		return "too small"
	case BadMagic:
		return "bad magic"
	case UnsupportedDataType:
		return "unsupported datatype"
	case InvalidDimensions:
		return "invalid dimensions"
	case CorruptCompression:
		return "corrupt compression"
	case Truncated:
		return "truncated payload"
	}
	return fmt.Sprintf("format error %d", int(k))
}

// FormatError is fatal to a single decode. Only the fields relevant to
// Kind are set.
type FormatError struct {
	Kind FormatErrorKind

	// Size is the input length for TooSmall and the little-endian
	// sizeof_hdr for BadMagic
	Size int

	// DataType is the received datatype code for UnsupportedDataType
	DataType int16

	// Dims holds dim[1..3] for InvalidDimensions
	Dims [3]int

	// Expected and Actual are byte counts for Truncated
	Expected, Actual int

	// Err is the underlying cause for CorruptCompression
	Err error
}

func (e *FormatError) Error() string {
	switch e.Kind {
	case TooSmall:
		return fmt.Sprintf("nifti: %s: got %d bytes, need at least %d", e.Kind, e.Size, HeaderSize)
	case BadMagic:
		return fmt.Sprintf("nifti: %s: header size field is %d in neither byte order", e.Kind, e.Size)
	case UnsupportedDataType:
		return fmt.Sprintf("nifti: %s %d (only %d is supported)", e.Kind, e.DataType, DataTypeFloat64)
	case InvalidDimensions:
		return fmt.Sprintf("nifti: %s %dx%dx%d", e.Kind, e.Dims[0], e.Dims[1], e.Dims[2])
	case CorruptCompression:
		return fmt.Sprintf("nifti: %s: %v", e.Kind, e.Err)
	case Truncated:
		return fmt.Sprintf("nifti: %s: need %d bytes, have %d", e.Kind, e.Expected, e.Actual)
	}
	return "nifti: " + e.Kind.String()
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is matches any *FormatError of the same kind, so callers can test
// errors.Is(err, &FormatError{Kind: BadMagic}).
func (e *FormatError) Is(target error) bool {
	t, ok := target.(*FormatError)
	return ok && t.Kind == e.Kind
}

// WarningKind classifies non-fatal decode findings
type WarningKind int

const (
	SizeMismatch WarningKind = iota
	// VoxOffsetUsed means the payload was read from the header's vox_offset
	// rather than directly after the header
	VoxOffsetUsed
)

// Warning is reported alongside a successfully decoded volume. For
// VoxOffsetUsed, Expected is the header size and Actual the offset used.
type Warning struct {
	Kind     WarningKind
	Expected int
	Actual   int
}

func (w Warning) String() string {
	if w.Kind == VoxOffsetUsed {
		return fmt.Sprintf("payload read at vox_offset %d instead of byte %d", w.Actual, w.Expected)
	}
	return fmt.Sprintf("payload size mismatch: expected %d bytes, got %d", w.Expected, w.Actual)
}
