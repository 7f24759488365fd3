package payload

import (
	"errors"
	"fmt"
)

var (
	// ErrFieldWidth is returned for fields of zero width, fields wider than
	// 64 bits or fields wider than the Go type holding them.
	ErrFieldWidth = errors.New("payload: invalid field width")
	// ErrLayoutTooLarge is returned when the fields of a layout do not fit
	// into the 8 data bytes of a single CAN frame.
	ErrLayoutTooLarge = errors.New("payload: layout exceeds 64 bits")
	// ErrUnaligned is returned when the fields of a layout do not add up to
	// a whole number of bytes.
	ErrUnaligned = errors.New("payload: layout is not byte aligned")
	// ErrNotStruct is returned by Marshal, Unmarshal and LayoutOf for values
	// that are not structs (or pointers to structs).
	ErrNotStruct = errors.New("payload: not a struct")
	// ErrUnsupportedType is returned for struct fields of a kind the codec
	// cannot pack.
	ErrUnsupportedType = errors.New("payload: unsupported field type")
	// ErrMalformed matches every ShortPayloadError with errors.Is.
	ErrMalformed = errors.New("payload: malformed payload")
)

// ShortPayloadError reports a payload which is shorter than the byte span
// of the layout it is decoded with.
type ShortPayloadError struct {
	Expected int
	Actual   int
}

func (e ShortPayloadError) Error() string {
	return fmt.Sprintf("payload: short payload of %d bytes (expected %d)", e.Actual, e.Expected)
}

func (e ShortPayloadError) Is(target error) bool {
	return target == ErrMalformed
}
