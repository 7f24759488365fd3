// Package payload packs and unpacks the data bytes of a J1939 frame.
//
// A Layout is an ordered list of fields with a fixed bit width each. Fields
// are packed consecutively starting at bit 0 of byte 0: the least
// significant bit of a field sits at the lowest free bit position and bytes
// are filled in ascending order. The layouts of SAE J1939-71 parameter
// groups follow this order, so a 16-bit field on a byte boundary ends up
// little endian.
//
// Values which do not fit into their field are truncated to the low bits of
// their two's-complement representation. This never fails.
package payload

import (
	"fmt"
)

// MaxBits is the number of data bits in a classical CAN frame.
const MaxBits = 64

// A Field describes one parameter (SPN) of a payload.
type Field struct {
	Name   string
	Bits   uint
	Signed bool

	offset uint
}

// Offset returns the position of the least significant bit of the field in
// the payload. It is only set for fields returned by a Layout.
func (f Field) Offset() uint {
	return f.offset
}

// A Layout is the field table of one payload type.
type Layout struct {
	fields []Field
	bits   uint
}

// NewLayout returns the layout of the given fields in declaration order.
func NewLayout(fields ...Field) (*Layout, error) {
	layout := &Layout{fields: make([]Field, len(fields))}
	for i, f := range fields {
		if f.Bits == 0 || f.Bits > MaxBits {
			return nil, fmt.Errorf("field %q has %d bits: %w", f.Name, f.Bits, ErrFieldWidth)
		}

		f.offset = layout.bits
		layout.bits += f.Bits
		if layout.bits > MaxBits {
			return nil, fmt.Errorf("field %q ends at bit %d: %w", f.Name, layout.bits, ErrLayoutTooLarge)
		}
		layout.fields[i] = f
	}

	if layout.bits%8 != 0 {
		return nil, fmt.Errorf("%d bits: %w", layout.bits, ErrUnaligned)
	}

	return layout, nil
}

// Fields returns a copy of the field table.
func (l *Layout) Fields() []Field {
	return append([]Field(nil), l.fields...)
}

// Len returns the number of fields.
func (l *Layout) Len() int {
	return len(l.fields)
}

// Size returns the number of payload bytes spanned by the layout.
func (l *Layout) Size() int {
	return int(l.bits / 8)
}

// Pack encodes one raw value per field. Signed values are passed as their
// two's complement, i.e. uint64(int64(v)).
func (l *Layout) Pack(values []uint64) ([]byte, error) {
	if len(values) != len(l.fields) {
		return nil, fmt.Errorf("payload: got %d values for %d fields", len(values), len(l.fields))
	}

	var word uint64
	for i, f := range l.fields {
		word |= Truncate(values[i], f.Bits) << f.offset
	}

	data := make([]byte, l.Size())
	for i := range data {
		data[i] = byte(word >> (8 * i))
	}

	return data, nil
}

// Unpack returns the raw bits of every field. Use SignExtend to read signed
// fields. Bytes beyond Size are ignored.
func (l *Layout) Unpack(data []byte) ([]uint64, error) {
	if len(data) < l.Size() {
		return nil, ShortPayloadError{Expected: l.Size(), Actual: len(data)}
	}

	var word uint64
	for i := 0; i < l.Size(); i++ {
		word |= uint64(data[i]) << (8 * i)
	}

	values := make([]uint64, len(l.fields))
	for i, f := range l.fields {
		values[i] = Truncate(word>>f.offset, f.Bits)
	}

	return values, nil
}

// Int returns field i of raw values read by Unpack, sign extended if the
// field is signed.
func (l *Layout) Int(values []uint64, i int) int64 {
	f := l.fields[i]
	if f.Signed {
		return SignExtend(values[i], f.Bits)
	}
	return int64(values[i])
}

// Truncate keeps the low bits of v.
func Truncate(v uint64, bits uint) uint64 {
	if bits >= 64 {
		return v
	}
	return v & (1<<bits - 1)
}

// SignExtend interprets the low bits of raw as a two's-complement number.
func SignExtend(raw uint64, bits uint) int64 {
	if bits == 0 || bits >= 64 {
		return int64(raw)
	}
	shift := 64 - bits
	return int64(raw<<shift) >> shift
}
