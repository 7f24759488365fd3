package payload

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Struct layouts are described with the "j1939" tag:
//
//	type EEC1 struct {
//		TorqueMode uint8 `j1939:"bits=4"`
//		...
//		_          uint8 `j1939:"bits=4"` // reserved
//	}
//
// The width defaults to the size of the Go type (1 bit for bool). Signed
// integer kinds are sign extended on decode. Blank fields reserve bits which
// are sent as zero. Unexported fields and fields tagged "-" are ignored.
const tagName = "j1939"

type structField struct {
	index    int
	kind     reflect.Kind
	reserved bool
}

type structLayout struct {
	layout *Layout
	fields []structField
}

var layouts sync.Map // reflect.Type -> *structLayout

// LayoutOf returns the layout described by the tags of struct type t.
// Layouts are built once per type.
func LayoutOf(t reflect.Type) (*Layout, error) {
	sl, err := structLayoutOf(t)
	if err != nil {
		return nil, err
	}
	return sl.layout, nil
}

// Marshal encodes the struct v (or *v) into payload bytes.
func Marshal(v interface{}) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, ErrNotStruct
	}
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, ErrNotStruct
		}
		rv = rv.Elem()
	}

	sl, err := structLayoutOf(rv.Type())
	if err != nil {
		return nil, err
	}

	values := make([]uint64, len(sl.fields))
	for i, sf := range sl.fields {
		if sf.reserved {
			continue
		}
		fv := rv.Field(sf.index)
		switch {
		case sf.kind == reflect.Bool:
			if fv.Bool() {
				values[i] = 1
			}
		case isSigned(sf.kind):
			values[i] = uint64(fv.Int())
		default:
			values[i] = fv.Uint()
		}
	}

	return sl.layout.Pack(values)
}

// Unmarshal decodes data into the struct pointed to by v.
func Unmarshal(data []byte, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("payload: Unmarshal(%T): %w", v, ErrNotStruct)
	}
	rv = rv.Elem()

	sl, err := structLayoutOf(rv.Type())
	if err != nil {
		return err
	}

	values, err := sl.layout.Unpack(data)
	if err != nil {
		return err
	}

	for i, sf := range sl.fields {
		if sf.reserved {
			continue
		}
		fv := rv.Field(sf.index)
		switch {
		case sf.kind == reflect.Bool:
			fv.SetBool(values[i] != 0)
		case isSigned(sf.kind):
			fv.SetInt(sl.layout.Int(values, i))
		default:
			fv.SetUint(values[i])
		}
	}

	return nil
}

func structLayoutOf(t reflect.Type) (*structLayout, error) {
	if cached, ok := layouts.Load(t); ok {
		return cached.(*structLayout), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("payload: %v: %w", t, ErrNotStruct)
	}

	sl := &structLayout{}
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get(tagName)
		if tag == "-" || (!sf.IsExported() && sf.Name != "_") {
			continue
		}

		kind := sf.Type.Kind()
		width, ok := kindBits(kind)
		if !ok {
			return nil, fmt.Errorf("payload: %v.%s has type %v: %w", t, sf.Name, sf.Type, ErrUnsupportedType)
		}

		bits, err := parseTag(tag, width)
		if err != nil {
			return nil, fmt.Errorf("payload: %v.%s: %w", t, sf.Name, err)
		}
		if bits > width {
			return nil, fmt.Errorf("payload: %v.%s has %d bits in a %v: %w", t, sf.Name, bits, sf.Type, ErrFieldWidth)
		}

		fields = append(fields, Field{Name: sf.Name, Bits: bits, Signed: isSigned(kind)})
		sl.fields = append(sl.fields, structField{index: i, kind: kind, reserved: sf.Name == "_"})
	}

	layout, err := NewLayout(fields...)
	if err != nil {
		return nil, fmt.Errorf("payload: %v: %w", t, err)
	}
	sl.layout = layout

	actual, _ := layouts.LoadOrStore(t, sl)
	return actual.(*structLayout), nil
}

func parseTag(tag string, width uint) (uint, error) {
	bits := width
	if tag == "" {
		return bits, nil
	}

	for _, opt := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(opt), "=")
		switch key {
		case "bits":
			n, err := strconv.ParseUint(value, 10, 8)
			if err != nil || n == 0 {
				return 0, fmt.Errorf("bits=%q: %w", value, ErrFieldWidth)
			}
			bits = uint(n)
		case "":
		default:
			return 0, fmt.Errorf("unknown tag option %q", key)
		}
	}

	return bits, nil
}

func kindBits(kind reflect.Kind) (uint, bool) {
	switch kind {
	case reflect.Bool:
		return 1, true
	case reflect.Int8, reflect.Uint8:
		return 8, true
	case reflect.Int16, reflect.Uint16:
		return 16, true
	case reflect.Int32, reflect.Uint32:
		return 32, true
	case reflect.Int64, reflect.Uint64:
		return 64, true
	case reflect.Int, reflect.Uint:
		return strconv.IntSize, true
	}
	return 0, false
}

func isSigned(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}
