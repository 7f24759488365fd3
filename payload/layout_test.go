package payload

import (
	"bytes"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"
)

type engineController struct {
	TorqueMode           uint8 `j1939:"bits=4"`
	ActualTorqueFraction uint8 `j1939:"bits=4"`
	DemandTorque         uint8
	ActualTorque         uint8
	Speed                uint16
	ControllingAddress   uint8
	StarterMode          uint8 `j1939:"bits=4"`
	_                    uint8 `j1939:"bits=4"`
	EngineDemandTorque   uint8
}

type vehicleSpeed struct {
	Target      int16
	Actual      int16
	TargetRamp  int16
	EngineSpeed uint16
}

type packedSigned struct {
	A int16 `j1939:"bits=12"`
	B uint8 `j1939:"bits=4"`
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestNewLayout(t *testing.T) {
	cases := []struct {
		name    string
		fields  []Field
		size    int
		wantErr error
	}{
		{"empty", nil, 0, nil},
		{"one byte", []Field{{Name: "a", Bits: 8}}, 1, nil},
		{"nibbles", []Field{{Name: "a", Bits: 4}, {Name: "b", Bits: 4}}, 1, nil},
		{"full frame", []Field{{Name: "a", Bits: 64}}, 8, nil},
		{"zero width", []Field{{Name: "a", Bits: 0}}, 0, ErrFieldWidth},
		{"too wide", []Field{{Name: "a", Bits: 65}}, 0, ErrFieldWidth},
		{"too large", []Field{{Name: "a", Bits: 60}, {Name: "b", Bits: 8}}, 0, ErrLayoutTooLarge},
		{"unaligned", []Field{{Name: "a", Bits: 4}}, 0, ErrUnaligned},
	}

	for _, tc := range cases {
		layout, err := NewLayout(tc.fields...)
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: NewLayout() error = %v, want %v", tc.name, err, tc.wantErr)
		}
		if err == nil && layout.Size() != tc.size {
			t.Fatalf("%s: Size() = %d, want %d", tc.name, layout.Size(), tc.size)
		}
	}
}

func TestLayoutOffsets(t *testing.T) {
	layout, err := NewLayout(Field{Name: "a", Bits: 3}, Field{Name: "b", Bits: 13}, Field{Name: "c", Bits: 8})
	if err != nil {
		t.Fatal(err)
	}
	want := []uint{0, 3, 16}
	for i, f := range layout.Fields() {
		if f.Offset() != want[i] {
			t.Fatalf("field %s offset = %d, want %d", f.Name, f.Offset(), want[i])
		}
	}
}

func TestPackTruncates(t *testing.T) {
	layout, err := NewLayout(Field{Name: "low", Bits: 4}, Field{Name: "high", Bits: 4})
	if err != nil {
		t.Fatal(err)
	}

	data, err := layout.Pack([]uint64{51, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0x13}) {
		t.Fatalf("Pack() = %x, want 13", data)
	}

	values, err := layout.Unpack(data)
	if err != nil {
		t.Fatal(err)
	}
	if values[0] != 3 {
		t.Fatalf("truncated value decoded as %d, want 3", values[0])
	}
}

func TestPackValueCount(t *testing.T) {
	layout, _ := NewLayout(Field{Name: "a", Bits: 8})
	if _, err := layout.Pack([]uint64{1, 2}); err == nil {
		t.Fatal("expected error for wrong value count")
	}
}

func TestUnpackShortPayload(t *testing.T) {
	layout, _ := NewLayout(Field{Name: "a", Bits: 16}, Field{Name: "b", Bits: 16})

	_, err := layout.Unpack([]byte{1, 2, 3})
	var short ShortPayloadError
	if !errors.As(err, &short) {
		t.Fatalf("Unpack() error = %v, want ShortPayloadError", err)
	}
	if short.Expected != 4 || short.Actual != 3 {
		t.Fatalf("got %+v", short)
	}
	if !errors.Is(err, ErrMalformed) {
		t.Fatal("ShortPayloadError should match ErrMalformed")
	}
}

func TestSignExtend(t *testing.T) {
	cases := []struct {
		raw  uint64
		bits uint
		want int64
	}{
		{0xFC4C, 16, -948},
		{0x4C, 8, 76},
		{0x7, 3, -1},
		{0x3, 3, 3},
		{0xFFFFFFFFFFFFFFFF, 64, -1},
	}
	for _, tc := range cases {
		if got := SignExtend(tc.raw, tc.bits); got != tc.want {
			t.Fatalf("SignExtend(%#x, %d) = %d, want %d", tc.raw, tc.bits, got, tc.want)
		}
	}
}

func TestMarshalEngineController(t *testing.T) {
	cases := []struct {
		name string
		in   engineController
		want string
		out  engineController
	}{
		{
			name: "in range",
			in:   engineController{4, 10, 80, 56, 5489, 13, 3, 0, 30},
			want: "a4503871150d031e",
			out:  engineController{4, 10, 80, 56, 5489, 13, 3, 0, 30},
		},
		{
			name: "truncated nibble",
			in:   engineController{4, 51, 80, 56, 5489, 13, 3, 0, 93},
			want: "34503871150d035d",
			out:  engineController{4, 3, 80, 56, 5489, 13, 3, 0, 93},
		},
	}

	for _, tc := range cases {
		data, err := Marshal(tc.in)
		if err != nil {
			t.Fatalf("%s: Marshal() error = %v", tc.name, err)
		}
		if got := hex.EncodeToString(data); got != tc.want {
			t.Fatalf("%s: Marshal() = %s, want %s", tc.name, got, tc.want)
		}

		var out engineController
		if err := Unmarshal(data, &out); err != nil {
			t.Fatalf("%s: Unmarshal() error = %v", tc.name, err)
		}
		if out != tc.out {
			t.Fatalf("%s: Unmarshal() = %+v, want %+v", tc.name, out, tc.out)
		}
	}
}

func TestMarshalSigned(t *testing.T) {
	in := vehicleSpeed{Target: -948, Actual: 1347, TargetRamp: -5439, EngineSpeed: 4390}
	data, err := Marshal(&in)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, mustHex(t, "4cfc4305c1ea2611")) {
		t.Fatalf("Marshal() = %x", data)
	}

	var out vehicleSpeed
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("round trip: got %+v want %+v", out, in)
	}
}

func TestMarshalSignedNarrowField(t *testing.T) {
	data, err := Marshal(packedSigned{A: -2, B: 5})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0xFE, 0x5F}) {
		t.Fatalf("Marshal() = %x, want fe5f", data)
	}

	var out packedSigned
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.A != -2 || out.B != 5 {
		t.Fatalf("got %+v", out)
	}
}

func TestUnmarshalShortPayload(t *testing.T) {
	var out vehicleSpeed
	err := Unmarshal([]byte{1, 2, 3, 4, 5, 6, 7}, &out)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Unmarshal() error = %v, want ErrMalformed", err)
	}
	if out != (vehicleSpeed{}) {
		t.Fatalf("short payload must not be decoded: %+v", out)
	}
}

func TestLayoutOfErrors(t *testing.T) {
	type tooWide struct {
		A uint8 `j1939:"bits=9"`
		B uint8 `j1939:"bits=7"`
	}
	type unaligned struct {
		A uint8 `j1939:"bits=3"`
	}
	type unsupported struct {
		A float32
	}
	type badTag struct {
		A uint8 `j1939:"width=8"`
	}

	cases := []struct {
		name    string
		typ     reflect.Type
		wantErr error
	}{
		{"too wide", reflect.TypeOf(tooWide{}), ErrFieldWidth},
		{"unaligned", reflect.TypeOf(unaligned{}), ErrUnaligned},
		{"unsupported", reflect.TypeOf(unsupported{}), ErrUnsupportedType},
		{"not a struct", reflect.TypeOf(0), ErrNotStruct},
		{"bad tag", reflect.TypeOf(badTag{}), nil},
	}
	for _, tc := range cases {
		_, err := LayoutOf(tc.typ)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: error = %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestLayoutOfIgnoresUnexported(t *testing.T) {
	type withPrivate struct {
		A       uint8
		private uint32
		B       bool   `j1939:"bits=1"`
		Skip    uint64 `j1939:"-"`
		_       uint8  `j1939:"bits=7"`
	}
	layout, err := LayoutOf(reflect.TypeOf(withPrivate{}))
	if err != nil {
		t.Fatal(err)
	}
	if layout.Len() != 3 || layout.Size() != 2 {
		t.Fatalf("Len() = %d Size() = %d", layout.Len(), layout.Size())
	}

	data, err := Marshal(withPrivate{A: 7, B: true, Skip: 99})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0x07, 0x01}) {
		t.Fatalf("Marshal() = %x", data)
	}
}
