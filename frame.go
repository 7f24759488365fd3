package j1939

import (
	"fmt"

	"github.com/FabianPetersen/can"
	"golang.org/x/exp/slices"

	"github.com/pragmaticQt/j1939/payload"
)

// A Frame represents a J1939 frame.
//
// The 29-bit identifier is composed of
//
//	28 27 26 | 25 24 ... 16 | 15 ... 8 | 7 ... 0
//	priority | PDU format   | PDU spec | source address
//
// where bit 24 of the PDU format is the data page bit. Frames are values;
// the payload is copied when a frame is built and when it is read.
type Frame struct {
	priority      uint8
	pduFormat     uint16
	pduSpecific   uint8
	sourceAddress uint8
	data          []byte
}

// NewFrame returns a frame from its identifier fields and payload.
//
// The priority is cut to 3 bits. A PDU format above MaxPDUFormat is kept as
// given but makes the frame invalid, see IsValid. Payloads longer than
// MaxPayload bytes are cut.
func NewFrame(priority uint8, pduFormat uint16, pduSpecific, sourceAddress uint8, data []byte) Frame {
	return Frame{
		priority:      priority & MaskPriority,
		pduFormat:     pduFormat,
		pduSpecific:   pduSpecific,
		sourceAddress: sourceAddress,
		data:          clip(data),
	}
}

// FromID returns a frame from a 29-bit identifier and payload as received
// from the bus. Flag bits above bit 28 are ignored.
func FromID(id uint32, data []byte) Frame {
	var frm Frame
	frm.Assign(id, data)
	return frm
}

// J1939Frame returns a J1939 frame from a CAN frame.
func J1939Frame(frm can.Frame) Frame {
	n := int(frm.Length)
	if n > MaxPayload {
		n = MaxPayload
	}
	return FromID(frm.ID&MaskIDEff, frm.Data[:n])
}

// Assign replaces the fields of the frame with the ones decomposed from id
// and data.
func (frm *Frame) Assign(id uint32, data []byte) {
	frm.priority = uint8(id>>ShiftPriority) & MaskPriority
	frm.pduFormat = uint16(id>>ShiftPDUFormat) & MaskPDUFormat
	frm.pduSpecific = uint8(id >> ShiftPDUSpec)
	frm.sourceAddress = uint8(id)
	frm.data = clip(data)
}

func (frm Frame) Priority() uint8 {
	return frm.priority
}

// PDUFormat returns the 9-bit PDU format including the data page bit.
func (frm Frame) PDUFormat() uint16 {
	return frm.pduFormat
}

// PF returns the PDU format byte without the data page bit.
func (frm Frame) PF() uint8 {
	return uint8(frm.pduFormat & MaskPF)
}

func (frm Frame) PDUSpecific() uint8 {
	return frm.pduSpecific
}

func (frm Frame) SourceAddress() uint8 {
	return frm.sourceAddress
}

// Payload returns a copy of the data bytes.
func (frm Frame) Payload() []byte {
	return append([]byte(nil), frm.data...)
}

// Len returns the number of data bytes.
func (frm Frame) Len() int {
	return len(frm.data)
}

// IsValid reports whether the PDU format fits into 9 bits.
func (frm Frame) IsValid() bool {
	return frm.pduFormat <= MaxPDUFormat
}

// ID returns the 29-bit identifier, or 0 for invalid frames.
func (frm Frame) ID() uint32 {
	if !frm.IsValid() {
		return 0
	}
	return uint32(frm.priority&MaskPriority)<<ShiftPriority |
		uint32(frm.pduFormat&MaskPDUFormat)<<ShiftPDUFormat |
		uint32(frm.pduSpecific)<<ShiftPDUSpec |
		uint32(frm.sourceAddress)
}

// IsPeerToPeer reports whether the frame is a PDU1 frame. The data page bit
// is ignored, so 256..511 split the same way as 0..255.
func (frm Frame) IsPeerToPeer() bool {
	return frm.PF() < PDU2Min
}

// IsBroadcast reports whether the frame is a PDU2 frame.
func (frm Frame) IsBroadcast() bool {
	return !frm.IsPeerToPeer()
}

// IsProprietary reports whether the frame is a proprietary A (peer-to-peer)
// or proprietary B (broadcast) frame.
func (frm Frame) IsProprietary() bool {
	return slices.Contains([]uint8{PFProprietaryA, PFProprietaryB}, frm.PF())
}

// PGN returns the PDU format and the PDU specific byte combined, or 0 for
// invalid frames. A set data page bit extends the number beyond 16 bits.
func (frm Frame) PGN() uint32 {
	if !frm.IsValid() {
		return 0
	}
	return uint32(frm.pduFormat)<<8 | uint32(frm.pduSpecific)
}

// BasePGN returns the PGN with the destination address of peer-to-peer
// frames cleared, as used to identify the parameter group.
func (frm Frame) BasePGN() uint32 {
	if frm.IsPeerToPeer() {
		return frm.PGN() &^ 0xFF
	}
	return frm.PGN()
}

// DestinationAddress returns the PDU specific byte of peer-to-peer frames
// and GlobalAddress for broadcast frames.
func (frm Frame) DestinationAddress() uint8 {
	if frm.IsPeerToPeer() {
		return frm.pduSpecific
	}
	return GlobalAddress
}

// GroupFunction returns the first payload byte, or NoGroupFunction if the
// payload is empty.
func (frm Frame) GroupFunction() uint8 {
	if len(frm.data) == 0 {
		return NoGroupFunction
	}
	return frm.data[0]
}

// CANFrame returns a CAN frame representing the J1939 frame.
//
// J1939 frames are encoded as follows:
//
//	         ------------------------------------------------------
//	CAN     | ID          | Length    | Flags | Res0 | Res1 | Data |
//	         ------------------------------------------------------
//	J1939   | ID() + Eff  | len(Data) |       |      |      | Data |
//	         ------------------------------------------------------
func (frm Frame) CANFrame() can.Frame {
	var data [MaxPayload]uint8
	n := copy(data[:], frm.data)

	return can.Frame{
		ID:     frm.ID() | MaskEff,
		Length: uint8(n),
		Data:   data,
	}
}

// DecodeInto decodes the payload into the tagged struct pointed to by v.
func (frm Frame) DecodeInto(v interface{}) error {
	return payload.Unmarshal(frm.data, v)
}

func (frm Frame) String() string {
	if !frm.IsValid() {
		return fmt.Sprintf("invalid (pf=%d) [%d] % X", frm.pduFormat, len(frm.data), frm.data)
	}
	return fmt.Sprintf("%08X [%d] % X", frm.ID(), len(frm.data), frm.data)
}

// Decode decodes the payload of frm into a record of type T. It fails with
// a payload.ShortPayloadError if the payload is shorter than the layout of T.
func Decode[T any](frm Frame) (T, error) {
	var v T
	if err := frm.DecodeInto(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Encode returns a frame carrying the tagged struct v as payload.
func Encode(priority uint8, pduFormat uint16, pduSpecific, sourceAddress uint8, v interface{}) (Frame, error) {
	data, err := payload.Marshal(v)
	if err != nil {
		return Frame{}, err
	}
	return NewFrame(priority, pduFormat, pduSpecific, sourceAddress, data), nil
}

// EncodePGN is Encode for a parameter group number. The destination is
// only used for peer-to-peer groups, broadcast groups carry their group
// extension in the PDU specific byte.
func EncodePGN(priority uint8, pgn uint32, destination, sourceAddress uint8, v interface{}) (Frame, error) {
	data, err := payload.Marshal(v)
	if err != nil {
		return Frame{}, err
	}
	return NewFramePGN(priority, pgn, destination, sourceAddress, data), nil
}

// NewFramePGN returns a frame of the parameter group pgn. The destination
// is only used for peer-to-peer groups.
func NewFramePGN(priority uint8, pgn uint32, destination, sourceAddress uint8, data []byte) Frame {
	pduFormat := uint16(pgn>>8) & MaskPDUFormat
	pduSpecific := uint8(pgn)
	if uint8(pduFormat) < PDU2Min {
		pduSpecific = destination
	}
	return NewFrame(priority, pduFormat, pduSpecific, sourceAddress, data)
}

func clip(data []byte) []byte {
	if len(data) > MaxPayload {
		data = data[:MaxPayload]
	}
	return append([]byte(nil), data...)
}
