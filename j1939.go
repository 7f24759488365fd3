package j1939

// PDU format values which split the identifier space.
const (
	// PDU1 formats (0..239) are peer-to-peer, the PDU specific byte is the
	// destination address.
	PDU1Max uint8 = 0xEF
	// PDU2 formats (240..255) are broadcast, the PDU specific byte is the
	// group extension.
	PDU2Min uint8 = 0xF0

	PFProprietaryA uint8 = 0xEF
	PFProprietaryB uint8 = 0xFF

	// MaxPDUFormat is the largest PDU format including the data page bit.
	MaxPDUFormat uint16 = 0x1FF
)

// Well known parameter group numbers.
const (
	PGNRequest         uint32 = 0xEA00
	PGNAcknowledgement uint32 = 0xE800
	PGNAddressClaimed  uint32 = 0xEE00
	PGNProprietaryA    uint32 = 0xEF00
	PGNCCVS            uint32 = 0xFEF1
	PGNEEC1            uint32 = 0xF004
	PGNProprietaryB    uint32 = 0xFF00
)

const (
	// GlobalAddress is the destination of broadcast frames.
	GlobalAddress uint8 = 0xFF
	// NullAddress is used by nodes without an address.
	NullAddress uint8 = 0xFE

	// NoGroupFunction is returned by Frame.GroupFunction for empty payloads.
	NoGroupFunction uint8 = 0xFF

	// MaxPayload is the number of data bytes of a single frame.
	MaxPayload = 8
)

const (
	// MaskPriority is used to extract the 3-bit priority.
	MaskPriority = 0x7
	// MaskPDUFormat is used to extract the 9-bit PDU format including the data page bit.
	MaskPDUFormat = 0x1FF
	// MaskPF is used to extract the PF byte from the PDU format.
	MaskPF = 0xFF

	ShiftPriority  = 26
	ShiftPDUFormat = 16
	ShiftPDUSpec   = 8

	// MaskIDEff is used to extract the valid 29-bit CAN identifier bits from the frame ID of an extended frame format.
	MaskIDEff = 0x1FFFFFFF
	// MaskErr is used to extract the error flag (0 = data frame, 1 = error message) from the frame ID.
	MaskErr = 0x20000000
	// MaskRtr is used to extract the rtr flag (1 = rtr frame) from the frame ID
	MaskRtr = 0x40000000
	// MaskEff is used to extract the eff flag (0 = standard frame, 1 = extended frame) from the frame ID
	MaskEff = 0x80000000
)
