package pgn

import (
	"github.com/pragmaticQt/j1939"
)

const requestPriority uint8 = 6

// Request asks the destination to send the requested parameter group
// (PGN 59904).
type Request struct {
	RequestedPGN uint32 `j1939:"bits=24"`
}

// Frame returns the request from source to destination. Use
// j1939.GlobalAddress to ask all nodes.
func (m Request) Frame(source, destination uint8) (j1939.Frame, error) {
	return j1939.EncodePGN(requestPriority, j1939.PGNRequest, destination, source, m)
}

// AddressClaimed carries the 64-bit NAME of a node (PGN 60928). Only the
// payload is defined here; the address claim procedure is not.
type AddressClaimed struct {
	IdentityNumber          uint32 `j1939:"bits=21"`
	ManufacturerCode        uint16 `j1939:"bits=11"`
	ECUInstance             uint8  `j1939:"bits=3"`
	FunctionInstance        uint8  `j1939:"bits=5"`
	Function                uint8
	_                       uint8 `j1939:"bits=1"`
	VehicleSystem           uint8 `j1939:"bits=7"`
	VehicleSystemInstance   uint8 `j1939:"bits=4"`
	IndustryGroup           uint8 `j1939:"bits=3"`
	ArbitraryAddressCapable bool
}

func (m AddressClaimed) Frame(source uint8) (j1939.Frame, error) {
	return j1939.EncodePGN(requestPriority, j1939.PGNAddressClaimed, j1939.GlobalAddress, source, m)
}
