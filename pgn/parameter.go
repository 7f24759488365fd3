package pgn

import (
	"github.com/pragmaticQt/j1939"
)

// Group functions of the proprietary A parameter service.
const (
	GroupFunctionReadParameter uint8 = 0x01
)

const parameterPriority uint8 = 6

// ParameterRequest asks an ECU for the value of one parameter. It is sent
// as proprietary A frame (PGN 0xEF00) to the ECU.
type ParameterRequest struct {
	GroupFunction uint8
	_             uint8
	PID           uint16
	_             uint32
}

// NewParameterRequest returns a read request for pid.
func NewParameterRequest(pid uint16) ParameterRequest {
	return ParameterRequest{GroupFunction: GroupFunctionReadParameter, PID: pid}
}

func (m ParameterRequest) Frame(source, destination uint8) (j1939.Frame, error) {
	return j1939.EncodePGN(parameterPriority, j1939.PGNProprietaryA, destination, source, m)
}

// ParameterResponse is the answer of the ECU to a ParameterRequest. Status
// holds one of the j1939 acknowledgement control bytes.
type ParameterResponse struct {
	GroupFunction uint8
	Status        uint8
	PID           uint16
	Value         uint32
}

func (m ParameterResponse) Frame(source, destination uint8) (j1939.Frame, error) {
	return j1939.EncodePGN(parameterPriority, j1939.PGNProprietaryA, destination, source, m)
}

// ParameterResponseID returns the identifier of responses sent by ecu to
// requester.
func ParameterResponseID(ecu, requester uint8) uint32 {
	return j1939.NewFrame(parameterPriority, uint16(j1939.PGNProprietaryA>>8), requester, ecu, nil).ID()
}

// IsParameterService reports whether frm belongs to the parameter service
// and is addressed to address.
func IsParameterService(frm j1939.Frame, address uint8) bool {
	return frm.IsValid() &&
		frm.BasePGN() == j1939.PGNProprietaryA &&
		frm.DestinationAddress() == address &&
		frm.GroupFunction() == GroupFunctionReadParameter
}
