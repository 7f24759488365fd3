package pgn

import (
	"math"

	"github.com/pragmaticQt/j1939"
)

// Default header of EEC1 as sent by engine #1.
const (
	EEC1Priority      uint8 = 3
	EEC1SourceAddress uint8 = 0x00
)

const (
	engineSpeedResolution = 0.125 // rpm/bit
	torqueOffset          = -125  // %
)

// EEC1 is the electronic engine controller 1 message (PGN 61444).
type EEC1 struct {
	EngineTorqueMode                    uint8 `j1939:"bits=4"`
	ActualEnginePercentTorqueFractional uint8 `j1939:"bits=4"`
	DriversDemandEnginePercentTorque    uint8
	ActualEnginePercentTorque           uint8
	EngineSpeed                         uint16
	SourceAddressOfControllingDevice    uint8
	EngineStarterMode                   uint8 `j1939:"bits=4"`
	_                                   uint8 `j1939:"bits=4"`
	EngineDemandPercentTorque           uint8
}

// Frame returns the EEC1 frame with the default header.
func (m EEC1) Frame() (j1939.Frame, error) {
	return j1939.EncodePGN(EEC1Priority, j1939.PGNEEC1, j1939.GlobalAddress, EEC1SourceAddress, m)
}

// EngineRPM returns the engine speed in rpm.
func (m EEC1) EngineRPM() float64 {
	return float64(m.EngineSpeed) * engineSpeedResolution
}

// SetEngineRPM sets the engine speed from rpm.
func (m *EEC1) SetEngineRPM(rpm float64) {
	m.EngineSpeed = uint16(math.Round(rpm / engineSpeedResolution))
}

// ActualTorquePercent returns the actual engine torque in percent of the
// reference torque (-125..125).
func (m EEC1) ActualTorquePercent() float64 {
	return float64(m.ActualEnginePercentTorque) + torqueOffset
}

// DriversDemandTorquePercent returns the driver's demand torque in percent.
func (m EEC1) DriversDemandTorquePercent() float64 {
	return float64(m.DriversDemandEnginePercentTorque) + torqueOffset
}
