package pgn

import (
	"github.com/pragmaticQt/j1939"
)

// A03VehicleSpeed is a proprietary B message (PGN 0xFF32) of a harvester
// terminal carrying target and actual vehicle speed.
type A03VehicleSpeed struct {
	TargetVehicleSpeed     int16
	ActualVehicleSpeed     int16
	TargetVehicleSpeedRamp int16
	EngineSpeedT2          uint16
}

// Default header of A03VehicleSpeed.
const (
	PGNA03VehicleSpeed           uint32 = 0xFF32
	A03VehicleSpeedPriority      uint8  = 6
	A03VehicleSpeedSourceAddress uint8  = 0x03
)

func (m A03VehicleSpeed) Frame() (j1939.Frame, error) {
	return j1939.EncodePGN(A03VehicleSpeedPriority, PGNA03VehicleSpeed, j1939.GlobalAddress, A03VehicleSpeedSourceAddress, m)
}

// Two-bit states of switches and requests.
const (
	StateOff          uint8 = 0
	StateOn           uint8 = 1
	StateError        uint8 = 2
	StateNotAvailable uint8 = 3
)

const (
	CCVSPriority      uint8 = 6
	CCVSSourceAddress uint8 = 0x00

	wheelSpeedResolution = 1.0 / 256 // km/h per bit
)

// CCVS is the cruise control/vehicle speed message (PGN 65265).
type CCVS struct {
	TwoSpeedAxleSwitch             uint8 `j1939:"bits=2"`
	ParkingBrakeSwitch             uint8 `j1939:"bits=2"`
	CruiseControlPauseSwitch       uint8 `j1939:"bits=2"`
	ParkBrakeReleaseInhibitRequest uint8 `j1939:"bits=2"`
	WheelBasedVehicleSpeed         uint16
	CruiseControlActive            uint8 `j1939:"bits=2"`
	CruiseControlEnableSwitch      uint8 `j1939:"bits=2"`
	BrakeSwitch                    uint8 `j1939:"bits=2"`
	ClutchSwitch                   uint8 `j1939:"bits=2"`
	CruiseControlSetSwitch         uint8 `j1939:"bits=2"`
	CruiseControlCoastSwitch       uint8 `j1939:"bits=2"`
	CruiseControlResumeSwitch      uint8 `j1939:"bits=2"`
	CruiseControlAccelerateSwitch  uint8 `j1939:"bits=2"`
	CruiseControlSetSpeed          uint8
	PTOGovernorState               uint8 `j1939:"bits=5"`
	CruiseControlStates            uint8 `j1939:"bits=3"`
	EngineIdleIncrementSwitch      uint8 `j1939:"bits=2"`
	EngineIdleDecrementSwitch      uint8 `j1939:"bits=2"`
	EngineTestModeSwitch           uint8 `j1939:"bits=2"`
	EngineShutdownOverrideSwitch   uint8 `j1939:"bits=2"`
}

func (m CCVS) Frame() (j1939.Frame, error) {
	return j1939.EncodePGN(CCVSPriority, j1939.PGNCCVS, j1939.GlobalAddress, CCVSSourceAddress, m)
}

// SpeedKmh returns the wheel-based vehicle speed in km/h.
func (m CCVS) SpeedKmh() float64 {
	return float64(m.WheelBasedVehicleSpeed) * wheelSpeedResolution
}

// SetSpeedKmh sets the wheel-based vehicle speed from km/h.
func (m *CCVS) SetSpeedKmh(kmh float64) {
	m.WheelBasedVehicleSpeed = uint16(kmh / wheelSpeedResolution)
}
