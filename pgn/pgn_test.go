package pgn_test

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/pragmaticQt/j1939"
	"github.com/pragmaticQt/j1939/payload"
	"github.com/pragmaticQt/j1939/pgn"
)

func TestEEC1Encode(t *testing.T) {
	cases := []struct {
		name    string
		msg     pgn.EEC1
		payload string
	}{
		{
			name: "in range",
			msg: pgn.EEC1{
				EngineTorqueMode:                    4,
				ActualEnginePercentTorqueFractional: 10,
				DriversDemandEnginePercentTorque:    80,
				ActualEnginePercentTorque:           56,
				EngineSpeed:                         5489,
				SourceAddressOfControllingDevice:    13,
				EngineStarterMode:                   3,
				EngineDemandPercentTorque:           30,
			},
			payload: "a4503871150d031e",
		},
		{
			// 51 (0x33) does not fit into 4 bits and is truncated to 0x3.
			name: "out of range",
			msg: pgn.EEC1{
				EngineTorqueMode:                    4,
				ActualEnginePercentTorqueFractional: 51,
				DriversDemandEnginePercentTorque:    80,
				ActualEnginePercentTorque:           56,
				EngineSpeed:                         5489,
				SourceAddressOfControllingDevice:    13,
				EngineStarterMode:                   3,
				EngineDemandPercentTorque:           93,
			},
			payload: "34503871150d035d",
		},
	}

	for _, tc := range cases {
		frm, err := tc.msg.Frame()
		if err != nil {
			t.Fatalf("%s: Frame() error = %v", tc.name, err)
		}
		if frm.ID() != 0x0CF00400 {
			t.Fatalf("%s: ID() = %08X, want 0CF00400", tc.name, frm.ID())
		}
		if got := hex.EncodeToString(frm.Payload()); got != tc.payload {
			t.Fatalf("%s: Payload() = %s, want %s", tc.name, got, tc.payload)
		}
	}
}

func TestEEC1Decode(t *testing.T) {
	data, _ := hex.DecodeString("34503871150d035d")
	msg, err := j1939.Decode[pgn.EEC1](j1939.FromID(0x0CF00400, data))
	if err != nil {
		t.Fatal(err)
	}
	if msg.ActualEnginePercentTorqueFractional != 3 {
		t.Fatalf("truncated field decoded as %d, want 3", msg.ActualEnginePercentTorqueFractional)
	}
	if msg.EngineSpeed != 5489 || msg.EngineDemandPercentTorque != 93 {
		t.Fatalf("got %+v", msg)
	}
	if rpm := msg.EngineRPM(); rpm != 686.125 {
		t.Fatalf("EngineRPM() = %v", rpm)
	}
	if pct := msg.ActualTorquePercent(); pct != -69 {
		t.Fatalf("ActualTorquePercent() = %v", pct)
	}
	if pct := msg.DriversDemandTorquePercent(); pct != -45 {
		t.Fatalf("DriversDemandTorquePercent() = %v", pct)
	}

	msg.SetEngineRPM(1500)
	if msg.EngineSpeed != 12000 {
		t.Fatalf("SetEngineRPM(1500) gives %d", msg.EngineSpeed)
	}
}

func TestA03VehicleSpeed(t *testing.T) {
	msg := pgn.A03VehicleSpeed{
		TargetVehicleSpeed:     -948,
		ActualVehicleSpeed:     1347,
		TargetVehicleSpeedRamp: -5439,
		EngineSpeedT2:          4390,
	}
	frm, err := msg.Frame()
	if err != nil {
		t.Fatal(err)
	}
	if frm.ID() != 0x18FF3203 {
		t.Fatalf("ID() = %08X, want 18FF3203", frm.ID())
	}
	if got := hex.EncodeToString(frm.Payload()); got != "4cfc4305c1ea2611" {
		t.Fatalf("Payload() = %s", got)
	}
	if !frm.IsProprietary() || !frm.IsBroadcast() {
		t.Fatalf("A03 must be proprietary B")
	}

	back, err := j1939.Decode[pgn.A03VehicleSpeed](frm)
	if err != nil {
		t.Fatal(err)
	}
	if back != msg {
		t.Fatalf("round trip: got %+v want %+v", back, msg)
	}
}

func TestCCVS(t *testing.T) {
	msg := pgn.CCVS{
		ParkingBrakeSwitch:           pgn.StateOn,
		CruiseControlActive:          pgn.StateOn,
		ClutchSwitch:                 pgn.StateNotAvailable,
		CruiseControlSetSpeed:        90,
		PTOGovernorState:             31,
		CruiseControlStates:          6,
		EngineShutdownOverrideSwitch: pgn.StateNotAvailable,
	}
	msg.SetSpeedKmh(88.5)

	frm, err := msg.Frame()
	if err != nil {
		t.Fatal(err)
	}
	if frm.ID() != 0x18FEF100 {
		t.Fatalf("ID() = %08X", frm.ID())
	}
	if got := hex.EncodeToString(frm.Payload()); got != "048058c1005adfc0" {
		t.Fatalf("Payload() = %s", got)
	}

	back, err := j1939.Decode[pgn.CCVS](frm)
	if err != nil {
		t.Fatal(err)
	}
	if back != msg {
		t.Fatalf("round trip: got %+v want %+v", back, msg)
	}
	if back.SpeedKmh() != 88.5 {
		t.Fatalf("SpeedKmh() = %v", back.SpeedKmh())
	}
}

func TestRequest(t *testing.T) {
	frm, err := pgn.Request{RequestedPGN: j1939.PGNCCVS}.Frame(0xF9, 0x00)
	if err != nil {
		t.Fatal(err)
	}
	if frm.ID() != 0x18EA00F9 {
		t.Fatalf("ID() = %08X", frm.ID())
	}
	if got := hex.EncodeToString(frm.Payload()); got != "f1fe00" {
		t.Fatalf("Payload() = %s", got)
	}

	back, err := j1939.Decode[pgn.Request](frm)
	if err != nil || back.RequestedPGN != j1939.PGNCCVS {
		t.Fatalf("Decode() = %+v, %v", back, err)
	}
}

func TestAddressClaimed(t *testing.T) {
	name := pgn.AddressClaimed{
		IdentityNumber:          0xABCDE,
		ManufacturerCode:        0x123,
		ECUInstance:             5,
		FunctionInstance:        0x11,
		Function:                0x81,
		VehicleSystem:           0x3C,
		VehicleSystemInstance:   9,
		IndustryGroup:           2,
		ArbitraryAddressCapable: true,
	}
	frm, err := name.Frame(0x80)
	if err != nil {
		t.Fatal(err)
	}
	if frm.ID() != 0x18EEFF80 {
		t.Fatalf("ID() = %08X", frm.ID())
	}
	if got := hex.EncodeToString(frm.Payload()); got != "debc6a248d8178a9" {
		t.Fatalf("Payload() = %s", got)
	}

	back, err := j1939.Decode[pgn.AddressClaimed](frm)
	if err != nil {
		t.Fatal(err)
	}
	if back != name {
		t.Fatalf("round trip: got %+v want %+v", back, name)
	}
}

func TestParameterService(t *testing.T) {
	req, err := pgn.NewParameterRequest(0x0102).Frame(0xF9, 0x00)
	if err != nil {
		t.Fatal(err)
	}
	if req.ID() != 0x18EF00F9 {
		t.Fatalf("request ID() = %08X", req.ID())
	}
	if got := hex.EncodeToString(req.Payload()); got != "0100020100000000" {
		t.Fatalf("request Payload() = %s", got)
	}
	if !pgn.IsParameterService(req, 0x00) || pgn.IsParameterService(req, 0x01) {
		t.Fatal("IsParameterService() mismatch for request")
	}

	resp, err := pgn.ParameterResponse{
		GroupFunction: pgn.GroupFunctionReadParameter,
		PID:           0x0102,
		Value:         0xDEADBEEF,
	}.Frame(0x00, 0xF9)
	if err != nil {
		t.Fatal(err)
	}
	if resp.ID() != pgn.ParameterResponseID(0x00, 0xF9) || resp.ID() != 0x18EFF900 {
		t.Fatalf("response ID() = %08X", resp.ID())
	}
	if resp.GroupFunction() != pgn.GroupFunctionReadParameter {
		t.Fatalf("GroupFunction() = %X", resp.GroupFunction())
	}
}

func TestDecodeTruncatedFrame(t *testing.T) {
	_, err := j1939.Decode[pgn.EEC1](j1939.FromID(0x0CF00400, []byte{0xA4, 0x50}))
	if !errors.Is(err, payload.ErrMalformed) {
		t.Fatalf("Decode() error = %v", err)
	}
}
