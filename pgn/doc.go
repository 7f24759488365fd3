// Package pgn defines the payloads of individual J1939 parameter groups.
//
// Every definition is a struct whose field tags describe the bit layout of
// the payload (see package payload). Definitions encode themselves with
// their Frame method and are decoded with j1939.Decode:
//
//	eec1, err := j1939.Decode[pgn.EEC1](frm)
//
// Raw fields hold the transmitted values. Scaled physical values are
// available through methods.
package pgn
