package ecu

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pragmaticQt/j1939/bus"
)

// DefaultSimulatedReads is the number of reads issued by Simulator.Run.
const DefaultSimulatedReads = 50

// A Simulator sends a burst of parameter requests through a Proxy to
// provoke a full transmit buffer. Every answer is reported as a line
// "pid -> value" to LogMessage.
type Simulator struct {
	Proxy      *Proxy
	Reads      uint16
	LogMessage func(line string)

	log *zap.Logger
}

// NewSimulator returns a simulator for proxy which logs through log.
func NewSimulator(proxy *Proxy, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Simulator{
		Proxy: proxy,
		Reads: DefaultSimulatedReads,
		log:   log,
	}
	proxy.OnParameterRead(s.onParameterRead)
	return s
}

// Run requests the parameters 0 to Reads-1 without waiting for the answers.
// It stops at the first failed send.
func (s *Simulator) Run(ctx context.Context) error {
	if !s.Proxy.IsConnected() {
		s.logMessage("ERROR: Could not connect to CAN bus device.")
		return bus.ErrNotOpen
	}
	for pid := uint16(0); pid < s.Reads; pid++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Proxy.RequestParameter(pid); err != nil {
			s.log.Error("request parameter", zap.Uint16("pid", pid), zap.Error(err))
			return err
		}
	}
	return nil
}

func (s *Simulator) onParameterRead(pid uint16, value uint32) {
	s.logMessage(fmt.Sprintf("%d -> %d", pid, value))
}

func (s *Simulator) logMessage(line string) {
	s.log.Info(line)
	if s.LogMessage != nil {
		s.LogMessage(line)
	}
}
