package ecu

import (
	"sync"

	"go.uber.org/zap"

	"github.com/pragmaticQt/j1939"
	"github.com/pragmaticQt/j1939/bus"
	"github.com/pragmaticQt/j1939/pgn"
)

// Parameters is a fixed parameter table of a virtual ECU.
type Parameters map[uint16]uint32

func (p Parameters) Lookup(pid uint16) (uint32, bool) {
	v, ok := p[pid]
	return v, ok
}

// A Server is a virtual ECU answering parameter reads addressed to Address.
// Unknown parameters are answered with status j1939.AckNegative.
type Server struct {
	Address uint8
	Lookup  func(pid uint16) (uint32, bool)

	conn         *bus.Conn
	log          *zap.Logger
	messageQueue chan j1939.Frame
	cancel       func()
	wg           sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewServer returns a server for the ECU at address.
func NewServer(address uint8, lookup func(pid uint16) (uint32, bool), opts ...Option) *Server {
	s := newSettings(opts)
	if lookup == nil {
		lookup = Parameters{}.Lookup
	}
	return &Server{
		Address: address,
		Lookup:  lookup,
		log:     s.log.With(zap.Uint8("ecu", address)),
	}
}

// Listen starts answering requests received on the open connection conn.
func (server *Server) Listen(conn *bus.Conn) {
	server.conn = conn
	server.messageQueue = make(chan j1939.Frame, 500)

	server.cancel = conn.Subscribe(func(frm j1939.Frame) {
		if !pgn.IsParameterService(frm, server.Address) {
			return
		}
		server.mu.Lock()
		defer server.mu.Unlock()
		if server.closed {
			return
		}
		select {
		case server.messageQueue <- frm:
		default:
			server.log.Warn("request dropped", zap.Stringer("frame", frm))
		}
	})

	server.wg.Add(1)
	go server.processMessageQueue()
}

// Close stops answering requests.
func (server *Server) Close() {
	if server.cancel == nil {
		return
	}
	server.cancel()
	server.mu.Lock()
	server.closed = true
	close(server.messageQueue)
	server.mu.Unlock()
	server.wg.Wait()
	server.cancel = nil
}

func (server *Server) processMessageQueue() {
	defer server.wg.Done()
	for frm := range server.messageQueue {
		if err := server.handleRead(frm); err != nil {
			server.log.Error("answer parameter request", zap.Stringer("frame", frm), zap.Error(err))
		}
	}
}

func (server *Server) handleRead(frm j1939.Frame) error {
	req, err := j1939.Decode[pgn.ParameterRequest](frm)
	if err != nil {
		return err
	}

	resp := pgn.ParameterResponse{
		GroupFunction: pgn.GroupFunctionReadParameter,
		Status:        j1939.AckPositive,
		PID:           req.PID,
	}
	if v, ok := server.Lookup(req.PID); ok {
		resp.Value = v
	} else {
		resp.Status = j1939.AckNegative
	}
	server.log.Debug("read parameter", zap.Uint16("pid", req.PID), zap.Uint8("status", resp.Status), zap.Uint32("value", resp.Value))

	out, err := resp.Frame(server.Address, frm.SourceAddress())
	if err != nil {
		return err
	}
	return server.conn.Send(out)
}
