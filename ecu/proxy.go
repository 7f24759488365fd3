package ecu

import (
	"context"
	"sync"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"github.com/pragmaticQt/j1939"
	"github.com/pragmaticQt/j1939/bus"
	"github.com/pragmaticQt/j1939/pgn"
)

// A Reading is a parameter value received from the ECU.
type Reading struct {
	PID   uint16
	Value uint32
	Err   error
}

// A Proxy reads parameters of the ECU at address ecu on behalf of the node
// at address source.
//
// Every parameter response seen on the bus is delivered to the callback set
// with OnParameterRead and to the Results channel, no matter whether it was
// requested with ReadParameter or RequestParameter.
type Proxy struct {
	conn   *bus.Conn
	source uint8
	ecu    uint8
	settings

	mu      sync.Mutex
	onRead  func(pid uint16, value uint32)
	results chan Reading
	cancel  func()
	once    sync.Once
}

// NewProxy returns a proxy on an open connection.
func NewProxy(conn *bus.Conn, source, ecu uint8, opts ...Option) *Proxy {
	p := &Proxy{
		conn:     conn,
		source:   source,
		ecu:      ecu,
		settings: newSettings(opts),
		results:  make(chan Reading, 64),
	}
	p.log = p.log.With(zap.Uint8("source", source), zap.Uint8("ecu", ecu))
	p.cancel = conn.Subscribe(p.handle)
	return p
}

// IsConnected reports whether the underlying connection is open.
func (p *Proxy) IsConnected() bool {
	return p.conn.Bus() != nil
}

// OnParameterRead sets the function called for every successful read.
func (p *Proxy) OnParameterRead(fn func(pid uint16, value uint32)) {
	p.mu.Lock()
	p.onRead = fn
	p.mu.Unlock()
}

// Results returns the channel of readings. Readings are dropped while the
// channel is full.
func (p *Proxy) Results() <-chan Reading {
	return p.results
}

// RequestParameter sends a read request for pid without waiting for the
// response. Requests are not paced, so a burst of them can fill the
// transmit queue of the interface.
func (p *Proxy) RequestParameter(pid uint16) error {
	frm, err := pgn.NewParameterRequest(pid).Frame(p.source, p.ecu)
	if err != nil {
		return err
	}
	return p.conn.SendMinDuration(frm, 0)
}

// ReadParameter reads the value of pid. Timeouts and answers for other
// parameters are retried; refusals by the ECU are returned as
// ParameterError.
func (p *Proxy) ReadParameter(ctx context.Context, pid uint16) (uint32, error) {
	b := p.conn.Bus()
	if b == nil {
		return 0, bus.ErrNotOpen
	}

	frm, err := pgn.NewParameterRequest(pid).Frame(p.source, p.ecu)
	if err != nil {
		return 0, err
	}
	c := &j1939.Client{Bus: b, Timeout: p.timeout}
	req := j1939.NewRequest(frm, pgn.ParameterResponseID(p.ecu, p.source))

	var value uint32
	err = retry.Do(
		func() error {
			// Do not allow multiple requests to the same ECU
			key := j1939.LockKey(p.ecu)
			j1939.Lock.Lock(key)
			defer j1939.Lock.Unlock(key)

			resp, err := c.Do(req)
			if err != nil {
				return err
			}

			msg, err := j1939.Decode[pgn.ParameterResponse](resp.Frame)
			if err != nil {
				return retry.Unrecoverable(j1939.UnexpectedResponseLength{
					Expected: j1939.MaxPayload,
					Actual:   resp.Frame.Len(),
				})
			}
			if msg.GroupFunction != pgn.GroupFunctionReadParameter {
				return retry.Unrecoverable(j1939.UnexpectedGroupFunction{
					Expected: pgn.GroupFunctionReadParameter,
					Actual:   msg.GroupFunction,
				})
			}
			if msg.PID != pid {
				return UnexpectedParameter{Expected: pid, Actual: msg.PID}
			}
			if err := responseError(msg); err != nil {
				return retry.Unrecoverable(err)
			}
			value = msg.Value
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			p.log.Debug("read parameter failed", zap.Uint16("pid", pid), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Close stops the delivery of readings and closes the Results channel.
func (p *Proxy) Close() {
	p.once.Do(func() {
		p.cancel()
		p.mu.Lock()
		close(p.results)
		p.results = nil
		p.mu.Unlock()
	})
}

func (p *Proxy) handle(frm j1939.Frame) {
	if frm.SourceAddress() != p.ecu || !pgn.IsParameterService(frm, p.source) {
		return
	}

	msg, err := j1939.Decode[pgn.ParameterResponse](frm)
	if err != nil {
		p.log.Warn("malformed parameter response", zap.Stringer("frame", frm), zap.Error(err))
		return
	}

	reading := Reading{PID: msg.PID, Value: msg.Value, Err: responseError(msg)}

	p.mu.Lock()
	if p.results == nil {
		p.mu.Unlock()
		return
	}
	onRead := p.onRead
	select {
	case p.results <- reading:
	default:
		p.log.Debug("results full, reading dropped", zap.Uint16("pid", reading.PID))
	}
	p.mu.Unlock()

	if reading.Err == nil && onRead != nil {
		onRead(reading.PID, reading.Value)
	}
}

func responseError(msg pgn.ParameterResponse) error {
	switch msg.Status {
	case j1939.AckPositive:
		return nil
	case j1939.AckNegative:
		return ParameterError{PID: msg.PID, Err: ErrUnknownParameter}
	}
	return ParameterError{PID: msg.PID, Err: j1939.Nack{Control: msg.Status, PGN: j1939.PGNProprietaryA}}
}
