// Package bus connects J1939 frames to a CAN bus.
//
// A Conn is built in two steps. New only records the configuration, Open
// attaches to the network interface (or to an injected
// can.ReadWriteCloser) and starts reading frames in the background.
package bus

import (
	"errors"
	"sync"
	"time"

	"github.com/FabianPetersen/can"
	"go.uber.org/zap"

	"github.com/pragmaticQt/j1939"
)

var (
	ErrNotOpen     = errors.New("bus: connection is not open")
	ErrAlreadyOpen = errors.New("bus: connection is already open")
)

type Option func(*Conn)

// WithLogger sets the logger of the connection.
func WithLogger(log *zap.Logger) Option {
	return func(c *Conn) {
		c.log = log
	}
}

// WithReadWriteCloser uses rwc instead of the network interface.
func WithReadWriteCloser(rwc can.ReadWriteCloser) Option {
	return func(c *Conn) {
		c.rwc = rwc
	}
}

// A Conn is a connection to a CAN bus carrying J1939 frames.
type Conn struct {
	iface string
	rwc   can.ReadWriteCloser
	log   *zap.Logger

	mu   sync.RWMutex
	bus  *can.Bus
	subs map[int]func(j1939.Frame)
	next int

	done chan struct{}
	err  error
}

// New returns an unopened connection to the network interface iface.
func New(iface string, opts ...Option) *Conn {
	c := &Conn{
		iface: iface,
		log:   zap.NewNop(),
		subs:  make(map[int]func(j1939.Frame)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("interface", c.Name()))
	return c
}

// Name returns the interface name, or "rwc" for injected read-writers.
func (c *Conn) Name() string {
	if c.rwc != nil && c.iface == "" {
		return "rwc"
	}
	return c.iface
}

// Open attaches to the bus and starts dispatching received frames to
// subscribers.
func (c *Conn) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bus != nil {
		return ErrAlreadyOpen
	}

	var (
		b   *can.Bus
		err error
	)
	if c.rwc != nil {
		b = can.NewBus(c.rwc, c.Name())
	} else {
		b, err = can.NewBusForInterfaceWithName(c.iface)
		if err != nil {
			return err
		}
	}

	b.SubscribeFunc(c.dispatch)
	c.bus = b
	c.done = make(chan struct{})

	go func(b *can.Bus, done chan struct{}) {
		err := b.ConnectAndPublish()
		c.mu.Lock()
		if c.bus != b {
			// Stopped by Close.
			err = nil
		}
		c.err = err
		c.mu.Unlock()
		c.log.Debug("bus disconnected", zap.Error(err))
		close(done)
	}(b, c.done)

	c.log.Info("bus opened")
	return nil
}

func (c *Conn) dispatch(frame can.Frame) {
	if frame.ID&j1939.MaskEff == 0 {
		// Standard frames carry no J1939 identifier.
		return
	}
	if frame.ID&(j1939.MaskErr|j1939.MaskRtr) != 0 {
		c.log.Debug("error or remote frame dropped", zap.Uint32("id", frame.ID))
		return
	}
	frm := j1939.J1939Frame(frame)

	c.mu.RLock()
	fns := make([]func(j1939.Frame), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(frm)
	}
}

// Subscribe calls fn for every received J1939 frame until cancel is called.
// fn runs on the reader goroutine and must not block.
func (c *Conn) Subscribe(fn func(j1939.Frame)) (cancel func()) {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Send writes frm to the bus. Like can.Bus.Publish it takes at least
// 10ms per frame.
func (c *Conn) Send(frm j1939.Frame) error {
	return c.SendMinDuration(frm, 10*time.Millisecond)
}

// SendMinDuration writes frm to the bus and returns no earlier than min
// after it started. A zero min sends without pacing.
func (c *Conn) SendMinDuration(frm j1939.Frame, min time.Duration) error {
	if !frm.IsValid() {
		return j1939.ErrInvalidFrame
	}
	b := c.Bus()
	if b == nil {
		return ErrNotOpen
	}
	c.log.Debug("send", zap.Stringer("frame", frm))
	return b.PublishMinDuration(frm.CANFrame(), min)
}

// Bus returns the underlying bus, or nil if the connection is not open.
func (c *Conn) Bus() *can.Bus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bus
}

// Done is closed when the reader goroutine has stopped.
func (c *Conn) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Err returns the error which stopped the reader goroutine. It is nil
// after Close.
func (c *Conn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close disconnects from the bus and waits for the reader goroutine.
func (c *Conn) Close() error {
	c.mu.Lock()
	b, done := c.bus, c.done
	c.bus = nil
	c.mu.Unlock()

	if b == nil {
		return ErrNotOpen
	}
	err := b.Disconnect()
	<-done
	c.log.Info("bus closed")
	return err
}
