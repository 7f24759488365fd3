package bus

import (
	"io"
	"sync"

	"github.com/FabianPetersen/can"
)

// Loopback is an in-memory CAN medium for tests and simulations.
// Frames written to one endpoint are delivered to all other endpoints.
type Loopback struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*endpoint]struct{}
}

// NewLoopback creates a new loopback medium.
func NewLoopback() *Loopback {
	return &Loopback{endpoints: make(map[*endpoint]struct{})}
}

// Open creates a new endpoint attached to the medium. The endpoint
// exchanges frames in the byte encoding of can.Marshal.
func (l *Loopback) Open() can.ReadWriteCloser {
	ep := &endpoint{
		medium: l,
		ch:     make(chan []byte, 64),
	}
	l.mu.Lock()
	if l.closed {
		ep.dead = true
		close(ep.ch)
	} else {
		l.endpoints[ep] = struct{}{}
	}
	l.mu.Unlock()
	return can.NewReadWriteCloser(ep)
}

// Close closes the medium and all endpoints.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for ep := range l.endpoints {
		ep.closeNoLock()
	}
	l.endpoints = nil
	return nil
}

type endpoint struct {
	medium *Loopback
	ch     chan []byte
	mu     sync.Mutex
	dead   bool
}

// Read waits for the next frame written by another endpoint. After Close
// it returns io.ErrClosedPipe; io.EOF would keep can.Bus reading.
func (e *endpoint) Read(b []byte) (int, error) {
	buf, ok := <-e.ch
	if !ok {
		return 0, io.ErrClosedPipe
	}
	return copy(b, buf), nil
}

// Write delivers the encoded frame to all other endpoints.
func (e *endpoint) Write(b []byte) (int, error) {
	e.mu.Lock()
	dead := e.dead
	e.mu.Unlock()
	if dead {
		return 0, io.ErrClosedPipe
	}

	// Snapshot endpoints to avoid holding the lock while delivering.
	e.medium.mu.RLock()
	if e.medium.closed {
		e.medium.mu.RUnlock()
		return 0, io.ErrClosedPipe
	}
	targets := make([]*endpoint, 0, len(e.medium.endpoints))
	for ep := range e.medium.endpoints {
		if ep != e {
			targets = append(targets, ep)
		}
	}
	e.medium.mu.RUnlock()

	buf := append([]byte(nil), b...)
	for _, t := range targets {
		t.deliver(buf)
	}
	return len(b), nil
}

func (e *endpoint) deliver(buf []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return
	}
	select {
	case e.ch <- buf:
	default:
		// Drop if the reader is slow, like a full receive queue.
	}
}

// Close detaches the endpoint from the medium.
func (e *endpoint) Close() error {
	e.medium.mu.Lock()
	e.closeNoLock()
	e.medium.mu.Unlock()
	return nil
}

func (e *endpoint) closeNoLock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return
	}
	e.dead = true
	close(e.ch)
	if e.medium.endpoints != nil {
		delete(e.medium.endpoints, e)
	}
}
