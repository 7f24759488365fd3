// Package ecu talks to the parameter service of an electronic control
// unit over a J1939 bus.
//
// A Proxy reads parameters of a remote ECU, a Server answers the requests
// as a virtual ECU and a Simulator floods a Proxy with reads.
package ecu

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 2 * time.Second
	DefaultAttempts = 3
	DefaultDelay    = 50 * time.Millisecond
)

var ErrUnknownParameter = errors.New("ecu: unknown parameter")

// ParameterError is returned when the ECU refuses to answer a read.
type ParameterError struct {
	PID uint16
	Err error
}

func (e ParameterError) Error() string {
	return fmt.Sprintf("pid %04X: %v", e.PID, e.Err)
}

func (e ParameterError) Unwrap() error {
	return e.Err
}

// UnexpectedParameter is returned when the ECU answers with another
// parameter than the one requested.
type UnexpectedParameter struct {
	Expected uint16
	Actual   uint16
}

func (e UnexpectedParameter) Error() string {
	return fmt.Sprintf("unexpected parameter %04X (expected %04X)", e.Actual, e.Expected)
}

type settings struct {
	log      *zap.Logger
	timeout  time.Duration
	attempts uint
	delay    time.Duration
}

func newSettings(opts []Option) settings {
	s := settings{
		log:      zap.NewNop(),
		timeout:  DefaultTimeout,
		attempts: DefaultAttempts,
		delay:    DefaultDelay,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

type Option func(*settings)

func WithLogger(log *zap.Logger) Option {
	return func(s *settings) {
		s.log = log
	}
}

// WithTimeout sets how long a Proxy waits for each response.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithRetry sets the number of attempts of a read and the delay between
// them. Attempts below 1 are treated as 1.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(s *settings) {
		if attempts < 1 {
			attempts = 1
		}
		s.attempts = attempts
		s.delay = delay
	}
}
