package j1939

import (
	"errors"
	"fmt"
	"time"

	"github.com/FabianPetersen/can"
	"github.com/jpillora/maplock"
)

// Lock serializes requests to the same node. Keys are built with LockKey.
var Lock = maplock.New()

// LockKey returns the Lock key of a destination address.
func LockKey(address uint8) string {
	return fmt.Sprintf("j1939/%02X", address)
}

// Control bytes of the acknowledgement parameter group (PGN 0xE800).
const (
	AckPositive      uint8 = 0
	AckNegative      uint8 = 1
	AckAccessDenied  uint8 = 2
	AckCannotRespond uint8 = 3
)

// ErrInvalidFrame is returned when an invalid frame is about to be sent.
var ErrInvalidFrame = errors.New("j1939: invalid frame")

func GetAckText(control uint8) string {
	switch control {
	case AckPositive:
		return "positive acknowledgement"
	case AckNegative:
		return "negative acknowledgement"
	case AckAccessDenied:
		return "access denied"
	case AckCannotRespond:
		return "cannot respond"
	}
	return "unknown acknowledgement"
}

// Nack is returned when a node answers a request with a negative
// acknowledgement.
type Nack struct {
	Control uint8
	PGN     uint32
}

func (e Nack) Error() string {
	return fmt.Sprintf("pgn %05X: %s", e.PGN, GetAckText(e.Control))
}

type UnexpectedGroupFunction struct {
	Expected uint8
	Actual   uint8
}

func (e UnexpectedGroupFunction) Error() string {
	return fmt.Sprintf("unexpected group function %X (expected %X)", e.Actual, e.Expected)
}

type UnexpectedResponseLength struct {
	Expected int
	Actual   int
}

func (e UnexpectedResponseLength) Error() string {
	return fmt.Sprintf("unexpected response length %d (expected %d)", e.Actual, e.Expected)
}

// A Request is a frame together with the identifier of the expected
// response.
type Request struct {
	Frame      Frame
	ResponseID uint32
}

// NewRequest returns a request which waits for a frame with the 29-bit
// identifier responseID.
func NewRequest(frame Frame, responseID uint32) *Request {
	return &Request{Frame: frame, ResponseID: responseID & MaskIDEff}
}

// A Response is the frame received for a Request.
type Response struct {
	Frame   Frame
	Request *Request
}

// A Client handles message communication by sending a request
// and waiting for the response.
type Client struct {
	Bus     *can.Bus
	Timeout time.Duration
}

// Do sends a request and waits for a response.
// If the response frame doesn't arrive on time, an error is returned.
func (c *Client) Do(req *Request) (*Response, error) {
	return c.DoMinDuration(req, 10*time.Millisecond)
}

// DoMinDuration sends a request and waits for a response.
// If the response frame doesn't arrive on time, an error is returned.
func (c *Client) DoMinDuration(req *Request, min time.Duration) (*Response, error) {
	if !req.Frame.IsValid() {
		return nil, ErrInvalidFrame
	}

	rch := can.Wait(c.Bus, req.ResponseID|MaskEff, c.Timeout)

	if err := c.Bus.PublishMinDuration(req.Frame.CANFrame(), min); err != nil {
		return nil, err
	}

	resp := <-rch

	return &Response{J1939Frame(resp.Frame), req}, resp.Err
}
