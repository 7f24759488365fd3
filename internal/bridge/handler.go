package bridge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pragmaticQt/j1939"
	"github.com/pragmaticQt/j1939/internal/catalog"
)

// Record is the JSON document published for every frame.
type Record struct {
	PGN      string             `json:"pgn"`
	Source   uint8              `json:"source"`
	Name     string             `json:"name,omitempty"`
	Signals  map[string]float64 `json:"signals,omitempty"`
	Data     string             `json:"data"`
	UnixTime string             `json:"unixtime"`
}

// A Handler converts frames into records and publishes them on
// <Prefix>/<pgn in hex>.
type Handler struct {
	Publisher Publisher
	Catalog   *catalog.Catalog
	Prefix    string

	// KnownOnly drops frames whose parameter group is not in the catalog.
	KnownOnly bool

	Log *zap.Logger
	Now func() time.Time
}

// Topic returns the topic of frames with the given PGN.
func (h *Handler) Topic(pgn uint32) string {
	return fmt.Sprintf("%s/%05X", h.Prefix, pgn)
}

// Record builds the record of frm. ok is false if the frame is dropped.
func (h *Handler) Record(frm j1939.Frame) (rec Record, ok bool, err error) {
	pgn := frm.BasePGN()
	rec = Record{
		PGN:      fmt.Sprintf("%05X", pgn),
		Source:   frm.SourceAddress(),
		Data:     hex.EncodeToString(frm.Payload()),
		UnixTime: unixTime(h.now()),
	}

	m, found := h.Catalog.Lookup(pgn)
	if !found {
		return rec, !h.KnownOnly, nil
	}
	rec.Name = m.Name
	rec.Signals, err = m.Decode(frm.Payload())
	if err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

// Handle publishes the record of frm.
func (h *Handler) Handle(frm j1939.Frame) error {
	if !frm.IsValid() {
		return j1939.ErrInvalidFrame
	}
	rec, ok, err := h.Record(frm)
	if err != nil || !ok {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return h.Publisher.Publish(h.Topic(frm.BasePGN()), data)
}

// HandleFrame is Handle for bus subscriptions. Errors are logged.
func (h *Handler) HandleFrame(frm j1939.Frame) {
	if err := h.Handle(frm); err != nil && h.Log != nil {
		h.Log.Warn("frame not forwarded", zap.Stringer("frame", frm), zap.Error(err))
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func unixTime(t time.Time) string {
	nanos := t.UnixNano()
	return fmt.Sprintf("%d.%06d", nanos/1e9, (nanos%1e9)/1e3)
}
