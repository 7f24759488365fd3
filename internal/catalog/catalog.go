// Package catalog decodes parameter groups described in a YAML file into
// physical values.
//
// Each signal of a message is a payload field. Its physical value is
// raw*scale + offset, where scale defaults to 1.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/pragmaticQt/j1939/payload"
)

//go:embed default.yaml
var defaultCatalog []byte

var (
	ErrDuplicatePGN  = errors.New("catalog: duplicate pgn")
	ErrUnknownSignal = errors.New("catalog: unknown signal")
)

type Signal struct {
	Name   string  `yaml:"name"`
	Bits   uint    `yaml:"bits"`
	Signed bool    `yaml:"signed"`
	Scale  float64 `yaml:"scale"`
	Offset float64 `yaml:"offset"`
	Unit   string  `yaml:"unit"`
}

// IsReserved reports whether the signal only reserves bits.
func (s Signal) IsReserved() bool {
	return s.Name == ""
}

// Physical converts a raw value read by payload.Layout.Int.
func (s Signal) Physical(raw int64) float64 {
	return float64(raw)*s.scale() + s.Offset
}

// Raw converts a physical value back into the nearest raw value.
func (s Signal) Raw(v float64) int64 {
	return int64(math.Round((v - s.Offset) / s.scale()))
}

func (s Signal) scale() float64 {
	if s.Scale == 0 {
		return 1
	}
	return s.Scale
}

type Message struct {
	Name    string   `yaml:"name"`
	PGN     uint32   `yaml:"pgn"`
	Signals []Signal `yaml:"signals"`

	layout *payload.Layout
}

// Layout returns the payload layout of the message.
func (m *Message) Layout() *payload.Layout {
	return m.layout
}

// Decode returns the physical value of every named signal.
func (m *Message) Decode(data []byte) (map[string]float64, error) {
	raw, err := m.layout.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}

	values := make(map[string]float64, len(m.Signals))
	for i, s := range m.Signals {
		if s.IsReserved() {
			continue
		}
		values[s.Name] = s.Physical(m.layout.Int(raw, i))
	}
	return values, nil
}

// Encode packs physical values into a payload. Missing signals are sent
// as zero raw value, unknown names are an error.
func (m *Message) Encode(values map[string]float64) ([]byte, error) {
	raw := make([]uint64, len(m.Signals))
	for name, v := range values {
		i := slices.IndexFunc(m.Signals, func(s Signal) bool { return s.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("%s: %q: %w", m.Name, name, ErrUnknownSignal)
		}
		raw[i] = uint64(m.Signals[i].Raw(v))
	}
	return m.layout.Pack(raw)
}

type Catalog struct {
	Messages []*Message `yaml:"messages"`

	byPGN map[uint32]*Message
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog document and builds the layout of every message.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c.byPGN = make(map[uint32]*Message, len(c.Messages))
	for _, m := range c.Messages {
		if _, ok := c.byPGN[m.PGN]; ok {
			return nil, fmt.Errorf("%s: %05X: %w", m.Name, m.PGN, ErrDuplicatePGN)
		}

		fields := make([]payload.Field, len(m.Signals))
		for i, s := range m.Signals {
			fields[i] = payload.Field{Name: s.Name, Bits: s.Bits, Signed: s.Signed}
		}
		layout, err := payload.NewLayout(fields...)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", m.Name, err)
		}
		m.layout = layout
		c.byPGN[m.PGN] = m
	}
	return &c, nil
}

// Lookup returns the message with the given parameter group number.
func (c *Catalog) Lookup(pgn uint32) (*Message, bool) {
	m, ok := c.byPGN[pgn]
	return m, ok
}

// ByName returns the message with the given name.
func (c *Catalog) ByName(name string) (*Message, bool) {
	i := slices.IndexFunc(c.Messages, func(m *Message) bool { return m.Name == name })
	if i < 0 {
		return nil, false
	}
	return c.Messages[i], true
}
