// Package config loads the YAML configuration of the j1939ctl tool.
//
// A configuration file looks like
//
//	interface: can0
//	source_address: 0xF9
//	ecu_address: 0x00
//	timeout: 2s
//	attempts: 3
//	log_level: info
//	catalog: /etc/j1939/catalog.yaml
//	mqtt:
//	  broker: tcp://localhost:1883
//	  client_id: j1939ctl
//	  topic_prefix: j1939
//	parameters:
//	  1: 100
//	  2: 4711
//
// Missing keys keep their default values. Command line flags override the
// file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInterface   = "can0"
	DefaultTopicPrefix = "j1939"
	DefaultClientID    = "j1939ctl"
)

var ErrInvalid = errors.New("config: invalid")

type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type Config struct {
	Interface     string        `yaml:"interface"`
	SourceAddress uint8         `yaml:"source_address"`
	ECUAddress    uint8         `yaml:"ecu_address"`
	Timeout       time.Duration `yaml:"timeout"`
	Attempts      uint          `yaml:"attempts"`
	LogLevel      string        `yaml:"log_level"`
	Catalog       string        `yaml:"catalog"`
	MQTT          MQTT          `yaml:"mqtt"`

	// Parameters is the table answered by the virtual ECU.
	Parameters map[uint16]uint32 `yaml:"parameters"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Interface:     DefaultInterface,
		SourceAddress: 0xF9,
		ECUAddress:    0x00,
		Timeout:       2 * time.Second,
		Attempts:      3,
		MQTT: MQTT{
			ClientID:    DefaultClientID,
			TopicPrefix: DefaultTopicPrefix,
		},
	}
}

// Load reads the configuration from path. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values which cannot be used as given.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("%w: interface is empty", ErrInvalid)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout %v", ErrInvalid, c.Timeout)
	}
	if c.Attempts == 0 {
		return fmt.Errorf("%w: attempts must be at least 1", ErrInvalid)
	}
	if c.SourceAddress == c.ECUAddress {
		return fmt.Errorf("%w: source and ECU share address %02X", ErrInvalid, c.SourceAddress)
	}
	return nil
}
