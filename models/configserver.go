package models

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/loop"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/radio"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/sensors"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/logging"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/scheduler"
)

// EventsConfig holds history retention settings for the event broker.
type EventsConfig struct {
	History int `json:"history"`
}

// JournalConfig selects the sqlite uplink journal.
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// NodeConfig describes the simulated node: which product it is, how its
// measurement loop behaves and which sensors it carries.
type NodeConfig struct {
	Product string            `json:"product"`
	Loop    loop.Config       `json:"loop"`
	Cadence scheduler.Config  `json:"cadence"`
	Sensors sensors.SimConfig `json:"sensors"`
	PollMs  uint32            `json:"pollMs"`
	Decoder string            `json:"decoder"` // codec name, defaults to Product
}

// ServerConfig holds the configuration for the server including address, ports, and other settings.
type ServerConfig struct {
	Address     string         `json:"address"`     // Address to bind to (e.g., "localhost")
	Port        int            `json:"port"`        // Port to bind to (default is 8000)
	MetricsPort int            `json:"metricsPort"` // Port to bind to for metrics (default is 8081)
	AutoStart   bool           `json:"autoStart"`   // Start the node when the server starts
	Verbose     bool           `json:"verbose"`     // Flag to enable verbose logging
	Logging     logging.Config `json:"logging"`
	Node        NodeConfig     `json:"node"`
	Radio       radio.Config   `json:"radio"`
	Journal     JournalConfig  `json:"journal"`
	Events      EventsConfig   `json:"events"`
}

// DefaultServerConfig is a Model 4928 node with all sensors fitted, logging its
// uplinks locally.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:     "0.0.0.0",
		Port:        8000,
		MetricsPort: 8081,
		AutoStart:   true,
		Logging:     logging.Config{Level: "info"},
		Node: NodeConfig{
			Product: "model4928",
			Loop:    loop.DefaultConfig(),
			Cadence: scheduler.DefaultConfig(),
			Sensors: sensors.SimConfig{
				Seed:     1,
				Vbat:     3.6,
				Env:      true,
				Light:    true,
				ProbeOne: true,
				ProbeTwo: true,
			},
			PollMs: 100,
		},
		Radio:   radio.DefaultConfig(),
		Journal: JournalConfig{Path: "journal.db"},
		Events:  EventsConfig{History: 100},
	}
}

// GetConfigFile loads the configuration from the specified file path on top of
// the defaults. Keys missing from the file keep their default value.
func GetConfigFile(path string) (*ServerConfig, error) {
	config := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	return config, nil
}
