package repositories

import (
	"context"
	"log/slog"

	"github.com/R3DPanda1/LWN-Sim-Node/codec"
	"github.com/R3DPanda1/LWN-Sim-Node/models"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/journal"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/events"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/util"
)

// SimulatorRepository is the interface that defines the methods that the simulator repository must implement.
type SimulatorRepository interface {
	GetInstance(*models.ServerConfig) error                   // Build the simulator from configuration
	Run() bool                                                // Run the simulator
	Stop() bool                                               // Stop the simulator for good
	Status() simulator.NodeStatus                             // Get the node status
	SetActive(bool) error                                     // Request activation or deactivation
	SetCadence(uint32, uint32) error                          // Set fast interval and cycle count
	GetMeasurement() measurement.Measurement                  // Last measurement snapshot
	GetLastFrame() string                                     // Last frame as hex
	Decode(string, string) (simulator.DecodeResult, error)    // Decode a hex frame with a named codec
	GetCodecs() []codec.CodecMetadata                         // Get all available decoders
	AddCodec(string, string) (codec.CodecMetadata, error)     // Add a custom decoder
	GetUplinks(context.Context, int) ([]journal.Entry, error) // Recent journal entries
	GetUplinkStats(context.Context) (journal.Stats, error)    // Journal totals
	GetEventBroker() *events.EventBroker                      // Event broker for live streams
	DevAddr() string                                          // Node device address
}

// simulatorRepository repository struct
type simulatorRepository struct {
	sim *simulator.Simulator
}

// NewSimulatorRepository create a new repository instance
func NewSimulatorRepository() SimulatorRepository {
	return &simulatorRepository{}
}

// --- Repository calls to Simulator, no need to comment them, they are self-explanatory ---
// Check the simulator methods to see what they do

func (s *simulatorRepository) GetInstance(cfg *models.ServerConfig) error {
	sim, err := simulator.GetInstance(cfg)
	if err != nil {
		return err
	}
	s.sim = sim
	return nil
}

// Run If the simulator is stopped, it starts it and returns True, otherwise returns False.
func (s *simulatorRepository) Run() bool {
	switch s.sim.Status().Simulator {
	case util.StateName(util.Running):
		slog.Warn("simulator already running", "component", "simulator")
		return false
	case util.StateName(util.Terminated):
		slog.Warn("simulator terminated, restart the process", "component", "simulator")
		return false
	default:
		s.sim.Run()
	}
	return true
}

// Stop If the simulator has not been stopped yet, it stops it and returns True, otherwise returns False.
func (s *simulatorRepository) Stop() bool {
	if s.sim.Status().Simulator == util.StateName(util.Terminated) {
		slog.Warn("simulator already stopped", "component", "simulator")
		return false
	}
	s.sim.Shutdown()
	return true
}

func (s *simulatorRepository) Status() simulator.NodeStatus {
	return s.sim.Status()
}

func (s *simulatorRepository) SetActive(enable bool) error {
	return s.sim.SetActive(enable)
}

func (s *simulatorRepository) SetCadence(intervalSec, fastCount uint32) error {
	return s.sim.SetCadence(intervalSec, fastCount)
}

func (s *simulatorRepository) GetMeasurement() measurement.Measurement {
	return s.sim.LastMeasurement()
}

func (s *simulatorRepository) GetLastFrame() string {
	return s.sim.LastFrame()
}

func (s *simulatorRepository) Decode(frameHex, codecName string) (simulator.DecodeResult, error) {
	return s.sim.Decode(frameHex, codecName)
}

func (s *simulatorRepository) GetCodecs() []codec.CodecMetadata {
	return s.sim.GetCodecs()
}

func (s *simulatorRepository) AddCodec(name, script string) (codec.CodecMetadata, error) {
	return s.sim.AddCodec(name, script)
}

func (s *simulatorRepository) GetUplinks(ctx context.Context, limit int) ([]journal.Entry, error) {
	return s.sim.Uplinks(ctx, limit)
}

func (s *simulatorRepository) GetUplinkStats(ctx context.Context) (journal.Stats, error) {
	return s.sim.UplinkStats(ctx)
}

func (s *simulatorRepository) GetEventBroker() *events.EventBroker {
	return s.sim.EventBroker
}

func (s *simulatorRepository) DevAddr() string {
	return s.sim.DevAddr()
}
