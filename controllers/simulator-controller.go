package controllers

import (
	"context"

	"github.com/R3DPanda1/LWN-Sim-Node/codec"
	"github.com/R3DPanda1/LWN-Sim-Node/models"
	repo "github.com/R3DPanda1/LWN-Sim-Node/repositories"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/journal"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/events"
)

const (
	defaultUplinkLimit = 50
	maxUplinkLimit     = 1000
)

// SimulatorController is the interface that defines the methods that the simulator controller must implement.
type SimulatorController interface {
	GetInstance(*models.ServerConfig) error                   // Build the simulator
	Run() bool                                                // Run the simulator
	Stop() bool                                               // Stop the simulator for good
	Status() simulator.NodeStatus                             // Get the node status
	SetActive(bool) error                                     // Request activation or deactivation
	SetCadence(uint32, uint32) error                          // Set fast interval and cycle count
	GetMeasurement() measurement.Measurement                  // Last measurement snapshot
	GetLastFrame() string                                     // Last frame as hex
	Decode(string, string) (simulator.DecodeResult, error)    // Decode a hex frame
	GetCodecs() []codec.CodecMetadata                         // Get all available decoders
	AddCodec(string, string) (codec.CodecMetadata, error)     // Add a custom decoder
	GetUplinks(context.Context, int) ([]journal.Entry, error) // Recent journal entries
	GetUplinkStats(context.Context) (journal.Stats, error)    // Journal totals

	// Event broker
	GetEventBroker() *events.EventBroker
	DevAddr() string
}

// simulatorController controller struct
type simulatorController struct {
	repo repo.SimulatorRepository
}

// NewSimulatorController create a new controller instance with the provided repository
func NewSimulatorController(repo repo.SimulatorRepository) SimulatorController {
	return &simulatorController{
		repo: repo,
	}
}

// --- Controller calls to Repository, no need to comment them, they are self-explanatory ---
// Check the repository methods to see what they do

func (c *simulatorController) GetInstance(cfg *models.ServerConfig) error {
	return c.repo.GetInstance(cfg)
}

func (c *simulatorController) Run() bool {
	return c.repo.Run()
}

func (c *simulatorController) Stop() bool {
	return c.repo.Stop()
}

func (c *simulatorController) Status() simulator.NodeStatus {
	return c.repo.Status()
}

func (c *simulatorController) SetActive(enable bool) error {
	return c.repo.SetActive(enable)
}

func (c *simulatorController) SetCadence(intervalSec, fastCount uint32) error {
	return c.repo.SetCadence(intervalSec, fastCount)
}

func (c *simulatorController) GetMeasurement() measurement.Measurement {
	return c.repo.GetMeasurement()
}

func (c *simulatorController) GetLastFrame() string {
	return c.repo.GetLastFrame()
}

func (c *simulatorController) Decode(frameHex, codecName string) (simulator.DecodeResult, error) {
	return c.repo.Decode(frameHex, codecName)
}

func (c *simulatorController) GetCodecs() []codec.CodecMetadata {
	return c.repo.GetCodecs()
}

func (c *simulatorController) AddCodec(name, script string) (codec.CodecMetadata, error) {
	return c.repo.AddCodec(name, script)
}

// GetUplinks clamps limit to [1, maxUplinkLimit]; zero or less means the default page.
func (c *simulatorController) GetUplinks(ctx context.Context, limit int) ([]journal.Entry, error) {
	switch {
	case limit <= 0:
		limit = defaultUplinkLimit
	case limit > maxUplinkLimit:
		limit = maxUplinkLimit
	}
	return c.repo.GetUplinks(ctx, limit)
}

func (c *simulatorController) GetUplinkStats(ctx context.Context) (journal.Stats, error) {
	return c.repo.GetUplinkStats(ctx)
}

func (c *simulatorController) GetEventBroker() *events.EventBroker {
	return c.repo.GetEventBroker()
}

func (c *simulatorController) DevAddr() string {
	return c.repo.DevAddr()
}
