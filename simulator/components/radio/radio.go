// Package radio carries encoded telemetry frames off the node. Frames are wrapped
// in a LoRaWAN ABP data uplink and handed to a Sink on a worker goroutine;
// the sender learns the outcome through a completion callback.
package radio

import (
	"context"
	"errors"
	"time"
)

// Transmitter accepts a frame for transmission. done is called exactly once,
// possibly on another goroutine, with the outcome.
type Transmitter interface {
	Send(frame []byte, port uint8, done func(ok bool))
}

// Uplink is one framed transmission handed to a sink.
type Uplink struct {
	DevAddr    string    `json:"devAddr"`
	FCnt       uint32    `json:"fCnt"`
	FPort      uint8     `json:"fPort"`
	Confirmed  bool      `json:"confirmed"`
	Payload    []byte    `json:"payload"`
	PHYPayload []byte    `json:"phyPayload"`
	Time       time.Time `json:"time"`
}

// Sink delivers a framed uplink. A nil error counts as a successful transmission.
type Sink interface {
	Deliver(ctx context.Context, up Uplink) error
	Close() error
}

var (
	ErrQueueFull = errors.New("radio queue full, frame dropped")
	ErrStopped   = errors.New("radio stopped")
	ErrNoAck     = errors.New("no acknowledgement received")
)

const (
	SinkLog    = "log"
	SinkUDP    = "udp"
	SinkMQTT   = "mqtt"
	SinkSerial = "serial"
)

// Config selects and parameterizes the sink and the LoRaWAN session.
type Config struct {
	Sink      string `json:"sink"`
	DevAddr   string `json:"devAddr"`
	NwkSKey   string `json:"nwkSKey"`
	AppSKey   string `json:"appSKey"`
	FCnt      uint32 `json:"fCnt"`
	Confirmed bool   `json:"confirmed"`
	QueueSize int    `json:"queueSize"`
	TimeoutMs uint32 `json:"timeoutMs"`

	UDP    UDPConfig    `json:"udp"`
	MQTT   MQTTConfig   `json:"mqtt"`
	Serial SerialConfig `json:"serial"`
}

func DefaultConfig() Config {
	return Config{
		Sink:      SinkLog,
		DevAddr:   "26011f2a",
		NwkSKey:   "2b7e151628aed2a6abf7158809cf4f3c",
		AppSKey:   "2b7e151628aed2a6abf7158809cf4f3c",
		QueueSize: 4,
		TimeoutMs: 5000,
		UDP: UDPConfig{
			BridgeAddress: "127.0.0.1:1700",
			GatewayEUI:    "0102030405060708",
			Frequency:     868.1,
			DataRate:      "SF7BW125",
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://127.0.0.1:1883",
			ClientID: "lwn-sim-node",
			Topic:    "lwnnode/%s/up",
			QoS:      1,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 115200,
			Address:  0,
		},
	}
}

// NewSink opens the sink named in cfg.
func NewSink(cfg Config) (Sink, error) {
	switch cfg.Sink {
	case "", SinkLog:
		return NewLogSink(nil), nil
	case SinkUDP:
		return NewUDPSink(cfg.UDP)
	case SinkMQTT:
		return NewMQTTSink(cfg.MQTT)
	case SinkSerial:
		return OpenSerialSink(cfg.Serial)
	default:
		return nil, errors.New("unknown radio sink: " + cfg.Sink)
	}
}
