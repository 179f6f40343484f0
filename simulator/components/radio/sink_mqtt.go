package radio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type MQTTConfig struct {
	Broker   string `json:"broker"`
	ClientID string `json:"clientId"`
	Username string `json:"username"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos"`
	Retained bool   `json:"retained"`
}

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	IsConnected() bool
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type mqttMessage struct {
	DevAddr    string    `json:"devAddr"`
	FCnt       uint32    `json:"fCnt"`
	FPort      uint8     `json:"fPort"`
	Confirmed  bool      `json:"confirmed"`
	Data       []byte    `json:"data"`
	PHYPayload []byte    `json:"phyPayload"`
	Time       time.Time `json:"time"`
}

// MQTTSink publishes every uplink as JSON. The delivery outcome is the publish
// token's outcome.
type MQTTSink struct {
	client publisher
	cfg    MQTTConfig
}

func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetWriteTimeout(5 * time.Second)
	opts.SetAutoReconnect(false)
	opts.SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	s := newMQTTSink(mqtt.NewClient(opts), cfg)
	if err := s.connect(10 * time.Second); err != nil {
		return nil, err
	}
	return s, nil
}

func newMQTTSink(client publisher, cfg MQTTConfig) *MQTTSink {
	return &MQTTSink{client: client, cfg: cfg}
}

func (m *MQTTSink) connect(timeout time.Duration) error {
	token := m.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("connect to %s: timed out", m.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", m.cfg.Broker, err)
	}
	return nil
}

func (m *MQTTSink) topic(devAddr string) string {
	if strings.Contains(m.cfg.Topic, "%s") {
		return fmt.Sprintf(m.cfg.Topic, devAddr)
	}
	return m.cfg.Topic
}

func (m *MQTTSink) Deliver(ctx context.Context, up Uplink) error {
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !m.client.IsConnected() {
		if err := m.connect(timeout); err != nil {
			return err
		}
	}

	b, err := json.Marshal(mqttMessage{
		DevAddr:    up.DevAddr,
		FCnt:       up.FCnt,
		FPort:      up.FPort,
		Confirmed:  up.Confirmed,
		Data:       up.Payload,
		PHYPayload: up.PHYPayload,
		Time:       up.Time,
	})
	if err != nil {
		return err
	}

	token := m.client.Publish(m.topic(up.DevAddr), m.cfg.QoS, m.cfg.Retained, b)
	if !token.WaitTimeout(timeout) {
		return ErrNoAck
	}
	return token.Error()
}

func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}
