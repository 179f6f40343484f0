package radio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	pkt "github.com/R3DPanda1/LWN-Sim-Node/simulator/resources/communication/packets"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/resources/communication/udp"
	"github.com/brocaar/lorawan"
)

// UDPConfig points the sink at a network server speaking the Semtech UDP
// packet forwarder protocol, posing as a single gateway.
type UDPConfig struct {
	BridgeAddress string  `json:"bridgeAddress"`
	GatewayEUI    string  `json:"gatewayEUI"`
	Frequency     float64 `json:"frequency"`
	DataRate      string  `json:"dataRate"`
	WaitAck       bool    `json:"waitAck"`
}

// UDPSink forwards uplinks as PUSH_DATA. With WaitAck a delivery only succeeds
// once the matching PUSH_ACK arrives.
type UDPSink struct {
	cfg  UDPConfig
	eui  lorawan.EUI64
	conn *net.UDPConn

	mu   sync.Mutex
	rxNb uint32
}

func NewUDPSink(cfg UDPConfig) (*UDPSink, error) {
	s := &UDPSink{cfg: cfg}
	if err := s.eui.UnmarshalText([]byte(cfg.GatewayEUI)); err != nil {
		return nil, fmt.Errorf("gateway eui: %w", err)
	}
	conn, err := udp.Dial(cfg.BridgeAddress)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func (s *UDPSink) createPacket(up Uplink, token uint16) ([]byte, error) {
	s.rxNb++
	rxpk := pkt.RXPK{
		Time: up.Time.UTC().Format(time.RFC3339Nano),
		Tmst: uint32(up.Time.UnixMicro()),
		Freq: s.cfg.Frequency,
		Stat: 1,
		Modu: "LORA",
		DatR: s.cfg.DataRate,
		CodR: "4/5",
		RSSI: -57,
		LSNR: 7,
		Size: uint16(len(up.PHYPayload)),
		Data: base64.StdEncoding.EncodeToString(up.PHYPayload),
	}
	stat := pkt.Stat{
		Time: pkt.GetTime(),
		RXNb: s.rxNb,
		RXOK: s.rxNb,
		RXFW: s.rxNb,
		ACKR: 100,
	}
	return pkt.CreatePacket(pkt.TypePushData, s.eui, stat, []pkt.RXPK{rxpk}, token)
}

func (s *UDPSink) Deliver(ctx context.Context, up Uplink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := pkt.NewToken()
	packet, err := s.createPacket(up, token)
	if err != nil {
		return err
	}
	if err := udp.Send(s.conn, packet); err != nil {
		return fmt.Errorf("unable to send data to %s: %w", s.cfg.BridgeAddress, err)
	}
	if !s.cfg.WaitAck {
		return nil
	}
	return s.waitAck(ctx, token)
}

func (s *UDPSink) waitAck(ctx context.Context, token uint16) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	err := udp.ReadUntil(s.conn, deadline, func(b []byte) bool {
		got, typ, err := pkt.ParseHeader(b)
		return err == nil && typ == pkt.TypePushAck && got == token
	})
	if errors.Is(err, udp.ErrReadTimeout) {
		return ErrNoAck
	}
	return err
}

func (s *UDPSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
