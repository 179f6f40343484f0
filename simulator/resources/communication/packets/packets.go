// Package packets builds and parses Semtech UDP packet forwarder datagrams
// (protocol version 2).
package packets

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/brocaar/lorawan"
)

const ProtocolVersion = 0x02

const (
	TypePushData = 0x00
	TypePushAck  = 0x01
	TypePullData = 0x02
)

var (
	ErrShortPacket = errors.New("packet too short")
	ErrVersion     = errors.New("unsupported protocol version")
)

// RXPK is one received LoRa frame as reported by a gateway.
type RXPK struct {
	Time string  `json:"time,omitempty"`
	Tmst uint32  `json:"tmst"`
	Chan uint8   `json:"chan"`
	RFCh uint8   `json:"rfch"`
	Freq float64 `json:"freq"`
	Stat int8    `json:"stat"`
	Modu string  `json:"modu"`
	DatR string  `json:"datr"`
	CodR string  `json:"codr"`
	RSSI int16   `json:"rssi"`
	LSNR float32 `json:"lsnr"`
	Size uint16  `json:"size"`
	Data string  `json:"data"`
}

// Stat is the gateway status block.
type Stat struct {
	Time string  `json:"time"`
	Lati float64 `json:"lati,omitempty"`
	Long float64 `json:"long,omitempty"`
	Alti int32   `json:"alti,omitempty"`
	RXNb uint32  `json:"rxnb"`
	RXOK uint32  `json:"rxok"`
	RXFW uint32  `json:"rxfw"`
	ACKR float64 `json:"ackr"`
	DWNb uint32  `json:"dwnb"`
	TXNb uint32  `json:"txnb"`
}

type pushPayload struct {
	RXPK []RXPK `json:"rxpk,omitempty"`
	Stat *Stat  `json:"stat,omitempty"`
}

// GetTime formats now the way gateways report stat.time.
func GetTime() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05 MST")
}

// NewToken returns a random token for matching acknowledgements.
func NewToken() uint16 {
	return uint16(rand.Intn(1 << 16))
}

// CreatePacket builds a datagram of the given type. Stat is omitted when zero.
func CreatePacket(packetType byte, gatewayEUI lorawan.EUI64, stat Stat, rxpks []RXPK, token uint16) ([]byte, error) {
	header := make([]byte, 4, 12)
	header[0] = ProtocolVersion
	binary.BigEndian.PutUint16(header[1:3], token)
	header[3] = packetType
	if packetType == TypePushAck {
		return header, nil
	}
	header = append(header, gatewayEUI[:]...)

	if packetType != TypePushData {
		return header, nil
	}

	payload := pushPayload{RXPK: rxpks}
	if stat != (Stat{}) {
		payload.Stat = &stat
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// ParseHeader returns the token and type of a datagram.
func ParseHeader(b []byte) (token uint16, packetType byte, err error) {
	if len(b) < 4 {
		return 0, 0, ErrShortPacket
	}
	if b[0] != ProtocolVersion {
		return 0, 0, ErrVersion
	}
	return binary.BigEndian.Uint16(b[1:3]), b[3], nil
}

// ParsePushData extracts the gateway EUI and received frames of a PUSH_DATA.
func ParsePushData(b []byte) (lorawan.EUI64, []RXPK, error) {
	var eui lorawan.EUI64
	if len(b) < 12 {
		return eui, nil, ErrShortPacket
	}
	copy(eui[:], b[4:12])
	var payload pushPayload
	if err := json.Unmarshal(b[12:], &payload); err != nil {
		return eui, nil, err
	}
	return eui, payload.RXPK, nil
}
