package radio

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialConfig addresses a UART LoRa modem driven by AT commands (REYAX RYLR896
// command set).
type SerialConfig struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baudRate"`
	Address  uint16 `json:"address"`
}

// SerialSink sends the PHYPayload as hex with AT+SEND and waits for +OK.
type SerialSink struct {
	mu      sync.Mutex
	port    io.ReadWriteCloser
	address uint16
	pending []byte
}

func OpenSerialSink(cfg SerialConfig) (*SerialSink, error) {
	mode := &serial.Mode{BaudRate: cfg.BaudRate, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, err
	}
	return newSerialSink(port, cfg.Address), nil
}

func newSerialSink(port io.ReadWriteCloser, address uint16) *SerialSink {
	return &SerialSink{port: port, address: address}
}

func (s *SerialSink) Deliver(ctx context.Context, up Uplink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := strings.ToUpper(hex.EncodeToString(up.PHYPayload))
	cmd := fmt.Sprintf("AT+SEND=%d,%d,%s\r\n", s.address, len(data), data)
	if _, err := io.WriteString(s.port, cmd); err != nil {
		return err
	}

	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		switch {
		case line == "+OK":
			return nil
		case strings.HasPrefix(line, "+ERR"):
			return fmt.Errorf("modem error: %s", line)
		}
		// unsolicited output such as +RCV or +READY
	}
}

// readLine returns the next CR/LF terminated line. A read that returns nothing
// means the port read timeout expired.
func (s *SerialSink) readLine(ctx context.Context) (string, error) {
	buf := make([]byte, 64)
	for {
		if i := strings.IndexAny(string(s.pending), "\r\n"); i >= 0 {
			line := strings.TrimSpace(string(s.pending[:i]))
			s.pending = s.pending[i+1:]
			if line == "" {
				continue
			}
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", ErrNoAck
		}
		n, err := s.port.Read(buf)
		s.pending = append(s.pending, buf[:n]...)
		if err != nil && err != io.EOF {
			return "", err
		}
		if n == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (s *SerialSink) Close() error {
	return s.port.Close()
}
