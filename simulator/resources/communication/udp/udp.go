package udp

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrReadTimeout is returned by ReadUntil when the deadline passes without a match.
var ErrReadTimeout = errors.New("udp: read deadline exceeded")

const maxDatagram = 2048

// Dial resolves the bridge address and opens a connected UDP socket to it.
func Dial(bridgeAddress string) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", bridgeAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", bridgeAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", bridgeAddress, err)
	}
	return conn, nil
}

// Send writes one datagram. A short write is reported as an error.
func Send(conn *net.UDPConn, data []byte) error {
	if conn == nil {
		return net.ErrClosed
	}
	n, err := conn.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(data))
	}
	return nil
}

// ReadUntil reads datagrams until match accepts one or the deadline passes.
// Datagrams rejected by match are dropped.
func ReadUntil(conn *net.UDPConn, deadline time.Time, match func([]byte) bool) error {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, maxDatagram)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return ErrReadTimeout
			}
			return err
		}
		if match(buf[:n]) {
			return nil
		}
	}
}
