package udp

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestDialSendReadUntil(t *testing.T) {
	server := listen(t)
	conn, err := Dial(server.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := Send(conn, []byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	buf := make([]byte, 16)
	server.SetReadDeadline(time.Now().Add(time.Second))
	n, from, err := server.ReadFromUDP(buf)
	if err != nil || string(buf[:n]) != "ping" {
		t.Fatalf("server read %q, %v", buf[:n], err)
	}

	server.WriteToUDP([]byte("noise"), from)
	server.WriteToUDP([]byte("ack"), from)
	err = ReadUntil(conn, time.Now().Add(time.Second), func(b []byte) bool {
		return bytes.Equal(b, []byte("ack"))
	})
	if err != nil {
		t.Fatalf("ReadUntil: %v", err)
	}
}

func TestReadUntilTimeout(t *testing.T) {
	server := listen(t)
	conn, err := Dial(server.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	err = ReadUntil(conn, time.Now().Add(20*time.Millisecond), func([]byte) bool { return true })
	if err != ErrReadTimeout {
		t.Fatalf("expected ErrReadTimeout, got %v", err)
	}
}

func TestDialBadAddress(t *testing.T) {
	if _, err := Dial("not-an-address"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSendNilConn(t *testing.T) {
	if err := Send(nil, []byte{1}); err == nil {
		t.Fatal("expected error")
	}
}
