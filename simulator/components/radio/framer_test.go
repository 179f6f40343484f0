package radio

import (
	"bytes"
	"testing"

	"github.com/brocaar/lorawan"
)

const testKey = "2b7e151628aed2a6abf7158809cf4f3c"

func testFramer(t *testing.T, confirmed bool) *Framer {
	t.Helper()
	f, err := NewFramer("26011f2a", testKey, testKey, 7, confirmed)
	if err != nil {
		t.Fatalf("NewFramer: %v", err)
	}
	return f
}

func TestFramerRoundTrip(t *testing.T) {
	f := testFramer(t, false)
	payload := []byte{0x2a, 0x05, 0x3a, 0x66, 0x2a}

	up, err := f.Frame(payload, 1)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if up.FCnt != 7 || f.FCnt() != 8 {
		t.Errorf("frame counter not advanced: uplink=%d framer=%d", up.FCnt, f.FCnt())
	}

	var key lorawan.AES128Key
	if err := key.UnmarshalText([]byte(testKey)); err != nil {
		t.Fatal(err)
	}
	got, mac, err := Open(up.PHYPayload, key, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("expected % x, got % x", payload, got)
	}
	if mac.FPort == nil || *mac.FPort != 1 {
		t.Errorf("unexpected fport %v", mac.FPort)
	}
	if mac.FHDR.DevAddr.String() != "26011f2a" {
		t.Errorf("unexpected dev addr %s", mac.FHDR.DevAddr)
	}
	if bytes.Contains(up.PHYPayload, payload) {
		t.Error("payload appears unencrypted in the PHYPayload")
	}
}

func TestFramerConfirmed(t *testing.T) {
	f := testFramer(t, true)
	up, err := f.Frame([]byte{1}, 1)
	if err != nil {
		t.Fatal(err)
	}

	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(up.PHYPayload); err != nil {
		t.Fatal(err)
	}
	if phy.MHDR.MType != lorawan.ConfirmedDataUp {
		t.Errorf("expected confirmed uplink, got %v", phy.MHDR.MType)
	}
}

func TestFramerBadMIC(t *testing.T) {
	f := testFramer(t, false)
	up, _ := f.Frame([]byte{1, 2, 3}, 1)
	up.PHYPayload[len(up.PHYPayload)-1] ^= 0xff

	var key lorawan.AES128Key
	key.UnmarshalText([]byte(testKey))
	if _, _, err := Open(up.PHYPayload, key, key); err == nil {
		t.Error("expected MIC failure")
	}
}

func TestNewFramerRejectsBadKeys(t *testing.T) {
	if _, err := NewFramer("zz", testKey, testKey, 0, false); err == nil {
		t.Error("expected dev addr error")
	}
	if _, err := NewFramer("26011f2a", "00", testKey, 0, false); err == nil {
		t.Error("expected key error")
	}
}
