package radio

import (
	"fmt"
	"sync"

	"github.com/brocaar/lorawan"
)

// Framer builds LoRaWAN 1.0 ABP data uplinks and owns the uplink frame counter.
type Framer struct {
	mu        sync.Mutex
	devAddr   lorawan.DevAddr
	nwkSKey   lorawan.AES128Key
	appSKey   lorawan.AES128Key
	fCnt      uint32
	confirmed bool
}

func NewFramer(devAddr, nwkSKey, appSKey string, fCnt uint32, confirmed bool) (*Framer, error) {
	f := &Framer{fCnt: fCnt, confirmed: confirmed}
	if err := f.devAddr.UnmarshalText([]byte(devAddr)); err != nil {
		return nil, fmt.Errorf("dev addr: %w", err)
	}
	if err := f.nwkSKey.UnmarshalText([]byte(nwkSKey)); err != nil {
		return nil, fmt.Errorf("nwk s key: %w", err)
	}
	if err := f.appSKey.UnmarshalText([]byte(appSKey)); err != nil {
		return nil, fmt.Errorf("app s key: %w", err)
	}
	return f, nil
}

func (f *Framer) DevAddr() lorawan.DevAddr { return f.devAddr }

func (f *Framer) FCnt() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fCnt
}

// Frame wraps payload into an encrypted, signed PHYPayload. The frame counter
// advances on every call.
func (f *Framer) Frame(payload []byte, port uint8) (Uplink, error) {
	f.mu.Lock()
	fCnt := f.fCnt
	f.fCnt++
	f.mu.Unlock()

	mType := lorawan.UnconfirmedDataUp
	if f.confirmed {
		mType = lorawan.ConfirmedDataUp
	}

	fPort := port
	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: mType,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: &lorawan.MACPayload{
			FHDR: lorawan.FHDR{
				DevAddr: f.devAddr,
				FCnt:    fCnt,
			},
			FPort:      &fPort,
			FRMPayload: []lorawan.Payload{&lorawan.DataPayload{Bytes: append([]byte(nil), payload...)}},
		},
	}

	if err := phy.EncryptFRMPayload(f.appSKey); err != nil {
		return Uplink{}, fmt.Errorf("encrypt frm payload: %w", err)
	}
	if err := phy.SetUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, f.nwkSKey, f.nwkSKey); err != nil {
		return Uplink{}, fmt.Errorf("set mic: %w", err)
	}
	b, err := phy.MarshalBinary()
	if err != nil {
		return Uplink{}, fmt.Errorf("marshal phy payload: %w", err)
	}

	return Uplink{
		DevAddr:    f.devAddr.String(),
		FCnt:       fCnt,
		FPort:      port,
		Confirmed:  f.confirmed,
		Payload:    append([]byte(nil), payload...),
		PHYPayload: b,
	}, nil
}

// Open verifies the MIC of an uplink built by a Framer with the same keys and
// returns the decrypted payload.
func Open(phyPayload []byte, nwkSKey, appSKey lorawan.AES128Key) ([]byte, *lorawan.MACPayload, error) {
	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(phyPayload); err != nil {
		return nil, nil, err
	}
	ok, err := phy.ValidateUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, nwkSKey, nwkSKey)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("invalid mic")
	}
	if err := phy.DecryptFRMPayload(appSKey); err != nil {
		return nil, nil, err
	}
	mac, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected mac payload %T", phy.MACPayload)
	}
	if len(mac.FRMPayload) == 0 {
		return nil, mac, nil
	}
	data, ok := mac.FRMPayload[0].(*lorawan.DataPayload)
	if !ok {
		return nil, mac, fmt.Errorf("unexpected frm payload %T", mac.FRMPayload[0])
	}
	return data.Bytes, mac, nil
}
