package frame

import (
	"fmt"

	m "github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
)

// Decoded is a parsed uplink frame.
type Decoded struct {
	Schema      *Schema
	Flags       m.Flags
	Measurement m.Measurement
}

// Decode parses a frame of any registered format.
func Decode(b []byte) (Decoded, error) {
	if len(b) < 2 {
		return Decoded{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	s, ok := LookupTag(b[0])
	if !ok {
		return Decoded{}, fmt.Errorf("%w: 0x%02x", ErrUnknownFormat, b[0])
	}
	return s.Decode(b)
}

// Decode parses a frame of this schema's format.
func (s *Schema) Decode(b []byte) (Decoded, error) {
	if len(b) < 2 {
		return Decoded{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	if b[0] != s.FormatTag {
		return Decoded{}, fmt.Errorf("%w: 0x%02x, want 0x%02x", ErrUnknownFormat, b[0], s.FormatTag)
	}
	flags := m.Flags(b[1])
	if !s.Supports(flags) {
		return Decoded{}, fmt.Errorf("%w: %v in format 0x%02x", ErrUnsupportedField, flags&^s.Mask(), s.FormatTag)
	}

	out := Decoded{Schema: s, Flags: flags}
	out.Measurement.Flags = flags
	r := &reader{b: b, i: 2}
	for _, i := range flags.Bits() {
		s.fields[i].decode(r, &out.Measurement)
	}
	if r.err != nil {
		return Decoded{}, r.err
	}
	if r.i != len(b) {
		return Decoded{}, fmt.Errorf("%w: %d extra", ErrTrailingBytes, len(b)-r.i)
	}
	return out, nil
}
