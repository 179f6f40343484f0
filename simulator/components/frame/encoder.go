package frame

import (
	"errors"
	"fmt"
	"log/slog"

	m "github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
)

var (
	// ErrUnsupportedField is returned when a flag bit has no field in the schema.
	ErrUnsupportedField = errors.New("flag has no field in this format")
	// ErrUnknownFormat is returned when a frame's format tag is not registered.
	ErrUnknownFormat = errors.New("unknown frame format")
	// ErrTrailingBytes is returned when a frame is longer than its flags imply.
	ErrTrailingBytes = errors.New("trailing bytes after last field")
)

// Encoder serializes measurements for one product schema.
type Encoder struct {
	Schema *Schema
	Logger *slog.Logger
}

func NewEncoder(schema *Schema, logger *slog.Logger) *Encoder {
	return &Encoder{Schema: schema, Logger: logger}
}

// Encode writes the format tag, the flags byte and then every field whose flag is
// set, in ascending bit order. Fields whose flag is clear are never read.
func (e *Encoder) Encode(flags m.Flags, data m.Measurement) ([]byte, error) {
	b := NewBuffer(e.Schema.Capacity)
	if err := e.encodeInto(b, flags, data); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (e *Encoder) encodeInto(b *Buffer, flags m.Flags, data m.Measurement) error {
	if !e.Schema.Supports(flags) {
		return fmt.Errorf("%w: %v in format 0x%02x", ErrUnsupportedField, flags&^e.Schema.Mask(), e.Schema.FormatTag)
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b.Begin()
	b.Put(e.Schema.FormatTag)
	b.Put(byte(flags))

	for _, i := range flags.Bits() {
		f := e.Schema.fields[i]
		logger.Info(f.describe(data), "component", "encoder", "field", f.Name)
		f.put(b, data)
	}

	if err := b.Err(); err != nil {
		return fmt.Errorf("format 0x%02x flags %v: %w", e.Schema.FormatTag, flags, err)
	}
	return nil
}
