package frame

import (
	"fmt"
	"sort"

	m "github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
)

// FieldSpec describes how one flag bit travels on the wire.
type FieldSpec struct {
	Bit   int
	Name  string
	Width int

	put      func(*Buffer, m.Measurement)
	describe func(m.Measurement) string
	decode   func(*reader, *m.Measurement)
}

// Flag returns the flag bit of the field.
func (f *FieldSpec) Flag() m.Flags {
	return m.Bit(f.Bit)
}

// Schema is a closed, versioned frame layout identified by its format tag.
type Schema struct {
	Name      string
	FormatTag byte
	Capacity  int
	Port      uint8

	fields [8]*FieldSpec
}

// NewSchema builds a schema and panics if the fields could ever overflow the
// declared capacity. Schemas are package-level values, so this runs at init.
func NewSchema(name string, tag byte, capacity int, port uint8, fields ...*FieldSpec) *Schema {
	s := &Schema{Name: name, FormatTag: tag, Capacity: capacity, Port: port}
	for _, f := range fields {
		if f.Bit < 0 || f.Bit > 7 {
			panic(fmt.Sprintf("frame: schema %s: field %s has bit %d", name, f.Name, f.Bit))
		}
		if s.fields[f.Bit] != nil {
			panic(fmt.Sprintf("frame: schema %s: bit %d defined twice", name, f.Bit))
		}
		s.fields[f.Bit] = f
	}
	if s.MaxSize() > capacity {
		panic(fmt.Sprintf("frame: schema %s: max size %d exceeds capacity %d", name, s.MaxSize(), capacity))
	}
	return s
}

// Field returns the field on bit i, or nil.
func (s *Schema) Field(i int) *FieldSpec {
	if i < 0 || i > 7 {
		return nil
	}
	return s.fields[i]
}

// Fields returns the defined fields in wire order.
func (s *Schema) Fields() []*FieldSpec {
	out := make([]*FieldSpec, 0, 8)
	for _, f := range s.fields {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// Mask is the set of flags the schema can carry.
func (s *Schema) Mask() m.Flags {
	var mask m.Flags
	for _, f := range s.Fields() {
		mask |= f.Flag()
	}
	return mask
}

func (s *Schema) Supports(flags m.Flags) bool {
	return flags&^s.Mask() == 0
}

// Width is the encoded length of a frame carrying flags.
func (s *Schema) Width(flags m.Flags) (int, error) {
	if !s.Supports(flags) {
		return 0, fmt.Errorf("%w: %v in schema %s", ErrUnsupportedField, flags&^s.Mask(), s.Name)
	}
	n := 2
	for _, i := range flags.Bits() {
		n += s.fields[i].Width
	}
	return n, nil
}

// MaxSize is the frame length with every field present.
func (s *Schema) MaxSize() int {
	n := 2
	for _, f := range s.fields {
		if f != nil {
			n += f.Width
		}
	}
	return n
}

var (
	byName = map[string]*Schema{}
	byTag  = map[byte]*Schema{}
)

func register(s *Schema) *Schema {
	if _, ok := byTag[s.FormatTag]; ok {
		panic(fmt.Sprintf("frame: format 0x%02x registered twice", s.FormatTag))
	}
	byName[s.Name] = s
	byTag[s.FormatTag] = s
	return s
}

// Lookup finds a product schema by name.
func Lookup(name string) (*Schema, bool) {
	s, ok := byName[name]
	return s, ok
}

// LookupTag finds a product schema by its format tag.
func LookupTag(tag byte) (*Schema, bool) {
	s, ok := byTag[tag]
	return s, ok
}

// Products lists the registered schemas sorted by name.
func Products() []*Schema {
	out := make([]*Schema, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
