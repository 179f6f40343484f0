package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrOverflow is returned when a put would exceed the buffer capacity.
	ErrOverflow = errors.New("tx buffer overflow")
	// ErrShortFrame is returned when a frame ends before its flags say it should.
	ErrShortFrame = errors.New("frame too short")
)

// Buffer is a fixed-capacity, append-only uplink buffer. A put that does not fit
// writes nothing; the first failure is kept in Err.
type Buffer struct {
	buf      []byte
	capacity int
	err      error
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		buf:      make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Begin empties the buffer for reuse.
func (b *Buffer) Begin() {
	b.buf = b.buf[:0]
	b.err = nil
}

func (b *Buffer) reserve(n int) bool {
	if b.err != nil {
		return false
	}
	if len(b.buf)+n > b.capacity {
		b.err = fmt.Errorf("%w: need %d bytes, capacity %d", ErrOverflow, len(b.buf)+n, b.capacity)
		return false
	}
	return true
}

func (b *Buffer) Put(v byte) {
	if b.reserve(1) {
		b.buf = append(b.buf, v)
	}
}

func (b *Buffer) Put2u(v uint16) {
	if b.reserve(2) {
		b.buf = binary.BigEndian.AppendUint16(b.buf, v)
	}
}

func (b *Buffer) Put2s(v int16) {
	b.Put2u(uint16(v))
}

func (b *Buffer) Put3u(v uint32) {
	if b.reserve(3) {
		b.buf = append(b.buf, byte(v>>16), byte(v>>8), byte(v))
	}
}

// PutV encodes a voltage as signed 16-bit fixed point, 1/4096 V per count.
func (b *Buffer) PutV(volts float32) {
	b.Put2s(saturate16(float64(volts) * 4096))
}

// PutT encodes a temperature as signed 16-bit fixed point, 1/256 degree C per count.
func (b *Buffer) PutT(celsius float32) {
	b.Put2s(saturate16(float64(celsius) * 256))
}

// Put2uf encodes an already scaled value as unsigned 16 bits, saturated.
func (b *Buffer) Put2uf(v float32) {
	b.Put2u(saturateU16(float64(v)))
}

// PutP encodes pressure in Pa as unsigned 16 bits, 4 Pa per count.
func (b *Buffer) PutP(pascal float32) {
	b.Put2u(saturateU16(float64(pascal) / 4))
}

// PutRH encodes relative humidity in one byte, 100/256 % per count.
func (b *Buffer) PutRH(percent float32) {
	v := math.Round(float64(percent) * 256 / 100)
	switch {
	case v < 0 || math.IsNaN(v):
		v = 0
	case v > math.MaxUint8:
		v = math.MaxUint8
	}
	b.Put(byte(v))
}

// Put3f encodes a float in the 24-bit sflt24 format.
func (b *Buffer) Put3f(v float32) {
	b.Put3u(EncodeSflt24(float64(v)))
}

// PutBootCountLsb sends only the low byte of the boot counter.
func (b *Buffer) PutBootCountLsb(count uint32) {
	b.Put(byte(count & 0xff))
}

func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

func (b *Buffer) Len() int { return len(b.buf) }
func (b *Buffer) Cap() int { return b.capacity }
func (b *Buffer) Err() error { return b.err }

func saturate16(v float64) int16 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

func saturateU16(v float64) uint16 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

// reader walks a received frame; after the first short read every value is zero.
type reader struct {
	b   []byte
	i   int
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.i+n > len(r.b) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortFrame, n, r.i, len(r.b))
		return nil
	}
	p := r.b[r.i : r.i+n]
	r.i += n
	return p
}

func (r *reader) u8() uint8 {
	p := r.next(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (r *reader) u16() uint16 {
	p := r.next(2)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint16(p)
}

func (r *reader) u24() uint32 {
	p := r.next(3)
	if p == nil {
		return 0
	}
	return uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
}

func (r *reader) v() float32 { return float32(int16(r.u16())) / 4096 }
func (r *reader) t() float32 { return float32(int16(r.u16())) / 256 }
func (r *reader) rh2() float32 { return float32(r.u16()) * 100 / 65535 }
func (r *reader) p() float32 { return float32(r.u16()) * 4 }
func (r *reader) rh1() float32 { return float32(r.u8()) * 100 / 256 }
func (r *reader) f3() float32 { return float32(DecodeSflt24(r.u24())) }
