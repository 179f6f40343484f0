package frame

import "math"

// sflt24 layout: bit 23 sign, bits 22..16 exponent biased by 63, bits 15..0
// mantissa with the leading 1 implied unless the exponent is zero (denormal).
// Exponent 0x7f encodes infinity (mantissa 0) or NaN.
const (
	sflt24Sign     = 0x800000
	sflt24ExpMask  = 0x7f0000
	sflt24ManMask  = 0x00ffff
	sflt24Bias     = 63
	sflt24MaxExp   = 0x7f
	sflt24MaxValue = 0x7effff
)

// EncodeSflt24 converts v to the 24-bit wire representation, saturating at the
// largest finite value.
func EncodeSflt24(v float64) uint32 {
	var sign uint32
	if math.Signbit(v) {
		sign = sflt24Sign
		v = -v
	}
	switch {
	case math.IsNaN(v):
		return sflt24ExpMask | 0x8000
	case math.IsInf(v, 0):
		return sign | sflt24ExpMask
	case v == 0:
		return sign
	}

	frac, exp := math.Frexp(v) // v = frac * 2^exp, frac in [0.5, 1)
	e := exp - 1 + sflt24Bias
	if e >= sflt24MaxExp {
		return sign | sflt24MaxValue
	}
	if e <= 0 {
		m := math.Round(math.Ldexp(v, 16+sflt24Bias-1))
		if m > sflt24ManMask {
			return sign | 1<<16
		}
		return sign | uint32(m)
	}

	m := math.Round((frac*2 - 1) * 65536)
	if m > sflt24ManMask {
		m = 0
		e++
		if e >= sflt24MaxExp {
			return sign | sflt24MaxValue
		}
	}
	return sign | uint32(e)<<16 | uint32(m)
}

// DecodeSflt24 is the inverse of EncodeSflt24.
func DecodeSflt24(raw uint32) float64 {
	neg := raw&sflt24Sign != 0
	e := int(raw&sflt24ExpMask) >> 16
	m := float64(raw & sflt24ManMask)

	var v float64
	switch {
	case e == sflt24MaxExp:
		if m != 0 {
			return math.NaN()
		}
		v = math.Inf(1)
	case e != 0:
		v = math.Ldexp(1+m/65536, e-sflt24Bias)
	default:
		v = math.Ldexp(m/65536, 1-sflt24Bias)
	}
	if neg {
		return -v
	}
	return v
}
