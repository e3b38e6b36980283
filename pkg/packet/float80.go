package packet

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// Long doubles are stored as x87 80-bit extended precision values in a
// 16-byte slot: a 64-bit significand with an explicit integer bit, then a
// sign bit and a 15-bit exponent. The remaining six bytes are zero. The slot
// is treated as one 128-bit word for byte ordering.

const (
	f80Bias    = 16383
	f80ExpMask = 0x7fff
	f64Bias    = 1023
)

// float64ToF80 returns the significand and the sign/exponent half of x.
func float64ToF80(x float64) (mant uint64, se uint16) {
	b := math.Float64bits(x)
	if b>>63 != 0 {
		se = 0x8000
	}
	exp := int(b>>52) & 0x7ff
	frac := b & (1<<52 - 1)

	switch {
	case exp == 0 && frac == 0:
		return 0, se
	case exp == 0x7ff:
		// Inf keeps a zero fraction; NaN keeps its payload.
		return 1<<63 | frac<<11, se | f80ExpMask
	case exp == 0:
		// Subnormal doubles are normal in extended precision.
		lz := bits.LeadingZeros64(frac)
		mant = frac << uint(lz)
		e := 63 - 1074 - lz + f80Bias
		return mant, se | uint16(e)
	}
	mant = 1<<63 | frac<<11
	return mant, se | uint16(exp-f64Bias+f80Bias)
}

// f80ToFloat64 rounds an extended precision value to the nearest double.
func f80ToFloat64(mant uint64, se uint16) float64 {
	neg := se&0x8000 != 0
	exp := int(se & f80ExpMask)

	var x float64
	switch {
	case exp == 0 && mant == 0:
		x = 0
	case exp == f80ExpMask:
		if mant<<1 == 0 {
			x = math.Inf(1)
		} else {
			x = math.NaN()
		}
	default:
		x = math.Ldexp(float64(mant), exp-f80Bias-63)
	}
	if neg {
		x = math.Copysign(x, -1)
	}
	return x
}

// putLongDouble writes x into a 16-byte slot.
func putLongDouble(b []byte, bo binary.ByteOrder, x float64) {
	mant, se := float64ToF80(x)
	clear(b[:16])
	if bo == binary.BigEndian {
		binary.BigEndian.PutUint16(b[6:8], se)
		binary.BigEndian.PutUint64(b[8:16], mant)
		return
	}
	binary.LittleEndian.PutUint64(b[0:8], mant)
	binary.LittleEndian.PutUint16(b[8:10], se)
}

// longDouble reads the value stored in a 16-byte slot.
func longDouble(b []byte, bo binary.ByteOrder) float64 {
	if bo == binary.BigEndian {
		return f80ToFloat64(binary.BigEndian.Uint64(b[8:16]), binary.BigEndian.Uint16(b[6:8]))
	}
	return f80ToFloat64(binary.LittleEndian.Uint64(b[0:8]), binary.LittleEndian.Uint16(b[8:10]))
}
