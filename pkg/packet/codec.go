package packet

import (
	"encoding/binary"
	"fmt"
)

// ByteOrder is the byte order a layout applies to every multi-byte storage
// word. It never changes the order of bit-fields inside a word.
type ByteOrder uint8

const (
	NativeEndian ByteOrder = iota
	LittleEndian
	BigEndian
)

// ByteOrderOverrideSupported reports whether layouts may use a byte order
// other than the host's. It is always true here; callers porting code that
// checks the capability can rely on it.
const ByteOrderOverrideSupported = true

func (o ByteOrder) String() string {
	switch o {
	case NativeEndian:
		return "native"
	case LittleEndian:
		return "little"
	case BigEndian:
		return "big"
	}
	return fmt.Sprintf("ByteOrder(%d)", uint8(o))
}

// ParseByteOrder accepts the names produced by String.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch s {
	case "", "native":
		return NativeEndian, nil
	case "little", "le":
		return LittleEndian, nil
	case "big", "be", "network":
		return BigEndian, nil
	}
	return NativeEndian, fmt.Errorf("unknown byte order %q", s)
}

// Effective resolves NativeEndian to the host byte order.
func (o ByteOrder) Effective() ByteOrder {
	if o != NativeEndian {
		return o
	}
	if hostLittle {
		return LittleEndian
	}
	return BigEndian
}

func (o ByteOrder) binary() binary.ByteOrder {
	if o.Effective() == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

var hostLittle = func() bool {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	return b[0] == 1
}()

// getWord reads a storage word of size bytes (1, 2, 4 or 8) at the start of b.
func getWord(b []byte, size int, bo binary.ByteOrder) uint64 {
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(bo.Uint16(b))
	case 4:
		return uint64(bo.Uint32(b))
	case 8:
		return bo.Uint64(b)
	}
	panic(fmt.Sprintf("packet: invalid word size %d", size))
}

// putWord writes the low size bytes of v as one storage word.
func putWord(b []byte, size int, bo binary.ByteOrder, v uint64) {
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		bo.PutUint16(b, uint16(v))
	case 4:
		bo.PutUint32(b, uint32(v))
	case 8:
		bo.PutUint64(b, v)
	default:
		panic(fmt.Sprintf("packet: invalid word size %d", size))
	}
}

func mask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(bits) - 1
}

// readBits extracts a bits-wide value at shift from the word at the start of b.
func readBits(b []byte, size, shift, bits int, bo binary.ByteOrder) uint64 {
	return getWord(b, size, bo) >> uint(shift) & mask(bits)
}

// writeBits stores v into the bits-wide slot at shift, leaving every other
// bit of the word as it was.
func writeBits(b []byte, size, shift, bits int, bo binary.ByteOrder, v uint64) {
	m := mask(bits) << uint(shift)
	w := getWord(b, size, bo)
	w = w&^m | v<<uint(shift)&m
	putWord(b, size, bo, w)
}

// signExtend interprets the low bits of v as a two's complement number.
func signExtend(v uint64, bits int) int64 {
	if bits >= 64 {
		return int64(v)
	}
	shift := uint(64 - bits)
	return int64(v<<shift) >> shift
}
