package packet

import "strconv"

// Kind is the closed set of field kinds a layout can hold.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindDouble
	KindLongDouble
	KindBool
	KindFlag
	KindArray
	KindPacket
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindInt:        "int",
	KindFloat:      "float",
	KindDouble:     "double",
	KindLongDouble: "longdouble",
	KindBool:       "bool",
	KindFlag:       "flag",
	KindArray:      "array",
	KindPacket:     "packet",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Native storage widths, in bits.
const (
	byteBits       = 8
	floatBits      = 32
	doubleBits     = 64
	longDoubleBits = 80  // x87 extended precision
	longDoubleSlot = 128 // storage reserved for a long double
	defaultIntBits = 32  // C unsigned int
)

func validIntWord(bits int) bool {
	switch bits {
	case 8, 16, 32, 64:
		return true
	}
	return false
}
