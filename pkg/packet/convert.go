package packet

import (
	"encoding/binary"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// encoded is a value accepted by a field and ready to be stored.
type encoded struct {
	raw   uint64    // integers, booleans, flags, float32/float64 bit patterns
	f     float64   // long double
	buf   []byte    // nested packet contents
	elems []encoded // array elements
}

// convertIn validates v against the field kind and converts it to its
// storage form. Nothing is written.
func (f *FieldSpec) convertIn(v any) (encoded, error) {
	if p, ok := v.(*Packet); ok && f.kind != KindPacket {
		return encoded{}, valueErrorf(ErrTypeMismatch, "cannot store packet %s in %s field", p.schema.Name(), f.kind)
	}
	switch f.kind {
	case KindInt:
		return f.intIn(v)
	case KindFloat, KindDouble, KindLongDouble:
		return f.floatIn(v)
	case KindBool, KindFlag:
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || rv.Kind() != reflect.Bool {
			return encoded{}, valueErrorf(ErrTypeMismatch, "%s field needs a bool, got %T", f.kind, v)
		}
		if rv.Bool() {
			return encoded{raw: 1}, nil
		}
		return encoded{}, nil
	case KindArray:
		return f.arrayIn(v)
	case KindPacket:
		p, ok := v.(*Packet)
		if !ok || p == nil {
			return encoded{}, valueErrorf(ErrTypeMismatch, "field needs a %s packet, got %T", f.inner.Name(), v)
		}
		if p.schema != f.inner {
			return encoded{}, valueErrorf(ErrTypeMismatch, "field needs a %s packet, got %s", f.inner.Name(), p.schema.Name())
		}
		return encoded{buf: append([]byte(nil), p.buf...)}, nil
	}
	return encoded{}, valueErrorf(ErrInvalidFieldDeclaration, "unsupported field kind %s", f.kind)
}

func (f *FieldSpec) intIn(v any) (encoded, error) {
	rv := reflect.ValueOf(v)
	var (
		i        int64
		u        uint64
		unsigned bool
	)
	switch {
	case !rv.IsValid():
		return encoded{}, valueErrorf(ErrTypeMismatch, "integer field needs an integer, got nil")
	case rv.CanInt():
		i = rv.Int()
	case rv.CanUint() && rv.Kind() != reflect.Uintptr:
		u, unsigned = rv.Uint(), true
	default:
		return encoded{}, valueErrorf(ErrTypeMismatch, "integer field needs an integer, got %T", v)
	}

	if !f.signed {
		if !unsigned {
			if i < 0 {
				return encoded{}, valueErrorf(ErrTypeMismatch, "negative value %d for unsigned field", i)
			}
			u = uint64(i)
		}
		if u > mask(f.bits) {
			return encoded{}, valueErrorf(ErrValueOutOfRange, "%d does not fit in %d unsigned bits", u, f.bits)
		}
		return encoded{raw: u}, nil
	}

	lo, hi := -int64(1)<<uint(f.bits-1), int64(mask(f.bits-1))
	if unsigned {
		if u > uint64(hi) {
			return encoded{}, valueErrorf(ErrValueOutOfRange, "%d does not fit in %d signed bits", u, f.bits)
		}
		i = int64(u)
	}
	if i < lo || i > hi {
		return encoded{}, valueErrorf(ErrValueOutOfRange, "%d does not fit in %d signed bits", i, f.bits)
	}
	return encoded{raw: uint64(i) & mask(f.bits)}, nil
}

func (f *FieldSpec) floatIn(v any) (encoded, error) {
	rv := reflect.ValueOf(v)
	var x float64
	switch {
	case !rv.IsValid():
		return encoded{}, valueErrorf(ErrTypeMismatch, "%s field needs a number, got nil", f.kind)
	case rv.CanFloat():
		x = rv.Float()
	case rv.CanInt():
		x = float64(rv.Int())
	case rv.CanUint():
		x = float64(rv.Uint())
	default:
		return encoded{}, valueErrorf(ErrTypeMismatch, "%s field needs a number, got %T", f.kind, v)
	}
	switch f.kind {
	case KindFloat:
		if !math.IsInf(x, 0) && math.IsInf(float64(float32(x)), 0) {
			return encoded{}, valueErrorf(ErrValueOutOfRange, "%g overflows float32", x)
		}
		return encoded{raw: uint64(math.Float32bits(float32(x)))}, nil
	case KindDouble:
		return encoded{raw: math.Float64bits(x)}, nil
	}
	return encoded{f: x}, nil
}

func (f *FieldSpec) arrayIn(v any) (encoded, error) {
	var items []any
	if a, ok := v.(ArrayValue); ok {
		items = a.elems
	} else {
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return encoded{}, valueErrorf(ErrTypeMismatch, "array field needs a slice or array, got %T", v)
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}
	if len(items) != f.count {
		return encoded{}, valueErrorf(ErrSizeMismatch, "array needs %d elements, got %d", f.count, len(items))
	}

	elems := make([]encoded, len(items))
	for i, item := range items {
		e, err := f.elem.convertIn(item)
		if err != nil {
			return encoded{}, valueErrorf(unwrapSentinel(err), "element %d: %v", i, err)
		}
		elems[i] = e
	}
	return encoded{elems: elems}, nil
}

func unwrapSentinel(err error) error {
	if ve, ok := err.(*valueError); ok {
		return ve.err
	}
	return err
}

// store writes e into b, which starts at the field's storage unit.
func (f *FieldSpec) store(b []byte, shift int, bo binary.ByteOrder, e encoded) {
	switch f.kind {
	case KindInt, KindFlag:
		if f.IsBitField() {
			writeBits(b, f.word/byteBits, shift, f.bits, bo, e.raw)
			return
		}
		putWord(b, f.word/byteBits, bo, e.raw)
	case KindFloat, KindDouble:
		putWord(b, f.word/byteBits, bo, e.raw)
	case KindLongDouble:
		putLongDouble(b, bo, e.f)
	case KindBool:
		b[0] = byte(e.raw)
	case KindArray:
		size := f.elem.unitBits() / byteBits
		for i, el := range e.elems {
			f.elem.store(b[i*size:], 0, bo, el)
		}
	case KindPacket:
		copy(b[:f.inner.Size()], e.buf)
	}
}

// load reads the field's exposed value from b. Nested packets alias b.
func (f *FieldSpec) load(b []byte, shift int, bo binary.ByteOrder) any {
	switch f.kind {
	case KindInt:
		var raw uint64
		if f.IsBitField() {
			raw = readBits(b, f.word/byteBits, shift, f.bits, bo)
		} else {
			raw = getWord(b, f.word/byteBits, bo)
		}
		if f.signed {
			return signExtend(raw, f.bits)
		}
		return raw
	case KindFlag:
		return readBits(b, f.word/byteBits, shift, 1, bo) != 0
	case KindFloat:
		return float64(math.Float32frombits(uint32(getWord(b, 4, bo))))
	case KindDouble:
		return math.Float64frombits(getWord(b, 8, bo))
	case KindLongDouble:
		return longDouble(b, bo)
	case KindBool:
		return b[0] != 0
	case KindArray:
		size := f.elem.unitBits() / byteBits
		elems := make([]any, f.count)
		for i := range elems {
			elems[i] = f.elem.load(b[i*size:], 0, bo)
		}
		return ArrayValue{elems: elems}
	case KindPacket:
		n := f.inner.Size()
		return &Packet{schema: f.inner, buf: b[:n:n]}
	}
	return nil
}

// ArrayValue is the read-only value of an array field. Elements of nested
// packet arrays are live views into the owning packet.
type ArrayValue struct {
	elems []any
}

// NewArray builds an ArrayValue, mostly useful for tests and defaults.
func NewArray(elems ...any) ArrayValue {
	return ArrayValue{elems: append([]any(nil), elems...)}
}

func (a ArrayValue) Len() int { return len(a.elems) }

func (a ArrayValue) Index(i int) any { return a.elems[i] }

// Values returns a copy of the elements.
func (a ArrayValue) Values() []any {
	return append([]any(nil), a.elems...)
}

// Equal compares element by element; nested packets compare with Packet.Equal.
func (a ArrayValue) Equal(b ArrayValue) bool {
	if len(a.elems) != len(b.elems) {
		return false
	}
	for i := range a.elems {
		if !valuesEqual(a.elems[i], b.elems[i]) {
			return false
		}
	}
	return true
}

func (a ArrayValue) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, el := range a.elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatValue(el))
	}
	sb.WriteByte(']')
	return sb.String()
}

func valuesEqual(x, y any) bool {
	switch xv := x.(type) {
	case *Packet:
		yv, ok := y.(*Packet)
		return ok && xv.Equal(yv)
	case ArrayValue:
		yv, ok := y.(ArrayValue)
		return ok && xv.Equal(yv)
	}
	return x == y
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case *Packet:
		return x.String()
	case ArrayValue:
		return x.String()
	}
	return "?"
}
