package packet

import (
	"fmt"
	"sync/atomic"
)

// FieldSpec is the immutable description of one field: its kind, width,
// signedness and default. Specs are created through a FieldRegistry (or the
// package-level constructors) and bound to a name by a Builder.
//
// A spec built from invalid parameters is still returned; the problem is
// recorded in Err and reported by Builder.Build.
type FieldSpec struct {
	kind   Kind
	bits   int // value width in bits
	word   int // declared backing word in bits
	signed bool
	def    any

	elem  *FieldSpec // KindArray
	count int        // KindArray
	inner *Schema    // KindPacket

	seq uint64
	err error
}

// FieldOption customizes a spec at construction time.
type FieldOption func(*FieldSpec)

// Bits narrows an integer field to n bits of its backing word, turning it
// into a bit-field when n is smaller than the word.
func Bits(n int) FieldOption {
	return func(f *FieldSpec) {
		if f.kind != KindInt {
			f.fail("Bits applies to integer fields only, not %s", f.kind)
			return
		}
		f.bits = n
	}
}

// Signed makes an integer field two's complement.
func Signed() FieldOption {
	return func(f *FieldSpec) {
		if f.kind != KindInt {
			f.fail("Signed applies to integer fields only, not %s", f.kind)
			return
		}
		f.signed = true
	}
}

// Default sets the value written into new packets before any override.
func Default(v any) FieldOption {
	return func(f *FieldSpec) {
		f.def = v
	}
}

func (f *FieldSpec) fail(format string, a ...any) {
	if f.err == nil {
		f.err = valueErrorf(ErrInvalidFieldDeclaration, format, a...)
	}
}

func (f *FieldSpec) Kind() Kind       { return f.kind }
func (f *FieldSpec) Bits() int        { return f.bits }
func (f *FieldSpec) WordBits() int    { return f.word }
func (f *FieldSpec) Signed() bool     { return f.signed }
func (f *FieldSpec) Default() any     { return f.def }
func (f *FieldSpec) Elem() *FieldSpec { return f.elem }
func (f *FieldSpec) Count() int       { return f.count }
func (f *FieldSpec) Layout() *Schema  { return f.inner }
func (f *FieldSpec) Seq() uint64      { return f.seq }
func (f *FieldSpec) Err() error       { return f.err }
func (f *FieldSpec) IsBitField() bool { return f.kind == KindFlag || f.kind == KindInt && f.bits < f.word }

// StorageBits is the number of bits the field occupies: the value width for
// integers and flags, the slot width for floats and booleans, and the full
// extent of arrays and nested packets.
func (f *FieldSpec) StorageBits() int {
	switch f.kind {
	case KindInt, KindFlag:
		return f.bits
	case KindFloat, KindDouble, KindLongDouble, KindBool:
		return f.word
	case KindArray:
		return f.elem.unitBits() * f.count
	case KindPacket:
		return f.inner.Size() * byteBits
	}
	return 0
}

// unitBits is the width of the byte-aligned storage unit holding the field.
func (f *FieldSpec) unitBits() int {
	switch f.kind {
	case KindInt, KindFlag:
		return f.word
	}
	return f.StorageBits()
}

// alignment is the natural C alignment of the field, in bytes.
func (f *FieldSpec) alignment() int {
	switch f.kind {
	case KindArray:
		return f.elem.alignment()
	case KindPacket:
		return f.inner.Alignment()
	}
	return f.unitBits() / byteBits
}

// multiByte reports whether any storage word of the field spans more than one byte.
func (f *FieldSpec) multiByte() bool {
	switch f.kind {
	case KindArray:
		return f.elem.multiByte()
	case KindPacket:
		return f.inner.multiByte
	}
	return f.unitBits() > byteBits
}

func (f *FieldSpec) String() string {
	switch f.kind {
	case KindInt:
		sign := "u"
		if f.signed {
			sign = ""
		}
		if f.bits < f.word {
			return fmt.Sprintf("%sint%d:%d", sign, f.word, f.bits)
		}
		return fmt.Sprintf("%sint%d", sign, f.word)
	case KindArray:
		return fmt.Sprintf("%s[%d]", f.elem, f.count)
	case KindPacket:
		return f.inner.Name()
	}
	return f.kind.String()
}

// Validate reports the first problem with the spec's parameters or default.
func (f *FieldSpec) Validate() error {
	if f.err != nil {
		return f.err
	}
	if f.def != nil && f.kind != KindPacket {
		if _, err := f.convertIn(f.def); err != nil {
			return valueErrorf(ErrInvalidFieldDeclaration, "default %v: %v", f.def, err)
		}
	}
	return nil
}

// FieldRegistry hands out field specs and owns the creation counter that
// orders them.
type FieldRegistry struct {
	seq atomic.Uint64
}

func NewFieldRegistry() *FieldRegistry {
	return &FieldRegistry{}
}

// DefaultFields backs the package-level constructors.
var DefaultFields = NewFieldRegistry()

func (r *FieldRegistry) newSpec(kind Kind, bits, word int, opts []FieldOption) *FieldSpec {
	f := &FieldSpec{
		kind: kind,
		bits: bits,
		word: word,
		seq:  r.seq.Add(1),
	}
	for _, opt := range opts {
		opt(f)
	}
	if kind == KindInt && (f.bits <= 0 || f.bits > f.word) {
		f.fail("bit width %d must be between 1 and %d", f.bits, f.word)
	}
	return f
}

// IntN declares an integer backed by a word of the given width (8, 16, 32 or 64 bits).
func (r *FieldRegistry) IntN(word int, opts ...FieldOption) *FieldSpec {
	f := r.newSpec(KindInt, word, word, opts)
	if !validIntWord(word) {
		f.err = nil
		f.fail("integer word must be 8, 16, 32 or 64 bits, got %d", word)
	}
	if f.def == nil {
		f.def = 0
	}
	return f
}

func (r *FieldRegistry) Int(opts ...FieldOption) *FieldSpec   { return r.IntN(defaultIntBits, opts...) }
func (r *FieldRegistry) Int8(opts ...FieldOption) *FieldSpec  { return r.IntN(8, opts...) }
func (r *FieldRegistry) Int16(opts ...FieldOption) *FieldSpec { return r.IntN(16, opts...) }
func (r *FieldRegistry) Int32(opts ...FieldOption) *FieldSpec { return r.IntN(32, opts...) }
func (r *FieldRegistry) Int64(opts ...FieldOption) *FieldSpec { return r.IntN(64, opts...) }

func (r *FieldRegistry) Float(opts ...FieldOption) *FieldSpec {
	return r.float(KindFloat, floatBits, floatBits, opts)
}

func (r *FieldRegistry) Double(opts ...FieldOption) *FieldSpec {
	return r.float(KindDouble, doubleBits, doubleBits, opts)
}

// LongDouble declares an x87 extended precision float in a 16-byte slot.
func (r *FieldRegistry) LongDouble(opts ...FieldOption) *FieldSpec {
	return r.float(KindLongDouble, longDoubleBits, longDoubleSlot, opts)
}

func (r *FieldRegistry) float(kind Kind, bits, word int, opts []FieldOption) *FieldSpec {
	f := r.newSpec(kind, bits, word, opts)
	if f.def == nil {
		f.def = 0.0
	}
	return f
}

// Bool declares a one-byte C bool.
func (r *FieldRegistry) Bool(opts ...FieldOption) *FieldSpec {
	f := r.newSpec(KindBool, byteBits, byteBits, opts)
	if f.def == nil {
		f.def = false
	}
	return f
}

// Flag declares a single bit on an 8-bit word.
func (r *FieldRegistry) Flag(opts ...FieldOption) *FieldSpec {
	f := r.newSpec(KindFlag, 1, byteBits, opts)
	if f.def == nil {
		f.def = false
	}
	return f
}

// Array declares count consecutive elements described by elem. Elements must
// be byte-aligned: bit-field integers and flags are rejected.
func (r *FieldRegistry) Array(elem *FieldSpec, count int, opts ...FieldOption) *FieldSpec {
	f := r.newSpec(KindArray, 0, 0, opts)
	f.elem = elem
	f.count = count
	switch {
	case elem == nil:
		f.fail("array element spec is nil")
	case elem.err != nil:
		f.fail("array element: %v", elem.err)
	case elem.IsBitField():
		f.fail("array elements must be byte-aligned, %s is a bit-field", elem)
	case count <= 0:
		f.fail("array length must be positive, got %d", count)
	}
	if f.err == nil {
		f.bits = f.StorageBits()
		f.word = elem.unitBits()
	}
	return f
}

// Nested declares a field holding a packet of the given layout.
func (r *FieldRegistry) Nested(s *Schema) *FieldSpec {
	f := r.newSpec(KindPacket, 0, 0, nil)
	f.inner = s
	if s == nil {
		f.fail("nested layout is nil")
		return f
	}
	f.bits = s.Size() * byteBits
	return f
}

func IntN(word int, opts ...FieldOption) *FieldSpec { return DefaultFields.IntN(word, opts...) }
func Int(opts ...FieldOption) *FieldSpec            { return DefaultFields.Int(opts...) }
func Int8(opts ...FieldOption) *FieldSpec           { return DefaultFields.Int8(opts...) }
func Int16(opts ...FieldOption) *FieldSpec          { return DefaultFields.Int16(opts...) }
func Int32(opts ...FieldOption) *FieldSpec          { return DefaultFields.Int32(opts...) }
func Int64(opts ...FieldOption) *FieldSpec          { return DefaultFields.Int64(opts...) }
func Float(opts ...FieldOption) *FieldSpec          { return DefaultFields.Float(opts...) }
func Double(opts ...FieldOption) *FieldSpec         { return DefaultFields.Double(opts...) }
func LongDouble(opts ...FieldOption) *FieldSpec     { return DefaultFields.LongDouble(opts...) }
func Bool(opts ...FieldOption) *FieldSpec           { return DefaultFields.Bool(opts...) }
func Flag(opts ...FieldOption) *FieldSpec           { return DefaultFields.Flag(opts...) }
func Nested(s *Schema) *FieldSpec                   { return DefaultFields.Nested(s) }

func Array(elem *FieldSpec, count int, opts ...FieldOption) *FieldSpec {
	return DefaultFields.Array(elem, count, opts...)
}
