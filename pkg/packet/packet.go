// Package packet declares binary packet layouts and manipulates packets of
// those layouts field by field.
//
// A layout is an ordered list of typed fields: integers of any width from 1
// to 64 bits on an 8, 16, 32 or 64-bit backing word, floats, doubles, x87
// long doubles, booleans, single-bit flags, fixed-size arrays and nested
// layouts. The Builder computes a byte-exact, C-compatible placement for
// every field once; each Packet is then a fixed-size byte buffer with named,
// validated accessors.
//
// Bit-fields sharing a storage word are placed from the least significant
// bit up in declaration order, and the byte order of the layout applies to
// whole storage words:
//
//	s := packet.NewBuilder("Pair").
//		Field("lo", packet.Int16(packet.Bits(4))).
//		Field("hi", packet.Int16(packet.Bits(12))).
//		ByteOrder(packet.LittleEndian).
//		MustBuild()
//	p, _ := s.New(packet.Values{"lo": 0xa, "hi": 0xbc})
//	p.Bytes() // [0xca 0x0b]
package packet

import (
	"bytes"
	"math"
	"strings"
)

// Values holds named field values for Schema.New.
type Values map[string]any

// Packet is one value of a layout. A packet returned for a nested field is a
// view: it shares storage with its parent, and writes through it change the
// parent. Packets are not safe for concurrent mutation.
type Packet struct {
	schema *Schema
	buf    []byte
}

// New creates a zeroed packet, applies every field default in declaration
// order and then the given values. Unknown names fail with ErrFieldNameUnknown.
func (s *Schema) New(vals ...Values) (*Packet, error) {
	p := &Packet{schema: s, buf: make([]byte, s.size)}
	for i := range s.fields {
		fi := &s.fields[i]
		if fi.Spec.def == nil {
			continue
		}
		if err := p.set(fi, fi.Spec.def); err != nil {
			return nil, err
		}
	}
	for _, vs := range vals {
		for name := range vs {
			if _, err := s.lookup(name); err != nil {
				return nil, err
			}
		}
		for _, name := range s.FieldNames() {
			v, ok := vs[name]
			if !ok {
				continue
			}
			if err := p.Set(name, v); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// MustNew is New for values known to be valid; it panics on error.
func (s *Schema) MustNew(vals ...Values) *Packet {
	p, err := s.New(vals...)
	if err != nil {
		panic(err)
	}
	return p
}

// FromBytes decodes a packet from a copy of b. The length must equal Size;
// no defaults are applied.
func (s *Schema) FromBytes(b []byte) (*Packet, error) {
	if err := s.checkLen(b); err != nil {
		return nil, err
	}
	return &Packet{schema: s, buf: append(make([]byte, 0, s.size), b...)}, nil
}

// Wrap returns a packet that uses b as its storage without copying. The
// caller must keep b alive and must not resize it.
func (s *Schema) Wrap(b []byte) (*Packet, error) {
	if err := s.checkLen(b); err != nil {
		return nil, err
	}
	return &Packet{schema: s, buf: b[:s.size:s.size]}, nil
}

func (s *Schema) checkLen(b []byte) error {
	if len(b) != s.size {
		return fieldErrorf(s.name, "", ErrSizeMismatch, "buffer is %d bytes, layout is %d", len(b), s.size)
	}
	return nil
}

func (p *Packet) Schema() *Schema { return p.schema }

// Len is the size of the packet in bytes.
func (p *Packet) Len() int { return len(p.buf) }

// Bytes returns a copy of the packet's storage.
func (p *Packet) Bytes() []byte {
	return append([]byte(nil), p.buf...)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *Packet) MarshalBinary() ([]byte, error) {
	return p.Bytes(), nil
}

// UnmarshalBinary replaces the packet's contents in place, so views into it
// observe the new bytes.
func (p *Packet) UnmarshalBinary(data []byte) error {
	if err := p.schema.checkLen(data); err != nil {
		return err
	}
	copy(p.buf, data)
	return nil
}

// Clone returns an independent copy of the packet.
func (p *Packet) Clone() *Packet {
	return &Packet{schema: p.schema, buf: p.Bytes()}
}

// Equal reports whether both packets have the same layout and identical
// bytes. Packets of different layouts are never equal.
func (p *Packet) Equal(other *Packet) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.schema == other.schema && bytes.Equal(p.buf, other.buf)
}

// Get returns the value of a field: int64 or uint64 for integers, float64
// for float kinds, bool for booleans and flags, ArrayValue for arrays and a view
// *Packet for nested layouts.
func (p *Packet) Get(name string) (any, error) {
	fi, err := p.schema.lookup(name)
	if err != nil {
		return nil, err
	}
	return p.get(fi), nil
}

func (p *Packet) get(fi *FieldInfo) any {
	return fi.Spec.load(p.buf[fi.ByteOffset:], fi.BitOffset, p.schema.bo)
}

// Set validates v for the field and writes it. On error the packet is unchanged.
func (p *Packet) Set(name string, v any) error {
	fi, err := p.schema.lookup(name)
	if err != nil {
		return err
	}
	return p.set(fi, v)
}

func (p *Packet) set(fi *FieldInfo, v any) error {
	e, err := fi.Spec.convertIn(v)
	if err != nil {
		return withField(p.schema.name, fi.Name, err)
	}
	fi.Spec.store(p.buf[fi.ByteOffset:], fi.BitOffset, p.schema.bo, e)
	return nil
}

// Int returns a signed integer field.
func (p *Packet) Int(name string) (int64, error) {
	v, err := p.typed(name, KindInt)
	if err != nil {
		return 0, err
	}
	if u, ok := v.(uint64); ok {
		if u > math.MaxInt64 {
			return 0, fieldErrorf(p.schema.name, name, ErrValueOutOfRange, "%d does not fit in int64", u)
		}
		return int64(u), nil
	}
	return v.(int64), nil
}

// Uint returns an unsigned integer field.
func (p *Packet) Uint(name string) (uint64, error) {
	v, err := p.typed(name, KindInt)
	if err != nil {
		return 0, err
	}
	if i, ok := v.(int64); ok {
		if i < 0 {
			return 0, fieldErrorf(p.schema.name, name, ErrValueOutOfRange, "%d is negative", i)
		}
		return uint64(i), nil
	}
	return v.(uint64), nil
}

// Float returns a float, double or long double field.
func (p *Packet) Float(name string) (float64, error) {
	v, err := p.typed(name, KindFloat, KindDouble, KindLongDouble)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Bool returns a bool or flag field.
func (p *Packet) Bool(name string) (bool, error) {
	v, err := p.typed(name, KindBool, KindFlag)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Array returns an array field.
func (p *Packet) Array(name string) (ArrayValue, error) {
	v, err := p.typed(name, KindArray)
	if err != nil {
		return ArrayValue{}, err
	}
	return v.(ArrayValue), nil
}

// Nested returns a view of a nested packet field.
func (p *Packet) Nested(name string) (*Packet, error) {
	v, err := p.typed(name, KindPacket)
	if err != nil {
		return nil, err
	}
	return v.(*Packet), nil
}

func (p *Packet) typed(name string, kinds ...Kind) (any, error) {
	fi, err := p.schema.lookup(name)
	if err != nil {
		return nil, err
	}
	for _, k := range kinds {
		if fi.Spec.kind == k {
			return p.get(fi), nil
		}
	}
	return nil, fieldErrorf(p.schema.name, name, ErrTypeMismatch, "field is %s", fi.Spec.kind)
}

// String renders the packet as Layout(field=value, ...) in declaration order.
func (p *Packet) String() string {
	var sb strings.Builder
	sb.WriteString(p.schema.name)
	sb.WriteByte('(')
	for i := range p.schema.fields {
		fi := &p.schema.fields[i]
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fi.Name)
		sb.WriteByte('=')
		sb.WriteString(formatValue(p.get(fi)))
	}
	sb.WriteByte(')')
	return sb.String()
}
