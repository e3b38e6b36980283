package packet

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// FieldInfo is the computed placement of one field.
type FieldInfo struct {
	Name       string
	Spec       *FieldSpec
	ByteOffset int // offset of the storage unit holding the field
	BitOffset  int // offset of the value inside the storage word, from the least significant bit
	WordBytes  int // size of the storage unit
	Bits       int // storage width of the value
}

// Schema is the immutable result of a Builder: field order, offsets, total
// size and byte order. It is shared by every packet of the layout and is
// safe for concurrent use.
type Schema struct {
	name      string
	base      *Schema
	order     ByteOrder
	bo        binary.ByteOrder
	aligned   bool
	fields    []FieldInfo
	index     map[string]int
	size      int
	align     int
	multiByte bool
}

func (s *Schema) Name() string { return s.name }

// Size is the number of bytes of every packet of the layout.
func (s *Schema) Size() int { return s.size }

func (s *Schema) ByteOrder() ByteOrder { return s.order }

// Alignment is 1 for packed layouts and the largest member alignment otherwise.
func (s *Schema) Alignment() int { return s.align }

func (s *Schema) Aligned() bool { return s.aligned }

// Base returns the layout this one extends, or nil.
func (s *Schema) Base() *Schema { return s.base }

// FieldNames lists the field names in declaration order, inherited fields first.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the computed field placements.
func (s *Schema) Fields() []FieldInfo {
	return append([]FieldInfo(nil), s.fields...)
}

// Field looks up the placement of one field.
func (s *Schema) Field(name string) (FieldInfo, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldInfo{}, false
	}
	return s.fields[i], true
}

func (s *Schema) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s{size=%d order=%s", s.name, s.size, s.order)
	for _, f := range s.fields {
		fmt.Fprintf(&sb, " %s:%s@%d", f.Name, f.Spec, f.ByteOffset)
		if f.Spec.IsBitField() {
			fmt.Fprintf(&sb, ".%d", f.BitOffset)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

func (s *Schema) lookup(name string) (*FieldInfo, error) {
	i, ok := s.index[name]
	if !ok {
		return nil, fieldErrorf(s.name, name, ErrFieldNameUnknown, "layout has fields %v", s.FieldNames())
	}
	return &s.fields[i], nil
}
