package packet

import (
	"errors"
	"sort"

	"github.com/appnet-org/calpack/pkg/logging"
	"go.uber.org/zap"
)

type fieldDecl struct {
	name string
	spec *FieldSpec
}

// Builder collects a layout declaration. The first declaration error is kept
// and returned by Build; later calls are ignored.
//
//	udp := packet.NewBuilder("UDPHeader").
//		Field("source_port", packet.Int16()).
//		Field("dest_port", packet.Int16()).
//		MustBuild()
type Builder struct {
	name     string
	base     *Schema
	extended bool
	order    *ByteOrder
	aligned  *bool
	decls    []fieldDecl
	err      error
}

func NewBuilder(name string) *Builder {
	b := &Builder{name: name}
	if name == "" {
		b.err = fieldErrorf("", "", ErrInvalidFieldDeclaration, "layout name is empty")
	}
	return b
}

// Extends prepends the fields of base. Only one base is allowed.
func (b *Builder) Extends(base *Schema) *Builder {
	switch {
	case b.err != nil:
	case b.extended:
		b.err = fieldErrorf(b.name, "", ErrInvalidFieldDeclaration, "layout already extends %s", b.base.Name())
	case base == nil:
		b.err = fieldErrorf(b.name, "", ErrInvalidFieldDeclaration, "base layout is nil")
	default:
		b.base, b.extended = base, true
	}
	return b
}

// ByteOrder sets the byte order of multi-byte storage words. Layouts default
// to their base's order, or NativeEndian.
func (b *Builder) ByteOrder(o ByteOrder) *Builder {
	if o > BigEndian && b.err == nil {
		b.err = fieldErrorf(b.name, "", ErrInvalidFieldDeclaration, "unknown byte order %d", o)
	}
	b.order = &o
	return b
}

// Aligned lays fields out at their natural C alignment with tail padding,
// as a C compiler does without packing pragmas. Layouts default to packed.
func (b *Builder) Aligned() *Builder {
	t := true
	b.aligned = &t
	return b
}

// Packed disables alignment, overriding an aligned base.
func (b *Builder) Packed() *Builder {
	f := false
	b.aligned = &f
	return b
}

// Field appends one field. Fields keep the order of the calls.
func (b *Builder) Field(name string, spec *FieldSpec) *Builder {
	b.decls = append(b.decls, fieldDecl{name: name, spec: spec})
	return b
}

// Fields appends a set of fields ordered by the creation order of their specs.
func (b *Builder) Fields(fields map[string]*FieldSpec) *Builder {
	decls := make([]fieldDecl, 0, len(fields))
	for name, spec := range fields {
		decls = append(decls, fieldDecl{name: name, spec: spec})
	}
	sort.SliceStable(decls, func(i, j int) bool {
		si, sj := decls[i].spec, decls[j].spec
		if si == nil || sj == nil {
			return sj != nil
		}
		if si.seq != sj.seq {
			return si.seq < sj.seq
		}
		return decls[i].name < decls[j].name
	})
	b.decls = append(b.decls, decls...)
	return b
}

// MustBuild is Build for package-level layouts; it panics on error.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// Build computes the layout.
func (b *Builder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}

	s := &Schema{
		name:  b.name,
		base:  b.base,
		index: make(map[string]int),
	}
	decls := b.decls
	if b.base != nil {
		s.order, s.aligned = b.base.order, b.base.aligned
		inherited := make([]fieldDecl, 0, len(b.base.fields)+len(decls))
		for _, f := range b.base.fields {
			inherited = append(inherited, fieldDecl{name: f.Name, spec: f.Spec})
		}
		decls = append(inherited, decls...)
	}
	if b.order != nil {
		s.order = *b.order
	}
	if b.aligned != nil {
		s.aligned = *b.aligned
	}
	s.bo = s.order.binary()

	for _, d := range decls {
		if err := b.check(s, d); err != nil {
			return nil, err
		}
		s.index[d.name] = len(s.fields)
		s.fields = append(s.fields, FieldInfo{Name: d.name, Spec: d.spec})
	}

	first := 0
	if b.base != nil {
		first = len(b.base.fields)
		copy(s.fields, b.base.fields)
	}
	pack(s, first)

	logging.Debug("Built packet layout",
		zap.String("layout", s.name),
		zap.Int("fields", len(s.fields)),
		zap.Int("size", s.size),
		zap.Stringer("byteOrder", s.order),
		zap.Bool("aligned", s.aligned))
	return s, nil
}

func (b *Builder) check(s *Schema, d fieldDecl) error {
	if d.name == "" {
		return fieldErrorf(b.name, "", ErrInvalidFieldDeclaration, "field name is empty")
	}
	if _, dup := s.index[d.name]; dup {
		return fieldErrorf(b.name, d.name, ErrFieldAlreadyDeclared, "")
	}
	if d.spec == nil {
		return fieldErrorf(b.name, d.name, ErrInvalidFieldDeclaration, "spec is nil")
	}
	if err := d.spec.Validate(); err != nil {
		return withField(b.name, d.name, err)
	}
	if inner := nestedLayout(d.spec); inner != nil && inner.multiByte &&
		inner.order.Effective() != s.order.Effective() {
		return fieldErrorf(b.name, d.name, ErrInvalidFieldDeclaration,
			"nested layout %s is %s-endian, layout is %s-endian",
			inner.Name(), inner.order.Effective(), s.order.Effective())
	}
	return nil
}

func nestedLayout(f *FieldSpec) *Schema {
	for f.kind == KindArray {
		f = f.elem
	}
	if f.kind == KindPacket {
		return f.inner
	}
	return nil
}

// pack assigns offsets to s.fields[first:]. Bit-fields fill a shared storage
// word from the least significant bit up, in declaration order, while
// consecutive bit-fields declare the same word size and still fit; anything
// else closes the word. A base layout is a closed unit: its fields keep their
// offsets and new fields start at the base's size.
func pack(s *Schema, first int) {
	var (
		cursor   int // next free byte
		wordOff  int
		wordSize int // 0 when no word is open
		used     int // bits used in the open word
	)
	s.align = 1
	if s.base != nil {
		cursor, s.align, s.multiByte = s.base.size, s.base.align, s.base.multiByte
	}

	place := func(unit, align int) int {
		if s.aligned {
			if align > s.align {
				s.align = align
			}
			cursor = alignUp(cursor, align)
		}
		off := cursor
		cursor += unit
		return off
	}

	for i := first; i < len(s.fields); i++ {
		fi := &s.fields[i]
		spec := fi.Spec
		fi.Bits = spec.StorageBits()
		fi.WordBytes = spec.unitBits() / byteBits
		if spec.multiByte() {
			s.multiByte = true
		}

		if spec.IsBitField() {
			if wordSize == fi.WordBytes && used+spec.bits <= spec.word {
				fi.ByteOffset, fi.BitOffset = wordOff, used
				used += spec.bits
				continue
			}
			wordSize = fi.WordBytes
			wordOff = place(wordSize, spec.alignment())
			used = spec.bits
			fi.ByteOffset, fi.BitOffset = wordOff, 0
			continue
		}

		wordSize, used = 0, 0
		fi.ByteOffset = place(fi.WordBytes, spec.alignment())
	}

	if s.aligned {
		cursor = alignUp(cursor, s.align)
	}
	s.size = cursor
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// IsDeclarationError reports whether err was raised while building a layout.
func IsDeclarationError(err error) bool {
	return errors.Is(err, ErrInvalidFieldDeclaration) || errors.Is(err, ErrFieldAlreadyDeclared)
}
