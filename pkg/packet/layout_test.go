package packet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// ==================== Inheritance ====================

func TestBuilder_Extends(t *testing.T) {
	base := NewBuilder("TwoIntPkt").
		Field("field1", Int16()).
		Field("field2", Int16()).
		ByteOrder(BigEndian).
		MustBuild()
	child, err := NewBuilder("ThreeIntPkt").
		Extends(base).
		Field("field3", Int16()).
		Build()
	require.NoError(t, err)

	require.Equal(t, []string{"field1", "field2", "field3"}, child.FieldNames())
	require.Equal(t, BigEndian, child.ByteOrder())
	require.Same(t, base, child.Base())
	require.Equal(t, 6, child.Size())

	a := base.MustNew(Values{"field1": 1, "field2": 2})
	c := child.MustNew(Values{"field1": 1, "field2": 2})
	require.Equal(t, append(a.Bytes(), 0, 0), c.Bytes())

	// Field specs are shared, placements are recomputed per layout.
	fa, _ := base.Field("field2")
	fc, _ := child.Field("field2")
	require.Same(t, fa.Spec, fc.Spec)
	require.Equal(t, fa.ByteOffset, fc.ByteOffset)
}

func TestBuilder_ExtendsTwice(t *testing.T) {
	a := NewBuilder("A").Field("a", Int8()).MustBuild()
	b := NewBuilder("B").Field("b", Int8()).MustBuild()

	_, err := NewBuilder("C").Extends(a).Extends(b).Build()
	require.ErrorIs(t, err, ErrInvalidFieldDeclaration)

	_, err = NewBuilder("D").Extends(nil).Build()
	require.ErrorIs(t, err, ErrInvalidFieldDeclaration)
}

func TestBuilder_ExtendsRedeclaredField(t *testing.T) {
	base := NewBuilder("Base").Field("a", Int8()).MustBuild()
	_, err := NewBuilder("Child").Extends(base).Field("a", Int16()).Build()
	require.ErrorIs(t, err, ErrFieldAlreadyDeclared)
	require.True(t, IsDeclarationError(err))
}

func TestBuilder_ExtendsStartsAfterBase(t *testing.T) {
	t.Run("open bit-field word", func(t *testing.T) {
		a := NewBuilder("A").Field("x", Int8(Bits(4))).MustBuild()
		b := NewBuilder("B").Extends(a).Field("y", Int8(Bits(4))).MustBuild()
		require.Equal(t, 1, a.Size())
		require.Equal(t, 2, b.Size())

		y, _ := b.Field("y")
		require.Equal(t, 1, y.ByteOffset)
		require.Equal(t, 0, y.BitOffset)

		pa := a.MustNew(Values{"x": 0xa})
		pb := b.MustNew(Values{"x": 0xa})
		require.Equal(t, []byte{0x0a, 0x00}, pb.Bytes())
		require.Equal(t, append(pa.Bytes(), 0), pb.Bytes())
	})

	t.Run("aligned tail padding", func(t *testing.T) {
		a := NewBuilder("A").Field("i", Int32()).Field("c", Int8()).Aligned().MustBuild()
		b := NewBuilder("B").Extends(a).Field("d", Int8()).MustBuild()
		require.Equal(t, 8, a.Size())
		require.Equal(t, 12, b.Size())
		require.Equal(t, 4, b.Alignment())

		d, _ := b.Field("d")
		require.Equal(t, 8, d.ByteOffset)

		pb := b.MustNew(Values{"i": 7, "c": 9, "d": 1})
		pa, err := a.FromBytes(pb.Bytes()[:a.Size()])
		require.NoError(t, err)
		require.Equal(t, uint64(7), must(pa.Get("i")))
		require.Equal(t, uint64(9), must(pa.Get("c")))
	})
}

func TestBuilder_ExtendsOverridesOrder(t *testing.T) {
	base := NewBuilder("Base").Field("a", Int16()).ByteOrder(BigEndian).MustBuild()
	child := NewBuilder("Child").Extends(base).ByteOrder(LittleEndian).MustBuild()

	p := child.MustNew(Values{"a": 0x0102})
	require.Equal(t, []byte{0x02, 0x01}, p.Bytes())
}

// ==================== Declaration Errors ====================

func TestBuilder_DuplicateField(t *testing.T) {
	_, err := NewBuilder("Dup").Field("a", Int8()).Field("a", Int8()).Build()
	require.ErrorIs(t, err, ErrFieldAlreadyDeclared)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "Dup", fe.Layout)
	require.Equal(t, "a", fe.Field)
}

func TestBuilder_InvalidFieldParameters(t *testing.T) {
	cases := []struct {
		name string
		spec *FieldSpec
	}{
		{"zero bits", Int(Bits(0))},
		{"negative bits", Int(Bits(-1))},
		{"bits wider than word", Int64(Bits(65))},
		{"bits wider than byte", Int8(Bits(9))},
		{"odd word", IntN(12)},
		{"bits on float", Float(Bits(4))},
		{"signed bool", Bool(Signed())},
		{"nil nested", Nested(nil)},
		{"default of wrong type", Bool(Default(1))},
		{"default array length", Array(Int8(), 2, Default([]int{1}))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBuilder("Bad").Field("f", tc.spec).Build()
			require.ErrorIs(t, err, ErrInvalidFieldDeclaration)
		})
	}

	_, err := NewBuilder("").Field("f", Int()).Build()
	require.ErrorIs(t, err, ErrInvalidFieldDeclaration)

	_, err = NewBuilder("NoName").Field("", Int()).Build()
	require.ErrorIs(t, err, ErrInvalidFieldDeclaration)

	_, err = NewBuilder("NilSpec").Field("f", nil).Build()
	require.ErrorIs(t, err, ErrInvalidFieldDeclaration)

	_, err = NewBuilder("BadOrder").ByteOrder(ByteOrder(9)).Build()
	require.ErrorIs(t, err, ErrInvalidFieldDeclaration)
}

func TestBuilder_MustBuildPanics(t *testing.T) {
	require.Panics(t, func() {
		NewBuilder("Dup").Field("a", Int8()).Field("a", Int8()).MustBuild()
	})
}

// ==================== Placement ====================

func TestBuilder_FieldsOrderedByCreation(t *testing.T) {
	r := NewFieldRegistry()
	first := r.Int8()
	second := r.Int16()
	third := r.Flag()
	require.Less(t, first.Seq(), second.Seq())
	require.Less(t, second.Seq(), third.Seq())

	for i := 0; i < 10; i++ {
		s, err := NewBuilder("Mapped").Fields(map[string]*FieldSpec{
			"zz": first,
			"aa": second,
			"mm": third,
		}).Build()
		require.NoError(t, err)
		require.Equal(t, []string{"zz", "aa", "mm"}, s.FieldNames())
	}
}

func TestFieldRegistry_IndependentCounters(t *testing.T) {
	a := NewFieldRegistry()
	b := NewFieldRegistry()
	require.Equal(t, uint64(1), a.Int().Seq())
	require.Equal(t, uint64(1), b.Int().Seq())
	require.Equal(t, uint64(2), a.Double().Seq())
}

func TestBuilder_BitFieldWords(t *testing.T) {
	s, err := NewBuilder("Words").
		Field("a", Int8(Bits(5))).
		Field("b", Int8(Bits(4))).  // does not fit, opens a new byte
		Field("c", Int16(Bits(3))). // different word size, opens a new word
		Field("d", Int16(Bits(13))).
		Field("e", Int32()). // closes the word
		Field("f", Flag()).
		Field("g", Flag()).
		Build()
	require.NoError(t, err)
	require.Equal(t, 9, s.Size())

	want := map[string][2]int{
		"a": {0, 0},
		"b": {1, 0},
		"c": {2, 0},
		"d": {2, 3},
		"e": {4, 0},
		"f": {8, 0},
		"g": {8, 1},
	}
	for name, w := range want {
		fi, ok := s.Field(name)
		require.True(t, ok, name)
		require.Equal(t, w[0], fi.ByteOffset, "%s byte offset", name)
		require.Equal(t, w[1], fi.BitOffset, "%s bit offset", name)
	}
}

func TestBuilder_AlignedLayout(t *testing.T) {
	point := NewBuilder("Point").Field("x", Int8()).Field("y", Int8()).MustBuild()
	s, err := NewBuilder("ComplexPkt").
		Field("int_field", Int()).
		Field("float_field", Float()).
		Field("double_field", Double()).
		Field("long_double_field", LongDouble()).
		Field("point_field", Nested(point)).
		Field("bool_field", Bool()).
		Aligned().
		Build()
	require.NoError(t, err)
	require.True(t, s.Aligned())
	require.Equal(t, 16, s.Alignment())
	require.Equal(t, 48, s.Size())

	offsets := []int{0, 4, 8, 16, 32, 34}
	for i, fi := range s.Fields() {
		require.Equal(t, offsets[i], fi.ByteOffset, fi.Name)
	}

	p := s.MustNew(Values{
		"int_field":         1,
		"float_field":       0.5,
		"double_field":      -2.25,
		"long_double_field": 1e100,
		"point_field":       point.MustNew(Values{"x": 3, "y": 4}),
		"bool_field":        true,
	})
	q, err := s.FromBytes(p.Bytes())
	require.NoError(t, err)
	require.Equal(t, 1e100, must(q.Get("long_double_field")))
	require.Equal(t, 0.5, must(q.Get("float_field")))
	require.True(t, p.Equal(q))

	// Packing applies to the new fields only; the base keeps its padding.
	packed := NewBuilder("PackedComplex").Extends(s).Packed().Field("tail", Int32()).MustBuild()
	require.Equal(t, 48+4, packed.Size())
	require.Equal(t, 16, packed.Alignment())
	tail, _ := packed.Field("tail")
	require.Equal(t, 48, tail.ByteOffset)
}

func TestBuilder_AlignedPadding(t *testing.T) {
	s := NewBuilder("Padded").
		Field("a", Int8()).
		Field("b", Int32(Bits(4))).
		Field("c", Int32(Bits(4))).
		Field("d", Int16()).
		Aligned().
		MustBuild()
	require.Equal(t, 12, s.Size())

	b, _ := s.Field("b")
	c, _ := s.Field("c")
	d, _ := s.Field("d")
	require.Equal(t, 4, b.ByteOffset)
	require.Equal(t, 4, c.ByteOffset)
	require.Equal(t, 4, c.BitOffset)
	require.Equal(t, 8, d.ByteOffset)
}

func TestSchema_Describe(t *testing.T) {
	s := NewBuilder("Nibbles").
		Field("lo", Int16(Bits(4))).
		Field("hi", Int16(Bits(12), Signed())).
		Field("arr", Array(Int8(), 3)).
		ByteOrder(LittleEndian).
		MustBuild()
	require.Equal(t, "Nibbles{size=5 order=little lo:uint16:4@0.0 hi:int16:12@0.4 arr:uint8[3]@2}", s.String())

	fields := s.Fields()
	fields[0].Name = "mutated"
	require.Equal(t, "lo", s.FieldNames()[0])

	_, ok := s.Field("missing")
	require.False(t, ok)
}

func TestParseByteOrder(t *testing.T) {
	for in, want := range map[string]ByteOrder{
		"":        NativeEndian,
		"native":  NativeEndian,
		"little":  LittleEndian,
		"le":      LittleEndian,
		"big":     BigEndian,
		"network": BigEndian,
	} {
		got, err := ParseByteOrder(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseByteOrder("middle")
	require.Error(t, err)

	require.NotEqual(t, NativeEndian, NativeEndian.Effective())
	require.Equal(t, BigEndian, BigEndian.Effective())
	require.True(t, ByteOrderOverrideSupported)
}
