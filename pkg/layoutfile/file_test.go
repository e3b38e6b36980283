package layoutfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/appnet-org/calpack/pkg/packet"
)

const pointsTOML = `
[[layout]]
name = "Point"
byte_order = "little"

  [[layout.field]]
  name = "x"
  type = "int16"

  [[layout.field]]
  name = "y"
  type = "int16"
  default = 7

[[layout]]
name = "Shape"
extends = "Point"

  [[layout.field]]
  name = "lo"
  type = "int16"
  bits = 4

  [[layout.field]]
  name = "hi"
  type = "int16"
  bits = 12
  signed = true

  [[layout.field]]
  name = "corners"
  type = "array"
  count = 2
  elem = { type = "packet", layout = "Point" }

  [[layout.field]]
  name = "scale"
  type = "double"
  default = 1.5

  [[layout.field]]
  name = "tags"
  type = "array"
  count = 3
  elem = { type = "int8" }
  default = [1, 2, 3]
`

const pointsYAML = `
layout:
  - name: Point
    byte_order: little
    field:
      - {name: x, type: int16}
      - {name: y, type: int16, default: 7}
  - name: Shape
    extends: Point
    field:
      - {name: lo, type: int16, bits: 4}
      - {name: hi, type: int16, bits: 12, signed: true}
      - name: corners
        type: array
        count: 2
        elem: {type: packet, layout: Point}
      - {name: scale, type: double, default: 1.5}
      - {name: tags, type: array, count: 3, elem: {type: int8}, default: [1, 2, 3]}
`

func checkShapes(t *testing.T, layouts []*packet.Schema) {
	t.Helper()
	require.Len(t, layouts, 2)
	point, shape := layouts[0], layouts[1]

	require.Equal(t, "Point", point.Name())
	require.Equal(t, packet.LittleEndian, point.ByteOrder())
	require.Equal(t, 4, point.Size())

	require.Same(t, point, shape.Base())
	require.Equal(t, []string{"x", "y", "lo", "hi", "corners", "scale", "tags"}, shape.FieldNames())
	require.Equal(t, 4+2+8+8+3, shape.Size())

	p := shape.MustNew(packet.Values{"x": 1, "lo": 0xa, "hi": -1})
	b := p.Bytes()
	require.Equal(t, []byte{1, 0, 7, 0, 0xfa, 0xff}, b[:6])
	require.Equal(t, []byte{1, 2, 3}, b[len(b)-3:])

	scale, err := p.Float("scale")
	require.NoError(t, err)
	require.Equal(t, 1.5, scale)

	corners, err := p.Array("corners")
	require.NoError(t, err)
	corner := corners.Index(1).(*packet.Packet)
	require.Same(t, point, corner.Schema())
	require.NoError(t, corner.Set("x", 0x0102))
	require.Equal(t, []byte{0x02, 0x01}, p.Bytes()[10:12])
}

func TestParse_TOML(t *testing.T) {
	layouts, err := Parse([]byte(pointsTOML), "toml", nil)
	require.NoError(t, err)
	checkShapes(t, layouts)
}

func TestParse_YAML(t *testing.T) {
	layouts, err := Parse([]byte(pointsYAML), "yaml", nil)
	require.NoError(t, err)
	checkShapes(t, layouts)
}

func TestParse_RegistersLayouts(t *testing.T) {
	reg := packet.NewRegistry()
	_, err := Parse([]byte(pointsTOML), "toml", reg)
	require.NoError(t, err)

	lt, ok := reg.LookupName("Shape")
	require.True(t, ok)
	require.Equal(t, packet.LayoutID(2), lt.TypeID)

	// A second file can build on the registered layouts.
	more := `
[[layout]]
name = "Framed"
  [[layout.field]]
  name = "shape"
  type = "packet"
  layout = "Shape"
`
	layouts, err := Parse([]byte(more), "toml", reg)
	require.NoError(t, err)
	require.Equal(t, lt.Schema.Size(), layouts[0].Size())

	// Loading the same file twice collides on names.
	_, err = Parse([]byte(pointsTOML), "toml", reg)
	require.ErrorIs(t, err, packet.ErrLayoutAlreadyExists)
}

func TestParse_FailedFileRegistersNothing(t *testing.T) {
	reg := packet.NewRegistry()
	doc := `
[[layout]]
name = "Good"
  [[layout.field]]
  name = "a"
  type = "int8"

[[layout]]
name = "Bad"
  [[layout.field]]
  name = "f"
  type = "int12"
`
	_, err := Parse([]byte(doc), "toml", reg)
	require.ErrorIs(t, err, ErrUnknownFieldType)
	require.Empty(t, reg.List())

	// A name clash with the registry also leaves it unchanged.
	_, err = reg.Register(packet.NewBuilder("Bad").MustBuild())
	require.NoError(t, err)
	clash := `
[[layout]]
name = "Fresh"

[[layout]]
name = "Bad"
`
	_, err = Parse([]byte(clash), "toml", reg)
	require.ErrorIs(t, err, packet.ErrLayoutAlreadyExists)
	require.Len(t, reg.List(), 1)
	_, ok := reg.LookupName("Fresh")
	require.False(t, ok)

	// Duplicate names within one file are rejected without a registry too.
	dup := "[[layout]]\nname = \"X\"\n\n[[layout]]\nname = \"X\"\n"
	_, err = Parse([]byte(dup), "toml", nil)
	require.ErrorIs(t, err, packet.ErrLayoutAlreadyExists)
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown type", `
[[layout]]
name = "Bad"
  [[layout.field]]
  name = "f"
  type = "int12"
`, ErrUnknownFieldType},
		{"unknown reference", `
[[layout]]
name = "Bad"
extends = "Missing"
`, ErrUnknownReference},
		{"bit-field array", `
[[layout]]
name = "Bad"
  [[layout.field]]
  name = "f"
  type = "array"
  count = 4
  elem = { type = "int8", bits = 4 }
`, packet.ErrInvalidFieldDeclaration},
		{"duplicate field", `
[[layout]]
name = "Bad"
  [[layout.field]]
  name = "f"
  type = "int8"
  [[layout.field]]
  name = "f"
  type = "int8"
`, packet.ErrFieldAlreadyDeclared},
		{"default out of range", `
[[layout]]
name = "Bad"
  [[layout.field]]
  name = "f"
  type = "int8"
  default = 256
`, packet.ErrInvalidFieldDeclaration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), "toml", nil)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := Parse([]byte(pointsTOML), "json", nil)
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Parse([]byte("[[layout]]\nname = \"X\"\nsize = 3\n"), "toml", nil)
	require.Error(t, err)

	_, err = Parse([]byte("layout:\n  - name: X\n    size: 3\n"), "yaml", nil)
	require.Error(t, err)

	_, err = Parse([]byte("[[layout]]\nname = \"X\"\nbyte_order = \"middle\"\n"), "toml", nil)
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shapes.yml")
	require.NoError(t, os.WriteFile(path, []byte(pointsYAML), 0o644))

	layouts, err := Load(path, nil)
	require.NoError(t, err)
	checkShapes(t, layouts)

	_, err = Load(filepath.Join(dir, "missing.toml"), nil)
	require.Error(t, err)

	require.Equal(t, "toml", FormatOf("a/b.TOML"))
	require.Equal(t, "", FormatOf("a/b.json"))
}
