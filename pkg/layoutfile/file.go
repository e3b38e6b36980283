// Package layoutfile compiles packet layouts declared in TOML or YAML files.
//
// A file holds a list of layouts, each with an ordered list of fields:
//
//	[[layout]]
//	name = "Point"
//	byte_order = "big"
//
//	[[layout.field]]
//	name = "x"
//	type = "int16"
//
//	[[layout.field]]
//	name = "flags"
//	type = "int8"
//	bits = 3
//
// Layouts may extend or nest layouts declared earlier in the same file or
// already present in the registry the file is compiled against.
package layoutfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/appnet-org/calpack/pkg/logging"
	"github.com/appnet-org/calpack/pkg/packet"
)

// Errors
var (
	ErrUnknownFormat    = errors.New("unknown layout file format")
	ErrUnknownFieldType = errors.New("unknown field type")
	ErrUnknownReference = errors.New("unknown layout reference")
)

// File is the decoded form of a layout file.
type File struct {
	Layouts []Layout `toml:"layout" yaml:"layout"`
}

type Layout struct {
	Name      string  `toml:"name" yaml:"name"`
	ByteOrder string  `toml:"byte_order" yaml:"byte_order"` // native, little or big
	Aligned   bool    `toml:"aligned" yaml:"aligned"`
	Extends   string  `toml:"extends" yaml:"extends"`
	Fields    []Field `toml:"field" yaml:"field"`
}

type Field struct {
	Name    string `toml:"name" yaml:"name"`
	Type    string `toml:"type" yaml:"type"`
	Bits    int    `toml:"bits" yaml:"bits"`
	Signed  bool   `toml:"signed" yaml:"signed"`
	Default any    `toml:"default" yaml:"default"`
	Count   int    `toml:"count" yaml:"count"`   // array length
	Elem    *Elem  `toml:"elem" yaml:"elem"`     // array element
	Layout  string `toml:"layout" yaml:"layout"` // nested layout name
}

// Elem describes the element of an array field.
type Elem struct {
	Type   string `toml:"type" yaml:"type"`
	Bits   int    `toml:"bits" yaml:"bits"`
	Signed bool   `toml:"signed" yaml:"signed"`
	Layout string `toml:"layout" yaml:"layout"`
}

// Load reads the file at path, choosing the format from its extension, and
// compiles it with Parse.
func Load(path string, reg *packet.Registry) ([]*packet.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}
	layouts, err := Parse(data, FormatOf(path), reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logging.Debug("Loaded layout file",
		zap.String("path", path),
		zap.Int("layouts", len(layouts)))
	return layouts, nil
}

// FormatOf maps a file extension to a format name.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	}
	return ""
}

// Decode parses data without compiling it.
func Decode(data []byte, format string) (*File, error) {
	var f File
	switch strings.ToLower(format) {
	case "toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("failed to parse toml: unknown keys %v", undecoded)
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &f, nil
}

// Parse decodes data and compiles every layout in file order. Each compiled
// layout is registered in reg; a nil reg compiles without registering and
// resolves references within the file only.
func Parse(data []byte, format string, reg *packet.Registry) ([]*packet.Schema, error) {
	f, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	return Compile(f, reg)
}

// Compile builds the layouts of f. When reg is non-nil the layouts are
// registered once all of them have compiled, so a failing file leaves reg
// untouched.
func Compile(f *File, reg *packet.Registry) ([]*packet.Schema, error) {
	c := &compiler{reg: reg, local: make(map[string]*packet.Schema)}
	out := make([]*packet.Schema, 0, len(f.Layouts))
	for _, l := range f.Layouts {
		if _, dup := c.local[l.Name]; dup {
			return nil, fmt.Errorf("layout %s: %w", l.Name, packet.ErrLayoutAlreadyExists)
		}
		s, err := c.layout(l)
		if err != nil {
			return nil, err
		}
		c.local[s.Name()] = s
		out = append(out, s)
	}
	if reg != nil {
		if _, err := reg.RegisterAll(out...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type compiler struct {
	reg   *packet.Registry
	local map[string]*packet.Schema
}

func (c *compiler) resolve(name string) (*packet.Schema, error) {
	if s, ok := c.local[name]; ok {
		return s, nil
	}
	if c.reg != nil {
		if lt, ok := c.reg.LookupName(name); ok {
			return lt.Schema, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownReference, name)
}

func (c *compiler) layout(l Layout) (*packet.Schema, error) {
	b := packet.NewBuilder(l.Name)
	if l.Extends != "" {
		base, err := c.resolve(l.Extends)
		if err != nil {
			return nil, fmt.Errorf("layout %s: extends: %w", l.Name, err)
		}
		b.Extends(base)
	}
	if l.ByteOrder != "" {
		order, err := packet.ParseByteOrder(strings.ToLower(l.ByteOrder))
		if err != nil {
			return nil, fmt.Errorf("layout %s: %w", l.Name, err)
		}
		b.ByteOrder(order)
	}
	if l.Aligned {
		b.Aligned()
	}
	for _, fd := range l.Fields {
		spec, err := c.field(fd)
		if err != nil {
			return nil, fmt.Errorf("layout %s field %s: %w", l.Name, fd.Name, err)
		}
		b.Field(fd.Name, spec)
	}
	return b.Build()
}

func (c *compiler) field(fd Field) (*packet.FieldSpec, error) {
	var opts []packet.FieldOption
	if fd.Default != nil {
		opts = append(opts, packet.Default(fd.Default))
	}
	switch fd.Type {
	case "array":
		if fd.Elem == nil {
			return nil, fmt.Errorf("array field needs an elem")
		}
		elem, err := c.scalar(fd.Elem.Type, fd.Elem.Bits, fd.Elem.Signed, fd.Elem.Layout, nil)
		if err != nil {
			return nil, fmt.Errorf("elem: %w", err)
		}
		return packet.Array(elem, fd.Count, opts...), nil
	case "packet":
		if fd.Default != nil {
			return nil, fmt.Errorf("packet fields take no default")
		}
	}
	return c.scalar(fd.Type, fd.Bits, fd.Signed, fd.Layout, opts)
}

func (c *compiler) scalar(typ string, bits int, signed bool, layout string, opts []packet.FieldOption) (*packet.FieldSpec, error) {
	if bits != 0 {
		opts = append(opts, packet.Bits(bits))
	}
	if signed {
		opts = append(opts, packet.Signed())
	}
	switch typ {
	case "int":
		return packet.Int(opts...), nil
	case "int8":
		return packet.Int8(opts...), nil
	case "int16":
		return packet.Int16(opts...), nil
	case "int32":
		return packet.Int32(opts...), nil
	case "int64":
		return packet.Int64(opts...), nil
	case "float":
		return packet.Float(opts...), nil
	case "double":
		return packet.Double(opts...), nil
	case "longdouble":
		return packet.LongDouble(opts...), nil
	case "bool":
		return packet.Bool(opts...), nil
	case "flag":
		return packet.Flag(opts...), nil
	case "packet":
		inner, err := c.resolve(layout)
		if err != nil {
			return nil, err
		}
		return packet.Nested(inner), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFieldType, typ)
}
