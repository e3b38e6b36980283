package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/appnet-org/calpack/pkg/packet"
)

// parseHex decodes a hex string, ignoring spaces, colons and a 0x prefix.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return b, nil
}

// parseAssignments turns field=value arguments into values for s.
func parseAssignments(s *packet.Schema, args []string) (packet.Values, error) {
	vals := make(packet.Values, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q, want field=value", arg)
		}
		fi, ok := s.Field(name)
		if !ok {
			return nil, fmt.Errorf("%s has no field %q", s.Name(), name)
		}
		v, err := parseValue(fi.Spec, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		vals[name] = v
	}
	return vals, nil
}

// parseValue converts the text form of a value for spec. Integers accept
// Go literal prefixes (0x, 0o, 0b).
func parseValue(spec *packet.FieldSpec, raw string) (any, error) {
	switch spec.Kind() {
	case packet.KindInt:
		if spec.Signed() {
			return strconv.ParseInt(raw, 0, 64)
		}
		return strconv.ParseUint(raw, 0, 64)
	case packet.KindFloat, packet.KindDouble, packet.KindLongDouble:
		return strconv.ParseFloat(raw, 64)
	case packet.KindBool, packet.KindFlag:
		return strconv.ParseBool(raw)
	case packet.KindArray:
		raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
		parts := strings.Split(raw, ",")
		elems := make([]any, len(parts))
		for i, part := range parts {
			v, err := parseValue(spec.Elem(), strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = v
		}
		return elems, nil
	case packet.KindPacket:
		b, err := parseHex(raw)
		if err != nil {
			return nil, err
		}
		return spec.Layout().FromBytes(b)
	}
	return nil, fmt.Errorf("unsupported field kind %s", spec.Kind())
}
