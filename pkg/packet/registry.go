package packet

import (
	"fmt"
	"sort"
	"sync"

	"github.com/appnet-org/calpack/pkg/logging"
	"go.uber.org/zap"
)

// LayoutID identifies a registered layout in framed encodings. 0 is reserved.
type LayoutID uint8

type LayoutType struct {
	TypeID LayoutID
	Name   string
	Schema *Schema
}

// Registry maps layout IDs and names to layouts. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	types  map[LayoutID]LayoutType // layout ID -> layout
	names  map[string]LayoutID     // layout name -> layout ID
	nextID LayoutID                // next candidate for Register
}

func NewRegistry() *Registry {
	return &Registry{
		types:  make(map[LayoutID]LayoutType),
		names:  make(map[string]LayoutID),
		nextID: 1, // 0 is reserved
	}
}

// DefaultRegistry holds the layouts that packages register at init time.
var DefaultRegistry = NewRegistry()

// Register assigns the next free ID to s and registers it under its name.
func (r *Registry) Register(s *Schema) (LayoutType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.nextID != 0 {
		if _, taken := r.types[r.nextID]; !taken {
			break
		}
		r.nextID++
	}
	if r.nextID == 0 {
		return LayoutType{}, fmt.Errorf("register %s: no more available layout IDs", s.Name())
	}
	lt, err := r.add(s, r.nextID)
	if err != nil {
		return LayoutType{}, err
	}
	r.nextID++
	return lt, nil
}

// RegisterAll registers every layout in order with the next free IDs. It
// either registers all of them or, on the first failure, none.
func (r *Registry) RegisterAll(schemas ...*Schema) ([]LayoutType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.nextID
	out := make([]LayoutType, 0, len(schemas))
	for _, s := range schemas {
		for next != 0 {
			if _, taken := r.types[next]; !taken {
				break
			}
			next++
		}
		var err error
		if next == 0 {
			err = fmt.Errorf("register %s: no more available layout IDs", s.Name())
		}
		var lt LayoutType
		if err == nil {
			lt, err = r.add(s, next)
		}
		if err != nil {
			for _, done := range out {
				delete(r.types, done.TypeID)
				delete(r.names, done.Name)
			}
			return nil, err
		}
		out = append(out, lt)
		next++
	}
	r.nextID = next
	return out, nil
}

// RegisterWithID registers s under a caller-chosen ID.
func (r *Registry) RegisterWithID(s *Schema, id LayoutID) (LayoutType, error) {
	if id == 0 {
		return LayoutType{}, ErrInvalidLayoutID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(s, id)
}

func (r *Registry) add(s *Schema, id LayoutID) (LayoutType, error) {
	if s == nil {
		return LayoutType{}, fmt.Errorf("register: %w", ErrLayoutNotFound)
	}
	if _, exists := r.types[id]; exists {
		return LayoutType{}, fmt.Errorf("register %s as %d: %w", s.Name(), id, ErrLayoutAlreadyExists)
	}
	if _, exists := r.names[s.Name()]; exists {
		return LayoutType{}, fmt.Errorf("register %s: %w", s.Name(), ErrLayoutAlreadyExists)
	}
	lt := LayoutType{TypeID: id, Name: s.Name(), Schema: s}
	r.types[id] = lt
	r.names[lt.Name] = id

	logging.Debug("Registered packet layout",
		zap.String("layout", lt.Name),
		zap.Uint8("layoutID", uint8(id)),
		zap.Int("size", s.Size()))
	return lt, nil
}

// Lookup retrieves a layout by ID.
func (r *Registry) Lookup(id LayoutID) (LayoutType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lt, ok := r.types[id]
	return lt, ok
}

// LookupName retrieves a layout by name.
func (r *Registry) LookupName(name string) (LayoutType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.names[name]
	if !ok {
		return LayoutType{}, false
	}
	return r.types[id], true
}

// Schema is LookupName returning only the layout.
func (r *Registry) Schema(name string) (*Schema, error) {
	lt, ok := r.LookupName(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrLayoutNotFound)
	}
	return lt.Schema, nil
}

// List returns all registered layouts ordered by ID.
func (r *Registry) List() []LayoutType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]LayoutType, 0, len(r.types))
	for _, lt := range r.types {
		types = append(types, lt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].TypeID < types[j].TypeID })
	return types
}

// Copy creates a new Registry with the same layouts.
func (r *Registry) Copy() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewRegistry()
	c.nextID = r.nextID
	for id, lt := range r.types {
		c.types[id] = lt
		c.names[lt.Name] = id
	}
	return c
}

// Encode frames a packet as [LayoutID(1B)][packet bytes].
func (r *Registry) Encode(p *Packet) ([]byte, error) {
	lt, ok := r.LookupName(p.schema.Name())
	if !ok || lt.Schema != p.schema {
		return nil, fmt.Errorf("encode %s: %w", p.schema.Name(), ErrLayoutNotFound)
	}
	buf := make([]byte, 1+p.Len())
	buf[0] = byte(lt.TypeID)
	copy(buf[1:], p.buf)
	return buf, nil
}

// Decode reads the layout ID from the first byte of data and decodes the
// rest as a packet of that layout.
func (r *Registry) Decode(data []byte) (*Packet, LayoutType, error) {
	if len(data) < 1 {
		return nil, LayoutType{}, fmt.Errorf("data too short to read layout ID: %w", ErrSizeMismatch)
	}
	lt, ok := r.Lookup(LayoutID(data[0]))
	if !ok {
		return nil, LayoutType{}, fmt.Errorf("layout ID %d: %w", data[0], ErrLayoutNotFound)
	}
	p, err := lt.Schema.FromBytes(data[1:])
	if err != nil {
		return nil, LayoutType{}, err
	}
	return p, lt, nil
}
