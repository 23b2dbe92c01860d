// Package packer implements the self-describing, length-prefixed binary
// format shared by every protocol entity: a registry of codecs keyed by a
// (major, minor) type tag, each capable of framing its value as raw,
// untyped (length-prefixed), or typed (tag + length-prefixed) bytes.
package packer

import (
	"fmt"
	"sync"
)

// Framing selects how Serialize/Deserialize wrap a value's raw bytes.
type Framing int

const (
	// Raw carries no tag and no length prefix; the caller must already know
	// both the (major, minor) of the value and its exact length.
	Raw Framing = iota
	// Untyped prefixes the raw bytes with a W-byte big-endian length that
	// counts itself (W + payload size).
	Untyped
	// Typed prefixes the raw bytes with one major byte, one minor byte, and
	// an Untyped-style length prefix.
	Typed
)

// Codec serializes and deserializes one protocol value type.
type Codec interface {
	// Name is a human-readable identifier, unique within a Packer.
	Name() string
	// Major and Minor together form this codec's type tag.
	Major() byte
	Minor() byte
	// SizePrefixWidth is 1, 2, or 4 for a variable-length value, or 0 for a
	// fixed-length value (in which case FixedSize must be meaningful).
	SizePrefixWidth() int
	// FixedSize returns the payload size for a SizePrefixWidth()==0 codec.
	// Unused otherwise.
	FixedSize() int
	// Serialize encodes value to its raw (unframed) payload bytes.
	Serialize(value any, p *Packer) ([]byte, error)
	// Deserialize decodes raw (unframed) payload bytes back to a value.
	Deserialize(raw []byte, p *Packer) (any, error)
}

// Packer is a read-after-construction registry of codecs. Register must
// only be called during startup; Serialize/Deserialize are safe for
// concurrent use by many sessions once registration is complete.
type Packer struct {
	mu       sync.RWMutex
	byTag    map[tag]Codec
	byName   map[string]Codec
}

type tag struct {
	major byte
	minor byte
}

// New returns an empty Packer with no codecs registered.
func New() *Packer {
	return &Packer{
		byTag:  make(map[tag]Codec),
		byName: make(map[string]Codec),
	}
}

// Register adds a codec to the registry. It fails if either the
// (major, minor) pair or the name is already taken.
func (p *Packer) Register(c Codec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := tag{c.Major(), c.Minor()}

	if _, exists := p.byTag[t]; exists {
		return fmt.Errorf("register %s (%#x,%#x): %w", c.Name(), c.Major(), c.Minor(), ErrDuplicateType)
	}

	if _, exists := p.byName[c.Name()]; exists {
		return fmt.Errorf("register %s: %w", c.Name(), ErrDuplicateName)
	}

	p.byTag[t] = c
	p.byName[c.Name()] = c

	return nil
}

// LookupByName returns the codec registered under name, or (nil, false).
func (p *Packer) LookupByName(name string) (Codec, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c, ok := p.byName[name]
	return c, ok
}

// LookupByMajorMinor returns the codec registered under (major, minor), or (nil, false).
func (p *Packer) LookupByMajorMinor(major, minor byte) (Codec, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c, ok := p.byTag[tag{major, minor}]
	return c, ok
}

// Serialize encodes value using the codec registered for (major, minor),
// framed per the framing mode requested.
func (p *Packer) Serialize(value any, major, minor byte, framing Framing) ([]byte, error) {
	codec, ok := p.LookupByMajorMinor(major, minor)
	if !ok {
		return nil, fmt.Errorf("serialize (%#x,%#x): %w", major, minor, ErrUnknownType)
	}

	raw, err := codec.Serialize(value, p)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", codec.Name(), err)
	}

	switch framing {
	case Raw:
		return raw, nil
	case Untyped:
		return frameUntyped(raw, codec.SizePrefixWidth()), nil
	case Typed:
		return frameTyped(major, minor, raw, codec.SizePrefixWidth()), nil
	default:
		return nil, fmt.Errorf("serialize %s: unknown framing %d", codec.Name(), framing)
	}
}

// Deserialize reads a Typed-framed buffer: two tag bytes, a length prefix,
// and the payload, requiring the whole buffer be consumed.
func (p *Packer) Deserialize(data []byte) (any, error) {
	value, consumed, err := p.DeserializeTyped(data)
	if err != nil {
		return nil, err
	}

	if consumed != len(data) {
		return nil, fmt.Errorf("deserialize: %d trailing bytes: %w", len(data)-consumed, ErrMalformed)
	}

	return value, nil
}

// DeserializeTyped reads one Typed-framed value from the start of data and
// returns the value along with how many bytes it consumed. Used by
// collection codecs (e.g. MultiTypeArray) to walk a concatenation of
// typed children without knowing their individual lengths up front.
func (p *Packer) DeserializeTyped(data []byte) (value any, consumed int, err error) {
	if len(data) < 2 {
		return nil, 0, fmt.Errorf("deserialize: need 2 tag bytes, have %d: %w", len(data), ErrMalformed)
	}

	major, minor := data[0], data[1]

	codec, ok := p.LookupByMajorMinor(major, minor)
	if !ok {
		return nil, 0, fmt.Errorf("deserialize (%#x,%#x): %w", major, minor, ErrUnknownType)
	}

	width := codec.SizePrefixWidth()
	rest := data[2:]

	payload, frameLen, err := readSizedPayload(rest, width, codec.FixedSize())
	if err != nil {
		return nil, 0, fmt.Errorf("deserialize %s: %w", codec.Name(), err)
	}

	value, err = codec.Deserialize(payload, p)
	if err != nil {
		return nil, 0, fmt.Errorf("deserialize %s: %w", codec.Name(), err)
	}

	return value, 2 + frameLen, nil
}

// DeserializeUntyped reads an Untyped-framed buffer for the named codec
// (whose (major, minor) and size-prefix width are already known to the
// caller, e.g. a sub-list nested inside a parent whose schema fixes the
// child type) and returns the decoded value.
func (p *Packer) DeserializeUntyped(data []byte, major, minor byte) (any, error) {
	codec, ok := p.LookupByMajorMinor(major, minor)
	if !ok {
		return nil, fmt.Errorf("deserialize untyped (%#x,%#x): %w", major, minor, ErrUnknownType)
	}

	payload, frameLen, err := readSizedPayload(data, codec.SizePrefixWidth(), codec.FixedSize())
	if err != nil {
		return nil, fmt.Errorf("deserialize untyped %s: %w", codec.Name(), err)
	}

	if frameLen != len(data) {
		return nil, fmt.Errorf("deserialize untyped %s: %d trailing bytes: %w", codec.Name(), len(data)-frameLen, ErrMalformed)
	}

	return codec.Deserialize(payload, p)
}

// DeserializeUntypedAt reads one Untyped-framed value for (major, minor)
// from the start of data and returns how many bytes it consumed, allowing
// several untyped sub-values to be read back-to-back from one buffer (e.g.
// a BoundWitness's three sibling sub-lists).
func (p *Packer) DeserializeUntypedAt(data []byte, major, minor byte) (value any, consumed int, err error) {
	codec, ok := p.LookupByMajorMinor(major, minor)
	if !ok {
		return nil, 0, fmt.Errorf("deserialize untyped (%#x,%#x): %w", major, minor, ErrUnknownType)
	}

	payload, frameLen, err := readSizedPayload(data, codec.SizePrefixWidth(), codec.FixedSize())
	if err != nil {
		return nil, 0, fmt.Errorf("deserialize untyped %s: %w", codec.Name(), err)
	}

	value, err = codec.Deserialize(payload, p)
	if err != nil {
		return nil, 0, fmt.Errorf("deserialize untyped %s: %w", codec.Name(), err)
	}

	return value, frameLen, nil
}
