package packer

import "fmt"

// Collection major/minor tags. Individual protocol packages register their
// own tags under other majors (see internal/heuristic, internal/xyocrypto,
// internal/boundwitness); this package only owns the generic container.
const (
	MajorCollection = 0x00
	MinorMultiType  = 0x01
)

// TypedValue pairs a decoded value with the (major, minor) tag its codec is
// registered under. MultiTypeArray is a concatenation of these.
type TypedValue struct {
	Major byte
	Minor byte
	Value any
}

// MultiTypeArrayCodec serializes a mixed-type, ordered list of TypedValue as
// the concatenation of each child's Typed-framed bytes (spec.md §4.1's
// "collection" value).
type MultiTypeArrayCodec struct{}

func (MultiTypeArrayCodec) Name() string         { return "MultiTypeArray" }
func (MultiTypeArrayCodec) Major() byte          { return MajorCollection }
func (MultiTypeArrayCodec) Minor() byte          { return MinorMultiType }
func (MultiTypeArrayCodec) SizePrefixWidth() int { return 4 }
func (MultiTypeArrayCodec) FixedSize() int       { return 0 }

func (MultiTypeArrayCodec) Serialize(value any, p *Packer) ([]byte, error) {
	items, ok := value.([]TypedValue)
	if !ok {
		return nil, fmt.Errorf("MultiTypeArray: expected []TypedValue, got %T", value)
	}

	var out []byte

	for i, item := range items {
		child, err := p.Serialize(item.Value, item.Major, item.Minor, Typed)
		if err != nil {
			return nil, fmt.Errorf("MultiTypeArray: child %d: %w", i, err)
		}

		out = append(out, child...)
	}

	return out, nil
}

func (MultiTypeArrayCodec) Deserialize(raw []byte, p *Packer) (any, error) {
	var items []TypedValue

	for offset := 0; offset < len(raw); {
		if len(raw)-offset < 2 {
			return nil, fmt.Errorf("MultiTypeArray: %d trailing bytes: %w", len(raw)-offset, ErrMalformed)
		}

		major, minor := raw[offset], raw[offset+1]

		value, consumed, err := p.DeserializeTyped(raw[offset:])
		if err != nil {
			return nil, fmt.Errorf("MultiTypeArray: item at offset %d: %w", offset, err)
		}

		items = append(items, TypedValue{Major: major, Minor: minor, Value: value})
		offset += consumed
	}

	return items, nil
}

// SerializeList frames a []TypedValue as an Untyped MultiTypeArray — the
// "ordered list" sub-value spec.md §6 describes inside a typed BoundWitness.
func (p *Packer) SerializeList(items []TypedValue) ([]byte, error) {
	return p.Serialize(items, MajorCollection, MinorMultiType, Untyped)
}

// DeserializeList reads an Untyped MultiTypeArray sub-list.
func (p *Packer) DeserializeList(data []byte) ([]TypedValue, error) {
	value, err := p.DeserializeUntyped(data, MajorCollection, MinorMultiType)
	if err != nil {
		return nil, err
	}

	items, ok := value.([]TypedValue)
	if !ok {
		return nil, fmt.Errorf("DeserializeList: unexpected value type %T", value)
	}

	return items, nil
}

// DeserializeListAt reads an Untyped MultiTypeArray sub-list from the start
// of data and reports how many bytes it consumed, for reading several
// sub-lists back-to-back out of one buffer.
func (p *Packer) DeserializeListAt(data []byte) (items []TypedValue, consumed int, err error) {
	value, consumed, err := p.DeserializeUntypedAt(data, MajorCollection, MinorMultiType)
	if err != nil {
		return nil, 0, err
	}

	items, ok := value.([]TypedValue)
	if !ok {
		return nil, 0, fmt.Errorf("DeserializeListAt: unexpected value type %T", value)
	}

	return items, consumed, nil
}
