// Package heuristic defines the catalogue of typed data items a payload can
// carry (spec.md §3's "heuristic item") and registers their packer codecs.
// The set is open-ended by design — new heuristics register under unused
// (major, minor) pairs the same way these built-ins do — but every node
// ships with this fixed core set.
package heuristic

import (
	"encoding/binary"
	"fmt"

	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
)

// Major tags for this package's heuristics.
const (
	MajorHeuristic       = 0x01
	MajorCustomHeuristic = 0x02
)

// Minor tags under MajorHeuristic.
const (
	MinorChainIndex    = 0x01
	MinorPreviousHash  = 0x02
	MinorNextPublicKey = 0x03
	MinorRSSI          = 0x04
	MinorTimestamp     = 0x05
	MinorBridge        = 0x06
)

// ChainIndex is the position of a block within one peer's origin chain.
// Required in every participant's signed heuristics (spec.md §3 linkage).
type ChainIndex uint64

// PreviousHash references the hash of the block immediately preceding this
// one on the same peer's chain. Required for every block but the first.
type PreviousHash xyocrypto.Hash

// NextPublicKey commits the signer of this participant's next block.
type NextPublicKey struct {
	Algorithm xyocrypto.Algorithm
	Bytes     []byte
}

// RSSI is a signed received-signal-strength reading, the canonical example
// encounter datum from spec.md §8 scenario S1.
type RSSI int16

// Timestamp is a wall-clock reading in unix milliseconds. It belongs only in
// unsigned heuristics: it is metadata about the encounter, never covered by
// the signature and never used to order or validate the chain.
type Timestamp uint64

// Bridge carries another, already Typed-framed BoundWitness byte string —
// a block a bridging/sentinel node relayed and is re-attesting to having
// seen. The nested extractor (internal/boundwitness) decodes Encoded with
// the same Packer that produced it.
type Bridge struct {
	Encoded []byte
}

// RegisterAll registers every built-in heuristic codec with p. Must be
// called once, during startup, before any Serialize/Deserialize call.
func RegisterAll(p *packer.Packer) error {
	codecs := []packer.Codec{
		chainIndexCodec{},
		previousHashCodec{},
		nextPublicKeyCodec{},
		rssiCodec{},
		timestampCodec{},
		bridgeCodec{},
	}

	for _, c := range codecs {
		if err := p.Register(c); err != nil {
			return fmt.Errorf("heuristic: %w", err)
		}
	}

	return nil
}

type chainIndexCodec struct{}

func (chainIndexCodec) Name() string         { return "ChainIndex" }
func (chainIndexCodec) Major() byte          { return MajorHeuristic }
func (chainIndexCodec) Minor() byte          { return MinorChainIndex }
func (chainIndexCodec) SizePrefixWidth() int { return 0 }
func (chainIndexCodec) FixedSize() int       { return 8 }

func (chainIndexCodec) Serialize(value any, _ *packer.Packer) ([]byte, error) {
	v, ok := value.(ChainIndex)
	if !ok {
		return nil, fmt.Errorf("ChainIndex: expected ChainIndex, got %T", value)
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))

	return buf, nil
}

func (chainIndexCodec) Deserialize(raw []byte, _ *packer.Packer) (any, error) {
	if len(raw) != 8 {
		return nil, fmt.Errorf("ChainIndex: need 8 bytes, have %d: %w", len(raw), packer.ErrMalformed)
	}

	return ChainIndex(binary.BigEndian.Uint64(raw)), nil
}

type previousHashCodec struct{}

func (previousHashCodec) Name() string         { return "PreviousHash" }
func (previousHashCodec) Major() byte          { return MajorHeuristic }
func (previousHashCodec) Minor() byte          { return MinorPreviousHash }
func (previousHashCodec) SizePrefixWidth() int { return 1 }
func (previousHashCodec) FixedSize() int       { return 0 }

func (previousHashCodec) Serialize(value any, _ *packer.Packer) ([]byte, error) {
	v, ok := value.(PreviousHash)
	if !ok {
		return nil, fmt.Errorf("PreviousHash: expected PreviousHash, got %T", value)
	}

	out := make([]byte, 1+len(v.Bytes))
	out[0] = byte(v.Algorithm)
	copy(out[1:], v.Bytes)

	return out, nil
}

func (previousHashCodec) Deserialize(raw []byte, _ *packer.Packer) (any, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("PreviousHash: empty buffer: %w", packer.ErrMalformed)
	}

	return PreviousHash{Algorithm: xyocrypto.Algorithm(raw[0]), Bytes: append([]byte(nil), raw[1:]...)}, nil
}

type nextPublicKeyCodec struct{}

func (nextPublicKeyCodec) Name() string         { return "NextPublicKey" }
func (nextPublicKeyCodec) Major() byte          { return MajorHeuristic }
func (nextPublicKeyCodec) Minor() byte          { return MinorNextPublicKey }
func (nextPublicKeyCodec) SizePrefixWidth() int { return 1 }
func (nextPublicKeyCodec) FixedSize() int       { return 0 }

func (nextPublicKeyCodec) Serialize(value any, _ *packer.Packer) ([]byte, error) {
	v, ok := value.(NextPublicKey)
	if !ok {
		return nil, fmt.Errorf("NextPublicKey: expected NextPublicKey, got %T", value)
	}

	out := make([]byte, 1+len(v.Bytes))
	out[0] = byte(v.Algorithm)
	copy(out[1:], v.Bytes)

	return out, nil
}

func (nextPublicKeyCodec) Deserialize(raw []byte, _ *packer.Packer) (any, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("NextPublicKey: empty buffer: %w", packer.ErrMalformed)
	}

	return NextPublicKey{Algorithm: xyocrypto.Algorithm(raw[0]), Bytes: append([]byte(nil), raw[1:]...)}, nil
}

type rssiCodec struct{}

func (rssiCodec) Name() string         { return "RSSI" }
func (rssiCodec) Major() byte          { return MajorHeuristic }
func (rssiCodec) Minor() byte          { return MinorRSSI }
func (rssiCodec) SizePrefixWidth() int { return 0 }
func (rssiCodec) FixedSize() int       { return 2 }

func (rssiCodec) Serialize(value any, _ *packer.Packer) ([]byte, error) {
	v, ok := value.(RSSI)
	if !ok {
		return nil, fmt.Errorf("RSSI: expected RSSI, got %T", value)
	}

	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(int16(v)))

	return buf, nil
}

func (rssiCodec) Deserialize(raw []byte, _ *packer.Packer) (any, error) {
	if len(raw) != 2 {
		return nil, fmt.Errorf("RSSI: need 2 bytes, have %d: %w", len(raw), packer.ErrMalformed)
	}

	return RSSI(int16(binary.BigEndian.Uint16(raw))), nil
}

type timestampCodec struct{}

func (timestampCodec) Name() string         { return "Timestamp" }
func (timestampCodec) Major() byte          { return MajorHeuristic }
func (timestampCodec) Minor() byte          { return MinorTimestamp }
func (timestampCodec) SizePrefixWidth() int { return 0 }
func (timestampCodec) FixedSize() int       { return 8 }

func (timestampCodec) Serialize(value any, _ *packer.Packer) ([]byte, error) {
	v, ok := value.(Timestamp)
	if !ok {
		return nil, fmt.Errorf("Timestamp: expected Timestamp, got %T", value)
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))

	return buf, nil
}

func (timestampCodec) Deserialize(raw []byte, _ *packer.Packer) (any, error) {
	if len(raw) != 8 {
		return nil, fmt.Errorf("Timestamp: need 8 bytes, have %d: %w", len(raw), packer.ErrMalformed)
	}

	return Timestamp(binary.BigEndian.Uint64(raw)), nil
}

type bridgeCodec struct{}

func (bridgeCodec) Name() string         { return "Bridge" }
func (bridgeCodec) Major() byte          { return MajorHeuristic }
func (bridgeCodec) Minor() byte          { return MinorBridge }
func (bridgeCodec) SizePrefixWidth() int { return 4 }
func (bridgeCodec) FixedSize() int       { return 0 }

func (bridgeCodec) Serialize(value any, _ *packer.Packer) ([]byte, error) {
	v, ok := value.(Bridge)
	if !ok {
		return nil, fmt.Errorf("Bridge: expected Bridge, got %T", value)
	}

	return v.Encoded, nil
}

func (bridgeCodec) Deserialize(raw []byte, _ *packer.Packer) (any, error) {
	return Bridge{Encoded: append([]byte(nil), raw...)}, nil
}
