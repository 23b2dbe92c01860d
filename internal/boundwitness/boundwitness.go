// Package boundwitness defines the block produced by a completed zig-zag
// negotiation (spec.md §3's "BoundWitness") and the invariants every
// completed block must satisfy.
package boundwitness

import (
	"fmt"

	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
)

// Major/minor tags for this package's wire types.
const (
	MajorBoundWitness = 0x04
	MinorPayload      = 0x01
	MinorBoundWitness = 0x02
)

// Payload is one participant's contribution to a block: an ordered list of
// heuristics covered by that participant's signature, and an ordered list
// of heuristics that are metadata only.
type Payload struct {
	SignedHeuristics   []packer.TypedValue
	UnsignedHeuristics []packer.TypedValue
}

// BoundWitness is a completed block: N participants, each contributing one
// public key, one payload, and one signature, at parallel indices.
type BoundWitness struct {
	PublicKeys []xyocrypto.PublicKey
	Payloads   []Payload
	Signatures []xyocrypto.Signature
}

// RegisterAll registers the Payload and BoundWitness codecs with p. Must be
// called once, during startup, before any Serialize/Deserialize call.
func RegisterAll(p *packer.Packer) error {
	for _, c := range []packer.Codec{payloadCodec{}, boundWitnessCodec{}} {
		if err := p.Register(c); err != nil {
			return fmt.Errorf("boundwitness: %w", err)
		}
	}

	return nil
}

// SigningData computes the canonical bytes every participant signs and
// every signature is verified against: the ordered public keys followed by
// every participant's signed heuristics, in participant order, all as one
// concatenation of length-prefixed MultiTypeArray sub-lists (spec.md §3).
func SigningData(p *packer.Packer, publicKeys []xyocrypto.PublicKey, signedHeuristicsByParticipant [][]packer.TypedValue) ([]byte, error) {
	pkItems := make([]packer.TypedValue, len(publicKeys))
	for i, pk := range publicKeys {
		pkItems[i] = packer.TypedValue{Major: xyocrypto.MajorCrypto, Minor: xyocrypto.MinorPublicKey, Value: pk}
	}

	var heuristicItems []packer.TypedValue
	for _, list := range signedHeuristicsByParticipant {
		heuristicItems = append(heuristicItems, list...)
	}

	pkBytes, err := p.SerializeList(pkItems)
	if err != nil {
		return nil, fmt.Errorf("signing data: public keys: %w", err)
	}

	heuristicBytes, err := p.SerializeList(heuristicItems)
	if err != nil {
		return nil, fmt.Errorf("signing data: signed heuristics: %w", err)
	}

	return append(pkBytes, heuristicBytes...), nil
}

// Validate checks the block invariants that must hold for any completed
// block (spec.md §3): equal-length parallel lists, at least one
// participant, no duplicate public keys, and every signature verifying
// against the canonical signing data.
func (bw *BoundWitness) Validate(p *packer.Packer) error {
	n := len(bw.PublicKeys)

	if n == 0 {
		return ErrEmpty
	}

	if len(bw.Payloads) != n || len(bw.Signatures) != n {
		return fmt.Errorf("%w: %d keys, %d payloads, %d signatures", ErrLengthMismatch, n, len(bw.Payloads), len(bw.Signatures))
	}

	seen := make(map[string]struct{}, n)
	for i, pk := range bw.PublicKeys {
		key := string(pk.Bytes())
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: participant %d", ErrDuplicatePublicKey, i)
		}

		seen[key] = struct{}{}
	}

	signedHeuristics := make([][]packer.TypedValue, n)
	for i, payload := range bw.Payloads {
		signedHeuristics[i] = payload.SignedHeuristics
	}

	signingData, err := SigningData(p, bw.PublicKeys, signedHeuristics)
	if err != nil {
		return fmt.Errorf("boundwitness: %w", err)
	}

	for i, pk := range bw.PublicKeys {
		if !pk.Verify(signingData, bw.Signatures[i]) {
			return fmt.Errorf("%w: participant %d", ErrSignatureInvalid, i)
		}
	}

	return nil
}

type payloadCodec struct{}

func (payloadCodec) Name() string         { return "Payload" }
func (payloadCodec) Major() byte          { return MajorBoundWitness }
func (payloadCodec) Minor() byte          { return MinorPayload }
func (payloadCodec) SizePrefixWidth() int { return 4 }
func (payloadCodec) FixedSize() int       { return 0 }

func (payloadCodec) Serialize(value any, p *packer.Packer) ([]byte, error) {
	payload, ok := value.(Payload)
	if !ok {
		return nil, fmt.Errorf("Payload: expected Payload, got %T", value)
	}

	signed, err := p.SerializeList(payload.SignedHeuristics)
	if err != nil {
		return nil, fmt.Errorf("Payload: signed heuristics: %w", err)
	}

	unsigned, err := p.SerializeList(payload.UnsignedHeuristics)
	if err != nil {
		return nil, fmt.Errorf("Payload: unsigned heuristics: %w", err)
	}

	return append(signed, unsigned...), nil
}

func (payloadCodec) Deserialize(raw []byte, p *packer.Packer) (any, error) {
	signed, consumed, err := p.DeserializeListAt(raw)
	if err != nil {
		return nil, fmt.Errorf("Payload: signed heuristics: %w", err)
	}

	unsigned, _, err := p.DeserializeListAt(raw[consumed:])
	if err != nil {
		return nil, fmt.Errorf("Payload: unsigned heuristics: %w", err)
	}

	return Payload{SignedHeuristics: signed, UnsignedHeuristics: unsigned}, nil
}

type boundWitnessCodec struct{}

func (boundWitnessCodec) Name() string         { return "BoundWitness" }
func (boundWitnessCodec) Major() byte          { return MajorBoundWitness }
func (boundWitnessCodec) Minor() byte          { return MinorBoundWitness }
func (boundWitnessCodec) SizePrefixWidth() int { return 4 }
func (boundWitnessCodec) FixedSize() int       { return 0 }

func (boundWitnessCodec) Serialize(value any, p *packer.Packer) ([]byte, error) {
	bw, ok := value.(*BoundWitness)
	if !ok {
		if v, ok2 := value.(BoundWitness); ok2 {
			bw = &v
		} else {
			return nil, fmt.Errorf("BoundWitness: expected BoundWitness, got %T", value)
		}
	}

	pkItems := make([]packer.TypedValue, len(bw.PublicKeys))
	for i, pk := range bw.PublicKeys {
		pkItems[i] = packer.TypedValue{Major: xyocrypto.MajorCrypto, Minor: xyocrypto.MinorPublicKey, Value: pk}
	}

	payloadItems := make([]packer.TypedValue, len(bw.Payloads))
	for i, payload := range bw.Payloads {
		payloadItems[i] = packer.TypedValue{Major: MajorBoundWitness, Minor: MinorPayload, Value: payload}
	}

	sigItems := make([]packer.TypedValue, len(bw.Signatures))
	for i, sig := range bw.Signatures {
		sigItems[i] = packer.TypedValue{Major: xyocrypto.MajorCrypto, Minor: xyocrypto.MinorSignature, Value: sig}
	}

	pkBytes, err := p.SerializeList(pkItems)
	if err != nil {
		return nil, fmt.Errorf("BoundWitness: public keys: %w", err)
	}

	payloadBytes, err := p.SerializeList(payloadItems)
	if err != nil {
		return nil, fmt.Errorf("BoundWitness: payloads: %w", err)
	}

	sigBytes, err := p.SerializeList(sigItems)
	if err != nil {
		return nil, fmt.Errorf("BoundWitness: signatures: %w", err)
	}

	out := make([]byte, 0, len(pkBytes)+len(payloadBytes)+len(sigBytes))
	out = append(out, pkBytes...)
	out = append(out, payloadBytes...)
	out = append(out, sigBytes...)

	return out, nil
}

func (boundWitnessCodec) Deserialize(raw []byte, p *packer.Packer) (any, error) {
	pkItems, consumed, err := p.DeserializeListAt(raw)
	if err != nil {
		return nil, fmt.Errorf("BoundWitness: public keys: %w", err)
	}
	offset := consumed

	payloadItems, consumed, err := p.DeserializeListAt(raw[offset:])
	if err != nil {
		return nil, fmt.Errorf("BoundWitness: payloads: %w", err)
	}
	offset += consumed

	sigItems, _, err := p.DeserializeListAt(raw[offset:])
	if err != nil {
		return nil, fmt.Errorf("BoundWitness: signatures: %w", err)
	}

	publicKeys := make([]xyocrypto.PublicKey, len(pkItems))
	for i, item := range pkItems {
		pk, ok := item.Value.(xyocrypto.PublicKey)
		if !ok {
			return nil, fmt.Errorf("BoundWitness: public key %d: unexpected type %T", i, item.Value)
		}
		publicKeys[i] = pk
	}

	payloads := make([]Payload, len(payloadItems))
	for i, item := range payloadItems {
		payload, ok := item.Value.(Payload)
		if !ok {
			return nil, fmt.Errorf("BoundWitness: payload %d: unexpected type %T", i, item.Value)
		}
		payloads[i] = payload
	}

	signatures := make([]xyocrypto.Signature, len(sigItems))
	for i, item := range sigItems {
		sig, ok := item.Value.(xyocrypto.Signature)
		if !ok {
			return nil, fmt.Errorf("BoundWitness: signature %d: unexpected type %T", i, item.Value)
		}
		signatures[i] = sig
	}

	return &BoundWitness{PublicKeys: publicKeys, Payloads: payloads, Signatures: signatures}, nil
}
