package zigzag

import (
	"fmt"

	"xyonode/internal/boundwitness"
	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
)

// EncodeTransfer renders a Transfer as three back-to-back Untyped
// MultiTypeArray sub-lists (public keys, payloads, signatures), the shape
// the driver puts on the wire between the two peers.
func EncodeTransfer(p *packer.Packer, t *Transfer) ([]byte, error) {
	if t == nil {
		t = &Transfer{}
	}

	pkItems := make([]packer.TypedValue, len(t.PublicKeys))
	for i, pk := range t.PublicKeys {
		pkItems[i] = packer.TypedValue{Major: xyocrypto.MajorCrypto, Minor: xyocrypto.MinorPublicKey, Value: pk}
	}

	payloadItems := make([]packer.TypedValue, len(t.Payloads))
	for i, payload := range t.Payloads {
		payloadItems[i] = packer.TypedValue{Major: boundwitness.MajorBoundWitness, Minor: boundwitness.MinorPayload, Value: payload}
	}

	sigItems := make([]packer.TypedValue, len(t.Signatures))
	for i, sig := range t.Signatures {
		sigItems[i] = packer.TypedValue{Major: xyocrypto.MajorCrypto, Minor: xyocrypto.MinorSignature, Value: sig}
	}

	pkBytes, err := p.SerializeList(pkItems)
	if err != nil {
		return nil, fmt.Errorf("encode transfer: public keys: %w", err)
	}

	payloadBytes, err := p.SerializeList(payloadItems)
	if err != nil {
		return nil, fmt.Errorf("encode transfer: payloads: %w", err)
	}

	sigBytes, err := p.SerializeList(sigItems)
	if err != nil {
		return nil, fmt.Errorf("encode transfer: signatures: %w", err)
	}

	out := make([]byte, 0, len(pkBytes)+len(payloadBytes)+len(sigBytes))
	out = append(out, pkBytes...)
	out = append(out, payloadBytes...)
	out = append(out, sigBytes...)

	return out, nil
}

// DecodeTransfer reverses EncodeTransfer.
func DecodeTransfer(p *packer.Packer, data []byte) (*Transfer, error) {
	pkItems, consumed, err := p.DeserializeListAt(data)
	if err != nil {
		return nil, fmt.Errorf("decode transfer: public keys: %w", err)
	}
	offset := consumed

	payloadItems, consumed, err := p.DeserializeListAt(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("decode transfer: payloads: %w", err)
	}
	offset += consumed

	sigItems, _, err := p.DeserializeListAt(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("decode transfer: signatures: %w", err)
	}

	publicKeys := make([]xyocrypto.PublicKey, len(pkItems))
	for i, item := range pkItems {
		pk, ok := item.Value.(xyocrypto.PublicKey)
		if !ok {
			return nil, fmt.Errorf("decode transfer: public key %d: unexpected type %T", i, item.Value)
		}
		publicKeys[i] = pk
	}

	payloads := make([]boundwitness.Payload, len(payloadItems))
	for i, item := range payloadItems {
		payload, ok := item.Value.(boundwitness.Payload)
		if !ok {
			return nil, fmt.Errorf("decode transfer: payload %d: unexpected type %T", i, item.Value)
		}
		payloads[i] = payload
	}

	signatures := make([]xyocrypto.Signature, len(sigItems))
	for i, item := range sigItems {
		sig, ok := item.Value.(xyocrypto.Signature)
		if !ok {
			return nil, fmt.Errorf("decode transfer: signature %d: unexpected type %T", i, item.Value)
		}
		signatures[i] = sig
	}

	return &Transfer{PublicKeys: publicKeys, Payloads: payloads, Signatures: signatures}, nil
}
