package xyocrypto

import (
	"fmt"

	"xyonode/internal/packer"
)

// Major/minor tags for the wire encodings of PublicKey and Signature
// values, shared by every algorithm this package supports.
const (
	MajorCrypto      = 0x03
	MinorPublicKey   = 0x01
	MinorSignature   = 0x02
)

// RegisterAll registers the PublicKey and Signature codecs with p. Must be
// called once, during startup, before any Serialize/Deserialize call.
func RegisterAll(p *packer.Packer) error {
	for _, c := range []packer.Codec{publicKeyCodec{}, signatureCodec{}} {
		if err := p.Register(c); err != nil {
			return fmt.Errorf("xyocrypto: %w", err)
		}
	}

	return nil
}

type publicKeyCodec struct{}

func (publicKeyCodec) Name() string         { return "PublicKey" }
func (publicKeyCodec) Major() byte          { return MajorCrypto }
func (publicKeyCodec) Minor() byte          { return MinorPublicKey }
func (publicKeyCodec) SizePrefixWidth() int { return 1 }
func (publicKeyCodec) FixedSize() int       { return 0 }

func (publicKeyCodec) Serialize(value any, _ *packer.Packer) ([]byte, error) {
	pk, ok := value.(PublicKey)
	if !ok {
		return nil, fmt.Errorf("PublicKey: expected xyocrypto.PublicKey, got %T", value)
	}

	raw := pk.Bytes()
	out := make([]byte, 1+len(raw))
	out[0] = byte(pk.Algorithm())
	copy(out[1:], raw)

	return out, nil
}

func (publicKeyCodec) Deserialize(raw []byte, _ *packer.Packer) (any, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("PublicKey: empty buffer: %w", packer.ErrMalformed)
	}

	algorithm := Algorithm(raw[0])
	keyBytes := raw[1:]

	switch algorithm {
	case AlgEd25519:
		return NewEd25519PublicKey(keyBytes)
	case AlgBLS12381:
		return NewBLSPublicKey(keyBytes)
	default:
		return nil, fmt.Errorf("PublicKey: algorithm %#x: %w", algorithm, ErrUnknownAlgorithm)
	}
}

type signatureCodec struct{}

func (signatureCodec) Name() string         { return "Signature" }
func (signatureCodec) Major() byte          { return MajorCrypto }
func (signatureCodec) Minor() byte          { return MinorSignature }
func (signatureCodec) SizePrefixWidth() int { return 1 }
func (signatureCodec) FixedSize() int       { return 0 }

func (signatureCodec) Serialize(value any, _ *packer.Packer) ([]byte, error) {
	sig, ok := value.(Signature)
	if !ok {
		return nil, fmt.Errorf("Signature: expected xyocrypto.Signature, got %T", value)
	}

	out := make([]byte, 1+len(sig.Bytes))
	out[0] = byte(sig.Algorithm)
	copy(out[1:], sig.Bytes)

	return out, nil
}

func (signatureCodec) Deserialize(raw []byte, _ *packer.Packer) (any, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("Signature: empty buffer: %w", packer.ErrMalformed)
	}

	return Signature{Algorithm: Algorithm(raw[0]), Bytes: append([]byte(nil), raw[1:]...)}, nil
}
