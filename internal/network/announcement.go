package network

import (
	"fmt"

	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
)

// Major/minor tags for this package's wire types.
const (
	MajorNetwork             = 0x05
	MinorWitnessAnnouncement = 0x01
)

// WitnessAnnouncement gossips one participant's BLS co-signature over a
// completed block's hash, per spec.md §4.9. Each announcement carries a
// single signer's signature and bitmap; this package neither aggregates
// received announcements nor verifies their signatures.
type WitnessAnnouncement struct {
	BlockHash    xyocrypto.Hash
	Signature    xyocrypto.Signature
	SignerBitmap []byte
}

// RegisterAll registers the WitnessAnnouncement codec with p. Must be
// called once, during startup, before any Serialize/Deserialize call.
func RegisterAll(p *packer.Packer) error {
	if err := p.Register(witnessAnnouncementCodec{}); err != nil {
		return fmt.Errorf("network: %w", err)
	}

	return nil
}

// SignWitnessAnnouncement signs blockHash's encoded bytes with signer and
// builds the announcement to gossip, with a bitmap marking rosterIndex as
// the sole contributor so far.
func SignWitnessAnnouncement(blockHash xyocrypto.Hash, signer *xyocrypto.BLSSigner, rosterIndex, rosterSize int) (WitnessAnnouncement, error) {
	hashBytes, err := xyocrypto.EncodeHash(blockHash)
	if err != nil {
		return WitnessAnnouncement{}, fmt.Errorf("sign witness announcement: %w", err)
	}

	sig, err := signer.Sign(hashBytes)
	if err != nil {
		return WitnessAnnouncement{}, fmt.Errorf("sign witness announcement: %w", err)
	}

	return WitnessAnnouncement{
		BlockHash:    blockHash,
		Signature:    sig,
		SignerBitmap: xyocrypto.BuildSignerBitmap([]int{rosterIndex}, rosterSize),
	}, nil
}

type witnessAnnouncementCodec struct{}

func (witnessAnnouncementCodec) Name() string         { return "WitnessAnnouncement" }
func (witnessAnnouncementCodec) Major() byte          { return MajorNetwork }
func (witnessAnnouncementCodec) Minor() byte          { return MinorWitnessAnnouncement }
func (witnessAnnouncementCodec) SizePrefixWidth() int { return 4 }
func (witnessAnnouncementCodec) FixedSize() int       { return 0 }

func (witnessAnnouncementCodec) Serialize(value any, _ *packer.Packer) ([]byte, error) {
	a, ok := value.(WitnessAnnouncement)
	if !ok {
		v, ok2 := value.(*WitnessAnnouncement)
		if !ok2 {
			return nil, fmt.Errorf("WitnessAnnouncement: expected WitnessAnnouncement, got %T", value)
		}
		a = *v
	}

	hashBytes, err := xyocrypto.EncodeHash(a.BlockHash)
	if err != nil {
		return nil, fmt.Errorf("WitnessAnnouncement: block hash: %w", err)
	}

	sigBytes := append([]byte{byte(a.Signature.Algorithm)}, a.Signature.Bytes...)

	if len(hashBytes) > 255 || len(sigBytes) > 255 || len(a.SignerBitmap) > 255 {
		return nil, fmt.Errorf("WitnessAnnouncement: field exceeds 255 bytes")
	}

	out := make([]byte, 0, 3+len(hashBytes)+len(sigBytes)+len(a.SignerBitmap))
	out = append(out, byte(len(hashBytes)))
	out = append(out, hashBytes...)
	out = append(out, byte(len(sigBytes)))
	out = append(out, sigBytes...)
	out = append(out, byte(len(a.SignerBitmap)))
	out = append(out, a.SignerBitmap...)

	return out, nil
}

func (witnessAnnouncementCodec) Deserialize(raw []byte, _ *packer.Packer) (any, error) {
	offset := 0

	hashLen, offset, err := readLengthPrefixedField(raw, offset)
	if err != nil {
		return nil, fmt.Errorf("WitnessAnnouncement: block hash: %w", err)
	}
	hash, err := xyocrypto.DecodeHash(raw[offset-hashLen : offset])
	if err != nil {
		return nil, fmt.Errorf("WitnessAnnouncement: block hash: %w", err)
	}

	sigLen, offset, err := readLengthPrefixedField(raw, offset)
	if err != nil {
		return nil, fmt.Errorf("WitnessAnnouncement: signature: %w", err)
	}
	if sigLen < 1 {
		return nil, fmt.Errorf("WitnessAnnouncement: empty signature: %w", packer.ErrMalformed)
	}
	sigField := raw[offset-sigLen : offset]
	sig := xyocrypto.Signature{Algorithm: xyocrypto.Algorithm(sigField[0]), Bytes: append([]byte(nil), sigField[1:]...)}

	bitmapLen, offset, err := readLengthPrefixedField(raw, offset)
	if err != nil {
		return nil, fmt.Errorf("WitnessAnnouncement: signer bitmap: %w", err)
	}
	bitmap := append([]byte(nil), raw[offset-bitmapLen:offset]...)

	return WitnessAnnouncement{BlockHash: hash, Signature: sig, SignerBitmap: bitmap}, nil
}

// readLengthPrefixedField reads a 1-byte length prefix followed by that
// many bytes, starting at offset, and returns the field length and the
// offset just past the field.
func readLengthPrefixedField(raw []byte, offset int) (length, next int, err error) {
	if offset >= len(raw) {
		return 0, 0, fmt.Errorf("truncated: %w", packer.ErrMalformed)
	}

	length = int(raw[offset])
	offset++

	if offset+length > len(raw) {
		return 0, 0, fmt.Errorf("truncated field: %w", packer.ErrMalformed)
	}

	return length, offset + length, nil
}
