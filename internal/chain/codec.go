package chain

import (
	"encoding/binary"
	"fmt"

	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
)

// encodeContinuity serializes a continuityRecord into the bytes stored
// under continuityKey. This is an internal storage format, not a
// negotiated wire type, so it is not registered with the packer's global
// (major, minor) registry — it reuses the packer only to reuse the crypto
// codecs and MultiTypeArray framing for its signer lists.
func encodeContinuity(p *packer.Packer, rec continuityRecord) ([]byte, error) {
	var out []byte

	scalar := make([]byte, 8+1+1+xyocrypto.MaxHashEncodedSize+1)
	n := 0

	binary.BigEndian.PutUint64(scalar[n:], rec.Index)
	n += 8

	if rec.HasPrevious {
		scalar[n] = 1
	}
	n++

	hashBytes, err := xyocrypto.EncodeHash(rec.PreviousHash)
	if err != nil {
		return nil, fmt.Errorf("encode previous hash: %w", err)
	}
	scalar[n] = byte(len(hashBytes))
	n++
	n += copy(scalar[n:], hashBytes)

	if rec.HasNextKey {
		scalar[n] = 1
	}
	n++

	out = append(out, scalar[:n]...)

	pkList := func(keys []xyocrypto.PublicKey) ([]byte, error) {
		items := make([]packer.TypedValue, len(keys))
		for i, k := range keys {
			items[i] = packer.TypedValue{Major: xyocrypto.MajorCrypto, Minor: xyocrypto.MinorPublicKey, Value: k}
		}

		return p.SerializeList(items)
	}

	currentBytes, err := pkList(rec.CurrentSigners)
	if err != nil {
		return nil, fmt.Errorf("encode current signers: %w", err)
	}
	out = append(out, currentBytes...)

	waitingBytes, err := pkList(rec.WaitingSigners)
	if err != nil {
		return nil, fmt.Errorf("encode waiting signers: %w", err)
	}
	out = append(out, waitingBytes...)

	if rec.HasNextKey {
		nextBytes, err := p.Serialize(rec.NextPublicKey, xyocrypto.MajorCrypto, xyocrypto.MinorPublicKey, packer.Untyped)
		if err != nil {
			return nil, fmt.Errorf("encode next public key: %w", err)
		}
		out = append(out, nextBytes...)
	}

	return out, nil
}

func decodeContinuity(p *packer.Packer, data []byte) (continuityRecord, error) {
	var rec continuityRecord

	if len(data) < 9 {
		return rec, fmt.Errorf("continuity record too short")
	}

	offset := 0
	rec.Index = binary.BigEndian.Uint64(data[offset:])
	offset += 8

	rec.HasPrevious = data[offset] != 0
	offset++

	hashLen := int(data[offset])
	offset++

	hash, err := xyocrypto.DecodeHash(data[offset : offset+hashLen])
	if err != nil {
		return rec, fmt.Errorf("decode previous hash: %w", err)
	}
	rec.PreviousHash = hash
	offset += hashLen

	rec.HasNextKey = data[offset] != 0
	offset++

	currentItems, consumed, err := p.DeserializeListAt(data[offset:])
	if err != nil {
		return rec, fmt.Errorf("decode current signers: %w", err)
	}
	offset += consumed
	rec.CurrentSigners, err = toPublicKeys(currentItems)
	if err != nil {
		return rec, fmt.Errorf("current signers: %w", err)
	}

	waitingItems, consumed, err := p.DeserializeListAt(data[offset:])
	if err != nil {
		return rec, fmt.Errorf("decode waiting signers: %w", err)
	}
	offset += consumed
	rec.WaitingSigners, err = toPublicKeys(waitingItems)
	if err != nil {
		return rec, fmt.Errorf("waiting signers: %w", err)
	}

	if rec.HasNextKey {
		value, _, err := p.DeserializeUntypedAt(data[offset:], xyocrypto.MajorCrypto, xyocrypto.MinorPublicKey)
		if err != nil {
			return rec, fmt.Errorf("decode next public key: %w", err)
		}

		pk, ok := value.(xyocrypto.PublicKey)
		if !ok {
			return rec, fmt.Errorf("next public key: unexpected type %T", value)
		}
		rec.NextPublicKey = pk
	}

	return rec, nil
}

func toPublicKeys(items []packer.TypedValue) ([]xyocrypto.PublicKey, error) {
	keys := make([]xyocrypto.PublicKey, len(items))
	for i, item := range items {
		pk, ok := item.Value.(xyocrypto.PublicKey)
		if !ok {
			return nil, fmt.Errorf("item %d: unexpected type %T", i, item.Value)
		}
		keys[i] = pk
	}

	return keys, nil
}
