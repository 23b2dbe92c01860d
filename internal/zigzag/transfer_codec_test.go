package zigzag

import (
	"testing"

	"xyonode/internal/boundwitness"
	"xyonode/internal/heuristic"
	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
)

func TestTransferRoundTrip(t *testing.T) {
	p := newTestPacker(t)
	signer := newTestSigner(t)

	original := &Transfer{
		PublicKeys: []xyocrypto.PublicKey{signer.PublicKey()},
		Payloads: []boundwitness.Payload{{SignedHeuristics: []packer.TypedValue{
			{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorChainIndex, Value: heuristic.ChainIndex(3)},
		}}},
	}

	encoded, err := EncodeTransfer(p, original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeTransfer(p, encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded.PublicKeys) != 1 || !decoded.PublicKeys[0].Equal(original.PublicKeys[0]) {
		t.Errorf("public keys mismatch: %v", decoded.PublicKeys)
	}

	if len(decoded.Payloads) != 1 || len(decoded.Payloads[0].SignedHeuristics) != 1 {
		t.Errorf("payloads mismatch: %v", decoded.Payloads)
	}

	if len(decoded.Signatures) != 0 {
		t.Errorf("expected no signatures, got %d", len(decoded.Signatures))
	}
}

func TestEmptyTransferRoundTrip(t *testing.T) {
	p := newTestPacker(t)

	encoded, err := EncodeTransfer(p, nil)
	if err != nil {
		t.Fatalf("encode nil transfer: %v", err)
	}

	decoded, err := DecodeTransfer(p, encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded.PublicKeys) != 0 || len(decoded.Payloads) != 0 || len(decoded.Signatures) != 0 {
		t.Errorf("expected empty transfer, got %+v", decoded)
	}
}
