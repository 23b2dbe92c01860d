package boundwitness

import (
	"testing"

	"xyonode/internal/heuristic"
	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
)

func newTestPacker(t *testing.T) *packer.Packer {
	t.Helper()

	p := packer.New()

	if err := xyocrypto.RegisterAll(p); err != nil {
		t.Fatalf("register xyocrypto: %v", err)
	}

	if err := heuristic.RegisterAll(p); err != nil {
		t.Fatalf("register heuristic: %v", err)
	}

	if err := RegisterAll(p); err != nil {
		t.Fatalf("register boundwitness: %v", err)
	}

	return p
}

// buildSignedBlock builds a valid two-participant block, each contributing
// a ChainIndex heuristic and an RSSI reading, correctly signed.
func buildSignedBlock(t *testing.T, p *packer.Packer, signers []xyocrypto.Signer, rssi []heuristic.RSSI) *BoundWitness {
	t.Helper()

	publicKeys := make([]xyocrypto.PublicKey, len(signers))
	for i, s := range signers {
		publicKeys[i] = s.PublicKey()
	}

	signedHeuristics := make([][]packer.TypedValue, len(signers))
	payloads := make([]Payload, len(signers))

	for i := range signers {
		signed := []packer.TypedValue{
			{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorChainIndex, Value: heuristic.ChainIndex(0)},
			{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorRSSI, Value: rssi[i]},
		}
		signedHeuristics[i] = signed
		payloads[i] = Payload{SignedHeuristics: signed}
	}

	signingData, err := SigningData(p, publicKeys, signedHeuristics)
	if err != nil {
		t.Fatalf("signing data: %v", err)
	}

	signatures := make([]xyocrypto.Signature, len(signers))
	for i, s := range signers {
		sig, err := s.Sign(signingData)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		signatures[i] = sig
	}

	return &BoundWitness{PublicKeys: publicKeys, Payloads: payloads, Signatures: signatures}
}

func twoSigners(t *testing.T) []xyocrypto.Signer {
	t.Helper()

	a, err := xyocrypto.NewEd25519Signer()
	if err != nil {
		t.Fatalf("signer a: %v", err)
	}

	b, err := xyocrypto.NewEd25519Signer()
	if err != nil {
		t.Fatalf("signer b: %v", err)
	}

	return []xyocrypto.Signer{a, b}
}

func TestValidateAcceptsValidBlock(t *testing.T) {
	p := newTestPacker(t)
	block := buildSignedBlock(t, p, twoSigners(t), []heuristic.RSSI{-5, -10})

	if err := block.Validate(p); err != nil {
		t.Fatalf("expected valid block, got: %v", err)
	}
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	p := newTestPacker(t)
	block := buildSignedBlock(t, p, twoSigners(t), []heuristic.RSSI{-5, -10})

	block.Signatures[0].Bytes[0] ^= 0xFF

	if err := block.Validate(p); err == nil {
		t.Error("expected validation error for tampered signature")
	}
}

func TestValidateRejectsLengthMismatch(t *testing.T) {
	p := newTestPacker(t)
	block := buildSignedBlock(t, p, twoSigners(t), []heuristic.RSSI{-5, -10})

	block.Payloads = block.Payloads[:1]

	if err := block.Validate(p); err == nil {
		t.Error("expected validation error for length mismatch")
	}
}

func TestValidateRejectsDuplicatePublicKey(t *testing.T) {
	p := newTestPacker(t)
	signers := twoSigners(t)
	block := buildSignedBlock(t, p, signers, []heuristic.RSSI{-5, -10})

	block.PublicKeys[1] = block.PublicKeys[0]

	if err := block.Validate(p); err == nil {
		t.Error("expected validation error for duplicate public key")
	}
}

func TestValidateRejectsEmptyBlock(t *testing.T) {
	p := newTestPacker(t)
	block := &BoundWitness{}

	if err := block.Validate(p); err == nil {
		t.Error("expected validation error for empty block")
	}
}

func TestBoundWitnessRoundTrip(t *testing.T) {
	p := newTestPacker(t)
	block := buildSignedBlock(t, p, twoSigners(t), []heuristic.RSSI{-5, -10})

	encoded, err := p.Serialize(block, MajorBoundWitness, MinorBoundWitness, packer.Typed)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	decoded, err := p.Deserialize(encoded)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	roundTripped, ok := decoded.(*BoundWitness)
	if !ok {
		t.Fatalf("decoded value is not a *BoundWitness: %T", decoded)
	}

	if err := roundTripped.Validate(p); err != nil {
		t.Errorf("round-tripped block should still validate: %v", err)
	}

	if len(roundTripped.PublicKeys) != len(block.PublicKeys) {
		t.Errorf("public key count: got %d, want %d", len(roundTripped.PublicKeys), len(block.PublicKeys))
	}
}

func TestExtractNestedFindsBridgedBlock(t *testing.T) {
	p := newTestPacker(t)
	inner := buildSignedBlock(t, p, twoSigners(t), []heuristic.RSSI{1, 2})

	innerEncoded, err := p.Serialize(inner, MajorBoundWitness, MinorBoundWitness, packer.Typed)
	if err != nil {
		t.Fatalf("serialize inner: %v", err)
	}

	outerSigners := twoSigners(t)
	publicKeys := []xyocrypto.PublicKey{outerSigners[0].PublicKey(), outerSigners[1].PublicKey()}

	bridgeItem := packer.TypedValue{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorBridge, Value: heuristic.Bridge{Encoded: innerEncoded}}
	signedA := []packer.TypedValue{
		{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorChainIndex, Value: heuristic.ChainIndex(0)},
		bridgeItem,
	}
	signedB := []packer.TypedValue{
		{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorChainIndex, Value: heuristic.ChainIndex(0)},
	}

	signingData, err := SigningData(p, publicKeys, [][]packer.TypedValue{signedA, signedB})
	if err != nil {
		t.Fatalf("signing data: %v", err)
	}

	sigA, err := outerSigners[0].Sign(signingData)
	if err != nil {
		t.Fatalf("sign a: %v", err)
	}
	sigB, err := outerSigners[1].Sign(signingData)
	if err != nil {
		t.Fatalf("sign b: %v", err)
	}

	outer := &BoundWitness{
		PublicKeys: publicKeys,
		Payloads: []Payload{
			{SignedHeuristics: signedA},
			{SignedHeuristics: signedB},
		},
		Signatures: []xyocrypto.Signature{sigA, sigB},
	}

	if err := outer.Validate(p); err != nil {
		t.Fatalf("outer block should validate: %v", err)
	}

	nested, err := ExtractNested(p, outer)
	if err != nil {
		t.Fatalf("extract nested: %v", err)
	}

	if len(nested) != 1 {
		t.Fatalf("expected 1 nested block, got %d", len(nested))
	}

	if err := nested[0].Validate(p); err != nil {
		t.Errorf("nested block should validate: %v", err)
	}
}
