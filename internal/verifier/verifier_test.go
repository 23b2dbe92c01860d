package verifier

import (
	"errors"
	"testing"

	"xyonode/internal/boundwitness"
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
	if err := boundwitness.RegisterAll(p); err != nil {
		t.Fatalf("register boundwitness: %v", err)
	}

	return p
}

func newSigner(t *testing.T) xyocrypto.Signer {
	t.Helper()

	s, err := xyocrypto.NewEd25519Signer()
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	return s
}

// buildBlock signs a block from one set of signers, each contributing the
// given signed heuristics at the parallel index.
func buildBlock(t *testing.T, p *packer.Packer, signers []xyocrypto.Signer, signedByParticipant [][]packer.TypedValue) *boundwitness.BoundWitness {
	t.Helper()

	publicKeys := make([]xyocrypto.PublicKey, len(signers))
	for i, s := range signers {
		publicKeys[i] = s.PublicKey()
	}

	signingData, err := boundwitness.SigningData(p, publicKeys, signedByParticipant)
	if err != nil {
		t.Fatalf("signing data: %v", err)
	}

	signatures := make([]xyocrypto.Signature, len(signers))
	payloads := make([]boundwitness.Payload, len(signers))
	for i, s := range signers {
		sig, err := s.Sign(signingData)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		signatures[i] = sig
		payloads[i] = boundwitness.Payload{SignedHeuristics: signedByParticipant[i]}
	}

	return &boundwitness.BoundWitness{PublicKeys: publicKeys, Payloads: payloads, Signatures: signatures}
}

func chainIndexItem(i uint64) packer.TypedValue {
	return packer.TypedValue{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorChainIndex, Value: heuristic.ChainIndex(i)}
}

func rssiItem(v heuristic.RSSI) packer.TypedValue {
	return packer.TypedValue{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorRSSI, Value: v}
}

func previousHashItem(h xyocrypto.Hash) packer.TypedValue {
	return packer.TypedValue{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorPreviousHash, Value: heuristic.PreviousHash(h)}
}

func nextPublicKeyItem(pk xyocrypto.PublicKey) packer.TypedValue {
	return packer.TypedValue{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorNextPublicKey, Value: heuristic.NextPublicKey{Algorithm: pk.Algorithm(), Bytes: pk.Bytes()}}
}

func hashOf(t *testing.T, p *packer.Packer, hasher xyocrypto.Hasher, block *boundwitness.BoundWitness) xyocrypto.Hash {
	t.Helper()

	h, err := hashBlock(p, hasher, block)
	if err != nil {
		t.Fatalf("hash block: %v", err)
	}

	return h
}

// TestS1TwoPeersSingleBlockValid reproduces scenario S1: two peers each
// with one fresh signer complete a bound witness with distinct RSSI
// readings; the single-block chain verifies.
func TestS1TwoPeersSingleBlockValid(t *testing.T) {
	p := newTestPacker(t)
	a, b := newSigner(t), newSigner(t)

	block := buildBlock(t, p, []xyocrypto.Signer{a, b}, [][]packer.TypedValue{
		{chainIndexItem(0), rssiItem(-5)},
		{chainIndexItem(0), rssiItem(-10)},
	})

	report := Verify(p, xyocrypto.Blake3Hasher{}, []*boundwitness.BoundWitness{block}, a.PublicKey())
	if !report.IsValid {
		t.Fatalf("expected valid, got reason: %v", report.Reason)
	}
}

// TestS2MissingChainIndexRejected reproduces scenario S2: both
// participants' signed-heuristics lists are empty, so A's own contribution
// carries no chain index and A's chain of one block is invalid with a
// missing chain index.
func TestS2MissingChainIndexRejected(t *testing.T) {
	p := newTestPacker(t)
	a, b := newSigner(t), newSigner(t)

	block := buildBlock(t, p, []xyocrypto.Signer{a, b}, [][]packer.TypedValue{
		{},
		{},
	})

	report := Verify(p, xyocrypto.Blake3Hasher{}, []*boundwitness.BoundWitness{block}, a.PublicKey())
	if report.IsValid {
		t.Fatal("expected invalid report")
	}
	if !errors.Is(report.Reason, ErrChainLinkageInvalid) || !errors.Is(report.Reason, ErrMissingChainIndex) {
		t.Errorf("expected ErrChainLinkageInvalid/ErrMissingChainIndex, got %v", report.Reason)
	}
	if report.FirstInvalidIndex == nil || *report.FirstInvalidIndex != 0 {
		t.Errorf("expected first invalid index 0, got %v", report.FirstInvalidIndex)
	}
}

// TestS3SequentialLinkageAcceptedOnlyInOrder reproduces scenario S3: two
// sequential bound witnesses on A's chain link correctly forward but not
// reversed.
func TestS3SequentialLinkageAcceptedOnlyInOrder(t *testing.T) {
	p := newTestPacker(t)
	hasher := xyocrypto.Blake3Hasher{}
	a, b := newSigner(t), newSigner(t)

	block1 := buildBlock(t, p, []xyocrypto.Signer{a, b}, [][]packer.TypedValue{
		{chainIndexItem(0)},
		{chainIndexItem(0)},
	})
	hash1 := hashOf(t, p, hasher, block1)

	block2 := buildBlock(t, p, []xyocrypto.Signer{a, b}, [][]packer.TypedValue{
		{chainIndexItem(1), previousHashItem(hash1)},
		{chainIndexItem(1), previousHashItem(hash1)},
	})

	report := Verify(p, hasher, []*boundwitness.BoundWitness{block1, block2}, a.PublicKey())
	if !report.IsValid {
		t.Fatalf("expected [block1, block2] valid, got reason: %v", report.Reason)
	}

	reversed := Verify(p, hasher, []*boundwitness.BoundWitness{block2, block1}, a.PublicKey())
	if reversed.IsValid {
		t.Fatal("expected [block2, block1] invalid")
	}
}

// TestS4WrongChainIndexRejectedAtPosition reproduces scenario S4: B2
// declares ChainIndex(2) instead of 1, rejected at index 1.
func TestS4WrongChainIndexRejectedAtPosition(t *testing.T) {
	p := newTestPacker(t)
	hasher := xyocrypto.Blake3Hasher{}
	a, b := newSigner(t), newSigner(t)

	block1 := buildBlock(t, p, []xyocrypto.Signer{a, b}, [][]packer.TypedValue{
		{chainIndexItem(0)},
		{chainIndexItem(0)},
	})
	hash1 := hashOf(t, p, hasher, block1)

	block2 := buildBlock(t, p, []xyocrypto.Signer{a, b}, [][]packer.TypedValue{
		{chainIndexItem(2), previousHashItem(hash1)},
		{chainIndexItem(2), previousHashItem(hash1)},
	})

	report := Verify(p, hasher, []*boundwitness.BoundWitness{block1, block2}, a.PublicKey())
	if report.IsValid {
		t.Fatal("expected invalid report")
	}
	if report.FirstInvalidIndex == nil || *report.FirstInvalidIndex != 1 {
		t.Errorf("expected first invalid index 1, got %v", report.FirstInvalidIndex)
	}
	if !errors.Is(report.Reason, ErrUnexpectedChainIndex) {
		t.Errorf("expected ErrUnexpectedChainIndex, got %v", report.Reason)
	}
}

// TestS5NextPublicKeyCommitmentEnforced reproduces scenario S5: B1
// commits A's next signer to p; a B2 signed by a different signer is
// rejected, but signed by p it is accepted.
func TestS5NextPublicKeyCommitmentEnforced(t *testing.T) {
	p := newTestPacker(t)
	hasher := xyocrypto.Blake3Hasher{}
	a, b := newSigner(t), newSigner(t)
	next := newSigner(t)
	other := newSigner(t)

	block1 := buildBlock(t, p, []xyocrypto.Signer{a, b}, [][]packer.TypedValue{
		{chainIndexItem(0), nextPublicKeyItem(next.PublicKey())},
		{chainIndexItem(0)},
	})
	hash1 := hashOf(t, p, hasher, block1)

	wrongBlock2 := buildBlock(t, p, []xyocrypto.Signer{other, b}, [][]packer.TypedValue{
		{chainIndexItem(1), previousHashItem(hash1)},
		{chainIndexItem(1), previousHashItem(hash1)},
	})

	rejected := Verify(p, hasher, []*boundwitness.BoundWitness{block1, wrongBlock2}, a.PublicKey())
	if rejected.IsValid {
		t.Fatal("expected rejection when B2 is not signed by the committed key")
	}
	if !errors.Is(rejected.Reason, ErrNextPublicKeyViolation) {
		t.Errorf("expected ErrNextPublicKeyViolation, got %v", rejected.Reason)
	}

	rightBlock2 := buildBlock(t, p, []xyocrypto.Signer{next, b}, [][]packer.TypedValue{
		{chainIndexItem(1), previousHashItem(hash1)},
		{chainIndexItem(1), previousHashItem(hash1)},
	})

	accepted := Verify(p, hasher, []*boundwitness.BoundWitness{block1, rightBlock2}, a.PublicKey())
	if !accepted.IsValid {
		t.Fatalf("expected acceptance when B2 is signed by the committed key, got reason: %v", accepted.Reason)
	}
}

func TestVerifyAcceptsEmptyBlockList(t *testing.T) {
	p := newTestPacker(t)
	a := newSigner(t)

	report := Verify(p, xyocrypto.Blake3Hasher{}, nil, a.PublicKey())
	if !report.IsValid {
		t.Fatalf("expected empty list to be trivially valid, got reason: %v", report.Reason)
	}
}
