package xyocrypto

import (
	"testing"

	"xyonode/internal/packer"
)

func newTestPacker(t *testing.T) *packer.Packer {
	t.Helper()

	p := packer.New()
	if err := RegisterAll(p); err != nil {
		t.Fatalf("register: %v", err)
	}

	return p
}

func TestPublicKeyCodecRoundTrip(t *testing.T) {
	p := newTestPacker(t)

	signer, err := NewEd25519Signer()
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	encoded, err := p.Serialize(signer.PublicKey(), MajorCrypto, MinorPublicKey, packer.Typed)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	decoded, err := p.Deserialize(encoded)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	pk, ok := decoded.(PublicKey)
	if !ok {
		t.Fatalf("decoded value is not a PublicKey: %T", decoded)
	}

	if !pk.Equal(signer.PublicKey()) {
		t.Error("round-tripped public key should equal original")
	}
}

func TestSignatureCodecRoundTrip(t *testing.T) {
	p := newTestPacker(t)

	signer, err := NewEd25519Signer()
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	sig, err := signer.Sign([]byte("data"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	encoded, err := p.Serialize(sig, MajorCrypto, MinorSignature, packer.Typed)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	decoded, err := p.Deserialize(encoded)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	got, ok := decoded.(Signature)
	if !ok {
		t.Fatalf("decoded value is not a Signature: %T", decoded)
	}

	if got.Algorithm != sig.Algorithm || string(got.Bytes) != string(sig.Bytes) {
		t.Error("round-tripped signature should equal original")
	}
}
