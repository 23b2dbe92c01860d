package xyocrypto

import "testing"

func TestEd25519SignVerify(t *testing.T) {
	signer, err := NewEd25519Signer()
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	message := []byte("bound witness payload")
	sig, err := signer.Sign(message)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if !signer.PublicKey().Verify(message, sig) {
		t.Error("valid signature should verify")
	}

	if signer.PublicKey().Verify([]byte("tampered"), sig) {
		t.Error("signature should not verify over different data")
	}
}

func TestEd25519PublicKeyRoundTrip(t *testing.T) {
	signer, err := NewEd25519Signer()
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	raw := signer.PublicKey().Bytes()

	reconstructed, err := NewEd25519PublicKey(raw)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}

	if !signer.PublicKey().Equal(reconstructed) {
		t.Error("reconstructed public key should equal original")
	}
}

func TestEd25519PublicKeyWrongSize(t *testing.T) {
	if _, err := NewEd25519PublicKey([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for wrong-size public key")
	}
}
