package xyocrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// Ed25519PublicKey wraps an ed25519.PublicKey as a PublicKey.
type Ed25519PublicKey struct {
	key ed25519.PublicKey
}

// NewEd25519PublicKey wraps raw ed25519 public key bytes.
func NewEd25519PublicKey(raw []byte) (*Ed25519PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 public key: %w", ErrInvalidKeySize)
	}

	key := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(key, raw)

	return &Ed25519PublicKey{key: key}, nil
}

func (k *Ed25519PublicKey) Algorithm() Algorithm { return AlgEd25519 }
func (k *Ed25519PublicKey) Bytes() []byte        { return k.key }

func (k *Ed25519PublicKey) Equal(other PublicKey) bool {
	o, ok := other.(*Ed25519PublicKey)
	return ok && k.key.Equal(o.key)
}

func (k *Ed25519PublicKey) Verify(data []byte, sig Signature) bool {
	if sig.Algorithm != AlgEd25519 || len(sig.Bytes) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(k.key, data, sig.Bytes)
}

// Ed25519Signer holds an ed25519 private key and signs on its own behalf.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  *Ed25519PublicKey
}

// NewEd25519Signer generates a fresh ed25519 key pair.
func NewEd25519Signer() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}

	return &Ed25519Signer{priv: priv, pub: &Ed25519PublicKey{key: pub}}, nil
}

// NewEd25519SignerFromKey builds a signer from existing private key material.
func NewEd25519SignerFromKey(priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519 private key: %w", ErrInvalidKeySize)
	}

	pub := priv.Public().(ed25519.PublicKey)

	return &Ed25519Signer{priv: priv, pub: &Ed25519PublicKey{key: pub}}, nil
}

func (s *Ed25519Signer) PublicKey() PublicKey { return s.pub }

func (s *Ed25519Signer) Sign(data []byte) (Signature, error) {
	return Signature{Algorithm: AlgEd25519, Bytes: ed25519.Sign(s.priv, data)}, nil
}
