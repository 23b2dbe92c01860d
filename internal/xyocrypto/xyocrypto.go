// Package xyocrypto supplies the hash and signature capability objects the
// protocol core treats as opaque collaborators: a Signer holds private key
// material and can sign bytes, a PublicKey can verify a signature over
// bytes, and a Hasher reduces bytes to a tagged Hash. Every value is tagged
// by an Algorithm id so it can be embedded in the wire format via its
// (major, minor) without the core ever branching on key type.
package xyocrypto

import "bytes"

// Algorithm identifies which cryptographic primitive produced a value.
type Algorithm byte

const (
	// AlgEd25519 tags ed25519 public keys and signatures.
	AlgEd25519 Algorithm = 0x01
	// AlgBLS12381 tags BLS12-381 (minimal-pubkey-size variant: G1 public
	// keys, G2 signatures) public keys and signatures.
	AlgBLS12381 Algorithm = 0x02
	// AlgBlake3 tags blake3-256 hashes.
	AlgBlake3 Algorithm = 0x10
)

// Hash is an opaque byte string tagged by the algorithm that produced it.
// Equality is algorithm-and-byte equality.
type Hash struct {
	Algorithm Algorithm
	Bytes     []byte
}

// Equal reports whether two hashes share an algorithm and byte value.
func (h Hash) Equal(other Hash) bool {
	return h.Algorithm == other.Algorithm && bytes.Equal(h.Bytes, other.Bytes)
}

// Signature is a typed byte string produced by a Signer.
type Signature struct {
	Algorithm Algorithm
	Bytes     []byte
}

// PublicKey is a typed byte string that can verify signatures over bytes.
type PublicKey interface {
	Algorithm() Algorithm
	Bytes() []byte
	Equal(other PublicKey) bool
	Verify(data []byte, sig Signature) bool
}

// Signer holds private key material and can sign bytes on its own behalf.
type Signer interface {
	PublicKey() PublicKey
	Sign(data []byte) (Signature, error)
}

// Hasher reduces bytes to a tagged Hash.
type Hasher interface {
	Algorithm() Algorithm
	Hash(data []byte) Hash
}
