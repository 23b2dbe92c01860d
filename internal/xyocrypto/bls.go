package xyocrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
	"github.com/zeebo/blake3"
)

const (
	// blsPublicKeySize is the size of a compressed BLS12-381 G1 public key.
	blsPublicKeySize = 48
	// blsSignatureSize is the size of a compressed BLS12-381 G2 signature.
	blsSignatureSize = 96
)

// blsDST is the domain separation tag for BLS signatures.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

// BLSPublicKey wraps a compressed BLS12-381 public key as a PublicKey.
type BLSPublicKey struct {
	raw    []byte
	affine *blst.P1Affine
}

// NewBLSPublicKey decompresses a BLS12-381 public key.
func NewBLSPublicKey(raw []byte) (*BLSPublicKey, error) {
	if len(raw) != blsPublicKeySize {
		return nil, fmt.Errorf("bls public key: %w", ErrInvalidKeySize)
	}

	pk := new(blst.P1Affine).Uncompress(raw)
	if pk == nil {
		return nil, fmt.Errorf("bls public key: invalid encoding")
	}

	return &BLSPublicKey{raw: append([]byte(nil), raw...), affine: pk}, nil
}

func (k *BLSPublicKey) Algorithm() Algorithm { return AlgBLS12381 }
func (k *BLSPublicKey) Bytes() []byte        { return k.raw }

func (k *BLSPublicKey) Equal(other PublicKey) bool {
	o, ok := other.(*BLSPublicKey)
	if !ok {
		return false
	}

	if len(k.raw) != len(o.raw) {
		return false
	}

	for i := range k.raw {
		if k.raw[i] != o.raw[i] {
			return false
		}
	}

	return true
}

func (k *BLSPublicKey) Verify(data []byte, sig Signature) bool {
	if sig.Algorithm != AlgBLS12381 || len(sig.Bytes) != blsSignatureSize {
		return false
	}

	s := new(blst.P2Affine).Uncompress(sig.Bytes)
	if s == nil {
		return false
	}

	return s.Verify(true, k.affine, true, data, blsDST)
}

// BLSSigner holds a BLS12-381 private key and signs on its own behalf.
type BLSSigner struct {
	secret *blst.SecretKey
	pub    *BLSPublicKey
}

// NewBLSSigner generates a fresh BLS key pair from a random 32-byte seed.
func NewBLSSigner() (*BLSSigner, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("generate bls seed: %w", err)
	}

	return newBLSSignerFromSeed(seed[:])
}

// DeriveBLSFromEd25519 deterministically derives a BLS key pair from an
// ed25519 identity, the way a node's announcement key is bound to its
// bound-witness identity without minting a second independent secret:
// seed = blake3("xyo-bls-keygen" || ed25519_seed).
func DeriveBLSFromEd25519(priv ed25519.PrivateKey) (*BLSSigner, error) {
	h := blake3.New()
	h.Write([]byte("xyo-bls-keygen"))
	h.Write(priv.Seed())

	var derived [32]byte
	h.Sum(derived[:0])

	return newBLSSignerFromSeed(derived[:])
}

func newBLSSignerFromSeed(seed []byte) (*BLSSigner, error) {
	secret := blst.KeyGen(seed)
	if secret == nil {
		return nil, fmt.Errorf("derive bls key: keygen failed")
	}

	affine := new(blst.P1Affine).From(secret)

	return &BLSSigner{
		secret: secret,
		pub:    &BLSPublicKey{raw: affine.Compress(), affine: affine},
	}, nil
}

func (s *BLSSigner) PublicKey() PublicKey { return s.pub }

func (s *BLSSigner) Sign(data []byte) (Signature, error) {
	sig := new(blst.P2Affine).Sign(s.secret, data, blsDST)
	return Signature{Algorithm: AlgBLS12381, Bytes: sig.Compress()}, nil
}

// AggregateSignatures combines multiple BLS signatures over the same
// message into one. Nothing outside tests calls it: the gossip
// announcement path carries a single signer's signature, and the core
// bound-witness invariants verify one signature per participant.
func AggregateSignatures(signatures []Signature) (Signature, error) {
	if len(signatures) == 0 {
		return Signature{}, fmt.Errorf("aggregate: no signatures")
	}

	sigs := make([]*blst.P2Affine, len(signatures))

	for i, s := range signatures {
		if s.Algorithm != AlgBLS12381 || len(s.Bytes) != blsSignatureSize {
			return Signature{}, fmt.Errorf("aggregate: signature %d: %w", i, ErrInvalidSignatureSize)
		}

		decoded := new(blst.P2Affine).Uncompress(s.Bytes)
		if decoded == nil {
			return Signature{}, fmt.Errorf("aggregate: signature %d: invalid encoding", i)
		}

		sigs[i] = decoded
	}

	agg := new(blst.P2Aggregate)
	if !agg.Aggregate(sigs, true) {
		return Signature{}, fmt.Errorf("aggregate: aggregation failed")
	}

	return Signature{Algorithm: AlgBLS12381, Bytes: agg.ToAffine().Compress()}, nil
}

// VerifyAggregated checks an aggregated BLS signature against one message
// and the aggregate of the given public keys.
func VerifyAggregated(sig Signature, data []byte, keys []*BLSPublicKey) bool {
	if sig.Algorithm != AlgBLS12381 || len(sig.Bytes) != blsSignatureSize || len(keys) == 0 {
		return false
	}

	decoded := new(blst.P2Affine).Uncompress(sig.Bytes)
	if decoded == nil {
		return false
	}

	affines := make([]*blst.P1Affine, len(keys))
	for i, k := range keys {
		affines[i] = k.affine
	}

	aggPK := new(blst.P1Aggregate)
	if !aggPK.Aggregate(affines, true) {
		return false
	}

	return decoded.Verify(true, aggPK.ToAffine(), true, data, blsDST)
}

// BuildSignerBitmap creates a bitmap indicating which co-signers, by index
// into an ordered roster, contributed to an aggregate.
func BuildSignerBitmap(indices []int, total int) []byte {
	bitmap := make([]byte, (total+7)/8)

	for _, idx := range indices {
		if idx >= 0 && idx < total {
			bitmap[idx/8] |= 1 << (idx % 8)
		}
	}

	return bitmap
}

// ParseSignerBitmap extracts the set co-signer indices from a bitmap.
func ParseSignerBitmap(bitmap []byte) []int {
	var indices []int

	for byteIdx, b := range bitmap {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				indices = append(indices, byteIdx*8+bit)
			}
		}
	}

	return indices
}
