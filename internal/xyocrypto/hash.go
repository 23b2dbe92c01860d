package xyocrypto

import (
	"fmt"

	"github.com/zeebo/blake3"
)

// Blake3Hasher is the default Hasher, used for block hashes and the
// network dedup filter alike.
type Blake3Hasher struct{}

func (Blake3Hasher) Algorithm() Algorithm { return AlgBlake3 }

func (Blake3Hasher) Hash(data []byte) Hash {
	sum := blake3.Sum256(data)
	return Hash{Algorithm: AlgBlake3, Bytes: sum[:]}
}

// MaxHashEncodedSize bounds EncodeHash's output: one algorithm byte plus
// the longest hash digest this package produces (blake3-256).
const MaxHashEncodedSize = 1 + 32

// EncodeHash renders a Hash as [1-byte algorithm][digest bytes], for
// callers storing a hash outside the packer's own (major, minor) registry.
func EncodeHash(h Hash) ([]byte, error) {
	out := make([]byte, 1+len(h.Bytes))
	out[0] = byte(h.Algorithm)
	copy(out[1:], h.Bytes)

	return out, nil
}

// DecodeHash reverses EncodeHash. An empty input decodes to the zero Hash.
func DecodeHash(raw []byte) (Hash, error) {
	if len(raw) == 0 {
		return Hash{}, nil
	}

	if len(raw) < 1 {
		return Hash{}, fmt.Errorf("hash: malformed encoding")
	}

	return Hash{Algorithm: Algorithm(raw[0]), Bytes: append([]byte(nil), raw[1:]...)}, nil
}
