// Package verifier checks whether a claimed run of blocks is a valid tail
// of one participant's origin chain, short-circuiting on the first failure.
// Per block it checks the block invariants (signatures included), then
// locates the participant's contribution — through the previous block's
// next-public-key commitment when one is pending, so a broken commitment
// is reported before any index or hash check — then chain-index
// sequencing, then previous-hash linkage.
package verifier

import (
	"bytes"
	"fmt"

	"xyonode/internal/boundwitness"
	"xyonode/internal/heuristic"
	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
)

// Report is the verifier's decision: either IsValid with everything else
// zero, or invalid with the index of the first offending block and why.
type Report struct {
	IsValid           bool
	FirstInvalidIndex *int
	Reason            error
}

// Verify checks blocks[0..N) as the claimed tail of one participant's
// origin chain, starting from that participant's genesisPublicKey at
// blocks[0]. hasher must be the same hash provider that produced any
// PreviousHash items inside blocks.
func Verify(p *packer.Packer, hasher xyocrypto.Hasher, blocks []*boundwitness.BoundWitness, genesisPublicKey xyocrypto.PublicKey) Report {
	if len(blocks) == 0 {
		return Report{IsValid: true}
	}

	currentAlgorithm := genesisPublicKey.Algorithm()
	currentKeyBytes := genesisPublicKey.Bytes()
	var pendingNextKey *heuristic.NextPublicKey
	var previousBlock *boundwitness.BoundWitness

	for k, block := range blocks {
		if pendingNextKey != nil {
			currentAlgorithm = pendingNextKey.Algorithm
			currentKeyBytes = pendingNextKey.Bytes
		}

		if err := block.Validate(p); err != nil {
			return invalid(k, err)
		}

		idx, ok := findParticipant(block, currentAlgorithm, currentKeyBytes)
		if !ok {
			if pendingNextKey != nil {
				return invalid(k, fmt.Errorf("%w: %w", ErrChainLinkageInvalid, ErrNextPublicKeyViolation))
			}
			return invalid(k, fmt.Errorf("%w: %w", ErrChainLinkageInvalid, ErrParticipantNotFound))
		}
		payload := block.Payloads[idx]

		chainIndex, ok := findChainIndex(payload)
		if !ok {
			return invalid(k, fmt.Errorf("%w: %w", ErrChainLinkageInvalid, ErrMissingChainIndex))
		}
		if uint64(chainIndex) != uint64(k) {
			return invalid(k, fmt.Errorf("%w: %w", ErrChainLinkageInvalid, ErrUnexpectedChainIndex))
		}

		if k >= 1 {
			previousHash, ok := findPreviousHash(payload)
			if !ok {
				return invalid(k, fmt.Errorf("%w: %w", ErrChainLinkageInvalid, ErrMissingPreviousHash))
			}

			expected, err := hashBlock(p, hasher, previousBlock)
			if err != nil {
				return invalid(k, err)
			}

			if previousHash.Algorithm != expected.Algorithm || !bytes.Equal(previousHash.Bytes, expected.Bytes) {
				return invalid(k, fmt.Errorf("%w: %w", ErrChainLinkageInvalid, ErrPreviousHashMismatch))
			}
		}

		pendingNextKey = findNextPublicKey(payload)
		previousBlock = block
	}

	return Report{IsValid: true}
}

func invalid(index int, reason error) Report {
	i := index
	return Report{IsValid: false, FirstInvalidIndex: &i, Reason: reason}
}

func findParticipant(block *boundwitness.BoundWitness, algorithm xyocrypto.Algorithm, keyBytes []byte) (int, bool) {
	for i, pk := range block.PublicKeys {
		if pk.Algorithm() == algorithm && bytes.Equal(pk.Bytes(), keyBytes) {
			return i, true
		}
	}

	return 0, false
}

func findChainIndex(payload boundwitness.Payload) (heuristic.ChainIndex, bool) {
	for _, item := range payload.SignedHeuristics {
		if item.Major == heuristic.MajorHeuristic && item.Minor == heuristic.MinorChainIndex {
			if ci, ok := item.Value.(heuristic.ChainIndex); ok {
				return ci, true
			}
		}
	}

	return 0, false
}

func findPreviousHash(payload boundwitness.Payload) (heuristic.PreviousHash, bool) {
	for _, item := range payload.SignedHeuristics {
		if item.Major == heuristic.MajorHeuristic && item.Minor == heuristic.MinorPreviousHash {
			if ph, ok := item.Value.(heuristic.PreviousHash); ok {
				return ph, true
			}
		}
	}

	return heuristic.PreviousHash{}, false
}

func findNextPublicKey(payload boundwitness.Payload) *heuristic.NextPublicKey {
	for _, item := range payload.SignedHeuristics {
		if item.Major == heuristic.MajorHeuristic && item.Minor == heuristic.MinorNextPublicKey {
			if npk, ok := item.Value.(heuristic.NextPublicKey); ok {
				return &npk
			}
		}
	}

	return nil
}

func hashBlock(p *packer.Packer, hasher xyocrypto.Hasher, block *boundwitness.BoundWitness) (xyocrypto.Hash, error) {
	encoded, err := p.Serialize(block, boundwitness.MajorBoundWitness, boundwitness.MinorBoundWitness, packer.Typed)
	if err != nil {
		return xyocrypto.Hash{}, fmt.Errorf("verifier: hash block: %w", err)
	}

	return hasher.Hash(encoded), nil
}
