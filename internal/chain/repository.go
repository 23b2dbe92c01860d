// Package chain holds and advances a peer's origin-chain continuity state:
// the pending index, the previous block hash, the active and waiting signer
// sets, and the next-public-key commitment.
package chain

import "xyonode/internal/xyocrypto"

// Repository is the origin-chain continuity state for one peer. All
// mutating operations are serialized by the implementation (single-writer);
// the getters may be called concurrently with a writer and must observe a
// consistent snapshot.
type Repository interface {
	// GetIndex returns the current pending-block index.
	GetIndex() (uint64, error)

	// GetPreviousHash returns the hash of the most recently committed
	// block, or ok=false at genesis.
	GetPreviousHash() (hash xyocrypto.Hash, ok bool, err error)

	// GetSigners returns a copy of the current signer set.
	GetSigners() ([]xyocrypto.PublicKey, error)

	// GetWaitingSigners returns a copy of the signers queued to rotate in.
	GetWaitingSigners() ([]xyocrypto.PublicKey, error)

	// GetGenesisSigner returns current_signers[0], or ok=false if no
	// signer has ever been set.
	GetGenesisSigner() (signer xyocrypto.PublicKey, ok bool, err error)

	// GetNextPublicKey returns the committed next-signer public key, or
	// ok=false if none is committed.
	GetNextPublicKey() (key xyocrypto.PublicKey, ok bool, err error)

	// AddSigner appends s to the waiting signer queue.
	AddSigner(s xyocrypto.PublicKey) error

	// RemoveOldestSigner pops the oldest non-genesis signer from the
	// current signer set. Returns ErrNoRotatableSigners if only the
	// genesis signer remains.
	RemoveOldestSigner() error

	// SetCurrentSigners replaces the current signer set wholesale. It
	// leaves waiting_signers and next_public_key untouched — this is a
	// bootstrap/recovery operation, not a rotation. No Repository method
	// empties the waiting queue: AddSigner and RemoveOldestSigner do not
	// remove waiting signers, and UpdateOriginChainState drains one per
	// committed block.
	SetCurrentSigners(signers []xyocrypto.PublicKey) error

	// SetNextPublicKey commits the public key the next rotated-in signer
	// will use, ahead of the rotation actually occurring.
	SetNextPublicKey(key xyocrypto.PublicKey) error

	// UpdateOriginChainState atomically advances the chain on a
	// successfully committed block: previous_hash := hash, index += 1,
	// drains one waiting signer into current_signers if any are queued,
	// and clears next_public_key.
	UpdateOriginChainState(hash xyocrypto.Hash) error
}
