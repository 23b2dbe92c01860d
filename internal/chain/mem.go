package chain

import (
	"sync"

	"xyonode/internal/xyocrypto"
)

// MemRepository is a mutex-guarded, in-memory Repository. It is the default
// backend and the one exercised by the negotiation and verifier test suites.
type MemRepository struct {
	mu sync.Mutex

	index          uint64
	previousHash   xyocrypto.Hash
	hasPrevious    bool
	currentSigners []xyocrypto.PublicKey
	waitingSigners []xyocrypto.PublicKey
	nextPublicKey  xyocrypto.PublicKey
	hasNextKey     bool
}

// NewMemRepository returns an empty repository at genesis (index 0, no
// previous hash, no signers).
func NewMemRepository() *MemRepository {
	return &MemRepository{}
}

func (r *MemRepository) GetIndex() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.index, nil
}

func (r *MemRepository) GetPreviousHash() (xyocrypto.Hash, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.previousHash, r.hasPrevious, nil
}

func (r *MemRepository) GetSigners() ([]xyocrypto.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]xyocrypto.PublicKey, len(r.currentSigners))
	copy(out, r.currentSigners)

	return out, nil
}

func (r *MemRepository) GetWaitingSigners() ([]xyocrypto.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]xyocrypto.PublicKey, len(r.waitingSigners))
	copy(out, r.waitingSigners)

	return out, nil
}

func (r *MemRepository) GetGenesisSigner() (xyocrypto.PublicKey, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.currentSigners) == 0 {
		return nil, false, nil
	}

	return r.currentSigners[0], true, nil
}

func (r *MemRepository) GetNextPublicKey() (xyocrypto.PublicKey, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.nextPublicKey, r.hasNextKey, nil
}

func (r *MemRepository) AddSigner(s xyocrypto.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waitingSigners = append(r.waitingSigners, s)

	return nil
}

func (r *MemRepository) RemoveOldestSigner() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// current_signers[0] is the genesis signer and is never removed; a
	// rotatable signer is one beyond it.
	if len(r.currentSigners) < 2 {
		return ErrNoRotatableSigners
	}

	r.currentSigners = append(r.currentSigners[:1:1], r.currentSigners[2:]...)

	return nil
}

// SetCurrentSigners replaces current_signers wholesale. See the Repository
// doc comment: waiting_signers and next_public_key are deliberately left
// untouched, per the bootstrap/recovery semantics this call is for.
func (r *MemRepository) SetCurrentSigners(signers []xyocrypto.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentSigners = append([]xyocrypto.PublicKey(nil), signers...)

	return nil
}

func (r *MemRepository) SetNextPublicKey(key xyocrypto.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextPublicKey = key
	r.hasNextKey = true

	return nil
}

func (r *MemRepository) UpdateOriginChainState(hash xyocrypto.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.previousHash = hash
	r.hasPrevious = true
	r.index++

	if len(r.waitingSigners) > 0 {
		r.currentSigners = append(r.currentSigners, r.waitingSigners[0])
		r.waitingSigners = append(r.waitingSigners[:0:0], r.waitingSigners[1:]...)
	}

	r.nextPublicKey = nil
	r.hasNextKey = false

	return nil
}
