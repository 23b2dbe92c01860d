package verifier

import "errors"

// ErrChainLinkageInvalid is the reason reported when a block's index,
// previous-hash, or next-public-key commitment does not chain onto the
// block before it.
var ErrChainLinkageInvalid = errors.New("verifier: chain linkage invalid")

// ErrMissingChainIndex is a more specific ErrChainLinkageInvalid cause: the
// participant's signed heuristics carry no ChainIndex at all.
var ErrMissingChainIndex = errors.New("verifier: missing chain index")

// ErrUnexpectedChainIndex reports a ChainIndex present but not equal to the
// expected sequential value.
var ErrUnexpectedChainIndex = errors.New("verifier: unexpected chain index")

// ErrMissingPreviousHash reports a block at position k >= 1 whose
// participant carries no PreviousHash heuristic.
var ErrMissingPreviousHash = errors.New("verifier: missing previous hash")

// ErrPreviousHashMismatch reports a PreviousHash that does not match the
// hash of the block before it.
var ErrPreviousHashMismatch = errors.New("verifier: previous hash mismatch")

// ErrNextPublicKeyViolation reports a block whose participant's public key
// does not match the NextPublicKey commitment made in the previous block.
var ErrNextPublicKeyViolation = errors.New("verifier: next public key violation")

// ErrParticipantNotFound reports that no participant in a block carries
// the expected public key.
var ErrParticipantNotFound = errors.New("verifier: participant not found in block")
