package boundwitness

import "errors"

// ErrLengthMismatch is returned when the public-key, payload, and signature
// lists of a block do not all share the same length.
var ErrLengthMismatch = errors.New("boundwitness: parallel list length mismatch")

// ErrEmpty is returned for a block with zero participants.
var ErrEmpty = errors.New("boundwitness: no participants")

// ErrDuplicatePublicKey is returned when the same public key appears twice
// in one block.
var ErrDuplicatePublicKey = errors.New("boundwitness: duplicate public key")

// ErrSignatureInvalid is returned when a participant's signature does not
// verify against the block's canonical signing data.
var ErrSignatureInvalid = errors.New("boundwitness: signature invalid")
