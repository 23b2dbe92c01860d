package chain

import "errors"

// ErrNoRotatableSigners is returned when a rotation is requested but no
// signer beyond the genesis signer exists to remove.
var ErrNoRotatableSigners = errors.New("chain: no rotatable signers")

// ErrRepositoryUnavailable is returned when the backing store cannot be
// reached (a failed Pebble read/write, a closed repository).
var ErrRepositoryUnavailable = errors.New("chain: repository unavailable")

// ErrUnknownSigner names a public key the repository has never seen.
// Neither MemRepository nor PebbleRepository returns it.
var ErrUnknownSigner = errors.New("chain: unknown signer")
