package xyocrypto

import "errors"

// ErrInvalidKeySize is returned when key material has the wrong length for its algorithm.
var ErrInvalidKeySize = errors.New("xyocrypto: invalid key size")

// ErrInvalidSignatureSize is returned when a signature has the wrong length for its algorithm.
var ErrInvalidSignatureSize = errors.New("xyocrypto: invalid signature size")

// ErrUnknownAlgorithm is returned when an algorithm id has no registered provider.
var ErrUnknownAlgorithm = errors.New("xyocrypto: unknown algorithm")
