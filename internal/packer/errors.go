package packer

import "errors"

// ErrUnknownType is returned when a (major, minor) pair has no registered codec.
var ErrUnknownType = errors.New("packer: unknown type")

// ErrMalformed is returned when a buffer is truncated or its size prefix is
// inconsistent with the bytes actually present.
var ErrMalformed = errors.New("packer: malformed buffer")

// ErrDuplicateType is returned by Register when (major, minor) is already taken.
var ErrDuplicateType = errors.New("packer: duplicate (major, minor)")

// ErrDuplicateName is returned by Register when the codec name is already taken.
var ErrDuplicateName = errors.New("packer: duplicate codec name")
