// Package driver owns a peer's network pipe and drives one side of a
// zig-zag negotiation over it: catalogue-header framing on the first
// outbound message, then a plain 4-byte length-prefixed exchange for
// every transfer afterward.
package driver

import "errors"

// ErrPeerDisconnected is returned when the pipe's disconnect handler fires
// while a send is outstanding or a step is suspended.
var ErrPeerDisconnected = errors.New("driver: peer disconnected")

// Pipe is an arbitrary bidirectional byte-stream abstraction. The length
// framing itself is the transport's responsibility (spec.md §4.4); Pipe's
// contract is one opaque message in, one opaque message out.
type Pipe interface {
	// Send transmits data. If awaitResponse is true, Send blocks until
	// the peer's response arrives (or the peer disconnects) and returns
	// it; otherwise Send returns as soon as the bytes are handed to the
	// transport and the returned slice is nil.
	Send(data []byte, awaitResponse bool) ([]byte, error)

	// OnPeerDisconnect registers cb to run when the peer disconnects.
	// The returned function unregisters cb.
	OnPeerDisconnect(cb func()) (unregister func())

	// Close releases the pipe.
	Close() error
}
