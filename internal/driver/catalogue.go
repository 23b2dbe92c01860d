package driver

import (
	"encoding/binary"
	"fmt"
)

// CatalogueHeaderSize is the fixed size, in bytes, of the catalogue-item
// bitmask that follows the header's own one-byte size field.
const CatalogueHeaderSize = 4

// BitBoundWitness is the catalogue bit announcing this pipe carries a
// bound-witness negotiation. The remaining 31 bits are reserved for future
// catalogue items.
const BitBoundWitness uint32 = 1 << 0

// prependCatalogueHeader prepends the one-time catalogue header (1-byte
// size + 4-byte bitmask) to data, for the first outbound message of an
// exchange only.
func prependCatalogueHeader(bitmask uint32, data []byte) []byte {
	out := make([]byte, 1+CatalogueHeaderSize+len(data))
	out[0] = CatalogueHeaderSize
	binary.BigEndian.PutUint32(out[1:1+CatalogueHeaderSize], bitmask)
	copy(out[1+CatalogueHeaderSize:], data)

	return out
}

// PeekCatalogue reports the catalogue bitmask of the first message of an
// exchange without consuming it, for a transport to route the message to
// the right handler before that handler parses it for real.
func PeekCatalogue(data []byte) (bitmask uint32, ok bool) {
	bitmask, _, err := splitCatalogueHeader(data)
	return bitmask, err == nil
}

// splitCatalogueHeader parses and strips a catalogue header from the first
// inbound message of an exchange, returning the bitmask and the remaining
// payload.
func splitCatalogueHeader(data []byte) (bitmask uint32, rest []byte, err error) {
	if len(data) < 1 {
		return 0, nil, fmt.Errorf("driver: catalogue header: empty message")
	}

	size := int(data[0])
	if size != CatalogueHeaderSize {
		return 0, nil, fmt.Errorf("driver: catalogue header: unexpected size %d", size)
	}

	if len(data) < 1+size {
		return 0, nil, fmt.Errorf("driver: catalogue header: truncated")
	}

	bitmask = binary.BigEndian.Uint32(data[1 : 1+size])

	return bitmask, data[1+size:], nil
}
