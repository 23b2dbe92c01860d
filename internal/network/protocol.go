package network

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// maxMessageSize bounds a single framed message, including its own
	// length prefix.
	maxMessageSize = 16 << 20

	// lengthPrefixSize is the size of the length prefix in bytes.
	lengthPrefixSize = 4
)

// writeMessage writes a length-prefixed message to w. The prefix counts
// itself, per spec.md §6: uint32_be(total_len_including_this_field) ||
// payload.
func writeMessage(w io.Writer, data []byte) error {
	total := lengthPrefixSize + len(data)
	if total > maxMessageSize {
		return fmt.Errorf("message too large: %d > %d", total, maxMessageSize)
	}

	var lengthBuf [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(total))

	if _, err := w.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("write length: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	return nil
}

// readMessage reads a length-prefixed message from r, per writeMessage's
// self-inclusive framing.
func readMessage(r io.Reader) ([]byte, error) {
	var lengthBuf [lengthPrefixSize]byte

	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	total := binary.BigEndian.Uint32(lengthBuf[:])
	if total > maxMessageSize {
		return nil, fmt.Errorf("message too large: %d > %d", total, maxMessageSize)
	}
	if total < lengthPrefixSize {
		return nil, fmt.Errorf("message length %d shorter than its own prefix", total)
	}

	payload := make([]byte, total-lengthPrefixSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	return payload, nil
}
