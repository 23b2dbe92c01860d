package packer

import (
	"encoding/binary"
	"fmt"
)

// frameUntyped prepends a width-byte big-endian length (counting itself)
// to raw. width == 0 means raw is already fixed-length and carries no prefix.
func frameUntyped(raw []byte, width int) []byte {
	if width == 0 {
		return raw
	}

	total := width + len(raw)
	out := make([]byte, total)
	putSize(out[:width], uint64(total), width)
	copy(out[width:], raw)

	return out
}

// frameTyped prepends the two tag bytes and an Untyped-style length prefix.
func frameTyped(major, minor byte, raw []byte, width int) []byte {
	untyped := frameUntyped(raw, width)

	out := make([]byte, 2+len(untyped))
	out[0] = major
	out[1] = minor
	copy(out[2:], untyped)

	return out
}

// readSizedPayload splits data into (payload, frameLen) for a value whose
// size prefix is width bytes wide (0 meaning fixed-size, fixedSize bytes).
func readSizedPayload(data []byte, width, fixedSize int) (payload []byte, frameLen int, err error) {
	if width == 0 {
		if len(data) < fixedSize {
			return nil, 0, fmt.Errorf("need %d fixed bytes, have %d: %w", fixedSize, len(data), ErrMalformed)
		}

		return data[:fixedSize], fixedSize, nil
	}

	if len(data) < width {
		return nil, 0, fmt.Errorf("need %d size-prefix bytes, have %d: %w", width, len(data), ErrMalformed)
	}

	total := int(getSize(data[:width], width))
	if total < width {
		return nil, 0, fmt.Errorf("size prefix %d shorter than its own width %d: %w", total, width, ErrMalformed)
	}

	if len(data) < total {
		return nil, 0, fmt.Errorf("need %d framed bytes, have %d: %w", total, len(data), ErrMalformed)
	}

	return data[width:total], total, nil
}

// putSize writes n as a big-endian integer occupying width bytes.
func putSize(dst []byte, n uint64, width int) {
	switch width {
	case 1:
		dst[0] = byte(n)
	case 2:
		binary.BigEndian.PutUint16(dst, uint16(n))
	case 4:
		binary.BigEndian.PutUint32(dst, uint32(n))
	default:
		panic(fmt.Sprintf("packer: unsupported size prefix width %d", width))
	}
}

// getSize reads a big-endian integer occupying width bytes.
func getSize(src []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(src))
	case 4:
		return uint64(binary.BigEndian.Uint32(src))
	default:
		panic(fmt.Sprintf("packer: unsupported size prefix width %d", width))
	}
}
