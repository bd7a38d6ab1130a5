// Package wav reads, writes, and repairs RIFF/WAVE containers.
//
// Fix is deliberately not a general RIFF parser. It patches the length
// fields of buffers produced by streaming text-to-speech encoders that
// write placeholder sizes because the final length is unknown when the
// header goes out. Those producers emit either a "data" chunk straight
// after a 16-byte fmt chunk, or a fixed-layout "LIST" chunk whose size
// field sits at offset 74.
package wav

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShortBuffer is returned when a buffer is too small for the header
// layout Fix expects.
var ErrShortBuffer = errors.New("wav buffer too short")

const (
	riffSizeOffset = 4
	chunkIDOffset  = 36
	dataSizeOffset = 40
	listSizeOffset = 74

	// HeaderSize is the length of a canonical PCM WAVE header.
	HeaderSize = 44
)

// Fix rewrites the RIFF size field and, depending on the chunk found at
// offset 36, the data or LIST chunk size, in place. Values are derived
// from len(buf) alone, so calling Fix twice is the same as calling it once.
//
// Buffers shorter than 44 bytes (78 for a LIST layout) are rejected
// without modification.
func Fix(buf []byte) error {
	return patch(buf, int64(len(buf)))
}

// patch rewrites the length fields in head, the leading bytes of a
// container whose total length is size.
func patch(head []byte, size int64) error {
	if size < HeaderSize || len(head) < HeaderSize {
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrShortBuffer, size, HeaderSize)
	}

	fileSize := uint32(size - 8)
	chunk := string(head[chunkIDOffset : chunkIDOffset+4])

	switch {
	case strings.EqualFold(chunk, "data"):
		putUint32LE(head, riffSizeOffset, fileSize)
		putUint32LE(head, dataSizeOffset, uint32(size-HeaderSize))
	case strings.EqualFold(chunk, "list"):
		if len(head) < listSizeOffset+4 {
			return fmt.Errorf("%w: LIST layout needs %d bytes, got %d", ErrShortBuffer, listSizeOffset+4, size)
		}
		putUint32LE(head, riffSizeOffset, fileSize)
		putUint32LE(head, listSizeOffset, fileSize-8)
	default:
		putUint32LE(head, riffSizeOffset, fileSize)
	}
	return nil
}

// putUint32LE writes v least significant byte first at buf[off:off+4].
func putUint32LE(buf []byte, off int, v uint32) {
	for i := 0; i < 4; i++ {
		buf[off+i] = byte(v >> (8 * i))
	}
}

func uint32LE(buf []byte, off int) uint32 {
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
}
