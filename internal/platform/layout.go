package platform

import (
	"fmt"

	"github.com/zaf/g711"

	"github.com/large-farva/audiod/internal/audio"
)

// Native is a little-endian sample layout a backend can deliver directly.
type Native int

const (
	NativeU8 Native = iota
	NativeS16
	NativeS24
	NativeS32
)

// Width returns the sample width in bytes.
func (n Native) Width() int {
	switch n {
	case NativeU8:
		return 1
	case NativeS16:
		return 2
	case NativeS24:
		return 3
	default:
		return 4
	}
}

// Plan picks the native layout to capture in for dst and the conversion
// from that layout to dst. The conversion always returns a fresh slice, so
// it is safe to apply to buffers the backend reuses.
func Plan(dst audio.CaptureFormat) (Native, func([]byte) []byte, error) {
	switch dst.Encoding {
	case audio.ULaw:
		if dst.BitsPerSample == 8 {
			return NativeS16, g711.EncodeUlaw, nil
		}
	case audio.ALaw:
		if dst.BitsPerSample == 8 {
			return NativeS16, g711.EncodeAlaw, nil
		}
	case audio.PCMSigned, audio.PCMUnsigned:
		var n Native
		switch dst.BitsPerSample {
		case 8:
			if dst.Encoding == audio.PCMSigned {
				return NativeU8, flipSign(1, false), nil
			}
			return NativeU8, copyBytes, nil
		case 16:
			n = NativeS16
		case 24:
			n = NativeS24
		case 32:
			n = NativeS32
		default:
			return 0, nil, fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, dst)
		}
		w := n.Width()
		switch {
		case dst.Encoding == audio.PCMUnsigned:
			return n, flipSign(w, dst.BigEndian), nil
		case dst.BigEndian:
			return n, swapBytes(w), nil
		default:
			return n, copyBytes, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, dst)
}

func copyBytes(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// swapBytes reverses each w-byte sample.
func swapBytes(w int) func([]byte) []byte {
	return func(in []byte) []byte {
		out := make([]byte, len(in))
		for off := 0; off+w <= len(in); off += w {
			for i := 0; i < w; i++ {
				out[off+i] = in[off+w-1-i]
			}
		}
		return out
	}
}

// flipSign toggles between signed and offset-binary by inverting the most
// significant bit of each little-endian w-byte sample, then optionally
// reorders the sample big-endian.
func flipSign(w int, bigEndian bool) func([]byte) []byte {
	swap := swapBytes(w)
	return func(in []byte) []byte {
		out := make([]byte, len(in))
		copy(out, in)
		for off := w - 1; off < len(out); off += w {
			out[off] ^= 0x80
		}
		if bigEndian {
			return swap(out)
		}
		return out
	}
}
