// Package audio defines the capture format model shared by the recorder,
// the WAV codec, and the playback path, together with the contracts the
// platform audio backends implement.
package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when no device line or codec can
	// handle the requested format.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrDecode is returned when a container cannot be parsed.
	ErrDecode = errors.New("audio decode failed")
)

// Encoding identifies how samples are represented on the wire.
type Encoding int

const (
	PCMSigned Encoding = iota
	PCMUnsigned
	PCMFloat
	ULaw
	ALaw
)

func (e Encoding) String() string {
	switch e {
	case PCMSigned:
		return "PCM_SIGNED"
	case PCMUnsigned:
		return "PCM_UNSIGNED"
	case PCMFloat:
		return "PCM_FLOAT"
	case ULaw:
		return "ULAW"
	case ALaw:
		return "ALAW"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// MarshalText renders the encoding by name so JSON output stays readable.
func (e Encoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (e *Encoding) UnmarshalText(b []byte) error {
	for c := PCMSigned; c <= ALaw; c++ {
		if c.String() == string(b) {
			*e = c
			return nil
		}
	}
	return fmt.Errorf("unknown encoding %q", b)
}

// CaptureFormat describes a stream of interleaved frames. It is a value
// type; treat it as immutable once built.
type CaptureFormat struct {
	SampleRate    float64  `json:"sample_rate_hz"`
	BitsPerSample int      `json:"bits_per_sample"`
	Channels      int      `json:"channels"`
	Encoding      Encoding `json:"encoding"`
	Signed        bool     `json:"signed"`
	BigEndian     bool     `json:"big_endian"`
	FrameSize     int      `json:"frame_size_bytes"`
}

// NewPCMFormat builds a linear PCM format and derives its frame size.
func NewPCMFormat(sampleRate float64, bits, channels int, signed, bigEndian bool) CaptureFormat {
	enc := PCMSigned
	if !signed {
		enc = PCMUnsigned
	}
	return CaptureFormat{
		SampleRate:    sampleRate,
		BitsPerSample: bits,
		Channels:      channels,
		Encoding:      enc,
		Signed:        signed,
		BigEndian:     bigEndian,
		FrameSize:     FrameSize(bits, channels),
	}
}

// NewCompandedFormat builds an 8-bit mu-law or A-law format.
func NewCompandedFormat(enc Encoding, sampleRate float64, channels int) CaptureFormat {
	return CaptureFormat{
		SampleRate:    sampleRate,
		BitsPerSample: 8,
		Channels:      channels,
		Encoding:      enc,
		Signed:        true,
		FrameSize:     channels,
	}
}

// FrameSize returns ceil(bits/8) * channels.
func FrameSize(bits, channels int) int {
	return (bits + 7) / 8 * channels
}

// BytesPerSample returns the storage width of a single sample.
func (f CaptureFormat) BytesPerSample() int {
	return (f.BitsPerSample + 7) / 8
}

// Frames returns how many whole frames fit in n bytes.
func (f CaptureFormat) Frames(n int) int64 {
	if f.FrameSize <= 0 {
		return 0
	}
	return int64(n / f.FrameSize)
}

func (f CaptureFormat) String() string {
	endian := "little-endian"
	if f.BigEndian {
		endian = "big-endian"
	}
	return fmt.Sprintf("%s %.1f Hz, %d bit, %d ch, %d bytes/frame, %s",
		f.Encoding, f.SampleRate, f.BitsPerSample, f.Channels, f.FrameSize, endian)
}
