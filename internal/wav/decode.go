package wav

import (
	"bytes"
	"fmt"
	"strings"

	gowav "github.com/go-audio/wav"

	"github.com/large-farva/audiod/internal/audio"
)

// Decoded holds the samples of a parsed WAVE file. Samples are one int per
// sample, interleaved, in the container's native value range: unsigned for
// 8-bit PCM and the raw code byte for mu-law and A-law.
type Decoded struct {
	Format  audio.CaptureFormat
	Samples []int
}

// Decode parses a complete WAVE file held in b. Containers whose declared
// sizes run past the end of the buffer are rejected with ErrDecode, which is
// what unpatched streaming output looks like; run Fix on those first.
func Decode(b []byte) (*Decoded, error) {
	if err := checkSizes(b); err != nil {
		return nil, err
	}

	d := gowav.NewDecoder(bytes.NewReader(b))
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", audio.ErrDecode, err)
	}
	if d.NumChans < 1 || d.BitDepth < 8 || d.SampleRate < 1 {
		return nil, fmt.Errorf("%w: invalid fmt chunk (%d ch, %d bit, %d Hz)",
			audio.ErrDecode, d.NumChans, d.BitDepth, d.SampleRate)
	}

	f, err := formatOf(d.WavAudioFormat, int(d.BitDepth), int(d.NumChans), float64(d.SampleRate))
	if err != nil {
		return nil, err
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", audio.ErrDecode, err)
	}
	return &Decoded{Format: f, Samples: buf.Data}, nil
}

// checkSizes validates the RIFF header and, for the canonical layout, the
// data chunk size against the actual buffer length.
func checkSizes(b []byte) error {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return fmt.Errorf("%w: not a RIFF/WAVE container", audio.ErrDecode)
	}
	if riff := int64(uint32LE(b, riffSizeOffset)); riff+8 > int64(len(b)) {
		return fmt.Errorf("%w: chunk size too big (RIFF declares %d bytes, have %d)", audio.ErrDecode, riff+8, len(b))
	}
	if len(b) >= HeaderSize && strings.EqualFold(string(b[chunkIDOffset:chunkIDOffset+4]), "data") {
		if data := int64(uint32LE(b, dataSizeOffset)); data > int64(len(b)-HeaderSize) {
			return fmt.Errorf("%w: chunk size too big (data declares %d bytes, have %d)", audio.ErrDecode, data, len(b)-HeaderSize)
		}
	}
	return nil
}

func formatOf(tag uint16, bits, channels int, rate float64) (audio.CaptureFormat, error) {
	switch tag {
	case formatPCM:
		// WAVE stores 8-bit PCM unsigned and wider samples signed.
		return audio.NewPCMFormat(rate, bits, channels, bits > 8, false), nil
	case formatULaw:
		return audio.NewCompandedFormat(audio.ULaw, rate, channels), nil
	case formatALaw:
		return audio.NewCompandedFormat(audio.ALaw, rate, channels), nil
	default:
		return audio.CaptureFormat{}, fmt.Errorf("%w: WAVE format tag %d", audio.ErrUnsupportedFormat, tag)
	}
}
