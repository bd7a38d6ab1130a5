package wav

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/large-farva/audiod/internal/audio"
)

// WAVE format tags.
const (
	formatPCM  = 1
	formatALaw = 6
	formatULaw = 7
)

// Encoder turns raw captured frames into a WAVE file.
type Encoder struct{}

// Encode wraps frames of raw audio in f into a WAVE container. Trailing
// bytes that do not make up a whole frame are dropped. Big-endian input is
// reordered to the little-endian layout WAVE requires; no other sample
// conversion takes place.
func (Encoder) Encode(raw []byte, f audio.CaptureFormat, frames int64) ([]byte, error) {
	if f.Channels <= 0 || f.SampleRate <= 0 || f.FrameSize <= 0 {
		return nil, fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, f)
	}
	if whole := f.Frames(len(raw)); frames > whole || frames < 0 {
		frames = whole
	}
	raw = raw[:int(frames)*f.FrameSize]

	tag, samples, err := toWAVSamples(raw, f)
	if err != nil {
		return nil, err
	}

	ws := &writeSeeker{}
	enc := gowav.NewEncoder(ws, int(f.SampleRate), f.BitsPerSample, f.Channels, tag)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: f.Channels,
			SampleRate:  int(f.SampleRate),
		},
		Data:           samples,
		SourceBitDepth: f.BitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}

	out := ws.Bytes()
	// The encoder leaves a placeholder data size when nothing was written;
	// normalise the header so empty recordings are still valid files.
	if err := Fix(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Supports reports whether Encode can store frames in f without
// converting samples.
func (Encoder) Supports(f audio.CaptureFormat) bool {
	switch f.Encoding {
	case audio.ULaw, audio.ALaw:
		return f.BitsPerSample == 8
	case audio.PCMSigned, audio.PCMUnsigned:
		switch f.BitsPerSample {
		case 8, 16, 24, 32:
			return true
		}
	}
	return false
}

// toWAVSamples unpacks raw into one int per sample in the value range the
// go-audio encoder writes verbatim: unsigned for 8-bit PCM and companded
// formats, signed otherwise.
func toWAVSamples(raw []byte, f audio.CaptureFormat) (int, []int, error) {
	width := f.BytesPerSample()
	samples := make([]int, 0, len(raw)/width)

	switch f.Encoding {
	case audio.ULaw, audio.ALaw:
		if f.BitsPerSample != 8 {
			return 0, nil, fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, f)
		}
		for _, b := range raw {
			samples = append(samples, int(b))
		}
		if f.Encoding == audio.ULaw {
			return formatULaw, samples, nil
		}
		return formatALaw, samples, nil

	case audio.PCMSigned, audio.PCMUnsigned:
	default:
		return 0, nil, fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, f)
	}

	switch f.BitsPerSample {
	case 8:
		for _, b := range raw {
			if f.Encoding == audio.PCMSigned {
				samples = append(samples, int(int8(b))+128)
			} else {
				samples = append(samples, int(b))
			}
		}
		return formatPCM, samples, nil
	case 16, 24, 32:
	default:
		return 0, nil, fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, f)
	}

	bits := uint(f.BitsPerSample)
	for off := 0; off+width <= len(raw); off += width {
		var u uint32
		for i := 0; i < width; i++ {
			b := raw[off+i]
			if f.BigEndian {
				u = u<<8 | uint32(b)
			} else {
				u |= uint32(b) << (8 * uint(i))
			}
		}
		var v int
		if f.Encoding == audio.PCMUnsigned {
			v = int(int64(u) - int64(1)<<(bits-1))
		} else {
			// Sign-extend from the sample width.
			v = int(int32(u<<(32-bits)) >> (32 - bits))
		}
		samples = append(samples, v)
	}
	return formatPCM, samples, nil
}

// writeSeeker is an in-memory io.WriteSeeker for encoders that patch their
// header after the body has been written.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if end := w.pos + len(p); end > len(w.buf) {
		if end > cap(w.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, w.buf)
			w.buf = grown
		} else {
			w.buf = w.buf[:end]
		}
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("writeSeeker: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("writeSeeker: negative position")
	}
	w.pos = int(abs)
	return abs, nil
}

// Bytes returns the written contents.
func (w *writeSeeker) Bytes() []byte {
	return w.buf
}
