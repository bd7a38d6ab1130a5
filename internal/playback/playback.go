// Package playback plays WAVE buffers received from clients on the local
// output device.
package playback

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zaf/g711"

	"github.com/large-farva/audiod/internal/audio"
	"github.com/large-farva/audiod/internal/wav"
)

// Output starts playing signed 16-bit little-endian PCM. Start returns once
// playback is running; the output releases its device when the buffer has
// been consumed.
type Output interface {
	Start(f audio.CaptureFormat, pcm []byte) error
}

// Broadcaster receives JSON-serialisable events.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Service decodes client audio and hands it to an Output.
type Service struct {
	out Output
	hub Broadcaster
	log *log.Logger
}

func New(out Output, hub Broadcaster, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{out: out, hub: hub, log: logger}
}

// Play reads a complete WAVE file from r and starts playing it. It returns
// an error wrapping audio.ErrDecode for malformed input and
// audio.ErrUnsupportedFormat when the samples cannot be played.
func (s *Service) Play(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dec, err := wav.Decode(data)
	if err != nil {
		return err
	}

	pcm, err := toS16LE(dec)
	if err != nil {
		return err
	}

	f := audio.NewPCMFormat(dec.Format.SampleRate, 16, dec.Format.Channels, true, false)
	if err := s.out.Start(f, pcm); err != nil {
		return fmt.Errorf("%w: start output: %v", audio.ErrUnsupportedFormat, err)
	}

	frames := int64(len(dec.Samples) / dec.Format.Channels)
	dur := time.Duration(float64(frames) / f.SampleRate * float64(time.Second))
	s.log.Printf("playback: %s, %d frames (%s)", dec.Format, frames, dur.Round(time.Millisecond))
	s.broadcast(map[string]any{
		"type":     "playback",
		"format":   dec.Format,
		"frames":   frames,
		"duration": dur.Seconds(),
	})
	return nil
}

func (s *Service) broadcast(v map[string]any) {
	if s.hub == nil {
		return
	}
	v["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	v["component"] = "playback"
	s.hub.BroadcastJSON(v)
}

// toS16LE converts decoded samples to interleaved signed 16-bit
// little-endian PCM.
func toS16LE(d *wav.Decoded) ([]byte, error) {
	var conv func(int) int16
	f := d.Format
	switch f.Encoding {
	case audio.ULaw:
		conv = func(v int) int16 { return g711.DecodeUlawFrame(uint8(v)) }
	case audio.ALaw:
		conv = func(v int) int16 { return g711.DecodeAlawFrame(uint8(v)) }
	case audio.PCMSigned, audio.PCMUnsigned:
		switch f.BitsPerSample {
		case 8:
			conv = func(v int) int16 { return int16((v - 128) << 8) }
		case 16:
			conv = func(v int) int16 { return int16(v) }
		case 24:
			conv = func(v int) int16 { return int16(v >> 8) }
		case 32:
			conv = func(v int) int16 { return int16(v >> 16) }
		}
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: cannot play %s", audio.ErrUnsupportedFormat, f)
	}

	out := make([]byte, 2*len(d.Samples))
	for i, v := range d.Samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(conv(v)))
	}
	return out, nil
}
