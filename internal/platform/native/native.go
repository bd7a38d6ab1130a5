// Package native binds the recorder and player to the host's audio stack
// through miniaudio (via malgo). It needs cgo and real devices, so it is
// exercised by running the daemon rather than by unit tests.
package native

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/large-farva/audiod/internal/audio"
	"github.com/large-farva/audiod/internal/platform"
)

// Backend owns a miniaudio context and hands out capture lines and
// playback starts on the default devices.
type Backend struct {
	ctx *malgo.AllocatedContext
	log *log.Logger

	// AnyRate and AnyChannels stand in for devices that report a wildcard
	// (zero) rate or channel count in their native format list.
	AnyRate     float64
	AnyChannels int
}

// New initialises miniaudio with the platform's default backend order.
func New(logger *log.Logger) (*Backend, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logger.Printf("miniaudio: %s", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Backend{ctx: ctx, log: logger, AnyRate: 16000, AnyChannels: 1}, nil
}

// Close releases the miniaudio context.
func (b *Backend) Close() error {
	err := b.ctx.Uninit()
	b.ctx.Free()
	return err
}

// Formats lists the native formats of the default capture device, in the
// order the driver reports them.
func (b *Backend) Formats() ([]audio.CaptureFormat, error) {
	devices, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no capture device present", audio.ErrUnsupportedFormat)
	}

	dev := devices[0]
	for _, d := range devices {
		if d.IsDefault != 0 {
			dev = d
			break
		}
	}

	info, err := b.ctx.DeviceInfo(malgo.Capture, dev.ID, malgo.Shared)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", dev.Name(), err)
	}

	var out []audio.CaptureFormat
	for i := 0; i < int(info.FormatCount) && i < len(info.Formats); i++ {
		df := info.Formats[i]
		rate := float64(df.SampleRate)
		if rate == 0 {
			rate = b.AnyRate
		}
		channels := int(df.Channels)
		if channels == 0 {
			channels = b.AnyChannels
		}
		switch df.Format {
		case malgo.FormatU8:
			out = append(out, audio.NewPCMFormat(rate, 8, channels, false, false))
		case malgo.FormatS16:
			out = append(out, audio.NewPCMFormat(rate, 16, channels, true, false))
		case malgo.FormatS24:
			out = append(out, audio.NewPCMFormat(rate, 24, channels, true, false))
		case malgo.FormatS32:
			out = append(out, audio.NewPCMFormat(rate, 32, channels, true, false))
		case malgo.FormatF32:
			out = append(out, audio.CaptureFormat{
				SampleRate:    rate,
				BitsPerSample: 32,
				Channels:      channels,
				Encoding:      audio.PCMFloat,
				Signed:        true,
				FrameSize:     audio.FrameSize(32, channels),
			})
		}
	}
	return out, nil
}

// Open initialises a capture device for f. miniaudio converts rate and
// channel count itself; sample layout changes it cannot do (big-endian
// order, mu-law) are applied to each callback buffer.
func (b *Backend) Open(f audio.CaptureFormat) (audio.Line, error) {
	native, conv, err := platform.Plan(f)
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgoFormat(native)
	cfg.Capture.Channels = uint32(f.Channels)
	cfg.SampleRate = uint32(f.SampleRate)

	// Half a second of audio, matching the usual default line buffer.
	bufSize := f.FrameSize * int(f.SampleRate) / 2
	q := platform.NewQueue(bufSize * 8)

	dev, err := malgo.InitDevice(b.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			q.Push(conv(in))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", audio.ErrUnsupportedFormat, f, err)
	}

	return &line{dev: dev, q: q, bufSize: bufSize, log: b.log}, nil
}

type line struct {
	dev     *malgo.Device
	q       *platform.Queue
	bufSize int
	log     *log.Logger

	closeOnce sync.Once
}

func (l *line) Start() error { return l.dev.Start() }

func (l *line) Read(p []byte) (int, error) { return l.q.Read(p) }

func (l *line) Stop() error { return l.dev.Stop() }

func (l *line) Drain() error {
	l.q.Drain(2 * time.Second)
	return nil
}

func (l *line) Close() error {
	l.closeOnce.Do(func() {
		l.q.Close()
		l.dev.Uninit()
		if n := l.q.Dropped(); n > 0 {
			l.log.Printf("capture line: dropped %d bytes", n)
		}
	})
	return nil
}

func (l *line) BufferSize() int { return l.bufSize }

// Start plays signed 16-bit little-endian PCM on the default output
// device. It returns once the device is running; the device is released
// on its own goroutine after the clip has been consumed.
func (b *Backend) Start(f audio.CaptureFormat, pcm []byte) error {
	if f.BitsPerSample != 16 || f.Encoding != audio.PCMSigned || f.BigEndian {
		return fmt.Errorf("%w: playback needs S16LE, got %s", audio.ErrUnsupportedFormat, f)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(f.Channels)
	cfg.SampleRate = uint32(f.SampleRate)

	r := bytes.NewReader(pcm)
	done := make(chan struct{})
	var once sync.Once

	dev, err := malgo.InitDevice(b.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			n, _ := io.ReadFull(r, out)
			if n < len(out) {
				clear(out[n:])
				once.Do(func() { close(done) })
			}
		},
	})
	if err != nil {
		return fmt.Errorf("%w: open playback device: %v", audio.ErrUnsupportedFormat, err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("%w: start playback: %v", audio.ErrUnsupportedFormat, err)
	}

	go func() {
		<-done
		// Let the last period reach the speaker before tearing down.
		time.Sleep(100 * time.Millisecond)
		_ = dev.Stop()
		dev.Uninit()
	}()
	return nil
}

func malgoFormat(n platform.Native) malgo.FormatType {
	switch n {
	case platform.NativeU8:
		return malgo.FormatU8
	case platform.NativeS16:
		return malgo.FormatS16
	case platform.NativeS24:
		return malgo.FormatS24
	default:
		return malgo.FormatS32
	}
}
