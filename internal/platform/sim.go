package platform

import (
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"time"

	"github.com/large-farva/audiod/internal/audio"
)

// SimDevice is a capture device that produces a sine tone in real time.
// It lets the daemon, the CLI, and the tests run the full record/stop
// pipeline without a microphone.
type SimDevice struct {
	ToneHz float64
	Chunk  time.Duration // pacing between pushed blocks
	Log    *log.Logger
}

// NewSimDevice creates a simulated device. toneHz <= 0 uses 440 Hz.
func NewSimDevice(toneHz float64, logger *log.Logger) *SimDevice {
	if toneHz <= 0 {
		toneHz = 440
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &SimDevice{ToneHz: toneHz, Chunk: 100 * time.Millisecond, Log: logger}
}

// Formats reports a fixed capability list shaped like a typical USB
// headset: stereo and mono linear PCM plus a telephony mu-law mode.
func (d *SimDevice) Formats() ([]audio.CaptureFormat, error) {
	return []audio.CaptureFormat{
		audio.NewPCMFormat(48000, 16, 2, true, false),
		audio.NewPCMFormat(16000, 16, 1, true, false),
		audio.NewCompandedFormat(audio.ULaw, 8000, 1),
	}, nil
}

// Open accepts any format Plan can produce.
func (d *SimDevice) Open(f audio.CaptureFormat) (audio.Line, error) {
	if f.Channels <= 0 || f.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, f)
	}
	native, conv, err := Plan(f)
	if err != nil {
		return nil, err
	}
	bufSize := f.FrameSize * int(f.SampleRate) / 2
	return &simLine{
		dev:     d,
		format:  f,
		native:  native,
		conv:    conv,
		q:       NewQueue(bufSize * 4),
		bufSize: bufSize,
		stop:    make(chan struct{}),
	}, nil
}

type simLine struct {
	dev     *SimDevice
	format  audio.CaptureFormat
	native  Native
	conv    func([]byte) []byte
	q       *Queue
	bufSize int

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

func (l *simLine) Start() error {
	l.startOnce.Do(func() {
		l.wg.Add(1)
		go l.generate()
	})
	return nil
}

// generate pushes one chunk of tone per tick until stopped.
func (l *simLine) generate() {
	defer l.wg.Done()

	chunk := l.dev.Chunk
	if chunk <= 0 {
		chunk = 100 * time.Millisecond
	}
	rate := l.format.SampleRate
	framesPerChunk := int(rate * chunk.Seconds())
	if framesPerChunk < 1 {
		framesPerChunk = 1
	}
	w := l.native.Width()
	ch := l.format.Channels
	buf := make([]byte, framesPerChunk*ch*w)

	t := time.NewTicker(chunk)
	defer t.Stop()

	var frame int
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
		}

		for i := 0; i < framesPerChunk; i++ {
			ts := float64(frame+i) / rate
			v := 0.5 * math.Sin(2*math.Pi*l.dev.ToneHz*ts)
			for c := 0; c < ch; c++ {
				putNative(buf[(i*ch+c)*w:], l.native, v)
			}
		}
		frame += framesPerChunk
		l.q.Push(l.conv(buf))
	}
}

func (l *simLine) Read(p []byte) (int, error) { return l.q.Read(p) }

func (l *simLine) Stop() error {
	l.stopOnce.Do(func() { close(l.stop) })
	l.wg.Wait()
	return nil
}

func (l *simLine) Drain() error {
	l.q.Drain(time.Second)
	return nil
}

func (l *simLine) Close() error {
	_ = l.Stop()
	l.q.Close()
	if n := l.q.Dropped(); n > 0 {
		l.dev.Log.Printf("sim: dropped %d bytes the reader did not keep up with", n)
	}
	return nil
}

func (l *simLine) BufferSize() int { return l.bufSize }

// putNative writes v in [-1, 1] as one little-endian sample.
func putNative(dst []byte, n Native, v float64) {
	switch n {
	case NativeU8:
		dst[0] = byte(int(v*127) + 128)
	case NativeS16:
		s := int16(v * math.MaxInt16)
		dst[0], dst[1] = byte(s), byte(s>>8)
	case NativeS24:
		s := int32(v * (1<<23 - 1))
		dst[0], dst[1], dst[2] = byte(s), byte(s>>8), byte(s>>16)
	case NativeS32:
		s := int32(v * math.MaxInt32)
		dst[0], dst[1], dst[2], dst[3] = byte(s), byte(s>>8), byte(s>>16), byte(s>>24)
	}
}

// SimOutput pretends to play audio: it logs the request and holds the
// "device" for the clip's duration.
type SimOutput struct {
	Log *log.Logger

	mu     sync.Mutex
	played int
}

// NewSimOutput creates a simulated playback output.
func NewSimOutput(logger *log.Logger) *SimOutput {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &SimOutput{Log: logger}
}

// Start returns immediately; the clip "plays" on its own goroutine.
func (o *SimOutput) Start(f audio.CaptureFormat, pcm []byte) error {
	if f.Channels <= 0 || f.SampleRate <= 0 || f.FrameSize <= 0 {
		return fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, f)
	}
	d := time.Duration(float64(f.Frames(len(pcm))) / f.SampleRate * float64(time.Second))

	o.mu.Lock()
	o.played++
	o.mu.Unlock()

	o.Log.Printf("sim: playing %s of %s", d.Truncate(time.Millisecond), f)
	go func() {
		time.Sleep(d)
		o.Log.Printf("sim: playback finished")
	}()
	return nil
}

// Played returns how many clips have been started.
func (o *SimOutput) Played() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.played
}
