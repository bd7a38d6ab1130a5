// Package capture records microphone audio into WAVE buffers. A Manager
// owns the single recording slot; each recording is a Session driven by a
// capture goroutine that reads from a platform line until the line is
// closed by a stop request.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/large-farva/audiod/internal/audio"
)

var (
	// ErrNoOutputProduced is returned by Stop when the recording did not
	// yield an encoded buffer.
	ErrNoOutputProduced = errors.New("no output produced")

	// ErrRecordingActive is returned by Start while another recording is
	// recording or stopping.
	ErrRecordingActive = errors.New("a recording is already in progress")

	// ErrStopTimeout is returned by Stop when the capture goroutine did not
	// finish within the stop timeout.
	ErrStopTimeout = errors.New("capture did not finish before the stop timeout")
)

// Encoder wraps raw frames into a playable container.
type Encoder interface {
	Encode(raw []byte, f audio.CaptureFormat, frames int64) ([]byte, error)
	Supports(f audio.CaptureFormat) bool
}

// Broadcaster receives JSON-serialisable events. *ws.Hub satisfies it.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Options configures a Manager. Zero values fall back to the defaults
// noted on each field.
type Options struct {
	Device  audio.Device
	Encoder Encoder
	Hub     Broadcaster
	Log     *log.Logger

	SampleRate      float64       // 16000
	BitsPerSample   int           // 16
	DefaultChannels int           // 1
	StopTimeout     time.Duration // 10s
	BlockDivisor    int           // 5

	// UseDeviceFormat opens the line with the device's preferred format
	// instead of the fixed target whenever the encoder can store it.
	UseDeviceFormat bool

	// Debug logs every block read from the line.
	Debug bool

	// OnState is called on every recorder state change, including the
	// return to IDLE once a stopped session leaves the slot.
	OnState func(State)
}

// Manager holds at most one active recording. Start and Stop may be called
// from any goroutine.
type Manager struct {
	opts Options

	mu       sync.Mutex
	active   *Session
	starting bool
}

// NewManager creates a Manager with defaults applied.
func NewManager(opts Options) *Manager {
	if opts.Log == nil {
		opts.Log = log.New(io.Discard, "", 0)
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.BitsPerSample <= 0 {
		opts.BitsPerSample = 16
	}
	if opts.DefaultChannels <= 0 {
		opts.DefaultChannels = 1
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 10 * time.Second
	}
	if opts.BlockDivisor <= 0 {
		opts.BlockDivisor = 5
	}
	return &Manager{opts: opts}
}

// Target returns the format Start requests for the given channel count:
// signed big-endian PCM at the configured rate and sample width.
func (m *Manager) Target(channels int) audio.CaptureFormat {
	if channels <= 0 {
		channels = m.opts.DefaultChannels
	}
	return audio.NewPCMFormat(m.opts.SampleRate, m.opts.BitsPerSample, channels, true, true)
}

// Formats queries the device's capability list and the format Pick selects
// from it for minChannels.
func (m *Manager) Formats(minChannels int) (all []audio.CaptureFormat, best audio.CaptureFormat, ok bool, err error) {
	all, err = m.opts.Device.Formats()
	if err != nil {
		return nil, audio.CaptureFormat{}, false, fmt.Errorf("query device formats: %w", err)
	}
	best, ok = audio.Pick(all, minChannels)
	return all, best, ok, nil
}

// Start opens a capture line, starts it, and begins recording in the
// background. channels <= 0 uses the configured default. It fails with
// ErrRecordingActive while another session occupies the slot and with an
// error wrapping audio.ErrUnsupportedFormat when the line cannot be opened
// or started.
//
// The slot is reserved before the device is queried, so concurrent Starts
// are rejected without waiting on device I/O.
func (m *Manager) Start(channels int) (Info, error) {
	if channels <= 0 {
		channels = m.opts.DefaultChannels
	}

	m.mu.Lock()
	switch {
	case m.active != nil:
		id := m.active.id
		m.mu.Unlock()
		return Info{}, fmt.Errorf("%w (session %s)", ErrRecordingActive, id)
	case m.starting:
		m.mu.Unlock()
		return Info{}, fmt.Errorf("%w (session starting)", ErrRecordingActive)
	}
	m.starting = true
	m.mu.Unlock()

	s, err := m.open(channels)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.starting = false
	if err != nil {
		return Info{}, err
	}
	m.active = s
	m.emit(StateRecording)
	s.broadcast(map[string]any{
		"type":    "log",
		"level":   "info",
		"message": fmt.Sprintf("recording %s started: %s", s.id, s.format),
	})

	go s.run()

	return s.Info(), nil
}

// open picks the format, opens the line and starts it. The line is
// running by the time a session is returned, so a stop request can only
// ever follow Start.
func (m *Manager) open(channels int) (*Session, error) {
	target := m.Target(channels)
	formats, best, ok, err := m.Formats(channels)
	if err != nil {
		return nil, err
	}
	for _, f := range formats {
		m.opts.Log.Printf("capture: device offers %s", f)
	}

	chosen := target
	var preferred *audio.CaptureFormat
	if ok {
		preferred = &best
		if m.opts.UseDeviceFormat && m.opts.Encoder.Supports(best) {
			chosen = best
		}
	}
	m.opts.Log.Printf("capture: chosen format is %s", chosen)

	line, err := m.opts.Device.Open(chosen)
	if err != nil {
		if errors.Is(err, audio.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("open capture line: %w", err)
		}
		return nil, fmt.Errorf("%w: %s: %w", audio.ErrUnsupportedFormat, chosen, err)
	}
	if err := line.Start(); err != nil {
		if cerr := line.Close(); cerr != nil {
			m.opts.Log.Printf("capture: close unstarted line: %v", cerr)
		}
		return nil, fmt.Errorf("%w: start capture line: %w", audio.ErrUnsupportedFormat, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        uuid.NewString(),
		format:    chosen,
		preferred: preferred,
		startedAt: time.Now().UTC(),
		line:      line,
		enc:       m.opts.Encoder,
		hub:       m.opts.Hub,
		log:       m.opts.Log,
		debug:     m.opts.Debug,
		divisor:   m.opts.BlockDivisor,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateRecording,
	}
	s.onState = func(st State) { m.sessionState(s, st) }
	return s, nil
}

// Stop ends the active recording and returns the encoded WAVE bytes. With
// no active session it returns (nil, nil); that includes a Start that is
// still opening the device, which has nothing to stop yet.
//
// Stop waits up to the stop timeout, or until ctx is done, for the capture
// goroutine to finish. The slot is cleared whatever the outcome. A session
// that misses the deadline is cancelled and abandoned, and Stop returns an
// error wrapping both ErrNoOutputProduced and ErrStopTimeout.
func (m *Manager) Stop(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	if s == nil {
		return nil, nil
	}

	s.beginStop()
	waitErr := s.wait(ctx, m.opts.StopTimeout)

	m.mu.Lock()
	cleared := m.active == s
	if cleared {
		m.active = nil
	}
	m.mu.Unlock()
	if cleared {
		m.emit(StateIdle)
	}

	if waitErr != nil {
		m.opts.Log.Printf("capture %s: abandoned: %v", s.id, waitErr)
		return nil, fmt.Errorf("%w: %w", ErrNoOutputProduced, waitErr)
	}

	out, err := s.outcome()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoOutputProduced, err)
	}
	return out, nil
}

// IsRecording reports whether the slot is taken: a session is recording
// or stopping, or Start is still opening the device.
func (m *Manager) IsRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil || m.starting
}

// Current returns a snapshot of the active session, if any.
func (m *Manager) Current() (Info, bool) {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	if s == nil {
		return Info{}, false
	}
	return s.Info(), true
}

// Close stops any active recording and discards its output. It is meant
// for daemon shutdown.
func (m *Manager) Close(ctx context.Context) error {
	if !m.IsRecording() {
		return nil
	}
	_, err := m.Stop(ctx)
	return err
}

// sessionState forwards state changes from the session in the slot.
// Abandoned sessions are no longer reported.
func (m *Manager) sessionState(s *Session, st State) {
	m.mu.Lock()
	current := m.active == s
	m.mu.Unlock()
	if current {
		m.emit(st)
	}
}

func (m *Manager) emit(st State) {
	if m.opts.OnState != nil {
		m.opts.OnState(st)
	}
}
