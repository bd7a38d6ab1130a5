package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/audiod/internal/audio"
)

// State is the lifecycle stage of a recording session.
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
	StateStopping  State = "STOPPING"
	StateFinished  State = "FINISHED"
	StateFailed    State = "FAILED"
)

// Info is a point-in-time snapshot of a session for status reporting.
type Info struct {
	ID            string               `json:"id"`
	State         State                `json:"state"`
	Format        audio.CaptureFormat  `json:"format"`
	Preferred     *audio.CaptureFormat `json:"preferred,omitempty"`
	StartedAt     time.Time            `json:"started_at"`
	BytesCaptured int64                `json:"bytes_captured"`
}

// Session is a single recording. The capture goroutine owns the raw
// buffer; the encoded result is written once when the goroutine exits and
// never changes afterwards.
type Session struct {
	id        string
	format    audio.CaptureFormat
	preferred *audio.CaptureFormat
	startedAt time.Time

	line     audio.Line
	enc      Encoder
	hub      Broadcaster
	log      *log.Logger
	debug    bool
	divisor  int
	onState  func(State)
	captured atomic.Int64

	// ctx is the session's cancellation token. Closing the line is what
	// actually ends capture; cancelling ctx only guarantees the loop
	// exits at its next check if the line misbehaves.
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	state  State
	result []byte
	err    error
}

func (s *Session) run() {
	defer close(s.done)
	defer s.cancel()

	var raw bytes.Buffer
	block := make([]byte, blockSize(s.line.BufferSize(), s.divisor, s.format.FrameSize))
	lastReport := time.Now()

	for s.ctx.Err() == nil {
		n, err := s.line.Read(block)
		if n > 0 {
			raw.Write(block[:n])
			s.captured.Add(int64(n))
			if s.debug {
				s.log.Printf("capture %s: read %d bytes", s.id, n)
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			s.log.Printf("capture %s: read error: %v", s.id, err)
		}
		if n <= 0 || err != nil {
			break
		}

		if time.Since(lastReport) >= 2*time.Second {
			s.broadcast(map[string]any{
				"type":   "progress",
				"stage":  "recording",
				"bytes":  s.captured.Load(),
				"detail": fmt.Sprintf("%s captured", formatBytes(s.captured.Load())),
			})
			lastReport = time.Now()
		}
	}

	if err := s.ctx.Err(); err != nil {
		s.finish(nil, fmt.Errorf("capture abandoned: %w", err))
		return
	}

	s.log.Printf("capture %s: recorded %d bytes", s.id, raw.Len())
	out, err := s.enc.Encode(raw.Bytes(), s.format, s.format.Frames(raw.Len()))
	if err != nil {
		err = fmt.Errorf("encode recording: %w", err)
	}
	s.finish(out, err)
}

// finish records the terminal outcome of the capture goroutine.
func (s *Session) finish(out []byte, err error) {
	s.mu.Lock()
	from := s.state
	if err != nil {
		s.state = StateFailed
		s.err = err
	} else {
		s.state = StateFinished
		s.result = out
	}
	to := s.state
	s.mu.Unlock()

	if err != nil {
		s.log.Printf("capture %s: failed: %v", s.id, err)
		s.broadcast(map[string]any{
			"type":    "log",
			"level":   "error",
			"message": fmt.Sprintf("recording %s failed: %v", s.id, err),
		})
	} else {
		s.broadcast(map[string]any{
			"type":    "log",
			"level":   "info",
			"message": fmt.Sprintf("recording %s finished, %s encoded", s.id, formatBytes(int64(len(out)))),
		})
	}
	s.notify(from, to)
}

// beginStop moves the session to STOPPING and launches the stop task,
// which stops, drains, and closes the line. Closing the line is what
// unblocks the capture goroutine's pending read. Safe to call repeatedly.
func (s *Session) beginStop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		from := s.state
		if s.state == StateRecording {
			s.state = StateStopping
		}
		to := s.state
		s.mu.Unlock()
		s.notify(from, to)

		go s.stopLine()
	})
}

func (s *Session) stopLine() {
	if err := s.line.Stop(); err != nil {
		s.log.Printf("capture %s: stop line: %v", s.id, err)
	}
	if err := s.line.Drain(); err != nil {
		s.log.Printf("capture %s: drain line: %v", s.id, err)
	}
	if err := s.line.Close(); err != nil {
		s.log.Printf("capture %s: close line: %v", s.id, err)
	}
}

// wait blocks until the capture goroutine exits, the timeout elapses, or
// ctx is cancelled. On timeout or cancellation the session is abandoned:
// its token is cancelled and its eventual outcome is never reported.
func (s *Session) wait(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-s.done:
		return nil
	case <-t.C:
		s.cancel()
		return fmt.Errorf("%w after %s", ErrStopTimeout, timeout)
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// outcome returns the encoded recording or the capture failure. Only
// meaningful once done is closed.
func (s *Session) outcome() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return nil, errors.New("capture produced no result")
	}
	out := make([]byte, len(s.result))
	copy(out, s.result)
	return out, nil
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return Info{
		ID:            s.id,
		State:         state,
		Format:        s.format,
		Preferred:     s.preferred,
		StartedAt:     s.startedAt,
		BytesCaptured: s.captured.Load(),
	}
}

func (s *Session) notify(from, to State) {
	if from == to {
		return
	}
	if s.onState != nil {
		s.onState(to)
	}
}

func (s *Session) broadcast(v map[string]any) {
	if s.hub == nil {
		return
	}
	v["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	v["component"] = "capture"
	v["session"] = s.id
	s.hub.BroadcastJSON(v)
}

// blockSize is the read size for one capture iteration: a fraction of the
// platform buffer, rounded down to whole frames and never below one frame.
func blockSize(bufferSize, divisor, frameSize int) int {
	if frameSize <= 0 {
		frameSize = 1
	}
	if divisor <= 0 {
		divisor = 1
	}
	n := bufferSize / divisor
	n -= n % frameSize
	if n < frameSize {
		n = frameSize
	}
	return n
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
