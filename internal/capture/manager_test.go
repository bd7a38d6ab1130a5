package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/audiod/internal/audio"
	"github.com/large-farva/audiod/internal/wav"
)

// fakeLine feeds queued chunks to Read and returns 0 once closed. When
// hang is set, Close does not unblock Read until release is closed.
type fakeLine struct {
	chunks  chan []byte
	closed  chan struct{}
	release chan struct{}
	hang     bool
	bufSize  int
	startErr error

	once  sync.Once
	mu    sync.Mutex
	calls []string
	reads []int
}

func newFakeLine() *fakeLine {
	return &fakeLine{
		chunks:  make(chan []byte, 64),
		closed:  make(chan struct{}),
		release: make(chan struct{}),
		bufSize: 3200,
	}
}

func (l *fakeLine) record(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *fakeLine) Start() error { l.record("start"); return l.startErr }

func (l *fakeLine) Read(p []byte) (int, error) {
	l.mu.Lock()
	l.reads = append(l.reads, len(p))
	l.mu.Unlock()

	if l.hang {
		select {
		case c := <-l.chunks:
			return copy(p, c), nil
		case <-l.release:
			return 0, nil
		}
	}
	select {
	case c := <-l.chunks:
		return copy(p, c), nil
	case <-l.closed:
		return -1, nil
	}
}

func (l *fakeLine) Stop() error { l.record("stop"); return nil }

func (l *fakeLine) Drain() error {
	l.record("drain")
	deadline := time.Now().Add(time.Second)
	for len(l.chunks) > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (l *fakeLine) Close() error {
	l.record("close")
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *fakeLine) BufferSize() int { return l.bufSize }

func (l *fakeLine) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeDevice struct {
	formats []audio.CaptureFormat
	line    *fakeLine
	openErr error

	mu     sync.Mutex
	opened []audio.CaptureFormat
}

func (d *fakeDevice) Formats() ([]audio.CaptureFormat, error) { return d.formats, nil }

func (d *fakeDevice) Open(f audio.CaptureFormat) (audio.Line, error) {
	d.mu.Lock()
	d.opened = append(d.opened, f)
	d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.line, nil
}

type failingEncoder struct{ wav.Encoder }

func (failingEncoder) Encode([]byte, audio.CaptureFormat, int64) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (s *stateLog) add(st State) {
	s.mu.Lock()
	s.states = append(s.states, st)
	s.mu.Unlock()
}

func (s *stateLog) all() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.states...)
}

func newTestManager(dev *fakeDevice, enc Encoder, states *stateLog) *Manager {
	opts := Options{
		Device:      dev,
		Encoder:     enc,
		StopTimeout: 2 * time.Second,
	}
	if states != nil {
		opts.OnState = states.add
	}
	return NewManager(opts)
}

func pcmDevice(line *fakeLine) *fakeDevice {
	return &fakeDevice{
		formats: []audio.CaptureFormat{
			audio.NewPCMFormat(44100, 16, 2, true, false),
			audio.NewCompandedFormat(audio.ULaw, 8000, 1),
		},
		line: line,
	}
}

func TestIsRecordingLifecycle(t *testing.T) {
	line := newFakeLine()
	m := newTestManager(pcmDevice(line), wav.Encoder{}, nil)

	assert.False(t, m.IsRecording())

	_, err := m.Start(1)
	require.NoError(t, err)
	assert.True(t, m.IsRecording())

	_, err = m.Stop(context.Background())
	require.NoError(t, err)
	assert.False(t, m.IsRecording())
}

func TestStopWithoutStart(t *testing.T) {
	m := newTestManager(pcmDevice(newFakeLine()), wav.Encoder{}, nil)
	out, err := m.Stop(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestStopTwice(t *testing.T) {
	m := newTestManager(pcmDevice(newFakeLine()), wav.Encoder{}, nil)
	_, err := m.Start(1)
	require.NoError(t, err)

	first, err := m.Stop(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := m.Stop(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, second)
}

func TestImmediateStopYieldsEmptyValidWAV(t *testing.T) {
	m := newTestManager(pcmDevice(newFakeLine()), wav.Encoder{}, nil)
	_, err := m.Start(1)
	require.NoError(t, err)

	out, err := m.Stop(context.Background())
	require.NoError(t, err)
	require.Len(t, out, wav.HeaderSize)

	dec, err := wav.Decode(out)
	require.NoError(t, err)
	assert.Empty(t, dec.Samples)
}

func TestRecordsQueuedFrames(t *testing.T) {
	line := newFakeLine()
	states := &stateLog{}
	m := newTestManager(pcmDevice(line), wav.Encoder{}, states)

	info, err := m.Start(0)
	require.NoError(t, err)
	assert.Equal(t, StateRecording, info.State)
	assert.Equal(t, 1, info.Format.Channels)
	assert.True(t, info.Format.BigEndian)
	assert.Equal(t, 16000.0, info.Format.SampleRate)
	require.NotNil(t, info.Preferred)
	assert.Equal(t, audio.ULaw, info.Preferred.Encoding)

	line.chunks <- []byte{0x00, 0x01, 0x00, 0x02}
	line.chunks <- []byte{0xFF, 0xFF}

	out, err := m.Stop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint32(len(out)-8), binary.LittleEndian.Uint32(out[4:8]))
	dec, err := wav.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, -1}, dec.Samples)

	assert.Equal(t, []string{"start", "stop", "drain", "close"}, line.Calls())
	assert.Equal(t, []State{StateRecording, StateStopping, StateFinished, StateIdle}, states.all())
}

func TestReadBlockIsFifthOfBuffer(t *testing.T) {
	line := newFakeLine()
	line.bufSize = 1003
	m := newTestManager(pcmDevice(line), wav.Encoder{}, nil)
	_, err := m.Start(1)
	require.NoError(t, err)
	_, err = m.Stop(context.Background())
	require.NoError(t, err)

	line.mu.Lock()
	defer line.mu.Unlock()
	require.NotEmpty(t, line.reads)
	// 1003/5 = 200, already a whole number of 2-byte frames.
	assert.Equal(t, 200, line.reads[0])
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	m := newTestManager(pcmDevice(newFakeLine()), wav.Encoder{}, nil)
	_, err := m.Start(1)
	require.NoError(t, err)
	defer m.Stop(context.Background())

	_, err = m.Start(1)
	assert.ErrorIs(t, err, ErrRecordingActive)
}

func TestStartWhileStoppingIsRejected(t *testing.T) {
	line := newFakeLine()
	line.hang = true
	m := newTestManager(pcmDevice(line), wav.Encoder{}, nil)
	_, err := m.Start(1)
	require.NoError(t, err)

	stopped := make(chan error, 1)
	go func() {
		_, err := m.Stop(context.Background())
		stopped <- err
	}()

	require.Eventually(t, func() bool {
		info, ok := m.Current()
		return ok && info.State == StateStopping
	}, time.Second, time.Millisecond)

	_, err = m.Start(1)
	assert.ErrorIs(t, err, ErrRecordingActive)
	assert.True(t, m.IsRecording())

	close(line.release)
	require.NoError(t, <-stopped)
	assert.False(t, m.IsRecording())
}

func TestLineStartsBeforeStopInEveryCycle(t *testing.T) {
	dev := pcmDevice(newFakeLine())
	m := newTestManager(dev, wav.Encoder{}, nil)

	for i := 0; i < 200; i++ {
		line := newFakeLine()
		dev.line = line

		_, err := m.Start(1)
		require.NoError(t, err)
		_, err = m.Stop(context.Background())
		require.NoError(t, err)

		require.Equal(t, []string{"start", "stop", "drain", "close"}, line.Calls(), "cycle %d", i)
	}
}

func TestLineStartFailureClosesLine(t *testing.T) {
	line := newFakeLine()
	line.startErr = errors.New("device busy")
	states := &stateLog{}
	m := newTestManager(pcmDevice(line), wav.Encoder{}, states)

	_, err := m.Start(1)
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)
	assert.False(t, m.IsRecording())
	assert.Equal(t, []string{"start", "close"}, line.Calls())
	assert.Empty(t, states.all())
}

// gatedDevice blocks Formats until gate is closed.
type gatedDevice struct {
	*fakeDevice
	entered chan struct{}
	gate    chan struct{}
}

func (d *gatedDevice) Formats() ([]audio.CaptureFormat, error) {
	close(d.entered)
	<-d.gate
	return d.fakeDevice.Formats()
}

func TestSlotReservedWhileDeviceOpens(t *testing.T) {
	dev := &gatedDevice{
		fakeDevice: pcmDevice(newFakeLine()),
		entered:    make(chan struct{}),
		gate:       make(chan struct{}),
	}
	m := newTestManager(dev.fakeDevice, wav.Encoder{}, nil)
	m.opts.Device = dev

	started := make(chan error, 1)
	go func() {
		_, err := m.Start(1)
		started <- err
	}()
	<-dev.entered

	// The slot is visible and queries do not wait on the device.
	assert.True(t, m.IsRecording())
	_, ok := m.Current()
	assert.False(t, ok)
	_, err := m.Start(1)
	assert.ErrorIs(t, err, ErrRecordingActive)

	close(dev.gate)
	require.NoError(t, <-started)

	_, ok = m.Current()
	assert.True(t, ok)
	out, err := m.Stop(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestStartUnsupportedFormat(t *testing.T) {
	dev := pcmDevice(newFakeLine())
	dev.openErr = errors.New("line unavailable")
	m := newTestManager(dev, wav.Encoder{}, nil)

	_, err := m.Start(2)
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)
	assert.False(t, m.IsRecording())
	assert.Equal(t, 2, dev.opened[0].Channels)
}

func TestUseDeviceFormat(t *testing.T) {
	line := newFakeLine()
	dev := pcmDevice(line)
	m := NewManager(Options{Device: dev, Encoder: wav.Encoder{}, UseDeviceFormat: true})

	info, err := m.Start(1)
	require.NoError(t, err)
	assert.Equal(t, audio.ULaw, info.Format.Encoding)

	line.chunks <- []byte{0xFF, 0x7F}
	out, err := m.Stop(context.Background())
	require.NoError(t, err)
	dec, err := wav.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, audio.ULaw, dec.Format.Encoding)
	assert.Equal(t, []int{0xFF, 0x7F}, dec.Samples)
}

func TestEncodeFailureSurfacesOnStop(t *testing.T) {
	states := &stateLog{}
	m := newTestManager(pcmDevice(newFakeLine()), failingEncoder{}, states)
	_, err := m.Start(1)
	require.NoError(t, err)

	out, err := m.Stop(context.Background())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrNoOutputProduced)
	assert.Contains(t, states.all(), StateFailed)
	assert.False(t, m.IsRecording())
}

func TestStopTimeoutAbandonsSession(t *testing.T) {
	line := newFakeLine()
	line.hang = true
	states := &stateLog{}
	m := NewManager(Options{
		Device:      pcmDevice(line),
		Encoder:     wav.Encoder{},
		StopTimeout: 50 * time.Millisecond,
		OnState:     states.add,
	})
	_, err := m.Start(1)
	require.NoError(t, err)

	out, err := m.Stop(context.Background())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrNoOutputProduced)
	assert.ErrorIs(t, err, ErrStopTimeout)
	assert.False(t, m.IsRecording())

	// A new recording can start while the old goroutine is still stuck.
	next := newFakeLine()
	m.opts.Device = pcmDevice(next)
	_, err = m.Start(1)
	require.NoError(t, err)

	close(line.release)
	_, err = m.Stop(context.Background())
	require.NoError(t, err)

	got := states.all()
	assert.NotContains(t, got, StateFailed, "abandoned session must not report")
}

func TestStopHonoursContext(t *testing.T) {
	line := newFakeLine()
	line.hang = true
	m := newTestManager(pcmDevice(line), wav.Encoder{}, nil)
	_, err := m.Start(1)
	require.NoError(t, err)
	defer close(line.release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Stop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrNoOutputProduced)
	assert.False(t, m.IsRecording())
}

func TestConcurrentStopsShareOutcome(t *testing.T) {
	line := newFakeLine()
	m := newTestManager(pcmDevice(line), wav.Encoder{}, nil)
	_, err := m.Start(1)
	require.NoError(t, err)
	line.chunks <- []byte{0, 1}

	var wg sync.WaitGroup
	results := make([][]byte, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.Stop(context.Background())
		}(i)
	}
	wg.Wait()

	var got int
	for _, r := range results {
		if r != nil {
			got++
			assert.Len(t, r, wav.HeaderSize+2)
		}
	}
	assert.GreaterOrEqual(t, got, 1)
	assert.False(t, m.IsRecording())
}

func TestFormats(t *testing.T) {
	m := newTestManager(pcmDevice(newFakeLine()), wav.Encoder{}, nil)
	all, best, ok, err := m.Formats(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, all, 2)
	assert.Equal(t, audio.ULaw, best.Encoding)
}

func TestBlockSize(t *testing.T) {
	assert.Equal(t, 200, blockSize(1000, 5, 2))
	assert.Equal(t, 198, blockSize(1000, 5, 6))
	assert.Equal(t, 4, blockSize(3, 5, 4))
	assert.Equal(t, 10, blockSize(10, 0, 0))
}
