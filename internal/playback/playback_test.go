package playback

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zaf/g711"

	"github.com/large-farva/audiod/internal/audio"
	"github.com/large-farva/audiod/internal/wav"
)

type fakeOutput struct {
	mu     sync.Mutex
	format audio.CaptureFormat
	pcm    []byte
	calls  int
	err    error
}

func (o *fakeOutput) Start(f audio.CaptureFormat, pcm []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return o.err
	}
	o.format = f
	o.pcm = append([]byte(nil), pcm...)
	return nil
}

type recordingHub struct {
	mu     sync.Mutex
	events []map[string]any
}

func (h *recordingHub) BroadcastJSON(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := v.(map[string]any); ok {
		h.events = append(h.events, m)
	}
}

func encode(t *testing.T, raw []byte, f audio.CaptureFormat) []byte {
	t.Helper()
	out, err := wav.Encoder{}.Encode(raw, f, f.Frames(len(raw)))
	require.NoError(t, err)
	return out
}

func s16(samples ...int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func TestPlayHandsS16ToOutput(t *testing.T) {
	out := &fakeOutput{}
	hub := &recordingHub{}
	svc := New(out, hub, nil)

	f := audio.NewPCMFormat(16000, 16, 1, true, true)
	data := encode(t, []byte{0x01, 0x00, 0xFF, 0xFE, 0x7F, 0xFF}, f)

	require.NoError(t, svc.Play(context.Background(), bytes.NewReader(data)))

	assert.Equal(t, 1, out.calls)
	assert.Equal(t, s16(256, -2, 32767), out.pcm)
	assert.Equal(t, 16, out.format.BitsPerSample)
	assert.False(t, out.format.BigEndian)
	assert.Equal(t, 16000.0, out.format.SampleRate)

	require.Len(t, hub.events, 1)
	assert.Equal(t, "playback", hub.events[0]["type"])
	assert.Equal(t, "playback", hub.events[0]["component"])
	assert.Equal(t, int64(3), hub.events[0]["frames"])
}

func TestPlayWidens8Bit(t *testing.T) {
	out := &fakeOutput{}
	svc := New(out, nil, nil)

	f := audio.NewPCMFormat(8000, 8, 1, false, false)
	data := encode(t, []byte{0x00, 0x80, 0xFF}, f)

	require.NoError(t, svc.Play(context.Background(), bytes.NewReader(data)))
	assert.Equal(t, s16(-32768, 0, 32512), out.pcm)
}

func TestPlayNarrows24Bit(t *testing.T) {
	out := &fakeOutput{}
	svc := New(out, nil, nil)

	f := audio.NewPCMFormat(48000, 24, 1, true, false)
	// 0x123456 and -1
	data := encode(t, []byte{0x56, 0x34, 0x12, 0xFF, 0xFF, 0xFF}, f)

	require.NoError(t, svc.Play(context.Background(), bytes.NewReader(data)))
	assert.Equal(t, s16(0x1234, -1), out.pcm)
}

func TestPlayExpandsULaw(t *testing.T) {
	out := &fakeOutput{}
	svc := New(out, nil, nil)

	codes := []byte{0x00, 0x7F, 0xFF}
	data := encode(t, codes, audio.NewCompandedFormat(audio.ULaw, 8000, 1))

	require.NoError(t, svc.Play(context.Background(), bytes.NewReader(data)))
	var want []int16
	for _, c := range codes {
		want = append(want, g711.DecodeUlawFrame(c))
	}
	assert.Equal(t, s16(want...), out.pcm)
	assert.Equal(t, audio.PCMSigned, out.format.Encoding)
}

func TestPlayDecodeError(t *testing.T) {
	out := &fakeOutput{}
	svc := New(out, nil, nil)

	err := svc.Play(context.Background(), bytes.NewReader([]byte("definitely not a wave file")))
	assert.ErrorIs(t, err, audio.ErrDecode)
	assert.Zero(t, out.calls)
}

func TestPlayChunkSizeTooBig(t *testing.T) {
	out := &fakeOutput{}
	svc := New(out, nil, nil)

	f := audio.NewPCMFormat(16000, 16, 1, true, false)
	data := encode(t, s16(1, 2, 3), f)
	binary.LittleEndian.PutUint32(data[4:8], 0xFFFFFFFF)

	err := svc.Play(context.Background(), bytes.NewReader(data))
	assert.ErrorIs(t, err, audio.ErrDecode)
	assert.Zero(t, out.calls)
}

func TestPlayOutputFailureIsUnsupported(t *testing.T) {
	out := &fakeOutput{err: errors.New("no device")}
	svc := New(out, nil, nil)

	f := audio.NewPCMFormat(16000, 16, 2, true, false)
	err := svc.Play(context.Background(), bytes.NewReader(encode(t, s16(1, 2), f)))
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}

func TestPlayCancelledContext(t *testing.T) {
	out := &fakeOutput{}
	svc := New(out, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := audio.NewPCMFormat(16000, 16, 1, true, false)
	err := svc.Play(ctx, bytes.NewReader(encode(t, s16(1), f)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, out.calls)
}

func TestToS16LERejectsOddDepth(t *testing.T) {
	d := &wav.Decoded{
		Format:  audio.NewPCMFormat(16000, 12, 1, true, false),
		Samples: []int{1},
	}
	_, err := toS16LE(d)
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}
