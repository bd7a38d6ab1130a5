package wav

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamHeader builds a 44-byte mono PCM header with the given placeholder
// sizes, the way streaming producers write it before the length is known.
func streamHeader(t *testing.T, sampleRate, riffSize, dataSize uint32) []byte {
	t.Helper()
	h := struct {
		RiffID      [4]byte
		RiffSize    uint32
		WaveID      [4]byte
		FmtID       [4]byte
		FmtSize     uint32
		AudioFormat uint16
		NumChannels uint16
		SampleRate  uint32
		ByteRate    uint32
		BlockAlign  uint16
		BitsPerSamp uint16
		DataID      [4]byte
		DataSize    uint32
	}{
		RiffID:      [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:    riffSize,
		WaveID:      [4]byte{'W', 'A', 'V', 'E'},
		FmtID:       [4]byte{'f', 'm', 't', ' '},
		FmtSize:     16,
		AudioFormat: formatPCM,
		NumChannels: 1,
		SampleRate:  sampleRate,
		ByteRate:    sampleRate * 2,
		BlockAlign:  2,
		BitsPerSamp: 16,
		DataID:      [4]byte{'d', 'a', 't', 'a'},
		DataSize:    dataSize,
	}
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &h))
	return buf.Bytes()
}

func TestFixDataChunk(t *testing.T) {
	buf := append(streamHeader(t, 16000, 0xFFFFFFFF, 0xFFFFFFFF), 1, 2, 3, 4)
	require.Len(t, buf, 48)

	require.NoError(t, Fix(buf))

	assert.Equal(t, uint32(40), binary.LittleEndian.Uint32(buf[4:8]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf[40:44]))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf[44:])
}

func TestFixIsIdempotent(t *testing.T) {
	buf := append(streamHeader(t, 8000, 0, 0), make([]byte, 100)...)
	require.NoError(t, Fix(buf))
	once := append([]byte(nil), buf...)
	require.NoError(t, Fix(buf))
	assert.Equal(t, once, buf)
}

func TestFixChunkIDCaseInsensitive(t *testing.T) {
	buf := append(streamHeader(t, 8000, 0, 0), make([]byte, 10)...)
	copy(buf[36:40], "DATA")
	require.NoError(t, Fix(buf))
	assert.Equal(t, uint32(10), binary.LittleEndian.Uint32(buf[40:44]))
}

func TestFixListChunk(t *testing.T) {
	buf := make([]byte, 120)
	copy(buf[0:4], "RIFF")
	copy(buf[8:12], "WAVE")
	copy(buf[36:40], "LIST")

	require.NoError(t, Fix(buf))

	assert.Equal(t, uint32(112), binary.LittleEndian.Uint32(buf[4:8]))
	assert.Equal(t, uint32(104), binary.LittleEndian.Uint32(buf[74:78]))
	// The data size slot is left alone for this layout.
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[40:44]))
}

func TestFixUnknownChunkOnlyPatchesRIFF(t *testing.T) {
	buf := append(streamHeader(t, 8000, 0, 0xDEADBEEF), make([]byte, 8)...)
	copy(buf[36:40], "fact")

	require.NoError(t, Fix(buf))

	assert.Equal(t, uint32(44), binary.LittleEndian.Uint32(buf[4:8]))
	assert.Equal(t, uint32(0xDEADBEEF), binary.LittleEndian.Uint32(buf[40:44]))
}

func TestFixShortBuffer(t *testing.T) {
	buf := make([]byte, 43)
	err := Fix(buf)
	require.ErrorIs(t, err, ErrShortBuffer)
	assert.Equal(t, make([]byte, 43), buf, "short buffers must not be modified")

	list := make([]byte, 60)
	copy(list[36:40], "list")
	require.ErrorIs(t, Fix(list), ErrShortBuffer)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(list[4:8]))
}

func TestPutUint32LE(t *testing.T) {
	buf := make([]byte, 6)
	putUint32LE(buf, 1, 0x04030201)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 0}, buf)
	assert.Equal(t, uint32(0x04030201), uint32LE(buf, 1))
}
