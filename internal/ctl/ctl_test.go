package ctl

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamedWAV is a 16-bit mono file whose header still carries the
// placeholder sizes a streaming writer leaves behind.
func streamedWAV(samples int) []byte {
	b := make([]byte, 44+2*samples)
	copy(b[0:], "RIFF")
	binary.LittleEndian.PutUint32(b[4:], 0xFFFFFFFF)
	copy(b[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(b[16:], 16)
	binary.LittleEndian.PutUint16(b[20:], 1)
	binary.LittleEndian.PutUint16(b[22:], 1)
	binary.LittleEndian.PutUint32(b[24:], 16000)
	binary.LittleEndian.PutUint32(b[28:], 32000)
	binary.LittleEndian.PutUint16(b[32:], 2)
	binary.LittleEndian.PutUint16(b[34:], 16)
	copy(b[36:], "data")
	binary.LittleEndian.PutUint32(b[40:], 0xFFFFFFFF)
	return b
}

func TestStopSavesRecording(t *testing.T) {
	body := streamedWAV(3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/stop", r.URL.Path)
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("X-Session-ID", "abc")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "take.wav")
	require.NoError(t, Stop(srv.URL, StopOptions{Out: out, JSON: true}))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestStopNothingRecording(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.NoError(t, Stop(srv.URL, StopOptions{Out: filepath.Join(t.TempDir(), "x.wav"), JSON: true}))
}

func TestStopSurfacesDaemonError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGatewayTimeout)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "capture did not finish"})
	}))
	defer srv.Close()

	err := Stop(srv.URL, StopOptions{Out: filepath.Join(t.TempDir(), "x.wav")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "504")
	assert.Contains(t, err.Error(), "capture did not finish")
}

func TestRecordSendsChannels(t *testing.T) {
	var got map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/record", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "session": map[string]any{"id": "s1"}})
	}))
	defer srv.Close()

	require.NoError(t, Record(srv.URL, RecordOptions{Channels: 2, JSON: true}))
	assert.Equal(t, map[string]int{"channels": 2}, got)
}

func TestRecordConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "a recording is already in progress"})
	}))
	defer srv.Close()

	err := Record(srv.URL, RecordOptions{JSON: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")
}

func TestPlayFixesBeforeUpload(t *testing.T) {
	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		uploaded, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, streamedWAV(4), 0o644))

	require.NoError(t, Play(srv.URL, PlayOptions{File: path, Fix: true, JSON: true}))
	require.Len(t, uploaded, 52)
	assert.Equal(t, uint32(44), binary.LittleEndian.Uint32(uploaded[4:8]))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(uploaded[40:44]))
}

func TestFixWAVLocalToNewFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")
	orig := streamedWAV(2)
	require.NoError(t, os.WriteFile(in, orig, 0o644))

	require.NoError(t, FixWAV("", FixOptions{In: in, Out: out, JSON: true}))

	untouched, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, orig, untouched)

	fixed, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, uint32(40), binary.LittleEndian.Uint32(fixed[4:8]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(fixed[40:44]))
}

func TestFixWAVRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/wav/fix", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		binary.LittleEndian.PutUint32(b[4:8], uint32(len(b)-8))
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "in.wav")
	require.NoError(t, os.WriteFile(path, streamedWAV(1), 0o644))
	require.NoError(t, FixWAV(srv.URL, FixOptions{In: path, Remote: true, JSON: true}))

	fixed, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(38), binary.LittleEndian.Uint32(fixed[4:8]))
}

func TestWantedFilter(t *testing.T) {
	state := []byte(`{"type":"state","from":"IDLE","to":"RECORDING"}`)
	beat := []byte(`{"type":"heartbeat"}`)

	assert.True(t, wanted(beat, nil))
	filter := map[string]bool{"state": true}
	assert.True(t, wanted(state, filter))
	assert.False(t, wanted(beat, filter))
	assert.True(t, wanted([]byte("not json"), filter))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "16 kHz", formatRate(16000))
	assert.Equal(t, "44.1 kHz", formatRate(44100))
	assert.Equal(t, "800 Hz", formatRate(800))

	f := FormatInfo{SampleRate: 16000, BitsPerSample: 16, Channels: 1, Encoding: "PCM_SIGNED", BigEndian: true}
	assert.Equal(t, "PCM_SIGNED 16 kHz 16-bit 1ch BE", f.String())
	u := FormatInfo{SampleRate: 8000, BitsPerSample: 8, Channels: 1, Encoding: "ULAW"}
	assert.Equal(t, "ULAW 8 kHz 8-bit 1ch", u.String())

	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2m 5s", formatDuration(125e9))
}

func TestLogsPath(t *testing.T) {
	assert.Equal(t, "/api/logs", logsPath(LogsOptions{}))
	assert.Equal(t, "/api/logs?component=capture&level=error&limit=5",
		logsPath(LogsOptions{Level: "error", Component: "capture", Limit: 5}))
}

func TestLogsQueriesComponent(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{"logs": []map[string]string{
			{"ts": "2026-01-01T00:00:00Z", "level": "info", "component": "playback", "message": "played 4 frames"},
		}})
	}))
	defer srv.Close()

	require.NoError(t, Logs(srv.URL, LogsOptions{Component: "playback"}))
	assert.Equal(t, "component=playback", query)
}

func TestHealthAsksForChecks(t *testing.T) {
	var accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"healthy": false,
			"checks": map[string]any{
				"capture_device": map[string]any{"ok": false, "error": "no capture device present"},
				"recorder":       map[string]any{"ok": true, "state": "IDLE"},
			},
		})
	}))
	defer srv.Close()

	require.NoError(t, Health(srv.URL, false))
	assert.Equal(t, "application/json", accept)
}

func TestRenderCheck(t *testing.T) {
	assert.Contains(t, renderCheck("capture_device", map[string]any{"ok": true, "formats": 3.0}), "3 native formats")
	assert.Contains(t, renderCheck("capture_device", map[string]any{"ok": false, "error": "gone"}), "FAIL")
	assert.Contains(t, renderCheck("recorder", map[string]any{"ok": true, "state": "RECORDING", "session": "abc"}), "RECORDING abc")
}

func TestVersionShowsBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version":       "v1.2.0",
			"go_version":    "go1.26.0",
			"backend":       "native",
			"wav_encodings": []string{"PCM_SIGNED", "ULAW"},
			"capture_target": map[string]any{
				"sample_rate_hz": 16000, "bits_per_sample": 16, "channels": 1,
				"encoding": "PCM_SIGNED", "signed": true, "big_endian": true,
			},
		})
	}))
	defer srv.Close()

	require.NoError(t, VersionInfo(srv.URL, true))
	require.NoError(t, VersionInfo(srv.URL, false))
}
