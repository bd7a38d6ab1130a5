package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/large-farva/audiod/internal/audio"
	"github.com/large-farva/audiod/internal/capture"
	"github.com/large-farva/audiod/internal/wav"
)

// maxUpload caps request bodies carrying audio.
const maxUpload = 64 << 20

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"name":           "audiod",
		"state":          a.state.Load().(string),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"backend":        a.backend,
		"recording":      false,
		"clients":        a.wsHub.Clients(),
	}

	if info, ok := a.recorder.Current(); ok {
		resp["recording"] = true
		resp["session"] = info
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.versionInfo())
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.cfg)
}

func (a *App) handleSystem(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"backend":    a.backend,
		"cpus":       runtime.NumCPU(),
	}

	if formats, err := a.device.Formats(); err != nil {
		resp["device_error"] = err.Error()
	} else {
		resp["device_formats"] = len(formats)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]any{}
	allOK := true

	// Capture device answers a capability query.
	if formats, err := a.device.Formats(); err != nil {
		checks["capture_device"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		checks["capture_device"] = map[string]any{"ok": true, "formats": len(formats)}
	}

	recorder := map[string]any{"ok": true, "state": a.state.Load().(string)}
	if info, ok := a.recorder.Current(); ok {
		recorder["session"] = info.ID
	}
	checks["recorder"] = recorder

	// Config file readable.
	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries := filterLogs(a.events.logs(), q.Get("level"), q.Get("component"))

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}

	if entries == nil {
		entries = []logEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

// filterLogs keeps entries matching level and component; an empty value
// matches everything.
func filterLogs(entries []logEntry, level, component string) []logEntry {
	if level == "" && component == "" {
		return entries
	}
	var out []logEntry
	for _, e := range entries {
		if level != "" && e.Level != level {
			continue
		}
		if component != "" && e.Component != component {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (a *App) handleStats(w http.ResponseWriter, _ *http.Request) {
	a.statsMu.Lock()
	s := a.stats
	a.statsMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"recordings":        s.Recordings,
		"recorded_bytes":    s.RecordedBytes,
		"failed_stops":      s.FailedStops,
		"playbacks":         s.Playbacks,
		"last_recording_at": s.LastRecordingAt,
		"ws_clients":        a.wsHub.Clients(),
		"events_dropped":    a.wsHub.Dropped(),
		"uptime_seconds":    int64(time.Since(a.startedAt).Seconds()),
	})
}

// ---------------------------------------------------------------------------
// Recording
// ---------------------------------------------------------------------------

func (a *App) handleFormats(w http.ResponseWriter, r *http.Request) {
	minChannels := a.cfg.Capture.DefaultChannels
	if s := r.URL.Query().Get("min_channels"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			jsonError(w, "min_channels must be a non-negative integer", http.StatusBadRequest)
			return
		}
		minChannels = n
	}

	all, best, ok, err := a.recorder.Formats(minChannels)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if all == nil {
		all = []audio.CaptureFormat{}
	}

	resp := map[string]any{
		"formats":      all,
		"min_channels": minChannels,
		"target":       a.recorder.Target(minChannels),
		"selected":     nil,
	}
	if ok {
		resp["selected"] = best
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// An empty body records with the configured channel count.
	var req struct {
		Channels int `json:"channels"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Channels < 0 {
		jsonError(w, "channels must be >= 0", http.StatusBadRequest)
		return
	}

	info, err := a.recorder.Start(req.Channels)
	switch {
	case errors.Is(err, capture.ErrRecordingActive):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, audio.ErrUnsupportedFormat):
		jsonError(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	a.logf("info", "recording %s started (%s)", info.ID, info.Format)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session": info})
}

func (a *App) handleRecording(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"recording": false, "session": nil}
	if info, ok := a.recorder.Current(); ok {
		resp["recording"] = true
		resp["session"] = info
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info, _ := a.recorder.Current()
	out, err := a.recorder.Stop(r.Context())
	switch {
	case errors.Is(err, capture.ErrStopTimeout):
		a.noteFailedStop()
		a.logf("error", "stop %s: %v", info.ID, err)
		jsonError(w, err.Error(), http.StatusGatewayTimeout)
		return
	case err != nil:
		a.noteFailedStop()
		a.logf("error", "stop %s: %v", info.ID, err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	case out == nil:
		w.WriteHeader(http.StatusNoContent)
		return
	}

	a.noteRecording(len(out))
	a.logf("info", "recording %s returned to client (%d bytes)", info.ID, len(out))

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.Header().Set("X-Session-ID", info.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// ---------------------------------------------------------------------------
// Playback and repair
// ---------------------------------------------------------------------------

func (a *App) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := a.player.Play(r.Context(), http.MaxBytesReader(w, r.Body, maxUpload))
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	case errors.Is(err, audio.ErrDecode):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, audio.ErrUnsupportedFormat):
		jsonError(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	a.notePlayback()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *App) handleFixWAV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err := wav.Fix(buf); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}
