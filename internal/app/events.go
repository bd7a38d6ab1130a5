package app

import (
	"fmt"
	"sync"

	"github.com/large-farva/audiod/internal/telemetry"
	"github.com/large-farva/audiod/internal/ws"
)

// logEntry is one line of the in-memory log served by /api/logs.
type logEntry struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Component string `json:"component"`
}

// eventTap sits between event producers and the hub. Log and playback
// events are kept in a bounded ring so clients that connect late can still
// read them.
type eventTap struct {
	hub *ws.Hub

	mu   sync.Mutex
	buf  []logEntry
	size int
}

func newEventTap(hub *ws.Hub, size int) *eventTap {
	return &eventTap{hub: hub, size: size}
}

func (t *eventTap) BroadcastJSON(v any) {
	switch ev := v.(type) {
	case telemetry.LogLine:
		t.keep(logEntry{TS: ev.TS, Level: ev.Level, Message: ev.Message, Component: ev.Component})
	case map[string]any:
		e := logEntry{}
		e.TS, _ = ev["ts"].(string)
		e.Component, _ = ev["component"].(string)
		switch ev["type"] {
		case string(telemetry.EventLog):
			e.Level, _ = ev["level"].(string)
			e.Message, _ = ev["message"].(string)
			t.keep(e)
		case string(telemetry.EventPlayback):
			// Finished clips show up in the log as well as on the stream.
			e.Level = "info"
			e.Message = fmt.Sprintf("played %v frames of %v", ev["frames"], ev["format"])
			t.keep(e)
		}
	}
	t.hub.BroadcastJSON(v)
}

func (t *eventTap) keep(e logEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, e)
	if over := len(t.buf) - t.size; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
}

func (t *eventTap) logs() []logEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]logEntry, len(t.buf))
	copy(out, t.buf)
	return out
}
