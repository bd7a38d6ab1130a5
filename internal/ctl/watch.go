package ctl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/large-farva/audiod/internal/telemetry"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
}

// Watch connects to the daemon's WebSocket endpoint and streams events to
// the terminal in a human-readable format until interrupted.
func Watch(baseURL string, opts WatchOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	u, err := url.Parse(baseURL)
	if err != nil {
		return err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Println()
		fmt.Printf("  %s %s\n", colorize(green, "connected"), colorize(dim, u.String()))
		if len(opts.Filter) > 0 {
			fmt.Printf("  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))
		fmt.Println()
	}

	// Build a filter set for O(1) lookup.
	filterSet := make(map[string]bool, len(opts.Filter))
	for _, f := range opts.Filter {
		filterSet[f] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			if !wanted(msg, filterSet) {
				continue
			}

			if opts.JSON {
				fmt.Println(string(msg))
			} else {
				renderEvent(msg)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		if !opts.JSON {
			fmt.Println()
			fmt.Println(colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(1*time.Second),
		)
		return nil
	case <-done:
		return nil
	}
}

// wanted applies the event type filter. Messages that are not JSON events
// always pass so nothing unexpected is hidden.
func wanted(msg []byte, filter map[string]bool) bool {
	if len(filter) == 0 {
		return true
	}
	var ev telemetry.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		return true
	}
	return filter[string(ev.Type)]
}

// renderEvent parses a JSON event and prints it in a human-friendly format.
// Falls back to raw JSON for unrecognized event types.
func renderEvent(raw []byte) {
	var env telemetry.Event
	if err := json.Unmarshal(raw, &env); err != nil {
		fmt.Printf("  %s\n", string(raw))
		return
	}
	ts := formatEventTime(env.TS)

	switch env.Type {
	case telemetry.EventHeartbeat:
		// Heartbeats are noisy, so show them dimmed on a single line.
		var ev telemetry.Heartbeat
		_ = json.Unmarshal(raw, &ev)
		uptimeStr := formatDuration(time.Duration(ev.UptimeSeconds) * time.Second)
		fmt.Printf("  %s %s  %s  up %s\n",
			colorize(dim, ts),
			colorize(dim, "heartbeat"),
			colorize(stateColor(ev.State), ev.State),
			colorize(dim, uptimeStr),
		)

	case telemetry.EventState:
		var ev telemetry.StateTransition
		_ = json.Unmarshal(raw, &ev)
		fmt.Printf("  %s %s  %s %s %s\n",
			colorize(dim, ts),
			colorize(bold, "STATE"),
			colorize(stateColor(ev.From), ev.From),
			colorize(dim, "->"),
			colorize(stateColor(ev.To), ev.To),
		)

	case telemetry.EventLog:
		var ev telemetry.LogLine
		_ = json.Unmarshal(raw, &ev)
		src := ""
		if ev.Component != "" {
			src = colorize(dim, "["+ev.Component+"] ")
		}
		fmt.Printf("  %s %s  %s%s\n", colorize(dim, ts), formatLogLevel(ev.Level), src, ev.Message)

	case telemetry.EventProgress:
		var ev telemetry.Progress
		_ = json.Unmarshal(raw, &ev)
		fmt.Printf("  %s %s  %10s  %s\n",
			colorize(dim, ts),
			colorize(cyan, padRight(ev.Stage, 10)),
			formatBytes(ev.Bytes),
			colorize(dim, ev.Session),
		)

	case telemetry.EventPlayback:
		var ev telemetry.Playback
		_ = json.Unmarshal(raw, &ev)
		fmt.Printf("  %s %s  %d frames (%.1fs)\n",
			colorize(dim, ts),
			colorize(bold, "PLAY "),
			ev.Frames,
			ev.Duration,
		)

	default:
		// Unknown event type; dump as indented JSON so nothing is lost.
		var v any
		_ = json.Unmarshal(raw, &v)
		pretty, err := json.MarshalIndent(v, "  ", "  ")
		if err != nil {
			fmt.Printf("  %s\n", string(raw))
			return
		}
		fmt.Printf("  %s\n", string(pretty))
	}
}

// formatEventTime shortens an event timestamp to local wall-clock time.
func formatEventTime(tsRaw string) string {
	if tsRaw == "" {
		return "        "
	}
	t, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		if len(tsRaw) > 10 {
			return tsRaw[:10]
		}
		return tsRaw
	}
	return t.Local().Format("15:04:05")
}

// formatLogLevel returns a colored, fixed-width log level label.
func formatLogLevel(level string) string {
	switch level {
	case "info":
		return colorize(green, "INFO ")
	case "warn":
		return colorize(yellow, "WARN ")
	case "error":
		return colorize(red, "ERROR")
	default:
		return padRight(level, 5)
	}
}
