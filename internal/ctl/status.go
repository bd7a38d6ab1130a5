package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string       `json:"name"`
	State         string       `json:"state"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Backend       string       `json:"backend"`
	Recording     bool         `json:"recording"`
	Session       *SessionInfo `json:"session,omitempty"`
	Clients       int          `json:"clients"`
}

// SessionInfo mirrors a recording session snapshot.
type SessionInfo struct {
	ID            string      `json:"id"`
	State         string      `json:"state"`
	Format        FormatInfo  `json:"format"`
	Preferred     *FormatInfo `json:"preferred,omitempty"`
	StartedAt     time.Time   `json:"started_at"`
	BytesCaptured int64       `json:"bytes_captured"`
}

// FormatInfo mirrors a capture format.
type FormatInfo struct {
	SampleRate    float64 `json:"sample_rate_hz"`
	BitsPerSample int     `json:"bits_per_sample"`
	Channels      int     `json:"channels"`
	Encoding      string  `json:"encoding"`
	Signed        bool    `json:"signed"`
	BigEndian     bool    `json:"big_endian"`
	FrameSize     int     `json:"frame_size_bytes"`
}

func (f FormatInfo) String() string {
	s := fmt.Sprintf("%s %s %d-bit %dch", f.Encoding, formatRate(f.SampleRate), f.BitsPerSample, f.Channels)
	if f.BitsPerSample > 8 && f.Encoding != "ULAW" && f.Encoding != "ALAW" {
		if f.BigEndian {
			s += " BE"
		} else {
			s += " LE"
		}
	}
	return s
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateStr := colorize(stateColor(s.State), s.State)

	fmt.Println()
	fmt.Println(header("  AUDIOD STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), stateStr)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Backend:"), s.Backend)
	fmt.Printf("  %-12s %d\n", colorize(dim, "Watchers:"), s.Clients)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Host:"), baseURL)

	if s.Session != nil {
		printSession(s.Session)
	}
	fmt.Println()

	return nil
}

func printSession(s *SessionInfo) {
	fmt.Println()
	fmt.Println(header("  RECORDING"))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Session:"), s.ID)
	fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), colorize(stateColor(s.State), s.State))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Format:"), s.Format)
	if s.Preferred != nil {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Device pick:"), s.Preferred)
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Elapsed:"), formatDuration(time.Since(s.StartedAt)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Captured:"), formatBytes(s.BytesCaptured))
}
