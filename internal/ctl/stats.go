package ctl

import (
	"fmt"
	"strings"
	"time"
)

// Stats shows recording and playback counters from the daemon.
func Stats(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Recordings      int    `json:"recordings"`
		RecordedBytes   int64  `json:"recorded_bytes"`
		FailedStops     int    `json:"failed_stops"`
		Playbacks       int    `json:"playbacks"`
		LastRecordingAt string `json:"last_recording_at"`
		UptimeSeconds   int64  `json:"uptime_seconds"`
	}
	if err := getJSON(baseURL, "/api/stats", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  AUDIOD STATISTICS"))
	fmt.Println("  " + strings.Repeat("─", 42))
	fmt.Printf("  Uptime:          %s\n", formatDuration(time.Duration(resp.UptimeSeconds)*time.Second))
	fmt.Printf("  Recordings:      %d\n", resp.Recordings)
	fmt.Printf("  Recorded data:   %s\n", formatBytes(resp.RecordedBytes))
	if resp.FailedStops > 0 {
		fmt.Printf("  Failed stops:    %s\n", colorize(red, fmt.Sprint(resp.FailedStops)))
	} else {
		fmt.Printf("  Failed stops:    0\n")
	}
	fmt.Printf("  Playbacks:       %d\n", resp.Playbacks)

	if resp.LastRecordingAt != "" {
		fmt.Printf("  Last recording:  %s\n", resp.LastRecordingAt)
	} else {
		fmt.Printf("  Last recording:  none\n")
	}

	fmt.Println()
	return nil
}
