package ctl

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// RecordOptions configures the record command.
type RecordOptions struct {
	Channels int
	JSON     bool
}

// Record asks the daemon to start recording.
func Record(baseURL string, opts RecordOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var body any
	if opts.Channels > 0 {
		body = map[string]int{"channels": opts.Channels}
	}

	var result struct {
		OK      bool        `json:"ok"`
		Session SessionInfo `json:"session"`
	}
	if err := postJSON(baseURL, "/api/record", body, &result); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(result)
	}

	fmt.Printf("\n  %s  session %s\n", colorize(blue, "RECORDING"), result.Session.ID)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Format:"), result.Session.Format)
	if p := result.Session.Preferred; p != nil {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Device pick:"), p)
	}
	fmt.Println()
	return nil
}

// StopOptions configures the stop command.
type StopOptions struct {
	Out  string
	JSON bool
}

// Stop ends the daemon's recording and saves the returned WAVE file. When
// no output path is given the file is named after the session.
func Stop(baseURL string, opts StopOptions) error {
	resp, err := postAudio(baseURL, "/api/stop", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		if opts.JSON {
			return printJSON(map[string]any{"ok": true, "recording": false})
		}
		fmt.Printf("\n  %s  no recording in progress\n\n", colorize(yellow, "IDLE"))
		return nil
	case http.StatusOK:
	default:
		return statusError(resp, "/api/stop")
	}

	session := resp.Header.Get("X-Session-ID")
	out := opts.Out
	if out == "" {
		out = "recording.wav"
		if session != "" {
			out = "recording_" + session + ".wav"
		}
	}

	n, err := saveBody(out, resp.Body)
	if err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(map[string]any{
			"ok":      true,
			"session": session,
			"file":    out,
			"bytes":   n,
		})
	}

	fmt.Printf("\n  %s  %s written to %s\n", colorize(green, "SAVED"), formatBytes(n), out)
	fmt.Println()
	return nil
}

func saveBody(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}
