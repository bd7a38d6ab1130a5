package ctl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// LogsOptions configures the logs command. Component narrows the output
// to one subsystem, such as "capture" or "playback".
type LogsOptions struct {
	Level     string
	Component string
	Limit     int
	Tail      bool
	JSON      bool
}

type logLine struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Component string `json:"component"`
}

// Logs prints the daemon's recent recorder and player messages, or
// follows them live with --tail.
func Logs(baseURL string, opts LogsOptions) error {
	if opts.Tail {
		return Watch(baseURL, WatchOptions{Filter: []string{"log"}, JSON: opts.JSON})
	}

	var resp struct {
		Logs []logLine `json:"logs"`
	}
	if err := getJSON(baseURL, logsPath(opts), &resp); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(resp)
	}

	title := "  DAEMON LOGS"
	if opts.Component != "" {
		title += " (" + opts.Component + ")"
	}
	fmt.Println()
	fmt.Println(header(title))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 70)))

	if len(resp.Logs) == 0 {
		fmt.Println("  Nothing logged yet.")
	}
	for _, e := range resp.Logs {
		fmt.Println("  " + renderLogLine(e))
	}
	fmt.Println()
	return nil
}

// logsPath builds the /api/logs query for opts.
func logsPath(opts LogsOptions) string {
	q := url.Values{}
	if opts.Level != "" {
		q.Set("level", opts.Level)
	}
	if opts.Component != "" {
		q.Set("component", opts.Component)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if len(q) == 0 {
		return "/api/logs"
	}
	return "/api/logs?" + q.Encode()
}

func renderLogLine(e logLine) string {
	ts := e.TS
	if t, err := time.Parse(time.RFC3339Nano, e.TS); err == nil {
		ts = t.Local().Format("15:04:05")
	}
	c := dim
	switch e.Level {
	case "info":
		c = green
	case "error":
		c = red
	}
	return fmt.Sprintf("%s %s  %-9s %s", ts, colorize(c, padRight(e.Level, 5)), e.Component, e.Message)
}
