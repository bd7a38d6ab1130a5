package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// healthReport is the detailed /healthz answer: one entry per check, such
// as capture_device, recorder and config_file.
type healthReport struct {
	Healthy bool                      `json:"healthy"`
	Checks  map[string]map[string]any `json:"checks"`
}

// Health asks the daemon for its component checks and prints whether the
// capture device answers and what the recorder is doing.
func Health(baseURL string, jsonOutput bool) error {
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(baseURL, "/")+"/healthz", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}
	defer resp.Body.Close()

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("decode /healthz (HTTP %d): %w", resp.StatusCode, err)
	}
	if jsonOutput {
		return printJSON(report)
	}

	fmt.Println()
	if report.Healthy {
		fmt.Printf("  %s  audiod at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Printf("  %s  audiod at %s (HTTP %d)\n", colorize(red, "UNHEALTHY"), colorize(dim, baseURL), resp.StatusCode)
	}
	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println("  " + renderCheck(name, report.Checks[name]))
	}
	fmt.Println()
	return nil
}

func renderCheck(name string, c map[string]any) string {
	mark := colorize(green, "ok  ")
	if ok, _ := c["ok"].(bool); !ok {
		mark = colorize(red, "FAIL")
	}
	var detail string
	switch {
	case c["error"] != nil:
		detail = fmt.Sprint(c["error"])
	case name == "capture_device":
		detail = fmt.Sprintf("%v native formats", c["formats"])
	case name == "recorder":
		state := fmt.Sprint(c["state"])
		detail = colorize(stateColor(state), state)
		if id, ok := c["session"].(string); ok {
			detail += " " + colorize(dim, id)
		}
	case c["path"] != nil:
		detail = fmt.Sprint(c["path"])
	}
	return fmt.Sprintf("%s %-15s %s", mark, name, detail)
}
