package ctl

import (
	"fmt"
	"strings"
)

// Version is the CLI build, set with -ldflags.
var Version = "dev"

type daemonVersion struct {
	Version   string     `json:"version"`
	GoVersion string     `json:"go_version"`
	BuiltAt   string     `json:"built_at"`
	Backend   string     `json:"backend"`
	Target    FormatInfo `json:"capture_target"`
	Encodings []string   `json:"wav_encodings"`
}

// VersionInfo prints the CLI version next to the daemon build and the
// audio backend and capture target it runs with.
func VersionInfo(baseURL string, jsonOutput bool) error {
	var d daemonVersion
	daemonErr := getJSON(baseURL, "/api/version", &d)

	if jsonOutput {
		resp := map[string]any{"cli": Version}
		if daemonErr != nil {
			resp["daemon_error"] = daemonErr.Error()
		} else {
			resp["daemon"] = d
		}
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  AUDIOD VERSION"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "CLI:"), Version)
	if daemonErr != nil {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Daemon:"), colorize(red, "unreachable: "+daemonErr.Error()))
		fmt.Println()
		return nil
	}
	fmt.Printf("  %-12s %s (%s, built %s)\n", colorize(dim, "Daemon:"), d.Version, d.GoVersion, d.BuiltAt)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Backend:"), d.Backend)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Target:"), d.Target)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Encodings:"), strings.Join(d.Encodings, ", "))
	fmt.Println()
	return nil
}
