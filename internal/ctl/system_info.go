package ctl

import (
	"fmt"
	"strings"
)

// SystemInfo shows runtime and audio backend information from the daemon.
func SystemInfo(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		GoVersion     string `json:"go_version"`
		OS            string `json:"os"`
		Arch          string `json:"arch"`
		Backend       string `json:"backend"`
		CPUs          int    `json:"cpus"`
		DeviceFormats int    `json:"device_formats"`
		DeviceError   string `json:"device_error"`
	}
	if err := getJSON(baseURL, "/api/system", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  SYSTEM INFO"))
	fmt.Println("  " + strings.Repeat("─", 50))
	fmt.Printf("  Go version:  %s\n", resp.GoVersion)
	fmt.Printf("  OS/Arch:     %s/%s\n", resp.OS, resp.Arch)
	fmt.Printf("  Backend:     %s\n", resp.Backend)
	fmt.Printf("  CPUs:        %d\n", resp.CPUs)

	if resp.DeviceError != "" {
		fmt.Printf("  Capture:     %s (%s)\n", colorize(red, "UNAVAILABLE"), resp.DeviceError)
	} else {
		fmt.Printf("  Capture:     %s (%d native formats)\n", colorize(green, "AVAILABLE"), resp.DeviceFormats)
	}

	fmt.Println()
	return nil
}
