package ctl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	// Decode into a generic map to preserve all fields for both display modes.
	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	// Decode into ordered sections for human-readable output.
	var cfg struct {
		Server struct {
			Bind string `json:"bind"`
		} `json:"server"`
		Logging struct {
			Level      string `json:"level"`
			File       string `json:"file"`
			MaxSizeMB  int    `json:"max_size_mb"`
			MaxBackups int    `json:"max_backups"`
		} `json:"logging"`
		Capture struct {
			SampleRate         float64 `json:"sample_rate"`
			BitsPerSample      int     `json:"bits_per_sample"`
			DefaultChannels    int     `json:"default_channels"`
			StopTimeoutSeconds int     `json:"stop_timeout_seconds"`
			BlockDivisor       int     `json:"block_divisor"`
			UseDeviceFormat    bool    `json:"use_device_format"`
			Simulate           bool    `json:"simulate"`
		} `json:"capture"`
		Simulate struct {
			ToneHz float64 `json:"tone_hz"`
		} `json:"simulate"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(header("  DAEMON CONFIGURATION"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))

	section := func(name string) {
		fmt.Printf("\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Printf("    %-22s %v\n", colorize(dim, key+":"), val)
	}

	section("server")
	field("bind", cfg.Server.Bind)

	section("logging")
	field("level", cfg.Logging.Level)
	field("file", cfg.Logging.File)
	field("max_size_mb", cfg.Logging.MaxSizeMB)
	field("max_backups", cfg.Logging.MaxBackups)

	section("capture")
	field("sample_rate", cfg.Capture.SampleRate)
	field("bits_per_sample", cfg.Capture.BitsPerSample)
	field("default_channels", cfg.Capture.DefaultChannels)
	field("stop_timeout_seconds", cfg.Capture.StopTimeoutSeconds)
	field("block_divisor", cfg.Capture.BlockDivisor)
	field("use_device_format", cfg.Capture.UseDeviceFormat)
	field("simulate", cfg.Capture.Simulate)

	section("simulate")
	field("tone_hz", cfg.Simulate.ToneHz)

	fmt.Println()

	return nil
}
