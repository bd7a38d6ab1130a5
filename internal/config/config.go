// Package config handles loading, defaulting, and validation of the audiod
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Server   ServerConfig   `toml:"server"   json:"server"`
	Logging  LoggingConfig  `toml:"logging"  json:"logging"`
	Capture  CaptureConfig  `toml:"capture"  json:"capture"`
	Simulate SimulateConfig `toml:"simulate" json:"simulate"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

// LoggingConfig controls the daemon log. When File is set, output goes to
// stdout and to a size-rotated file.
type LoggingConfig struct {
	Level      string `toml:"level"       json:"level"`
	File       string `toml:"file"        json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
}

type CaptureConfig struct {
	SampleRate         float64 `toml:"sample_rate"          json:"sample_rate"`
	BitsPerSample      int     `toml:"bits_per_sample"      json:"bits_per_sample"`
	DefaultChannels    int     `toml:"default_channels"     json:"default_channels"`
	StopTimeoutSeconds int     `toml:"stop_timeout_seconds" json:"stop_timeout_seconds"`
	BlockDivisor       int     `toml:"block_divisor"        json:"block_divisor"`
	UseDeviceFormat    bool    `toml:"use_device_format"    json:"use_device_format"`
	Simulate           bool    `toml:"simulate"             json:"simulate"`
}

// StopTimeout returns the stop timeout as a duration.
func (c CaptureConfig) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutSeconds) * time.Second
}

type SimulateConfig struct {
	ToneHz float64 `toml:"tone_hz" json:"tone_hz"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1:8090",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Capture: CaptureConfig{
			SampleRate:         16000,
			BitsPerSample:      16,
			DefaultChannels:    1,
			StopTimeoutSeconds: 10,
			BlockDivisor:       5,
		},
		Simulate: SimulateConfig{
			ToneHz: 440,
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Logging.Level {
	case "debug", "info":
	default:
		return errors.New(`logging.level must be "debug" or "info"`)
	}
	if cfg.Logging.File != "" && cfg.Logging.MaxSizeMB < 1 {
		return errors.New("logging.max_size_mb must be >= 1")
	}
	if cfg.Logging.MaxBackups < 0 {
		return errors.New("logging.max_backups must be >= 0")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be > 0")
	}
	switch cfg.Capture.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return errors.New("capture.bits_per_sample must be 8, 16, 24 or 32")
	}
	if cfg.Capture.DefaultChannels < 1 {
		return errors.New("capture.default_channels must be >= 1")
	}
	if cfg.Capture.StopTimeoutSeconds < 1 {
		return errors.New("capture.stop_timeout_seconds must be >= 1")
	}
	if cfg.Capture.BlockDivisor < 1 {
		return errors.New("capture.block_divisor must be >= 1")
	}
	if cfg.Simulate.ToneHz <= 0 {
		return errors.New("simulate.tone_hz must be > 0")
	}
	return nil
}
