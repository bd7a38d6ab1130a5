// Audiod is the remote audio daemon. It records from the local microphone
// on request, hands the recording back as a WAVE file, and plays WAVE files
// sent by clients.
//
// It loads configuration, opens the native audio backend (or a simulated
// tone device), and starts the HTTP/WebSocket server. Shutdown is handled
// gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/large-farva/audiod/internal/app"
	"github.com/large-farva/audiod/internal/config"
	"github.com/large-farva/audiod/internal/platform"
	"github.com/large-farva/audiod/internal/platform/native"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// run does the daemon's work so that deferred cleanup, such as releasing
// the audio backend, happens before main picks an exit code.
func run(args []string) error {
	fs := pflag.NewFlagSet("audiod", pflag.ContinueOnError)
	var (
		configPath = fs.StringP("config", "c", "/etc/audiod/audiod.toml", "Path to config TOML")
		bind       = fs.String("bind", "", "HTTP bind address (overrides server.bind)")
		simulate   = fs.Bool("simulate", false, "Use a synthetic tone device instead of real hardware")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) && !fs.Changed("config") {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		log.Printf("config load failed: %v", err)
		return err
	}
	if *simulate {
		cfg.Capture.Simulate = true
	}

	var out io.Writer = os.Stdout
	if cfg.Logging.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
	}
	logger := log.New(out, "audiod ", log.LstdFlags|log.Lmicroseconds)

	opts := app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
	}

	if cfg.Capture.Simulate {
		opts.Device = platform.NewSimDevice(cfg.Simulate.ToneHz, logger)
		opts.Output = platform.NewSimOutput(logger)
		opts.Backend = "simulated"
	} else {
		backend, err := native.New(logger)
		if err != nil {
			logger.Printf("audio backend: %v", err)
			return err
		}
		defer func() {
			if err := backend.Close(); err != nil {
				logger.Printf("audio backend close: %v", err)
			}
		}()
		opts.Device = backend
		opts.Output = backend
		opts.Backend = "native"
	}

	a := app.New(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Printf("audiod failed: %v", err)
		return err
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
	return nil
}
