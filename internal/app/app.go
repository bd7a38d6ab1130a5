// Package app wires together the HTTP server, the WebSocket hub, the
// recorder and the player. It owns the daemon's lifecycle and is the single
// source of truth for the current recorder state.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/large-farva/audiod/internal/audio"
	"github.com/large-farva/audiod/internal/capture"
	"github.com/large-farva/audiod/internal/config"
	"github.com/large-farva/audiod/internal/playback"
	"github.com/large-farva/audiod/internal/telemetry"
	"github.com/large-farva/audiod/internal/wav"
	"github.com/large-farva/audiod/internal/ws"
)

const component = "audiod"

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string

	// Device and Output are the platform capture device and player.
	// Backend names them for status output ("native" or "simulated").
	Device  audio.Device
	Output  playback.Output
	Backend string
}

// App is the top-level daemon process. It manages the HTTP server, the
// WebSocket event hub, and the recording slot.
type App struct {
	log        *log.Logger
	cfg        config.Config
	configPath string
	bind       string
	backend    string
	server     *http.Server

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, IDLE, RECORDING, ...)

	wsHub    *ws.Hub
	events   *eventTap
	recorder *capture.Manager
	player   *playback.Service
	device   audio.Device

	statsMu sync.Mutex
	stats   usageStats
}

type usageStats struct {
	Recordings      int    `json:"recordings"`
	RecordedBytes   int64  `json:"recorded_bytes"`
	FailedStops     int    `json:"failed_stops"`
	Playbacks       int    `json:"playbacks"`
	LastRecordingAt string `json:"last_recording_at"`
}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	a := &App{
		log:        opts.Logger,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		backend:    opts.Backend,
		startedAt:  time.Now(),
		wsHub:      ws.NewHub(),
		device:     opts.Device,
	}
	a.state.Store("BOOTING")
	a.events = newEventTap(a.wsHub, 500)

	capCfg := opts.Cfg.Capture
	a.recorder = capture.NewManager(capture.Options{
		Device:          opts.Device,
		Encoder:         wav.Encoder{},
		Hub:             a.events,
		Log:             a.log,
		SampleRate:      capCfg.SampleRate,
		BitsPerSample:   capCfg.BitsPerSample,
		DefaultChannels: capCfg.DefaultChannels,
		StopTimeout:     capCfg.StopTimeout(),
		BlockDivisor:    capCfg.BlockDivisor,
		UseDeviceFormat: capCfg.UseDeviceFormat,
		Debug:           opts.Cfg.Logging.Level == "debug",
		OnState:         func(st capture.State) { a.transition(string(st)) },
	})
	a.player = playback.New(opts.Output, a.events, a.log)
	return a
}

// Handler returns the daemon's HTTP routes.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/system", a.handleSystem)
	mux.HandleFunc("/api/logs", a.handleLogs)
	mux.HandleFunc("/api/stats", a.handleStats)

	mux.HandleFunc("/api/formats", a.handleFormats)
	mux.HandleFunc("/api/record", a.handleRecord)
	mux.HandleFunc("/api/recording", a.handleRecording)
	mux.HandleFunc("/api/stop", a.handleStop)
	mux.HandleFunc("/api/play", a.handlePlay)
	mux.HandleFunc("/api/wav/fix", a.handleFixWAV)

	mux.Handle("/ws", a.wsHub.Handler())
	return mux
}

// Run starts the HTTP server, WebSocket hub, and heartbeat ticker. It
// blocks until the context is cancelled or the server returns an error.
// An active recording is stopped and discarded on the way out.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" && a.cfg.Server.Bind != "" {
		bind = a.cfg.Server.Bind
	}
	if bind == "" {
		bind = "127.0.0.1:8090"
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	a.log.Printf("listening on http://%s (%s backend)", bind, a.backend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.wsHub.Run(gctx) })
	g.Go(func() error {
		a.heartbeatLoop(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Printf("shutdown requested")

		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Capture.StopTimeout()+time.Second)
		defer cancel()
		if err := a.recorder.Close(stopCtx); err != nil {
			a.log.Printf("discarding active recording: %v", err)
		}
		return a.server.Shutdown(stopCtx)
	})
	g.Go(func() error {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	a.transition(string(capture.StateIdle))
	return g.Wait()
}

// transition atomically updates the daemon state and broadcasts the change
// to all connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Swap(newState).(string)
	if old == newState {
		return
	}
	a.events.BroadcastJSON(telemetry.NewStateTransition(component, old, newState))
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.events.BroadcastJSON(telemetry.NewHeartbeat(
				component,
				a.state.Load().(string),
				time.Since(a.startedAt),
				a.wsHub.Clients(),
			))
		}
	}
}

// logf writes to the daemon log and pushes the same line to clients.
func (a *App) logf(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.log.Print(msg)
	a.events.BroadcastJSON(telemetry.NewLogLine(component, level, msg))
}

func (a *App) noteRecording(n int) {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	a.stats.Recordings++
	a.stats.RecordedBytes += int64(n)
	a.stats.LastRecordingAt = telemetry.NowTS()
}

func (a *App) noteFailedStop() {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	a.stats.FailedStops++
}

func (a *App) notePlayback() {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	a.stats.Playbacks++
}
