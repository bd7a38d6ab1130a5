// Audioctl is the command-line client for a running audiod. It starts and
// stops recordings, uploads files for playback, repairs streamed WAVE
// headers, and streams live events from the daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/large-farva/audiod/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8090", "audiod URL (e.g. http://192.168.8.1:8090)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,log)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --out are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "formats":
		fmtFlags := pflag.NewFlagSet("formats", pflag.ContinueOnError)
		minChannels := fmtFlags.Int("min-channels", 0, "Minimum channel count for the selection")
		_ = fmtFlags.Parse(subArgs)
		err = ctl.Formats(*host, *minChannels, *jsonOut)

	case "stats":
		err = ctl.Stats(*host, *jsonOut)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Filter by log level (info, error)")
		logFlags.StringVar(&opts.Component, "component", "", "Filter by component (capture, playback, audiod)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = logFlags.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	case "system-info":
		err = ctl.SystemInfo(*host, *jsonOut)

	// ── Control commands ──────────────────────────────────────────
	case "record":
		opts := ctl.RecordOptions{JSON: *jsonOut}
		recFlags := pflag.NewFlagSet("record", pflag.ContinueOnError)
		recFlags.IntVar(&opts.Channels, "channels", 0, "Channel count (default: daemon's capture.default_channels)")
		_ = recFlags.Parse(subArgs)
		err = ctl.Record(*host, opts)

	case "stop":
		opts := ctl.StopOptions{JSON: *jsonOut}
		stopFlags := pflag.NewFlagSet("stop", pflag.ContinueOnError)
		stopFlags.StringVarP(&opts.Out, "out", "o", "", "Where to save the recording")
		_ = stopFlags.Parse(subArgs)
		err = ctl.Stop(*host, opts)

	case "play":
		opts := ctl.PlayOptions{JSON: *jsonOut}
		playFlags := pflag.NewFlagSet("play", pflag.ContinueOnError)
		playFlags.BoolVar(&opts.Fix, "fix", false, "Patch streamed header sizes before upload")
		_ = playFlags.Parse(subArgs)
		if playFlags.NArg() < 1 {
			usage()
			os.Exit(2)
		}
		opts.File = playFlags.Arg(0)
		err = ctl.Play(*host, opts)

	case "fix-wav":
		opts := ctl.FixOptions{JSON: *jsonOut}
		fixFlags := pflag.NewFlagSet("fix-wav", pflag.ContinueOnError)
		fixFlags.StringVarP(&opts.Out, "out", "o", "", "Write the patched file here instead of in place")
		fixFlags.BoolVar(&opts.Remote, "remote", false, "Have the daemon patch the file")
		_ = fixFlags.Parse(subArgs)
		if fixFlags.NArg() < 1 {
			usage()
			os.Exit(2)
		}
		opts.In = fixFlags.Arg(0)
		err = ctl.FixWAV(*host, opts)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter: *filter,
			JSON:   *jsonOut,
		})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  audioctl - audiod control CLI

  USAGE
    audioctl [flags] <command> [command-flags] [args]

  COMMANDS (query)
    status          Show recorder state, uptime, and the active session
    health          Check daemon health
    version         Show CLI and daemon version information
    config          Show the daemon's running configuration
    formats         List the capture device's native formats
    stats           Show recording and playback counters
    logs            Show recent daemon log messages
    system-info     Show runtime and audio backend information

  COMMANDS (control)
    record          Start recording on the daemon
    stop            Stop recording and save the WAVE file
    play FILE       Play a WAVE file on the daemon's speaker
    fix-wav FILE    Patch the size fields of a streamed WAVE file

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8090)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    formats:
        --min-channels N    Minimum channel count for the selection

    record:
        --channels N        Channel count to record

    stop:
    -o, --out FILE          Where to save the recording

    play:
        --fix               Patch streamed header sizes before upload

    fix-wav:
    -o, --out FILE          Write the patched file here instead of in place
        --remote            Have the daemon patch the file

    logs:
        --level LEVEL       Filter by log level (info, error)
        --component NAME    Filter by component (capture, playback, audiod)
        --limit N           Limit number of log entries shown
        --tail              Stream live log events

  EXAMPLES
    audioctl status
    audioctl --json status
    audioctl formats --min-channels 1
    audioctl record --channels 1
    audioctl stop -o take1.wav
    audioctl logs --component capture --limit 20
    audioctl play take1.wav
    audioctl play stream.wav --fix
    audioctl fix-wav stream.wav -o fixed.wav
    audioctl logs --level error --limit 20
    audioctl --host http://192.168.8.1:8090 watch --filter state,log

`)
}
