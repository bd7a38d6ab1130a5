package ctl

import (
	"fmt"
	"net/http"
	"os"

	"github.com/large-farva/audiod/internal/wav"
)

// PlayOptions configures the play command.
type PlayOptions struct {
	File string
	Fix  bool // patch streamed header sizes before upload
	JSON bool
}

// Play uploads a WAVE file to the daemon for playback.
func Play(baseURL string, opts PlayOptions) error {
	data, err := os.ReadFile(opts.File)
	if err != nil {
		return err
	}
	if opts.Fix {
		if err := wav.Fix(data); err != nil {
			return fmt.Errorf("fix %s: %w", opts.File, err)
		}
	}

	resp, err := postAudio(baseURL, "/api/play", data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		OK bool `json:"ok"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(map[string]any{"ok": result.OK, "file": opts.File, "bytes": len(data)})
	}
	fmt.Printf("\n  %s  %s (%s)\n\n", colorize(green, "PLAYING"), opts.File, formatBytes(int64(len(data))))
	return nil
}

// FixOptions configures the fix-wav command.
type FixOptions struct {
	In     string
	Out    string // empty patches In in place
	Remote bool   // let the daemon patch the bytes
	JSON   bool
}

// FixWAV rewrites the RIFF and chunk sizes of a WAVE file whose header was
// written before its length was known.
func FixWAV(baseURL string, opts FixOptions) error {
	out := opts.Out
	if out == "" {
		out = opts.In
	}

	var err error
	if opts.Remote {
		err = fixRemote(baseURL, opts.In, out)
	} else {
		err = fixLocal(opts.In, out)
	}
	if err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(map[string]any{"ok": true, "file": out})
	}
	fmt.Printf("\n  %s  %s\n\n", colorize(green, "FIXED"), out)
	return nil
}

func fixLocal(in, out string) error {
	if out != in {
		if err := copyFile(in, out); err != nil {
			return err
		}
	}
	return wav.FixFile(out)
}

func fixRemote(baseURL, in, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	resp, err := postAudio(baseURL, "/api/wav/fix", data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "/api/wav/fix")
	}
	_, err = saveBody(out, resp.Body)
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = saveBody(dst, in)
	return err
}

