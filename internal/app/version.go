package app

import (
	"runtime"
	"runtime/debug"

	"github.com/large-farva/audiod/internal/audio"
	"github.com/large-farva/audiod/internal/wav"
)

// Version and BuiltAt are set at link time:
//
//	go build -ldflags "-X github.com/large-farva/audiod/internal/app.Version=v1.0.0"
//
// An unset Version falls back to the module version recorded in the binary.
var (
	Version = "dev"
	BuiltAt = "unknown"
)

// versionInfo is the /api/version payload: the build plus the audio stack
// the daemon was started with.
type versionInfo struct {
	Version   string              `json:"version"`
	GoVersion string              `json:"go_version"`
	BuiltAt   string              `json:"built_at"`
	Backend   string              `json:"backend"`
	Target    audio.CaptureFormat `json:"capture_target"`
	Encodings []audio.Encoding    `json:"wav_encodings"`
}

func (a *App) versionInfo() versionInfo {
	v := versionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		BuiltAt:   BuiltAt,
		Backend:   a.backend,
		Target:    a.recorder.Target(0),
		Encodings: wavEncodings(),
	}
	if v.Version == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v.Version = bi.Main.Version
		}
	}
	return v
}

// wavEncodings lists the sample encodings recordings can be stored in.
func wavEncodings() []audio.Encoding {
	var out []audio.Encoding
	for e := audio.PCMSigned; e <= audio.ALaw; e++ {
		f := audio.CaptureFormat{Encoding: e, BitsPerSample: 8, Channels: 1}
		if e == audio.PCMSigned || e == audio.PCMFloat {
			f.BitsPerSample = 16
		}
		if (wav.Encoder{}).Supports(f) {
			out = append(out, e)
		}
	}
	return out
}
