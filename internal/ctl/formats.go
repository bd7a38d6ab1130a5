package ctl

import (
	"fmt"
	"strings"
)

// Formats lists the capture device's native formats and the one the daemon
// would pick for minChannels.
func Formats(baseURL string, minChannels int, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	path := "/api/formats"
	if minChannels > 0 {
		path += fmt.Sprintf("?min_channels=%d", minChannels)
	}

	var resp struct {
		Formats     []FormatInfo `json:"formats"`
		MinChannels int          `json:"min_channels"`
		Target      FormatInfo   `json:"target"`
		Selected    *FormatInfo  `json:"selected"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  CAPTURE FORMATS"))

	if len(resp.Formats) == 0 {
		fmt.Println(colorize(dim, "  ────────────────────────"))
		fmt.Println("  The device reported no native formats.")
	} else {
		t := newTable("  ", "#", "Encoding", "Rate", "Bits", "Ch", "")
		t.alignRight(0)
		t.alignRight(3)
		t.alignRight(4)
		for i, f := range resp.Formats {
			mark := ""
			if resp.Selected != nil && f == *resp.Selected {
				mark = "<- selected"
			}
			t.row(fmt.Sprint(i), f.Encoding, formatRate(f.SampleRate),
				fmt.Sprint(f.BitsPerSample), fmt.Sprint(f.Channels), mark)
		}
		t.flush()
	}

	fmt.Println()
	fmt.Printf("  %-14s %d\n", colorize(dim, "Min channels:"), resp.MinChannels)
	fmt.Printf("  %-14s %s\n", colorize(dim, "Target:"), resp.Target)
	fmt.Println()
	return nil
}
