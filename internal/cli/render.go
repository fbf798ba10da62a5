package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/clipinspect/videometa/internal/videometa"
)

var (
	hdrBadge = color.New(color.FgHiYellow, color.Bold).SprintFunc()
	sdrBadge = color.New(color.FgHiBlack).SprintFunc()
	pathTag  = color.New(color.FgCyan, color.Bold).SprintFunc()
	errTag   = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

// renderText formats each file's result in a "Key : Value" report
// style, with a colorized HDR/SDR badge.
func renderText(results []fileResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(&b)
		}
		fmt.Fprintf(&b, "%s\n", pathTag(r.Path))
		if r.Error != "" {
			fmt.Fprintf(&b, "Error            : %s\n", errTag(r.Error))
			continue
		}
		res := r.Result
		fmt.Fprintf(&b, "Width            : %d\n", res.Width)
		fmt.Fprintf(&b, "Height           : %d\n", res.Height)
		fmt.Fprintf(&b, "Duration         : %.3fs\n", res.Duration)
		fmt.Fprintf(&b, "Codec            : %s\n", res.Codec)
		if profile := videometa.DescribeHEVCTag(res.Codec); profile != "" {
			fmt.Fprintf(&b, "Profile          : %s\n", profile)
		}
		fmt.Fprintf(&b, "FPS              : %s\n", formatFPS(res))
		fmt.Fprintf(&b, "HDR              : %s\n", formatHDR(res))
		fmt.Fprintf(&b, "Orientation      : %s\n", res.Orientation)
		fmt.Fprintf(&b, "Aspect Ratio     : %.4f%s\n", res.AspectRatio, is16x9Suffix(res))
		fmt.Fprintf(&b, "Bit Rate         : %d bps\n", res.BitRate)
		if res.HasAudio {
			fmt.Fprintf(&b, "Audio            : %s, %d ch, %d Hz\n", res.AudioCodec, res.AudioChannels, res.AudioSampleRate)
		}
		if res.Location != nil {
			fmt.Fprintf(&b, "Location         : %.6f, %.6f\n", res.Location.Latitude, res.Location.Longitude)
		}
	}
	return b.String()
}

func formatFPS(res *videometa.VideoInfoResult) string {
	if res.FPS <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.3f", res.FPS)
}

func formatHDR(res *videometa.VideoInfoResult) string {
	if res.IsHDR == nil {
		return sdrBadge("unknown")
	}
	if *res.IsHDR {
		return hdrBadge("HDR")
	}
	return sdrBadge("SDR")
}

func is16x9Suffix(res *videometa.VideoInfoResult) string {
	if res.Is16_9 {
		return " (16:9)"
	}
	return ""
}

func renderJSON(results []fileResult) string {
	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

// writeYAMLReport implements the --report=<path>.yaml flag: the full
// VideoInfoResult set, rendered with gopkg.in/yaml.v3 rather than the
// text/JSON renderers above.
func writeYAMLReport(path string, results []fileResult) error {
	out, err := yaml.Marshal(results)
	if err != nil {
		return fmt.Errorf("could not render report: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}
