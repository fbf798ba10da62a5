package videometa

import (
	"fmt"
	"strconv"
	"strings"
)

// hevcProfileName/hevcLevelName turn the numeric hvcC profile/level
// fields (already folded into the RFC6381 codec tag by mp4_codec.go's
// assembleCodecTag) back into the human-readable profile string the
// CLI's text report prints alongside the short codec tag.
func hevcProfileName(idc byte) string {
	switch idc {
	case 1:
		return "Main"
	case 2:
		return "Main 10"
	case 3:
		return "Main Still"
	case 4:
		return "Range Extensions"
	case 5:
		return "High Throughput"
	default:
		return ""
	}
}

func hevcLevelName(idc byte) string {
	if idc == 0 {
		return ""
	}
	level := float64(idc) / 30.0
	if level == float64(int(level)) {
		return fmt.Sprintf("%.0f", level)
	}
	return fmt.Sprintf("%.1f", level)
}

// DescribeHEVCTag decodes an assembled "hev1.XXYY"/"hvc1.XXYY" codec
// tag (two hex bytes: profile_idc, level_idc — see hexCodecTag) back
// into a "<profile>@L<level>" description for display. The tier bit is
// folded into profile_idc before the tag is assembled and cannot be
// recovered here, so tier is not reported.
func DescribeHEVCTag(codec string) string {
	var hex string
	switch {
	case strings.HasPrefix(codec, "hev1."):
		hex = codec[len("hev1."):]
	case strings.HasPrefix(codec, "hvc1."):
		hex = codec[len("hvc1."):]
	default:
		return ""
	}
	if len(hex) != 4 {
		return ""
	}
	profile, err := strconv.ParseUint(hex[0:2], 16, 8)
	if err != nil {
		return ""
	}
	level, err := strconv.ParseUint(hex[2:4], 16, 8)
	if err != nil {
		return ""
	}
	name := hevcProfileName(byte(profile))
	if name == "" {
		return ""
	}
	if lvl := hevcLevelName(byte(level)); lvl != "" {
		name = fmt.Sprintf("%s@L%s", name, lvl)
	}
	return name
}
