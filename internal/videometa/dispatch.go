package videometa

import "math"

const sniffWindow = 32

// sniffContainer inspects the first bytes of buf for a known container
// signature. WebM/MKV share a magic number, so DocType discrimination
// is left to parseEBML itself; this function only decides which parser
// to call.
func sniffContainer(buf []byte) Container {
	if len(buf) >= 376+1 && buf[0] == 0x47 && buf[188] == 0x47 && buf[376] == 0x47 {
		return ContainerTS
	}
	window := buf
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	if containsTag(window, "ftyp") {
		return ContainerMP4
	}
	if containsTag(window, "moov") {
		return ContainerMOV
	}
	if len(buf) >= 4 && string(buf[0:4]) == "RIFF" {
		return ContainerAVI
	}
	if len(buf) >= 4 && buf[0] == 0x1A && buf[1] == 0x45 && buf[2] == 0xDF && buf[3] == 0xA3 {
		return ContainerWebM // refined to ContainerMKV by parseEBML's DocType check
	}
	return ContainerUnknown
}

func containsTag(window []byte, tag string) bool {
	b := []byte(tag)
	for i := 0; i+4 <= len(window); i++ {
		if window[i] == b[0] && window[i+1] == b[1] && window[i+2] == b[2] && window[i+3] == b[3] {
			return true
		}
	}
	return false
}

// ParseOptions carries optional hints for callers; Headers exists only
// for collaborators outside the core (e.g. a secondary network fetch)
// and is ignored here.
type ParseOptions struct {
	Headers map[string]string
}

// ParseVideoMetadata sniffs the container from the first bytes of buf,
// dispatches to the matching format parser, then assembles the public
// VideoInfoResult.
func ParseVideoMetadata(buf []byte, fileSize int64, _ ParseOptions) (VideoInfoResult, error) {
	if fileSize <= 0 {
		fileSize = int64(len(buf))
	}
	container := sniffContainer(buf)

	var parsed ParsedVideoMetadata
	var err error
	switch container {
	case ContainerTS:
		parsed, err = parseTS(buf, fileSize)
	case ContainerMP4, ContainerMOV:
		parsed, err = parseMP4(buf, fileSize, container)
	case ContainerAVI:
		parsed, err = parseAVI(buf, fileSize)
	case ContainerWebM:
		parsed, err = parseEBML(buf, fileSize)
	default:
		return VideoInfoResult{}, newParseError(KindUnsupportedContainer, "unknown", "", 0, "no known container signature found")
	}
	if err != nil {
		return VideoInfoResult{}, err
	}
	return assembleResult(parsed), nil
}

// assembleResult derives the remaining public fields from a parsed
// track: orientation, naturalOrientation, aspectRatio, is16_9, and the
// bitRate fallback.
func assembleResult(p ParsedVideoMetadata) VideoInfoResult {
	result := VideoInfoResult{
		Duration:        p.Duration,
		HasAudio:        p.HasAudio,
		Width:           int(p.Width),
		Height:          int(p.Height),
		FPS:             p.FPS,
		BitRate:         p.Bitrate,
		FileSize:        p.FileSize,
		Codec:           p.Codec,
		AudioSampleRate: p.AudioSampleRate,
		AudioChannels:   p.AudioChannels,
		AudioCodec:      p.AudioCodec,
		Location:        p.Location,
	}
	if !p.Color.isEmpty() {
		hdr := isHDR(p.Color)
		result.IsHDR = &hdr
	}

	displayW, displayH := p.DisplayAspectWidth, p.DisplayAspectHeight
	if displayW == 0 || displayH == 0 {
		displayW, displayH = p.Width, p.Height
	}
	result.NaturalOrientation = NaturalLandscape
	if displayH > displayW {
		result.NaturalOrientation = NaturalPortrait
	}
	result.Orientation = orientationFor(p.Rotation, result.NaturalOrientation)

	// AspectRatio is always width/height of the reported dimensions
	// themselves, never a display-adjusted substitute, even when a MOV
	// aperture override made displayW/displayH diverge from Width/Height.
	if result.Width > 0 && result.Height > 0 {
		result.AspectRatio = float64(result.Width) / float64(result.Height)
		result.Is16_9 = math.Abs(result.AspectRatio-16.0/9.0) < 0.01
	}
	if result.BitRate == 0 && p.FileSize > 0 && p.Duration > 0 {
		result.BitRate = int64(roundTo(float64(p.FileSize)*8/p.Duration, 0))
	}
	return result
}

// orientationFor maps a rotation angle and natural orientation to the
// display orientation the viewer should apply.
func orientationFor(rotation int, natural NaturalOrientation) Orientation {
	switch rotation {
	case 90:
		return OrientationPortrait
	case 180:
		if natural == NaturalPortrait {
			return OrientationPortraitUpsideDown
		}
		return OrientationLandscapeLeft
	case 270:
		return OrientationPortraitUpsideDown
	default:
		if natural == NaturalPortrait {
			return OrientationPortrait
		}
		return OrientationLandscapeRight
	}
}
