package videometa

import "encoding/binary"

const maxMoovSize = int64(64 << 20)

// mp4Box is one parsed top-level or nested box header: a big-endian
// (size:u32, type:4-ASCII) header, optionally extended to a 64-bit
// size when size==1, followed by payload.
type mp4Box struct {
	Type       string
	HeaderSize int64
	PayloadOff int64
	PayloadLen int64
}

// walkMP4Boxes calls fn for each sibling box found in buf starting at
// offset 0. A box whose declared size is smaller than its header, or
// runs past the end of buf, truncates the walk rather than failing it.
func walkMP4Boxes(buf []byte, fn func(mp4Box, []byte) bool) {
	var offset int64
	n := int64(len(buf))
	for offset+8 <= n {
		headerSize := int64(8)
		if offset+8 > n {
			break
		}
		size32 := binary.BigEndian.Uint32(buf[offset : offset+4])
		boxType := string(buf[offset+4 : offset+8])
		var boxSize int64
		switch {
		case size32 == 0:
			boxSize = n - offset
		case size32 == 1:
			if offset+16 > n {
				return
			}
			boxSize = int64(binary.BigEndian.Uint64(buf[offset+8 : offset+16]))
			headerSize = 16
		default:
			boxSize = int64(size32)
		}
		if boxSize < headerSize || offset+boxSize > n {
			return
		}
		payloadOff := offset + headerSize
		payloadLen := boxSize - headerSize
		if !fn(mp4Box{Type: boxType, HeaderSize: headerSize, PayloadOff: payloadOff, PayloadLen: payloadLen}, buf[payloadOff:payloadOff+payloadLen]) {
			return
		}
		offset += boxSize
	}
}

// findTopLevelMP4Box scans the whole file for the first occurrence of
// boxType at the top level, returning its payload.
func findTopLevelMP4Box(r []byte, boxType string) ([]byte, bool) {
	var found []byte
	var ok bool
	walkMP4Boxes(r, func(b mp4Box, payload []byte) bool {
		if b.Type == boxType {
			found = payload
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

// parseMP4 locates moov, then within it mvhd (overall duration) and
// each trak (track metadata), preferring the first video track found
// and falling back to audio-only.
func parseMP4(buf []byte, fileSize int64, container Container) (ParsedVideoMetadata, error) {
	moov, ok := findTopLevelMP4Box(buf, "moov")
	if !ok {
		return ParsedVideoMetadata{}, newParseError(KindUnsupportedContainer, string(container), "moov", 0, "no moov box")
	}
	if int64(len(moov)) > maxMoovSize {
		return ParsedVideoMetadata{}, newParseError(KindMalformedStructure, string(container), "moov", 0, "moov exceeds size sanity bound")
	}

	result := ParsedVideoMetadata{Container: container, FileSize: fileSize}
	var warnings []string
	var videoTrack *VideoTrackMetadata
	var audioTrack *mp4AudioTrack
	var mvhdDuration float64
	var mvhdOK bool

	walkMP4Boxes(moov, func(b mp4Box, payload []byte) bool {
		switch b.Type {
		case "mvhd":
			if d, ok := parseMvhd(payload); ok {
				mvhdDuration, mvhdOK = d, true
			}
		case "trak":
			track, audio, kind, err := parseTrak(payload)
			if err != nil {
				warnings = append(warnings, err.Error())
				return true
			}
			switch kind {
			case "video":
				if videoTrack == nil {
					videoTrack = &track
				}
			case "audio":
				if audioTrack == nil {
					audioTrack = &audio
				}
			}
		case "udta":
			if loc, ok := parseMP4Location(payload); ok {
				result.Location = &loc
			}
		}
		return true
	})

	if mvhdOK {
		result.Duration = mvhdDuration
	}
	if videoTrack != nil {
		result.VideoTrackMetadata = *videoTrack
	}
	if audioTrack != nil {
		result.HasAudio = true
		result.AudioChannels = audioTrack.Channels
		result.AudioSampleRate = audioTrack.SampleRate
		result.AudioCodec = audioTrack.Codec
	}
	if videoTrack == nil && audioTrack == nil {
		return ParsedVideoMetadata{}, newParseError(KindNoVideoTrack, string(container), "trak", 0, "no usable track found")
	}
	result.Warnings = warnings
	return result, nil
}

// parseMvhd reads the movie header's timescale/duration pair.
func parseMvhd(payload []byte) (float64, bool) {
	if len(payload) < 1 {
		return 0, false
	}
	version := payload[0]
	if version == 0 {
		if len(payload) < 20 {
			return 0, false
		}
		timescale := binary.BigEndian.Uint32(payload[12:16])
		duration := binary.BigEndian.Uint32(payload[16:20])
		if timescale == 0 {
			return 0, false
		}
		return float64(duration) / float64(timescale), true
	}
	if version == 1 {
		if len(payload) < 32 {
			return 0, false
		}
		timescale := binary.BigEndian.Uint32(payload[20:24])
		duration := binary.BigEndian.Uint64(payload[24:32])
		if timescale == 0 {
			return 0, false
		}
		return float64(duration) / float64(timescale), true
	}
	return 0, false
}

type mp4AudioTrack struct {
	Channels   int
	SampleRate int
	Codec      string
}

// parseTrak walks one trak's children, extracting the handler type
// from mdia/hdlr to decide whether this is the video or audio track,
// then folding in tkhd rotation/display-size, the mdhd timescale (used
// with stts for the frame rate), and the stbl/stsd sample-entry metadata.
func parseTrak(buf []byte) (VideoTrackMetadata, mp4AudioTrack, string, error) {
	var handler string
	var rotation int
	var tkhdDisplayW, tkhdDisplayH uint32
	var timescale uint32
	var sttsPayload []byte
	var sampleEntry mp4SampleEntryInfo
	var haveSampleEntry bool

	walkMP4Boxes(buf, func(b mp4Box, payload []byte) bool {
		switch b.Type {
		case "tkhd":
			rotation, tkhdDisplayW, tkhdDisplayH = parseTkhd(payload)
		case "mdia":
			walkMP4Boxes(payload, func(mb mp4Box, mp []byte) bool {
				switch mb.Type {
				case "hdlr":
					handler = parseHdlr(mp)
				case "mdhd":
					timescale, _, _ = parseMdhd(mp)
				case "minf":
					walkMP4Boxes(mp, func(ib mp4Box, ip []byte) bool {
						if ib.Type != "stbl" {
							return true
						}
						walkMP4Boxes(ip, func(sb mp4Box, sp []byte) bool {
							switch sb.Type {
							case "stsd":
								if entry, ok := parseStsd(sp); ok {
									sampleEntry = entry
									haveSampleEntry = true
								}
							case "stts":
								sttsPayload = sp
							}
							return true
						})
						return true
					})
				}
				return true
			})
		}
		return true
	})

	if handler == "vide" {
		track := VideoTrackMetadata{Rotation: rotation}
		if haveSampleEntry {
			track.Width = sampleEntry.Width
			track.Height = sampleEntry.Height
			track.Codec = sampleEntry.Codec
			track.Color = sampleEntry.Color
		}
		track.DisplayAspectWidth = tkhdDisplayW
		track.DisplayAspectHeight = tkhdDisplayH
		if haveSampleEntry && sampleEntry.PixelAspectH > 0 && sampleEntry.PixelAspectV > 0 {
			track.DisplayAspectWidth = uint32(roundTo(float64(track.Width)*float64(sampleEntry.PixelAspectH)/float64(sampleEntry.PixelAspectV), 0))
			track.DisplayAspectHeight = track.Height
		}
		// MOV-only overrides: clap applies first, then tapt/clef
		// supersedes clap when both are present.
		if haveSampleEntry && sampleEntry.HasClap {
			track.DisplayAspectWidth = sampleEntry.ClapWidth
			track.DisplayAspectHeight = sampleEntry.ClapHeight
		}
		if w, h, ok := findMOVTaptOverride(buf); ok {
			track.DisplayAspectWidth = w
			track.DisplayAspectHeight = h
		}
		if timescale > 0 && len(sttsPayload) > 0 {
			if timing, ok := parseMP4TimingInfo(sttsPayload, timescale, 0); ok {
				if fps, ok := calculateFps(timing); ok {
					track.FPS = fps
					track.HasFPS = true
				}
			}
		}
		return track, mp4AudioTrack{}, "video", nil
	}
	if handler == "soun" {
		audio := mp4AudioTrack{}
		if haveSampleEntry {
			audio.Channels = sampleEntry.AudioChannels
			audio.SampleRate = sampleEntry.AudioSampleRate
			audio.Codec = sampleEntry.AudioCodec
		}
		return VideoTrackMetadata{}, audio, "audio", nil
	}
	return VideoTrackMetadata{}, mp4AudioTrack{}, "", nil
}

func parseHdlr(payload []byte) string {
	if len(payload) < 12 {
		return ""
	}
	return string(payload[8:12])
}

// parseTkhd reads rotation and display width/height: after the fixed
// 4/8-wide header fields comes a 9-entry 16.16 matrix, then 16.16
// display width and height.
func parseTkhd(payload []byte) (rotation int, displayW, displayH uint32) {
	if len(payload) < 1 {
		return 0, 0, 0
	}
	version := payload[0]
	fixedLen := 4 + 4 + 4 + 4 + 4 + 4 + 8 + 4 + 4 // version+flags, ctime+mtime(v0=4+4), track_id+reserved, duration, reserved(8), layer+alt_group, volume+reserved
	if version == 1 {
		fixedLen = 4 + 8 + 8 + 4 + 4 + 8 + 8 + 4 + 4
	}
	if len(payload) < fixedLen+36+8 {
		return 0, 0, 0
	}
	matrixOff := fixedLen
	a := int32(binary.BigEndian.Uint32(payload[matrixOff : matrixOff+4]))
	b := int32(binary.BigEndian.Uint32(payload[matrixOff+4 : matrixOff+8]))
	c := int32(binary.BigEndian.Uint32(payload[matrixOff+12 : matrixOff+16]))
	d := int32(binary.BigEndian.Uint32(payload[matrixOff+16 : matrixOff+20]))
	const fixed1 = 0x00010000
	switch {
	case a == 0 && d == 0 && b == fixed1 && c == -fixed1:
		rotation = 90
	case a == 0 && d == 0 && b == -fixed1 && c == fixed1:
		rotation = 270
	case a == -fixed1 && d == -fixed1:
		rotation = 180
	default:
		rotation = 0
	}
	dimOff := matrixOff + 36
	w := binary.BigEndian.Uint32(payload[dimOff : dimOff+4])
	h := binary.BigEndian.Uint32(payload[dimOff+4 : dimOff+8])
	displayW = uint32(roundTo(float64(w)/65536, 0))
	displayH = uint32(roundTo(float64(h)/65536, 0))
	return rotation, displayW, displayH
}

// parseMdhd reads timescale and duration from a media header: version
// byte, 3 flag bytes, then 16 (v1) or 8 (v0) bytes of creation/
// modification time, a 32-bit timescale, then a 64- (v1) or 32-bit
// (v0) duration.
func parseMdhd(payload []byte) (timescale uint32, durationSeconds float64, ok bool) {
	if len(payload) < 1 {
		return 0, 0, false
	}
	version := payload[0]
	if version == 0 {
		if len(payload) < 24 {
			return 0, 0, false
		}
		timescale = binary.BigEndian.Uint32(payload[12:16])
		duration := binary.BigEndian.Uint32(payload[16:20])
		if timescale == 0 {
			return 0, 0, false
		}
		return timescale, float64(duration) / float64(timescale), true
	}
	if version == 1 {
		if len(payload) < 36 {
			return 0, 0, false
		}
		timescale = binary.BigEndian.Uint32(payload[20:24])
		duration := binary.BigEndian.Uint64(payload[24:32])
		if timescale == 0 {
			return 0, 0, false
		}
		return timescale, float64(duration) / float64(timescale), true
	}
	return 0, 0, false
}
