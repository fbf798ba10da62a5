package videometa

import (
	"encoding/binary"
	"math"
)

// EBML/Matroska element IDs used by this parser, including the
// MKV-only crop/aspect/stereo extras and the WebM/MKV Colour element.
const (
	ebmlIDEBMLHeader        = 0x1A45DFA3
	ebmlIDDocType           = 0x4282
	ebmlIDSegment           = 0x18538067
	ebmlIDInfo              = 0x1549A966
	ebmlIDTimecodeScale     = 0x2AD7B1
	ebmlIDDuration          = 0x4489
	ebmlIDTracks            = 0x1654AE6B
	ebmlIDTrackEntry        = 0xAE
	ebmlIDTrackType         = 0x83
	ebmlIDCodecID           = 0x86
	ebmlIDCodecPrivate      = 0x63A2
	ebmlIDDefaultDuration   = 0x23E383
	ebmlIDTrackVideo        = 0xE0
	ebmlIDTrackAudio        = 0xE1
	ebmlIDPixelWidth        = 0xB0
	ebmlIDPixelHeight       = 0xBA
	ebmlIDDisplayWidth      = 0x54B0
	ebmlIDDisplayHeight     = 0x54BA
	ebmlIDPixelCropTop      = 0x54BB
	ebmlIDPixelCropBottom   = 0x54AA
	ebmlIDPixelCropLeft     = 0x54CC
	ebmlIDPixelCropRight    = 0x54DD
	ebmlIDAspectRatioType   = 0x54B2
	ebmlIDStereoMode        = 0x53B8
	ebmlIDColourElement     = 0x55B0
	ebmlIDSamplingFrequency = 0xB5
	ebmlIDChannels          = 0x9F

	ebmlUnknownSize = ^uint64(0)
	ebmlMaxScan     = int64(8 << 20)
)

// ebmlElement is one (id, payload) pair produced by a single level of
// scanEBML, analogous to mp4Box for the ISO BMFF walker.
type ebmlElement struct {
	ID      uint64
	Payload []byte
}

// scanEBML walks the sibling elements of buf, calling fn for each. An
// element whose declared size is "unknown" (all-1s, the EBML
// streaming convention) or runs past the buffer end is clamped to the
// remainder of buf rather than aborting the walk.
func scanEBML(buf []byte, fn func(ebmlElement) bool) {
	pos := 0
	for pos < len(buf) {
		id, idLen, ok := readVintID(buf, pos)
		if !ok {
			return
		}
		size, sizeLen, ok := readVintSize(buf, pos+idLen)
		if !ok {
			return
		}
		dataStart := pos + idLen + sizeLen
		dataEnd := dataStart + int(size)
		if size == ebmlUnknownSize || dataEnd > len(buf) || dataEnd < dataStart {
			dataEnd = len(buf)
		}
		if dataStart > len(buf) {
			return
		}
		if !fn(ebmlElement{ID: id, Payload: buf[dataStart:dataEnd]}) {
			return
		}
		pos = dataEnd
	}
}

func readVintID(buf []byte, pos int) (uint64, int, bool) {
	if pos >= len(buf) {
		return 0, 0, false
	}
	length := vintLength(buf[pos])
	if length == 0 || pos+length > len(buf) {
		return 0, 0, false
	}
	var value uint64
	for i := 0; i < length; i++ {
		value = (value << 8) | uint64(buf[pos+i])
	}
	return value, length, true
}

func readVintSize(buf []byte, pos int) (uint64, int, bool) {
	if pos >= len(buf) {
		return 0, 0, false
	}
	length := vintLength(buf[pos])
	if length == 0 || pos+length > len(buf) {
		return 0, 0, false
	}
	mask := byte(0xFF >> uint(length))
	value := uint64(buf[pos] & mask)
	for i := 1; i < length; i++ {
		value = (value << 8) | uint64(buf[pos+i])
	}
	if value == (uint64(1)<<(uint(length)*7))-1 {
		return ebmlUnknownSize, length, true
	}
	return value, length, true
}

func readUnsigned(buf []byte) (uint64, bool) {
	if len(buf) == 0 || len(buf) > 8 {
		return 0, false
	}
	var value uint64
	for _, b := range buf {
		value = (value << 8) | uint64(b)
	}
	return value, true
}

func readSigned(buf []byte) (int64, bool) {
	if len(buf) == 0 || len(buf) > 8 {
		return 0, false
	}
	var value int64
	for _, b := range buf {
		value = (value << 8) | int64(b)
	}
	if buf[0]&0x80 != 0 {
		value -= 1 << (uint(len(buf)) * 8)
	}
	return value, true
}

func readFloat(buf []byte) (float64, bool) {
	switch len(buf) {
	case 4:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(buf))), true
	case 8:
		return math.Float64frombits(binary.BigEndian.Uint64(buf)), true
	default:
		return 0, false
	}
}

// parseEBML runs header DocType discrimination, then the
// Segment/Info/Tracks walk, assembling one ParsedVideoMetadata from
// the first usable video track (falling back to audio-only).
func parseEBML(buf []byte, fileSize int64) (ParsedVideoMetadata, error) {
	scanSize := int64(len(buf))
	if scanSize > ebmlMaxScan {
		scanSize = ebmlMaxScan
		buf = buf[:scanSize]
	}

	container := ContainerWebM
	var segmentPayload []byte
	var haveSegment bool

	scanEBML(buf, func(e ebmlElement) bool {
		switch e.ID {
		case ebmlIDEBMLHeader:
			if isMatroskaDocType(e.Payload) {
				container = ContainerMKV
			}
		case ebmlIDSegment:
			segmentPayload = e.Payload
			haveSegment = true
			return false
		}
		return true
	})
	if !haveSegment {
		return ParsedVideoMetadata{}, newParseError(KindUnsupportedContainer, string(container), "Segment", 0, "no Segment element")
	}

	result := ParsedVideoMetadata{Container: container, FileSize: fileSize}
	var videoTrack *VideoTrackMetadata
	var audioTrack *mp4AudioTrack
	var warnings []string

	scanEBML(segmentPayload, func(e ebmlElement) bool {
		switch e.ID {
		case ebmlIDInfo:
			if seconds, ok := parseEBMLInfo(e.Payload); ok {
				result.Duration = seconds
			}
		case ebmlIDTracks:
			scanEBML(e.Payload, func(te ebmlElement) bool {
				if te.ID != ebmlIDTrackEntry {
					return true
				}
				track, audio, kind, err := parseEBMLTrackEntry(te.Payload, container == ContainerMKV)
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
				return true
			})
		}
		return true
	})

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
		return ParsedVideoMetadata{}, newParseError(KindNoVideoTrack, string(container), "TrackEntry", 0, "no usable track found")
	}
	if result.Duration > 0 && fileSize > 0 {
		result.Bitrate = int64(roundTo(float64(fileSize)*8/result.Duration, 0))
	}
	result.Warnings = warnings
	return result, nil
}

// isMatroskaDocType scans the EBML header for DocType (0x4282); value
// "matroska" selects MKV, anything else (including absence) is WebM.
func isMatroskaDocType(headerPayload []byte) bool {
	matroska := false
	scanEBML(headerPayload, func(e ebmlElement) bool {
		if e.ID == ebmlIDDocType {
			matroska = string(e.Payload) == "matroska"
			return false
		}
		return true
	})
	return matroska
}

// parseEBMLInfo reads TimecodeScale (nanoseconds per tick, default
// 1_000_000) and Duration (float, ticks), converting to seconds.
func parseEBMLInfo(buf []byte) (float64, bool) {
	timecodeScale := uint64(1_000_000)
	var duration float64
	var haveDuration bool
	scanEBML(buf, func(e ebmlElement) bool {
		switch e.ID {
		case ebmlIDTimecodeScale:
			if v, ok := readUnsigned(e.Payload); ok && v > 0 {
				timecodeScale = v
			}
		case ebmlIDDuration:
			if v, ok := readFloat(e.Payload); ok {
				duration, haveDuration = v, true
			} else if v, ok := readUnsigned(e.Payload); ok {
				duration, haveDuration = float64(v), true
			}
		}
		return true
	})
	if !haveDuration {
		return 0, false
	}
	seconds := duration * float64(timecodeScale) / 1e9
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		return 0, false
	}
	return seconds, true
}

// parseEBMLTrackEntry decodes one TrackEntry into either a video or
// audio track record, including the MKV-only crop/aspect/stereo
// extras when mkvExtras is set.
func parseEBMLTrackEntry(buf []byte, mkvExtras bool) (VideoTrackMetadata, mp4AudioTrack, string, error) {
	var trackType uint64
	var codecID string
	var codecPrivate []byte
	var defaultDuration uint64
	var videoPayload, audioPayload []byte

	scanEBML(buf, func(e ebmlElement) bool {
		switch e.ID {
		case ebmlIDTrackType:
			trackType, _ = readUnsigned(e.Payload)
		case ebmlIDCodecID:
			codecID = string(e.Payload)
		case ebmlIDCodecPrivate:
			codecPrivate = e.Payload
		case ebmlIDDefaultDuration:
			defaultDuration, _ = readUnsigned(e.Payload)
		case ebmlIDTrackVideo:
			videoPayload = e.Payload
		case ebmlIDTrackAudio:
			audioPayload = e.Payload
		}
		return true
	})

	switch trackType {
	case 1: // video
		track := VideoTrackMetadata{Codec: mapEBMLVideoCodec(codecID)}
		if len(codecPrivate) > 0 {
			enrichEBMLVideoCodec(&track, codecID, codecPrivate)
		}
		if videoPayload != nil {
			applyEBMLVideoDimensions(&track, videoPayload, mkvExtras)
		}
		if defaultDuration > 0 {
			track.FPS = 1e9 / float64(defaultDuration)
			track.HasFPS = true
		}
		return track, mp4AudioTrack{}, "video", nil
	case 2: // audio
		audio := mp4AudioTrack{Codec: mapEBMLAudioCodec(codecID)}
		if audioPayload != nil {
			applyEBMLAudioFields(&audio, audioPayload)
		}
		if (audio.Channels == 0 || audio.SampleRate == 0) && len(codecPrivate) > 0 {
			if ch, rate, ok := parseVorbisIdentHeader(codecPrivate); ok {
				if audio.Channels == 0 {
					audio.Channels = ch
				}
				if audio.SampleRate == 0 {
					audio.SampleRate = rate
				}
			}
		}
		if audio.Channels == 0 {
			audio.Channels = 2
		}
		if audio.SampleRate == 0 {
			audio.SampleRate = 44100
		}
		return VideoTrackMetadata{}, audio, "audio", nil
	}
	return VideoTrackMetadata{}, mp4AudioTrack{}, "", nil
}

func mapEBMLVideoCodec(codecID string) string {
	switch codecID {
	case "V_VP8":
		return "vp08"
	case "V_VP9":
		return "vp9"
	case "V_AV1":
		return "av01"
	case "V_MPEG4/ISO/AVC":
		return "avc1"
	case "V_MPEGH/ISO/HEVC":
		return "hev1"
	default:
		return codecID
	}
}

func mapEBMLAudioCodec(codecID string) string {
	switch codecID {
	case "A_VORBIS":
		return "vorbis"
	case "A_OPUS":
		return "opus"
	case "A_AAC":
		return "aac"
	case "A_AC3":
		return "ac3"
	case "A_EAC3":
		return "e-ac3"
	case "A_FLAC":
		return "flac"
	case "A_PCM/INT/LIT", "A_PCM/INT/BIG":
		return "pcm"
	default:
		return codecID
	}
}

// enrichEBMLVideoCodec applies the same profile/level tag assembly
// used for AVC/HEVC in MP4, reading the codec-private blob's first
// bytes exactly as an avcC/hvcC box would be read.
func enrichEBMLVideoCodec(track *VideoTrackMetadata, codecID string, codecPrivate []byte) {
	switch codecID {
	case "V_MPEG4/ISO/AVC":
		track.Codec = assembleCodecTag("avc1", "avcC", codecPrivate, track.Codec)
		track.Color = colorFromAVCConfig(codecPrivate)
	case "V_MPEGH/ISO/HEVC":
		track.Codec = assembleCodecTag(track.Codec, "hvcC", codecPrivate, track.Codec)
		track.Color = colorFromHEVCConfig(codecPrivate)
	}
}

func applyEBMLVideoDimensions(track *VideoTrackMetadata, buf []byte, mkvExtras bool) {
	var pixelW, pixelH, displayW, displayH uint64
	var cropTop, cropBottom, cropLeft, cropRight uint64
	var aspectRatioType uint64
	var stereoMode uint64
	var colourChildren map[uint64][]byte

	scanEBML(buf, func(e ebmlElement) bool {
		switch e.ID {
		case ebmlIDPixelWidth:
			pixelW, _ = readUnsigned(e.Payload)
		case ebmlIDPixelHeight:
			pixelH, _ = readUnsigned(e.Payload)
		case ebmlIDDisplayWidth:
			displayW, _ = readUnsigned(e.Payload)
		case ebmlIDDisplayHeight:
			displayH, _ = readUnsigned(e.Payload)
		case ebmlIDPixelCropTop:
			cropTop, _ = readUnsigned(e.Payload)
		case ebmlIDPixelCropBottom:
			cropBottom, _ = readUnsigned(e.Payload)
		case ebmlIDPixelCropLeft:
			cropLeft, _ = readUnsigned(e.Payload)
		case ebmlIDPixelCropRight:
			cropRight, _ = readUnsigned(e.Payload)
		case ebmlIDAspectRatioType:
			aspectRatioType, _ = readUnsigned(e.Payload)
		case ebmlIDStereoMode:
			stereoMode, _ = readUnsigned(e.Payload)
		case ebmlIDColourElement:
			colourChildren = map[uint64][]byte{}
			scanEBML(e.Payload, func(ce ebmlElement) bool {
				colourChildren[ce.ID] = ce.Payload
				return true
			})
		}
		return true
	})

	track.Width = uint32(pixelW)
	track.Height = uint32(pixelH)
	if mkvExtras && (cropTop > 0 || cropBottom > 0 || cropLeft > 0 || cropRight > 0) {
		if pixelW > cropLeft+cropRight {
			track.Width = uint32(pixelW - cropLeft - cropRight)
		}
		if pixelH > cropTop+cropBottom {
			track.Height = uint32(pixelH - cropTop - cropBottom)
		}
	}
	track.DisplayAspectWidth = uint32(displayW)
	track.DisplayAspectHeight = uint32(displayH)
	if track.DisplayAspectWidth == 0 {
		track.DisplayAspectWidth = track.Width
	}
	if track.DisplayAspectHeight == 0 {
		track.DisplayAspectHeight = track.Height
	}
	if mkvExtras && aspectRatioType == 1 {
		if g := gcdUint32(track.DisplayAspectWidth, track.DisplayAspectHeight); g > 1 {
			track.DisplayAspectWidth /= g
			track.DisplayAspectHeight /= g
		}
	}
	if mkvExtras {
		switch stereoMode {
		case 1:
			track.Width /= 2
		case 2:
			track.Height /= 2
		case 3:
			track.Width /= 2
		}
	}
	if colourChildren != nil {
		c := parseWebMColorInfo(colourChildren)
		if !c.isEmpty() {
			track.Color = c
		}
	}
}

func gcdUint32(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func applyEBMLAudioFields(audio *mp4AudioTrack, buf []byte) {
	scanEBML(buf, func(e ebmlElement) bool {
		switch e.ID {
		case ebmlIDChannels:
			if v, ok := readUnsigned(e.Payload); ok && v >= 1 && v <= 8 {
				audio.Channels = int(v)
			}
		case ebmlIDSamplingFrequency:
			if v, ok := readFloat(e.Payload); ok && v >= 8000 && v <= 192000 {
				audio.SampleRate = int(v)
			} else if v, ok := readUnsigned(e.Payload); ok && v >= 8000 && v <= 192000 {
				audio.SampleRate = int(v)
			}
		}
		return true
	})
}

// parseVorbisIdentHeader decodes the Vorbis identification header out
// of a codec-private blob using Xiph lacing: first byte is the packet
// count minus one, followed by that many Xiph-encoded lengths, then the
// packets themselves. The identification packet begins with the
// 7-byte magic \x01vorbis.
func parseVorbisIdentHeader(blob []byte) (channels, sampleRate int, ok bool) {
	if len(blob) < 1 {
		return 0, 0, false
	}
	packetCount := int(blob[0]) + 1
	pos := 1
	for i := 0; i < packetCount-1; i++ {
		for pos < len(blob) && blob[pos] == 0xFF {
			pos++
		}
		if pos >= len(blob) {
			return 0, 0, false
		}
		pos++
	}
	if pos+30 > len(blob) {
		return 0, 0, false
	}
	packet := blob[pos:]
	if len(packet) < 30 || string(packet[0:7]) != "\x01vorbis" {
		return 0, 0, false
	}
	channels = int(packet[11])
	sampleRate = int(binary.LittleEndian.Uint32(packet[12:16]))
	if channels < 1 || sampleRate < 1000 {
		return 0, 0, false
	}
	return channels, sampleRate, true
}
