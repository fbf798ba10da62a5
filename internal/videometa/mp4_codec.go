package videometa

import "encoding/binary"

// mp4SampleEntryInfo is the flattened result of scanning one stsd
// entry, covering both the video and audio sample-entry shapes; only
// the fields relevant to the entry's media type are populated.
type mp4SampleEntryInfo struct {
	Width, Height              uint32
	Codec                      string
	Color                      ColorInfo
	PixelAspectH, PixelAspectV uint32
	ClapWidth, ClapHeight      uint32
	HasClap                    bool

	AudioChannels   int
	AudioSampleRate int
	AudioCodec      string
}

// esds object-type-indication → short codec name.
var esdsObjectTypeCodec = map[byte]string{
	0x40: "aac", 0x41: "aac", 0x42: "aac",
	0x45: "aac-he", 0x46: "aac-he", 0x47: "aac-he",
	0x6B: "mp3",
	0x67: "ac3", 0x68: "ac3", 0xA5: "ac3",
	0xA6: "e-ac3",
	0xA9: "dts", 0xAA: "dts-hd", 0xAB: "dts-hd-ma",
	0xAC: "truehd",
	0xAD: "flac",
	0xAE: "alac",
	0xAF: "opus",
	0x6D: "aac-he-v2",
	0xDD: "vorbis",
	0xE1: "pcm",
}

// parseStsd skips the sample-description header: 4-byte version+flags,
// 4-byte entry count, then that many sample entries. The first entry
// that yields usable video or audio metadata is returned.
func parseStsd(payload []byte) (mp4SampleEntryInfo, bool) {
	if len(payload) < 8 {
		return mp4SampleEntryInfo{}, false
	}
	count := binary.BigEndian.Uint32(payload[4:8])
	rest := payload[8:]
	var found mp4SampleEntryInfo
	var ok bool
	entries := rest
	for i := uint32(0); i < count; i++ {
		if len(entries) < 8 {
			break
		}
		size := int(binary.BigEndian.Uint32(entries[0:4]))
		if size < 8 || size > len(entries) {
			break
		}
		entry := entries[:size]
		typ := string(entry[4:8])
		switch {
		case isVideoSampleEntry(typ):
			found, ok = parseVideoSampleEntry(typ, entry), true
		case isAudioSampleEntry(typ):
			found, ok = parseAudioSampleEntry(typ, entry), true
		}
		if ok {
			return found, true
		}
		entries = entries[size:]
	}
	return mp4SampleEntryInfo{}, false
}

func isVideoSampleEntry(typ string) bool {
	switch typ {
	case "avc1", "avc3", "hev1", "hvc1", "mp4v", "vp08", "vp09", "av01":
		return true
	}
	return false
}

func isAudioSampleEntry(typ string) bool {
	switch typ {
	case "mp4a", "ac-3", "ec-3", "alac", "flac", "Opus", "opus", "ac-4":
		return true
	}
	return false
}

func mapMP4Codec(typ string) string {
	switch typ {
	case "avc1", "avc3":
		return "avc1"
	case "hev1", "hvc1":
		return typ
	case "mp4v":
		return "mp4v"
	case "vp08":
		return "vp08"
	case "vp09":
		return "vp9"
	case "av01":
		return "av01"
	default:
		return typ
	}
}

// videoSampleEntryFixedLen is the 78-byte fixed prefix (following the
// 8-byte box header) common to all video sample entries, before any
// extension boxes (avcC, hvcC, colr, ...) begin.
const videoSampleEntryFixedLen = 78

func parseVideoSampleEntry(typ string, entry []byte) mp4SampleEntryInfo {
	info := mp4SampleEntryInfo{Codec: mapMP4Codec(typ)}
	if len(entry) >= 8+32+4 {
		width := binary.BigEndian.Uint16(entry[8+24 : 8+26])
		height := binary.BigEndian.Uint16(entry[8+26 : 8+28])
		info.Width = uint32(width)
		info.Height = uint32(height)
	}
	if len(entry) <= 8+videoSampleEntryFixedLen {
		return info
	}
	ext := entry[8+videoSampleEntryFixedLen:]

	var colorSet bool
	var pasp struct{ h, v uint32 }
	walkMP4Boxes(ext, func(b mp4Box, payload []byte) bool {
		switch b.Type {
		case "avcC", "hvcC", "av1C", "vpcC":
			info.Codec = assembleCodecTag(typ, b.Type, payload, info.Codec)
		case "dvcC", "dvvC":
			if tag, ok := dolbyVisionCodecTag(payload); ok {
				info.Codec = tag
			}
		}
		return true
	})
	// Color boxes take priority order colr > mdcv > dvcC/dvvC > hvcC >
	// vpcC > av1C > avcC; later boxes never overwrite fields already
	// set by an earlier one in this priority list.
	colorPriority := []string{"colr", "mdcv", "dvcC", "dvvC", "hvcC", "vpcC", "av1C", "avcC"}
	boxPayloads := map[string][]byte{}
	walkMP4Boxes(ext, func(b mp4Box, payload []byte) bool {
		if _, exists := boxPayloads[b.Type]; !exists {
			boxPayloads[b.Type] = payload
		}
		if b.Type == "pasp" && len(payload) >= 8 {
			pasp.h = binary.BigEndian.Uint32(payload[0:4])
			pasp.v = binary.BigEndian.Uint32(payload[4:8])
		}
		if b.Type == "clap" {
			if w, h, ok := parseClap(payload); ok {
				info.ClapWidth, info.ClapHeight, info.HasClap = w, h, true
			}
		}
		return true
	})
	for _, boxType := range colorPriority {
		payload, present := boxPayloads[boxType]
		if !present {
			continue
		}
		c := parseMP4ColorInfo(boxType, payload)
		if !c.isEmpty() {
			info.Color = c
			colorSet = true
			break
		}
	}
	if clliPayload, present := boxPayloads["clli"]; present {
		clli := parseMP4ColorInfo("clli", clliPayload)
		if !colorSet && !clli.isEmpty() {
			info.Color = clli
		} else if isHDR(clli) && !isHDR(info.Color) {
			info.Color = clli
		}
	}
	info.PixelAspectH = pasp.h
	info.PixelAspectV = pasp.v
	return info
}

// assembleCodecTag emits the RFC6381-style codec string for AVC/HEVC;
// AV1/VP9 keep their stsd FourCC since there is no standard
// tag-assembly rule for them here.
func assembleCodecTag(sampleType, boxType string, payload []byte, fallback string) string {
	switch boxType {
	case "avcC":
		if len(payload) < 4 {
			return fallback
		}
		profile := payload[1]
		level := payload[3]
		return hexCodecTag("avc1", profile, level)
	case "hvcC":
		if len(payload) < 13 {
			return fallback
		}
		profile := payload[1] & 0x1F
		level := payload[12]
		return hexCodecTag(sampleType, profile, level)
	}
	return fallback
}

func hexCodecTag(prefix string, profile, level byte) string {
	const hexDigits = "0123456789abcdef"
	hex := func(b byte) string {
		return string([]byte{hexDigits[b>>4], hexDigits[b&0xF]})
	}
	return prefix + "." + hex(profile) + hex(level)
}

func parseAudioSampleEntry(typ string, entry []byte) mp4SampleEntryInfo {
	info := mp4SampleEntryInfo{AudioCodec: mapMP4AudioCodec(typ)}
	const audioFixedEnd = 36 // entry-relative offset where the extension boxes begin
	if len(entry) >= audioFixedEnd {
		channels := binary.BigEndian.Uint16(entry[24:26])
		sampleRate := binary.BigEndian.Uint32(entry[32:36])
		info.AudioChannels = int(channels)
		info.AudioSampleRate = int(sampleRate >> 16)
	}
	if len(entry) <= audioFixedEnd {
		return info
	}
	ext := entry[audioFixedEnd:]
	walkMP4Boxes(ext, func(b mp4Box, payload []byte) bool {
		if b.Type == "esds" {
			if codec, ok := parseEsdsObjectType(payload); ok {
				info.AudioCodec = codec
			}
		}
		return true
	})
	return info
}

func mapMP4AudioCodec(typ string) string {
	switch typ {
	case "mp4a":
		return "aac"
	case "ac-3":
		return "ac3"
	case "ec-3":
		return "e-ac3"
	case "alac":
		return "alac"
	case "flac":
		return "flac"
	case "Opus", "opus":
		return "opus"
	case "ac-4":
		return "ac4"
	default:
		return typ
	}
}

// parseEsdsObjectType scans an esds descriptor payload for the
// DecoderConfigDescriptor's object-type-indication byte. The esds box
// is itself a chain of BER-length-prefixed descriptor tags; rather
// than fully decode that chain, scan for the 0x04 (DecoderConfig) tag
// byte and read the following length-and-OTI bytes, which is robust
// to the common single-byte-length encoding used in practice.
func parseEsdsObjectType(payload []byte) (string, bool) {
	for i := 0; i+2 < len(payload); i++ {
		if payload[i] != 0x04 {
			continue
		}
		length := int(payload[i+1])
		if length < 1 || i+2 >= len(payload) {
			continue
		}
		oti := payload[i+2]
		if codec, ok := esdsObjectTypeCodec[oti]; ok {
			return codec, true
		}
	}
	return "", false
}
