package videometa

import "encoding/binary"

// parseAVI reads the RIFF/AVI magic, the main header (avih), and the
// first vids stream's strh+strf override. AVI carries no HDR/color
// metadata, so this needs no color-box scanning.
func parseAVI(buf []byte, fileSize int64) (ParsedVideoMetadata, error) {
	if len(buf) < 12 || string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "AVI " {
		return ParsedVideoMetadata{}, newParseError(KindUnsupportedContainer, "avi", "RIFF", 0, "missing RIFF/AVI magic")
	}

	result := ParsedVideoMetadata{Container: ContainerAVI, FileSize: fileSize}
	var microSecPerFrame, width, height uint32
	var haveHeader bool
	var haveVideoStream bool

	for _, c := range riffChunks(buf[12:]) {
		if c.id != "LIST" || len(c.payload) < 4 {
			continue
		}
		if string(c.payload[0:4]) != "hdrl" {
			continue
		}
		for _, h := range riffChunks(c.payload[4:]) {
			if h.id == "avih" && len(h.payload) >= 40 {
				microSecPerFrame = binary.LittleEndian.Uint32(h.payload[0:4])
				width = binary.LittleEndian.Uint32(h.payload[32:36])
				height = binary.LittleEndian.Uint32(h.payload[36:40])
				haveHeader = true
			}
			if !haveVideoStream && h.id == "LIST" && len(h.payload) >= 4 && string(h.payload[0:4]) == "strl" {
				if w, ht, codec, ok := parseAVIStreamList(h.payload[4:]); ok {
					haveVideoStream = true
					if w > 0 {
						width = w
					}
					if ht > 0 {
						height = ht
					}
					result.Codec = codec
				}
			}
		}
	}

	if !haveHeader {
		return ParsedVideoMetadata{}, newParseError(KindTruncatedInput, "avi", "avih", 0, "missing MainAVIHeader")
	}
	if !haveVideoStream {
		return ParsedVideoMetadata{}, newParseError(KindNoVideoTrack, "avi", "strl", 0, "no vids stream found")
	}

	result.Width = width
	result.Height = height
	result.DisplayAspectWidth = width
	result.DisplayAspectHeight = height
	if microSecPerFrame > 0 {
		result.FPS = 1_000_000 / float64(microSecPerFrame)
		result.HasFPS = true
	}
	return result, nil
}

type riffChunk struct {
	id      string
	payload []byte
}

// riffChunks walks a flat sequence of RIFF chunks (4-byte id, 4-byte
// little-endian size, payload, even-padded), returning one level.
func riffChunks(buf []byte) []riffChunk {
	var chunks []riffChunk
	pos := 0
	for pos+8 <= len(buf) {
		id := string(buf[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(buf[pos+4 : pos+8]))
		if size < 0 || pos+8+size > len(buf) {
			break
		}
		chunks = append(chunks, riffChunk{id: id, payload: buf[pos+8 : pos+8+size]})
		pos += 8 + size
		if pos%2 == 1 && pos < len(buf) {
			pos++
		}
	}
	return chunks
}

// parseAVIStreamList reads strh (accepting only fccType "vids") then
// strf as a BITMAPINFOHEADER, returning the override dimensions and
// mapped codec name.
func parseAVIStreamList(buf []byte) (width, height uint32, codec string, ok bool) {
	var isVideo bool
	var fourCC string
	for _, c := range riffChunks(buf) {
		switch c.id {
		case "strh":
			if len(c.payload) < 8 {
				continue
			}
			if string(c.payload[0:4]) != "vids" {
				return 0, 0, "", false
			}
			isVideo = true
			fourCC = string(c.payload[4:8])
		case "strf":
			if !isVideo || len(c.payload) < 20 {
				continue
			}
			biWidth := int32(binary.LittleEndian.Uint32(c.payload[4:8]))
			biHeight := int32(binary.LittleEndian.Uint32(c.payload[8:12]))
			width = uint32(abs32(biWidth))
			height = uint32(abs32(biHeight))
			compression := string(c.payload[16:20])
			if codecName := mapAVIFourCC(compression); codecName != "" {
				fourCC = compression
				codec = codecName
			}
		}
	}
	if !isVideo {
		return 0, 0, "", false
	}
	if codec == "" {
		codec = mapAVIFourCC(fourCC)
	}
	return width, height, codec, true
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// mapAVIFourCC maps a case-insensitive video FourCC to a short codec
// name.
func mapAVIFourCC(fourCC string) string {
	switch toUpperASCII(fourCC) {
	case "DIV3":
		return "divx3"
	case "DIVX":
		return "divx"
	case "DX50":
		return "divx5"
	case "XVID":
		return "xvid"
	case "MP42":
		return "mp42"
	case "MP43":
		return "mp43"
	case "H264", "X264", "DAVC":
		return "avc1"
	case "HEVC":
		return "hev1"
	case "MPG1":
		return "mpeg1"
	case "MPG2":
		return "mpeg2"
	default:
		return ""
	}
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
