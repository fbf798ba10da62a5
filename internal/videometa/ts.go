package videometa

import "encoding/binary"

const tsPacketSize = 188

// tsStream is one elementary stream entry read out of the PMT.
type tsStream struct {
	pid        uint16
	streamType byte
	kind       string // "video" or "audio"
}

// parseTS walks PAT → PMT → first video/audio elementary stream,
// estimates duration from the PCR, and runs an Annex-B SPS scan on the
// video PID to recover real pixel dimensions from an H.264 SPS. HEVC
// SPS units are not decoded, so HEVC streams get no dimensions from
// that scan.
func parseTS(buf []byte, fileSize int64) (ParsedVideoMetadata, error) {
	if !isValidTSSync(buf) {
		return ParsedVideoMetadata{}, newParseError(KindUnsupportedContainer, "ts", "sync", 0, "missing 0x47 sync bytes")
	}

	var patPID uint16 = 0x0000
	programNumber, pmtPID := scanTSForPAT(buf, patPID)
	if pmtPID == 0 {
		return ParsedVideoMetadata{}, newParseError(KindUnsupportedContainer, "ts", "PAT", 0, "no program found in PAT")
	}
	streams, pcrPID := scanTSForPMT(buf, pmtPID, programNumber)

	result := ParsedVideoMetadata{Container: ContainerTS, FileSize: fileSize}
	var videoPID uint16
	var haveVideo bool
	var haveAudio bool
	for _, s := range streams {
		if s.kind == "video" && !haveVideo {
			videoPID = s.pid
			haveVideo = true
			result.Codec = mapTSVideoCodec(s.streamType)
		}
		if s.kind == "audio" && !haveAudio {
			haveAudio = true
			result.HasAudio = true
			result.AudioCodec = mapTSAudioCodec(s.streamType)
			result.AudioChannels = 2
			result.AudioSampleRate = 48000
		}
	}
	if !haveVideo && !haveAudio {
		return ParsedVideoMetadata{}, newParseError(KindNoVideoTrack, "ts", "PMT", 0, "no usable elementary stream found")
	}

	if haveVideo {
		if w, h, ok := scanTSForSPSDimensions(buf, videoPID); ok {
			result.Width = w
			result.Height = h
			result.DisplayAspectWidth = w
			result.DisplayAspectHeight = h
		}
	}

	if firstPCR, lastPCR, ok := scanTSForPCRRange(buf, pcrPID); ok && lastPCR > firstPCR {
		result.Duration = float64(lastPCR-firstPCR) / 90000.0
	} else if fileSize > 0 {
		result.Duration = float64(fileSize) * 8 / 10_000_000
	}
	if result.Duration > 0 {
		result.Bitrate = int64(roundTo(float64(fileSize)*8/result.Duration, 0))
	}
	return result, nil
}

// isValidTSSync checks the 0x47 sync byte at the start of the first
// three packets.
func isValidTSSync(buf []byte) bool {
	for _, off := range []int{0, tsPacketSize, 2 * tsPacketSize} {
		if off >= len(buf) {
			return off > 0 // a very short file with at least the first sync byte is still plausible
		}
		if buf[off] != 0x47 {
			return false
		}
	}
	return true
}

// scanTSForPAT walks packets carrying PID 0 (the PAT), accumulating
// the payload and parsing the first program found.
func scanTSForPAT(buf []byte, patPID uint16) (programNumber, pmtPID uint16) {
	var payload []byte
	for off := 0; off+tsPacketSize <= len(buf); off += tsPacketSize {
		packet := buf[off : off+tsPacketSize]
		if packet[0] != 0x47 {
			continue
		}
		pid := binary.BigEndian.Uint16(packet[1:3]) & 0x1FFF
		if pid != patPID {
			continue
		}
		payloadStart := tsPayloadStart(packet)
		if payloadStart < 0 {
			continue
		}
		payload = append(payload, packet[payloadStart:]...)
	}
	return parsePAT(payload)
}

func scanTSForPMT(buf []byte, pmtPID, programNumber uint16) ([]tsStream, uint16) {
	var payload []byte
	for off := 0; off+tsPacketSize <= len(buf); off += tsPacketSize {
		packet := buf[off : off+tsPacketSize]
		if packet[0] != 0x47 {
			continue
		}
		pid := binary.BigEndian.Uint16(packet[1:3]) & 0x1FFF
		if pid != pmtPID {
			continue
		}
		payloadStart := tsPayloadStart(packet)
		if payloadStart < 0 {
			continue
		}
		payload = append(payload, packet[payloadStart:]...)
	}
	return parsePMT(payload, programNumber)
}

func tsPayloadStart(packet []byte) int {
	adaptation := (packet[3] & 0x30) >> 4
	payloadExists := packet[3]&0x10 != 0
	if !payloadExists {
		return -1
	}
	if adaptation == 1 {
		return 4
	}
	if len(packet) < 5 {
		return -1
	}
	adaptLen := int(packet[4])
	start := 5 + adaptLen
	if start >= len(packet) {
		return -1
	}
	return start
}

// parsePAT reads the first program with a non-zero program_number
// from an accumulated PAT section.
func parsePAT(payload []byte) (programNumber, pmtPID uint16) {
	if len(payload) < 8 {
		return 0, 0
	}
	pointer := int(payload[0])
	if pointer+8 > len(payload) {
		return 0, 0
	}
	section := payload[1+pointer:]
	if len(section) < 8 {
		return 0, 0
	}
	sectionLen := int(binary.BigEndian.Uint16(section[1:3]) & 0x0FFF)
	if sectionLen+3 > len(section) || sectionLen < 9 {
		return 0, 0
	}
	entries := section[8 : 3+sectionLen-4]
	for i := 0; i+4 <= len(entries); i += 4 {
		pn := binary.BigEndian.Uint16(entries[i : i+2])
		pid := binary.BigEndian.Uint16(entries[i+2:i+4]) & 0x1FFF
		if pn != 0 {
			return pn, pid
		}
	}
	return 0, 0
}

// parsePMT enumerates elementary streams, tagging each with the
// video/audio kind the dispatcher needs rather than a full per-format
// stream descriptor.
func parsePMT(payload []byte, programNumber uint16) ([]tsStream, uint16) {
	if len(payload) < 12 {
		return nil, 0
	}
	pointer := int(payload[0])
	if pointer+12 > len(payload) {
		return nil, 0
	}
	section := payload[1+pointer:]
	if len(section) < 12 {
		return nil, 0
	}
	sectionLen := int(binary.BigEndian.Uint16(section[1:3]) & 0x0FFF)
	if sectionLen+3 > len(section) {
		return nil, 0
	}
	pcrPID := binary.BigEndian.Uint16(section[8:10]) & 0x1FFF
	programInfoLen := int(binary.BigEndian.Uint16(section[10:12]) & 0x0FFF)
	pos := 12 + programInfoLen
	end := 3 + sectionLen - 4
	if pos > end {
		return nil, pcrPID
	}
	var streams []tsStream
	for pos+5 <= end {
		streamType := section[pos]
		pid := binary.BigEndian.Uint16(section[pos+1:pos+3]) & 0x1FFF
		esInfoLen := int(binary.BigEndian.Uint16(section[pos+3:pos+5]) & 0x0FFF)
		if kind := mapTSStreamKind(streamType); kind != "" {
			streams = append(streams, tsStream{pid: pid, streamType: streamType, kind: kind})
		}
		pos += 5 + esInfoLen
	}
	return streams, pcrPID
}

func mapTSStreamKind(streamType byte) string {
	switch streamType {
	case 0x01, 0x02, 0x10, 0x1B, 0x24:
		return "video"
	case 0x03, 0x04, 0x0F, 0x11:
		return "audio"
	default:
		return ""
	}
}

func mapTSVideoCodec(streamType byte) string {
	switch streamType {
	case 0x01:
		return "mp1v"
	case 0x02:
		return "mp2v"
	case 0x10:
		return "mp4v"
	case 0x1B:
		return "avc1"
	case 0x24:
		return "hev1"
	default:
		return ""
	}
}

func mapTSAudioCodec(streamType byte) string {
	switch streamType {
	case 0x03, 0x04:
		return "mp3"
	case 0x0F, 0x11:
		return "aac"
	default:
		return ""
	}
}

// scanTSForPCRRange finds the earliest and latest PCR samples on
// pcrPID.
func scanTSForPCRRange(buf []byte, pcrPID uint16) (first, last uint64, ok bool) {
	var haveFirst bool
	for off := 0; off+tsPacketSize <= len(buf); off += tsPacketSize {
		packet := buf[off : off+tsPacketSize]
		if packet[0] != 0x47 {
			continue
		}
		pid := binary.BigEndian.Uint16(packet[1:3]) & 0x1FFF
		if pid != pcrPID {
			continue
		}
		pcr, ok := parsePCR(packet)
		if !ok {
			continue
		}
		if !haveFirst {
			first = pcr
			haveFirst = true
		}
		last = pcr
	}
	return first, last, haveFirst
}

// parsePCR reads the 33-bit PCR base from a packet's adaptation
// field.
func parsePCR(packet []byte) (uint64, bool) {
	if len(packet) < 11 {
		return 0, false
	}
	adaptation := (packet[3] & 0x30) >> 4
	if adaptation != 2 && adaptation != 3 {
		return 0, false
	}
	adaptLen := int(packet[4])
	if adaptLen < 7 || 5+adaptLen > len(packet) {
		return 0, false
	}
	flags := packet[5]
	if flags&0x10 == 0 {
		return 0, false
	}
	pcr := (uint64(packet[6]) << 25) |
		(uint64(packet[7]) << 17) |
		(uint64(packet[8]) << 9) |
		(uint64(packet[9]) << 1) |
		(uint64(packet[10]) >> 7)
	return pcr, true
}

// scanTSForSPSDimensions extracts the elementary-stream payload bytes
// for videoPID and looks for an Annex-B H.264 SPS NAL unit (type 7),
// decoding true pixel dimensions via parseH264SPS. HEVC SPS units are
// not recognised.
func scanTSForSPSDimensions(buf []byte, videoPID uint16) (width, height uint32, ok bool) {
	var es []byte
	const maxESScan = 2 << 20
	for off := 0; off+tsPacketSize <= len(buf) && len(es) < maxESScan; off += tsPacketSize {
		packet := buf[off : off+tsPacketSize]
		if packet[0] != 0x47 {
			continue
		}
		pid := binary.BigEndian.Uint16(packet[1:3]) & 0x1FFF
		if pid != videoPID {
			continue
		}
		payloadStart := tsPayloadStart(packet)
		if payloadStart < 0 {
			continue
		}
		es = append(es, packet[payloadStart:]...)
	}
	for _, nal := range splitAnnexBNALUnits(es) {
		if len(nal) < 2 {
			continue
		}
		nalType := nal[0] & 0x1F
		if nalType == 7 { // H.264 SPS
			if sps, ok := parseH264SPS(nal); ok {
				return sps.Width, sps.Height, true
			}
		}
	}
	return 0, 0, false
}
