package videometa

import (
	"encoding/binary"
	"math"
	"testing"
)

func buildTSPacket(pid uint16, payloadStartFlag bool, adaptation byte, adaptationField, payload []byte) []byte {
	packet := make([]byte, tsPacketSize)
	packet[0] = 0x47
	pidBits := pid & 0x1FFF
	binary.BigEndian.PutUint16(packet[1:3], 0x4000|pidBits)
	flags := byte(0)
	if payloadStartFlag {
		flags |= 0x40
	}
	_ = flags
	packet[3] = (adaptation << 4)
	if adaptation == 1 || adaptation == 3 {
		packet[3] |= 0x10 // payload present
	}
	pos := 4
	if adaptation == 2 || adaptation == 3 {
		packet[4] = byte(len(adaptationField))
		copy(packet[5:], adaptationField)
		pos = 5 + len(adaptationField)
	}
	copy(packet[pos:], payload)
	return packet
}

func TestIsValidTSSync(t *testing.T) {
	buf := make([]byte, 3*tsPacketSize)
	buf[0] = 0x47
	buf[tsPacketSize] = 0x47
	buf[2*tsPacketSize] = 0x47
	if !isValidTSSync(buf) {
		t.Fatalf("expected valid sync")
	}
	buf[tsPacketSize] = 0x00
	if isValidTSSync(buf) {
		t.Fatalf("expected invalid sync after corrupting second packet")
	}
}

func TestTsPayloadStart(t *testing.T) {
	packet := buildTSPacket(0x100, true, 1, nil, []byte{0xAA})
	if start := tsPayloadStart(packet); start != 4 {
		t.Fatalf("payload start = %d, want 4", start)
	}
	packet = buildTSPacket(0x100, true, 3, []byte{0, 0, 0, 0, 0, 0}, []byte{0xAA})
	if start := tsPayloadStart(packet); start != 11 {
		t.Fatalf("payload start = %d, want 11", start)
	}
}

func buildPATSection(programNumber, pmtPID uint16) []byte {
	section := make([]byte, 17)
	section[0] = 0x00 // table_id
	binary.BigEndian.PutUint16(section[1:3], 0xB000|13)
	// bytes 3..7: transport_stream_id, version, section_number, last_section_number
	binary.BigEndian.PutUint16(section[8:10], programNumber)
	binary.BigEndian.PutUint16(section[10:12], 0xE000|pmtPID)
	// bytes 12..15: CRC placeholder
	return append([]byte{0x00}, section...) // pointer field + section
}

func TestParsePAT(t *testing.T) {
	payload := buildPATSection(1, 0x100)
	programNumber, pmtPID := parsePAT(payload)
	if programNumber != 1 || pmtPID != 0x100 {
		t.Fatalf("got program=%d pmtPID=%#x, want program=1 pmtPID=0x100", programNumber, pmtPID)
	}
}

func buildPMTSection(pcrPID uint16, streamType byte, streamPID uint16) []byte {
	section := make([]byte, 21)
	section[0] = 0x02 // table_id
	binary.BigEndian.PutUint16(section[1:3], 0xB000|18)
	binary.BigEndian.PutUint16(section[8:10], 0xE000|pcrPID)
	binary.BigEndian.PutUint16(section[10:12], 0xF000|0) // program_info_length = 0
	section[12] = streamType
	binary.BigEndian.PutUint16(section[13:15], 0xE000|streamPID)
	binary.BigEndian.PutUint16(section[15:17], 0xF000|0)
	return append([]byte{0x00}, section...)
}

func TestParsePMT(t *testing.T) {
	payload := buildPMTSection(0x101, 0x1B, 0x102)
	streams, pcrPID := parsePMT(payload, 1)
	if pcrPID != 0x101 {
		t.Fatalf("pcrPID = %#x, want 0x101", pcrPID)
	}
	if len(streams) != 1 {
		t.Fatalf("got %d streams, want 1", len(streams))
	}
	if streams[0].pid != 0x102 || streams[0].kind != "video" {
		t.Fatalf("unexpected stream: %+v", streams[0])
	}
}

func TestMapTSStreamKindAndCodecs(t *testing.T) {
	if mapTSStreamKind(0x1B) != "video" {
		t.Fatalf("expected AVC stream type to map to video")
	}
	if mapTSStreamKind(0x0F) != "audio" {
		t.Fatalf("expected AAC stream type to map to audio")
	}
	if mapTSStreamKind(0xFF) != "" {
		t.Fatalf("expected unknown stream type to map to empty kind")
	}
	if mapTSVideoCodec(0x1B) != "avc1" {
		t.Fatalf("expected 0x1B to map to avc1")
	}
	if mapTSVideoCodec(0x24) != "hev1" {
		t.Fatalf("expected 0x24 to map to hev1")
	}
	if mapTSAudioCodec(0x0F) != "aac" {
		t.Fatalf("expected 0x0F to map to aac")
	}
}

func TestParsePCR(t *testing.T) {
	adaptationField := make([]byte, 7) // flags + 5 PCR bytes + 1 padding byte
	adaptationField[0] = 0x10          // PCR flag set
	// PCR base (33 bits), packed into adaptationField[1..5]
	pcrBase := uint64(12345)
	adaptationField[1] = byte(pcrBase >> 25)
	adaptationField[2] = byte(pcrBase >> 17)
	adaptationField[3] = byte(pcrBase >> 9)
	adaptationField[4] = byte(pcrBase >> 1)
	adaptationField[5] = byte((pcrBase & 1) << 7)
	packet := buildTSPacket(0x100, false, 2, adaptationField, nil)
	pcr, ok := parsePCR(packet)
	if !ok {
		t.Fatalf("expected PCR to be parsed")
	}
	if pcr != pcrBase {
		t.Fatalf("pcr = %d, want %d", pcr, pcrBase)
	}
}

func TestParseTSEndToEndH264NoPCR(t *testing.T) {
	const pmtPID = 0x100
	const videoPID = 0x101
	const pcrPID = 0x102 // declared in the PMT but no packet ever carries a PCR for it

	pat := buildTSPacket(0x0000, true, 1, nil, buildPATSection(1, pmtPID))
	pmt := buildTSPacket(pmtPID, true, 1, nil, buildPMTSection(pcrPID, 0x1B, videoPID))
	filler := buildTSPacket(0x1FFF, true, 1, nil, nil)
	buf := append(append(pat, pmt...), filler...)

	result, err := parseTS(buf, int64(len(buf)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Container != ContainerTS {
		t.Errorf("Container = %v, want ContainerTS", result.Container)
	}
	if result.Codec != "avc1" {
		t.Errorf("Codec = %q, want avc1", result.Codec)
	}
	if result.Width != 0 || result.Height != 0 {
		t.Errorf("dimensions = %dx%d, want 0x0 with no SPS found in the stream", result.Width, result.Height)
	}
	wantDuration := float64(len(buf)) * 8 / 10_000_000
	if math.Abs(result.Duration-wantDuration) > 1e-9 {
		t.Errorf("Duration = %v, want %v (fileSize*8/10_000_000)", result.Duration, wantDuration)
	}
}

func TestParsePCRRejectsMissingFlag(t *testing.T) {
	adaptationField := make([]byte, 7) // flag bit not set
	packet := buildTSPacket(0x100, false, 2, adaptationField, nil)
	if _, ok := parsePCR(packet); ok {
		t.Fatalf("expected no PCR without the flag set")
	}
}
