package videometa

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

func mp4Box32(boxType string, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(8+len(payload)))
	copy(buf[4:8], boxType)
	copy(buf[8:], payload)
	return buf
}

func TestWalkMP4BoxesSiblings(t *testing.T) {
	data := append(mp4Box32("free", []byte{1, 2}), mp4Box32("moov", []byte{3, 4, 5})...)
	var types []string
	walkMP4Boxes(data, func(b mp4Box, payload []byte) bool {
		types = append(types, b.Type)
		return true
	})
	if len(types) != 2 || types[0] != "free" || types[1] != "moov" {
		t.Fatalf("unexpected walk order: %v", types)
	}
}

func TestWalkMP4BoxesTruncatesOnBadSize(t *testing.T) {
	buf := mp4Box32("free", []byte{1, 2})
	binary.BigEndian.PutUint32(buf[0:4], 2) // declared size smaller than header
	var calls int
	walkMP4Boxes(buf, func(b mp4Box, payload []byte) bool {
		calls++
		return true
	})
	if calls != 0 {
		t.Fatalf("expected the walk to stop immediately, got %d calls", calls)
	}
}

func TestFindTopLevelMP4Box(t *testing.T) {
	data := append(mp4Box32("free", nil), mp4Box32("moov", []byte("hello"))...)
	payload, ok := findTopLevelMP4Box(data, "moov")
	if !ok {
		t.Fatalf("expected to find moov")
	}
	if string(payload) != "hello" {
		t.Fatalf("payload = %q, want %q", payload, "hello")
	}
	if _, ok := findTopLevelMP4Box(data, "trak"); ok {
		t.Fatalf("expected trak not to be found")
	}
}

func TestParseMvhdVersion0(t *testing.T) {
	payload := make([]byte, 20)
	binary.BigEndian.PutUint32(payload[12:16], 1000) // timescale
	binary.BigEndian.PutUint32(payload[16:20], 5000) // duration
	seconds, ok := parseMvhd(payload)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if seconds != 5 {
		t.Fatalf("seconds = %v, want 5", seconds)
	}
}

func TestParseMvhdVersion1(t *testing.T) {
	payload := make([]byte, 32)
	payload[0] = 1
	binary.BigEndian.PutUint32(payload[20:24], 1000)
	binary.BigEndian.PutUint64(payload[24:32], 10000)
	seconds, ok := parseMvhd(payload)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if seconds != 10 {
		t.Fatalf("seconds = %v, want 10", seconds)
	}
}

func TestParseMvhdRejectsZeroTimescale(t *testing.T) {
	payload := make([]byte, 20)
	if _, ok := parseMvhd(payload); ok {
		t.Fatalf("expected rejection of a zero timescale")
	}
}

func TestParseMdhd(t *testing.T) {
	payload := make([]byte, 24)
	binary.BigEndian.PutUint32(payload[12:16], 48000)
	binary.BigEndian.PutUint32(payload[16:20], 96000)
	timescale, seconds, ok := parseMdhd(payload)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if timescale != 48000 {
		t.Fatalf("timescale = %d, want 48000", timescale)
	}
	if seconds != 2 {
		t.Fatalf("seconds = %v, want 2", seconds)
	}
}

func TestParseHdlr(t *testing.T) {
	payload := make([]byte, 12)
	copy(payload[8:12], "vide")
	if got := parseHdlr(payload); got != "vide" {
		t.Fatalf("parseHdlr = %q, want vide", got)
	}
}

func buildTkhdPayload(a, b, c, d int32, dispW, dispH uint32) []byte {
	fixedLen := 4 + 4 + 4 + 4 + 4 + 4 + 8 + 4 + 4
	payload := make([]byte, fixedLen+36+8)
	matrixOff := fixedLen
	binary.BigEndian.PutUint32(payload[matrixOff:matrixOff+4], uint32(a))
	binary.BigEndian.PutUint32(payload[matrixOff+4:matrixOff+8], uint32(b))
	binary.BigEndian.PutUint32(payload[matrixOff+12:matrixOff+16], uint32(c))
	binary.BigEndian.PutUint32(payload[matrixOff+16:matrixOff+20], uint32(d))
	dimOff := matrixOff + 36
	binary.BigEndian.PutUint32(payload[dimOff:dimOff+4], dispW<<16)
	binary.BigEndian.PutUint32(payload[dimOff+4:dimOff+8], dispH<<16)
	return payload
}

func buildColrPayload(primaries, transfer, matrix uint16, fullRange bool) []byte {
	payload := make([]byte, 11)
	copy(payload[0:4], "nclx")
	binary.BigEndian.PutUint16(payload[4:6], primaries)
	binary.BigEndian.PutUint16(payload[6:8], transfer)
	binary.BigEndian.PutUint16(payload[8:10], matrix)
	if fullRange {
		payload[10] = 0x80
	}
	return payload
}

func buildSttsPayload(count, delta uint32) []byte {
	payload := make([]byte, 16)
	binary.BigEndian.PutUint32(payload[4:8], 1)
	binary.BigEndian.PutUint32(payload[8:12], count)
	binary.BigEndian.PutUint32(payload[12:16], delta)
	return payload
}

func buildMdhdPayload(timescale, duration uint32) []byte {
	payload := make([]byte, 24)
	binary.BigEndian.PutUint32(payload[12:16], timescale)
	binary.BigEndian.PutUint32(payload[16:20], duration)
	return payload
}

func buildMvhdPayload(timescale, duration uint32) []byte {
	payload := make([]byte, 20)
	binary.BigEndian.PutUint32(payload[12:16], timescale)
	binary.BigEndian.PutUint32(payload[16:20], duration)
	return payload
}

func buildHdlrPayload(handlerType string) []byte {
	payload := make([]byte, 12)
	copy(payload[8:12], handlerType)
	return payload
}

// buildVideoTrak assembles a full trak box payload (tkhd, then
// mdia/hdlr+mdhd+minf/stbl/stsd+stts) out of its already-encoded
// pieces, mirroring the nesting parseTrak expects.
func buildVideoTrak(tkhdPayload, mdhdPayload, sampleEntry, sttsPayload []byte) []byte {
	hdlr := mp4Box32("hdlr", buildHdlrPayload("vide"))
	mdhd := mp4Box32("mdhd", mdhdPayload)
	stsdPayload := make([]byte, 8)
	binary.BigEndian.PutUint32(stsdPayload[4:8], 1)
	stsdPayload = append(stsdPayload, sampleEntry...)
	stbl := append(mp4Box32("stsd", stsdPayload), mp4Box32("stts", sttsPayload)...)
	minf := mp4Box32("minf", mp4Box32("stbl", stbl))
	mdia := mp4Box32("mdia", append(append(hdlr, mdhd...), minf...))
	tkhd := mp4Box32("tkhd", tkhdPayload)
	return append(tkhd, mdia...)
}

func buildFtyp() []byte {
	payload := append([]byte("mp42"), make([]byte, 4)...)
	payload = append(payload, []byte("isom")...)
	return mp4Box32("ftyp", payload)
}

func buildMP4File(moovPayload []byte) []byte {
	return append(buildFtyp(), mp4Box32("moov", moovPayload)...)
}

func TestParseMP4EndToEndH264_1080p30(t *testing.T) {
	const fixed1 = 0x00010000
	tkhd := buildTkhdPayload(fixed1, 0, 0, fixed1, 1920, 1080)
	mdhd := buildMdhdPayload(30000, 300000)
	avcC := mp4Box32("avcC", []byte{0x01, 0x64, 0x00, 0x28})
	colr := mp4Box32("colr", buildColrPayload(1, 1, 1, false))
	sampleEntry := buildVideoSampleEntry("avc1", 1920, 1080, append(avcC, colr...))
	stts := buildSttsPayload(300, 1000)
	trak := buildVideoTrak(tkhd, mdhd, sampleEntry, stts)
	moovPayload := append(mp4Box32("mvhd", buildMvhdPayload(30000, 300000)), mp4Box32("trak", trak)...)
	buf := buildMP4File(moovPayload)

	parsed, err := parseMP4(buf, int64(len(buf)), ContainerMP4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := assembleResult(parsed)

	if result.Width != 1920 || result.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", result.Width, result.Height)
	}
	if result.Duration != 10.0 {
		t.Errorf("Duration = %v, want 10.0", result.Duration)
	}
	if !parsed.HasFPS || result.FPS != 30 {
		t.Errorf("FPS = %v (hasFPS=%v), want 30", result.FPS, parsed.HasFPS)
	}
	if result.Codec != "avc1.6428" {
		t.Errorf("Codec = %q, want avc1.6428", result.Codec)
	}
	if result.Orientation != OrientationLandscapeRight {
		t.Errorf("Orientation = %v, want LandscapeRight", result.Orientation)
	}
	if result.NaturalOrientation != NaturalLandscape {
		t.Errorf("NaturalOrientation = %v, want Landscape", result.NaturalOrientation)
	}
	if math.Abs(result.AspectRatio-1920.0/1080.0) > 1e-9 {
		t.Errorf("AspectRatio = %v, want %v", result.AspectRatio, 1920.0/1080.0)
	}
	if !result.Is16_9 {
		t.Errorf("expected Is16_9 to be true")
	}
	if result.IsHDR == nil || *result.IsHDR {
		t.Errorf("IsHDR = %v, want false", result.IsHDR)
	}
}

func TestParseMP4EndToEndHEVC4KHDR10Rotated(t *testing.T) {
	const fixed1 = 0x00010000
	tkhd := buildTkhdPayload(0, fixed1, -fixed1, 0, 3840, 2160)
	mdhd := buildMdhdPayload(600, 6000)
	hvcC := make([]byte, 13)
	hvcC[1] = 0x02
	hvcC[12] = 153
	colr := mp4Box32("colr", buildColrPayload(9, 16, 9, false))
	sampleEntry := buildVideoSampleEntry("hev1", 3840, 2160, append(mp4Box32("hvcC", hvcC), colr...))
	stts := buildSttsPayload(300, 20)
	trak := buildVideoTrak(tkhd, mdhd, sampleEntry, stts)
	moovPayload := append(mp4Box32("mvhd", buildMvhdPayload(600, 6000)), mp4Box32("trak", trak)...)
	buf := buildMP4File(moovPayload)

	parsed, err := parseMP4(buf, int64(len(buf)), ContainerMP4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := assembleResult(parsed)

	if result.Width != 3840 || result.Height != 2160 {
		t.Errorf("dimensions = %dx%d, want 3840x2160", result.Width, result.Height)
	}
	if result.Duration != 10.0 {
		t.Errorf("Duration = %v, want 10.0", result.Duration)
	}
	if !parsed.HasFPS || result.FPS <= 0 {
		t.Errorf("expected a positive FPS resolved from stts, got %v (hasFPS=%v)", result.FPS, parsed.HasFPS)
	}
	if !strings.HasPrefix(result.Codec, "hev1.") && !strings.HasPrefix(result.Codec, "hvc1.") {
		t.Errorf("Codec = %q, want a hev1./hvc1. tag", result.Codec)
	}
	if result.Orientation != OrientationPortrait {
		t.Errorf("Orientation = %v, want Portrait", result.Orientation)
	}
	if result.IsHDR == nil || !*result.IsHDR {
		t.Errorf("IsHDR = %v, want true", result.IsHDR)
	}
}

func TestParseTkhdRotation(t *testing.T) {
	const fixed1 = 0x00010000
	cases := []struct {
		name         string
		a, b, c, d   int32
		wantRotation int
	}{
		{"identity", fixed1, 0, 0, fixed1, 0},
		{"90deg", 0, fixed1, -fixed1, 0, 90},
		{"180deg", -fixed1, 0, 0, -fixed1, 180},
		{"270deg", 0, -fixed1, fixed1, 0, 270},
	}
	for _, c := range cases {
		payload := buildTkhdPayload(c.a, c.b, c.c, c.d, 1920, 1080)
		rotation, w, h := parseTkhd(payload)
		if rotation != c.wantRotation {
			t.Errorf("%s: rotation = %d, want %d", c.name, rotation, c.wantRotation)
		}
		if w != 1920 || h != 1080 {
			t.Errorf("%s: dims = %dx%d, want 1920x1080", c.name, w, h)
		}
	}
}
