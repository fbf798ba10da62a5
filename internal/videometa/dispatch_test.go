package videometa

import "testing"

func TestSniffContainer(t *testing.T) {
	mp4 := append([]byte{0, 0, 0, 0x20}, []byte("ftypisom")...)
	if got := sniffContainer(mp4); got != ContainerMP4 {
		t.Fatalf("mp4 sniff = %v, want ContainerMP4", got)
	}

	mov := append([]byte{0, 0, 0, 0x08}, []byte("moov")...)
	if got := sniffContainer(mov); got != ContainerMOV {
		t.Fatalf("mov sniff = %v, want ContainerMOV", got)
	}

	avi := append([]byte("RIFF"), make([]byte, 8)...)
	if got := sniffContainer(avi); got != ContainerAVI {
		t.Fatalf("avi sniff = %v, want ContainerAVI", got)
	}

	webm := []byte{0x1A, 0x45, 0xDF, 0xA3, 0x00}
	if got := sniffContainer(webm); got != ContainerWebM {
		t.Fatalf("webm sniff = %v, want ContainerWebM", got)
	}

	ts := make([]byte, 3*tsPacketSize+1)
	ts[0] = 0x47
	ts[tsPacketSize] = 0x47
	ts[2*tsPacketSize] = 0x47
	if got := sniffContainer(ts); got != ContainerTS {
		t.Fatalf("ts sniff = %v, want ContainerTS", got)
	}

	if got := sniffContainer([]byte("not a container")); got != ContainerUnknown {
		t.Fatalf("unknown sniff = %v, want ContainerUnknown", got)
	}
}

func TestParseVideoMetadataRejectsUnknownContainer(t *testing.T) {
	_, err := ParseVideoMetadata([]byte("nope"), 0, ParseOptions{})
	if err == nil {
		t.Fatalf("expected an error for an unrecognized container")
	}
	if kindOf(err) != KindUnsupportedContainer {
		t.Fatalf("kind = %v, want KindUnsupportedContainer", kindOf(err))
	}
}

func TestOrientationFor(t *testing.T) {
	cases := []struct {
		rotation int
		natural  NaturalOrientation
		want     Orientation
	}{
		{90, NaturalLandscape, OrientationPortrait},
		{90, NaturalPortrait, OrientationPortrait},
		{180, NaturalPortrait, OrientationPortraitUpsideDown},
		{180, NaturalLandscape, OrientationLandscapeLeft},
		{270, NaturalLandscape, OrientationPortraitUpsideDown},
		{0, NaturalPortrait, OrientationPortrait},
		{0, NaturalLandscape, OrientationLandscapeRight},
	}
	for _, c := range cases {
		if got := orientationFor(c.rotation, c.natural); got != c.want {
			t.Errorf("orientationFor(%d, %v) = %v, want %v", c.rotation, c.natural, got, c.want)
		}
	}
}

func TestAssembleResultAspectRatioAndBitrateFallback(t *testing.T) {
	p := ParsedVideoMetadata{
		VideoTrackMetadata: VideoTrackMetadata{
			Width: 1920, Height: 1080,
			DisplayAspectWidth: 1920, DisplayAspectHeight: 1080,
		},
		Duration: 10,
		FileSize: 12_500_000,
	}
	result := assembleResult(p)
	if !result.Is16_9 {
		t.Fatalf("expected Is16_9 for a 1920x1080 track")
	}
	if result.BitRate == 0 {
		t.Fatalf("expected a bitrate fallback computed from file size and duration")
	}
	if result.NaturalOrientation != NaturalLandscape {
		t.Fatalf("natural orientation = %v, want NaturalLandscape", result.NaturalOrientation)
	}
}

func TestAssembleResultIsHDROnlyWhenColorPresent(t *testing.T) {
	p := ParsedVideoMetadata{VideoTrackMetadata: VideoTrackMetadata{Width: 100, Height: 100}}
	if result := assembleResult(p); result.IsHDR != nil {
		t.Fatalf("expected IsHDR to be nil when no color info is present")
	}

	p.Color = ColorInfo{Primaries: "bt709", TransferCharacteristics: "bt709", MatrixCoefficients: "bt709"}
	result := assembleResult(p)
	if result.IsHDR == nil {
		t.Fatalf("expected IsHDR to be set once color info is present")
	}
	if *result.IsHDR {
		t.Fatalf("expected SDR color info to report IsHDR=false")
	}
}
