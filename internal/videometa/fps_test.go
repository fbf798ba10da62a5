package videometa

import "testing"

func TestCalculateFpsSnapsToNominal(t *testing.T) {
	// 30000/1001 NTSC timing: timescale 30000, one entry of delta 1001.
	info := TimingInfo{Timescale: 30000, Entries: []sttsEntry{{Count: 100, Delta: 1001}}}
	fps, ok := calculateFps(info)
	if !ok {
		t.Fatalf("expected a fps result")
	}
	if fps != 29.97 {
		t.Fatalf("fps = %v, want 29.97", fps)
	}
}

func TestCalculateFpsSnapsToHalfRate(t *testing.T) {
	// Timing that works out to ~12 fps should snap to half of 24.
	info := TimingInfo{Timescale: 12, Entries: []sttsEntry{{Count: 10, Delta: 1}}}
	fps, ok := calculateFps(info)
	if !ok {
		t.Fatalf("expected a fps result")
	}
	if fps != 24 {
		t.Fatalf("fps = %v, want 24 (half-rate snap)", fps)
	}
}

func TestCalculateFpsWeightedAverage(t *testing.T) {
	// Mixed deltas 60 and 40 average to 50 ticks, i.e. 12 fps at
	// timescale 600, which then snaps as half of 24.
	info := TimingInfo{Timescale: 600, Entries: []sttsEntry{
		{Count: 1, Delta: 60},
		{Count: 1, Delta: 40},
	}}
	fps, ok := calculateFps(info)
	if !ok {
		t.Fatalf("expected a fps result")
	}
	if fps <= 0 {
		t.Fatalf("expected a positive fps, got %v", fps)
	}
}

func TestCalculateFpsAbsentForEmptyTiming(t *testing.T) {
	if _, ok := calculateFps(TimingInfo{}); ok {
		t.Fatalf("expected no fps for an empty TimingInfo")
	}
	if _, ok := calculateFps(TimingInfo{Timescale: 0, Entries: []sttsEntry{{Count: 1, Delta: 1}}}); ok {
		t.Fatalf("expected no fps for a zero timescale")
	}
}

func TestCalculateFpsOutOfRangeIsAbsent(t *testing.T) {
	// timescale=1, delta=1 -> 1 fps, below the [10,240] fallback window
	// and far from every nominal rate.
	info := TimingInfo{Timescale: 1, Entries: []sttsEntry{{Count: 5, Delta: 1}}}
	if _, ok := calculateFps(info); ok {
		t.Fatalf("expected no fps for an out-of-range rate")
	}
}

func TestParseMP4TimingInfo(t *testing.T) {
	buf := []byte{
		0x00, 0x00, 0x00, 0x00, // version + flags
		0x00, 0x00, 0x00, 0x02, // entry count = 2
		0x00, 0x00, 0x00, 0x0A, 0x00, 0x00, 0x00, 0x01, // count=10 delta=1
		0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x02, // count=5 delta=2
	}
	info, ok := parseMP4TimingInfo(buf, 600, 1000)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if len(info.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(info.Entries))
	}
	if info.SampleCount != 15 {
		t.Fatalf("sampleCount = %d, want 15", info.SampleCount)
	}
	if info.Timescale != 600 || info.Duration != 1000 {
		t.Fatalf("unexpected timescale/duration: %+v", info)
	}
}

func TestParseMP4TimingInfoRejectsZeroEntryCount(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if _, ok := parseMP4TimingInfo(buf, 600, 0); ok {
		t.Fatalf("expected rejection of a zero entry count")
	}
}

func TestParseMP4TimingInfoDropsZeroCountOrDeltaEntries(t *testing.T) {
	buf := []byte{
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, // count=0, dropped
		0x00, 0x00, 0x00, 0x0A, 0x00, 0x00, 0x00, 0x01, // count=10 delta=1
	}
	info, ok := parseMP4TimingInfo(buf, 600, 0)
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if len(info.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(info.Entries))
	}
}
