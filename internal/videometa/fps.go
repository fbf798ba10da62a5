package videometa

// nominalRates are the well-known frame rates calculateFps snaps to
// when within tolerance.
var nominalRates = []float64{23.976, 24, 25, 29.97, 30, 48, 50, 59.94, 60, 90, 120, 144, 165, 240}

const fpsSnapTolerance = 0.01

const maxSttsEntries = 10_000

// calculateFps computes the weighted average sample duration over the
// stts table, inverts it to a rate, then snaps to
// the nearest nominal rate (or double/half of one, for interlaced or
// half-rate tracks) within tolerance; otherwise rounded to 3 decimals
// when within [10, 240], else reported absent.
func calculateFps(t TimingInfo) (float64, bool) {
	if t.Timescale == 0 || len(t.Entries) == 0 {
		return 0, false
	}
	var totalSamples uint64
	var totalTicks uint64
	for _, e := range t.Entries {
		totalSamples += uint64(e.Count)
		totalTicks += uint64(e.Count) * uint64(e.Delta)
	}
	if totalSamples == 0 || totalTicks == 0 {
		return 0, false
	}
	avgDelta := float64(totalTicks) / float64(totalSamples)
	if avgDelta == 0 {
		return 0, false
	}
	fps := float64(t.Timescale) / avgDelta
	if snapped, ok := snapToNominal(fps, 1); ok {
		return snapped, true
	}
	if snapped, ok := snapToNominal(fps, 2); ok {
		return snapped, true
	}
	if snapped, ok := snapToNominal(fps, 0.5); ok {
		return snapped, true
	}
	if fps >= 10 && fps <= 240 {
		return roundTo(fps, 3), true
	}
	return 0, false
}

// snapToNominal tests fps against nominalRates scaled by factor
// (1 for direct match, 2/0.5 for interlaced-doubled or half-rate
// tracks), returning the corresponding nominal rate when the absolute
// difference is within fpsSnapTolerance.
func snapToNominal(fps float64, factor float64) (float64, bool) {
	for _, nominal := range nominalRates {
		target := nominal * factor
		diff := fps - target
		if diff < 0 {
			diff = -diff
		}
		if diff <= fpsSnapTolerance {
			return nominal, true
		}
	}
	return 0, false
}

func roundTo(v float64, places int) float64 {
	mul := 1.0
	for i := 0; i < places; i++ {
		mul *= 10
	}
	if v >= 0 {
		return float64(int64(v*mul+0.5)) / mul
	}
	return float64(int64(v*mul-0.5)) / mul
}

// parseMP4TimingInfo decodes an stts payload into a TimingInfo: 4-byte
// version+flags, a 32-bit entry count (rejected if zero or implausibly
// large), then that many (count, delta) pairs.
// Entries with a zero count or delta are dropped rather than causing
// the whole table to be rejected.
func parseMP4TimingInfo(sttsPayload []byte, timescale uint32, durationTicks uint64) (TimingInfo, bool) {
	info := TimingInfo{Timescale: timescale, Duration: durationTicks}
	if len(sttsPayload) < 8 {
		return TimingInfo{}, false
	}
	c := newCursor(sttsPayload)
	if err := c.skip(4); err != nil {
		return TimingInfo{}, false
	}
	entryCount, err := c.readU32()
	if err != nil || entryCount == 0 || entryCount > maxSttsEntries {
		return TimingInfo{}, false
	}
	entries := make([]sttsEntry, 0, entryCount)
	var sampleCount uint64
	for i := uint32(0); i < entryCount; i++ {
		count, err := c.readU32()
		if err != nil {
			break
		}
		delta, err := c.readU32()
		if err != nil {
			break
		}
		if count == 0 || delta == 0 {
			continue
		}
		entries = append(entries, sttsEntry{Count: count, Delta: delta})
		sampleCount += uint64(count)
	}
	if len(entries) == 0 {
		return TimingInfo{}, false
	}
	info.Entries = entries
	info.SampleCount = sampleCount
	return info, true
}
