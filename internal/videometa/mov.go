package videometa

import "encoding/binary"

// findMP4Box does a flat linear scan for the first direct child box of
// the given type, used by the udta/meta/ilst tag lookups in
// mp4_location.go.
func findMP4Box(buf []byte, boxType string) ([]byte, bool) {
	pos := 0
	for pos+8 <= len(buf) {
		size := int(binary.BigEndian.Uint32(buf[pos : pos+4]))
		if size < 8 || pos+size > len(buf) {
			return nil, false
		}
		typ := string(buf[pos+4 : pos+8])
		if typ == boxType {
			return buf[pos+8 : pos+size], true
		}
		pos += size
	}
	return nil, false
}

// parseClap reads the clean-aperture box: four rational fields
// (width, height, horizOff, vertOff), each a (numerator, denominator)
// pair of signed 32-bit integers. Only the width/height rational is
// needed to override the displayed pixel dimensions.
func parseClap(payload []byte) (w, h uint32, ok bool) {
	if len(payload) < 16 {
		return 0, 0, false
	}
	wNum := int32(binary.BigEndian.Uint32(payload[0:4]))
	wDen := int32(binary.BigEndian.Uint32(payload[4:8]))
	hNum := int32(binary.BigEndian.Uint32(payload[8:12]))
	hDen := int32(binary.BigEndian.Uint32(payload[12:16]))
	if wDen == 0 || hDen == 0 {
		return 0, 0, false
	}
	return uint32(wNum / wDen), uint32(hNum / hDen), true
}

// findMOVTaptOverride gives a track aperture mode dimensions (tapt) box
// with a clef (clean-extent) child precedence over clap when both are
// present. tapt is a
// sibling of mdia under trak, not under the sample entry, so this
// scans the trak payload directly.
func findMOVTaptOverride(trakPayload []byte) (w, h uint32, ok bool) {
	var found bool
	walkMP4Boxes(trakPayload, func(b mp4Box, payload []byte) bool {
		if b.Type != "tapt" {
			return true
		}
		walkMP4Boxes(payload, func(cb mp4Box, cp []byte) bool {
			if cb.Type == "clef" && len(cp) >= 12 {
				wFixed := binary.BigEndian.Uint32(cp[4:8])
				hFixed := binary.BigEndian.Uint32(cp[8:12])
				w = uint32(roundTo(float64(wFixed)/65536, 0))
				h = uint32(roundTo(float64(hFixed)/65536, 0))
				found = true
			}
			return true
		})
		return !found
	})
	return w, h, found
}
