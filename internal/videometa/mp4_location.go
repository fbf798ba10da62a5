package videometa

import (
	"strconv"
	"strings"
)

// parseMP4Location locates the QuickTime "©xyz" location atom under
// udta — directly, or nested under udta/meta/ilst as iTunes-style
// metadata — and decodes its ISO 6709 payload.
func parseMP4Location(udta []byte) (Location, bool) {
	if raw, ok := findMP4Box(udta, "\xa9xyz"); ok {
		if loc, ok := parseISO6709(string(stripMP4DataHeader(raw))); ok {
			return loc, true
		}
	}
	if meta, ok := findMP4Box(udta, "meta"); ok && len(meta) > 4 {
		if ilst, ok := findMP4Box(meta[4:], "ilst"); ok {
			if xyz, ok := findMP4Box(ilst, "\xa9xyz"); ok {
				if data, ok := findMP4Box(xyz, "data"); ok {
					if loc, ok := parseISO6709(string(stripMP4DataHeader(data))); ok {
						return loc, true
					}
				}
			}
		}
	}
	return Location{}, false
}

// stripMP4DataHeader drops the 8-byte type+locale header an iTunes
// "data" atom carries before its payload; a bare ©xyz atom has no such
// header, so this is a no-op when the prefix isn't present.
func stripMP4DataHeader(raw []byte) []byte {
	if len(raw) > 8 {
		// iTunes "data" atoms start with a 4-byte type indicator whose
		// high byte is always 0; a raw ISO 6709 string starts with '+'
		// or '-', which never collides with that.
		if raw[0] != '+' && raw[0] != '-' {
			return raw[8:]
		}
	}
	return raw
}

// parseISO6709 decodes strings like "+27.1234-081.6789+000.000/" into
// a Location. Altitude is optional; absent when no third signed field
// is present.
func parseISO6709(s string) (Location, bool) {
	if len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	if i := strings.Index(s, "CRS"); i >= 0 {
		s = s[:i]
	}
	fields := splitSignedFields(s)
	if len(fields) < 2 {
		return Location{}, false
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Location{}, false
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Location{}, false
	}
	loc := Location{Latitude: lat, Longitude: lon}
	if len(fields) >= 3 {
		if alt, err := strconv.ParseFloat(fields[2], 64); err == nil {
			loc.Altitude = &alt
		}
	}
	return loc, true
}

// splitSignedFields splits an ISO 6709 coordinate string on its sign
// characters, keeping each sign attached to the number that follows —
// the format has no other delimiter between fields.
func splitSignedFields(s string) []string {
	var fields []string
	start := -1
	for i, r := range s {
		if r == '+' || r == '-' {
			if start >= 0 {
				fields = append(fields, s[start:i])
			}
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, s[start:])
	}
	return fields
}
