package videometa

// dolbyVisionProfilePrefixes maps a Dolby Vision profile number to the
// FourCC prefix used in its RFC6381-style codec tag.
var dolbyVisionProfilePrefixes = []string{
	"dvav",
	"dvav",
	"dvhe",
	"dvhe",
	"dvhe",
	"dvhe",
	"dvhe",
	"dvhe",
	"dvhe",
	"dvav",
	"dav1",
	"", "", "", "", "", "", "", "", "",
	"dvh1",
	"", "", "", "", "", "", "", "", "", "", "",
	"davc",
	"",
	"dvh8",
}

// dolbyVisionCodecTag decodes a dvcC/dvvC configuration record (7
// bytes: major/minor version, then profile(7 bits), level(6 bits),
// rpu/el/bl presence flags) into a "<prefix>.<profile>.<level>" codec
// tag, used by assembleCodecTag to replace the generic avc1/hev1 tag
// when a Dolby Vision enhancement layer is present.
func dolbyVisionCodecTag(payload []byte) (string, bool) {
	if len(payload) < 4 {
		return "", false
	}
	br := newBitReader(payload[2:])
	profile := br.readBitsValue(7)
	level := br.readBitsValue(6)
	if profile == ^uint64(0) || level == ^uint64(0) {
		return "", false
	}
	prefix := dolbyVisionProfilePrefix(uint8(profile))
	if prefix == "" {
		return "", false
	}
	return prefix + "." + twoDigit(uint8(profile)) + "." + twoDigit(uint8(level)), true
}

func dolbyVisionProfilePrefix(profile uint8) string {
	if int(profile) >= len(dolbyVisionProfilePrefixes) {
		return ""
	}
	return dolbyVisionProfilePrefixes[profile]
}

func twoDigit(v uint8) string {
	const digits = "0123456789"
	return string([]byte{digits[(v/10)%10], digits[v%10]})
}
