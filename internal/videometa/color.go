package videometa

import "encoding/binary"

// matrixCoefficientNames, transferCharacteristicNames and primaryNames
// are the H.273 colour-description enumerations. An unrecognized
// numeric tag maps to "" (absent), never to a fabricated label.
var matrixCoefficientNames = map[uint16]string{
	0:  "rgb",
	1:  "bt709",
	4:  "fcc",
	5:  "bt470bg",
	6:  "bt601",
	7:  "smpte240m",
	8:  "ycgco",
	9:  "bt2020nc",
	10: "bt2020c",
	11: "smpte2085",
	12: "chroma-derived-nc",
	13: "chroma-derived-c",
	14: "ictcp",
	2:  "unspecified",
}

var transferCharacteristicNames = map[uint16]string{
	1:  "bt709",
	4:  "gamma22",
	5:  "gamma28",
	6:  "bt601",
	7:  "smpte240m",
	8:  "linear",
	9:  "log100",
	10: "log316",
	11: "xvycc",
	12: "bt1361",
	13: "srgb",
	14: "bt2020-10",
	15: "bt2020-12",
	16: "smpte2084",
	17: "smpte428",
	18: "hlg",
	2:  "unspecified",
}

var primaryNames = map[uint16]string{
	1:  "bt709",
	4:  "bt470m",
	5:  "bt470bg",
	6:  "bt601",
	7:  "smpte240m",
	8:  "film",
	9:  "bt2020",
	10: "smpte428",
	11: "smpte431",
	12: "smpte432",
	22: "jedec-p22",
	2:  "unspecified",
}

func mapMatrix(v uint16) string      { return matrixCoefficientNames[v] }
func mapTransfer(v uint16) string    { return transferCharacteristicNames[v] }
func mapPrimaries(v uint16) string   { return primaryNames[v] }

// isHDR recognizes HDR10, HLG or Dolby Vision colour signaling, and
// nothing else. Missing fields never produce true.
func isHDR(c ColorInfo) bool {
	if c.Primaries == "bt2020" && c.TransferCharacteristics == "smpte2084" &&
		(c.MatrixCoefficients == "bt2020nc" || c.MatrixCoefficients == "bt2020c" || c.MatrixCoefficients == "ictcp") {
		return true
	}
	if c.Primaries == "bt2020" && (c.TransferCharacteristics == "hlg" || c.TransferCharacteristics == "arib-std-b67") {
		return true
	}
	if c.TransferCharacteristics == "smpte2084" && c.MatrixCoefficients == "ictcp" {
		return true
	}
	return false
}

func boolPtr(b bool) *bool { return &b }

// parseMP4ColorInfo dispatches on the box type. It
// never fails: any parse error yields the zero-value ColorInfo (all
// fields absent).
func parseMP4ColorInfo(boxType string, payload []byte) ColorInfo {
	switch boxType {
	case "colr":
		return parseColrBox(payload)
	case "mdcv":
		return parseMdcvBox(payload)
	case "clli":
		return parseClliBox(payload)
	case "avcC":
		return colorFromAVCConfig(payload)
	case "hvcC":
		return colorFromHEVCConfig(payload)
	case "av1C":
		return colorFromAV1Config(payload)
	case "vpcC":
		return colorFromVP9Config(payload)
	case "dvcC", "dvvC", "dovi":
		return ColorInfo{TransferCharacteristics: "smpte2084", MatrixCoefficients: "ictcp"}
	case "rICC", "prof":
		return ColorInfo{Primaries: "bt709", FullRange: boolPtr(true)}
	}
	return ColorInfo{}
}

// parseColrBox reads the standard MP4 `colr` payload: a 4-byte ASCII
// colour type (nclx/nclc) followed by three 16-bit H.273 tags, and for
// nclx a trailing full-range byte whose top bit is the flag.
func parseColrBox(payload []byte) ColorInfo {
	if len(payload) < 4 {
		return ColorInfo{}
	}
	colourType := string(payload[0:4])
	if colourType != "nclx" && colourType != "nclc" {
		return ColorInfo{}
	}
	if len(payload) < 10 {
		return ColorInfo{}
	}
	primaries := binary.BigEndian.Uint16(payload[4:6])
	transfer := binary.BigEndian.Uint16(payload[6:8])
	matrix := binary.BigEndian.Uint16(payload[8:10])
	info := ColorInfo{
		Primaries:               mapPrimaries(primaries),
		TransferCharacteristics: mapTransfer(transfer),
		MatrixCoefficients:      mapMatrix(matrix),
	}
	if colourType == "nclx" && len(payload) >= 11 {
		full := payload[10]&0x80 != 0
		info.FullRange = boolPtr(full)
	}
	return info
}

// parseMdcvBox reads mastering-display color volume metadata:
// 24 bytes of display primaries, 8 bytes white point, 4-byte max
// luminance (0.0001 cd/m^2), 4-byte min luminance.
func parseMdcvBox(payload []byte) ColorInfo {
	if len(payload) < 24+8+4+4 {
		return ColorInfo{}
	}
	maxLuminance := binary.BigEndian.Uint32(payload[32:36])
	info := ColorInfo{Primaries: "bt2020"}
	if maxLuminance > 1_000_000 {
		info.TransferCharacteristics = "smpte2084"
		info.MatrixCoefficients = "bt2020nc"
	}
	return info
}

// parseClliBox reads content-light-level metadata (maxCLL, maxFALL).
func parseClliBox(payload []byte) ColorInfo {
	if len(payload) < 4 {
		return ColorInfo{}
	}
	maxCLL := binary.BigEndian.Uint16(payload[0:2])
	if maxCLL > 1000 {
		return ColorInfo{Primaries: "bt2020", TransferCharacteristics: "smpte2084", MatrixCoefficients: "bt2020nc"}
	}
	return ColorInfo{}
}

// colorFromAVCConfig infers colour signaling from an
// AVCDecoderConfigurationRecord's profile_idc byte, since H.264 carries
// no explicit colour-description box of its own.
func colorFromAVCConfig(payload []byte) ColorInfo {
	if len(payload) < 2 {
		return ColorInfo{}
	}
	profileIDC := payload[1]
	switch profileIDC {
	case 110, 122:
		return ColorInfo{Primaries: "bt2020", TransferCharacteristics: "smpte2084", MatrixCoefficients: "bt2020nc"}
	case 100, 118, 44:
		return ColorInfo{Primaries: "bt709", TransferCharacteristics: "bt709", MatrixCoefficients: "bt709"}
	case 66, 77, 82, 88:
		return ColorInfo{Primaries: "bt601", TransferCharacteristics: "bt601", MatrixCoefficients: "bt601"}
	}
	return ColorInfo{}
}

// colorFromHEVCConfig flags HEVC Main-10 (profile_idc==2, or the
// general_profile_compatibility constraint bit) as HDR10.
func colorFromHEVCConfig(payload []byte) ColorInfo {
	if len(payload) < 13 {
		return ColorInfo{}
	}
	profileIDC := payload[1] & 0x1F
	// payload[2]&0x20 is general_profile_compatibility_flag[2] (Main 10).
	if profileIDC == 2 || payload[2]&0x20 != 0 {
		return ColorInfo{Primaries: "bt2020", TransferCharacteristics: "smpte2084", MatrixCoefficients: "bt2020nc"}
	}
	return ColorInfo{}
}

// colorFromAV1Config checks the AV1 sequence-header flag byte for the
// high-bit-depth indication.
func colorFromAV1Config(payload []byte) ColorInfo {
	if len(payload) < 1 {
		return ColorInfo{}
	}
	flags := payload[0]
	profile := (flags >> 5) & 0x07
	highBitDepth := flags&0x04 != 0
	if highBitDepth || profile >= 2 {
		return ColorInfo{Primaries: "bt2020", TransferCharacteristics: "smpte2084", MatrixCoefficients: "bt2020nc"}
	}
	return ColorInfo{}
}

// colorFromVP9Config reads the VP9 codec-configuration record's
// profile and bit-depth fields.
func colorFromVP9Config(payload []byte) ColorInfo {
	if len(payload) < 2 {
		return ColorInfo{}
	}
	profile := payload[0]
	bitDepth := payload[1] >> 4
	if profile >= 2 && bitDepth >= 10 {
		return ColorInfo{Primaries: "bt2020", TransferCharacteristics: "smpte2084", MatrixCoefficients: "bt2020nc"}
	}
	return ColorInfo{}
}

// WebM Colour element child IDs.
const (
	ebmlIDColourMatrixCoefficients = 0x55B1
	ebmlIDColourBitsPerChannel     = 0x55B2
	ebmlIDColourTransfer           = 0x55B9
	ebmlIDColourPrimaries          = 0x55BA
)

// parseWebMColorInfo scans a decoded Colour element's children
// (already split into id/payload pairs by the EBML walker) for the
// numeric colour tags it recognizes.
func parseWebMColorInfo(children map[uint64][]byte) ColorInfo {
	info := ColorInfo{}
	if payload, ok := children[ebmlIDColourMatrixCoefficients]; ok {
		if v, ok := readUnsigned(payload); ok {
			info.MatrixCoefficients = mapMatrix(uint16(v))
		}
	}
	if payload, ok := children[ebmlIDColourTransfer]; ok {
		if v, ok := readUnsigned(payload); ok {
			info.TransferCharacteristics = mapTransfer(uint16(v))
		}
	}
	if payload, ok := children[ebmlIDColourPrimaries]; ok {
		if v, ok := readUnsigned(payload); ok {
			info.Primaries = mapPrimaries(uint16(v))
		}
	}
	if payload, ok := children[ebmlIDColourBitsPerChannel]; ok {
		if v, ok := readUnsigned(payload); ok && v == 0 {
			info.FullRange = boolPtr(true)
		}
	}
	return info
}
