package videometa

// h264SPS is the subset of sequence-parameter-set fields this parser
// needs: true pixel dimensions after cropping, used to recover
// dimensions for a Transport Stream elementary video stream via direct
// Annex-B NAL scanning.
type h264SPS struct {
	ProfileIDC byte
	LevelIDC   byte
	Width      uint32
	Height     uint32
}

// parseH264SPS decodes an Exp-Golomb H.264 SPS from a full NAL unit
// (header byte included).
func parseH264SPS(nal []byte) (h264SPS, bool) {
	rbsp := nalToRBSP(nal)
	if len(rbsp) < 4 {
		return h264SPS{}, false
	}
	br := newBitReader(rbsp)
	profileIDC := byte(br.readBitsValue(8))
	_ = br.readBitsValue(8) // constraint flags + reserved
	levelIDC := byte(br.readBitsValue(8))
	_ = br.readUE() // seq_parameter_set_id

	chromaFormat := 1
	separateColourPlane := 0

	if isHighProfile(uint64(profileIDC)) {
		chromaFormat = br.readUE()
		if chromaFormat == 3 {
			separateColourPlane = int(br.readBitsValue(1))
		}
		_ = br.readUE() // bit_depth_luma_minus8
		_ = br.readUE() // bit_depth_chroma_minus8
		_ = br.readBitsValue(1)
		if br.readBitsValue(1) == 1 {
			for i := 0; i < 8; i++ {
				if br.readBitsValue(1) == 1 {
					skipScalingList(br, 16)
				}
			}
		}
	}

	_ = br.readUE() // log2_max_frame_num_minus4
	pocType := br.readUE()
	if pocType == 0 {
		_ = br.readUE()
	} else if pocType == 1 {
		_ = br.readBitsValue(1)
		_ = br.readSE()
		_ = br.readSE()
		numRef := br.readUE()
		for i := 0; i < numRef; i++ {
			_ = br.readSE()
		}
	}

	_ = br.readUE() // max_num_ref_frames
	_ = br.readBitsValue(1)
	picWidthMbsMinus1 := br.readUE()
	picHeightMapUnitsMinus1 := br.readUE()
	frameMbsOnly := br.readBitsValue(1)
	frameMbsOnlyInt := 0
	if frameMbsOnly != 0 {
		frameMbsOnlyInt = 1
	}
	if frameMbsOnly == 0 {
		_ = br.readBitsValue(1)
	}
	_ = br.readBitsValue(1)
	cropFlag := br.readBitsValue(1)
	var cropLeft, cropRight, cropTop, cropBottom int
	if cropFlag == 1 {
		cropLeft = br.readUE()
		cropRight = br.readUE()
		cropTop = br.readUE()
		cropBottom = br.readUE()
	}

	width := (picWidthMbsMinus1 + 1) * 16
	height := (picHeightMapUnitsMinus1 + 1) * 16
	if frameMbsOnly == 0 {
		height *= 2
	}
	if cropFlag == 1 {
		subWidthC, subHeightC := 1, 1
		switch {
		case chromaFormat == 1:
			subWidthC, subHeightC = 2, 2
		case chromaFormat == 2:
			subWidthC, subHeightC = 2, 1
		case chromaFormat == 0:
			subWidthC, subHeightC = 1, 2-frameMbsOnlyInt
		}
		cropUnitX := subWidthC
		cropUnitY := subHeightC
		if frameMbsOnlyInt == 0 {
			cropUnitY *= 2
		}
		if width > (cropLeft+cropRight)*cropUnitX {
			width -= (cropLeft + cropRight) * cropUnitX
		}
		if height > (cropTop+cropBottom)*cropUnitY {
			height -= (cropTop + cropBottom) * cropUnitY
		}
	}
	_ = separateColourPlane

	if width <= 0 || height <= 0 {
		return h264SPS{}, false
	}
	return h264SPS{ProfileIDC: profileIDC, LevelIDC: levelIDC, Width: uint32(width), Height: uint32(height)}, true
}

func isHighProfile(profileID uint64) bool {
	switch profileID {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134:
		return true
	default:
		return false
	}
}

// splitAnnexBNALUnits splits a byte stream on Annex-B 3- or 4-byte
// start codes, returning each NAL unit (header byte included).
func splitAnnexBNALUnits(data []byte) [][]byte {
	var units [][]byte
	start := 0
	for start+3 <= len(data) {
		sc, scLen := findAnnexBStartCode(data, start)
		if sc == -1 {
			break
		}
		nalStart := sc + scLen
		next, _ := findAnnexBStartCode(data, nalStart)
		nalEnd := next
		if nalEnd == -1 {
			nalEnd = len(data)
		}
		if nalStart < nalEnd {
			units = append(units, data[nalStart:nalEnd])
		}
		if next == -1 {
			break
		}
		start = next
	}
	return units
}

func findAnnexBStartCode(data []byte, start int) (int, int) {
	for i := start; i+3 <= len(data); i++ {
		if data[i] == 0x00 && data[i+1] == 0x00 {
			if data[i+2] == 0x01 {
				return i, 3
			}
			if i+3 < len(data) && data[i+2] == 0x00 && data[i+3] == 0x01 {
				return i, 4
			}
		}
	}
	return -1, 0
}

type bitReader struct {
	data []byte
	pos  int
	bit  uint8
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (br *bitReader) readBitsValue(n uint8) uint64 {
	var value uint64
	for i := uint8(0); i < n; i++ {
		if br.pos >= len(br.data) {
			return ^uint64(0)
		}
		bit := (br.data[br.pos] >> (7 - br.bit)) & 1
		value = (value << 1) | uint64(bit)
		br.bit++
		if br.bit == 8 {
			br.bit = 0
			br.pos++
		}
	}
	return value
}

func (br *bitReader) readUE() int {
	value, ok := br.readUEWithOk()
	if !ok {
		return 0
	}
	return value
}

func (br *bitReader) readSE() int {
	val := br.readUE()
	if val%2 == 0 {
		return -(val / 2)
	}
	return (val + 1) / 2
}

func (br *bitReader) readUEWithOk() (int, bool) {
	zeros := 0
	for {
		bit := br.readBitsValue(1)
		if bit == ^uint64(0) {
			return 0, false
		}
		if bit == 1 {
			break
		}
		zeros++
		if zeros > 32 {
			return 0, false
		}
	}
	if zeros == 0 {
		return 0, true
	}
	value := br.readBitsValue(uint8(zeros))
	if value == ^uint64(0) {
		return 0, false
	}
	return int((1 << zeros) - 1 + int(value)), true
}

func skipScalingList(br *bitReader, size int) {
	last := 8
	next := 8
	for i := 0; i < size; i++ {
		if next != 0 {
			next = (last + br.readSE() + 256) % 256
		}
		if next != 0 {
			last = next
		}
	}
}

// nalToRBSP strips emulation-prevention bytes (00 00 03 -> 00 00) from
// a NAL unit, including its leading header byte.
func nalToRBSP(nal []byte) []byte {
	if len(nal) <= 1 {
		return nil
	}
	nal = nal[1:]
	rbsp := make([]byte, 0, len(nal))
	zeroCount := 0
	for _, b := range nal {
		if zeroCount == 2 && b == 0x03 {
			zeroCount = 0
			continue
		}
		rbsp = append(rbsp, b)
		if b == 0x00 {
			zeroCount++
		} else {
			zeroCount = 0
		}
	}
	return rbsp
}
