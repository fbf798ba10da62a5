package videometa

// ColorInfo describes the H.273 color characteristics of a video
// track. An empty string means "absent"; zero-value-as-absence is used
// over pointer fields here since the zero value is never itself a
// valid tag.
type ColorInfo struct {
	MatrixCoefficients      string
	TransferCharacteristics string
	Primaries               string
	FullRange                *bool
}

func (c ColorInfo) isEmpty() bool {
	return c.MatrixCoefficients == "" && c.TransferCharacteristics == "" && c.Primaries == "" && c.FullRange == nil
}

// sttsEntry is one (sampleCount, sampleDuration) pair from an ISO BMFF
// stts box.
type sttsEntry struct {
	Count uint32
	Delta uint32
}

// TimingInfo is the sample-timing record consumed by the FPS detector.
type TimingInfo struct {
	Timescale   uint32
	Entries     []sttsEntry
	Duration    uint64
	SampleCount uint64
}

// Orientation is the VideoInfoResult orientation enumeration.
type Orientation string

const (
	OrientationPortrait            Orientation = "Portrait"
	OrientationPortraitUpsideDown  Orientation = "PortraitUpsideDown"
	OrientationLandscape           Orientation = "Landscape"
	OrientationLandscapeRight      Orientation = "LandscapeRight"
	OrientationLandscapeLeft       Orientation = "LandscapeLeft"
)

// NaturalOrientation is the VideoInfoResult naturalOrientation enum.
type NaturalOrientation string

const (
	NaturalPortrait  NaturalOrientation = "Portrait"
	NaturalLandscape NaturalOrientation = "Landscape"
)

// Container is the ParsedVideoMetadata container tag.
type Container string

const (
	ContainerMP4     Container = "mp4"
	ContainerMOV     Container = "mov"
	ContainerWebM    Container = "webm"
	ContainerMKV     Container = "mkv"
	ContainerAVI     Container = "avi"
	ContainerTS      Container = "ts"
	ContainerUnknown Container = "unknown"
)

// VideoTrackMetadata is the per-track intermediate decoded directly
// from a container's boxes/elements, before orientation, aspect ratio
// and bitrate fallbacks are derived.
type VideoTrackMetadata struct {
	Width                uint32
	Height               uint32
	Rotation             int
	DisplayAspectWidth   uint32
	DisplayAspectHeight  uint32
	Codec                string
	FPS                  float64
	HasFPS               bool
	Color                ColorInfo
	VideoBitrate         int64
	AudioBitrate         int64
}

// Location is the VideoInfoResult location record decoded from an
// ISO 6709 tag.
type Location struct {
	Latitude  float64
	Longitude float64
	Altitude  *float64
}

// ParsedVideoMetadata is the container-level record produced by each
// format parser, before the dispatcher folds it into a VideoInfoResult.
type ParsedVideoMetadata struct {
	VideoTrackMetadata
	Container       Container
	HasAudio        bool
	AudioChannels   int
	AudioSampleRate int
	AudioCodec      string
	Duration        float64
	FileSize        int64
	Bitrate         int64
	Location        *Location
	Warnings        []string
}

// VideoInfoResult is the public result of parsing one video file.
type VideoInfoResult struct {
	Duration           float64
	HasAudio           bool
	IsHDR              *bool
	Width              int
	Height             int
	FPS                float64
	BitRate            int64
	FileSize           int64
	Codec              string
	Orientation        Orientation
	NaturalOrientation NaturalOrientation
	AspectRatio        float64
	Is16_9             bool
	AudioSampleRate    int
	AudioChannels      int
	AudioCodec         string
	Location           *Location
}
