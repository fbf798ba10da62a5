// Package videometa is the public proxy over internal/videometa, a
// thin re-export wrapper so callers never import the internal package
// directly.
package videometa

import (
	"io"

	"github.com/clipinspect/videometa/internal/videometa"
)

// Types
type VideoInfoResult = videometa.VideoInfoResult
type Location = videometa.Location
type Orientation = videometa.Orientation
type NaturalOrientation = videometa.NaturalOrientation
type Container = videometa.Container
type ParseOptions = videometa.ParseOptions
type ParseError = videometa.ParseError
type Kind = videometa.Kind

// Constants
const (
	OrientationPortrait           = videometa.OrientationPortrait
	OrientationPortraitUpsideDown = videometa.OrientationPortraitUpsideDown
	OrientationLandscape          = videometa.OrientationLandscape
	OrientationLandscapeRight     = videometa.OrientationLandscapeRight
	OrientationLandscapeLeft      = videometa.OrientationLandscapeLeft

	NaturalPortrait  = videometa.NaturalPortrait
	NaturalLandscape = videometa.NaturalLandscape

	ContainerMP4     = videometa.ContainerMP4
	ContainerMOV     = videometa.ContainerMOV
	ContainerWebM    = videometa.ContainerWebM
	ContainerMKV     = videometa.ContainerMKV
	ContainerAVI     = videometa.ContainerAVI
	ContainerTS      = videometa.ContainerTS
	ContainerUnknown = videometa.ContainerUnknown

	KindUnsupportedContainer = videometa.KindUnsupportedContainer
	KindTruncatedInput       = videometa.KindTruncatedInput
	KindMalformedStructure   = videometa.KindMalformedStructure
	KindNoVideoTrack         = videometa.KindNoVideoTrack
	KindReadError            = videometa.KindReadError
)

// ParseVideoMetadata is the primary entry point: given a fully
// materialized byte buffer and its size, sniff the container and
// return the assembled VideoInfoResult.
func ParseVideoMetadata(buf []byte, fileSize int64, opts ParseOptions) (VideoInfoResult, error) {
	return videometa.ParseVideoMetadata(buf, fileSize, opts)
}

// ParseVideoMetadataReader reads r fully before parsing, for callers
// holding an io.Reader rather than an in-memory buffer; the core
// itself remains synchronous over the materialized slice.
func ParseVideoMetadataReader(r io.Reader, opts ParseOptions) (VideoInfoResult, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return VideoInfoResult{}, err
	}
	return videometa.ParseVideoMetadata(buf, int64(len(buf)), opts)
}

func FormatVersion(version string) string {
	return videometa.FormatVersion(version)
}

func SetAppVersion(version string) {
	videometa.SetAppVersion(version)
}
