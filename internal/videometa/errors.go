package videometa

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy of parse failure classes. The public API
// exposes it via (*ParseError).Kind so callers can branch on the
// failure class without string matching.
type Kind string

const (
	KindUnsupportedContainer Kind = "unsupported_container"
	KindTruncatedInput       Kind = "truncated_input"
	KindMalformedStructure   Kind = "malformed_structure"
	KindNoVideoTrack         Kind = "no_video_track"
	KindReadError            Kind = "read_error"
)

// ParseError is the single typed error kind returned across the public
// boundary, carrying enough diagnostic context to name the offending
// container, box/element, and byte offset when known.
type ParseError struct {
	Kind      Kind
	Container string
	Element   string
	Offset    int64
	Message   string
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Container != "" && e.Element != "" {
		return fmt.Sprintf("%s: %s (container=%s element=%s offset=%d)", e.Kind, msg, e.Container, e.Element, e.Offset)
	}
	if e.Container != "" {
		return fmt.Sprintf("%s: %s (container=%s)", e.Kind, msg, e.Container)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func newKindError(kind Kind, message string) error {
	return &ParseError{Kind: kind, Message: message}
}

func newParseError(kind Kind, container, element string, offset int64, message string) error {
	return &ParseError{Kind: kind, Container: container, Element: element, Offset: offset, Message: message}
}

// kindOf extracts the Kind from err if it is (or wraps) a *ParseError,
// defaulting to KindMalformedStructure for anything else.
func kindOf(err error) Kind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindMalformedStructure
}
