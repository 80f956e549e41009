// Package upload validates incoming files and derives safe names for them.
package upload

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Supported media types.
const (
	TypeJPEG = "image/jpeg"
	TypePNG  = "image/png"
	TypeGIF  = "image/gif"
	TypeWEBP = "image/webp"
	TypeBMP  = "image/bmp"
	TypeSVG  = "image/svg+xml"
)

// DefaultMaxBytes is the upload limit used by the zero Gatekeeper.
const DefaultMaxBytes = 5 << 20

var allowedTypes = map[string]string{
	TypeJPEG: ".jpg",
	TypePNG:  ".png",
	TypeGIF:  ".gif",
	TypeWEBP: ".webp",
	TypeBMP:  ".bmp",
	TypeSVG:  ".svg",
}

var typeAliases = map[string]string{
	"image/jpg":      TypeJPEG,
	"image/pjpeg":    TypeJPEG,
	"image/x-ms-bmp": TypeBMP,
	"image/x-bmp":    TypeBMP,
	"image/svg":      TypeSVG,
}

// Reason tells why an upload was rejected.
type Reason string

// Rejection reasons.
const (
	ReasonTooLarge        Reason = "TooLarge"
	ReasonUnsupportedType Reason = "UnsupportedType"
	ReasonEmpty           Reason = "Empty"
)

// ValidationError is returned for uploads that must not be processed any further.
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("upload rejected: %s", e.Reason)
	}
	return fmt.Sprintf("upload rejected: %s: %s", e.Reason, e.Detail)
}

// Gatekeeper checks size and declared type before anything else runs.
type Gatekeeper struct {
	MaxBytes int64
}

// NewGatekeeper returns a Gatekeeper with the given limit; non-positive means DefaultMaxBytes.
func NewGatekeeper(maxBytes int64) *Gatekeeper {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Gatekeeper{MaxBytes: maxBytes}
}

// Validate rejects oversized, empty or unsupported uploads. It has no side effects.
func (g *Gatekeeper) Validate(data []byte, declaredType string) error {
	limit := g.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	if int64(len(data)) > limit {
		return &ValidationError{
			Reason: ReasonTooLarge,
			Detail: fmt.Sprintf("%d bytes exceeds the limit of %d", len(data), limit),
		}
	}
	if len(data) == 0 {
		return &ValidationError{Reason: ReasonEmpty}
	}
	if !IsSupported(declaredType) {
		return &ValidationError{Reason: ReasonUnsupportedType, Detail: declaredType}
	}
	return nil
}

// NormalizeType lower-cases a media type, drops its parameters and resolves aliases.
func NormalizeType(contentType string) string {
	t := strings.ToLower(strings.TrimSpace(contentType))
	if t == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(t); err == nil {
		t = parsed
	} else if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

// IsSupported reports whether the type is in the allow-list.
func IsSupported(contentType string) bool {
	_, ok := allowedTypes[NormalizeType(contentType)]
	return ok
}

// IsSVG reports whether the type denotes a vector image.
func IsSVG(contentType string) bool {
	return NormalizeType(contentType) == TypeSVG
}

// Extension returns the canonical file extension of a supported type.
func Extension(contentType string) string {
	return allowedTypes[NormalizeType(contentType)]
}

// DetectType resolves the type the pipeline works with. An undeclared type is
// sniffed from the content, and markup that sniffs as SVG is always treated as
// SVG whatever the client declared, so it cannot skip sanitization.
func DetectType(data []byte, declaredType string) string {
	declared := NormalizeType(declaredType)
	sniffed := mimetype.Detect(data)

	if sniffed.Is(TypeSVG) {
		return TypeSVG
	}
	if declared == "" || declared == "application/octet-stream" {
		return NormalizeType(sniffed.String())
	}
	return declared
}
