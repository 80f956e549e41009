// Package svg checks and sanitizes SVG uploads before they are published.
//
// Validate is a strict pre-check that rejects suspicious markup outright.
// Sanitizer is a best-effort cleanup applied to markup that passed it: a list
// of optional stages followed by a mandatory bluemonday pass, which is the
// actual security boundary.
package svg

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// MaxBytes is the largest SVG document accepted by Validate.
const MaxBytes = 1 << 20

// DeniedTags are never allowed in a published SVG.
var DeniedTags = []string{"script", "iframe", "object", "embed", "link", "meta", "style", "foreignObject"}

// Reason tells why Validate rejected a document.
type Reason string

// Rejection reasons.
const (
	ReasonMissingEnvelope   Reason = "MissingEnvelope"
	ReasonTooLarge          Reason = "TooLarge"
	ReasonForbiddenTag      Reason = "ForbiddenTag"
	ReasonEventHandler      Reason = "EventHandler"
	ReasonExternalReference Reason = "ExternalReference"
)

// RejectedError is returned by Validate.
type RejectedError struct {
	Reason Reason
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("svg rejected: %s", e.Reason)
	}
	return fmt.Sprintf("svg rejected: %s (%s)", e.Reason, e.Detail)
}

var (
	envelopeRe     = regexp.MustCompile(`(?is)<svg[\s>/].*</svg\s*>`)
	forbiddenTagRe = regexp.MustCompile(`(?i)<\s*/?\s*(` + strings.Join(DeniedTags, "|") + `)[\s>/]`)
	eventAttrRe    = regexp.MustCompile(`(?i)[\s"'/](on[a-z]+)\s*=`)
	uriAttrRe      = regexp.MustCompile(`(?i)[\s"'/]((?:xlink:)?(?:href|src))\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>]+))`)
	schemeURLRe    = regexp.MustCompile(`(?i)url\(\s*['"]?\s*[a-z][a-z0-9+.\-]*:`)
	jsSchemeRe     = regexp.MustCompile(`(?i)(?:java|vb)script\s*:`)
)

// Validate rejects markup that lacks an <svg> envelope, is larger than
// MaxBytes, or carries denied tags, event handlers or references that are
// not same-document fragments. It never modifies the input.
func Validate(data []byte) error {
	if len(data) > MaxBytes {
		return &RejectedError{Reason: ReasonTooLarge, Detail: fmt.Sprintf("%d bytes", len(data))}
	}
	if !envelopeRe.Match(data) {
		return &RejectedError{Reason: ReasonMissingEnvelope}
	}
	if m := forbiddenTagRe.FindSubmatch(data); m != nil {
		return &RejectedError{Reason: ReasonForbiddenTag, Detail: strings.ToLower(string(m[1]))}
	}
	if m := eventAttrRe.FindSubmatch(data); m != nil {
		return &RejectedError{Reason: ReasonEventHandler, Detail: strings.ToLower(string(m[1]))}
	}
	for _, m := range uriAttrRe.FindAllSubmatch(data, -1) {
		value := string(m[2]) + string(m[3]) + string(m[4])
		if !isFragment(value) {
			return &RejectedError{Reason: ReasonExternalReference, Detail: string(m[1])}
		}
	}
	if schemeURLRe.Match(data) || jsSchemeRe.Match(data) {
		return &RejectedError{Reason: ReasonExternalReference, Detail: "scheme"}
	}
	if plain := unescapeAll(string(data)); jsSchemeRe.MatchString(plain) || schemeURLRe.MatchString(plain) {
		return &RejectedError{Reason: ReasonExternalReference, Detail: "encoded scheme"}
	}
	return nil
}

// unescapeAll decodes character references until nothing changes, so nested
// encodings are checked in the form a renderer ends up with.
func unescapeAll(s string) string {
	for i := 0; i < maxTextPasses; i++ {
		next := html.UnescapeString(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func isFragment(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "#")
}
