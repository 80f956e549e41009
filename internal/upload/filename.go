package upload

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/lithammer/shortuuid/v4"
)

const maxStemRunes = 100

// now and token are replaced in tests.
var (
	now   = time.Now
	token = func() string {
		return shortuuid.New()[:8]
	}
)

// NormalizeFilename returns a name that is safe to hand to the storage gateway.
//
// SVG files whose base name contains non-Latin letters get a synthetic
// svg_{millis}_{token}.svg name. Other names keep letters, digits, CJK
// ideographs, '-' and '_' only; whitespace becomes '_', separator runs are
// collapsed and trimmed. An empty result becomes file_{millis}_{token}{ext}.
func NormalizeFilename(filename, contentType string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if base == "." || base == "/" {
		base = ""
	}

	rawExt := path.Ext(base)
	stem := strings.TrimSuffix(base, rawExt)
	ext := cleanExt(rawExt)
	if ext == "" {
		ext = Extension(contentType)
	}

	if IsSVG(contentType) && hasNonLatinLetters(stem) {
		return fmt.Sprintf("svg_%d_%s.svg", now().UnixMilli(), token())
	}

	stem = cleanStem(stem)
	if stem == "" {
		return fmt.Sprintf("file_%d_%s%s", now().UnixMilli(), token(), ext)
	}
	return stem + ext
}

func hasNonLatinLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return r == '-' || r == '_'
}

func keepRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Han, r) || isSeparator(r)
}

func cleanStem(stem string) string {
	var b strings.Builder
	var prev rune
	n := 0
	for _, r := range stem {
		if unicode.IsSpace(r) {
			r = '_'
		}
		if !keepRune(r) {
			continue
		}
		if isSeparator(r) && isSeparator(prev) {
			continue
		}
		if n == maxStemRunes {
			break
		}
		b.WriteRune(r)
		prev = r
		n++
	}
	return strings.TrimFunc(b.String(), isSeparator)
}

func cleanExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || b.Len() > 8 {
		return ""
	}
	return "." + b.String()
}
