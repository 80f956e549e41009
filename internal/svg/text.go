package svg

import (
	"bytes"
	"regexp"
)

// maxTextPasses bounds the fixed-point loops of the textual stages.
const maxTextPasses = 32

type substitution struct {
	re   *regexp.Regexp
	repl []byte
	fn   func([]byte) []byte
}

var textSubstitutions = []substitution{
	{re: regexp.MustCompile(`(?is)<!\[CDATA\[.*?\]\]>`)},
	{re: regexp.MustCompile(`(?i)\s+data-[a-z0-9_.:\-]*\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)},
	{re: regexp.MustCompile(`(?i)url\(\s*['"]?\s*(?:https?:)?//[^)]*\)`), repl: []byte("none")},
	{re: regexp.MustCompile(`(?i)\s+(?:xlink:)?(?:href|src)\s*=\s*(?:"\s*(?:https?:)?//[^"]*"|'\s*(?:https?:)?//[^']*'|(?:https?:)?//[^\s>]*)`)},
	{fn: stripCharRefs},
	{re: regexp.MustCompile(`(?s)<!--.*?-->`)},
	{re: regexp.MustCompile(`<!--|-->`)},
}

var charRefRe = regexp.MustCompile(`(?i)&#x[0-9a-f]+;?|&#[0-9]+;?|&[a-z][a-z0-9]*;`)

// basicEscapes are the references html.Render and bluemonday emit for
// markup characters in text. None of them can spell a letter or a colon.
var basicEscapes = map[string]bool{
	"&amp;": true, "&lt;": true, "&gt;": true, "&quot;": true, "&apos;": true,
	"&#39;": true, "&#34;": true,
}

// stripCharRefs deletes every character reference except the basic escapes.
func stripCharRefs(markup []byte) []byte {
	return charRefRe.ReplaceAllFunc(markup, func(ref []byte) []byte {
		if basicEscapes[string(ref)] {
			return ref
		}
		return nil
	})
}

func fixedPoint(markup []byte, subs []substitution) []byte {
	out := markup
	for i := 0; i < maxTextPasses; i++ {
		next := out
		for _, s := range subs {
			if s.fn != nil {
				next = s.fn(next)
				continue
			}
			next = s.re.ReplaceAll(next, s.repl)
		}
		if bytes.Equal(next, out) {
			break
		}
		out = next
	}
	return out
}

// escapeStage strips encoded characters before the first parse, which would
// otherwise decode them into plain text that later stages cannot tell apart
// from ordinary content.
type escapeStage struct{}

func (escapeStage) Name() string { return "escapes" }

func (escapeStage) Apply(markup []byte) ([]byte, error) {
	return fixedPoint(markup, []substitution{{fn: stripCharRefs}}), nil
}

// textStage removes what the DOM stages cannot see: CDATA, data-*
// attributes, remote url()/href/src tokens, character references and comment
// markers. Each substitution is repeated until the markup stops changing.
type textStage struct{}

func (textStage) Name() string { return "text" }

func (textStage) Apply(markup []byte) ([]byte, error) {
	return fixedPoint(markup, textSubstitutions), nil
}
