package svg

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var svgElements = []string{
	"svg", "g", "defs", "symbol", "use", "title", "desc",
	"path", "rect", "circle", "ellipse", "line", "polyline", "polygon",
	"text", "tspan", "textPath",
	"linearGradient", "radialGradient", "stop", "pattern",
	"clipPath", "mask", "marker",
	"filter", "feGaussianBlur", "feOffset", "feBlend", "feColorMatrix",
	"feComposite", "feFlood", "feMerge", "feMergeNode", "feMorphology", "feDropShadow",
}

var svgAttributes = []string{
	"id", "class", "version", "width", "height", "viewBox", "preserveAspectRatio",
	"x", "y", "x1", "y1", "x2", "y2", "cx", "cy", "r", "rx", "ry", "fx", "fy",
	"d", "points", "pathLength", "transform", "opacity", "display", "visibility", "color",
	"fill", "fill-opacity", "fill-rule",
	"stroke", "stroke-width", "stroke-linecap", "stroke-linejoin", "stroke-dasharray",
	"stroke-dashoffset", "stroke-opacity", "stroke-miterlimit",
	"offset", "stop-color", "stop-opacity",
	"gradientUnits", "gradientTransform", "spreadMethod",
	"clip-path", "clip-rule", "clipPathUnits", "mask", "maskUnits", "maskContentUnits",
	"patternUnits", "patternContentUnits", "patternTransform",
	"markerWidth", "markerHeight", "markerUnits", "refX", "refY", "orient",
	"marker-start", "marker-mid", "marker-end",
	"font-family", "font-size", "font-weight", "font-style", "text-anchor",
	"dominant-baseline", "dx", "dy", "letter-spacing", "textLength", "lengthAdjust", "startOffset",
	"filter", "filterUnits", "primitiveUnits", "stdDeviation", "in", "in2", "result",
	"mode", "type", "values", "operator", "k1", "k2", "k3", "k4",
	"flood-color", "flood-opacity", "xml:space", "role", "aria-label", "aria-hidden",
}

var (
	// attribute values never carry a scheme
	safeValueRe  = regexp.MustCompile(`^[^:]*$`)
	matchNothing = regexp.MustCompile(`[^\x00-\x{10FFFF}]`)

	tagRe  = regexp.MustCompile(`<(/?)([a-zA-Z][a-zA-Z0-9]*)([^>]*)>`)
	attrRe = regexp.MustCompile(`(\s)([a-zA-Z_:][-a-zA-Z0-9_:.]*)(="[^"]*")`)

	camelNames = func() map[string]string {
		m := make(map[string]string)
		for _, list := range [][]string{svgElements, svgAttributes} {
			for _, name := range list {
				if lower := strings.ToLower(name); lower != name {
					m[lower] = name
				}
			}
		}
		return m
	}()
)

// policyStage is the final, mandatory stage.
type policyStage struct {
	policy *bluemonday.Policy
}

// NewPolicyStage returns the strict allow-list stage that ends every pipeline.
func NewPolicyStage() Stage {
	return &policyStage{policy: newSVGPolicy()}
}

func newSVGPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(svgElements...)
	p.AllowNoAttrs().OnElements(svgElements...)
	p.AllowAttrs(svgAttributes...).Matching(safeValueRe).Globally()
	p.AllowAttrs("xmlns").Matching(regexp.MustCompile(`^` + regexp.QuoteMeta(svgNamespace) + `$`)).OnElements("svg")
	p.AllowAttrs("xmlns:xlink").Matching(regexp.MustCompile(`^` + regexp.QuoteMeta(xlinkNamespace) + `$`)).OnElements("svg")
	p.AllowURLSchemesMatching(matchNothing)
	p.RequireParseableURLs(true)
	p.SkipElementsContent(DeniedTags...)
	return p
}

func (s *policyStage) Name() string { return "policy" }

// Apply runs bluemonday, keeps only the basic escapes it emits for text and
// restores the camelCase names its tokenizer lower-cased.
func (s *policyStage) Apply(markup []byte) ([]byte, error) {
	out := stripCharRefs(s.policy.SanitizeBytes(markup))
	return restoreCase(out), nil
}

func restoreCase(markup []byte) []byte {
	return tagRe.ReplaceAllFunc(markup, func(tag []byte) []byte {
		m := tagRe.FindSubmatch(tag)
		name := string(m[2])
		if camel, ok := camelNames[name]; ok {
			name = camel
		}
		attrs := attrRe.ReplaceAllFunc(m[3], func(attr []byte) []byte {
			a := attrRe.FindSubmatch(attr)
			key := string(a[2])
			if camel, ok := camelNames[key]; ok {
				key = camel
			}
			return []byte(string(a[1]) + key + string(a[3]))
		})
		return []byte("<" + string(m[1]) + name + string(attrs) + ">")
	})
}
