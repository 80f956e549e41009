package svg

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantReason Reason
	}{
		{name: "plain", data: `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1 1"><rect width="1" height="1"/></svg>`},
		{name: "fragment reference", data: `<svg><use xlink:href="#icon"/></svg>`},
		{name: "gradient fill", data: `<svg><linearGradient id="g"/><rect fill="url(#g)"/></svg>`},
		{name: "bare script", data: `<script>alert(1)</script>`, wantReason: ReasonMissingEnvelope},
		{name: "script", data: `<svg><script>alert(1)</script></svg>`, wantReason: ReasonForbiddenTag},
		{name: "foreign object", data: `<svg><foreignObject><div/></foreignObject></svg>`, wantReason: ReasonForbiddenTag},
		{name: "style element", data: `<svg><STYLE>rect{}</STYLE></svg>`, wantReason: ReasonForbiddenTag},
		{name: "onload", data: `<svg onload="alert(1)"></svg>`, wantReason: ReasonEventHandler},
		{name: "onclick uppercase", data: `<svg><rect ONCLICK = "x()"/></svg>`, wantReason: ReasonEventHandler},
		{name: "remote href", data: `<svg><use href="http://evil.example/a.svg#x"/></svg>`, wantReason: ReasonExternalReference},
		{name: "relative src", data: `<svg><image src='pic.png'/></svg>`, wantReason: ReasonExternalReference},
		{name: "javascript link", data: `<svg><a xlink:href="javascript:alert(1)">x</a></svg>`, wantReason: ReasonExternalReference},
		{name: "scheme in style", data: `<svg><rect style="fill:url(javascript:alert(1))"/></svg>`, wantReason: ReasonExternalReference},
		{name: "encoded scheme in text", data: `<svg><text>&#x6a;avascript&#58;alert(1)</text></svg>`, wantReason: ReasonExternalReference},
		{name: "double encoded scheme", data: `<svg><text>&amp;#x6a;avascript&amp;#58;x</text></svg>`, wantReason: ReasonExternalReference},
		{name: "escaped text", data: `<svg><text>a &amp; b &lt; c</text></svg>`},
		{name: "too large", data: "<svg>" + strings.Repeat(" ", MaxBytes) + "</svg>", wantReason: ReasonTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.data))
			if tt.wantReason == "" {
				require.NoError(t, err)
				return
			}
			var rerr *RejectedError
			require.True(t, errors.As(err, &rerr), "expected RejectedError, got %v", err)
			assert.Equal(t, tt.wantReason, rerr.Reason)
		})
	}
}

func TestSanitizeKeepsCleanMarkup(t *testing.T) {
	s := NewSanitizer(nil)
	in := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><path d="M0 0L10 10"/></svg>`

	got := string(s.Sanitize([]byte(in)))

	assert.Equal(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><path d="M0 0L10 10"></path></svg>`, got)
}

func TestSanitizeRemovesActiveContent(t *testing.T) {
	s := NewSanitizer(nil)

	tests := []struct {
		name    string
		in      string
		absent  []string
		present []string
	}{
		{
			name:    "script and event handler",
			in:      `<svg viewBox="0 0 1 1"><script>alert(1)</script><rect width="1" onload="alert(2)"/></svg>`,
			absent:  []string{"script", "alert", "onload"},
			present: []string{`<rect width="1">`},
		},
		{
			name:   "javascript uri",
			in:     `<svg><a href="javascript:alert(1)"><text>x</text></a></svg>`,
			absent: []string{"javascript", "href", "<a"},
		},
		{
			name:   "remote references",
			in:     `<svg><image xlink:href="http://evil.example/x.png"/><rect fill="url(https://evil.example/p)"/></svg>`,
			absent: []string{"evil.example", "http"},
		},
		{
			name:   "denied elements",
			in:     `<svg><foreignObject><iframe src="x"></iframe></foreignObject><style>*{}</style><rect/></svg>`,
			absent: []string{"foreignObject", "foreignobject", "iframe", "style"},
		},
		{
			name:   "comments cdata and data attributes",
			in:     `<svg data-x="1"><!-- note --><text><![CDATA[hidden]]></text></svg>`,
			absent: []string{"<!--", "-->", "CDATA", "data-x"},
		},
		{
			name:   "encoded scheme",
			in:     `<svg><a href="&#x6A;avascript:alert(1)">x</a></svg>`,
			absent: []string{"avascript", "&#"},
		},
		{
			name:    "gradient fill kept",
			in:      `<svg><defs><linearGradient id="g"><stop offset="0" stop-color="red"/></linearGradient></defs><rect fill="url(#g)"/></svg>`,
			present: []string{`<linearGradient id="g">`, `fill="url(#g)"`, `stop-color="red"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(s.Sanitize([]byte(tt.in)))
			for _, a := range tt.absent {
				assert.NotContains(t, got, a)
			}
			for _, p := range tt.present {
				assert.Contains(t, got, p)
			}
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	s := NewSanitizer(nil)
	inputs := []string{
		`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 4 4"><use xlink:href="#a"/></svg>`,
		`<svg><text>it's &amp; "quoted" &#x3C;b&#x3E;</text></svg>`,
		`<svg><g transform="translate(1 2)"><circle cx="1" cy="1" r="1" onclick="x()"/></g><!-- c --></svg>`,
		`<svg><clipPath id="c"><rect/></clipPath><text xml:space="preserve">  a  </text></svg>`,
		`<svg><script>alert(1)</script><![CDATA[<script>]]></svg>`,
		`not markup at all & some < text`,
	}

	for _, in := range inputs {
		once := s.Sanitize([]byte(in))
		twice := s.Sanitize(once)
		assert.Equal(t, string(once), string(twice), in)
	}
}

type brokenStage struct{ panics bool }

func (b brokenStage) Name() string { return "broken" }

func (b brokenStage) Apply([]byte) ([]byte, error) {
	if b.panics {
		panic("boom")
	}
	return nil, errors.New("cannot parse")
}

func TestSanitizeSkipsFailingStages(t *testing.T) {
	in := []byte(`<svg><rect width="1"/></svg>`)
	want := NewSanitizerWithStages(nil, nil, NewPolicyStage()).Sanitize(in)

	s := NewSanitizerWithStages(nil, []Stage{brokenStage{}, brokenStage{panics: true}}, NewPolicyStage())

	assert.Equal(t, string(want), string(s.Sanitize(in)))
	assert.Equal(t, `<svg><rect width="1"/></svg>`, string(want))
}

func TestSanitizeDropsContentWhenFinalStageFails(t *testing.T) {
	s := NewSanitizerWithStages(nil, DefaultStages(), brokenStage{panics: true})

	assert.Empty(t, s.Sanitize([]byte(`<svg></svg>`)))
}

func TestDOMStageRendersForeignElements(t *testing.T) {
	in := []byte(`<svg><rect/></svg>`)
	out, err := (&domStage{name: "noop", transform: func(n []*html.Node) []*html.Node { return n }}).Apply(in)
	require.NoError(t, err)
	assert.Equal(t, `<svg><rect></rect></svg>`, string(out))
}

func TestTextStageReachesFixedPoint(t *testing.T) {
	out, err := textStage{}.Apply([]byte(`<svg><!<!---->-->&#x26;#x6a;&am&#x70;;</svg>`))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<!--")
	assert.NotContains(t, string(out), "&")
}

func TestEscapeStageKeepsBasicEscapes(t *testing.T) {
	out, err := escapeStage{}.Apply([]byte(`<text>a &amp; b &lt; c &#39;d&#39; &#x6a;s&#58; &colon;</text>`))
	require.NoError(t, err)
	assert.Equal(t, `<text>a &amp; b &lt; c &#39;d&#39; s </text>`, string(out))
}

func TestSanitizeStripsEncodedPayloads(t *testing.T) {
	in := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><text>&#x6a;avascript&#58;alert(1) &#104;ttps://evil.example/x</text></svg>`)

	require.Error(t, Validate(in))

	got := string(NewSanitizer(nil).Sanitize(in))
	assert.NotContains(t, got, "javascript:")
	assert.NotContains(t, got, "https://")
	assert.NotContains(t, got, "&#")
	assert.Contains(t, got, "<text>")
}

func TestSanitizeKeepsEscapedText(t *testing.T) {
	got := string(NewSanitizer(nil).Sanitize([]byte(`<svg><text>It's a &amp; b &lt; c</text></svg>`)))

	assert.Equal(t, `<svg><text>It&#39;s a &amp; b &lt; c</text></svg>`, got)
}
