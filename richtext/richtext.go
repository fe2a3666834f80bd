// Package richtext renders Prismic-style structured text to sanitized HTML.
package richtext

import (
	"bytes"
	"context"
	"html"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
)

// Block is one node of a structured text field.
type Block struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Spans []Span `json:"spans,omitempty"`

	// Image blocks.
	URL        string     `json:"url,omitempty"`
	Alt        string     `json:"alt,omitempty"`
	Dimensions *Dimension `json:"dimensions,omitempty"`

	// Embed blocks.
	Oembed *Oembed `json:"oembed,omitempty"`
}

// Blocks is an ordered structured text field.
type Blocks []Block

// Dimension is the pixel size of an image block.
type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Oembed carries the subset of embed metadata we render.
type Oembed struct {
	EmbedURL string `json:"embed_url"`
	Title    string `json:"title,omitempty"`
	HTML     string `json:"html,omitempty"`
}

// Span marks up the rune range [Start, End) of a block's text.
type Span struct {
	Start int       `json:"start"`
	End   int       `json:"end"`
	Type  string    `json:"type"`
	Data  *SpanData `json:"data,omitempty"`
}

// SpanData holds hyperlink targets and label names.
type SpanData struct {
	LinkType string `json:"link_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Target   string `json:"target,omitempty"`
	UID      string `json:"uid,omitempty"`
	Type     string `json:"type,omitempty"`
	Label    string `json:"label,omitempty"`
}

// Block types.
const (
	TypeParagraph    = "paragraph"
	TypePreformatted = "preformatted"
	TypeListItem     = "list-item"
	TypeOListItem    = "o-list-item"
	TypeImage        = "image"
	TypeEmbed        = "embed"
)

// Span types.
const (
	SpanStrong    = "strong"
	SpanEm        = "em"
	SpanHyperlink = "hyperlink"
	SpanLabel     = "label"
)

// LinkResolver maps a document link to a site-relative URL.
type LinkResolver func(d SpanData) string

// DefaultLinkResolver points document links at the post detail route.
func DefaultLinkResolver(d SpanData) string {
	if d.UID == "" {
		return "/"
	}
	return "/post/" + d.UID + "/"
}

// Renderer turns Blocks into sanitized HTML.
type Renderer struct {
	policy   *bluemonday.Policy
	resolver LinkResolver
}

// NewRenderer creates a Renderer. A nil resolver uses DefaultLinkResolver.
func NewRenderer(resolver LinkResolver) *Renderer {
	if resolver == nil {
		resolver = DefaultLinkResolver
	}
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).Globally()
	p.AllowAttrs("target").Matching(bluemonday.SpaceSeparatedTokens).OnElements("a")
	p.AllowAttrs("loading", "width", "height").OnElements("img")
	p.AddTargetBlankToFullyQualifiedLinks(false)
	return &Renderer{policy: p, resolver: resolver}
}

// Render returns the sanitized HTML for blocks.
func (r *Renderer) Render(blocks Blocks) (string, error) {
	var buf bytes.Buffer
	r.write(&buf, blocks)
	return r.policy.Sanitize(buf.String()), nil
}

// Component returns a templ.Component that writes the rendered blocks.
func (r *Renderer) Component(blocks Blocks) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out, err := r.Render(blocks)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	})
}

func (r *Renderer) write(buf *bytes.Buffer, blocks Blocks) {
	list := ""
	closeList := func() {
		if list != "" {
			buf.WriteString("</" + list + ">")
			list = ""
		}
	}
	openList := func(tag string) {
		if list == tag {
			return
		}
		closeList()
		buf.WriteString("<" + tag + ">")
		list = tag
	}

	for _, b := range blocks {
		switch b.Type {
		case TypeListItem:
			openList("ul")
			buf.WriteString("<li>" + r.inline(b) + "</li>")
			continue
		case TypeOListItem:
			openList("ol")
			buf.WriteString("<li>" + r.inline(b) + "</li>")
			continue
		}
		closeList()

		if level, ok := headingLevel(b.Type); ok {
			tag := "h" + strconv.Itoa(level)
			buf.WriteString("<" + tag + ">" + r.inline(b) + "</" + tag + ">")
			continue
		}
		switch b.Type {
		case TypePreformatted:
			buf.WriteString("<pre>" + r.inline(b) + "</pre>")
		case TypeImage:
			if b.URL == "" {
				continue
			}
			buf.WriteString(`<p class="block-img"><img src="` + html.EscapeString(b.URL) + `" alt="` + html.EscapeString(b.Alt) + `" loading="lazy"`)
			if b.Dimensions != nil && b.Dimensions.Width > 0 && b.Dimensions.Height > 0 {
				buf.WriteString(` width="` + strconv.Itoa(b.Dimensions.Width) + `" height="` + strconv.Itoa(b.Dimensions.Height) + `"`)
			}
			buf.WriteString("/></p>")
		case TypeEmbed:
			if b.Oembed == nil || b.Oembed.EmbedURL == "" {
				continue
			}
			title := b.Oembed.Title
			if title == "" {
				title = b.Oembed.EmbedURL
			}
			buf.WriteString(`<p class="block-embed"><a href="` + html.EscapeString(b.Oembed.EmbedURL) + `">` + html.EscapeString(title) + `</a></p>`)
		default:
			buf.WriteString("<p>" + r.inline(b) + "</p>")
		}
	}
	closeList()
}

func headingLevel(t string) (int, bool) {
	if !strings.HasPrefix(t, "heading") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(t, "heading"))
	if err != nil || n < 1 || n > 6 {
		return 0, false
	}
	return n, true
}

type boundary struct {
	pos   int
	open  bool
	index int
	span  Span
}

// inline renders a block's text with its spans. Span offsets count runes;
// out-of-range offsets are clamped and empty spans are ignored.
func (r *Renderer) inline(b Block) string {
	text := []rune(b.Text)
	if len(b.Spans) == 0 {
		return escapeText(string(text))
	}

	var bounds []boundary
	for i, s := range b.Spans {
		start, end := clamp(s.Start, len(text)), clamp(s.End, len(text))
		if end <= start {
			continue
		}
		bounds = append(bounds,
			boundary{pos: start, open: true, index: i, span: s},
			boundary{pos: end, open: false, index: i, span: s})
	}
	// Closings come before openings at the same offset; wider spans open first
	// and close last so tags stay properly nested.
	sort.SliceStable(bounds, func(i, j int) bool {
		a, c := bounds[i], bounds[j]
		if a.pos != c.pos {
			return a.pos < c.pos
		}
		if a.open != c.open {
			return !a.open
		}
		if a.open {
			return a.span.End > c.span.End || (a.span.End == c.span.End && a.index < c.index)
		}
		return a.span.Start > c.span.Start || (a.span.Start == c.span.Start && a.index > c.index)
	})

	var out strings.Builder
	var stack []Span
	last := 0
	for _, bd := range bounds {
		out.WriteString(escapeText(string(text[last:bd.pos])))
		last = bd.pos
		if bd.open {
			stack = append(stack, bd.span)
			out.WriteString(r.openTag(bd.span))
			continue
		}
		// Close down to the span, then reopen everything that was inside it.
		var reopen []Span
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			out.WriteString(closeTag(top))
			if top == bd.span {
				break
			}
			reopen = append(reopen, top)
		}
		for i := len(reopen) - 1; i >= 0; i-- {
			stack = append(stack, reopen[i])
			out.WriteString(r.openTag(reopen[i]))
		}
	}
	out.WriteString(escapeText(string(text[last:])))
	for i := len(stack) - 1; i >= 0; i-- {
		out.WriteString(closeTag(stack[i]))
	}
	return out.String()
}

func (r *Renderer) openTag(s Span) string {
	switch s.Type {
	case SpanStrong:
		return "<strong>"
	case SpanEm:
		return "<em>"
	case SpanHyperlink:
		href := ""
		target := ""
		if s.Data != nil {
			if s.Data.LinkType == "Document" || (s.Data.URL == "" && s.Data.UID != "") {
				href = r.resolver(*s.Data)
			} else {
				href = s.Data.URL
			}
			target = s.Data.Target
		}
		tag := `<a href="` + html.EscapeString(href) + `"`
		if target != "" {
			tag += ` target="` + html.EscapeString(target) + `"`
		}
		return tag + ">"
	case SpanLabel:
		label := ""
		if s.Data != nil {
			label = s.Data.Label
		}
		return `<span class="` + html.EscapeString(label) + `">`
	}
	return "<span>"
}

func closeTag(s Span) string {
	switch s.Type {
	case SpanStrong:
		return "</strong>"
	case SpanEm:
		return "</em>"
	case SpanHyperlink:
		return "</a>"
	}
	return "</span>"
}

func escapeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br/>")
}

func clamp(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

// AsText joins the text of every block with newlines.
func AsText(blocks Blocks) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
