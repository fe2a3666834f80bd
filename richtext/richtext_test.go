package richtext

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, blocks ...Block) string {
	t.Helper()
	out, err := NewRenderer(nil).Render(blocks)
	require.NoError(t, err)
	return out
}

func TestRenderParagraphsAndHeadings(t *testing.T) {
	out := render(t,
		Block{Type: "heading2", Text: "Título"},
		Block{Type: TypeParagraph, Text: "linha um\nlinha dois"},
		Block{Type: TypePreformatted, Text: "x := 1"},
	)
	assert.Equal(t, "<h2>Título</h2><p>linha um<br/>linha dois</p><pre>x := 1</pre>", out)
}

func TestRenderGroupsListItems(t *testing.T) {
	out := render(t,
		Block{Type: TypeListItem, Text: "a"},
		Block{Type: TypeListItem, Text: "b"},
		Block{Type: TypeOListItem, Text: "one"},
		Block{Type: TypeParagraph, Text: "end"},
	)
	assert.Equal(t, "<ul><li>a</li><li>b</li></ul><ol><li>one</li></ol><p>end</p>", out)
}

func TestRenderSpans(t *testing.T) {
	out := render(t, Block{
		Type: TypeParagraph,
		Text: "negrito e itálico",
		Spans: []Span{
			{Start: 0, End: 7, Type: SpanStrong},
			{Start: 10, End: 17, Type: SpanEm},
		},
	})
	assert.Equal(t, "<p><strong>negrito</strong> e <em>itálico</em></p>", out)
}

func TestRenderOverlappingSpansStayNested(t *testing.T) {
	out := render(t, Block{
		Type: TypeParagraph,
		Text: "abcdef",
		Spans: []Span{
			{Start: 0, End: 4, Type: SpanStrong},
			{Start: 2, End: 6, Type: SpanEm},
		},
	})
	assert.Equal(t, "<p><strong>ab<em>cd</em></strong><em>ef</em></p>", out)
}

func TestRenderSpanOffsetsCountRunes(t *testing.T) {
	out := render(t, Block{
		Type:  TypeParagraph,
		Text:  "ação rápida",
		Spans: []Span{{Start: 5, End: 11, Type: SpanStrong}},
	})
	assert.Equal(t, "<p>ação <strong>rápida</strong></p>", out)
}

func TestRenderClampsAndSkipsBadSpans(t *testing.T) {
	out := render(t, Block{
		Type: TypeParagraph,
		Text: "abc",
		Spans: []Span{
			{Start: 2, End: 99, Type: SpanStrong},
			{Start: 2, End: 1, Type: SpanEm},
		},
	})
	assert.Equal(t, "<p>ab<strong>c</strong></p>", out)
}

func TestRenderLinks(t *testing.T) {
	out := render(t, Block{
		Type: TypeParagraph,
		Text: "veja isto e aquilo",
		Spans: []Span{
			{Start: 5, End: 9, Type: SpanHyperlink, Data: &SpanData{LinkType: "Document", UID: "outro-post"}},
			{Start: 12, End: 18, Type: SpanHyperlink, Data: &SpanData{LinkType: "Web", URL: "https://example.com/a"}},
		},
	})
	assert.Contains(t, out, `href="/post/outro-post/"`)
	assert.Contains(t, out, `href="https://example.com/a"`)
	assert.Contains(t, out, ">isto</a>")
}

func TestRenderCustomResolver(t *testing.T) {
	r := NewRenderer(func(d SpanData) string { return "/docs/" + d.UID })
	out, err := r.Render(Blocks{{
		Type:  TypeParagraph,
		Text:  "doc",
		Spans: []Span{{Start: 0, End: 3, Type: SpanHyperlink, Data: &SpanData{LinkType: "Document", UID: "x"}}},
	}})
	require.NoError(t, err)
	assert.Contains(t, out, `href="/docs/x"`)
}

func TestRenderSanitizes(t *testing.T) {
	out := render(t,
		Block{Type: TypeParagraph, Text: "<script>alert(1)</script>"},
		Block{
			Type:  TypeParagraph,
			Text:  "click",
			Spans: []Span{{Start: 0, End: 5, Type: SpanHyperlink, Data: &SpanData{URL: "javascript:alert(1)"}}},
		},
		Block{Type: TypeEmbed, Oembed: &Oembed{EmbedURL: "https://youtube.com/watch?v=1", HTML: "<iframe src=x></iframe>"}},
	)
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "javascript:")
	assert.NotContains(t, out, "<iframe")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, `https://youtube.com/watch?v=1`)
}

func TestRenderImages(t *testing.T) {
	out := render(t,
		Block{Type: TypeImage, URL: "https://images.example.com/a.png", Alt: "foguete", Dimensions: &Dimension{Width: 800, Height: 600}},
		Block{Type: TypeImage},
	)
	assert.Contains(t, out, `src="https://images.example.com/a.png"`)
	assert.Contains(t, out, `alt="foguete"`)
	assert.Contains(t, out, `width="800"`)
	assert.Equal(t, 1, strings.Count(out, "<img"))
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	err := NewRenderer(nil).Component(Blocks{{Type: TypeParagraph, Text: "oi"}}).Render(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, "<p>oi</p>", buf.String())
}

func TestAsText(t *testing.T) {
	assert.Equal(t, "a\nb", AsText(Blocks{{Text: "a"}, {Type: TypeImage}, {Text: "b"}}))
	assert.Empty(t, AsText(nil))
}
