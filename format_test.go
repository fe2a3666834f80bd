package pubfront

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/richtext"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("palavra ", n))
}

func TestReadingTime(t *testing.T) {
	tests := []struct {
		name     string
		sections []content.Section
		want     int
	}{
		{
			name: "heading and body words count",
			sections: []content.Section{
				{Heading: "Olá mundo", Body: richtext.Blocks{paragraph("um dois três")}},
			},
			want: 1,
		},
		{name: "no sections", sections: nil, want: 0},
		{
			name: "empty text",
			sections: []content.Section{
				{Heading: "  ", Body: richtext.Blocks{paragraph("")}},
			},
			want: 0,
		},
		{
			name:     "exactly one minute",
			sections: []content.Section{{Body: richtext.Blocks{paragraph(words(200))}}},
			want:     1,
		},
		{
			name:     "rounds up",
			sections: []content.Section{{Body: richtext.Blocks{paragraph(words(201))}}},
			want:     2,
		},
		{
			name: "sums across sections",
			sections: []content.Section{
				{Heading: words(100), Body: richtext.Blocks{paragraph(words(150))}},
				{Heading: words(50), Body: richtext.Blocks{paragraph(words(100)), paragraph(words(1))}},
			},
			want: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadingTime(tt.sections))
		})
	}
}

func TestWordCountSplitsOnAnyWhitespace(t *testing.T) {
	sections := []content.Section{
		{Heading: "a\tb", Body: richtext.Blocks{paragraph("c\nd  e")}},
	}
	assert.Equal(t, 5, WordCount(sections))
}

func TestFormatterDate(t *testing.T) {
	f := testFormatter()
	assert.Equal(t, "15 mar 2021", f.Date(date("2021-03-15T19:25:28Z")))
	assert.Equal(t, "01 jan 2021", f.Date(date("2021-01-01T00:00:00Z")))
	assert.Equal(t, "", f.Date(nil))
}

func TestFormatterDateUsesLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	f := NewFormatter("pt-BR", loc, nil)
	assert.Equal(t, "31 dez 2020", f.Date(date("2021-01-01T01:00:00Z")))
}

func TestFormatterEdited(t *testing.T) {
	f := testFormatter()

	assert.Equal(t, "* editado em 02 jan 2021, às 13:05",
		f.Edited(date("2021-01-01T10:00:00Z"), date("2021-01-02T13:05:00Z")))
	assert.Empty(t, f.Edited(date("2021-01-01T10:00:00Z"), date("2021-01-01T10:00:00Z")))
	assert.Empty(t, f.Edited(date("2021-01-01T10:00:00Z"), nil))
}

func TestWasEdited(t *testing.T) {
	first := date("2021-01-01T10:00:00Z")
	sameInstant := first.In(time.FixedZone("X", 3600))

	assert.False(t, WasEdited(first, nil))
	assert.False(t, WasEdited(first, &sameInstant))
	assert.True(t, WasEdited(nil, first))
	assert.True(t, WasEdited(first, date("2021-01-01T10:00:01Z")))
}

func TestLookupLocale(t *testing.T) {
	assert.Equal(t, localePtBR.Tag, LookupLocale("pt-BR").Tag)
	assert.Equal(t, localeEnUS.Tag, LookupLocale("en-US").Tag)
	assert.Equal(t, localeEnUS.Tag, LookupLocale("en").Tag)
	assert.Equal(t, localePtBR.Tag, LookupLocale("not a tag!").Tag)
}

func TestFormatterEnglish(t *testing.T) {
	f := NewFormatter("en-US", nil, nil)
	assert.Equal(t, "02 jan 2021", f.Date(date("2021-01-02T10:00:00Z")))
	assert.Equal(t, "* edited on 02 jan 2021, at 13:05",
		f.Edited(date("2021-01-01T10:00:00Z"), date("2021-01-02T13:05:00Z")))
	assert.Equal(t, "Load more posts", f.Locale.Labels.LoadMore)
}

func TestFormatterCard(t *testing.T) {
	f := testFormatter()
	card := f.Card(samplePosts()[0].PostSummary)

	assert.Equal(t, "first", card.UID)
	assert.Equal(t, "/post/first/", card.Link)
	assert.Equal(t, "Como utilizar Hooks", card.Title)
	assert.Equal(t, "01 jan 2021", card.Date)
	assert.Equal(t, "2021-01-01T10:00:00Z", card.DateISO)

	undated := f.Card(content.PostSummary{UID: "x"})
	assert.Empty(t, undated.Date)
	assert.Empty(t, undated.DateISO)
}

func TestFormatterPost(t *testing.T) {
	f := testFormatter()
	post := samplePosts()[1]
	post.Content[0].Body = append(post.Content[0].Body, richtext.Block{
		Type:  richtext.TypeParagraph,
		Text:  "negrito aqui",
		Spans: []richtext.Span{{Start: 0, End: 7, Type: richtext.SpanStrong}},
	})

	v, err := f.Post(post)
	require.NoError(t, err)

	assert.Equal(t, "Criando um app CRA do zero", v.BannerAlt, "banner alt falls back to the title")
	assert.Equal(t, "* editado em 03 fev 2021, às 13:05", v.Edited)
	assert.Equal(t, 1, v.ReadingTime)
	require.Len(t, v.Sections, 1)
	assert.Equal(t, "Cras laoreet", v.Sections[0].Heading)
	assert.Contains(t, string(v.Sections[0].HTML), "<p>Nullam dolor sapien</p>")
	assert.Contains(t, string(v.Sections[0].HTML), "<strong>negrito</strong> aqui")
}

func TestFormatterNav(t *testing.T) {
	f := testFormatter()
	posts := samplePosts()

	nav := f.Nav(content.Navigation{Previous: &posts[0].PostSummary})
	require.NotNil(t, nav.Previous)
	assert.Equal(t, "/post/first/", nav.Previous.Link)
	assert.Equal(t, "Como utilizar Hooks", nav.Previous.Title)
	assert.Nil(t, nav.Next)
}
