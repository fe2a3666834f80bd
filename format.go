package pubfront

import (
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/richtext"
	"github.com/eringen/pubfront/views"
)

// WordsPerMinute is the reading speed used for reading-time estimates.
const WordsPerMinute = 200

// Locale holds the month abbreviations and UI strings of a display language.
type Locale struct {
	Tag    language.Tag
	Months [12]string
	// EditedFormat receives the formatted date and the HH:MM time.
	EditedFormat string
	Labels       views.Labels
}

var localePtBR = Locale{
	Tag:          language.BrazilianPortuguese,
	Months:       [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
	EditedFormat: "* editado em %s, às %s",
	Labels: views.Labels{
		LoadMore:         "Carregar mais posts",
		Loading:          "Carregando...",
		ReadingUnit:      "min",
		Previous:         "Post anterior",
		Next:             "Próximo post",
		ExitPreview:      "Sair do modo Preview",
		PreviewBadge:     "Modo Preview",
		NotFoundTitle:    "Página não encontrada",
		NotFoundBody:     "O post que você procura não existe ou foi removido.",
		ServerErrorTitle: "Algo deu errado",
		ServerErrorBody:  "Tente novamente em alguns instantes.",
		BackHome:         "Voltar para o início",
	},
}

var localeEnUS = Locale{
	Tag:          language.AmericanEnglish,
	Months:       [12]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"},
	EditedFormat: "* edited on %s, at %s",
	Labels: views.Labels{
		LoadMore:         "Load more posts",
		Loading:          "Loading...",
		ReadingUnit:      "min",
		Previous:         "Previous post",
		Next:             "Next post",
		ExitPreview:      "Exit preview mode",
		PreviewBadge:     "Preview mode",
		NotFoundTitle:    "Page not found",
		NotFoundBody:     "The post you are looking for does not exist or was removed.",
		ServerErrorTitle: "Something went wrong",
		ServerErrorBody:  "Please try again in a moment.",
		BackHome:         "Back to the home page",
	},
}

var (
	locales       = []Locale{localePtBR, localeEnUS}
	localeMatcher = language.NewMatcher([]language.Tag{localePtBR.Tag, localeEnUS.Tag})
)

// LookupLocale returns the supported locale closest to tag. Unparseable
// tags fall back to pt-BR.
func LookupLocale(tag string) Locale {
	t, err := language.Parse(tag)
	if err != nil {
		return localePtBR
	}
	_, idx, conf := localeMatcher.Match(t)
	if conf == language.No {
		return localePtBR
	}
	return locales[idx]
}

// RichTextRenderer renders structured text to sanitized HTML.
type RichTextRenderer interface {
	Render(blocks richtext.Blocks) (string, error)
}

// Formatter turns content records into display records.
type Formatter struct {
	Locale   Locale
	Location *time.Location
	Renderer RichTextRenderer
}

// NewFormatter returns a Formatter for the locale tag. A nil location means UTC.
func NewFormatter(tag string, loc *time.Location, r RichTextRenderer) Formatter {
	if loc == nil {
		loc = time.UTC
	}
	if r == nil {
		r = richtext.NewRenderer(nil)
	}
	return Formatter{Locale: LookupLocale(tag), Location: loc, Renderer: r}
}

// Date formats t as "dd MMM yyyy" with localized month names.
// A nil time formats as "".
func (f Formatter) Date(t *time.Time) string {
	if t == nil {
		return ""
	}
	lt := t.In(f.location())
	return fmt.Sprintf("%02d %s %d", lt.Day(), f.Locale.Months[lt.Month()-1], lt.Year())
}

func (f Formatter) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// Edited returns the "edited on" annotation, or "" when the post was not
// modified after its first publication.
func (f Formatter) Edited(first, last *time.Time) string {
	if !WasEdited(first, last) {
		return ""
	}
	lt := last.In(f.location())
	return fmt.Sprintf(f.Locale.EditedFormat, f.Date(last), lt.Format("15:04"))
}

// WasEdited reports whether last is present and differs from first.
func WasEdited(first, last *time.Time) bool {
	if last == nil {
		return false
	}
	return first == nil || !first.Equal(*last)
}

// WordCount counts whitespace-delimited words across every heading and
// every body block.
func WordCount(sections []content.Section) int {
	total := 0
	for _, s := range sections {
		total += len(strings.Fields(s.Heading))
		for _, b := range s.Body {
			total += len(strings.Fields(b.Text))
		}
	}
	return total
}

// ReadingTime estimates minutes to read sections, rounded up.
func ReadingTime(sections []content.Section) int {
	return int(math.Ceil(float64(WordCount(sections)) / WordsPerMinute))
}

// PostLink is the site path of a post.
func PostLink(uid string) string {
	return "/post/" + uid + "/"
}

// Card formats a listing entry.
func (f Formatter) Card(p content.PostSummary) views.PostCard {
	card := views.PostCard{
		UID:      p.UID,
		Link:     PostLink(p.UID),
		Title:    p.Title,
		Subtitle: p.Subtitle,
		Author:   p.Author,
		Date:     f.Date(p.FirstPublicationDate),
	}
	if p.FirstPublicationDate != nil {
		card.DateISO = p.FirstPublicationDate.UTC().Format(time.RFC3339)
	}
	return card
}

// Cards formats a page of listing entries, keeping their order.
func (f Formatter) Cards(posts []content.PostSummary) []views.PostCard {
	cards := make([]views.PostCard, 0, len(posts))
	for _, p := range posts {
		cards = append(cards, f.Card(p))
	}
	return cards
}

// Post formats a full post, rendering every section body to HTML.
func (f Formatter) Post(p content.PostDetail) (views.PostView, error) {
	v := views.PostView{
		PostCard:    f.Card(p.PostSummary),
		BannerURL:   p.Banner.URL,
		BannerAlt:   p.Banner.Alt,
		Edited:      f.Edited(p.FirstPublicationDate, p.LastPublicationDate),
		ReadingTime: ReadingTime(p.Content),
		Sections:    make([]views.Section, 0, len(p.Content)),
	}
	if v.BannerAlt == "" {
		v.BannerAlt = p.Title
	}
	for _, s := range p.Content {
		body, err := f.Renderer.Render(s.Body)
		if err != nil {
			return views.PostView{}, fmt.Errorf("render section %q: %w", s.Heading, err)
		}
		v.Sections = append(v.Sections, views.Section{
			Heading: s.Heading,
			HTML:    template.HTML(body),
		})
	}
	return v, nil
}

// Nav formats a navigation pair. Missing neighbours stay nil.
func (f Formatter) Nav(n content.Navigation) views.Nav {
	var nav views.Nav
	if n.Previous != nil {
		nav.Previous = &views.NavLink{Title: n.Previous.Title, Link: PostLink(n.Previous.UID)}
	}
	if n.Next != nil {
		nav.Next = &views.NavLink{Title: n.Next.Title, Link: PostLink(n.Next.UID)}
	}
	return nav
}
