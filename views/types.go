package views

import "html/template"

// Site holds site-wide settings every page template reads.
type Site struct {
	Name        string
	URL         string
	Description string
	Author      string
	Lang        string // html lang attribute, e.g. "pt-BR"
	HTMXSrc     string // script URL for htmx
	Labels      Labels
}

// Labels are the localized UI strings.
type Labels struct {
	LoadMore         string
	Loading          string
	ReadingUnit      string
	Previous         string
	Next             string
	ExitPreview      string
	PreviewBadge     string
	NotFoundTitle    string
	NotFoundBody     string
	ServerErrorTitle string
	ServerErrorBody  string
	BackHome         string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
}

// PostCard is a display-ready listing entry.
type PostCard struct {
	UID      string
	Link     string
	Title    string
	Subtitle string
	Author   string
	Date     string
	DateISO  string
}

// Section is a post heading with its sanitized HTML body.
type Section struct {
	Heading string
	HTML    template.HTML
}

// PostView is a display-ready post.
type PostView struct {
	PostCard
	BannerURL   string
	BannerAlt   string
	Edited      string // empty when the post was never edited
	ReadingTime int    // minutes
	Sections    []Section
}

// NavLink points at a neighbouring post.
type NavLink struct {
	Title string
	Link  string
}

// Nav is the previous/next pair of a post page.
type Nav struct {
	Previous *NavLink
	Next     *NavLink
}

// HomeData is the listing page state handed to templates. MoreURL is empty
// once there are no further pages.
type HomeData struct {
	Posts   []PostCard
	MoreURL string
}

// PostData is a resolved post page.
type PostData struct {
	Post      PostView
	Nav       Nav
	Preview   bool
	CSRFToken string
}

// LoadingData is the placeholder shown while a post path is generated.
type LoadingData struct {
	UID        string
	PartialURL string
}
