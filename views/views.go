// Package views holds the default page components. Components are templ
// components backed by embedded html/template files, so the html/template
// escaper handles every interpolated value.
package views

import (
	"embed"
	"html/template"

	"github.com/a-h/templ"
)

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.New("views").ParseFS(templateFS, "templates/*.html"))

// page is the value every template executes against.
type page struct {
	Site   Site
	Meta   PageMeta
	JSONLD template.JS
	Data   any
}

func component(name string, p page) templ.Component {
	return templ.FromGoHTML(tmpl.Lookup(name), p)
}

// Home renders the listing page.
func Home(site Site, data HomeData) templ.Component {
	return component("home", page{
		Site: site,
		Meta: PageMeta{
			Title:       site.Name,
			Description: site.Description,
			URL:         buildURL(site.URL),
			OGType:      "website",
		},
		JSONLD: template.JS(WebsiteJsonLD(site)),
		Data:   data,
	})
}

// PostList renders the listing cards followed by the load-more control.
// It is the fragment swapped in place of the load-more control.
func PostList(site Site, data HomeData) templ.Component {
	return component("postlist", page{Site: site, Data: data})
}

// Post renders a full post page.
func Post(site Site, data PostData) templ.Component {
	return component("post", postPage(site, data))
}

// PostPartial renders only the article, for HTMX swaps.
func PostPartial(site Site, data PostData) templ.Component {
	return component("article", postPage(site, data))
}

func postPage(site Site, data PostData) page {
	return page{
		Site: site,
		Meta: PageMeta{
			Title:       data.Post.Title + " | " + site.Name,
			Description: data.Post.Subtitle,
			URL:         buildURL(site.URL, "post", data.Post.UID),
			OGType:      "article",
			Image:       data.Post.BannerURL,
		},
		JSONLD: template.JS(BlogPostingJsonLD(site, data.Post)),
		Data:   data,
	}
}

// PostLoading renders the placeholder shown while a post is resolved.
func PostLoading(site Site, data LoadingData) templ.Component {
	return component("loading", page{
		Site: site,
		Meta: PageMeta{Title: site.Labels.Loading + " | " + site.Name, OGType: "article"},
		Data: data,
	})
}

// NotFound renders the 404 page.
func NotFound(site Site) templ.Component {
	return component("notfound", page{
		Site: site,
		Meta: PageMeta{Title: site.Labels.NotFoundTitle + " | " + site.Name, OGType: "website"},
	})
}

// ServerError renders the 500 page.
func ServerError(site Site) templ.Component {
	return component("servererror", page{
		Site: site,
		Meta: PageMeta{Title: site.Labels.ServerErrorTitle + " | " + site.Name, OGType: "website"},
	})
}
