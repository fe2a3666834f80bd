package pubfront

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubfront/content"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Author      string `xml:"author,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid"`
}

// allPosts walks the listing from the first page until the cursor runs out
// or MaxPages pages were read.
func (a *App) allPosts(ctx context.Context) ([]content.PostSummary, error) {
	page, err := a.Source.List(ctx, content.ListQuery{PageSize: a.Config.PageSize})
	if err != nil {
		return nil, err
	}
	posts := append([]content.PostSummary(nil), page.Results...)
	for n := 1; page.HasNext() && n < a.Config.MaxPages; n++ {
		if page, err = a.Source.List(ctx, content.ListQuery{Cursor: page.NextPage}); err != nil {
			return nil, err
		}
		posts = append(posts, page.Results...)
	}
	return posts, nil
}

func (a *App) renderRSS(c echo.Context, posts []content.PostSummary) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return a.writeRSS(c.Response(), posts)
}

func (a *App) writeRSS(w io.Writer, posts []content.PostSummary) error {
	base := a.Config.URL
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		pubDate := ""
		if p.FirstPublicationDate != nil {
			pubDate = p.FirstPublicationDate.UTC().Format(time.RFC1123Z)
		}
		postURL := BuildURL(base, "post", p.UID)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        postURL,
			Description: p.Subtitle,
			Author:      p.Author,
			PubDate:     pubDate,
			GUID:        postURL,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        base,
			Description: a.Config.Description,
			Language:    a.Site.Lang,
			Items:       items,
		},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(feed)
}
