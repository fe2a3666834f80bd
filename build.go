package pubfront

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/views"
)

// BuildReport summarizes a static build.
type BuildReport struct {
	Pages int // listing pages written, the index included
	Posts int
}

// Build pre-renders the site into dir: the index, one load-more fragment per
// further listing page, every post page, the 404 page, sitemap and feed.
// Fragments live at posts/page/N.html so a static host serves load-more
// without the server.
func (a *App) Build(ctx context.Context, dir string) (BuildReport, error) {
	var report BuildReport
	if err := a.prepare(ctx); err != nil {
		return report, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report, fmt.Errorf("pubfront: build dir: %w", err)
	}

	first, err := a.Source.List(ctx, content.ListQuery{PageSize: a.Config.PageSize})
	if err != nil {
		return report, fmt.Errorf("pubfront: first page: %w", err)
	}
	listing := NewListing(first, a.Source, a.Format)
	home := views.HomeData{Posts: listing.Posts()}
	if listing.HasMore() && a.Config.MaxPages > 1 {
		home.MoreURL = staticMoreURL(2)
	}
	if err := renderFile(ctx, dir, "index.html", a.Views.Home(a.Site, home)); err != nil {
		return report, err
	}
	report.Pages++

	for n := 2; listing.HasMore() && n <= a.Config.MaxPages; n++ {
		added, err := listing.LoadMore(ctx)
		if err != nil {
			return report, fmt.Errorf("pubfront: listing: %w", err)
		}
		data := views.HomeData{Posts: added}
		if listing.HasMore() && n < a.Config.MaxPages {
			data.MoreURL = staticMoreURL(n + 1)
		}
		name := fmt.Sprintf("posts/page/%d.html", n)
		if err := renderFile(ctx, dir, name, a.Views.PostList(a.Site, data)); err != nil {
			return report, err
		}
		report.Pages++
	}

	for _, card := range listing.Posts() {
		page := NewDetailPage(card.UID, "")
		if err := page.Resolve(ctx, a.Source, a.Format); err != nil {
			return report, fmt.Errorf("pubfront: build post: %w", err)
		}
		name := "post/" + card.UID + "/index.html"
		if err := renderFile(ctx, dir, name, a.Views.Post(a.Site, page.Data)); err != nil {
			return report, err
		}
		report.Posts++
	}

	if err := renderFile(ctx, dir, "404.html", a.Views.NotFound(a.Site)); err != nil {
		return report, err
	}

	posts, err := a.allPosts(ctx)
	if err != nil {
		return report, err
	}
	if err := writeFile(dir, "sitemap.xml", func(w io.Writer) error {
		return a.writeSitemap(w, posts)
	}); err != nil {
		return report, err
	}
	if err := writeFile(dir, "feed.xml", func(w io.Writer) error {
		return a.writeRSS(w, posts)
	}); err != nil {
		return report, err
	}

	a.Log.Info().Int("pages", report.Pages).Int("posts", report.Posts).Str("dir", dir).Msg("site built")
	return report, nil
}
