package pubfront

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/prismic"
	"github.com/eringen/pubfront/views"
)

// MoreURL is the dynamic load-more route for a cursor.
func MoreURL(cursor string) string {
	if cursor == "" {
		return ""
	}
	return "/posts/more/?cursor=" + url.QueryEscape(cursor)
}

func isForeignURL(err error) bool {
	return errors.Is(err, prismic.ErrForeignURL)
}

func (a *App) firstPage(c echo.Context) (content.PostPage, error) {
	return a.Source.List(c.Request().Context(), content.ListQuery{PageSize: a.Config.PageSize})
}

// handleHome serves the first listing page.
func (a *App) handleHome(c echo.Context) error {
	first, err := a.firstPage(c)
	if err != nil {
		return err
	}
	listing := NewListing(first, a.Source, a.Format)
	return Render(c, a.Views.Home(a.Site, views.HomeData{
		Posts:   listing.Posts(),
		MoreURL: MoreURL(listing.Cursor()),
	}))
}

// handleMore runs one load-more step from the cursor in the query string.
// HTMX requests get the fragment that replaces the load-more control;
// plain requests get a full page with just the fetched posts.
func (a *App) handleMore(c echo.Context) error {
	cursor := c.QueryParam("cursor")
	if cursor == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing cursor")
	}
	listing := NewListing(content.PostPage{NextPage: cursor}, a.Source, a.Format)
	added, err := listing.LoadMore(c.Request().Context())
	if err != nil {
		if errors.Is(err, ErrMalformedPage) || errors.Is(err, ErrInvalidCursor) || isForeignURL(err) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cursor").SetInternal(err)
		}
		return err
	}
	data := views.HomeData{Posts: added, MoreURL: MoreURL(listing.Cursor())}
	if isHTMX(c) {
		return Render(c, a.Views.PostList(a.Site, data))
	}
	return Render(c, a.Views.Home(a.Site, data))
}

// handlePost serves a post page. An uncached post path is answered with the
// loading placeholder, which fetches the article as an HTMX partial.
func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	uid := c.Param("uid")
	ref := PreviewRef(c)
	partial := isHTMX(c) && c.QueryParam("partial") == "post"

	if ref == "" && !partial && a.fallbackEnabled(c) && !a.Source.Cached(ctx, uid) {
		return Render(c, a.Views.PostLoading(a.Site, views.LoadingData{
			UID:        uid,
			PartialURL: PostLink(uid) + "?partial=post",
		}))
	}

	page := NewDetailPage(uid, ref)
	if err := page.Resolve(ctx, a.Source, a.Format); err != nil {
		if page.Phase == DetailNotFound {
			if partial {
				// htmx does not swap error responses; send the browser to the
				// synchronous 404 page instead.
				c.Response().Header().Set("HX-Redirect", PostLink(uid)+"?fallback=off")
			}
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Site))
		}
		return err
	}
	page.Data.CSRFToken = CsrfToken(c)
	if partial {
		return Render(c, a.Views.PostPartial(a.Site, page.Data))
	}
	return Render(c, a.Views.Post(a.Site, page.Data))
}

func (a *App) fallbackEnabled(c echo.Context) bool {
	return !a.Config.DisableFallback && c.QueryParam("fallback") != "off"
}

func handlePostRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

// handlePreview enters preview mode: it validates the preview token with the
// content source, stores it as the session's draft ref, and redirects to the
// previewed post.
func (a *App) handlePreview(c echo.Context) error {
	token := c.QueryParam("token")
	documentID := c.QueryParam("documentId")
	if token == "" || documentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token and documentId are required")
	}
	uid, err := a.Source.ResolvePreview(c.Request().Context(), token, documentID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) || errors.Is(err, ErrPreviewDenied) || isForeignURL(err) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid preview token").SetInternal(err)
		}
		return err
	}
	if err := setPreviewSession(c, token); err != nil {
		return err
	}
	return c.Redirect(http.StatusTemporaryRedirect, PostLink(uid))
}

// handleExitPreview clears the preview session and returns to the listing.
func handleExitPreview(c echo.Context) error {
	if err := clearPreviewSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// handleRevalidate purges every snapshot. It is meant for the content
// backend's publish webhook and authenticates with a shared secret.
func (a *App) handleRevalidate(c echo.Context) error {
	secret := c.Request().Header.Get("X-Revalidate-Secret")
	if a.Config.RevalidateSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(a.Config.RevalidateSecret)) != 1 {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	if err := a.Source.Purge(c.Request().Context()); err != nil {
		return fmt.Errorf("purge snapshots: %w", err)
	}
	a.Log.Info().Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).Msg("snapshots purged")
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.allPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.allPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

// handleRobots generates robots.txt pointing at the sitemap.
func (a *App) handleRobots(c echo.Context) error {
	body := fmt.Sprintf("User-agent: *\nAllow: /\nDisallow: /api/\n\nSitemap: %s/sitemap.xml\n", a.Config.URL)
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	// An HTTPError carries its own status even when it wraps ErrNotFound.
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if (ok && he.Code == http.StatusNotFound) || (!ok && errors.Is(err, content.ErrNotFound)) {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Site))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("server error")
		_ = RenderStatus(c, code, a.Views.ServerError(a.Site))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
