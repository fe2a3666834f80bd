// Package pubfront is a blog frontend for a headless content backend, built
// with Go, Echo, and templ. It renders a paginated listing with incremental
// "load more", post pages with previous/next navigation and reading time,
// draft previews, RSS and sitemap, and can pre-render the whole site to
// static files.
//
// Users may provide their own templ components via the ViewFuncs struct;
// pubfront handles the content fetching, pagination state, caching and
// middleware.
package pubfront

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/prismic"
	"github.com/eringen/pubfront/rediscache"
	"github.com/eringen/pubfront/richtext"
	"github.com/eringen/pubfront/views"
)

// ViewFuncs holds the templ components the framework calls when rendering
// pages. DefaultViews fills it with the components of the views package.
type ViewFuncs struct {
	Home        func(site views.Site, data views.HomeData) templ.Component
	PostList    func(site views.Site, data views.HomeData) templ.Component
	Post        func(site views.Site, data views.PostData) templ.Component
	PostPartial func(site views.Site, data views.PostData) templ.Component
	PostLoading func(site views.Site, data views.LoadingData) templ.Component
	NotFound    func(site views.Site) templ.Component
	ServerError func(site views.Site) templ.Component
}

// DefaultViews returns the built-in page components.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:        views.Home,
		PostList:    views.PostList,
		Post:        views.Post,
		PostPartial: views.PostPartial,
		PostLoading: views.PostLoading,
		NotFound:    views.NotFound,
		ServerError: views.ServerError,
	}
}

// App is the central pubfront application. It wires together the content
// source, snapshot cache, formatter, handlers, middleware, and templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Log    zerolog.Logger
	Source *CachedSource
	Format Formatter
	Site   views.Site
	Views  ViewFuncs

	backend      content.Source
	snapshots    SnapshotCache
	renderer     RichTextRenderer
	httpClient   *http.Client
	closers      []io.Closer
	customRoutes []func(*App)
	staticDir    string
	prepared     bool
}

// New creates a new pubfront App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Log:       zerolog.New(os.Stderr).With().Timestamp().Logger(),
		Views:     DefaultViews(),
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// prepare opens the content backend and the snapshot cache and builds the
// formatter. It is shared by the server and the static build.
func (a *App) prepare(ctx context.Context) error {
	if a.prepared {
		return nil
	}
	loc, err := a.Config.location()
	if err != nil {
		return err
	}

	if a.backend == nil {
		if err := a.openBackend(); err != nil {
			return err
		}
	}

	if a.snapshots == nil {
		if a.Config.RedisURL != "" {
			rc, err := rediscache.Open(ctx, a.Config.RedisURL)
			if err != nil {
				return fmt.Errorf("pubfront: init cache: %w", err)
			}
			a.closers = append(a.closers, rc)
			a.snapshots = rc
		} else {
			a.snapshots = NewMemoryCache()
		}
	}
	a.Source = NewCachedSource(a.backend, a.snapshots, a.Config.Revalidate)

	if a.renderer == nil {
		a.renderer = richtext.NewRenderer(richtext.DefaultLinkResolver)
	}
	a.Format = NewFormatter(a.Config.Locale, loc, a.renderer)
	a.Site = views.Site{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		Author:      a.Config.Author,
		Lang:        a.Format.Locale.Tag.String(),
		HTMXSrc:     a.Config.HTMXSrc,
		Labels:      a.Format.Locale.Labels,
	}
	a.prepared = true
	return nil
}

func (a *App) openBackend() error {
	switch a.Config.Backend {
	case BackendPrismic:
		if a.Config.PrismicEndpoint == "" {
			return fmt.Errorf("pubfront: PrismicEndpoint is required for the prismic backend")
		}
		c, err := prismic.New(a.Config.PrismicEndpoint,
			prismic.WithAccessToken(a.Config.PrismicAccessToken),
			prismic.WithDocumentType(a.Config.PrismicDocumentType),
			prismic.WithHTTPClient(a.httpClient),
		)
		if err != nil {
			return fmt.Errorf("pubfront: init prismic: %w", err)
		}
		a.backend = c
	case BackendSQLite:
		store, err := NewStore(a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("pubfront: init store: %w", err)
		}
		store.SetPreviewSecret(a.Config.PreviewSecret)
		a.closers = append(a.closers, store)
		a.backend = store
	default:
		return fmt.Errorf("pubfront: unknown content backend %q", a.Config.Backend)
	}
	return nil
}

// Init prepares the content source, middleware and routes without
// starting the listener.
func (a *App) Init(ctx context.Context) error {
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("pubfront: SessionSecret is required")
	}
	if err := a.prepare(ctx); err != nil {
		return err
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start initializes the app and starts the server.
func (a *App) Start() error {
	if err := a.Init(context.Background()); err != nil {
		return err
	}
	a.Log.Info().Str("addr", a.Config.Addr).Str("backend", a.Config.Backend).Msg("starting server")
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	// User's static assets
	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/posts/more/", a.handleMore)
	e.GET("/post", handlePostRedirect)
	e.GET("/post/:uid/", a.handlePost)

	// Preview and revalidation
	e.GET("/api/preview", a.handlePreview, previewRateLimit())
	e.POST("/api/exit-preview", handleExitPreview)
	e.POST("/api/revalidate", a.handleRevalidate)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("pubfront: required environment variable %s is not set", key)
	}
	return v
}
