package pubfront

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/eringen/pubfront/content"
)

// Content backends.
const (
	BackendPrismic = "prismic"
	BackendSQLite  = "sqlite"
)

// DefaultRevalidate is how long generated pages stay fresh.
const DefaultRevalidate = 24 * time.Hour

// SiteConfig holds all configuration for a pubfront site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "spacetraveling")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Author name for JSON-LD
	Locale      string `yaml:"locale"`      // Display language (default "pt-BR")
	TimeZone    string `yaml:"timezone"`    // IANA zone for displayed dates (default UTC)
	HTMXSrc     string `yaml:"htmx_src"`    // htmx script URL

	Addr     string `yaml:"addr"`      // Listen address (default ":3000")
	PageSize int    `yaml:"page_size"` // Posts per listing page (default 1)
	MaxPages int    `yaml:"max_pages"` // Upper bound on pages walked for builds and feeds (default 100)

	Backend             string `yaml:"backend"`               // "prismic" (default) or "sqlite"
	PrismicEndpoint     string `yaml:"prismic_endpoint"`      // e.g. https://repo.cdn.prismic.io/api/v2
	PrismicAccessToken  string `yaml:"prismic_access_token"`  // Token for private repositories
	PrismicDocumentType string `yaml:"prismic_document_type"` // Custom type of posts (default "posts")
	DatabasePath        string `yaml:"database_path"`         // SQLite path (default "data/content.db")

	RedisURL   string        `yaml:"redis_url"`  // Shared snapshot cache; in-memory when empty
	Revalidate time.Duration `yaml:"revalidate"` // Revalidation window (default 24h)
	// DisableFallback renders uncached posts synchronously instead of
	// answering with the loading placeholder.
	DisableFallback bool `yaml:"disable_fallback"`

	SessionSecret    string `yaml:"session_secret"`    // Required: preview session encryption secret
	CookieSecure     bool   `yaml:"cookie_secure"`     // Set true for HTTPS
	RevalidateSecret string `yaml:"revalidate_secret"` // Shared secret of the revalidation webhook
	PreviewSecret    string `yaml:"preview_secret"`    // Preview token of the sqlite backend; previews are off when empty
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "spacetraveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.Locale == "" {
		c.Locale = "pt-BR"
	}
	if c.HTMXSrc == "" {
		c.HTMXSrc = "https://unpkg.com/htmx.org@2.0.4"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.PageSize <= 0 {
		c.PageSize = 1
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 100
	}
	if c.Backend == "" {
		c.Backend = BackendPrismic
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/content.db"
	}
	if c.Revalidate == 0 {
		c.Revalidate = DefaultRevalidate
	}
}

func (c SiteConfig) location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("pubfront: timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// LoadConfig reads an optional YAML file and then applies environment
// variable overrides. An empty path, or a path that does not exist, reads
// only the environment.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("pubfront: read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("pubfront: parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *SiteConfig) applyEnv() error {
	c.Name = EnvOr("SITE_NAME", c.Name)
	c.URL = EnvOr("SITE_URL", c.URL)
	c.Description = EnvOr("SITE_DESCRIPTION", c.Description)
	c.Author = EnvOr("SITE_AUTHOR", c.Author)
	c.Locale = EnvOr("SITE_LOCALE", c.Locale)
	c.TimeZone = EnvOr("SITE_TIMEZONE", c.TimeZone)
	c.HTMXSrc = EnvOr("HTMX_SRC", c.HTMXSrc)
	c.Addr = EnvOr("ADDR", c.Addr)
	c.Backend = EnvOr("CONTENT_BACKEND", c.Backend)
	c.PrismicEndpoint = EnvOr("PRISMIC_ENDPOINT", c.PrismicEndpoint)
	c.PrismicAccessToken = EnvOr("PRISMIC_ACCESS_TOKEN", c.PrismicAccessToken)
	c.PrismicDocumentType = EnvOr("PRISMIC_DOCUMENT_TYPE", c.PrismicDocumentType)
	c.DatabasePath = EnvOr("DATABASE_PATH", c.DatabasePath)
	c.RedisURL = EnvOr("REDIS_URL", c.RedisURL)
	c.SessionSecret = EnvOr("SESSION_SECRET", c.SessionSecret)
	c.RevalidateSecret = EnvOr("REVALIDATE_SECRET", c.RevalidateSecret)
	c.PreviewSecret = EnvOr("PREVIEW_SECRET", c.PreviewSecret)
	if v := os.Getenv("PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("pubfront: PAGE_SIZE: %w", err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("REVALIDATE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("pubfront: REVALIDATE: %w", err)
		}
		c.Revalidate = d
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		c.CookieSecure = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("DISABLE_FALLBACK"); v != "" {
		c.DisableFallback = strings.EqualFold(v, "true")
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithSource uses src instead of the backend named in the config.
func WithSource(src content.Source) Option {
	return func(a *App) {
		a.backend = src
	}
}

// WithCache uses cache for snapshots instead of the configured one.
func WithCache(cache SnapshotCache) Option {
	return func(a *App) {
		a.snapshots = cache
	}
}

// WithRenderer replaces the rich-text renderer.
func WithRenderer(r RichTextRenderer) Option {
	return func(a *App) {
		a.renderer = r
	}
}

// WithHTTPClient sets the HTTP client used to reach the content backend.
func WithHTTPClient(h *http.Client) Option {
	return func(a *App) {
		a.httpClient = h
	}
}

// WithLogger replaces the default logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithViews overrides the default page components.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}
