// Package prismic is a content.Source backed by the Prismic REST API v2.
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/richtext"
)

// ErrForeignURL is returned for cursors or preview tokens that point
// outside the configured repository.
var ErrForeignURL = errors.New("prismic: url does not belong to the repository")

// APIError is a non-2xx response from the API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("prismic: status %d: %s", e.Status, e.Body)
}

const (
	defaultDocumentType = "posts"
	defaultRefTTL       = 30 * time.Second
	maxErrorBody        = 512
)

// timeLayout is the timestamp format the API uses.
const timeLayout = "2006-01-02T15:04:05-0700"

// Client queries a Prismic repository.
type Client struct {
	endpoint *url.URL
	token    string
	docType  string
	http     *http.Client
	refTTL   time.Duration
	now      func() time.Time

	mu        sync.Mutex
	masterRef string
	refAt     time.Time
}

var (
	_ content.Source           = (*Client)(nil)
	_ content.PreviewResolver  = (*Client)(nil)
	_ content.CursorNormalizer = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithAccessToken sets the token for private repositories.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithDocumentType sets the custom type of post documents (default "posts").
func WithDocumentType(t string) Option {
	return func(c *Client) {
		if t != "" {
			c.docType = t
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRefTTL sets how long the master ref is reused before the API root is
// fetched again.
func WithRefTTL(d time.Duration) Option {
	return func(c *Client) { c.refTTL = d }
}

// New creates a Client for an API endpoint such as
// https://my-repo.cdn.prismic.io/api/v2.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("prismic: parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("prismic: endpoint %q must be an absolute http(s) URL", endpoint)
	}
	c := &Client{
		endpoint: u,
		docType:  defaultDocumentType,
		http:     &http.Client{Timeout: 10 * time.Second},
		refTTL:   defaultRefTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type apiRoot struct {
	Refs []struct {
		ID          string `json:"id"`
		Ref         string `json:"ref"`
		Label       string `json:"label"`
		IsMasterRef bool   `json:"isMasterRef"`
	} `json:"refs"`
}

// MasterRef returns the ref of the published content, fetching the API root
// when the cached value is older than the ref TTL.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.masterRef != "" && c.now().Sub(c.refAt) < c.refTTL {
		return c.masterRef, nil
	}
	u := *c.endpoint
	c.addToken(&u)
	var root apiRoot
	if err := c.get(ctx, u.String(), &root); err != nil {
		return "", fmt.Errorf("prismic: api root: %w", err)
	}
	for _, r := range root.Refs {
		if r.IsMasterRef {
			c.masterRef = r.Ref
			c.refAt = c.now()
			return r.Ref, nil
		}
	}
	return "", errors.New("prismic: api root has no master ref")
}

// List runs a listing query, or follows q.Cursor when set.
func (c *Client) List(ctx context.Context, q content.ListQuery) (content.PostPage, error) {
	var target string
	if q.Cursor != "" {
		cursor, err := c.NormalizeCursor(q.Cursor)
		if err != nil {
			return content.PostPage{}, err
		}
		u, err := url.Parse(cursor)
		if err != nil {
			return content.PostPage{}, err
		}
		c.addToken(u)
		target = u.String()
	} else {
		ref, err := c.MasterRef(ctx)
		if err != nil {
			return content.PostPage{}, err
		}
		v := url.Values{}
		v.Set("ref", ref)
		v.Set("q", fmt.Sprintf(`[[at(document.type,"%s")]]`, c.docType))
		v.Set("orderings", ordering(q.Order))
		v.Set("fetch", c.fields("title", "subtitle", "author"))
		if q.PageSize > 0 {
			v.Set("pageSize", strconv.Itoa(min(q.PageSize, content.MaxPageSize)))
		}
		if q.After != "" {
			v.Set("after", q.After)
		}
		target = c.searchURL(v)
	}

	var res searchResponse
	if err := c.get(ctx, target, &res); err != nil {
		return content.PostPage{}, err
	}
	page := content.PostPage{Page: res.Page, Results: make([]content.PostSummary, 0, len(res.Results))}
	if res.NextPage != nil {
		page.NextPage = *res.NextPage
	}
	for _, d := range res.Results {
		s, err := d.summary()
		if err != nil {
			return content.PostPage{}, err
		}
		page.Results = append(page.Results, s)
	}
	return page, nil
}

// GetByUID fetches a post by UID. A non-empty ref reads a draft release.
func (c *Client) GetByUID(ctx context.Context, uid, ref string) (content.PostDetail, error) {
	if ref == "" {
		var err error
		if ref, err = c.MasterRef(ctx); err != nil {
			return content.PostDetail{}, err
		}
	}
	v := url.Values{}
	v.Set("ref", ref)
	v.Set("q", fmt.Sprintf(`[[at(my.%s.uid,"%s")]]`, c.docType, escapeQuery(uid)))
	v.Set("pageSize", "1")
	return c.getOne(ctx, v)
}

// ResolvePreview checks that token is a preview URL of this repository and
// returns the UID of the previewed document.
func (c *Client) ResolvePreview(ctx context.Context, token, documentID string) (string, error) {
	if _, err := c.ownURL(token); err != nil {
		return "", err
	}
	if documentID == "" {
		return "", fmt.Errorf("prismic: preview needs a document id")
	}
	v := url.Values{}
	v.Set("ref", token)
	v.Set("q", fmt.Sprintf(`[[at(document.id,"%s")]]`, escapeQuery(documentID)))
	v.Set("pageSize", "1")
	p, err := c.getOne(ctx, v)
	if err != nil {
		return "", err
	}
	return p.UID, nil
}

func (c *Client) getOne(ctx context.Context, v url.Values) (content.PostDetail, error) {
	var res searchResponse
	if err := c.get(ctx, c.searchURL(v), &res); err != nil {
		return content.PostDetail{}, err
	}
	if len(res.Results) == 0 {
		return content.PostDetail{}, content.ErrNotFound
	}
	return res.Results[0].detail()
}

func (c *Client) searchURL(v url.Values) string {
	u := *c.endpoint
	u.Path += "/documents/search"
	u.RawQuery = v.Encode()
	c.addToken(&u)
	return u.String()
}

// addToken sets the access token on URLs of the endpoint host. Aliases
// accepted by ownURL never receive it.
func (c *Client) addToken(u *url.URL) {
	if c.token == "" || !strings.EqualFold(u.Host, c.endpoint.Host) {
		return
	}
	q := u.Query()
	if q.Get("access_token") != "" {
		return
	}
	q.Set("access_token", c.token)
	u.RawQuery = q.Encode()
}

func (c *Client) fields(names ...string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = c.docType + "." + n
	}
	return strings.Join(out, ",")
}

// ownURL parses raw and checks it belongs to the configured repository:
// same scheme, port and host, where a Prismic repository's CDN and API hosts
// (my-repo.cdn.prismic.io, my-repo.prismic.io) count as the same host.
func (c *Client) ownURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForeignURL, err)
	}
	if u.Scheme != c.endpoint.Scheme || !sameRepository(u.Hostname(), c.endpoint.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrForeignURL, u.Host)
	}
	if u.Port() != c.endpoint.Port() || u.User != nil {
		return nil, fmt.Errorf("%w: %s", ErrForeignURL, u.Host)
	}
	return u, nil
}

// cursorParams are the query parameters of a search URL the API hands back
// as next_page.
var cursorParams = map[string]bool{
	"ref": true, "q": true, "orderings": true, "page": true, "pageSize": true,
	"after": true, "fetch": true, "fetchLinks": true, "lang": true, "access_token": true,
}

// NormalizeCursor implements content.CursorNormalizer. It accepts only
// search URLs of this repository with known parameters, caps the page size,
// and drops the access token, which is added back when the cursor is fetched.
func (c *Client) NormalizeCursor(cursor string) (string, error) {
	u, err := c.ownURL(cursor)
	if err != nil {
		return "", err
	}
	if u.Path != strings.TrimSuffix(c.endpoint.Path, "/")+"/documents/search" || u.Fragment != "" {
		return "", fmt.Errorf("%w: path %q", content.ErrInvalidCursor, u.Path)
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("%w: %v", content.ErrInvalidCursor, err)
	}
	for key, vals := range q {
		if !cursorParams[key] {
			return "", fmt.Errorf("%w: unknown parameter %q", content.ErrInvalidCursor, key)
		}
		if len(vals) != 1 {
			return "", fmt.Errorf("%w: repeated parameter %q", content.ErrInvalidCursor, key)
		}
	}
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return "", fmt.Errorf("%w: pageSize %q", content.ErrInvalidCursor, raw)
		}
		q.Set("pageSize", strconv.Itoa(min(n, content.MaxPageSize)))
	}
	q.Del("access_token")
	out := url.URL{Scheme: u.Scheme, Host: strings.ToLower(u.Host), Path: u.Path, RawQuery: q.Encode()}
	return out.String(), nil
}

func sameRepository(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	ra, okA := prismicRepository(a)
	rb, okB := prismicRepository(b)
	return okA && okB && ra == rb
}

// prismicRepository returns the repository name of a *.prismic.io or
// *.cdn.prismic.io host.
func prismicRepository(host string) (string, bool) {
	name, ok := strings.CutSuffix(host, ".prismic.io")
	if !ok {
		return "", false
	}
	name = strings.TrimSuffix(name, ".cdn")
	if name == "" || strings.Contains(name, ".") {
		return "", false
	}
	return name, true
}

func ordering(o content.Order) string {
	if o == content.OrderAsc {
		return "[document.first_publication_date]"
	}
	return "[document.first_publication_date desc]"
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func (c *Client) get(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("prismic: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("prismic: decode response: %w", err)
	}
	return nil
}

type searchResponse struct {
	Page     int        `json:"page"`
	NextPage *string    `json:"next_page"`
	Results  []document `json:"results"`
}

type document struct {
	ID                   string       `json:"id"`
	UID                  string       `json:"uid"`
	Type                 string       `json:"type"`
	FirstPublicationDate *string      `json:"first_publication_date"`
	LastPublicationDate  *string      `json:"last_publication_date"`
	Data                 documentData `json:"data"`
}

type documentData struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
	Banner   struct {
		URL string `json:"url"`
		Alt string `json:"alt"`
	} `json:"banner"`
	Content []struct {
		Heading string          `json:"heading"`
		Body    richtext.Blocks `json:"body"`
	} `json:"content"`
}

func (d document) summary() (content.PostSummary, error) {
	first, err := parseTime(d.FirstPublicationDate)
	if err != nil {
		return content.PostSummary{}, fmt.Errorf("prismic: document %s: %w", d.ID, err)
	}
	return content.PostSummary{
		ID:                   d.ID,
		UID:                  d.UID,
		FirstPublicationDate: first,
		Title:                d.Data.Title,
		Subtitle:             d.Data.Subtitle,
		Author:               d.Data.Author,
	}, nil
}

func (d document) detail() (content.PostDetail, error) {
	s, err := d.summary()
	if err != nil {
		return content.PostDetail{}, err
	}
	last, err := parseTime(d.LastPublicationDate)
	if err != nil {
		return content.PostDetail{}, fmt.Errorf("prismic: document %s: %w", d.ID, err)
	}
	p := content.PostDetail{
		PostSummary:         s,
		LastPublicationDate: last,
		Banner:              content.Banner{URL: d.Data.Banner.URL, Alt: d.Data.Banner.Alt},
		Content:             make([]content.Section, 0, len(d.Data.Content)),
	}
	for _, sec := range d.Data.Content {
		p.Content = append(p.Content, content.Section{Heading: sec.Heading, Body: sec.Body})
	}
	return p, nil
}

func parseTime(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	for _, layout := range []string{timeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, *v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", *v)
}
