package pubfront

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/pubfront/content"
)

// ErrPreviewDenied is returned by Store.ResolvePreview when the token does
// not match the configured preview secret, or when none is configured.
var ErrPreviewDenied = errors.New("pubfront: preview denied")

// ErrInvalidCursor is returned when a cursor was not issued by the Store.
var ErrInvalidCursor = content.ErrInvalidCursor

// defaultStorePageSize matches the page size the Prismic API uses when none is given.
const defaultStorePageSize = 20

// storeTimeLayout keeps a fixed width so stored timestamps sort as text.
const storeTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a local SQLite content source. It serves the same listing,
// navigation and preview queries as the remote backend, for development,
// offline builds and tests.
type Store struct {
	db            *sql.DB
	previewSecret string
}

var (
	_ content.Source           = (*Store)(nil)
	_ content.PreviewResolver  = (*Store)(nil)
	_ content.CursorNormalizer = (*Store)(nil)
)

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the server read while an import writes; the busy timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    uid TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    subtitle TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL DEFAULT '',
    banner_url TEXT NOT NULL DEFAULT '',
    banner_alt TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '[]',
    first_publication_date TEXT,
    last_publication_date TEXT,
    published INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS posts_by_date ON posts (first_publication_date, id);
`)
	return err
}

type storeCursor struct {
	page     int
	pageSize int
	order    content.Order
	after    string
}

func (c storeCursor) encode() string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(c.page))
	v.Set("pageSize", strconv.Itoa(c.pageSize))
	v.Set("order", c.order.String())
	if c.after != "" {
		v.Set("after", c.after)
	}
	return v.Encode()
}

func parseStoreCursor(raw string) (storeCursor, error) {
	v, err := url.ParseQuery(raw)
	if err != nil {
		return storeCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	for key, vals := range v {
		switch key {
		case "page", "pageSize", "order", "after":
		default:
			return storeCursor{}, fmt.Errorf("%w: unknown key %q", ErrInvalidCursor, key)
		}
		if len(vals) != 1 {
			return storeCursor{}, fmt.Errorf("%w: repeated key %q", ErrInvalidCursor, key)
		}
	}
	page, err := strconv.Atoi(v.Get("page"))
	if err != nil || page < 1 {
		return storeCursor{}, fmt.Errorf("%w: page %q", ErrInvalidCursor, v.Get("page"))
	}
	size, err := strconv.Atoi(v.Get("pageSize"))
	if err != nil || size < 1 || size > content.MaxPageSize {
		return storeCursor{}, fmt.Errorf("%w: pageSize %q", ErrInvalidCursor, v.Get("pageSize"))
	}
	c := storeCursor{page: page, pageSize: size, after: v.Get("after")}
	switch v.Get("order") {
	case "asc":
		c.order = content.OrderAsc
	case "desc", "":
		c.order = content.OrderDesc
	default:
		return storeCursor{}, fmt.Errorf("%w: order %q", ErrInvalidCursor, v.Get("order"))
	}
	return c, nil
}

// NormalizeCursor implements content.CursorNormalizer.
func (s *Store) NormalizeCursor(cursor string) (string, error) {
	c, err := parseStoreCursor(cursor)
	if err != nil {
		return "", err
	}
	return c.encode(), nil
}

// List returns one page of published posts ordered by first publication date.
func (s *Store) List(ctx context.Context, q content.ListQuery) (content.PostPage, error) {
	c := storeCursor{page: 1, pageSize: q.PageSize, order: q.Order, after: q.After}
	if q.Cursor != "" {
		var err error
		if c, err = parseStoreCursor(q.Cursor); err != nil {
			return content.PostPage{}, err
		}
	}
	if c.pageSize <= 0 {
		c.pageSize = defaultStorePageSize
	}
	c.pageSize = min(c.pageSize, content.MaxPageSize)

	dir, cmp := "DESC", "<"
	if c.order == content.OrderAsc {
		dir, cmp = "ASC", ">"
	}
	query := `SELECT id, uid, title, subtitle, author, first_publication_date FROM posts
WHERE published = 1 AND first_publication_date IS NOT NULL`
	args := []any{}
	if c.after != "" {
		var anchor sql.NullString
		err := s.db.QueryRowContext(ctx, `SELECT first_publication_date FROM posts WHERE id = ?`, c.after).Scan(&anchor)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !anchor.Valid) {
			return content.PostPage{Page: c.page}, nil
		}
		if err != nil {
			return content.PostPage{}, err
		}
		query += ` AND (first_publication_date, id) ` + cmp + ` (?, ?)`
		args = append(args, anchor.String, c.after)
	}
	query += ` ORDER BY first_publication_date ` + dir + `, id ` + dir + ` LIMIT ? OFFSET ?`
	args = append(args, c.pageSize+1, (c.page-1)*c.pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return content.PostPage{}, err
	}
	defer rows.Close()

	page := content.PostPage{Page: c.page, Results: []content.PostSummary{}}
	for rows.Next() {
		var p content.PostSummary
		var first sql.NullString
		if err := rows.Scan(&p.ID, &p.UID, &p.Title, &p.Subtitle, &p.Author, &first); err != nil {
			return content.PostPage{}, err
		}
		if p.FirstPublicationDate, err = parseStoreTime(first); err != nil {
			return content.PostPage{}, err
		}
		page.Results = append(page.Results, p)
	}
	if err := rows.Err(); err != nil {
		return content.PostPage{}, err
	}
	if len(page.Results) > c.pageSize {
		page.Results = page.Results[:c.pageSize]
		next := c
		next.page++
		page.NextPage = next.encode()
	}
	return page, nil
}

// SetPreviewSecret sets the token that unlocks drafts. Previews are
// disabled while it is empty.
func (s *Store) SetPreviewSecret(secret string) {
	s.previewSecret = secret
}

func (s *Store) validPreview(token string) bool {
	return s.previewSecret != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(s.previewSecret)) == 1
}

// GetByUID returns a post by UID. Drafts are visible only when ref is the
// preview secret; any other ref reads published posts.
func (s *Store) GetByUID(ctx context.Context, uid, ref string) (content.PostDetail, error) {
	query := `SELECT id, uid, title, subtitle, author, banner_url, banner_alt, content,
first_publication_date, last_publication_date FROM posts WHERE uid = ?`
	if !s.validPreview(ref) {
		query += ` AND published = 1`
	}
	var p content.PostDetail
	var body string
	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx, query, uid).Scan(&p.ID, &p.UID, &p.Title, &p.Subtitle, &p.Author,
		&p.Banner.URL, &p.Banner.Alt, &body, &first, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return content.PostDetail{}, content.ErrNotFound
	}
	if err != nil {
		return content.PostDetail{}, err
	}
	if err := json.Unmarshal([]byte(body), &p.Content); err != nil {
		return content.PostDetail{}, fmt.Errorf("decode content of %q: %w", uid, err)
	}
	if p.FirstPublicationDate, err = parseStoreTime(first); err != nil {
		return content.PostDetail{}, err
	}
	if p.LastPublicationDate, err = parseStoreTime(last); err != nil {
		return content.PostDetail{}, err
	}
	return p, nil
}

// ResolvePreview returns the UID of the document with the given ID, drafts
// included. The token must be the preview secret.
func (s *Store) ResolvePreview(ctx context.Context, token, documentID string) (string, error) {
	if !s.validPreview(token) {
		return "", ErrPreviewDenied
	}
	var uid string
	err := s.db.QueryRowContext(ctx, `SELECT uid FROM posts WHERE id = ?`, documentID).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", content.ErrNotFound
	}
	return uid, err
}

// SavePost upserts a post. Unpublished posts are drafts.
func (s *Store) SavePost(ctx context.Context, p content.PostDetail, published bool) error {
	if p.ID == "" || p.UID == "" {
		return fmt.Errorf("pubfront: post needs an id and a uid")
	}
	sections := p.Content
	if sections == nil {
		sections = []content.Section{}
	}
	body, err := json.Marshal(sections)
	if err != nil {
		return err
	}
	pub := 0
	if published {
		pub = 1
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO posts
(id, uid, title, subtitle, author, banner_url, banner_alt, content, first_publication_date, last_publication_date, published)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UID, p.Title, p.Subtitle, p.Author, p.Banner.URL, p.Banner.Alt, string(body),
		formatStoreTime(p.FirstPublicationDate), formatStoreTime(p.LastPublicationDate), pub)
	return err
}

// DeletePost removes a post by UID.
func (s *Store) DeletePost(ctx context.Context, uid string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE uid = ?`, uid)
	return err
}

type importedPost struct {
	content.PostDetail
	Published *bool `json:"published"`
}

// ImportJSON reads a JSON array of posts and saves each one. Posts without
// a "published" field are published. It returns the number of posts saved.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	var posts []importedPost
	if err := json.NewDecoder(r).Decode(&posts); err != nil {
		return 0, fmt.Errorf("decode import: %w", err)
	}
	for i, p := range posts {
		published := p.Published == nil || *p.Published
		if err := s.SavePost(ctx, p.PostDetail, published); err != nil {
			return i, fmt.Errorf("import post %d (%s): %w", i, p.UID, err)
		}
	}
	return len(posts), nil
}

func formatStoreTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(storeTimeLayout)
}

func parseStoreTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(storeTimeLayout, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse stored time %q: %w", v.String, err)
	}
	return &t, nil
}
