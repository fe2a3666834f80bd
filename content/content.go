// Package content defines the post records fetched from the content backend
// and the Source interface every backend implements.
package content

import (
	"context"
	"errors"
	"time"

	"github.com/eringen/pubfront/richtext"
)

// ErrNotFound is returned when no document exists for a UID.
var ErrNotFound = errors.New("content: not found")

// ErrInvalidCursor is returned when a cursor was not issued by the backend.
var ErrInvalidCursor = errors.New("content: invalid cursor")

// MaxPageSize is the largest page any backend serves.
const MaxPageSize = 100

// PostSummary is the listing projection of a post.
type PostSummary struct {
	ID                   string     `json:"id"`
	UID                  string     `json:"uid"`
	FirstPublicationDate *time.Time `json:"first_publication_date"`
	Title                string     `json:"title"`
	Subtitle             string     `json:"subtitle"`
	Author               string     `json:"author"`
}

// Banner is the header image of a post.
type Banner struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// Section is one heading with its rich-text body.
type Section struct {
	Heading string          `json:"heading"`
	Body    richtext.Blocks `json:"body"`
}

// PostDetail is a full post fetched by UID.
type PostDetail struct {
	PostSummary
	LastPublicationDate *time.Time `json:"last_publication_date"`
	Banner              Banner     `json:"banner"`
	Content             []Section  `json:"content"`
}

// PostPage is one page of a listing query. NextPage is the opaque cursor
// for the following page; empty means there are no further pages.
type PostPage struct {
	Page     int           `json:"page"`
	Results  []PostSummary `json:"results"`
	NextPage string        `json:"next_page"`
}

// HasNext reports whether a further page can be fetched.
func (p PostPage) HasNext() bool {
	return p.NextPage != ""
}

// Order is the publication-date ordering of a listing query.
type Order int

const (
	// OrderDesc lists newest first. It is the zero value.
	OrderDesc Order = iota
	// OrderAsc lists oldest first.
	OrderAsc
)

func (o Order) String() string {
	if o == OrderAsc {
		return "asc"
	}
	return "desc"
}

// ListQuery selects a page of posts. A non-empty Cursor is followed as-is
// and every other field is ignored.
type ListQuery struct {
	PageSize int
	Cursor   string
	// After restricts results to documents strictly past the one with this
	// ID in the query's ordering.
	After string
	Order Order
}

// Source is a content backend.
type Source interface {
	// List returns one page of post summaries.
	List(ctx context.Context, q ListQuery) (PostPage, error)
	// GetByUID fetches a post. An empty ref reads published content; any
	// other value is a draft (preview) ref.
	GetByUID(ctx context.Context, uid, ref string) (PostDetail, error)
}

// CursorNormalizer is implemented by sources whose cursors have a canonical
// form. NormalizeCursor rejects cursors the source would not have issued and
// rewrites the rest so that equivalent cursors compare equal.
type CursorNormalizer interface {
	NormalizeCursor(cursor string) (string, error)
}

// PreviewResolver is implemented by sources that support draft previews.
type PreviewResolver interface {
	// ResolvePreview validates a preview token and returns the UID of the
	// document being previewed.
	ResolvePreview(ctx context.Context, token, documentID string) (string, error)
}

// Navigation holds the neighbours of a post in publication order.
type Navigation struct {
	Previous *PostSummary `json:"previous,omitempty"`
	Next     *PostSummary `json:"next,omitempty"`
}

// Neighbors runs the two anchored queries that make up a post's navigation:
// the next post published before it and the next one published after it.
func Neighbors(ctx context.Context, src Source, id string) (Navigation, error) {
	var nav Navigation
	prev, err := src.List(ctx, ListQuery{PageSize: 1, After: id, Order: OrderDesc})
	if err != nil {
		return nav, err
	}
	next, err := src.List(ctx, ListQuery{PageSize: 1, After: id, Order: OrderAsc})
	if err != nil {
		return nav, err
	}
	if len(prev.Results) > 0 {
		p := prev.Results[0]
		nav.Previous = &p
	}
	if len(next.Results) > 0 {
		n := next.Results[0]
		nav.Next = &n
	}
	return nav, nil
}
