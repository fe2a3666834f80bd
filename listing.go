package pubfront

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/views"
)

// ErrMalformedPage is returned when a fetched page contains a result with no UID.
var ErrMalformedPage = errors.New("pubfront: malformed page")

// Listing is the state of the listing page: the posts shown so far, in
// backend order, and the cursor of the next page. LoadMore is the only
// way it changes.
type Listing struct {
	mu     sync.Mutex
	source content.Source
	format Formatter
	posts  []views.PostCard
	cursor string
	page   int
}

// NewListing builds a Listing from an already fetched first page.
func NewListing(first content.PostPage, src content.Source, f Formatter) *Listing {
	page := first.Page
	if page == 0 {
		page = 1
	}
	return &Listing{
		source: src,
		format: f,
		posts:  f.Cards(first.Results),
		cursor: first.NextPage,
		page:   page,
	}
}

// LoadMore fetches the page behind the current cursor and appends it.
// It returns the newly appended cards. With no cursor left it does nothing
// and returns nil. On failure the listing is left exactly as it was.
// Concurrent calls are serialized, each continuing from the cursor the
// previous call stored.
func (l *Listing) LoadMore(ctx context.Context) ([]views.PostCard, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor == "" {
		return nil, nil
	}
	next, err := l.source.List(ctx, content.ListQuery{Cursor: l.cursor})
	if err != nil {
		return nil, fmt.Errorf("load page %d: %w", l.page+1, err)
	}
	for i, p := range next.Results {
		if p.UID == "" {
			return nil, fmt.Errorf("load page %d: result %d: %w", l.page+1, i, ErrMalformedPage)
		}
	}

	added := l.format.Cards(next.Results)
	l.posts = append(l.posts, added...)
	l.cursor = next.NextPage
	if next.Page > 0 {
		l.page = next.Page
	} else {
		l.page++
	}
	return added, nil
}

// Posts returns a copy of the accumulated cards.
func (l *Listing) Posts() []views.PostCard {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]views.PostCard, len(l.posts))
	copy(out, l.posts)
	return out
}

// Cursor returns the cursor of the next page, or "" when exhausted.
func (l *Listing) Cursor() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// HasMore reports whether LoadMore would fetch anything.
func (l *Listing) HasMore() bool {
	return l.Cursor() != ""
}

// Page returns the number of the last loaded page.
func (l *Listing) Page() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page
}
