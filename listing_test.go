package pubfront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/views"
)

func uids(cards []views.PostCard) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.UID
	}
	return out
}

func firstPageOf(t *testing.T, src content.Source, size int) content.PostPage {
	t.Helper()
	page, err := src.List(context.Background(), content.ListQuery{PageSize: size})
	require.NoError(t, err)
	return page
}

func TestListingLoadMoreAppendsInOrder(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	l := NewListing(firstPageOf(t, src, 1), src, testFormatter())

	assert.Equal(t, []string{"third"}, uids(l.Posts()))
	assert.True(t, l.HasMore())
	assert.Equal(t, 1, l.Page())

	added, err := l.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, uids(added))

	added, err = l.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, uids(added))

	assert.Equal(t, []string{"third", "second", "first"}, uids(l.Posts()))
	assert.False(t, l.HasMore())
	assert.Empty(t, l.Cursor())
	assert.Equal(t, 3, l.Page())
}

func TestListingLoadMoreWithoutCursorDoesNotFetch(t *testing.T) {
	src := newFakeSource()
	l := NewListing(firstPageOf(t, src, 10), src, testFormatter())
	before, _ := src.counts()

	added, err := l.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, added)

	after, _ := src.counts()
	assert.Equal(t, before, after)
	assert.Len(t, l.Posts(), 3)
}

func TestListingLoadMoreFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	l := NewListing(firstPageOf(t, src, 1), src, testFormatter())
	cursor := l.Cursor()

	src.failList = errors.New("connection reset")
	_, err := l.LoadMore(ctx)
	require.Error(t, err)

	assert.Equal(t, []string{"third"}, uids(l.Posts()))
	assert.Equal(t, cursor, l.Cursor())
	assert.Equal(t, 1, l.Page())

	// The same cursor can be retried.
	added, err := l.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, uids(added))
}

func TestListingRejectsMalformedPage(t *testing.T) {
	src := listFunc(func(_ context.Context, q content.ListQuery) (content.PostPage, error) {
		return content.PostPage{
			Page:     2,
			Results:  []content.PostSummary{{ID: "a", UID: "ok"}, {ID: "b"}},
			NextPage: "next",
		}, nil
	})
	first := content.PostPage{Page: 1, Results: []content.PostSummary{{ID: "z", UID: "zero"}}, NextPage: "c1"}
	l := NewListing(first, src, testFormatter())

	_, err := l.LoadMore(context.Background())
	require.ErrorIs(t, err, ErrMalformedPage)
	assert.Equal(t, []string{"zero"}, uids(l.Posts()))
	assert.Equal(t, "c1", l.Cursor())
}

func TestListingPostsReturnsCopy(t *testing.T) {
	src := newFakeSource()
	l := NewListing(firstPageOf(t, src, 3), src, testFormatter())

	posts := l.Posts()
	posts[0].Title = "changed"
	assert.NotEqual(t, "changed", l.Posts()[0].Title)
}

func TestListingConcurrentLoadMoreIsSerialized(t *testing.T) {
	src := newFakeSource()
	for i := 4; i <= 9; i++ {
		src.posts = append(src.posts, content.PostDetail{PostSummary: content.PostSummary{
			ID:                   fmt.Sprintf("id-%d", i),
			UID:                  fmt.Sprintf("post-%d", i),
			FirstPublicationDate: date(fmt.Sprintf("2021-%02d-01T10:00:00Z", i)),
		}})
	}
	l := NewListing(firstPageOf(t, src, 1), src, testFormatter())

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.LoadMore(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got := uids(l.Posts())
	assert.Equal(t, []string{
		"post-9", "post-8", "post-7", "post-6", "post-5", "post-4",
		"third", "second", "first",
	}, got)
	assert.False(t, l.HasMore())
}
