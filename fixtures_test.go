package pubfront

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/richtext"
)

func date(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func paragraph(text string) richtext.Block {
	return richtext.Block{Type: richtext.TypeParagraph, Text: text}
}

// samplePosts returns three published posts, oldest first.
func samplePosts() []content.PostDetail {
	return []content.PostDetail{
		{
			PostSummary: content.PostSummary{
				ID: "id-first", UID: "first", Title: "Como utilizar Hooks",
				Subtitle: "Pensando em sincronização", Author: "Joseph Oliveira",
				FirstPublicationDate: date("2021-01-01T10:00:00Z"),
			},
			LastPublicationDate: date("2021-01-01T10:00:00Z"),
			Content: []content.Section{
				{Heading: "Proin et varius", Body: richtext.Blocks{paragraph("Lorem ipsum dolor sit amet")}},
			},
		},
		{
			PostSummary: content.PostSummary{
				ID: "id-second", UID: "second", Title: "Criando um app CRA do zero",
				Subtitle: "Tudo sobre como criar a sua primeira aplicação", Author: "Danilo Vieira",
				FirstPublicationDate: date("2021-02-01T10:00:00Z"),
			},
			LastPublicationDate: date("2021-02-03T13:05:00Z"),
			Banner:              content.Banner{URL: "https://images.example.com/banner.png"},
			Content: []content.Section{
				{Heading: "Cras laoreet", Body: richtext.Blocks{paragraph("Nullam dolor sapien"), paragraph("Morbi quis")}},
			},
		},
		{
			PostSummary: content.PostSummary{
				ID: "id-third", UID: "third", Title: "Explorando o espaço",
				Subtitle: "Uma viagem", Author: "Ana Souza",
				FirstPublicationDate: date("2021-03-01T10:00:00Z"),
			},
			Content: []content.Section{
				{Heading: "Partida", Body: richtext.Blocks{paragraph("Contagem regressiva iniciada")}},
			},
		},
	}
}

func draftPost() content.PostDetail {
	return content.PostDetail{
		PostSummary: content.PostSummary{ID: "id-draft", UID: "draft", Title: "Rascunho secreto", Author: "Ana Souza"},
		Content: []content.Section{
			{Heading: "Ainda não", Body: richtext.Blocks{paragraph("em revisão")}},
		},
	}
}

// fakeSource is an in-memory content.Source. Cursors have the form
// "fake:<offset>:<size>".
type fakeSource struct {
	mu       sync.Mutex
	posts    []content.PostDetail // oldest first
	drafts   []content.PostDetail
	failList error // returned once by the next List call
	failGet  error // returned by every GetByUID call while set
	lists    int
	gets     int
}

func newFakeSource() *fakeSource {
	return &fakeSource{posts: samplePosts(), drafts: []content.PostDetail{draftPost()}}
}

func (f *fakeSource) List(_ context.Context, q content.ListQuery) (content.PostPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if err := f.failList; err != nil {
		f.failList = nil
		return content.PostPage{}, err
	}

	if q.After != "" {
		for i, p := range f.posts {
			if p.ID != q.After {
				continue
			}
			j := i - 1
			if q.Order == content.OrderAsc {
				j = i + 1
			}
			if j >= 0 && j < len(f.posts) {
				return content.PostPage{Page: 1, Results: []content.PostSummary{f.posts[j].PostSummary}}, nil
			}
		}
		return content.PostPage{Page: 1}, nil
	}

	offset, size := 0, q.PageSize
	if q.Cursor != "" {
		if n, err := fmt.Sscanf(q.Cursor, "fake:%d:%d", &offset, &size); err != nil || n != 2 {
			return content.PostPage{}, ErrInvalidCursor
		}
	}
	if size <= 0 {
		size = 20
	}
	desc := make([]content.PostSummary, 0, len(f.posts))
	for i := len(f.posts) - 1; i >= 0; i-- {
		desc = append(desc, f.posts[i].PostSummary)
	}
	if q.Order == content.OrderAsc {
		for i, j := 0, len(desc)-1; i < j; i, j = i+1, j-1 {
			desc[i], desc[j] = desc[j], desc[i]
		}
	}
	if offset > len(desc) {
		offset = len(desc)
	}
	end := min(offset+size, len(desc))
	page := content.PostPage{Page: offset/size + 1, Results: desc[offset:end]}
	if end < len(desc) {
		page.NextPage = fmt.Sprintf("fake:%d:%d", end, size)
	}
	return page, nil
}

func (f *fakeSource) GetByUID(_ context.Context, uid, ref string) (content.PostDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.failGet != nil {
		return content.PostDetail{}, f.failGet
	}
	for _, p := range f.posts {
		if p.UID == uid {
			return p, nil
		}
	}
	if ref != "" {
		for _, p := range f.drafts {
			if p.UID == uid {
				return p, nil
			}
		}
	}
	return content.PostDetail{}, content.ErrNotFound
}

func (f *fakeSource) ResolvePreview(_ context.Context, token, documentID string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range append(append([]content.PostDetail(nil), f.posts...), f.drafts...) {
		if p.ID == documentID {
			return p.UID, nil
		}
	}
	return "", content.ErrNotFound
}

func (f *fakeSource) counts() (lists, gets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists, f.gets
}

// listFunc adapts a function to content.Source. It resolves no posts.
type listFunc func(ctx context.Context, q content.ListQuery) (content.PostPage, error)

func (fn listFunc) List(ctx context.Context, q content.ListQuery) (content.PostPage, error) {
	return fn(ctx, q)
}

func (listFunc) GetByUID(context.Context, string, string) (content.PostDetail, error) {
	return content.PostDetail{}, content.ErrNotFound
}

func testFormatter() Formatter {
	return NewFormatter("pt-BR", time.UTC, nil)
}
