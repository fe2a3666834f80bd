package pubfront

import (
	"context"
	"errors"
	"fmt"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/views"
)

// ErrPageResolved is returned when Resolve is called on a page that already
// left the Loading phase.
var ErrPageResolved = errors.New("pubfront: detail page already resolved")

// DetailPhase is the rendering state of a post page.
type DetailPhase int

const (
	// DetailLoading means the post has not been fetched yet.
	DetailLoading DetailPhase = iota
	// DetailRendered is terminal: Data holds the formatted post.
	DetailRendered
	// DetailNotFound is terminal: the backend has no post for the UID.
	DetailNotFound
)

func (p DetailPhase) String() string {
	switch p {
	case DetailRendered:
		return "rendered"
	case DetailNotFound:
		return "not-found"
	}
	return "loading"
}

// DetailPage is a post page moving from Loading to Rendered or NotFound.
type DetailPage struct {
	UID   string
	Ref   string
	Phase DetailPhase
	Data  views.PostData
}

// NewDetailPage returns a page in the Loading phase. A non-empty ref puts
// it in preview mode.
func NewDetailPage(uid, ref string) *DetailPage {
	return &DetailPage{UID: uid, Ref: ref, Data: views.PostData{Preview: ref != ""}}
}

// Resolve fetches the post and its navigation and formats them. An unknown
// UID moves the page to NotFound and returns content.ErrNotFound. Any other
// error leaves the page in Loading.
func (d *DetailPage) Resolve(ctx context.Context, src content.Source, f Formatter) error {
	if d.Phase != DetailLoading {
		return ErrPageResolved
	}
	post, err := src.GetByUID(ctx, d.UID, d.Ref)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			d.Phase = DetailNotFound
		}
		return fmt.Errorf("get post %q: %w", d.UID, err)
	}
	nav, err := content.Neighbors(ctx, src, post.ID)
	if err != nil {
		return fmt.Errorf("navigation for %q: %w", d.UID, err)
	}
	view, err := f.Post(post)
	if err != nil {
		return err
	}
	d.Data.Post = view
	d.Data.Nav = f.Nav(nav)
	d.Phase = DetailRendered
	return nil
}
