package pubfront

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/eringen/pubfront/content"
)

// SnapshotCache stores JSON snapshots of backend responses for the
// revalidation window.
type SnapshotCache interface {
	// Get decodes the entry for key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	// Purge drops every entry.
	Purge(ctx context.Context) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// defaultMaxEntries bounds a MemoryCache. A full cache first drops expired
// entries, then evicts the entry closest to expiry.
const defaultMaxEntries = 10000

// MemoryCache is an in-process SnapshotCache with per-entry TTL.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), maxEntries: defaultMaxEntries, now: time.Now}
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// makeRoom must be called with c.mu held.
func (c *MemoryCache) makeRoom(key string) {
	if _, ok := c.entries[key]; ok || len(c.entries) < c.maxEntries {
		return
	}
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}
	var oldest string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldest == "" || e.expires.Before(oldestAt) {
			oldest, oldestAt = k, e.expires
		}
	}
	delete(c.entries, oldest)
}

// Get implements SnapshotCache.
func (c *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && !c.now().Before(cur.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return true, nil
}

// Set implements SnapshotCache.
func (c *MemoryCache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	c.mu.Lock()
	c.makeRoom(key)
	c.entries[key] = memoryEntry{data: data, expires: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Purge implements SnapshotCache.
func (c *MemoryCache) Purge(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// CachedSource serves published content from a SnapshotCache and falls
// through to the wrapped Source on a miss. Preview (ref) reads always go
// to the wrapped Source.
type CachedSource struct {
	src   content.Source
	cache SnapshotCache
	ttl   time.Duration
}

var _ content.Source = (*CachedSource)(nil)

// NewCachedSource wraps src. ttl is the revalidation window.
func NewCachedSource(src content.Source, cache SnapshotCache, ttl time.Duration) *CachedSource {
	return &CachedSource{src: src, cache: cache, ttl: ttl}
}

func listKey(q content.ListQuery) string {
	if q.Cursor != "" {
		return "list:cursor:" + q.Cursor
	}
	return fmt.Sprintf("list:%d:%s:%s", q.PageSize, q.Order, q.After)
}

func postKey(uid string) string {
	return "post:" + uid
}

// List implements content.Source. Cursors are normalized first when the
// wrapped source supports it, so cache keys only come from cursors the
// source would have issued.
func (s *CachedSource) List(ctx context.Context, q content.ListQuery) (content.PostPage, error) {
	if n, ok := s.src.(content.CursorNormalizer); ok && q.Cursor != "" {
		cursor, err := n.NormalizeCursor(q.Cursor)
		if err != nil {
			return content.PostPage{}, err
		}
		q.Cursor = cursor
	}
	key := listKey(q)
	var page content.PostPage
	if ok, err := s.cache.Get(ctx, key, &page); err == nil && ok {
		return page, nil
	}
	page, err := s.src.List(ctx, q)
	if err != nil {
		return content.PostPage{}, err
	}
	_ = s.cache.Set(ctx, key, page, s.ttl)
	return page, nil
}

// GetByUID implements content.Source.
func (s *CachedSource) GetByUID(ctx context.Context, uid, ref string) (content.PostDetail, error) {
	if ref != "" {
		return s.src.GetByUID(ctx, uid, ref)
	}
	key := postKey(uid)
	var post content.PostDetail
	if ok, err := s.cache.Get(ctx, key, &post); err == nil && ok {
		return post, nil
	}
	post, err := s.src.GetByUID(ctx, uid, "")
	if err != nil {
		return content.PostDetail{}, err
	}
	_ = s.cache.Set(ctx, key, post, s.ttl)
	return post, nil
}

// ResolvePreview forwards to the wrapped source when it supports previews.
func (s *CachedSource) ResolvePreview(ctx context.Context, token, documentID string) (string, error) {
	pr, ok := s.src.(content.PreviewResolver)
	if !ok {
		return "", fmt.Errorf("pubfront: content source does not support previews")
	}
	return pr.ResolvePreview(ctx, token, documentID)
}

// Cached reports whether the post page for uid has been generated within
// the current revalidation window.
func (s *CachedSource) Cached(ctx context.Context, uid string) bool {
	var post content.PostDetail
	ok, err := s.cache.Get(ctx, postKey(uid), &post)
	return err == nil && ok
}

// Purge drops every snapshot so the next request revalidates.
func (s *CachedSource) Purge(ctx context.Context) error {
	return s.cache.Purge(ctx)
}
