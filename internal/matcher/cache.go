package matcher

import (
	"context"
	"sync"

	"posterhelper/internal/poster"
)

type listing struct {
	done  chan struct{}
	items []poster.LibraryItem
	err   error
}

// listingCache fetches each key at most once at a time. Concurrent callers
// wait for the in-flight fetch; a failed fetch is not cached.
type listingCache[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*listing
}

func newListingCache[K comparable]() *listingCache[K] {
	return &listingCache[K]{entries: make(map[K]*listing)}
}

func (c *listingCache[K]) get(ctx context.Context, key K, fetch func() ([]poster.LibraryItem, error)) ([]poster.LibraryItem, error) {
	for {
		c.mu.Lock()
		entry, ok := c.entries[key]
		if !ok {
			entry = &listing{done: make(chan struct{})}
			c.entries[key] = entry
			c.mu.Unlock()

			entry.items, entry.err = fetch()
			if entry.err != nil {
				c.mu.Lock()
				if c.entries[key] == entry {
					delete(c.entries, key)
				}
				c.mu.Unlock()
			}
			close(entry.done)
			return entry.items, entry.err
		}
		c.mu.Unlock()

		select {
		case <-entry.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if entry.err == nil {
			return entry.items, nil
		}
	}
}

func (m *Matcher) listItems(ctx context.Context, library string, kind poster.MediaKind) ([]poster.LibraryItem, error) {
	key := listingKey{library: library, kind: kind}
	return m.items.get(ctx, key, func() ([]poster.LibraryItem, error) {
		return m.catalog.Items(ctx, library, kind)
	})
}

func (m *Matcher) listChildren(ctx context.Context, parent poster.LibraryItem) ([]poster.LibraryItem, error) {
	return m.children.get(ctx, parent.RatingKey, func() ([]poster.LibraryItem, error) {
		return m.catalog.Children(ctx, parent)
	})
}
