package query

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"gradecli/internal/archive"
	"gradecli/pkg/contracts/domain"
)

// CachedIndex keeps the last built index until the archive changes through
// it. Concurrent rebuilds are collapsed into one listing pass.
type CachedIndex struct {
	store  *archive.Store
	logger *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	index *Index
	gen   uint64
}

// NewCachedIndex wraps an archive store.
func NewCachedIndex(store *archive.Store, logger *slog.Logger) *CachedIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedIndex{
		store:  store,
		logger: logger.With(slog.String("component", "query")),
	}
}

// Index returns the cached index, building it on first use or after an
// invalidation.
func (c *CachedIndex) Index(ctx context.Context) (*Index, error) {
	c.mu.RLock()
	idx, gen := c.index, c.gen
	c.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	v, err, _ := c.group.Do("index", func() (any, error) {
		listing, err := c.store.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		built := BuildIndex(listing)
		c.mu.Lock()
		// an invalidation during the scan makes this result stale
		if c.gen == gen {
			c.index = built
		}
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "archive index built",
			slog.Int("documents", built.Len()),
			slog.Int("corrupt", built.Corrupt))
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// Invalidate drops the cached index.
func (c *CachedIndex) Invalidate() {
	c.mu.Lock()
	c.index = nil
	c.gen++
	c.mu.Unlock()
}

// Write stores a scored table and invalidates the index.
func (c *CachedIndex) Write(ctx context.Context, contextName, title string, table *domain.ScoredTable, meta map[string]any) (string, error) {
	id, err := c.store.Write(ctx, contextName, title, table, meta)
	if err != nil {
		return "", err
	}
	c.Invalidate()
	return id, nil
}

// Delete removes a document and invalidates the index.
func (c *CachedIndex) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// Read passes through to the store.
func (c *CachedIndex) Read(ctx context.Context, id string) (*domain.ArchiveDocument, error) {
	return c.store.Read(ctx, id)
}
