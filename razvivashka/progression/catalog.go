package progression

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/razvivashka/bot/razvivashka/database/repositories"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	catalogCacheSize   = 1024
	catalogCacheExpiry = 5 * time.Minute
	warmUpParallelism  = 3
)

// Catalog is the read-mostly accessor over published content. Category
// listings and single items are cached; concurrent cache misses for the same
// key collapse into one store read.
type Catalog struct {
	repo   repositories.ContentRepository
	cache  *lru.Cache
	group  singleflight.Group
	expiry time.Duration
}

type catalogEntry struct {
	value     any
	expiresAt time.Time
}

func NewCatalog(repo repositories.ContentRepository) *Catalog {
	cache, _ := lru.New(catalogCacheSize)
	return &Catalog{
		repo:   repo,
		cache:  cache,
		expiry: catalogCacheExpiry,
	}
}

// Items returns the category's published items in stable order.
func (c *Catalog) Items(ctx context.Context, category models.Category) ([]*models.ContentItem, error) {
	key := "cat:" + string(category)
	if items, ok := c.lookup(key); ok {
		return items.([]*models.ContentItem), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		items, err := c.repo.ListByCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		c.store(key, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.ContentItem), nil
}

// Item returns a single item by ID; ErrNotFound for unknown IDs.
func (c *Catalog) Item(ctx context.Context, id int64) (*models.ContentItem, error) {
	key := fmt.Sprintf("item:%d", id)
	if item, ok := c.lookup(key); ok {
		return item.(*models.ContentItem), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		item, err := c.repo.GetByID(ctx, id)
		if err != nil {
			if repositories.IsNotFound(err) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		c.store(key, item)
		return item, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.ContentItem), nil
}

// WarmUp preloads every category listing, a few at a time.
func (c *Catalog) WarmUp(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(warmUpParallelism)
	for _, category := range models.AllCategories() {
		g.Go(func() error {
			_, err := c.Items(ctx, category)
			return err
		})
	}
	return g.Wait()
}

// Invalidate drops the cached listing for a category; called when the
// authoring tool publishes new items.
func (c *Catalog) Invalidate(category models.Category) {
	c.cache.Remove("cat:" + string(category))
}

func (c *Catalog) lookup(key string) (any, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(catalogEntry)
	if time.Now().After(entry.expiresAt) {
		c.cache.Remove(key)
		return nil, false
	}
	return entry.value, true
}

func (c *Catalog) store(key string, value any) {
	c.cache.Add(key, catalogEntry{value: value, expiresAt: time.Now().Add(c.expiry)})
}
