package repositories

import (
	"context"
	"time"

	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/uptrace/bun"
)

type ContentRepository interface {
	GetByID(ctx context.Context, id int64) (*models.ContentItem, error)
	// ListByCategory returns items in a stable order: Position, then ID.
	ListByCategory(ctx context.Context, category models.Category) ([]*models.ContentItem, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.ContentItem, error)
	CountByCategory(ctx context.Context, category models.Category) (int, error)
	// Create exists for the authoring tool and test seeding; published items
	// are never edited through the engine.
	Create(ctx context.Context, item *models.ContentItem) error
}

type contentRepository struct {
	*BaseRepository
}

func NewContentRepository(db *bun.DB) ContentRepository {
	return &contentRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *contentRepository) GetByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	item := new(models.ContentItem)
	err := r.db.NewSelect().
		Model(item).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("get", "content_item", id, err)
	}
	return item, nil
}

func (r *contentRepository) ListByCategory(ctx context.Context, category models.Category) ([]*models.ContentItem, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var items []*models.ContentItem
	err := r.db.NewSelect().
		Model(&items).
		Where("category = ?", category).
		Order("position ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list", "content_item", category, err)
	}
	return items, nil
}

func (r *contentRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.ContentItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var items []*models.ContentItem
	err := r.db.NewSelect().
		Model(&items).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list", "content_item", ids, err)
	}
	return items, nil
}

func (r *contentRepository) CountByCategory(ctx context.Context, category models.Category) (int, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	count, err := r.db.NewSelect().
		Model((*models.ContentItem)(nil)).
		Where("category = ?", category).
		Count(ctx)
	if err != nil {
		return 0, r.HandleError("count", "content_item", category, err)
	}
	return count, nil
}

func (r *contentRepository) Create(ctx context.Context, item *models.ContentItem) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.Parts == 0 {
		item.Parts = 1
	}
	_, err := r.db.NewInsert().Model(item).Exec(ctx)
	return r.HandleError("create", "content_item", item.ID, err)
}
