package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/uptrace/bun"
)

type SubscriptionRepository interface {
	// Get returns the user's subscription row, or nil when none exists.
	Get(ctx context.Context, userID snowflake.ID) (*models.Subscription, error)
	GetTx(ctx context.Context, tx bun.Tx, userID snowflake.ID) (*models.Subscription, error)
	// ExtendTx adds days to the active window, or opens a fresh window at
	// now when none is active.
	ExtendTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, days int, now time.Time) (*models.Subscription, error)
}

type subscriptionRepository struct {
	*BaseRepository
}

func NewSubscriptionRepository(db *bun.DB) SubscriptionRepository {
	return &subscriptionRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *subscriptionRepository) Get(ctx context.Context, userID snowflake.ID) (*models.Subscription, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()
	return r.get(ctx, r.db, userID)
}

func (r *subscriptionRepository) GetTx(ctx context.Context, tx bun.Tx, userID snowflake.ID) (*models.Subscription, error) {
	return r.get(ctx, tx, userID)
}

func (r *subscriptionRepository) get(ctx context.Context, db bun.IDB, userID snowflake.ID) (*models.Subscription, error) {
	sub := new(models.Subscription)
	err := db.NewSelect().
		Model(sub).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.HandleError("get", "subscription", userID, err)
	}
	return sub, nil
}

func (r *subscriptionRepository) ExtendTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, days int, now time.Time) (*models.Subscription, error) {
	sub, err := r.get(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	bonus := time.Duration(days) * 24 * time.Hour
	switch {
	case sub == nil:
		sub = &models.Subscription{
			UserID:   userID,
			StartsAt: now,
			EndsAt:   now.Add(bonus),
		}
	case sub.EndsAt.Before(now):
		// Lapsed window: restart rather than extend a date in the past.
		sub.StartsAt = now
		sub.EndsAt = now.Add(bonus)
	default:
		sub.EndsAt = sub.EndsAt.Add(bonus)
	}
	sub.UpdatedAt = now

	_, err = tx.NewInsert().
		Model(sub).
		On("CONFLICT (user_id) DO UPDATE").
		Set("starts_at = EXCLUDED.starts_at").
		Set("ends_at = EXCLUDED.ends_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, r.HandleError("extend", "subscription", userID, err)
	}
	return sub, nil
}
