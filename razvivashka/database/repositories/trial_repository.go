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

type TrialRepository interface {
	// Get returns the allowance row for (user, feature), or nil when the
	// user never consumed an attempt.
	Get(ctx context.Context, userID snowflake.ID, feature models.Category) (*models.FreeTrialAllowance, error)
	GetTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, feature models.Category) (*models.FreeTrialAllowance, error)
	// ConsumeTx increments attempts-used and stamps the attempt day.
	ConsumeTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, feature models.Category, day string) error
}

type trialRepository struct {
	*BaseRepository
}

func NewTrialRepository(db *bun.DB) TrialRepository {
	return &trialRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *trialRepository) Get(ctx context.Context, userID snowflake.ID, feature models.Category) (*models.FreeTrialAllowance, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()
	return r.get(ctx, r.db, userID, feature)
}

func (r *trialRepository) GetTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, feature models.Category) (*models.FreeTrialAllowance, error) {
	return r.get(ctx, tx, userID, feature)
}

func (r *trialRepository) get(ctx context.Context, db bun.IDB, userID snowflake.ID, feature models.Category) (*models.FreeTrialAllowance, error) {
	allowance := new(models.FreeTrialAllowance)
	err := db.NewSelect().
		Model(allowance).
		Where("user_id = ? AND feature = ?", userID, feature).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.HandleError("get", "free_trial_allowance", userID, err)
	}
	return allowance, nil
}

func (r *trialRepository) ConsumeTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, feature models.Category, day string) error {
	allowance := &models.FreeTrialAllowance{
		UserID:       userID,
		Feature:      feature,
		AttemptsUsed: 1,
		LastDay:      day,
		UpdatedAt:    time.Now(),
	}

	_, err := tx.NewInsert().
		Model(allowance).
		On("CONFLICT (user_id, feature) DO UPDATE").
		Set("attempts_used = fta.attempts_used + 1").
		Set("last_day = EXCLUDED.last_day").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return r.HandleError("consume", "free_trial_allowance", userID, err)
}
