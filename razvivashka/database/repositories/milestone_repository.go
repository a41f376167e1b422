package repositories

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/uptrace/bun"
)

type MilestoneRepository interface {
	// TryAwardTx claims the (user, category, day) milestone marker. Reports
	// true only for the transaction that inserts the row; every other caller
	// sees false and must not award the bonus token.
	TryAwardTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category, day string) (bool, error)
}

type milestoneRepository struct {
	*BaseRepository
}

func NewMilestoneRepository(db *bun.DB) MilestoneRepository {
	return &milestoneRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *milestoneRepository) TryAwardTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category, day string) (bool, error) {
	award := &models.MilestoneAward{
		UserID:    userID,
		Category:  category,
		Day:       day,
		AwardedAt: time.Now(),
	}

	res, err := tx.NewInsert().
		Model(award).
		On("CONFLICT (user_id, category, day) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, r.HandleError("award", "milestone_award", userID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleError("award", "milestone_award", userID, err)
	}
	return rows == 1, nil
}
