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

type CompletionRepository interface {
	GetTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, itemID int64, subPart int, day string) (*models.CompletionRecord, error)
	// InsertIfAbsentTx creates the record unless the (user, item, part, day)
	// slot is already taken. Reports whether this call created the row.
	InsertIfAbsentTx(ctx context.Context, tx bun.Tx, record *models.CompletionRecord) (bool, error)
	// TransitionTx advances the record from exactly the given status.
	// Reports false when a concurrent writer moved it first; the caller
	// re-reads and re-applies the state machine.
	TransitionTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, itemID int64, subPart int, day string, from, to models.CompletionStatus) (bool, error)
	// ListForItemsTx returns every record for the given items on one day.
	ListForItemsTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, day string, itemIDs []int64) ([]*models.CompletionRecord, error)
}

type completionRepository struct {
	*BaseRepository
}

func NewCompletionRepository(db *bun.DB) CompletionRepository {
	return &completionRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *completionRepository) GetTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, itemID int64, subPart int, day string) (*models.CompletionRecord, error) {
	record := new(models.CompletionRecord)
	err := tx.NewSelect().
		Model(record).
		Where("user_id = ? AND item_id = ? AND sub_part = ? AND day = ?", userID, itemID, subPart, day).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.HandleError("get", "completion_record", itemID, err)
	}
	return record, nil
}

func (r *completionRepository) InsertIfAbsentTx(ctx context.Context, tx bun.Tx, record *models.CompletionRecord) (bool, error) {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	res, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (user_id, item_id, sub_part, day) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, r.HandleError("insert", "completion_record", record.ItemID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleError("insert", "completion_record", record.ItemID, err)
	}
	return rows == 1, nil
}

func (r *completionRepository) TransitionTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, itemID int64, subPart int, day string, from, to models.CompletionStatus) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*models.CompletionRecord)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ? AND item_id = ? AND sub_part = ? AND day = ?", userID, itemID, subPart, day).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, r.HandleError("transition", "completion_record", itemID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleError("transition", "completion_record", itemID, err)
	}
	return rows == 1, nil
}

func (r *completionRepository) ListForItemsTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, day string, itemIDs []int64) ([]*models.CompletionRecord, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	var records []*models.CompletionRecord
	err := tx.NewSelect().
		Model(&records).
		Where("user_id = ? AND day = ?", userID, day).
		Where("item_id IN (?)", bun.In(itemIDs)).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list", "completion_record", userID, err)
	}
	return records, nil
}
