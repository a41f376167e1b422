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

type AssignmentRepository interface {
	// GetForDayTx returns the assignment for (user, category, day), or nil
	// when none exists yet.
	GetForDayTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category, day string) (*models.DailyAssignment, error)
	// InsertIfAbsentTx persists the assignment unless a concurrent
	// transaction already won the (user, category, day) slot. Reports
	// whether this call created the row.
	InsertIfAbsentTx(ctx context.Context, tx bun.Tx, assignment *models.DailyAssignment) (bool, error)

	GetCursorTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category) (*models.SequenceCursor, error)
	SetCursorTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category, position int) error
}

type assignmentRepository struct {
	*BaseRepository
}

func NewAssignmentRepository(db *bun.DB) AssignmentRepository {
	return &assignmentRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *assignmentRepository) GetForDayTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category, day string) (*models.DailyAssignment, error) {
	assignment := new(models.DailyAssignment)
	err := tx.NewSelect().
		Model(assignment).
		Where("user_id = ? AND category = ? AND day = ?", userID, category, day).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.HandleError("get", "daily_assignment", userID, err)
	}
	return assignment, nil
}

func (r *assignmentRepository) InsertIfAbsentTx(ctx context.Context, tx bun.Tx, assignment *models.DailyAssignment) (bool, error) {
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now()
	}

	res, err := tx.NewInsert().
		Model(assignment).
		On("CONFLICT (user_id, category, day) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, r.HandleError("insert", "daily_assignment", assignment.UserID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleError("insert", "daily_assignment", assignment.UserID, err)
	}
	return rows == 1, nil
}

func (r *assignmentRepository) GetCursorTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category) (*models.SequenceCursor, error) {
	cursor := new(models.SequenceCursor)
	err := tx.NewSelect().
		Model(cursor).
		Where("user_id = ? AND category = ?", userID, category).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.HandleError("get", "sequence_cursor", userID, err)
	}
	return cursor, nil
}

func (r *assignmentRepository) SetCursorTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category, position int) error {
	cursor := &models.SequenceCursor{
		UserID:    userID,
		Category:  category,
		Position:  position,
		UpdatedAt: time.Now(),
	}

	_, err := tx.NewInsert().
		Model(cursor).
		On("CONFLICT (user_id, category) DO UPDATE").
		Set("position = EXCLUDED.position").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return r.HandleError("set", "sequence_cursor", userID, err)
}
