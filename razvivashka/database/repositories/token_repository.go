package repositories

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/uptrace/bun"
)

type TokenRepository interface {
	// AwardTx upserts the balance row and increments it. Never fails on a
	// missing row.
	AwardTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, tokenType models.TokenType, amount int64) error
	// SpendTx decrements the balance iff it covers the amount. Reports false
	// on insufficient balance; no state changes in that case.
	SpendTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, tokenType models.TokenType, amount int64) (bool, error)
	Balances(ctx context.Context, userID snowflake.ID) (map[models.TokenType]int64, error)
}

type tokenRepository struct {
	*BaseRepository
}

func NewTokenRepository(db *bun.DB) TokenRepository {
	return &tokenRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *tokenRepository) AwardTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, tokenType models.TokenType, amount int64) error {
	balance := &models.TokenBalance{
		UserID:    userID,
		TokenType: tokenType,
		Count:     amount,
		UpdatedAt: time.Now(),
	}

	_, err := tx.NewInsert().
		Model(balance).
		On("CONFLICT (user_id, token_type) DO UPDATE").
		Set("count = tb.count + EXCLUDED.count").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return r.HandleError("award", "token_balance", userID, err)
}

func (r *tokenRepository) SpendTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, tokenType models.TokenType, amount int64) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*models.TokenBalance)(nil)).
		Set("count = count - ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ? AND token_type = ?", userID, tokenType).
		Where("count >= ?", amount).
		Exec(ctx)
	if err != nil {
		return false, r.HandleError("spend", "token_balance", userID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleError("spend", "token_balance", userID, err)
	}
	return rows == 1, nil
}

func (r *tokenRepository) Balances(ctx context.Context, userID snowflake.ID) (map[models.TokenType]int64, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var balances []*models.TokenBalance
	err := r.db.NewSelect().
		Model(&balances).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list", "token_balance", userID, err)
	}

	out := make(map[models.TokenType]int64, len(balances))
	for _, b := range balances {
		out[b.TokenType] = b.Count
	}
	return out, nil
}
