package repositories

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/uptrace/bun"
)

// ReferralStats summarizes a referrer's invitations for the parents' menu.
type ReferralStats struct {
	Total     int
	Activated int
}

type ReferralRepository interface {
	// Register links referred to referrer. A user can only ever be referred
	// once; repeat and conflicting registrations are ignored.
	Register(ctx context.Context, referrerID, referredID snowflake.ID) (bool, error)
	// ActivateTx flips the referral of the given referred user to active.
	// No-op when no referral exists or it is already active.
	ActivateTx(ctx context.Context, tx bun.Tx, referredID snowflake.ID) error
	// ClaimRewardTx marks the referrer's bonus as claimed for one referred
	// user. Reports false when the referral is missing, inactive, or the
	// reward was already claimed — the guard that keeps the bonus one-time.
	ClaimRewardTx(ctx context.Context, tx bun.Tx, referrerID, referredID snowflake.ID) (bool, error)
	Stats(ctx context.Context, referrerID snowflake.ID) (*ReferralStats, error)
}

type referralRepository struct {
	*BaseRepository
}

func NewReferralRepository(db *bun.DB) ReferralRepository {
	return &referralRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *referralRepository) Register(ctx context.Context, referrerID, referredID snowflake.ID) (bool, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	now := time.Now()
	referral := &models.Referral{
		ReferrerID: referrerID,
		ReferredID: referredID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	res, err := r.db.NewInsert().
		Model(referral).
		On("CONFLICT (referred_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, r.HandleError("register", "referral", referredID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleError("register", "referral", referredID, err)
	}
	return rows == 1, nil
}

func (r *referralRepository) ActivateTx(ctx context.Context, tx bun.Tx, referredID snowflake.ID) error {
	_, err := tx.NewUpdate().
		Model((*models.Referral)(nil)).
		Set("activated = ?", true).
		Set("updated_at = ?", time.Now()).
		Where("referred_id = ?", referredID).
		Where("activated = ?", false).
		Exec(ctx)
	return r.HandleError("activate", "referral", referredID, err)
}

func (r *referralRepository) ClaimRewardTx(ctx context.Context, tx bun.Tx, referrerID, referredID snowflake.ID) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*models.Referral)(nil)).
		Set("reward_claimed = ?", true).
		Set("updated_at = ?", time.Now()).
		Where("referrer_id = ? AND referred_id = ?", referrerID, referredID).
		Where("activated = ?", true).
		Where("reward_claimed = ?", false).
		Exec(ctx)
	if err != nil {
		return false, r.HandleError("claim_reward", "referral", referredID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, r.HandleError("claim_reward", "referral", referredID, err)
	}
	return rows == 1, nil
}

func (r *referralRepository) Stats(ctx context.Context, referrerID snowflake.ID) (*ReferralStats, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	total, err := r.db.NewSelect().
		Model((*models.Referral)(nil)).
		Where("referrer_id = ?", referrerID).
		Count(ctx)
	if err != nil {
		return nil, r.HandleError("stats", "referral", referrerID, err)
	}

	activated, err := r.db.NewSelect().
		Model((*models.Referral)(nil)).
		Where("referrer_id = ? AND activated = ?", referrerID, true).
		Count(ctx)
	if err != nil {
		return nil, r.HandleError("stats", "referral", referrerID, err)
	}

	return &ReferralStats{Total: total, Activated: activated}, nil
}
