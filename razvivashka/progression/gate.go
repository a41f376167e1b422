package progression

import (
	"context"
	"time"

	"log/slog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/razvivashka/bot/razvivashka/database/repositories"
	"github.com/uptrace/bun"
)

// TxRunner runs a function inside one retried store transaction. Implemented
// by database.DB; tests substitute an in-memory runner.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
}

// Gate resolves whether a user may use a category right now, and owns the
// subscription / free-trial / referral state behind that decision.
type Gate struct {
	subs      repositories.SubscriptionRepository
	trials    repositories.TrialRepository
	referrals repositories.ReferralRepository
	store     TxRunner
	clock     Clock
	loc       *time.Location
	bonusDays int
}

func NewGate(
	subs repositories.SubscriptionRepository,
	trials repositories.TrialRepository,
	referrals repositories.ReferralRepository,
	store TxRunner,
	clock Clock,
	loc *time.Location,
	referralBonusDays int,
) *Gate {
	return &Gate{
		subs:      subs,
		trials:    trials,
		referrals: referrals,
		store:     store,
		clock:     clock,
		loc:       loc,
		bonusDays: referralBonusDays,
	}
}

// CheckAccess applies the entitlement rules in order: active subscription,
// then the category's free-access class.
func (g *Gate) CheckAccess(ctx context.Context, userID snowflake.ID, feature models.Category) (bool, error) {
	info, ok := Info(feature)
	if !ok {
		return false, ErrNotFound
	}

	now := g.clock.Now()
	sub, err := g.subs.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if sub != nil && sub.ActiveAt(now) {
		return true, nil
	}

	switch info.Access {
	case AccessFree:
		return true, nil
	case AccessFirstDayFree:
		allowance, err := g.trials.Get(ctx, userID, feature)
		if err != nil {
			return false, err
		}
		if allowance == nil || allowance.AttemptsUsed == 0 {
			return true, nil
		}
		return allowance.LastDay == DayOf(now, g.loc), nil
	case AccessLifetimeTrial:
		allowance, err := g.trials.Get(ctx, userID, feature)
		if err != nil {
			return false, err
		}
		return allowance == nil || allowance.AttemptsUsed < 1, nil
	default:
		return false, nil
	}
}

// ConsumeTrialAttempt burns one free attempt for the feature. Called after a
// successful use, never after a mere view.
func (g *Gate) ConsumeTrialAttempt(ctx context.Context, userID snowflake.ID, feature models.Category) error {
	day := DayOf(g.clock.Now(), g.loc)
	return g.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return g.trials.ConsumeTx(ctx, tx, userID, feature, day)
	})
}

// GrantSubscription extends (or opens) the user's subscription window and
// activates any referral naming this user as referred — the referred user's
// first subscription is what arms the referrer's bonus.
func (g *Gate) GrantSubscription(ctx context.Context, userID snowflake.ID, days int) (*models.Subscription, error) {
	var sub *models.Subscription
	err := g.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		sub, err = g.subs.ExtendTx(ctx, tx, userID, days, g.clock.Now())
		if err != nil {
			return err
		}
		return g.referrals.ActivateTx(ctx, tx, userID)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Subscription granted",
		slog.String("user_id", userID.String()),
		slog.Int("days", days),
		slog.Time("ends_at", sub.EndsAt))
	return sub, nil
}

// ApplyReferralBonus credits the referrer with the fixed bonus days for one
// activated referral. Idempotent per referred user: the reward-claimed flag
// is flipped in the same transaction as the extension, so repeat calls do
// nothing.
func (g *Gate) ApplyReferralBonus(ctx context.Context, referrerID, referredID snowflake.ID) error {
	return g.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		claimed, err := g.referrals.ClaimRewardTx(ctx, tx, referrerID, referredID)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}

		if _, err := g.subs.ExtendTx(ctx, tx, referrerID, g.bonusDays, g.clock.Now()); err != nil {
			return err
		}
		slog.Info("Referral bonus applied",
			slog.String("referrer_id", referrerID.String()),
			slog.String("referred_id", referredID.String()),
			slog.Int("bonus_days", g.bonusDays))
		return nil
	})
}

// RegisterReferral records that referred joined via referrer's link.
// Self-referrals and repeat registrations are ignored.
func (g *Gate) RegisterReferral(ctx context.Context, referrerID, referredID snowflake.ID) (bool, error) {
	if referrerID == referredID {
		return false, nil
	}
	return g.referrals.Register(ctx, referrerID, referredID)
}

// ReferralStats reports invited / activated counts for the referrer.
func (g *Gate) ReferralStats(ctx context.Context, referrerID snowflake.ID) (*repositories.ReferralStats, error) {
	return g.referrals.Stats(ctx, referrerID)
}
