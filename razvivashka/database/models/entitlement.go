package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// Subscription is a user's paid access window. One row per user; purchases
// and referral bonuses extend EndsAt in place.
type Subscription struct {
	bun.BaseModel `bun:"table:subscriptions,alias:sub"`

	ID        int64        `bun:"id,pk,autoincrement"`
	UserID    snowflake.ID `bun:"user_id,notnull,unique"`
	StartsAt  time.Time    `bun:"starts_at,notnull"`
	EndsAt    time.Time    `bun:"ends_at,notnull"`
	UpdatedAt time.Time    `bun:"updated_at,notnull"`
}

// ActiveAt reports whether the window covers the given instant.
func (s *Subscription) ActiveAt(t time.Time) bool {
	return !t.Before(s.StartsAt) && t.Before(s.EndsAt)
}

// FreeTrialAllowance counts unpaid uses of a gated feature. LastDay stamps
// the engine-timezone day of the most recent attempt, which drives the
// "first calendar day only" rule.
type FreeTrialAllowance struct {
	bun.BaseModel `bun:"table:free_trial_allowances,alias:fta"`

	ID           int64        `bun:"id,pk,autoincrement"`
	UserID       snowflake.ID `bun:"user_id,notnull,unique:free_trial_allowances_user_feature_key"`
	Feature      Category     `bun:"feature,notnull,unique:free_trial_allowances_user_feature_key"`
	AttemptsUsed int          `bun:"attempts_used,notnull,default:0"`
	LastDay      string       `bun:"last_day"`
	UpdatedAt    time.Time    `bun:"updated_at,notnull"`
}

// Referral links a referrer to the user they invited. Activated flips when
// the referred user acquires their first subscription; RewardClaimed guards
// the referrer's one-time bonus.
type Referral struct {
	bun.BaseModel `bun:"table:referrals,alias:ref"`

	ID            int64        `bun:"id,pk,autoincrement"`
	ReferrerID    snowflake.ID `bun:"referrer_id,notnull"`
	ReferredID    snowflake.ID `bun:"referred_id,notnull,unique"`
	Activated     bool         `bun:"activated,notnull,default:false"`
	RewardClaimed bool         `bun:"reward_claimed,notnull,default:false"`
	CreatedAt     time.Time    `bun:"created_at,notnull"`
	UpdatedAt     time.Time    `bun:"updated_at,notnull"`
}
