package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// CompletionStatus is the closed per-part completion state machine:
// not_attempted -> {partial, done}, partial -> done, done terminal.
type CompletionStatus string

const (
	StatusNotAttempted CompletionStatus = "not_attempted"
	StatusPartial      CompletionStatus = "partial"
	StatusDone         CompletionStatus = "done"
)

// CanTransitionTo reports whether s may move forward to next. Re-submitting
// the current state is not a transition.
func (s CompletionStatus) CanTransitionTo(next CompletionStatus) bool {
	switch s {
	case StatusNotAttempted:
		return next == StatusPartial || next == StatusDone
	case StatusPartial:
		return next == StatusDone
	case StatusDone:
		return false
	}
	return false
}

// CompletionRecord holds the state of one sub-part of one assigned item for
// one calendar day. Single-part items use SubPart 1.
type CompletionRecord struct {
	bun.BaseModel `bun:"table:completion_records,alias:cr"`

	ID        int64            `bun:"id,pk,autoincrement"`
	UserID    snowflake.ID     `bun:"user_id,notnull,unique:completion_records_key"`
	ItemID    int64            `bun:"item_id,notnull,unique:completion_records_key"`
	SubPart   int              `bun:"sub_part,notnull,default:1,unique:completion_records_key"`
	Day       string           `bun:"day,notnull,unique:completion_records_key"`
	Status    CompletionStatus `bun:"status,notnull,default:'not_attempted'"`
	CreatedAt time.Time        `bun:"created_at,notnull"`
	UpdatedAt time.Time        `bun:"updated_at,notnull"`
}

// MilestoneAward marks that the "all items done today" bonus was granted for
// (user, category, day). The unique constraint is what makes the award
// exactly-once: whichever transaction inserts the row first awards the token.
type MilestoneAward struct {
	bun.BaseModel `bun:"table:milestone_awards,alias:ma"`

	ID        int64        `bun:"id,pk,autoincrement"`
	UserID    snowflake.ID `bun:"user_id,notnull,unique:milestone_awards_user_cat_day_key"`
	Category  Category     `bun:"category,notnull,unique:milestone_awards_user_cat_day_key"`
	Day       string       `bun:"day,notnull,unique:milestone_awards_user_cat_day_key"`
	AwardedAt time.Time    `bun:"awarded_at,notnull"`
}
