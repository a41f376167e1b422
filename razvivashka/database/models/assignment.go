package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// DailyAssignment pins the set of items a user works on in one category for
// one calendar day. Immutable once created; a new day produces a fresh row.
// Day is the engine-timezone calendar day formatted YYYY-MM-DD.
type DailyAssignment struct {
	bun.BaseModel `bun:"table:daily_assignments,alias:da"`

	ID        int64        `bun:"id,pk,autoincrement"`
	UserID    snowflake.ID `bun:"user_id,notnull,unique:daily_assignments_user_cat_day_key"`
	Category  Category     `bun:"category,notnull,unique:daily_assignments_user_cat_day_key"`
	Day       string       `bun:"day,notnull,unique:daily_assignments_user_cat_day_key"`
	ItemIDs   []int64      `bun:"item_ids,type:jsonb"`
	CreatedAt time.Time    `bun:"created_at,notnull"`
}

// SequenceCursor tracks a user's position within an ordered category
// (instructional video series). Position is an index into the category's
// items ordered by ContentItem.Position.
type SequenceCursor struct {
	bun.BaseModel `bun:"table:sequence_cursors,alias:sc"`

	ID        int64        `bun:"id,pk,autoincrement"`
	UserID    snowflake.ID `bun:"user_id,notnull,unique:sequence_cursors_user_cat_key"`
	Category  Category     `bun:"category,notnull,unique:sequence_cursors_user_cat_key"`
	Position  int          `bun:"position,notnull,default:0"`
	UpdatedAt time.Time    `bun:"updated_at,notnull"`
}
