package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// User is created on first interaction with the bot and never deleted.
// ChatID is the identifier assigned by the messaging platform.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64        `bun:"id,pk,autoincrement"`
	ChatID    snowflake.ID `bun:"chat_id,notnull,unique"`
	Username  string       `bun:"username"`
	FullName  string       `bun:"full_name,notnull"`
	CreatedAt time.Time    `bun:"created_at,notnull"`
	UpdatedAt time.Time    `bun:"updated_at,notnull"`
}
