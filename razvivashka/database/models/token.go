package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// TokenType is the closed catalog of reward tokens. One per content category
// plus the access key (spent on answer reveals) and the champion milestone
// token.
type TokenType string

const (
	TokenAccessKey    TokenType = "access_key"
	TokenDayStar      TokenType = "day_star"
	TokenPuzzleMaster TokenType = "puzzle_master"
	TokenTalker       TokenType = "talker"
	TokenBrainiac     TokenType = "brainiac"
	TokenGymnast      TokenType = "gymnast"
	TokenSage         TokenType = "sage"
	TokenChampion     TokenType = "champion"
	TokenDiamond      TokenType = "diamond"
)

var tokenBadges = map[TokenType]struct {
	Emoji string
	Name  string
}{
	TokenAccessKey:    {"🔑", "Access Key"},
	TokenDayStar:      {"⭐", "Day Star"},
	TokenPuzzleMaster: {"🧩", "Puzzle Master"},
	TokenTalker:       {"👄", "Talker"},
	TokenBrainiac:     {"🧠", "Brainiac"},
	TokenGymnast:      {"🤸", "Gymnast"},
	TokenSage:         {"❓", "Sage"},
	TokenChampion:     {"🏆", "Champion of the Day"},
	TokenDiamond:      {"💎", "Diamond"},
}

func (t TokenType) Emoji() string {
	return tokenBadges[t].Emoji
}

func (t TokenType) DisplayName() string {
	return tokenBadges[t].Name
}

// AllTokenTypes lists every token type in a stable order.
func AllTokenTypes() []TokenType {
	return []TokenType{
		TokenAccessKey, TokenDayStar, TokenPuzzleMaster, TokenTalker,
		TokenBrainiac, TokenGymnast, TokenSage, TokenChampion, TokenDiamond,
	}
}

// TokenBalance is the per-user counter for one token type. Counts never go
// negative; the only decrement is an explicit spend.
type TokenBalance struct {
	bun.BaseModel `bun:"table:token_balances,alias:tb"`

	ID        int64        `bun:"id,pk,autoincrement"`
	UserID    snowflake.ID `bun:"user_id,notnull,unique:token_balances_user_type_key"`
	TokenType TokenType    `bun:"token_type,notnull,unique:token_balances_user_type_key"`
	Count     int64        `bun:"count,notnull,default:0"`
	UpdatedAt time.Time    `bun:"updated_at,notnull"`
}
