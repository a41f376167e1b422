package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Category is the closed set of content kinds the engine rotates.
type Category string

const (
	CategoryDailyTask         Category = "daily_task"
	CategoryRiddle            Category = "riddle"
	CategoryPuzzle            Category = "puzzle"
	CategoryTongueTwister     Category = "tongue_twister"
	CategoryNeuroExercise     Category = "neuro_exercise"
	CategoryArticularExercise Category = "articular_exercise"
	CategoryCreativity        Category = "creativity"
)

// Valid reports whether the value is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// AllCategories lists every category in a stable order.
func AllCategories() []Category {
	return []Category{
		CategoryDailyTask,
		CategoryRiddle,
		CategoryPuzzle,
		CategoryTongueTwister,
		CategoryNeuroExercise,
		CategoryArticularExercise,
		CategoryCreativity,
	}
}

// ContentItem is one published piece of content. Items are immutable once
// published; only the out-of-scope authoring tool writes them.
//
// Parts is the number of independently answerable sub-parts. For single-part
// items Answers holds acceptable alternatives; for multi-part items (puzzle
// pictures with several rebuses) Answers[i] is the expected answer of part
// i+1. Position orders items within sequential categories.
type ContentItem struct {
	bun.BaseModel `bun:"table:content_items,alias:ci"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Category  Category  `bun:"category,notnull"`
	Prompt    string    `bun:"prompt,notnull"`
	Answers   []string  `bun:"answers,type:jsonb"`
	Parts     int       `bun:"parts,notnull,default:1"`
	MediaKey  string    `bun:"media_key"`
	Position  int       `bun:"position,notnull,default:0"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// PartAnswers returns the acceptable answers for a 1-based sub-part.
func (ci *ContentItem) PartAnswers(part int) []string {
	if ci.Parts <= 1 {
		return ci.Answers
	}
	if part < 1 || part > len(ci.Answers) {
		return nil
	}
	return ci.Answers[part-1 : part]
}
