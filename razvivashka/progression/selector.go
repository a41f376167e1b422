package progression

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/razvivashka/bot/razvivashka/database/repositories"
	"github.com/uptrace/bun"
)

// Selector produces and pins the day's item subset per (user, category).
// Random categories sample without replacement; sequential categories walk a
// per-user cursor through the ordered series.
type Selector struct {
	assignments repositories.AssignmentRepository
	catalog     *Catalog

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector builds a selector. src seeds the sampler; pass a fixed-seed
// source in tests to make assignments reproducible.
func NewSelector(assignments repositories.AssignmentRepository, catalog *Catalog, src rand.Source) *Selector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Selector{
		assignments: assignments,
		catalog:     catalog,
		rng:         rand.New(src),
	}
}

// ExistingTx returns the already-pinned assignment, or nil.
func (s *Selector) ExistingTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category, day string) (*models.DailyAssignment, error) {
	return s.assignments.GetForDayTx(ctx, tx, userID, category, day)
}

// AssignForDayTx returns the assignment for (user, category, day), creating
// it on first touch. Idempotent: repeat and concurrent calls observe the
// same item set — losers of the insert race re-read the winner's row.
// When the catalog holds fewer items than the quota no assignment is
// persisted and ErrInsufficientCatalog is returned.
func (s *Selector) AssignForDayTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category, day string) (*models.DailyAssignment, error) {
	existing, err := s.assignments.GetForDayTx(ctx, tx, userID, category, day)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	info, ok := Info(category)
	if !ok {
		return nil, ErrNotFound
	}

	items, err := s.catalog.Items(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(items) < info.Quota {
		return nil, ErrInsufficientCatalog
	}

	assignment := &models.DailyAssignment{
		UserID:   userID,
		Category: category,
		Day:      day,
		ItemIDs:  s.sample(items, info.Quota),
	}

	created, err := s.assignments.InsertIfAbsentTx(ctx, tx, assignment)
	if err != nil {
		return nil, err
	}
	if !created {
		// A concurrent request pinned the day first; its set wins.
		return s.assignments.GetForDayTx(ctx, tx, userID, category, day)
	}
	return assignment, nil
}

// sample picks quota distinct item IDs uniformly at random.
func (s *Selector) sample(items []*models.ContentItem, quota int) []int64 {
	s.mu.Lock()
	perm := s.rng.Perm(len(items))
	s.mu.Unlock()

	ids := make([]int64, quota)
	for i := 0; i < quota; i++ {
		ids[i] = items[perm[i]].ID
	}
	return ids
}

// CurrentTx returns the item under the user's cursor for a sequential
// category, along with its position.
func (s *Selector) CurrentTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category) (*models.ContentItem, int, error) {
	items, err := s.catalog.Items(ctx, category)
	if err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return nil, 0, ErrInsufficientCatalog
	}

	pos := 0
	cursor, err := s.assignments.GetCursorTx(ctx, tx, userID, category)
	if err != nil {
		return nil, 0, err
	}
	if cursor != nil {
		pos = cursor.Position
	}
	if pos >= len(items) {
		// Series shrank since the cursor was written; clamp to the end.
		pos = len(items) - 1
	}
	return items[pos], pos, nil
}

// AdvanceTx moves the cursor one step. delta is +1 or -1; stepping past
// either end returns the boundary error and leaves the cursor untouched.
func (s *Selector) AdvanceTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, category models.Category, delta int) (*models.ContentItem, int, error) {
	items, err := s.catalog.Items(ctx, category)
	if err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return nil, 0, ErrInsufficientCatalog
	}

	pos := 0
	cursor, err := s.assignments.GetCursorTx(ctx, tx, userID, category)
	if err != nil {
		return nil, 0, err
	}
	if cursor != nil {
		pos = cursor.Position
	}

	next := pos + delta
	if next >= len(items) {
		return nil, 0, ErrNoNextItem
	}
	if next < 0 {
		return nil, 0, ErrNoPreviousItem
	}

	if err := s.assignments.SetCursorTx(ctx, tx, userID, category, next); err != nil {
		return nil, 0, err
	}
	return items[next], next, nil
}
