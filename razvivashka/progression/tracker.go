package progression

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/razvivashka/bot/razvivashka/database/repositories"
	"github.com/uptrace/bun"
)

// MarkResult is the tracker-level outcome of one mark attempt.
type MarkResult int

const (
	// MarkDone: the sub-part just reached its terminal state.
	MarkDone MarkResult = iota
	// MarkAdvanced: the sub-part moved forward to partial.
	MarkAdvanced
	// MarkAlreadyDone: the sub-part was terminal before the call; nothing
	// changed and nothing may be rewarded.
	MarkAlreadyDone
	// MarkNoChange: re-submission of the current non-terminal state.
	MarkNoChange
)

// Tracker enforces the forward-only completion state machine per sub-part.
type Tracker struct {
	completions repositories.CompletionRepository
}

func NewTracker(completions repositories.CompletionRepository) *Tracker {
	return &Tracker{completions: completions}
}

// MarkTx records target for (user, item, subPart, day). The optimistic
// transition update can lose to a concurrent writer; in that case the record
// is re-read and the state machine re-applied, so a double "done" submission
// always collapses into one MarkDone and one MarkAlreadyDone.
func (t *Tracker) MarkTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, itemID int64, subPart int, day string, target models.CompletionStatus) (MarkResult, error) {
	record, err := t.completions.GetTx(ctx, tx, userID, itemID, subPart, day)
	if err != nil {
		return MarkNoChange, err
	}

	if record == nil {
		created, err := t.completions.InsertIfAbsentTx(ctx, tx, &models.CompletionRecord{
			UserID:  userID,
			ItemID:  itemID,
			SubPart: subPart,
			Day:     day,
			Status:  target,
		})
		if err != nil {
			return MarkNoChange, err
		}
		if created {
			if target == models.StatusDone {
				return MarkDone, nil
			}
			return MarkAdvanced, nil
		}
		// Lost the insert race; fall through to the transition path.
		record, err = t.completions.GetTx(ctx, tx, userID, itemID, subPart, day)
		if err != nil {
			return MarkNoChange, err
		}
	}

	// Bounded: each iteration either returns or observes a strictly more
	// advanced state, and the machine has three states.
	for {
		switch {
		case record.Status == models.StatusDone:
			return MarkAlreadyDone, nil
		case record.Status == target:
			return MarkNoChange, nil
		case !record.Status.CanTransitionTo(target):
			return MarkNoChange, nil
		}

		moved, err := t.completions.TransitionTx(ctx, tx, userID, itemID, subPart, day, record.Status, target)
		if err != nil {
			return MarkNoChange, err
		}
		if moved {
			if target == models.StatusDone {
				return MarkDone, nil
			}
			return MarkAdvanced, nil
		}

		record, err = t.completions.GetTx(ctx, tx, userID, itemID, subPart, day)
		if err != nil {
			return MarkNoChange, err
		}
		if record == nil {
			return MarkNoChange, nil
		}
	}
}

// recordKey indexes completion records per (item, part).
type recordKey struct {
	itemID int64
	part   int
}

// statusIndex folds records into a lookup map.
func statusIndex(records []*models.CompletionRecord) map[recordKey]models.CompletionStatus {
	idx := make(map[recordKey]models.CompletionStatus, len(records))
	for _, r := range records {
		idx[recordKey{r.ItemID, r.SubPart}] = r.Status
	}
	return idx
}

// itemFullyDone reports whether every sub-part of the item is done.
func itemFullyDone(item *models.ContentItem, idx map[recordKey]models.CompletionStatus) bool {
	parts := item.Parts
	if parts < 1 {
		parts = 1
	}
	for p := 1; p <= parts; p++ {
		if idx[recordKey{item.ID, p}] != models.StatusDone {
			return false
		}
	}
	return true
}

// DoneItemCountTx counts the items whose every sub-part is done today.
func (t *Tracker) DoneItemCountTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, day string, items []*models.ContentItem) (int, error) {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	records, err := t.completions.ListForItemsTx(ctx, tx, userID, day, ids)
	if err != nil {
		return 0, err
	}

	idx := statusIndex(records)
	count := 0
	for _, item := range items {
		if itemFullyDone(item, idx) {
			count++
		}
	}
	return count, nil
}

// RecordsTx exposes the raw per-part records for assignment views.
func (t *Tracker) RecordsTx(ctx context.Context, tx bun.Tx, userID snowflake.ID, day string, itemIDs []int64) ([]*models.CompletionRecord, error) {
	return t.completions.ListForItemsTx(ctx, tx, userID, day, itemIDs)
}
