package progression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/razvivashka/bot/razvivashka/database/repositories"
	"github.com/uptrace/bun"
)

// Outcome is the caller-facing result of a completion attempt.
type Outcome int

const (
	// OutcomeDone: the item just became fully done and the base token was
	// awarded.
	OutcomeDone Outcome = iota
	// OutcomeProgressed: state advanced (a partial mark or one sub-part of
	// several) without finishing the item. No reward yet.
	OutcomeProgressed
	// OutcomeAlreadyDone: terminal state re-submitted; nothing to reward.
	OutcomeAlreadyDone
	// OutcomeNotAssigned: the item is not in today's assignment.
	OutcomeNotAssigned
)

// CompletionResult reports what a completion attempt changed.
type CompletionResult struct {
	Outcome          Outcome
	ItemDone         bool
	AwardedToken     models.TokenType // empty when nothing was awarded
	MilestoneAwarded bool
}

// AssignedItem pairs a content item with the user's progress on it today.
// MediaURL is a short-lived fetchable link for the item's media key, empty
// when the item has no media or no resolver is configured.
type AssignedItem struct {
	Item      *models.ContentItem
	Status    models.CompletionStatus
	PartsDone int
	MediaURL  string
}

// Assignment is the day's view of one category for one user.
type Assignment struct {
	Category       models.Category
	Day            string
	Items          []AssignedItem
	CompletedCount int
	Quota          int
}

// AnswerResult reports the verdict of a submitted answer; Completion is set
// only when the answer was correct.
type AnswerResult struct {
	Verdict    Verdict
	Completion *CompletionResult
}

// MediaResolver resolves a content item's media key to a fetchable URL.
// Implemented by media.SpacesService.
type MediaResolver interface {
	MediaURL(ctx context.Context, mediaKey string) (string, error)
}

// Orchestrator is the engine façade the presentation layer talks to. It
// composes Gate -> Selector -> Tracker -> Ledger inside single retried
// transactions so every multi-step mutation is atomic.
type Orchestrator struct {
	store      TxRunner
	users      repositories.UserRepository
	catalog    *Catalog
	gate       *Gate
	selector   *Selector
	tracker    *Tracker
	tokens     repositories.TokenRepository
	milestones repositories.MilestoneRepository
	media      MediaResolver
	clock      Clock
	loc        *time.Location
	revealCost int64
}

// OrchestratorParams collects the orchestrator's dependencies. Media is
// optional; without it assigned items carry no media URLs.
type OrchestratorParams struct {
	Store      TxRunner
	Users      repositories.UserRepository
	Catalog    *Catalog
	Gate       *Gate
	Selector   *Selector
	Tracker    *Tracker
	Tokens     repositories.TokenRepository
	Milestones repositories.MilestoneRepository
	Media      MediaResolver
	Clock      Clock
	Location   *time.Location
	RevealCost int64
}

func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	if p.Clock == nil {
		p.Clock = NewSystemClock()
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.RevealCost <= 0 {
		p.RevealCost = 1
	}
	return &Orchestrator{
		store:      p.Store,
		users:      p.Users,
		catalog:    p.Catalog,
		gate:       p.Gate,
		selector:   p.Selector,
		tracker:    p.Tracker,
		tokens:     p.Tokens,
		milestones: p.Milestones,
		media:      p.Media,
		clock:      p.Clock,
		loc:        p.Location,
		revealCost: p.RevealCost,
	}
}

// RegisterUser records the user on first contact; repeat calls refresh the
// display name.
func (o *Orchestrator) RegisterUser(ctx context.Context, chatID snowflake.ID, username, fullName string) (*models.User, error) {
	return o.users.Ensure(ctx, chatID, username, fullName)
}

// GetDailyAssignment returns today's items in the category with per-item
// status, pinning the assignment on first touch. For sequential categories
// it returns the item under the user's cursor as a one-item assignment.
// When the catalog cannot cover the quota the returned assignment is empty
// and the error is ErrInsufficientCatalog.
func (o *Orchestrator) GetDailyAssignment(ctx context.Context, userID snowflake.ID, category models.Category) (*Assignment, error) {
	info, ok := Info(category)
	if !ok {
		return nil, ErrNotFound
	}

	allowed, err := o.gate.CheckAccess(ctx, userID, category)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrAccessDenied
	}

	day := DayOf(o.clock.Now(), o.loc)
	out := &Assignment{Category: category, Day: day, Quota: info.Quota}
	if info.Sequential {
		out.Quota = 1
	}

	err = o.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var items []*models.ContentItem
		if info.Sequential {
			item, _, err := o.selector.CurrentTx(ctx, tx, userID, category)
			if err != nil {
				return err
			}
			items = []*models.ContentItem{item}
		} else {
			assignment, err := o.selector.AssignForDayTx(ctx, tx, userID, category, day)
			if err != nil {
				return err
			}
			items, err = o.assignedItems(ctx, assignment.ItemIDs)
			if err != nil {
				return err
			}
		}

		ids := make([]int64, len(items))
		for i, item := range items {
			ids[i] = item.ID
		}
		records, err := o.tracker.RecordsTx(ctx, tx, userID, day, ids)
		if err != nil {
			return err
		}

		idx := statusIndex(records)
		for _, item := range items {
			out.Items = append(out.Items, buildAssignedItem(item, idx))
		}
		for _, ai := range out.Items {
			if ai.Status == models.StatusDone {
				out.CompletedCount++
			}
		}
		return nil
	})
	if errors.Is(err, ErrInsufficientCatalog) {
		return out, err
	}
	if err != nil {
		return nil, err
	}
	o.resolveMedia(ctx, out.Items)
	return out, nil
}

// MarkItemComplete records a completion event and applies rewards: the base
// category token once per fully-done item, and the champion milestone once
// per (user, category, day) when the whole quota is done. The milestone
// marker insert decides the concurrent-finishers race: the transaction that
// wins it awards the bonus, every other one sees it taken.
func (o *Orchestrator) MarkItemComplete(ctx context.Context, userID snowflake.ID, itemID int64, subPart int, status models.CompletionStatus) (*CompletionResult, error) {
	if status != models.StatusPartial && status != models.StatusDone {
		return nil, fmt.Errorf("cannot mark status %q", status)
	}

	item, err := o.catalog.Item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	info, ok := Info(item.Category)
	if !ok {
		return nil, ErrNotFound
	}

	if subPart <= 0 {
		subPart = 1
	}
	parts := item.Parts
	if parts < 1 {
		parts = 1
	}
	if subPart > parts {
		return nil, ErrNotFound
	}

	allowed, err := o.gate.CheckAccess(ctx, userID, item.Category)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrAccessDenied
	}

	day := DayOf(o.clock.Now(), o.loc)
	result := &CompletionResult{}

	err = o.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var assignment *models.DailyAssignment
		if info.Sequential {
			current, _, err := o.selector.CurrentTx(ctx, tx, userID, item.Category)
			if err != nil {
				return err
			}
			if current.ID != itemID {
				result.Outcome = OutcomeNotAssigned
				return nil
			}
		} else {
			var err error
			assignment, err = o.selector.ExistingTx(ctx, tx, userID, item.Category, day)
			if err != nil {
				return err
			}
			if assignment == nil || !containsID(assignment.ItemIDs, itemID) {
				result.Outcome = OutcomeNotAssigned
				return nil
			}
		}

		mark, err := o.tracker.MarkTx(ctx, tx, userID, itemID, subPart, day, status)
		if err != nil {
			return err
		}

		switch mark {
		case MarkAlreadyDone:
			result.Outcome = OutcomeAlreadyDone
			return nil
		case MarkAdvanced, MarkNoChange:
			result.Outcome = OutcomeProgressed
			return nil
		}

		// A sub-part just reached done; the item counts only when every
		// sub-part is done.
		records, err := o.tracker.RecordsTx(ctx, tx, userID, day, []int64{itemID})
		if err != nil {
			return err
		}
		if !itemFullyDone(item, statusIndex(records)) {
			result.Outcome = OutcomeProgressed
			return nil
		}

		if err := o.tokens.AwardTx(ctx, tx, userID, info.Token, 1); err != nil {
			return err
		}
		result.Outcome = OutcomeDone
		result.ItemDone = true
		result.AwardedToken = info.Token

		if !info.HasMilestone() || assignment == nil {
			return nil
		}

		items, err := o.assignedItems(ctx, assignment.ItemIDs)
		if err != nil {
			return err
		}
		doneCount, err := o.tracker.DoneItemCountTx(ctx, tx, userID, day, items)
		if err != nil {
			return err
		}
		if doneCount < info.Quota {
			return nil
		}

		won, err := o.milestones.TryAwardTx(ctx, tx, userID, item.Category, day)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		if err := o.tokens.AwardTx(ctx, tx, userID, models.TokenChampion, 1); err != nil {
			return err
		}
		result.MilestoneAwarded = true

		slog.Info("Milestone awarded",
			slog.String("user_id", userID.String()),
			slog.String("category", string(item.Category)),
			slog.String("day", day))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitAnswer checks a text answer for an item's sub-part and, when
// correct, completes that sub-part. Close misses report VerdictClose without
// changing any state.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, userID snowflake.ID, itemID int64, subPart int, answer string) (*AnswerResult, error) {
	item, err := o.catalog.Item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if subPart <= 0 {
		subPart = 1
	}

	verdict := matchAnswer(item.PartAnswers(subPart), answer)
	if verdict != VerdictCorrect {
		return &AnswerResult{Verdict: verdict}, nil
	}

	completion, err := o.MarkItemComplete(ctx, userID, itemID, subPart, models.StatusDone)
	if err != nil {
		return nil, err
	}
	return &AnswerResult{Verdict: verdict, Completion: completion}, nil
}

// RevealAnswers spends one access key and returns the item's expected
// answers. ErrInsufficientBalance when the user holds no key; no state
// changes in that case.
func (o *Orchestrator) RevealAnswers(ctx context.Context, userID snowflake.ID, itemID int64) ([]string, error) {
	item, err := o.catalog.Item(ctx, itemID)
	if err != nil {
		return nil, err
	}

	err = o.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		ok, err := o.tokens.SpendTx(ctx, tx, userID, models.TokenAccessKey, o.revealCost)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInsufficientBalance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item.Answers, nil
}

// NextItem advances the user's cursor in a sequential category.
// ErrNoNextItem at the end of the series.
func (o *Orchestrator) NextItem(ctx context.Context, userID snowflake.ID, category models.Category) (*AssignedItem, error) {
	return o.stepSequential(ctx, userID, category, +1)
}

// PreviousItem steps the cursor back. ErrNoPreviousItem at the start.
func (o *Orchestrator) PreviousItem(ctx context.Context, userID snowflake.ID, category models.Category) (*AssignedItem, error) {
	return o.stepSequential(ctx, userID, category, -1)
}

func (o *Orchestrator) stepSequential(ctx context.Context, userID snowflake.ID, category models.Category, delta int) (*AssignedItem, error) {
	info, ok := Info(category)
	if !ok || !info.Sequential {
		return nil, ErrNotFound
	}

	allowed, err := o.gate.CheckAccess(ctx, userID, category)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrAccessDenied
	}

	day := DayOf(o.clock.Now(), o.loc)
	var out AssignedItem
	err = o.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, _, err := o.selector.AdvanceTx(ctx, tx, userID, category, delta)
		if err != nil {
			return err
		}
		records, err := o.tracker.RecordsTx(ctx, tx, userID, day, []int64{item.ID})
		if err != nil {
			return err
		}
		out = buildAssignedItem(item, statusIndex(records))
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := []AssignedItem{out}
	o.resolveMedia(ctx, view)
	return &view[0], nil
}

// GetTokenBalances returns the user's full token ledger.
func (o *Orchestrator) GetTokenBalances(ctx context.Context, userID snowflake.ID) (map[models.TokenType]int64, error) {
	return o.tokens.Balances(ctx, userID)
}

// SpendToken decrements one token of the given type, e.g. for a custom
// front-end unlock. ErrInsufficientBalance when the balance is short.
func (o *Orchestrator) SpendToken(ctx context.Context, userID snowflake.ID, tokenType models.TokenType) error {
	return o.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		ok, err := o.tokens.SpendTx(ctx, tx, userID, tokenType, 1)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInsufficientBalance
		}
		return nil
	})
}

// Entitlement surface, delegated to the gate.

func (o *Orchestrator) CheckAccess(ctx context.Context, userID snowflake.ID, feature models.Category) (bool, error) {
	return o.gate.CheckAccess(ctx, userID, feature)
}

func (o *Orchestrator) ConsumeTrialAttempt(ctx context.Context, userID snowflake.ID, feature models.Category) error {
	return o.gate.ConsumeTrialAttempt(ctx, userID, feature)
}

func (o *Orchestrator) GrantSubscription(ctx context.Context, userID snowflake.ID, days int) (*models.Subscription, error) {
	return o.gate.GrantSubscription(ctx, userID, days)
}

func (o *Orchestrator) ApplyReferralBonus(ctx context.Context, referrerID, referredID snowflake.ID) error {
	return o.gate.ApplyReferralBonus(ctx, referrerID, referredID)
}

func (o *Orchestrator) RegisterReferral(ctx context.Context, referrerID, referredID snowflake.ID) (bool, error) {
	return o.gate.RegisterReferral(ctx, referrerID, referredID)
}

func (o *Orchestrator) ReferralStats(ctx context.Context, referrerID snowflake.ID) (*repositories.ReferralStats, error) {
	return o.gate.ReferralStats(ctx, referrerID)
}

// resolveMedia fills in presigned URLs for items carrying a media key. A
// failed presign logs and leaves the URL empty; the item text still renders.
func (o *Orchestrator) resolveMedia(ctx context.Context, items []AssignedItem) {
	if o.media == nil {
		return
	}
	for i := range items {
		key := items[i].Item.MediaKey
		if key == "" {
			continue
		}
		url, err := o.media.MediaURL(ctx, key)
		if err != nil {
			slog.Warn("Failed to resolve media URL",
				slog.String("media_key", key),
				slog.Any("error", err))
			continue
		}
		items[i].MediaURL = url
	}
}

// assignedItems resolves assignment item IDs through the catalog cache,
// preserving the pinned order.
func (o *Orchestrator) assignedItems(ctx context.Context, ids []int64) ([]*models.ContentItem, error) {
	items := make([]*models.ContentItem, 0, len(ids))
	for _, id := range ids {
		item, err := o.catalog.Item(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func buildAssignedItem(item *models.ContentItem, idx map[recordKey]models.CompletionStatus) AssignedItem {
	parts := item.Parts
	if parts < 1 {
		parts = 1
	}

	ai := AssignedItem{Item: item, Status: models.StatusNotAttempted}
	anyProgress := false
	for p := 1; p <= parts; p++ {
		switch idx[recordKey{item.ID, p}] {
		case models.StatusDone:
			ai.PartsDone++
			anyProgress = true
		case models.StatusPartial:
			anyProgress = true
		}
	}
	switch {
	case ai.PartsDone == parts:
		ai.Status = models.StatusDone
	case anyProgress:
		ai.Status = models.StatusPartial
	}
	return ai
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
