package progression

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/razvivashka/bot/razvivashka/database/repositories"
	"github.com/uptrace/bun"
)

// fakeStore serializes "transactions" with a mutex; the zero bun.Tx is never
// touched because every fake keeps its state in memory.
type fakeStore struct {
	mu sync.Mutex
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, bun.Tx{})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeContentRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*models.ContentItem
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{nextID: 1, items: make(map[int64]*models.ContentItem)}
}

func (r *fakeContentRepo) add(item *models.ContentItem) *models.ContentItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = r.nextID
	r.nextID++
	r.items[item.ID] = item
	return item
}

func (r *fakeContentRepo) GetByID(_ context.Context, id int64) (*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "content item"}
	}
	return item, nil
}

func (r *fakeContentRepo) ListByCategory(_ context.Context, category models.Category) ([]*models.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ContentItem
	for _, item := range r.items {
		if item.Category == category {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeContentRepo) GetByIDs(ctx context.Context, ids []int64) ([]*models.ContentItem, error) {
	var out []*models.ContentItem
	for _, id := range ids {
		item, err := r.GetByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *fakeContentRepo) CountByCategory(ctx context.Context, category models.Category) (int, error) {
	items, _ := r.ListByCategory(ctx, category)
	return len(items), nil
}

func (r *fakeContentRepo) Create(_ context.Context, item *models.ContentItem) error {
	r.add(item)
	return nil
}

type assignmentKey struct {
	user     snowflake.ID
	category models.Category
	day      string
}

type cursorKey struct {
	user     snowflake.ID
	category models.Category
}

type fakeAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[assignmentKey]*models.DailyAssignment
	cursors     map[cursorKey]int
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{
		assignments: make(map[assignmentKey]*models.DailyAssignment),
		cursors:     make(map[cursorKey]int),
	}
}

func (r *fakeAssignmentRepo) GetForDayTx(_ context.Context, _ bun.Tx, userID snowflake.ID, category models.Category, day string) (*models.DailyAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assignments[assignmentKey{userID, category, day}], nil
}

func (r *fakeAssignmentRepo) InsertIfAbsentTx(_ context.Context, _ bun.Tx, assignment *models.DailyAssignment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := assignmentKey{assignment.UserID, assignment.Category, assignment.Day}
	if _, ok := r.assignments[key]; ok {
		return false, nil
	}
	r.assignments[key] = assignment
	return true, nil
}

func (r *fakeAssignmentRepo) GetCursorTx(_ context.Context, _ bun.Tx, userID snowflake.ID, category models.Category) (*models.SequenceCursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.cursors[cursorKey{userID, category}]
	if !ok {
		return nil, nil
	}
	return &models.SequenceCursor{UserID: userID, Category: category, Position: pos}, nil
}

func (r *fakeAssignmentRepo) SetCursorTx(_ context.Context, _ bun.Tx, userID snowflake.ID, category models.Category, position int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[cursorKey{userID, category}] = position
	return nil
}

type completionKey struct {
	user snowflake.ID
	item int64
	part int
	day  string
}

type fakeCompletionRepo struct {
	mu      sync.Mutex
	records map[completionKey]models.CompletionStatus
}

func newFakeCompletionRepo() *fakeCompletionRepo {
	return &fakeCompletionRepo{records: make(map[completionKey]models.CompletionStatus)}
}

func (r *fakeCompletionRepo) GetTx(_ context.Context, _ bun.Tx, userID snowflake.ID, itemID int64, subPart int, day string) (*models.CompletionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.records[completionKey{userID, itemID, subPart, day}]
	if !ok {
		return nil, nil
	}
	return &models.CompletionRecord{
		UserID:  userID,
		ItemID:  itemID,
		SubPart: subPart,
		Day:     day,
		Status:  status,
	}, nil
}

func (r *fakeCompletionRepo) InsertIfAbsentTx(_ context.Context, _ bun.Tx, record *models.CompletionRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := completionKey{record.UserID, record.ItemID, record.SubPart, record.Day}
	if _, ok := r.records[key]; ok {
		return false, nil
	}
	r.records[key] = record.Status
	return true, nil
}

func (r *fakeCompletionRepo) TransitionTx(_ context.Context, _ bun.Tx, userID snowflake.ID, itemID int64, subPart int, day string, from, to models.CompletionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := completionKey{userID, itemID, subPart, day}
	if r.records[key] != from {
		return false, nil
	}
	r.records[key] = to
	return true, nil
}

func (r *fakeCompletionRepo) ListForItemsTx(_ context.Context, _ bun.Tx, userID snowflake.ID, day string, itemIDs []int64) ([]*models.CompletionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CompletionRecord
	for key, status := range r.records {
		if key.user != userID || key.day != day {
			continue
		}
		for _, id := range itemIDs {
			if key.item == id {
				out = append(out, &models.CompletionRecord{
					UserID:  key.user,
					ItemID:  key.item,
					SubPart: key.part,
					Day:     key.day,
					Status:  status,
				})
				break
			}
		}
	}
	return out, nil
}

type balanceKey struct {
	user      snowflake.ID
	tokenType models.TokenType
}

type fakeTokenRepo struct {
	mu       sync.Mutex
	balances map[balanceKey]int64
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{balances: make(map[balanceKey]int64)}
}

func (r *fakeTokenRepo) AwardTx(_ context.Context, _ bun.Tx, userID snowflake.ID, tokenType models.TokenType, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[balanceKey{userID, tokenType}] += amount
	return nil
}

func (r *fakeTokenRepo) SpendTx(_ context.Context, _ bun.Tx, userID snowflake.ID, tokenType models.TokenType, amount int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := balanceKey{userID, tokenType}
	if r.balances[key] < amount {
		return false, nil
	}
	r.balances[key] -= amount
	return true, nil
}

func (r *fakeTokenRepo) Balances(_ context.Context, userID snowflake.ID) (map[models.TokenType]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[models.TokenType]int64)
	for key, count := range r.balances {
		if key.user == userID && count > 0 {
			out[key.tokenType] = count
		}
	}
	return out, nil
}

type fakeSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[snowflake.ID]*models.Subscription
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{subs: make(map[snowflake.ID]*models.Subscription)}
}

func (r *fakeSubscriptionRepo) Get(_ context.Context, userID snowflake.ID) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[userID], nil
}

func (r *fakeSubscriptionRepo) GetTx(ctx context.Context, _ bun.Tx, userID snowflake.ID) (*models.Subscription, error) {
	return r.Get(ctx, userID)
}

func (r *fakeSubscriptionRepo) ExtendTx(_ context.Context, _ bun.Tx, userID snowflake.ID, days int, now time.Time) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := r.subs[userID]
	if sub == nil || !sub.ActiveAt(now) {
		sub = &models.Subscription{
			UserID:   userID,
			StartsAt: now,
			EndsAt:   now.AddDate(0, 0, days),
		}
	} else {
		sub.EndsAt = sub.EndsAt.AddDate(0, 0, days)
	}
	r.subs[userID] = sub
	return sub, nil
}

type trialKey struct {
	user    snowflake.ID
	feature models.Category
}

type fakeTrialRepo struct {
	mu     sync.Mutex
	trials map[trialKey]*models.FreeTrialAllowance
}

func newFakeTrialRepo() *fakeTrialRepo {
	return &fakeTrialRepo{trials: make(map[trialKey]*models.FreeTrialAllowance)}
}

func (r *fakeTrialRepo) Get(_ context.Context, userID snowflake.ID, feature models.Category) (*models.FreeTrialAllowance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trials[trialKey{userID, feature}], nil
}

func (r *fakeTrialRepo) GetTx(ctx context.Context, _ bun.Tx, userID snowflake.ID, feature models.Category) (*models.FreeTrialAllowance, error) {
	return r.Get(ctx, userID, feature)
}

func (r *fakeTrialRepo) ConsumeTx(_ context.Context, _ bun.Tx, userID snowflake.ID, feature models.Category, day string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := trialKey{userID, feature}
	allowance := r.trials[key]
	if allowance == nil {
		allowance = &models.FreeTrialAllowance{UserID: userID, Feature: feature}
		r.trials[key] = allowance
	}
	allowance.AttemptsUsed++
	allowance.LastDay = day
	return nil
}

type fakeReferralRepo struct {
	mu        sync.Mutex
	referrals map[snowflake.ID]*models.Referral
}

func newFakeReferralRepo() *fakeReferralRepo {
	return &fakeReferralRepo{referrals: make(map[snowflake.ID]*models.Referral)}
}

func (r *fakeReferralRepo) Register(_ context.Context, referrerID, referredID snowflake.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.referrals[referredID]; ok {
		return false, nil
	}
	r.referrals[referredID] = &models.Referral{ReferrerID: referrerID, ReferredID: referredID}
	return true, nil
}

func (r *fakeReferralRepo) ActivateTx(_ context.Context, _ bun.Tx, referredID snowflake.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ref, ok := r.referrals[referredID]; ok {
		ref.Activated = true
	}
	return nil
}

func (r *fakeReferralRepo) ClaimRewardTx(_ context.Context, _ bun.Tx, referrerID, referredID snowflake.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.referrals[referredID]
	if !ok || ref.ReferrerID != referrerID || !ref.Activated || ref.RewardClaimed {
		return false, nil
	}
	ref.RewardClaimed = true
	return true, nil
}

func (r *fakeReferralRepo) Stats(_ context.Context, referrerID snowflake.ID) (*repositories.ReferralStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &repositories.ReferralStats{}
	for _, ref := range r.referrals {
		if ref.ReferrerID != referrerID {
			continue
		}
		stats.Total++
		if ref.Activated {
			stats.Activated++
		}
	}
	return stats, nil
}

type milestoneKey struct {
	user     snowflake.ID
	category models.Category
	day      string
}

type fakeMilestoneRepo struct {
	mu      sync.Mutex
	awarded map[milestoneKey]bool
}

func newFakeMilestoneRepo() *fakeMilestoneRepo {
	return &fakeMilestoneRepo{awarded: make(map[milestoneKey]bool)}
}

func (r *fakeMilestoneRepo) TryAwardTx(_ context.Context, _ bun.Tx, userID snowflake.ID, category models.Category, day string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := milestoneKey{userID, category, day}
	if r.awarded[key] {
		return false, nil
	}
	r.awarded[key] = true
	return true, nil
}

// fakeMediaResolver builds deterministic URLs instead of presigning.
type fakeMediaResolver struct {
	base string
}

func (r fakeMediaResolver) MediaURL(_ context.Context, mediaKey string) (string, error) {
	return r.base + "/" + mediaKey, nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[snowflake.ID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[snowflake.ID]*models.User)}
}

func (r *fakeUserRepo) Ensure(_ context.Context, chatID snowflake.ID, username, fullName string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[chatID]; ok {
		user.Username = username
		user.FullName = fullName
		return user, nil
	}
	user := &models.User{ID: r.nextID, ChatID: chatID, Username: username, FullName: fullName}
	r.nextID++
	r.users[chatID] = user
	return user, nil
}

func (r *fakeUserRepo) GetByChatID(_ context.Context, chatID snowflake.ID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[chatID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "user"}
	}
	return user, nil
}
