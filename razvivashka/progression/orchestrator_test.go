package progression

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type engineFixture struct {
	orch    *Orchestrator
	content *fakeContentRepo
	tokens  *fakeTokenRepo
	clock   *fakeClock
}

func newEngineFixture() *engineFixture {
	clock := newFakeClock(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	content := newFakeContentRepo()
	tokens := newFakeTokenRepo()
	store := &fakeStore{}
	catalog := NewCatalog(content)
	subs := newFakeSubscriptionRepo()

	gate := NewGate(subs, newFakeTrialRepo(), newFakeReferralRepo(), store, clock, time.UTC, 5)
	selector := NewSelector(newFakeAssignmentRepo(), catalog, rand.NewSource(42))
	tracker := NewTracker(newFakeCompletionRepo())

	orch := NewOrchestrator(OrchestratorParams{
		Store:      store,
		Users:      newFakeUserRepo(),
		Catalog:    catalog,
		Gate:       gate,
		Selector:   selector,
		Tracker:    tracker,
		Tokens:     tokens,
		Milestones: newFakeMilestoneRepo(),
		Media:      fakeMediaResolver{base: "https://cdn.test"},
		Clock:      clock,
		Location:   time.UTC,
		RevealCost: 1,
	})
	return &engineFixture{orch: orch, content: content, tokens: tokens, clock: clock}
}

func (f *engineFixture) balance(t *testing.T, userID snowflake.ID, tokenType models.TokenType) int64 {
	t.Helper()
	balances, err := f.tokens.Balances(context.Background(), userID)
	require.NoError(t, err)
	return balances[tokenType]
}

func TestDailyAssignmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	seedItems(f.content, models.CategoryRiddle, 10)
	userID := snowflake.ID(100)

	assignment, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryRiddle)
	require.NoError(t, err)
	assert.Equal(t, 5, assignment.Quota)
	assert.Len(t, assignment.Items, 5)
	assert.Equal(t, 0, assignment.CompletedCount)
	for _, ai := range assignment.Items {
		assert.Equal(t, models.StatusNotAttempted, ai.Status)
	}

	// Same day, same set.
	again, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryRiddle)
	require.NoError(t, err)
	for i := range assignment.Items {
		assert.Equal(t, assignment.Items[i].Item.ID, again.Items[i].Item.ID)
	}
}

func TestDailyAssignmentResolvesMediaURLs(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	withMedia := f.content.add(&models.ContentItem{
		Category: models.CategoryRiddle,
		Prompt:   "Что нарисовано на картинке?",
		Answers:  []string{"сова"},
		MediaKey: "riddles/owl.png",
	})
	seedItems(f.content, models.CategoryRiddle, 4)

	assignment, err := f.orch.GetDailyAssignment(ctx, snowflake.ID(100), models.CategoryRiddle)
	require.NoError(t, err)
	require.Len(t, assignment.Items, 5)

	for _, ai := range assignment.Items {
		if ai.Item.ID == withMedia.ID {
			assert.Equal(t, "https://cdn.test/riddles/owl.png", ai.MediaURL)
		} else {
			assert.Empty(t, ai.MediaURL, "items without media must not carry a URL")
		}
	}
}

func TestSequentialViewResolvesMediaURL(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	f.content.add(&models.ContentItem{
		Category: models.CategoryNeuroExercise,
		Prompt:   "exercise one",
		MediaKey: "neuro/001.mp4",
		Position: 0,
	})
	f.content.add(&models.ContentItem{
		Category: models.CategoryNeuroExercise,
		Prompt:   "exercise two",
		MediaKey: "neuro/002.mp4",
		Position: 1,
	})
	userID := snowflake.ID(100)
	_, err := f.orch.GrantSubscription(ctx, userID, 30)
	require.NoError(t, err)

	view, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryNeuroExercise)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "https://cdn.test/neuro/001.mp4", view.Items[0].MediaURL)

	next, err := f.orch.NextItem(ctx, userID, models.CategoryNeuroExercise)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/neuro/002.mp4", next.MediaURL)
}

func TestDailyAssignmentRotatesAtDayBoundary(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	seedItems(f.content, models.CategoryRiddle, 10)
	userID := snowflake.ID(100)

	first, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryRiddle)
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)

	second, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryRiddle)
	require.NoError(t, err)
	assert.NotEqual(t, first.Day, second.Day)
	assert.Len(t, second.Items, 5)
	for _, ai := range second.Items {
		assert.Equal(t, models.StatusNotAttempted, ai.Status, "yesterday's progress must not leak into the new day")
	}
}

func TestDailyAssignmentInsufficientCatalog(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	seedItems(f.content, models.CategoryRiddle, 2)

	assignment, err := f.orch.GetDailyAssignment(ctx, snowflake.ID(100), models.CategoryRiddle)
	assert.ErrorIs(t, err, ErrInsufficientCatalog)
	require.NotNil(t, assignment)
	assert.Empty(t, assignment.Items)
}

func TestDailyAssignmentDeniedWithoutSubscription(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	seedItems(f.content, models.CategoryPuzzle, 5)

	_, err := f.orch.GetDailyAssignment(ctx, snowflake.ID(100), models.CategoryPuzzle)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestMarkItemCompleteAwardsBaseTokenOnce(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	seedItems(f.content, models.CategoryRiddle, 10)
	userID := snowflake.ID(100)

	assignment, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryRiddle)
	require.NoError(t, err)
	itemID := assignment.Items[0].Item.ID

	result, err := f.orch.MarkItemComplete(ctx, userID, itemID, 1, models.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, result.Outcome)
	assert.True(t, result.ItemDone)
	assert.Equal(t, models.TokenSage, result.AwardedToken)
	assert.EqualValues(t, 1, f.balance(t, userID, models.TokenSage))

	// Re-submitting the same item awards nothing.
	result, err = f.orch.MarkItemComplete(ctx, userID, itemID, 1, models.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyDone, result.Outcome)
	assert.EqualValues(t, 1, f.balance(t, userID, models.TokenSage))
}

func TestMarkItemCompleteRejectsUnassignedItem(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	seedItems(f.content, models.CategoryRiddle, 10)
	userID := snowflake.ID(100)

	assignment, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryRiddle)
	require.NoError(t, err)

	assigned := make(map[int64]bool)
	for _, ai := range assignment.Items {
		assigned[ai.Item.ID] = true
	}
	var outsider int64
	for id := int64(1); id <= 10; id++ {
		if !assigned[id] {
			outsider = id
			break
		}
	}
	require.NotZero(t, outsider)

	result, err := f.orch.MarkItemComplete(ctx, userID, outsider, 1, models.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotAssigned, result.Outcome)
	assert.EqualValues(t, 0, f.balance(t, userID, models.TokenSage))
}

func TestMilestoneAwardedOnFullQuota(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	seedItems(f.content, models.CategoryRiddle, 10)
	userID := snowflake.ID(100)

	assignment, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryRiddle)
	require.NoError(t, err)

	for i, ai := range assignment.Items {
		result, err := f.orch.MarkItemComplete(ctx, userID, ai.Item.ID, 1, models.StatusDone)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDone, result.Outcome)
		if i < len(assignment.Items)-1 {
			assert.False(t, result.MilestoneAwarded)
		} else {
			assert.True(t, result.MilestoneAwarded, "finishing the whole quota earns the champion token")
		}
	}

	assert.EqualValues(t, 5, f.balance(t, userID, models.TokenSage))
	assert.EqualValues(t, 1, f.balance(t, userID, models.TokenChampion))

	view, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryRiddle)
	require.NoError(t, err)
	assert.Equal(t, 5, view.CompletedCount)
}

func TestMultiPartItemCompletesWhenAllPartsDone(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	for i := 0; i < 3; i++ {
		f.content.add(&models.ContentItem{
			Category: models.CategoryPuzzle,
			Prompt:   "rebus",
			Answers:  []string{"первый", "второй", "третий"},
			Parts:    3,
			Position: i,
		})
	}
	userID := snowflake.ID(100)
	_, err := f.orch.GrantSubscription(ctx, userID, 30)
	require.NoError(t, err)

	assignment, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryPuzzle)
	require.NoError(t, err)
	itemID := assignment.Items[0].Item.ID

	for part := 1; part <= 2; part++ {
		result, err := f.orch.MarkItemComplete(ctx, userID, itemID, part, models.StatusDone)
		require.NoError(t, err)
		assert.Equal(t, OutcomeProgressed, result.Outcome, "part %d alone must not finish the item", part)
		assert.False(t, result.ItemDone)
	}
	assert.EqualValues(t, 0, f.balance(t, userID, models.TokenPuzzleMaster))

	result, err := f.orch.MarkItemComplete(ctx, userID, itemID, 3, models.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, result.Outcome)
	assert.True(t, result.ItemDone)
	assert.EqualValues(t, 1, f.balance(t, userID, models.TokenPuzzleMaster))

	view, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryPuzzle)
	require.NoError(t, err)
	assert.Equal(t, 1, view.CompletedCount)
}

func TestSubmitAnswerVerdicts(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	item := f.content.add(&models.ContentItem{
		Category: models.CategoryRiddle,
		Prompt:   "Зимой и летом одним цветом",
		Answers:  []string{"ёлка", "елка"},
	})
	seedItems(f.content, models.CategoryRiddle, 9)
	userID := snowflake.ID(100)

	assignment, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryRiddle)
	require.NoError(t, err)

	inAssignment := false
	for _, ai := range assignment.Items {
		if ai.Item.ID == item.ID {
			inAssignment = true
		}
	}

	wrong, err := f.orch.SubmitAnswer(ctx, userID, item.ID, 1, "кактус")
	require.NoError(t, err)
	assert.Equal(t, VerdictWrong, wrong.Verdict)
	assert.Nil(t, wrong.Completion)

	close_, err := f.orch.SubmitAnswer(ctx, userID, item.ID, 1, "елк")
	require.NoError(t, err)
	assert.Equal(t, VerdictClose, close_.Verdict)
	assert.Nil(t, close_.Completion, "a near miss must not complete the item")

	correct, err := f.orch.SubmitAnswer(ctx, userID, item.ID, 1, " Ёлка! ")
	require.NoError(t, err)
	assert.Equal(t, VerdictCorrect, correct.Verdict)
	require.NotNil(t, correct.Completion)
	if inAssignment {
		assert.Equal(t, OutcomeDone, correct.Completion.Outcome)
	} else {
		assert.Equal(t, OutcomeNotAssigned, correct.Completion.Outcome)
	}
}

func TestRevealAnswersSpendsAccessKey(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	item := f.content.add(&models.ContentItem{
		Category: models.CategoryRiddle,
		Prompt:   "riddle",
		Answers:  []string{"ответ"},
	})
	userID := snowflake.ID(100)

	_, err := f.orch.RevealAnswers(ctx, userID, item.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	require.NoError(t, f.tokens.AwardTx(ctx, bun.Tx{}, userID, models.TokenAccessKey, 1))

	answers, err := f.orch.RevealAnswers(ctx, userID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ответ"}, answers)
	assert.EqualValues(t, 0, f.balance(t, userID, models.TokenAccessKey))
}

func TestSequentialNavigation(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	items := seedItems(f.content, models.CategoryNeuroExercise, 3)
	userID := snowflake.ID(100)
	_, err := f.orch.GrantSubscription(ctx, userID, 30)
	require.NoError(t, err)

	view, err := f.orch.GetDailyAssignment(ctx, userID, models.CategoryNeuroExercise)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, items[0].ID, view.Items[0].Item.ID)
	assert.Equal(t, 1, view.Quota)

	next, err := f.orch.NextItem(ctx, userID, models.CategoryNeuroExercise)
	require.NoError(t, err)
	assert.Equal(t, items[1].ID, next.Item.ID)

	prev, err := f.orch.PreviousItem(ctx, userID, models.CategoryNeuroExercise)
	require.NoError(t, err)
	assert.Equal(t, items[0].ID, prev.Item.ID)

	_, err = f.orch.PreviousItem(ctx, userID, models.CategoryNeuroExercise)
	assert.ErrorIs(t, err, ErrNoPreviousItem)
}

func TestSequentialCompletionAwardsToken(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	items := seedItems(f.content, models.CategoryNeuroExercise, 3)
	userID := snowflake.ID(100)
	_, err := f.orch.GrantSubscription(ctx, userID, 30)
	require.NoError(t, err)

	result, err := f.orch.MarkItemComplete(ctx, userID, items[0].ID, 1, models.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, result.Outcome)
	assert.Equal(t, models.TokenBrainiac, result.AwardedToken)
	assert.False(t, result.MilestoneAwarded, "sequential categories carry no daily milestone")

	// The item under the cursor is the only markable one.
	result, err = f.orch.MarkItemComplete(ctx, userID, items[2].ID, 1, models.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotAssigned, result.Outcome)
}

func TestRegisterUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture()
	chatID := snowflake.ID(777)

	first, err := f.orch.RegisterUser(ctx, chatID, "masha", "Мария")
	require.NoError(t, err)

	second, err := f.orch.RegisterUser(ctx, chatID, "masha", "Мария И.")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Мария И.", second.FullName)
}
