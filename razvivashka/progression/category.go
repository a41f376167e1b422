package progression

import "github.com/razvivashka/bot/razvivashka/database/models"

// AccessClass determines which entitlement rule gates a category when no
// subscription is active.
type AccessClass int

const (
	// AccessFree: open to everyone.
	AccessFree AccessClass = iota
	// AccessFirstDayFree: free only on the user's first calendar day of use.
	AccessFirstDayFree
	// AccessLifetimeTrial: one free attempt, ever.
	AccessLifetimeTrial
	// AccessSubscription: requires an active subscription unconditionally.
	AccessSubscription
)

// CategoryInfo is the per-category engine configuration: the daily quota,
// the base reward token, the gating rule, and whether the category rotates
// randomly or advances through an ordered series.
type CategoryInfo struct {
	Quota      int
	Token      models.TokenType
	Access     AccessClass
	Sequential bool
}

var categoryInfo = map[models.Category]CategoryInfo{
	models.CategoryDailyTask:         {Quota: 5, Token: models.TokenDayStar, Access: AccessFirstDayFree},
	models.CategoryRiddle:            {Quota: 5, Token: models.TokenSage, Access: AccessFree},
	models.CategoryPuzzle:            {Quota: 3, Token: models.TokenPuzzleMaster, Access: AccessSubscription},
	models.CategoryTongueTwister:     {Quota: 3, Token: models.TokenTalker, Access: AccessSubscription},
	models.CategoryNeuroExercise:     {Token: models.TokenBrainiac, Access: AccessSubscription, Sequential: true},
	models.CategoryArticularExercise: {Token: models.TokenGymnast, Access: AccessSubscription, Sequential: true},
	models.CategoryCreativity:        {Token: models.TokenDiamond, Access: AccessLifetimeTrial, Sequential: true},
}

// Info returns the configuration for a category.
func Info(category models.Category) (CategoryInfo, bool) {
	info, ok := categoryInfo[category]
	return info, ok
}

// HasMilestone reports whether finishing the whole daily quota of the
// category earns the champion bonus. Sequential categories have no daily
// quota and therefore no milestone.
func (ci CategoryInfo) HasMilestone() bool {
	return !ci.Sequential && ci.Quota > 0
}
