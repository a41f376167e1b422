package razvivashka

import (
	"math/rand"
	"time"

	"github.com/razvivashka/bot/razvivashka/database"
	"github.com/razvivashka/bot/razvivashka/database/repositories"
	"github.com/razvivashka/bot/razvivashka/media"
	"github.com/razvivashka/bot/razvivashka/progression"
)

func New(cfg Config, version string, commit string) *App {
	return &App{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
	}
}

// App wires the engine together: store, repositories, catalog cache, the
// entitlement gate and the progression orchestrator.
type App struct {
	Cfg     Config
	Version string
	Commit  string

	DB            *database.DB
	Location      *time.Location
	SpacesService *media.SpacesService

	UserRepository    repositories.UserRepository
	ContentRepository repositories.ContentRepository

	Catalog      *progression.Catalog
	Gate         *progression.Gate
	Orchestrator *progression.Orchestrator
}

// SetupEngine builds the progression stack on top of an already-connected
// database handle.
func (a *App) SetupEngine() error {
	loc, err := time.LoadLocation(a.Cfg.Engine.Timezone)
	if err != nil {
		return err
	}
	a.Location = loc

	bunDB := a.DB.BunDB()
	a.UserRepository = repositories.NewUserRepository(bunDB)
	a.ContentRepository = repositories.NewContentRepository(bunDB)

	clock := progression.NewSystemClock()
	a.Catalog = progression.NewCatalog(a.ContentRepository)
	a.Gate = progression.NewGate(
		repositories.NewSubscriptionRepository(bunDB),
		repositories.NewTrialRepository(bunDB),
		repositories.NewReferralRepository(bunDB),
		a.DB,
		clock,
		loc,
		a.Cfg.Engine.ReferralBonusDays,
	)

	selector := progression.NewSelector(
		repositories.NewAssignmentRepository(bunDB),
		a.Catalog,
		rand.NewSource(time.Now().UnixNano()),
	)
	tracker := progression.NewTracker(repositories.NewCompletionRepository(bunDB))

	params := progression.OrchestratorParams{
		Store:      a.DB,
		Users:      a.UserRepository,
		Catalog:    a.Catalog,
		Gate:       a.Gate,
		Selector:   selector,
		Tracker:    tracker,
		Tokens:     repositories.NewTokenRepository(bunDB),
		Milestones: repositories.NewMilestoneRepository(bunDB),
		Clock:      clock,
		Location:   loc,
		RevealCost: a.Cfg.Engine.AnswerRevealCost,
	}
	// Spaces is optional; a nil *SpacesService must not end up in the
	// interface field.
	if a.SpacesService != nil {
		params.Media = a.SpacesService
	}
	a.Orchestrator = progression.NewOrchestrator(params)
	return nil
}
