// Package app wires the planner's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"meal-planner/internal/bring"
	"meal-planner/internal/clipper"
	"meal-planner/internal/config"
	"meal-planner/internal/database"
	"meal-planner/internal/images"
	"meal-planner/internal/llm"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"
	"meal-planner/internal/preferences"
	"meal-planner/internal/recipe"
	"meal-planner/internal/rollover"
	"meal-planner/internal/server"
	"meal-planner/internal/shopping"
	"meal-planner/internal/telegram"
)

// App holds the application's dependencies.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *database.DB

	Recipes     *recipe.Repository
	Plans       *planner.PlanRepository
	Lists       *shopping.Repository
	Preferences *preferences.Repository
	Metrics     *metrics.Store
	Images      images.Searcher

	Generator  *planner.Generator
	Swapper    *planner.Swapper
	Aggregator *shopping.Aggregator
	Clipper    *clipper.Clipper
	Rollover   *rollover.Rollover

	// Syncer and Notifier are nil when their service is not configured.
	Syncer   *shopping.Syncer
	Notifier *telegram.Notifier

	closers []llm.Closer
}

// New opens the database and builds every component.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		Recipes:     recipe.NewRepository(db.SQL),
		Plans:       planner.NewPlanRepository(db.SQL),
		Lists:       shopping.NewRepository(db.SQL),
		Preferences: preferences.NewRepository(db.SQL),
		Metrics:     metrics.NewStore(db.SQL),
		Images:      images.New(cfg.Images.SearchURL, logger),
	}

	textGen, err := a.newTextGenerator(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	suggester := planner.NewLLMSuggester(textGen)
	a.Generator = planner.NewGenerator(db, suggester, a.Images, a.Metrics, cfg.Images.Concurrency, logger)
	a.Swapper = planner.NewSwapper(db, suggester, a.Images, a.Metrics, cfg.Images.Concurrency, logger)
	a.Aggregator = shopping.NewAggregator(db, shopping.NewLLMCategorizer(textGen), a.Metrics, cfg.Images.Concurrency, logger)
	a.Clipper = clipper.New(textGen, a.Recipes, a.Images, a.Metrics, logger)

	if cfg.BringEnabled() {
		client := bring.NewClient(bring.NewSession(cfg.Bring), logger)
		a.Syncer = shopping.NewSyncer(a.Lists, client, cfg.Bring.ListName, logger)
	}

	if cfg.TelegramEnabled() {
		notifier, err := telegram.NewNotifier(cfg.Telegram)
		if err != nil {
			logger.Warn("telegram reports disabled", "error", err)
		} else {
			a.Notifier = notifier
		}
	}

	deps := rollover.Deps{
		Plans:     a.Plans,
		Titles:    a.Recipes,
		Generator: a.Generator,
		Lists:     a.Aggregator,
		Status:    rollover.NewStatusRepository(db.SQL),
		Resolvers: rollover.DefaultResolvers(a.Preferences, a.Recipes, cfg.Rollover.SystemUserID),
	}
	// Optional collaborators stay nil interfaces when absent.
	if a.Syncer != nil {
		deps.Pusher = a.Syncer
	}
	if a.Notifier != nil {
		deps.Notifier = a.Notifier
	}
	a.Rollover = rollover.New(deps, cfg.Rollover, logger)

	return a, nil
}

func (a *App) newTextGenerator(ctx context.Context) (llm.TextGenerator, error) {
	var gen llm.TextGenerator
	switch a.Config.LLM.Provider {
	case config.ProviderGroq:
		gen = llm.NewGroqClient(a.Config)
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, a.Config)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		gen = client
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", a.Config.LLM.Provider)
	}
	return llm.WithTimeout(gen, a.Config.LLM.Timeout), nil
}

// Server builds the HTTP surface over the app's components.
func (a *App) Server() *server.Server {
	deps := server.Deps{
		Plans:      a.Plans,
		Lists:      a.Lists,
		Titles:     a.Recipes,
		Generator:  a.Generator,
		Swapper:    a.Swapper,
		Aggregator: a.Aggregator,
		Rollover:   a.Rollover,
	}
	if a.Syncer != nil {
		deps.Pusher = a.Syncer
	}
	return server.New(deps, a.Config, a.Logger)
}

// Close releases the AI clients and the database.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
