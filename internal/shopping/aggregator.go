package shopping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"meal-planner/internal/apperr"
	"meal-planner/internal/database"
	"meal-planner/internal/fanout"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/week"
)

// GenerateResult is the outcome of Aggregator.Generate.
type GenerateResult struct {
	List *List
	// Skipped counts recipes of the plan that could not be read.
	Skipped int
}

// Aggregator builds the shopping list of a week from the recipes of its plan.
type Aggregator struct {
	plans       *planner.PlanRepository
	recipes     *recipe.Repository
	lists       *Repository
	categorizer Categorizer
	metrics     planner.MetaRecorder
	concurrency int
	logger      *slog.Logger

	now func() time.Time
}

// NewAggregator creates a new Aggregator. metrics may be nil.
func NewAggregator(
	db *database.DB,
	categorizer Categorizer,
	metrics planner.MetaRecorder,
	concurrency int,
	logger *slog.Logger,
) *Aggregator {
	return &Aggregator{
		plans:       planner.NewPlanRepository(db.SQL),
		recipes:     recipe.NewRepository(db.SQL),
		lists:       NewRepository(db.SQL),
		categorizer: categorizer,
		metrics:     metrics,
		concurrency: concurrency,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Generate replaces the stored list of weekID with a freshly consolidated one.
// Checked state and sync state of the previous list are discarded.
func (a *Aggregator) Generate(ctx context.Context, weekID week.ID) (*GenerateResult, error) {
	plan, err := a.plans.Get(ctx, weekID)
	if err != nil {
		return nil, err
	}

	ingredients, skipped := a.collectIngredients(ctx, plan)
	if len(ingredients) == 0 {
		return nil, fmt.Errorf("plan %s has no ingredients: %w", weekID, apperr.ErrEmptyInput)
	}

	items, meta, err := a.categorizer.Categorize(ctx, ingredients)
	if a.metrics != nil && meta.AgentName != "" {
		if rerr := a.metrics.RecordMeta(ctx, meta); rerr != nil {
			a.logger.Warn("failed to record agent metrics", "agent", meta.AgentName, "error", rerr)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("categorizer returned no items: %w", apperr.ErrUpstreamMalformed)
	}
	for i := range items {
		items[i].Checked = false
	}

	list := &List{
		WeekID:      weekID,
		UserID:      plan.UserID,
		Items:       items,
		GeneratedAt: a.now(),
	}
	if err := a.lists.Replace(ctx, *list); err != nil {
		return nil, err
	}

	a.logger.Info("shopping list generated",
		"week", weekID,
		"ingredients", len(ingredients),
		"items", len(items),
		"skipped", skipped,
	)
	return &GenerateResult{List: list, Skipped: skipped}, nil
}

// collectIngredients concatenates the ingredients of every recipe of the plan in
// slot order. Duplicates are kept for the categorizer to merge.
func (a *Aggregator) collectIngredients(ctx context.Context, plan *planner.WeeklyPlan) ([]string, int) {
	found, failed := fanout.Settle(ctx, plan.Meals.RecipeIDs(), a.concurrency, func(ctx context.Context, id string) ([]string, error) {
		r, err := a.recipes.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return r.Ingredients, nil
	})
	for _, f := range failed {
		a.logger.Warn("skipping recipe in shopping list", "recipe", f.Item, "error", f.Err)
	}

	var ingredients []string
	for _, s := range found {
		ingredients = append(ingredients, s.Value...)
	}
	return ingredients, len(failed)
}
