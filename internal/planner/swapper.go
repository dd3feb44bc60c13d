package planner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"meal-planner/internal/apperr"
	"meal-planner/internal/database"
	"meal-planner/internal/fanout"
	"meal-planner/internal/recipe"
	"meal-planner/internal/week"
)

// SwapRequest identifies the slot to replace.
type SwapRequest struct {
	WeekID   week.ID
	Day      Day
	MealType MealType
	// CurrentTitle is an optional hint added to the exclusion list.
	CurrentTitle string
}

// SwapResult is the outcome of Swap.
type SwapResult struct {
	RecipeID string
	Title    string
}

// Swapper replaces a single slot of an existing plan.
type Swapper struct {
	db          *database.DB
	plans       *PlanRepository
	recipes     *recipe.Repository
	suggester   Suggester
	images      ImageSearcher
	metrics     MetaRecorder
	concurrency int
	logger      *slog.Logger

	newID func() string
	now   func() time.Time
}

// NewSwapper creates a new Swapper. images and metrics may be nil.
func NewSwapper(
	db *database.DB,
	suggester Suggester,
	images ImageSearcher,
	metrics MetaRecorder,
	concurrency int,
	logger *slog.Logger,
) *Swapper {
	return &Swapper{
		db:          db,
		plans:       NewPlanRepository(db.SQL),
		recipes:     recipe.NewRepository(db.SQL),
		suggester:   suggester,
		images:      images,
		metrics:     metrics,
		concurrency: concurrency,
		logger:      logger,
		newID:       uuid.NewString,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Swap asks for a recipe that differs from every recipe already in the plan and
// writes it into the slot, unlocked. Only that slot changes. A locked free meal is
// refused; it has to be unlocked first.
func (s *Swapper) Swap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	day, err := ParseDay(string(req.Day))
	if err != nil {
		return nil, err
	}
	meal, err := ParseMealType(string(req.MealType))
	if err != nil {
		return nil, err
	}

	plan, err := s.plans.Get(ctx, req.WeekID)
	if err != nil {
		return nil, err
	}
	if slot, ok := plan.Meals.Slot(day, meal); ok && slot.Locked && slot.IsFree() {
		return nil, fmt.Errorf("%s %s is a locked free meal: %w", day, meal, apperr.ErrInvalidInput)
	}

	portions := plan.Portions
	if portions < 1 {
		portions = DefaultPortions
	}

	suggestion, err := s.suggester.SuggestRecipe(ctx, RecipeRequest{
		MealType: meal,
		Portions: portions,
		Exclude:  s.excludedTitles(ctx, plan, req.CurrentTitle),
	})
	recordMeta(ctx, s.metrics, s.logger, suggestion.Meta)
	if err != nil {
		return nil, err
	}

	rec := suggestion.Draft.ToRecipe(s.newID(), plan.UserID, meal, portions, s.now())
	if s.images != nil {
		rec.ImageURL = s.images.Search(ctx, rec.SearchQuery())
	}

	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.recipes.WithTx(tx).Save(ctx, rec); err != nil {
			return err
		}
		return s.plans.WithTx(tx).SetSlot(ctx, req.WeekID, day, meal, MealSlot{RecipeID: rec.ID})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to swap %s %s: %w", day, meal, err)
	}

	s.logger.Info("meal swapped", "week", req.WeekID, "day", day, "meal", meal, "recipe", rec.ID)
	return &SwapResult{RecipeID: rec.ID, Title: rec.Title}, nil
}

// excludedTitles collects the titles of every recipe in the plan plus the hint.
// Recipes that cannot be fetched are skipped.
func (s *Swapper) excludedTitles(ctx context.Context, plan *WeeklyPlan, hint string) []string {
	found, failed := fanout.Settle(ctx, plan.Meals.RecipeIDs(), s.concurrency, func(ctx context.Context, id string) (string, error) {
		r, err := s.recipes.Get(ctx, id)
		if err != nil {
			return "", err
		}
		return r.Title, nil
	})
	if len(failed) > 0 {
		s.logger.Warn("some plan recipes could not be read", "week", plan.WeekID, "count", len(failed))
	}

	seen := make(map[string]bool, len(found)+1)
	titles := make([]string, 0, len(found)+1)
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			return
		}
		seen[strings.ToLower(t)] = true
		titles = append(titles, t)
	}
	for _, f := range found {
		add(f.Value)
	}
	add(hint)
	return titles
}
