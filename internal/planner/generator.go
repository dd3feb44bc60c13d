package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meal-planner/internal/apperr"
	"meal-planner/internal/database"
	"meal-planner/internal/fanout"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shared"
	"meal-planner/internal/week"
)

// ImageSearcher finds a photo for a recipe. It returns "" when nothing was found
// or the lookup failed.
type ImageSearcher interface {
	Search(ctx context.Context, query string) string
}

// MetaRecorder stores the token usage of AI calls.
type MetaRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// GenerateRequest describes a full (re)generation of a week.
type GenerateRequest struct {
	WeekID       week.ID
	UserID       string
	Portions     int
	RecentTitles []string
	// PreserveLocked keeps locked slots of an existing plan instead of replacing them.
	PreserveLocked bool
	// CreateOnly refuses to overwrite an existing plan; Generate then fails with
	// ErrPlanExists and stores nothing.
	CreateOnly bool
}

// ErrPlanExists is returned by a CreateOnly generation when the week is taken.
var ErrPlanExists = errors.New("plan already exists")

// GenerateResult is the outcome of Generate.
type GenerateResult struct {
	Plan           *WeeklyPlan
	RecipesCreated int
	ImagesMissing  int
}

// Generator builds whole weekly plans.
type Generator struct {
	db               *database.DB
	plans            *PlanRepository
	recipes          *recipe.Repository
	suggester        Suggester
	images           ImageSearcher
	metrics          MetaRecorder
	imageConcurrency int
	logger           *slog.Logger

	newID func() string
	now   func() time.Time
}

// NewGenerator creates a new Generator. metrics may be nil.
func NewGenerator(
	db *database.DB,
	suggester Suggester,
	images ImageSearcher,
	metrics MetaRecorder,
	imageConcurrency int,
	logger *slog.Logger,
) *Generator {
	return &Generator{
		db:               db,
		plans:            NewPlanRepository(db.SQL),
		recipes:          recipe.NewRepository(db.SQL),
		suggester:        suggester,
		images:           images,
		metrics:          metrics,
		imageConcurrency: imageConcurrency,
		logger:           logger,
		newID:            uuid.NewString,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

type slotRecipe struct {
	day    Day
	meal   MealType
	recipe recipe.Recipe
}

// Generate asks for a whole week in one AI call, materializes every suggestion as a
// new recipe and stores the plan. Recipes and plan are written in one transaction;
// on any error nothing is persisted.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if _, err := week.Parse(string(req.WeekID)); err != nil {
		return nil, err
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("user is required: %w", apperr.ErrInvalidInput)
	}
	if req.Portions < 1 {
		return nil, fmt.Errorf("portions must be at least 1: %w", apperr.ErrInvalidInput)
	}

	meals := Meals{}
	if req.PreserveLocked {
		existing, err := g.plans.Get(ctx, req.WeekID)
		switch {
		case err == nil:
			for day, byMeal := range existing.Meals {
				for meal, slot := range byMeal {
					if slot.Locked {
						meals.Set(day, meal, slot)
					}
				}
			}
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}
	}

	suggestion, err := g.suggester.SuggestWeek(ctx, WeekRequest{
		Portions:     req.Portions,
		RecentTitles: req.RecentTitles,
	})
	g.recordMeta(ctx, suggestion.Meta)
	if err != nil {
		return nil, err
	}
	if suggestion.Drafts.Count() == 0 {
		return nil, fmt.Errorf("week suggestion has no usable meals: %w", apperr.ErrUpstreamMalformed)
	}

	now := g.now()
	var created []slotRecipe
	for _, day := range Days {
		for _, meal := range MealTypes {
			draft, ok := suggestion.Drafts[day][meal]
			if !ok {
				continue
			}
			if _, kept := meals.Slot(day, meal); kept {
				continue
			}
			created = append(created, slotRecipe{
				day:    day,
				meal:   meal,
				recipe: draft.ToRecipe(g.newID(), req.UserID, meal, req.Portions, now),
			})
		}
	}

	missing := g.attachImages(ctx, created)

	for _, c := range created {
		meals.Set(c.day, c.meal, MealSlot{RecipeID: c.recipe.ID})
	}
	plan := &WeeklyPlan{
		WeekID:      req.WeekID,
		UserID:      req.UserID,
		Portions:    req.Portions,
		Status:      StatusDraft,
		Meals:       meals,
		GeneratedAt: now,
	}

	err = g.db.InTx(ctx, func(tx *sql.Tx) error {
		recipes := g.recipes.WithTx(tx)
		for _, c := range created {
			if err := recipes.Save(ctx, c.recipe); err != nil {
				return err
			}
		}
		plans := g.plans.WithTx(tx)
		if req.CreateOnly {
			return plans.Create(ctx, *plan)
		}
		return plans.Replace(ctx, *plan)
	})
	if errors.Is(err, ErrPlanExists) {
		return nil, fmt.Errorf("week %s: %w", req.WeekID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store plan %s: %w", req.WeekID, err)
	}

	g.logger.Info("weekly plan generated",
		"week", req.WeekID,
		"user", req.UserID,
		"recipes", len(created),
		"slots", meals.Count(),
		"images_missing", missing,
	)

	return &GenerateResult{Plan: plan, RecipesCreated: len(created), ImagesMissing: missing}, nil
}

// attachImages looks up one photo per recipe concurrently and returns how many are
// still without image. Lookup failures never fail the generation.
func (g *Generator) attachImages(ctx context.Context, created []slotRecipe) int {
	if g.images == nil {
		return len(created)
	}

	found, failed := fanout.Settle(ctx, created, g.imageConcurrency, func(ctx context.Context, c slotRecipe) (string, error) {
		url := g.images.Search(ctx, c.recipe.SearchQuery())
		if url == "" {
			return "", errNoImage
		}
		return url, nil
	})
	for _, s := range found {
		created[s.Index].recipe.ImageURL = s.Value
	}
	for _, f := range failed {
		g.logger.Debug("no image for recipe", "title", f.Item.recipe.Title, "error", f.Err)
	}
	return len(failed)
}

var errNoImage = errors.New("no image found")

func (g *Generator) recordMeta(ctx context.Context, meta shared.AgentMeta) {
	recordMeta(ctx, g.metrics, g.logger, meta)
}

func recordMeta(ctx context.Context, rec MetaRecorder, logger *slog.Logger, meta shared.AgentMeta) {
	if rec == nil || meta.AgentName == "" {
		return
	}
	if err := rec.RecordMeta(ctx, meta); err != nil {
		logger.Warn("failed to record agent metrics", "agent", meta.AgentName, "error", err)
	}
}
