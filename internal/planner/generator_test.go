package planner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-planner/internal/apperr"
	"meal-planner/internal/recipe"
	"meal-planner/internal/week"
)

const testWeek = week.ID("2025-W10")

func newTestGenerator(t *testing.T, s *stubSuggester, images ImageSearcher, metrics MetaRecorder) (*Generator, *PlanRepository, *recipe.Repository) {
	t.Helper()
	db := newTestDB(t)
	g := NewGenerator(db, s, images, metrics, 4, discardLogger())
	return g, NewPlanRepository(db.SQL), recipe.NewRepository(db.SQL)
}

func TestGenerator_FullWeek(t *testing.T) {
	ctx := context.Background()
	sink := &metaSink{}
	g, plans, recipes := newTestGenerator(t, &stubSuggester{week: fullWeek()}, stubImages{}, sink)

	res, err := g.Generate(ctx, GenerateRequest{WeekID: testWeek, UserID: "ana", Portions: 3})
	require.NoError(t, err)

	assert.Equal(t, 21, res.RecipesCreated)
	assert.Zero(t, res.ImagesMissing)

	stored, err := plans.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, 21, stored.Meals.Count())
	assert.Equal(t, 3, stored.Portions)
	assert.Equal(t, StatusDraft, stored.Status)
	assert.Equal(t, "ana", stored.UserID)

	slot, ok := stored.Meals.Slot(Thursday, Lunch)
	require.True(t, ok)
	assert.False(t, slot.Locked)

	r, err := recipes.Get(ctx, slot.RecipeID)
	require.NoError(t, err)
	assert.Equal(t, "thursday lunch", r.Title)
	assert.Equal(t, recipe.SourceAI, r.Source)
	assert.Equal(t, "lunch", r.MealType)
	assert.Equal(t, 3, r.Portions)
	assert.Equal(t, "https://img.example/thursday-lunch.jpg", r.ImageURL)

	require.Len(t, sink.metas, 1)
	assert.Equal(t, AgentWeekPlanner, sink.metas[0].AgentName)
}

func TestGenerator_MissingSlotsAreOmitted(t *testing.T) {
	ctx := context.Background()
	drafts := WeekDrafts{
		Monday: {Lunch: {Title: "Lentejas"}},
		Friday: {Dinner: {Title: "Pescado"}, Breakfast: {Title: "Tostadas"}},
	}
	g, plans, _ := newTestGenerator(t, &stubSuggester{week: drafts}, nil, nil)

	res, err := g.Generate(ctx, GenerateRequest{WeekID: testWeek, UserID: "ana", Portions: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.RecipesCreated)

	stored, err := plans.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Meals.Count())
	_, ok := stored.Meals.Slot(Monday, Breakfast)
	assert.False(t, ok)
	_, ok = stored.Meals[Tuesday]
	assert.False(t, ok)
}

func TestGenerator_RegenerationReplacesLockedSlots(t *testing.T) {
	ctx := context.Background()
	g, plans, _ := newTestGenerator(t, &stubSuggester{week: fullWeek()}, nil, nil)

	first, err := g.Generate(ctx, GenerateRequest{WeekID: testWeek, UserID: "ana", Portions: 2})
	require.NoError(t, err)
	lockedID := first.Plan.Meals[Monday][Dinner].RecipeID

	_, err = plans.ToggleLock(ctx, testWeek, Monday, Dinner)
	require.NoError(t, err)
	require.NoError(t, plans.ClearMeal(ctx, testWeek, Friday, Lunch))

	_, err = g.Generate(ctx, GenerateRequest{WeekID: testWeek, UserID: "ana", Portions: 2})
	require.NoError(t, err)

	stored, err := plans.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.NotEqual(t, lockedID, stored.Meals[Monday][Dinner].RecipeID)
	assert.False(t, stored.Meals[Monday][Dinner].Locked)
	assert.False(t, stored.Meals[Friday][Lunch].IsFree())
}

func TestGenerator_PreserveLocked(t *testing.T) {
	ctx := context.Background()
	g, plans, _ := newTestGenerator(t, &stubSuggester{week: fullWeek()}, nil, nil)

	first, err := g.Generate(ctx, GenerateRequest{WeekID: testWeek, UserID: "ana", Portions: 2})
	require.NoError(t, err)
	lockedID := first.Plan.Meals[Monday][Dinner].RecipeID

	_, err = plans.ToggleLock(ctx, testWeek, Monday, Dinner)
	require.NoError(t, err)
	require.NoError(t, plans.ClearMeal(ctx, testWeek, Friday, Lunch))

	res, err := g.Generate(ctx, GenerateRequest{WeekID: testWeek, UserID: "ana", Portions: 2, PreserveLocked: true})
	require.NoError(t, err)
	assert.Equal(t, 19, res.RecipesCreated)

	stored, err := plans.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, MealSlot{RecipeID: lockedID, Locked: true}, stored.Meals[Monday][Dinner])
	assert.Equal(t, MealSlot{RecipeID: "", Locked: true}, stored.Meals[Friday][Lunch])
	assert.Equal(t, 21, stored.Meals.Count())
}

func TestGenerator_MalformedPersistsNothing(t *testing.T) {
	ctx := context.Background()
	s := &stubSuggester{weekErr: fmt.Errorf("decode: %w", apperr.ErrUpstreamMalformed)}
	sink := &metaSink{}
	db := newTestDB(t)
	g := NewGenerator(db, s, nil, sink, 4, discardLogger())

	_, err := g.Generate(ctx, GenerateRequest{WeekID: testWeek, UserID: "ana", Portions: 2})
	require.ErrorIs(t, err, apperr.ErrUpstreamMalformed)

	exists, err := NewPlanRepository(db.SQL).Exists(ctx, testWeek)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Zero(t, countRecipes(t, db))
	// Usage is recorded even when the answer could not be used.
	assert.Len(t, sink.metas, 1)
}

func TestGenerator_ImageFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	g, _, recipes := newTestGenerator(t, &stubSuggester{week: fullWeek()}, stubImages{skip: "dinner"}, nil)

	res, err := g.Generate(ctx, GenerateRequest{WeekID: testWeek, UserID: "ana", Portions: 2})
	require.NoError(t, err)
	assert.Equal(t, 21, res.RecipesCreated)
	assert.Equal(t, 7, res.ImagesMissing)

	r, err := recipes.Get(ctx, res.Plan.Meals[Sunday][Dinner].RecipeID)
	require.NoError(t, err)
	assert.Empty(t, r.ImageURL)

	missing, err := recipes.MissingImages(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, missing, 7)
}

func TestGenerator_InvalidRequest(t *testing.T) {
	ctx := context.Background()
	s := &stubSuggester{week: fullWeek()}
	g, _, _ := newTestGenerator(t, s, nil, nil)

	tests := map[string]GenerateRequest{
		"bad week":      {WeekID: "2025-10", UserID: "ana", Portions: 2},
		"no user":       {WeekID: testWeek, Portions: 2},
		"zero portions": {WeekID: testWeek, UserID: "ana"},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := g.Generate(ctx, req)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
	assert.Zero(t, s.weekCalls)
}

func TestGenerator_NoUsableMeals(t *testing.T) {
	ctx := context.Background()
	for name, drafts := range map[string]WeekDrafts{
		"Empty":     {},
		"EmptyDays": {Monday: {}, Sunday: {}},
	} {
		t.Run(name, func(t *testing.T) {
			db := newTestDB(t)
			g := NewGenerator(db, &stubSuggester{week: drafts}, nil, nil, 4, discardLogger())

			_, err := g.Generate(ctx, GenerateRequest{WeekID: testWeek, UserID: "ana", Portions: 2})
			require.ErrorIs(t, err, apperr.ErrUpstreamMalformed)

			exists, err := NewPlanRepository(db.SQL).Exists(ctx, testWeek)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestGenerator_CreateOnly(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	plans := NewPlanRepository(db.SQL)
	s := &stubSuggester{week: fullWeek()}
	g := NewGenerator(db, s, nil, nil, 4, discardLogger())

	res, err := g.Generate(ctx, GenerateRequest{WeekID: testWeek, UserID: "ana", Portions: 2, CreateOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 21, res.RecipesCreated)

	first, err := plans.Get(ctx, testWeek)
	require.NoError(t, err)

	_, err = g.Generate(ctx, GenerateRequest{WeekID: testWeek, UserID: "luis", Portions: 4, CreateOnly: true})
	require.ErrorIs(t, err, ErrPlanExists)

	// The second run's recipes are rolled back with the plan.
	assert.Equal(t, 21, countRecipes(t, db))
	stored, err := plans.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, first.Meals, stored.Meals)
	assert.Equal(t, "ana", stored.UserID)
}
