package shopping

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-planner/internal/apperr"
	"meal-planner/internal/database"
	"meal-planner/internal/database/dbtest"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shared"
	"meal-planner/internal/week"
)

const testWeek = week.ID("2025-W20")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoCategorizer turns every line into its own item without merging anything.
type echoCategorizer struct {
	got []string
	err error
}

func (c *echoCategorizer) Categorize(_ context.Context, ingredients []string) ([]Item, shared.AgentMeta, error) {
	c.got = ingredients
	if c.err != nil {
		return nil, shared.AgentMeta{}, c.err
	}
	items := make([]Item, len(ingredients))
	for i, in := range ingredients {
		items[i] = Item{Name: in, Category: Otros, Checked: true}
	}
	return items, shared.AgentMeta{AgentName: AgentCategorizer}, nil
}

type seeded struct {
	db      *database.DB
	plans   *planner.PlanRepository
	recipes *recipe.Repository
	lists   *Repository
}

func seed(t *testing.T, meals planner.Meals, recipes ...recipe.Recipe) seeded {
	t.Helper()
	ctx := context.Background()
	db := dbtest.New(t)
	s := seeded{
		db:      db,
		plans:   planner.NewPlanRepository(db.SQL),
		recipes: recipe.NewRepository(db.SQL),
		lists:   NewRepository(db.SQL),
	}
	for _, r := range recipes {
		require.NoError(t, s.recipes.Save(ctx, r))
	}
	if meals != nil {
		require.NoError(t, s.plans.Replace(ctx, planner.WeeklyPlan{WeekID: testWeek, UserID: "ana", Portions: 2, Meals: meals}))
	}
	return s
}

func TestAggregator_Generate(t *testing.T) {
	ctx := context.Background()
	meals := planner.Meals{}
	meals.Set(planner.Tuesday, planner.Dinner, planner.MealSlot{RecipeID: "b"})
	meals.Set(planner.Monday, planner.Lunch, planner.MealSlot{RecipeID: "a"})
	meals.Set(planner.Monday, planner.Dinner, planner.MealSlot{RecipeID: "", Locked: true})
	meals.Set(planner.Friday, planner.Lunch, planner.MealSlot{RecipeID: "gone"})

	s := seed(t, meals,
		recipe.Recipe{ID: "a", Title: "A", Ingredients: []string{"2 cebollas", "1 ajo"}},
		recipe.Recipe{ID: "b", Title: "B", Ingredients: []string{"1 ajo", "500 g arroz"}},
	)
	cat := &echoCategorizer{}
	agg := NewAggregator(s.db, cat, nil, 4, discardLogger())

	res, err := agg.Generate(ctx, testWeek)
	require.NoError(t, err)

	// Canonical slot order, duplicates kept.
	assert.Equal(t, []string{"2 cebollas", "1 ajo", "1 ajo", "500 g arroz"}, cat.got)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.List.Items, 4)
	for _, it := range res.List.Items {
		assert.False(t, it.Checked)
	}

	stored, err := s.lists.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, res.List.Items, stored.Items)
	assert.Equal(t, "ana", stored.UserID)
	assert.False(t, stored.SyncedToBring)
}

func TestAggregator_ReplacesPreviousState(t *testing.T) {
	ctx := context.Background()
	meals := planner.Meals{}
	meals.Set(planner.Monday, planner.Lunch, planner.MealSlot{RecipeID: "a"})
	s := seed(t, meals, recipe.Recipe{ID: "a", Title: "A", Ingredients: []string{"sal", "pimienta"}})
	agg := NewAggregator(s.db, &echoCategorizer{}, nil, 4, discardLogger())

	_, err := agg.Generate(ctx, testWeek)
	require.NoError(t, err)
	_, err = s.lists.ToggleItem(ctx, testWeek, 0)
	require.NoError(t, err)
	require.NoError(t, s.lists.MarkSynced(ctx, testWeek, "bring-1"))

	_, err = agg.Generate(ctx, testWeek)
	require.NoError(t, err)

	stored, err := s.lists.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.False(t, stored.Items[0].Checked)
	assert.False(t, stored.SyncedToBring)
	assert.Empty(t, stored.BringListID)
}

func TestAggregator_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("NoPlan", func(t *testing.T) {
		s := seed(t, nil)
		_, err := NewAggregator(s.db, &echoCategorizer{}, nil, 4, discardLogger()).Generate(ctx, testWeek)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("NoIngredients", func(t *testing.T) {
		meals := planner.Meals{}
		meals.Set(planner.Monday, planner.Lunch, planner.MealSlot{RecipeID: "", Locked: true})
		meals.Set(planner.Monday, planner.Dinner, planner.MealSlot{RecipeID: "empty"})
		s := seed(t, meals, recipe.Recipe{ID: "empty", Title: "Vacía"})
		cat := &echoCategorizer{}

		_, err := NewAggregator(s.db, cat, nil, 4, discardLogger()).Generate(ctx, testWeek)
		assert.ErrorIs(t, err, apperr.ErrEmptyInput)
		assert.Nil(t, cat.got)
	})

	t.Run("CategorizerFailureKeepsOldList", func(t *testing.T) {
		meals := planner.Meals{}
		meals.Set(planner.Monday, planner.Lunch, planner.MealSlot{RecipeID: "a"})
		s := seed(t, meals, recipe.Recipe{ID: "a", Title: "A", Ingredients: []string{"sal"}})
		require.NoError(t, s.lists.Replace(ctx, List{WeekID: testWeek, UserID: "ana", Items: []Item{{Name: "leche", Category: Lacteos}}}))

		cat := &echoCategorizer{err: apperr.ErrUpstreamRateLimited}
		_, err := NewAggregator(s.db, cat, nil, 4, discardLogger()).Generate(ctx, testWeek)
		assert.ErrorIs(t, err, apperr.ErrUpstreamRateLimited)

		stored, err := s.lists.Get(ctx, testWeek)
		require.NoError(t, err)
		assert.Equal(t, "leche", stored.Items[0].Name)
	})
}

func TestRepository_ToggleItem(t *testing.T) {
	ctx := context.Background()
	s := seed(t, nil)

	_, err := s.lists.ToggleItem(ctx, testWeek, 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, s.lists.Replace(ctx, List{WeekID: testWeek, UserID: "ana", Items: []Item{
		{Name: "leche", Quantity: "1 l", Category: Lacteos},
		{Name: "manzana", Quantity: "6", Category: Frutas},
	}}))

	checked, err := s.lists.ToggleItem(ctx, testWeek, 1)
	require.NoError(t, err)
	assert.True(t, checked)

	l, err := s.lists.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.False(t, l.Items[0].Checked)
	assert.True(t, l.Items[1].Checked)
	assert.Equal(t, "manzana", l.Items[1].Name)

	checked, err = s.lists.ToggleItem(ctx, testWeek, 1)
	require.NoError(t, err)
	assert.False(t, checked)

	l, err = s.lists.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.False(t, l.Items[1].Checked)

	for _, idx := range []int{-1, 2, 99} {
		_, err := s.lists.ToggleItem(ctx, testWeek, idx)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, "index %d", idx)
	}
}

func TestRepository_MarkSynced(t *testing.T) {
	ctx := context.Background()
	s := seed(t, nil)

	assert.ErrorIs(t, s.lists.MarkSynced(ctx, testWeek, "x"), apperr.ErrNotFound)

	require.NoError(t, s.lists.Replace(ctx, List{WeekID: testWeek, UserID: "ana"}))
	require.NoError(t, s.lists.MarkSynced(ctx, testWeek, "list-1"))
	require.NoError(t, s.lists.MarkSynced(ctx, testWeek, "list-2"))

	l, err := s.lists.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.True(t, l.SyncedToBring)
	assert.Equal(t, "list-2", l.BringListID)
	assert.Empty(t, l.Items)
}

type stubExternal struct {
	items []Item
	label string
	err   error
}

func (s *stubExternal) Sync(_ context.Context, items []Item, label string) (string, error) {
	s.items = items
	s.label = label
	if s.err != nil {
		return "", s.err
	}
	return "bring-list", nil
}

func TestSyncer_Push(t *testing.T) {
	ctx := context.Background()
	s := seed(t, nil)
	require.NoError(t, s.lists.Replace(ctx, List{WeekID: testWeek, UserID: "ana", Items: []Item{
		{Name: "leche", Category: Lacteos, Checked: true},
		{Name: "pan", Category: Otros},
	}}))

	ext := &stubExternal{}
	listID, err := NewSyncer(s.lists, ext, "Casa", discardLogger()).Push(ctx, testWeek)
	require.NoError(t, err)
	assert.Equal(t, "bring-list", listID)
	assert.Equal(t, "Casa", ext.label)
	require.Len(t, ext.items, 1)
	assert.Equal(t, "pan", ext.items[0].Name)

	l, err := s.lists.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.True(t, l.SyncedToBring)
	assert.Equal(t, "bring-list", l.BringListID)
}

func TestSyncer_PushFailure(t *testing.T) {
	ctx := context.Background()
	s := seed(t, nil)
	require.NoError(t, s.lists.Replace(ctx, List{WeekID: testWeek, UserID: "ana", Items: []Item{{Name: "pan"}}}))

	ext := &stubExternal{err: errors.New("connection reset")}
	_, err := NewSyncer(s.lists, ext, "", discardLogger()).Push(ctx, testWeek)
	require.ErrorIs(t, err, apperr.ErrExternalSync)
	assert.True(t, strings.Contains(err.Error(), "connection reset"))

	l, err := s.lists.Get(ctx, testWeek)
	require.NoError(t, err)
	assert.False(t, l.SyncedToBring)

	_, err = NewSyncer(s.lists, ext, "", discardLogger()).Push(ctx, "2025-W21")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
