package recipe_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-planner/internal/apperr"
	"meal-planner/internal/database/dbtest"
	"meal-planner/internal/recipe"
)

func TestRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := recipe.NewRepository(dbtest.New(t).SQL)

	want := recipe.Recipe{
		ID:          "r-1",
		UserID:      "u-1",
		Title:       "Pollo al limón",
		Ingredients: []string{"450 g pechuga de pollo", "2 limones"},
		Steps:       []string{"Marinar", "Hornear"},
		Macros:      &recipe.Macros{Calories: 420, Protein: 38},
		Source:      recipe.SourceAI,
		MealType:    "dinner",
		Portions:    2,
	}
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Ingredients, got.Ingredients)
	assert.Equal(t, want.Macros, got.Macros)
	assert.False(t, got.CreatedAt.IsZero())

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("MissingID", func(t *testing.T) {
		err := repo.Save(ctx, recipe.Recipe{Title: "x"})
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})
}

func TestRepository_SetImageURL(t *testing.T) {
	ctx := context.Background()
	repo := recipe.NewRepository(dbtest.New(t).SQL)
	require.NoError(t, repo.Save(ctx, recipe.Recipe{ID: "r-1", Title: "Sopa", Source: recipe.SourceAI}))

	missing, err := repo.MissingImages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)

	require.NoError(t, repo.SetImageURL(ctx, "r-1", "https://img.example/sopa.jpg"))

	got, err := repo.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/sopa.jpg", got.ImageURL)

	missing, err = repo.MissingImages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)

	assert.ErrorIs(t, repo.SetImageURL(ctx, "nope", "x"), apperr.ErrNotFound)
}

func TestRepository_RecentTitlesAndOwner(t *testing.T) {
	ctx := context.Background()
	repo := recipe.NewRepository(dbtest.New(t).SQL)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []recipe.Recipe{
		{ID: "a", UserID: "ana", Title: "Lentejas", Source: recipe.SourceAI, CreatedAt: base},
		{ID: "b", UserID: "ana", Title: "Tortilla", Source: recipe.SourceManual, CreatedAt: base.Add(time.Hour)},
		{ID: "c", UserID: "luis", Title: "Paella", Source: recipe.SourceAI, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "d", UserID: "ana", Title: "Gazpacho", Source: recipe.SourceAI, CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, r := range seed {
		require.NoError(t, repo.Save(ctx, r))
	}

	titles, err := repo.RecentTitles(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gazpacho", "Paella"}, titles)

	titles, err = repo.RecentTitles(ctx, "ana", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gazpacho", "Lentejas"}, titles)

	owner, err := repo.LatestOwner(ctx, recipe.SourceAI)
	require.NoError(t, err)
	assert.Equal(t, "ana", owner)

	owner, err = repo.LatestOwner(ctx, recipe.SourceImported)
	require.NoError(t, err)
	assert.Empty(t, owner)
}

func TestRepository_WithTxRollback(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t)
	repo := recipe.NewRepository(db.SQL)

	err := db.InTx(ctx, func(tx *sql.Tx) error {
		require.NoError(t, repo.WithTx(tx).Save(ctx, recipe.Recipe{ID: "tx", Title: "t", Source: recipe.SourceAI}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = repo.Get(ctx, "tx")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
