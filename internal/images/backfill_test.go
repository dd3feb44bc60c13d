package images

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-planner/internal/database/dbtest"
	"meal-planner/internal/recipe"
)

type byTitle map[string]string

func (b byTitle) Search(_ context.Context, query string) string { return b[query] }

func TestBackfill(t *testing.T) {
	db := dbtest.New(t)
	repo := recipe.NewRepository(db.SQL)
	ctx := context.Background()

	now := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	for i, title := range []string{"Lentejas", "Paella", "Gazpacho"} {
		require.NoError(t, repo.Save(ctx, recipe.Recipe{
			ID:        title,
			Title:     title,
			Source:    recipe.SourceAI,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Save(ctx, recipe.Recipe{ID: "tortilla", Title: "Tortilla", ImageURL: "https://img/t.jpg", CreatedAt: now}))

	searcher := byTitle{
		recipe.Recipe{Title: "Lentejas"}.SearchQuery(): "https://img/l.jpg",
		recipe.Recipe{Title: "Gazpacho"}.SearchQuery(): "https://img/g.jpg",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	res, err := Backfill(ctx, repo, searcher, 10, 2, logger)
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{Checked: 3, Found: 2}, res)

	got, err := repo.Get(ctx, "Lentejas")
	require.NoError(t, err)
	assert.Equal(t, "https://img/l.jpg", got.ImageURL)

	missing, err := repo.MissingImages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "Paella", missing[0].ID)

	res, err = Backfill(ctx, repo, Noop{}, 10, 2, logger)
	require.NoError(t, err)
	assert.Equal(t, BackfillResult{Checked: 1}, res)
}
