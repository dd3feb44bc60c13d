package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"meal-planner/internal/fanout"
	"meal-planner/internal/recipe"
)

// RecipeImages lists recipes without a photo and stores the ones found later.
type RecipeImages interface {
	MissingImages(ctx context.Context, limit int) ([]recipe.Recipe, error)
	SetImageURL(ctx context.Context, id, url string) error
}

// BackfillResult counts the outcome of one backfill run.
type BackfillResult struct {
	Checked int
	Found   int
}

var errNotFound = errors.New("no image found")

// Backfill retries the lookup for up to limit recipes that still have no image.
// A failed lookup leaves the recipe untouched for a later run.
func Backfill(ctx context.Context, store RecipeImages, searcher Searcher, limit, concurrency int, logger *slog.Logger) (BackfillResult, error) {
	recipes, err := store.MissingImages(ctx, limit)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("failed to list recipes without image: %w", err)
	}

	found, failed := fanout.Settle(ctx, recipes, concurrency, func(ctx context.Context, rec recipe.Recipe) (string, error) {
		url := searcher.Search(ctx, rec.SearchQuery())
		if url == "" {
			return "", errNotFound
		}
		return url, store.SetImageURL(ctx, rec.ID, url)
	})
	for _, f := range failed {
		if !errors.Is(f.Err, errNotFound) {
			logger.Warn("failed to store recipe image", "recipe", f.Item.ID, "error", f.Err)
		}
	}

	return BackfillResult{Checked: len(recipes), Found: len(found)}, nil
}
