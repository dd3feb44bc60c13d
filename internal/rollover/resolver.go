package rollover

import (
	"context"

	"meal-planner/internal/preferences"
	"meal-planner/internal/recipe"
)

// UserResolver names the user a scheduled plan is generated for. An empty id
// with a nil error means the strategy has no answer and the next one is tried.
type UserResolver interface {
	Name() string
	Resolve(ctx context.Context) (string, error)
}

// PreferencesResolver picks the first user that saved preferences.
type PreferencesResolver struct {
	Prefs *preferences.Repository
}

func (PreferencesResolver) Name() string { return "preferences" }

func (r PreferencesResolver) Resolve(ctx context.Context) (string, error) {
	return r.Prefs.FirstUserID(ctx)
}

// RecipeOwnerResolver picks the owner of the newest AI recipe.
type RecipeOwnerResolver struct {
	Recipes *recipe.Repository
}

func (RecipeOwnerResolver) Name() string { return "recipe-owner" }

func (r RecipeOwnerResolver) Resolve(ctx context.Context) (string, error) {
	return r.Recipes.LatestOwner(ctx, recipe.SourceAI)
}

// StaticResolver always answers with UserID.
type StaticResolver struct {
	UserID string
}

func (StaticResolver) Name() string { return "static" }

func (r StaticResolver) Resolve(context.Context) (string, error) {
	return r.UserID, nil
}

// DefaultResolvers is the lookup order used by the scheduled job.
func DefaultResolvers(prefs *preferences.Repository, recipes *recipe.Repository, fallback string) []UserResolver {
	return []UserResolver{
		PreferencesResolver{Prefs: prefs},
		RecipeOwnerResolver{Recipes: recipes},
		StaticResolver{UserID: fallback},
	}
}
