package planner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"meal-planner/internal/database"
	"meal-planner/internal/database/dbtest"
	"meal-planner/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubSuggester returns canned drafts and remembers what it was asked.
type stubSuggester struct {
	mu        sync.Mutex
	week      WeekDrafts
	weekErr   error
	draft     RecipeDraft
	recipeErr error

	weekCalls   int
	lastRecipe  RecipeRequest
	recipeCalls int
}

func (s *stubSuggester) SuggestWeek(_ context.Context, _ WeekRequest) (WeekSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weekCalls++
	meta := shared.AgentMeta{AgentName: AgentWeekPlanner, Usage: shared.TokenUsage{PromptTokens: 10, CompletionTokens: 20}}
	if s.weekErr != nil {
		return WeekSuggestion{Meta: meta}, s.weekErr
	}
	return WeekSuggestion{Drafts: s.week, Meta: meta}, nil
}

func (s *stubSuggester) SuggestRecipe(_ context.Context, req RecipeRequest) (RecipeSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipeCalls++
	s.lastRecipe = req
	if s.recipeErr != nil {
		return RecipeSuggestion{}, s.recipeErr
	}
	return RecipeSuggestion{Draft: s.draft, Meta: shared.AgentMeta{AgentName: AgentMealSwapper}}, nil
}

// fullWeek returns a draft for every slot titled "<day> <meal>".
func fullWeek() WeekDrafts {
	drafts := WeekDrafts{}
	for _, d := range Days {
		drafts[d] = map[MealType]RecipeDraft{}
		for _, m := range MealTypes {
			drafts[d][m] = RecipeDraft{
				Title:       fmt.Sprintf("%s %s", d, m),
				Ingredients: []string{"1 ingrediente de " + string(d)},
			}
		}
	}
	return drafts
}

// stubImages finds an image for every query except those containing skip.
type stubImages struct {
	skip string
}

func (s stubImages) Search(_ context.Context, query string) string {
	if s.skip != "" && strings.Contains(query, s.skip) {
		return ""
	}
	return "https://img.example/" + strings.ReplaceAll(query, " ", "-") + ".jpg"
}

type metaSink struct {
	mu    sync.Mutex
	metas []shared.AgentMeta
}

func (m *metaSink) RecordMeta(_ context.Context, meta shared.AgentMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metas = append(m.metas, meta)
	return nil
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	return dbtest.New(t)
}

func countRecipes(t *testing.T, db *database.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.SQL.QueryRow("SELECT COUNT(*) FROM recipes").Scan(&n))
	return n
}
