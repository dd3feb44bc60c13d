package planner

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"text/template"
	"time"

	"meal-planner/internal/llm"
	"meal-planner/internal/shared"
)

//go:embed week_prompt.md
var weekPrompt string

//go:embed swap_prompt.md
var swapPrompt string

var (
	weekTmpl = template.Must(template.New("Week").Parse(weekPrompt))
	swapTmpl = template.Must(template.New("Swap").Parse(swapPrompt))
)

// Agent names recorded with the token usage of each call.
const (
	AgentWeekPlanner = "WeekPlanner"
	AgentMealSwapper = "MealSwapper"
)

// proteinGramsPerPortion is half a pound.
const proteinGramsPerPortion = 227

// WeekRequest is what the AI collaborator needs to suggest a whole week.
type WeekRequest struct {
	Portions     int
	RecentTitles []string
}

// RecipeRequest is what the AI collaborator needs to suggest a single replacement.
type RecipeRequest struct {
	MealType MealType
	Portions int
	Exclude  []string
}

// WeekSuggestion is the decoded answer for a week.
type WeekSuggestion struct {
	Drafts WeekDrafts
	Meta   shared.AgentMeta
}

// RecipeSuggestion is the decoded answer for a single meal.
type RecipeSuggestion struct {
	Draft RecipeDraft
	Meta  shared.AgentMeta
}

// Suggester proposes recipes. Implementations return errors wrapping
// apperr.ErrUpstreamMalformed or apperr.ErrUpstreamRateLimited where applicable.
type Suggester interface {
	SuggestWeek(ctx context.Context, req WeekRequest) (WeekSuggestion, error)
	SuggestRecipe(ctx context.Context, req RecipeRequest) (RecipeSuggestion, error)
}

// LLMSuggester asks a text generator for recipes with embedded prompt templates.
type LLMSuggester struct {
	textGen llm.TextGenerator
}

// NewLLMSuggester creates a new LLMSuggester.
func NewLLMSuggester(textGen llm.TextGenerator) *LLMSuggester {
	return &LLMSuggester{textGen: textGen}
}

// SuggestWeek asks for every slot of the week in one call.
func (s *LLMSuggester) SuggestWeek(ctx context.Context, req WeekRequest) (WeekSuggestion, error) {
	start := time.Now()
	prompt, err := render(weekTmpl, struct {
		WeekRequest
		ProteinGrams int
		Days         []Day
		MealTypes    []MealType
	}{req, req.Portions * proteinGramsPerPortion, Days, MealTypes})
	if err != nil {
		return WeekSuggestion{}, err
	}

	resp, err := s.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return WeekSuggestion{}, fmt.Errorf("failed to generate week menu: %w", err)
	}
	meta := shared.Since(AgentWeekPlanner, resp.Usage, start)

	drafts, err := DecodeWeekPayload(resp.Content)
	if err != nil {
		return WeekSuggestion{Meta: meta}, err
	}
	return WeekSuggestion{Drafts: drafts, Meta: meta}, nil
}

// SuggestRecipe asks for one recipe that differs from req.Exclude.
func (s *LLMSuggester) SuggestRecipe(ctx context.Context, req RecipeRequest) (RecipeSuggestion, error) {
	start := time.Now()
	prompt, err := render(swapTmpl, struct {
		RecipeRequest
		ProteinGrams int
	}{req, req.Portions * proteinGramsPerPortion})
	if err != nil {
		return RecipeSuggestion{}, err
	}

	resp, err := s.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return RecipeSuggestion{}, fmt.Errorf("failed to generate replacement meal: %w", err)
	}
	meta := shared.Since(AgentMealSwapper, resp.Usage, start)

	draft, err := DecodeRecipePayload(resp.Content)
	if err != nil {
		return RecipeSuggestion{Meta: meta}, err
	}
	return RecipeSuggestion{Draft: draft, Meta: meta}, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
