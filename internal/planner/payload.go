package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"meal-planner/internal/apperr"
	"meal-planner/internal/llm"
	"meal-planner/internal/recipe"
)

const untitled = "Sin título"

// RecipeDraft is a recipe as suggested by the AI collaborator, before it gets an id.
type RecipeDraft struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Diets       []string       `json:"diets"`
	Ingredients []string       `json:"ingredients"`
	Steps       []string       `json:"steps"`
	Macros      *recipe.Macros `json:"macros"`
	ImageQuery  string         `json:"imageQuery"`
}

// ToRecipe materializes the draft as a new AI recipe.
func (d RecipeDraft) ToRecipe(id, userID string, meal MealType, portions int, now time.Time) recipe.Recipe {
	return recipe.Recipe{
		ID:          id,
		UserID:      userID,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Diets:       d.Diets,
		Ingredients: d.Ingredients,
		Steps:       d.Steps,
		ImageQuery:  d.ImageQuery,
		Macros:      d.Macros,
		Source:      recipe.SourceAI,
		MealType:    string(meal),
		Portions:    portions,
		CreatedAt:   now,
	}
}

func (d *RecipeDraft) normalize() {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		d.Title = untitled
	}
	d.Ingredients = compact(d.Ingredients)
	d.Steps = compact(d.Steps)
	if d.Diets == nil {
		d.Diets = []string{}
	}
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// WeekDrafts holds the suggested recipes of a week keyed like Meals.
type WeekDrafts map[Day]map[MealType]RecipeDraft

// Count returns the number of drafts.
func (w WeekDrafts) Count() int {
	n := 0
	for _, byMeal := range w {
		n += len(byMeal)
	}
	return n
}

// DecodeWeekPayload turns the raw AI answer for a whole week into drafts.
// The top-level "meals" object is required. Unknown day or meal keys and slots that
// are not objects are dropped; missing slots stay missing.
func DecodeWeekPayload(raw string) (WeekDrafts, error) {
	body, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Meals map[string]json.RawMessage `json:"meals"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("decode week payload: %v: %w", err, apperr.ErrUpstreamMalformed)
	}
	if envelope.Meals == nil {
		return nil, fmt.Errorf("week payload has no meals: %w", apperr.ErrUpstreamMalformed)
	}

	drafts := make(WeekDrafts)
	for rawDay, rawMeals := range envelope.Meals {
		day, err := ParseDay(rawDay)
		if err != nil {
			continue
		}
		var byMeal map[string]json.RawMessage
		if err := json.Unmarshal(rawMeals, &byMeal); err != nil {
			continue
		}
		for rawMeal, slot := range byMeal {
			meal, err := ParseMealType(rawMeal)
			if err != nil {
				continue
			}
			var d *RecipeDraft
			if err := json.Unmarshal(slot, &d); err != nil || d == nil {
				continue
			}
			d.normalize()
			if drafts[day] == nil {
				drafts[day] = make(map[MealType]RecipeDraft)
			}
			drafts[day][meal] = *d
		}
	}
	return drafts, nil
}

// DecodeRecipePayload turns the raw AI answer for a single recipe into a draft.
// A {"recipe": {...}} wrapper is accepted.
func DecodeRecipePayload(raw string) (RecipeDraft, error) {
	body, err := llm.ExtractJSON(raw)
	if err != nil {
		return RecipeDraft{}, err
	}

	var wrapped struct {
		Recipe *RecipeDraft `json:"recipe"`
	}
	if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
		return RecipeDraft{}, fmt.Errorf("decode recipe payload: %v: %w", err, apperr.ErrUpstreamMalformed)
	}

	var d RecipeDraft
	if wrapped.Recipe != nil {
		d = *wrapped.Recipe
	} else if err := json.Unmarshal([]byte(body), &d); err != nil {
		return RecipeDraft{}, fmt.Errorf("decode recipe payload: %v: %w", err, apperr.ErrUpstreamMalformed)
	}
	d.normalize()
	return d, nil
}
