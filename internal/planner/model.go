package planner

import (
	"fmt"
	"strings"
	"time"

	"meal-planner/internal/apperr"
	"meal-planner/internal/week"
)

// Day is a lowercase English weekday name.
type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
	Sunday    Day = "sunday"
)

// Days lists the days in canonical order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// MealType is one of the three daily meals.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
)

// MealTypes lists the meal types in canonical order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner}

// ParseDay validates a day name. Matching is case-insensitive.
func ParseDay(s string) (Day, error) {
	d := Day(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Days {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown day %q: %w", s, apperr.ErrInvalidInput)
}

// ParseMealType validates a meal type name. Matching is case-insensitive.
func ParseMealType(s string) (MealType, error) {
	m := MealType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range MealTypes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown meal type %q: %w", s, apperr.ErrInvalidInput)
}

// MealSlot is one (day, meal) cell of a plan. An empty RecipeID marks a free meal.
type MealSlot struct {
	RecipeID string `json:"recipeId"`
	Locked   bool   `json:"locked"`
}

// IsFree reports whether the slot is the empty sentinel.
func (s MealSlot) IsFree() bool {
	return s.RecipeID == ""
}

// Meals maps day to meal type to slot. An absent key means the slot was never generated.
type Meals map[Day]map[MealType]MealSlot

// Slot returns the slot at (day, meal) and whether it is present.
func (m Meals) Slot(day Day, meal MealType) (MealSlot, bool) {
	byMeal, ok := m[day]
	if !ok {
		return MealSlot{}, false
	}
	slot, ok := byMeal[meal]
	return slot, ok
}

// Set stores slot at (day, meal), creating the day entry when needed.
func (m Meals) Set(day Day, meal MealType, slot MealSlot) {
	if m[day] == nil {
		m[day] = make(map[MealType]MealSlot, len(MealTypes))
	}
	m[day][meal] = slot
}

// RecipeIDs returns every non-empty recipe id in canonical day x meal order.
func (m Meals) RecipeIDs() []string {
	var ids []string
	for _, day := range Days {
		for _, meal := range MealTypes {
			if slot, ok := m.Slot(day, meal); ok && !slot.IsFree() {
				ids = append(ids, slot.RecipeID)
			}
		}
	}
	return ids
}

// Count returns the number of present slots.
func (m Meals) Count() int {
	n := 0
	for _, byMeal := range m {
		n += len(byMeal)
	}
	return n
}

// StatusDraft is the only status a generated plan has.
const StatusDraft = "draft"

// DefaultPortions is used when a plan or request does not carry a portion count.
const DefaultPortions = 2

// WeeklyPlan is the plan of one ISO week.
type WeeklyPlan struct {
	WeekID      week.ID   `json:"weekId"`
	UserID      string    `json:"userId"`
	Portions    int       `json:"portions"`
	Status      string    `json:"status"`
	Meals       Meals     `json:"meals"`
	GeneratedAt time.Time `json:"generatedAt"`
}
